package admission

// AdmitRequest is sent by the funding relay for every funding event.
type AdmitRequest struct {
	AccountID     *uint64 `json:"account_id" validate:"required"`
	Seed          string  `json:"seed" validate:"required,hexadecimal"`
	FundingAmount string  `json:"funding_amount" validate:"required,numeric"`
}

type LatestResponse struct {
	Started  bool    `json:"started"`
	FirstID  *uint64 `json:"first_id,omitempty"`
	LatestID *uint64 `json:"latest_id,omitempty"`
}
