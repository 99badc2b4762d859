package account

import (
	"github.com/amirasaad/accrual/pkg/service/query"
	"github.com/amirasaad/accrual/webapi/common"
)

// WithdrawRequest is the external authorizer's parameter change.
type WithdrawRequest struct {
	SystemRef  string `json:"system_ref" validate:"required"`
	ParamKey   string `json:"param_key" validate:"required"`
	ParamValue string `json:"param_value"`
}

type WithdrawResponse struct {
	Account     common.AccountDTO `json:"account"`
	Beneficiary string            `json:"beneficiary"`
	TransferID  string            `json:"transfer_id"`
	Asset       string            `json:"asset"`
	Amount      string            `json:"amount"`
}

// AttributesRequest carries the caller's base attributes to augment.
type AttributesRequest struct {
	Attributes []query.Attribute `json:"attributes" validate:"dive"`
}
