package common

import (
	"time"

	"github.com/amirasaad/accrual/pkg/domain/account"
)

type PriceSampleDTO struct {
	Round     int       `json:"round"`
	Price     string    `json:"price"`
	SampledAt time.Time `json:"sampled_at"`
}

// AccountDTO is the JSON view of an account.
type AccountDTO struct {
	ID                    uint64           `json:"id"`
	Category              string           `json:"category"`
	CategoryName          string           `json:"category_name"`
	Balance               string           `json:"balance"`
	CreatedAt             time.Time        `json:"created_at"`
	IntervalLengthSeconds int64            `json:"interval_length_seconds"`
	Round                 int              `json:"round"`
	Complete              bool             `json:"complete"`
	NextReadyAt           *time.Time       `json:"next_ready_at,omitempty"`
	Withdrawn             bool             `json:"withdrawn"`
	WithdrawnAt           *time.Time       `json:"withdrawn_at,omitempty"`
	Prices                []PriceSampleDTO `json:"prices"`
}

func ToAccountDTO(a *account.Account) AccountDTO {
	dto := AccountDTO{
		ID:                    a.ID,
		Category:              a.Category.Symbol(),
		CategoryName:          a.Category.Name(),
		Balance:               a.Balance.String(),
		CreatedAt:             a.CreatedAt,
		IntervalLengthSeconds: int64(a.IntervalLength / time.Second),
		Round:                 a.Round(),
		Complete:              a.Complete(),
		Withdrawn:             a.Withdrawn,
		Prices:                make([]PriceSampleDTO, 0, len(a.Prices)),
	}
	if !a.Complete() {
		next := a.NextReadyAt()
		dto.NextReadyAt = &next
	}
	if a.Withdrawn {
		at := a.WithdrawnAt
		dto.WithdrawnAt = &at
	}
	for _, p := range a.Prices {
		dto.Prices = append(dto.Prices, PriceSampleDTO{Round: p.Round, Price: p.Price.String(), SampledAt: p.SampledAt})
	}
	return dto
}
