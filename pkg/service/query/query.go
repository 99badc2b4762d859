// Package query serves read-only views of accounts.
package query

import (
	"context"
	"errors"
	"log/slog"
	"strconv"

	"github.com/amirasaad/accrual/pkg/config"
	"github.com/amirasaad/accrual/pkg/domain"
	"github.com/amirasaad/accrual/pkg/domain/account"
	"github.com/amirasaad/accrual/pkg/provider"
	"github.com/amirasaad/accrual/pkg/repository"
	"github.com/shopspring/decimal"
)

// Attribute is one key/value pair of an account's metadata.
type Attribute struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Attribute keys appended by Augment, in order. The twelve price slots
// follow as price_1 … price_12.
const (
	KeyCategory       = "category"
	KeyBalance        = "balance"
	KeyCreatedAt      = "created_at"
	KeyIntervalLength = "interval_length"
	KeyRound          = "round"
	KeyWithdrawnAt    = "withdrawn_at"
	KeyBeneficiary    = "beneficiary"
	KeyAmountPaid     = "amount_paid"
	keyPricePrefix    = "price_"
)

type Service struct {
	uow       repository.UnitOfWork
	ownership provider.OwnershipSource
	paid      provider.PaidAmountSource
	logger    *slog.Logger
}

func New(deps config.Deps) *Service {
	return &Service{
		uow:       deps.Uow,
		ownership: deps.Ownership,
		paid:      deps.PaidAmount,
		logger:    deps.Logger.With("service", "query"),
	}
}

// Get returns the stored account.
func (s *Service) Get(ctx context.Context, id uint64) (*account.Account, error) {
	repo, err := s.uow.AccountRepository()
	if err != nil {
		return nil, err
	}
	return repo.Get(ctx, id)
}

// Augment appends the account's attributes to base. Ids that were never
// admitted read as a zero account; only storage failures are returned.
func (s *Service) Augment(ctx context.Context, id uint64, base []Attribute) ([]Attribute, error) {
	acc, err := s.Get(ctx, id)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		acc = &account.Account{ID: id}
	case err != nil:
		return nil, err
	}

	out := make([]Attribute, 0, len(base)+8+account.MaxRounds)
	out = append(out, base...)
	out = append(out,
		Attribute{KeyCategory, acc.Category.Symbol()},
		Attribute{KeyBalance, acc.Balance.String()},
		Attribute{KeyCreatedAt, unixOrZero(acc.CreatedAt.IsZero(), acc.CreatedAt.Unix())},
		Attribute{KeyIntervalLength, strconv.FormatInt(int64(acc.IntervalLength.Seconds()), 10)},
		Attribute{KeyRound, strconv.Itoa(acc.Round())},
		Attribute{KeyWithdrawnAt, unixOrZero(!acc.Withdrawn, acc.WithdrawnAt.Unix())},
		Attribute{KeyBeneficiary, s.beneficiary(ctx, id)},
		Attribute{KeyAmountPaid, s.amountPaid(ctx, id).String()},
	)
	for i, price := range acc.PriceSlots() {
		out = append(out, Attribute{keyPricePrefix + strconv.Itoa(i+1), price.String()})
	}
	return out, nil
}

func unixOrZero(zero bool, unix int64) string {
	if zero {
		return "0"
	}
	return strconv.FormatInt(unix, 10)
}

func (s *Service) beneficiary(ctx context.Context, id uint64) string {
	owner, err := s.ownership.OwnerOf(ctx, id)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			s.logger.Warn("owner lookup failed", "account_id", id, "error", err)
		}
		return ""
	}
	return owner
}

func (s *Service) amountPaid(ctx context.Context, id uint64) decimal.Decimal {
	amount, err := s.paid.PaidAmount(ctx, id)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) && !errors.Is(err, provider.ErrNotConfigured) {
			s.logger.Warn("amount paid lookup failed", "account_id", id, "error", err)
		}
		return decimal.Zero
	}
	return amount
}
