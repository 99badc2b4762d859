// Package admission creates accounts from funding events.
//
// Admission is strictly sequential: after the first admission every id must be
// the successor of the latest admitted id. The full funding amount is swapped
// into the account's payout asset and the asset's unit price becomes the first
// price sample. Any failure, including an oracle failure, leaves nothing behind.
package admission

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/amirasaad/accrual/pkg/access"
	"github.com/amirasaad/accrual/pkg/config"
	"github.com/amirasaad/accrual/pkg/domain"
	"github.com/amirasaad/accrual/pkg/domain/account"
	"github.com/amirasaad/accrual/pkg/domain/events"
	"github.com/amirasaad/accrual/pkg/eventbus"
	"github.com/amirasaad/accrual/pkg/metrics"
	"github.com/amirasaad/accrual/pkg/provider"
	"github.com/amirasaad/accrual/pkg/repository"
	"github.com/jonboulle/clockwork"
	"github.com/shopspring/decimal"
)

// ErrInvalidFunding is returned when the funding amount is not positive.
var ErrInvalidFunding = fmt.Errorf("%w: funding amount must be positive", domain.ErrValidation)

// Request is a funding event forwarded by the funding relay.
type Request struct {
	Caller        access.Identity
	AccountID     uint64
	Seed          []byte
	FundingAmount decimal.Decimal
}

type Service struct {
	uow     repository.UnitOfWork
	policy  *access.Policy
	oracle  provider.Oracle
	bus     eventbus.Bus
	clock   clockwork.Clock
	metrics *metrics.Metrics
	cfg     *config.Admission
	logger  *slog.Logger
}

func New(deps config.Deps) *Service {
	return &Service{
		uow:     deps.Uow,
		policy:  deps.Policy,
		oracle:  deps.Oracle,
		bus:     deps.EventBus,
		clock:   deps.Clock,
		metrics: deps.Metrics,
		cfg:     deps.Config.Admission,
		logger:  deps.Logger.With("service", "admission"),
	}
}

// Admit creates the account described by req.
func (s *Service) Admit(ctx context.Context, req Request) (acc *account.Account, err error) {
	log := s.logger.With("account_id", req.AccountID, "caller", req.Caller)
	defer func() { s.metrics.ObserveAdmission(err) }()

	if err = s.policy.Require(req.Caller, access.RoleFundingRelay); err != nil {
		log.Warn("admission rejected", "error", err)
		return nil, err
	}
	if !req.FundingAmount.IsPositive() {
		return nil, ErrInvalidFunding
	}
	if len(req.Seed) == 0 {
		return nil, account.ErrMissingSeed
	}

	now := s.clock.Now().UTC().Truncate(time.Second)
	err = s.uow.Do(ctx, func(uow repository.UnitOfWork) error {
		seqRepo, err := uow.SequenceRepository()
		if err != nil {
			return err
		}
		prev, err := seqRepo.Get(ctx)
		if err != nil {
			return err
		}
		next, err := prev.Next(req.AccountID)
		if err != nil {
			return err
		}
		// Claim the id before any funds move. A concurrent admission of the
		// same id blocks on the claim and then fails out of sequence.
		if err := seqRepo.Save(ctx, prev, next); err != nil {
			return err
		}

		asset := account.Derive(req.Seed).Category.Symbol()
		swap, err := s.oracle.Swap(ctx, provider.SwapRequest{
			Asset:       asset,
			AmountIn:    req.FundingAmount,
			SlippageBps: s.cfg.SlippageBps,
			Deadline:    now.Add(s.cfg.DeadlineOffset),
		})
		if err != nil {
			return fmt.Errorf("%w: swap %s: %w", domain.ErrOracle, asset, err)
		}
		quote, err := s.oracle.CurrentUnitPrice(ctx, asset)
		if err != nil {
			return fmt.Errorf("%w: price %s: %w", domain.ErrOracle, asset, err)
		}

		acc, err = account.New().
			WithID(req.AccountID).
			WithSeed(req.Seed).
			WithBalance(swap.AmountOut).
			WithCreatedAt(now).
			WithInitialPrice(quote.Value()).
			Build()
		if err != nil {
			return err
		}

		repo, err := uow.AccountRepository()
		if err != nil {
			return err
		}
		return repo.Create(ctx, acc)
	})
	if err != nil {
		log.Error("admission failed", "error", err)
		return nil, err
	}

	log.Info("account admitted",
		"category", acc.Category.Symbol(),
		"balance", acc.Balance.String(),
		"interval", acc.IntervalLength)
	if emitErr := s.bus.Emit(ctx, events.NewAccountAdmitted(
		acc.ID, now, acc.Category.Symbol(), acc.Balance, acc.IntervalLength, acc.Prices[0].Price,
	)); emitErr != nil {
		log.Error("failed to emit event", "error", emitErr)
	}
	return acc, nil
}

// Latest returns the admission sequence.
func (s *Service) Latest(ctx context.Context) (account.Sequence, error) {
	repo, err := s.uow.SequenceRepository()
	if err != nil {
		return account.Sequence{}, err
	}
	return repo.Get(ctx)
}
