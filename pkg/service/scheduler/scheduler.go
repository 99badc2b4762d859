// Package scheduler drives accounts through their timed rounds.
//
// An account in round r (1 <= r < 12) becomes ready once strictly more than
// r intervals have passed since its creation. Advancing samples the oracle and
// appends exactly one price. A caller must claim the round it observed; a
// claim that no longer matches is rejected as stale so that replays and
// concurrent pollers cannot double-advance.
package scheduler

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
)

type Service struct {
	uow     repository.UnitOfWork
	policy  *access.Policy
	oracle  provider.Oracle
	bus     eventbus.Bus
	clock   clockwork.Clock
	metrics *metrics.Metrics
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
		logger:  deps.Logger.With("service", "scheduler"),
	}
}

func (s *Service) now() time.Time {
	return s.clock.Now().UTC().Truncate(time.Second)
}

// IsReady reports whether the account may advance now.
func (s *Service) IsReady(ctx context.Context, id uint64) (bool, error) {
	repo, err := s.uow.AccountRepository()
	if err != nil {
		return false, err
	}
	acc, err := repo.Get(ctx, id)
	if err != nil {
		return false, err
	}
	return acc.IsReady(s.now()), nil
}

// FindNextReady returns the lowest-id ready account among the admitted ids,
// or nil when none is ready.
func (s *Service) FindNextReady(ctx context.Context) (*account.Account, error) {
	start := time.Now()
	defer func() { s.metrics.ObserveScan(time.Since(start)) }()

	var next *account.Account
	err := s.uow.Do(ctx, func(uow repository.UnitOfWork) error {
		seqRepo, err := uow.SequenceRepository()
		if err != nil {
			return err
		}
		seq, err := seqRepo.Get(ctx)
		if err != nil {
			return err
		}
		from, to, ok := seq.Range()
		if !ok {
			return nil
		}
		repo, err := uow.AccountRepository()
		if err != nil {
			return err
		}
		next, err = repo.FindNextReady(ctx, from, to, s.now())
		return err
	})
	if err != nil {
		s.logger.Error("scan failed", "error", err)
		return nil, err
	}
	return next, nil
}

// AdvanceRound samples the oracle for the account and appends the price.
// claimedRound must equal the account's current round.
func (s *Service) AdvanceRound(
	ctx context.Context,
	caller access.Identity,
	id uint64,
	claimedRound int,
) (acc *account.Account, sample account.PriceSample, err error) {
	log := s.logger.With("account_id", id, "claimed_round", claimedRound)
	defer func() { s.metrics.ObserveAdvance(err) }()

	if err = s.policy.Require(caller, access.RoleAutomationAgent); err != nil {
		log.Warn("advance rejected", "caller", caller, "error", err)
		return nil, sample, err
	}

	now := s.now()
	err = s.uow.Do(ctx, func(uow repository.UnitOfWork) error {
		repo, err := uow.AccountRepository()
		if err != nil {
			return err
		}
		acc, err = repo.Get(ctx, id)
		if err != nil {
			return err
		}
		if err := acc.CanAdvance(claimedRound, now); err != nil {
			return err
		}

		asset := acc.Category.Symbol()
		quote, err := s.oracle.CurrentUnitPrice(ctx, asset)
		if err != nil {
			return fmt.Errorf("%w: price %s: %w", domain.ErrOracle, asset, err)
		}
		sample, err = acc.Advance(claimedRound, quote.Value(), now)
		if err != nil {
			return err
		}
		return repo.AppendPrice(ctx, acc)
	})
	if err != nil {
		log.Info("advance refused", "error", err)
		return nil, account.PriceSample{}, err
	}

	log.Info("round advanced", "round", sample.Round, "price", sample.Price.String())
	if emitErr := s.bus.Emit(ctx, events.NewRoundAdvanced(id, now, sample.Round, sample.Price)); emitErr != nil {
		log.Error("failed to emit event", "error", emitErr)
	}
	return acc, sample, nil
}
