// Package withdrawal pays out an account's balance exactly once.
package withdrawal

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
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

var (
	// ErrUnknownSystem is returned when the request names another owning system.
	ErrUnknownSystem = fmt.Errorf("%w: account belongs to another system", domain.ErrState)
	// ErrOutsideBatch is returned when the account id is outside the configured namespace.
	ErrOutsideBatch = fmt.Errorf("%w: account id outside batch namespace", domain.ErrState)
	// ErrUnsupportedParam is returned when the parameter key is not the withdrawal key.
	ErrUnsupportedParam = fmt.Errorf("%w: unsupported parameter", domain.ErrState)
	// ErrNotConfirmed is returned when the parameter value is not the "true" sentinel.
	ErrNotConfirmed = fmt.Errorf("%w: withdrawal value must be the true sentinel", domain.ErrState)
)

// Request is an externally triggered withdrawal.
type Request struct {
	Caller     access.Identity
	SystemRef  string
	AccountID  uint64
	ParamKey   string
	ParamValue string
}

// Result describes a delivered payout.
type Result struct {
	Account     *account.Account
	Beneficiary string
	Receipt     *provider.TransferReceipt
}

type Service struct {
	uow        repository.UnitOfWork
	policy     *access.Policy
	ownership  provider.OwnershipSource
	transferer provider.Transferer
	bus        eventbus.Bus
	clock      clockwork.Clock
	metrics    *metrics.Metrics
	batch      *config.Batch
	params     *config.Withdrawal
	logger     *slog.Logger
}

func New(deps config.Deps) *Service {
	return &Service{
		uow:        deps.Uow,
		policy:     deps.Policy,
		ownership:  deps.Ownership,
		transferer: deps.Transferer,
		bus:        deps.EventBus,
		clock:      deps.Clock,
		metrics:    deps.Metrics,
		batch:      deps.Config.Batch,
		params:     deps.Config.Withdrawal,
		logger:     deps.Logger.With("service", "withdrawal"),
	}
}

// checkRequest runs the checks that need no account state, in order.
func (s *Service) checkRequest(req Request) error {
	if err := s.policy.Require(req.Caller, access.RoleExternalAuthorizer); err != nil {
		return err
	}
	if req.SystemRef != s.batch.SystemRef {
		return fmt.Errorf("%w: %q", ErrUnknownSystem, req.SystemRef)
	}
	if account.BatchOf(req.AccountID, s.batch.Size) != s.batch.Namespace {
		return fmt.Errorf("%w: id %d", ErrOutsideBatch, req.AccountID)
	}
	if req.ParamKey != s.params.ParamKey {
		return fmt.Errorf("%w: %q", ErrUnsupportedParam, req.ParamKey)
	}
	return nil
}

// Withdraw marks the account withdrawn and transfers its full balance to the
// account's current owner. The flag is committed before the transfer is sent
// and cleared again if the transfer fails. The transfer reference is stable
// per account.
func (s *Service) Withdraw(ctx context.Context, req Request) (res *Result, err error) {
	log := s.logger.With("account_id", req.AccountID, "caller", req.Caller)
	defer func() { s.metrics.ObserveWithdrawal(err) }()

	if err = s.checkRequest(req); err != nil {
		log.Warn("withdrawal rejected", "error", err)
		return nil, err
	}

	now := s.clock.Now().UTC().Truncate(time.Second)
	var acc *account.Account
	err = s.uow.Do(ctx, func(uow repository.UnitOfWork) error {
		repo, err := uow.AccountRepository()
		if err != nil {
			return err
		}
		acc, err = repo.Get(ctx, req.AccountID)
		if err != nil {
			return err
		}
		if acc.Withdrawn {
			return fmt.Errorf("%w: account %d", account.ErrAlreadyWithdrawn, acc.ID)
		}
		if req.ParamValue != s.params.TrueValue {
			return fmt.Errorf("%w: got %q", ErrNotConfirmed, req.ParamValue)
		}
		if err := acc.Withdraw(now); err != nil {
			return err
		}
		return repo.MarkWithdrawn(ctx, acc.ID, now)
	})
	if err != nil {
		log.Error("withdrawal failed", "error", err)
		return nil, err
	}

	res, err = s.pay(ctx, acc)
	if err != nil {
		log.Error("withdrawal failed", "error", err)
		if undoErr := s.clearWithdrawn(ctx, acc.ID); undoErr != nil {
			log.Error("withdrawn flag left set after failed payout", "error", undoErr)
			return nil, fmt.Errorf("%w; clearing withdrawn flag: %w", err, undoErr)
		}
		return nil, err
	}

	log.Info("account withdrawn",
		"beneficiary", res.Beneficiary,
		"asset", res.Receipt.Asset,
		"amount", res.Receipt.Amount.String(),
		"round", res.Account.Round())
	if emitErr := s.bus.Emit(ctx, events.NewAccountWithdrawn(
		res.Account.ID, now, res.Beneficiary, res.Receipt.Asset, res.Receipt.Amount, res.Account.Round(),
	)); emitErr != nil {
		log.Error("failed to emit event", "error", emitErr)
	}
	return res, nil
}

func (s *Service) pay(ctx context.Context, acc *account.Account) (*Result, error) {
	owner, err := s.ownership.OwnerOf(ctx, acc.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: resolve owner: %w", domain.ErrTransfer, err)
	}
	receipt, err := s.transferer.Transfer(ctx, provider.TransferRequest{
		Asset:     acc.Category.Symbol(),
		To:        owner,
		Amount:    acc.Balance,
		Reference: "withdraw-" + strconv.FormatUint(acc.ID, 10),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrTransfer, err)
	}
	return &Result{Account: acc, Beneficiary: owner, Receipt: receipt}, nil
}

// clearWithdrawn runs even when ctx was cancelled mid-transfer.
func (s *Service) clearWithdrawn(ctx context.Context, id uint64) error {
	ctx = context.WithoutCancel(ctx)
	return s.uow.Do(ctx, func(uow repository.UnitOfWork) error {
		repo, err := uow.AccountRepository()
		if err != nil {
			return err
		}
		return repo.ClearWithdrawn(ctx, id)
	})
}
