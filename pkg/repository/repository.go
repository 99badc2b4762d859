package repository

import (
	"context"
	"time"

	"github.com/amirasaad/accrual/pkg/domain/account"
	"github.com/amirasaad/accrual/pkg/domain/settings"
)

// AccountRepository stores accounts and their price histories.
type AccountRepository interface {
	// Get returns the account with its full price history, or account.ErrAccountNotFound.
	Get(ctx context.Context, id uint64) (*account.Account, error)

	// Create inserts a newly admitted account together with its initial samples.
	Create(ctx context.Context, a *account.Account) error

	// AppendPrice persists the newest price sample of a. It fails with
	// account.ErrRoundMismatch when the stored round is not a.Round()-1.
	AppendPrice(ctx context.Context, a *account.Account) error

	// MarkWithdrawn sets the withdrawn flag. It fails with
	// account.ErrAlreadyWithdrawn when the flag is already set.
	MarkWithdrawn(ctx context.Context, id uint64, at time.Time) error

	// ClearWithdrawn reverts MarkWithdrawn after a payout that was not delivered.
	ClearWithdrawn(ctx context.Context, id uint64) error

	// FindNextReady returns the lowest id in [from, to] that is ready at now,
	// or nil when none is.
	FindNextReady(ctx context.Context, from, to uint64, now time.Time) (*account.Account, error)
}

// SequenceRepository stores the admission sequence.
type SequenceRepository interface {
	Get(ctx context.Context) (account.Sequence, error)

	// Save replaces prev with next. It fails with account.ErrOutOfSequence
	// when the stored sequence is no longer prev.
	Save(ctx context.Context, prev, next account.Sequence) error
}

// SettingsRepository stores administrator settings.
type SettingsRepository interface {
	// Get returns the stored settings or domain.ErrNotFound.
	Get(ctx context.Context) (*settings.Settings, error)
	Save(ctx context.Context, s *settings.Settings) error
}
