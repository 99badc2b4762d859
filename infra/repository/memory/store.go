// Package memory is an in-process ledger used for development and tests.
// Units of work are serialized and applied to a private copy of the state,
// which replaces the shared state only when the work succeeds.
package memory

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"sync"
	"time"

	"github.com/amirasaad/accrual/pkg/domain"
	"github.com/amirasaad/accrual/pkg/domain/account"
	"github.com/amirasaad/accrual/pkg/domain/settings"
	"github.com/amirasaad/accrual/pkg/repository"
)

type state struct {
	accounts map[uint64]*account.Account
	sequence account.Sequence
	settings *settings.Settings
}

func (s *state) clone() *state {
	c := &state{
		accounts: make(map[uint64]*account.Account, len(s.accounts)),
		sequence: s.sequence,
	}
	for id, a := range s.accounts {
		c.accounts[id] = cloneAccount(a)
	}
	if s.settings != nil {
		st := *s.settings
		c.settings = &st
	}
	return c
}

func cloneAccount(a *account.Account) *account.Account {
	c := *a
	c.Seed = append([]byte(nil), a.Seed...)
	c.Prices = append([]account.PriceSample(nil), a.Prices...)
	return &c
}

// Store is the shared state plus the lock serializing units of work.
// Reads outside a unit of work share the lock and see the live state.
type Store struct {
	mu    sync.RWMutex
	state *state
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{state: &state{accounts: map[uint64]*account.Account{}}}
}

// UoW implements repository.UnitOfWork over a Store.
type UoW struct {
	store *Store
	tx    *state
}

// NewUoW returns a unit of work bound to store.
func NewUoW(store *Store) *UoW {
	return &UoW{store: store}
}

// Do runs fn against a copy of the state and publishes the copy if fn succeeds.
// Nested calls join the outer unit of work.
func (u *UoW) Do(ctx context.Context, fn func(uow repository.UnitOfWork) error) error {
	if u.tx != nil {
		return fn(u)
	}
	u.store.mu.Lock()
	defer u.store.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	tx := &UoW{store: u.store, tx: u.store.state.clone()}
	if err := fn(tx); err != nil {
		return err
	}
	u.store.state = tx.tx
	return nil
}

// GetRepository implements repository.UnitOfWork. Outside Do every call is
// its own unit of work.
func (u *UoW) GetRepository(repoType reflect.Type) (any, error) {
	switch repoType {
	case repository.AccountRepositoryType:
		return &accountRepository{u: u}, nil
	case repository.SequenceRepositoryType:
		return &sequenceRepository{u: u}, nil
	case repository.SettingsRepositoryType:
		return &settingsRepository{u: u}, nil
	}
	return nil, fmt.Errorf("unsupported repository type: %v", repoType)
}

func (u *UoW) AccountRepository() (repository.AccountRepository, error) {
	return &accountRepository{u: u}, nil
}

func (u *UoW) SequenceRepository() (repository.SequenceRepository, error) {
	return &sequenceRepository{u: u}, nil
}

func (u *UoW) SettingsRepository() (repository.SettingsRepository, error) {
	return &settingsRepository{u: u}, nil
}

// view runs a read-only op against the current unit of work, or against the
// live state under the read lock. op must copy anything it returns.
func (u *UoW) view(ctx context.Context, op func(s *state) error) error {
	if u.tx != nil {
		return op(u.tx)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	u.store.mu.RLock()
	defer u.store.mu.RUnlock()
	return op(u.store.state)
}

// run executes op inside the current unit of work, or a new one.
func (u *UoW) run(ctx context.Context, op func(s *state) error) error {
	if u.tx != nil {
		return op(u.tx)
	}
	return u.Do(ctx, func(tx repository.UnitOfWork) error {
		return op(tx.(*UoW).tx)
	})
}

type accountRepository struct{ u *UoW }

func (r *accountRepository) Get(ctx context.Context, id uint64) (*account.Account, error) {
	var out *account.Account
	err := r.u.view(ctx, func(s *state) error {
		a, ok := s.accounts[id]
		if !ok {
			return fmt.Errorf("%w: %d", account.ErrAccountNotFound, id)
		}
		out = cloneAccount(a)
		return nil
	})
	return out, err
}

func (r *accountRepository) Create(ctx context.Context, a *account.Account) error {
	return r.u.run(ctx, func(s *state) error {
		if _, ok := s.accounts[a.ID]; ok {
			return domain.ErrAlreadyExists
		}
		s.accounts[a.ID] = cloneAccount(a)
		return nil
	})
}

func (r *accountRepository) AppendPrice(ctx context.Context, a *account.Account) error {
	return r.u.run(ctx, func(s *state) error {
		stored, ok := s.accounts[a.ID]
		if !ok {
			return fmt.Errorf("%w: %d", account.ErrAccountNotFound, a.ID)
		}
		round := a.Round()
		if round == 0 || stored.Round() != round-1 {
			return fmt.Errorf("%w: account %d is at round %d", account.ErrRoundMismatch, a.ID, stored.Round())
		}
		stored.Prices = append(stored.Prices, a.Prices[round-1])
		return nil
	})
}

func (r *accountRepository) MarkWithdrawn(ctx context.Context, id uint64, at time.Time) error {
	return r.u.run(ctx, func(s *state) error {
		stored, ok := s.accounts[id]
		if !ok {
			return fmt.Errorf("%w: %d", account.ErrAccountNotFound, id)
		}
		return stored.Withdraw(at)
	})
}

func (r *accountRepository) ClearWithdrawn(ctx context.Context, id uint64) error {
	return r.u.run(ctx, func(s *state) error {
		stored, ok := s.accounts[id]
		if !ok || !stored.Withdrawn {
			return fmt.Errorf("%w: %d", account.ErrAccountNotFound, id)
		}
		stored.Withdrawn = false
		stored.WithdrawnAt = time.Time{}
		return nil
	})
}

func (r *accountRepository) FindNextReady(ctx context.Context, from, to uint64, now time.Time) (*account.Account, error) {
	var out *account.Account
	err := r.u.view(ctx, func(s *state) error {
		ids := make([]uint64, 0, len(s.accounts))
		for id := range s.accounts {
			if id >= from && id <= to {
				ids = append(ids, id)
			}
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
		for _, id := range ids {
			if a := s.accounts[id]; a.IsReady(now) {
				out = cloneAccount(a)
				return nil
			}
		}
		return nil
	})
	return out, err
}

type sequenceRepository struct{ u *UoW }

func (r *sequenceRepository) Get(ctx context.Context) (account.Sequence, error) {
	var out account.Sequence
	err := r.u.view(ctx, func(s *state) error {
		out = s.sequence
		return nil
	})
	return out, err
}

func (r *sequenceRepository) Save(ctx context.Context, prev, next account.Sequence) error {
	return r.u.run(ctx, func(s *state) error {
		if s.sequence != prev {
			return fmt.Errorf("%w: sequence changed concurrently", account.ErrOutOfSequence)
		}
		s.sequence = next
		return nil
	})
}

type settingsRepository struct{ u *UoW }

func (r *settingsRepository) Get(ctx context.Context) (*settings.Settings, error) {
	var out *settings.Settings
	err := r.u.view(ctx, func(s *state) error {
		if s.settings == nil {
			return domain.ErrNotFound
		}
		st := *s.settings
		out = &st
		return nil
	})
	return out, err
}

func (r *settingsRepository) Save(ctx context.Context, st *settings.Settings) error {
	return r.u.run(ctx, func(s *state) error {
		c := *st
		s.settings = &c
		return nil
	})
}

var _ repository.UnitOfWork = (*UoW)(nil)
