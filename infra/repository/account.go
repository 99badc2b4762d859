package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/amirasaad/accrual/pkg/domain/account"
	"github.com/amirasaad/accrual/pkg/repository"
	"gorm.io/gorm"
)

type accountRepository struct {
	db *gorm.DB
}

// NewAccountRepository returns a gorm-backed account repository.
func NewAccountRepository(db *gorm.DB) repository.AccountRepository {
	return &accountRepository{db: db}
}

func orderedPrices(db *gorm.DB) *gorm.DB {
	return db.Order("round ASC")
}

// Get implements repository.AccountRepository.
func (r *accountRepository) Get(ctx context.Context, id uint64) (*account.Account, error) {
	var m Account
	err := r.db.WithContext(ctx).Preload("Prices", orderedPrices).First(&m, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %d", account.ErrAccountNotFound, id)
	}
	if err != nil {
		return nil, MapGormErrorToDomain(err)
	}
	return mapModelToAccount(&m), nil
}

// Create implements repository.AccountRepository.
func (r *accountRepository) Create(ctx context.Context, a *account.Account) error {
	m := mapAccountToModel(a)
	prices := m.Prices
	m.Prices = nil
	return WrapError(func() error {
		return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := tx.Omit("Prices").Create(&m).Error; err != nil {
				return err
			}
			if len(prices) == 0 {
				return nil
			}
			return tx.Create(&prices).Error
		})
	})
}

// AppendPrice implements repository.AccountRepository. The update is
// conditional on the previous round so a concurrent advance of the same round
// affects no rows.
func (r *accountRepository) AppendPrice(ctx context.Context, a *account.Account) error {
	round := a.Round()
	if round == 0 {
		return fmt.Errorf("%w: account %d has no samples", account.ErrRoundMismatch, a.ID)
	}
	sample := mapSampleToModel(a.ID, a.Prices[round-1])
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&Account{}).
			Where("id = ? AND round = ?", a.ID, round-1).
			Updates(map[string]any{
				"round":         round,
				"next_ready_at": a.NextReadyAt(),
			})
		if res.Error != nil {
			return MapGormErrorToDomain(res.Error)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: account %d is no longer at round %d", account.ErrRoundMismatch, a.ID, round-1)
		}
		return WrapError(func() error { return tx.Create(&sample).Error })
	})
}

// MarkWithdrawn implements repository.AccountRepository.
func (r *accountRepository) MarkWithdrawn(ctx context.Context, id uint64, at time.Time) error {
	res := r.db.WithContext(ctx).Model(&Account{}).
		Where("id = ? AND withdrawn = ?", id, false).
		Updates(map[string]any{
			"withdrawn":    true,
			"withdrawn_at": at,
		})
	if res.Error != nil {
		return MapGormErrorToDomain(res.Error)
	}
	if res.RowsAffected == 1 {
		return nil
	}
	var n int64
	if err := r.db.WithContext(ctx).Model(&Account{}).Where("id = ?", id).Count(&n).Error; err != nil {
		return MapGormErrorToDomain(err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %d", account.ErrAccountNotFound, id)
	}
	return fmt.Errorf("%w: %d", account.ErrAlreadyWithdrawn, id)
}

// ClearWithdrawn implements repository.AccountRepository.
func (r *accountRepository) ClearWithdrawn(ctx context.Context, id uint64) error {
	res := r.db.WithContext(ctx).Model(&Account{}).
		Where("id = ? AND withdrawn = ?", id, true).
		Updates(map[string]any{
			"withdrawn":    false,
			"withdrawn_at": nil,
		})
	if res.Error != nil {
		return MapGormErrorToDomain(res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: %d", account.ErrAccountNotFound, id)
	}
	return nil
}

// FindNextReady implements repository.AccountRepository.
func (r *accountRepository) FindNextReady(ctx context.Context, from, to uint64, now time.Time) (*account.Account, error) {
	var m Account
	err := r.db.WithContext(ctx).
		Preload("Prices", orderedPrices).
		Where("id BETWEEN ? AND ? AND round < ? AND next_ready_at < ?", from, to, account.MaxRounds, now).
		Order("id ASC").
		Limit(1).
		Take(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, MapGormErrorToDomain(err)
	}
	return mapModelToAccount(&m), nil
}
