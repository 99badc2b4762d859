package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/amirasaad/accrual/pkg/domain"
	"github.com/amirasaad/accrual/pkg/domain/account"
	"github.com/amirasaad/accrual/pkg/repository"
	"gorm.io/gorm"
)

type sequenceRepository struct {
	db *gorm.DB
}

// NewSequenceRepository returns a gorm-backed admission sequence repository.
func NewSequenceRepository(db *gorm.DB) repository.SequenceRepository {
	return &sequenceRepository{db: db}
}

// Get implements repository.SequenceRepository.
func (r *sequenceRepository) Get(ctx context.Context) (account.Sequence, error) {
	var m AdmissionSequence
	err := r.db.WithContext(ctx).First(&m, "id = ?", singletonID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return account.Sequence{}, nil
	}
	if err != nil {
		return account.Sequence{}, MapGormErrorToDomain(err)
	}
	return account.Sequence{Latest: m.Latest, First: m.First, Started: m.Started}, nil
}

// Save implements repository.SequenceRepository.
func (r *sequenceRepository) Save(ctx context.Context, prev, next account.Sequence) error {
	if !prev.Started {
		m := AdmissionSequence{ID: singletonID, Latest: next.Latest, First: next.First, Started: next.Started}
		err := WrapError(func() error { return r.db.WithContext(ctx).Create(&m).Error })
		if errors.Is(err, domain.ErrAlreadyExists) {
			return fmt.Errorf("%w: sequence already started", account.ErrOutOfSequence)
		}
		return err
	}
	res := r.db.WithContext(ctx).Model(&AdmissionSequence{}).
		Where("id = ? AND latest = ?", singletonID, prev.Latest).
		Updates(map[string]any{"latest": next.Latest})
	if res.Error != nil {
		return MapGormErrorToDomain(res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: latest is no longer %d", account.ErrOutOfSequence, prev.Latest)
	}
	return nil
}
