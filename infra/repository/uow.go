package repository

import (
	"context"
	"fmt"
	"reflect"

	"github.com/amirasaad/accrual/pkg/repository"
	"gorm.io/gorm"
)

// UoW is the gorm implementation of repository.UnitOfWork.
type UoW struct {
	db           *gorm.DB
	tx           *gorm.DB
	repoRegistry map[reflect.Type]func(*gorm.DB) any
}

// NewUoW creates a new UoW for the given *gorm.DB.
func NewUoW(db *gorm.DB) *UoW {
	return &UoW{
		db: db,
		repoRegistry: map[reflect.Type]func(*gorm.DB) any{
			repository.AccountRepositoryType:  func(db *gorm.DB) any { return NewAccountRepository(db) },
			repository.SequenceRepositoryType: func(db *gorm.DB) any { return NewSequenceRepository(db) },
			repository.SettingsRepositoryType: func(db *gorm.DB) any { return NewSettingsRepository(db) },
		},
	}
}

// Do runs fn in a database transaction. Repositories obtained from the UoW
// passed to fn share that transaction.
func (u *UoW) Do(ctx context.Context, fn func(uow repository.UnitOfWork) error) error {
	return u.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&UoW{db: u.db, tx: tx, repoRegistry: u.repoRegistry})
	})
}

// GetRepository returns a repository bound to the current session. Outside Do
// the repository runs on the plain connection pool.
func (u *UoW) GetRepository(repoType reflect.Type) (any, error) {
	constructor, ok := u.repoRegistry[repoType]
	if !ok {
		return nil, fmt.Errorf("unsupported repository type: %v", repoType)
	}
	return constructor(u.session()), nil
}

func (u *UoW) session() *gorm.DB {
	if u.tx != nil {
		return u.tx
	}
	return u.db
}

func (u *UoW) AccountRepository() (repository.AccountRepository, error) {
	r, err := u.GetRepository(repository.AccountRepositoryType)
	if err != nil {
		return nil, err
	}
	return r.(repository.AccountRepository), nil
}

func (u *UoW) SequenceRepository() (repository.SequenceRepository, error) {
	r, err := u.GetRepository(repository.SequenceRepositoryType)
	if err != nil {
		return nil, err
	}
	return r.(repository.SequenceRepository), nil
}

func (u *UoW) SettingsRepository() (repository.SettingsRepository, error) {
	r, err := u.GetRepository(repository.SettingsRepositoryType)
	if err != nil {
		return nil, err
	}
	return r.(repository.SettingsRepository), nil
}

var _ repository.UnitOfWork = (*UoW)(nil)
