package repository

import (
	"context"
	"reflect"
)

// UnitOfWork runs a unit of work in one transaction and hands out repositories
// bound to that transaction.
//
// Every repository obtained inside Do shares the transaction, so either all of
// their writes commit or none do.
//
//	repoAny, err := uow.GetRepository(reflect.TypeOf((*AccountRepository)(nil)).Elem())
//	repo := repoAny.(AccountRepository)
type UnitOfWork interface {
	// Do executes fn within a transaction. If fn returns an error, the
	// transaction is rolled back.
	Do(ctx context.Context, fn func(uow UnitOfWork) error) error

	// GetRepository returns a repository of the requested interface type.
	GetRepository(repoType reflect.Type) (any, error)

	AccountRepository() (AccountRepository, error)
	SequenceRepository() (SequenceRepository, error)
	SettingsRepository() (SettingsRepository, error)
}

var (
	AccountRepositoryType  = reflect.TypeOf((*AccountRepository)(nil)).Elem()
	SequenceRepositoryType = reflect.TypeOf((*SequenceRepository)(nil)).Elem()
	SettingsRepositoryType = reflect.TypeOf((*SettingsRepository)(nil)).Elem()
)
