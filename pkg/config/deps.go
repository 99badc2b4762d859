package config

import (
	"log/slog"

	"github.com/amirasaad/accrual/pkg/access"
	"github.com/amirasaad/accrual/pkg/eventbus"
	"github.com/amirasaad/accrual/pkg/metrics"
	"github.com/amirasaad/accrual/pkg/provider"
	"github.com/amirasaad/accrual/pkg/repository"
	"github.com/jonboulle/clockwork"
)

// Deps holds all infrastructure dependencies for building the app and services.
type Deps struct {
	Uow        repository.UnitOfWork
	Policy     *access.Policy
	Oracle     *provider.OracleSwitch
	PaidAmount *provider.PaidAmountSwitch
	Transferer provider.Transferer
	Ownership  provider.OwnershipSource
	EventBus   eventbus.Bus
	Clock      clockwork.Clock
	Metrics    *metrics.Metrics
	Logger     *slog.Logger
	Config     *App
}
