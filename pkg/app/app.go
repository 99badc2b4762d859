// Package app assembles the services that share one set of dependencies.
package app

import (
	"github.com/amirasaad/accrual/pkg/config"
	"github.com/amirasaad/accrual/pkg/handler"
	"github.com/amirasaad/accrual/pkg/service/admission"
	"github.com/amirasaad/accrual/pkg/service/auth"
	"github.com/amirasaad/accrual/pkg/service/keeper"
	"github.com/amirasaad/accrual/pkg/service/query"
	"github.com/amirasaad/accrual/pkg/service/scheduler"
	"github.com/amirasaad/accrual/pkg/service/settings"
	"github.com/amirasaad/accrual/pkg/service/withdrawal"
)

type App struct {
	Deps   config.Deps
	Config *config.App

	AuthService       *auth.Service
	AdmissionService  *admission.Service
	SchedulerService  *scheduler.Service
	WithdrawalService *withdrawal.Service
	QueryService      *query.Service
	SettingsService   *settings.Service
	Keeper            *keeper.Keeper
	Audit             *handler.AuditTrail
}

func New(deps config.Deps, newOracle settings.OracleFactory, newPaid settings.PaidAmountFactory) (*App, error) {
	cfg := deps.Config
	app := &App{
		Deps:              deps,
		Config:            cfg,
		AuthService:       auth.NewWithJWT(cfg.Auth.Jwt, deps.Logger),
		AdmissionService:  admission.New(deps),
		SchedulerService:  scheduler.New(deps),
		WithdrawalService: withdrawal.New(deps),
		QueryService:      query.New(deps),
		SettingsService:   settings.New(deps, newOracle, newPaid),
		Audit:             handler.NewAuditTrail(deps.Logger),
	}
	app.setupEventBus()

	k, err := keeper.New(deps, app.SchedulerService)
	if err != nil {
		return nil, err
	}
	app.Keeper = k
	return app, nil
}

// setupEventBus registers the event consumers.
func (a *App) setupEventBus() {
	a.Audit.Subscribe(a.Deps.EventBus, handler.NewIdempotencyTracker())
}
