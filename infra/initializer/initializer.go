package initializer

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/amirasaad/accrual/infra"
	infra_eventbus "github.com/amirasaad/accrual/infra/eventbus"
	"github.com/amirasaad/accrual/infra/provider/mockvenue"
	"github.com/amirasaad/accrual/infra/provider/registry"
	"github.com/amirasaad/accrual/infra/provider/venue"
	infra_repository "github.com/amirasaad/accrual/infra/repository"
	"github.com/amirasaad/accrual/infra/repository/memory"
	"github.com/amirasaad/accrual/pkg/access"
	"github.com/amirasaad/accrual/pkg/config"
	"github.com/amirasaad/accrual/pkg/eventbus"
	"github.com/amirasaad/accrual/pkg/metrics"
	"github.com/amirasaad/accrual/pkg/provider"
	"github.com/amirasaad/accrual/pkg/repository"
	"github.com/jonboulle/clockwork"
)

// DevVenueEndpoint selects the built-in development venue wherever an
// endpoint is accepted.
const DevVenueEndpoint = "memory"

// Container is everything the server and CLI need, plus the resources to
// release on shutdown.
type Container struct {
	Deps config.Deps

	// NewOracle and NewPaidAmount build providers for endpoints set at runtime.
	NewOracle     func(endpoint string) (provider.Oracle, error)
	NewPaidAmount func(endpoint string) (provider.PaidAmountSource, error)

	closers []io.Closer
}

// Close releases the event bus and database connections.
func (c *Container) Close() error {
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		errs = append(errs, c.closers[i].Close())
	}
	return errors.Join(errs...)
}

// InitializeDependencies initializes all the application dependencies
func InitializeDependencies(cfg *config.App) (c *Container, err error) {
	logger := setupLogger(cfg.Log)
	c = &Container{}
	defer func() {
		if err != nil {
			_ = c.Close()
		}
	}()

	uow, err := initUnitOfWork(c, cfg, logger)
	if err != nil {
		return nil, err
	}

	// The development venue backs every provider without an endpoint.
	clock := clockwork.NewRealClock()
	dev := mockvenue.New(mockvenue.WithClock(clock))

	c.NewOracle = func(endpoint string) (provider.Oracle, error) {
		if endpoint == "" || endpoint == DevVenueEndpoint {
			return dev, nil
		}
		oracleCfg := *cfg.Oracle
		oracleCfg.URL = endpoint
		return venue.New(&oracleCfg, logger)
	}
	c.NewPaidAmount = func(endpoint string) (provider.PaidAmountSource, error) {
		if endpoint == DevVenueEndpoint {
			return dev, nil
		}
		return registry.NewPaidAmount(endpoint, cfg.Registry, logger)
	}

	oracleEndpoint := cfg.Oracle.URL
	if oracleEndpoint == "" {
		oracleEndpoint = DevVenueEndpoint
		logger.Warn("No oracle URL configured, using the development venue")
	}
	oracle, err := c.NewOracle(oracleEndpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize oracle: %w", err)
	}
	transferer, ok := oracle.(provider.Transferer)
	if !ok {
		return nil, fmt.Errorf("oracle at %s cannot transfer payouts", oracleEndpoint)
	}

	paid := &provider.PaidAmountSwitch{}
	if cfg.Registry.PaidAmountURL != "" {
		src, err := c.NewPaidAmount(cfg.Registry.PaidAmountURL)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize amount paid source: %w", err)
		}
		paid.Set(src, cfg.Registry.PaidAmountURL)
	}

	var ownership provider.OwnershipSource = dev
	if cfg.Registry.OwnershipURL != "" {
		if ownership, err = registry.NewOwnership(cfg.Registry, logger); err != nil {
			return nil, fmt.Errorf("failed to initialize ownership source: %w", err)
		}
	} else {
		logger.Warn("No ownership URL configured, using the development venue")
	}

	bus, err := initEventBus(c, cfg, logger)
	if err != nil {
		return nil, err
	}

	c.Deps = config.Deps{
		Uow: uow,
		Policy: access.NewPolicy(access.Roles{
			Administrator:      access.Identity(cfg.Roles.Administrator),
			AutomationAgent:    access.Identity(cfg.Roles.AutomationAgent),
			FundingRelay:       access.Identity(cfg.Roles.FundingRelay),
			ExternalAuthorizer: access.Identity(cfg.Roles.ExternalAuthorizer),
		}),
		Oracle:     provider.NewOracleSwitch(oracle, oracleEndpoint),
		PaidAmount: paid,
		Transferer: transferer,
		Ownership:  ownership,
		EventBus:   bus,
		Clock:      clock,
		Metrics:    metrics.New(),
		Logger:     logger,
		Config:     cfg,
	}
	return c, nil
}

func initUnitOfWork(c *Container, cfg *config.App, logger *slog.Logger) (repository.UnitOfWork, error) {
	if cfg.DB.Driver == "memory" {
		logger.Warn("Using the in-memory ledger; state is lost on exit")
		return memory.NewUoW(memory.NewStore()), nil
	}

	db, err := infra.NewDBConnection(cfg.DB, cfg.Env)
	if err != nil {
		logger.Error("Failed to initialize database", "error", err)
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	c.closers = append(c.closers, sqlDB)

	if cfg.DB.Migrate {
		if err := infra.Migrate(db, cfg.DB.Driver); err != nil {
			return nil, fmt.Errorf("failed to migrate database: %w", err)
		}
		logger.Info("Database schema is up to date", "driver", cfg.DB.Driver)
	}
	return infra_repository.NewUoW(db), nil
}

// initEventBus picks the transport named by EventBus.Driver. A broker that
// cannot be reached degrades to the in-memory bus.
func initEventBus(c *Container, cfg *config.App, logger *slog.Logger) (eventbus.Bus, error) {
	switch cfg.EventBus.Driver {
	case "", "memory":
		return infra_eventbus.NewWithMemory(logger), nil
	case "redis":
		if cfg.Redis == nil || cfg.Redis.URL == "" {
			return nil, errors.New("event bus driver redis requires REDIS_URL")
		}
		bus, err := infra_eventbus.NewWithRedis(cfg.Redis, cfg.EventBus.Stream, cfg.EventBus.Group, logger)
		if err != nil {
			logger.Warn("Redis event bus unavailable, falling back to memory", "error", err)
			return infra_eventbus.NewWithMemory(logger), nil
		}
		c.closers = append(c.closers, bus)
		return bus, nil
	case "kafka":
		bus, err := infra_eventbus.NewWithKafka(cfg.Kafka, logger)
		if err != nil {
			logger.Warn("Kafka event bus unavailable, falling back to memory", "error", err)
			return infra_eventbus.NewWithMemory(logger), nil
		}
		c.closers = append(c.closers, bus)
		return bus, nil
	default:
		return nil, fmt.Errorf("unsupported event bus driver %q", cfg.EventBus.Driver)
	}
}
