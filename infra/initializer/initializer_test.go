package initializer

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"testing"

	infra_eventbus "github.com/amirasaad/accrual/infra/eventbus"
	"github.com/amirasaad/accrual/infra/provider/mockvenue"
	"github.com/amirasaad/accrual/infra/provider/venue"
	"github.com/amirasaad/accrual/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quiet() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func memoryConfig() *config.App {
	return &config.App{
		Env:      "test",
		Log:      &config.Log{Format: "text", Prefix: "[test]"},
		DB:       &config.DB{Driver: "memory"},
		EventBus: &config.EventBus{Driver: "memory"},
		Redis:    &config.Redis{},
		Kafka:    &config.Kafka{},
		Roles: &config.Roles{
			Administrator:      "admin",
			AutomationAgent:    "keeper",
			FundingRelay:       "relay",
			ExternalAuthorizer: "authorizer",
		},
		Oracle:   &config.Oracle{PricePath: "price", AmountOutPath: "amount_out"},
		Registry: &config.Registry{OwnerPath: "owner", AmountPath: "amount"},
	}
}

func TestInitializeDependencies_Memory(t *testing.T) {
	c, err := InitializeDependencies(memoryConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	assert.Equal(t, DevVenueEndpoint, c.Deps.Oracle.Endpoint())
	assert.IsType(t, &mockvenue.Venue{}, c.Deps.Transferer)
	assert.IsType(t, &infra_eventbus.MemoryEventBus{}, c.Deps.EventBus)
	_, configured := c.Deps.PaidAmount.Get()
	assert.False(t, configured)
	assert.True(t, c.Deps.Policy.Has("relay", "funding_relay"))

	seq, err := c.Deps.Uow.SequenceRepository()
	require.NoError(t, err)
	s, err := seq.Get(context.Background())
	require.NoError(t, err)
	assert.False(t, s.Started)
}

func TestFactories(t *testing.T) {
	c, err := InitializeDependencies(memoryConfig())
	require.NoError(t, err)

	dev, err := c.NewOracle(DevVenueEndpoint)
	require.NoError(t, err)
	assert.IsType(t, &mockvenue.Venue{}, dev)

	remote, err := c.NewOracle("http://venue.internal:8080")
	require.NoError(t, err)
	assert.IsType(t, &venue.Venue{}, remote)

	_, err = c.NewPaidAmount("http://registry.internal/paid")
	require.NoError(t, err)
}

func TestInitEventBus(t *testing.T) {
	t.Run("unknown driver", func(t *testing.T) {
		cfg := memoryConfig()
		cfg.EventBus.Driver = "carrier-pigeon"
		_, err := initEventBus(&Container{}, cfg, quiet())
		assert.Error(t, err)
	})

	t.Run("redis requires a url", func(t *testing.T) {
		cfg := memoryConfig()
		cfg.EventBus.Driver = "redis"
		_, err := initEventBus(&Container{}, cfg, quiet())
		assert.Error(t, err)
	})

	t.Run("unreachable redis falls back to memory", func(t *testing.T) {
		cfg := memoryConfig()
		cfg.EventBus = &config.EventBus{Driver: "redis", Stream: "s", Group: "g"}
		cfg.Redis = &config.Redis{URL: "redis://127.0.0.1:1/0"}
		bus, err := initEventBus(&Container{}, cfg, quiet())
		require.NoError(t, err)
		assert.IsType(t, &infra_eventbus.MemoryEventBus{}, bus)
	})
}

func TestNewLogger_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, &config.Log{Format: "json", Prefix: "[accrual]"})
	logger.Info("hello", "account_id", 7)
	assert.Contains(t, buf.String(), "hello")
	assert.Contains(t, buf.String(), "account_id")
	assert.Contains(t, buf.String(), "{")
}
