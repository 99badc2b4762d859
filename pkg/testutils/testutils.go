package testutils

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	infraeventbus "github.com/amirasaad/accrual/infra/eventbus"
	"github.com/amirasaad/accrual/infra/provider/mockvenue"
	"github.com/amirasaad/accrual/infra/repository/memory"
	"github.com/amirasaad/accrual/pkg/access"
	"github.com/amirasaad/accrual/pkg/config"
	"github.com/amirasaad/accrual/pkg/metrics"
	"github.com/amirasaad/accrual/pkg/provider"
	"github.com/gofiber/fiber/v2"
	"github.com/jonboulle/clockwork"
)

// Identities used by the fixtures.
const (
	Admin      access.Identity = "admin"
	Keeper     access.Identity = "keeper"
	Relay      access.Identity = "relay"
	Authorizer access.Identity = "authorizer"
	Stranger   access.Identity = "stranger"

	JWTSecret = "test-secret"
)

// Start is the fake clock's initial time.
var Start = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

// Env bundles the in-memory collaborators behind a config.Deps.
type Env struct {
	Deps  config.Deps
	Venue *mockvenue.Venue
	Bus   *infraeventbus.MemoryEventBus
	Clock clockwork.FakeClock
	Store *memory.Store
}

// TestConfig returns the defaults the services are built with in tests.
func TestConfig() *config.App {
	return &config.App{
		Env:  "test",
		Log:  &config.Log{Prefix: "[accrual]", Format: "text"},
		Auth: &config.Auth{Jwt: &config.Jwt{Secret: JWTSecret, Expiry: time.Hour, Issuer: "accrual"}},
		Roles: &config.Roles{
			Administrator:      string(Admin),
			AutomationAgent:    string(Keeper),
			FundingRelay:       string(Relay),
			ExternalAuthorizer: string(Authorizer),
		},
		Batch:      &config.Batch{SystemRef: "accrual", Namespace: 0, Size: 1_000_000},
		Withdrawal: &config.Withdrawal{ParamKey: "withdrawn", TrueValue: "true"},
		Admission:  &config.Admission{SlippageBps: 100, DeadlineOffset: 15 * time.Minute},
		Oracle:     &config.Oracle{AmountOutPath: "amount_out", PricePath: "price", DecimalsPath: "decimals"},
		Registry:   &config.Registry{OwnerPath: "owner", AmountPath: "amount"},
		Keeper:     &config.Keeper{Enabled: true, Schedule: "@every 30s", MaxAdvancesPerTick: 50},
		Metrics:    &config.Metrics{Enabled: true, Path: "/metrics"},
		RateLimit:  &config.RateLimit{MaxRequests: 1000, Window: time.Minute},
	}
}

// QuietLogger discards everything.
func QuietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// NewEnv wires in-memory storage, the development venue, a synchronous event
// bus and a fake clock.
func NewEnv(t testing.TB) *Env {
	t.Helper()
	cfg := TestConfig()
	logger := QuietLogger()
	store := memory.NewStore()
	clock := clockwork.NewFakeClockAt(Start)
	venue := mockvenue.New(mockvenue.WithClock(clock))
	bus := infraeventbus.NewWithMemory(logger)

	paid := &provider.PaidAmountSwitch{}
	paid.Set(venue, "memory")

	return &Env{
		Deps: config.Deps{
			Uow: memory.NewUoW(store),
			Policy: access.NewPolicy(access.Roles{
				Administrator:      Admin,
				AutomationAgent:    Keeper,
				FundingRelay:       Relay,
				ExternalAuthorizer: Authorizer,
			}),
			Oracle:     provider.NewOracleSwitch(venue, "memory"),
			PaidAmount: paid,
			Transferer: venue,
			Ownership:  venue,
			EventBus:   bus,
			Clock:      clock,
			Metrics:    metrics.New(),
			Logger:     logger,
			Config:     cfg,
		},
		Venue: venue,
		Bus:   bus,
		Clock: clock,
		Store: store,
	}
}

// MakeRequest sends a request to app with an optional bearer token.
func MakeRequest(t testing.TB, app *fiber.App, method, path, body, token string) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = bytes.NewBufferString(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", token))
	}
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("request %s %s failed: %v", method, path, err)
	}
	return resp
}
