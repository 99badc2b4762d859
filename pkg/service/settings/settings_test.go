package settings_test

import (
	"context"
	"errors"
	"testing"

	"github.com/amirasaad/accrual/infra/provider/mockvenue"
	"github.com/amirasaad/accrual/pkg/access"
	"github.com/amirasaad/accrual/pkg/domain"
	"github.com/amirasaad/accrual/pkg/provider"
	"github.com/amirasaad/accrual/pkg/service/settings"
	"github.com/amirasaad/accrual/pkg/testutils"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type factories struct {
	venues map[string]*mockvenue.Venue
}

func newFactories() *factories {
	return &factories{venues: map[string]*mockvenue.Venue{}}
}

func (f *factories) venue(endpoint string) (*mockvenue.Venue, error) {
	if endpoint == "bad" {
		return nil, errors.New("unreachable")
	}
	v, ok := f.venues[endpoint]
	if !ok {
		v = mockvenue.New()
		f.venues[endpoint] = v
	}
	return v, nil
}

func (f *factories) oracle(endpoint string) (provider.Oracle, error) { return f.venue(endpoint) }

func (f *factories) paid(endpoint string) (provider.PaidAmountSource, error) {
	return f.venue(endpoint)
}

func TestSetRoles(t *testing.T) {
	t.Parallel()
	env := testutils.NewEnv(t)
	f := newFactories()
	svc := settings.New(env.Deps, f.oracle, f.paid)
	ctx := context.Background()

	require.NoError(t, svc.SetAutomationAgent(ctx, testutils.Admin, "keeper-2"))
	require.NoError(t, svc.SetFundingRelay(ctx, testutils.Admin, "relay-2"))

	roles := env.Deps.Policy.Roles()
	assert.Equal(t, access.Identity("keeper-2"), roles.AutomationAgent)
	assert.Equal(t, access.Identity("relay-2"), roles.FundingRelay)
	assert.Equal(t, testutils.Authorizer, roles.ExternalAuthorizer, "the external authorizer is fixed")

	current := svc.Current(ctx)
	assert.Equal(t, string(testutils.Admin), current.UpdatedBy)
	assert.True(t, current.UpdatedAt.Equal(testutils.Start))
}

func TestSetRoles_AdminOnly(t *testing.T) {
	t.Parallel()
	env := testutils.NewEnv(t)
	f := newFactories()
	svc := settings.New(env.Deps, f.oracle, f.paid)
	ctx := context.Background()

	err := svc.SetFundingRelay(ctx, testutils.Relay, "relay-2")
	assert.ErrorIs(t, err, domain.ErrAuthorization)
	assert.Equal(t, testutils.Relay, env.Deps.Policy.Roles().FundingRelay)

	err = svc.SetFundingRelay(ctx, testutils.Admin, "")
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestSetOracle(t *testing.T) {
	t.Parallel()
	env := testutils.NewEnv(t)
	f := newFactories()
	svc := settings.New(env.Deps, f.oracle, f.paid)
	ctx := context.Background()

	assert.ErrorIs(t, svc.SetOracle(ctx, testutils.Admin, ""), domain.ErrValidation)
	assert.ErrorIs(t, svc.SetOracle(ctx, testutils.Admin, "bad"), domain.ErrValidation)
	assert.ErrorIs(t, svc.SetOracle(ctx, testutils.Keeper, "http://venue-2"), domain.ErrAuthorization)

	require.NoError(t, svc.SetOracle(ctx, testutils.Admin, "http://venue-2"))
	assert.Equal(t, "http://venue-2", env.Deps.Oracle.Endpoint())

	f.venues["http://venue-2"].SetPrice("WBTC", decimal.NewFromInt(7))
	q, err := env.Deps.Oracle.CurrentUnitPrice(ctx, "WBTC")
	require.NoError(t, err)
	assert.True(t, q.Value().Equal(decimal.NewFromInt(7)))
}

func TestSetPaidAmountSource(t *testing.T) {
	t.Parallel()
	env := testutils.NewEnv(t)
	f := newFactories()
	svc := settings.New(env.Deps, f.oracle, f.paid)
	ctx := context.Background()

	require.NoError(t, svc.SetPaidAmountSource(ctx, testutils.Admin, ""))
	_, err := env.Deps.PaidAmount.PaidAmount(ctx, 1)
	assert.ErrorIs(t, err, provider.ErrNotConfigured)

	require.NoError(t, svc.SetPaidAmountSource(ctx, testutils.Admin, "http://paid"))
	assert.Equal(t, "http://paid", env.Deps.PaidAmount.Endpoint())
}

func TestExternalAuthorizerIsFixed(t *testing.T) {
	t.Parallel()
	env := testutils.NewEnv(t)
	f := newFactories()
	ctx := context.Background()

	err := env.Deps.Policy.Assign(access.RoleExternalAuthorizer, testutils.Stranger)
	assert.ErrorIs(t, err, access.ErrUnknownRole)

	require.NoError(t, settings.New(env.Deps, f.oracle, f.paid).SetFundingRelay(ctx, testutils.Admin, "relay-2"))
	restarted := testutils.NewEnv(t)
	restarted.Deps.Uow = env.Deps.Uow
	require.NoError(t, settings.New(restarted.Deps, f.oracle, f.paid).Restore(ctx))

	assert.True(t, restarted.Deps.Policy.Has(testutils.Authorizer, access.RoleExternalAuthorizer))
	assert.False(t, restarted.Deps.Policy.Has(testutils.Stranger, access.RoleExternalAuthorizer))
}

func TestRestore(t *testing.T) {
	t.Parallel()
	env := testutils.NewEnv(t)
	f := newFactories()
	ctx := context.Background()
	require.NoError(t, settings.New(env.Deps, f.oracle, f.paid).Restore(ctx), "nothing stored")

	first := settings.New(env.Deps, f.oracle, f.paid)
	require.NoError(t, first.SetFundingRelay(ctx, testutils.Admin, "relay-2"))
	require.NoError(t, first.SetOracle(ctx, testutils.Admin, "http://venue-2"))

	// A fresh process: same storage, startup roles and providers.
	restarted := testutils.NewEnv(t)
	restarted.Deps.Uow = env.Deps.Uow
	svc := settings.New(restarted.Deps, f.oracle, f.paid)
	require.NoError(t, svc.Restore(ctx))

	assert.Equal(t, access.Identity("relay-2"), restarted.Deps.Policy.Roles().FundingRelay)
	assert.Equal(t, testutils.Keeper, restarted.Deps.Policy.Roles().AutomationAgent)
	assert.Equal(t, "http://venue-2", restarted.Deps.Oracle.Endpoint())
}
