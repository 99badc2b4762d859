package keeper_test

import (
	"context"
	"testing"
	"time"

	"github.com/amirasaad/accrual/pkg/access"
	"github.com/amirasaad/accrual/pkg/domain"
	"github.com/amirasaad/accrual/pkg/service/admission"
	"github.com/amirasaad/accrual/pkg/service/keeper"
	"github.com/amirasaad/accrual/pkg/service/scheduler"
	"github.com/amirasaad/accrual/pkg/testutils"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// admitAll admits n accounts sharing one seed, so they share an interval.
func admitAll(t *testing.T, env *testutils.Env, n int) time.Duration {
	t.Helper()
	adm := admission.New(env.Deps)
	var interval time.Duration
	for i := range n {
		acc, err := adm.Admit(context.Background(), admission.Request{
			Caller:        testutils.Relay,
			AccountID:     uint64(i + 1),
			Seed:          []byte("keeper"),
			FundingAmount: decimal.NewFromInt(1),
		})
		require.NoError(t, err)
		interval = acc.IntervalLength
	}
	return interval
}

func setup(t *testing.T, accounts int) (*testutils.Env, *keeper.Keeper, time.Duration) {
	t.Helper()
	env := testutils.NewEnv(t)
	interval := admitAll(t, env, accounts)
	k, err := keeper.New(env.Deps, scheduler.New(env.Deps))
	require.NoError(t, err)
	return env, k, interval
}

func TestTick_IdleBeforeAnyInterval(t *testing.T) {
	t.Parallel()
	_, k, _ := setup(t, 2)

	report, err := k.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, keeper.ResultIdle, report.Result)
	assert.Empty(t, report.Advanced)
}

func TestTick_AdvancesEveryReadyAccountOnce(t *testing.T) {
	t.Parallel()
	env, k, interval := setup(t, 3)
	env.Clock.Advance(interval + time.Second)

	report, err := k.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, keeper.ResultAdvanced, report.Result)
	assert.Equal(t, []uint64{1, 2, 3}, report.Advanced)

	repo, _ := env.Deps.Uow.AccountRepository()
	for id := uint64(1); id <= 3; id++ {
		acc, err := repo.Get(context.Background(), id)
		require.NoError(t, err)
		assert.Equal(t, 2, acc.Round())
	}

	report, err = k.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, keeper.ResultIdle, report.Result, "round 2 waits for a second interval")
}

func TestTick_RespectsLimit(t *testing.T) {
	t.Parallel()
	env := testutils.NewEnv(t)
	env.Deps.Config.Keeper.MaxAdvancesPerTick = 1
	interval := admitAll(t, env, 2)
	k, err := keeper.New(env.Deps, scheduler.New(env.Deps))
	require.NoError(t, err)
	env.Clock.Advance(interval + time.Second)

	report, err := k.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []uint64{1}, report.Advanced)

	report, err = k.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []uint64{2}, report.Advanced)
}

func TestTick_SkipsWhenRoleReassigned(t *testing.T) {
	t.Parallel()
	env, k, interval := setup(t, 1)
	require.NoError(t, env.Deps.Policy.Assign(access.RoleAutomationAgent, "external-keeper"))
	env.Clock.Advance(interval + time.Second)

	report, err := k.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, keeper.ResultSkipped, report.Result)
	n, err := testutil.GatherAndCount(env.Deps.Metrics.Registry, "accrual_keeper_ticks_total")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestTick_OracleFailure(t *testing.T) {
	t.Parallel()
	env, k, interval := setup(t, 1)
	env.Clock.Advance(interval + time.Second)
	env.Deps.Oracle.Clear()

	report, err := k.Tick(context.Background())
	assert.ErrorIs(t, err, domain.ErrOracle)
	assert.Equal(t, keeper.ResultError, report.Result)
}

func TestNew_RejectsBadSchedule(t *testing.T) {
	t.Parallel()
	env := testutils.NewEnv(t)
	env.Deps.Config.Keeper.Schedule = "every now and then"
	_, err := keeper.New(env.Deps, scheduler.New(env.Deps))
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestStartStop(t *testing.T) {
	t.Parallel()
	_, k, _ := setup(t, 0)
	k.Start(context.Background())
	k.Stop()
}
