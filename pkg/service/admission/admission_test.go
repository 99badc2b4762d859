package admission_test

import (
	"context"
	"errors"
	"testing"

	"github.com/amirasaad/accrual/pkg/domain"
	"github.com/amirasaad/accrual/pkg/domain/account"
	"github.com/amirasaad/accrual/pkg/domain/events"
	"github.com/amirasaad/accrual/pkg/service/admission"
	"github.com/amirasaad/accrual/pkg/testutils"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func request(id uint64) admission.Request {
	return admission.Request{
		Caller:        testutils.Relay,
		AccountID:     id,
		Seed:          []byte{byte(id), 0xAB, 0xCD},
		FundingAmount: decimal.NewFromInt(20),
	}
}

func TestAdmit_Success(t *testing.T) {
	t.Parallel()
	env := testutils.NewEnv(t)
	req := request(1)
	asset := account.Derive(req.Seed).Category.Symbol()
	env.Venue.SetPrice(asset, decimal.RequireFromString("0.004"))
	svc := admission.New(env.Deps)

	acc, err := svc.Admit(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 1, acc.Round())
	assert.True(t, acc.Balance.Equal(decimal.NewFromInt(5000)))
	assert.True(t, acc.Prices[0].Price.Equal(decimal.RequireFromString("0.004")))
	assert.True(t, acc.CreatedAt.Equal(testutils.Start))

	seq, err := svc.Latest(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(1), seq.Latest)
	assert.Equal(t, uint64(1), seq.First)

	published := env.Bus.Published()
	require.Len(t, published, 1)
	assert.Equal(t, events.EventTypeAccountAdmitted.String(), published[0].Type())
}

func TestAdmit_Sequential(t *testing.T) {
	t.Parallel()
	env := testutils.NewEnv(t)
	svc := admission.New(env.Deps)
	ctx := context.Background()

	_, err := svc.Admit(ctx, request(41))
	require.NoError(t, err, "first admission may use any id")
	_, err = svc.Admit(ctx, request(43))
	assert.ErrorIs(t, err, domain.ErrSequence)
	_, err = svc.Admit(ctx, request(41))
	assert.ErrorIs(t, err, domain.ErrSequence)
	_, err = svc.Admit(ctx, request(42))
	require.NoError(t, err)

	seq, err := svc.Latest(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(42), seq.Latest)
}

func TestAdmit_IDZeroFirst(t *testing.T) {
	t.Parallel()
	env := testutils.NewEnv(t)
	svc := admission.New(env.Deps)
	ctx := context.Background()

	_, err := svc.Admit(ctx, request(0))
	require.NoError(t, err)
	_, err = svc.Admit(ctx, request(0))
	assert.ErrorIs(t, err, domain.ErrSequence)
	_, err = svc.Admit(ctx, request(1))
	require.NoError(t, err)
}

func TestAdmit_WrongCaller(t *testing.T) {
	t.Parallel()
	env := testutils.NewEnv(t)
	svc := admission.New(env.Deps)
	req := request(1)
	req.Caller = testutils.Stranger

	_, err := svc.Admit(context.Background(), req)
	assert.ErrorIs(t, err, domain.ErrAuthorization)

	seq, err := svc.Latest(context.Background())
	require.NoError(t, err)
	assert.False(t, seq.Started)
	assert.Empty(t, env.Bus.Published())
}

func TestAdmit_OracleFailureIsAtomic(t *testing.T) {
	t.Parallel()
	env := testutils.NewEnv(t)
	svc := admission.New(env.Deps)
	ctx := context.Background()
	venueDown := errors.New("venue down")
	env.Venue.FailSwaps(venueDown)

	_, err := svc.Admit(ctx, request(1))
	assert.ErrorIs(t, err, domain.ErrOracle)
	assert.ErrorIs(t, err, venueDown)

	seq, err := svc.Latest(ctx)
	require.NoError(t, err)
	assert.False(t, seq.Started)
	repo, _ := env.Deps.Uow.AccountRepository()
	_, err = repo.Get(ctx, 1)
	assert.ErrorIs(t, err, account.ErrAccountNotFound)

	env.Venue.FailSwaps(nil)
	_, err = svc.Admit(ctx, request(1))
	require.NoError(t, err, "same id is admissible after a failed attempt")
}

func TestAdmit_UnconfiguredOracle(t *testing.T) {
	t.Parallel()
	env := testutils.NewEnv(t)
	env.Deps.Oracle.Clear()
	svc := admission.New(env.Deps)

	_, err := svc.Admit(context.Background(), request(1))
	assert.ErrorIs(t, err, domain.ErrOracle)
}

func TestAdmit_Validation(t *testing.T) {
	t.Parallel()
	env := testutils.NewEnv(t)
	svc := admission.New(env.Deps)

	req := request(1)
	req.FundingAmount = decimal.Zero
	_, err := svc.Admit(context.Background(), req)
	assert.ErrorIs(t, err, domain.ErrValidation)

	req = request(1)
	req.Seed = nil
	_, err = svc.Admit(context.Background(), req)
	assert.ErrorIs(t, err, domain.ErrValidation)
}
