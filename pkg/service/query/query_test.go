package query_test

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/amirasaad/accrual/pkg/domain/account"
	"github.com/amirasaad/accrual/pkg/service/admission"
	"github.com/amirasaad/accrual/pkg/service/query"
	"github.com/amirasaad/accrual/pkg/service/scheduler"
	"github.com/amirasaad/accrual/pkg/testutils"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func toMap(attrs []query.Attribute) map[string]string {
	m := make(map[string]string, len(attrs))
	for _, a := range attrs {
		m[a.Key] = a.Value
	}
	return m
}

func TestAugment_AdmittedAccount(t *testing.T) {
	t.Parallel()
	env := testutils.NewEnv(t)
	ctx := context.Background()
	seed := []byte("query")
	asset := account.Derive(seed).Category.Symbol()
	env.Venue.SetPrice(asset, decimal.RequireFromString("0.004"))
	env.Venue.SetSwapOutput(asset, decimal.NewFromInt(5000))
	env.Venue.SetOwner(1, "0xowner")
	env.Venue.SetPaid(1, decimal.RequireFromString("0.05"))

	acc, err := admission.New(env.Deps).Admit(ctx, admission.Request{
		Caller: testutils.Relay, AccountID: 1, Seed: seed, FundingAmount: decimal.NewFromInt(1),
	})
	require.NoError(t, err)
	env.Venue.SetPrice(asset, decimal.RequireFromString("0.008"))
	env.Clock.Advance(acc.IntervalLength + time.Second)
	_, _, err = scheduler.New(env.Deps).AdvanceRound(ctx, testutils.Keeper, 1, 1)
	require.NoError(t, err)

	base := []query.Attribute{{Key: "name", Value: "Position #1"}}
	attrs, err := query.New(env.Deps).Augment(ctx, 1, base)
	require.NoError(t, err)
	require.Len(t, attrs, 1+8+account.MaxRounds)
	assert.Equal(t, base[0], attrs[0], "base attributes come first")

	keys := make([]string, 0, 9)
	for _, a := range attrs[1:9] {
		keys = append(keys, a.Key)
	}
	assert.Equal(t, []string{
		query.KeyCategory, query.KeyBalance, query.KeyCreatedAt, query.KeyIntervalLength,
		query.KeyRound, query.KeyWithdrawnAt, query.KeyBeneficiary, query.KeyAmountPaid,
	}, keys)

	m := toMap(attrs)
	assert.Equal(t, asset, m[query.KeyCategory])
	assert.Equal(t, "5000", m[query.KeyBalance])
	assert.Equal(t, strconv.FormatInt(testutils.Start.Unix(), 10), m[query.KeyCreatedAt])
	assert.Equal(t, strconv.FormatInt(int64(acc.IntervalLength.Seconds()), 10), m[query.KeyIntervalLength])
	assert.Equal(t, "2", m[query.KeyRound])
	assert.Equal(t, "0", m[query.KeyWithdrawnAt])
	assert.Equal(t, "0xowner", m[query.KeyBeneficiary])
	assert.Equal(t, "0.05", m[query.KeyAmountPaid])
	assert.Equal(t, "0.004", m["price_1"])
	assert.Equal(t, "0.008", m["price_2"])
	for i := 3; i <= account.MaxRounds; i++ {
		assert.Equal(t, "0", m["price_"+strconv.Itoa(i)])
	}
}

func TestAugment_UnknownIDReadsAsDefaults(t *testing.T) {
	t.Parallel()
	env := testutils.NewEnv(t)
	env.Deps.PaidAmount.Clear()

	attrs, err := query.New(env.Deps).Augment(context.Background(), 77, nil)
	require.NoError(t, err)
	require.Len(t, attrs, 8+account.MaxRounds)

	m := toMap(attrs)
	assert.Equal(t, account.Category(0).Symbol(), m[query.KeyCategory])
	assert.Equal(t, "0", m[query.KeyBalance])
	assert.Equal(t, "0", m[query.KeyCreatedAt])
	assert.Equal(t, "0", m[query.KeyRound])
	assert.Equal(t, "", m[query.KeyBeneficiary])
	assert.Equal(t, "0", m[query.KeyAmountPaid])
	assert.Equal(t, "0", m["price_12"])
}
