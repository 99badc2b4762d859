package provider_test

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/amirasaad/accrual/pkg/provider"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedOracle struct{ price int64 }

func (f fixedOracle) Swap(_ context.Context, req provider.SwapRequest) (*provider.SwapResult, error) {
	return &provider.SwapResult{Asset: req.Asset, AmountIn: req.AmountIn, AmountOut: req.AmountIn}, nil
}

func (f fixedOracle) CurrentUnitPrice(_ context.Context, asset string) (*provider.Quote, error) {
	return provider.NewQuote(asset, big.NewInt(f.price), 3, "fixed", time.Time{})
}

type fixedPaid struct{}

func (fixedPaid) PaidAmount(context.Context, uint64) (decimal.Decimal, error) {
	return decimal.NewFromInt(9), nil
}

func TestOracleSwitch(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := provider.NewOracleSwitch(nil, "")

	_, err := s.CurrentUnitPrice(ctx, "WETH")
	assert.ErrorIs(t, err, provider.ErrNotConfigured)
	_, err = s.Swap(ctx, provider.SwapRequest{Asset: "WETH"})
	assert.ErrorIs(t, err, provider.ErrNotConfigured)

	s.Set(fixedOracle{price: 4}, "http://a")
	q, err := s.CurrentUnitPrice(ctx, "WETH")
	require.NoError(t, err)
	assert.True(t, q.Value().Equal(decimal.RequireFromString("0.004")))
	assert.Equal(t, "http://a", s.Endpoint())

	s.Set(fixedOracle{price: 8}, "http://b")
	q, err = s.CurrentUnitPrice(ctx, "WETH")
	require.NoError(t, err)
	assert.True(t, q.Value().Equal(decimal.RequireFromString("0.008")))

	s.Clear()
	_, err = s.CurrentUnitPrice(ctx, "WETH")
	assert.ErrorIs(t, err, provider.ErrNotConfigured)
}

func TestPaidAmountSwitch(t *testing.T) {
	t.Parallel()
	var s provider.PaidAmountSwitch
	_, err := s.PaidAmount(context.Background(), 1)
	assert.ErrorIs(t, err, provider.ErrNotConfigured)

	s.Set(fixedPaid{}, "mem")
	v, err := s.PaidAmount(context.Background(), 1)
	require.NoError(t, err)
	assert.True(t, v.Equal(decimal.NewFromInt(9)))
}

func TestNewQuote(t *testing.T) {
	t.Parallel()
	_, err := provider.NewQuote("X", big.NewInt(0), 2, "p", time.Time{})
	assert.ErrorIs(t, err, provider.ErrInvalidQuote)
	_, err = provider.NewQuote("X", big.NewInt(1), -1, "p", time.Time{})
	assert.ErrorIs(t, err, provider.ErrInvalidQuote)
	_, err = provider.NewQuote("X", nil, 2, "p", time.Time{})
	assert.ErrorIs(t, err, provider.ErrInvalidQuote)

	q, err := provider.NewQuote("X", big.NewInt(12345), 2, "p", time.Time{})
	require.NoError(t, err)
	assert.Equal(t, "123.45", q.Value().String())
}
