package mockvenue

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/amirasaad/accrual/pkg/domain"
	"github.com/amirasaad/accrual/pkg/provider"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/shopspring/decimal"
)

const (
	providerName = "mockvenue"
	// priceDecimals is the exponent of the integer-mantissa quotes.
	priceDecimals = 8
)

// Venue simulates the swap/price venue, custody payouts and the ownership and
// paid-amount registries for tests and local development.
//
// Prices are fixed per asset until changed with SetPrice. A swap fills at the
// current price unless a fixed output was set. This is NOT for production use.
type Venue struct {
	mu      sync.Mutex
	prices  map[string]decimal.Decimal
	fills   map[string]decimal.Decimal
	owners  map[uint64]string
	paid    map[uint64]decimal.Decimal
	payouts []provider.TransferReceipt
	swapErr error
	clock   clockwork.Clock
}

type Option func(*Venue)

// WithClock sets the clock swap deadlines are checked against.
func WithClock(c clockwork.Clock) Option {
	return func(v *Venue) { v.clock = c }
}

// New creates a venue quoting every asset at 1 unless overridden.
func New(opts ...Option) *Venue {
	v := &Venue{
		prices: make(map[string]decimal.Decimal),
		fills:  make(map[string]decimal.Decimal),
		owners: make(map[uint64]string),
		paid:   make(map[uint64]decimal.Decimal),
		clock:  clockwork.NewRealClock(),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// SetPrice sets the unit price of asset in funding currency.
func (v *Venue) SetPrice(asset string, price decimal.Decimal) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.prices[asset] = price
}

// SetSwapOutput makes swaps into asset return out regardless of the input.
func (v *Venue) SetSwapOutput(asset string, out decimal.Decimal) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.fills[asset] = out
}

// SetOwner records the beneficiary of an account.
func (v *Venue) SetOwner(accountID uint64, owner string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.owners[accountID] = owner
}

// SetPaid records the amount originally paid for an account.
func (v *Venue) SetPaid(accountID uint64, amount decimal.Decimal) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.paid[accountID] = amount
}

// FailSwaps makes every following swap return err; nil restores swaps.
func (v *Venue) FailSwaps(err error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.swapErr = err
}

// Payouts returns the transfers delivered so far.
func (v *Venue) Payouts() []provider.TransferReceipt {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]provider.TransferReceipt(nil), v.payouts...)
}

func (v *Venue) priceOf(asset string) decimal.Decimal {
	if p, ok := v.prices[asset]; ok {
		return p
	}
	return decimal.NewFromInt(1)
}

func (v *Venue) Swap(ctx context.Context, req provider.SwapRequest) (*provider.SwapResult, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.swapErr != nil {
		return nil, v.swapErr
	}
	if !req.Deadline.IsZero() && v.clock.Now().After(req.Deadline) {
		return nil, fmt.Errorf("%w: deadline passed", provider.ErrProviderUnavailable)
	}
	out, fixed := v.fills[req.Asset]
	if !fixed {
		price := v.priceOf(req.Asset)
		if !price.IsPositive() {
			return nil, provider.ErrUnsupportedAsset
		}
		out = req.AmountIn.DivRound(price, 18)
	}
	return &provider.SwapResult{
		Asset:     req.Asset,
		AmountIn:  req.AmountIn,
		AmountOut: out,
		Provider:  providerName,
	}, nil
}

func (v *Venue) CurrentUnitPrice(ctx context.Context, asset string) (*provider.Quote, error) {
	v.mu.Lock()
	price := v.priceOf(asset)
	v.mu.Unlock()
	raw := price.Shift(priceDecimals).Truncate(0).BigInt()
	return provider.NewQuote(asset, new(big.Int).Set(raw), priceDecimals, providerName, v.clock.Now())
}

func (v *Venue) Transfer(ctx context.Context, req provider.TransferRequest) (*provider.TransferReceipt, error) {
	if req.To == "" {
		return nil, fmt.Errorf("%w: empty recipient", provider.ErrProviderUnavailable)
	}
	receipt := provider.TransferReceipt{
		ID:        uuid.NewString(),
		Asset:     req.Asset,
		To:        req.To,
		Amount:    req.Amount,
		Timestamp: v.clock.Now(),
	}
	v.mu.Lock()
	v.payouts = append(v.payouts, receipt)
	v.mu.Unlock()
	return &receipt, nil
}

func (v *Venue) OwnerOf(ctx context.Context, accountID uint64) (string, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	owner, ok := v.owners[accountID]
	if !ok {
		return "", fmt.Errorf("%w: no owner for account %d", domain.ErrNotFound, accountID)
	}
	return owner, nil
}

func (v *Venue) PaidAmount(ctx context.Context, accountID uint64) (decimal.Decimal, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	amount, ok := v.paid[accountID]
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: no payment for account %d", domain.ErrNotFound, accountID)
	}
	return amount, nil
}

func (v *Venue) CheckHealth(ctx context.Context) error { return nil }

func (v *Venue) Metadata() provider.ProviderMetadata {
	return provider.ProviderMetadata{Name: providerName, Endpoint: "memory", IsActive: true}
}

var (
	_ provider.Oracle           = (*Venue)(nil)
	_ provider.Transferer       = (*Venue)(nil)
	_ provider.OwnershipSource  = (*Venue)(nil)
	_ provider.PaidAmountSource = (*Venue)(nil)
	_ provider.HealthChecker    = (*Venue)(nil)
)
