package provider

import (
	"context"
	"errors"
	"math/big"
	"time"

	"github.com/shopspring/decimal"
)

// Common errors for provider operations
var (
	ErrProviderUnavailable = errors.New("provider unavailable")
	ErrNotConfigured       = errors.New("provider not configured")
	ErrUnsupportedAsset    = errors.New("unsupported asset")
	ErrInvalidQuote        = errors.New("invalid quote")
)

// SwapRequest converts AmountIn of the funding currency into Asset.
type SwapRequest struct {
	Asset       string          `json:"asset"`
	AmountIn    decimal.Decimal `json:"amount_in"`
	SlippageBps uint32          `json:"slippage_bps"`
	Deadline    time.Time       `json:"deadline"`
}

// SwapResult is the venue's fill for a SwapRequest.
type SwapResult struct {
	Asset     string          `json:"asset"`
	AmountIn  decimal.Decimal `json:"amount_in"`
	AmountOut decimal.Decimal `json:"amount_out"`
	Provider  string          `json:"provider"`
}

// Quote is a unit price as reported by the venue: an integer mantissa and a
// decimal exponent.
type Quote struct {
	Asset     string    `json:"asset"`
	Raw       *big.Int  `json:"raw"`
	Decimals  int32     `json:"decimals"`
	Timestamp time.Time `json:"timestamp"`
	Provider  string    `json:"provider"`
}

// NewQuote builds a Quote, rejecting negative decimals and non-positive prices.
func NewQuote(asset string, raw *big.Int, decimals int32, provider string, at time.Time) (*Quote, error) {
	if raw == nil || raw.Sign() <= 0 || decimals < 0 {
		return nil, ErrInvalidQuote
	}
	return &Quote{Asset: asset, Raw: new(big.Int).Set(raw), Decimals: decimals, Timestamp: at, Provider: provider}, nil
}

// Value returns the price scaled by its decimals.
func (q *Quote) Value() decimal.Decimal {
	return decimal.NewFromBigInt(q.Raw, -q.Decimals)
}

// Oracle swaps funding into payout assets and reports unit prices.
type Oracle interface {
	// Swap forwards the full input amount and returns the quantity received.
	Swap(ctx context.Context, req SwapRequest) (*SwapResult, error)

	// CurrentUnitPrice returns the price of one unit of asset.
	CurrentUnitPrice(ctx context.Context, asset string) (*Quote, error)
}

// TransferRequest pays Amount of Asset to To.
type TransferRequest struct {
	Asset     string          `json:"asset"`
	To        string          `json:"to"`
	Amount    decimal.Decimal `json:"amount"`
	Reference string          `json:"reference"`
}

// TransferReceipt confirms a delivered payout.
type TransferReceipt struct {
	ID        string          `json:"id"`
	Asset     string          `json:"asset"`
	To        string          `json:"to"`
	Amount    decimal.Decimal `json:"amount"`
	Timestamp time.Time       `json:"timestamp"`
}

// Transferer delivers payout assets held in custody.
type Transferer interface {
	Transfer(ctx context.Context, req TransferRequest) (*TransferReceipt, error)
}

// OwnershipSource resolves the current beneficiary of an account.
type OwnershipSource interface {
	OwnerOf(ctx context.Context, accountID uint64) (string, error)
}

// PaidAmountSource reports how much was originally paid for an account.
type PaidAmountSource interface {
	PaidAmount(ctx context.Context, accountID uint64) (decimal.Decimal, error)
}

// HealthChecker defines the interface for checking provider health
type HealthChecker interface {
	CheckHealth(ctx context.Context) error
}

// ProviderMetadata contains metadata about a provider
type ProviderMetadata struct {
	Name     string `json:"name"`
	Endpoint string `json:"endpoint"`
	IsActive bool   `json:"is_active"`
}
