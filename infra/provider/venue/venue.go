// Package venue adapts a remote swap/price/custody venue to the provider
// interfaces.
package venue

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"net/url"
	"strconv"
	"time"

	"github.com/amirasaad/accrual/infra/provider/httpjson"
	"github.com/amirasaad/accrual/pkg/config"
	"github.com/amirasaad/accrual/pkg/provider"
	"github.com/shopspring/decimal"
)

const providerName = "venue"

// maxDecimals is the digit count of the largest uint256, less one.
const maxDecimals = 77

// Venue talks to the venue HTTP API:
//
//	POST /swap            {asset, amount_in, slippage_bps, deadline}
//	GET  /price/{asset}
//	POST /transfers       {asset, to, amount, reference}
//	GET  /health
//
// Response fields are located with the configured JSON paths.
type Venue struct {
	client *httpjson.Client
	cfg    *config.Oracle
	logger *slog.Logger
	now    func() time.Time
}

func New(cfg *config.Oracle, logger *slog.Logger) (*Venue, error) {
	client, err := httpjson.New(cfg.URL, httpjson.Options{
		Timeout:           cfg.HTTPTimeout,
		MaxRetries:        cfg.MaxRetries,
		RequestsPerSecond: cfg.RequestsPerSecond,
		BurstSize:         cfg.BurstSize,
		ApiKey:            cfg.ApiKey,
		Logger:            logger,
	})
	if err != nil {
		return nil, err
	}
	return &Venue{
		client: client,
		cfg:    cfg,
		logger: logger.With("provider", providerName, "endpoint", client.URL()),
		now:    time.Now,
	}, nil
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", provider.ErrProviderUnavailable, op, err)
}

// Swap sells the full input amount for asset.
func (v *Venue) Swap(ctx context.Context, req provider.SwapRequest) (*provider.SwapResult, error) {
	body := map[string]any{
		"asset":        req.Asset,
		"amount_in":    req.AmountIn.String(),
		"slippage_bps": req.SlippageBps,
		"deadline":     req.Deadline.Unix(),
	}
	doc, err := v.client.Post(ctx, "swap", body)
	if err != nil {
		v.logger.Error("swap failed", "asset", req.Asset, "error", err)
		return nil, unavailable("swap", err)
	}
	field, err := httpjson.Field(doc, v.cfg.AmountOutPath)
	if err != nil {
		return nil, unavailable("swap", err)
	}
	out, err := decimal.NewFromString(field.String())
	if err != nil || !out.IsPositive() {
		return nil, fmt.Errorf("%w: amount out %q", provider.ErrInvalidQuote, field.String())
	}
	return &provider.SwapResult{
		Asset:     req.Asset,
		AmountIn:  req.AmountIn,
		AmountOut: out,
		Provider:  providerName,
	}, nil
}

// CurrentUnitPrice returns the integer-mantissa price of asset.
func (v *Venue) CurrentUnitPrice(ctx context.Context, asset string) (*provider.Quote, error) {
	doc, err := v.client.Get(ctx, "price/"+url.PathEscape(asset))
	if err != nil {
		return nil, unavailable("price", err)
	}
	priceField, err := httpjson.Field(doc, v.cfg.PricePath)
	if err != nil {
		return nil, unavailable("price", err)
	}
	raw, ok := new(big.Int).SetString(priceField.String(), 10)
	if !ok {
		return nil, fmt.Errorf("%w: price %q", provider.ErrInvalidQuote, priceField.String())
	}
	var decimals int32
	if d := doc.Get(v.cfg.DecimalsPath); d.Exists() {
		n, err := strconv.ParseInt(d.String(), 10, 32)
		if err != nil || n < 0 || n > maxDecimals {
			return nil, fmt.Errorf("%w: decimals %q", provider.ErrInvalidQuote, d.String())
		}
		decimals = int32(n)
	}
	return provider.NewQuote(asset, raw, decimals, providerName, v.now())
}

// Transfer pays out from the venue's custody account.
func (v *Venue) Transfer(ctx context.Context, req provider.TransferRequest) (*provider.TransferReceipt, error) {
	doc, err := v.client.Post(ctx, "transfers", map[string]any{
		"asset":     req.Asset,
		"to":        req.To,
		"amount":    req.Amount.String(),
		"reference": req.Reference,
	})
	if err != nil {
		v.logger.Error("transfer failed", "asset", req.Asset, "to", req.To, "error", err)
		return nil, unavailable("transfer", err)
	}
	return &provider.TransferReceipt{
		ID:        doc.Get("id").String(),
		Asset:     req.Asset,
		To:        req.To,
		Amount:    req.Amount,
		Timestamp: v.now(),
	}, nil
}

func (v *Venue) CheckHealth(ctx context.Context) error {
	if _, err := v.client.Get(ctx, "health"); err != nil {
		return unavailable("health", err)
	}
	return nil
}

func (v *Venue) Metadata() provider.ProviderMetadata {
	return provider.ProviderMetadata{Name: providerName, Endpoint: v.client.URL(), IsActive: true}
}

var (
	_ provider.Oracle        = (*Venue)(nil)
	_ provider.Transferer    = (*Venue)(nil)
	_ provider.HealthChecker = (*Venue)(nil)
)
