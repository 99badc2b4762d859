// Package registry looks up account ownership and the amount originally paid
// for an account from external HTTP registries.
package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/amirasaad/accrual/infra/provider/httpjson"
	"github.com/amirasaad/accrual/pkg/config"
	"github.com/amirasaad/accrual/pkg/domain"
	"github.com/amirasaad/accrual/pkg/provider"
	"github.com/shopspring/decimal"
)

// Ownership resolves GET {url}/{id} to the owner field.
type Ownership struct {
	client *httpjson.Client
	path   string
}

func NewOwnership(cfg *config.Registry, logger *slog.Logger) (*Ownership, error) {
	c, err := httpjson.New(cfg.OwnershipURL, httpjson.Options{Timeout: cfg.HTTPTimeout, MaxRetries: 2, Logger: logger})
	if err != nil {
		return nil, err
	}
	return &Ownership{client: c, path: cfg.OwnerPath}, nil
}

func lookupErr(err error) error {
	if errors.Is(err, httpjson.ErrNotFound) {
		return fmt.Errorf("%w: %v", domain.ErrNotFound, err)
	}
	return fmt.Errorf("%w: %v", provider.ErrProviderUnavailable, err)
}

func (o *Ownership) OwnerOf(ctx context.Context, accountID uint64) (string, error) {
	doc, err := o.client.Get(ctx, strconv.FormatUint(accountID, 10))
	if err != nil {
		return "", lookupErr(err)
	}
	owner, err := httpjson.Field(doc, o.path)
	if err != nil || owner.String() == "" {
		return "", fmt.Errorf("%w: no owner for account %d", domain.ErrNotFound, accountID)
	}
	return owner.String(), nil
}

// PaidAmount resolves GET {url}/{id} to the amount field.
type PaidAmount struct {
	client *httpjson.Client
	path   string
}

func NewPaidAmount(rawURL string, cfg *config.Registry, logger *slog.Logger) (*PaidAmount, error) {
	c, err := httpjson.New(rawURL, httpjson.Options{Timeout: cfg.HTTPTimeout, MaxRetries: 2, Logger: logger})
	if err != nil {
		return nil, err
	}
	return &PaidAmount{client: c, path: cfg.AmountPath}, nil
}

func (p *PaidAmount) PaidAmount(ctx context.Context, accountID uint64) (decimal.Decimal, error) {
	doc, err := p.client.Get(ctx, strconv.FormatUint(accountID, 10))
	if err != nil {
		return decimal.Zero, lookupErr(err)
	}
	field, err := httpjson.Field(doc, p.path)
	if err != nil {
		return decimal.Zero, lookupErr(err)
	}
	amount, err := decimal.NewFromString(field.String())
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: amount %q", provider.ErrInvalidQuote, field.String())
	}
	return amount, nil
}

var (
	_ provider.OwnershipSource  = (*Ownership)(nil)
	_ provider.PaidAmountSource = (*PaidAmount)(nil)
)
