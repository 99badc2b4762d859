package provider

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"
)

// Switch holds a replaceable provider. The administrator can point the
// service at a different venue or source without a restart.
type Switch[T any] struct {
	mu       sync.RWMutex
	current  T
	endpoint string
	set      bool
}

// Set installs v as the current provider. endpoint is informational.
func (s *Switch[T]) Set(v T, endpoint string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = v
	s.endpoint = endpoint
	s.set = true
}

// Clear removes the current provider.
func (s *Switch[T]) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	var zero T
	s.current = zero
	s.endpoint = ""
	s.set = false
}

// Get returns the current provider and whether one is installed.
func (s *Switch[T]) Get() (T, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current, s.set
}

// Endpoint returns the endpoint recorded with the current provider.
func (s *Switch[T]) Endpoint() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.endpoint
}

// OracleSwitch is an Oracle that forwards to the installed oracle.
type OracleSwitch struct {
	Switch[Oracle]
}

// NewOracleSwitch returns an OracleSwitch with o installed.
func NewOracleSwitch(o Oracle, endpoint string) *OracleSwitch {
	s := &OracleSwitch{}
	if o != nil {
		s.Set(o, endpoint)
	}
	return s
}

func (s *OracleSwitch) Swap(ctx context.Context, req SwapRequest) (*SwapResult, error) {
	o, ok := s.Get()
	if !ok {
		return nil, ErrNotConfigured
	}
	return o.Swap(ctx, req)
}

func (s *OracleSwitch) CurrentUnitPrice(ctx context.Context, asset string) (*Quote, error) {
	o, ok := s.Get()
	if !ok {
		return nil, ErrNotConfigured
	}
	return o.CurrentUnitPrice(ctx, asset)
}

// PaidAmountSwitch is a PaidAmountSource that may be left unconfigured.
type PaidAmountSwitch struct {
	Switch[PaidAmountSource]
}

func (s *PaidAmountSwitch) PaidAmount(ctx context.Context, accountID uint64) (decimal.Decimal, error) {
	src, ok := s.Get()
	if !ok {
		return decimal.Zero, ErrNotConfigured
	}
	return src.PaidAmount(ctx, accountID)
}

var (
	_ Oracle           = (*OracleSwitch)(nil)
	_ PaidAmountSource = (*PaidAmountSwitch)(nil)
)
