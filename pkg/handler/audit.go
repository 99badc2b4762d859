package handler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/amirasaad/accrual/pkg/domain/events"
	"github.com/amirasaad/accrual/pkg/eventbus"
	"github.com/google/uuid"
)

// AuditEntry is one recorded account event.
type AuditEntry struct {
	EventID   uuid.UUID `json:"event_id"`
	Type      string    `json:"type"`
	AccountID uint64    `json:"account_id"`
	At        time.Time `json:"at"`
}

// AuditTrail keeps the events seen for each account, in delivery order.
type AuditTrail struct {
	mu      sync.RWMutex
	entries map[uint64][]AuditEntry
	logger  *slog.Logger
}

func NewAuditTrail(logger *slog.Logger) *AuditTrail {
	return &AuditTrail{
		entries: make(map[uint64][]AuditEntry),
		logger:  logger.With("handler", "audit"),
	}
}

// For returns the entries recorded for an account.
func (a *AuditTrail) For(accountID uint64) []AuditEntry {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return append([]AuditEntry(nil), a.entries[accountID]...)
}

func (a *AuditTrail) record(ctx context.Context, e events.Event) error {
	entry := AuditEntry{EventID: e.EventID(), Type: e.Type()}
	log := a.logger.With("event_type", e.Type(), "event_id", e.EventID())

	switch evt := e.(type) {
	case *events.AccountAdmitted:
		entry.AccountID, entry.At = evt.AccountID, evt.Timestamp
		log.Info("account admitted",
			"account_id", evt.AccountID,
			"category", evt.Category,
			"balance", evt.Balance.String(),
			"interval", evt.IntervalLength,
			"initial_price", evt.InitialPrice.String())
	case *events.RoundAdvanced:
		entry.AccountID, entry.At = evt.AccountID, evt.Timestamp
		log.Info("round advanced", "account_id", evt.AccountID, "round", evt.Round, "price", evt.Price.String())
	case *events.AccountWithdrawn:
		entry.AccountID, entry.At = evt.AccountID, evt.Timestamp
		log.Info("account withdrawn",
			"account_id", evt.AccountID,
			"beneficiary", evt.Beneficiary,
			"asset", evt.Asset,
			"amount", evt.Amount.String(),
			"round", evt.Round)
	default:
		log.Warn("unexpected event")
		return nil
	}

	a.mu.Lock()
	a.entries[entry.AccountID] = append(a.entries[entry.AccountID], entry)
	a.mu.Unlock()
	return nil
}

// Subscribe registers the trail for every account event type, deduplicated
// by event id.
func (a *AuditTrail) Subscribe(bus eventbus.Bus, tracker *IdempotencyTracker) {
	h := WithIdempotency(a.record, tracker, ByEventID, "audit", a.logger)
	for _, t := range []events.EventType{
		events.EventTypeAccountAdmitted,
		events.EventTypeRoundAdvanced,
		events.EventTypeAccountWithdrawn,
	} {
		bus.Register(t.String(), h)
	}
}
