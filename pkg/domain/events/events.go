package events

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// EventType represents the type of an event in the system.
type EventType string

const (
	EventTypeAccountAdmitted  EventType = "Account.Admitted"
	EventTypeRoundAdvanced    EventType = "Account.RoundAdvanced"
	EventTypeAccountWithdrawn EventType = "Account.Withdrawn"
)

func (t EventType) String() string { return string(t) }

// Event is implemented by every domain event.
type Event interface {
	Type() string
	EventID() uuid.UUID
}

// Meta carries the fields shared by all account events.
type Meta struct {
	ID        uuid.UUID `json:"id"`
	AccountID uint64    `json:"account_id"`
	Timestamp time.Time `json:"timestamp"`
}

// EventID returns the unique id of the event occurrence.
func (m Meta) EventID() uuid.UUID { return m.ID }

func newMeta(accountID uint64, at time.Time) Meta {
	return Meta{ID: uuid.New(), AccountID: accountID, Timestamp: at}
}

// AccountAdmitted is emitted after a funding event created an account.
type AccountAdmitted struct {
	Meta
	Category       string          `json:"category"`
	Balance        decimal.Decimal `json:"balance"`
	IntervalLength time.Duration   `json:"interval_length"`
	InitialPrice   decimal.Decimal `json:"initial_price"`
}

func (e *AccountAdmitted) Type() string { return EventTypeAccountAdmitted.String() }

// NewAccountAdmitted builds an AccountAdmitted event.
func NewAccountAdmitted(accountID uint64, at time.Time, category string, balance decimal.Decimal, interval time.Duration, price decimal.Decimal) *AccountAdmitted {
	return &AccountAdmitted{
		Meta:           newMeta(accountID, at),
		Category:       category,
		Balance:        balance,
		IntervalLength: interval,
		InitialPrice:   price,
	}
}

// RoundAdvanced is emitted after a price sample was appended.
type RoundAdvanced struct {
	Meta
	Round int             `json:"round"`
	Price decimal.Decimal `json:"price"`
}

func (e *RoundAdvanced) Type() string { return EventTypeRoundAdvanced.String() }

// NewRoundAdvanced builds a RoundAdvanced event.
func NewRoundAdvanced(accountID uint64, at time.Time, round int, price decimal.Decimal) *RoundAdvanced {
	return &RoundAdvanced{Meta: newMeta(accountID, at), Round: round, Price: price}
}

// AccountWithdrawn is emitted after a payout was delivered.
type AccountWithdrawn struct {
	Meta
	Beneficiary string          `json:"beneficiary"`
	Asset       string          `json:"asset"`
	Amount      decimal.Decimal `json:"amount"`
	Round       int             `json:"round"`
}

func (e *AccountWithdrawn) Type() string { return EventTypeAccountWithdrawn.String() }

// NewAccountWithdrawn builds an AccountWithdrawn event.
func NewAccountWithdrawn(accountID uint64, at time.Time, beneficiary, asset string, amount decimal.Decimal, round int) *AccountWithdrawn {
	return &AccountWithdrawn{
		Meta:        newMeta(accountID, at),
		Beneficiary: beneficiary,
		Asset:       asset,
		Amount:      amount,
		Round:       round,
	}
}

// Factories returns constructors for decoding events by type name.
func Factories() map[string]func() Event {
	return map[string]func() Event{
		EventTypeAccountAdmitted.String():  func() Event { return &AccountAdmitted{} },
		EventTypeRoundAdvanced.String():    func() Event { return &RoundAdvanced{} },
		EventTypeAccountWithdrawn.String(): func() Event { return &AccountWithdrawn{} },
	}
}
