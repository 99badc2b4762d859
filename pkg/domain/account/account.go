package account

import (
	"fmt"
	"time"

	"github.com/amirasaad/accrual/pkg/domain"
	"github.com/shopspring/decimal"
)

// MaxRounds is the number of price samples an account collects before it is complete.
const MaxRounds = 12

var (
	// ErrAccountNotFound is returned when an account id has never been admitted.
	ErrAccountNotFound = fmt.Errorf("%w: account", domain.ErrNotFound)

	// ErrRoundMismatch is returned when the claimed round is not the account's current round.
	ErrRoundMismatch = fmt.Errorf("%w: claimed round does not match current round", domain.ErrStaleRound)

	// ErrNotReady is returned when the account's interval for the current round has not elapsed,
	// or when all rounds are already sampled.
	ErrNotReady = fmt.Errorf("%w: account is not ready to advance", domain.ErrTiming)

	// ErrAlreadyWithdrawn is returned when a second withdrawal is attempted.
	ErrAlreadyWithdrawn = fmt.Errorf("%w: account already withdrawn", domain.ErrState)

	// ErrNegativeBalance is returned when an account would be built with a negative balance.
	ErrNegativeBalance = fmt.Errorf("%w: balance must not be negative", domain.ErrValidation)

	// ErrMissingSeed is returned when an account is built without a seed.
	ErrMissingSeed = fmt.Errorf("%w: seed is required", domain.ErrValidation)
)

// PriceSample is one entry of an account's price history. Round is 1-based.
type PriceSample struct {
	Round     int
	Price     decimal.Decimal
	SampledAt time.Time
}

// Account is a funded position that accrues price samples over MaxRounds
// timed rounds and can be withdrawn once.
//
// Invariants:
//   - Category and IntervalLength are derived from Seed and never change.
//   - Balance is fixed at admission.
//   - len(Prices) is the current round; it only grows, one sample at a time, up to MaxRounds.
//   - Withdrawn only moves from false to true, and WithdrawnAt records that moment.
//     A payout that was never delivered clears the flag again.
type Account struct {
	ID             uint64
	Seed           []byte
	Category       Category
	Balance        decimal.Decimal
	Prices         []PriceSample
	CreatedAt      time.Time
	IntervalLength time.Duration
	Withdrawn      bool
	WithdrawnAt    time.Time
}

// Round returns the number of price samples taken so far.
func (a *Account) Round() int {
	return len(a.Prices)
}

// Complete reports whether every round has been sampled.
func (a *Account) Complete() bool {
	return a.Round() >= MaxRounds
}

// NextReadyAt is the instant after which the current round may advance.
func (a *Account) NextReadyAt() time.Time {
	return a.CreatedAt.Add(a.IntervalLength * time.Duration(a.Round()))
}

// IsReady reports whether the account can advance at now. The elapsed-time
// comparison is strict: an account is not ready exactly at NextReadyAt.
func (a *Account) IsReady(now time.Time) bool {
	return !a.Complete() && now.After(a.NextReadyAt())
}

// CanAdvance checks the guards of a round advance in order: the claimed
// round must be current, then the account must be ready.
func (a *Account) CanAdvance(claimedRound int, now time.Time) error {
	if claimedRound != a.Round() {
		return fmt.Errorf("%w: account %d is at round %d, claimed %d", ErrRoundMismatch, a.ID, a.Round(), claimedRound)
	}
	if !a.IsReady(now) {
		return fmt.Errorf("%w: account %d round %d ready after %s", ErrNotReady, a.ID, a.Round(), a.NextReadyAt().Format(time.RFC3339))
	}
	return nil
}

// Advance appends exactly one price sample after checking CanAdvance.
func (a *Account) Advance(claimedRound int, price decimal.Decimal, now time.Time) (PriceSample, error) {
	if err := a.CanAdvance(claimedRound, now); err != nil {
		return PriceSample{}, err
	}
	return a.appendPrice(price, now), nil
}

func (a *Account) appendPrice(price decimal.Decimal, now time.Time) PriceSample {
	sample := PriceSample{Round: a.Round() + 1, Price: price, SampledAt: now}
	a.Prices = append(a.Prices, sample)
	return sample
}

// Withdraw flips the withdrawn flag. It fails if the account was already withdrawn.
func (a *Account) Withdraw(now time.Time) error {
	if a.Withdrawn {
		return fmt.Errorf("%w: account %d at %s", ErrAlreadyWithdrawn, a.ID, a.WithdrawnAt.Format(time.RFC3339))
	}
	a.Withdrawn = true
	a.WithdrawnAt = now
	return nil
}

// PriceSlots returns MaxRounds prices; slots past the current round are zero.
func (a *Account) PriceSlots() [MaxRounds]decimal.Decimal {
	var slots [MaxRounds]decimal.Decimal
	for i := range slots {
		slots[i] = decimal.Zero
	}
	for i, p := range a.Prices {
		if i >= MaxRounds {
			break
		}
		slots[i] = p.Price
	}
	return slots
}

// Builder constructs newly admitted accounts.
type Builder struct {
	id           uint64
	seed         []byte
	balance      decimal.Decimal
	createdAt    time.Time
	initialPrice *decimal.Decimal
}

// New returns a Builder with createdAt set to the current time.
func New() *Builder {
	return &Builder{
		balance:   decimal.Zero,
		createdAt: time.Now().UTC(),
	}
}

// WithID sets the account id.
func (b *Builder) WithID(id uint64) *Builder {
	b.id = id
	return b
}

// WithSeed sets the seed the category and interval are derived from.
func (b *Builder) WithSeed(seed []byte) *Builder {
	b.seed = append([]byte(nil), seed...)
	return b
}

// WithBalance sets the payout asset quantity credited at admission.
func (b *Builder) WithBalance(balance decimal.Decimal) *Builder {
	b.balance = balance
	return b
}

// WithCreatedAt overrides the admission time.
func (b *Builder) WithCreatedAt(t time.Time) *Builder {
	b.createdAt = t
	return b
}

// WithInitialPrice records the price sampled at admission as round 1.
func (b *Builder) WithInitialPrice(price decimal.Decimal) *Builder {
	b.initialPrice = &price
	return b
}

// Build validates the inputs and returns the account.
func (b *Builder) Build() (*Account, error) {
	if b.seed == nil {
		return nil, ErrMissingSeed
	}
	if b.balance.IsNegative() {
		return nil, ErrNegativeBalance
	}
	d := Derive(b.seed)
	a := &Account{
		ID:             b.id,
		Seed:           b.seed,
		Category:       d.Category,
		Balance:        b.balance,
		CreatedAt:      b.createdAt,
		IntervalLength: d.IntervalLength,
	}
	if b.initialPrice != nil {
		a.appendPrice(*b.initialPrice, b.createdAt)
	}
	return a, nil
}
