package repository

import (
	"time"

	"github.com/amirasaad/accrual/pkg/domain/account"
	"github.com/amirasaad/accrual/pkg/domain/settings"
	"github.com/shopspring/decimal"
)

// Account is the persisted form of account.Account. Round and NextReadyAt
// are denormalized from the price history so the ready scan is an index query.
type Account struct {
	ID              uint64          `gorm:"primaryKey;autoIncrement:false"`
	Seed            []byte          `gorm:"not null"`
	Category        uint8           `gorm:"not null"`
	Balance         decimal.Decimal `gorm:"type:numeric(78,18);not null"`
	Round           int             `gorm:"not null;index:idx_accounts_ready,priority:2"`
	NextReadyAt     time.Time       `gorm:"not null;index:idx_accounts_ready,priority:1"`
	IntervalSeconds int64           `gorm:"not null"`
	Withdrawn       bool            `gorm:"not null"`
	WithdrawnAt     *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
	Prices          []PriceSample `gorm:"foreignKey:AccountID;references:ID"`
}

// PriceSample is one row of an account's price history, keyed by (account, round).
type PriceSample struct {
	AccountID uint64          `gorm:"primaryKey;autoIncrement:false"`
	Round     int             `gorm:"primaryKey;autoIncrement:false"`
	Price     decimal.Decimal `gorm:"type:numeric(78,18);not null"`
	SampledAt time.Time       `gorm:"not null"`
}

// AdmissionSequence is a single-row table holding the admission sequence.
type AdmissionSequence struct {
	ID        uint8 `gorm:"primaryKey;autoIncrement:false"`
	Latest    uint64
	First     uint64
	Started   bool
	UpdatedAt time.Time
}

// Setting is a single-row table holding administrator settings.
type Setting struct {
	ID              uint8 `gorm:"primaryKey;autoIncrement:false"`
	AutomationAgent string
	FundingRelay    string
	OracleURL       string
	PaidAmountURL   string
	UpdatedBy       string
	UpdatedAt       time.Time
}

const singletonID = 1

// Models lists every table for AutoMigrate.
func Models() []any {
	return []any{&Account{}, &PriceSample{}, &AdmissionSequence{}, &Setting{}}
}

func mapAccountToModel(a *account.Account) Account {
	m := Account{
		ID:              a.ID,
		Seed:            a.Seed,
		Category:        uint8(a.Category),
		Balance:         a.Balance,
		Round:           a.Round(),
		NextReadyAt:     a.NextReadyAt(),
		IntervalSeconds: int64(a.IntervalLength / time.Second),
		Withdrawn:       a.Withdrawn,
		CreatedAt:       a.CreatedAt,
	}
	if a.Withdrawn {
		at := a.WithdrawnAt
		m.WithdrawnAt = &at
	}
	for _, p := range a.Prices {
		m.Prices = append(m.Prices, mapSampleToModel(a.ID, p))
	}
	return m
}

func mapSampleToModel(accountID uint64, p account.PriceSample) PriceSample {
	return PriceSample{AccountID: accountID, Round: p.Round, Price: p.Price, SampledAt: p.SampledAt}
}

func mapModelToAccount(m *Account) *account.Account {
	a := &account.Account{
		ID:             m.ID,
		Seed:           m.Seed,
		Category:       account.Category(m.Category),
		Balance:        m.Balance,
		CreatedAt:      m.CreatedAt.UTC(),
		IntervalLength: time.Duration(m.IntervalSeconds) * time.Second,
		Withdrawn:      m.Withdrawn,
	}
	if m.WithdrawnAt != nil {
		a.WithdrawnAt = m.WithdrawnAt.UTC()
	}
	a.Prices = make([]account.PriceSample, 0, len(m.Prices))
	for _, p := range m.Prices {
		a.Prices = append(a.Prices, account.PriceSample{Round: p.Round, Price: p.Price, SampledAt: p.SampledAt.UTC()})
	}
	return a
}

func mapSettingToDomain(m *Setting) *settings.Settings {
	return &settings.Settings{
		AutomationAgent: m.AutomationAgent,
		FundingRelay:    m.FundingRelay,
		OracleURL:       m.OracleURL,
		PaidAmountURL:   m.PaidAmountURL,
		UpdatedBy:       m.UpdatedBy,
		UpdatedAt:       m.UpdatedAt.UTC(),
	}
}

func mapSettingToModel(s *settings.Settings) Setting {
	return Setting{
		ID:              singletonID,
		AutomationAgent: s.AutomationAgent,
		FundingRelay:    s.FundingRelay,
		OracleURL:       s.OracleURL,
		PaidAmountURL:   s.PaidAmountURL,
		UpdatedBy:       s.UpdatedBy,
		UpdatedAt:       s.UpdatedAt,
	}
}
