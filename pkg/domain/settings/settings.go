package settings

import "time"

// Settings are the administrator-controlled values persisted across restarts.
// Empty fields fall back to the startup configuration.
type Settings struct {
	AutomationAgent string
	FundingRelay    string
	OracleURL       string
	PaidAmountURL   string
	UpdatedBy       string
	UpdatedAt       time.Time
}
