package core

import "time"

// QuotaSnapshot is the quota telemetry reported by the API for one call.
type QuotaSnapshot struct {
	Limit     int       `json:"limit"`
	Cost      int       `json:"cost"`
	Remaining int       `json:"remaining"`
	ResetAt   time.Time `json:"reset_at"`
}

// QuotaRecord is a stored snapshot for one credential slot.
type QuotaRecord struct {
	Slot       int           `json:"slot"`
	Snapshot   QuotaSnapshot `json:"snapshot"`
	ObservedAt time.Time     `json:"observed_at"`
}
