package entity

import "time"

// Attempt outcomes recorded in the attempt log
const (
	OutcomeAccepted = "accepted"
	OutcomeRejected = "rejected"
	OutcomeFailed   = "failed"
	OutcomePending  = "pending"
	OutcomeNotFound = "not_found"
)

// FetchAttempt represents a single (domain, url, tier, proxy) try
type FetchAttempt struct {
	RunID       string    `json:"run_id"`
	Domain      string    `json:"domain"`
	URL         string    `json:"url"`
	Tier        Tier      `json:"tier"`
	Proxy       string    `json:"proxy,omitempty"`
	Attempt     int       `json:"attempt"`
	Outcome     string    `json:"outcome"`
	Kind        ErrorKind `json:"kind,omitempty"`
	Reason      string    `json:"reason,omitempty"`
	StatusCode  int       `json:"status_code,omitempty"`
	ContentType string    `json:"content_type,omitempty"`
	DurationMs  int64     `json:"duration_ms"`
	Timestamp   time.Time `json:"timestamp"`
}

// LedgerEntry is the durable per-domain outcome kept across runs
type LedgerEntry struct {
	Domain    string
	State     State
	AssetPath string
	Tier      Tier
	Reason    string
	UpdatedAt time.Time
}
