package models

import (
	"time"

	"github.com/google/uuid"
)

// Pass kinds
const (
	PassKindScan  = "scan"
	PassKindCheck = "check"
)

// Pass run statuses
const (
	PassStatusRunning   = "running"
	PassStatusCompleted = "completed"
	PassStatusFailed    = "failed"
)

// PassRun is the audit record for one scan or check pass.
type PassRun struct {
	ID         uuid.UUID  `json:"id" db:"id"`
	Kind       string     `json:"kind" db:"kind"`
	StartedAt  time.Time  `json:"started_at" db:"started_at"`
	FinishedAt *time.Time `json:"finished_at" db:"finished_at"`
	Status     string     `json:"status" db:"status"`
	Processed  int        `json:"processed" db:"processed"`
	Affected   int        `json:"affected" db:"affected"`
	ErrorCount int        `json:"errors_count" db:"errors_count"`
}

// UnitError records one failed unit (a category fetch, a single probe) inside
// an otherwise successful pass.
type UnitError struct {
	Unit string
	Err  string
}

// ScanResult summarizes one scan pass. Failures list the categories that
// contributed nothing; the counts reflect only what succeeded.
type ScanResult struct {
	Scanned  int         `json:"scanned"`
	New      int         `json:"new"`
	Failures []UnitError `json:"-"`
}

// CheckResult summarizes one check pass.
type CheckResult struct {
	Checked  int         `json:"checked"`
	Sold     int         `json:"sold"`
	Failures []UnitError `json:"-"`
}
