package model

import "time"

// RunReport is the persisted outcome of one reconciliation run, kept
// for operator review after the terminal output is gone.
type RunReport struct {
	StartedAt  time.Time
	FinishedAt time.Time
	ID         string
	State      string
	Report     string // rendered report body
}
