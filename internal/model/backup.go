package model

import "time"

// Backup is a full pre-mutation snapshot of the transactions a repair
// operation is about to delete or rewrite. It is written before the
// first destructive write and is the manual recovery path when a
// committed batch has to be undone.
type Backup struct {
	TakenAt      time.Time
	ID           string
	Reason       string
	Transactions []Transaction
}
