package model

import "time"

// RawRecord is the shape the external bank-statement importer hands us,
// before normalization. Amounts arrive as strings because source
// formatting varies by locale ("1.234,56" vs "1,234.56").
type RawRecord struct {
	ExecutionDate    time.Time `json:"execution_date"`
	ValueDate        time.Time `json:"value_date"`
	SequenceNumber   string    `json:"sequence_number"`
	AccountNumber    string    `json:"account_number"`
	Amount           string    `json:"amount"`
	CounterpartyName string    `json:"counterparty_name"`
	Communication    string    `json:"communication"`
	BankReference    string    `json:"bank_reference,omitempty"`
}
