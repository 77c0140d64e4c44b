package normalize

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clubkas/clubkas/internal/model"
)

func TestAccount(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "spaces stripped", input: "BE26 2100 1607 0629", want: "BE26210016070629"},
		{name: "already compact", input: "BE26210016070629", want: "BE26210016070629"},
		{name: "lowercase folded", input: "be26 2100 1607 0629", want: "BE26210016070629"},
		{name: "tabs and nbsp", input: "BE26\t2100 1607 0629", want: "BE26210016070629"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Account(tt.input))
		})
	}
}

func TestCounterparty(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "case folded", input: "ACME Corp", want: "acme corp"},
		{name: "trailing whitespace", input: "acme corp ", want: "acme corp"},
		{name: "inner runs collapsed", input: "  acme \t corp ", want: "acme corp"},
		{name: "diacritics stripped", input: "Café Müller", want: "cafe muller"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Counterparty(tt.input))
		})
	}
}

func TestAmount(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{name: "plain decimal point", input: "1234.56", want: "1234.56"},
		{name: "continental comma", input: "1234,56", want: "1234.56"},
		{name: "continental with grouping", input: "1.234,56", want: "1234.56"},
		{name: "anglo with grouping", input: "1,234.56", want: "1234.56"},
		{name: "negative continental", input: "-1.234,56", want: "-1234.56"},
		{name: "internal spaces", input: "1 234,56", want: "1234.56"},
		{name: "multiple comma groups", input: "1,234,567", want: "1234567"},
		{name: "multiple dot groups", input: "1.234.567", want: "1234567"},
		{name: "empty", input: "  ", wantErr: true},
		{name: "garbage", input: "abc", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Amount(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.String())
		})
	}
}

func TestFingerprint_AccountWhitespaceInvariance(t *testing.T) {
	spaced := Fingerprint(FingerprintRecord{
		AccountNumber:    "BE26 2100 1607 0629",
		ExecutionDate:    "2024-03-15",
		Amount:           "42.50",
		CounterpartyName: "ACME Corp",
	})
	compact := Fingerprint(FingerprintRecord{
		AccountNumber:    "BE26210016070629",
		ExecutionDate:    "2024-03-15",
		Amount:           "42.50",
		CounterpartyName: "ACME Corp",
	})
	assert.Equal(t, spaced, compact)
}

func TestFingerprint_CounterpartyFormattingInvariance(t *testing.T) {
	a := Fingerprint(FingerprintRecord{
		AccountNumber:    "BE26210016070629",
		ExecutionDate:    "2024-03-15",
		Amount:           "42.50",
		CounterpartyName: "ACME Corp",
	})
	b := Fingerprint(FingerprintRecord{
		AccountNumber:    "BE26210016070629",
		ExecutionDate:    "2024-03-15",
		Amount:           "42.50",
		CounterpartyName: "acme corp ",
	})
	assert.Equal(t, a, b)
}

func TestFingerprint_BankReferenceWins(t *testing.T) {
	withRef := Fingerprint(FingerprintRecord{
		AccountNumber:    "BE26210016070629",
		ExecutionDate:    "2024-03-15",
		Amount:           "42.50",
		CounterpartyName: "ACME Corp",
		BankReference:    "REF 2024-0001-0337",
	})
	assert.Equal(t, "202400010337", withRef)

	// Same reference, different formatting and unrelated fields: the
	// reference digits alone decide the fingerprint.
	reformatted := Fingerprint(FingerprintRecord{
		AccountNumber:    "OTHER",
		ExecutionDate:    "2020-01-01",
		Amount:           "1.00",
		CounterpartyName: "whoever",
		BankReference:    "2024/0001/0337",
	})
	assert.Equal(t, withRef, reformatted)
}

func TestFingerprint_DifferentAmountsDiffer(t *testing.T) {
	a := Fingerprint(FingerprintRecord{
		AccountNumber: "BE26210016070629", ExecutionDate: "2024-03-15",
		Amount: "42.50", CounterpartyName: "ACME Corp",
	})
	b := Fingerprint(FingerprintRecord{
		AccountNumber: "BE26210016070629", ExecutionDate: "2024-03-15",
		Amount: "42.51", CounterpartyName: "ACME Corp",
	})
	assert.NotEqual(t, a, b)
}

func TestRecord(t *testing.T) {
	date := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	raw := model.RawRecord{
		SequenceNumber:   "2024-00042",
		AccountNumber:    "BE26 2100 1607 0629",
		ExecutionDate:    date,
		ValueDate:        date,
		Amount:           "1.234,56",
		CounterpartyName: "Jean Dupont",
		Communication:    "cotisation 2024",
	}

	txn, err := Record(raw)
	require.NoError(t, err)

	assert.Equal(t, "2024-00042", txn.SequenceNumber)
	assert.Equal(t, "BE26210016070629", txn.AccountNumber)
	assert.Equal(t, "1234.56", txn.Amount.String())
	assert.NotEmpty(t, txn.DedupFingerprint)
	assert.False(t, txn.IsParent)

	_, err = Record(model.RawRecord{SequenceNumber: "x", Amount: "nope"})
	require.Error(t, err)
}
