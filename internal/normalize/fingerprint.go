package normalize

import (
	"crypto/sha256"
	"fmt"

	"github.com/clubkas/clubkas/internal/model"
)

// FingerprintRecord is the minimal view of a record needed to compute
// its dedup fingerprint. Both raw imports and stored transactions can
// be fingerprinted through it.
type FingerprintRecord struct {
	AccountNumber    string
	ExecutionDate    string // date-only, 2006-01-02
	Amount           string // fixed to two decimals
	CounterpartyName string
	BankReference    string
}

// Fingerprint computes the deduplication key for a record. When the
// bank supplied a statement reference its digits are authoritative.
// Otherwise the key is a hash over the normalized composite of account,
// execution date, amount and counterparty, so that formatting variance
// in the source never splits a duplicate pair.
func Fingerprint(rec FingerprintRecord) string {
	if ref := digitsOnly(rec.BankReference); ref != "" {
		return ref
	}
	data := fmt.Sprintf("%s:%s:%s:%s",
		Account(rec.AccountNumber),
		rec.ExecutionDate,
		rec.Amount,
		Counterparty(rec.CounterpartyName))
	sum := sha256.Sum256([]byte(data))
	return fmt.Sprintf("%x", sum)
}

// TransactionFingerprint fingerprints a stored transaction. Stored
// transactions no longer carry the raw bank reference; the fingerprint
// computed at ingest time is persisted, and this recomputation covers
// the composite case for repair runs.
func TransactionFingerprint(t *model.Transaction) string {
	return Fingerprint(FingerprintRecord{
		AccountNumber:    t.AccountNumber,
		ExecutionDate:    t.ExecutionDate.Format("2006-01-02"),
		Amount:           t.Amount.StringFixed(2),
		CounterpartyName: t.CounterpartyName,
	})
}

// Record normalizes a raw imported record into a ledger transaction.
// The transaction ID is left empty; ingestion assigns it when the
// record is first persisted.
func Record(raw model.RawRecord) (model.Transaction, error) {
	amount, err := Amount(raw.Amount)
	if err != nil {
		return model.Transaction{}, fmt.Errorf("record %s: %w", raw.SequenceNumber, err)
	}
	txn := model.Transaction{
		SequenceNumber:   raw.SequenceNumber,
		AccountNumber:    Account(raw.AccountNumber),
		ExecutionDate:    raw.ExecutionDate,
		ValueDate:        raw.ValueDate,
		Amount:           amount,
		CounterpartyName: raw.CounterpartyName,
		Communication:    raw.Communication,
	}
	txn.DedupFingerprint = Fingerprint(FingerprintRecord{
		AccountNumber:    raw.AccountNumber,
		ExecutionDate:    raw.ExecutionDate.Format("2006-01-02"),
		Amount:           amount.StringFixed(2),
		CounterpartyName: raw.CounterpartyName,
		BankReference:    raw.BankReference,
	})
	return txn, nil
}
