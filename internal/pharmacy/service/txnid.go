package service

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pharmacore/pharmacy-backend/internal/pharmacy/repository"
)

// TransactionIDGenerator produces unique, sortable, human-legible ledger
// transaction identifiers: TXN + yymmdd + daily sequence + random suffix.
//
// The daily sequence comes from the counters table inside the same
// transaction as the ledger append, so concurrent movements can never be
// handed the same number. The random suffix is defense-in-depth only; the
// unique index on transaction_id is the actual guarantee.
type TransactionIDGenerator struct {
	seq *repository.SequenceRepository
}

// NewTransactionIDGenerator creates a new generator
func NewTransactionIDGenerator(seq *repository.SequenceRepository) *TransactionIDGenerator {
	return &TransactionIDGenerator{seq: seq}
}

// NextTx allocates the next transaction ID within an existing transaction.
func (g *TransactionIDGenerator) NextTx(ctx context.Context, tx *sqlx.Tx, now time.Time) (string, error) {
	seq, err := g.seq.NextTx(ctx, tx, DailySequenceName(now))
	if err != nil {
		return "", err
	}
	return FormatTransactionID(now, seq, rand.Intn(10000)), nil
}

// DailySequenceName names the per-day counter, e.g. txn:260901.
func DailySequenceName(now time.Time) string {
	return "txn:" + now.Format("060102")
}

// FormatTransactionID builds a transaction identifier like TXN2609010010042.
// The sequence is padded to three digits but keeps growing past 999 rather
// than wrapping, so a very busy day cannot reuse an identifier.
func FormatTransactionID(now time.Time, seq int64, suffix int) string {
	return fmt.Sprintf("TXN%s%03d%04d", now.Format("060102"), seq, suffix)
}
