package store

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"golang.org/x/crypto/blake2b"

	"github.com/odyssey-erp/chargeledger/internal/ledger"
)

// ErrBatchExists is returned by WriterTx.InsertBatch when another writer stored the charge first.
var ErrBatchExists = errors.New("store: ledger batch already stored")

// WriterTx is the transactional surface used by Writer.
type WriterTx interface {
	LockCharge(ctx context.Context, chargeID uuid.UUID) error
	CountLedgerRecords(ctx context.Context, chargeID uuid.UUID) (int, error)
	InsertLedgerRecords(ctx context.Context, entries []ledger.LedgerEntry) error
	InsertBatch(ctx context.Context, batch BatchRecord) error
}

// TxRunner opens a transaction and hands it to fn.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(context.Context, WriterTx) error) error
}

// BatchRecord marks the single stored generation of a charge.
type BatchRecord struct {
	ChargeID    uuid.UUID
	Fingerprint string
	Records     int
	CreatedAt   time.Time
}

// Writer persists the first generated ledger of a charge.
type Writer struct {
	runner TxRunner
	logger *slog.Logger
	now    func() time.Time
}

// NewWriter constructs Writer.
func NewWriter(runner TxRunner, logger *slog.Logger) *Writer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Writer{runner: runner, logger: logger.With(slog.String("component", "ledger.writer")), now: time.Now}
}

// StoreInitialGeneratedRecords inserts entries for the charge unless ledger records already
// exist. It reports whether anything was written. Concurrent callers for one charge are
// serialised by a transaction scoped advisory lock.
func (w *Writer) StoreInitialGeneratedRecords(ctx context.Context, chargeID uuid.UUID, entries []ledger.LedgerEntry) (bool, error) {
	if len(entries) == 0 {
		return false, nil
	}
	fingerprint, err := Fingerprint(entries)
	if err != nil {
		return false, err
	}
	stored := false
	err = w.runner.WithTx(ctx, func(ctx context.Context, tx WriterTx) error {
		if err := tx.LockCharge(ctx, chargeID); err != nil {
			return err
		}
		existing, err := tx.CountLedgerRecords(ctx, chargeID)
		if err != nil {
			return err
		}
		if existing > 0 {
			return nil
		}
		if err := tx.InsertLedgerRecords(ctx, entries); err != nil {
			return err
		}
		if err := tx.InsertBatch(ctx, BatchRecord{
			ChargeID:    chargeID,
			Fingerprint: fingerprint,
			Records:     len(entries),
			CreatedAt:   w.now().UTC(),
		}); err != nil {
			return err
		}
		stored = true
		return nil
	})
	if errors.Is(err, ErrBatchExists) {
		w.logger.InfoContext(ctx, "ledger already stored by a concurrent writer", slog.String("charge_id", chargeID.String()))
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("store: write ledger records: %w", err)
	}
	if stored {
		w.logger.InfoContext(ctx, "ledger records stored",
			slog.String("charge_id", chargeID.String()),
			slog.Int("records", len(entries)),
			slog.String("fingerprint", fingerprint))
	}
	return stored, nil
}

type fingerprintLeg struct {
	Kind   ledger.AccountKind `json:"k,omitempty"`
	ID     uuid.UUID          `json:"i"`
	Amount *float64           `json:"a,omitempty"`
	Local  float64            `json:"l"`
}

type fingerprintEntry struct {
	InvoiceDate string            `json:"d"`
	ValueDate   string            `json:"v"`
	Currency    string            `json:"c"`
	Legs        [4]fingerprintLeg `json:"legs"`
	Description string            `json:"desc,omitempty"`
}

// Fingerprint hashes the business content of entries with BLAKE2b-256. Entry ids are left out,
// so regenerating the same charge yields the same fingerprint.
func Fingerprint(entries []ledger.LedgerEntry) (string, error) {
	view := make([]fingerprintEntry, 0, len(entries))
	for _, e := range entries {
		view = append(view, fingerprintEntry{
			InvoiceDate: e.InvoiceDate.Format(time.DateOnly),
			ValueDate:   e.ValueDate.Format(time.DateOnly),
			Currency:    e.Currency,
			Legs: [4]fingerprintLeg{
				{Kind: e.CreditAccount1.Kind(), ID: e.CreditAccount1.ID(), Amount: e.CreditAmount1, Local: e.LocalCurrencyCreditAmount1},
				{Kind: e.DebitAccount1.Kind(), ID: e.DebitAccount1.ID(), Amount: e.DebitAmount1, Local: e.LocalCurrencyDebitAmount1},
				{Kind: e.CreditAccount2.Kind(), ID: e.CreditAccount2.ID(), Amount: e.CreditAmount2, Local: e.LocalCurrencyCreditAmount2},
				{Kind: e.DebitAccount2.Kind(), ID: e.DebitAccount2.ID(), Amount: e.DebitAmount2, Local: e.LocalCurrencyDebitAmount2},
			},
			Description: e.Description,
		})
	}
	payload, err := json.Marshal(view)
	if err != nil {
		return "", fmt.Errorf("store: fingerprint: %w", err)
	}
	sum := blake2b.Sum256(payload)
	return hex.EncodeToString(sum[:]), nil
}

type txRepository struct {
	tx pgx.Tx
}

func (r *txRepository) LockCharge(ctx context.Context, chargeID uuid.UUID) error {
	_, err := r.tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1::text, 0))`, chargeID.String())
	if err != nil {
		return fmt.Errorf("store: lock charge: %w", err)
	}
	return nil
}

func (r *txRepository) CountLedgerRecords(ctx context.Context, chargeID uuid.UUID) (int, error) {
	var n int
	if err := r.tx.QueryRow(ctx, `SELECT COUNT(*) FROM ledger_records WHERE charge_id = $1`, chargeID).Scan(&n); err != nil {
		return 0, fmt.Errorf("store: count ledger records: %w", err)
	}
	return n, nil
}

func (r *txRepository) InsertLedgerRecords(ctx context.Context, entries []ledger.LedgerEntry) error {
	rows := make([][]any, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, []any{
			e.ID, e.ChargeID, e.OwnerID, e.InvoiceDate, e.ValueDate, e.Currency, e.CurrencyRate,
			refID(e.CreditAccount1), refKind(e.CreditAccount1), e.CreditAmount1, e.LocalCurrencyCreditAmount1,
			refID(e.DebitAccount1), refKind(e.DebitAccount1), e.DebitAmount1, e.LocalCurrencyDebitAmount1,
			refID(e.CreditAccount2), refKind(e.CreditAccount2), e.CreditAmount2, e.LocalCurrencyCreditAmount2,
			refID(e.DebitAccount2), refKind(e.DebitAccount2), e.DebitAmount2, e.LocalCurrencyDebitAmount2,
			e.Description, e.Reference, e.IsCreditorCounterparty,
		})
	}
	_, err := r.tx.CopyFrom(ctx, pgx.Identifier{"ledger_records"}, []string{
		"id", "charge_id", "owner_id", "invoice_date", "value_date", "currency", "currency_rate",
		"credit_entity1", "credit_kind1", "credit_foreign_amount1", "credit_local_amount1",
		"debit_entity1", "debit_kind1", "debit_foreign_amount1", "debit_local_amount1",
		"credit_entity2", "credit_kind2", "credit_foreign_amount2", "credit_local_amount2",
		"debit_entity2", "debit_kind2", "debit_foreign_amount2", "debit_local_amount2",
		"description", "reference", "is_creditor_counterparty",
	}, pgx.CopyFromRows(rows))
	if err != nil {
		return fmt.Errorf("store: insert ledger records: %w", err)
	}
	return nil
}

func (r *txRepository) InsertBatch(ctx context.Context, batch BatchRecord) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO ledger_batches (charge_id, fingerprint, records, created_at)
VALUES ($1, $2, $3, $4)`, batch.ChargeID, batch.Fingerprint, batch.Records, batch.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrBatchExists
		}
		return fmt.Errorf("store: insert ledger batch: %w", err)
	}
	return nil
}

func refID(ref ledger.AccountRef) *uuid.UUID {
	if ref.IsZero() {
		return nil
	}
	id := ref.ID()
	return &id
}

func refKind(ref ledger.AccountRef) *string {
	if ref.IsZero() {
		return nil
	}
	kind := string(ref.Kind())
	return &kind
}
