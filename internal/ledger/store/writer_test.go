package store

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/chargeledger/internal/ledger"
)

// memoryDB emulates the ledger tables with one global lock standing in for the advisory lock.
type memoryDB struct {
	mu      sync.Mutex
	records map[uuid.UUID][]ledger.LedgerEntry
	batches map[uuid.UUID]BatchRecord
	failOn  string
}

func newMemoryDB() *memoryDB {
	return &memoryDB{
		records: make(map[uuid.UUID][]ledger.LedgerEntry),
		batches: make(map[uuid.UUID]BatchRecord),
	}
}

func (m *memoryDB) WithTx(ctx context.Context, fn func(context.Context, WriterTx) error) error {
	tx := &memoryTx{db: m, records: make(map[uuid.UUID][]ledger.LedgerEntry), batches: make(map[uuid.UUID]BatchRecord)}
	defer func() {
		if tx.locked {
			m.mu.Unlock()
		}
	}()
	if err := fn(ctx, tx); err != nil {
		return err
	}
	for id, entries := range tx.records {
		m.records[id] = append(m.records[id], entries...)
	}
	for id, batch := range tx.batches {
		m.batches[id] = batch
	}
	return nil
}

type memoryTx struct {
	db      *memoryDB
	locked  bool
	records map[uuid.UUID][]ledger.LedgerEntry
	batches map[uuid.UUID]BatchRecord
}

func (t *memoryTx) LockCharge(context.Context, uuid.UUID) error {
	t.db.mu.Lock()
	t.locked = true
	return nil
}

func (t *memoryTx) CountLedgerRecords(_ context.Context, chargeID uuid.UUID) (int, error) {
	return len(t.db.records[chargeID]), nil
}

func (t *memoryTx) InsertLedgerRecords(_ context.Context, entries []ledger.LedgerEntry) error {
	if t.db.failOn == "records" {
		return errors.New("copy failed")
	}
	for _, e := range entries {
		t.records[e.ChargeID] = append(t.records[e.ChargeID], e)
	}
	return nil
}

func (t *memoryTx) InsertBatch(_ context.Context, batch BatchRecord) error {
	if _, ok := t.db.batches[batch.ChargeID]; ok {
		return ErrBatchExists
	}
	t.batches[batch.ChargeID] = batch
	return nil
}

func sampleEntries(chargeID uuid.UUID) []ledger.LedgerEntry {
	business := ledger.BusinessRef(uuid.New())
	income := ledger.TaxCategoryRef(ledger.TaxCategory{ID: uuid.New(), Name: "Income"})
	date := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	return []ledger.LedgerEntry{
		ledger.NewEntry(ledger.EntryParams{
			ChargeID: chargeID, Counterparty: income, Main: business,
			Currency: "ILS", LocalCurrency: "ILS", Amount: 100, LocalAmount: 100,
			ValueDate: date, Description: "invoice",
		}),
		ledger.NewEntry(ledger.EntryParams{
			ChargeID: chargeID, Counterparty: business, Main: income,
			Currency: "ILS", LocalCurrency: "ILS", Amount: 100, LocalAmount: 100,
			ValueDate: date, Description: "payment",
		}),
	}
}

func TestStoreInitialGeneratedRecordsIsIdempotent(t *testing.T) {
	db := newMemoryDB()
	writer := NewWriter(db, nil)
	chargeID := uuid.New()

	stored, err := writer.StoreInitialGeneratedRecords(context.Background(), chargeID, sampleEntries(chargeID))
	require.NoError(t, err)
	require.True(t, stored)

	stored, err = writer.StoreInitialGeneratedRecords(context.Background(), chargeID, sampleEntries(chargeID))
	require.NoError(t, err)
	require.False(t, stored)

	require.Len(t, db.records[chargeID], 2)
	require.Len(t, db.batches, 1)
	require.Equal(t, 2, db.batches[chargeID].Records)
}

func TestStoreInitialGeneratedRecordsConcurrent(t *testing.T) {
	db := newMemoryDB()
	writer := NewWriter(db, nil)
	chargeID := uuid.New()

	var wg sync.WaitGroup
	results := make(chan bool, 8)
	errs := make(chan error, 8)
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			stored, err := writer.StoreInitialGeneratedRecords(context.Background(), chargeID, sampleEntries(chargeID))
			errs <- err
			results <- stored
		}()
	}
	wg.Wait()
	close(results)
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}
	writes := 0
	for stored := range results {
		if stored {
			writes++
		}
	}
	require.Equal(t, 1, writes)
	require.Len(t, db.records[chargeID], 2)
}

func TestStoreInitialGeneratedRecordsRollsBack(t *testing.T) {
	db := newMemoryDB()
	db.failOn = "records"
	writer := NewWriter(db, nil)
	chargeID := uuid.New()

	stored, err := writer.StoreInitialGeneratedRecords(context.Background(), chargeID, sampleEntries(chargeID))
	require.Error(t, err)
	require.False(t, stored)
	require.Empty(t, db.records)
	require.Empty(t, db.batches)
}

func TestStoreInitialGeneratedRecordsEmpty(t *testing.T) {
	db := newMemoryDB()
	stored, err := NewWriter(db, nil).StoreInitialGeneratedRecords(context.Background(), uuid.New(), nil)
	require.NoError(t, err)
	require.False(t, stored)
	require.Empty(t, db.batches)
}

func TestFingerprintIgnoresEntryIDs(t *testing.T) {
	chargeID := uuid.New()
	entries := sampleEntries(chargeID)
	first, err := Fingerprint(entries)
	require.NoError(t, err)

	for i := range entries {
		entries[i].ID = uuid.New()
	}
	second, err := Fingerprint(entries)
	require.NoError(t, err)
	require.Equal(t, first, second)
	require.Len(t, first, 64)

	entries[0].Description = "changed"
	third, err := Fingerprint(entries)
	require.NoError(t, err)
	require.NotEqual(t, first, third)
}
