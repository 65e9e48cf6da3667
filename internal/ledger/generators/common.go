package generators

import (
	"context"
	"errors"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/odyssey-erp/chargeledger/internal/ledger"
	"github.com/odyssey-erp/chargeledger/internal/ledger/documents"
)

// Common books the ordinary charge: its aggregated documents, its transactions and its misc
// expenses. Lookup misses are reported in Errors and the remaining entries still returned.
type Common struct {
	base
}

func (g *Common) Generate(ctx context.Context, charge ledger.Charge) (ledger.GeneratedLedger, error) {
	var (
		docs     []ledger.Document
		txs      []ledger.Transaction
		expenses []ledger.MiscExpense
	)
	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		var err error
		docs, err = g.deps.Store.DocumentsByCharge(egCtx, charge.ID)
		return err
	})
	eg.Go(func() error {
		var err error
		txs, err = g.deps.Store.TransactionsByCharge(egCtx, charge.ID)
		return err
	})
	eg.Go(func() error {
		var err error
		expenses, err = g.deps.Store.MiscExpensesByCharge(egCtx, charge.ID)
		return err
	})
	if err := eg.Wait(); err != nil {
		return ledger.GeneratedLedger{}, err
	}

	batch := ledger.NewBatch(charge)
	if err := g.documentEntry(ctx, charge, docs, batch); err != nil {
		return ledger.GeneratedLedger{}, err
	}

	main, fees := partitionFees(txs)
	for _, tx := range main {
		if err := validateTransaction(tx); err != nil {
			return ledger.GeneratedLedger{}, err
		}
		counter, err := g.counterparty(ctx, *tx.BusinessID, tx.Currency)
		if err == nil {
			var entry ledger.LedgerEntry
			entry, err = g.transactionEntry(ctx, charge, tx, counter)
			if err == nil {
				batch.Push(entry)
				continue
			}
		}
		if !isMiss(err) {
			return ledger.GeneratedLedger{}, err
		}
		batch.Errorf("%s", err)
	}

	feeEntries, err := g.feeEntries(ctx, charge, fees, g.cfg().FeeTaxCategoryID, "fee tax category")
	switch {
	case err == nil:
		batch.Push(feeEntries...)
	case isMiss(err):
		batch.Errorf("%s", err)
	default:
		return ledger.GeneratedLedger{}, err
	}

	miscEntries, miscErrs := g.miscExpenseEntries(ctx, charge, expenses)
	batch.Push(miscEntries...)
	for _, err := range miscErrs {
		if !isMiss(err) {
			return ledger.GeneratedLedger{}, err
		}
		batch.Errorf("%s", err)
	}

	result := batch.Result(g.cfg().Tolerance())
	g.logger.DebugContext(ctx, "generated common ledger",
		slog.String("charge_id", charge.ID.String()),
		slog.Int("records", len(result.Records)),
		slog.Bool("balanced", result.Balance.IsBalanced))
	return result, nil
}

func (g *Common) documentEntry(ctx context.Context, charge ledger.Charge, docs []ledger.Document, batch *ledger.Batch) error {
	if len(docs) == 0 {
		return nil
	}
	agg, err := documents.Aggregate(docs, charge.OwnerID)
	if errors.Is(err, documents.ErrEmptyInput) {
		return nil
	}
	if err != nil {
		return err
	}
	if agg.BusinessID == nil {
		batch.Errorf("Documents of charge %s have no counterparty", charge.ID)
		return nil
	}
	main, err := g.chargeCategory(ctx, charge, *agg.BusinessID)
	if err != nil {
		if isMiss(err) {
			batch.Errorf("%s", err)
			return nil
		}
		return err
	}
	counter, err := g.counterparty(ctx, *agg.BusinessID, agg.Currency)
	if err != nil {
		if isMiss(err) {
			batch.Errorf("%s", err)
			return nil
		}
		return err
	}
	local, rate, err := g.toLocal(ctx, agg.Amount, agg.Currency, agg.Date)
	if err != nil {
		if isMiss(err) {
			batch.Errorf("%s", err)
			return nil
		}
		return err
	}
	batch.Push(ledger.NewEntry(ledger.EntryParams{
		ChargeID:      charge.ID,
		OwnerID:       charge.OwnerID,
		Counterparty:  counter,
		Main:          main,
		Currency:      agg.Currency,
		LocalCurrency: g.localCurrency(),
		Amount:        -agg.Amount,
		LocalAmount:   -local,
		CurrencyRate:  rate,
		InvoiceDate:   agg.Date,
		ValueDate:     agg.Date,
		Description:   agg.Description,
	}))
	return nil
}
