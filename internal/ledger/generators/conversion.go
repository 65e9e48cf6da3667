package generators

import (
	"context"
	"log/slog"
	"math"

	"github.com/odyssey-erp/chargeledger/internal/ledger"
)

// Conversion books a currency exchange between two owned accounts: the outgoing base leg, the
// incoming quote leg, fees, and the rate difference against the exchange-rate category. Any
// failure aborts the charge.
type Conversion struct {
	base
}

func (g *Conversion) Generate(ctx context.Context, charge ledger.Charge) (ledger.GeneratedLedger, error) {
	txs, err := g.deps.Store.TransactionsByCharge(ctx, charge.ID)
	if err != nil {
		return ledger.GeneratedLedger{}, err
	}
	main, fees := partitionFees(txs)
	if len(main) != 2 {
		return ledger.GeneratedLedger{}, ledger.NewCommonError("Conversion charge must include exactly two main transactions, got %d", len(main))
	}
	baseTx, quoteTx := main[0], main[1]
	if baseTx.Amount > 0 {
		baseTx, quoteTx = quoteTx, baseTx
	}
	if baseTx.Amount >= 0 || quoteTx.Amount <= 0 {
		return ledger.GeneratedLedger{}, ledger.NewCommonError("Conversion charge must include one outgoing and one incoming transaction")
	}
	for _, tx := range main {
		if err := validateTransaction(tx); err != nil {
			return ledger.GeneratedLedger{}, err
		}
	}
	if *baseTx.BusinessID != *quoteTx.BusinessID {
		return ledger.GeneratedLedger{}, ledger.NewCommonError("Conversion transactions must share one business")
	}
	business := ledger.BusinessRef(*baseTx.BusinessID)

	batch := ledger.NewBatch(charge)
	var net float64
	for _, tx := range []ledger.Transaction{baseTx, quoteTx} {
		entry, err := g.transactionEntry(ctx, charge, tx, business)
		if err != nil {
			return ledger.GeneratedLedger{}, abort(err)
		}
		batch.Push(entry)
		if entry.IsCreditorCounterparty {
			net += entry.LocalCurrencyCreditAmount1
		} else {
			net -= entry.LocalCurrencyDebitAmount1
		}
	}

	feeEntries, err := g.feeEntries(ctx, charge, fees, g.cfg().FeeTaxCategoryID, "fee tax category")
	if err != nil {
		return ledger.GeneratedLedger{}, abort(err)
	}
	batch.Push(feeEntries...)

	net = round2(net)
	if math.Abs(net) >= g.cfg().Tolerance() {
		exchange, err := g.categoryByID(ctx, g.cfg().ExchangeRateTaxCategoryID, "exchange rate tax category")
		if err != nil {
			return ledger.GeneratedLedger{}, abort(err)
		}
		batch.Push(ledger.NewEntry(ledger.EntryParams{
			ChargeID:      charge.ID,
			OwnerID:       charge.OwnerID,
			Counterparty:  business,
			Main:          exchange,
			Currency:      g.localCurrency(),
			LocalCurrency: g.localCurrency(),
			Amount:        -net,
			LocalAmount:   -net,
			InvoiceDate:   quoteTx.EventDate,
			ValueDate:     quoteTx.BookingDate(),
			Description:   "Conversion rate difference",
			Reference:     quoteTx.Reference,
		}))
	}

	result := batch.Result(g.cfg().Tolerance())
	g.logger.DebugContext(ctx, "generated conversion ledger",
		slog.String("charge_id", charge.ID.String()),
		slog.Float64("rate_difference", net))
	return result, nil
}
