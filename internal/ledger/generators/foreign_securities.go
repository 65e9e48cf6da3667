package generators

import (
	"context"

	"github.com/odyssey-erp/chargeledger/internal/ledger"
)

// ForeignSecurities books purchases and sales through the configured securities business.
// Fees go to the dedicated fees category. When the securities business is debited by a main
// entry it holds the asset and may stay unbalanced.
type ForeignSecurities struct {
	base
}

func (g *ForeignSecurities) Generate(ctx context.Context, charge ledger.Charge) (ledger.GeneratedLedger, error) {
	securitiesID, err := ledger.Require(g.cfg().ForeignSecuritiesBusinessID, "foreign securities business")
	if err != nil {
		return ledger.GeneratedLedger{}, err
	}
	if _, err := ledger.Require(g.cfg().ForeignSecuritiesFeesTaxCategoryID, "foreign securities fees tax category"); err != nil {
		return ledger.GeneratedLedger{}, err
	}
	txs, err := g.deps.Store.TransactionsByCharge(ctx, charge.ID)
	if err != nil {
		return ledger.GeneratedLedger{}, err
	}
	main, fees := partitionFees(txs)
	if len(main) == 0 {
		return ledger.GeneratedLedger{}, ledger.NewCommonError("Foreign securities charge %s has no main transaction", charge.ID)
	}

	securities := ledger.BusinessRef(securitiesID)
	batch := ledger.NewBatch(charge)
	for _, tx := range main {
		if err := requireDebitDate(tx); err != nil {
			return ledger.GeneratedLedger{}, err
		}
		entry, err := g.transactionEntry(ctx, charge, tx, securities)
		if err != nil {
			return ledger.GeneratedLedger{}, abort(err)
		}
		if entry.DebitAccount1 == securities {
			batch.AllowUnbalanced(securities)
		}
		batch.Push(entry)
	}

	feeEntries, err := g.feeEntries(ctx, charge, fees, g.cfg().ForeignSecuritiesFeesTaxCategoryID, "foreign securities fees tax category")
	if err != nil {
		return ledger.GeneratedLedger{}, abort(err)
	}
	batch.Push(feeEntries...)
	return batch.Result(g.cfg().Tolerance()), nil
}
