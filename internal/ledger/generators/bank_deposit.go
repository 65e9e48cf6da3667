package generators

import (
	"context"

	"github.com/odyssey-erp/chargeledger/internal/ledger"
)

// BankDeposit books the deposit (the largest transaction) and each interest transaction
// between the account and the business. The configured deposit business is allowed to stay
// unbalanced since the deposit is closed by a later charge.
type BankDeposit struct {
	base
}

func (g *BankDeposit) Generate(ctx context.Context, charge ledger.Charge) (ledger.GeneratedLedger, error) {
	depositBusiness, err := ledger.Require(g.cfg().BankDepositBusinessID, "bank deposit business")
	if err != nil {
		return ledger.GeneratedLedger{}, err
	}
	txs, err := g.deps.Store.TransactionsByCharge(ctx, charge.ID)
	if err != nil {
		return ledger.GeneratedLedger{}, err
	}
	main, interest, ok := splitMainTransaction(txs)
	if !ok {
		return ledger.GeneratedLedger{}, ledger.NewCommonError("Bank deposit charge %s has no transactions", charge.ID)
	}

	batch := ledger.NewBatch(charge)
	batch.AllowUnbalanced(ledger.BusinessRef(depositBusiness))
	for _, tx := range append([]ledger.Transaction{main}, interest...) {
		if err := validateTransaction(tx); err != nil {
			return ledger.GeneratedLedger{}, err
		}
		counter, err := g.counterparty(ctx, *tx.BusinessID, tx.Currency)
		if err != nil {
			return ledger.GeneratedLedger{}, abort(err)
		}
		entry, err := g.transactionEntry(ctx, charge, tx, counter)
		if err != nil {
			return ledger.GeneratedLedger{}, abort(err)
		}
		batch.Push(entry)
	}
	return batch.Result(g.cfg().Tolerance()), nil
}
