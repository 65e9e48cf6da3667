package generators

import (
	"context"
	"fmt"

	"github.com/odyssey-erp/chargeledger/internal/ledger"
)

// BankDepositsRevaluation restates the foreign balances held with the bank deposit business at
// December 31st of the year embedded in the charge description.
type BankDepositsRevaluation struct {
	base
}

func (g *BankDepositsRevaluation) Generate(ctx context.Context, charge ledger.Charge) (ledger.GeneratedLedger, error) {
	year, err := parseDescriptionYear(charge.Description)
	if err != nil {
		return ledger.GeneratedLedger{}, err
	}
	date := yearEnd(year)
	depositBusiness, err := ledger.Require(g.cfg().BankDepositBusinessID, "bank deposit business")
	if err != nil {
		return ledger.GeneratedLedger{}, err
	}
	revaluation, err := g.categoryByID(ctx, g.cfg().RevaluationTaxCategoryID, "revaluation tax category")
	if err != nil {
		return ledger.GeneratedLedger{}, err
	}
	sums, err := g.deps.Store.BusinessBalances(ctx, charge.OwnerID, depositBusiness, date)
	if err != nil {
		return ledger.GeneratedLedger{}, err
	}

	business := ledger.BusinessRef(depositBusiness)
	batch := ledger.NewBatch(charge)
	batch.AllowUnbalanced(business)
	for _, sum := range sums {
		if sum.Currency == g.localCurrency() {
			continue
		}
		entry, emitted, err := g.revalue(ctx, charge, revaluation, date, sum, func() (ledger.AccountRef, error) {
			return business, nil
		}, fmt.Sprintf("Bank deposits revaluation %d (%s)", year, sum.Currency))
		if err != nil {
			return ledger.GeneratedLedger{}, abort(err)
		}
		if emitted {
			batch.Push(entry)
		}
	}
	return batch.Result(g.cfg().Tolerance()), nil
}
