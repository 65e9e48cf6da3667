package generators

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"time"

	"github.com/odyssey-erp/chargeledger/internal/ledger"
)

// Revaluation restates every foreign-currency account of the owner at the spot rate of the
// date embedded in the charge description. Per-account lookup misses are reported in Errors.
type Revaluation struct {
	base
}

func (g *Revaluation) Generate(ctx context.Context, charge ledger.Charge) (ledger.GeneratedLedger, error) {
	date, err := parseDescriptionDate(charge.Description)
	if err != nil {
		return ledger.GeneratedLedger{}, err
	}
	revaluation, err := g.categoryByID(ctx, g.cfg().RevaluationTaxCategoryID, "revaluation tax category")
	if err != nil {
		return ledger.GeneratedLedger{}, err
	}
	accounts, err := g.deps.Store.AccountsByOwner(ctx, charge.OwnerID)
	if err != nil {
		return ledger.GeneratedLedger{}, err
	}

	batch := ledger.NewBatch(charge)
	local := g.localCurrency()
	for _, account := range accounts {
		foreign := slices.DeleteFunc(slices.Clone(account.Currencies), func(c string) bool { return c == local })
		if len(foreign) == 0 {
			continue
		}
		sums, err := g.deps.Store.AccountBalances(ctx, account.ID, date)
		if err != nil {
			return ledger.GeneratedLedger{}, err
		}
		for _, currency := range foreign {
			sum, ok := findSum(sums, currency)
			if !ok {
				continue
			}
			entry, emitted, err := g.revalue(ctx, charge, revaluation, date, sum, func() (ledger.AccountRef, error) {
				return g.accountCategory(ctx, account.ID, currency)
			}, fmt.Sprintf("Revaluation of account %s (%s)", account.Number, currency))
			if err != nil {
				if isMiss(err) {
					batch.Errorf("%s", err)
					continue
				}
				return ledger.GeneratedLedger{}, err
			}
			if emitted {
				batch.Push(entry)
			}
		}
	}

	expenses, err := g.deps.Store.MiscExpensesByCharge(ctx, charge.ID)
	if err != nil {
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
	g.logger.DebugContext(ctx, "generated revaluation ledger",
		slog.String("charge_id", charge.ID.String()),
		slog.Time("date", date),
		slog.Int("records", len(result.Records)))
	return result, nil
}

// revalue computes diff = booked local balance - foreign balance at spot. A positive diff means
// the leg is overstated, so it is credited and the revaluation category debited.
func (b base) revalue(ctx context.Context, charge ledger.Charge, revaluation ledger.AccountRef, date time.Time, sum ledger.CurrencySum, leg func() (ledger.AccountRef, error), description string) (ledger.LedgerEntry, bool, error) {
	spot, _, err := b.toLocal(ctx, sum.Foreign, sum.Currency, date)
	if err != nil {
		return ledger.LedgerEntry{}, false, err
	}
	diff := round2(sum.Local - spot)
	if math.Abs(diff) < b.cfg().Tolerance() {
		return ledger.LedgerEntry{}, false, nil
	}
	main, err := leg()
	if err != nil {
		return ledger.LedgerEntry{}, false, err
	}
	return ledger.NewEntry(ledger.EntryParams{
		ChargeID:      charge.ID,
		OwnerID:       charge.OwnerID,
		Counterparty:  revaluation,
		Main:          main,
		Currency:      b.localCurrency(),
		LocalCurrency: b.localCurrency(),
		Amount:        -diff,
		LocalAmount:   -diff,
		InvoiceDate:   date,
		ValueDate:     date,
		Description:   description,
	}), true, nil
}

func findSum(sums []ledger.CurrencySum, currency string) (ledger.CurrencySum, bool) {
	for _, sum := range sums {
		if sum.Currency == currency {
			return sum, true
		}
	}
	return ledger.CurrencySum{}, false
}
