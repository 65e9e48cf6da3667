package generators

import (
	"context"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/odyssey-erp/chargeledger/internal/ledger"
)

// SalaryChargeType classifies the salary record components booked by the salary generator.
type SalaryChargeType string

const (
	SalaryChargeTypeSalary         SalaryChargeType = "salary"
	SalaryChargeTypeFunds          SalaryChargeType = "funds"
	SalaryChargeTypePension        SalaryChargeType = "pension"
	SalaryChargeTypeTrainingFund   SalaryChargeType = "trainingFund"
	SalaryChargeTypeSocialSecurity SalaryChargeType = "socialSecurity"
	SalaryChargeTypeIncomeTax      SalaryChargeType = "incomeTax"
)

const exchangePlugDescription = "Exchange ledger record"

// salaryLine is one routed component of a salary record.
type salaryLine struct {
	kind    SalaryChargeType
	payee   *uuid.UUID
	amount  float64
	expense *uuid.UUID
	setting string
}

// Salary books payroll: every salary record component is credited to its payee and debited to
// an expense category, then the payment transactions settle the payees. A residual is plugged
// to the exchange-rate category only when it comes from a foreign payment on another date.
type Salary struct {
	base
}

func (g *Salary) Generate(ctx context.Context, charge ledger.Charge) (ledger.GeneratedLedger, error) {
	var (
		records []ledger.SalaryRecord
		txs     []ledger.Transaction
	)
	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		var err error
		records, err = g.deps.Store.SalariesByCharge(egCtx, charge.ID)
		return err
	})
	eg.Go(func() error {
		var err error
		txs, err = g.deps.Store.TransactionsByCharge(egCtx, charge.ID)
		return err
	})
	if err := eg.Wait(); err != nil {
		return ledger.GeneratedLedger{}, err
	}
	if len(records) == 0 {
		return ledger.GeneratedLedger{}, ledger.NewCommonError("Salary charge %s has no salary records", charge.ID)
	}

	batch := ledger.NewBatch(charge)
	recordDates := make(map[time.Time]struct{})
	categories := make(map[uuid.UUID]ledger.AccountRef)
	for _, record := range records {
		recordDates[dateOnly(record.Date)] = struct{}{}
		if record.EmployeeID == uuid.Nil {
			batch.Errorf("Salary record for %s is missing an employee", record.Month)
			continue
		}
		for _, line := range g.routes(record) {
			if math.Abs(line.amount) < g.cfg().Tolerance() {
				continue
			}
			if line.payee == nil || *line.payee == uuid.Nil {
				batch.Errorf("Salary record of employee %s (%s) is missing a %s business", record.EmployeeID, record.Month, line.kind)
				continue
			}
			expense, err := g.expenseCategory(ctx, categories, line)
			if err != nil {
				return ledger.GeneratedLedger{}, abort(err)
			}
			batch.Push(ledger.NewEntry(ledger.EntryParams{
				ChargeID:      charge.ID,
				OwnerID:       charge.OwnerID,
				Counterparty:  ledger.BusinessRef(*line.payee),
				Main:          expense,
				Currency:      g.localCurrency(),
				LocalCurrency: g.localCurrency(),
				Amount:        line.amount,
				LocalAmount:   line.amount,
				InvoiceDate:   record.Date,
				ValueDate:     record.Date,
				Description:   string(line.kind) + " " + record.Month,
			}))
		}
	}

	main, fees := partitionFees(txs)
	foreign := false
	datesDiffer := false
	var lastTx ledger.Transaction
	for _, tx := range main {
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
		if tx.Currency != g.localCurrency() {
			foreign = true
		}
		if _, ok := recordDates[dateOnly(tx.BookingDate())]; !ok {
			datesDiffer = true
		}
		lastTx = tx
	}
	feeEntries, err := g.feeEntries(ctx, charge, fees, g.cfg().FeeTaxCategoryID, "fee tax category")
	if err != nil {
		return ledger.GeneratedLedger{}, abort(err)
	}
	batch.Push(feeEntries...)

	report := batch.Report(g.cfg().Tolerance())
	if !report.IsBalanced {
		if !foreign || !datesDiffer {
			return ledger.GeneratedLedger{}, ledger.NewCommonError("Failed to balance salary charge %s: residual %.2f", charge.ID, report.Residual)
		}
		exchange, err := g.categoryByID(ctx, g.cfg().ExchangeRateTaxCategoryID, "exchange rate tax category")
		if err != nil {
			return ledger.GeneratedLedger{}, abort(err)
		}
		for _, unbalanced := range report.UnbalancedEntities {
			amount := batch.Balance().Amount(unbalanced.Identity)
			ref := ledger.BusinessRef(uuid.MustParse(unbalanced.Identity))
			batch.Push(ledger.NewEntry(ledger.EntryParams{
				ChargeID:      charge.ID,
				OwnerID:       charge.OwnerID,
				Counterparty:  ref,
				Main:          exchange,
				Currency:      g.localCurrency(),
				LocalCurrency: g.localCurrency(),
				Amount:        -amount,
				LocalAmount:   -amount,
				InvoiceDate:   lastTx.EventDate,
				ValueDate:     lastTx.BookingDate(),
				Description:   exchangePlugDescription,
			}))
		}
		g.logger.InfoContext(ctx, "salary exchange plug added",
			slog.String("charge_id", charge.ID.String()),
			slog.Int("entities", len(report.UnbalancedEntities)))
	}
	return batch.Result(g.cfg().Tolerance()), nil
}

// routes maps a salary record to its payees and expense categories.
func (g *Salary) routes(record ledger.SalaryRecord) []salaryLine {
	routing := g.cfg().Salary
	employee := record.EmployeeID
	return []salaryLine{
		{kind: SalaryChargeTypeSalary, payee: &employee, amount: record.NetPayment,
			expense: routing.SalaryExpenseTaxCategoryID, setting: "salary expense tax category"},
		{kind: SalaryChargeTypePension, payee: record.PensionFundID, amount: record.PensionEmployee + record.PensionEmployer,
			expense: routing.PensionExpenseTaxCategoryID, setting: "pension expense tax category"},
		{kind: SalaryChargeTypeFunds, payee: record.PensionFundID, amount: record.Compensations,
			expense: routing.CompensationExpenseTaxCategoryID, setting: "compensation expense tax category"},
		{kind: SalaryChargeTypeTrainingFund, payee: record.TrainingFundID, amount: record.TrainingFundEmployee + record.TrainingFundEmployer,
			expense: routing.TrainingFundExpenseTaxCategoryID, setting: "training fund expense tax category"},
		{kind: SalaryChargeTypeSocialSecurity, payee: routing.SocialSecurityBusinessID, amount: record.SocialSecurityEmployee + record.SocialSecurityEmployer,
			expense: routing.SocialSecurityExpenseTaxCategoryID, setting: "social security expense tax category"},
		{kind: SalaryChargeTypeIncomeTax, payee: routing.TaxDeductionsBusinessID, amount: record.IncomeTax,
			expense: routing.SalaryExpenseTaxCategoryID, setting: "salary expense tax category"},
	}
}

func (g *Salary) expenseCategory(ctx context.Context, cache map[uuid.UUID]ledger.AccountRef, line salaryLine) (ledger.AccountRef, error) {
	if line.expense != nil {
		if ref, ok := cache[*line.expense]; ok {
			return ref, nil
		}
	}
	ref, err := g.categoryByID(ctx, line.expense, line.setting)
	if err != nil {
		return ledger.AccountRef{}, err
	}
	cache[*line.expense] = ref
	return ref, nil
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
