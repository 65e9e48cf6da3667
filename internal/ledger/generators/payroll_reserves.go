package generators

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/odyssey-erp/chargeledger/internal/ledger"
	"github.com/odyssey-erp/chargeledger/internal/ledger/reserves"
)

// PayrollReserves posts the year-end vacation and recovery reserve deltas of the owner. The
// target year is read from the charge description.
type PayrollReserves struct {
	base
}

type reserveRoute struct {
	kind    reserves.Kind
	expense *uuid.UUID
	reserve *uuid.UUID
	label   string
}

func (g *PayrollReserves) Generate(ctx context.Context, charge ledger.Charge) (ledger.GeneratedLedger, error) {
	year, err := parseDescriptionYear(charge.Description)
	if err != nil {
		return ledger.GeneratedLedger{}, err
	}
	cutoff := reserves.YearEnd(year)
	routing := g.cfg().Reserves
	routes := []reserveRoute{
		{kind: reserves.KindVacation, expense: routing.VacationExpenseTaxCategoryID, reserve: routing.VacationReserveTaxCategoryID, label: "vacation"},
		{kind: reserves.KindRecovery, expense: routing.RecoveryExpenseTaxCategoryID, reserve: routing.RecoveryReserveTaxCategoryID, label: "recovery"},
	}

	reserveIDs := make([]uuid.UUID, len(routes))
	for i, route := range routes {
		id, err := ledger.Require(route.reserve, route.label+" reserve tax category")
		if err != nil {
			return ledger.GeneratedLedger{}, err
		}
		reserveIDs[i] = id
	}

	var (
		employees []ledger.Employee
		salaries  []ledger.SalaryRecord
		posted    = make([]float64, len(routes))
	)
	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		var err error
		employees, err = g.deps.Store.EmployeesByOwner(egCtx, charge.OwnerID)
		return err
	})
	eg.Go(func() error {
		var err error
		salaries, err = g.deps.Store.SalariesByOwner(egCtx, charge.OwnerID, cutoff)
		return err
	})
	for i, reserveID := range reserveIDs {
		eg.Go(func() error {
			var err error
			posted[i], err = g.deps.Store.PostedBalance(egCtx, charge.OwnerID, reserveID, cutoff)
			return err
		})
	}
	if err := eg.Wait(); err != nil {
		return ledger.GeneratedLedger{}, err
	}

	byEmployee := make(map[uuid.UUID][]ledger.SalaryRecord)
	for _, rec := range salaries {
		byEmployee[rec.EmployeeID] = append(byEmployee[rec.EmployeeID], rec)
	}
	inputs := make([]reserves.EmployeeInput, 0, len(employees))
	for _, emp := range employees {
		inputs = append(inputs, reserves.EmployeeInput{Employee: emp, Salaries: byEmployee[emp.ID]})
	}
	params := reserves.Params{
		Year:             year,
		WorkDaysPerMonth: routing.WorkDaysPerMonth,
		RecoveryDayValue: routing.RecoveryDayValue,
	}

	batch := ledger.NewBatch(charge)
	for i, route := range routes {
		res, err := reserves.Calculate(route.kind, params, inputs, posted[i])
		if err != nil {
			return ledger.GeneratedLedger{}, ledger.NewCommonError("Failed to calculate %s reserve: %v", route.label, err)
		}
		g.logger.DebugContext(ctx, "reserve calculated",
			slog.String("kind", string(route.kind)),
			slog.Int("employees", len(res.Employees)),
			slog.Float64("liability", res.Liability),
			slog.Float64("posted", res.Posted),
			slog.Float64("delta", res.Delta))
		if math.Abs(res.Delta) < g.cfg().Tolerance() {
			continue
		}
		reserveRef, err := g.categoryByID(ctx, route.reserve, route.label+" reserve tax category")
		if err != nil {
			return ledger.GeneratedLedger{}, err
		}
		expenseRef, err := g.categoryByID(ctx, route.expense, route.label+" expense tax category")
		if err != nil {
			return ledger.GeneratedLedger{}, err
		}
		batch.Push(ledger.NewEntry(ledger.EntryParams{
			ChargeID:      charge.ID,
			OwnerID:       charge.OwnerID,
			Counterparty:  reserveRef,
			Main:          expenseRef,
			Currency:      g.localCurrency(),
			LocalCurrency: g.localCurrency(),
			Amount:        res.Delta,
			LocalAmount:   res.Delta,
			InvoiceDate:   cutoff,
			ValueDate:     cutoff,
			Description:   fmt.Sprintf("%s reserve %d", route.label, year),
		}))
	}
	return batch.Result(g.cfg().Tolerance()), nil
}
