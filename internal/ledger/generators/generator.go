// Package generators turns the source records of one charge into balanced ledger entries. Each
// charge type has exactly one generator, registered in a closed table.
package generators

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/odyssey-erp/chargeledger/internal/fx"
	"github.com/odyssey-erp/chargeledger/internal/ledger"
	"github.com/odyssey-erp/chargeledger/internal/taxcategories"
)

// Generator builds the ledger of one charge. Domain failures are returned as
// *ledger.CommonError; any other error is infrastructural or a corrupted-data invariant.
type Generator interface {
	Generate(ctx context.Context, charge ledger.Charge) (ledger.GeneratedLedger, error)
}

// Store is the read side the generators consume.
type Store interface {
	TransactionsByCharge(ctx context.Context, chargeID uuid.UUID) ([]ledger.Transaction, error)
	DocumentsByCharge(ctx context.Context, chargeID uuid.UUID) ([]ledger.Document, error)
	MiscExpensesByCharge(ctx context.Context, chargeID uuid.UUID) ([]ledger.MiscExpense, error)
	SalariesByCharge(ctx context.Context, chargeID uuid.UUID) ([]ledger.SalaryRecord, error)
	SalariesByOwner(ctx context.Context, ownerID uuid.UUID, until time.Time) ([]ledger.SalaryRecord, error)
	EmployeesByOwner(ctx context.Context, ownerID uuid.UUID) ([]ledger.Employee, error)
	AccountsByOwner(ctx context.Context, ownerID uuid.UUID) ([]ledger.FinancialAccount, error)
	AccountBalances(ctx context.Context, accountID uuid.UUID, until time.Time) ([]ledger.CurrencySum, error)
	BusinessBalances(ctx context.Context, ownerID, businessID uuid.UUID, until time.Time) ([]ledger.CurrencySum, error)
	PostedBalance(ctx context.Context, ownerID, taxCategoryID uuid.UUID, before time.Time) (float64, error)
}

// Deps wires the collaborators shared by every generator.
type Deps struct {
	Config     ledger.Config
	Store      Store
	Rates      fx.Resolver
	Categories taxcategories.Resolver
	Logger     *slog.Logger
}

// Registry maps each charge type to its generator.
type Registry map[ledger.ChargeType]Generator

// NewRegistry builds the closed generator table.
func NewRegistry(deps Deps) Registry {
	return Registry{
		ledger.ChargeTypeCommon:                  &Common{base: newBase(deps, "common")},
		ledger.ChargeTypeConversion:              &Conversion{base: newBase(deps, "conversion")},
		ledger.ChargeTypeBankDeposit:             &BankDeposit{base: newBase(deps, "bank_deposit")},
		ledger.ChargeTypeSalary:                  &Salary{base: newBase(deps, "salary")},
		ledger.ChargeTypeForeignSecurities:       &ForeignSecurities{base: newBase(deps, "foreign_securities")},
		ledger.ChargeTypeRevaluation:             &Revaluation{base: newBase(deps, "revaluation")},
		ledger.ChargeTypeBankDepositsRevaluation: &BankDepositsRevaluation{base: newBase(deps, "bank_deposits_revaluation")},
		ledger.ChargeTypePayroll:                 &PayrollReserves{base: newBase(deps, "payroll_reserves")},
	}
}

// For returns the generator registered for t. An empty type falls back to the common generator.
func (r Registry) For(t ledger.ChargeType) (Generator, error) {
	if t == "" {
		t = ledger.ChargeTypeCommon
	}
	gen, ok := r[t]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ledger.ErrUnsupportedChargeType, t)
	}
	return gen, nil
}
