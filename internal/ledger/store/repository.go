// Package store reads the source records of charges from Postgres and persists generated
// ledger records.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/chargeledger/internal/ledger"
	"github.com/odyssey-erp/chargeledger/internal/platform/db"
)

// Repository is the pgx backed source of charges and their records.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ChargeByID loads one charge.
func (r *Repository) ChargeByID(ctx context.Context, id uuid.UUID) (ledger.Charge, error) {
	var c ledger.Charge
	var description, userDescription *string
	err := r.pool.QueryRow(ctx, `SELECT id, owner_id, type, description, user_description, business_id, tax_category_id
FROM charges WHERE id = $1`, id).Scan(&c.ID, &c.OwnerID, &c.Type, &description, &userDescription, &c.BusinessID, &c.TaxCategoryID)
	if errors.Is(err, pgx.ErrNoRows) {
		return ledger.Charge{}, ledger.ErrChargeNotFound
	}
	if err != nil {
		return ledger.Charge{}, fmt.Errorf("store: load charge: %w", err)
	}
	if description != nil {
		c.Description = *description
	}
	if userDescription != nil {
		c.UserDescription = *userDescription
	}
	return c, nil
}

// ChargesWithoutLedger lists charges that have no stored ledger records, oldest first.
func (r *Repository) ChargesWithoutLedger(ctx context.Context, ownerID *uuid.UUID, limit int) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx, `SELECT c.id FROM charges c
WHERE ($1::uuid IS NULL OR c.owner_id = $1)
  AND NOT EXISTS (SELECT 1 FROM ledger_records lr WHERE lr.charge_id = c.id)
ORDER BY c.created_at
LIMIT $2`, ownerID, limit)
	if err != nil {
		return nil, fmt.Errorf("store: list charges without ledger: %w", err)
	}
	return pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
}

func (r *Repository) TransactionsByCharge(ctx context.Context, chargeID uuid.UUID) ([]ledger.Transaction, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, charge_id, account_id, business_id, currency, amount, event_date,
       debit_date, value_date, is_fee, currency_rate, COALESCE(source_description, ''), COALESCE(source_reference, '')
FROM transactions WHERE charge_id = $1 ORDER BY event_date, id`, chargeID)
	if err != nil {
		return nil, fmt.Errorf("store: query transactions: %w", err)
	}
	defer rows.Close()
	var out []ledger.Transaction
	for rows.Next() {
		var t ledger.Transaction
		if err := rows.Scan(&t.ID, &t.ChargeID, &t.AccountID, &t.BusinessID, &t.Currency, &t.Amount, &t.EventDate,
			&t.DebitDate, &t.ValueDate, &t.IsFee, &t.CurrencyRate, &t.Description, &t.Reference); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *Repository) DocumentsByCharge(ctx context.Context, chargeID uuid.UUID) ([]ledger.Document, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, charge_id, creditor_id, debtor_id, currency_code, total_amount, vat_amount,
       date, type, COALESCE(serial_number, ''), COALESCE(file_url, '')
FROM documents WHERE charge_id = $1 ORDER BY date NULLS LAST, id`, chargeID)
	if err != nil {
		return nil, fmt.Errorf("store: query documents: %w", err)
	}
	defer rows.Close()
	var out []ledger.Document
	for rows.Next() {
		var d ledger.Document
		if err := rows.Scan(&d.ID, &d.ChargeID, &d.CreditorID, &d.DebtorID, &d.Currency, &d.TotalAmount, &d.VATAmount,
			&d.Date, &d.Type, &d.SerialNumber, &d.FileURL); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (r *Repository) MiscExpensesByCharge(ctx context.Context, chargeID uuid.UUID) ([]ledger.MiscExpense, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, charge_id, creditor_id, debtor_id, amount, currency, invoice_date, value_date,
       COALESCE(description, '')
FROM misc_expenses WHERE charge_id = $1 ORDER BY value_date, id`, chargeID)
	if err != nil {
		return nil, fmt.Errorf("store: query misc expenses: %w", err)
	}
	defer rows.Close()
	var out []ledger.MiscExpense
	for rows.Next() {
		var m ledger.MiscExpense
		if err := rows.Scan(&m.ID, &m.ChargeID, &m.CreditorID, &m.DebtorID, &m.Amount, &m.Currency, &m.InvoiceDate,
			&m.ValueDate, &m.Description); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

const salaryColumns = `employee_id, charge_id, month, date, base_salary, net_payment, income_tax,
       social_security_employee, social_security_employer, pension_fund_id, pension_employee, pension_employer,
       compensations, training_fund_id, training_fund_employee, training_fund_employer, job_percentage,
       vacation_payment, recovery_payment, vacation_days_taken`

func (r *Repository) SalariesByCharge(ctx context.Context, chargeID uuid.UUID) ([]ledger.SalaryRecord, error) {
	return r.salaries(ctx, `SELECT `+salaryColumns+` FROM salaries WHERE charge_id = $1 ORDER BY month, employee_id`, chargeID)
}

func (r *Repository) SalariesByOwner(ctx context.Context, ownerID uuid.UUID, until time.Time) ([]ledger.SalaryRecord, error) {
	return r.salaries(ctx, `SELECT `+salaryColumns+` FROM salaries
WHERE employer_id = $1 AND date <= $2 ORDER BY month, employee_id`, ownerID, until)
}

func (r *Repository) salaries(ctx context.Context, query string, args ...any) ([]ledger.SalaryRecord, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: query salaries: %w", err)
	}
	defer rows.Close()
	var out []ledger.SalaryRecord
	for rows.Next() {
		var s ledger.SalaryRecord
		if err := rows.Scan(&s.EmployeeID, &s.ChargeID, &s.Month, &s.Date, &s.BaseSalary, &s.NetPayment, &s.IncomeTax,
			&s.SocialSecurityEmployee, &s.SocialSecurityEmployer, &s.PensionFundID, &s.PensionEmployee, &s.PensionEmployer,
			&s.Compensations, &s.TrainingFundID, &s.TrainingFundEmployee, &s.TrainingFundEmployer, &s.JobPercentage,
			&s.VacationPayment, &s.RecoveryPayment, &s.VacationDaysTaken); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *Repository) EmployeesByOwner(ctx context.Context, ownerID uuid.UUID) ([]ledger.Employee, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, employer_id, name, start_work_date, end_work_date
FROM employees WHERE employer_id = $1 ORDER BY start_work_date, id`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("store: query employees: %w", err)
	}
	defer rows.Close()
	var out []ledger.Employee
	for rows.Next() {
		var e ledger.Employee
		if err := rows.Scan(&e.ID, &e.OwnerID, &e.Name, &e.StartDate, &e.EndDate); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *Repository) AccountsByOwner(ctx context.Context, ownerID uuid.UUID) ([]ledger.FinancialAccount, error) {
	rows, err := r.pool.Query(ctx, `SELECT fa.id, fa.owner_id, fa.account_number, fa.type,
       COALESCE(array_agg(DISTINCT fatc.currency) FILTER (WHERE fatc.currency IS NOT NULL), '{}')
FROM financial_accounts fa
LEFT JOIN financial_accounts_tax_categories fatc ON fatc.financial_account_id = fa.id
WHERE fa.owner_id = $1
GROUP BY fa.id
ORDER BY fa.account_number`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("store: query accounts: %w", err)
	}
	defer rows.Close()
	var out []ledger.FinancialAccount
	for rows.Next() {
		var a ledger.FinancialAccount
		if err := rows.Scan(&a.ID, &a.OwnerID, &a.Number, &a.Type, &a.Currencies); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// AccountBalances sums the ledger movements of an account's per-currency tax categories up to
// until, both in foreign and in booked local amounts.
func (r *Repository) AccountBalances(ctx context.Context, accountID uuid.UUID, until time.Time) ([]ledger.CurrencySum, error) {
	return r.sums(ctx, `SELECT fatc.currency,
       COALESCE(SUM(CASE WHEN lr.debit_entity1 = fatc.tax_category_id THEN COALESCE(lr.debit_foreign_amount1, lr.debit_local_amount1)
                         ELSE -COALESCE(lr.credit_foreign_amount1, lr.credit_local_amount1) END), 0),
       COALESCE(SUM(CASE WHEN lr.debit_entity1 = fatc.tax_category_id THEN lr.debit_local_amount1
                         ELSE -lr.credit_local_amount1 END), 0)
FROM financial_accounts_tax_categories fatc
LEFT JOIN ledger_records lr
  ON (lr.debit_entity1 = fatc.tax_category_id OR lr.credit_entity1 = fatc.tax_category_id) AND lr.value_date <= $2
WHERE fatc.financial_account_id = $1
GROUP BY fatc.currency
ORDER BY fatc.currency`, accountID, until)
}

// BusinessBalances sums the owner's ledger movements with a business per currency up to until.
func (r *Repository) BusinessBalances(ctx context.Context, ownerID, businessID uuid.UUID, until time.Time) ([]ledger.CurrencySum, error) {
	return r.sums(ctx, `SELECT lr.currency,
       COALESCE(SUM(CASE WHEN lr.debit_entity1 = $2 THEN COALESCE(lr.debit_foreign_amount1, lr.debit_local_amount1)
                         ELSE -COALESCE(lr.credit_foreign_amount1, lr.credit_local_amount1) END), 0),
       COALESCE(SUM(CASE WHEN lr.debit_entity1 = $2 THEN lr.debit_local_amount1 ELSE -lr.credit_local_amount1 END), 0)
FROM ledger_records lr
WHERE lr.owner_id = $1 AND (lr.debit_entity1 = $2 OR lr.credit_entity1 = $2) AND lr.value_date <= $3
GROUP BY lr.currency
ORDER BY lr.currency`, ownerID, businessID, until)
}

func (r *Repository) sums(ctx context.Context, query string, args ...any) ([]ledger.CurrencySum, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: query balances: %w", err)
	}
	defer rows.Close()
	var out []ledger.CurrencySum
	for rows.Next() {
		var s ledger.CurrencySum
		if err := rows.Scan(&s.Currency, &s.Foreign, &s.Local); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// PostedBalance returns credits minus debits on a tax category over records dated before before.
func (r *Repository) PostedBalance(ctx context.Context, ownerID, taxCategoryID uuid.UUID, before time.Time) (float64, error) {
	var balance float64
	err := r.pool.QueryRow(ctx, `SELECT COALESCE(SUM(
         CASE WHEN credit_entity1 = $2 THEN credit_local_amount1 ELSE 0 END
       + CASE WHEN credit_entity2 = $2 THEN COALESCE(credit_local_amount2, 0) ELSE 0 END
       - CASE WHEN debit_entity1 = $2 THEN debit_local_amount1 ELSE 0 END
       - CASE WHEN debit_entity2 = $2 THEN COALESCE(debit_local_amount2, 0) ELSE 0 END), 0)
FROM ledger_records
WHERE owner_id = $1 AND value_date < $3`, ownerID, taxCategoryID, before).Scan(&balance)
	if err != nil {
		return 0, fmt.Errorf("store: posted balance: %w", err)
	}
	return balance, nil
}

// WithTx runs fn inside one repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, WriterTx) error) error {
	if r == nil || r.pool == nil {
		return errors.New("store: repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}
