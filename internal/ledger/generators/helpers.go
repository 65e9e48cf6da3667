package generators

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"regexp"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/odyssey-erp/chargeledger/internal/fx"
	"github.com/odyssey-erp/chargeledger/internal/ledger"
)

var (
	dateInDescription = regexp.MustCompile(`\d{4}-\d{2}-\d{2}`)
	yearInDescription = regexp.MustCompile(`\b(19|20)\d{2}\b`)
)

// missError is a lookup miss: a rate or tax category that could not be resolved for one leg.
// Partial-success generators report it in Errors, the others abort with a CommonError.
type missError struct {
	msg string
}

func (e *missError) Error() string {
	return e.msg
}

func missf(format string, args ...any) error {
	return &missError{msg: fmt.Sprintf(format, args...)}
}

func isMiss(err error) bool {
	var miss *missError
	return errors.As(err, &miss)
}

// abort turns lookup misses into a CommonError and passes everything else through.
func abort(err error) error {
	var miss *missError
	if errors.As(err, &miss) {
		return ledger.NewCommonError("%s", miss.msg)
	}
	return err
}

type base struct {
	deps   Deps
	logger *slog.Logger
}

func newBase(deps Deps, component string) base {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return base{deps: deps, logger: logger.With(slog.String("component", "ledger."+component))}
}

func (b base) cfg() ledger.Config {
	return b.deps.Config
}

func (b base) localCurrency() string {
	if b.deps.Config.LocalCurrency == "" {
		return "ILS"
	}
	return b.deps.Config.LocalCurrency
}

// toLocal converts amount in currency to the local currency on date.
func (b base) toLocal(ctx context.Context, amount float64, currency string, date time.Time) (float64, *float64, error) {
	if currency == "" || currency == b.localCurrency() {
		return amount, nil, nil
	}
	rate, err := b.deps.Rates.Rate(ctx, currency, b.localCurrency(), date)
	if err != nil {
		var missing *fx.MissingRateError
		if errors.As(err, &missing) || errors.Is(err, fx.ErrInvalidCurrency) {
			return 0, nil, missf("Exchange rate for %s on %s is missing", currency, date.Format("2006-01-02"))
		}
		return 0, nil, err
	}
	return round2(amount * rate), &rate, nil
}

// localAmount prefers the bank quoted rate of tx over the resolver.
func (b base) localAmount(ctx context.Context, tx ledger.Transaction) (float64, *float64, error) {
	if tx.Currency != b.localCurrency() && tx.CurrencyRate != nil && *tx.CurrencyRate > 0 {
		rate := *tx.CurrencyRate
		return round2(tx.Amount * rate), &rate, nil
	}
	return b.toLocal(ctx, tx.Amount, tx.Currency, tx.BookingDate())
}

// categoryByID resolves a configured tax category.
func (b base) categoryByID(ctx context.Context, id *uuid.UUID, setting string) (ledger.AccountRef, error) {
	categoryID, err := ledger.Require(id, setting)
	if err != nil {
		return ledger.AccountRef{}, err
	}
	category, ok, err := b.deps.Categories.ByID(ctx, categoryID)
	if err != nil {
		return ledger.AccountRef{}, err
	}
	if !ok {
		return ledger.AccountRef{}, ledger.NewCommonError("Tax category %s (%s) not found", categoryID, setting)
	}
	return ledger.TaxCategoryRef(category), nil
}

// accountCategory resolves the per-currency tax category of a financial account.
func (b base) accountCategory(ctx context.Context, accountID uuid.UUID, currency string) (ledger.AccountRef, error) {
	category, ok, err := b.deps.Categories.AccountTaxCategory(ctx, accountID, currency)
	if err != nil {
		return ledger.AccountRef{}, err
	}
	if !ok {
		return ledger.AccountRef{}, missf("Account %s has no tax category for %s", accountID, currency)
	}
	return ledger.TaxCategoryRef(category), nil
}

// counterparty returns the ledger leg for a business. Businesses standing for an owned account
// resolve to that account's tax category.
func (b base) counterparty(ctx context.Context, businessID uuid.UUID, currency string) (ledger.AccountRef, error) {
	if accountID, ok := b.cfg().InternalWalletAccount(businessID); ok {
		return b.accountCategory(ctx, accountID, currency)
	}
	return ledger.BusinessRef(businessID), nil
}

// chargeCategory resolves the main side of a charge's documents: the charge's own category,
// else the business match for the owner.
func (b base) chargeCategory(ctx context.Context, charge ledger.Charge, businessID uuid.UUID) (ledger.AccountRef, error) {
	if charge.TaxCategoryID != nil {
		category, ok, err := b.deps.Categories.ByID(ctx, *charge.TaxCategoryID)
		if err != nil {
			return ledger.AccountRef{}, err
		}
		if ok {
			return ledger.TaxCategoryRef(category), nil
		}
	}
	category, ok, err := b.deps.Categories.ByBusinessAndOwner(ctx, businessID, charge.OwnerID)
	if err != nil {
		return ledger.AccountRef{}, err
	}
	if !ok {
		return ledger.AccountRef{}, missf("Tax category for business %s not found", businessID)
	}
	return ledger.TaxCategoryRef(category), nil
}

// transactionEntry books tx between counter and the account's tax category.
func (b base) transactionEntry(ctx context.Context, charge ledger.Charge, tx ledger.Transaction, counter ledger.AccountRef) (ledger.LedgerEntry, error) {
	local, rate, err := b.localAmount(ctx, tx)
	if err != nil {
		return ledger.LedgerEntry{}, err
	}
	account, err := b.accountCategory(ctx, tx.AccountID, tx.Currency)
	if err != nil {
		return ledger.LedgerEntry{}, err
	}
	return ledger.NewEntry(ledger.EntryParams{
		ChargeID:      charge.ID,
		OwnerID:       charge.OwnerID,
		Counterparty:  counter,
		Main:          account,
		Currency:      tx.Currency,
		LocalCurrency: b.localCurrency(),
		Amount:        tx.Amount,
		LocalAmount:   local,
		CurrencyRate:  rate,
		InvoiceDate:   tx.EventDate,
		ValueDate:     tx.BookingDate(),
		Description:   tx.Description,
		Reference:     tx.Reference,
	}), nil
}

// feeEntries books fee transactions against the configured fee category.
func (b base) feeEntries(ctx context.Context, charge ledger.Charge, fees []ledger.Transaction, category *uuid.UUID, setting string) ([]ledger.LedgerEntry, error) {
	if len(fees) == 0 {
		return nil, nil
	}
	feeRef, err := b.categoryByID(ctx, category, setting)
	if err != nil {
		return nil, err
	}
	entries := make([]ledger.LedgerEntry, 0, len(fees))
	for _, tx := range fees {
		if err := requireDebitDate(tx); err != nil {
			return nil, err
		}
		entry, err := b.transactionEntry(ctx, charge, tx, feeRef)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// miscExpenseEntries books each misc expense from its creditor to its debtor.
func (b base) miscExpenseEntries(ctx context.Context, charge ledger.Charge, expenses []ledger.MiscExpense) ([]ledger.LedgerEntry, []error) {
	var (
		entries []ledger.LedgerEntry
		errs    []error
	)
	for _, expense := range expenses {
		local, rate, err := b.toLocal(ctx, expense.Amount, expense.Currency, expense.ValueDate)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		creditor, err := b.counterparty(ctx, expense.CreditorID, expense.Currency)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		debtor, err := b.counterparty(ctx, expense.DebtorID, expense.Currency)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		entries = append(entries, ledger.NewEntry(ledger.EntryParams{
			ChargeID:      charge.ID,
			OwnerID:       charge.OwnerID,
			Counterparty:  creditor,
			Main:          debtor,
			Currency:      expense.Currency,
			LocalCurrency: b.localCurrency(),
			Amount:        math.Abs(expense.Amount),
			LocalAmount:   math.Abs(local),
			CurrencyRate:  rate,
			InvoiceDate:   expense.InvoiceDate,
			ValueDate:     expense.ValueDate,
			Description:   expense.Description,
		}))
	}
	return entries, errs
}

func validateTransaction(tx ledger.Transaction) error {
	if tx.BusinessID == nil {
		return ledger.NewCommonError("Transaction %s is missing business_id", tx.ID)
	}
	return requireDebitDate(tx)
}

func requireDebitDate(tx ledger.Transaction) error {
	if tx.DebitDate == nil {
		return ledger.NewCommonError("Transaction %s is missing debit_date", tx.ID)
	}
	return nil
}

// splitMainTransaction returns the transaction with the largest absolute amount and the rest in
// input order.
func splitMainTransaction(txs []ledger.Transaction) (ledger.Transaction, []ledger.Transaction, bool) {
	if len(txs) == 0 {
		return ledger.Transaction{}, nil, false
	}
	mainIdx := 0
	for i, tx := range txs {
		if math.Abs(tx.Amount) > math.Abs(txs[mainIdx].Amount) {
			mainIdx = i
		}
	}
	rest := make([]ledger.Transaction, 0, len(txs)-1)
	for i, tx := range txs {
		if i != mainIdx {
			rest = append(rest, tx)
		}
	}
	return txs[mainIdx], rest, true
}

// partitionFees splits transactions on their fee flag.
func partitionFees(txs []ledger.Transaction) (main, fees []ledger.Transaction) {
	for _, tx := range txs {
		if tx.IsFee {
			fees = append(fees, tx)
			continue
		}
		main = append(main, tx)
	}
	return main, fees
}

func parseDescriptionDate(description string) (time.Time, error) {
	match := dateInDescription.FindString(description)
	if match == "" {
		return time.Time{}, ledger.NewCommonError("Charge description must include a date (yyyy-mm-dd)")
	}
	date, err := time.Parse("2006-01-02", match)
	if err != nil {
		return time.Time{}, ledger.NewCommonError("Charge description date %q is malformed", match)
	}
	return date, nil
}

func parseDescriptionYear(description string) (int, error) {
	match := yearInDescription.FindString(description)
	if match == "" {
		return 0, ledger.NewCommonError("Charge description must include a year")
	}
	year, err := strconv.Atoi(match)
	if err != nil {
		return 0, ledger.NewCommonError("Charge description year %q is malformed", match)
	}
	return year, nil
}

func yearEnd(year int) time.Time {
	return time.Date(year, time.December, 31, 0, 0, 0, 0, time.UTC)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
