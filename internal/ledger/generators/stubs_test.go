package generators

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/odyssey-erp/chargeledger/internal/fx"
	"github.com/odyssey-erp/chargeledger/internal/ledger"
)

type stubStore struct {
	transactions     []ledger.Transaction
	documents        []ledger.Document
	expenses         []ledger.MiscExpense
	salaries         []ledger.SalaryRecord
	employees        []ledger.Employee
	accounts         []ledger.FinancialAccount
	accountBalances  map[uuid.UUID][]ledger.CurrencySum
	businessBalances map[uuid.UUID][]ledger.CurrencySum
	posted           map[uuid.UUID]float64
}

func (s *stubStore) TransactionsByCharge(context.Context, uuid.UUID) ([]ledger.Transaction, error) {
	return s.transactions, nil
}

func (s *stubStore) DocumentsByCharge(context.Context, uuid.UUID) ([]ledger.Document, error) {
	return s.documents, nil
}

func (s *stubStore) MiscExpensesByCharge(context.Context, uuid.UUID) ([]ledger.MiscExpense, error) {
	return s.expenses, nil
}

func (s *stubStore) SalariesByCharge(context.Context, uuid.UUID) ([]ledger.SalaryRecord, error) {
	return s.salaries, nil
}

func (s *stubStore) SalariesByOwner(_ context.Context, _ uuid.UUID, until time.Time) ([]ledger.SalaryRecord, error) {
	var out []ledger.SalaryRecord
	for _, rec := range s.salaries {
		if !rec.Date.After(until) {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (s *stubStore) EmployeesByOwner(context.Context, uuid.UUID) ([]ledger.Employee, error) {
	return s.employees, nil
}

func (s *stubStore) AccountsByOwner(context.Context, uuid.UUID) ([]ledger.FinancialAccount, error) {
	return s.accounts, nil
}

func (s *stubStore) AccountBalances(_ context.Context, accountID uuid.UUID, _ time.Time) ([]ledger.CurrencySum, error) {
	return s.accountBalances[accountID], nil
}

func (s *stubStore) BusinessBalances(_ context.Context, _, businessID uuid.UUID, _ time.Time) ([]ledger.CurrencySum, error) {
	return s.businessBalances[businessID], nil
}

func (s *stubStore) PostedBalance(_ context.Context, _, taxCategoryID uuid.UUID, _ time.Time) (float64, error) {
	return s.posted[taxCategoryID], nil
}

// stubRates quotes each currency against ILS regardless of date.
type stubRates map[string]float64

func (r stubRates) Rate(_ context.Context, from, to string, date time.Time) (float64, error) {
	if from == to {
		return 1, nil
	}
	rate, ok := r[from]
	if !ok {
		return 0, &fx.MissingRateError{Currency: from, Date: date}
	}
	return rate, nil
}

type stubCategories struct {
	byID       map[uuid.UUID]ledger.TaxCategory
	byBusiness map[uuid.UUID]ledger.TaxCategory
	byAccount  map[string]ledger.TaxCategory
}

func newStubCategories() *stubCategories {
	return &stubCategories{
		byID:       make(map[uuid.UUID]ledger.TaxCategory),
		byBusiness: make(map[uuid.UUID]ledger.TaxCategory),
		byAccount:  make(map[string]ledger.TaxCategory),
	}
}

func (s *stubCategories) add(name string) (*uuid.UUID, ledger.TaxCategory) {
	tc := ledger.TaxCategory{ID: uuid.New(), Name: name}
	s.byID[tc.ID] = tc
	return &tc.ID, tc
}

func (s *stubCategories) addAccount(accountID uuid.UUID, currency, name string) ledger.TaxCategory {
	tc := ledger.TaxCategory{ID: uuid.New(), Name: name}
	s.byAccount[accountID.String()+":"+currency] = tc
	return tc
}

func (s *stubCategories) ByID(_ context.Context, id uuid.UUID) (ledger.TaxCategory, bool, error) {
	tc, ok := s.byID[id]
	return tc, ok, nil
}

func (s *stubCategories) ByBusinessAndOwner(_ context.Context, businessID, _ uuid.UUID) (ledger.TaxCategory, bool, error) {
	tc, ok := s.byBusiness[businessID]
	return tc, ok, nil
}

func (s *stubCategories) AccountTaxCategory(_ context.Context, accountID uuid.UUID, currency string) (ledger.TaxCategory, bool, error) {
	tc, ok := s.byAccount[accountID.String()+":"+currency]
	return tc, ok, nil
}

type fixture struct {
	owner      uuid.UUID
	store      *stubStore
	rates      stubRates
	resolver   fx.Resolver
	categories *stubCategories
	cfg        ledger.Config

	fee, exchange, revaluation ledger.TaxCategory
}

func newFixture() *fixture {
	f := &fixture{
		owner:      uuid.New(),
		store:      &stubStore{},
		rates:      stubRates{},
		categories: newStubCategories(),
		cfg:        ledger.DefaultConfig(),
	}
	f.cfg.FeeTaxCategoryID, f.fee = f.categories.add("Bank fees")
	f.cfg.ExchangeRateTaxCategoryID, f.exchange = f.categories.add("Exchange rates")
	f.cfg.RevaluationTaxCategoryID, f.revaluation = f.categories.add("Revaluation")
	return f
}

func (f *fixture) registry() Registry {
	var rates fx.Resolver = f.rates
	if f.resolver != nil {
		rates = f.resolver
	}
	return NewRegistry(Deps{
		Config:     f.cfg,
		Store:      f.store,
		Rates:      rates,
		Categories: f.categories,
	})
}

func (f *fixture) charge(t ledger.ChargeType, description string) ledger.Charge {
	return ledger.Charge{ID: uuid.New(), OwnerID: f.owner, Type: t, Description: description}
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func tx(account, business uuid.UUID, currency string, amount float64, booked time.Time) ledger.Transaction {
	b := business
	d := booked
	return ledger.Transaction{
		ID:         uuid.New(),
		AccountID:  account,
		BusinessID: &b,
		Currency:   currency,
		Amount:     amount,
		EventDate:  booked,
		DebitDate:  &d,
	}
}

// quoteTable is an fx.Source serving fixed quotes, for generators wired to a real fx.Service.
type quoteTable map[string][]fx.Quote

func (q quoteTable) Quotes(_ context.Context, currency string, _, _ time.Time) ([]fx.Quote, error) {
	return q[currency], nil
}

func (f *fixture) useRateService(quotes quoteTable) {
	svc, err := fx.NewService(quotes, f.cfg.LocalCurrency, nil, nil)
	if err != nil {
		panic(err)
	}
	f.resolver = svc
}
