package ledger

import (
	"github.com/google/uuid"
)

// Config carries the owner-specific routing the generators depend on. It is injected into each
// generator rather than read from package state so several owners can run side by side.
type Config struct {
	LocalCurrency string  `yaml:"local_currency" validate:"required,len=3,uppercase"`
	Epsilon       float64 `yaml:"epsilon" validate:"gte=0,lt=1"`

	FeeTaxCategoryID          *uuid.UUID `yaml:"fee_tax_category_id"`
	ExchangeRateTaxCategoryID *uuid.UUID `yaml:"exchange_rate_tax_category_id"`
	RevaluationTaxCategoryID  *uuid.UUID `yaml:"revaluation_tax_category_id"`

	BankDepositBusinessID *uuid.UUID `yaml:"bank_deposit_business_id"`

	ForeignSecuritiesBusinessID        *uuid.UUID `yaml:"foreign_securities_business_id"`
	ForeignSecuritiesFeesTaxCategoryID *uuid.UUID `yaml:"foreign_securities_fees_tax_category_id"`

	// InternalWalletBusinesses maps businesses that stand for an owned account to that account.
	InternalWalletBusinesses map[uuid.UUID]uuid.UUID `yaml:"internal_wallet_businesses"`

	Salary   SalaryRouting  `yaml:"salary"`
	Reserves ReserveRouting `yaml:"reserves"`
}

// SalaryRouting routes salary components to expense categories and flat authorities.
type SalaryRouting struct {
	SalaryExpenseTaxCategoryID         *uuid.UUID `yaml:"salary_expense_tax_category_id"`
	PensionExpenseTaxCategoryID        *uuid.UUID `yaml:"pension_expense_tax_category_id"`
	TrainingFundExpenseTaxCategoryID   *uuid.UUID `yaml:"training_fund_expense_tax_category_id"`
	CompensationExpenseTaxCategoryID   *uuid.UUID `yaml:"compensation_expense_tax_category_id"`
	SocialSecurityExpenseTaxCategoryID *uuid.UUID `yaml:"social_security_expense_tax_category_id"`
	SocialSecurityBusinessID           *uuid.UUID `yaml:"social_security_business_id"`
	TaxDeductionsBusinessID            *uuid.UUID `yaml:"tax_deductions_business_id"`
}

// ReserveRouting configures year-end vacation and recovery reserves.
type ReserveRouting struct {
	VacationExpenseTaxCategoryID *uuid.UUID `yaml:"vacation_expense_tax_category_id"`
	VacationReserveTaxCategoryID *uuid.UUID `yaml:"vacation_reserve_tax_category_id"`
	RecoveryExpenseTaxCategoryID *uuid.UUID `yaml:"recovery_expense_tax_category_id"`
	RecoveryReserveTaxCategoryID *uuid.UUID `yaml:"recovery_reserve_tax_category_id"`
	RecoveryDayValue             float64    `yaml:"recovery_day_value" validate:"gte=0"`
	WorkDaysPerMonth             float64    `yaml:"work_days_per_month" validate:"gte=0"`
}

// DefaultConfig returns the baseline routing for an ILS-denominated owner.
func DefaultConfig() Config {
	return Config{
		LocalCurrency: "ILS",
		Epsilon:       DefaultEpsilon,
		Reserves: ReserveRouting{
			RecoveryDayValue: 418,
			WorkDaysPerMonth: 21.67,
		},
	}
}

// Tolerance returns the configured epsilon or the default.
func (c Config) Tolerance() float64 {
	if c.Epsilon <= 0 {
		return DefaultEpsilon
	}
	return c.Epsilon
}

// Require returns the id or a CommonError naming the missing setting.
func Require(id *uuid.UUID, setting string) (uuid.UUID, error) {
	if id == nil || *id == uuid.Nil {
		return uuid.Nil, NewCommonError("Missing configured %s", setting)
	}
	return *id, nil
}

// InternalWalletAccount returns the owned account a business stands for.
func (c Config) InternalWalletAccount(businessID uuid.UUID) (uuid.UUID, bool) {
	if c.InternalWalletBusinesses == nil {
		return uuid.Nil, false
	}
	accountID, ok := c.InternalWalletBusinesses[businessID]
	return accountID, ok
}
