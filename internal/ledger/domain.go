package ledger

import (
	"time"

	"github.com/google/uuid"
)

// ChargeType enumerates the charge archetypes with a dedicated ledger generator.
type ChargeType string

const (
	ChargeTypeCommon                  ChargeType = "COMMON"
	ChargeTypeConversion              ChargeType = "CONVERSION"
	ChargeTypeBankDeposit             ChargeType = "BANK_DEPOSIT"
	ChargeTypeSalary                  ChargeType = "SALARY"
	ChargeTypeForeignSecurities       ChargeType = "FOREIGN_SECURITIES"
	ChargeTypeRevaluation             ChargeType = "REVALUATION"
	ChargeTypeBankDepositsRevaluation ChargeType = "BANK_DEPOSITS_REVALUATION"
	ChargeTypePayroll                 ChargeType = "PAYROLL"
)

// Charge is the unit of accounting work.
type Charge struct {
	ID              uuid.UUID
	OwnerID         uuid.UUID
	Type            ChargeType
	Description     string
	UserDescription string
	BusinessID      *uuid.UUID
	TaxCategoryID   *uuid.UUID
}

// Transaction is a bank ledger movement linked to a charge.
type Transaction struct {
	ID           uuid.UUID
	ChargeID     uuid.UUID
	AccountID    uuid.UUID
	BusinessID   *uuid.UUID
	Currency     string
	Amount       float64
	EventDate    time.Time
	DebitDate    *time.Time
	ValueDate    *time.Time
	IsFee        bool
	CurrencyRate *float64
	Description  string
	Reference    string
}

// BookingDate returns the date used for rate lookups and value dates.
func (t Transaction) BookingDate() time.Time {
	if t.DebitDate != nil {
		return *t.DebitDate
	}
	if t.ValueDate != nil {
		return *t.ValueDate
	}
	return t.EventDate
}

// DocumentType enumerates document kinds.
type DocumentType string

const (
	DocumentTypeInvoice        DocumentType = "INVOICE"
	DocumentTypeCreditInvoice  DocumentType = "CREDIT_INVOICE"
	DocumentTypeReceipt        DocumentType = "RECEIPT"
	DocumentTypeInvoiceReceipt DocumentType = "INVOICE_RECEIPT"
	DocumentTypeProforma       DocumentType = "PROFORMA"
	DocumentTypeUnprocessed    DocumentType = "UNPROCESSED"
	DocumentTypeOther          DocumentType = "OTHER"
)

// IsAccounting reports whether the document type participates in ledger generation.
func (t DocumentType) IsAccounting() bool {
	switch t {
	case DocumentTypeInvoice, DocumentTypeCreditInvoice, DocumentTypeReceipt, DocumentTypeInvoiceReceipt:
		return true
	}
	return false
}

// IsInvoice reports invoice-like types, which take priority over receipts.
func (t DocumentType) IsInvoice() bool {
	return t == DocumentTypeInvoice || t == DocumentTypeCreditInvoice || t == DocumentTypeInvoiceReceipt
}

// Document is an invoice, receipt or credit invoice attached to a charge.
type Document struct {
	ID           uuid.UUID
	ChargeID     uuid.UUID
	CreditorID   *uuid.UUID
	DebtorID     *uuid.UUID
	Currency     *string
	TotalAmount  *float64
	VATAmount    *float64
	Date         *time.Time
	Type         DocumentType
	SerialNumber string
	FileURL      string
}

// MiscExpense is a manually recorded movement between two financial entities.
type MiscExpense struct {
	ID          uuid.UUID
	ChargeID    uuid.UUID
	CreditorID  uuid.UUID
	DebtorID    uuid.UUID
	Amount      float64
	Currency    string
	InvoiceDate time.Time
	ValueDate   time.Time
	Description string
}

// SalaryRecord is one employee's payroll line for a month.
type SalaryRecord struct {
	EmployeeID             uuid.UUID
	ChargeID               *uuid.UUID
	Month                  string
	Date                   time.Time
	BaseSalary             float64
	NetPayment             float64
	IncomeTax              float64
	SocialSecurityEmployee float64
	SocialSecurityEmployer float64
	PensionFundID          *uuid.UUID
	PensionEmployee        float64
	PensionEmployer        float64
	Compensations          float64
	TrainingFundID         *uuid.UUID
	TrainingFundEmployee   float64
	TrainingFundEmployer   float64
	JobPercentage          float64
	VacationPayment        float64
	RecoveryPayment        float64
	VacationDaysTaken      float64
}

// Employee carries the employment window used by reserve calculations.
type Employee struct {
	ID        uuid.UUID
	OwnerID   uuid.UUID
	Name      string
	StartDate time.Time
	EndDate   *time.Time
}

// FinancialAccount is a bank, card or securities account owned by an entity.
type FinancialAccount struct {
	ID         uuid.UUID
	OwnerID    uuid.UUID
	Number     string
	Type       string
	Currencies []string
}

// TaxCategory is an accounting node used as a ledger leg.
type TaxCategory struct {
	ID   uuid.UUID
	Name string
}

// CurrencySum is a cumulative balance in one currency with its booked local value.
type CurrencySum struct {
	Currency string
	Foreign  float64
	Local    float64
}
