package ledger

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
)

// LedgerEntry is a single double-entry record ready to be persisted.
type LedgerEntry struct {
	ID                         uuid.UUID  `json:"id"`
	ChargeID                   uuid.UUID  `json:"charge_id"`
	OwnerID                    uuid.UUID  `json:"owner_id"`
	InvoiceDate                time.Time  `json:"invoice_date"`
	ValueDate                  time.Time  `json:"value_date"`
	Currency                   string     `json:"currency"`
	CurrencyRate               *float64   `json:"currency_rate,omitempty"`
	CreditAccount1             AccountRef `json:"credit_account_1"`
	CreditAmount1              *float64   `json:"credit_amount_1,omitempty"`
	LocalCurrencyCreditAmount1 float64    `json:"local_currency_credit_amount_1"`
	DebitAccount1              AccountRef `json:"debit_account_1"`
	DebitAmount1               *float64   `json:"debit_amount_1,omitempty"`
	LocalCurrencyDebitAmount1  float64    `json:"local_currency_debit_amount_1"`
	CreditAccount2             AccountRef `json:"credit_account_2"`
	CreditAmount2              *float64   `json:"credit_amount_2,omitempty"`
	LocalCurrencyCreditAmount2 float64    `json:"local_currency_credit_amount_2"`
	DebitAccount2              AccountRef `json:"debit_account_2"`
	DebitAmount2               *float64   `json:"debit_amount_2,omitempty"`
	LocalCurrencyDebitAmount2  float64    `json:"local_currency_debit_amount_2"`
	Description                string     `json:"description,omitempty"`
	Reference                  string     `json:"reference,omitempty"`
	IsCreditorCounterparty     bool       `json:"is_creditor_counterparty"`
}

// Validate checks that the entry balances itself.
func (e LedgerEntry) Validate() error {
	if e.CreditAccount1.IsZero() && e.DebitAccount1.IsZero() {
		return fmt.Errorf("ledger: entry %s has no accounts", e.ID)
	}
	if math.Abs(e.LocalCurrencyCreditAmount1-e.LocalCurrencyDebitAmount1) > 1e-9 {
		return fmt.Errorf("%w: entry %s credit %.2f debit %.2f", ErrEntryUnbalanced, e.ID, e.LocalCurrencyCreditAmount1, e.LocalCurrencyDebitAmount1)
	}
	credit := e.LocalCurrencyCreditAmount1 + e.LocalCurrencyCreditAmount2
	debit := e.LocalCurrencyDebitAmount1 + e.LocalCurrencyDebitAmount2
	if math.Abs(credit-debit) > 1e-9 {
		return fmt.Errorf("%w: entry %s totals credit %.2f debit %.2f", ErrEntryUnbalanced, e.ID, credit, debit)
	}
	return nil
}

// EntryParams describes a two-legged entry between a counterparty and a main account.
// Amounts are signed from the counterparty's point of view: positive means the counterparty
// is credited.
type EntryParams struct {
	ChargeID      uuid.UUID
	OwnerID       uuid.UUID
	Counterparty  AccountRef
	Main          AccountRef
	Currency      string
	LocalCurrency string
	Amount        float64
	LocalAmount   float64
	CurrencyRate  *float64
	InvoiceDate   time.Time
	ValueDate     time.Time
	Description   string
	Reference     string
}

// NewEntry builds a balanced entry. The counterparty takes the credit slot when the local amount
// is positive, the debit slot otherwise.
func NewEntry(p EntryParams) LedgerEntry {
	isCreditor := p.LocalAmount > 0
	local := math.Abs(p.LocalAmount)
	entry := LedgerEntry{
		ID:                         uuid.New(),
		ChargeID:                   p.ChargeID,
		OwnerID:                    p.OwnerID,
		InvoiceDate:                p.InvoiceDate,
		ValueDate:                  p.ValueDate,
		Currency:                   p.Currency,
		LocalCurrencyCreditAmount1: local,
		LocalCurrencyDebitAmount1:  local,
		Description:                p.Description,
		Reference:                  p.Reference,
		IsCreditorCounterparty:     isCreditor,
	}
	if p.Currency != "" && p.Currency != p.LocalCurrency {
		foreign := math.Abs(p.Amount)
		entry.CreditAmount1 = &foreign
		entry.DebitAmount1 = &foreign
		entry.CurrencyRate = p.CurrencyRate
	}
	if isCreditor {
		entry.CreditAccount1 = p.Counterparty
		entry.DebitAccount1 = p.Main
	} else {
		entry.CreditAccount1 = p.Main
		entry.DebitAccount1 = p.Counterparty
	}
	if entry.InvoiceDate.IsZero() {
		entry.InvoiceDate = entry.ValueDate
	}
	return entry
}
