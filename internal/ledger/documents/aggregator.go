// Package documents reduces the invoices and receipts attached to one charge into a single
// normalized record.
package documents

import (
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/chargeledger/internal/ledger"
)

// Aggregated is the merged view of a charge's documents. Amount is signed from the owner's
// point of view: positive when the business owes the owner, negative when the owner owes the
// business.
type Aggregated struct {
	Amount      float64
	Currency    string
	BusinessID  *uuid.UUID
	Date        time.Time
	Type        ledger.DocumentType
	Description string
}

type normalized struct {
	doc        ledger.Document
	businessID *uuid.UUID
	amount     decimal.Decimal
}

// Aggregate merges docs for selfID. Every violated precondition is returned as an
// *AggregationError wrapping one of the package sentinels.
func Aggregate(docs []ledger.Document, selfID uuid.UUID) (Aggregated, error) {
	filtered := filterAccounting(docs)
	if len(filtered) == 0 {
		return Aggregated{}, fail("filter", uuid.Nil, ErrEmptyInput)
	}
	filtered = preferInvoices(filtered)

	items := make([]normalized, 0, len(filtered))
	for _, doc := range filtered {
		item, err := normalize(doc, selfID)
		if err != nil {
			return Aggregated{}, err
		}
		items = append(items, item)
	}

	currency, err := singleCurrency(filtered)
	if err != nil {
		return Aggregated{}, err
	}
	businessID, err := singleBusiness(items)
	if err != nil {
		return Aggregated{}, err
	}

	total := decimal.Zero
	var latest time.Time
	descriptions := make([]string, 0, len(items))
	for _, item := range items {
		total = total.Add(item.amount)
		if item.doc.Date != nil && item.doc.Date.After(latest) {
			latest = *item.doc.Date
		}
		if desc := describe(item.doc); desc != "" {
			descriptions = append(descriptions, desc)
		}
	}
	if latest.IsZero() {
		return Aggregated{}, fail("date", uuid.Nil, ErrMissingDate)
	}

	return Aggregated{
		Amount:      total.InexactFloat64(),
		Currency:    currency,
		BusinessID:  businessID,
		Date:        latest,
		Type:        filtered[0].Type,
		Description: strings.Join(descriptions, "\n"),
	}, nil
}

func filterAccounting(docs []ledger.Document) []ledger.Document {
	out := make([]ledger.Document, 0, len(docs))
	for _, doc := range docs {
		if doc.Type.IsAccounting() {
			out = append(out, doc)
		}
	}
	return out
}

// preferInvoices drops receipts when any invoice-type document is present.
func preferInvoices(docs []ledger.Document) []ledger.Document {
	hasInvoice := false
	for _, doc := range docs {
		if doc.Type.IsInvoice() {
			hasInvoice = true
			break
		}
	}
	if !hasInvoice {
		return docs
	}
	out := make([]ledger.Document, 0, len(docs))
	for _, doc := range docs {
		if doc.Type.IsInvoice() {
			out = append(out, doc)
		}
	}
	return out
}

func normalize(doc ledger.Document, selfID uuid.UUID) (normalized, error) {
	if doc.CreditorID == nil && doc.DebtorID == nil {
		return normalized{}, fail("counterparty", doc.ID, ErrInvalidDocumentState)
	}
	selfCreditor := doc.CreditorID != nil && *doc.CreditorID == selfID
	selfDebtor := doc.DebtorID != nil && *doc.DebtorID == selfID
	if selfCreditor && selfDebtor {
		return normalized{}, fail("counterparty", doc.ID, ErrInvalidDocumentState)
	}
	if !selfCreditor && !selfDebtor {
		return normalized{}, fail("counterparty", doc.ID, ErrNotOwned)
	}
	if doc.TotalAmount == nil {
		return normalized{}, fail("amount", doc.ID, ErrMissingAmount)
	}

	businessIsCreditor := selfDebtor
	businessID := doc.DebtorID
	if businessIsCreditor {
		businessID = doc.CreditorID
	}

	amount := decimal.NewFromFloat(*doc.TotalAmount)
	if businessIsCreditor {
		amount = amount.Neg()
	}
	if doc.Type == ledger.DocumentTypeCreditInvoice {
		amount = amount.Neg()
	}
	return normalized{doc: doc, businessID: businessID, amount: amount}, nil
}

func singleCurrency(docs []ledger.Document) (string, error) {
	seen := make(map[string]struct{})
	var currency string
	for _, doc := range docs {
		if doc.Currency == nil || strings.TrimSpace(*doc.Currency) == "" {
			return "", fail("currency", doc.ID, ErrMissingCurrency)
		}
		code := strings.ToUpper(strings.TrimSpace(*doc.Currency))
		if _, ok := seen[code]; !ok {
			seen[code] = struct{}{}
			currency = code
		}
	}
	if len(seen) > 1 {
		return "", fail("currency", uuid.Nil, ErrMixedCurrencies)
	}
	return currency, nil
}

func singleBusiness(items []normalized) (*uuid.UUID, error) {
	var found *uuid.UUID
	for _, item := range items {
		if item.businessID == nil {
			continue
		}
		if found == nil {
			id := *item.businessID
			found = &id
			continue
		}
		if *found != *item.businessID {
			return nil, fail("business", item.doc.ID, ErrMixedBusinesses)
		}
	}
	return found, nil
}

func describe(doc ledger.Document) string {
	if serial := strings.TrimSpace(doc.SerialNumber); serial != "" {
		return serial
	}
	if name := fileName(doc.FileURL); name != "" {
		return name
	}
	if doc.ID == uuid.Nil {
		return ""
	}
	return doc.ID.String()[:8]
}

func fileName(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	p := raw
	if parsed, err := url.Parse(raw); err == nil && parsed.Path != "" {
		p = parsed.Path
	}
	name := path.Base(p)
	if name == "." || name == "/" {
		return ""
	}
	return name
}
