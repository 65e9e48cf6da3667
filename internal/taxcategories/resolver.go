// Package taxcategories resolves the accounting nodes that serve as ledger counter-accounts.
package taxcategories

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/odyssey-erp/chargeledger/internal/ledger"
)

// Resolver maps ids, businesses and account/currency pairs to tax categories. A miss is
// reported through the boolean, not an error.
type Resolver interface {
	ByID(ctx context.Context, id uuid.UUID) (ledger.TaxCategory, bool, error)
	ByBusinessAndOwner(ctx context.Context, businessID, ownerID uuid.UUID) (ledger.TaxCategory, bool, error)
	AccountTaxCategory(ctx context.Context, accountID uuid.UUID, currency string) (ledger.TaxCategory, bool, error)
}

type memoValue struct {
	category ledger.TaxCategory
	found    bool
}

// Memo caches lookups of an underlying resolver for the lifetime of the value. Errors are not
// cached.
type Memo struct {
	next Resolver
	mu   sync.Mutex
	hits map[string]memoValue
}

// NewMemo wraps next.
func NewMemo(next Resolver) *Memo {
	return &Memo{next: next, hits: make(map[string]memoValue)}
}

func (m *Memo) ByID(ctx context.Context, id uuid.UUID) (ledger.TaxCategory, bool, error) {
	return m.lookup("id:"+id.String(), func() (ledger.TaxCategory, bool, error) {
		return m.next.ByID(ctx, id)
	})
}

func (m *Memo) ByBusinessAndOwner(ctx context.Context, businessID, ownerID uuid.UUID) (ledger.TaxCategory, bool, error) {
	return m.lookup("biz:"+businessID.String()+":"+ownerID.String(), func() (ledger.TaxCategory, bool, error) {
		return m.next.ByBusinessAndOwner(ctx, businessID, ownerID)
	})
}

func (m *Memo) AccountTaxCategory(ctx context.Context, accountID uuid.UUID, currency string) (ledger.TaxCategory, bool, error) {
	return m.lookup("acct:"+accountID.String()+":"+strings.ToUpper(currency), func() (ledger.TaxCategory, bool, error) {
		return m.next.AccountTaxCategory(ctx, accountID, currency)
	})
}

func (m *Memo) lookup(key string, load func() (ledger.TaxCategory, bool, error)) (ledger.TaxCategory, bool, error) {
	m.mu.Lock()
	if v, ok := m.hits[key]; ok {
		m.mu.Unlock()
		return v.category, v.found, nil
	}
	m.mu.Unlock()
	category, found, err := load()
	if err != nil {
		return ledger.TaxCategory{}, false, err
	}
	m.mu.Lock()
	m.hits[key] = memoValue{category: category, found: found}
	m.mu.Unlock()
	return category, found, nil
}

// Invalidate forgets every memoised lookup.
func (m *Memo) Invalidate(context.Context) error {
	m.mu.Lock()
	m.hits = make(map[string]memoValue)
	m.mu.Unlock()
	return nil
}
