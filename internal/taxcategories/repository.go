package taxcategories

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/chargeledger/internal/ledger"
)

// Repository resolves tax categories from Postgres.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) ByID(ctx context.Context, id uuid.UUID) (ledger.TaxCategory, bool, error) {
	return r.one(ctx, `SELECT id, name FROM tax_categories WHERE id = $1`, id)
}

func (r *Repository) ByBusinessAndOwner(ctx context.Context, businessID, ownerID uuid.UUID) (ledger.TaxCategory, bool, error) {
	return r.one(ctx, `SELECT tc.id, tc.name
FROM business_tax_category_match m
JOIN tax_categories tc ON tc.id = m.tax_category_id
WHERE m.business_id = $1 AND m.owner_id = $2`, businessID, ownerID)
}

func (r *Repository) AccountTaxCategory(ctx context.Context, accountID uuid.UUID, currency string) (ledger.TaxCategory, bool, error) {
	return r.one(ctx, `SELECT tc.id, tc.name
FROM financial_accounts_tax_categories fa
JOIN tax_categories tc ON tc.id = fa.tax_category_id
WHERE fa.financial_account_id = $1 AND fa.currency = $2`, accountID, strings.ToUpper(currency))
}

func (r *Repository) one(ctx context.Context, query string, args ...any) (ledger.TaxCategory, bool, error) {
	var tc ledger.TaxCategory
	err := r.pool.QueryRow(ctx, query, args...).Scan(&tc.ID, &tc.Name)
	if errors.Is(err, pgx.ErrNoRows) {
		return ledger.TaxCategory{}, false, nil
	}
	if err != nil {
		return ledger.TaxCategory{}, false, fmt.Errorf("taxcategories: query: %w", err)
	}
	return tc, true, nil
}
