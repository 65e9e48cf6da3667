package fx

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository reads quotes from the exchange_rates table.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Quotes implements Source.
func (r *Repository) Quotes(ctx context.Context, currency string, from, to time.Time) ([]Quote, error) {
	rows, err := r.pool.Query(ctx, `SELECT currency, rate_date, rate
FROM exchange_rates
WHERE currency = $1 AND rate_date BETWEEN $2 AND $3
ORDER BY rate_date`, currency, from, to)
	if err != nil {
		return nil, fmt.Errorf("fx: query quotes: %w", err)
	}
	defer rows.Close()
	var quotes []Quote
	for rows.Next() {
		var q Quote
		if err := rows.Scan(&q.Currency, &q.Date, &q.Rate); err != nil {
			return nil, err
		}
		quotes = append(quotes, q)
	}
	return quotes, rows.Err()
}
