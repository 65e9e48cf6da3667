package fx

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/sync/singleflight"
)

// DefaultWindow bounds how far from the requested date a quote may be used.
const DefaultWindow = 7 * 24 * time.Hour

type cachedRate struct {
	Rate float64 `json:"rate"`
}

// Service resolves rates through a Redis read-through cache, deduplicating concurrent
// lookups and guarding the quote source with a circuit breaker.
type Service struct {
	source  Source
	local   string
	cache   *Cache
	breaker *gobreaker.CircuitBreaker
	group   singleflight.Group
	window  time.Duration
	logger  *slog.Logger
}

// NewService constructs the resolver for localCurrency.
func NewService(source Source, localCurrency string, cache *Cache, logger *slog.Logger) (*Service, error) {
	local, err := NormalizeCurrency(localCurrency)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		source:  source,
		local:   local,
		cache:   cache,
		breaker: NewBreaker("fx-quotes"),
		window:  DefaultWindow,
		logger:  logger.With(slog.String("component", "fx")),
	}, nil
}

// WithWindow overrides the staleness window.
func (s *Service) WithWindow(window time.Duration) {
	if window > 0 {
		s.window = window
	}
}

// LocalCurrency returns the canonical local currency code.
func (s *Service) LocalCurrency() string {
	return s.local
}

// Rate returns how many units of to one unit of from is worth on date. Cross rates go through
// the local currency.
func (s *Service) Rate(ctx context.Context, from, to string, date time.Time) (float64, error) {
	fromCode, err := NormalizeCode(from)
	if err != nil {
		return 0, err
	}
	toCode, err := NormalizeCode(to)
	if err != nil {
		return 0, err
	}
	if fromCode == toCode {
		return 1, nil
	}
	fromRate, err := s.toLocal(ctx, fromCode, date)
	if err != nil {
		return 0, err
	}
	toRate, err := s.toLocal(ctx, toCode, date)
	if err != nil {
		return 0, err
	}
	return fromRate / toRate, nil
}

// Invalidate drops every cached rate.
func (s *Service) Invalidate(ctx context.Context) error {
	return s.cache.Bump(ctx)
}

func (s *Service) toLocal(ctx context.Context, code string, date time.Time) (float64, error) {
	if code == s.local {
		return 1, nil
	}
	day := dateOnly(date)
	key, err := s.cache.BuildKey(ctx, s.local, code, day.Format("2006-01-02"))
	if err != nil {
		return 0, fmt.Errorf("fx: cache key: %w", err)
	}
	// The flight outlives the caller that started it; its cancellation must not fail the others.
	flightCtx := context.WithoutCancel(ctx)
	resultChan := s.group.DoChan(key, func() (any, error) {
		var cached cachedRate
		err := s.cache.FetchJSON(flightCtx, key, &cached, func(ctx context.Context) (any, error) {
			return s.load(ctx, code, day)
		})
		return cached.Rate, err
	})
	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	case res := <-resultChan:
		if res.Err != nil {
			return 0, res.Err
		}
		return res.Val.(float64), nil
	}
}

func (s *Service) load(ctx context.Context, code string, day time.Time) (any, error) {
	out, err := s.breaker.Execute(func() (any, error) {
		return s.source.Quotes(ctx, code, day.Add(-s.window), day.Add(s.window))
	})
	if err != nil {
		s.logger.WarnContext(ctx, "quote source failed", slog.String("currency", code), slog.Any("error", err))
		return nil, fmt.Errorf("fx: load quotes %s: %w", code, err)
	}
	quotes, _ := out.([]Quote)
	rate, ok := Interpolate(quotes, day)
	if !ok || rate <= 0 {
		return nil, &MissingRateError{Currency: code, Date: day}
	}
	return cachedRate{Rate: rate}, nil
}
