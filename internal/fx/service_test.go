package fx

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

type stubSource struct {
	mu     sync.Mutex
	quotes map[string][]Quote
	calls  int
	err    error
}

func (s *stubSource) Quotes(_ context.Context, currency string, from, to time.Time) ([]Quote, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	var out []Quote
	for _, q := range s.quotes[currency] {
		if !q.Date.Before(from) && !q.Date.After(to) {
			out = append(out, q)
		}
	}
	return out, nil
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func newTestService(t *testing.T, source Source) (*Service, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	svc, err := NewService(source, "ils", NewCache(client, time.Hour), nil)
	require.NoError(t, err)
	return svc, mr
}

func TestRateSameCurrencyIsParity(t *testing.T) {
	source := &stubSource{}
	svc, _ := newTestService(t, source)

	rate, err := svc.Rate(context.Background(), "USD", "usd", date(2024, 6, 30))
	require.NoError(t, err)
	require.Equal(t, 1.0, rate)
	require.Zero(t, source.calls)
}

func TestRateToLocalAndCrossRate(t *testing.T) {
	source := &stubSource{quotes: map[string][]Quote{
		"USD": {{Currency: "USD", Date: date(2024, 6, 30), Rate: 3.7}},
		"EUR": {{Currency: "EUR", Date: date(2024, 6, 30), Rate: 4.0}},
	}}
	svc, _ := newTestService(t, source)
	ctx := context.Background()

	rate, err := svc.Rate(ctx, "USD", "ILS", date(2024, 6, 30))
	require.NoError(t, err)
	require.Equal(t, 3.7, rate)

	rate, err = svc.Rate(ctx, "ILS", "USD", date(2024, 6, 30))
	require.NoError(t, err)
	require.InDelta(t, 1/3.7, rate, 1e-12)

	rate, err = svc.Rate(ctx, "USD", "EUR", date(2024, 6, 30))
	require.NoError(t, err)
	require.InDelta(t, 0.925, rate, 1e-12)
}

func TestRateInterpolatesBetweenQuotes(t *testing.T) {
	source := &stubSource{quotes: map[string][]Quote{
		"USD": {
			{Currency: "USD", Date: date(2024, 1, 1), Rate: 3.6},
			{Currency: "USD", Date: date(2024, 1, 11), Rate: 3.8},
		},
	}}
	svc, _ := newTestService(t, source)
	svc.WithWindow(30 * 24 * time.Hour)

	rate, err := svc.Rate(context.Background(), "USD", "ILS", date(2024, 1, 6))
	require.NoError(t, err)
	require.InDelta(t, 3.7, rate, 1e-9)
}

func TestRateIsCachedInRedis(t *testing.T) {
	source := &stubSource{quotes: map[string][]Quote{
		"USD": {{Currency: "USD", Date: date(2024, 3, 1), Rate: 3.6}},
	}}
	svc, mr := newTestService(t, source)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		rate, err := svc.Rate(ctx, "USD", "ILS", date(2024, 3, 1))
		require.NoError(t, err)
		require.Equal(t, 3.6, rate)
	}
	require.Equal(t, 1, source.calls)
	require.True(t, mr.Exists("fx:ILS:USD:2024-03-01:1"))

	require.NoError(t, svc.Invalidate(ctx))
	_, err := svc.Rate(ctx, "USD", "ILS", date(2024, 3, 1))
	require.NoError(t, err)
	require.Equal(t, 2, source.calls)
}

func TestRateMissing(t *testing.T) {
	source := &stubSource{quotes: map[string][]Quote{
		"USD": {{Currency: "USD", Date: date(2023, 1, 1), Rate: 3.5}},
	}}
	svc, _ := newTestService(t, source)

	_, err := svc.Rate(context.Background(), "USD", "ILS", date(2024, 6, 30))
	var missing *MissingRateError
	require.True(t, errors.As(err, &missing))
	require.Equal(t, "USD", missing.Currency)
	require.Equal(t, date(2024, 6, 30), missing.Date)
}

func TestRateSourceFailureAndInvalidCode(t *testing.T) {
	boom := errors.New("db down")
	svc, _ := newTestService(t, &stubSource{err: boom})
	ctx := context.Background()

	_, err := svc.Rate(ctx, "USD", "ILS", date(2024, 6, 30))
	require.ErrorIs(t, err, boom)

	_, err = svc.Rate(ctx, "us$", "ILS", date(2024, 6, 30))
	require.ErrorIs(t, err, ErrInvalidCurrency)
}

func TestRateResolvesNonISOTickers(t *testing.T) {
	source := &stubSource{quotes: map[string][]Quote{
		"GRT": {{Currency: "GRT", Date: date(2024, 3, 1), Rate: 0.95}},
	}}
	svc, _ := newTestService(t, source)
	ctx := context.Background()

	rate, err := svc.Rate(ctx, "grt", "ILS", date(2024, 3, 1))
	require.NoError(t, err)
	require.Equal(t, 0.95, rate)

	_, err = svc.Rate(ctx, "USDC", "ILS", date(2024, 3, 1))
	var missing *MissingRateError
	require.True(t, errors.As(err, &missing))
	require.Equal(t, "USDC", missing.Currency)
}

func TestNormalizeCode(t *testing.T) {
	cases := map[string]string{"usd": "USD", " ILS ": "ILS", "eth": "ETH", "USDC": "USDC"}
	for in, want := range cases {
		got, err := NormalizeCode(in)
		require.NoError(t, err, in)
		require.Equal(t, want, got)
	}
	for _, in := range []string{"", "US", "TOOLONG", "us$"} {
		_, err := NormalizeCode(in)
		require.ErrorIs(t, err, ErrInvalidCurrency, in)
	}
	_, err := NormalizeCurrency("GRT")
	require.ErrorIs(t, err, ErrInvalidCurrency)
}

func TestInterpolateOneSided(t *testing.T) {
	quotes := []Quote{{Date: date(2024, 1, 5), Rate: 3.9}, {Date: date(2024, 1, 2), Rate: 3.5}}

	rate, ok := Interpolate(quotes, date(2024, 1, 9))
	require.True(t, ok)
	require.Equal(t, 3.9, rate)

	rate, ok = Interpolate(quotes, date(2024, 1, 1))
	require.True(t, ok)
	require.Equal(t, 3.5, rate)

	_, ok = Interpolate(nil, date(2024, 1, 1))
	require.False(t, ok)
}

type gatedSource struct {
	*stubSource
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func (g *gatedSource) Quotes(ctx context.Context, currency string, from, to time.Time) ([]Quote, error) {
	g.once.Do(func() { close(g.started) })
	<-g.release
	return g.stubSource.Quotes(ctx, currency, from, to)
}

func TestRateFlightSurvivesCancelledCaller(t *testing.T) {
	source := &gatedSource{
		stubSource: &stubSource{quotes: map[string][]Quote{
			"USD": {{Currency: "USD", Date: date(2024, 5, 1), Rate: 3.65}},
		}},
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
	svc, mr := newTestService(t, source)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := svc.Rate(ctx, "USD", "ILS", date(2024, 5, 1))
		done <- err
	}()

	<-source.started
	cancel()
	require.ErrorIs(t, <-done, context.Canceled)

	close(source.release)
	require.Eventually(t, func() bool {
		return mr.Exists("fx:ILS:USD:2024-05-01:1")
	}, time.Second, 10*time.Millisecond)

	rate, err := svc.Rate(context.Background(), "USD", "ILS", date(2024, 5, 1))
	require.NoError(t, err)
	require.Equal(t, 3.65, rate)
	require.Equal(t, 1, source.calls)
}
