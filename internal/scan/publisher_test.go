package scan

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/petlink/petlink/internal/metrics"
)

// deadRedis points at a port nothing listens on, so every XADD fails fast.
func deadRedis(t *testing.T) *redis.Client {
	t.Helper()
	c := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", MaxRetries: -1, DialTimeout: 50 * time.Millisecond})
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestPublisher_FailuresAreDroppedAndDrained(t *testing.T) {
	t.Parallel()

	recorder := metrics.NewInMemory()
	p := NewPublisher(deadRedis(t), slog.New(slog.NewTextHandler(io.Discard, nil)), recorder)

	at := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		p.PublishAsync(NewPayload("PET123456", "10.0.0.1", "", "ua", "", at))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := p.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if got := recorder.Snapshot().ScanEventsPublished["dropped"]; got != 3 {
		t.Errorf("dropped = %d, want 3", got)
	}
}

func TestPublisher_SaturatedDropsImmediately(t *testing.T) {
	t.Parallel()

	recorder := metrics.NewInMemory()
	p := NewPublisher(deadRedis(t), slog.New(slog.NewTextHandler(io.Discard, nil)), recorder)
	for i := 0; i < maxInFlight; i++ {
		p.slots <- struct{}{}
	}

	p.PublishAsync(NewPayload("PET123456", "10.0.0.1", "", "ua", "", time.Now()))

	if got := recorder.Snapshot().ScanEventsPublished["dropped"]; got != 1 {
		t.Errorf("dropped = %d, want 1 without waiting", got)
	}
	if err := p.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown with nothing in flight = %v", err)
	}
}
