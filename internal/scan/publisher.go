package scan

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/petlink/petlink/internal/metrics"
)

const (
	StreamKey           = "stream:pet_scans"
	DeadLetterStreamKey = "stream:pet_scans:dlq"

	// MaxStreamLen caps the stream approximately; a stalled worker loses
	// the oldest scans rather than growing Redis without bound.
	MaxStreamLen = 100000

	// PublishTimeout bounds one background XADD.
	PublishTimeout = 100 * time.Millisecond

	// maxInFlight bounds background publishes. Scans beyond it are dropped.
	maxInFlight = 256
)

// Publisher appends scan events to the Redis stream.
type Publisher struct {
	redis   *redis.Client
	logger  *slog.Logger
	metrics metrics.Recorder

	slots    chan struct{}
	inflight sync.WaitGroup
}

func NewPublisher(client *redis.Client, logger *slog.Logger, recorder metrics.Recorder) *Publisher {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &Publisher{
		redis:   client,
		logger:  logger.With("component", "scan.publisher"),
		metrics: recorder,
		slots:   make(chan struct{}, maxInFlight),
	}
}

// Publish appends event and returns its stream ID.
func (p *Publisher) Publish(ctx context.Context, event Payload) (string, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return "", fmt.Errorf("marshal scan: %w", err)
	}

	id, err := p.redis.XAdd(ctx, &redis.XAddArgs{
		Stream: StreamKey,
		MaxLen: MaxStreamLen,
		Approx: true,
		Values: map[string]any{"payload": string(data)},
	}).Result()
	if err != nil {
		return "", fmt.Errorf("xadd: %w", err)
	}
	return id, nil
}

// PublishAsync publishes in the background so a lookup never waits on
// Redis. Failures are logged and counted as dropped.
func (p *Publisher) PublishAsync(event Payload) {
	select {
	case p.slots <- struct{}{}:
	default:
		p.logger.Warn("scan_publish_saturated", "pet_code", event.PetCode)
		p.metrics.IncScanEventPublished("dropped")
		return
	}

	p.inflight.Add(1)
	go func() {
		defer func() {
			<-p.slots
			p.inflight.Done()
		}()

		ctx, cancel := context.WithTimeout(context.Background(), PublishTimeout)
		defer cancel()

		id, err := p.Publish(ctx, event)
		if err != nil {
			p.logger.Warn("scan_publish_failed", "pet_code", event.PetCode, "error", err)
			p.metrics.IncScanEventPublished("dropped")
			return
		}
		p.logger.Debug("scan_published", "pet_code", event.PetCode, "stream_id", id)
		p.metrics.IncScanEventPublished("success")
	}()
}

// Shutdown waits for background publishes to finish. Each one is bounded
// by PublishTimeout, so this returns quickly unless ctx is already short.
func (p *Publisher) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		p.inflight.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
