package scan

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/redis/go-redis/v9"

	"github.com/petlink/petlink/internal/metrics"
	"github.com/petlink/petlink/internal/model"
)

// Repository persists scan events. Inserts must ignore duplicate event IDs.
type Repository interface {
	BulkInsert(ctx context.Context, events []*model.ScanEvent) error
}

// WorkerOptions tunes a Worker. Zero fields take the defaults below.
type WorkerOptions struct {
	BatchSize     int           // default 200
	BlockTimeout  time.Duration // default 5s
	InsertTries   int           // default 3
	ClaimEvery    time.Duration // default 10s
	ClaimIdle     time.Duration // default 30s
	BacklogEvery  time.Duration // default 5s
	RetryBackoff  time.Duration // first retry delay, doubled per try; default 2s
	ErrorCooldown time.Duration // pause after a failed round; default 1s
}

func (o WorkerOptions) withDefaults() WorkerOptions {
	def := func(v *time.Duration, d time.Duration) {
		if *v <= 0 {
			*v = d
		}
	}
	if o.BatchSize <= 0 {
		o.BatchSize = 200
	}
	if o.InsertTries <= 0 {
		o.InsertTries = 3
	}
	def(&o.BlockTimeout, 5*time.Second)
	def(&o.ClaimEvery, 10*time.Second)
	def(&o.ClaimIdle, 30*time.Second)
	def(&o.BacklogEvery, 5*time.Second)
	def(&o.RetryBackoff, 2*time.Second)
	def(&o.ErrorCooldown, time.Second)
	return o
}

// Worker moves scan events from the Redis stream into the database.
//
// Shutdown stops reading but lets a batch already read finish its insert
// and acknowledgement. Anything not acknowledged stays pending in the group
// and is reclaimed by the next worker.
type Worker struct {
	stream  *groupStream
	repo    Repository
	logger  *slog.Logger
	metrics metrics.Recorder
	opts    WorkerOptions

	nextClaim   time.Time
	nextBacklog time.Time

	mu      sync.Mutex
	stop    context.CancelFunc
	stopped chan struct{}
}

// NewWorker creates a scan worker reading as consumerID.
func NewWorker(client *redis.Client, repo Repository, logger *slog.Logger, consumerID string, recorder metrics.Recorder, opts WorkerOptions) *Worker {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &Worker{
		stream:  newGroupStream(client, consumerID),
		repo:    repo,
		logger:  logger.With("component", "scan.worker", "consumer_id", consumerID),
		metrics: recorder,
		opts:    opts.withDefaults(),
	}
}

// Run consumes until ctx is cancelled or Shutdown is called and returns nil
// in both cases. Inserts and acks run on ctx, so a caller that wants
// in-flight batches to survive shutdown passes a context that is not
// cancelled with the process.
func (w *Worker) Run(ctx context.Context) error {
	w.mu.Lock()
	if w.stopped != nil {
		w.mu.Unlock()
		return errors.New("scan worker already started")
	}
	reading, stop := context.WithCancel(ctx)
	w.stop, w.stopped = stop, make(chan struct{})
	w.mu.Unlock()

	defer close(w.stopped)
	defer stop()

	if err := w.stream.join(reading); err != nil {
		return err
	}
	w.logger.Info("scan_worker_started")

	for reading.Err() == nil {
		if err := w.round(ctx, reading); err != nil {
			if reading.Err() != nil {
				break
			}
			w.logger.Error("scan_worker_error", "error", err)
			select {
			case <-reading.Done():
			case <-time.After(w.opts.ErrorCooldown):
			}
		}
	}

	w.logger.Info("scan_worker_stopped")
	return nil
}

// Shutdown stops reading and waits for the current batch up to ctx's deadline.
func (w *Worker) Shutdown(ctx context.Context) error {
	w.mu.Lock()
	stop, stopped := w.stop, w.stopped
	w.mu.Unlock()
	if stopped == nil {
		return nil
	}

	stop()
	select {
	case <-stopped:
		return nil
	case <-ctx.Done():
		w.logger.Warn("scan_worker_shutdown_timeout")
		return ctx.Err()
	}
}

// round handles one batch: reclaimed messages first, otherwise new ones.
func (w *Worker) round(ctx, reading context.Context) error {
	w.reportBacklog(reading)

	msgs := w.reclaim(reading)
	if len(msgs) == 0 {
		var err error
		if msgs, err = w.stream.next(reading, w.opts.BatchSize, w.opts.BlockTimeout); err != nil {
			return err
		}
	}
	if len(msgs) == 0 {
		return nil
	}

	events, ids := w.decodeAll(ctx, msgs)
	if len(events) > 0 {
		if err := w.insertWithRetry(ctx, reading, events); err != nil {
			w.logger.Error("scan_batch_failed", "batch_size", len(events), "error", err)
			return err
		}
	}
	return w.stream.ack(ctx, ids)
}

func (w *Worker) reclaim(ctx context.Context) []redis.XMessage {
	now := time.Now()
	if now.Before(w.nextClaim) {
		return nil
	}
	w.nextClaim = now.Add(w.opts.ClaimEvery)

	msgs, err := w.stream.reclaim(ctx, w.opts.BatchSize, w.opts.ClaimIdle)
	if err != nil {
		w.logger.Warn("scan_claim_failed", "error", err)
		return nil
	}
	if len(msgs) > 0 {
		w.logger.Info("scan_reclaimed", "count", len(msgs))
	}
	return msgs
}

func (w *Worker) reportBacklog(ctx context.Context) {
	now := time.Now()
	if now.Before(w.nextBacklog) {
		return
	}
	w.nextBacklog = now.Add(w.opts.BacklogEvery)

	n, err := w.stream.backlog(ctx)
	if err != nil {
		w.logger.Warn("scan_queue_depth_failed", "error", err)
		return
	}
	w.metrics.SetScanQueueDepth(n)
}

// decodeAll returns the decodable events and the IDs of every message.
// Undecodable messages are buried in the dead-letter stream and still acked.
func (w *Worker) decodeAll(ctx context.Context, msgs []redis.XMessage) ([]*model.ScanEvent, []string) {
	events := make([]*model.ScanEvent, 0, len(msgs))
	ids := make([]string, len(msgs))

	for i, msg := range msgs {
		ids[i] = msg.ID

		event, reason, err := decodeMessage(msg)
		if err != nil {
			w.logger.Warn("scan_dead_lettered", "message_id", msg.ID, "reason", reason, "detail", err.Error())
			if err := w.stream.bury(ctx, msg, reason, err.Error()); err != nil {
				w.logger.Error("scan_dead_letter_failed", "message_id", msg.ID, "error", err)
			}
			w.metrics.IncScanEventProcessed("dead_lettered")
			continue
		}
		events = append(events, event)
	}
	return events, ids
}

// decodeMessage converts a stream message into a ScanEvent. On failure it
// returns a short reason label for the dead-letter entry.
func decodeMessage(msg redis.XMessage) (*model.ScanEvent, string, error) {
	raw, ok := msg.Values["payload"].(string)
	if !ok {
		return nil, "invalid_format", errors.New("payload field missing or not a string")
	}

	var p Payload
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return nil, "unmarshal_error", err
	}
	if err := p.Validate(); err != nil {
		return nil, "validation_error", err
	}

	return &model.ScanEvent{
		ID:          ulid.Make().String(),
		EventID:     msg.ID,
		PetCode:     p.PetCode,
		Referrer:    p.Referrer,
		UserAgent:   p.UserAgent,
		VisitorHash: p.VisitorHash,
		CountryCode: p.CountryCode,
		ScannedAt:   time.UnixMilli(p.ScannedAt).UTC(),
	}, "", nil
}

// insertWithRetry backs off exponentially between tries. Waiting is cut
// short by shutdown; the batch then stays pending for a later reclaim.
func (w *Worker) insertWithRetry(ctx, reading context.Context, events []*model.ScanEvent) error {
	delay := w.opts.RetryBackoff
	var err error

	for try := 1; ; try++ {
		start := time.Now()
		if err = w.repo.BulkInsert(ctx, events); err == nil {
			w.logger.Info("scan_batch_processed",
				"events_count", len(events),
				"duration_ms", float64(time.Since(start).Microseconds())/1000,
			)
			w.metrics.ObserveScanBatchSize(len(events))
			w.countProcessed("success", len(events))
			return nil
		}
		if try == w.opts.InsertTries {
			break
		}

		w.logger.Warn("scan_batch_retry", "attempt", try, "backoff_seconds", delay.Seconds(), "error", err)
		select {
		case <-reading.Done():
			return fmt.Errorf("bulk insert interrupted: %w", err)
		case <-time.After(delay):
		}
		delay *= 2
	}

	w.countProcessed("failed", len(events))
	return fmt.Errorf("bulk insert: %w", err)
}

func (w *Worker) countProcessed(status string, n int) {
	for i := 0; i < n; i++ {
		w.metrics.IncScanEventProcessed(status)
	}
}
