package scan

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// ConsumerGroup is the Redis consumer group shared by all scan workers.
const ConsumerGroup = "scan_workers"

const deadLetterMaxLen = 10000

// groupStream is the consumer side of the scan stream for one consumer.
type groupStream struct {
	rdb      *redis.Client
	consumer string
	claimAt  string // XAUTOCLAIM cursor
}

func newGroupStream(rdb *redis.Client, consumer string) *groupStream {
	return &groupStream{rdb: rdb, consumer: consumer, claimAt: "0-0"}
}

// join creates the group, and the stream with it, unless it already exists.
func (s *groupStream) join(ctx context.Context) error {
	err := s.rdb.XGroupCreateMkStream(ctx, StreamKey, ConsumerGroup, "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("create consumer group: %w", err)
	}
	return nil
}

// next blocks up to block for messages never delivered to the group.
func (s *groupStream) next(ctx context.Context, count int, block time.Duration) ([]redis.XMessage, error) {
	res, err := s.rdb.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    ConsumerGroup,
		Consumer: s.consumer,
		Streams:  []string{StreamKey, ">"},
		Count:    int64(count),
		Block:    block,
	}).Result()
	switch {
	case errors.Is(err, redis.Nil):
		return nil, nil
	case err != nil:
		return nil, fmt.Errorf("xreadgroup: %w", err)
	case len(res) == 0:
		return nil, nil
	}
	return res[0].Messages, nil
}

// reclaim takes over messages another consumer left pending for longer
// than idle, walking the pending list across calls.
func (s *groupStream) reclaim(ctx context.Context, count int, idle time.Duration) ([]redis.XMessage, error) {
	msgs, cursor, err := s.rdb.XAutoClaim(ctx, &redis.XAutoClaimArgs{
		Stream:   StreamKey,
		Group:    ConsumerGroup,
		Consumer: s.consumer,
		MinIdle:  idle,
		Start:    s.claimAt,
		Count:    int64(count),
	}).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("xautoclaim: %w", err)
	}
	if cursor != "" {
		s.claimAt = cursor
	}
	return msgs, nil
}

func (s *groupStream) ack(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	if err := s.rdb.XAck(ctx, StreamKey, ConsumerGroup, ids...).Err(); err != nil {
		return fmt.Errorf("xack: %w", err)
	}
	return nil
}

// backlog is the number of entries the group has not finished: pending
// plus not yet delivered.
func (s *groupStream) backlog(ctx context.Context) (int64, error) {
	groups, err := s.rdb.XInfoGroups(ctx, StreamKey).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return 0, fmt.Errorf("xinfo groups: %w", err)
	}
	for _, g := range groups {
		if g.Name == ConsumerGroup {
			return g.Pending + g.Lag, nil
		}
	}
	return 0, nil
}

// bury copies an undecodable message to the dead-letter stream.
func (s *groupStream) bury(ctx context.Context, msg redis.XMessage, reason, detail string) error {
	return s.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: DeadLetterStreamKey,
		MaxLen: deadLetterMaxLen,
		Approx: true,
		Values: map[string]any{
			"original_id":      msg.ID,
			"original_stream":  StreamKey,
			"reason":           reason,
			"detail":           detail,
			"payload":          msg.Values["payload"],
			"dead_lettered_at": time.Now().UTC().Format(time.RFC3339),
		},
	}).Err()
}
