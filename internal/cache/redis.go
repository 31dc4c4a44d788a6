// internal/cache/redis.go
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/jason-s-yu/uno/internal/room"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// DefaultQueueName is the Redis list the room event log is pushed to.
const DefaultQueueName = "uno_actions"

// Connect opens a Redis client and checks it answers.
func Connect(ctx context.Context, addr string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", addr, err)
	}
	return rdb, nil
}

// pusher is the part of redis.Cmdable the action log needs.
type pusher interface {
	RPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
}

// ActionLog ships room event records to a Redis list for the historian.
// Append only queues the record; Run does the network work.
type ActionLog struct {
	rdb     pusher
	queue   string
	records chan room.Record
	log     logrus.FieldLogger
	dropped atomic.Uint64
}

// NewActionLog returns a log that buffers up to buffer records between
// Append and the Run loop.
func NewActionLog(rdb pusher, queue string, buffer int, logger logrus.FieldLogger) *ActionLog {
	if queue == "" {
		queue = DefaultQueueName
	}
	if buffer <= 0 {
		buffer = 1024
	}
	return &ActionLog{
		rdb:     rdb,
		queue:   queue,
		records: make(chan room.Record, buffer),
		log:     logger.WithFields(logrus.Fields{"component": "action_log", "queue": queue}),
	}
}

// Append implements room.Journal. It never blocks: when the buffer is full
// the record is dropped and counted.
func (l *ActionLog) Append(rec room.Record) {
	select {
	case l.records <- rec:
	default:
		if n := l.dropped.Add(1); n == 1 || n%100 == 0 {
			l.log.WithField("dropped", n).Warn("action log buffer full, dropping records")
		}
	}
}

// Dropped reports how many records Append has discarded.
func (l *ActionLog) Dropped() uint64 { return l.dropped.Load() }

// Run pushes queued records until ctx ends, then drains what is left with a
// short deadline.
func (l *ActionLog) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			l.drain()
			return nil
		case rec := <-l.records:
			if err := l.publish(ctx, rec); err != nil {
				l.log.WithError(err).WithField("room", rec.Room).Error("publish failed")
			}
		}
	}
}

func (l *ActionLog) drain() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	for {
		select {
		case rec := <-l.records:
			if err := l.publish(ctx, rec); err != nil {
				l.log.WithError(err).Warn("dropping unflushed records")
				return
			}
		default:
			return
		}
	}
}

func (l *ActionLog) publish(ctx context.Context, rec room.Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal %s record: %w", rec.Kind, err)
	}
	if err := l.rdb.RPush(ctx, l.queue, data).Err(); err != nil {
		return fmt.Errorf("failed to RPush to Redis list '%s': %w", l.queue, err)
	}
	return nil
}

// QueueReader pops records off the list an ActionLog writes to.
type QueueReader struct {
	rdb   *redis.Client
	queue string
}

func NewQueueReader(rdb *redis.Client, queue string) *QueueReader {
	if queue == "" {
		queue = DefaultQueueName
	}
	return &QueueReader{rdb: rdb, queue: queue}
}

// Pop waits up to timeout for the next record. ok is false when the wait
// timed out with nothing queued.
func (q *QueueReader) Pop(ctx context.Context, timeout time.Duration) (rec room.Record, ok bool, err error) {
	res, err := q.rdb.BLPop(ctx, timeout, q.queue).Result()
	if errors.Is(err, redis.Nil) {
		return room.Record{}, false, nil
	}
	if err != nil {
		return room.Record{}, false, fmt.Errorf("BLPop %s: %w", q.queue, err)
	}
	// res[0] is the list name, res[1] the payload.
	if len(res) < 2 {
		return room.Record{}, false, nil
	}
	if err := json.Unmarshal([]byte(res[1]), &rec); err != nil {
		return room.Record{}, false, fmt.Errorf("invalid record: %w", err)
	}
	return rec, true, nil
}
