// internal/historian/historian.go is the asynchronous historian: it pops room
// event records from the Redis queue and persists them to Postgres in batches.
package historian

import (
	"context"
	"time"

	"github.com/jason-s-yu/uno/internal/room"
	"github.com/sirupsen/logrus"
)

// Queue yields records in the order they were published.
type Queue interface {
	Pop(ctx context.Context, timeout time.Duration) (room.Record, bool, error)
}

// Store writes a batch of records.
type Store interface {
	InsertEvents(ctx context.Context, recs []room.Record) (int64, error)
}

// Service accumulates records and flushes them when the batch is full or
// FlushEvery has passed since the last flush.
type Service struct {
	queue      Queue
	store      Store
	log        logrus.FieldLogger
	batchSize  int
	flushEvery time.Duration
	popTimeout time.Duration
	retryDelay time.Duration

	batch     []room.Record
	lastFlush time.Time
}

type Option func(*Service)

func WithBatchSize(n int) Option {
	return func(s *Service) { s.batchSize = n }
}

func WithFlushEvery(d time.Duration) Option {
	return func(s *Service) { s.flushEvery = d }
}

// WithPopTimeout bounds each blocking pop so cancellation and interval
// flushes are noticed.
func WithPopTimeout(d time.Duration) Option {
	return func(s *Service) { s.popTimeout = d }
}

func New(q Queue, st Store, logger logrus.FieldLogger, opts ...Option) *Service {
	s := &Service{
		queue:      q,
		store:      st,
		log:        logger.WithField("component", "historian"),
		batchSize:  20,
		flushEvery: 500 * time.Millisecond,
		popTimeout: 3 * time.Second,
		retryDelay: time.Second,
	}
	for _, o := range opts {
		o(s)
	}
	if s.batchSize < 1 {
		s.batchSize = 1
	}
	s.batch = make([]room.Record, 0, s.batchSize)
	return s
}

// Run pops and flushes until ctx ends, then writes whatever is batched.
func (s *Service) Run(ctx context.Context) error {
	s.log.Info("historian started")
	s.lastFlush = time.Now()
	for {
		if ctx.Err() != nil {
			flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			s.flush(flushCtx)
			cancel()
			s.log.Info("historian shutting down")
			return nil
		}

		rec, ok, err := s.queue.Pop(ctx, s.popTimeout)
		switch {
		case err != nil && ctx.Err() == nil:
			s.log.WithError(err).Error("pop failed")
			select {
			case <-ctx.Done():
			case <-time.After(s.retryDelay):
			}
		case ok:
			s.batch = append(s.batch, rec)
		}

		if ctx.Err() != nil {
			continue
		}
		if len(s.batch) >= s.batchSize || (len(s.batch) > 0 && time.Since(s.lastFlush) >= s.flushEvery) {
			s.flush(ctx)
		}
	}
}

func (s *Service) flush(ctx context.Context) {
	s.lastFlush = time.Now()
	if len(s.batch) == 0 {
		return
	}
	n, err := s.store.InsertEvents(ctx, s.batch)
	if err != nil {
		s.log.WithError(err).WithField("records", len(s.batch)).Error("flush failed, records dropped")
	} else {
		s.log.WithField("records", n).Debug("flushed records")
	}
	s.batch = s.batch[:0]
}
