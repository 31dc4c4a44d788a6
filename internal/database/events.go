// internal/database/events.go
package database

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jason-s-yu/uno/internal/room"
)

// Copier is satisfied by *pgxpool.Pool, *pgx.Conn and pgx.Tx.
type Copier interface {
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)
}

var eventColumns = []string{"room", "round", "idx", "player", "kind", "payload", "created_at"}

// eventRow turns a record into a room_events row. Empty round and player
// become NULL.
func eventRow(rec room.Record) ([]any, error) {
	var payload []byte
	if rec.Payload != nil {
		b, err := json.Marshal(rec.Payload)
		if err != nil {
			return nil, fmt.Errorf("payload of %s record %d: %w", rec.Room, rec.Index, err)
		}
		payload = b
	}
	return []any{
		rec.Room,
		nullable(rec.Round),
		int64(rec.Index),
		nullable(rec.Player),
		rec.Kind,
		payload,
		rec.Timestamp,
	}, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// EventStore bulk-loads room event records.
type EventStore struct {
	db Copier
}

func NewEventStore(db Copier) *EventStore {
	return &EventStore{db: db}
}

// InsertEvents copies recs into room_events and reports the rows written.
func (s *EventStore) InsertEvents(ctx context.Context, recs []room.Record) (int64, error) {
	if len(recs) == 0 {
		return 0, nil
	}
	n, err := s.db.CopyFrom(ctx, pgx.Identifier{"room_events"}, eventColumns,
		pgx.CopyFromSlice(len(recs), func(i int) ([]any, error) {
			return eventRow(recs[i])
		}))
	if err != nil {
		return n, fmt.Errorf("copy room_events: %w", err)
	}
	return n, nil
}
