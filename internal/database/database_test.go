package database

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jason-s-yu/uno/internal/room"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCopier struct {
	table pgx.Identifier
	cols  []string
	rows  [][]any
}

func (f *fakeCopier) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	f.table = tableName
	f.cols = columnNames
	for rowSrc.Next() {
		vals, err := rowSrc.Values()
		if err != nil {
			return int64(len(f.rows)), err
		}
		f.rows = append(f.rows, vals)
	}
	return int64(len(f.rows)), rowSrc.Err()
}

func TestInsertEventsRows(t *testing.T) {
	now := time.Now()
	fake := &fakeCopier{}
	store := NewEventStore(fake)

	n, err := store.InsertEvents(context.Background(), []room.Record{
		{Room: "table1", Index: 1, Player: "alice", Kind: "join", Timestamp: now},
		{Room: "table1", Round: "r1", Index: 2, Player: "alice", Kind: "play", Payload: map[string]int{"card": 3}, Timestamp: now},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.Equal(t, pgx.Identifier{"room_events"}, fake.table)
	assert.Equal(t, eventColumns, fake.cols)

	first := fake.rows[0]
	assert.Equal(t, "table1", first[0])
	assert.Nil(t, first[1])
	assert.Equal(t, int64(1), first[2])
	assert.Nil(t, first[5])

	second := fake.rows[1]
	require.NotNil(t, second[1])
	assert.Equal(t, "r1", *second[1].(*string))
	assert.JSONEq(t, `{"card":3}`, string(second[5].([]byte)))
}

func TestInsertEventsEmpty(t *testing.T) {
	fake := &fakeCopier{}
	n, err := NewEventStore(fake).InsertEvents(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Nil(t, fake.table)
}

func TestSaveRoundRejectsBadID(t *testing.T) {
	err := SaveRound(context.Background(), nil, room.RoundResult{Round: "not-a-uuid"})
	require.Error(t, err)
}

func TestPostgresRoundTrip(t *testing.T) {
	dsn := os.Getenv("UNO_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("UNO_TEST_POSTGRES_DSN not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := Connect(ctx, dsn)
	require.NoError(t, err)
	defer pool.Close()
	require.NoError(t, Migrate(ctx, pool))

	round := uuid.New()
	res := room.RoundResult{
		Room:       "table1",
		Round:      round.String(),
		Winner:     "alice",
		Points:     map[string]int{"alice": 42},
		Scoreboard: map[string]int{"alice": 42, "bob": 0},
		FinishedAt: time.Now(),
	}
	require.NoError(t, SaveRound(ctx, pool, res))
	require.NoError(t, SaveRound(ctx, pool, res))

	var total int
	var won bool
	require.NoError(t, pool.QueryRow(ctx,
		`SELECT total, did_win FROM round_results WHERE round_id = $1 AND player = 'alice'`, round).Scan(&total, &won))
	assert.Equal(t, 42, total)
	assert.True(t, won)

	n, err := NewEventStore(pool).InsertEvents(ctx, []room.Record{
		{Room: "table1", Round: round.String(), Index: 1, Player: "alice", Kind: "play", Payload: map[string]int{"card": 0}, Timestamp: time.Now()},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	store := NewResultStore(pool, 4, logrus.New())
	runCtx, stop := context.WithCancel(ctx)
	res.Round = uuid.NewString()
	store.RecordRound(res)
	stop()
	require.NoError(t, store.Run(runCtx))

	var count int
	require.NoError(t, pool.QueryRow(ctx, `SELECT count(*) FROM rounds WHERE id = $1`, uuid.MustParse(res.Round)).Scan(&count))
	assert.Equal(t, 1, count)
}
