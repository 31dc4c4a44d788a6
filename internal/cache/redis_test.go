package cache

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/jason-s-yu/uno/internal/room"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeList struct {
	mu    sync.Mutex
	items map[string][]string
	fail  error
}

func (f *fakeList) RPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd {
	cmd := redis.NewIntCmd(ctx)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		cmd.SetErr(f.fail)
		return cmd
	}
	if f.items == nil {
		f.items = map[string][]string{}
	}
	for _, v := range values {
		f.items[key] = append(f.items[key], string(v.([]byte)))
	}
	cmd.SetVal(int64(len(f.items[key])))
	return cmd
}

func (f *fakeList) list(key string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.items[key]...)
}

func quiet() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetLevel(logrus.PanicLevel)
	return l
}

func TestActionLogPublishesInOrder(t *testing.T) {
	fake := &fakeList{}
	al := NewActionLog(fake, "q", 16, quiet())

	for i := range 5 {
		al.Append(room.Record{Room: "table1", Index: uint64(i + 1), Kind: "move"})
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = al.Run(ctx)
	}()
	require.Eventually(t, func() bool { return len(fake.list("q")) == 5 }, time.Second, 5*time.Millisecond)
	cancel()
	<-done

	for i, raw := range fake.list("q") {
		var rec room.Record
		require.NoError(t, json.Unmarshal([]byte(raw), &rec))
		assert.Equal(t, uint64(i+1), rec.Index)
		assert.Equal(t, "table1", rec.Room)
	}
}

func TestActionLogDropsWhenFull(t *testing.T) {
	al := NewActionLog(&fakeList{}, "q", 2, quiet())
	for range 5 {
		al.Append(room.Record{Room: "table1", Kind: "move"})
	}
	assert.Equal(t, uint64(3), al.Dropped())
}

func TestActionLogDrainsOnShutdown(t *testing.T) {
	fake := &fakeList{}
	al := NewActionLog(fake, "", 8, quiet())
	al.Append(room.Record{Room: "table1", Kind: "join"})
	al.Append(room.Record{Room: "table1", Kind: "leave"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, al.Run(ctx))
	assert.Len(t, fake.list(DefaultQueueName), 2)
}

func TestActionLogSurvivesPushErrors(t *testing.T) {
	fake := &fakeList{fail: errors.New("connection refused")}
	al := NewActionLog(fake, "q", 8, quiet())
	al.Append(room.Record{Room: "table1", Kind: "join"})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	require.NoError(t, al.Run(ctx))
	assert.Empty(t, fake.list("q"))
}

func TestQueueRoundTrip(t *testing.T) {
	addr := os.Getenv("UNO_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("UNO_TEST_REDIS_ADDR not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	rdb, err := Connect(ctx, addr, 0)
	require.NoError(t, err)
	defer rdb.Close()

	queue := "uno_test_" + t.Name()
	defer rdb.Del(context.Background(), queue)

	al := NewActionLog(rdb, queue, 8, quiet())
	al.Append(room.Record{Room: "table1", Index: 7, Player: "alice", Kind: "draw"})
	runCtx, stop := context.WithCancel(ctx)
	stop()
	require.NoError(t, al.Run(runCtx))

	reader := NewQueueReader(rdb, queue)
	rec, ok, err := reader.Pop(ctx, time.Second)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "alice", rec.Player)
	assert.Equal(t, uint64(7), rec.Index)

	_, ok, err = reader.Pop(ctx, 100*time.Millisecond)
	require.NoError(t, err)
	assert.False(t, ok)
}
