// internal/handlers/ws_test.go
package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/jason-s-yu/uno/internal/gateway"
	"github.com/jason-s-yu/uno/internal/room"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type wireEvent struct {
	Type   string `json:"type"`
	Reason string `json:"reason"`
	State  *struct {
		Status  string `json:"status"`
		Players []struct {
			Name  string `json:"name"`
			State string `json:"state"`
		} `json:"players"`
	} `json:"state"`
}

func dial(t *testing.T, ctx context.Context, ts *testServer, path string, header http.Header) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + path
	c, _, err := websocket.Dial(ctx, url, &websocket.DialOptions{
		Subprotocols: []string{gateway.Subprotocol},
		HTTPHeader:   header,
	})
	require.NoError(t, err)
	return c
}

func readEvent(t *testing.T, ctx context.Context, c *websocket.Conn) wireEvent {
	t.Helper()
	_, data, err := c.Read(ctx)
	require.NoError(t, err)
	var ev wireEvent
	require.NoError(t, json.Unmarshal(data, &ev))
	return ev
}

// closeErr reads until the server closes the connection.
func closeErr(ctx context.Context, c *websocket.Conn) error {
	for {
		if _, _, err := c.Read(ctx); err != nil {
			return err
		}
	}
}

func TestSocketWithSeatToken(t *testing.T) {
	ts := newTestServer(t, true)
	ts.do(t, http.MethodPost, "/rooms/table1", nil, nil)
	_, body := ts.do(t, http.MethodPost, "/rooms/table1/players/alice", nil, nil)
	token := body["token"].(string)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	c := dial(t, ctx, ts, "/rooms/table1/players/alice/ws?token="+token, nil)
	defer c.CloseNow()

	ev := readEvent(t, ctx, c)
	assert.Equal(t, room.EventState, ev.Type)
	assert.Equal(t, "attach", ev.Reason)
	require.Len(t, ev.State.Players, 1)
	assert.Equal(t, "connected", ev.State.Players[0].State)
}

func TestSocketWithSeatCookie(t *testing.T) {
	ts := newTestServer(t, true)
	ts.do(t, http.MethodPost, "/rooms/table1", nil, nil)
	_, body := ts.do(t, http.MethodPost, "/rooms/table1/players/bob", nil, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	header := http.Header{}
	header.Set("Cookie", SeatCookie+"="+body["token"].(string))
	c := dial(t, ctx, ts, "/rooms/table1/players/bob/ws", header)
	defer c.CloseNow()
	assert.Equal(t, "attach", readEvent(t, ctx, c).Reason)
}

func TestSocketRejectsMissingToken(t *testing.T) {
	ts := newTestServer(t, true)
	ts.do(t, http.MethodPost, "/rooms/table1", nil, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	c := dial(t, ctx, ts, "/rooms/table1/players/alice/ws", nil)
	defer c.CloseNow()
	assert.Equal(t, gateway.CodeBadToken, websocket.CloseStatus(closeErr(ctx, c)))
}

func TestSocketTokenForOtherSeat(t *testing.T) {
	ts := newTestServer(t, true)
	ts.do(t, http.MethodPost, "/rooms/table1", nil, nil)
	_, body := ts.do(t, http.MethodPost, "/rooms/table1/players/alice", nil, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	c := dial(t, ctx, ts, "/rooms/table1/players/mallory/ws?token="+body["token"].(string), nil)
	defer c.CloseNow()
	assert.Equal(t, gateway.CodeBadToken, websocket.CloseStatus(closeErr(ctx, c)))
}

func TestSocketRequiresSubprotocol(t *testing.T) {
	ts := newTestServer(t, false)
	ts.do(t, http.MethodPost, "/rooms/table1", nil, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/rooms/table1/players/alice/ws"
	c, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)
	defer c.CloseNow()
	assert.Equal(t, gateway.CodeBadSubprotocol, websocket.CloseStatus(closeErr(ctx, c)))
	assert.Empty(t, mustRoom(t, ts.reg, "table1").Snapshot("").Players)
}

func TestSocketSeesRoomClose(t *testing.T) {
	ts := newTestServer(t, false)
	ts.do(t, http.MethodPost, "/rooms/table1", nil, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	c := dial(t, ctx, ts, "/rooms/table1/players/alice/ws", nil)
	defer c.CloseNow()
	readEvent(t, ctx, c)

	resp, _ := ts.do(t, http.MethodPost, "/rooms/table1/close", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	sawClosed := false
	var err error
	for {
		var data []byte
		_, data, err = c.Read(ctx)
		if err != nil {
			break
		}
		var ev wireEvent
		require.NoError(t, json.Unmarshal(data, &ev))
		if ev.Type == room.EventRoomClosed {
			sawClosed = true
		}
	}
	assert.True(t, sawClosed)
	assert.Equal(t, gateway.CodeRoomClosed, websocket.CloseStatus(err))
}

func mustRoom(t *testing.T, reg *room.Registry, name string) *room.Room {
	t.Helper()
	r, err := reg.GetRoom(name)
	require.NoError(t, err)
	return r
}
