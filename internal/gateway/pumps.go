// internal/gateway/pumps.go
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/coder/websocket"
	"github.com/jason-s-yu/uno/internal/room"
	"github.com/sirupsen/logrus"
)

// readPump feeds inbound messages to the room until the transport fails. It
// returns the reason it stopped.
func (g *Gateway) readPump(ctx context.Context, sess *room.PlayerSession, t Transport, log logrus.FieldLogger) error {
	for {
		msg, err := t.Read(ctx)
		if err != nil {
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				log.Debug("client closed connection")
			case -1:
				if ctx.Err() == nil && sess.Err() == nil {
					log.WithError(err).Warn("read failed")
				}
			default:
				log.WithError(err).Info("connection closed with status")
			}
			return fmt.Errorf("%w: %w", ErrTransportClosed, err)
		}
		g.handle(sess, msg, log)
	}
}

// writePump drains the session outbox into the transport and keeps the
// connection alive with pings. When ctx ends it flushes what is already
// queued, so a final room_closed event still reaches the client.
func (g *Gateway) writePump(ctx context.Context, cancel context.CancelCauseFunc, sess *room.PlayerSession, t Transport, log logrus.FieldLogger) {
	var tick <-chan time.Time
	if g.pingInterval > 0 {
		ticker := time.NewTicker(g.pingInterval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			if !errors.Is(context.Cause(ctx), ErrTransportClosed) {
				g.flush(sess, t, log)
			}
			return
		case ev := <-sess.Outbox():
			if err := g.write(ctx, t, ev); err != nil {
				log.WithError(err).Warn("write failed")
				cancel(fmt.Errorf("%w: %w", ErrTransportClosed, err))
				return
			}
		case <-tick:
			pingCtx, pingCancel := context.WithTimeout(ctx, g.writeTimeout*3)
			err := t.Ping(pingCtx)
			pingCancel()
			if err != nil {
				log.WithError(err).Warn("ping failed, assuming disconnect")
				cancel(fmt.Errorf("%w: %w", ErrTransportClosed, err))
				return
			}
		}
	}
}

func (g *Gateway) flush(sess *room.PlayerSession, t Transport, log logrus.FieldLogger) {
	for {
		select {
		case ev := <-sess.Outbox():
			if err := g.write(context.Background(), t, ev); err != nil {
				log.WithError(err).Debug("flush failed")
				return
			}
		default:
			return
		}
	}
}

func (g *Gateway) write(ctx context.Context, t Transport, ev room.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", ev.Type, err)
	}
	writeCtx, cancel := context.WithTimeout(ctx, g.writeTimeout)
	defer cancel()
	return t.Write(writeCtx, data)
}
