// internal/database/game.go
package database

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jason-s-yu/uno/internal/room"
	"github.com/sirupsen/logrus"
)

// TxBeginner is satisfied by *pgxpool.Pool and *pgx.Conn.
type TxBeginner interface {
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
}

// SaveRound persists one finished round and each player's points in a
// single transaction. Saving the same round twice overwrites it.
func SaveRound(ctx context.Context, db TxBeginner, res room.RoundResult) error {
	roundID, err := uuid.Parse(res.Round)
	if err != nil {
		return fmt.Errorf("round id %q: %w", res.Round, err)
	}

	players := make([]string, 0, len(res.Scoreboard))
	for p := range res.Scoreboard {
		players = append(players, p)
	}
	sort.Strings(players)

	err = pgx.BeginTxFunc(ctx, db, pgx.TxOptions{}, func(tx pgx.Tx) error {
		upsertRound := `
			INSERT INTO rounds (id, room, winner, finished_at)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (id) DO UPDATE SET winner = $3, finished_at = $4
		`
		if _, e := tx.Exec(ctx, upsertRound, roundID, res.Room, res.Winner, res.FinishedAt); e != nil {
			return e
		}

		q := `
			INSERT INTO round_results (round_id, player, points, total, did_win)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (round_id, player)
			DO UPDATE SET points = $3, total = $4, did_win = $5
		`
		for _, p := range players {
			if _, e := tx.Exec(ctx, q, roundID, p, res.Points[p], res.Scoreboard[p], p == res.Winner); e != nil {
				return e
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("tx upsert round or results: %w", err)
	}
	return nil
}

// ResultStore is a room.ResultSink backed by Postgres. RecordRound hands the
// result to a background loop so rooms never wait on the database.
type ResultStore struct {
	db      TxBeginner
	pending chan room.RoundResult
	log     logrus.FieldLogger
}

func NewResultStore(db TxBeginner, buffer int, logger logrus.FieldLogger) *ResultStore {
	if buffer <= 0 {
		buffer = 64
	}
	return &ResultStore{
		db:      db,
		pending: make(chan room.RoundResult, buffer),
		log:     logger.WithField("component", "results"),
	}
}

func (s *ResultStore) RecordRound(res room.RoundResult) {
	select {
	case s.pending <- res:
	default:
		s.log.WithFields(logrus.Fields{"room": res.Room, "round": res.Round}).Warn("result queue full, round not saved")
	}
}

// Run saves queued rounds until ctx ends. Rounds still queued at that point
// get a few seconds to be written.
func (s *ResultStore) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			for {
				select {
				case res := <-s.pending:
					s.save(flushCtx, res)
				default:
					return nil
				}
			}
		case res := <-s.pending:
			s.save(ctx, res)
		}
	}
}

func (s *ResultStore) save(ctx context.Context, res room.RoundResult) {
	log := s.log.WithFields(logrus.Fields{"room": res.Room, "round": res.Round})
	if err := SaveRound(ctx, s.db, res); err != nil {
		log.WithError(err).Error("failed to save round")
		return
	}
	log.WithField("winner", res.Winner).Debug("round saved")
}
