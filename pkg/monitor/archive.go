// Postgres archive for monitor sessions
//
// Copyright (C) 2026 Go binding
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package monitor

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"axl-go/pkg/axt"
)

// archiveBatch is how many rows accumulate before a background copy.
const archiveBatch = 512

const archiveSchema = `
CREATE TABLE IF NOT EXISTS monitor_samples (
    session_id UUID        NOT NULL,
    seq        BIGINT      NOT NULL,
    rack_time  DOUBLE PRECISION NOT NULL,
    item       TEXT        NOT NULL,
    value      DOUBLE PRECISION NOT NULL,
    PRIMARY KEY (session_id, seq, item)
)`

// Archive copies monitor records into Postgres. One archive may serve
// several sessions; rows are written with CopyFrom in batches off the
// sampling path.
type Archive struct {
	log  *zap.Logger
	pool *pgxpool.Pool

	mu   sync.Mutex
	rows [][]interface{}
}

// OpenArchive connects to Postgres and ensures the sample table
// exists. An empty DSN is rejected; callers treat that as "archive
// disabled" and skip the open.
func OpenArchive(ctx context.Context, log *zap.Logger, dsn string) (*Archive, error) {
	const op = "monitor.OpenArchive"
	if log == nil {
		log = zap.NewNop()
	}
	if dsn == "" {
		return nil, axt.Errorf(axt.BadParameter, op, "empty DSN")
	}
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, axt.Wrap(axt.BadParameter, op, err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, axt.Wrap(axt.NetworkError, op, err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, axt.Wrap(axt.NetworkError, op, err)
	}
	if _, err := pool.Exec(ctx, archiveSchema); err != nil {
		pool.Close()
		return nil, axt.Wrap(axt.NetworkError, op, err)
	}
	return &Archive{log: log, pool: pool}, nil
}

// push queues one record's rows and kicks a background copy when the
// batch is full. Called from the rack tick; it never blocks on the
// database.
func (a *Archive) push(session uuid.UUID, names []string, rec Record) {
	a.mu.Lock()
	for i, v := range rec.Values {
		a.rows = append(a.rows, []interface{}{
			session, int64(rec.Seq), rec.Time, names[i], v,
		})
	}
	var batch [][]interface{}
	if len(a.rows) >= archiveBatch {
		batch = a.rows
		a.rows = nil
	}
	a.mu.Unlock()
	if batch != nil {
		go a.copyRows(batch)
	}
}

// Flush writes any queued rows synchronously.
func (a *Archive) Flush() {
	a.mu.Lock()
	batch := a.rows
	a.rows = nil
	a.mu.Unlock()
	if len(batch) > 0 {
		a.copyRows(batch)
	}
}

func (a *Archive) copyRows(batch [][]interface{}) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	n, err := a.pool.CopyFrom(ctx,
		pgx.Identifier{"monitor_samples"},
		[]string{"session_id", "seq", "rack_time", "item", "value"},
		pgx.CopyFromRows(batch))
	if err != nil {
		a.log.Warn("monitor archive copy failed",
			zap.Int("rows", len(batch)), zap.Error(err))
		return
	}
	a.log.Debug("monitor archive copy", zap.Int64("rows", n))
}

// Close flushes and releases the pool.
func (a *Archive) Close() {
	a.Flush()
	a.pool.Close()
}
