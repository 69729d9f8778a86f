package sessionlog

import (
	"chamber/internal/server"
	"context"
	"database/sql"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

const (
	schema = `
	CREATE TABLE IF NOT EXISTS chamber_sessions (
	    instance_id TEXT        NOT NULL,
	    conn_id     BIGINT      NOT NULL,
	    remote_addr TEXT        NOT NULL,
	    opened_at   TIMESTAMPTZ NOT NULL,
	    closed_at   TIMESTAMPTZ,
	    PRIMARY KEY (instance_id, conn_id)
	)`

	insertOpened = `INSERT INTO chamber_sessions (instance_id, conn_id, remote_addr, opened_at)
	     VALUES ($1, $2, $3, $4)
	ON CONFLICT (instance_id, conn_id) DO UPDATE
	        SET remote_addr = EXCLUDED.remote_addr,
	            opened_at   = EXCLUDED.opened_at,
	            closed_at   = NULL`

	updateClosed = `UPDATE chamber_sessions
	    SET closed_at = $3
	  WHERE instance_id = $1 AND conn_id = $2 AND closed_at IS NULL`

	writeTimeout = 2 * time.Second
)

// Migrate creates the audit table when it is missing.
func Migrate(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, schema)
	return err
}

type event struct {
	closed bool
	id     server.Identity
	addr   string
	at     time.Time
}

// Recorder writes connection open/close events to Postgres. The dispatcher
// only enqueues; a single background goroutine (Run) does the I/O. Events
// that do not fit in the queue are dropped and counted.
type Recorder struct {
	db       *sql.DB
	instance string
	events   chan event
	dropped  atomic.Uint64
}

var _ server.Recorder = (*Recorder)(nil)

func New(db *sql.DB, instance string, queue int) *Recorder {
	return &Recorder{
		db:       db,
		instance: instance,
		events:   make(chan event, queue),
	}
}

func (r *Recorder) Opened(id server.Identity, addr string, at time.Time) {
	r.enqueue(event{id: id, addr: addr, at: at})
}

func (r *Recorder) Closed(id server.Identity, at time.Time) {
	r.enqueue(event{closed: true, id: id, at: at})
}

// Dropped is the number of events lost to a full queue.
func (r *Recorder) Dropped() uint64 { return r.dropped.Load() }

func (r *Recorder) enqueue(ev event) {
	select {
	case r.events <- ev:
	default:
		n := r.dropped.Add(1)
		zap.L().Warn("sessionlog.dropped", zap.Stringer("id", ev.id), zap.Uint64("total", n))
	}
}

// Run persists queued events until ctx is cancelled.
func (r *Recorder) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-r.events:
			if err := r.write(ctx, ev); err != nil {
				zap.L().Error("sessionlog.write", zap.Stringer("id", ev.id), zap.Bool("closed", ev.closed), zap.Error(err))
			}
		}
	}
}

func (r *Recorder) write(ctx context.Context, ev event) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	if ev.closed {
		_, err := r.db.ExecContext(ctx, updateClosed, r.instance, int64(ev.id), ev.at)
		return err
	}
	_, err := r.db.ExecContext(ctx, insertOpened, r.instance, int64(ev.id), ev.addr, ev.at)
	return err
}
