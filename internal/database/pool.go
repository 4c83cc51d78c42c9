package database

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/fifo"
	"github.com/koustreak/minorm/internal/errs"
	"github.com/koustreak/minorm/internal/logger"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/koustreak/minorm/internal/database"

// Pool is the handle every database operation goes through. It bounds
// in-flight operations at MaxSize: callers beyond capacity block in FIFO
// order until a slot is released. Each slot maps to one connection of
// the backend's native pool for the duration of a single Select or
// Execute.
//
// A Pool is created once (see package connect) and closed once. It is
// safe for concurrent use by multiple goroutines.
type Pool struct {
	backend Backend
	dialect Dialect
	size    int64
	sem     *fifo.Semaphore

	closed   atomic.Bool
	done     context.Context
	shutdown context.CancelFunc
	inUse    atomic.Int64
	waiting  atomic.Int64

	log     *logger.Logger
	metrics *Metrics
	tracer  trace.Tracer
}

// Option configures a Pool.
type Option func(*Pool)

// WithLogger sets the logger used for statements and lifecycle events.
func WithLogger(l *logger.Logger) Option {
	return func(p *Pool) { p.log = logger.OrNop(l) }
}

// WithMetrics enables prometheus metrics.
func WithMetrics(m *Metrics) Option {
	return func(p *Pool) { p.metrics = m }
}

// WithTracer replaces the tracer taken from the global otel provider.
func WithTracer(t trace.Tracer) Option {
	return func(p *Pool) { p.tracer = t }
}

// NewPool wraps an open backend. maxSize below 1 is treated as 1.
func NewPool(backend Backend, dialect Dialect, maxSize int, opts ...Option) *Pool {
	if maxSize < 1 {
		maxSize = 1
	}
	p := &Pool{
		backend: backend,
		dialect: dialect,
		size:    int64(maxSize),
		sem:     fifo.NewSemaphore(int64(maxSize)),
		log:     logger.Nop(),
		tracer:  otel.Tracer(tracerName),
	}
	p.done, p.shutdown = context.WithCancel(context.Background())
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Dialect returns the dialect statements are rewritten to.
func (p *Pool) Dialect() Dialect {
	return p.dialect
}

// PoolStats is a point-in-time view of slot usage.
type PoolStats struct {
	Capacity int64
	InUse    int64
	Waiting  int64
	Closed   bool
}

// Stats returns current slot usage.
func (p *Pool) Stats() PoolStats {
	return PoolStats{
		Capacity: p.size,
		InUse:    p.inUse.Load(),
		Waiting:  p.waiting.Load(),
		Closed:   p.closed.Load(),
	}
}

// acquire takes one slot, blocking while the pool is at capacity.
// The returned func must be called exactly once.
func (p *Pool) acquire(ctx context.Context) (func(), error) {
	if p.closed.Load() {
		return nil, errs.New(errs.ErrKindPoolClosed, "pool is closed")
	}
	return p.wait(ctx)
}

// wait queues for a slot. Waiters still queued once Close has drained
// the pool are cancelled with a pool_closed error.
func (p *Pool) wait(ctx context.Context) (func(), error) {
	waitCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(p.done, cancel)
	defer stop()

	start := time.Now()
	p.metrics.setWaiting(p.waiting.Add(1))
	err := p.sem.Acquire(waitCtx, 1)
	p.metrics.setWaiting(p.waiting.Add(-1))
	if err != nil {
		if p.done.Err() != nil && ctx.Err() == nil {
			return nil, errs.New(errs.ErrKindPoolClosed, "pool closed while waiting for a connection")
		}
		return nil, errs.Wrap(errs.ErrKindTimeout, "waiting for a pool connection", err)
	}

	p.inUse.Add(1)
	p.metrics.acquired(time.Since(start))

	return func() {
		p.inUse.Add(-1)
		p.metrics.released()
		p.sem.Release(1)
	}, nil
}

// Select runs a canonical statement and returns up to limit rows, or all
// rows when limit <= 0. The slot is released before Select returns,
// whether or not fetching succeeded.
func (p *Pool) Select(ctx context.Context, query string, args []any, limit int) (rows []Row, err error) {
	start := time.Now()
	ctx, span := p.startSpan(ctx, "select", query)
	defer func() {
		p.finishSpan(span, err)
		p.metrics.observe("select", start, err)
	}()

	p.log.Infof("SQL: %s", query)

	release, err := p.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	rs, err := p.backend.Query(ctx, p.dialect.Rebind(query), args...)
	if err != nil {
		return nil, err
	}
	rows, err = ScanRows(rs, limit)
	if err != nil {
		return nil, err
	}

	span.SetAttributes(attribute.Int("db.rows", len(rows)))
	p.log.Infof("rows returned: %d", len(rows))
	return rows, nil
}

// Execute runs a single mutating statement and returns the affected row
// count. Driver errors are returned unchanged after the slot is released.
func (p *Pool) Execute(ctx context.Context, query string, args []any) (affected int64, err error) {
	start := time.Now()
	ctx, span := p.startSpan(ctx, "execute", query)
	defer func() {
		p.finishSpan(span, err)
		p.metrics.observe("execute", start, err)
	}()

	p.log.Infof("SQL: %s", query)

	release, err := p.acquire(ctx)
	if err != nil {
		return 0, err
	}
	defer release()

	affected, err = p.backend.Exec(ctx, p.dialect.Rebind(query), args...)
	if err != nil {
		return 0, err
	}

	span.SetAttributes(attribute.Int64("db.rows_affected", affected))
	return affected, nil
}

// Columns describes a live table through the backend, if it supports it.
func (p *Pool) Columns(ctx context.Context, table string) ([]ColumnInfo, error) {
	in, ok := p.backend.(Introspector)
	if !ok {
		return nil, errs.New(errs.ErrKindInvalidInput, "backend does not support introspection")
	}

	release, err := p.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	return in.Columns(ctx, table)
}

// Ping verifies the database is reachable through a pool slot.
func (p *Pool) Ping(ctx context.Context) error {
	release, err := p.acquire(ctx)
	if err != nil {
		return err
	}
	defer release()

	return p.backend.Ping(ctx)
}

// Close stops new acquisitions, waits for every in-flight or already
// queued operation to release its slot, then closes the backend.
// If ctx ends first the backend is closed anyway and a timeout error is
// returned. Callers that slipped into the queue behind Close get a
// pool_closed error. Closing a closed pool returns a pool_closed error.
func (p *Pool) Close(ctx context.Context) error {
	if !p.closed.CompareAndSwap(false, true) {
		return errs.New(errs.ErrKindPoolClosed, "pool already closed")
	}

	p.log.Info("close database connection pool")

	var waitErr error
	if err := p.sem.Acquire(ctx, p.size); err != nil {
		p.log.Warnf("closing pool with %d operations in flight", p.inUse.Load())
		waitErr = errs.Wrap(errs.ErrKindTimeout, "waiting for in-flight operations", err)
	}
	p.shutdown()

	p.backend.Close()
	return waitErr
}

func (p *Pool) startSpan(ctx context.Context, op, query string) (context.Context, trace.Span) {
	return p.tracer.Start(ctx, "db."+op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("db.system", p.dialect.String()),
			attribute.String("db.operation", op),
			attribute.String("db.statement", query),
		),
	)
}

func (p *Pool) finishSpan(span trace.Span, err error) {
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.RecordError(err)
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// IsContextErr reports whether err came from a cancelled or expired context.
func IsContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
