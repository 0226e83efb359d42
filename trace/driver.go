package trace

import (
	"context"
	"database/sql/driver"
	"log/slog"
	"strings"
	"time"

	"github.com/hazyhaar/tabpilot/kit"
)

// Driver wraps another driver and logs each statement it runs.
type Driver struct {
	driver.Driver
}

func (d *Driver) Open(name string) (driver.Conn, error) {
	conn, err := d.Driver.Open(name)
	if err != nil {
		return nil, err
	}
	return &tracedConn{Conn: conn}, nil
}

// tracedConn hides the wrapped connection's ExecerContext and QueryerContext so
// database/sql goes through Prepare, where statements are traced.
type tracedConn struct {
	driver.Conn
}

func (c *tracedConn) Prepare(query string) (driver.Stmt, error) {
	stmt, err := c.Conn.Prepare(query)
	if err != nil {
		logStatement(context.Background(), "prepare", query, 0, err)
		return nil, err
	}
	return &tracedStmt{Stmt: stmt, query: query}, nil
}

func (c *tracedConn) PrepareContext(ctx context.Context, query string) (driver.Stmt, error) {
	pc, ok := c.Conn.(driver.ConnPrepareContext)
	if !ok {
		return c.Prepare(query)
	}
	s, err := pc.PrepareContext(ctx, query)
	if err != nil {
		logStatement(ctx, "prepare", query, 0, err)
		return nil, err
	}
	return &tracedStmt{Stmt: s, query: query}, nil
}

func (c *tracedConn) BeginTx(ctx context.Context, opts driver.TxOptions) (driver.Tx, error) {
	if bt, ok := c.Conn.(driver.ConnBeginTx); ok {
		return bt.BeginTx(ctx, opts)
	}
	return c.Conn.Begin()
}

type tracedStmt struct {
	driver.Stmt
	query string
}

func (s *tracedStmt) ExecContext(ctx context.Context, args []driver.NamedValue) (driver.Result, error) {
	start := time.Now()
	var res driver.Result
	var err error
	if ec, ok := s.Stmt.(driver.StmtExecContext); ok {
		res, err = ec.ExecContext(ctx, args)
	} else {
		res, err = s.Stmt.Exec(namedToValues(args))
	}
	logStatement(ctx, "exec", s.query, time.Since(start), err)
	return res, err
}

func (s *tracedStmt) QueryContext(ctx context.Context, args []driver.NamedValue) (driver.Rows, error) {
	start := time.Now()
	var rows driver.Rows
	var err error
	if qc, ok := s.Stmt.(driver.StmtQueryContext); ok {
		rows, err = qc.QueryContext(ctx, args)
	} else {
		rows, err = s.Stmt.Query(namedToValues(args))
	}
	logStatement(ctx, "query", s.query, time.Since(start), err)
	return rows, err
}

func logStatement(ctx context.Context, op, query string, d time.Duration, err error) {
	// Fast successful PRAGMAs are connection setup noise.
	if err == nil && d < 10*time.Millisecond && strings.HasPrefix(query, "PRAGMA ") {
		return
	}

	level := slog.LevelDebug
	if err != nil {
		level = slog.LevelError
	} else if d > SlowThreshold {
		level = slog.LevelWarn
	}

	attrs := []slog.Attr{
		slog.String("component", "sql"),
		slog.String("op", op),
		slog.String("query", compact(query)),
		slog.Duration("duration", d),
	}
	if id := kit.GetRunID(ctx); id != "" {
		attrs = append(attrs, slog.String("run_id", id))
	}
	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
	}
	getLogger().LogAttrs(ctx, level, "trace: sql", attrs...)
}

// compact folds whitespace runs so multi-line statements log on one line.
func compact(q string) string {
	return strings.Join(strings.Fields(q), " ")
}

func namedToValues(named []driver.NamedValue) []driver.Value {
	vals := make([]driver.Value, len(named))
	for i, nv := range named {
		vals[i] = nv.Value
	}
	return vals
}
