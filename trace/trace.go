// Package trace logs every SQL statement tabpilot runs against SQLite.
//
// It registers a "sqlite-trace" driver that wraps modernc.org/sqlite and
// intercepts Exec and Query at the database/sql/driver level. Switching the
// driver name is the only change callers make:
//
//	trace.SetLogger(logger)
//	db, err := dbopen.Open(path, dbopen.WithDriver(trace.DriverName))
//
// Statements are logged at Debug, at Warn above SlowThreshold and at Error
// on failure. The run ID from kit.GetRunID is attached when present, so the
// statements of one dispatched action can be grouped.
package trace

import (
	"database/sql"
	"log/slog"
	"sync/atomic"
	"time"

	sqlite "modernc.org/sqlite"
)

// DriverName is the database/sql driver registered by this package.
const DriverName = "sqlite-trace"

// SlowThreshold promotes a statement to Warn.
const SlowThreshold = 100 * time.Millisecond

var logger atomic.Pointer[slog.Logger]

// SetLogger sets the logger statements are written to. nil restores
// slog.Default.
func SetLogger(l *slog.Logger) {
	logger.Store(l)
}

func getLogger() *slog.Logger {
	if l := logger.Load(); l != nil {
		return l
	}
	return slog.Default()
}

func init() {
	sql.Register(DriverName, &Driver{Driver: &sqlite.Driver{}})
}
