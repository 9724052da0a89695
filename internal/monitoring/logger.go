// Package monitoring carries the process-wide diagnostic logger shared by
// the training loop and the report exporter.
package monitoring

import (
	"log"
	"time"
)

// Logf is the package-level diagnostic logger. It defaults to log.Printf and
// can be redirected or muted through SetLogger.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces the package logger. Passing nil installs a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

// Throttle gates progress logging inside hot loops so long runs do not flood
// the log. The zero value accepts every call.
type Throttle struct {
	Interval time.Duration
	last     time.Time
}

// Ready reports whether Interval has elapsed since the last accepted call,
// recording now as that call when it has. The first call is always accepted.
func (t *Throttle) Ready(now time.Time) bool {
	if !t.last.IsZero() && now.Sub(t.last) < t.Interval {
		return false
	}
	t.last = now
	return true
}
