// Package monitoring holds the process-wide diagnostic logger used by the
// scan registration pipeline.
package monitoring

import "log"

// Logf is the package-level diagnostic logger. It defaults to log.Printf;
// binaries and tests can redirect or mute it with SetLogger.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces the package logger. Passing nil installs a no-op
// logger, which silences the pipeline entirely.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}
