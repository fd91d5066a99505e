// Package monitoring holds the diagnostic logger shared by the background
// parts of the server: the session store, its sweeper and the journal.
package monitoring

import "log"

// Logf is the package-level diagnostic logger. It defaults to log.Printf.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces Logf. Passing nil mutes it.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

// Scoped returns a logger that prefixes every line with "component: " and
// resolves Logf on each call, so later SetLogger calls still apply.
func Scoped(component string) func(format string, v ...interface{}) {
	return func(format string, v ...interface{}) {
		Logf(component+": "+format, v...)
	}
}
