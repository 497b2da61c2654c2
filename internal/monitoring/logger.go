package monitoring

import "log"

// Logf is the package-level diagnostic logger. It defaults to log.Printf but may
// be replaced by SetLogger. Tests or production code can redirect or mute it.
var Logf func(format string, v ...interface{}) = log.Printf

// Verbose gates progress output. Error lines always go through Logf; percent
// progress from the sector loop only appears when Verbose is set.
var Verbose = true

// SetLogger replaces the package logger. Passing nil will set a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

// Progressf logs through Logf only when Verbose is enabled.
func Progressf(format string, v ...interface{}) {
	if Verbose {
		Logf(format, v...)
	}
}
