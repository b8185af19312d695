// Package logging contains the structured logger used across tocket and
// the access log wrapper for its HTTP surfaces.
package logging

import (
	golog "log"
	"net/http"
	"os"

	"github.com/apex/log"
	"github.com/apex/log/handlers/json"
	"github.com/gorilla/handlers"
)

// Logger is a logger that logs messages on the standard error
// in a structured JSON format, to simplify processing. Session data
// never goes here: it is written to the per-session log files.
var Logger = log.Logger{
	Handler: json.New(os.Stderr),
	Level:   log.InfoLevel,
}

// SetVerbose lowers the logging level to debug when |verbose| is true
// and restores the info level otherwise.
func SetVerbose(verbose bool) {
	if verbose {
		Logger.Level = log.DebugLevel
		return
	}
	Logger.Level = log.InfoLevel
}

// MakeAccessLogHandler wraps |handler| with another handler that logs
// access to each resource on the standard output. We do not emit JSON
// access logs, because access logs are a fairly standard format that
// has been around for a long time now, so better to follow such standard.
func MakeAccessLogHandler(handler http.Handler) http.Handler {
	return handlers.LoggingHandler(golog.Writer(), handler)
}
