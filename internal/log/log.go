package log

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/apex/log"
)

// Init sets up apex with a stderr handler and a log level from the
// RUNCACHE_LOG env variable. Verbose forces debug regardless of env.
// Logs never go to stdout: stdout is reserved for the memoized
// command's output.
func Init(verbose bool) {
	level, err := log.ParseLevel(strings.ToLower(os.Getenv("RUNCACHE_LOG")))
	if err != nil {
		level = log.ErrorLevel
	}

	log.SetHandler(&StderrHandler{})
	log.SetLevel(level)

	if verbose {
		log.SetLevel(log.DebugLevel)
	}
}

// StderrHandler formats log messages and writes them to stderr
type StderrHandler struct{}

// HandleLog implements the log.Handler interface
func (h *StderrHandler) HandleLog(e *log.Entry) error {
	timestamp := time.Now().Format("2006-01-02 15:04:05")
	level := strings.ToUpper(e.Level.String())
	fmt.Fprintf(os.Stderr, "%s %.1s %s\n", timestamp, level, e.Message)
	return nil
}
