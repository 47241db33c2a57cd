package main

import (
	"io"
	"os"

	"github.com/charmbracelet/log"
)

// setupLog routes debug logging to the file named by RECITE_LOGFILE. With
// no file set, logging is discarded; stdout belongs to the TUI.
func setupLog() (func() error, error) {
	if file := os.Getenv("RECITE_LOGFILE"); file != "" {
		f, err := os.OpenFile(file, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644) //nolint:gosec
		if err != nil {
			return nil, err
		}
		log.SetOutput(f)
		log.SetLevel(log.DebugLevel)
		log.SetReportTimestamp(true)
		return f.Close, nil
	}
	log.SetOutput(io.Discard)
	return func() error { return nil }, nil
}
