// Package logconfig sets up the process-wide logrus logger.
package logconfig

import (
	"fmt"
	"strings"

	myLogger "github.com/sirupsen/logrus"
)

// Format names accepted by ConfigLogger.
const (
	FormatText = "text"
	FormatJSON = "json"
)

// ConfigLogger configures the global logger from a level name
// ("debug", "info", "warn", ...) and a format name. The extra level
// "production" selects info level with JSON output.
func ConfigLogger(level, format string) error {
	level = strings.ToLower(strings.TrimSpace(level))
	if level == "production" {
		ConfigProductionLogger()
		return nil
	}

	lvl, err := myLogger.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("log level: %w", err)
	}

	switch format {
	case "", FormatText:
		if lvl >= myLogger.DebugLevel {
			ConfigDebugLogger()
		} else {
			ConfigInfoLogger()
		}
	case FormatJSON:
		ConfigProductionLogger()
	default:
		return fmt.Errorf("log format: unknown %q", format)
	}
	myLogger.SetLevel(lvl)
	return nil
}

// Colored, caller-annotated output for tests and local runs.
func ConfigDebugLogger() {
	myLogger.SetReportCaller(true)
	myLogger.SetLevel(myLogger.DebugLevel)
	myLogger.SetFormatter(&myLogger.TextFormatter{
		ForceColors:            true,
		DisableTimestamp:       true,
		DisableLevelTruncation: true,
		PadLevelText:           true,
	})
}

func ConfigInfoLogger() {
	myLogger.SetReportCaller(false)
	myLogger.SetLevel(myLogger.InfoLevel)
	myLogger.SetFormatter(&myLogger.TextFormatter{
		FullTimestamp:          true,
		DisableLevelTruncation: true,
		PadLevelText:           true,
	})
}

// One JSON object per line, for log collectors.
func ConfigProductionLogger() {
	myLogger.SetReportCaller(false)
	myLogger.SetLevel(myLogger.InfoLevel)
	myLogger.SetFormatter(&myLogger.JSONFormatter{})
}
