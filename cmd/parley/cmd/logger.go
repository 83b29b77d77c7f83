package cmd

import (
	"strings"

	"go.uber.org/zap"
)

var logLevel = "info"

func setupLogger() (*zap.Logger, error) {
	level := logLevel
	debugFlag := GetDebug()

	if debugFlag {
		level = "debug"
	} else if GetVerbose() && level == "info" {
		level = "debug"
	}

	config := zap.NewProductionConfig()
	config.Level = parseLevel(level)
	config.Development = debugFlag

	return config.Build()
}

func parseLevel(level string) zap.AtomicLevel {
	switch strings.ToLower(level) {
	case "debug":
		return zap.NewAtomicLevelAt(zap.DebugLevel)
	case "warn", "warning":
		return zap.NewAtomicLevelAt(zap.WarnLevel)
	case "error":
		return zap.NewAtomicLevelAt(zap.ErrorLevel)
	default:
		return zap.NewAtomicLevelAt(zap.InfoLevel)
	}
}

func stringSliceToAnySlice(strs []string) []any {
	anys := make([]any, len(strs))
	for i, s := range strs {
		anys[i] = s
	}
	return anys
}
