// Package logger builds the zap logger shared by every command.
package logger

import (
	"io"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/term"
)

// EnvLevel overrides the log level, e.g. GH_COMMIT_AI_LOG_LEVEL=debug.
const EnvLevel = "GH_COMMIT_AI_LOG_LEVEL"

// New returns a console logger writing to w. Diagnostics stay quiet (warn)
// unless verbose is set or EnvLevel asks for more.
func New(w io.Writer, verbose bool) *zap.Logger {
	level := ParseLevel(os.Getenv(EnvLevel))
	if verbose {
		level = zapcore.DebugLevel
	}

	encCfg := zap.NewDevelopmentEncoderConfig()
	encCfg.TimeKey = ""
	encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
	if isTerminal(w) {
		encCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encCfg),
		zapcore.Lock(zapcore.AddSync(w)),
		zap.NewAtomicLevelAt(level),
	)
	return zap.New(core).Named("gh-commit-ai")
}

// ParseLevel maps a user supplied level name onto a zap level, defaulting to warn.
func ParseLevel(level string) zapcore.Level {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "TRACE", "DEBUG":
		return zapcore.DebugLevel
	case "INFO":
		return zapcore.InfoLevel
	case "ERROR":
		return zapcore.ErrorLevel
	default:
		return zapcore.WarnLevel
	}
}

// isTerminal reports whether w is a terminal. Anything else gets plain level
// names without ANSI colour.
func isTerminal(w io.Writer) bool {
	f, ok := w.(interface{ Fd() uintptr })
	return ok && term.IsTerminal(int(f.Fd()))
}
