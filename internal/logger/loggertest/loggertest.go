// Package loggertest builds loggers that record entries for assertions.
package loggertest

import (
	"github.com/Shivanand-hulikatti/workshop-enrollment/internal/logger"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// New returns a debug-level logger whose entries are kept in memory.
func New() (*logger.Logger, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return &logger.Logger{SugaredLogger: zap.New(core).Sugar()}, logs
}
