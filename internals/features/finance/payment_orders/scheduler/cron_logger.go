package scheduler

import (
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

type cronLogger struct {
	log *zap.SugaredLogger
}

// NewCronLogger routes robfig/cron's logging to zap. Cron's routine Info
// chatter goes to debug.
func NewCronLogger(log *zap.Logger) cron.Logger {
	return cronLogger{log: log.WithOptions(zap.AddCallerSkip(1)).Sugar()}
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Errorw(msg, append(keysAndValues, "error", err)...)
}
