package editor

import (
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// MinInterval is the shortest auto-save interval accepted.
const MinInterval = time.Second

var (
	_ cron.Schedule = intervalSchedule{}
	_ cron.Logger   = cronLogger{}
)

// intervalSchedule fires every interval. cron.Every truncates to whole
// seconds, which loses millisecond intervals.
type intervalSchedule struct {
	interval time.Duration
}

func (s intervalSchedule) Next(t time.Time) time.Time {
	return t.Add(s.interval)
}

// cronLogger forwards cron's internal logging to slog.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error(msg, append(keysAndValues, "error", err)...)
}
