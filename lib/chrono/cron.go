package chrono

import (
	"fmt"
	"log/slog"

	"uniadmit-backend/lib/timezone"

	"github.com/robfig/cron/v3"
)

// CronAPI is the interface that anything depending on things happening
// on a schedule should use. Tests substitute their own implementation
// and fire callbacks directly.
type CronAPI interface {
	Cron(spec string, callback func()) error
}

// StandardCron is the standard implementation of CronAPI using
// `github.com/robfig/cron/v3`, pinned to the deadline timezone.
type StandardCron struct {
	cron *cron.Cron
}

func NewStandardCron() StandardCron {
	cronner := cron.New(
		cron.WithLogger(cronLogger{}),
		cron.WithLocation(timezone.Location),
	)
	cronner.Start()

	return StandardCron{
		cron: cronner,
	}
}

func (s StandardCron) Cron(spec string, callback func()) error {
	_, err := s.cron.AddFunc(spec, callback)
	return err
}

func (s StandardCron) Stop() {
	s.cron.Stop()
}

type cronLogger struct{}

func (l cronLogger) formatParams(keysAndValues []any) []any {
	params := []any{}
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		params = append(params, fmt.Sprintf("%v: %v", keysAndValues[i], keysAndValues[i+1]))
	}
	return params
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	slog.Debug(fmt.Sprintf("cron: %s", msg), "params", l.formatParams(keysAndValues))
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	slog.Error(fmt.Sprintf("cron: %s", msg), "err", err, "params", l.formatParams(keysAndValues))
}
