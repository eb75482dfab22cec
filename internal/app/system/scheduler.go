package system

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"

	"github.com/R3E-Network/opxpress/internal/logging"
)

// Scheduler runs periodic housekeeping jobs on a cron schedule.
type Scheduler struct {
	cron *cron.Cron
	log  *logging.Logger
	jobs int
}

var _ Service = (*Scheduler)(nil)

// NewScheduler creates a scheduler. Jobs that panic are recovered and logged.
func NewScheduler(log *logging.Logger) *Scheduler {
	if log == nil {
		log = logging.NewDefault("scheduler")
	}
	return &Scheduler{
		cron: cron.New(cron.WithChain(cron.Recover(cronLogger{log}))),
		log:  log,
	}
}

// Add registers fn under spec, e.g. "@every 10m".
func (s *Scheduler) Add(spec, name string, fn func(ctx context.Context)) error {
	_, err := s.cron.AddFunc(spec, func() {
		fn(context.Background())
	})
	if err != nil {
		return fmt.Errorf("schedule %s: %w", name, err)
	}
	s.jobs++
	s.log.WithField("job", name).WithField("spec", spec).Debug("job scheduled")
	return nil
}

// Jobs returns the number of scheduled jobs.
func (s *Scheduler) Jobs() int { return s.jobs }

func (s *Scheduler) Name() string { return "housekeeping" }

func (s *Scheduler) Start(context.Context) error {
	s.cron.Start()
	return nil
}

// Stop waits for running jobs or until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// cronLogger adapts the logger to cron.Logger.
type cronLogger struct {
	log *logging.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.WithFields(pairs(keysAndValues)).Debug(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.WithFields(pairs(keysAndValues)).WithError(err).Error(msg)
}

func pairs(kv []interface{}) map[string]interface{} {
	fields := make(map[string]interface{}, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		fields[fmt.Sprint(kv[i])] = kv[i+1]
	}
	return fields
}
