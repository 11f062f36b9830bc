package scheduler

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"

	"github.com/trezcool/academia/core"
)

// sweepTimeout bounds a single scheduled sweep.
const sweepTimeout = 30 * time.Second

type (
	Sweeper interface {
		Sweep(ctx context.Context, now time.Time) (int, error)
	}

	// Scheduler runs notification sweeps periodically, in UTC.
	// A sweep still running when the next one is due makes the latter skip.
	Scheduler struct {
		cron    *cron.Cron
		sweeper Sweeper
		logger  core.Logger
		now     func() time.Time
	}
)

func New(sweeper Sweeper, logger core.Logger) *Scheduler {
	cl := cronLogger{logger: logger}
	return &Scheduler{
		cron: cron.New(
			cron.WithLocation(time.UTC),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		sweeper: sweeper,
		logger:  logger,
		now:     time.Now,
	}
}

// Start schedules sweeps on spec (standard cron spec or descriptor, e.g. "@every 1m") and starts the scheduler.
// An empty spec leaves the scheduler off.
func (s *Scheduler) Start(spec string) error {
	if spec == "" {
		return nil
	}
	if _, err := s.cron.AddFunc(spec, s.runSweep); err != nil {
		return errors.Wrapf(err, "scheduling sweep %q", spec)
	}
	s.cron.Start()
	s.logger.Info("sweep scheduler started", map[string]interface{}{"schedule": spec})
	return nil
}

// Stop stops scheduling sweeps and waits for a running one to return, or for ctx to be done.
func (s *Scheduler) Stop(ctx context.Context) error {
	select {
	case <-s.cron.Stop().Done():
		return nil
	case <-ctx.Done():
		return errors.Wrap(ctx.Err(), "waiting for running sweep")
	}
}

func (s *Scheduler) runSweep() {
	ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
	defer cancel()

	if _, err := s.sweeper.Sweep(ctx, s.now()); err != nil {
		s.logger.Error("scheduled sweep failed", err)
	}
}

// cronLogger adapts core.Logger to cron.Logger.
type cronLogger struct {
	logger core.Logger
}

var _ cron.Logger = cronLogger{}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug("cron: "+msg, kvMap(keysAndValues))
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error("cron: "+msg, err, kvMap(keysAndValues))
}

func kvMap(keysAndValues []interface{}) map[string]interface{} {
	m := make(map[string]interface{}, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		if k, ok := keysAndValues[i].(string); ok {
			m[k] = keysAndValues[i+1]
		}
	}
	return m
}
