// Package scheduler repeats a job on a cron schedule.
package scheduler

import (
	"context"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Job is one scheduled unit of work.
type Job func(ctx context.Context)

// Scheduler wraps robfig/cron. A run that is still in progress when the next
// tick fires makes that tick a no-op.
type Scheduler struct {
	cron   *cron.Cron
	job    cron.Job
	spec   string
	logger *zap.Logger

	initial sync.WaitGroup
}

// New validates spec and prepares the scheduler. The job receives ctx on
// every invocation.
func New(ctx context.Context, spec string, job Job, logger *zap.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	cl := cronLogger{logger: logger.Sugar()}
	c := cron.New(cron.WithLogger(cl))

	wrapped := cron.NewChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)).Then(cron.FuncJob(func() {
		job(ctx)
	}))

	if _, err := c.AddJob(spec, wrapped); err != nil {
		return nil, fmt.Errorf("parsing schedule %q: %w", spec, err)
	}

	return &Scheduler{
		cron:   c,
		job:    wrapped,
		spec:   spec,
		logger: logger,
	}, nil
}

// Start runs the job once right away and then on every tick.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("scheduler started", zap.String("schedule", s.spec))

	s.initial.Add(1)
	go func() {
		defer s.initial.Done()
		s.job.Run()
	}()
}

// Stop prevents new runs. The returned context is done once the running job
// returns.
func (s *Scheduler) Stop() context.Context {
	cronDone := s.cron.Stop()
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-cronDone.Done()
		s.initial.Wait()
		cancel()
		s.logger.Info("scheduler stopped")
	}()
	return ctx
}

// cronLogger adapts zap to cron.Logger. Cron is chatty at info level, so its
// info messages go to debug.
type cronLogger struct {
	logger *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Errorw(msg, append(keysAndValues, "error", err)...)
}
