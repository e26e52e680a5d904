// Package jobs runs periodic maintenance over the booking store.
package jobs

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Completer marks confirmed sessions held before day as completed.
type Completer interface {
	CompleteConfirmedBefore(ctx context.Context, day time.Time) (int64, error)
}

// AutoComplete moves confirmed bookings whose session day has passed to
// completed.
type AutoComplete struct {
	store   Completer
	logger  *zap.Logger
	now     func() time.Time
	timeout time.Duration
}

func NewAutoComplete(store Completer, logger *zap.Logger, now func() time.Time, timeout time.Duration) *AutoComplete {
	if logger == nil {
		logger = zap.NewNop()
	}
	if now == nil {
		now = time.Now
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &AutoComplete{store: store, logger: logger, now: now, timeout: timeout}
}

// Run performs one pass.  Sessions dated today are left alone.
func (j *AutoComplete) Run(ctx context.Context) (int64, error) {
	y, m, d := j.now().UTC().Date()
	today := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)

	ctx, cancel := context.WithTimeout(ctx, j.timeout)
	defer cancel()
	n, err := j.store.CompleteConfirmedBefore(ctx, today)
	if err != nil {
		j.logger.Error("auto-complete bookings failed", zap.Error(err))
		return 0, err
	}
	if n > 0 {
		j.logger.Info("auto-completed past bookings", zap.Int64("count", n), zap.Time("before", today))
	}
	return n, nil
}

// Scheduler owns the cron runner.
type Scheduler struct {
	cron   *cron.Cron
	logger *zap.Logger
}

// NewScheduler registers job on spec (standard five-field cron syntax or a
// descriptor such as "@hourly").  Overlapping runs are skipped.
func NewScheduler(spec string, job *AutoComplete, logger *zap.Logger) (*Scheduler, error) {
	cl := cronLogger{logger.Sugar()}
	c := cron.New(
		cron.WithLocation(time.UTC),
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)
	if _, err := c.AddFunc(spec, func() { _, _ = job.Run(context.Background()) }); err != nil {
		return nil, err
	}
	return &Scheduler{cron: c, logger: logger}, nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("job scheduler started", zap.Int("jobs", len(s.cron.Entries())))
}

// Stop prevents new runs and waits for a running job until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
		s.logger.Warn("job scheduler stop timed out")
	}
}

// cronLogger adapts zap to cron.Logger.
type cronLogger struct{ s *zap.SugaredLogger }

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.s.Debugw("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.s.Errorw("cron: "+msg, append(keysAndValues, "error", err)...)
}
