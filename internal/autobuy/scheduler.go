package autobuy

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/guarzo/mtgautobuy/internal/ips"
)

// Runner produces scores for a date. *Service implements it.
type Runner interface {
	Run(ctx context.Context, date time.Time) ([]ips.Result, error)
}

// Sink receives the results of a scheduled run. report.FileSink implements it.
type Sink interface {
	Write(date time.Time, results []ips.Result) (string, error)
}

// Scheduler runs the pipeline on a six-field cron spec (seconds first) and
// hands each run's results to a sink. Runs never overlap; a tick that fires
// while a run is in progress is skipped.
type Scheduler struct {
	cron    *cron.Cron
	runner  Runner
	sink    Sink
	timeout time.Duration
	logger  *zap.Logger
	baseCtx context.Context
	now     func() time.Time

	mu      sync.Mutex
	running bool
}

// NewScheduler registers runner on spec. A zero timeout leaves runs bounded
// only by baseCtx.
func NewScheduler(baseCtx context.Context, spec string, runner Runner, sink Sink, timeout time.Duration, logger *zap.Logger) (*Scheduler, error) {
	if baseCtx == nil {
		baseCtx = context.Background()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Scheduler{
		cron:    cron.New(cron.WithSeconds()),
		runner:  runner,
		sink:    sink,
		timeout: timeout,
		logger:  logger.With(zap.String("component", "scheduler")),
		baseCtx: baseCtx,
		now:     func() time.Time { return time.Now().UTC() },
	}
	if _, err := s.cron.AddFunc(spec, func() { s.RunOnce(s.baseCtx) }); err != nil {
		return nil, fmt.Errorf("schedule %q: %w", spec, err)
	}
	return s, nil
}

// AddJob registers an extra housekeeping job on spec.
func (s *Scheduler) AddJob(spec string, job func(context.Context)) error {
	if _, err := s.cron.AddFunc(spec, func() { job(s.baseCtx) }); err != nil {
		return fmt.Errorf("schedule %q: %w", spec, err)
	}
	return nil
}

// Start begins firing on schedule.
func (s *Scheduler) Start() {
	s.logger.Info("scheduler started")
	s.cron.Start()
}

// Stop halts the schedule and waits for a run in progress to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("scheduler stopped")
}

// RunOnce performs a single run for today and writes it to the sink. It
// returns the report path, or "" when the run was skipped or failed.
func (s *Scheduler) RunOnce(ctx context.Context) string {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		s.logger.Warn("previous run still in progress, skipping")
		return ""
	}
	s.running = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	date := s.now()
	results, err := s.runner.Run(ctx, date)
	if err != nil {
		s.logger.Error("scheduled run failed", zap.Error(err))
		return ""
	}
	if s.sink == nil {
		return ""
	}
	path, err := s.sink.Write(date, results)
	if err != nil {
		s.logger.Error("writing report failed", zap.Error(err))
		return ""
	}
	s.logger.Info("report written", zap.String("path", path), zap.Int("cards", len(results)))
	return path
}
