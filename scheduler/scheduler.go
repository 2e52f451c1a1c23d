package scheduler

import (
	"context"
	"sync"
	"time"

	"TiltifyBot/db"
	"TiltifyBot/internal/telemetry"
	"TiltifyBot/tracker"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Cycles is the work driven by the scheduler.
type Cycles interface {
	PollAll(ctx context.Context) error
	RefreshAll(ctx context.Context) error
}

type StatsSource interface {
	Stats(ctx context.Context) (db.Stats, error)
}

// StatusSink receives the aggregate status after it is recomputed.
type StatusSink interface {
	PublishStatus(ctx context.Context, stats db.Stats) error
}

type Options struct {
	PollInterval    time.Duration
	RefreshInterval time.Duration
	Metrics         *telemetry.Metrics
}

// Status is the last published aggregate state.
type Status struct {
	db.Stats
	LastPoll    time.Time `json:"last_poll,omitempty"`
	LastRefresh time.Time `json:"last_refresh,omitempty"`
}

type Scheduler struct {
	cycles  Cycles
	stats   StatsSource
	sink    StatusSink
	opts    Options
	log     *zap.Logger
	cron    *cron.Cron
	mu      sync.RWMutex
	current Status
}

func New(cycles Cycles, stats StatsSource, sink StatusSink, opts Options, log *zap.Logger) *Scheduler {
	if opts.Metrics == nil {
		opts.Metrics = telemetry.Nop()
	}
	log = log.Named("scheduler")
	clog := cronLogger{log.Sugar()}
	return &Scheduler{
		cycles: cycles,
		stats:  stats,
		sink:   sink,
		opts:   opts,
		log:    log,
		cron: cron.New(
			cron.WithLogger(clog),
			cron.WithChain(cron.Recover(clog), cron.SkipIfStillRunning(clog)),
		),
	}
}

// Run performs the startup refresh, then drives both cycles until ctx is
// done. It waits for running jobs before returning.
func (s *Scheduler) Run(ctx context.Context) error {
	s.log.Info("running startup refresh")
	s.refresh(ctx)

	s.cron.Schedule(cron.Every(s.opts.PollInterval), cron.FuncJob(func() { s.poll(ctx) }))
	s.cron.Schedule(cron.Every(s.opts.RefreshInterval), cron.FuncJob(func() { s.refresh(ctx) }))
	s.cron.Start()
	s.log.Info("scheduler started",
		zap.Duration("poll", s.opts.PollInterval),
		zap.Duration("refresh", s.opts.RefreshInterval))

	<-ctx.Done()
	<-s.cron.Stop().Done()
	s.log.Info("scheduler stopped")
	return nil
}

func (s *Scheduler) poll(ctx context.Context) {
	if s.runCycle(ctx, "poll", s.cycles.PollAll) {
		s.mu.Lock()
		s.current.LastPoll = time.Now()
		s.mu.Unlock()
	}
}

func (s *Scheduler) refresh(ctx context.Context) {
	if s.runCycle(ctx, "refresh", s.cycles.RefreshAll) {
		s.mu.Lock()
		s.current.LastRefresh = time.Now()
		s.mu.Unlock()
	}
	if err := s.RefreshStatus(ctx); err != nil {
		s.log.Error("failed to publish status", zap.Error(err))
	}
}

func (s *Scheduler) runCycle(ctx context.Context, name string, fn func(context.Context) error) bool {
	if ctx.Err() != nil {
		return false
	}
	id := uuid.NewString()
	ctx = tracker.WithCycle(ctx, id)
	start := time.Now()

	err := fn(ctx)
	elapsed := time.Since(start)
	s.opts.Metrics.CycleDuration.Record(ctx, elapsed.Seconds(), telemetry.CycleAttr(name))
	if err != nil {
		s.log.Error(name+" cycle failed", zap.String("cycle", id), zap.Error(err))
		return false
	}
	s.log.Debug(name+" cycle done", zap.String("cycle", id), zap.Duration("took", elapsed))
	return true
}

// RefreshStatus recomputes the aggregate counts and publishes them.
func (s *Scheduler) RefreshStatus(ctx context.Context) error {
	stats, err := s.stats.Stats(ctx)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.current.Stats = stats
	s.mu.Unlock()

	if s.sink == nil {
		return nil
	}
	return s.sink.PublishStatus(ctx, stats)
}

func (s *Scheduler) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

type cronLogger struct {
	log *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Errorw(msg, append(keysAndValues, "error", err)...)
}
