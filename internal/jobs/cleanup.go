package jobs

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// DefaultSchedule runs the sweep at local midnight.
const DefaultSchedule = "0 0 0 * * *"

// Schedules carry a leading seconds field.
var scheduleParser = cron.NewParser(
	cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// ParseSchedule parses a six-field cron spec or a descriptor such as @daily.
func ParseSchedule(spec string) (cron.Schedule, error) {
	s, err := scheduleParser.Parse(strings.TrimSpace(spec))
	if err != nil {
		return nil, fmt.Errorf("cleanup schedule %q: %w", spec, err)
	}
	return s, nil
}

// Cleaner purges expired refresh-token records. *gastronomy.Engine implements it.
type Cleaner interface {
	CleanupSessions(ctx context.Context) int64
}

// CleanupConfig schedules the sweep.
type CleanupConfig struct {
	// Schedule is a cron spec with seconds. Empty means DefaultSchedule.
	Schedule string
	Location *time.Location
	Now      func() time.Time
	Logger   *zap.Logger
}

// CleanupJob runs the session sweep on a cron schedule. Sweep failures and
// panics are logged and never stop the schedule.
type CleanupJob struct {
	cleaner  Cleaner
	cfg      CleanupConfig
	schedule cron.Schedule

	mu     sync.Mutex
	cron   *cron.Cron
	cancel context.CancelFunc
}

// NewCleanupJob validates cfg and returns a stopped job.
func NewCleanupJob(cleaner Cleaner, cfg CleanupConfig) (*CleanupJob, error) {
	if cleaner == nil {
		return nil, errors.New("cleanup job requires a cleaner")
	}
	if cfg.Schedule == "" {
		cfg.Schedule = DefaultSchedule
	}
	schedule, err := ParseSchedule(cfg.Schedule)
	if err != nil {
		return nil, err
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &CleanupJob{cleaner: cleaner, cfg: cfg, schedule: schedule}, nil
}

// Next returns the first scheduled run strictly after now.
func (j *CleanupJob) Next(now time.Time) time.Time {
	return j.schedule.Next(now.In(j.cfg.Location))
}

// Start launches the schedule. Calling Start on a running job is a no-op.
func (j *CleanupJob) Start(ctx context.Context) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.cron != nil {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	logger := cronLogger{j.cfg.Logger.Sugar()}
	c := cron.New(
		cron.WithLocation(j.cfg.Location),
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)
	c.Schedule(j.schedule, cron.FuncJob(func() { j.RunOnce(ctx) }))
	c.Start()
	j.cron, j.cancel = c, cancel
}

// Stop halts the schedule and waits for an in-flight sweep.
func (j *CleanupJob) Stop() {
	j.mu.Lock()
	c, cancel := j.cron, j.cancel
	j.cron, j.cancel = nil, nil
	j.mu.Unlock()
	if c == nil {
		return
	}
	cancel()
	<-c.Stop().Done()
}

// RunOnce sweeps immediately and returns the number of removed records.
func (j *CleanupJob) RunOnce(ctx context.Context) (removed int64) {
	defer func() {
		if rec := recover(); rec != nil {
			j.cfg.Logger.Error("session cleanup panicked", zap.Any("panic", rec))
			removed = 0
		}
	}()
	start := j.cfg.Now()
	removed = j.cleaner.CleanupSessions(ctx)
	j.cfg.Logger.Info("session cleanup ran",
		zap.Int64("removed", removed),
		zap.Duration("took", j.cfg.Now().Sub(start)))
	return removed
}

// cronLogger routes scheduler messages to zap. Routine scheduler chatter goes
// to debug.
type cronLogger struct {
	l *zap.SugaredLogger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Debugw(msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Errorw(msg, append(keysAndValues, "error", err)...)
}
