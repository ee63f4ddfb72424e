package jobs

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type countingCleaner struct {
	calls atomic.Int64
	ran   chan struct{}
	panic bool
}

func (c *countingCleaner) CleanupSessions(context.Context) int64 {
	c.calls.Add(1)
	if c.ran != nil {
		c.ran <- struct{}{}
	}
	if c.panic {
		panic("store exploded")
	}
	return 3
}

func TestCleanupJobNext(t *testing.T) {
	job, err := NewCleanupJob(&countingCleaner{}, CleanupConfig{Location: time.UTC})
	if err != nil {
		t.Fatalf("new job: %v", err)
	}

	tests := []struct {
		now  time.Time
		want time.Time
	}{
		{time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC), time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC)},
		{time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC)},
		{time.Date(2024, 2, 29, 23, 59, 59, 0, time.UTC), time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)},
	}
	for _, tc := range tests {
		if got := job.Next(tc.now); !got.Equal(tc.want) {
			t.Fatalf("Next(%v) = %v, want %v", tc.now, got, tc.want)
		}
	}

	job, err = NewCleanupJob(&countingCleaner{}, CleanupConfig{Schedule: "0 30 3 * * *", Location: time.UTC})
	if err != nil {
		t.Fatalf("new job: %v", err)
	}
	now := time.Date(2024, 3, 1, 1, 0, 0, 0, time.UTC)
	if got := job.Next(now); !got.Equal(time.Date(2024, 3, 1, 3, 30, 0, 0, time.UTC)) {
		t.Fatalf("same-day run = %v", got)
	}
}

func TestNewCleanupJobRejectsBadSchedule(t *testing.T) {
	for _, spec := range []string{"0 0 24 * * *", "0 0 * * *", "noon"} {
		if _, err := NewCleanupJob(&countingCleaner{}, CleanupConfig{Schedule: spec}); err == nil {
			t.Fatalf("expected error for schedule %q", spec)
		}
	}
	if _, err := NewCleanupJob(nil, CleanupConfig{}); err == nil {
		t.Fatal("expected error for nil cleaner")
	}
	if _, err := ParseSchedule("@daily"); err != nil {
		t.Fatalf("descriptor rejected: %v", err)
	}
}

func TestCleanupJobRunsOnSchedule(t *testing.T) {
	cleaner := &countingCleaner{ran: make(chan struct{}, 8)}
	job, err := NewCleanupJob(cleaner, CleanupConfig{Schedule: "* * * * * *", Location: time.UTC})
	if err != nil {
		t.Fatalf("new job: %v", err)
	}

	job.Start(context.Background())
	job.Start(context.Background())

	select {
	case <-cleaner.ran:
	case <-time.After(3 * time.Second):
		t.Fatal("cleanup did not run")
	}

	job.Stop()
	job.Stop()
	calls := cleaner.calls.Load()
	if calls < 1 {
		t.Fatalf("cleanup ran %d times, want at least 1", calls)
	}
	time.Sleep(1100 * time.Millisecond)
	if got := cleaner.calls.Load(); got != calls {
		t.Fatalf("cleanup ran after Stop: %d -> %d", calls, got)
	}
}

func TestCleanupJobScheduledPanicKeepsSchedule(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	cleaner := &countingCleaner{ran: make(chan struct{}, 8), panic: true}
	job, err := NewCleanupJob(cleaner, CleanupConfig{
		Schedule: "* * * * * *",
		Location: time.UTC,
		Logger:   zap.New(core),
	})
	if err != nil {
		t.Fatalf("new job: %v", err)
	}
	job.Start(context.Background())
	defer job.Stop()

	for i := 0; i < 2; i++ {
		select {
		case <-cleaner.ran:
		case <-time.After(3 * time.Second):
			t.Fatalf("run %d did not happen", i+1)
		}
	}
	job.Stop()
	if logs.FilterMessage("session cleanup panicked").Len() < 2 {
		t.Fatal("scheduled panics not logged")
	}
}

func TestCleanupJobSurvivesPanics(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	job, err := NewCleanupJob(&countingCleaner{panic: true}, CleanupConfig{Logger: zap.New(core)})
	if err != nil {
		t.Fatalf("new job: %v", err)
	}
	if n := job.RunOnce(context.Background()); n != 0 {
		t.Fatalf("RunOnce = %d, want 0 after panic", n)
	}
	if logs.FilterMessage("session cleanup panicked").Len() != 1 {
		t.Fatal("panic not logged")
	}
}

func TestCleanupJobRunOnce(t *testing.T) {
	job, err := NewCleanupJob(&countingCleaner{}, CleanupConfig{})
	if err != nil {
		t.Fatalf("new job: %v", err)
	}
	if n := job.RunOnce(context.Background()); n != 3 {
		t.Fatalf("RunOnce = %d, want 3", n)
	}
}
