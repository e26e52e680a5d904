package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"
)

type completerStub struct {
	day time.Time
	n   int64
	err error
}

func (c *completerStub) CompleteConfirmedBefore(ctx context.Context, day time.Time) (int64, error) {
	c.day = day
	return c.n, c.err
}

func TestAutoComplete_RunUsesStartOfToday(t *testing.T) {
	t.Parallel()
	store := &completerStub{n: 3}
	now := func() time.Time { return time.Date(2025, 6, 10, 18, 45, 0, 0, time.FixedZone("UTC-5", -5*3600)) }
	job := NewAutoComplete(store, zap.NewNop(), now, time.Second)

	n, err := job.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if n != 3 {
		t.Fatalf("expected 3, got %d", n)
	}
	want := time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC) // 18:45 UTC-5 is 23:45 UTC
	if !store.day.Equal(want) {
		t.Fatalf("cutoff = %v, want %v", store.day, want)
	}
}

func TestAutoComplete_RunPropagatesError(t *testing.T) {
	t.Parallel()
	job := NewAutoComplete(&completerStub{err: errors.New("db down")}, nil, nil, 0)
	if _, err := job.Run(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

func TestNewScheduler_RejectsBadSpec(t *testing.T) {
	t.Parallel()
	job := NewAutoComplete(&completerStub{}, nil, nil, 0)
	if _, err := NewScheduler("every tuesday", job, zap.NewNop()); err == nil {
		t.Fatal("expected invalid cron spec error")
	}
	s, err := NewScheduler("@hourly", job, zap.NewNop())
	if err != nil {
		t.Fatalf("NewScheduler: %v", err)
	}
	s.Start()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	s.Stop(ctx)
}
