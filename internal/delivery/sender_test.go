package delivery

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestSimulatedSenderDelayWithinRange(t *testing.T) {
	s := NewSimulatedSender(zap.NewNop(), time.Second, 2*time.Second)
	for i := 0; i < 100; i++ {
		d := s.delay()
		if d < time.Second || d > 2*time.Second {
			t.Fatalf("expected delay in [1s, 2s], got %s", d)
		}
	}
}

func TestSimulatedSenderDelayBounds(t *testing.T) {
	s := NewSimulatedSender(zap.NewNop(), time.Second, 2*time.Second)

	s.jitter = func(int64) int64 { return 0 }
	if d := s.delay(); d != time.Second {
		t.Fatalf("expected min delay, got %s", d)
	}

	s.jitter = func(n int64) int64 { return n - 1 }
	if d := s.delay(); d != 2*time.Second {
		t.Fatalf("expected max delay, got %s", d)
	}
}

func TestSimulatedSenderNormalizesRange(t *testing.T) {
	s := NewSimulatedSender(nil, -time.Second, -2*time.Second)
	if s.min != 0 || s.max != 0 {
		t.Fatalf("expected zero range, got [%s, %s]", s.min, s.max)
	}
	if err := s.SendVerificationCode(context.Background(), "+79991234567", "1234", time.Now()); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
}

func TestSimulatedSenderHonorsCancellation(t *testing.T) {
	s := NewSimulatedSender(zap.NewNop(), time.Hour, time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := s.SendVerificationCode(ctx, "+79991234567", "1234", time.Now())
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
