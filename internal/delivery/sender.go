package delivery

import (
	"context"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"
)

// Sender entrega un código de verificación a un teléfono.
type Sender interface {
	SendVerificationCode(ctx context.Context, phone string, code string, expiresAt time.Time) error
}

// SimulatedSender no envía SMS: espera un retardo aleatorio en [min, max] y registra el envío.
type SimulatedSender struct {
	logger *zap.Logger
	min    time.Duration
	max    time.Duration
	jitter func(n int64) int64
}

func NewSimulatedSender(logger *zap.Logger, min, max time.Duration) *SimulatedSender {
	if logger == nil {
		logger = zap.NewNop()
	}
	if min < 0 {
		min = 0
	}
	if max < min {
		max = min
	}
	return &SimulatedSender{
		logger: logger,
		min:    min,
		max:    max,
		jitter: rand.Int64N,
	}
}

func (s *SimulatedSender) SendVerificationCode(ctx context.Context, phone string, code string, expiresAt time.Time) error {
	delay := s.delay()
	if delay > 0 {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}
	s.logger.Debug("verification code delivered",
		zap.String("phone_number", phone),
		zap.String("code", code),
		zap.Time("expires_at", expiresAt),
		zap.Duration("delay", delay),
	)
	return nil
}

func (s *SimulatedSender) delay() time.Duration {
	span := int64(s.max - s.min)
	if span <= 0 {
		return s.min
	}
	return s.min + time.Duration(s.jitter(span+1))
}
