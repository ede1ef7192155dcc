package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"referral-system/internal/codegen"
	"referral-system/internal/config"
	"referral-system/internal/domain"
	"referral-system/internal/repository"
)

// VerificationStore gestiona el ciclo de vida de los códigos de verificación.
type VerificationStore struct {
	logger *zap.Logger
	codes  repository.VerificationCodeRepository
	gen    *codegen.Generator
	policy codegen.Policy
	ttl    time.Duration
	now    func() time.Time
}

func NewVerificationStore(logger *zap.Logger, codes repository.VerificationCodeRepository, gen *codegen.Generator, cfg config.VerificationCodeConfig) *VerificationStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	if gen == nil {
		gen = codegen.New()
	}
	return &VerificationStore{
		logger: logger,
		codes:  codes,
		gen:    gen,
		policy: codegen.Policy{
			Length:      cfg.Length,
			Charset:     cfg.Alphabet(),
			MaxAttempts: cfg.MaxAttempts,
		},
		ttl: cfg.Expiration(),
		now: time.Now,
	}
}

// CodeLength es la longitud de los códigos emitidos.
func (s *VerificationStore) CodeLength() int {
	return s.policy.Length
}

// CreateCode reemplaza cualquier código previo del teléfono por uno nuevo y único.
// Si no queda código libre el teléfono se queda sin código.
func (s *VerificationStore) CreateCode(ctx context.Context, phone string) (domain.VerificationCode, error) {
	if s.codes == nil {
		return domain.VerificationCode{}, errors.New("verification store not configured")
	}

	now := s.now().UTC()
	var record domain.VerificationCode
	err := s.codes.Replace(ctx, phone, func(ctx context.Context, insert repository.InsertFunc) error {
		_, err := s.gen.Allocate(ctx, s.policy, func(ctx context.Context, code string) error {
			candidate := domain.VerificationCode{
				ID:          uuid.NewString(),
				PhoneNumber: phone,
				Code:        code,
				CreatedAt:   now,
				ExpiresAt:   now.Add(s.ttl),
			}
			if err := insert(ctx, candidate); err != nil {
				return err
			}
			record = candidate
			return nil
		})
		return err
	})
	if err != nil {
		if errors.Is(err, codegen.ErrCodeGeneration) {
			s.logger.Error("verification code space exhausted",
				zap.String("phone_number", phone),
				zap.Int("max_attempts", s.policy.MaxAttempts),
			)
		}
		return domain.VerificationCode{}, err
	}
	return record, nil
}

// Find busca el código exacto para el teléfono; found=false si no existe.
func (s *VerificationStore) Find(ctx context.Context, phone, code string) (domain.VerificationCode, bool, error) {
	record, err := s.codes.Find(ctx, phone, code)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.VerificationCode{}, false, nil
		}
		return domain.VerificationCode{}, false, err
	}
	return record, true, nil
}

func (s *VerificationStore) IsValid(record domain.VerificationCode) bool {
	return record.IsValid(s.now().UTC())
}

// Consume borra el registro. Devuelve false si otra petición lo consumió antes.
func (s *VerificationStore) Consume(ctx context.Context, record domain.VerificationCode) (bool, error) {
	return s.codes.Delete(ctx, record.ID)
}

// SweepExpired borra los códigos con expires_at anterior a ahora.
func (s *VerificationStore) SweepExpired(ctx context.Context) (int64, error) {
	return s.codes.DeleteExpired(ctx, s.now().UTC())
}
