package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"referral-system/internal/delivery"
	"referral-system/internal/domain"
)

// AuthService orquesta el envío y la verificación de códigos por teléfono.
//
// Por teléfono: sin código -> código emitido -> verificado | expirado | intento inválido.
// Un nuevo envío siempre reemplaza el código pendiente.
type AuthService struct {
	logger   *zap.Logger
	codes    *VerificationStore
	registry *InviteRegistry
	sender   delivery.Sender
}

func NewAuthService(logger *zap.Logger, codes *VerificationStore, registry *InviteRegistry, sender delivery.Sender) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthService{
		logger:   logger,
		codes:    codes,
		registry: registry,
		sender:   sender,
	}
}

// VerifyResult es el resultado de una verificación exitosa.
type VerifyResult struct {
	User      domain.User
	IsNewUser bool
}

// SendCode emite un código nuevo para phone y simula su entrega.
func (s *AuthService) SendCode(ctx context.Context, phone string) (domain.VerificationCode, error) {
	phone, err := ValidatePhone(phone)
	if err != nil {
		return domain.VerificationCode{}, err
	}

	record, err := s.codes.CreateCode(ctx, phone)
	if err != nil {
		return domain.VerificationCode{}, err
	}
	s.logger.Info("verification code issued",
		zap.String("phone_number", phone),
		zap.Time("expires_at", record.ExpiresAt),
	)

	if s.sender != nil {
		if err := s.sender.SendVerificationCode(ctx, phone, record.Code, record.ExpiresAt); err != nil {
			// El cliente se fue durante la entrega; el código ya quedó emitido.
			if errors.Is(err, context.Canceled) {
				s.logger.Debug("verification code delivery aborted",
					zap.String("phone_number", phone),
				)
			}
			return domain.VerificationCode{}, fmt.Errorf("deliver verification code: %w", err)
		}
	}
	return record, nil
}

// VerifyCode consume el código y obtiene o crea el usuario del teléfono.
func (s *AuthService) VerifyCode(ctx context.Context, phone, code string) (VerifyResult, error) {
	phone, err := ValidatePhone(phone)
	if err != nil {
		return VerifyResult{}, err
	}
	code, err = validateCode(code, s.codes.CodeLength())
	if err != nil {
		return VerifyResult{}, err
	}

	record, found, err := s.codes.Find(ctx, phone, code)
	if err != nil {
		return VerifyResult{}, err
	}
	if !found {
		s.logger.Warn("invalid verification code", zap.String("phone_number", phone))
		return VerifyResult{}, ErrInvalidCode
	}

	if !s.codes.IsValid(record) {
		if _, err := s.codes.Consume(ctx, record); err != nil {
			return VerifyResult{}, err
		}
		s.logger.Warn("expired verification code", zap.String("phone_number", phone))
		return VerifyResult{}, ErrCodeExpired
	}

	consumed, err := s.codes.Consume(ctx, record)
	if err != nil {
		return VerifyResult{}, err
	}
	if !consumed {
		// Otra petición concurrente ya usó el código.
		return VerifyResult{}, ErrInvalidCode
	}

	user, created, err := s.registry.CreateUser(ctx, phone)
	if err != nil {
		s.logger.Error("user creation failed", zap.String("phone_number", phone), zap.Error(err))
		if errors.Is(err, context.Canceled) {
			return VerifyResult{}, err
		}
		return VerifyResult{}, fmt.Errorf("%w: %w", ErrUserCreation, err)
	}
	if created {
		s.logger.Info("user created", zap.String("user_id", user.ID), zap.String("phone_number", phone))
	} else {
		s.logger.Info("user authenticated", zap.String("user_id", user.ID))
	}
	return VerifyResult{User: user, IsNewUser: created}, nil
}
