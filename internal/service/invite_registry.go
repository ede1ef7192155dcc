package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"referral-system/internal/codegen"
	"referral-system/internal/config"
	"referral-system/internal/domain"
	"referral-system/internal/repository"
)

// InviteRegistry asigna invite codes y registra las relaciones de referidos.
type InviteRegistry struct {
	logger *zap.Logger
	users  repository.UserRepository
	gen    *codegen.Generator
	policy codegen.Policy
	now    func() time.Time
}

func NewInviteRegistry(logger *zap.Logger, users repository.UserRepository, gen *codegen.Generator, cfg config.InviteCodeConfig) *InviteRegistry {
	if logger == nil {
		logger = zap.NewNop()
	}
	if gen == nil {
		gen = codegen.New()
	}
	return &InviteRegistry{
		logger: logger,
		users:  users,
		gen:    gen,
		policy: codegen.Policy{
			Length:      cfg.Length,
			Charset:     cfg.Charset,
			MaxAttempts: cfg.MaxAttempts,
		},
		now: time.Now,
	}
}

// CreateUser obtiene o crea el usuario del teléfono. Un usuario nuevo recibe un
// invite code único; si se agotan los intentos devuelve codegen.ErrCodeGeneration.
func (r *InviteRegistry) CreateUser(ctx context.Context, phone string) (domain.User, bool, error) {
	if r.users == nil {
		return domain.User{}, false, errors.New("invite registry not configured")
	}

	existing, err := r.users.GetByPhone(ctx, phone)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return domain.User{}, false, err
	}

	var (
		user    domain.User
		created bool
	)
	_, err = r.gen.Allocate(ctx, r.policy, func(ctx context.Context, code string) error {
		stored, ok, err := r.users.CreateIfAbsent(ctx, domain.User{
			ID:          uuid.NewString(),
			PhoneNumber: phone,
			InviteCode:  code,
			CreatedAt:   r.now().UTC(),
		})
		if err != nil {
			return err
		}
		user, created = stored, ok
		return nil
	})
	if err != nil {
		if errors.Is(err, codegen.ErrCodeGeneration) {
			r.logger.Error("invite code space exhausted",
				zap.String("phone_number", phone),
				zap.Int("max_attempts", r.policy.MaxAttempts),
			)
		}
		return domain.User{}, false, err
	}
	return user, created, nil
}

// GetUser devuelve ErrUserNotFound si el id no existe.
func (r *InviteRegistry) GetUser(ctx context.Context, id string) (domain.User, error) {
	user, err := r.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.User{}, ErrUserNotFound
		}
		return domain.User{}, err
	}
	return user, nil
}

// ActivateInvite registra candidate como el invite code del referente de user.
func (r *InviteRegistry) ActivateInvite(ctx context.Context, user domain.User, candidate string) (domain.User, error) {
	if user.HasActivatedInvite() {
		return domain.User{}, ErrInviteAlreadyActivated
	}
	candidate, err := validateInviteCode(candidate)
	if err != nil {
		return domain.User{}, err
	}

	referrer, err := r.users.GetByInviteCode(ctx, candidate)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.User{}, ErrInvalidInviteCode
		}
		return domain.User{}, err
	}
	if referrer.ID == user.ID {
		return domain.User{}, ErrSelfInviteNotAllowed
	}

	ok, err := r.users.SetActivatedInviteCode(ctx, user.ID, referrer.InviteCode)
	if err != nil {
		return domain.User{}, err
	}
	if !ok {
		// Otra petición activó un código entre la lectura y la escritura.
		return domain.User{}, ErrInviteAlreadyActivated
	}

	code := referrer.InviteCode
	user.ActivatedInviteCode = &code
	r.logger.Info("invite code activated",
		zap.String("user_id", user.ID),
		zap.String("referrer_id", referrer.ID),
	)
	return user, nil
}

// ListReferrals devuelve los teléfonos de quienes activaron el invite code de user.
func (r *InviteRegistry) ListReferrals(ctx context.Context, user domain.User) ([]string, error) {
	phones, err := r.users.ListReferralPhones(ctx, user.InviteCode)
	if err != nil {
		return nil, fmt.Errorf("list referrals: %w", err)
	}
	return phones, nil
}

// Profile arma la vista completa del usuario con sus referidos.
func (r *InviteRegistry) Profile(ctx context.Context, userID string) (domain.Profile, error) {
	user, err := r.GetUser(ctx, userID)
	if err != nil {
		return domain.Profile{}, err
	}
	return r.profileOf(ctx, user)
}

// ActivateInviteForUser carga el usuario, activa el código y devuelve el perfil actualizado.
func (r *InviteRegistry) ActivateInviteForUser(ctx context.Context, userID, candidate string) (domain.Profile, error) {
	user, err := r.GetUser(ctx, userID)
	if err != nil {
		return domain.Profile{}, err
	}
	updated, err := r.ActivateInvite(ctx, user, candidate)
	if err != nil {
		return domain.Profile{}, err
	}
	return r.profileOf(ctx, updated)
}

func (r *InviteRegistry) profileOf(ctx context.Context, user domain.User) (domain.Profile, error) {
	referrals, err := r.ListReferrals(ctx, user)
	if err != nil {
		return domain.Profile{}, err
	}
	return domain.Profile{User: user, Referrals: referrals}, nil
}
