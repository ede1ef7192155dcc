package repository

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"referral-system/internal/codegen"
)

const pgUniqueViolation = "23505"

// Los errores de colisión envuelven codegen.ErrCodeTaken para que la reserva reintente.
var (
	ErrInviteCodeTaken       = fmt.Errorf("invite code already exists: %w", codegen.ErrCodeTaken)
	ErrVerificationCodeTaken = fmt.Errorf("verification code already exists: %w", codegen.ErrCodeTaken)
)

func isUniqueViolation(err error, constraints ...string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != pgUniqueViolation {
		return false
	}
	if len(constraints) == 0 {
		return true
	}
	for _, c := range constraints {
		if pgErr.ConstraintName == c {
			return true
		}
	}
	return false
}
