package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"referral-system/internal/codegen"
	"referral-system/internal/db"
	"referral-system/internal/domain"
)

// InsertFunc inserta un candidato. Devuelve ErrVerificationCodeTaken si otro
// teléfono ya tiene ese código.
type InsertFunc func(ctx context.Context, code domain.VerificationCode) error

// VerificationCodeRepository define la persistencia de códigos de verificación.
type VerificationCodeRepository interface {
	// Replace borra los códigos previos de phone y llama a fill para insertar
	// el nuevo. Si fill agota los intentos (codegen.ErrCodeGeneration) el
	// borrado se confirma igualmente.
	Replace(ctx context.Context, phone string, fill func(ctx context.Context, insert InsertFunc) error) error
	Find(ctx context.Context, phone, code string) (domain.VerificationCode, error)
	// Delete devuelve false si el registro ya no existía.
	Delete(ctx context.Context, id string) (bool, error)
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

type PgVerificationCodeRepository struct {
	db DB
}

func NewPgVerificationCodeRepository(db DB) *PgVerificationCodeRepository {
	return &PgVerificationCodeRepository{db: db}
}

func (r *PgVerificationCodeRepository) Replace(ctx context.Context, phone string, fill func(ctx context.Context, insert InsertFunc) error) error {
	const (
		lockQuery   = `SELECT pg_advisory_xact_lock(hashtext($1))`
		deleteQuery = `DELETE FROM verification_codes WHERE phone_number = $1`
	)

	var fillErr error
	err := db.WithTx(ctx, r.db, func(ctx context.Context, tx pgx.Tx) error {
		// Serializa envíos concurrentes para el mismo teléfono.
		if _, err := tx.Exec(ctx, lockQuery, phone); err != nil {
			return fmt.Errorf("lock phone: %w", err)
		}
		if _, err := tx.Exec(ctx, deleteQuery, phone); err != nil {
			return fmt.Errorf("delete previous codes: %w", err)
		}
		fillErr = fill(ctx, func(ctx context.Context, code domain.VerificationCode) error {
			return insertCode(ctx, tx, code)
		})
		if fillErr != nil && !errors.Is(fillErr, codegen.ErrCodeGeneration) {
			return fillErr
		}
		return nil
	})
	if err != nil {
		return err
	}
	return fillErr
}

// insertCode corre en un savepoint para que una colisión no aborte la
// transacción exterior.
func insertCode(ctx context.Context, tx pgx.Tx, code domain.VerificationCode) error {
	const query = `
		INSERT INTO verification_codes (id, phone_number, code, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	return db.WithTx(ctx, tx, func(ctx context.Context, sp pgx.Tx) error {
		_, err := sp.Exec(ctx, query,
			code.ID,
			code.PhoneNumber,
			code.Code,
			code.CreatedAt,
			code.ExpiresAt,
		)
		if isUniqueViolation(err, "verification_codes_code_key") {
			return ErrVerificationCodeTaken
		}
		if err != nil {
			return fmt.Errorf("insert verification code: %w", err)
		}
		return nil
	})
}

func (r *PgVerificationCodeRepository) Find(ctx context.Context, phone, code string) (domain.VerificationCode, error) {
	const query = `
		SELECT id, phone_number, code, created_at, expires_at
		FROM verification_codes
		WHERE phone_number = $1 AND code = $2
	`
	var v domain.VerificationCode
	err := r.db.QueryRow(ctx, query, phone, code).Scan(
		&v.ID,
		&v.PhoneNumber,
		&v.Code,
		&v.CreatedAt,
		&v.ExpiresAt,
	)
	if err != nil {
		return domain.VerificationCode{}, err
	}
	return v, nil
}

func (r *PgVerificationCodeRepository) Delete(ctx context.Context, id string) (bool, error) {
	const query = `DELETE FROM verification_codes WHERE id = $1`
	tag, err := r.db.Exec(ctx, query, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *PgVerificationCodeRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	const query = `DELETE FROM verification_codes WHERE expires_at < $1`
	tag, err := r.db.Exec(ctx, query, now)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
