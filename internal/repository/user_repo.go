package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"referral-system/internal/domain"
)

// UserRepository define el contrato de persistencia para usuarios.
type UserRepository interface {
	// CreateIfAbsent inserta user salvo que ya exista su teléfono; en ese caso
	// devuelve el usuario existente y created=false.
	CreateIfAbsent(ctx context.Context, user domain.User) (domain.User, bool, error)
	GetByID(ctx context.Context, id string) (domain.User, error)
	GetByPhone(ctx context.Context, phone string) (domain.User, error)
	// GetByInviteCode busca sin distinguir mayúsculas.
	GetByInviteCode(ctx context.Context, code string) (domain.User, error)
	// SetActivatedInviteCode solo escribe si el usuario no tenía código activado.
	SetActivatedInviteCode(ctx context.Context, userID, code string) (bool, error)
	ListReferralPhones(ctx context.Context, inviteCode string) ([]string, error)
}

// PgUserRepository implementa UserRepository sobre Postgres.
type PgUserRepository struct {
	db DB
}

func NewPgUserRepository(db DB) *PgUserRepository {
	return &PgUserRepository{db: db}
}

const userColumns = `id, phone_number, invite_code, activated_invite_code, created_at`

func (r *PgUserRepository) CreateIfAbsent(ctx context.Context, user domain.User) (domain.User, bool, error) {
	const query = `
		INSERT INTO users (id, phone_number, invite_code, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (phone_number) DO NOTHING
		RETURNING ` + userColumns

	created, err := scanUser(r.db.QueryRow(ctx, query,
		user.ID,
		user.PhoneNumber,
		user.InviteCode,
		user.CreatedAt,
	))
	if err == nil {
		return created, true, nil
	}
	if isUniqueViolation(err, "users_invite_code_key", "users_invite_code_upper_idx") {
		return domain.User{}, false, ErrInviteCodeTaken
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return domain.User{}, false, fmt.Errorf("insert user: %w", err)
	}

	existing, err := r.GetByPhone(ctx, user.PhoneNumber)
	if err != nil {
		return domain.User{}, false, err
	}
	return existing, false, nil
}

func (r *PgUserRepository) GetByID(ctx context.Context, id string) (domain.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return scanUser(r.db.QueryRow(ctx, query, id))
}

func (r *PgUserRepository) GetByPhone(ctx context.Context, phone string) (domain.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE phone_number = $1`
	return scanUser(r.db.QueryRow(ctx, query, phone))
}

func (r *PgUserRepository) GetByInviteCode(ctx context.Context, code string) (domain.User, error) {
	const query = `
		SELECT ` + userColumns + `
		FROM users
		WHERE upper(invite_code) = upper($1)
		LIMIT 1
	`
	return scanUser(r.db.QueryRow(ctx, query, code))
}

func (r *PgUserRepository) SetActivatedInviteCode(ctx context.Context, userID, code string) (bool, error) {
	const query = `
		UPDATE users
		SET activated_invite_code = $2
		WHERE id = $1 AND activated_invite_code IS NULL
	`
	tag, err := r.db.Exec(ctx, query, userID, code)
	if err != nil {
		return false, fmt.Errorf("activate invite code: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *PgUserRepository) ListReferralPhones(ctx context.Context, inviteCode string) ([]string, error) {
	const query = `
		SELECT phone_number
		FROM users
		WHERE activated_invite_code = $1
		ORDER BY created_at ASC, id ASC
	`
	rows, err := r.db.Query(ctx, query, inviteCode)
	if err != nil {
		return nil, err
	}
	phones, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, err
	}
	if phones == nil {
		phones = []string{}
	}
	return phones, nil
}

func scanUser(row pgx.Row) (domain.User, error) {
	var u domain.User
	err := row.Scan(
		&u.ID,
		&u.PhoneNumber,
		&u.InviteCode,
		&u.ActivatedInviteCode,
		&u.CreatedAt,
	)
	if err != nil {
		return domain.User{}, err
	}
	return u, nil
}
