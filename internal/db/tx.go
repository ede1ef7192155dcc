package db

import (
	"context"

	"github.com/jackc/pgx/v5"
)

// Beginner lo satisfacen *pgxpool.Pool, *pgx.Conn y pgx.Tx.
type Beginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// WithTx abre una transacción, ejecuta fn y hace commit si fn no falla.
// Ante error o panic hace rollback; el panic se relanza.
func WithTx(ctx context.Context, db Beginner, fn func(ctx context.Context, tx pgx.Tx) error) (err error) {
	tx, err := db.Begin(ctx)
	if err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(ctx)
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback(ctx)
			return
		}
		err = tx.Commit(ctx)
	}()

	err = fn(ctx, tx)
	return err
}
