package store

import (
	"context"
	"database/sql"

	"github.com/juju/errors"
)

// withTx commits when fn returns nil. Any error or panic from fn leaves the
// transaction rolled back; a panic is re-raised afterwards.
func withTx(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return errors.Annotate(err, "begin")
	}

	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return errors.Annotate(err, "commit")
	}
	committed = true
	return nil
}

// InTx runs fn against a Postgres bound to a single transaction. Every write
// made through it is committed together, or none is.
func (p *Postgres) InTx(ctx context.Context, fn func(tx *Postgres) error) error {
	if p.tx != nil {
		return fn(p)
	}
	return withTx(ctx, p.db, func(tx *sql.Tx) error {
		return fn(&Postgres{db: p.db, q: tx, tx: tx})
	})
}

// Truncate removes every user and their preferences.
func (p *Postgres) Truncate(ctx context.Context) error {
	_, err := p.q.ExecContext(ctx, `TRUNCATE TABLE interests, users RESTART IDENTITY CASCADE`)
	return errors.Annotate(err, "truncate")
}
