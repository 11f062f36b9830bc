package database

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/trezcool/academia/core"
)

type txKey struct{}

// Transactor runs functions in sqlx transactions carried by the context.
type Transactor struct {
	db *sqlx.DB
}

var _ core.Transactor = (*Transactor)(nil) // interface compliance check

func NewTransactor(db *sqlx.DB) *Transactor {
	return &Transactor{db: db}
}

func (t *Transactor) InTx(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if _, ok := ctx.Value(txKey{}).(*sqlx.Tx); ok {
		return fn(ctx)
	}

	tx, err := t.db.BeginTxx(ctx, nil)
	if err != nil {
		return TranslateError(err, "beginning transaction")
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err = fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && rbErr != sql.ErrTxDone {
			return errors.Wrapf(err, "rolling back transaction: %v", rbErr)
		}
		return err
	}
	if err = tx.Commit(); err != nil {
		return TranslateError(err, "committing transaction")
	}
	return nil
}

// Executor returns the transaction carried by ctx, or db when there is none.
func Executor(ctx context.Context, db *sqlx.DB) sqlx.ExtContext {
	if tx, ok := ctx.Value(txKey{}).(*sqlx.Tx); ok {
		return tx
	}
	return db
}

// TranslateError maps store errors to core errors:
// serialization failures and deadlocks are concurrent modifications,
// connection failures (and anything not coming from postgres itself) mean the data is unavailable.
func TranslateError(err error, msg string) error {
	if err == nil {
		return nil
	}
	pqErr, ok := errors.Cause(err).(*pq.Error)
	if !ok {
		if errors.Cause(err) == context.Canceled {
			return errors.Wrap(err, msg)
		}
		return core.NewDataUnavailableError(errors.Wrap(err, msg))
	}
	switch pqErr.Code {
	case "40001", "40P01": // serialization_failure, deadlock_detected
		return errors.Wrap(core.ErrConcurrentModification, msg)
	}
	switch pqErr.Code.Class() {
	case "08", "53", "57": // connection exception, insufficient resources, operator intervention
		return core.NewDataUnavailableError(errors.Wrap(err, msg))
	}
	return errors.Wrap(err, msg)
}
