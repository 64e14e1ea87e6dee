package core

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
)

type (
	DBExecutor interface {
		sqlx.ExtContext
		GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
		SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	}

	DB interface {
		DBExecutor

		BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
	}

	DBTransactor interface {
		DBExecutor

		Commit() error
		Rollback() error
	}
)

var (
	_ DB           = (*sqlx.DB)(nil)
	_ DBTransactor = (*sqlx.Tx)(nil)
)
