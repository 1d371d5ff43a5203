package repository

import (
	"context"

	"github.com/jmoiron/sqlx"
)

func sqliteInsert(ctx context.Context, db *sqlx.DB, query string, arg interface{}) (int64, error) {
	res, err := db.NamedExecContext(ctx, query, arg)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}
