package repository

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
)

// --- PostgreSQL Implementation ---

// pgInsert appends RETURNING id since lib/pq style drivers do not support LastInsertId
func pgInsert(ctx context.Context, db *sqlx.DB, query string, arg interface{}) (int64, error) {
	rows, err := db.NamedQueryContext(ctx, query+" RETURNING id", arg)
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return 0, err
		}
		return 0, sql.ErrNoRows
	}
	var id int64
	if err := rows.Scan(&id); err != nil {
		return 0, err
	}
	return id, rows.Err()
}
