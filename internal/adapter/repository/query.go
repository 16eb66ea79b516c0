package repository

import (
	"context"

	"entgo.io/ent/dialect"
	"entgo.io/ent/dialect/sql"
)

// queryRows runs a select built with the ent sql builder.
func queryRows(ctx context.Context, q dialect.ExecQuerier, b sql.Querier) (*sql.Rows, error) {
	query, args := b.Query()
	rows := &sql.Rows{}
	if err := q.Query(ctx, query, args, rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// execute runs an insert, update or delete and returns the driver result.
func execute(ctx context.Context, q dialect.ExecQuerier, b sql.Querier) (sql.Result, error) {
	query, args := b.Query()
	var res sql.Result
	if err := q.Exec(ctx, query, args, &res); err != nil {
		return nil, err
	}
	return res, nil
}

// insertID runs insert and returns the generated primary key. Postgres has
// no LastInsertId so the key is read back with RETURNING.
func insertID(ctx context.Context, q dialect.ExecQuerier, name string, insert *sql.InsertBuilder) (int64, error) {
	if name == dialect.Postgres {
		rows, err := queryRows(ctx, q, insert.Returning("id"))
		if err != nil {
			return 0, err
		}
		defer rows.Close()
		return sql.ScanInt64(rows)
	}
	res, err := execute(ctx, q, insert)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// rowsAffected runs b and reports how many rows it touched.
func rowsAffected(ctx context.Context, q dialect.ExecQuerier, b sql.Querier) (int64, error) {
	res, err := execute(ctx, q, b)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func nullableInt64(v *int64) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullableString(v string) any {
	if v == "" {
		return nil
	}
	return v
}
