package repository

import (
	"context"
	"strings"

	"entgo.io/ent/dialect"
	"entgo.io/ent/dialect/sql"

	"github.com/eslsoft/audiolink/internal/infrastructure/database"
	"github.com/eslsoft/audiolink/internal/repository"
)

type userDirectory struct {
	q       dialect.ExecQuerier
	dialect string
}

// NewUserDirectory resolves usernames against the users table.
func NewUserDirectory(q dialect.ExecQuerier, dialectName string) repository.UserDirectory {
	return &userDirectory{q: q, dialect: dialectName}
}

func (d *userDirectory) FindByUsername(ctx context.Context, username string) (int64, bool, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return 0, false, nil
	}
	b := sql.Dialect(d.dialect)
	s := b.Select("id").
		From(b.Table(database.UsersTable)).
		Where(sql.EQ("username", username)).
		Limit(1)
	rows, err := queryRows(ctx, d.q, s)
	if err != nil {
		return 0, false, translateError("find user", err)
	}
	defer rows.Close()
	if !rows.Next() {
		return 0, false, translateError("find user", rows.Err())
	}
	var id int64
	if err := rows.Scan(&id); err != nil {
		return 0, false, translateError("scan user", err)
	}
	return id, true, nil
}
