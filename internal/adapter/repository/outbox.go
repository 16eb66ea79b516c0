package repository

import (
	"context"
	"time"

	"entgo.io/ent/dialect"
	"entgo.io/ent/dialect/sql"

	"github.com/eslsoft/audiolink/internal/entity"
	"github.com/eslsoft/audiolink/internal/infrastructure/database"
	"github.com/eslsoft/audiolink/internal/repository"
)

type reindexOutbox struct {
	q       dialect.ExecQuerier
	dialect string
	clock   func() time.Time
}

// NewReindexOutbox stores pending reindex triggers in the pending_reindex table.
func NewReindexOutbox(q dialect.ExecQuerier, dialectName string) repository.ReindexOutbox {
	return &reindexOutbox{q: q, dialect: dialectName, clock: time.Now}
}

func (o *reindexOutbox) Enqueue(ctx context.Context, sentenceID int64) (int64, error) {
	insert := sql.Dialect(o.dialect).
		Insert(database.PendingReindexTable).
		Columns("sentence_id", "created_at").
		Values(sentenceID, o.clock().UTC())
	id, err := insertID(ctx, o.q, o.dialect, insert)
	if err != nil {
		return 0, translateError("enqueue reindex", err)
	}
	return id, nil
}

// Ack removes a delivered entry. Acking an unknown id is not an error so a
// concurrent relay pass and the write path can both confirm the same entry.
func (o *reindexOutbox) Ack(ctx context.Context, id int64) error {
	del := sql.Dialect(o.dialect).
		Delete(database.PendingReindexTable).
		Where(sql.EQ("id", id))
	if _, err := execute(ctx, o.q, del); err != nil {
		return translateError("ack reindex", err)
	}
	return nil
}

func (o *reindexOutbox) ListPending(ctx context.Context, olderThan time.Time, limit int) ([]entity.PendingReindex, error) {
	b := sql.Dialect(o.dialect)
	s := b.Select("id", "sentence_id", "created_at").
		From(b.Table(database.PendingReindexTable)).
		Where(sql.LTE("created_at", olderThan.UTC())).
		OrderBy("id")
	if limit > 0 {
		s.Limit(limit)
	}
	rows, err := queryRows(ctx, o.q, s)
	if err != nil {
		return nil, translateError("list pending reindex", err)
	}
	defer rows.Close()

	var pending []entity.PendingReindex
	for rows.Next() {
		var p entity.PendingReindex
		if err := rows.Scan(&p.ID, &p.SentenceID, &p.CreatedAt); err != nil {
			return nil, translateError("scan pending reindex", err)
		}
		pending = append(pending, p)
	}
	if err := rows.Err(); err != nil {
		return nil, translateError("iterate pending reindex", err)
	}
	return pending, nil
}
