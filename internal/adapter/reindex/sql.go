package reindex

import (
	"context"
	"time"

	"entgo.io/ent/dialect"
	"entgo.io/ent/dialect/sql"
	"github.com/samber/lo"

	"github.com/eslsoft/audiolink/internal/entity"
	"github.com/eslsoft/audiolink/internal/infrastructure/database"
)

// SQLNotifier flags a sentence and all of its translations in the
// reindex_flags table polled by the search indexer.
type SQLNotifier struct {
	q       dialect.ExecQuerier
	dialect string
	clock   func() time.Time
}

func NewSQLNotifier(drv dialect.Driver) *SQLNotifier {
	return &SQLNotifier{q: drv, dialect: drv.Dialect(), clock: time.Now}
}

func (n *SQLNotifier) FlagForReindex(ctx context.Context, sentenceID int64) error {
	ids, err := n.withTranslations(ctx, sentenceID)
	if err != nil {
		return entity.Dependency("load translations", err)
	}

	now := n.clock().UTC()
	insert := sql.Dialect(n.dialect).
		Insert(database.ReindexFlagsTable).
		Columns("sentence_id", "created_at")
	for _, id := range ids {
		insert.Values(id, now)
	}
	insert.OnConflict(sql.ConflictColumns("sentence_id"), sql.DoNothing())

	query, args := insert.Query()
	if err := n.q.Exec(ctx, query, args, nil); err != nil {
		return entity.Dependency("flag for reindex", err)
	}
	return nil
}

// withTranslations returns sentenceID followed by every sentence linked to it
// in either direction.
func (n *SQLNotifier) withTranslations(ctx context.Context, sentenceID int64) ([]int64, error) {
	b := sql.Dialect(n.dialect)
	s := b.Select("sentence_id", "translation_id").
		From(b.Table(database.SentencesTranslationTable)).
		Where(sql.Or(
			sql.EQ("sentence_id", sentenceID),
			sql.EQ("translation_id", sentenceID),
		))
	query, args := s.Query()
	rows := &sql.Rows{}
	if err := n.q.Query(ctx, query, args, rows); err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := []int64{sentenceID}
	for rows.Next() {
		var from, to int64
		if err := rows.Scan(&from, &to); err != nil {
			return nil, err
		}
		ids = append(ids, from, to)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return lo.Uniq(ids), nil
}
