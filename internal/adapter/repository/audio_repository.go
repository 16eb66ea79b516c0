package repository

import (
	"context"
	stdsql "database/sql"
	"errors"
	"fmt"
	"time"

	"entgo.io/ent/dialect"
	"entgo.io/ent/dialect/sql"
	"github.com/samber/lo"

	"github.com/eslsoft/audiolink/internal/entity"
	"github.com/eslsoft/audiolink/internal/infrastructure/database"
	"github.com/eslsoft/audiolink/internal/repository"
	"github.com/eslsoft/audiolink/pkg/filterexpr"
)

// sqlite caps bound parameters per statement; batches stay well below it.
const _inChunkSize = 500

var audioColumns = []string{"id", "sentence_id", "user_id", "author", "licence_id", "created_at", "updated_at"}

type audioRepository struct {
	q       dialect.ExecQuerier
	dialect string
}

// NewAudioRepository builds an AudioRepository over a driver or transaction.
func NewAudioRepository(q dialect.ExecQuerier, dialectName string) repository.AudioRepository {
	return &audioRepository{q: q, dialect: dialectName}
}

type listAudiosParams struct {
	SentenceID    *int64
	SentenceIDs   []int64
	UserID        *int64
	Author        string
	AuthorPrefix  string
	Lang          string
	Langs         []string
	CreatedFrom   *time.Time
	CreatedTo     *time.Time
	PrimaryKey    string
	PrimaryDesc   bool
	SecondaryKey  string
	SecondaryDesc bool
}

func (r *audioRepository) Create(ctx context.Context, audio *entity.Audio) (*entity.Audio, error) {
	insert := sql.Dialect(r.dialect).
		Insert(database.AudiosTable).
		Columns(audioColumns[1:]...).
		Values(audio.SentenceID, nullableInt64(audio.UserID), nullableString(audio.Author), audio.LicenceID, audio.CreatedAt.UTC(), audio.UpdatedAt.UTC())
	id, err := insertID(ctx, r.q, r.dialect, insert)
	if err != nil {
		return nil, translateError("create audio", err)
	}
	created := *audio
	created.ID = id
	return &created, nil
}

func (r *audioRepository) Update(ctx context.Context, audio *entity.Audio) (*entity.Audio, error) {
	update := sql.Dialect(r.dialect).
		Update(database.AudiosTable).
		Set("sentence_id", audio.SentenceID).
		Set("user_id", nullableInt64(audio.UserID)).
		Set("author", nullableString(audio.Author)).
		Set("licence_id", audio.LicenceID).
		Set("updated_at", audio.UpdatedAt.UTC()).
		Where(sql.EQ("id", audio.ID))
	affected, err := rowsAffected(ctx, r.q, update)
	if err != nil {
		return nil, translateError("update audio", err)
	}
	if affected == 0 {
		return nil, entity.ErrAudioNotFound
	}
	updated := *audio
	return &updated, nil
}

func (r *audioRepository) GetByID(ctx context.Context, id int64) (*entity.Audio, error) {
	audio, err := r.first(ctx, sql.EQ("id", id))
	if err != nil {
		return nil, translateError("get audio", err)
	}
	if audio == nil {
		return nil, entity.ErrAudioNotFound
	}
	return audio, nil
}

func (r *audioRepository) FindBySentenceID(ctx context.Context, sentenceID int64) (*entity.Audio, error) {
	audio, err := r.first(ctx, sql.EQ("sentence_id", sentenceID))
	if err != nil {
		return nil, translateError("find audio by sentence", err)
	}
	return audio, nil
}

func (r *audioRepository) first(ctx context.Context, pred *sql.Predicate) (*entity.Audio, error) {
	b := sql.Dialect(r.dialect)
	t := b.Table(database.AudiosTable)
	s := b.Select(lo.Map(audioColumns, func(c string, _ int) string { return t.C(c) })...).
		From(t).
		Where(pred).
		Limit(1)
	items, err := r.scan(ctx, s)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, nil
	}
	return &items[0], nil
}

func (r *audioRepository) List(ctx context.Context, query *repository.ListAudioQuery) ([]entity.Audio, int64, error) {
	var params listAudiosParams
	if err := filterexpr.Bind(query, &params, listAudiosSchema); err != nil {
		if errors.Is(err, filterexpr.ErrInvalidQuery) {
			return nil, 0, fmt.Errorf("%w: %v", entity.ErrValidation, err)
		}
		return nil, 0, err
	}

	b := sql.Dialect(r.dialect)
	t := b.Table(database.AudiosTable)

	counter := b.Select(sql.Count("*")).From(t)
	applyAudioFilters(b, counter, t, params)
	rows, err := queryRows(ctx, r.q, counter)
	if err != nil {
		return nil, 0, translateError("count audios", err)
	}
	total, err := sql.ScanInt64(rows)
	rows.Close()
	if err != nil {
		return nil, 0, translateError("count audios", err)
	}

	s := b.Select(lo.Map(audioColumns, func(c string, _ int) string { return t.C(c) })...).From(t)
	applyAudioFilters(b, s, t, params)
	applyAudioOrdering(s, t, params)
	if query.PageSize > 0 {
		s.Limit(int(query.PageSize))
		if offset := query.Offset(); offset > 0 {
			s.Offset(int(offset))
		}
	}

	items, err := r.scan(ctx, s)
	if err != nil {
		return nil, 0, translateError("list audios", err)
	}
	return items, total, nil
}

func applyAudioFilters(b *sql.DialectBuilder, s *sql.Selector, t *sql.SelectTable, params listAudiosParams) {
	if params.SentenceID != nil {
		s.Where(sql.EQ(t.C("sentence_id"), *params.SentenceID))
	}
	if len(params.SentenceIDs) > 0 {
		s.Where(sql.In(t.C("sentence_id"), lo.ToAnySlice(lo.Uniq(params.SentenceIDs))...))
	}
	if params.UserID != nil {
		s.Where(sql.EQ(t.C("user_id"), *params.UserID))
	}
	if params.Author != "" {
		s.Where(sql.EQ(t.C("author"), params.Author))
	}
	if params.AuthorPrefix != "" {
		s.Where(sql.HasPrefix(t.C("author"), params.AuthorPrefix))
	}
	if params.CreatedFrom != nil {
		s.Where(sql.GTE(t.C("created_at"), params.CreatedFrom.UTC()))
	}
	if params.CreatedTo != nil {
		s.Where(sql.LTE(t.C("created_at"), params.CreatedTo.UTC()))
	}

	langs := params.Langs
	if params.Lang != "" {
		langs = append(langs, params.Lang)
	}
	if len(langs) == 0 {
		return
	}
	st := b.Table(database.SentencesTable).As("s")
	s.Join(st).On(t.C("sentence_id"), st.C("id"))
	langs = lo.Uniq(lo.Map(langs, func(l string, _ int) string { return entity.NormalizeLanguage(l) }))
	// Sentences without a language are stored as NULL and reported as "und".
	known := lo.Without(langs, entity.UnknownLanguage)
	var preds []*sql.Predicate
	if len(known) > 0 {
		preds = append(preds, sql.In(st.C("lang"), lo.ToAnySlice(known)...))
	}
	if len(known) < len(langs) {
		preds = append(preds, sql.Or(sql.IsNull(st.C("lang")), sql.EQ(st.C("lang"), "")))
	}
	s.Where(sql.Or(preds...))
}

func applyAudioOrdering(s *sql.Selector, t *sql.SelectTable, params listAudiosParams) {
	for _, term := range []struct {
		key  string
		desc bool
	}{
		{key: params.PrimaryKey, desc: params.PrimaryDesc},
		{key: params.SecondaryKey, desc: params.SecondaryDesc},
	} {
		field, ok := listAudiosSchema.Order.Fields[term.key]
		if !ok {
			continue
		}
		if term.desc {
			s.OrderBy(sql.Desc(t.C(field.Expr)))
		} else {
			s.OrderBy(sql.Asc(t.C(field.Expr)))
		}
	}
	if params.PrimaryKey != "id" && params.SecondaryKey != "id" {
		s.OrderBy(t.C("id"))
	}
}

func (r *audioRepository) Delete(ctx context.Context, id int64) error {
	del := sql.Dialect(r.dialect).
		Delete(database.AudiosTable).
		Where(sql.EQ("id", id))
	affected, err := rowsAffected(ctx, r.q, del)
	if err != nil {
		return translateError("delete audio", err)
	}
	if affected == 0 {
		return entity.ErrAudioNotFound
	}
	return nil
}

func (r *audioRepository) SentencesWithAudio(ctx context.Context, sentenceIDs []int64) ([]int64, error) {
	ids := lo.Uniq(sentenceIDs)
	found := make([]int64, 0, len(ids))
	for _, chunk := range lo.Chunk(ids, _inChunkSize) {
		b := sql.Dialect(r.dialect)
		s := b.Select("sentence_id").
			From(b.Table(database.AudiosTable)).
			Where(sql.In("sentence_id", lo.ToAnySlice(chunk)...))
		rows, err := queryRows(ctx, r.q, s)
		if err != nil {
			return nil, translateError("query sentences with audio", err)
		}
		var got []int64
		err = sql.ScanSlice(rows, &got)
		rows.Close()
		if err != nil {
			return nil, translateError("scan sentences with audio", err)
		}
		found = append(found, got...)
	}
	return found, nil
}

func (r *audioRepository) CountByLanguage(ctx context.Context) ([]entity.LanguageStat, error) {
	b := sql.Dialect(r.dialect)
	// Aliases are fixed before C() so the select list matches the join.
	a := b.Table(database.AudiosTable)
	st := b.Table(database.SentencesTable).As("s")
	s := b.Select(st.C("lang"), sql.As(sql.Count(a.C("id")), "total")).
		From(a).
		Join(st).On(a.C("sentence_id"), st.C("id")).
		GroupBy(st.C("lang"))

	rows, err := queryRows(ctx, r.q, s)
	if err != nil {
		return nil, translateError("count audios by language", err)
	}
	defer rows.Close()

	var stats []entity.LanguageStat
	for rows.Next() {
		var (
			lang  stdsql.NullString
			total int64
		)
		if err := rows.Scan(&lang, &total); err != nil {
			return nil, translateError("scan language stats", err)
		}
		stats = append(stats, entity.LanguageStat{Language: lang.String, Total: total})
	}
	if err := rows.Err(); err != nil {
		return nil, translateError("iterate language stats", err)
	}
	return stats, nil
}

func (r *audioRepository) scan(ctx context.Context, s *sql.Selector) ([]entity.Audio, error) {
	rows, err := queryRows(ctx, r.q, s)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []entity.Audio
	for rows.Next() {
		var (
			audio  entity.Audio
			userID stdsql.NullInt64
			author stdsql.NullString
		)
		if err := rows.Scan(&audio.ID, &audio.SentenceID, &userID, &author, &audio.LicenceID, &audio.CreatedAt, &audio.UpdatedAt); err != nil {
			return nil, err
		}
		if userID.Valid {
			audio.UserID = lo.ToPtr(userID.Int64)
		}
		audio.Author = author.String
		items = append(items, audio)
	}
	return items, rows.Err()
}
