package filterexpr

import (
	"errors"
	"slices"
	"testing"
	"time"
)

type listQuery struct {
	Filter  string
	OrderBy string
}

func (q listQuery) GetFilter() string  { return q.Filter }
func (q listQuery) GetOrderBy() string { return q.OrderBy }

type listRecordingsParams struct {
	SentenceID    *int64
	SentenceIDs   []int64
	Author        string
	AuthorPrefix  string
	Langs         []string
	Score         *float64
	CreatedFrom   *time.Time
	PrimaryKey    string
	PrimaryDesc   bool
	SecondaryKey  string
	SecondaryDesc bool
}

var recordingsSchema = ResourceSchema{
	Filter: map[string]FilterField{
		"sentence_id": {Kind: KindInteger, Ops: map[Op]string{OpEQ: "SentenceID", OpIN: "SentenceIDs"}},
		"author":      {Kind: KindString, Ops: map[Op]string{OpEQ: "Author", OpSW: "AuthorPrefix"}},
		"lang":        {Kind: KindString, Ops: map[Op]string{OpIN: "Langs"}},
		"score":       {Kind: KindNumber, Ops: map[Op]string{OpGTE: "Score"}},
		"created_at":  {Kind: KindTimestamp, Ops: map[Op]string{OpGTE: "CreatedFrom"}},
	},
	Order: OrderSchema{
		DefaultPrimary:     "created_at",
		DefaultPrimaryDesc: true,
		FallbackKey:        "id",
		Fields: map[string]OrderField{
			"created_at":  {Expr: "created_at"},
			"sentence_id": {Expr: "sentence_id"},
			"id":          {Expr: "id"},
		},
	},
}

func TestBindFilter(t *testing.T) {
	var p listRecordingsParams
	q := listQuery{Filter: "sentence_id == 42 && author.startsWith('Bo') && lang in ['eng', 'fra'] && score >= 3 && created_at >= timestamp('2025-01-01T00:00:00Z')"}
	if err := Bind(q, &p, recordingsSchema); err != nil {
		t.Fatalf("Bind returned error: %v", err)
	}
	if p.SentenceID == nil || *p.SentenceID != 42 {
		t.Fatalf("expected SentenceID 42, got %v", p.SentenceID)
	}
	if p.AuthorPrefix != "Bo" || p.Author != "" {
		t.Fatalf("unexpected author fields %q %q", p.Author, p.AuthorPrefix)
	}
	if !slices.Equal(p.Langs, []string{"eng", "fra"}) {
		t.Fatalf("unexpected langs %v", p.Langs)
	}
	if p.Score == nil || *p.Score != 3 {
		t.Fatalf("integer literal must be accepted for number fields, got %v", p.Score)
	}
	want := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	if p.CreatedFrom == nil || !p.CreatedFrom.Equal(want) {
		t.Fatalf("unexpected CreatedFrom %v", p.CreatedFrom)
	}
}

func TestBindIntegerList(t *testing.T) {
	var p listRecordingsParams
	if err := Bind(listQuery{Filter: "sentence_id in [1, 2, 3]"}, &p, recordingsSchema); err != nil {
		t.Fatalf("Bind returned error: %v", err)
	}
	if !slices.Equal(p.SentenceIDs, []int64{1, 2, 3}) {
		t.Fatalf("unexpected ids %v", p.SentenceIDs)
	}
}

func TestBindRejectsInvalidFilters(t *testing.T) {
	cases := map[string]string{
		"unknown field":    "licence == 1",
		"disallowed op":    "lang == 'eng'",
		"or":               "author == 'a' || author == 'b'",
		"negation":         "!(author == 'a')",
		"wrong type":       "sentence_id == 'x'",
		"fractional id":    "sentence_id == 1.5",
		"mixed list":       "sentence_id in [1, 'x']",
		"empty list":       "lang in []",
		"bad timestamp":    "created_at >= timestamp('yesterday')",
		"syntax":           "author ==",
		"field on right":   "'a' == author",
		"unsupported func": "author.endsWith('a')",
	}
	for name, filter := range cases {
		var p listRecordingsParams
		err := Bind(listQuery{Filter: filter}, &p, recordingsSchema)
		if !errors.Is(err, ErrInvalidQuery) {
			t.Fatalf("%s: expected ErrInvalidQuery, got %v", name, err)
		}
	}
}

func TestBindOrderBy(t *testing.T) {
	cases := []struct {
		raw  string
		want orderParams
	}{
		{"", orderParams{PrimaryKey: "created_at", PrimaryDesc: true, SecondaryKey: "id"}},
		{"sentence_id", orderParams{PrimaryKey: "sentence_id", SecondaryKey: "id"}},
		{"sentence_id DESC, created_at asc", orderParams{PrimaryKey: "sentence_id", PrimaryDesc: true, SecondaryKey: "created_at"}},
		{"id desc", orderParams{PrimaryKey: "id", PrimaryDesc: true}},
	}
	for _, c := range cases {
		var p listRecordingsParams
		if err := Bind(listQuery{OrderBy: c.raw}, &p, recordingsSchema); err != nil {
			t.Fatalf("%q: Bind returned error: %v", c.raw, err)
		}
		got := orderParams{p.PrimaryKey, p.PrimaryDesc, p.SecondaryKey, p.SecondaryDesc}
		if got != c.want {
			t.Fatalf("%q: got %+v want %+v", c.raw, got, c.want)
		}
	}

	for _, raw := range []string{"author", "id sideways", "id, id", "id, created_at, sentence_id", "id asc desc"} {
		var p listRecordingsParams
		if err := Bind(listQuery{OrderBy: raw}, &p, recordingsSchema); !errors.Is(err, ErrInvalidQuery) {
			t.Fatalf("%q: expected ErrInvalidQuery, got %v", raw, err)
		}
	}
}

func TestBindRequiresOrderFields(t *testing.T) {
	var p struct{ Author string }
	err := Bind(listQuery{}, &p, recordingsSchema)
	if err == nil || errors.Is(err, ErrInvalidQuery) {
		t.Fatalf("a binding without order fields is a programming error, got %v", err)
	}
}
