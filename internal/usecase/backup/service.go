package backup

import (
	"bufio"
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"entgo.io/ent/dialect"
	"entgo.io/ent/dialect/sql"
	"entgo.io/ent/dialect/sql/schema"
	"entgo.io/ent/schema/field"
	"github.com/samber/lo"

	"github.com/eslsoft/audiolink/internal/entity"
	"github.com/eslsoft/audiolink/internal/infrastructure/database"
)

const (
	defaultBatchSize = 512
	formatVersion    = 1
)

var errNoTablesSelected = errors.New("backup: no tables selected")

// Queue tables only hold transient delivery state and are never exported.
var transientTables = map[string]struct{}{
	database.ReindexFlagsTable:   {},
	database.PendingReindexTable: {},
}

type ProgressReporter interface {
	StartTable(table string, total int)
	Increment(table string, delta int)
	FinishTable(table string)
}

type noopProgress struct{}

func (noopProgress) StartTable(string, int) {}
func (noopProgress) Increment(string, int)  {}
func (noopProgress) FinishTable(string)     {}

// Service dumps the audiolink tables to NDJSON and restores them.
type Service struct {
	drv        dialect.Driver
	batchSize  int
	tables     []*schema.Table
	tableIndex map[string]*schema.Table
	schemaHash string
	clock      func() time.Time
}

type Option func(*Service)

func WithBatchSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.batchSize = size
		}
	}
}

// NewService constructs a backup service bound to drv.
func NewService(drv dialect.Driver, opts ...Option) (*Service, error) {
	if drv == nil {
		return nil, errors.New("backup: driver is required")
	}
	tables, err := schema.CopyTables(database.Tables)
	if err != nil {
		return nil, fmt.Errorf("copy schema tables: %w", err)
	}
	tables = lo.Filter(tables, func(tbl *schema.Table, _ int) bool {
		_, skip := transientTables[tbl.Name]
		return !skip
	})
	tableIndex := lo.KeyBy(tables, func(tbl *schema.Table) string { return tbl.Name })

	svc := &Service{
		drv:        drv,
		batchSize:  defaultBatchSize,
		tables:     tables,
		tableIndex: tableIndex,
		schemaHash: computeSchemaHash(tables),
		clock:      time.Now,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

type ExportOption func(*exportConfig)

type exportConfig struct {
	tables   []string
	reporter ProgressReporter
}

// WithTables restricts export to the provided table names.
func WithTables(tables []string) ExportOption {
	return func(cfg *exportConfig) {
		if len(tables) == 0 {
			return
		}
		cfg.tables = append([]string{}, tables...)
	}
}

// WithProgressReporter registers a reporter that receives progress callbacks during export.
func WithProgressReporter(reporter ProgressReporter) ExportOption {
	return func(cfg *exportConfig) {
		cfg.reporter = reporter
	}
}

type ImportOption func(*importConfig)

type importConfig struct {
	tables []string
}

// WithImportTables restricts import to the provided table names.
func WithImportTables(tables []string) ImportOption {
	return func(cfg *importConfig) {
		if len(tables) == 0 {
			return
		}
		cfg.tables = append([]string{}, tables...)
	}
}

// ImportResult summarizes a restore.
type ImportResult struct {
	Rows map[string]int
	// Requeued lists the sentences whose audio was restored. Each one has a
	// pending reindex entry committed with the imported rows.
	Requeued []int64
}

type record struct {
	Type       string         `json:"type"`
	Version    int            `json:"version,omitempty"`
	ExportedAt *time.Time     `json:"exported_at,omitempty"`
	SchemaHash string         `json:"schema_hash,omitempty"`
	Tables     []string       `json:"tables,omitempty"`
	RowCounts  map[string]int `json:"row_counts,omitempty"`
	Payload    any            `json:"payload,omitempty"`
}

type rawRecord struct {
	Type       string          `json:"type"`
	Version    int             `json:"version"`
	ExportedAt *time.Time      `json:"exported_at"`
	SchemaHash string          `json:"schema_hash"`
	Tables     []string        `json:"tables"`
	RowCounts  map[string]int  `json:"row_counts"`
	Payload    json.RawMessage `json:"payload"`
}

type sequenceKey struct {
	Table  string
	Column string
}

type sequenceStats map[sequenceKey]int64

func (s *Service) Export(ctx context.Context, w io.Writer, opts ...ExportOption) error {
	cfg := exportConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}
	tables, err := s.selectTables(cfg.tables)
	if err != nil {
		return err
	}
	reporter := cfg.reporter
	if reporter == nil {
		reporter = noopProgress{}
	}

	counts := make(map[string]int, len(tables))
	for _, tbl := range tables {
		count, err := s.countTableRows(ctx, tbl.Name)
		if err != nil {
			return fmt.Errorf("count table %s: %w", tbl.Name, err)
		}
		counts[tbl.Name] = count
	}

	writer := bufio.NewWriter(w)
	defer writer.Flush()

	now := s.clock().UTC()
	meta := record{
		Type:       "meta",
		Version:    formatVersion,
		ExportedAt: &now,
		SchemaHash: s.schemaHash,
		Tables:     tableNames(tables),
		RowCounts:  counts,
	}
	if err := writeRecord(writer, meta); err != nil {
		return err
	}

	for _, tbl := range tables {
		reporter.StartTable(tbl.Name, counts[tbl.Name])
		if err := s.exportTable(ctx, tbl, reporter, writer); err != nil {
			return err
		}
		reporter.FinishTable(tbl.Name)
	}
	return writer.Flush()
}

// Import restores the records read from r in a single transaction. Rows
// that already exist are overwritten by primary key.
func (s *Service) Import(ctx context.Context, r io.Reader, opts ...ImportOption) (*ImportResult, error) {
	cfg := importConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}
	tables, err := s.selectTables(cfg.tables)
	if err != nil {
		return nil, err
	}
	tableFilter := lo.KeyBy(tables, func(tbl *schema.Table) string { return tbl.Name })

	tx, err := s.drv.Tx(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	commit := false
	defer func() {
		if !commit {
			_ = tx.Rollback()
		}
	}()

	br := bufio.NewReader(r)
	var (
		metaSeen bool
		meta     rawRecord
		stats    = make(sequenceStats)
		result   = &ImportResult{Rows: make(map[string]int)}
	)

	for {
		line, err := br.ReadBytes('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("read backup: %w", err)
		}
		line = bytes.TrimSpace(line)
		if len(line) > 0 {
			var rec rawRecord
			if err := json.Unmarshal(line, &rec); err != nil {
				return nil, fmt.Errorf("decode record: %w", err)
			}

			switch rec.Type {
			case "meta":
				if rec.Version != formatVersion {
					return nil, fmt.Errorf("backup: unsupported format version %d", rec.Version)
				}
				metaSeen = true
				meta = rec
			default:
				if !metaSeen {
					return nil, errors.New("backup: meta record must come first")
				}
				tbl, ok := tableFilter[rec.Type]
				if !ok {
					// Skip records for tables not requested.
					break
				}
				if len(rec.Payload) == 0 {
					return nil, fmt.Errorf("backup: missing payload for table %s", rec.Type)
				}
				values, err := decodePayload(tbl, rec.Payload)
				if err != nil {
					return nil, fmt.Errorf("decode payload for %s: %w", tbl.Name, err)
				}
				if tbl.Name == database.AudiosTable {
					affected, err := s.checkAudio(ctx, tx, values)
					if err != nil {
						return nil, err
					}
					result.Requeued = append(result.Requeued, affected...)
				}
				if err := s.importRow(ctx, tx, tbl, values, stats); err != nil {
					return nil, err
				}
				result.Rows[tbl.Name]++
			}
		}
		if errors.Is(err, io.EOF) {
			break
		}
	}

	if !metaSeen {
		return nil, errors.New("backup: missing meta record")
	}
	if meta.SchemaHash != "" && meta.SchemaHash != s.schemaHash {
		return nil, fmt.Errorf("backup: schema hash mismatch (backup %s, database %s)", short(meta.SchemaHash), short(s.schemaHash))
	}

	result.Requeued = lo.Uniq(result.Requeued)
	if err := s.requeue(ctx, tx, result.Requeued); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit import: %w", err)
	}
	commit = true

	if err := s.syncSequences(ctx, stats); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Service) dialect() string {
	return s.drv.Dialect()
}

func (s *Service) exportTable(ctx context.Context, table *schema.Table, reporter ProgressReporter, w io.Writer) error {
	columns := columnNames(table)
	if len(columns) == 0 {
		return nil
	}
	batch := s.batchSize
	if batch <= 0 {
		batch = defaultBatchSize
	}

	for offset := 0; ; offset += batch {
		b := sql.Dialect(s.dialect())
		selector := b.Select(columns...).
			From(b.Table(table.Name)).
			OrderBy(orderColumns(table)...).
			Limit(batch).
			Offset(offset)
		query, args := selector.Query()
		rows := &sql.Rows{}
		if err := s.drv.Query(ctx, query, args, rows); err != nil {
			return fmt.Errorf("query %s: %w", table.Name, err)
		}

		rowCount := 0
		for rows.Next() {
			values := make([]any, len(columns))
			dest := make([]any, len(columns))
			for i := range dest {
				dest[i] = &values[i]
			}
			if err := rows.Scan(dest...); err != nil {
				rows.Close()
				return fmt.Errorf("scan %s: %w", table.Name, err)
			}
			rowMap, err := convertRow(table, columns, values)
			if err != nil {
				rows.Close()
				return err
			}
			if err := writeRecord(w, record{Type: table.Name, Payload: rowMap}); err != nil {
				rows.Close()
				return err
			}
			reporter.Increment(table.Name, 1)
			rowCount++
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return fmt.Errorf("iterate %s: %w", table.Name, err)
		}
		rows.Close()
		if rowCount < batch {
			break
		}
	}
	return nil
}

// checkAudio enforces the attribution rule on a restored audio row and
// returns the sentences whose has_audio may change: the row's sentence and,
// when the row overwrites an audio attached elsewhere, the previous one.
func (s *Service) checkAudio(ctx context.Context, tx dialect.Tx, values map[string]any) ([]int64, error) {
	id, ok := tryToInt64(values["id"])
	if !ok {
		return nil, fmt.Errorf("%w: backup audio row without id", entity.ErrValidation)
	}
	attr := entity.Attribution{}
	if userID, ok := tryToInt64(values["user_id"]); ok {
		attr.UserID = &userID
	}
	if author, ok := values["author"].(string); ok {
		attr.Author = author
	}
	if err := attr.Validate(); err != nil {
		return nil, fmt.Errorf("backup: audio %d: %w", id, err)
	}

	sentenceID, ok := tryToInt64(values["sentence_id"])
	if !ok {
		return nil, fmt.Errorf("%w: backup audio %d without sentence_id", entity.ErrValidation, id)
	}
	affected := []int64{sentenceID}

	b := sql.Dialect(s.dialect())
	query, args := b.Select("sentence_id").
		From(b.Table(database.AudiosTable)).
		Where(sql.EQ("id", id)).
		Query()
	rows := &sql.Rows{}
	if err := tx.Query(ctx, query, args, rows); err != nil {
		return nil, fmt.Errorf("lookup audio %d: %w", id, err)
	}
	var previous []int64
	err := sql.ScanSlice(rows, &previous)
	rows.Close()
	if err != nil {
		return nil, fmt.Errorf("lookup audio %d: %w", id, err)
	}
	if len(previous) > 0 && previous[0] != sentenceID {
		affected = append(affected, previous[0])
	}
	return affected, nil
}

func (s *Service) importRow(ctx context.Context, tx dialect.Tx, table *schema.Table, values map[string]any, stats sequenceStats) error {
	if len(values) == 0 {
		return nil
	}

	cols := make([]string, 0, len(values))
	args := make([]any, 0, len(values))
	for _, col := range table.Columns {
		val, ok := values[col.Name]
		if !ok {
			continue
		}
		if val == nil && !col.Nullable {
			if col.Default != nil {
				val = col.Default
			} else if def, ok := defaultValueForColumn(col); ok {
				val = def
			} else {
				return fmt.Errorf("backup: missing required value for %s.%s", table.Name, col.Name)
			}
		}
		cols = append(cols, col.Name)
		args = append(args, val)
		if col.Increment {
			if max, ok := tryToInt64(val); ok {
				key := sequenceKey{Table: table.Name, Column: col.Name}
				if max > stats[key] {
					stats[key] = max
				}
			}
		}
	}
	if len(cols) == 0 {
		return nil
	}

	insert := sql.Dialect(s.dialect()).
		Insert(table.Name).
		Columns(cols...).
		Values(args...)
	if conflict := conflictColumns(table); len(conflict) > 0 {
		if len(lo.Without(cols, conflict...)) == 0 {
			insert.OnConflict(sql.ConflictColumns(conflict...), sql.DoNothing())
		} else {
			insert.OnConflict(sql.ConflictColumns(conflict...), sql.ResolveWithNewValues())
		}
	}
	query, queryArgs := insert.Query()
	if err := tx.Exec(ctx, query, queryArgs, nil); err != nil {
		return fmt.Errorf("insert into %s: %w", table.Name, err)
	}
	return nil
}

// requeue records a pending reindex entry for every restored audio so the
// relay pushes the has_audio change to the search index.
func (s *Service) requeue(ctx context.Context, tx dialect.Tx, sentenceIDs []int64) error {
	if len(sentenceIDs) == 0 {
		return nil
	}
	now := s.clock().UTC()
	for _, chunk := range lo.Chunk(sentenceIDs, s.batchSize) {
		insert := sql.Dialect(s.dialect()).
			Insert(database.PendingReindexTable).
			Columns("sentence_id", "created_at")
		for _, id := range chunk {
			insert.Values(id, now)
		}
		query, args := insert.Query()
		if err := tx.Exec(ctx, query, args, nil); err != nil {
			return fmt.Errorf("enqueue reindex: %w", err)
		}
	}
	return nil
}

func (s *Service) selectTables(requested []string) ([]*schema.Table, error) {
	if len(requested) == 0 {
		return s.tables, nil
	}
	set := make(map[string]struct{}, len(requested))
	for _, name := range requested {
		n := strings.TrimSpace(strings.ToLower(name))
		if n == "" {
			continue
		}
		if _, ok := s.tableIndex[n]; !ok {
			return nil, fmt.Errorf("backup: unsupported table %q", name)
		}
		set[n] = struct{}{}
	}
	if len(set) == 0 {
		return nil, errNoTablesSelected
	}
	// Keep dependency order so foreign keys resolve on import.
	return lo.Filter(s.tables, func(tbl *schema.Table, _ int) bool {
		_, ok := set[tbl.Name]
		return ok
	}), nil
}

func (s *Service) countTableRows(ctx context.Context, table string) (int, error) {
	b := sql.Dialect(s.dialect())
	query, args := b.Select(sql.Count("*")).
		From(b.Table(table)).
		Query()
	rows := &sql.Rows{}
	if err := s.drv.Query(ctx, query, args, rows); err != nil {
		return 0, err
	}
	defer rows.Close()
	return sql.ScanInt(rows)
}

func (s *Service) syncSequences(ctx context.Context, stats sequenceStats) error {
	if len(stats) == 0 || s.dialect() != dialect.Postgres {
		return nil
	}
	for key, maxVal := range stats {
		if maxVal <= 0 {
			continue
		}
		query := fmt.Sprintf(
			"SELECT setval(pg_get_serial_sequence('%s', '%s'), GREATEST(%d, (SELECT COALESCE(MAX(%s), 0) FROM %s)))",
			key.Table,
			key.Column,
			maxVal,
			key.Column,
			key.Table,
		)
		if err := s.drv.Exec(ctx, query, []any{}, nil); err != nil {
			return fmt.Errorf("sync sequence for %s.%s: %w", key.Table, key.Column, err)
		}
	}
	return nil
}

func convertRow(table *schema.Table, columns []string, values []any) (map[string]any, error) {
	result := make(map[string]any, len(columns))
	for idx, name := range columns {
		colInfo := findColumn(table, name)
		if colInfo == nil {
			return nil, fmt.Errorf("column %s not found in table %s", name, table.Name)
		}
		val, err := convertDBValue(colInfo, values[idx])
		if err != nil {
			return nil, fmt.Errorf("convert %s.%s: %w", table.Name, name, err)
		}
		result[name] = val
	}
	return result, nil
}

func convertDBValue(col *schema.Column, value any) (any, error) {
	if value == nil {
		return nil, nil
	}
	switch v := value.(type) {
	case []byte:
		// database/sql often returns []byte for text columns.
		value = string(v)
	case time.Time:
		return v.UTC().Format(time.RFC3339Nano), nil
	}

	switch col.Type {
	case field.TypeInt, field.TypeInt32, field.TypeInt64:
		return toInt64(value)
	case field.TypeTime:
		// sqlite may hand back the stored text when the column type is lost.
		str, err := toString(value)
		if err != nil {
			return nil, err
		}
		t, err := parseTime(str)
		if err != nil {
			return nil, err
		}
		return t.Format(time.RFC3339Nano), nil
	default:
		return value, nil
	}
}

func decodePayload(table *schema.Table, payload json.RawMessage) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()
	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}
	result := make(map[string]any, len(raw))
	for key, val := range raw {
		col := findColumn(table, key)
		if col == nil {
			return nil, fmt.Errorf("column %s not found in table %s", key, table.Name)
		}
		converted, err := convertJSONValue(col, val)
		if err != nil {
			return nil, fmt.Errorf("convert %s.%s: %w", table.Name, key, err)
		}
		result[key] = converted
	}
	return result, nil
}

func convertJSONValue(col *schema.Column, value any) (any, error) {
	if value == nil {
		return nil, nil
	}
	switch col.Type {
	case field.TypeInt, field.TypeInt32, field.TypeInt64:
		return toInt64(value)
	case field.TypeTime:
		str, err := toString(value)
		if err != nil {
			return nil, err
		}
		if str == "" {
			return nil, nil
		}
		return parseTime(str)
	default:
		return toString(value)
	}
}

func parseTime(str string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02 15:04:05.999999999-07:00", "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, str); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid time value %q", str)
}

func conflictColumns(table *schema.Table) []string {
	if len(table.PrimaryKey) > 0 {
		return columnsOf(table.PrimaryKey)
	}
	for _, idx := range table.Indexes {
		if idx.Unique && len(idx.Columns) > 0 {
			return columnsOf(idx.Columns)
		}
	}
	return nil
}

func orderColumns(table *schema.Table) []string {
	if len(table.PrimaryKey) > 0 {
		return columnsOf(table.PrimaryKey)
	}
	return columnNames(table)
}

func columnNames(table *schema.Table) []string {
	return columnsOf(table.Columns)
}

func columnsOf(cols []*schema.Column) []string {
	return lo.Map(cols, func(col *schema.Column, _ int) string { return col.Name })
}

func tableNames(tables []*schema.Table) []string {
	return lo.Map(tables, func(tbl *schema.Table, _ int) string { return tbl.Name })
}

func findColumn(table *schema.Table, name string) *schema.Column {
	col, _ := lo.Find(table.Columns, func(col *schema.Column) bool { return col.Name == name })
	return col
}

func computeSchemaHash(tables []*schema.Table) string {
	builder := &strings.Builder{}
	sortedTables := append([]*schema.Table{}, tables...)
	sort.Slice(sortedTables, func(i, j int) bool { return sortedTables[i].Name < sortedTables[j].Name })

	for _, tbl := range sortedTables {
		builder.WriteString(tbl.Name)
		builder.WriteString("|cols:")
		sortedCols := append([]*schema.Column{}, tbl.Columns...)
		sort.Slice(sortedCols, func(i, j int) bool { return sortedCols[i].Name < sortedCols[j].Name })
		for _, col := range sortedCols {
			builder.WriteString(fmt.Sprintf("%s:%d:%t:%t:%t;", col.Name, col.Type, col.Nullable, col.Unique, col.Increment))
		}
		builder.WriteString("|pk:")
		for _, pk := range tbl.PrimaryKey {
			builder.WriteString(pk.Name)
			builder.WriteByte(',')
		}
		builder.WriteString("|idx:")
		sortedIdx := append([]*schema.Index{}, tbl.Indexes...)
		sort.Slice(sortedIdx, func(i, j int) bool { return sortedIdx[i].Name < sortedIdx[j].Name })
		for _, idx := range sortedIdx {
			builder.WriteString(idx.Name)
			builder.WriteString(":")
			builder.WriteString(strconv.FormatBool(idx.Unique))
			builder.WriteString(":")
			for _, col := range idx.Columns {
				builder.WriteString(col.Name)
				builder.WriteByte(',')
			}
			builder.WriteByte(';')
		}
		builder.WriteByte('\n')
	}
	sum := sha256.Sum256([]byte(builder.String()))
	return fmt.Sprintf("%x", sum[:])
}

func short(hash string) string {
	if len(hash) > 12 {
		return hash[:12]
	}
	return hash
}

func writeRecord(w io.Writer, rec record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return err
	}
	if _, err := w.Write([]byte("\n")); err != nil {
		return err
	}
	return nil
}

func defaultValueForColumn(col *schema.Column) (any, bool) {
	switch col.Type {
	case field.TypeString:
		return "", true
	case field.TypeInt, field.TypeInt32, field.TypeInt64:
		return 0, true
	default:
		return nil, false
	}
}

func tryToInt64(val any) (int64, bool) {
	i, err := toInt64(val)
	return i, err == nil
}

func toInt64(value any) (int64, error) {
	switch v := value.(type) {
	case int64:
		return v, nil
	case int:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case json.Number:
		return v.Int64()
	case float64:
		return int64(v), nil
	case string:
		return strconv.ParseInt(v, 10, 64)
	default:
		return 0, fmt.Errorf("unsupported int type %T", value)
	}
}

func toString(value any) (string, error) {
	switch v := value.(type) {
	case string:
		return v, nil
	case json.Number:
		return v.String(), nil
	case []byte:
		return string(v), nil
	default:
		return fmt.Sprintf("%v", value), nil
	}
}
