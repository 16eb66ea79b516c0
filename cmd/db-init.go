/*
Copyright © 2025 Ambor <saltbo@foxmail.com>

Permission is hereby granted, free of charge, to any person obtaining a copy
of this software and associated documentation files (the "Software"), to deal
in the Software without restriction, including without limitation the rights
to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
copies of the Software, and to permit persons to whom the Software is
furnished to do so, subject to the following conditions:

The above copyright notice and this permission notice shall be included in
all copies or substantial portions of the Software.

THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
THE SOFTWARE.
*/
package cmd

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"entgo.io/ent/dialect"
	"entgo.io/ent/dialect/sql"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/eslsoft/audiolink/internal/infrastructure/database"
)

// dbInitCmd migrates the schema and optionally seeds sentences, links and users.
var dbInitCmd = &cobra.Command{
	Use:   "db-init",
	Short: "初始化数据库并导入句子数据",
	Long: `执行数据库迁移, 并可从制表符分隔的导出文件导入句子数据:
  --sentences  每行 "id<TAB>lang[<TAB>text]", lang 为 \N 或空表示未知语言
  --links      每行 "sentence_id<TAB>translation_id"
  --users      每行 "id<TAB>username"
已存在的记录会被跳过。注意: go-sqlite3 需要 CGO_ENABLED=1 构建。`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		sentencesPath, _ := cmd.Flags().GetString("sentences")
		linksPath, _ := cmd.Flags().GetString("links")
		usersPath, _ := cmd.Flags().GetString("users")
		batch, _ := cmd.Flags().GetInt("batch")

		drv, log, cleanup, err := openDriver()
		if err != nil {
			return err
		}
		defer cleanup()

		if err := runMigrations(cmd.Context(), drv); err != nil {
			return err
		}
		log.Info("数据库迁移完成")

		seeder := &seeder{drv: drv, batch: batch, logger: log, now: time.Now().UTC()}
		return seeder.run(cmd.Context(), sentencesPath, linksPath, usersPath)
	},
}

func init() {
	rootCmd.AddCommand(dbInitCmd)
	dbInitCmd.Flags().String("sentences", "", "句子文件 (TSV)")
	dbInitCmd.Flags().String("links", "", "翻译关系文件 (TSV)")
	dbInitCmd.Flags().String("users", "", "用户文件 (TSV)")
	dbInitCmd.Flags().Int("batch", 1000, "批量插入大小")
}

// runMigrations applies the schema to the target database.
func runMigrations(ctx context.Context, drv dialect.Driver) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := database.Migrate(ctx, drv); err != nil {
		return fmt.Errorf("执行数据库迁移失败: %w", err)
	}
	return nil
}

type sentenceRecord struct {
	ID   int64
	Lang *string
}

type linkRecord struct {
	SentenceID    int64
	TranslationID int64
}

type userRecord struct {
	ID       int64
	Username string
}

type seeder struct {
	drv    dialect.Driver
	batch  int
	logger logrus.FieldLogger
	now    time.Time
}

func (s *seeder) run(ctx context.Context, sentencesPath, linksPath, usersPath string) error {
	if s.batch <= 0 {
		s.batch = 1000
	}
	var known map[int64]struct{}
	if sentencesPath != "" {
		sentences, err := readTSV(sentencesPath, 2, parseSentence)
		if err != nil {
			return err
		}
		known = lo.Associate(sentences, func(r sentenceRecord) (int64, struct{}) { return r.ID, struct{}{} })
		n, err := insertBatches(ctx, s, database.SentencesTable, []string{"id", "lang"}, sentences,
			func(r sentenceRecord) []any { return []any{r.ID, r.Lang} })
		if err != nil {
			return err
		}
		s.logger.WithField("rows", n).Info("已导入句子")
	}
	if usersPath != "" {
		users, err := readTSV(usersPath, 2, parseUser)
		if err != nil {
			return err
		}
		n, err := insertBatches(ctx, s, database.UsersTable, []string{"id", "username", "created_at"}, users,
			func(r userRecord) []any { return []any{r.ID, r.Username, s.now} })
		if err != nil {
			return err
		}
		s.logger.WithField("rows", n).Info("已导入用户")
	}
	if linksPath != "" {
		links, err := readTSV(linksPath, 2, parseLink)
		if err != nil {
			return err
		}
		if known != nil {
			// Exports often link to sentences outside the imported subset.
			links = lo.Filter(links, func(l linkRecord, _ int) bool {
				_, a := known[l.SentenceID]
				_, b := known[l.TranslationID]
				return a && b
			})
		}
		n, err := insertBatches(ctx, s, database.SentencesTranslationTable, []string{"sentence_id", "translation_id"}, links,
			func(r linkRecord) []any { return []any{r.SentenceID, r.TranslationID} })
		if err != nil {
			return err
		}
		s.logger.WithField("rows", n).Info("已导入翻译关系")
	}
	return nil
}

// insertBatches inserts rows in chunks, skipping rows that already exist.
func insertBatches[T any](ctx context.Context, s *seeder, table string, columns []string, rows []T, values func(T) []any) (int, error) {
	total := 0
	for _, chunk := range lo.Chunk(rows, s.batch) {
		insert := sql.Dialect(s.drv.Dialect()).Insert(table).Columns(columns...)
		for _, row := range chunk {
			insert.Values(values(row)...)
		}
		insert.OnConflict(sql.DoNothing())
		query, args := insert.Query()
		if err := s.drv.Exec(ctx, query, args, nil); err != nil {
			return total, fmt.Errorf("导入 %s 失败: %w", table, err)
		}
		total += len(chunk)
	}
	return total, nil
}

// readTSV parses a tab separated file. Tatoeba style exports are not valid
// CSV quoting, so quotes are taken literally.
func readTSV[T any](path string, minFields int, parse func([]string) (T, error)) ([]T, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("打开文件失败: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.Comma = '\t'
	r.LazyQuotes = true
	r.FieldsPerRecord = -1
	r.ReuseRecord = true

	var out []T
	for line := 1; ; line++ {
		fields, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%s 第 %d 行: %w", path, line, err)
		}
		if len(fields) < minFields {
			return nil, fmt.Errorf("%s 第 %d 行: 至少需要 %d 列", path, line, minFields)
		}
		rec, err := parse(fields)
		if err != nil {
			return nil, fmt.Errorf("%s 第 %d 行: %w", path, line, err)
		}
		out = append(out, rec)
	}
	return out, nil
}

func parseSentence(fields []string) (sentenceRecord, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(fields[0]), 10, 64)
	if err != nil {
		return sentenceRecord{}, fmt.Errorf("无效的句子 ID %q", fields[0])
	}
	rec := sentenceRecord{ID: id}
	if lang := strings.TrimSpace(fields[1]); lang != "" && lang != `\N` {
		rec.Lang = &lang
	}
	return rec, nil
}

func parseLink(fields []string) (linkRecord, error) {
	ids, err := parseIDs(fields[:2])
	if err != nil {
		return linkRecord{}, err
	}
	return linkRecord{SentenceID: ids[0], TranslationID: ids[1]}, nil
}

func parseUser(fields []string) (userRecord, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(fields[0]), 10, 64)
	if err != nil {
		return userRecord{}, fmt.Errorf("无效的用户 ID %q", fields[0])
	}
	name := strings.TrimSpace(fields[1])
	if name == "" {
		return userRecord{}, errors.New("用户名不能为空")
	}
	return userRecord{ID: id, Username: name}, nil
}
