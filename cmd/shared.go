package cmd

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"entgo.io/ent/dialect"
	"github.com/olekukonko/tablewriter"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/eslsoft/audiolink/internal/app"
	"github.com/eslsoft/audiolink/internal/infrastructure/config"
	"github.com/eslsoft/audiolink/internal/infrastructure/database"
	"github.com/eslsoft/audiolink/internal/infrastructure/logger"
)

func tablesFromConfig(key string) []string {
	return normalizeTables(viper.GetStringSlice(key))
}

func normalizeTables(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	result := make([]string, 0, len(values))
	for _, value := range values {
		name := strings.TrimSpace(value)
		if name == "" {
			continue
		}
		result = append(result, strings.ToLower(name))
	}
	if len(result) == 0 {
		return nil
	}
	return result
}

func bindFlagToViper(key string, flag *pflag.Flag) {
	if flag == nil {
		return
	}
	cobra.CheckErr(viper.BindPFlag(key, flag))
}

// newContainer loads the configuration and wires the application.
func newContainer() (*app.Container, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("加载配置失败: %w", err)
	}
	container, cleanup, err := app.Initialize(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("初始化应用失败: %w", err)
	}
	return container, cleanup, nil
}

// openDriver connects to the configured database without wiring the usecases.
func openDriver() (dialect.Driver, *logrus.Logger, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("加载配置失败: %w", err)
	}
	log, err := logger.NewLogger(cfg)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("初始化日志失败: %w", err)
	}
	drv, cleanup, err := database.NewDriver(cfg, log)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("连接数据库失败: %w", err)
	}
	return drv, log, cleanup, nil
}

func parseIDs(args []string) ([]int64, error) {
	ids := make([]int64, 0, len(args))
	for _, arg := range args {
		id, err := strconv.ParseInt(strings.TrimSpace(arg), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("无效的 ID %q", arg)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// checkBackupTables rejects the reindex queue tables, which only hold
// delivery state and are never part of a backup.
func checkBackupTables(tables []string) error {
	queues := lo.Intersect(tables, []string{database.ReindexFlagsTable, database.PendingReindexTable})
	if len(queues) > 0 {
		return fmt.Errorf("索引重建队列表不参与备份: %s", strings.Join(queues, ", "))
	}
	return nil
}

func describePath(path, stdio string) string {
	if path == "-" {
		return stdio
	}
	return path
}

func isGzipPath(path string) bool {
	return path != "-" && strings.HasSuffix(strings.ToLower(path), ".gz")
}

// closeAll closes in order and keeps the first error.
func closeAll(closers []func() error) func() error {
	return func() error {
		var first error
		for _, c := range closers {
			if err := c(); err != nil && first == nil {
				first = err
			}
		}
		return first
	}
}

// openBackupOutput opens path for writing ("-" is stdout), compressing when
// gz is set or the name ends in .gz.
func openBackupOutput(cmd *cobra.Command, path string, gz bool) (io.Writer, func() error, error) {
	var (
		w       = cmd.OutOrStdout()
		closers []func() error
	)
	if path != "-" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, nil, fmt.Errorf("创建输出目录失败: %w", err)
		}
		file, err := os.Create(path)
		if err != nil {
			return nil, nil, fmt.Errorf("创建备份文件失败: %w", err)
		}
		w = file
		closers = append(closers, file.Close)
	}
	if gz || isGzipPath(path) {
		gzw := gzip.NewWriter(w)
		w = gzw
		closers = append([]func() error{gzw.Close}, closers...)
	}
	return w, closeAll(closers), nil
}

// openBackupInput is the reading counterpart of openBackupOutput.
func openBackupInput(cmd *cobra.Command, path string, gz bool) (io.Reader, func() error, error) {
	var (
		r       = cmd.InOrStdin()
		closers []func() error
	)
	if path != "-" {
		file, err := os.Open(filepath.Clean(path))
		if err != nil {
			return nil, nil, fmt.Errorf("打开备份文件失败: %w", err)
		}
		r = file
		closers = append(closers, file.Close)
	}
	if gz || isGzipPath(path) {
		gzr, err := gzip.NewReader(r)
		if err != nil {
			_ = closeAll(closers)()
			return nil, nil, fmt.Errorf("创建 gzip 读取器失败: %w", err)
		}
		r = gzr
		closers = append([]func() error{gzr.Close}, closers...)
	}
	return r, closeAll(closers), nil
}

// writeRowCounts renders a per-table row summary.
func writeRowCounts(w io.Writer, rows map[string]int) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Table", "Rows"})
	table.SetAutoFormatHeaders(false)
	sum := 0
	for _, name := range slices.Sorted(maps.Keys(rows)) {
		table.Append([]string{name, strconv.Itoa(rows[name])})
		sum += rows[name]
	}
	table.SetFooter([]string{"", strconv.Itoa(sum)})
	table.Render()
}

// logProgress reports export progress through the logger and keeps the
// final per-table counts.
type logProgress struct {
	log    logrus.FieldLogger
	totals map[string]int
	rows   map[string]int
	next   map[string]int
}

func newLogProgress(log logrus.FieldLogger) *logProgress {
	return &logProgress{
		log:    log,
		totals: make(map[string]int),
		rows:   make(map[string]int),
		next:   make(map[string]int),
	}
}

func (p *logProgress) StartTable(table string, total int) {
	p.totals[table] = max(total, 0)
	p.rows[table] = 0
	p.next[table] = progressStep(total)
	p.log.WithField("table", table).WithField("total", total).Info("开始导出")
}

func (p *logProgress) Increment(table string, delta int) {
	if delta <= 0 {
		return
	}
	p.rows[table] += delta
	if p.rows[table] < p.next[table] {
		return
	}
	p.next[table] = p.rows[table] + progressStep(p.totals[table])
	p.log.WithField("table", table).
		WithField("rows", p.rows[table]).
		WithField("total", p.totals[table]).
		Debug("导出进度")
}

func (p *logProgress) FinishTable(table string) {
	p.log.WithField("table", table).WithField("rows", p.rows[table]).Info("完成导出")
}

// Rows returns the rows written per table so far.
func (p *logProgress) Rows() map[string]int {
	return maps.Clone(p.rows)
}

// progressStep logs about every 5% of a table, capped at 1000 rows.
func progressStep(total int) int {
	if total <= 0 {
		return 1000
	}
	return min(max(total/20, 1), 1000)
}
