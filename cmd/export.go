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
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/eslsoft/audiolink/internal/usecase/backup"
)

const (
	exportOutputKey = "backup.export.output"
	exportGzipKey   = "backup.export.gzip"
	exportTablesKey = "backup.export.tables"
	exportBatchKey  = "backup.export.batch_size"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "导出句子、用户与音频关联为 NDJSON 备份",
	Long: `导出句子、翻译关系、用户与音频关联。

索引重建队列 (reindex_flags, pending_reindex) 只保存投递状态, 不参与备份;
导入时会为恢复的音频重新排队。`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		ctx := cmd.Context()

		tables := tablesFromConfig(exportTablesKey)
		if err := checkBackupTables(tables); err != nil {
			return err
		}
		outputPath := viper.GetString(exportOutputKey)
		gzipEnabled := viper.GetBool(exportGzipKey)
		if outputPath == "" {
			outputPath = defaultExportFilename(gzipEnabled)
		}

		drv, log, cleanup, err := openDriver()
		if err != nil {
			return err
		}
		defer cleanup()

		service, err := backup.NewService(drv, backup.WithBatchSize(viper.GetInt(exportBatchKey)))
		if err != nil {
			return fmt.Errorf("创建备份服务失败: %w", err)
		}

		writer, closeOutput, err := openBackupOutput(cmd, outputPath, gzipEnabled)
		if err != nil {
			return err
		}
		defer func() {
			if cerr := closeOutput(); cerr != nil && err == nil {
				err = fmt.Errorf("关闭备份文件失败: %w", cerr)
			}
		}()

		progress := newLogProgress(log.WithField("op", "export"))
		opts := []backup.ExportOption{backup.WithProgressReporter(progress)}
		if len(tables) > 0 {
			opts = append(opts, backup.WithTables(tables))
		}
		if err := service.Export(ctx, writer, opts...); err != nil {
			return fmt.Errorf("导出备份失败: %w", err)
		}

		// Stdout carries the backup itself, so the summary goes to stderr there.
		out := cmd.OutOrStdout()
		if outputPath == "-" {
			out = cmd.ErrOrStderr()
		}
		writeRowCounts(out, progress.Rows())
		fmt.Fprintf(out, "导出完成: %s\n", describePath(outputPath, "标准输出"))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(exportCmd)

	exportCmd.Flags().StringP("output", "o", "", "备份输出文件路径，使用 - 表示标准输出")
	exportCmd.Flags().Bool("gzip", false, "使用 gzip 压缩输出 (文件名以 .gz 结尾时自动启用)")
	exportCmd.Flags().StringSlice("tables", nil, "仅导出指定表: sentences, sentences_translations, users, audios")
	exportCmd.Flags().Int("batch-size", 0, "导出批处理大小 (默认 512)")

	bindFlagToViper(exportOutputKey, exportCmd.Flags().Lookup("output"))
	bindFlagToViper(exportGzipKey, exportCmd.Flags().Lookup("gzip"))
	bindFlagToViper(exportTablesKey, exportCmd.Flags().Lookup("tables"))
	bindFlagToViper(exportBatchKey, exportCmd.Flags().Lookup("batch-size"))
}

func defaultExportFilename(gzipEnabled bool) string {
	filename := fmt.Sprintf("audiolink-backup-%s.jsonl", time.Now().UTC().Format("20060102-150405"))
	if gzipEnabled {
		filename += ".gz"
	}
	return filename
}
