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

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/eslsoft/audiolink/internal/usecase/backup"
)

const (
	importInputKey  = "backup.import.input"
	importGzipKey   = "backup.import.gzip"
	importTablesKey = "backup.import.tables"
	importBatchKey  = "backup.import.batch_size"
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "从备份文件导入数据库内容",
	Long: `从 export 生成的备份导入数据, 已存在的行按主键覆盖。

每条恢复的音频 (以及被覆盖前所在的句子) 会加入索引重建队列,
由 reindex relay 投递。`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		ctx := cmd.Context()

		inputPath := viper.GetString(importInputKey)
		if inputPath == "" {
			return fmt.Errorf("请通过 --input 指定备份文件或使用 - 表示标准输入")
		}
		tables := tablesFromConfig(importTablesKey)
		if err := checkBackupTables(tables); err != nil {
			return err
		}

		drv, log, cleanup, err := openDriver()
		if err != nil {
			return err
		}
		defer cleanup()

		if err := runMigrations(ctx, drv); err != nil {
			return err
		}

		service, err := backup.NewService(drv, backup.WithBatchSize(viper.GetInt(importBatchKey)))
		if err != nil {
			return fmt.Errorf("创建备份服务失败: %w", err)
		}

		reader, closeInput, err := openBackupInput(cmd, inputPath, viper.GetBool(importGzipKey))
		if err != nil {
			return err
		}
		defer func() {
			if cerr := closeInput(); cerr != nil && err == nil {
				err = fmt.Errorf("关闭备份文件失败: %w", cerr)
			}
		}()

		var opts []backup.ImportOption
		if len(tables) > 0 {
			opts = append(opts, backup.WithImportTables(tables))
		}
		result, err := service.Import(ctx, reader, opts...)
		if err != nil {
			return fmt.Errorf("导入备份失败: %w", err)
		}
		for table, rows := range result.Rows {
			log.WithField("table", table).WithField("rows", rows).Info("已导入")
		}

		out := cmd.OutOrStdout()
		writeRowCounts(out, result.Rows)
		if len(result.Requeued) > 0 {
			fmt.Fprintf(out, "%d 个句子已加入索引重建队列, 由 reindex relay 投递\n", len(result.Requeued))
		}
		fmt.Fprintf(out, "导入完成: %s\n", describePath(inputPath, "标准输入"))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(importCmd)

	importCmd.Flags().StringP("input", "i", "", "备份文件路径，使用 - 表示标准输入")
	importCmd.Flags().Bool("gzip", false, "输入为 gzip 压缩格式 (文件名以 .gz 结尾时自动启用)")
	importCmd.Flags().StringSlice("tables", nil, "仅导入指定表，逗号分隔或重复指定")
	importCmd.Flags().Int("batch-size", 0, "导入批处理大小 (默认 512)")

	bindFlagToViper(importInputKey, importCmd.Flags().Lookup("input"))
	bindFlagToViper(importGzipKey, importCmd.Flags().Lookup("gzip"))
	bindFlagToViper(importTablesKey, importCmd.Flags().Lookup("tables"))
	bindFlagToViper(importBatchKey, importCmd.Flags().Lookup("batch-size"))
}
