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
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "搜索索引相关属性",
}

var searchHasAudioCmd = &cobra.Command{
	Use:   "has-audio ID...",
	Short: "计算句子的 has_audio 搜索属性",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ids, err := parseIDs(args)
		if err != nil {
			return err
		}
		asJSON, _ := cmd.Flags().GetBool("json")

		container, cleanup, err := newContainer()
		if err != nil {
			return err
		}
		defer cleanup()

		attrs, err := container.Search.HasAudioBatch(cmd.Context(), ids)
		if err != nil {
			return fmt.Errorf("计算 has_audio 失败: %w", err)
		}
		if asJSON {
			out := make(map[string]bool, len(attrs))
			for id, has := range attrs {
				out[strconv.FormatInt(id, 10)] = has
			}
			return writeJSON(cmd.OutOrStdout(), out)
		}

		table := tablewriter.NewWriter(cmd.OutOrStdout())
		table.SetHeader([]string{"Sentence", "has_audio"})
		table.SetAutoFormatHeaders(false)
		for _, id := range ids {
			table.Append([]string{strconv.FormatInt(id, 10), strconv.FormatBool(attrs[id])})
		}
		table.Render()
		return nil
	},
}

func init() {
	rootCmd.AddCommand(searchCmd)
	searchCmd.AddCommand(searchHasAudioCmd)
	searchHasAudioCmd.Flags().Bool("json", false, "以 JSON 输出")
}
