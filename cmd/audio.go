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
	"io"
	"strconv"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/eslsoft/audiolink/internal/entity"
	"github.com/eslsoft/audiolink/internal/repository"
)

var audioCmd = &cobra.Command{
	Use:   "audio",
	Short: "管理句子音频记录",
}

var audioCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "为句子创建音频记录",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		sentenceID, _ := cmd.Flags().GetInt64("sentence")
		draft := entity.AudioDraft{SentenceID: sentenceID}
		if cmd.Flags().Changed("licence") {
			licence, _ := cmd.Flags().GetInt64("licence")
			draft.LicenceID = &licence
		}
		if attr := attributionFromFlags(cmd.Flags()); attr != nil {
			draft.Attribution = *attr
		}

		container, cleanup, err := newContainer()
		if err != nil {
			return err
		}
		defer cleanup()

		audio, err := container.Audios.Create(cmd.Context(), draft)
		if err != nil {
			return fmt.Errorf("创建音频失败: %w", err)
		}
		return renderAudio(cmd, audio)
	},
}

var audioUpdateCmd = &cobra.Command{
	Use:   "update ID",
	Short: "修改音频记录",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("无效的音频 ID %q", args[0])
		}
		var changes entity.AudioChanges
		if cmd.Flags().Changed("sentence") {
			sentenceID, _ := cmd.Flags().GetInt64("sentence")
			changes.SentenceID = &sentenceID
		}
		if cmd.Flags().Changed("licence") {
			licence, _ := cmd.Flags().GetInt64("licence")
			changes.LicenceID = &licence
		}
		changes.Attribution = attributionFromFlags(cmd.Flags())

		container, cleanup, err := newContainer()
		if err != nil {
			return err
		}
		defer cleanup()

		audio, err := container.Audios.Update(cmd.Context(), id, changes)
		if err != nil {
			return fmt.Errorf("修改音频失败: %w", err)
		}
		return renderAudio(cmd, audio)
	},
}

var audioDeleteCmd = &cobra.Command{
	Use:   "delete ID",
	Short: "删除音频记录",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("无效的音频 ID %q", args[0])
		}
		container, cleanup, err := newContainer()
		if err != nil {
			return err
		}
		defer cleanup()

		if err := container.Audios.Delete(cmd.Context(), id); err != nil {
			return fmt.Errorf("删除音频失败: %w", err)
		}
		cmd.Printf("已删除音频 %d\n", id)
		return nil
	},
}

var audioAssignCmd = &cobra.Command{
	Use:   "assign",
	Short: "将句子的音频归属给用户或作者",
	Long:  "owner 为已注册用户名时记录 user_id, 否则作为作者名保存。句子没有音频时会新建记录 (licence 为 0)。",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		sentenceID, _ := cmd.Flags().GetInt64("sentence")
		owner, _ := cmd.Flags().GetString("owner")

		container, cleanup, err := newContainer()
		if err != nil {
			return err
		}
		defer cleanup()

		audio, err := container.Audios.AssignTo(cmd.Context(), sentenceID, owner)
		if err != nil {
			return fmt.Errorf("分配音频失败: %w", err)
		}
		return renderAudio(cmd, audio)
	},
}

var audioShowCmd = &cobra.Command{
	Use:   "show ID",
	Short: "查看音频记录",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("无效的音频 ID %q", args[0])
		}
		container, cleanup, err := newContainer()
		if err != nil {
			return err
		}
		defer cleanup()

		audio, err := container.Audios.Get(cmd.Context(), id)
		if err != nil {
			return fmt.Errorf("查询音频失败: %w", err)
		}
		return renderAudio(cmd, audio)
	},
}

var audioListCmd = &cobra.Command{
	Use:   "list",
	Short: "按条件列出音频记录",
	Example: `  audiolink audio list --filter 'lang == "eng" && created_at >= timestamp("2025-01-01T00:00:00Z")'
  audiolink audio list --filter 'sentence_id in [1, 2, 3]' --order-by 'sentence_id asc'`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		query := &repository.ListAudioQuery{}
		query.Filter, _ = cmd.Flags().GetString("filter")
		query.OrderBy, _ = cmd.Flags().GetString("order-by")
		query.PageNo, _ = cmd.Flags().GetInt32("page")
		query.PageSize, _ = cmd.Flags().GetInt32("page-size")
		asJSON, _ := cmd.Flags().GetBool("json")

		container, cleanup, err := newContainer()
		if err != nil {
			return err
		}
		defer cleanup()

		audios, total, err := container.Audios.List(cmd.Context(), query)
		if err != nil {
			return fmt.Errorf("列出音频失败: %w", err)
		}
		if asJSON {
			return writeJSON(cmd.OutOrStdout(), map[string]any{
				"total":     total,
				"page":      query.PageNo,
				"page_size": query.PageSize,
				"audios":    lo.Map(audios, func(a entity.Audio, _ int) audioView { return newAudioView(&a) }),
			})
		}
		writeAudioTable(cmd.OutOrStdout(), audios)
		cmd.Printf("共 %d 条, 第 %d 页\n", total, query.PageNo)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(audioCmd)
	audioCmd.AddCommand(audioCreateCmd, audioUpdateCmd, audioDeleteCmd, audioAssignCmd, audioShowCmd, audioListCmd)

	for _, c := range []*cobra.Command{audioCreateCmd, audioUpdateCmd} {
		c.Flags().Int64("sentence", 0, "句子 ID")
		c.Flags().Int64("licence", 0, "许可证 ID")
		c.Flags().Int64("user", 0, "已注册用户 ID")
		c.Flags().String("author", "", "未注册作者名")
		c.MarkFlagsMutuallyExclusive("user", "author")
	}
	cobra.CheckErr(audioCreateCmd.MarkFlagRequired("sentence"))

	audioAssignCmd.Flags().Int64("sentence", 0, "句子 ID")
	audioAssignCmd.Flags().String("owner", "", "用户名或作者名")
	cobra.CheckErr(audioAssignCmd.MarkFlagRequired("sentence"))
	cobra.CheckErr(audioAssignCmd.MarkFlagRequired("owner"))

	audioListCmd.Flags().String("filter", "", "CEL 过滤表达式 (sentence_id, user_id, author, lang, created_at)")
	audioListCmd.Flags().String("order-by", "", "排序, 如 'created_at desc'")
	audioListCmd.Flags().Int32("page", 1, "页码")
	audioListCmd.Flags().Int32("page-size", 20, "每页条数")

	for _, c := range []*cobra.Command{audioCreateCmd, audioUpdateCmd, audioAssignCmd, audioShowCmd, audioListCmd} {
		c.Flags().Bool("json", false, "以 JSON 输出")
	}
}

// attributionFromFlags returns nil when neither --user nor --author was given.
func attributionFromFlags(flags *pflag.FlagSet) *entity.Attribution {
	var attr entity.Attribution
	switch {
	case flags.Changed("user"):
		userID, _ := flags.GetInt64("user")
		attr = entity.UserAttribution(userID)
	case flags.Changed("author"):
		author, _ := flags.GetString("author")
		attr = entity.AuthorAttribution(author)
	default:
		return nil
	}
	return &attr
}

type audioView struct {
	ID         int64     `json:"id"`
	SentenceID int64     `json:"sentence_id"`
	UserID     *int64    `json:"user_id"`
	Author     *string   `json:"author"`
	LicenceID  int64     `json:"licence_id"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func newAudioView(a *entity.Audio) audioView {
	view := audioView{
		ID:         a.ID,
		SentenceID: a.SentenceID,
		UserID:     a.UserID,
		LicenceID:  a.LicenceID,
		CreatedAt:  a.CreatedAt,
		UpdatedAt:  a.UpdatedAt,
	}
	if a.Author != "" {
		view.Author = lo.ToPtr(a.Author)
	}
	return view
}

func renderAudio(cmd *cobra.Command, audio *entity.Audio) error {
	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		return writeJSON(cmd.OutOrStdout(), newAudioView(audio))
	}
	writeAudioTable(cmd.OutOrStdout(), []entity.Audio{*audio})
	return nil
}

func writeAudioTable(w io.Writer, audios []entity.Audio) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"ID", "Sentence", "User", "Author", "Licence", "Created", "Updated"})
	table.SetAutoFormatHeaders(false)
	for _, a := range audios {
		user := ""
		if a.UserID != nil {
			user = strconv.FormatInt(*a.UserID, 10)
		}
		table.Append([]string{
			strconv.FormatInt(a.ID, 10),
			strconv.FormatInt(a.SentenceID, 10),
			user,
			a.Author,
			strconv.FormatInt(a.LicenceID, 10),
			a.CreatedAt.Format(time.RFC3339),
			a.UpdatedAt.Format(time.RFC3339),
		})
	}
	table.Render()
}
