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
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-co-op/gocron/v2"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/eslsoft/audiolink/internal/usecase"
)

const relayIntervalKey = "relay.interval"

var reindexCmd = &cobra.Command{
	Use:   "reindex",
	Short: "搜索索引重建通知",
}

var reindexRelayCmd = &cobra.Command{
	Use:   "relay",
	Short: "重新投递未确认的索引重建通知",
	Long:  "扫描 pending_reindex 中超过宽限期仍未确认的记录并重新通知搜索索引。默认按 relay.interval 周期运行, --once 只执行一轮。",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		once, _ := cmd.Flags().GetBool("once")

		container, cleanup, err := newContainer()
		if err != nil {
			return err
		}
		defer cleanup()
		logger := container.Logger.WithField("component", "relay")

		if once {
			result, err := container.Relay.Redeliver(cmd.Context())
			if err != nil {
				return fmt.Errorf("重新投递失败: %w", err)
			}
			cmd.Printf("已投递 %d 条, 失败 %d 条\n", result.Delivered, result.Failed)
			return nil
		}

		interval := container.Config.Relay.Interval
		if interval <= 0 {
			return fmt.Errorf("relay.interval 必须大于 0")
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		scheduler, err := gocron.NewScheduler()
		if err != nil {
			return fmt.Errorf("创建调度器失败: %w", err)
		}
		_, err = scheduler.NewJob(
			gocron.DurationJob(interval),
			gocron.NewTask(runRelayPass, ctx, container.Relay, logger),
			gocron.WithName("reindex-relay"),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
			gocron.WithStartAt(gocron.WithStartImmediately()),
		)
		if err != nil {
			return fmt.Errorf("创建调度任务失败: %w", err)
		}

		logger.WithField("interval", interval.String()).Info("reindex relay started")
		scheduler.Start()
		<-ctx.Done()

		logger.Info("shutting down reindex relay")
		return scheduler.Shutdown()
	},
}

// runRelayPass is the scheduled task; Redeliver logs per pass totals itself.
func runRelayPass(ctx context.Context, relay *usecase.ReindexRelay, logger logrus.FieldLogger) {
	if _, err := relay.Redeliver(ctx); err != nil && ctx.Err() == nil {
		logger.WithError(err).Error("reindex relay pass failed")
	}
}

func init() {
	rootCmd.AddCommand(reindexCmd)
	reindexCmd.AddCommand(reindexRelayCmd)

	reindexRelayCmd.Flags().Bool("once", false, "只执行一轮投递")
	reindexRelayCmd.Flags().Duration("interval", 0, "投递周期 (默认读取 relay.interval)")
	bindFlagToViper(relayIntervalKey, reindexRelayCmd.Flags().Lookup("interval"))
}
