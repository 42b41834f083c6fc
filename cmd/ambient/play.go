package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/chriscow/ambient-agents-go/pkg/playback"
)

var playCmd = &cobra.Command{
	Use:   "play <file>",
	Short: "Play a track range directly",
	Long: `Play a range of a WAV file from the assets directory, then wait, exactly
as the agent's music_playback_tool would. The result line is what the
model would see.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		start, _ := cmd.Flags().GetInt64("start")
		end, _ := cmd.Flags().GetInt64("end")
		wait, _ := cmd.Flags().GetInt64("wait")

		cfg, logger, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		ctx, cancel := signalContext()
		defer cancel()

		player, err := newPlayer(cfg, logger)
		if err != nil {
			return err
		}
		defer player.Close()

		tool, err := newPlayback(cfg, player, logger)
		if err != nil {
			return err
		}

		req := playback.Request{Filename: args[0], StartMS: start, EndMS: end, WaitMS: wait}
		logger.Info("Playing track",
			slog.String("filename", req.Filename),
			slog.Int64("start_ms", req.StartMS),
			slog.Int64("end_ms", req.EndMS),
			slog.Int64("wait_ms", req.WaitMS))

		res := tool.Play(ctx, req)
		fmt.Println(res.String())
		if !res.OK() {
			return fmt.Errorf("playback %s", res.Status)
		}
		return nil
	},
}

func init() {
	playCmd.Flags().Int64("start", playback.DefaultStartMS, "Start position in milliseconds")
	playCmd.Flags().Int64("end", playback.DefaultEndMS, "End position in milliseconds")
	playCmd.Flags().Int64("wait", playback.DefaultWaitMS, "Wait after playback in milliseconds")
}
