package main

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/chriscow/ambient-agents-go/pkg/audio/wav"
)

var speakCmd = &cobra.Command{
	Use:   "speak <text>",
	Short: "Synthesize speech",
	Long: `Synthesize text with the configured speech provider and play it on the
audio device, or write it to a WAV file with --out.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		out, _ := cmd.Flags().GetString("out")
		provider, _ := cmd.Flags().GetString("tts")

		cfg, logger, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if provider != "" {
			cfg.Speech.Provider = provider
		}
		text := strings.Join(args, " ")

		ctx, cancel := signalContext()
		defer cancel()

		speech, err := newSpeech(cfg, logger)
		if err != nil {
			return err
		}

		logger.Info("Synthesizing speech",
			slog.String("provider", cfg.Speech.Provider),
			slog.String("voice", cfg.Speech.Voice),
			slog.Int("chars", len(text)))

		if out != "" {
			buf, err := synthesize(ctx, speech, cfg, text)
			if err != nil {
				return err
			}
			if err := wav.WriteFile(out, buf); err != nil {
				return err
			}
			fmt.Printf("Wrote %s (%s)\n", out, buf.Duration())
			return nil
		}

		player, err := newPlayer(cfg, logger)
		if err != nil {
			return err
		}
		defer player.Close()
		return speak(ctx, speech, player, cfg, text)
	},
}

func init() {
	speakCmd.Flags().String("out", "", "Write the audio to this WAV file instead of playing it")
	speakCmd.Flags().String("tts", "", "TTS plugin to use, overriding speech.provider")
}
