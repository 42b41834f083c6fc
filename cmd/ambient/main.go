package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/chriscow/ambient-agents-go/internal/config"
	_ "github.com/chriscow/ambient-agents-go/pkg/audio/device" // Import to register device players
	_ "github.com/chriscow/ambient-agents-go/pkg/plugin/fake"   // Import to register fake plugins
	_ "github.com/chriscow/ambient-agents-go/pkg/plugin/openai" // Import to register OpenAI plugins
	"github.com/chriscow/ambient-agents-go/pkg/version"
)

var rootCmd = &cobra.Command{
	Use:   "ambient",
	Short: "Ambient music agent",
	Long: `ambient is a conversational agent that recommends tracks from a small
ambient catalog and plays them on the local audio device once you agree.`,
	SilenceUsage: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(version.GetVersionInfo())
	},
}

// loadConfig resolves the configuration named by --config and builds the
// process logger from it.
func loadConfig(cmd *cobra.Command) (*config.Config, *slog.Logger, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, loaded, err := config.Resolve(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger, err := setupLogger(cfg)
	if err != nil {
		return nil, nil, err
	}
	if loaded != "" {
		logger.Debug("Loaded config", slog.String("path", loaded))
	}
	return cfg, logger, nil
}

// setupLogger writes to stderr so chat output on stdout stays readable.
func setupLogger(cfg *config.Config) (*slog.Logger, error) {
	logger, err := config.NewLogger(os.Stderr, cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logger)
	return logger, nil
}

// signalContext is cancelled on interrupt or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "Path to config file (default: search ambient.yaml, ~/.config/ambient/config.yaml)")

	rootCmd.AddCommand(versionCmd, chatCmd, serveCmd, playCmd, catalogCmd, speakCmd, pluginCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
