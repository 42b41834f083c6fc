package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/chriscow/ambient-agents-go/internal/server"
	"github.com/chriscow/ambient-agents-go/pkg/session"
	"github.com/chriscow/ambient-agents-go/pkg/version"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the agent over websocket",
	Long: `Serve chat threads at /ws?thread=<id>. Each thread keeps its history
until it has been idle for server.session_idle. Metrics are published at
/debug/vars and liveness at /healthz.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, _ := cmd.Flags().GetString("addr")
		llmName, _ := cmd.Flags().GetString("llm")

		cfg, logger, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if addr != "" {
			cfg.Server.Addr = addr
		}

		logger.Info("Starting server",
			slog.String("service", "ambient"),
			slog.String("version", version.Version),
			slog.String("commit", version.GitCommit),
			slog.String("addr", cfg.Server.Addr))

		ctx, cancel := signalContext()
		defer cancel()

		rt, err := newRuntime(ctx, cfg, logger, runtimeOptions{LLM: llmName})
		if err != nil {
			return err
		}
		defer rt.Close()

		srv, err := server.New(server.Config{
			Loop:        rt.loop,
			Store:       session.NewStore(rt.prompt),
			SessionIdle: cfg.Server.SessionIdle,
			Logger:      logger,
		})
		if err != nil {
			return err
		}
		rt.loop.Metrics().Publish("agent")
		srv.Metrics().Publish("server")

		if err := srv.ListenAndServe(ctx, cfg.Server.Addr); err != nil {
			logger.Error("Server failed", slog.String("error", err.Error()))
			return err
		}
		logger.Info("Server stopped")
		return nil
	},
}

func init() {
	serveCmd.Flags().String("addr", "", "Listen address, overriding server.addr")
	serveCmd.Flags().String("llm", "", "LLM plugin to use, overriding model.provider")
}
