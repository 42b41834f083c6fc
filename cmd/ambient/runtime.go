package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/chriscow/ambient-agents-go/internal/config"
	"github.com/chriscow/ambient-agents-go/pkg/agent"
	"github.com/chriscow/ambient-agents-go/pkg/ai/tts"
	"github.com/chriscow/ambient-agents-go/pkg/audio"
	"github.com/chriscow/ambient-agents-go/pkg/catalog"
	"github.com/chriscow/ambient-agents-go/pkg/playback"
	"github.com/chriscow/ambient-agents-go/pkg/plugin"
	"github.com/chriscow/ambient-agents-go/pkg/tools/search"
)

// runtime holds everything a local agent turn needs.
type runtime struct {
	cfg      *config.Config
	logger   *slog.Logger
	catalog  *catalog.Catalog
	prompt   string
	player   audio.Player
	playback *playback.Tool
	loop     *agent.Loop
	speech   tts.TTS
}

type runtimeOptions struct {
	// LLM overrides the configured model provider.
	LLM   string
	Speak bool
}

func newRuntime(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts runtimeOptions) (*runtime, error) {
	loadPlugins(logger)

	cat, err := loadCatalog(cfg)
	if err != nil {
		return nil, err
	}
	prompt, err := cat.SystemPrompt()
	if err != nil {
		return nil, err
	}

	provider := cfg.Model.Provider
	if opts.LLM != "" {
		provider = opts.LLM
	}
	llmCfg := cfg.LLMPluginConfig()
	llmCfg["logger"] = logger
	model, err := plugin.NewLLM(provider, llmCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create llm %q: %w", provider, err)
	}

	player, err := newPlayer(cfg, logger)
	if err != nil {
		return nil, err
	}
	rt := &runtime{
		cfg:     cfg,
		logger:  logger,
		catalog: cat,
		prompt:  prompt,
		player:  player,
	}

	rt.playback, err = newPlayback(cfg, player, logger)
	if err != nil {
		rt.Close()
		return nil, err
	}

	tools, err := newTools(ctx, cfg, rt.playback, logger)
	if err != nil {
		rt.Close()
		return nil, err
	}

	rt.loop, err = agent.New(agent.Config{
		LLM:           model,
		Tools:         tools,
		MaxRoundTrips: cfg.Agent.MaxRoundTrips,
		ModelTimeout:  cfg.Agent.ModelTimeout,
		ToolTimeout:   cfg.Agent.ToolTimeout,
		ToolGrace:     cfg.Agent.ToolGrace,
		Temperature:   cfg.Model.Temperature,
		MaxTokens:     cfg.Model.MaxTokens,
		Logger:        logger,
	})
	if err != nil {
		rt.Close()
		return nil, err
	}

	if opts.Speak || cfg.Speech.Enabled {
		rt.speech, err = newSpeech(cfg, logger)
		if err != nil {
			rt.Close()
			return nil, err
		}
	}

	logger.Info("Agent ready",
		slog.String("llm", provider),
		slog.String("player", cfg.Playback.Player),
		slog.String("assets_dir", cfg.Playback.AssetsDir),
		slog.Int("tracks", cat.Len()),
		slog.Any("tools", tools.Names()),
		slog.Bool("speak", rt.speech != nil))
	return rt, nil
}

// Close releases the audio device.
func (r *runtime) Close() {
	if r.player == nil {
		return
	}
	if err := r.player.Close(); err != nil {
		r.logger.Warn("Failed to close player", slog.String("error", err.Error()))
	}
}

// say speaks text when speech is enabled. Failures are logged only.
func (r *runtime) say(ctx context.Context, text string) {
	if r.speech == nil || text == "" {
		return
	}
	if err := speak(ctx, r.speech, r.player, r.cfg, text); err != nil {
		r.logger.Warn("Failed to speak reply", slog.String("error", err.Error()))
	}
}

func speak(ctx context.Context, speech tts.TTS, player audio.Player, cfg *config.Config, text string) error {
	buf, err := synthesize(ctx, speech, cfg, text)
	if err != nil {
		return err
	}
	if v := cfg.Playback.Volume; v > 0 {
		buf = buf.Scale(v)
	}
	return player.Play(ctx, buf)
}

func synthesize(ctx context.Context, speech tts.TTS, cfg *config.Config, text string) (audio.Buffer, error) {
	return speech.Synthesize(ctx, tts.SynthesizeRequest{
		Text:  text,
		Voice: cfg.Speech.Voice,
		Speed: cfg.Speech.Speed,
	})
}

func loadCatalog(cfg *config.Config) (*catalog.Catalog, error) {
	if cfg.Catalog == "" {
		return catalog.Default(), nil
	}
	cat, err := catalog.LoadFile(cfg.Catalog)
	if err != nil {
		return nil, fmt.Errorf("failed to load catalog: %w", err)
	}
	return cat, nil
}

func newPlayer(cfg *config.Config, logger *slog.Logger) (audio.Player, error) {
	playerCfg := cfg.PlayerPluginConfig()
	playerCfg["logger"] = logger
	player, err := plugin.NewPlayer(cfg.Playback.Player, playerCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create player %q: %w", cfg.Playback.Player, err)
	}
	return player, nil
}

func newPlayback(cfg *config.Config, player audio.Player, logger *slog.Logger) (*playback.Tool, error) {
	return playback.New(playback.Config{
		AssetsDir: cfg.Playback.AssetsDir,
		Player:    player,
		Volume:    cfg.Playback.Volume,
		Logger:    logger,
	})
}

func newSpeech(cfg *config.Config, logger *slog.Logger) (tts.TTS, error) {
	speechCfg := cfg.SpeechPluginConfig()
	speechCfg["logger"] = logger
	speech, err := plugin.NewTTS(cfg.Speech.Provider, speechCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create tts %q: %w", cfg.Speech.Provider, err)
	}
	return speech, nil
}

// newTools registers playback plus whichever search tools have credentials.
func newTools(ctx context.Context, cfg *config.Config, pb *playback.Tool, logger *slog.Logger) (*agent.Registry, error) {
	tools, err := agent.NewRegistry(playback.NewAgentTool(pb))
	if err != nil {
		return nil, err
	}

	if cfg.Spotify.Enabled() {
		sp, err := search.NewSpotify(ctx, search.SpotifyConfig{
			ClientID:     cfg.Spotify.ClientID,
			ClientSecret: cfg.Spotify.ClientSecret,
			Logger:       logger,
		})
		if err != nil {
			return nil, err
		}
		if err := tools.Register(sp); err != nil {
			return nil, err
		}
	}

	if cfg.YouTube.Enabled() {
		yt, err := search.NewYouTube(ctx, search.YouTubeConfig{
			APIKey: cfg.YouTube.APIKey,
			Logger: logger,
		})
		if err != nil {
			return nil, err
		}
		if err := tools.Register(yt); err != nil {
			return nil, err
		}
	}
	return tools, nil
}

// loadPlugins loads .so providers when the binary supports it.
func loadPlugins(logger *slog.Logger) {
	n, err := plugin.LoadDynamicPlugins("", logger)
	switch {
	case errors.Is(err, plugin.ErrDynamicUnsupported):
		logger.Debug("Dynamic plugins disabled in this build")
	case err != nil:
		logger.Warn("Failed to load dynamic plugins", slog.String("error", err.Error()))
	case n > 0:
		logger.Info("Loaded dynamic plugins", slog.Int("count", n))
	}
}
