package search

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"

	"github.com/chriscow/ambient-agents-go/pkg/ai/llm"
)

// YouTubeToolName is the name the model uses to search YouTube.
const YouTubeToolName = "youtube_search"

// YouTubeConfig holds the Data API key. Endpoint overrides the public API.
type YouTubeConfig struct {
	APIKey   string
	Endpoint string
	Logger   *slog.Logger
}

// YouTube searches YouTube videos with an API key.
type YouTube struct {
	service *youtube.Service
	logger  *slog.Logger
}

// NewYouTube creates the tool.
func NewYouTube(ctx context.Context, cfg YouTubeConfig) (*YouTube, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("youtube API key is required (set YOUTUBE_API_KEY)")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	opts := []option.ClientOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint))
	}
	service, err := youtube.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create youtube service: %w", err)
	}

	return &YouTube{
		service: service,
		logger:  cfg.Logger.With(slog.String("tool", YouTubeToolName)),
	}, nil
}

// Definition describes the search arguments to the model.
func (y *YouTube) Definition() llm.ToolDefinition {
	return llm.ToolDefinition{
		Name:        YouTubeToolName,
		Description: "Searches YouTube for music videos. Returns title, channel, publish date and a link for each match. It cannot play them.",
		Parameters:  queryParameters("YouTube"),
	}
}

// Call runs a video search.
func (y *YouTube) Call(ctx context.Context, raw json.RawMessage) (string, error) {
	q, err := parseQuery(raw)
	if err != nil {
		return "", err
	}

	resp, err := y.service.Search.List([]string{"snippet"}).
		Q(q.Query).
		Type("video").
		MaxResults(int64(q.Limit)).
		Context(ctx).
		Do()
	if err != nil {
		y.logger.Warn("Search failed", slog.String("query", q.Query), slog.String("error", err.Error()))
		return "", fmt.Errorf("youtube search: %w", err)
	}

	hits := make([]Hit, 0, len(resp.Items))
	for _, item := range resp.Items {
		if item.Id == nil || item.Snippet == nil || item.Id.VideoId == "" {
			continue
		}
		hits = append(hits, Hit{
			Title:     item.Snippet.Title,
			Channel:   item.Snippet.ChannelTitle,
			Published: item.Snippet.PublishedAt,
			URL:       "https://www.youtube.com/watch?v=" + item.Id.VideoId,
		})
	}

	y.logger.Info("Search finished", slog.String("query", q.Query), slog.Int("hits", len(hits)))
	return encodeHits(hits)
}
