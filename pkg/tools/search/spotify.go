package search

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/zmb3/spotify/v2"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/chriscow/ambient-agents-go/pkg/ai/llm"
)

// SpotifyToolName is the name the model uses to search Spotify.
const SpotifyToolName = "spotify_search"

// SpotifyConfig holds client-credentials settings. TokenURL and BaseURL
// override the public endpoints.
type SpotifyConfig struct {
	ClientID     string
	ClientSecret string
	TokenURL     string
	BaseURL      string
	Logger       *slog.Logger
}

// Spotify searches the Spotify catalog with an app token.
type Spotify struct {
	client *spotify.Client
	logger *slog.Logger
}

// NewSpotify creates the tool. The token is fetched lazily on the first
// search and refreshed as needed.
func NewSpotify(ctx context.Context, cfg SpotifyConfig) (*Spotify, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, fmt.Errorf("spotify client id and secret are required (set SPOTIFY_ID and SPOTIFY_SECRET)")
	}
	if cfg.TokenURL == "" {
		cfg.TokenURL = spotifyauth.TokenURL
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	creds := &clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     cfg.TokenURL,
	}

	var opts []spotify.ClientOption
	if cfg.BaseURL != "" {
		opts = append(opts, spotify.WithBaseURL(cfg.BaseURL))
	}

	return &Spotify{
		client: spotify.New(creds.Client(ctx), opts...),
		logger: cfg.Logger.With(slog.String("tool", SpotifyToolName)),
	}, nil
}

// Definition describes the search arguments to the model.
func (s *Spotify) Definition() llm.ToolDefinition {
	return llm.ToolDefinition{
		Name:        SpotifyToolName,
		Description: "Searches Spotify for tracks. Returns title, artists, album and a link for each match. It cannot play them.",
		Parameters:  queryParameters("Spotify"),
	}
}

// Call runs a track search.
func (s *Spotify) Call(ctx context.Context, raw json.RawMessage) (string, error) {
	q, err := parseQuery(raw)
	if err != nil {
		return "", err
	}

	res, err := s.client.Search(ctx, q.Query, spotify.SearchTypeTrack, spotify.Limit(q.Limit))
	if err != nil {
		s.logger.Warn("Search failed", slog.String("query", q.Query), slog.String("error", err.Error()))
		return "", fmt.Errorf("spotify search: %w", err)
	}

	var hits []Hit
	if res.Tracks != nil {
		for _, t := range res.Tracks.Tracks {
			artists := make([]string, 0, len(t.Artists))
			for _, a := range t.Artists {
				artists = append(artists, a.Name)
			}
			hits = append(hits, Hit{
				Title:   t.Name,
				Artists: artists,
				Album:   t.Album.Name,
				URL:     t.ExternalURLs["spotify"],
			})
		}
	}

	s.logger.Info("Search finished", slog.String("query", q.Query), slog.Int("hits", len(hits)))
	return encodeHits(hits)
}
