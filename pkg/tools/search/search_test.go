package search

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/matryer/is"

	"github.com/chriscow/ambient-agents-go/pkg/agent"
)

func TestParseQuery(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    Query
		wantErr bool
	}{
		{"defaults", `{"query":"lofi beats"}`, Query{Query: "lofi beats", Limit: DefaultLimit}, false},
		{"limit capped", `{"query":"rain","limit":50}`, Query{Query: "rain", Limit: MaxLimit}, false},
		{"trimmed", `{"query":"  piano  ","limit":2}`, Query{Query: "piano", Limit: 2}, false},
		{"empty query", `{"query":"   "}`, Query{}, true},
		{"not json", `{query`, Query{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			is := is.New(t)
			got, err := parseQuery(json.RawMessage(tt.raw))
			if tt.wantErr {
				is.True(errors.Is(err, agent.ErrInvalidArguments))
				return
			}
			is.NoErr(err)
			is.Equal(got, tt.want)
		})
	}
}

func TestSpotifySearch(t *testing.T) {
	is := is.New(t)

	mux := http.NewServeMux()
	mux.HandleFunc("/api/token", func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok {
			is.NoErr(r.ParseForm())
			user, pass = r.PostForm.Get("client_id"), r.PostForm.Get("client_secret")
		}
		is.Equal(user, "id")
		is.Equal(pass, "secret")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"tok","token_type":"Bearer","expires_in":3600}`))
	})
	mux.HandleFunc("/v1/search", func(w http.ResponseWriter, r *http.Request) {
		is.Equal(r.Header.Get("Authorization"), "Bearer tok")
		is.Equal(r.URL.Query().Get("q"), "rainy day")
		is.Equal(r.URL.Query().Get("type"), "track")
		is.Equal(r.URL.Query().Get("limit"), "3")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"tracks":{"href":"","limit":3,"offset":0,"total":1,"items":[
			{"id":"1","name":"Rain Song","artists":[{"name":"Ada"},{"name":"Bo"}],
			 "album":{"name":"Weather"},"external_urls":{"spotify":"https://open.spotify.com/track/1"}}]}}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	tool, err := NewSpotify(context.Background(), SpotifyConfig{
		ClientID:     "id",
		ClientSecret: "secret",
		TokenURL:     srv.URL + "/api/token",
		BaseURL:      srv.URL + "/v1/",
	})
	is.NoErr(err)
	is.Equal(tool.Definition().Name, SpotifyToolName)

	out, err := tool.Call(context.Background(), json.RawMessage(`{"query":"rainy day","limit":3}`))
	is.NoErr(err)

	var hits []Hit
	is.NoErr(json.Unmarshal([]byte(out), &hits))
	is.Equal(len(hits), 1)
	is.Equal(hits[0].Title, "Rain Song")
	is.Equal(hits[0].Artists, []string{"Ada", "Bo"})
	is.Equal(hits[0].Album, "Weather")
	is.Equal(hits[0].URL, "https://open.spotify.com/track/1")
}

func TestSpotifyRequiresCredentials(t *testing.T) {
	is := is.New(t)
	_, err := NewSpotify(context.Background(), SpotifyConfig{ClientID: "id"})
	is.True(err != nil)
}

func TestYouTubeSearch(t *testing.T) {
	is := is.New(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		is.Equal(r.URL.Path, "/youtube/v3/search")
		q := r.URL.Query()
		is.Equal(q.Get("key"), "yt-key")
		is.Equal(q.Get("q"), "forest ambience")
		is.Equal(q.Get("type"), "video")
		is.Equal(q.Get("maxResults"), "5")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"items":[
			{"id":{"kind":"youtube#video","videoId":"abc"},
			 "snippet":{"title":"Forest Sounds","channelTitle":"Nature","publishedAt":"2021-05-01T00:00:00Z"}},
			{"id":{"kind":"youtube#channel","channelId":"xyz"},"snippet":{"title":"A channel"}}]}`))
	}))
	defer srv.Close()

	tool, err := NewYouTube(context.Background(), YouTubeConfig{APIKey: "yt-key", Endpoint: srv.URL + "/"})
	is.NoErr(err)
	is.Equal(tool.Definition().Name, YouTubeToolName)

	out, err := tool.Call(context.Background(), json.RawMessage(`{"query":"forest ambience"}`))
	is.NoErr(err)

	var hits []Hit
	is.NoErr(json.Unmarshal([]byte(out), &hits))
	is.Equal(len(hits), 1) // channels are skipped
	is.Equal(hits[0].Title, "Forest Sounds")
	is.Equal(hits[0].Channel, "Nature")
	is.Equal(hits[0].URL, "https://www.youtube.com/watch?v=abc")
}

func TestYouTubeNoResults(t *testing.T) {
	is := is.New(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"items":[]}`))
	}))
	defer srv.Close()

	tool, err := NewYouTube(context.Background(), YouTubeConfig{APIKey: "k", Endpoint: srv.URL + "/"})
	is.NoErr(err)

	out, err := tool.Call(context.Background(), json.RawMessage(`{"query":"nothing"}`))
	is.NoErr(err)
	is.Equal(out, "No results found.")
}

func TestYouTubeError(t *testing.T) {
	is := is.New(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"error":{"code":403,"message":"quota exceeded"}}`))
	}))
	defer srv.Close()

	tool, err := NewYouTube(context.Background(), YouTubeConfig{APIKey: "k", Endpoint: srv.URL + "/"})
	is.NoErr(err)

	_, err = tool.Call(context.Background(), json.RawMessage(`{"query":"x"}`))
	is.True(err != nil) // reported to the model by the loop
}
