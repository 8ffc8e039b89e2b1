package videoindex

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"

	"github.com/hazyhaar/examprep/prompt"
)

// YouTubeConfig configures the YouTube Data API searcher.
type YouTubeConfig struct {
	APIKey string
	// Timeout bounds one search call (default: 15s).
	Timeout time.Duration
	// ClientOptions are appended after the API key (endpoint overrides in tests).
	ClientOptions []option.ClientOption
	Logger        *slog.Logger
}

// YouTube searches videos and playlists with the YouTube Data API v3.
type YouTube struct {
	svc    *youtube.Service
	cfg    YouTubeConfig
	logger *slog.Logger
}

// NewYouTube creates the API service.
func NewYouTube(ctx context.Context, cfg YouTubeConfig) (*YouTube, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("videoindex: youtube requires an api key")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	opts := append([]option.ClientOption{option.WithAPIKey(cfg.APIKey)}, cfg.ClientOptions...)
	svc, err := youtube.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("videoindex: youtube service: %w", err)
	}
	return &YouTube{svc: svc, cfg: cfg, logger: cfg.Logger}, nil
}

// Search runs one search.list call restricted to kind.
func (y *YouTube) Search(ctx context.Context, query string, kind Kind, max int64) ([]prompt.Media, error) {
	ctx, cancel := context.WithTimeout(ctx, y.cfg.Timeout)
	defer cancel()

	start := time.Now()
	resp, err := y.svc.Search.List([]string{"snippet"}).
		Q(query).
		Type(string(kind)).
		MaxResults(max).
		Context(ctx).
		Do()
	if err != nil {
		y.logger.WarnContext(ctx, "youtube search failed", "kind", kind, "query", query, "error", err)
		return nil, fmt.Errorf("videoindex: search %s %q: %w", kind, query, err)
	}
	y.logger.DebugContext(ctx, "youtube search",
		"kind", kind, "query", query, "results", len(resp.Items),
		"duration_ms", time.Since(start).Milliseconds())

	out := make([]prompt.Media, 0, len(resp.Items))
	for _, item := range resp.Items {
		if m, ok := toMedia(item, kind); ok {
			out = append(out, m)
		}
	}
	return out, nil
}

func toMedia(item *youtube.SearchResult, kind Kind) (prompt.Media, bool) {
	if item == nil || item.Id == nil || item.Snippet == nil {
		return prompt.Media{}, false
	}
	m := prompt.Media{
		Kind:    string(kind),
		Title:   item.Snippet.Title,
		Channel: item.Snippet.ChannelTitle,
	}
	if th := item.Snippet.Thumbnails; th != nil {
		switch {
		case th.High != nil:
			m.Thumbnail = th.High.Url
		case th.Medium != nil:
			m.Thumbnail = th.Medium.Url
		case th.Default != nil:
			m.Thumbnail = th.Default.Url
		}
	}
	switch kind {
	case KindVideo:
		m.ID = item.Id.VideoId
		m.URL = "https://www.youtube.com/watch?v=" + m.ID
	case KindPlaylist:
		m.ID = item.Id.PlaylistId
		m.URL = "https://www.youtube.com/playlist?list=" + m.ID
	}
	if m.ID == "" {
		return prompt.Media{}, false
	}
	return m, true
}
