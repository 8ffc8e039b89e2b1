// Package videoindex attaches study videos and playlists to a structured
// extraction.
package videoindex

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/hazyhaar/examprep/prompt"
)

// Kind is a search result type.
type Kind string

const (
	KindVideo    Kind = "video"
	KindPlaylist Kind = "playlist"
)

// ErrEmptyQuery is returned for a blank search keyword.
var ErrEmptyQuery = errors.New("videoindex: empty query")

// Searcher runs one search. *YouTube is the production implementation.
type Searcher interface {
	Search(ctx context.Context, query string, kind Kind, max int64) ([]prompt.Media, error)
}

// Limits caps how many queries and results each operation uses.
type Limits struct {
	QueriesPerTopic  int   `json:"queries_per_topic" yaml:"queries_per_topic"`
	VideosPerQuery   int64 `json:"videos_per_query" yaml:"videos_per_query"`
	PlaylistResults  int64 `json:"playlist_results" yaml:"playlist_results"`
	SubjectPlaylists int64 `json:"subject_playlists" yaml:"subject_playlists"`
	TopicVideos      int64 `json:"topic_videos" yaml:"topic_videos"`
}

// DefaultLimits returns the production limits.
func DefaultLimits() Limits {
	return Limits{
		QueriesPerTopic:  2,
		VideosPerQuery:   1,
		PlaylistResults:  15,
		SubjectPlaylists: 10,
		TopicVideos:      10,
	}
}

// Index runs searches for topics and subjects.
type Index struct {
	search Searcher
	limits Limits
	logger *slog.Logger
}

// Option configures an Index.
type Option func(*Index)

// WithLimits replaces the default limits.
func WithLimits(l Limits) Option { return func(ix *Index) { ix.limits = l } }

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option { return func(ix *Index) { ix.logger = l } }

// New creates an Index over s.
func New(s Searcher, opts ...Option) *Index {
	ix := &Index{search: s, limits: DefaultLimits(), logger: slog.Default()}
	for _, o := range opts {
		o(ix)
	}
	return ix
}

// TopicQueries asks for videos for one topic.
type TopicQueries struct {
	MainTopic string   `json:"main_topic"`
	Queries   []string `json:"youtube_queries"`
}

// TopicVideos is the answer for one topic.
type TopicVideos struct {
	Topic  string         `json:"topic"`
	Videos []prompt.Media `json:"videos"`
}

// FetchTopicVideos searches the first QueriesPerTopic queries of each
// topic and keeps VideosPerQuery results per query. Topics come back in
// request order; blank queries are skipped.
func (ix *Index) FetchTopicVideos(ctx context.Context, topics []TopicQueries) ([]TopicVideos, error) {
	out := make([]TopicVideos, 0, len(topics))
	for _, t := range topics {
		queries := t.Queries
		if len(queries) > ix.limits.QueriesPerTopic {
			queries = queries[:ix.limits.QueriesPerTopic]
		}
		tv := TopicVideos{Topic: t.MainTopic, Videos: []prompt.Media{}}
		for _, q := range queries {
			if strings.TrimSpace(q) == "" {
				continue
			}
			found, err := ix.search.Search(ctx, q, KindVideo, ix.limits.VideosPerQuery)
			if err != nil {
				return nil, err
			}
			tv.Videos = append(tv.Videos, found...)
		}
		out = append(out, tv)
	}
	return out, nil
}

// SearchPlaylists returns up to PlaylistResults playlists for keyword.
func (ix *Index) SearchPlaylists(ctx context.Context, keyword string) ([]prompt.Media, error) {
	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		return nil, ErrEmptyQuery
	}
	return ix.search.Search(ctx, keyword, KindPlaylist, ix.limits.PlaylistResults)
}

// Enrich attaches subject playlists and per-topic videos to ext and marks
// every topic completed. A topic without topic_query is searched by its
// main_topic. On error ext is left untouched.
func (ix *Index) Enrich(ctx context.Context, ext *prompt.StructuredExtraction) error {
	if ext == nil {
		return errors.New("videoindex: nil extraction")
	}

	playlists, err := ix.search.Search(ctx, ext.Subject, KindPlaylist, ix.limits.SubjectPlaylists)
	if err != nil {
		return err
	}

	videos := make([][]prompt.Media, len(ext.Topics))
	for i, t := range ext.Topics {
		q := strings.TrimSpace(t.TopicQuery)
		if q == "" {
			q = t.MainTopic
		}
		found, err := ix.search.Search(ctx, q, KindVideo, ix.limits.TopicVideos)
		if err != nil {
			return err
		}
		videos[i] = found
	}

	ext.SubjectPlaylists = playlists
	for i := range ext.Topics {
		ext.Topics[i].Videos = videos[i]
		ext.Topics[i].Completed = true
	}
	ix.logger.InfoContext(ctx, "extraction enriched",
		"subject", ext.Subject, "topics", len(ext.Topics), "subject_playlists", len(playlists))
	return nil
}
