package videoindex

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"google.golang.org/api/option"

	"github.com/hazyhaar/examprep/prompt"
)

type searchCall struct {
	query string
	kind  Kind
	max   int64
}

type fakeSearcher struct {
	mu    sync.Mutex
	calls []searchCall
	fail  string
}

func (f *fakeSearcher) Search(_ context.Context, query string, kind Kind, max int64) ([]prompt.Media, error) {
	f.mu.Lock()
	f.calls = append(f.calls, searchCall{query, kind, max})
	f.mu.Unlock()
	if query == f.fail {
		return nil, errors.New("quota exceeded")
	}
	out := make([]prompt.Media, 0, max)
	for i := int64(0); i < max && i < 3; i++ {
		out = append(out, prompt.Media{Kind: string(kind), ID: fmt.Sprintf("%s-%d", query, i), Title: query})
	}
	return out, nil
}

func newIndex(s Searcher) *Index {
	return New(s, WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
}

func TestFetchTopicVideos(t *testing.T) {
	fs := &fakeSearcher{}
	out, err := newIndex(fs).FetchTopicVideos(context.Background(), []TopicQueries{
		{MainTopic: "Ohm's law", Queries: []string{"ohm law", "ohm law numericals", "ohm law history"}},
		{MainTopic: "Empty", Queries: nil},
		{MainTopic: "Blank", Queries: []string{"  "}},
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 3 || out[0].Topic != "Ohm's law" || out[2].Topic != "Blank" {
		t.Fatalf("topics: %+v", out)
	}
	if len(out[0].Videos) != 2 || len(out[1].Videos) != 0 || len(out[2].Videos) != 0 {
		t.Fatalf("videos: %+v", out)
	}
	if len(fs.calls) != 2 {
		t.Fatalf("only the first two queries are searched, got %+v", fs.calls)
	}
	for _, c := range fs.calls {
		if c.kind != KindVideo || c.max != 1 {
			t.Fatalf("call: %+v", c)
		}
	}
}

func TestSearchPlaylists(t *testing.T) {
	fs := &fakeSearcher{}
	ix := newIndex(fs)
	if _, err := ix.SearchPlaylists(context.Background(), "   "); !errors.Is(err, ErrEmptyQuery) {
		t.Fatalf("got %v", err)
	}
	if _, err := ix.SearchPlaylists(context.Background(), "thermodynamics"); err != nil {
		t.Fatal(err)
	}
	if len(fs.calls) != 1 || fs.calls[0] != (searchCall{"thermodynamics", KindPlaylist, 15}) {
		t.Fatalf("calls: %+v", fs.calls)
	}
}

func extraction() *prompt.StructuredExtraction {
	return &prompt.StructuredExtraction{
		Subject: "Physics",
		Topics: []prompt.Topic{
			{MainTopic: "Kinematics", TopicQuery: "kinematics equations", Priority: prompt.PriorityHigh, Difficulty: prompt.DifficultyEasy},
			{MainTopic: "Optics", Priority: prompt.PriorityLow, Difficulty: prompt.DifficultyHard},
		},
	}
}

func TestEnrich(t *testing.T) {
	fs := &fakeSearcher{}
	ext := extraction()
	if err := newIndex(fs).Enrich(context.Background(), ext); err != nil {
		t.Fatal(err)
	}
	want := []searchCall{
		{"Physics", KindPlaylist, 10},
		{"kinematics equations", KindVideo, 10},
		{"Optics", KindVideo, 10},
	}
	if len(fs.calls) != len(want) {
		t.Fatalf("calls: %+v", fs.calls)
	}
	for i := range want {
		if fs.calls[i] != want[i] {
			t.Errorf("call %d: got %+v, want %+v", i, fs.calls[i], want[i])
		}
	}
	if len(ext.SubjectPlaylists) == 0 {
		t.Fatal("no subject playlists")
	}
	for _, tp := range ext.Topics {
		if !tp.Completed || len(tp.Videos) == 0 {
			t.Fatalf("topic not enriched: %+v", tp)
		}
	}
}

func TestEnrich_FailureLeavesExtractionUntouched(t *testing.T) {
	fs := &fakeSearcher{fail: "Optics"}
	ext := extraction()
	if err := newIndex(fs).Enrich(context.Background(), ext); err == nil {
		t.Fatal("expected error")
	}
	if ext.SubjectPlaylists != nil {
		t.Fatal("playlists attached after failure")
	}
	for _, tp := range ext.Topics {
		if tp.Completed || tp.Videos != nil {
			t.Fatalf("topic mutated after failure: %+v", tp)
		}
	}
}

func TestYouTube_Search(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/youtube/v3/search" {
			http.NotFound(w, r)
			return
		}
		gotQuery = r.URL.RawQuery
		if r.URL.Query().Get("key") != "yt-key" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"items":[
			{"id":{"kind":"youtube#video","videoId":"v1"},"snippet":{"title":"Lens formula","channelTitle":"PhysicsWallah","thumbnails":{"high":{"url":"https://i.ytimg.com/v1.jpg"}}}},
			{"id":{"kind":"youtube#channel","channelId":"c1"},"snippet":{"title":"not a video"}}
		]}`)
	}))
	defer srv.Close()

	yt, err := NewYouTube(context.Background(), YouTubeConfig{
		APIKey:        "yt-key",
		ClientOptions: []option.ClientOption{option.WithEndpoint(srv.URL + "/")},
		Logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	if err != nil {
		t.Fatal(err)
	}
	got, err := yt.Search(context.Background(), "lens formula", KindVideo, 5)
	if err != nil {
		t.Fatalf("search: %v (query %s)", err, gotQuery)
	}
	if len(got) != 1 {
		t.Fatalf("results: %+v", got)
	}
	m := got[0]
	if m.ID != "v1" || m.URL != "https://www.youtube.com/watch?v=v1" || m.Channel != "PhysicsWallah" || m.Thumbnail != "https://i.ytimg.com/v1.jpg" {
		t.Fatalf("media: %+v", m)
	}
}

func TestNewYouTube_RequiresKey(t *testing.T) {
	if _, err := NewYouTube(context.Background(), YouTubeConfig{}); err == nil {
		t.Fatal("expected error")
	}
}
