package aggregator

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/varoOP/shinkrosrc/internal/domain"
	"github.com/varoOP/shinkrosrc/internal/httpclient"
	"github.com/varoOP/shinkrosrc/internal/repository"
)

type fakeCatalog struct {
	mu       sync.Mutex
	items    []domain.Item
	err      error
	children map[string][]domain.Child
	calls    []string
}

func (f *fakeCatalog) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

func (f *fakeCatalog) Type() domain.ContentType { return domain.ContentAnime }

func (f *fakeCatalog) Search(ctx context.Context, query string) ([]domain.Item, error) {
	f.record("search:" + query)
	return f.items, f.err
}

func (f *fakeCatalog) BrowsePopular(ctx context.Context) ([]domain.Item, error) {
	f.record("popular")
	return f.items, f.err
}

func (f *fakeCatalog) ListChildren(ctx context.Context, item domain.Item) ([]domain.Child, error) {
	f.record("children:" + item.ID)
	return f.children[item.ID], nil
}

func (f *fakeCatalog) ResolveMedia(ctx context.Context, child domain.Child) ([]domain.MediaLink, error) {
	f.record("media:" + child.ID)
	return []domain.MediaLink{{URL: "https://builtin.example/" + child.ID}}, nil
}

func siteServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/search", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"results":[{"id":"abc123","title":"Naruto"}]}`)
	})
	mux.HandleFunc("/episodes/abc123", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[1, 2]`)
	})
	mux.HandleFunc("/streams", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"sources":[{"file":"/v/%s/%s.m3u8"}]}`, r.URL.Query().Get("show"), r.URL.Query().Get("ep"))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func siteConfig(base string) *domain.DynamicProviderConfig {
	return &domain.DynamicProviderConfig{
		Name:    "My Site",
		Slug:    "mysite",
		Type:    domain.ContentAnime,
		Version: 1,
		Hosts:   domain.HostConfig{BaseHost: base, APIBase: base},
		Search: domain.SearchConfig{
			Method:        domain.ApiREST,
			Endpoint:      "/search",
			QueryTemplate: "?q=${query}",
			ResultsPath:   "$.results",
			ResultMapping: []domain.FieldMapping{
				domain.Map("$.id", domain.FieldID),
				domain.Map("$.title", domain.FieldTitle),
			},
		},
		Content: domain.ContentConfig{
			Episodes: &domain.EndpointConfig{
				Method:        domain.ApiREST,
				Endpoint:      "/episodes",
				QueryTemplate: "/${id}",
				Mapping:       []domain.FieldMapping{domain.Map("$", domain.FieldNumber)},
			},
		},
		Media: domain.MediaConfig{
			Streams: &domain.EndpointConfig{
				Method:        domain.ApiREST,
				Endpoint:      "/streams",
				QueryTemplate: "?show=${showId}&ep=${episode}",
				ResultsPath:   "$.sources",
				Mapping:       []domain.FieldMapping{domain.Map("$.file", domain.FieldURL)},
			},
		},
	}
}

func setup(t *testing.T, builtin domain.Catalog, activate bool) (*Aggregator, *httptest.Server) {
	t.Helper()
	srv := siteServer(t)
	repo := repository.NewFileRepository(zerolog.Nop(), domain.NewPaths(t.TempDir()))
	ctx := context.Background()
	require.NoError(t, repo.Save(ctx, siteConfig(srv.URL)))
	if activate {
		require.NoError(t, repo.SetActive(ctx, domain.ContentAnime, "mysite"))
	}

	client := httpclient.New(zerolog.Nop(), httpclient.Options{Attempts: 1, Timeout: 2 * time.Second})
	return New(zerolog.Nop(), domain.ContentAnime, builtin, repo, client, nil), srv
}

func TestAggregator_SearchMergesBuiltinFirst(t *testing.T) {
	builtin := &fakeCatalog{items: []domain.Item{{ID: "42", Title: "Naruto (MAL)"}}}
	agg, _ := setup(t, builtin, true)

	items, err := agg.Search(context.Background(), "naruto")
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "42", items[0].ID)
	assert.Equal(t, "mysite:abc123", items[1].ID)
	assert.Equal(t, "mysite", items[1].Provider)
}

func TestAggregator_BranchFailureDegrades(t *testing.T) {
	builtin := &fakeCatalog{err: errors.New("boom")}
	agg, _ := setup(t, builtin, true)

	items, err := agg.BrowsePopular(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "mysite:abc123", items[0].ID)
}

type panickingCatalog struct{ fakeCatalog }

func (p *panickingCatalog) Search(ctx context.Context, query string) ([]domain.Item, error) {
	panic("scraper exploded")
}

func TestAggregator_PanickingBranchDegrades(t *testing.T) {
	agg, _ := setup(t, &panickingCatalog{}, true)

	var items []domain.Item
	var err error
	require.NotPanics(t, func() { items, err = agg.Search(context.Background(), "naruto") })
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "mysite:abc123", items[0].ID)
}

func TestAggregator_NoActiveProvider(t *testing.T) {
	builtin := &fakeCatalog{items: []domain.Item{{ID: "42"}}}
	agg, _ := setup(t, builtin, false)

	items, err := agg.Search(context.Background(), "naruto")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "42", items[0].ID)
}

func TestAggregator_RoutesByPrefix(t *testing.T) {
	builtin := &fakeCatalog{children: map[string][]domain.Child{
		"42": {{ID: "42:ep-1", ParentID: "42", Number: 1}},
	}}
	agg, srv := setup(t, builtin, true)
	ctx := context.Background()

	children, err := agg.ListChildren(ctx, domain.Item{ID: "mysite:abc123"})
	require.NoError(t, err)
	require.Len(t, children, 2)
	assert.Equal(t, "mysite:abc123:ep-1", children[0].ID)
	assert.Equal(t, "mysite:abc123", children[0].ParentID)
	assert.Empty(t, builtin.calls)

	links, err := agg.ResolveMedia(ctx, children[1])
	require.NoError(t, err)
	require.Len(t, links, 1)
	assert.Equal(t, srv.URL+"/v/abc123/2.m3u8", links[0].URL)
	assert.Equal(t, "mysite", links[0].Provider)

	children, err = agg.ListChildren(ctx, domain.Item{ID: "42"})
	require.NoError(t, err)
	require.Len(t, children, 1)
	assert.Equal(t, []string{"children:42"}, builtin.calls)

	links, err = agg.ResolveMedia(ctx, children[0])
	require.NoError(t, err)
	require.Len(t, links, 1)
	assert.Equal(t, "media:42:ep-1", builtin.calls[1])

	_, err = agg.ListChildren(ctx, domain.Item{ID: "unknown:x"})
	require.NoError(t, err)
	assert.Equal(t, "children:unknown:x", builtin.calls[2])
}

func TestAggregator_CachesCatalog(t *testing.T) {
	agg, _ := setup(t, nil, true)
	ctx := context.Background()

	first, err := agg.catalogFor(ctx, "mysite")
	require.NoError(t, err)
	second, err := agg.catalogFor(ctx, "mysite")
	require.NoError(t, err)
	assert.Same(t, first, second)
}

func TestAggregator_Cancelled(t *testing.T) {
	agg, _ := setup(t, &fakeCatalog{}, true)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := agg.Search(ctx, "naruto")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSplitID(t *testing.T) {
	tests := []struct {
		id    string
		slug  string
		local string
		ok    bool
	}{
		{"mysite:abc123", "mysite", "abc123", true},
		{"mysite:abc:ep-1", "mysite", "abc:ep-1", true},
		{"42", "", "", false},
		{"42:ep-1", "", "", false},
		{":abc", "", "", false},
		{"My Site:abc", "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			slug, local, ok := SplitID(tt.id)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.slug, slug)
			assert.Equal(t, tt.local, local)
		})
	}
}
