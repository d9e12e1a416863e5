package dynamic

import (
	"context"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/varoOP/shinkrosrc/internal/domain"
	"github.com/varoOP/shinkrosrc/internal/httpclient"
	"github.com/varoOP/shinkrosrc/internal/template"
)

func testClient() *retryablehttp.Client {
	return httpclient.New(zerolog.Nop(), httpclient.Options{Attempts: 1, Timeout: 2 * time.Second})
}

// graphqlServer answers the default AllAnime shaped queries
func graphqlServer(t *testing.T, seen *[]string) *httptest.Server {
	t.Helper()
	var mu sync.Mutex
	stream := "-" + hex.EncodeToString([]byte("https://cdn.example/v.m3u8"))

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query().Get("query")
		mu.Lock()
		*seen = append(*seen, q)
		mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		switch {
		case strings.Contains(q, "shows("):
			fmt.Fprint(w, `{"data":{"shows":{"edges":[
				{"_id":"s1","name":"Naruto","thumbnail":"/img/s1.jpg","description":"ninja"},
				{"_id":"s2","name":"Naruto Shippuden","thumbnail":"https://img.example/s2.jpg"}
			]}}}`)
		case strings.Contains(q, "availableEpisodesDetail"):
			fmt.Fprint(w, `{"data":{"show":{"availableEpisodesDetail":{"sub":["2","1","3"],"dub":["1"]}}}}`)
		case strings.Contains(q, "sourceUrls"):
			fmt.Fprintf(w, `{"data":{"episode":{"sourceUrls":[
				{"sourceUrl":%q,"sourceName":"Default"},
				{"sourceUrl":"-deadbeef","sourceName":"Broken"},
				{"sourceUrl":"/relative/v.mp4","sourceName":"Relative"},
				{"sourceUrl":"http://[::1","sourceName":"Invalid"}
			]}}}`, stream)
		default:
			w.WriteHeader(http.StatusBadRequest)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func graphqlConfig(srv *httptest.Server) *domain.DynamicProviderConfig {
	profile := &domain.SiteProfile{BaseURL: srv.URL, Category: domain.CategoryAnime, HasGraphQL: true}
	schema := &domain.ContentSchema{
		Search:    &domain.ContentPattern{Method: domain.ApiGraphQL, Endpoint: srv.URL + "/api"},
		Endpoints: []domain.ApiEndpoint{{URL: srv.URL + "/api", Kind: domain.ApiGraphQL}},
	}
	cfg := template.NewGraphQLAnime().Apply(profile, schema, "AniSite")
	cfg.RateLimit = nil
	return cfg
}

func TestCatalog_GraphQLFlow(t *testing.T) {
	var seen []string
	srv := graphqlServer(t, &seen)

	c, err := New(zerolog.Nop(), graphqlConfig(srv), domain.ContentAnime, testClient(), nil)
	require.NoError(t, err)

	items, err := c.Search(context.Background(), "naruto")
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "s1", items[0].ID)
	assert.Equal(t, "Naruto", items[0].Title)
	assert.Equal(t, srv.URL+"/img/s1.jpg", items[0].CoverImage)
	assert.Equal(t, "anisite", items[0].Provider)
	assert.NotNil(t, items[0].Children)
	assert.Contains(t, seen[0], `query: "naruto"`)
	assert.Contains(t, seen[0], "limit: 20")

	children, err := c.ListChildren(context.Background(), items[0])
	require.NoError(t, err)
	require.Len(t, children, 3)
	for i, ch := range children {
		n := i + 1
		assert.Equal(t, float64(n), ch.Number)
		assert.Equal(t, fmt.Sprintf("s1:ep-%d", n), ch.ID)
		assert.Equal(t, fmt.Sprintf("Episode %d", n), ch.Title)
		assert.Equal(t, "s1", ch.ParentID)
	}

	links, err := c.ResolveMedia(context.Background(), children[1])
	require.NoError(t, err)
	assert.Contains(t, seen[len(seen)-1], `showId: "s1"`)
	assert.Contains(t, seen[len(seen)-1], `episodeString: "2"`)

	require.Len(t, links, 3)
	assert.Equal(t, "https://cdn.example/v.m3u8", links[0].URL)
	assert.Equal(t, "Default", links[0].Quality)

	broken, err := url.Parse(links[1].URL)
	require.NoError(t, err)
	assert.Equal(t, "/\u07ad\ufffd\ufffd", broken.Path)

	assert.Equal(t, srv.URL+"/relative/v.mp4", links[2].URL)
}

func TestCatalog_GraphQLEscapesValues(t *testing.T) {
	var seen []string
	srv := graphqlServer(t, &seen)

	c, err := New(zerolog.Nop(), graphqlConfig(srv), domain.ContentAnime, testClient(), nil)
	require.NoError(t, err)

	_, err = c.Search(context.Background(), `say "hi"`)
	require.NoError(t, err)
	assert.Contains(t, seen[0], `query: "say \"hi\""`)
}

func TestCatalog_ResolveMediaUsesParentFromID(t *testing.T) {
	var seen []string
	srv := graphqlServer(t, &seen)

	c, err := New(zerolog.Nop(), graphqlConfig(srv), domain.ContentAnime, testClient(), nil)
	require.NoError(t, err)

	_, err = c.ResolveMedia(context.Background(), domain.Child{ID: "show:x:EP-7"})
	require.NoError(t, err)
	assert.Contains(t, seen[0], `showId: "show:x"`)
	assert.Contains(t, seen[0], `episodeString: "7"`)
}

func restConfig(base string) *domain.DynamicProviderConfig {
	return &domain.DynamicProviderConfig{
		Name: "Rest Site",
		Slug: "rest-site",
		Type: domain.ContentManga,
		Hosts: domain.HostConfig{
			BaseHost:      base,
			APIBase:       base + "/api",
			Referer:       base + "/",
			UserAgent:     "shinkrosrc-test",
			CustomHeaders: map[string]string{"X-Site": "1"},
		},
		Auth: &domain.AuthConfig{
			Cookies:     map[string]string{"b": "2", "a": "1"},
			BearerToken: "tok",
		},
		Search: domain.SearchConfig{
			Method:        domain.ApiREST,
			Endpoint:      "/search",
			QueryTemplate: "?q=$(query)&n=$limit",
			ResultsPath:   "$.results",
			ResultMapping: []domain.FieldMapping{
				domain.Map("$.id", domain.FieldID),
				domain.Map("$.title", domain.FieldTitle),
			},
			PageSize: 5,
		},
		Content: domain.ContentConfig{
			Chapters: &domain.EndpointConfig{
				Method:        domain.ApiREST,
				Endpoint:      "/manga",
				QueryTemplate: "/${mangaId}/chapters",
				ResultsPath:   "$.chapters",
				Mapping: []domain.FieldMapping{
					domain.Map("$.n", domain.FieldNumber),
					domain.Map("$.name", domain.FieldTitle),
				},
			},
		},
		Media: domain.MediaConfig{
			Pages: &domain.EndpointConfig{
				Method:        domain.ApiREST,
				Endpoint:      "/pages",
				QueryTemplate: "?chapter=${chapterId}",
				ResultsPath:   "$.pages",
				Mapping:       []domain.FieldMapping{domain.Map("$.src", domain.FieldURL)},
				MediaBase:     "https://img.example/media/",
			},
		},
	}
}

func TestCatalog_RESTHeadersAndPaths(t *testing.T) {
	var got *http.Request
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Clone(context.Background())
		switch r.URL.Path {
		case "/api/search":
			fmt.Fprint(w, `{"results":[{"id":"m1","title":"One Piece"},{"other":true}]}`)
		case "/api/manga/m1/chapters":
			fmt.Fprint(w, `{"chapters":[{"n":"10.5","name":"Extra"},{"name":"no number"}]}`)
		case "/api/pages":
			fmt.Fprint(w, `{"pages":[{"src":"p/1.jpg"},{"src":"p/2.jpg"}]}`)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c, err := New(zerolog.Nop(), restConfig(srv.URL), domain.ContentManga, testClient(), nil)
	require.NoError(t, err)

	items, err := c.Search(context.Background(), "one piece")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "one piece", got.URL.Query().Get("q"))
	assert.Equal(t, "5", got.URL.Query().Get("n"))
	assert.Equal(t, "shinkrosrc-test", got.Header.Get("User-Agent"))
	assert.Equal(t, srv.URL+"/", got.Header.Get("Referer"))
	assert.Equal(t, "1", got.Header.Get("X-Site"))
	assert.Equal(t, "a=1; b=2", got.Header.Get("Cookie"))
	assert.Equal(t, "Bearer tok", got.Header.Get("Authorization"))

	chapters, err := c.ListChildren(context.Background(), items[0])
	require.NoError(t, err)
	require.Len(t, chapters, 2)
	assert.Equal(t, float64(2), chapters[0].Number)
	assert.Equal(t, "m1:ch-2", chapters[0].ID)
	assert.Equal(t, "no number", chapters[0].Title)
	assert.Equal(t, 10.5, chapters[1].Number)
	assert.Equal(t, "m1:ch-10.5", chapters[1].ID)

	pages, err := c.ResolveMedia(context.Background(), chapters[1])
	require.NoError(t, err)
	assert.Equal(t, "m1:ch-10.5", got.URL.Query().Get("chapter"))
	require.Len(t, pages, 2)
	assert.Equal(t, "https://img.example/media/p/1.jpg", pages[0].URL)
	assert.Equal(t, 1, pages[0].Page)
	assert.Equal(t, 2, pages[1].Page)
	assert.Equal(t, srv.URL+"/", pages[0].Headers["Referer"])
}

func TestCatalog_FailuresAreEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c, err := New(zerolog.Nop(), restConfig(srv.URL), domain.ContentManga, testClient(), nil)
	require.NoError(t, err)

	items, err := c.Search(context.Background(), "x")
	assert.NoError(t, err)
	assert.Empty(t, items)

	children, err := c.ListChildren(context.Background(), domain.Item{ID: "m1"})
	assert.NoError(t, err)
	assert.Empty(t, children)

	links, err := c.ResolveMedia(context.Background(), domain.Child{ID: "m1:ch-1"})
	assert.NoError(t, err)
	assert.Empty(t, links)
}

func TestCatalog_CancellationIsReturned(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	c, err := New(zerolog.Nop(), restConfig(srv.URL), domain.ContentManga, testClient(), nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = c.Search(ctx, "x")
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestCatalog_MissingSubConfigs(t *testing.T) {
	cfg := restConfig("https://unused.example")
	cfg.Content.Chapters = nil
	cfg.Media.Pages = nil

	c, err := New(zerolog.Nop(), cfg, domain.ContentManga, testClient(), nil)
	require.NoError(t, err)

	children, err := c.ListChildren(context.Background(), domain.Item{ID: "m1"})
	assert.NoError(t, err)
	assert.Empty(t, children)

	links, err := c.ResolveMedia(context.Background(), domain.Child{ID: "m1:ch-1"})
	assert.NoError(t, err)
	assert.Empty(t, links)
}

func TestNew_IncompatibleType(t *testing.T) {
	_, err := New(zerolog.Nop(), restConfig("https://x.example"), domain.ContentAnime, testClient(), nil)
	assert.True(t, errors.Is(err, domain.ErrIncompatibleType))
}

func TestSubstitute(t *testing.T) {
	vars := map[string]string{"query": "a b", "limit": "10"}
	cases := map[string]string{
		"${query}":            "a+b",
		"$(query)":            "a+b",
		"$query/$limit":       "a+b/10",
		"${missing}":          "${missing}",
		"$missing and $limit": "$missing and 10",
		"no placeholders":     "no placeholders",
	}
	for tmpl, want := range cases {
		assert.Equal(t, want, Substitute(tmpl, vars, queryEscape), tmpl)
	}
	assert.Equal(t, `a \"b\"`, Substitute("${q}", map[string]string{"q": `a "b"`}, jsonEscape))
}

func TestSubstituteREST(t *testing.T) {
	vars := map[string]string{"showId": "a b/c", "query": "a b&c"}
	cases := map[string]string{
		"/anime/${showId}/episodes":             "/anime/a%20b%2Fc/episodes",
		"?q=${query}":                           "?q=a+b%26c",
		"/anime/${showId}?q=${query}&s=$showId": "/anime/a%20b%2Fc?q=a+b%26c&s=a+b%2Fc",
		"/plain":                                "/plain",
	}
	for tmpl, want := range cases {
		assert.Equal(t, want, substituteREST(tmpl, vars), tmpl)
	}
}

func TestCatalog_RESTPathPlaceholders(t *testing.T) {
	var rawPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rawPath = r.URL.EscapedPath()
		fmt.Fprint(w, `[1]`)
	}))
	defer srv.Close()

	cfg := &domain.DynamicProviderConfig{
		Slug:  "site",
		Type:  domain.ContentAnime,
		Hosts: domain.HostConfig{BaseHost: srv.URL},
		Content: domain.ContentConfig{
			Episodes: &domain.EndpointConfig{
				Method:        domain.ApiREST,
				Endpoint:      "/anime",
				QueryTemplate: "/${id}/episodes",
				Mapping:       []domain.FieldMapping{domain.Map("$", domain.FieldNumber)},
			},
		},
	}
	c, err := New(zerolog.Nop(), cfg, domain.ContentAnime, testClient(), nil)
	require.NoError(t, err)

	episodes, err := c.ListChildren(context.Background(), domain.Item{ID: "a b"})
	require.NoError(t, err)
	require.Len(t, episodes, 1)
	assert.Equal(t, "/anime/a%20b/episodes", rawPath)
}
