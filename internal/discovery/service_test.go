package discovery

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/varoOP/shinkrosrc/internal/domain"
	"github.com/varoOP/shinkrosrc/internal/extract"
	"github.com/varoOP/shinkrosrc/internal/httpclient"
)

func newTestService() Service {
	opts := httpclient.Options{Attempts: 1, Timeout: 2 * time.Second}
	return NewService(zerolog.Nop(), httpclient.New(zerolog.Nop(), opts))
}

func restSite(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/search", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"total":1,"results":[{"id":"n1","title":"Naruto","image":{"large":"https://cdn.example/n1.jpg"},"url":"/anime/n1"}]}`))
	})
	mux.HandleFunc("/api/v1/episodes/n1", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"episodes":[{"id":"e1","number":1,"title":"Ep 1"},{"id":"e2","number":2,"title":"Ep 2"}]}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestDiscoverAndAnalyze_REST(t *testing.T) {
	srv := restSite(t)
	profile := &domain.SiteProfile{
		BaseURL:      srv.URL,
		Category:     domain.CategoryAnime,
		APIEndpoints: []string{srv.URL + "/api/v1/search?q="},
		InlineScripts: []string{
			`fetch("/api/v1/search?q=" + term); axios.get("/api/v1/episodes/" + id)`,
		},
		RobotsTxt: "User-agent: *\nDisallow: /api/\n",
		Links:     []string{srv.URL + "/anime/n1", srv.URL + "/anime/b2", srv.URL + "/about"},
	}

	svc := newTestService()
	endpoints := svc.DiscoverEndpoints(context.Background(), profile)
	require.NotEmpty(t, endpoints)

	search := endpoints[0]
	assert.Equal(t, srv.URL+"/api/v1/search", search.URL)
	assert.Equal(t, domain.ApiREST, search.Kind)
	assert.Equal(t, domain.PurposeSearch, search.Purpose)
	assert.Contains(t, search.Signals, signalCallSite)
	assert.Contains(t, search.Signals, signalRobots)
	assert.Contains(t, search.Signals, signalJSON)
	assert.LessOrEqual(t, search.Confidence, 100)

	schema := svc.AnalyzeContent(context.Background(), profile, endpoints)
	require.NotNil(t, schema.Search)
	assert.Equal(t, domain.ApiREST, schema.Search.Method)
	assert.Equal(t, "?q=${query}", schema.Search.RequestTemplate)
	assert.Equal(t, "$.results", schema.Search.ResultsPath)
	assert.Contains(t, schema.Search.Mappings, domain.Map("$.id", domain.FieldID))
	assert.Contains(t, schema.Search.Mappings, domain.Map("$.image.large", domain.FieldCoverImage))

	require.NotNil(t, schema.Episodes)
	assert.Equal(t, "/${id}", schema.Episodes.RequestTemplate)
	assert.Equal(t, "$.episodes", schema.Episodes.ResultsPath)
	assert.Contains(t, schema.Episodes.Mappings, domain.Map("$.number", domain.FieldNumber))
	assert.Nil(t, schema.Chapters)

	require.NotNil(t, schema.Identifier)
	assert.Equal(t, "/anime/([^/?#]+)", schema.Identifier.PathPattern)
	assert.Equal(t, "/anime/n1", schema.Identifier.Example)
}

func TestDiscover_GraphQLGuess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/graphql" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data":{"__typename":"Query"}}`))
	}))
	defer srv.Close()

	profile := &domain.SiteProfile{BaseURL: srv.URL, Category: domain.CategoryAnime, HasGraphQL: true}
	svc := newTestService()

	endpoints := svc.DiscoverEndpoints(context.Background(), profile)
	require.Len(t, endpoints, 1)
	assert.Equal(t, srv.URL+"/graphql", endpoints[0].URL)
	assert.Equal(t, domain.ApiGraphQL, endpoints[0].Kind)
	assert.Contains(t, endpoints[0].Signals, signalGraphQL)

	schema := svc.AnalyzeContent(context.Background(), profile, endpoints)
	require.NotNil(t, schema.Search)
	assert.Equal(t, domain.ApiGraphQL, schema.Search.Method)
	require.NotNil(t, schema.Episodes)
	require.NotNil(t, schema.Media)
}

func TestAnalyze_FailuresDegradeToNil(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	endpoints := []domain.ApiEndpoint{{
		URL: srv.URL + "/api/search", Kind: domain.ApiREST, Purpose: domain.PurposeSearch, Confidence: 30,
	}}
	schema := newTestService().AnalyzeContent(context.Background(), &domain.SiteProfile{BaseURL: srv.URL}, endpoints)

	require.NotNil(t, schema)
	assert.Nil(t, schema.Search)
	assert.Nil(t, schema.Episodes)
	assert.Nil(t, schema.Chapters)
	assert.Len(t, schema.Endpoints, 1)
}

func TestDiscover_NoBaseURL(t *testing.T) {
	assert.Empty(t, newTestService().DiscoverEndpoints(context.Background(), &domain.SiteProfile{}))
}

func TestFindArrayPath(t *testing.T) {
	doc, err := extract.Parse([]byte(`{"meta":{"count":2},"data":{"items":[{"id":1,"name":"a"},{"id":2,"name":"b"}]}}`))
	require.NoError(t, err)

	path, elems, ok := findArrayPath(doc)
	require.True(t, ok)
	assert.Equal(t, "$.data.items", path)
	assert.Len(t, elems, 2)

	root, _ := extract.Parse([]byte(`[{"id":1,"name":"a"}]`))
	path, _, ok = findArrayPath(root)
	require.True(t, ok)
	assert.Equal(t, "$", path)

	scalars, _ := extract.Parse([]byte(`{"ids":[1,2,3]}`))
	_, _, ok = findArrayPath(scalars)
	assert.False(t, ok)
}

func TestInferMappings(t *testing.T) {
	sample := map[string]any{
		"_id":         "abc",
		"name":        "Frieren",
		"thumbnail":   "https://cdn.example/f.jpg",
		"description": "An elf mage",
		"tags":        []any{"fantasy"},
	}
	got := inferMappings(sample, false)
	assert.Equal(t, []domain.FieldMapping{
		domain.Map("$._id", domain.FieldID),
		domain.Map("$.name", domain.FieldTitle),
		domain.Map("$.description", domain.FieldSynopsis),
		domain.Map("$.thumbnail", domain.FieldCoverImage),
	}, got)

	children := inferMappings(map[string]any{"episode": "3", "link": "/w/3"}, true)
	assert.Equal(t, []domain.FieldMapping{
		domain.Map("$.episode", domain.FieldNumber),
		domain.Map("$.link", domain.FieldURL),
	}, children)
}

func TestMentions(t *testing.T) {
	robots := "disallow: /api/\n"
	assert.True(t, mentions(robots, "/api/v1/search"))
	assert.False(t, mentions(robots, "/graphql"))
}
