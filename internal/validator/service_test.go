package validator

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/varoOP/shinkrosrc/internal/domain"
	"github.com/varoOP/shinkrosrc/internal/httpclient"
)

func newTestService() *service {
	client := httpclient.New(zerolog.Nop(), httpclient.Options{Attempts: 1, Timeout: 2 * time.Second})
	return NewService(zerolog.Nop(), client).(*service)
}

func animeConfig(base string) *domain.DynamicProviderConfig {
	return &domain.DynamicProviderConfig{
		Name:  "Test",
		Slug:  "test",
		Type:  domain.ContentAnime,
		Hosts: domain.HostConfig{BaseHost: base, APIBase: base},
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
				ResultsPath:   "$",
				Mapping:       []domain.FieldMapping{domain.Map("$", domain.FieldNumber)},
			},
			Details: &domain.EndpointConfig{
				Method:        domain.ApiREST,
				Endpoint:      "/details",
				QueryTemplate: "/${id}",
				Mapping:       []domain.FieldMapping{domain.Map("$.title", domain.FieldTitle)},
			},
		},
		Media: domain.MediaConfig{
			Streams: &domain.EndpointConfig{
				Method:        domain.ApiREST,
				Endpoint:      "/streams",
				QueryTemplate: "?ep=${episode}&show=${showId}",
				ResultsPath:   "$.sources",
				Mapping:       []domain.FieldMapping{domain.Map("$.file", domain.FieldURL)},
			},
		},
	}
}

func siteServer(t *testing.T, search string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/search", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, search)
	})
	mux.HandleFunc("/episodes/a1", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[1, 2, 3]`)
	})
	mux.HandleFunc("/details/a1", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"title":"Naruto"}`)
	})
	mux.HandleFunc("/streams", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("ep") != "1" || r.URL.Query().Get("show") != "a1" {
			http.NotFound(w, r)
			return
		}
		fmt.Fprint(w, `{"sources":[{"file":"https://cdn.example/a1/1.m3u8"}]}`)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestValidate_AllChecksPass(t *testing.T) {
	srv := siteServer(t, `{"results":[{"id":"a1","title":"Naruto"}]}`)
	fixed := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	s := newTestService()
	s.now = func() time.Time { return fixed }

	cfg := animeConfig(srv.URL)
	res, err := s.Validate(context.Background(), cfg)
	require.NoError(t, err)

	assert.True(t, res.IsValid, "checks: %+v", res.Checks)
	names := make([]string, 0, len(res.Checks))
	for _, c := range res.Checks {
		names = append(names, c.Name)
		assert.True(t, c.Passed, c.Name)
		assert.LessOrEqual(t, len(c.Sample), maxSample)
	}
	assert.Equal(t, []string{CheckSearch, CheckEpisodes, CheckStreams, CheckDetails}, names)
	require.NotNil(t, cfg.LastValidatedAt)
	assert.Equal(t, fixed, *cfg.LastValidatedAt)
	assert.Nil(t, res.SuggestedFixes)
}

func TestValidate_ZeroSearchResults(t *testing.T) {
	srv := siteServer(t, `{"results":[]}`)
	cfg := animeConfig(srv.URL)

	res, err := newTestService().Validate(context.Background(), cfg)
	require.NoError(t, err)

	assert.False(t, res.IsValid)
	var failed []string
	for _, c := range res.Checks {
		if !c.Passed && !c.Skipped {
			failed = append(failed, c.Name)
			continue
		}
		assert.True(t, c.Skipped, c.Name)
	}
	assert.Equal(t, []string{CheckSearch}, failed)
	assert.Nil(t, res.SuggestedFixes)
	assert.Nil(t, cfg.LastValidatedAt)
}

func TestValidate_SuggestsResultsPath(t *testing.T) {
	srv := siteServer(t, `{"items":[{"id":"a1","title":"Naruto"}]}`)
	cfg := animeConfig(srv.URL)

	res, err := newTestService().Validate(context.Background(), cfg)
	require.NoError(t, err)

	assert.False(t, res.IsValid)
	require.NotNil(t, res.SuggestedFixes)
	assert.Equal(t, "$.items", res.SuggestedFixes.Search.ResultsPath)
	assert.Equal(t, "$.results", cfg.Search.ResultsPath)
}

func TestValidate_MissingSubConfigsAreSkipped(t *testing.T) {
	srv := siteServer(t, `{"results":[{"id":"a1","title":"Naruto"}]}`)
	cfg := animeConfig(srv.URL)
	cfg.Type = domain.ContentBoth
	cfg.Content.Details = nil

	res, err := newTestService().Validate(context.Background(), cfg)
	require.NoError(t, err)

	byName := map[string]domain.ValidationCheck{}
	for _, c := range res.Checks {
		byName[c.Name] = c
	}
	assert.True(t, byName[CheckEpisodes].Passed)
	assert.True(t, byName[CheckChapters].Skipped)
	assert.True(t, byName[CheckPages].Skipped)
	assert.NotContains(t, byName, CheckDetails)
	assert.Contains(t, res.Warnings, "Chapters endpoint is not configured")
	assert.True(t, res.IsValid)
}

func TestValidate_Cancelled(t *testing.T) {
	srv := siteServer(t, `{"results":[]}`)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestService().Validate(ctx, animeConfig(srv.URL))
	assert.Error(t, err)
}

func TestSampleOf_KeepsRuneBoundary(t *testing.T) {
	sample := sampleOf(strings.Repeat("日", maxSample))
	assert.LessOrEqual(t, len(sample), maxSample)
	assert.True(t, utf8.ValidString(sample))
	assert.True(t, strings.HasPrefix(sample, `"日`))

	assert.Equal(t, `"short"`, sampleOf("short"))
}
