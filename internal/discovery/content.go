package discovery

import (
	"context"
	"net/url"
	"regexp"
	"sort"

	"github.com/varoOP/shinkrosrc/internal/domain"
	"github.com/varoOP/shinkrosrc/internal/extract"
	"github.com/varoOP/shinkrosrc/internal/httpclient"
)

var searchParams = []string{"q", "query", "keyword", "search", "term"}

// AnalyzeContent exercises the discovered endpoints with probe queries and
// infers the search, children and media patterns. Any probe failure leaves
// the corresponding pattern nil.
func (s *service) AnalyzeContent(ctx context.Context, profile *domain.SiteProfile, endpoints []domain.ApiEndpoint) *domain.ContentSchema {
	schema := &domain.ContentSchema{Endpoints: endpoints}

	probe := SearchProbes[profile.Category]
	if probe == "" {
		probe = SearchProbes[domain.CategoryUnknown]
	}

	var firstID string
	schema.Search, firstID = s.searchPattern(ctx, profile, endpoints, probe)

	switch profile.Category {
	case domain.CategoryAnime:
		schema.Episodes = s.childPattern(ctx, profile, endpoints, schema.Search, domain.PurposeEpisodes, firstID)
	case domain.CategoryManga:
		schema.Chapters = s.childPattern(ctx, profile, endpoints, schema.Search, domain.PurposeChapters, firstID)
	default:
		schema.Episodes = s.childPattern(ctx, profile, endpoints, schema.Search, domain.PurposeEpisodes, firstID)
		schema.Chapters = s.childPattern(ctx, profile, endpoints, schema.Search, domain.PurposeChapters, firstID)
	}

	schema.Media = mediaPattern(endpoints, schema.Search, profile.Category)
	schema.Identifier = identifierPattern(profile.Links)

	s.log.Info().
		Bool("search", schema.Search != nil).
		Bool("episodes", schema.Episodes != nil).
		Bool("chapters", schema.Chapters != nil).
		Bool("media", schema.Media != nil).
		Msg("Content analysis complete")

	return schema
}

func (s *service) searchPattern(ctx context.Context, profile *domain.SiteProfile, endpoints []domain.ApiEndpoint, probe string) (*domain.ContentPattern, string) {
	if e := confirmedGraphQL(endpoints); e != nil {
		return &domain.ContentPattern{Method: domain.ApiGraphQL, Endpoint: e.URL}, ""
	}

	tries := 0
	for _, e := range orderForPurpose(endpoints, domain.PurposeSearch) {
		if e.Kind == domain.ApiGraphQL {
			continue
		}
		for _, param := range paramsFor(e) {
			if tries >= maxSearchTries || ctx.Err() != nil {
				return nil, ""
			}
			tries++

			target := e.URL + "?" + param + "=" + url.QueryEscape(probe)
			pattern, id := s.inferPattern(ctx, profile, target, false)
			if pattern == nil {
				continue
			}
			if !hasField(pattern.Mappings, domain.FieldTitle) {
				continue
			}
			pattern.Method = domain.ApiREST
			pattern.Endpoint = e.URL
			pattern.RequestTemplate = "?" + param + "=${query}"
			s.log.Debug().Str("endpoint", e.URL).Str("param", param).Msg("search pattern confirmed")
			return pattern, id
		}
	}
	return nil, ""
}

func (s *service) childPattern(ctx context.Context, profile *domain.SiteProfile, endpoints []domain.ApiEndpoint, search *domain.ContentPattern, purpose domain.EndpointPurpose, parentID string) *domain.ContentPattern {
	if search != nil && search.Method == domain.ApiGraphQL {
		return &domain.ContentPattern{Method: domain.ApiGraphQL, Endpoint: search.Endpoint}
	}
	if parentID == "" {
		return nil
	}

	for _, e := range endpoints {
		if e.Purpose != purpose || e.Kind == domain.ApiGraphQL {
			continue
		}
		variants := []struct{ target, template string }{
			{e.URL + "/" + url.PathEscape(parentID), "/${id}"},
			{e.URL + "?id=" + url.QueryEscape(parentID), "?id=${id}"},
		}
		for _, v := range variants {
			if ctx.Err() != nil {
				return nil
			}
			pattern, _ := s.inferPattern(ctx, profile, v.target, true)
			if pattern == nil {
				continue
			}
			pattern.Method = e.Kind
			pattern.Endpoint = e.URL
			pattern.RequestTemplate = v.template
			return pattern
		}
	}
	return nil
}

// inferPattern fetches target and infers results path and mappings from the
// first array of objects in the response. The first record's id is returned
// for follow-up probes.
func (s *service) inferPattern(ctx context.Context, profile *domain.SiteProfile, target string, children bool) (*domain.ContentPattern, string) {
	resp, err := httpclient.Get(ctx, s.client, target, profile.RequiredHeaders)
	if err != nil || !resp.OK() {
		s.log.Debug().Err(err).Str("url", target).Msg("content probe failed")
		return nil, ""
	}

	doc, err := extract.Parse(resp.Body)
	if err != nil {
		return nil, ""
	}
	path, elems, ok := findArrayPath(doc)
	if !ok {
		return nil, ""
	}
	sample, _ := elems[0].(map[string]any)
	mappings := inferMappings(sample, children)
	if len(mappings) == 0 {
		return nil, ""
	}

	var id string
	if records := s.extractor.ExtractFrom(doc, mappings, path); len(records) > 0 {
		id = records[0].ID
	}
	return &domain.ContentPattern{ResultsPath: path, Mappings: mappings}, id
}

func mediaPattern(endpoints []domain.ApiEndpoint, search *domain.ContentPattern, category domain.ContentCategory) *domain.ContentPattern {
	if search != nil && search.Method == domain.ApiGraphQL {
		return &domain.ContentPattern{Method: domain.ApiGraphQL, Endpoint: search.Endpoint}
	}

	purposes := []domain.EndpointPurpose{domain.PurposeStreams, domain.PurposePages}
	if category == domain.CategoryManga {
		purposes = []domain.EndpointPurpose{domain.PurposePages, domain.PurposeStreams}
	}
	for _, p := range purposes {
		for _, e := range endpoints {
			if e.Purpose == p && e.Kind != domain.ApiGraphQL {
				return &domain.ContentPattern{Method: e.Kind, Endpoint: e.URL, RequestTemplate: "?id=${id}"}
			}
		}
	}
	return nil
}

var identifierPath = regexp.MustCompile(`^/(anime|manga|series|title|titles|watch|read|comic|comics|show|shows|manhwa)/([^/?#]+)`)

func identifierPattern(links []string) *domain.IdentifierPattern {
	counts := map[string]int{}
	examples := map[string]string{}
	for _, l := range links {
		u, err := url.Parse(l)
		if err != nil {
			continue
		}
		m := identifierPath.FindStringSubmatch(u.Path)
		if m == nil {
			continue
		}
		counts[m[1]]++
		if _, ok := examples[m[1]]; !ok {
			examples[m[1]] = u.Path
		}
	}
	if len(counts) == 0 {
		return nil
	}

	prefixes := make([]string, 0, len(counts))
	for p := range counts {
		prefixes = append(prefixes, p)
	}
	sort.Slice(prefixes, func(i, j int) bool {
		if counts[prefixes[i]] != counts[prefixes[j]] {
			return counts[prefixes[i]] > counts[prefixes[j]]
		}
		return prefixes[i] < prefixes[j]
	})

	best := prefixes[0]
	return &domain.IdentifierPattern{
		PathPattern: "/" + best + "/([^/?#]+)",
		Example:     examples[best],
	}
}

func confirmedGraphQL(endpoints []domain.ApiEndpoint) *domain.ApiEndpoint {
	for i := range endpoints {
		e := &endpoints[i]
		if e.Kind != domain.ApiGraphQL {
			continue
		}
		for _, sig := range e.Signals {
			if sig == signalGraphQL {
				return e
			}
		}
	}
	return nil
}

// orderForPurpose puts endpoints of purpose p first, keeping relative order
func orderForPurpose(endpoints []domain.ApiEndpoint, p domain.EndpointPurpose) []domain.ApiEndpoint {
	out := make([]domain.ApiEndpoint, 0, len(endpoints))
	for _, e := range endpoints {
		if e.Purpose == p {
			out = append(out, e)
		}
	}
	for _, e := range endpoints {
		if e.Purpose != p {
			out = append(out, e)
		}
	}
	return out
}

// paramsFor prefers the query parameter already seen in the sample request
func paramsFor(e domain.ApiEndpoint) []string {
	if u, err := url.Parse(e.SampleRequest); err == nil {
		keys := make([]string, 0, len(u.Query()))
		for k := range u.Query() {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		if len(keys) > 0 {
			return keys[:1]
		}
	}
	return searchParams
}
