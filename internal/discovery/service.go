// Package discovery finds API endpoints on a probed site and infers the
// content patterns a provider config can be generated from.
package discovery

import (
	"context"
	"net/url"
	"regexp"
	"sort"
	"strings"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/rs/zerolog"
	"github.com/varoOP/shinkrosrc/internal/domain"
	"github.com/varoOP/shinkrosrc/internal/extract"
	"github.com/varoOP/shinkrosrc/internal/httpclient"
)

const (
	maxScripts     = 3
	maxProbes      = 8
	maxSample      = 2048
	maxSearchTries = 3
)

// signal names and their confidence weight
const (
	signalURLShape = "url-shape"
	signalCallSite = "call-site"
	signalRobots   = "robots"
	signalJSON     = "json-response"
	signalGraphQL  = "graphql-shape"
	signalGuessed  = "guessed"
)

var signalWeights = map[string]int{
	signalURLShape: 30,
	signalCallSite: 20,
	signalRobots:   10,
	signalJSON:     25,
	signalGraphQL:  15,
	signalGuessed:  0,
}

// SearchProbes are the high-probability titles used to exercise a search pattern
var SearchProbes = map[domain.ContentCategory]string{
	domain.CategoryAnime:   "naruto",
	domain.CategoryManga:   "one piece",
	domain.CategoryBoth:    "naruto",
	domain.CategoryUnknown: "naruto",
}

type Service interface {
	DiscoverEndpoints(ctx context.Context, profile *domain.SiteProfile) []domain.ApiEndpoint
	AnalyzeContent(ctx context.Context, profile *domain.SiteProfile, endpoints []domain.ApiEndpoint) *domain.ContentSchema
}

type service struct {
	log       zerolog.Logger
	client    *retryablehttp.Client
	extractor *extract.Extractor
}

func NewService(log zerolog.Logger, client *retryablehttp.Client) Service {
	return &service{
		log:       log.With().Str("module", "discovery").Logger(),
		client:    client,
		extractor: extract.New(log, nil),
	}
}

type candidate struct {
	url      string
	sample   string
	response string
	signals  map[string]bool
}

func (c *candidate) add(signal string) {
	c.signals[signal] = true
}

func (c *candidate) confidence() int {
	total := 0
	for s := range c.signals {
		total += signalWeights[s]
	}
	if total > 100 {
		return 100
	}
	return total
}

var (
	quotedURL = regexp.MustCompile("[\"'`]((?:https?:)?//[^\"'`\\s<>]+|/[^\"'`\\s<>]*)[\"'`]")
	apiShape  = regexp.MustCompile(`(?i)(/api(/|$|\?)|/graphql|/gql(/|$|\?)|/v\d+/)`)
	callSite  = regexp.MustCompile("(?:fetch|axios(?:\\.(?:get|post|request))?|\\$\\.(?:get|getJSON|ajax)|\\.open)\\(\\s*(?:[\"'A-Z]+[\"']\\s*,\\s*)?[\"'`]([^\"'`]+)[\"'`]")
)

// DiscoverEndpoints combines URL shapes, script call sites, robots.txt
// mentions and live responses into scored endpoints, best first.
func (s *service) DiscoverEndpoints(ctx context.Context, profile *domain.SiteProfile) []domain.ApiEndpoint {
	base, err := url.Parse(profile.BaseURL)
	if err != nil || base.Host == "" {
		s.log.Warn().Str("base_url", profile.BaseURL).Msg("profile has no usable base url")
		return nil
	}

	candidates := map[string]*candidate{}
	get := func(raw string) *candidate {
		ref, err := url.Parse(raw)
		if err != nil {
			return nil
		}
		abs := base.ResolveReference(ref)
		sample := abs.String()
		abs.RawQuery, abs.Fragment = "", ""
		if len(abs.Path) > 1 {
			abs.Path = strings.TrimSuffix(abs.Path, "/")
		}
		key := abs.String()

		c, ok := candidates[key]
		if !ok {
			c = &candidate{url: key, sample: sample, signals: map[string]bool{}}
			candidates[key] = c
		}
		return c
	}

	for _, e := range profile.APIEndpoints {
		if c := get(e); c != nil {
			c.add(signalURLShape)
		}
	}

	for _, script := range s.scripts(ctx, profile, base) {
		for _, m := range quotedURL.FindAllStringSubmatch(script, -1) {
			if apiShape.MatchString(m[1]) && !isAsset(m[1]) {
				if c := get(m[1]); c != nil {
					c.add(signalURLShape)
				}
			}
		}
		for _, m := range callSite.FindAllStringSubmatch(script, -1) {
			if isAsset(m[1]) || strings.HasPrefix(m[1], "#") {
				continue
			}
			if c := get(m[1]); c != nil {
				c.add(signalCallSite)
			}
		}
	}

	if profile.HasGraphQL && !hasGraphQLCandidate(candidates) {
		for _, guess := range []string{"/graphql", "/api/graphql", "/api"} {
			if c := get(guess); c != nil {
				c.add(signalGuessed)
			}
		}
	}

	robots := strings.ToLower(profile.RobotsTxt)
	for _, c := range candidates {
		if u, err := url.Parse(c.url); err == nil && robots != "" && mentions(robots, u.Path) {
			c.add(signalRobots)
		}
	}

	ordered := make([]*candidate, 0, len(candidates))
	for _, c := range candidates {
		ordered = append(ordered, c)
	}
	sortCandidates(ordered)

	for i, c := range ordered {
		if i >= maxProbes || ctx.Err() != nil {
			break
		}
		s.probeCandidate(ctx, profile, c)
	}
	sortCandidates(ordered)

	var out []domain.ApiEndpoint
	for _, c := range ordered {
		conf := c.confidence()
		if conf == 0 {
			continue
		}
		out = append(out, s.toEndpoint(c, conf))
	}

	s.log.Info().Int("candidates", len(candidates)).Int("endpoints", len(out)).Msg("Endpoint discovery complete")
	return out
}

// scripts returns inline script text plus up to maxScripts same-origin bundles
func (s *service) scripts(ctx context.Context, profile *domain.SiteProfile, base *url.URL) []string {
	out := append([]string(nil), profile.InlineScripts...)

	fetched := 0
	for _, src := range profile.ScriptURLs {
		if fetched >= maxScripts || ctx.Err() != nil {
			break
		}
		u, err := url.Parse(src)
		if err != nil || !strings.EqualFold(u.Hostname(), base.Hostname()) {
			continue
		}
		fetched++

		resp, err := httpclient.Get(ctx, s.client, src, profile.RequiredHeaders)
		if err != nil || !resp.OK() {
			s.log.Debug().Err(err).Str("url", src).Msg("failed to fetch script")
			continue
		}
		out = append(out, string(resp.Body))
	}
	return out
}

// probeCandidate issues one live GET (a __typename query for GraphQL shaped
// URLs) and records the response signals.
func (s *service) probeCandidate(ctx context.Context, profile *domain.SiteProfile, c *candidate) {
	target := c.sample
	graphqlShaped := isGraphQLPath(c.url) || c.signals[signalGuessed]
	if graphqlShaped {
		target = c.url + "?query=" + url.QueryEscape("{__typename}")
	}

	resp, err := httpclient.Get(ctx, s.client, target, profile.RequiredHeaders)
	if err != nil {
		s.log.Debug().Err(err).Str("url", target).Msg("endpoint probe failed")
		return
	}
	c.response = truncate(string(resp.Body), maxSample)

	isJSON := strings.Contains(strings.ToLower(resp.Header.Get("Content-Type")), "json")
	doc, err := extract.Parse(resp.Body)
	if err != nil {
		return
	}
	if isJSON || resp.OK() {
		c.add(signalJSON)
	}

	if obj, ok := doc.(map[string]any); ok && graphqlShaped {
		_, hasData := obj["data"]
		_, hasErrors := obj["errors"]
		if hasData || hasErrors {
			c.add(signalGraphQL)
		}
	}
}

func (s *service) toEndpoint(c *candidate, conf int) domain.ApiEndpoint {
	kind := domain.ApiCustom
	switch {
	case c.signals[signalGraphQL] || isGraphQLPath(c.url):
		kind = domain.ApiGraphQL
	case apiShape.MatchString(c.url):
		kind = domain.ApiREST
	}

	signals := make([]string, 0, len(c.signals))
	for sig := range c.signals {
		signals = append(signals, sig)
	}
	sort.Strings(signals)

	return domain.ApiEndpoint{
		URL:            c.url,
		Kind:           kind,
		Method:         "GET",
		Purpose:        inferPurpose(c.url),
		SampleRequest:  c.sample,
		SampleResponse: c.response,
		Confidence:     conf,
		Signals:        signals,
	}
}

var purposeKeywords = []struct {
	purpose domain.EndpointPurpose
	re      *regexp.Regexp
}{
	{domain.PurposeSearch, regexp.MustCompile(`(?i)(search|find|query|lookup|autocomplete)`)},
	{domain.PurposeStreams, regexp.MustCompile(`(?i)(stream|source|embed|server|video|player)`)},
	{domain.PurposePages, regexp.MustCompile(`(?i)(pages|images|reader|pictures)`)},
	{domain.PurposeEpisodes, regexp.MustCompile(`(?i)(episode|eps\b)`)},
	{domain.PurposeChapters, regexp.MustCompile(`(?i)(chapter)`)},
	{domain.PurposeDetails, regexp.MustCompile(`(?i)(detail|info|anime/|manga/|show|series|title)`)},
}

func inferPurpose(raw string) domain.EndpointPurpose {
	u, err := url.Parse(raw)
	if err != nil {
		return domain.PurposeUnknown
	}
	for _, p := range purposeKeywords {
		if p.re.MatchString(u.Path) {
			return p.purpose
		}
	}
	return domain.PurposeUnknown
}

func sortCandidates(cs []*candidate) {
	sort.SliceStable(cs, func(i, j int) bool {
		ci, cj := cs[i].confidence(), cs[j].confidence()
		if ci != cj {
			return ci > cj
		}
		return cs[i].url < cs[j].url
	})
}

func hasGraphQLCandidate(cs map[string]*candidate) bool {
	for k := range cs {
		if isGraphQLPath(k) {
			return true
		}
	}
	return false
}

func isGraphQLPath(raw string) bool {
	lower := strings.ToLower(raw)
	return strings.Contains(lower, "graphql") || strings.HasSuffix(lower, "/gql")
}

func isAsset(raw string) bool {
	lower := strings.ToLower(raw)
	for _, ext := range []string{".js", ".css", ".png", ".jpg", ".jpeg", ".webp", ".svg", ".woff", ".woff2", ".ico"} {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

// mentions reports whether robots.txt names path or one of its parent directories
func mentions(robots, path string) bool {
	path = strings.ToLower(path)
	for path != "" && path != "/" {
		if strings.Contains(robots, path) {
			return true
		}
		i := strings.LastIndex(strings.TrimSuffix(path, "/"), "/")
		if i < 0 {
			break
		}
		path = path[:i+1]
	}
	return false
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
