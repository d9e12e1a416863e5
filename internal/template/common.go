package template

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/varoOP/shinkrosrc/internal/domain"
)

const (
	configVersion     = 1
	defaultPageSize   = 20
	defaultRatePerMin = 60
	defaultBurst      = 5
)

// precedence decides whether discovered patterns override template defaults
type precedence int

const (
	preferDiscovered precedence = iota
	// preferDefaults takes discovered data only when both a results path and mappings exist
	preferDefaults
)

// baseConfig fills name, hosts and limits shared by every template
func baseConfig(profile *domain.SiteProfile, name string, t domain.ContentType, apiBase string) *domain.DynamicProviderConfig {
	slug := domain.NormalizeSlug(name)
	if slug == "" {
		slug = domain.NormalizeSlug(profile.Host())
	}
	if name == "" {
		name = slug
	}

	hosts := domain.HostConfig{
		BaseHost: profile.BaseURL,
		APIBase:  apiBase,
	}
	for k, v := range profile.RequiredHeaders {
		switch strings.ToLower(k) {
		case "referer":
			hosts.Referer = v
		case "user-agent":
			hosts.UserAgent = v
		default:
			if hosts.CustomHeaders == nil {
				hosts.CustomHeaders = map[string]string{}
			}
			hosts.CustomHeaders[k] = v
		}
	}

	return &domain.DynamicProviderConfig{
		Name:       name,
		Slug:       slug,
		Type:       t,
		Version:    configVersion,
		Hosts:      hosts,
		Transforms: []domain.TransformRule{},
		RateLimit:  &domain.RateLimitConfig{RequestsPerMinute: defaultRatePerMin, Burst: defaultBurst},
	}
}

// mergeSearch overlays a discovered pattern onto the template defaults
func mergeSearch(def domain.SearchConfig, p *domain.ContentPattern, prec precedence) domain.SearchConfig {
	if p == nil {
		return def
	}
	if p.Endpoint != "" {
		def.Endpoint = p.Endpoint
	}
	if !takeDiscovered(p, prec) {
		return def
	}
	if p.RequestTemplate != "" {
		def.QueryTemplate = p.RequestTemplate
	}
	if p.ResultsPath != "" {
		def.ResultsPath = p.ResultsPath
	}
	if len(p.Mappings) > 0 {
		def.ResultMapping = append([]domain.FieldMapping(nil), p.Mappings...)
	}
	return def
}

// mergeEndpoint is mergeSearch for follow-up endpoints
func mergeEndpoint(def *domain.EndpointConfig, p *domain.ContentPattern, prec precedence) *domain.EndpointConfig {
	if p == nil {
		return def
	}
	if p.Endpoint != "" {
		def.Endpoint = p.Endpoint
	}
	if !takeDiscovered(p, prec) {
		return def
	}
	if p.RequestTemplate != "" {
		def.QueryTemplate = p.RequestTemplate
	}
	if p.ResultsPath != "" {
		def.ResultsPath = p.ResultsPath
	}
	if len(p.Mappings) > 0 {
		def.Mapping = append([]domain.FieldMapping(nil), p.Mappings...)
	}
	return def
}

func takeDiscovered(p *domain.ContentPattern, prec precedence) bool {
	if prec == preferDefaults {
		return p.ResultsPath != "" && len(p.Mappings) > 0
	}
	return true
}

// patternFor returns p when its method is one of methods
func patternFor(p *domain.ContentPattern, methods ...domain.ApiType) *domain.ContentPattern {
	if p == nil {
		return nil
	}
	for _, m := range methods {
		if p.Method == m {
			return p
		}
	}
	return nil
}

var versionSegment = regexp.MustCompile(`^v\d+$`)

// apiRoot cuts an endpoint URL after its last api or version segment,
// returning scheme and host when there is none
func apiRoot(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return raw
	}
	segs := strings.Split(strings.Trim(u.Path, "/"), "/")
	last := -1
	for i, s := range segs {
		if strings.EqualFold(s, "api") || versionSegment.MatchString(s) {
			last = i
		}
	}
	root := u.Scheme + "://" + u.Host
	if last >= 0 {
		root += "/" + strings.Join(segs[:last+1], "/")
	}
	return root
}

func graphqlEndpoint(profile *domain.SiteProfile, schema *domain.ContentSchema) string {
	if p := patternFor(schema.Search, domain.ApiGraphQL); p != nil && p.Endpoint != "" {
		return p.Endpoint
	}
	if e := schema.FirstEndpoint(domain.ApiGraphQL); e != nil {
		return e.URL
	}
	return strings.TrimSuffix(profile.BaseURL, "/") + "/api"
}

func restBase(profile *domain.SiteProfile, schema *domain.ContentSchema) string {
	if p := patternFor(schema.Search, domain.ApiREST, domain.ApiCustom); p != nil && p.Endpoint != "" {
		return apiRoot(p.Endpoint)
	}
	if e := schema.FirstEndpoint(domain.ApiREST); e != nil {
		return apiRoot(e.URL)
	}
	return strings.TrimSuffix(profile.BaseURL, "/") + "/api"
}

func mediaBase(profile *domain.SiteProfile) string {
	if len(profile.CDNHosts) > 0 {
		return "https://" + profile.CDNHosts[0] + "/"
	}
	return ""
}

// otherMedium reports whether the profile is clearly about the other content type
func otherMedium(profile *domain.SiteProfile, t domain.ContentType) bool {
	switch t {
	case domain.ContentAnime:
		return profile.Category == domain.CategoryManga
	case domain.ContentManga:
		return profile.Category == domain.CategoryAnime
	}
	return false
}

func exactCategory(profile *domain.SiteProfile, t domain.ContentType) bool {
	return profile.Category != domain.CategoryUnknown && profile.Category.ContentType() == t
}

func childPattern(schema *domain.ContentSchema, t domain.ContentType) *domain.ContentPattern {
	if t == domain.ContentManga {
		return schema.Chapters
	}
	return schema.Episodes
}

func safeSchema(schema *domain.ContentSchema) *domain.ContentSchema {
	if schema == nil {
		return &domain.ContentSchema{}
	}
	return schema
}
