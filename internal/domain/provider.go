package domain

import (
	"regexp"
	"strings"
	"time"
)

// FieldMapping extracts one named output field from a response document
type FieldMapping struct {
	SourcePath      string        `json:"sourcePath"`
	TargetField     TargetField   `json:"targetField"`
	Transform       TransformType `json:"transform"`
	TransformParams []string      `json:"transformParams,omitempty"`
}

// Map is a shorthand for a mapping without a transform
func Map(source string, target TargetField) FieldMapping {
	return FieldMapping{SourcePath: source, TargetField: target, Transform: TransformNone}
}

// HostConfig holds the hosts and headers used for every request of a provider
type HostConfig struct {
	BaseHost      string            `json:"baseHost"`
	APIBase       string            `json:"apiBase"`
	Referer       string            `json:"referer,omitempty"`
	UserAgent     string            `json:"userAgent,omitempty"`
	CustomHeaders map[string]string `json:"customHeaders,omitempty"`
}

// AuthConfig carries pre-supplied credentials. No auth flow is performed.
type AuthConfig struct {
	Headers     map[string]string `json:"headers,omitempty"`
	Cookies     map[string]string `json:"cookies,omitempty"`
	BearerToken string            `json:"bearerToken,omitempty"`
}

// SearchConfig describes the search request of a provider
type SearchConfig struct {
	Method            ApiType        `json:"method"`
	Endpoint          string         `json:"endpoint"`
	QueryTemplate     string         `json:"queryTemplate"`
	VariablesTemplate string         `json:"variablesTemplate,omitempty"`
	PopularTemplate   string         `json:"popularTemplate,omitempty"`
	ResultsPath       string         `json:"resultsPath,omitempty"`
	ResultMapping     []FieldMapping `json:"resultMapping"`
	PageSize          int            `json:"pageSize"`
}

// EndpointConfig describes one follow-up request (episodes, chapters, streams, pages, details)
type EndpointConfig struct {
	Method            ApiType        `json:"method"`
	Endpoint          string         `json:"endpoint"`
	QueryTemplate     string         `json:"queryTemplate"`
	VariablesTemplate string         `json:"variablesTemplate,omitempty"`
	ResultsPath       string         `json:"resultsPath,omitempty"`
	Mapping           []FieldMapping `json:"mapping"`
	CustomDecoder     string         `json:"customDecoder,omitempty"`
	MediaBase         string         `json:"mediaBase,omitempty"`
}

// ContentConfig holds the child listing endpoints
type ContentConfig struct {
	Episodes *EndpointConfig `json:"episodes,omitempty"`
	Chapters *EndpointConfig `json:"chapters,omitempty"`
	Details  *EndpointConfig `json:"details,omitempty"`
}

// MediaConfig holds the leaf media endpoints
type MediaConfig struct {
	Streams *EndpointConfig `json:"streams,omitempty"`
	Pages   *EndpointConfig `json:"pages,omitempty"`
}

// TransformRule is a named per-site decoder compiled when a runtime is built
type TransformRule struct {
	Name        string            `json:"name"`
	Kind        TransformRuleKind `json:"kind"`
	Pattern     string            `json:"pattern,omitempty"`
	Replacement string            `json:"replacement,omitempty"`
}

// RateLimitConfig bounds the request rate against one provider
type RateLimitConfig struct {
	RequestsPerMinute int `json:"requestsPerMinute"`
	Burst             int `json:"burst,omitempty"`
}

// DynamicProviderConfig is the portable, persisted description of one provider
type DynamicProviderConfig struct {
	Name            string           `json:"name"`
	Slug            string           `json:"slug"`
	Type            ContentType      `json:"type"`
	Version         int              `json:"version"`
	GeneratedAt     time.Time        `json:"generatedAt"`
	LastValidatedAt *time.Time       `json:"lastValidatedAt"`
	Hosts           HostConfig       `json:"hosts"`
	Auth            *AuthConfig      `json:"auth,omitempty"`
	Search          SearchConfig     `json:"search"`
	Content         ContentConfig    `json:"content"`
	Media           MediaConfig      `json:"media"`
	Transforms      []TransformRule  `json:"transforms"`
	RateLimit       *RateLimitConfig `json:"rateLimit,omitempty"`
	Notes           string           `json:"notes,omitempty"`

	// BuiltIn is set by the store when the config was loaded from the shipped directory
	BuiltIn bool `json:"-"`
}

// Clone returns a deep copy of the config
func (c *DynamicProviderConfig) Clone() *DynamicProviderConfig {
	out := *c
	if c.LastValidatedAt != nil {
		t := *c.LastValidatedAt
		out.LastValidatedAt = &t
	}
	out.Hosts.CustomHeaders = cloneMap(c.Hosts.CustomHeaders)
	if c.Auth != nil {
		a := AuthConfig{
			Headers:     cloneMap(c.Auth.Headers),
			Cookies:     cloneMap(c.Auth.Cookies),
			BearerToken: c.Auth.BearerToken,
		}
		out.Auth = &a
	}
	out.Search.ResultMapping = cloneMappings(c.Search.ResultMapping)
	out.Content.Episodes = c.Content.Episodes.clone()
	out.Content.Chapters = c.Content.Chapters.clone()
	out.Content.Details = c.Content.Details.clone()
	out.Media.Streams = c.Media.Streams.clone()
	out.Media.Pages = c.Media.Pages.clone()
	if c.Transforms != nil {
		out.Transforms = append([]TransformRule(nil), c.Transforms...)
	}
	if c.RateLimit != nil {
		r := *c.RateLimit
		out.RateLimit = &r
	}
	return &out
}

func (e *EndpointConfig) clone() *EndpointConfig {
	if e == nil {
		return nil
	}
	out := *e
	out.Mapping = cloneMappings(e.Mapping)
	return &out
}

func cloneMappings(in []FieldMapping) []FieldMapping {
	if in == nil {
		return nil
	}
	out := make([]FieldMapping, len(in))
	for i, m := range in {
		out[i] = m
		if m.TransformParams != nil {
			out[i].TransformParams = append([]string(nil), m.TransformParams...)
		}
	}
	return out
}

func cloneMap(in map[string]string) map[string]string {
	if in == nil {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

var slugStrip = regexp.MustCompile(`[^a-z0-9._-]+`)

// NormalizeSlug lowercases s, replaces spaces with hyphens and drops every character
// outside [a-z0-9._-]. A normalized slug never contains ':'.
func NormalizeSlug(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.Join(strings.Fields(s), "-")
	s = slugStrip.ReplaceAllString(s, "")
	return strings.Trim(s, "-.")
}

// ProviderInfo is a read-model summary of a stored config
type ProviderInfo struct {
	Name    string      `json:"name"`
	Slug    string      `json:"slug"`
	Type    ContentType `json:"type"`
	BuiltIn bool        `json:"builtIn"`
	Active  bool        `json:"active"`
}

// ActiveProviders maps each content type to the slug of its active provider
type ActiveProviders struct {
	AnimeProvider string `json:"animeProvider"`
	MangaProvider string `json:"mangaProvider"`
}

// For returns the active slug for a content type
func (a ActiveProviders) For(t ContentType) string {
	switch t {
	case ContentAnime:
		return a.AnimeProvider
	case ContentManga:
		return a.MangaProvider
	}
	return ""
}
