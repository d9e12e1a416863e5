package domain

import "time"

// SiteProfile is an immutable snapshot of one probed site
type SiteProfile struct {
	BaseURL             string            `json:"baseUrl"`
	Architecture        SiteArchitecture  `json:"architecture"`
	Category            ContentCategory   `json:"category"`
	JSFramework         string            `json:"jsFramework,omitempty"`
	RequiresJavaScript  bool              `json:"requiresJavaScript"`
	CloudflareProtected bool              `json:"cloudflareProtected"`
	HasGraphQL          bool              `json:"hasGraphQL"`
	APIEndpoints        []string          `json:"apiEndpoints"`
	CDNHosts            []string          `json:"cdnHosts"`
	RequiredHeaders     map[string]string `json:"requiredHeaders"`
	Title               string            `json:"title"`
	Description         string            `json:"description"`
	RobotsTxt           string            `json:"robotsTxt"`
	Sitemaps            []string          `json:"sitemaps,omitempty"`
	StatusCode          int               `json:"statusCode"`
	ServerHeader        string            `json:"serverHeader,omitempty"`
	Links               []string          `json:"links,omitempty"`
	ScriptURLs          []string          `json:"scriptUrls,omitempty"`
	InlineScripts       []string          `json:"-"`
	ProbedAt            time.Time         `json:"probedAt"`
	Errors              []string          `json:"errors"`
}

// Host returns the host part of the base URL
func (p *SiteProfile) Host() string {
	return hostOf(p.BaseURL)
}

// ApiEndpoint is one discovered network endpoint
type ApiEndpoint struct {
	URL            string          `json:"url"`
	Kind           ApiType         `json:"kind"`
	Method         string          `json:"method"`
	Purpose        EndpointPurpose `json:"purpose"`
	SampleRequest  string          `json:"sampleRequest,omitempty"`
	SampleResponse string          `json:"sampleResponse,omitempty"`
	Confidence     int             `json:"confidence"`
	Signals        []string        `json:"signals,omitempty"`
}

// ContentPattern describes how one kind of content is fetched and mapped
type ContentPattern struct {
	Method          ApiType        `json:"method"`
	Endpoint        string         `json:"endpoint"`
	RequestTemplate string         `json:"requestTemplate"`
	ResultsPath     string         `json:"resultsPath,omitempty"`
	Mappings        []FieldMapping `json:"mappings"`
}

// IdentifierPattern describes how content ids appear in site URLs
type IdentifierPattern struct {
	PathPattern string `json:"pathPattern"`
	Example     string `json:"example"`
}

// ContentSchema aggregates the content patterns inferred for a site
type ContentSchema struct {
	Search     *ContentPattern    `json:"search"`
	Episodes   *ContentPattern    `json:"episodes,omitempty"`
	Chapters   *ContentPattern    `json:"chapters,omitempty"`
	Media      *ContentPattern    `json:"media,omitempty"`
	Identifier *IdentifierPattern `json:"identifier,omitempty"`
	Endpoints  []ApiEndpoint      `json:"endpoints"`
}

// HasEndpointKind reports whether any discovered endpoint is of kind k
func (s *ContentSchema) HasEndpointKind(k ApiType) bool {
	if s == nil {
		return false
	}
	for _, e := range s.Endpoints {
		if e.Kind == k {
			return true
		}
	}
	return false
}

// FirstEndpoint returns the highest confidence endpoint of kind k, or nil
func (s *ContentSchema) FirstEndpoint(k ApiType) *ApiEndpoint {
	if s == nil {
		return nil
	}
	var best *ApiEndpoint
	for i := range s.Endpoints {
		e := &s.Endpoints[i]
		if e.Kind != k {
			continue
		}
		if best == nil || e.Confidence > best.Confidence {
			best = e
		}
	}
	return best
}

// ValidationCheck is the outcome of one validation step
type ValidationCheck struct {
	Name    string `json:"name"`
	Passed  bool   `json:"passed"`
	Skipped bool   `json:"skipped,omitempty"`
	Error   string `json:"error,omitempty"`
	Sample  string `json:"sample,omitempty"`
}

// ValidationResult is produced by one validation run
type ValidationResult struct {
	IsValid        bool                   `json:"isValid"`
	Checks         []ValidationCheck      `json:"checks"`
	Warnings       []string               `json:"warnings,omitempty"`
	SuggestedFixes *DynamicProviderConfig `json:"suggestedFixes,omitempty"`
}

// Failed returns the checks that did not pass, skipped ones included
func (r *ValidationResult) Failed() []ValidationCheck {
	var out []ValidationCheck
	for _, c := range r.Checks {
		if !c.Passed {
			out = append(out, c)
		}
	}
	return out
}
