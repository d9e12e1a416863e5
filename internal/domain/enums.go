package domain

import (
	"encoding/json"
	"strings"

	"github.com/pkg/errors"
)

// ContentType is the medium a provider serves
type ContentType string

const (
	ContentAnime ContentType = "anime"
	ContentManga ContentType = "manga"
	ContentBoth  ContentType = "both"
)

// ParseContentType parses a user supplied content type token
func ParseContentType(s string) (ContentType, error) {
	switch ContentType(strings.ToLower(strings.TrimSpace(s))) {
	case ContentAnime:
		return ContentAnime, nil
	case ContentManga:
		return ContentManga, nil
	case ContentBoth:
		return ContentBoth, nil
	}
	return "", errors.Errorf("invalid content type: %q (must be 'anime', 'manga' or 'both')", s)
}

// Serves reports whether a provider of type t can answer queries for want.
func (t ContentType) Serves(want ContentType) bool {
	return t == want || t == ContentBoth
}

// SiteArchitecture describes how a site renders its pages
type SiteArchitecture string

const (
	ArchitectureUnknown SiteArchitecture = "unknown"
	ArchitectureStatic  SiteArchitecture = "static"
	ArchitectureSPA     SiteArchitecture = "spa"
	ArchitectureHybrid  SiteArchitecture = "hybrid"
)

// ContentCategory is the detected content category of a probed site
type ContentCategory string

const (
	CategoryUnknown ContentCategory = "unknown"
	CategoryAnime   ContentCategory = "anime"
	CategoryManga   ContentCategory = "manga"
	CategoryBoth    ContentCategory = "both"
)

// ContentType maps a category to the provider type that should serve it.
// Unknown categories map to ContentBoth.
func (c ContentCategory) ContentType() ContentType {
	switch c {
	case CategoryAnime:
		return ContentAnime
	case CategoryManga:
		return ContentManga
	}
	return ContentBoth
}

// ApiType is both the kind of a discovered endpoint and the fetch method of a request config
type ApiType string

const (
	ApiGraphQL    ApiType = "graphql"
	ApiREST       ApiType = "rest"
	ApiCustom     ApiType = "custom"
	ApiHTMLScrape ApiType = "htmlScrape"
)

// EndpointPurpose is what an endpoint appears to be used for
type EndpointPurpose string

const (
	PurposeUnknown  EndpointPurpose = "unknown"
	PurposeSearch   EndpointPurpose = "search"
	PurposeDetails  EndpointPurpose = "details"
	PurposeEpisodes EndpointPurpose = "episodes"
	PurposeStreams  EndpointPurpose = "streams"
	PurposeChapters EndpointPurpose = "chapters"
	PurposePages    EndpointPurpose = "pages"
)

// TransformType selects the value transform applied to an extracted field
type TransformType string

const (
	TransformNone         TransformType = "none"
	TransformDecodeBase64 TransformType = "decodeBase64"
	TransformDecodeHex    TransformType = "decodeHex"
	TransformURLDecode    TransformType = "urlDecode"
	TransformPrependHost  TransformType = "prependHost"
	TransformRegexExtract TransformType = "regexExtract"
	TransformCustom       TransformType = "custom"
)

// MarshalJSON writes the zero value as none so it reads back unchanged
func (t TransformType) MarshalJSON() ([]byte, error) {
	if t == "" {
		t = TransformNone
	}
	return json.Marshal(string(t))
}

// UnmarshalJSON accepts the canonical token case-insensitively; an empty token means none.
func (t *TransformType) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return errors.Wrap(err, "transform must be a string token")
	}

	switch strings.ToLower(s) {
	case "", "none":
		*t = TransformNone
	case "decodebase64":
		*t = TransformDecodeBase64
	case "decodehex":
		*t = TransformDecodeHex
	case "urldecode":
		*t = TransformURLDecode
	case "prependhost":
		*t = TransformPrependHost
	case "regexextract":
		*t = TransformRegexExtract
	case "custom":
		*t = TransformCustom
	default:
		return errors.Errorf("unknown transform %q", s)
	}
	return nil
}

// TargetField names the record field a mapping writes to
type TargetField string

const (
	FieldID         TargetField = "Id"
	FieldTitle      TargetField = "Title"
	FieldSynopsis   TargetField = "Synopsis"
	FieldCoverImage TargetField = "CoverImage"
	FieldDetailPage TargetField = "DetailPage"
	FieldNumber     TargetField = "Number"
	FieldURL        TargetField = "Url"
	FieldQuality    TargetField = "Quality"
	FieldProvider   TargetField = "Provider"
	FieldPage       TargetField = "Page"
)

// TransformRuleKind is the decoding scheme of a named per-site transform rule
type TransformRuleKind string

const (
	RuleDashHex   TransformRuleKind = "dashHex"
	RuleBase64    TransformRuleKind = "base64"
	RuleHex       TransformRuleKind = "hex"
	RuleURLDecode TransformRuleKind = "urlDecode"
	RuleRegex     TransformRuleKind = "regex"
)
