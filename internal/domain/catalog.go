package domain

import (
	"context"
	"net/url"
	"strings"
)

// Item is one search or browse result
type Item struct {
	ID         string  `json:"id"`
	Title      string  `json:"title"`
	Synopsis   string  `json:"synopsis,omitempty"`
	CoverImage string  `json:"coverImage,omitempty"`
	DetailPage string  `json:"detailPage,omitempty"`
	Provider   string  `json:"provider,omitempty"`
	Children   []Child `json:"children"`
}

// Child is an episode or a chapter of an item
type Child struct {
	ID       string  `json:"id"`
	ParentID string  `json:"parentId"`
	Number   float64 `json:"number"`
	Title    string  `json:"title"`
	URL      string  `json:"url,omitempty"`
	Provider string  `json:"provider,omitempty"`
}

// MediaLink is a resolved stream or page URL
type MediaLink struct {
	URL      string            `json:"url"`
	Quality  string            `json:"quality,omitempty"`
	Page     int               `json:"page,omitempty"`
	Provider string            `json:"provider,omitempty"`
	Headers  map[string]string `json:"headers,omitempty"`
}

// Catalog is the capability every provider, dynamic or hardcoded, exposes.
// For anime catalogs children are episodes and media are streams; for manga
// they are chapters and pages.
type Catalog interface {
	Type() ContentType
	Search(ctx context.Context, query string) ([]Item, error)
	BrowsePopular(ctx context.Context) ([]Item, error)
	ListChildren(ctx context.Context, item Item) ([]Child, error)
	ResolveMedia(ctx context.Context, child Child) ([]MediaLink, error)
}

// ChildMarker returns the id marker used for synthesized child ids
func ChildMarker(t ContentType) string {
	if t == ContentManga {
		return ":ch-"
	}
	return ":ep-"
}

// ParentFromChildID recovers the parent id from a synthesized child id using the
// last case-insensitive occurrence of the ":ep-" or ":ch-" marker.
func ParentFromChildID(id string) (string, bool) {
	lower := strings.ToLower(id)
	i := strings.LastIndex(lower, ":ep-")
	if j := strings.LastIndex(lower, ":ch-"); j > i {
		i = j
	}
	if i <= 0 {
		return "", false
	}
	return id[:i], true
}

func hostOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return u.Hostname()
}
