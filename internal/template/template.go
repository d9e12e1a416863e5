// Package template holds the provider templates that turn an analyzed site
// into a complete DynamicProviderConfig.
package template

import (
	"sort"

	"github.com/varoOP/shinkrosrc/internal/domain"
)

const GenericID = "generic"

type Template interface {
	ID() string
	DisplayName() string
	SupportedContentTypes() []domain.ContentType
	// Score returns 0 when a hard precondition fails
	Score(profile *domain.SiteProfile, schema *domain.ContentSchema) int
	Apply(profile *domain.SiteProfile, schema *domain.ContentSchema, name string) *domain.DynamicProviderConfig
}

// Scored pairs a template with its score for one analysis
type Scored struct {
	Template Template
	Score    int
}

// Library is an ordered template registry. Registration order breaks score ties.
type Library struct {
	templates []Template
}

func NewLibrary(templates ...Template) *Library {
	return &Library{templates: templates}
}

// Default returns the shipped templates in tie-break order
func Default() *Library {
	return NewLibrary(
		NewGraphQLAnime(),
		NewGraphQLManga(),
		NewRESTAnime(),
		NewRESTManga(),
		NewGeneric(),
	)
}

func (l *Library) All() []Template {
	return append([]Template(nil), l.templates...)
}

func (l *Library) ByID(id string) (Template, bool) {
	for _, t := range l.templates {
		if t.ID() == id {
			return t, true
		}
	}
	return nil, false
}

// Candidates returns every template with a positive score, best first
func (l *Library) Candidates(profile *domain.SiteProfile, schema *domain.ContentSchema) []Scored {
	var out []Scored
	for _, t := range l.templates {
		if s := t.Score(profile, schema); s > 0 {
			out = append(out, Scored{Template: t, Score: s})
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Score > out[j].Score
	})
	return out
}

// Best returns the highest scoring template. It falls back to the generic
// template when nothing scores, and returns nil only for a library without one.
func (l *Library) Best(profile *domain.SiteProfile, schema *domain.ContentSchema) (Template, int) {
	if c := l.Candidates(profile, schema); len(c) > 0 {
		return c[0].Template, c[0].Score
	}
	if t, ok := l.ByID(GenericID); ok {
		return t, 0
	}
	return nil, 0
}
