package extract

import "github.com/varoOP/shinkrosrc/internal/domain"

// Record is one extracted result. Fields left empty were not resolved.
// Targets outside the known vocabulary are kept in Extra.
type Record struct {
	ID         string
	Title      string
	Synopsis   string
	CoverImage string
	DetailPage string
	Number     string
	URL        string
	Quality    string
	Provider   string
	Page       string
	Extra      map[string]string
}

// Set stores v under the given target field
func (r *Record) Set(field domain.TargetField, v string) {
	switch field {
	case domain.FieldID:
		r.ID = v
	case domain.FieldTitle:
		r.Title = v
	case domain.FieldSynopsis:
		r.Synopsis = v
	case domain.FieldCoverImage:
		r.CoverImage = v
	case domain.FieldDetailPage:
		r.DetailPage = v
	case domain.FieldNumber:
		r.Number = v
	case domain.FieldURL:
		r.URL = v
	case domain.FieldQuality:
		r.Quality = v
	case domain.FieldProvider:
		r.Provider = v
	case domain.FieldPage:
		r.Page = v
	default:
		if r.Extra == nil {
			r.Extra = make(map[string]string)
		}
		r.Extra[string(field)] = v
	}
}

// Get returns the value stored under the given target field
func (r *Record) Get(field domain.TargetField) string {
	switch field {
	case domain.FieldID:
		return r.ID
	case domain.FieldTitle:
		return r.Title
	case domain.FieldSynopsis:
		return r.Synopsis
	case domain.FieldCoverImage:
		return r.CoverImage
	case domain.FieldDetailPage:
		return r.DetailPage
	case domain.FieldNumber:
		return r.Number
	case domain.FieldURL:
		return r.URL
	case domain.FieldQuality:
		return r.Quality
	case domain.FieldProvider:
		return r.Provider
	case domain.FieldPage:
		return r.Page
	}
	return r.Extra[string(field)]
}
