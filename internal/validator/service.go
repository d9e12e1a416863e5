// Package validator checks a provider config against its live site.
package validator

import (
	"context"
	"encoding/json"
	"time"
	"unicode/utf8"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/varoOP/shinkrosrc/internal/domain"
	"github.com/varoOP/shinkrosrc/internal/dynamic"
)

const (
	CheckSearch   = "Search"
	CheckEpisodes = "Episodes"
	CheckStreams  = "Streams"
	CheckChapters = "Chapters"
	CheckPages    = "Pages"
	CheckDetails  = "Details"

	maxSample = 200
)

var probeQueries = map[domain.ContentType]string{
	domain.ContentAnime: "naruto",
	domain.ContentManga: "one piece",
	domain.ContentBoth:  "naruto",
}

// alternative results paths tried when search comes back empty
var alternativePaths = []string{"$.data", "$.results", "$.data.results", "$.items", "$.data.items", "$"}

type Service interface {
	// Validate only returns an error when ctx is done
	Validate(ctx context.Context, cfg *domain.DynamicProviderConfig) (*domain.ValidationResult, error)
}

type service struct {
	log    zerolog.Logger
	client *retryablehttp.Client
	now    func() time.Time
}

func NewService(log zerolog.Logger, client *retryablehttp.Client) Service {
	return &service{
		log:    log.With().Str("module", "validator").Logger(),
		client: client,
		now:    time.Now,
	}
}

type run struct {
	result *domain.ValidationResult
}

func (r *run) pass(name string, sample any) {
	r.result.Checks = append(r.result.Checks, domain.ValidationCheck{Name: name, Passed: true, Sample: sampleOf(sample)})
}

func (r *run) fail(name, msg string) {
	r.result.Checks = append(r.result.Checks, domain.ValidationCheck{Name: name, Error: msg})
}

func (r *run) skip(name, msg string) {
	r.result.Checks = append(r.result.Checks, domain.ValidationCheck{Name: name, Skipped: true, Error: msg})
}

func (s *service) Validate(ctx context.Context, cfg *domain.DynamicProviderConfig) (*domain.ValidationResult, error) {
	r := &run{result: &domain.ValidationResult{}}
	l := s.log.With().Str("provider", cfg.Slug).Logger()

	primary := domain.ContentAnime
	if cfg.Type == domain.ContentManga {
		primary = domain.ContentManga
	}
	catalog, err := dynamic.New(s.log, cfg, primary, s.client, nil)
	if err != nil {
		r.fail(CheckSearch, err.Error())
		return r.result, nil
	}

	items, err := catalog.Search(ctx, probeQueries[cfg.Type])
	if err != nil {
		return r.result, errors.Wrap(err, "validation cancelled")
	}

	var first *domain.Item
	if len(items) == 0 {
		r.fail(CheckSearch, "search returned no results for the probe query")
		fix, err := s.suggestFix(ctx, cfg, primary)
		if err != nil {
			return r.result, err
		}
		r.result.SuggestedFixes = fix
	} else {
		first = &items[0]
		r.pass(CheckSearch, items[0])
	}

	if cfg.Type.Serves(domain.ContentAnime) {
		if err := s.checkChildren(ctx, r, cfg, domain.ContentAnime, first); err != nil {
			return r.result, err
		}
	}
	if cfg.Type.Serves(domain.ContentManga) {
		if err := s.checkChildren(ctx, r, cfg, domain.ContentManga, first); err != nil {
			return r.result, err
		}
	}

	if cfg.Content.Details != nil {
		switch {
		case first == nil:
			r.skip(CheckDetails, "no search result to fetch details for")
		default:
			d, err := catalog.Details(ctx, domain.Item{ID: first.ID})
			if err != nil {
				return r.result, errors.Wrap(err, "validation cancelled")
			}
			if d.Title == "" {
				r.fail(CheckDetails, "details response had no title")
			} else {
				r.pass(CheckDetails, d)
			}
		}
	}

	r.result.IsValid = isValid(r.result.Checks)
	if r.result.IsValid {
		ts := s.now().UTC()
		cfg.LastValidatedAt = &ts
	}

	l.Info().Bool("valid", r.result.IsValid).Int("checks", len(r.result.Checks)).Int("failed", len(r.result.Failed())).Msg("Validation complete")
	return r.result, nil
}

// checkChildren runs the children and media checks for one content type
func (s *service) checkChildren(ctx context.Context, r *run, cfg *domain.DynamicProviderConfig, t domain.ContentType, parent *domain.Item) error {
	childCheck, mediaCheck := CheckEpisodes, CheckStreams
	sub, media := cfg.Content.Episodes, cfg.Media.Streams
	if t == domain.ContentManga {
		childCheck, mediaCheck = CheckChapters, CheckPages
		sub, media = cfg.Content.Chapters, cfg.Media.Pages
	}

	if sub == nil {
		r.skip(childCheck, "not configured")
		r.result.Warnings = append(r.result.Warnings, childCheck+" endpoint is not configured")
		r.skip(mediaCheck, "no children to resolve")
		return nil
	}
	if parent == nil {
		r.skip(childCheck, "no search result to list children for")
		r.skip(mediaCheck, "no children to resolve")
		return nil
	}

	catalog, err := dynamic.New(s.log, cfg, t, s.client, nil)
	if err != nil {
		r.fail(childCheck, err.Error())
		r.skip(mediaCheck, "no children to resolve")
		return nil
	}

	children, err := catalog.ListChildren(ctx, *parent)
	if err != nil {
		return errors.Wrap(err, "validation cancelled")
	}
	if len(children) == 0 {
		r.fail(childCheck, "no children returned for the first search result")
		r.skip(mediaCheck, "no children to resolve")
		return nil
	}
	r.pass(childCheck, children[0])

	if media == nil {
		r.skip(mediaCheck, "not configured")
		r.result.Warnings = append(r.result.Warnings, mediaCheck+" endpoint is not configured")
		return nil
	}
	links, err := catalog.ResolveMedia(ctx, children[0])
	if err != nil {
		return errors.Wrap(err, "validation cancelled")
	}
	if len(links) == 0 {
		r.fail(mediaCheck, "no media links resolved for the first child")
		return nil
	}
	r.pass(mediaCheck, links[0])
	return nil
}

// suggestFix retries search with alternative results paths and returns a
// patched copy of cfg for the first one that yields results
func (s *service) suggestFix(ctx context.Context, cfg *domain.DynamicProviderConfig, t domain.ContentType) (*domain.DynamicProviderConfig, error) {
	for _, path := range alternativePaths {
		if path == cfg.Search.ResultsPath {
			continue
		}
		candidate := cfg.Clone()
		candidate.Search.ResultsPath = path

		catalog, err := dynamic.New(s.log, candidate, t, s.client, nil)
		if err != nil {
			return nil, nil
		}
		items, err := catalog.Search(ctx, probeQueries[cfg.Type])
		if err != nil {
			return nil, errors.Wrap(err, "validation cancelled")
		}
		if len(items) > 0 {
			s.log.Info().Str("provider", cfg.Slug).Str("results_path", path).Msg("found alternative search results path")
			return candidate, nil
		}
	}
	return nil, nil
}

// isValid requires a passing search and no failed check
func isValid(checks []domain.ValidationCheck) bool {
	search := false
	for _, c := range checks {
		if c.Name == CheckSearch && c.Passed {
			search = true
		}
		if !c.Passed && !c.Skipped {
			return false
		}
	}
	return search
}

func sampleOf(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	if len(b) > maxSample {
		n := maxSample
		for n > 0 && !utf8.RuneStart(b[n]) {
			n--
		}
		b = b[:n]
	}
	return string(b)
}
