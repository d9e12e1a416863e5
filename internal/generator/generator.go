// Package generator turns an analyzed site into a provider config using the
// best scoring template.
package generator

import (
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/varoOP/shinkrosrc/internal/domain"
	"github.com/varoOP/shinkrosrc/internal/template"
	"golang.org/x/net/publicsuffix"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const titleSeparators = "-|–:•"

// Result is a generated config plus the template that produced it
type Result struct {
	Config     *domain.DynamicProviderConfig
	TemplateID string
	Score      int
}

type Generator struct {
	log     zerolog.Logger
	library *template.Library
	now     func() time.Time
}

func New(log zerolog.Logger, library *template.Library) *Generator {
	if library == nil {
		library = template.Default()
	}
	return &Generator{
		log:     log.With().Str("module", "generator").Logger(),
		library: library,
		now:     time.Now,
	}
}

// WithClock replaces the clock used for GeneratedAt
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// Generate never fails for lack of a template
func (g *Generator) Generate(profile *domain.SiteProfile, schema *domain.ContentSchema, name string) *domain.DynamicProviderConfig {
	return g.GenerateResult(profile, schema, name).Config
}

func (g *Generator) GenerateResult(profile *domain.SiteProfile, schema *domain.ContentSchema, name string) Result {
	if schema == nil {
		schema = &domain.ContentSchema{}
	}

	tpl, score := g.library.Best(profile, schema)
	if tpl == nil {
		tpl = template.NewGeneric()
		score = tpl.Score(profile, schema)
	}

	name = ResolveName(profile, name)
	cfg := tpl.Apply(profile, schema, name)
	cfg.GeneratedAt = g.now().UTC()
	cfg.Notes = notes(profile, schema, tpl.ID(), score)

	g.log.Info().
		Str("template", tpl.ID()).
		Int("score", score).
		Str("slug", cfg.Slug).
		Str("type", string(cfg.Type)).
		Msg("Generated provider config")

	return Result{Config: cfg, TemplateID: tpl.ID(), Score: score}
}

// ResolveName prefers an explicit name, then the page title up to the first
// separator, then the hostname without www. and its public suffix.
func ResolveName(profile *domain.SiteProfile, name string) string {
	if n := strings.TrimSpace(name); n != "" {
		return n
	}

	title := strings.TrimSpace(profile.Title)
	if i := strings.IndexAny(title, titleSeparators); i >= 0 {
		title = strings.TrimSpace(title[:i])
	}
	if title != "" {
		return title
	}

	return nameFromHost(profile.Host())
}

func nameFromHost(host string) string {
	host = strings.TrimPrefix(strings.ToLower(host), "www.")
	if host == "" {
		return "Provider"
	}
	if suffix, _ := publicsuffix.PublicSuffix(host); suffix != "" && suffix != host {
		host = strings.TrimSuffix(host, "."+suffix)
	}
	return cases.Title(language.English).String(host)
}

func notes(profile *domain.SiteProfile, schema *domain.ContentSchema, templateID string, score int) string {
	framework := profile.JSFramework
	if framework == "" {
		framework = "none detected"
	}

	lines := []string{
		fmt.Sprintf("Generated from template %s (score %d)", templateID, score),
		fmt.Sprintf("Site type: %s, content: %s, framework: %s", profile.Architecture, profile.Category, framework),
	}
	if profile.CloudflareProtected {
		lines = append(lines, "WARNING: Cloudflare protection detected, requests may be challenged")
	}
	if len(schema.Endpoints) == 0 {
		lines = append(lines, "WARNING: no API endpoints were discovered, config relies on template defaults")
	}
	return strings.Join(lines, "\n")
}
