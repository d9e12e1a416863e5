// Package dynamic executes a DynamicProviderConfig as a domain.Catalog.
package dynamic

import (
	"context"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/varoOP/shinkrosrc/internal/domain"
	"github.com/varoOP/shinkrosrc/internal/extract"
	"golang.org/x/time/rate"
)

const defaultPageSize = 20

// Catalog answers catalog queries for one content type of a provider config.
// Request and parse failures surface as empty results; only context
// cancellation is returned as an error.
type Catalog struct {
	log       zerolog.Logger
	cfg       *domain.DynamicProviderConfig
	ctype     domain.ContentType
	client    *retryablehttp.Client
	extractor *extract.Extractor
	limiter   *rate.Limiter
	headers   map[string]string
}

var _ domain.Catalog = (*Catalog)(nil)

// New builds a runtime for content type t. Named transform rules of the config
// are compiled on top of the built-in decoders, and extra wins over both.
func New(log zerolog.Logger, cfg *domain.DynamicProviderConfig, t domain.ContentType, client *retryablehttp.Client, extra extract.Decoders) (*Catalog, error) {
	if cfg == nil {
		return nil, errors.New("nil provider config")
	}
	if !cfg.Type.Serves(t) {
		return nil, errors.Wrapf(domain.ErrIncompatibleType, "provider %s serves %s, not %s", cfg.Slug, cfg.Type, t)
	}

	l := log.With().Str("module", "dynamic").Str("provider", cfg.Slug).Str("type", string(t)).Logger()

	compiled, errs := extract.CompileRules(cfg.Transforms)
	for _, err := range errs {
		l.Warn().Err(err).Msg("skipping transform rule")
	}
	decoders := extract.BuiltinDecoders().With(compiled).With(extra)

	c := &Catalog{
		log:       l,
		cfg:       cfg.Clone(),
		ctype:     t,
		client:    client,
		extractor: extract.New(l, decoders),
		headers:   requestHeaders(cfg),
	}
	if rl := cfg.RateLimit; rl != nil && rl.RequestsPerMinute > 0 {
		burst := rl.Burst
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(float64(rl.RequestsPerMinute)/60), burst)
	}
	return c, nil
}

func (c *Catalog) Type() domain.ContentType { return c.ctype }

func (c *Catalog) Slug() string { return c.cfg.Slug }

func (c *Catalog) Version() int { return c.cfg.Version }

func (c *Catalog) pageSize() int {
	if c.cfg.Search.PageSize > 0 {
		return c.cfg.Search.PageSize
	}
	return defaultPageSize
}

func (c *Catalog) Search(ctx context.Context, query string) ([]domain.Item, error) {
	vars := c.searchVars(query)
	return c.search(ctx, c.cfg.Search.QueryTemplate, vars)
}

// BrowsePopular runs the popular template, or an empty search when there is none
func (c *Catalog) BrowsePopular(ctx context.Context) ([]domain.Item, error) {
	tmpl := c.cfg.Search.PopularTemplate
	if tmpl == "" {
		tmpl = c.cfg.Search.QueryTemplate
	}
	return c.search(ctx, tmpl, c.searchVars(""))
}

func (c *Catalog) searchVars(query string) map[string]string {
	return map[string]string{
		"query":  query,
		"search": query,
		"limit":  strconv.Itoa(c.pageSize()),
		"page":   "1",
		"offset": "0",
	}
}

func (c *Catalog) search(ctx context.Context, tmpl string, vars map[string]string) ([]domain.Item, error) {
	s := c.cfg.Search
	req := request{
		method:    s.Method,
		endpoint:  s.Endpoint,
		template:  tmpl,
		variables: s.VariablesTemplate,
	}

	body, err := c.fetch(ctx, req, vars)
	if err != nil {
		return nil, err
	}
	if body == nil {
		return []domain.Item{}, nil
	}

	records := c.extractor.ExtractAll(body, s.ResultMapping, s.ResultsPath)
	items := make([]domain.Item, 0, len(records))
	for _, r := range records {
		if r.ID == "" && r.Title == "" {
			continue
		}
		items = append(items, c.toItem(r))
	}

	c.log.Debug().Str("query", vars["query"]).Int("results", len(items)).Msg("search complete")
	return items, nil
}

func (c *Catalog) toItem(r extract.Record) domain.Item {
	return domain.Item{
		ID:         r.ID,
		Title:      r.Title,
		Synopsis:   r.Synopsis,
		CoverImage: c.absolute(r.CoverImage, c.cfg.Hosts.BaseHost),
		DetailPage: c.absolute(r.DetailPage, c.cfg.Hosts.BaseHost),
		Provider:   c.cfg.Slug,
		Children:   []domain.Child{},
	}
}

func (c *Catalog) childConfig() *domain.EndpointConfig {
	if c.ctype == domain.ContentManga {
		return c.cfg.Content.Chapters
	}
	return c.cfg.Content.Episodes
}

func (c *Catalog) mediaConfig() *domain.EndpointConfig {
	if c.ctype == domain.ContentManga {
		return c.cfg.Media.Pages
	}
	return c.cfg.Media.Streams
}

func (c *Catalog) childLabel() string {
	if c.ctype == domain.ContentManga {
		return "Chapter"
	}
	return "Episode"
}

// ListChildren returns the episodes or chapters of item ordered by number.
// Missing numbers default to the 1-based position, missing ids and titles
// are synthesized from the number.
func (c *Catalog) ListChildren(ctx context.Context, item domain.Item) ([]domain.Child, error) {
	sub := c.childConfig()
	if sub == nil {
		return []domain.Child{}, nil
	}

	vars := map[string]string{
		"id":       item.ID,
		"showId":   item.ID,
		"mangaId":  item.ID,
		"parentId": item.ID,
	}
	body, err := c.fetch(ctx, endpointRequest(sub), vars)
	if err != nil {
		return nil, err
	}
	if body == nil {
		return []domain.Child{}, nil
	}

	marker := domain.ChildMarker(c.ctype)
	records := c.extractor.ExtractAll(body, sub.Mapping, sub.ResultsPath)
	children := make([]domain.Child, 0, len(records))
	for i, r := range records {
		number := float64(i + 1)
		if n, err := strconv.ParseFloat(strings.TrimSpace(r.Number), 64); err == nil {
			number = n
		}
		label := formatNumber(number)

		child := domain.Child{
			ID:       r.ID,
			ParentID: item.ID,
			Number:   number,
			Title:    r.Title,
			URL:      c.absolute(r.URL, c.cfg.Hosts.BaseHost),
			Provider: c.cfg.Slug,
		}
		if child.ID == "" {
			child.ID = item.ID + marker + label
		}
		if child.Title == "" {
			child.Title = c.childLabel() + " " + label
		}
		children = append(children, child)
	}

	sort.SliceStable(children, func(i, j int) bool {
		return children[i].Number < children[j].Number
	})
	return children, nil
}

// ResolveMedia returns the stream or page links of child. The parent id is
// recovered from the child id marker, falling back to child.ParentID.
// Links that do not form a valid absolute URL are dropped.
func (c *Catalog) ResolveMedia(ctx context.Context, child domain.Child) ([]domain.MediaLink, error) {
	sub := c.mediaConfig()
	if sub == nil {
		return []domain.MediaLink{}, nil
	}

	parent, ok := domain.ParentFromChildID(child.ID)
	if !ok {
		parent = child.ParentID
	}
	number := childNumber(child)

	vars := map[string]string{
		"id":        child.ID,
		"episodeId": child.ID,
		"chapterId": child.ID,
		"parentId":  parent,
		"showId":    parent,
		"mangaId":   parent,
		"number":    number,
		"episode":   number,
		"chapter":   number,
	}
	body, err := c.fetch(ctx, endpointRequest(sub), vars)
	if err != nil {
		return nil, err
	}
	if body == nil {
		return []domain.MediaLink{}, nil
	}

	base := sub.MediaBase
	if base == "" {
		base = c.cfg.Hosts.BaseHost
	}

	var headers map[string]string
	if c.cfg.Hosts.Referer != "" {
		headers = map[string]string{"Referer": c.cfg.Hosts.Referer}
	}

	records := c.extractor.ExtractAll(body, sub.Mapping, sub.ResultsPath)
	links := make([]domain.MediaLink, 0, len(records))
	for i, r := range records {
		raw := r.URL
		if sub.CustomDecoder != "" {
			raw = c.extractor.Decode(sub.CustomDecoder, raw)
		}
		abs := c.absolute(raw, base)
		if !validURL(abs) {
			c.log.Debug().Str("url", raw).Msg("dropping invalid media url")
			continue
		}

		link := domain.MediaLink{
			URL:      abs,
			Quality:  r.Quality,
			Provider: c.cfg.Slug,
			Headers:  headers,
		}
		if c.ctype == domain.ContentManga {
			link.Page = i + 1
			if p, err := strconv.Atoi(strings.TrimSpace(r.Page)); err == nil {
				link.Page = p
			}
		}
		links = append(links, link)
	}
	return links, nil
}

// Details fills the empty fields of item from the details endpoint
func (c *Catalog) Details(ctx context.Context, item domain.Item) (domain.Item, error) {
	sub := c.cfg.Content.Details
	if sub == nil {
		return item, nil
	}

	body, err := c.fetch(ctx, endpointRequest(sub), map[string]string{"id": item.ID, "showId": item.ID, "mangaId": item.ID})
	if err != nil {
		return item, err
	}
	if body == nil {
		return item, nil
	}

	records := c.extractor.ExtractAll(body, sub.Mapping, sub.ResultsPath)
	if len(records) == 0 {
		return item, nil
	}
	d := c.toItem(records[0])
	if item.Title == "" {
		item.Title = d.Title
	}
	if item.Synopsis == "" {
		item.Synopsis = d.Synopsis
	}
	if item.CoverImage == "" {
		item.CoverImage = d.CoverImage
	}
	if item.DetailPage == "" {
		item.DetailPage = d.DetailPage
	}
	return item, nil
}

// absolute resolves a relative value against base. Protocol relative values get https.
func (c *Catalog) absolute(raw, base string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" || extract.IsAbsoluteURL(raw) {
		return raw
	}
	if strings.HasPrefix(raw, "//") {
		return "https:" + raw
	}
	b, err := url.Parse(base)
	if err != nil || b.Host == "" {
		return raw
	}
	ref, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	if !strings.HasSuffix(b.Path, "/") {
		b.Path += "/"
	}
	ref.Path = strings.TrimPrefix(ref.Path, "/")
	return b.ResolveReference(ref).String()
}

func validURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func childNumber(child domain.Child) string {
	if child.Number > 0 {
		return formatNumber(child.Number)
	}
	lower := strings.ToLower(child.ID)
	for _, m := range []string{":ep-", ":ch-"} {
		if i := strings.LastIndex(lower, m); i >= 0 {
			return child.ID[i+len(m):]
		}
	}
	return ""
}

func formatNumber(n float64) string {
	return strconv.FormatFloat(n, 'f', -1, 64)
}
