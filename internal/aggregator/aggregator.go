// Package aggregator merges the built-in catalog with the active dynamic
// provider behind one domain.Catalog and routes follow-up calls by id prefix.
package aggregator

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/varoOP/shinkrosrc/internal/domain"
	"github.com/varoOP/shinkrosrc/internal/dynamic"
	"github.com/varoOP/shinkrosrc/internal/extract"
	"golang.org/x/sync/errgroup"
)

// Separator joins a provider slug and a provider-local id
const Separator = ":"

type cacheEntry struct {
	version     int
	generatedAt time.Time
	catalog     *dynamic.Catalog
}

// Aggregator serves one content type
type Aggregator struct {
	log      zerolog.Logger
	ctype    domain.ContentType
	builtin  domain.Catalog
	repo     domain.ProviderRepository
	client   *retryablehttp.Client
	decoders extract.Decoders

	mu    sync.Mutex
	cache map[string]cacheEntry
}

var _ domain.Catalog = (*Aggregator)(nil)

// New creates an aggregator. builtin may be nil when no built-in catalog is configured.
func New(log zerolog.Logger, t domain.ContentType, builtin domain.Catalog, repo domain.ProviderRepository, client *retryablehttp.Client, decoders extract.Decoders) *Aggregator {
	return &Aggregator{
		log:      log.With().Str("module", "aggregator").Str("type", string(t)).Logger(),
		ctype:    t,
		builtin:  builtin,
		repo:     repo,
		client:   client,
		decoders: decoders,
		cache:    map[string]cacheEntry{},
	}
}

func (a *Aggregator) Type() domain.ContentType { return a.ctype }

func (a *Aggregator) Search(ctx context.Context, query string) ([]domain.Item, error) {
	return a.fanOut(ctx, "search", func(ctx context.Context, c domain.Catalog) ([]domain.Item, error) {
		return c.Search(ctx, query)
	})
}

func (a *Aggregator) BrowsePopular(ctx context.Context) ([]domain.Item, error) {
	return a.fanOut(ctx, "popular", func(ctx context.Context, c domain.Catalog) ([]domain.Item, error) {
		return c.BrowsePopular(ctx)
	})
}

// fanOut queries the built-in and the active dynamic catalog in parallel.
// Built-in results come first. A failing branch contributes nothing.
func (a *Aggregator) fanOut(ctx context.Context, op string, call func(context.Context, domain.Catalog) ([]domain.Item, error)) ([]domain.Item, error) {
	var (
		g              errgroup.Group
		builtinResults []domain.Item
		dynamicResults []domain.Item
	)

	if a.builtin != nil {
		g.Go(func() error {
			defer a.recoverBranch(op, "built-in")
			items, err := call(ctx, a.builtin)
			if err != nil {
				a.log.Warn().Err(err).Str("op", op).Msg("built-in catalog failed")
				return nil
			}
			builtinResults = items
			return nil
		})
	}

	g.Go(func() error {
		defer a.recoverBranch(op, "dynamic")
		c, err := a.active(ctx)
		if err != nil {
			a.log.Warn().Err(err).Str("op", op).Msg("failed to load active provider")
			return nil
		}
		if c == nil {
			return nil
		}
		items, err := call(ctx, c)
		if err != nil {
			a.log.Warn().Err(err).Str("op", op).Str("provider", c.Slug()).Msg("dynamic catalog failed")
			return nil
		}
		dynamicResults = prefixItems(c.Slug(), items)
		return nil
	})

	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrapf(err, "%s cancelled", op)
	}

	out := make([]domain.Item, 0, len(builtinResults)+len(dynamicResults))
	out = append(out, builtinResults...)
	out = append(out, dynamicResults...)
	return out, nil
}

// recoverBranch turns a panicking catalog into an empty branch
func (a *Aggregator) recoverBranch(op, branch string) {
	if r := recover(); r != nil {
		a.log.Error().Str("op", op).Str("branch", branch).Interface("panic", r).Msg("catalog panicked")
	}
}

// ListChildren routes by the item id prefix
func (a *Aggregator) ListChildren(ctx context.Context, item domain.Item) ([]domain.Child, error) {
	c, slug, local := a.route(ctx, item.ID)
	if c == nil {
		return []domain.Child{}, nil
	}
	if slug == "" {
		return c.ListChildren(ctx, item)
	}

	item.ID = local
	children, err := c.ListChildren(ctx, item)
	if err != nil {
		return nil, err
	}
	for i := range children {
		children[i].ID = JoinID(slug, children[i].ID)
		children[i].ParentID = JoinID(slug, children[i].ParentID)
		children[i].Provider = slug
	}
	return children, nil
}

// ResolveMedia routes by the child id prefix
func (a *Aggregator) ResolveMedia(ctx context.Context, child domain.Child) ([]domain.MediaLink, error) {
	c, slug, local := a.route(ctx, child.ID)
	if c == nil {
		return []domain.MediaLink{}, nil
	}
	if slug == "" {
		return c.ResolveMedia(ctx, child)
	}

	child.ID = local
	if s, l, ok := SplitID(child.ParentID); ok && s == slug {
		child.ParentID = l
	}
	links, err := c.ResolveMedia(ctx, child)
	if err != nil {
		return nil, err
	}
	for i := range links {
		links[i].Provider = slug
	}
	return links, nil
}

// route picks the catalog owning id. Numeric and unknown prefixes go to the
// built-in catalog with the id untouched, and slug is then empty.
func (a *Aggregator) route(ctx context.Context, id string) (c domain.Catalog, slug, local string) {
	s, l, ok := SplitID(id)
	if ok {
		dc, err := a.catalogFor(ctx, s)
		if err == nil {
			return dc, s, l
		}
		a.log.Debug().Err(err).Str("id", id).Msg("no dynamic provider for prefix, routing to built-in")
	}
	if a.builtin == nil {
		return nil, "", id
	}
	return a.builtin, "", id
}

func (a *Aggregator) active(ctx context.Context) (*dynamic.Catalog, error) {
	ptr, err := a.repo.Active(ctx)
	if err != nil {
		return nil, err
	}
	slug := ptr.For(a.ctype)
	if slug == "" {
		return nil, nil
	}
	return a.catalogFor(ctx, slug)
}

// catalogFor returns the cached runtime for slug, rebuilding it when the stored
// config changed since it was built
func (a *Aggregator) catalogFor(ctx context.Context, slug string) (*dynamic.Catalog, error) {
	cfg, err := a.repo.Get(ctx, slug)
	if err != nil {
		return nil, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if e, ok := a.cache[cfg.Slug]; ok && e.version == cfg.Version && e.generatedAt.Equal(cfg.GeneratedAt) {
		return e.catalog, nil
	}

	c, err := dynamic.New(a.log, cfg, a.ctype, a.client, a.decoders)
	if err != nil {
		return nil, err
	}
	a.cache[cfg.Slug] = cacheEntry{version: cfg.Version, generatedAt: cfg.GeneratedAt, catalog: c}
	a.log.Debug().Str("provider", cfg.Slug).Int("version", cfg.Version).Msg("built dynamic catalog")
	return c, nil
}

// JoinID prefixes a provider-local id with its slug
func JoinID(slug, id string) string {
	if id == "" {
		return ""
	}
	return slug + Separator + id
}

// SplitID splits at the first separator. The prefix must look like a slug and
// must not be purely numeric, which keeps built-in ids such as "42:ep-1" local.
func SplitID(id string) (slug, local string, ok bool) {
	i := strings.Index(id, Separator)
	if i <= 0 {
		return "", "", false
	}
	prefix := id[:i]
	if isNumeric(prefix) || domain.NormalizeSlug(prefix) != prefix {
		return "", "", false
	}
	return prefix, id[i+len(Separator):], true
}

func prefixItems(slug string, items []domain.Item) []domain.Item {
	out := make([]domain.Item, len(items))
	for i, it := range items {
		it.ID = JoinID(slug, it.ID)
		it.Provider = slug
		if len(it.Children) > 0 {
			children := make([]domain.Child, len(it.Children))
			for j, ch := range it.Children {
				ch.ID = JoinID(slug, ch.ID)
				ch.ParentID = JoinID(slug, ch.ParentID)
				ch.Provider = slug
				children[j] = ch
			}
			it.Children = children
		}
		out[i] = it
	}
	return out
}

func isNumeric(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}
