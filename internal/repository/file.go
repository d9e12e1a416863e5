package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"github.com/varoOP/shinkrosrc/internal/domain"
)

// FileRepository implements domain.ProviderRepository over the providers
// directory layout. Custom configs override built-in ones with the same slug.
type FileRepository struct {
	log   zerolog.Logger
	paths *domain.Paths

	mu      sync.RWMutex
	loaded  bool
	active  domain.ActiveProviders
	writeMu sync.Mutex
}

// NewFileRepository creates a new file-based provider store
func NewFileRepository(log zerolog.Logger, paths *domain.Paths) *FileRepository {
	return &FileRepository{
		log:   log.With().Str("module", "repository").Logger(),
		paths: paths,
	}
}

var _ domain.ProviderRepository = (*FileRepository)(nil)

// List returns every readable config, sorted by slug. Corrupt files are skipped.
func (r *FileRepository) List(ctx context.Context) ([]domain.ProviderInfo, error) {
	configs := map[string]*domain.DynamicProviderConfig{}
	for _, c := range r.readDir(r.paths.BuiltInDir, true) {
		configs[c.Slug] = c
	}
	for _, c := range r.readDir(r.paths.CustomDir, false) {
		configs[c.Slug] = c
	}

	active, err := r.Active(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]domain.ProviderInfo, 0, len(configs))
	for slug, c := range configs {
		out = append(out, domain.ProviderInfo{
			Name:    c.Name,
			Slug:    slug,
			Type:    c.Type,
			BuiltIn: c.BuiltIn,
			Active:  active.AnimeProvider == slug || active.MangaProvider == slug,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Slug < out[j].Slug })
	return out, nil
}

// Get looks in the custom directory first. A corrupt file counts as not found.
func (r *FileRepository) Get(ctx context.Context, slug string) (*domain.DynamicProviderConfig, error) {
	slug = domain.NormalizeSlug(slug)
	if slug == "" {
		return nil, domain.ErrInvalidSlug
	}

	if c, err := r.readFile(r.paths.CustomPath(slug)); err == nil {
		r.keySlug(c, slug, r.paths.CustomPath(slug))
		return c, nil
	} else if !os.IsNotExist(err) {
		r.log.Warn().Err(err).Str("slug", slug).Msg("skipping unreadable custom provider")
	}

	c, err := r.readFile(r.paths.BuiltInPath(slug))
	if err != nil {
		if !os.IsNotExist(err) {
			r.log.Warn().Err(err).Str("slug", slug).Msg("skipping unreadable built-in provider")
		}
		return nil, fmt.Errorf("%s: %w", slug, domain.ErrProviderNotFound)
	}
	r.keySlug(c, slug, r.paths.BuiltInPath(slug))
	c.BuiltIn = true
	return c, nil
}

// Save writes cfg to the custom directory under its normalized slug
func (r *FileRepository) Save(ctx context.Context, cfg *domain.DynamicProviderConfig) error {
	if cfg.BuiltIn {
		return domain.ErrBuiltInReadOnly
	}
	slug := domain.NormalizeSlug(cfg.Slug)
	if slug == "" {
		slug = domain.NormalizeSlug(cfg.Name)
	}
	if slug == "" {
		return domain.ErrInvalidSlug
	}
	cfg.Slug = slug

	j, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal provider config: %w", err)
	}

	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	path := r.paths.CustomPath(slug)
	if err := writeFileAtomic(path, j); err != nil {
		return err
	}

	r.log.Debug().Str("path", path).Str("slug", slug).Msg("stored provider config")
	return nil
}

// Delete removes a custom config and clears any active pointer to it
func (r *FileRepository) Delete(ctx context.Context, slug string) error {
	slug = domain.NormalizeSlug(slug)
	if slug == "" {
		return domain.ErrInvalidSlug
	}

	r.writeMu.Lock()
	err := os.Remove(r.paths.CustomPath(slug))
	r.writeMu.Unlock()

	if err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("failed to delete provider %s: %w", slug, err)
		}
		if _, statErr := os.Stat(r.paths.BuiltInPath(slug)); statErr == nil {
			return domain.ErrBuiltInReadOnly
		}
		return fmt.Errorf("%s: %w", slug, domain.ErrProviderNotFound)
	}

	if err := r.load(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	changed := false
	if r.active.AnimeProvider == slug {
		r.active.AnimeProvider = ""
		changed = true
	}
	if r.active.MangaProvider == slug {
		r.active.MangaProvider = ""
		changed = true
	}
	if changed {
		return r.persistActive()
	}
	return nil
}

// Active returns the in-memory pointer set, reading it from disk on first use
func (r *FileRepository) Active(ctx context.Context) (domain.ActiveProviders, error) {
	if err := r.load(); err != nil {
		return domain.ActiveProviders{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.active, nil
}

// SetActive points content type t at slug. ContentBoth sets both pointers.
func (r *FileRepository) SetActive(ctx context.Context, t domain.ContentType, slug string) error {
	cfg, err := r.Get(ctx, slug)
	if err != nil {
		return err
	}
	if t != domain.ContentBoth && !cfg.Type.Serves(t) {
		return fmt.Errorf("%s serves %s: %w", cfg.Slug, cfg.Type, domain.ErrIncompatibleType)
	}

	if err := r.load(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	switch t {
	case domain.ContentAnime:
		r.active.AnimeProvider = cfg.Slug
	case domain.ContentManga:
		r.active.MangaProvider = cfg.Slug
	case domain.ContentBoth:
		if cfg.Type.Serves(domain.ContentAnime) {
			r.active.AnimeProvider = cfg.Slug
		}
		if cfg.Type.Serves(domain.ContentManga) {
			r.active.MangaProvider = cfg.Slug
		}
	}
	return r.persistActive()
}

func (r *FileRepository) ClearActive(ctx context.Context, t domain.ContentType) error {
	if err := r.load(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if t.Serves(domain.ContentAnime) {
		r.active.AnimeProvider = ""
	}
	if t.Serves(domain.ContentManga) {
		r.active.MangaProvider = ""
	}
	return r.persistActive()
}

// load reads the active pointer file once. A corrupt file resets to an empty set.
func (r *FileRepository) load() error {
	r.mu.RLock()
	loaded := r.loaded
	r.mu.RUnlock()
	if loaded {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.loaded {
		return nil
	}

	b, err := os.ReadFile(r.paths.ActivePath)
	switch {
	case os.IsNotExist(err):
	case err != nil:
		return fmt.Errorf("failed to read %s: %w", r.paths.ActivePath, err)
	default:
		var a domain.ActiveProviders
		if err := json.Unmarshal(b, &a); err != nil {
			r.log.Warn().Err(err).Str("path", r.paths.ActivePath).Msg("corrupt active providers file, resetting")
		} else {
			r.active = a
		}
	}
	r.loaded = true
	return nil
}

// persistActive must be called with mu held
func (r *FileRepository) persistActive() error {
	j, err := json.MarshalIndent(r.active, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal active providers: %w", err)
	}
	return writeFileAtomic(r.paths.ActivePath, j)
}

func (r *FileRepository) readDir(dir string, builtIn bool) []*domain.DynamicProviderConfig {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if !os.IsNotExist(err) {
			r.log.Warn().Err(err).Str("dir", dir).Msg("failed to read provider directory")
		}
		return nil
	}

	var out []*domain.DynamicProviderConfig
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), domain.ProviderExtension) {
			continue
		}
		path := filepath.Join(dir, e.Name())
		c, err := r.readFile(path)
		if err != nil {
			r.log.Warn().Err(err).Str("path", path).Msg("skipping corrupt provider config")
			continue
		}
		r.keySlug(c, strings.TrimSuffix(e.Name(), domain.ProviderExtension), path)
		c.BuiltIn = builtIn
		out = append(out, c)
	}
	return out
}

// keySlug makes the file name the slug of c, since lookups go by file name
func (r *FileRepository) keySlug(c *domain.DynamicProviderConfig, slug, path string) {
	if c.Slug != "" && c.Slug != slug {
		r.log.Warn().Str("path", path).Str("slug", c.Slug).Msgf("provider slug does not match file name, using %s", slug)
	}
	c.Slug = slug
}

func (r *FileRepository) readFile(path string) (*domain.DynamicProviderConfig, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	body, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", path, err)
	}

	c := &domain.DynamicProviderConfig{}
	if err := json.Unmarshal(body, c); err != nil {
		return nil, fmt.Errorf("failed to unmarshal json from %s: %w", path, err)
	}
	return c, nil
}

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file in %s: %w", dir, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write to file %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close file %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to move file into place %s: %w", path, err)
	}
	return nil
}
