package domain

import "path/filepath"

const (
	ProvidersDir      = "providers"
	BuiltInDir        = "builtin"
	CustomDir         = "custom"
	ActiveFile        = "active-providers.json"
	HistoryDatabase   = "history.db"
	ProviderExtension = ".json"
)

// Paths holds the storage layout below one data directory
type Paths struct {
	RootDir    string
	BuiltInDir string
	CustomDir  string
	ActivePath string
}

// NewPaths creates a new Paths instance with all paths initialized
func NewPaths(rootDir string) *Paths {
	return &Paths{
		RootDir:    rootDir,
		BuiltInDir: filepath.Join(rootDir, ProvidersDir, BuiltInDir),
		CustomDir:  filepath.Join(rootDir, ProvidersDir, CustomDir),
		ActivePath: filepath.Join(rootDir, ActiveFile),
	}
}

// CustomPath returns the file a custom provider with the given slug is stored in
func (p *Paths) CustomPath(slug string) string {
	return filepath.Join(p.CustomDir, slug+ProviderExtension)
}

// BuiltInPath returns the file a shipped provider with the given slug is read from
func (p *Paths) BuiltInPath(slug string) string {
	return filepath.Join(p.BuiltInDir, slug+ProviderExtension)
}
