package domain

import (
	"context"
	"time"
)

// ProviderRepository stores provider configurations and the active pointers
type ProviderRepository interface {
	List(ctx context.Context) ([]ProviderInfo, error)
	Get(ctx context.Context, slug string) (*DynamicProviderConfig, error)
	Save(ctx context.Context, cfg *DynamicProviderConfig) error
	Delete(ctx context.Context, slug string) error
	Active(ctx context.Context) (ActiveProviders, error)
	SetActive(ctx context.Context, t ContentType, slug string) error
	ClearActive(ctx context.Context, t ContentType) error
}

// AnalysisRun is one recorded orchestrator run
type AnalysisRun struct {
	ID         string
	URL        string
	Slug       string
	TemplateID string
	Score      int
	Validated  bool
	Valid      bool
	Saved      bool
	Duration   time.Duration
	StartedAt  time.Time
	Error      string
}

// HistoryRepo records analysis runs
type HistoryRepo interface {
	Record(ctx context.Context, run AnalysisRun) error
	List(ctx context.Context, limit int) ([]AnalysisRun, error)
}
