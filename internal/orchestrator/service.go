// Package orchestrator runs the analysis pipeline from a URL to a stored
// provider config.
package orchestrator

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/varoOP/shinkrosrc/internal/discovery"
	"github.com/varoOP/shinkrosrc/internal/domain"
	"github.com/varoOP/shinkrosrc/internal/generator"
	"github.com/varoOP/shinkrosrc/internal/probe"
	"github.com/varoOP/shinkrosrc/internal/validator"
)

type Phase string

const (
	PhaseProbing     Phase = "probing"
	PhaseDiscovering Phase = "discovering"
	PhaseAnalyzing   Phase = "analyzing"
	PhaseGenerating  Phase = "generating"
	PhaseValidating  Phase = "validating"
	PhaseSaving      Phase = "saving"
	PhaseComplete    Phase = "complete"
)

// Progress is emitted on entry to each phase
type Progress struct {
	Phase   Phase  `json:"phase"`
	Message string `json:"message"`
	Percent int    `json:"percent"`
}

type Options struct {
	// Name overrides the derived provider name
	Name     string
	Validate bool
	DryRun   bool
	// Activate points the config's content types at it after saving. A config
	// that failed validation is saved but never activated.
	Activate bool
	// Timeout bounds the whole run; zero uses the service default
	Timeout    time.Duration
	OnProgress func(Progress)
}

type Result struct {
	Profile    *domain.SiteProfile           `json:"profile"`
	Schema     *domain.ContentSchema         `json:"schema"`
	Config     *domain.DynamicProviderConfig `json:"config"`
	TemplateID string                        `json:"templateId"`
	Score      int                           `json:"score"`
	Validation *domain.ValidationResult      `json:"validation,omitempty"`
	Saved      bool                          `json:"saved"`
	Activated  bool                          `json:"activated"`
	Duration   time.Duration                 `json:"duration"`
}

type Service interface {
	Analyze(ctx context.Context, url string, opts Options) (*Result, error)
}

type service struct {
	log           zerolog.Logger
	prober        probe.Service
	discovery     discovery.Service
	generator     *generator.Generator
	validator     validator.Service
	repo          domain.ProviderRepository
	history       domain.HistoryRepo
	notifications domain.NotificationService
	timeout       time.Duration
	now           func() time.Time
}

// NewService wires the pipeline. history and notifications may be nil.
func NewService(log zerolog.Logger, prober probe.Service, disc discovery.Service, gen *generator.Generator, val validator.Service, repo domain.ProviderRepository, history domain.HistoryRepo, notifications domain.NotificationService, timeout time.Duration) Service {
	return &service{
		log:           log.With().Str("module", "orchestrator").Logger(),
		prober:        prober,
		discovery:     disc,
		generator:     gen,
		validator:     val,
		repo:          repo,
		history:       history,
		notifications: notifications,
		timeout:       timeout,
		now:           time.Now,
	}
}

// Analyze runs every phase under one deadline. Cancellation or timeout is the
// only failure returned; nothing is persisted unless the whole run succeeds
// and DryRun is off.
func (s *service) Analyze(ctx context.Context, target string, opts Options) (res *Result, err error) {
	started := s.now()
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = s.timeout
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	url, err := probe.NormalizeURL(target)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid url %q", target)
	}

	l := s.log.With().Str("url", url).Logger()
	emit := func(p Phase, pct int, msg string) {
		l.Debug().Str("phase", string(p)).Int("percent", pct).Msg(msg)
		if opts.OnProgress != nil {
			opts.OnProgress(Progress{Phase: p, Message: msg, Percent: pct})
		}
	}

	defer func() {
		if err != nil && !opts.DryRun && s.notifications != nil {
			// ctx may be done already
			nctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if nerr := s.notifications.SendError(nctx, url, err); nerr != nil {
				l.Warn().Err(nerr).Msg("Failed to send error notification")
			}
		}
	}()

	res = &Result{}

	emit(PhaseProbing, 0, "Probing site")
	res.Profile = s.prober.Probe(ctx, url)
	if err := checkpoint(ctx, PhaseProbing); err != nil {
		return nil, err
	}

	emit(PhaseDiscovering, 20, "Discovering API endpoints")
	endpoints := s.discovery.DiscoverEndpoints(ctx, res.Profile)
	if err := checkpoint(ctx, PhaseDiscovering); err != nil {
		return nil, err
	}

	emit(PhaseAnalyzing, 40, "Analyzing content structure")
	res.Schema = s.discovery.AnalyzeContent(ctx, res.Profile, endpoints)
	if err := checkpoint(ctx, PhaseAnalyzing); err != nil {
		return nil, err
	}

	emit(PhaseGenerating, 60, "Generating provider config")
	gen := s.generator.GenerateResult(res.Profile, res.Schema, opts.Name)
	res.Config, res.TemplateID, res.Score = gen.Config, gen.TemplateID, gen.Score

	if opts.Validate {
		emit(PhaseValidating, 75, "Validating provider config")
		res.Validation, err = s.validator.Validate(ctx, res.Config)
		if err != nil {
			return nil, errors.Wrap(err, "analysis cancelled during validating")
		}
		if err := checkpoint(ctx, PhaseValidating); err != nil {
			return nil, err
		}
	}

	if !opts.DryRun {
		emit(PhaseSaving, 90, "Saving provider config")
		if err := checkpoint(ctx, PhaseSaving); err != nil {
			return nil, err
		}
		if err := s.repo.Save(ctx, res.Config); err != nil {
			return nil, errors.Wrap(err, "failed to save provider config")
		}
		res.Saved = true

		if opts.Activate {
			if res.Validation != nil && !res.Validation.IsValid {
				l.Warn().Str("slug", res.Config.Slug).Msg("Not activating provider that failed validation")
			} else if err := s.repo.SetActive(ctx, res.Config.Type, res.Config.Slug); err != nil {
				l.Warn().Err(err).Str("slug", res.Config.Slug).Msg("Failed to activate provider")
			} else {
				res.Activated = true
			}
		}
	}

	res.Duration = s.now().Sub(started)
	emit(PhaseComplete, 100, "Analysis complete")

	if !opts.DryRun {
		s.report(ctx, l, url, started, res)
	}

	l.Info().
		Str("slug", res.Config.Slug).
		Str("template", res.TemplateID).
		Bool("saved", res.Saved).
		Dur("duration", res.Duration).
		Msg("Analysis finished")

	return res, nil
}

// report records the run and sends the success notification. Failures are logged only.
func (s *service) report(ctx context.Context, l zerolog.Logger, url string, started time.Time, res *Result) {
	run := domain.AnalysisRun{
		URL:        url,
		Slug:       res.Config.Slug,
		TemplateID: res.TemplateID,
		Score:      res.Score,
		Validated:  res.Validation != nil,
		Valid:      res.Validation != nil && res.Validation.IsValid,
		Saved:      res.Saved,
		Duration:   res.Duration,
		StartedAt:  started,
	}

	if s.history != nil {
		if err := s.history.Record(ctx, run); err != nil {
			l.Warn().Err(err).Msg("Failed to record analysis run")
		}
	}
	if s.notifications != nil {
		if err := s.notifications.SendSuccess(ctx, run); err != nil {
			l.Warn().Err(err).Msg("Failed to send success notification")
		}
	}
}

func checkpoint(ctx context.Context, p Phase) error {
	if err := ctx.Err(); err != nil {
		return errors.Wrapf(err, "analysis cancelled during %s", p)
	}
	return nil
}
