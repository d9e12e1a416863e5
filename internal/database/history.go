package database

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/varoOP/shinkrosrc/internal/domain"
)

const defaultHistoryLimit = 20

// HistoryRepo implements domain.HistoryRepo
type HistoryRepo struct {
	log zerolog.Logger
	db  *DB
}

// NewHistoryRepo creates a new history repository
func NewHistoryRepo(log zerolog.Logger, db *DB) domain.HistoryRepo {
	return &HistoryRepo{
		log: log.With().Str("repo", "history").Logger(),
		db:  db,
	}
}

// Record inserts a run, assigning an id when it has none
func (r *HistoryRepo) Record(ctx context.Context, run domain.AnalysisRun) error {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now()
	}

	queryBuilder := r.db.squirrel.
		Insert("analysis_runs").
		Columns("id", "url", "slug", "template_id", "score", "validated", "valid", "saved", "duration_ms", "error", "started_at").
		Values(run.ID, run.URL, run.Slug, run.TemplateID, run.Score, run.Validated, run.Valid, run.Saved,
			run.Duration.Milliseconds(), run.Error, run.StartedAt.UTC().Format(time.RFC3339))

	query, args, err := queryBuilder.ToSql()
	if err != nil {
		return errors.Wrap(err, "error building query")
	}

	r.log.Trace().Str("query", query).Interface("args", args).Msg("Record")

	if _, err := r.db.handler.ExecContext(ctx, query, args...); err != nil {
		return errors.Wrap(err, "error executing query")
	}

	return nil
}

// List returns the most recent runs first
func (r *HistoryRepo) List(ctx context.Context, limit int) ([]domain.AnalysisRun, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}

	queryBuilder := r.db.squirrel.
		Select("id", "url", "slug", "template_id", "score", "validated", "valid", "saved", "duration_ms", "error", "started_at").
		From("analysis_runs").
		OrderBy("started_at DESC").
		Limit(uint64(limit))

	query, args, err := queryBuilder.ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "error building query")
	}

	r.log.Trace().Str("query", query).Interface("args", args).Msg("List")

	rows, err := r.db.handler.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "error executing query")
	}
	defer rows.Close()

	var runs []domain.AnalysisRun
	for rows.Next() {
		var (
			run                   domain.AnalysisRun
			slug, templateID, msg sql.NullString
			durationMs            int64
			startedAt             string
		)
		if err := rows.Scan(&run.ID, &run.URL, &slug, &templateID, &run.Score, &run.Validated, &run.Valid, &run.Saved, &durationMs, &msg, &startedAt); err != nil {
			return nil, errors.Wrap(err, "error scanning row")
		}
		run.Slug = slug.String
		run.TemplateID = templateID.String
		run.Error = msg.String
		run.Duration = time.Duration(durationMs) * time.Millisecond
		if t, err := time.Parse(time.RFC3339, startedAt); err == nil {
			run.StartedAt = t
		}
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "error iterating rows")
	}

	return runs, nil
}
