package database

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/varoOP/shinkrosrc/internal/domain"
)

var runColumns = []string{"id", "url", "slug", "template_id", "score", "validated", "valid", "saved", "duration_ms", "error", "started_at"}

func newMockRepo(t *testing.T) (domain.HistoryRepo, sqlmock.Sqlmock) {
	t.Helper()
	handler, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { handler.Close() })
	return NewHistoryRepo(zerolog.Nop(), newDB(handler, zerolog.Nop())), mock
}

func TestHistoryRepo_Record(t *testing.T) {
	repo, mock := newMockRepo(t)
	started := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO analysis_runs")).
		WithArgs(sqlmock.AnyArg(), "https://site.example", "site", "graphql-anime", 90, true, true, true, int64(1500), "", "2026-03-01T12:00:00Z").
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := repo.Record(context.Background(), domain.AnalysisRun{
		URL:        "https://site.example",
		Slug:       "site",
		TemplateID: "graphql-anime",
		Score:      90,
		Validated:  true,
		Valid:      true,
		Saved:      true,
		Duration:   1500 * time.Millisecond,
		StartedAt:  started,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHistoryRepo_RecordError(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectExec("INSERT INTO analysis_runs").WillReturnError(errors.New("disk full"))

	err := repo.Record(context.Background(), domain.AnalysisRun{URL: "https://site.example"})
	assert.ErrorContains(t, err, "disk full")
}

func TestHistoryRepo_List(t *testing.T) {
	repo, mock := newMockRepo(t)

	rows := sqlmock.NewRows(runColumns).
		AddRow("b", "https://two.example", "two", "rest-anime", 60, false, false, true, 2000, nil, "2026-03-02T00:00:00Z").
		AddRow("a", "https://one.example", nil, nil, 0, false, false, false, 10, "analysis cancelled", "2026-03-01T00:00:00Z")
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, url, slug, template_id, score, validated, valid, saved, duration_ms, error, started_at FROM analysis_runs ORDER BY started_at DESC LIMIT 5")).
		WillReturnRows(rows)

	runs, err := repo.List(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "two", runs[0].Slug)
	assert.Equal(t, 2*time.Second, runs[0].Duration)
	assert.True(t, runs[0].Saved)
	assert.Equal(t, time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC), runs[0].StartedAt)
	assert.Empty(t, runs[1].Slug)
	assert.Equal(t, "analysis cancelled", runs[1].Error)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNewDB_RecordAndList(t *testing.T) {
	db, err := NewDB(t.TempDir(), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, db.Migrate())

	repo := NewHistoryRepo(zerolog.Nop(), db)
	ctx := context.Background()
	for i, slug := range []string{"first", "second"} {
		require.NoError(t, repo.Record(ctx, domain.AnalysisRun{
			URL:       "https://" + slug + ".example",
			Slug:      slug,
			Saved:     true,
			StartedAt: time.Date(2026, 1, 1+i, 0, 0, 0, 0, time.UTC),
		}))
	}

	runs, err := repo.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "second", runs[0].Slug)
	assert.NotEmpty(t, runs[0].ID)
	assert.True(t, runs[1].Saved)
}
