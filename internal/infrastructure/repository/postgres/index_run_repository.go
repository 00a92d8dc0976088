package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uhaki/legal-retrieval/internal/core/domain"
)

// IndexRunRepository records the outcome of each act index run.
type IndexRunRepository struct {
	db *sql.DB
}

func NewIndexRunRepository(db *sql.DB) *IndexRunRepository {
	return &IndexRunRepository{db: db}
}

func (r *IndexRunRepository) RecordIndexRun(ctx context.Context, embedModel string, stats domain.IndexStats, runErr error) error {
	status, errMessage := "indexed", ""
	if runErr != nil {
		status, errMessage = "failed", runErr.Error()
	}
	_, err := r.db.ExecContext(ctx, `
INSERT INTO index_runs (act, embed_model, chunks, status, error_message, duration_ms, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7)
`, stats.Act, embedModel, stats.Chunks, status, errMessage, domain.Millis(stats.Duration), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("insert index run: %w", err)
	}
	return nil
}

// LastIndexed returns when an act was last indexed successfully with the
// given model.
func (r *IndexRunRepository) LastIndexed(ctx context.Context, act, embedModel string) (time.Time, error) {
	var at time.Time
	err := r.db.QueryRowContext(ctx, `
SELECT created_at FROM index_runs
WHERE act = $1 AND embed_model = $2 AND status = 'indexed'
ORDER BY created_at DESC
LIMIT 1
`, act, embedModel).Scan(&at)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return time.Time{}, domain.WrapError(domain.ErrNotFound, "last indexed", fmt.Errorf("act %q", act))
		}
		return time.Time{}, fmt.Errorf("query last index run: %w", err)
	}
	return at, nil
}
