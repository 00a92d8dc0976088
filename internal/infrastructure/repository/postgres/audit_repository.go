package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/uhaki/legal-retrieval/internal/core/domain"
)

type AuditRepository struct {
	db *sql.DB
}

func NewAuditRepository(db *sql.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

func (r *AuditRepository) RecordQuery(ctx context.Context, rec domain.AuditRecord) error {
	timingsJSON, err := json.Marshal(rec.Timings)
	if err != nil {
		return fmt.Errorf("marshal timings: %w", err)
	}
	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err = r.db.ExecContext(ctx, `
INSERT INTO query_audit (
	request_id, query, scope, category, predicted_category, confidence, top_act, top_section, top_score, result_count, rerank_degraded, timings, created_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
`,
		rec.RequestID, rec.Query, string(rec.Scope), rec.Category, rec.PredictedCategory, rec.Confidence,
		rec.TopAct, rec.TopSection, rec.TopScore, rec.ResultCount, rec.RerankDegraded, timingsJSON, createdAt,
	)
	if err != nil {
		return fmt.Errorf("insert query audit: %w", err)
	}
	return nil
}

// ListRecent returns the latest audit rows, newest first.
func (r *AuditRepository) ListRecent(ctx context.Context, limit int) ([]domain.AuditRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT request_id, query, scope, category, predicted_category, confidence, top_act, top_section, top_score, result_count, rerank_degraded, timings, created_at
FROM query_audit
ORDER BY created_at DESC
LIMIT $1
`, limit)
	if err != nil {
		return nil, fmt.Errorf("query audit rows: %w", err)
	}
	defer rows.Close()

	var out []domain.AuditRecord
	for rows.Next() {
		var (
			rec                           domain.AuditRecord
			scope                         string
			category, predicted, act, sec sql.NullString
			timingsRaw                    []byte
		)
		if err := rows.Scan(
			&rec.RequestID, &rec.Query, &scope, &category, &predicted, &rec.Confidence, &act, &sec,
			&rec.TopScore, &rec.ResultCount, &rec.RerankDegraded, &timingsRaw, &rec.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan audit row: %w", err)
		}
		if err := json.Unmarshal(timingsRaw, &rec.Timings); err != nil {
			return nil, fmt.Errorf("unmarshal timings: %w", err)
		}
		rec.Scope = domain.ScopeMode(scope)
		rec.Category = category.String
		rec.PredictedCategory = predicted.String
		rec.TopAct = act.String
		rec.TopSection = sec.String
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit rows: %w", err)
	}
	return out, nil
}
