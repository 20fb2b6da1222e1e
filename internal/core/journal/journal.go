package journal

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"

	"github.com/BDicksmusic/PDFsDropbox-to-Notion-sub000/internal/models"
)

const schema = `
CREATE TABLE IF NOT EXISTS processing_journal (
	id           UUID PRIMARY KEY,
	backend      TEXT NOT NULL,
	ref          TEXT NOT NULL,
	revision     TEXT NOT NULL DEFAULT '',
	name         TEXT NOT NULL,
	outcome      TEXT NOT NULL,
	reason       TEXT NOT NULL DEFAULT '',
	page_id      TEXT NOT NULL DEFAULT '',
	processed_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_journal_ref ON processing_journal (backend, ref);
`

// Journal is an optional append-only audit trail of per-file outcomes in
// Postgres. A nil Journal is valid and records nothing, so the pipeline
// works unchanged without a database.
type Journal struct {
	db  *sql.DB
	log *zap.SugaredLogger
}

// Open connects and bootstraps the schema. An empty URL yields a nil
// journal, not an error.
func Open(ctx context.Context, databaseURL string, log *zap.SugaredLogger) (*Journal, error) {
	if databaseURL == "" {
		return nil, nil
	}

	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open journal db: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping journal db: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("bootstrap journal schema: %w", err)
	}
	return &Journal{db: db, log: log}, nil
}

// Record appends one outcome. Failures are logged, never propagated: the
// journal is an observer, not a pipeline stage.
func (j *Journal) Record(ctx context.Context, res models.FileResult) {
	if j == nil {
		return
	}

	pageID := ""
	if res.Page != nil {
		pageID = res.Page.ID
	}
	_, err := j.db.ExecContext(ctx,
		`INSERT INTO processing_journal (id, backend, ref, revision, name, outcome, reason, page_id)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		uuid.New(), res.Identity.Backend, res.Identity.Ref, res.Identity.Revision,
		res.Name, res.Outcome, res.Reason, pageID,
	)
	if err != nil {
		j.log.Warnw("journal insert failed", "file", res.Name, "err", err)
	}
}

// RecentOutcomes returns the latest entries for the status surface.
func (j *Journal) RecentOutcomes(ctx context.Context, limit int) ([]models.FileResult, error) {
	if j == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = 20
	}

	rows, err := j.db.QueryContext(ctx,
		`SELECT backend, ref, revision, name, outcome, reason, page_id
		 FROM processing_journal ORDER BY processed_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("query journal: %w", err)
	}
	defer rows.Close()

	var out []models.FileResult
	for rows.Next() {
		var r models.FileResult
		var pageID string
		if err := rows.Scan(&r.Identity.Backend, &r.Identity.Ref, &r.Identity.Revision,
			&r.Name, &r.Outcome, &r.Reason, &pageID); err != nil {
			return nil, fmt.Errorf("scan journal row: %w", err)
		}
		if pageID != "" {
			r.Page = &models.RemotePageRef{ID: pageID}
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (j *Journal) Close() error {
	if j == nil {
		return nil
	}
	return j.db.Close()
}
