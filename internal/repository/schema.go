package repository

import (
	"context"
	"fmt"
	"strings"
)

const schemaDDL = `
CREATE TABLE IF NOT EXISTS extract_jobs (
	id             TEXT PRIMARY KEY,
	source_path    TEXT NOT NULL,
	filename       TEXT NOT NULL,
	content_hash   TEXT NOT NULL,
	format         TEXT NOT NULL,
	status         TEXT NOT NULL,
	started_at     {{ts}} NOT NULL,
	finished_at    {{ts}},
	error_message  TEXT,
	ocr_method     TEXT,
	ocr_confidence DOUBLE PRECISION,
	needs_review   BOOLEAN NOT NULL DEFAULT FALSE,
	ocr_text       TEXT,
	result_json    TEXT,
	refined_json   TEXT,
	model_name     TEXT
);
CREATE INDEX IF NOT EXISTS extract_jobs_content_hash_idx ON extract_jobs (content_hash);
CREATE INDEX IF NOT EXISTS extract_jobs_started_at_idx ON extract_jobs (started_at);
CREATE TABLE IF NOT EXISTS line_items (
	id             TEXT PRIMARY KEY,
	job_id         TEXT NOT NULL REFERENCES extract_jobs (id) ON DELETE CASCADE,
	position       INTEGER NOT NULL,
	item           TEXT NOT NULL,
	specification  TEXT,
	quantity       BIGINT,
	unit_price     BIGINT NOT NULL,
	supply_amount  BIGINT,
	vat            BIGINT NOT NULL,
	source         TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS line_items_job_idx ON line_items (job_id, position);
`

func (db *DB) migrate(ctx context.Context) error {
	ts := "TIMESTAMP"
	if db.Driver == DriverPostgres {
		ts = "TIMESTAMPTZ"
	}
	ddl := strings.ReplaceAll(schemaDDL, "{{ts}}", ts)
	for _, stmt := range strings.Split(ddl, ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := db.SQL.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}
