package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

const schemaLockKey = int64(2026101501)

const schemaDDL = `
CREATE TABLE IF NOT EXISTS documents (
	id TEXT PRIMARY KEY,
	filename TEXT NOT NULL,
	mime_type TEXT NOT NULL DEFAULT '',
	size_bytes BIGINT NOT NULL DEFAULT 0,
	storage_path TEXT NOT NULL DEFAULT '',
	extracted_text TEXT NOT NULL DEFAULT '',
	extracted_fields JSONB NOT NULL DEFAULT '{}'::jsonb,
	document_type TEXT,
	confidence DOUBLE PRECISION NOT NULL DEFAULT 0,
	decision_source TEXT,
	summary TEXT,
	routing_store TEXT,
	routing_record_id TEXT,
	routing_error TEXT,
	status TEXT NOT NULL,
	error_message TEXT,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_documents_status ON documents(status);
CREATE INDEX IF NOT EXISTS idx_documents_created_at ON documents(created_at DESC);
CREATE INDEX IF NOT EXISTS idx_documents_document_type ON documents(document_type);

CREATE TABLE IF NOT EXISTS accident_reports (
	id TEXT PRIMARY KEY,
	document_id TEXT NOT NULL UNIQUE REFERENCES documents(id),
	person_name TEXT NOT NULL,
	ahv_number TEXT NOT NULL,
	accident_date DATE,
	injury_description TEXT NOT NULL,
	accident_location TEXT NOT NULL,
	employer TEXT,
	missing_fields JSONB NOT NULL DEFAULT '[]'::jsonb,
	extra JSONB NOT NULL DEFAULT '{}'::jsonb,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS damage_reports (
	id TEXT PRIMARY KEY,
	document_id TEXT NOT NULL UNIQUE REFERENCES documents(id),
	damage_date DATE,
	location TEXT NOT NULL,
	description TEXT NOT NULL,
	estimated_amount NUMERIC(14,2),
	policy_number TEXT,
	missing_fields JSONB NOT NULL DEFAULT '[]'::jsonb,
	extra JSONB NOT NULL DEFAULT '{}'::jsonb,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS contract_changes (
	id TEXT PRIMARY KEY,
	document_id TEXT NOT NULL UNIQUE REFERENCES documents(id),
	change_type TEXT NOT NULL,
	description TEXT NOT NULL,
	policy_number TEXT,
	effective_date DATE,
	missing_fields JSONB NOT NULL DEFAULT '[]'::jsonb,
	extra JSONB NOT NULL DEFAULT '{}'::jsonb,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS invoices (
	id TEXT PRIMARY KEY,
	document_id TEXT NOT NULL UNIQUE REFERENCES documents(id),
	invoice_number TEXT NOT NULL,
	invoice_date DATE,
	due_date DATE,
	amount NUMERIC(14,2),
	currency TEXT NOT NULL,
	issuer TEXT NOT NULL,
	missing_fields JSONB NOT NULL DEFAULT '[]'::jsonb,
	extra JSONB NOT NULL DEFAULT '{}'::jsonb,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS misc_documents (
	id TEXT PRIMARY KEY,
	document_id TEXT NOT NULL UNIQUE REFERENCES documents(id),
	title TEXT NOT NULL,
	description TEXT NOT NULL,
	missing_fields JSONB NOT NULL DEFAULT '[]'::jsonb,
	extra JSONB NOT NULL DEFAULT '{}'::jsonb,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS classification_audit (
	id TEXT PRIMARY KEY,
	document_id TEXT NOT NULL,
	filename TEXT NOT NULL,
	mime_type TEXT NOT NULL DEFAULT '',
	size_bytes BIGINT NOT NULL DEFAULT 0,
	filename_type TEXT NOT NULL,
	filename_confidence DOUBLE PRECISION NOT NULL,
	vision_type TEXT NOT NULL,
	vision_confidence DOUBLE PRECISION NOT NULL,
	vision_error TEXT,
	override_type TEXT,
	override_terms JSONB NOT NULL DEFAULT '[]'::jsonb,
	decision_type TEXT NOT NULL,
	decision_confidence DOUBLE PRECISION NOT NULL,
	decision_source TEXT NOT NULL,
	routing_store TEXT,
	routing_record_id TEXT,
	routing_error TEXT,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_classification_audit_document ON classification_audit(document_id, created_at);
CREATE INDEX IF NOT EXISTS idx_classification_audit_created_at ON classification_audit(created_at);
`

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

// EnsureSchema creates all tables. API and worker both call it on startup.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across api/worker startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, schemaLockKey); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}
	if _, err := tx.ExecContext(ctx, schemaDDL); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

func nullableString(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func nullableTime(v *time.Time) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullableFloat(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}
