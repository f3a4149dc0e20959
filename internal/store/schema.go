// internal/store/schema.go
package store

import (
	"context"
	"database/sql"
	"fmt"
)

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS patients (
		id SERIAL PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT NOT NULL,
		phone TEXT NOT NULL DEFAULT '',
		language TEXT NOT NULL DEFAULT 'hu',
		active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	// One active patient per email; inactive duplicates stay allowed.
	`CREATE UNIQUE INDEX IF NOT EXISTS patients_active_email_idx
		ON patients (email) WHERE active`,
	`CREATE TABLE IF NOT EXISTS calendar_events (
		id SERIAL PRIMARY KEY,
		external_id TEXT NOT NULL UNIQUE,
		patient_email TEXT,
		title TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		start_time TIMESTAMPTZ NOT NULL,
		end_time TIMESTAMPTZ NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		reminder_sent BOOLEAN NOT NULL DEFAULT FALSE,
		is_new_appointment BOOLEAN NOT NULL DEFAULT FALSE,
		new_appointment_notified BOOLEAN NOT NULL DEFAULT FALSE
	)`,
	`CREATE INDEX IF NOT EXISTS calendar_events_start_time_idx
		ON calendar_events (start_time)`,
	`CREATE TABLE IF NOT EXISTS email_templates (
		id SERIAL PRIMARY KEY,
		name TEXT NOT NULL,
		language TEXT NOT NULL,
		kind TEXT NOT NULL,
		subject TEXT NOT NULL,
		body TEXT NOT NULL,
		UNIQUE (language, kind)
	)`,
	`CREATE TABLE IF NOT EXISTS logs (
		id SERIAL PRIMARY KEY,
		timestamp TIMESTAMPTZ NOT NULL DEFAULT now(),
		level TEXT NOT NULL,
		message TEXT NOT NULL,
		patient_email TEXT
	)`,
}

// EnsureSchema creates the four service tables if they do not exist yet.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schemaStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}
