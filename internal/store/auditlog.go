// internal/store/auditlog.go
package store

import (
	"context"
	"database/sql"

	errs "clinic-reminders/internal/common/errors"
)

// AuditLog is the append-only trouble-shooting record. The rule engine never
// reads it.
type AuditLog struct {
	db *sql.DB
}

func NewAuditLog(db *sql.DB) *AuditLog {
	return &AuditLog{db: db}
}

// Append writes one entry. patientEmail may be empty when the entry is not
// about a specific recipient.
func (l *AuditLog) Append(ctx context.Context, level, message, patientEmail string) error {
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO logs (level, message, patient_email)
		VALUES ($1, $2, NULLIF($3, ''))`, level, message, patientEmail)
	if err != nil {
		return errs.NewStorageError(err)
	}
	return nil
}

// Recent returns the newest entries, most recent first.
func (l *AuditLog) Recent(ctx context.Context, limit int) ([]LogEntry, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT id, timestamp, level, message, COALESCE(patient_email, '')
		FROM logs
		ORDER BY timestamp DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, errs.NewStorageError(err)
	}
	defer rows.Close()

	var entries []LogEntry
	for rows.Next() {
		var e LogEntry
		if err := rows.Scan(&e.ID, &e.Timestamp, &e.Level, &e.Message, &e.PatientEmail); err != nil {
			return nil, errs.NewStorageError(err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.NewStorageError(err)
	}
	return entries, nil
}
