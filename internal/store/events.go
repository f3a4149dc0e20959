// internal/store/events.go
package store

import (
	"context"
	"database/sql"
	"time"

	errs "clinic-reminders/internal/common/errors"
)

// EventStore persists calendar events and their notification flags.
type EventStore struct {
	db *sql.DB
}

func NewEventStore(db *sql.DB) *EventStore {
	return &EventStore{db: db}
}

const eventColumns = `id, external_id, COALESCE(patient_email, ''), title, description,
		start_time, end_time, created_at, reminder_sent, is_new_appointment, new_appointment_notified`

// Upsert inserts a new event or updates an existing one matched by external id.
// On conflict only the descriptive fields are replaced; reminder_sent and
// new_appointment_notified keep their stored values, so re-syncing an already
// notified event never re-arms it. is_new_appointment is likewise fixed at
// insert time: a synced update cannot turn a calendar event into a manual one.
func (s *EventStore) Upsert(ctx context.Context, ev CalendarEvent) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO calendar_events
			(external_id, patient_email, title, description, start_time, end_time, is_new_appointment)
		VALUES ($1, NULLIF($2, ''), $3, $4, $5, $6, $7)
		ON CONFLICT (external_id) DO UPDATE SET
			patient_email = EXCLUDED.patient_email,
			title = EXCLUDED.title,
			description = EXCLUDED.description,
			start_time = EXCLUDED.start_time,
			end_time = EXCLUDED.end_time
		RETURNING id`,
		ev.ExternalID, ev.PatientEmail, ev.Title, ev.Description,
		ev.StartTime, ev.EndTime, ev.IsNewAppointment,
	).Scan(&id)
	if err != nil {
		return 0, errs.NewStorageError(err)
	}
	return id, nil
}

// FindDueForReminder returns events starting on the calendar day after asOf
// that have not been reminded yet, ordered by start time.
func (s *EventStore) FindDueForReminder(ctx context.Context, asOf time.Time) ([]CalendarEvent, error) {
	dayStart, dayEnd := dayBounds(asOf.AddDate(0, 0, 1))

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+eventColumns+`
		FROM calendar_events
		WHERE start_time >= $1 AND start_time < $2
		AND reminder_sent = FALSE
		ORDER BY start_time`, dayStart, dayEnd)
	if err != nil {
		return nil, errs.NewStorageError(err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

// FindDueForNewAppointmentNotice returns manually created events from the
// calendar day containing asOf whose confirmation has not gone out yet.
func (s *EventStore) FindDueForNewAppointmentNotice(ctx context.Context, asOf time.Time) ([]CalendarEvent, error) {
	dayStart, dayEnd := dayBounds(asOf)

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+eventColumns+`
		FROM calendar_events
		WHERE created_at >= $1 AND created_at < $2
		AND is_new_appointment = TRUE
		AND new_appointment_notified = FALSE
		ORDER BY start_time`, dayStart, dayEnd)
	if err != nil {
		return nil, errs.NewStorageError(err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

// ListUpcoming returns events starting within [asOf, asOf + horizonDays].
func (s *EventStore) ListUpcoming(ctx context.Context, asOf time.Time, horizonDays int) ([]CalendarEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+eventColumns+`
		FROM calendar_events
		WHERE start_time >= $1 AND start_time <= $2
		ORDER BY start_time`, asOf, asOf.AddDate(0, 0, horizonDays))
	if err != nil {
		return nil, errs.NewStorageError(err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

// MarkReminderSent records that the reminder for an event went out. Setting an
// already-true flag, or marking a deleted event, is a silent no-op.
func (s *EventStore) MarkReminderSent(ctx context.Context, id int64) error {
	return s.setFlag(ctx, `UPDATE calendar_events SET reminder_sent = TRUE WHERE id = $1`, id)
}

// MarkNewAppointmentNotified records that the confirmation for an event went
// out. Same idempotent semantics as MarkReminderSent.
func (s *EventStore) MarkNewAppointmentNotified(ctx context.Context, id int64) error {
	return s.setFlag(ctx, `UPDATE calendar_events SET new_appointment_notified = TRUE WHERE id = $1`, id)
}

func (s *EventStore) setFlag(ctx context.Context, query string, id int64) error {
	if _, err := s.db.ExecContext(ctx, query, id); err != nil {
		return errs.NewStorageError(err)
	}
	return nil
}

// Delete removes an event and reports whether a row existed.
func (s *EventStore) Delete(ctx context.Context, id int64) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM calendar_events WHERE id = $1`, id)
	if err != nil {
		return false, errs.NewStorageError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, errs.NewStorageError(err)
	}
	return n > 0, nil
}

// dayBounds returns the half-open local calendar day [00:00, next 00:00)
// containing t.
func dayBounds(t time.Time) (time.Time, time.Time) {
	start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	return start, start.AddDate(0, 0, 1)
}

func scanEvents(rows *sql.Rows) ([]CalendarEvent, error) {
	var events []CalendarEvent
	for rows.Next() {
		var ev CalendarEvent
		if err := rows.Scan(
			&ev.ID, &ev.ExternalID, &ev.PatientEmail, &ev.Title, &ev.Description,
			&ev.StartTime, &ev.EndTime, &ev.CreatedAt,
			&ev.ReminderSent, &ev.IsNewAppointment, &ev.NewAppointmentNotified,
		); err != nil {
			return nil, errs.NewStorageError(err)
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.NewStorageError(err)
	}
	return events, nil
}
