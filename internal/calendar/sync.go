// internal/calendar/sync.go
package calendar

import (
	"context"
	"fmt"
	"time"

	"clinic-reminders/internal/common/logger"
	"clinic-reminders/internal/common/metrics"
	"clinic-reminders/internal/store"

	"github.com/google/uuid"
)

// EventUpserter is the slice of the event store the syncer writes to.
type EventUpserter interface {
	Upsert(ctx context.Context, ev store.CalendarEvent) (int64, error)
}

// AuditSink records sync outcomes in the persistent audit trail.
type AuditSink interface {
	Append(ctx context.Context, level, message, patientEmail string) error
}

// Syncer mirrors the external calendar into the event store. Synced events
// are never new appointments; those enter through NewManualEvent.
type Syncer struct {
	source EventSource
	events EventUpserter
	audit  AuditSink
	logger logger.Logger
}

func NewSyncer(source EventSource, events EventUpserter, audit AuditSink, log logger.Logger) *Syncer {
	return &Syncer{
		source: source,
		events: events,
		audit:  audit,
		logger: log.WithFields(map[string]interface{}{"component": "calendar-sync"}),
	}
}

// Sync pulls upcoming events and upserts them, returning the number of rows
// written. A failed row is logged and skipped; the rest of the pull still
// lands.
func (s *Syncer) Sync(ctx context.Context, daysAhead int) (int, error) {
	events, err := s.source.ListUpcomingEvents(ctx, daysAhead)
	if err != nil {
		return 0, err
	}

	synced := 0
	for _, ev := range events {
		_, err := s.events.Upsert(ctx, store.CalendarEvent{
			ExternalID:   ev.ExternalID,
			PatientEmail: ResolvePatientEmail(ev),
			Title:        ev.Title,
			Description:  ev.Description,
			StartTime:    ev.StartTime,
			EndTime:      ev.EndTime,
		})
		if err != nil {
			s.logger.WithError(err).Error("event upsert failed", map[string]interface{}{
				"externalId": ev.ExternalID,
			})
			continue
		}
		synced++
		metrics.EventsSynced.Inc()
	}

	if err := s.audit.Append(ctx, "INFO", fmt.Sprintf("Calendar szinkronizálás: %d esemény", synced), ""); err != nil {
		s.logger.WithError(err).Warn("audit append failed", nil)
	}

	s.logger.Info("sync finished", map[string]interface{}{
		"daysAhead": daysAhead,
		"pulled":    len(events),
		"synced":    synced,
	})
	return synced, nil
}

// NewManualEvent stores an appointment entered by hand at the clinic. Manual
// events get a generated external id and are flagged so the confirmation
// batch picks them up the same day.
func (s *Syncer) NewManualEvent(ctx context.Context, patientEmail, title, description string, startTime, endTime time.Time) (int64, error) {
	id, err := s.events.Upsert(ctx, store.CalendarEvent{
		ExternalID:       "manual-" + uuid.New().String(),
		PatientEmail:     patientEmail,
		Title:            title,
		Description:      description,
		StartTime:        startTime,
		EndTime:          endTime,
		IsNewAppointment: true,
	})
	if err != nil {
		return 0, err
	}

	if err := s.audit.Append(ctx, "INFO", fmt.Sprintf("Manuális esemény hozzáadva: %s - %s", title, patientEmail), patientEmail); err != nil {
		s.logger.WithError(err).Warn("audit append failed", nil)
	}
	return id, nil
}
