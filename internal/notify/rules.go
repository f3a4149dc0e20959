// internal/notify/rules.go
package notify

import (
	"context"
	"time"

	"clinic-reminders/internal/common/logger"
	"clinic-reminders/internal/store"
)

// EventQueries is the slice of the event store the rule engine reads from.
type EventQueries interface {
	FindDueForReminder(ctx context.Context, asOf time.Time) ([]store.CalendarEvent, error)
	FindDueForNewAppointmentNotice(ctx context.Context, asOf time.Time) ([]store.CalendarEvent, error)
}

// PatientLookup resolves an event's email to an active patient.
type PatientLookup interface {
	FindByEmail(ctx context.Context, email string) (*store.Patient, error)
}

// Candidate pairs a due event with its resolved patient.
type Candidate struct {
	Event   store.CalendarEvent
	Patient store.Patient
}

// Engine computes the two daily worklists. It never mutates state; events
// whose patient cannot be resolved are dropped from the worklist and counted
// as skips, not errors.
type Engine struct {
	events   EventQueries
	patients PatientLookup
	logger   logger.Logger
}

func NewEngine(events EventQueries, patients PatientLookup, log logger.Logger) *Engine {
	return &Engine{
		events:   events,
		patients: patients,
		logger:   log.WithFields(map[string]interface{}{"component": "rule-engine"}),
	}
}

// ReminderWorklist returns the resolvable events due for a reminder as of the
// given time, plus the number of events skipped for lack of a patient.
func (e *Engine) ReminderWorklist(ctx context.Context, asOf time.Time) ([]Candidate, int, error) {
	events, err := e.events.FindDueForReminder(ctx, asOf)
	if err != nil {
		return nil, 0, err
	}
	return e.resolve(ctx, store.KindReminder, events)
}

// NewAppointmentWorklist returns the resolvable events due for a confirmation
// as of the given time, plus the skip count.
func (e *Engine) NewAppointmentWorklist(ctx context.Context, asOf time.Time) ([]Candidate, int, error) {
	events, err := e.events.FindDueForNewAppointmentNotice(ctx, asOf)
	if err != nil {
		return nil, 0, err
	}
	return e.resolve(ctx, store.KindConfirmation, events)
}

func (e *Engine) resolve(ctx context.Context, kind string, events []store.CalendarEvent) ([]Candidate, int, error) {
	var candidates []Candidate
	skipped := 0

	for _, ev := range events {
		if ev.PatientEmail == "" {
			e.logger.Info("skipping event without patient email", map[string]interface{}{
				"kind":       kind,
				"externalId": ev.ExternalID,
			})
			skipped++
			continue
		}

		patient, err := e.patients.FindByEmail(ctx, ev.PatientEmail)
		if err != nil {
			return nil, skipped, err
		}
		if patient == nil {
			e.logger.Info("skipping event without matching active patient", map[string]interface{}{
				"kind":         kind,
				"externalId":   ev.ExternalID,
				"patientEmail": ev.PatientEmail,
			})
			skipped++
			continue
		}

		candidates = append(candidates, Candidate{Event: ev, Patient: *patient})
	}

	return candidates, skipped, nil
}
