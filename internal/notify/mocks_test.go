// internal/notify/mocks_test.go
package notify

import (
	"context"
	"sync"
	"time"

	"clinic-reminders/internal/store"
)

type MockEventQueries struct {
	FindDueForReminderFunc             func(ctx context.Context, asOf time.Time) ([]store.CalendarEvent, error)
	FindDueForNewAppointmentNoticeFunc func(ctx context.Context, asOf time.Time) ([]store.CalendarEvent, error)
}

func (m *MockEventQueries) FindDueForReminder(ctx context.Context, asOf time.Time) ([]store.CalendarEvent, error) {
	return m.FindDueForReminderFunc(ctx, asOf)
}

func (m *MockEventQueries) FindDueForNewAppointmentNotice(ctx context.Context, asOf time.Time) ([]store.CalendarEvent, error) {
	return m.FindDueForNewAppointmentNoticeFunc(ctx, asOf)
}

type MockPatientLookup struct {
	FindByEmailFunc func(ctx context.Context, email string) (*store.Patient, error)
}

func (m *MockPatientLookup) FindByEmail(ctx context.Context, email string) (*store.Patient, error) {
	return m.FindByEmailFunc(ctx, email)
}

type MockTemplateLookup struct {
	FindFunc func(ctx context.Context, language, kind string) (*store.EmailTemplate, error)
}

func (m *MockTemplateLookup) Find(ctx context.Context, language, kind string) (*store.EmailTemplate, error) {
	return m.FindFunc(ctx, language, kind)
}

type MockFlagMarker struct {
	MarkReminderSentFunc           func(ctx context.Context, id int64) error
	MarkNewAppointmentNotifiedFunc func(ctx context.Context, id int64) error
}

func (m *MockFlagMarker) MarkReminderSent(ctx context.Context, id int64) error {
	return m.MarkReminderSentFunc(ctx, id)
}

func (m *MockFlagMarker) MarkNewAppointmentNotified(ctx context.Context, id int64) error {
	return m.MarkNewAppointmentNotifiedFunc(ctx, id)
}

type MockTransport struct {
	SendFunc func(ctx context.Context, to, subject, body string) error
}

func (m *MockTransport) Send(ctx context.Context, to, subject, body string) error {
	return m.SendFunc(ctx, to, subject, body)
}

// recordingAudit collects audit entries for assertions.
type recordingAudit struct {
	mu      sync.Mutex
	entries []auditEntry
}

type auditEntry struct {
	level, message, patientEmail string
}

func (r *recordingAudit) Append(_ context.Context, level, message, patientEmail string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, auditEntry{level, message, patientEmail})
	return nil
}

func (r *recordingAudit) byLevel(level string) []auditEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []auditEntry
	for _, e := range r.entries {
		if e.level == level {
			out = append(out, e)
		}
	}
	return out
}
