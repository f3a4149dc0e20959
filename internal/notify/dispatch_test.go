// internal/notify/dispatch_test.go
package notify

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"clinic-reminders/internal/common/config"
	errs "clinic-reminders/internal/common/errors"
	"clinic-reminders/internal/common/logger"
	"clinic-reminders/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testClinic = config.ClinicConfig{Name: "Orvosi Rendelő", DefaultLanguage: "hu"}

func huReminderTemplate() *store.EmailTemplate {
	return &store.EmailTemplate{
		Language: "hu",
		Kind:     store.KindReminder,
		Subject:  "Emlékeztető - Időpontja holnap",
		Body:     "Kedves {patient_name}! Időpont: {appointment_date} {appointment_time}. {clinic_name}",
	}
}

func staticPatients(patients ...store.Patient) *MockPatientLookup {
	return &MockPatientLookup{
		FindByEmailFunc: func(ctx context.Context, email string) (*store.Patient, error) {
			for i := range patients {
				if patients[i].Email == email {
					return &patients[i], nil
				}
			}
			return nil, nil
		},
	}
}

func TestDispatcher_RunReminderBatch(t *testing.T) {
	anna := store.Patient{ID: 1, Name: "Kiss Anna", Email: "anna@example.com", Language: "hu", Active: true}
	start := time.Date(2024, 1, 15, 14, 30, 0, 0, time.Local)

	events := &MockEventQueries{
		FindDueForReminderFunc: func(ctx context.Context, asOf time.Time) ([]store.CalendarEvent, error) {
			return []store.CalendarEvent{
				{ID: 1, ExternalID: "gcal-1", PatientEmail: "anna@example.com", StartTime: start},
			}, nil
		},
	}

	var marked []int64
	marker := &MockFlagMarker{
		MarkReminderSentFunc: func(ctx context.Context, id int64) error {
			marked = append(marked, id)
			return nil
		},
	}

	var sentTo, sentBody string
	transport := &MockTransport{
		SendFunc: func(ctx context.Context, to, subject, body string) error {
			sentTo, sentBody = to, body
			return nil
		},
	}

	templates := &MockTemplateLookup{
		FindFunc: func(ctx context.Context, language, kind string) (*store.EmailTemplate, error) {
			return huReminderTemplate(), nil
		},
	}

	audit := &recordingAudit{}
	engine := NewEngine(events, staticPatients(anna), logger.NewNoOpLogger())
	d := NewDispatcher(engine, templates, marker, audit, transport, testClinic, logger.NewTestLogger(t))

	summary, err := d.RunReminderBatch(context.Background(), time.Now())

	assert.NoError(t, err)
	assert.Equal(t, Summary{Sent: 1}, summary)
	assert.Equal(t, []int64{1}, marked)
	assert.Equal(t, "anna@example.com", sentTo)
	assert.Contains(t, sentBody, "Kiss Anna")
	assert.Contains(t, sentBody, "2024-01-15 14:30")

	infos := audit.byLevel("INFO")
	require.Len(t, infos, 2)
	assert.Contains(t, infos[0].message, "Napi emlékeztető elküldve: Kiss Anna")
	assert.Contains(t, infos[1].message, "Napi emlékeztető kör befejezve: 1 email elküldve")
}

func TestDispatcher_SendFailureDoesNotAbortBatch(t *testing.T) {
	anna := store.Patient{ID: 1, Name: "Kiss Anna", Email: "anna@example.com", Language: "hu", Active: true}
	hans := store.Patient{ID: 2, Name: "Hans Weber", Email: "hans@example.com", Language: "hu", Active: true}

	events := &MockEventQueries{
		FindDueForReminderFunc: func(ctx context.Context, asOf time.Time) ([]store.CalendarEvent, error) {
			return []store.CalendarEvent{
				{ID: 1, PatientEmail: "anna@example.com"},
				{ID: 2, PatientEmail: "hans@example.com"},
			}, nil
		},
	}

	var marked []int64
	marker := &MockFlagMarker{
		MarkReminderSentFunc: func(ctx context.Context, id int64) error {
			marked = append(marked, id)
			return nil
		},
	}

	transport := &MockTransport{
		SendFunc: func(ctx context.Context, to, subject, body string) error {
			if to == "anna@example.com" {
				return errs.NewSendFailure(to, assert.AnError)
			}
			return nil
		},
	}

	templates := &MockTemplateLookup{
		FindFunc: func(ctx context.Context, language, kind string) (*store.EmailTemplate, error) {
			return huReminderTemplate(), nil
		},
	}

	audit := &recordingAudit{}
	engine := NewEngine(events, staticPatients(anna, hans), logger.NewNoOpLogger())
	d := NewDispatcher(engine, templates, marker, audit, transport, testClinic, logger.NewNoOpLogger())

	summary, err := d.RunReminderBatch(context.Background(), time.Now())

	assert.NoError(t, err)
	assert.Equal(t, Summary{Sent: 1, Errors: 1}, summary)
	// The failed event keeps its flag unset and stays due for the next run.
	assert.Equal(t, []int64{2}, marked)

	failures := audit.byLevel("ERROR")
	require.Len(t, failures, 1)
	assert.Equal(t, "anna@example.com", failures[0].patientEmail)
	assert.Contains(t, failures[0].message, "Emlékeztető hiba")
}

func TestDispatcher_MissingTransportFailsBeforeQuerying(t *testing.T) {
	events := &MockEventQueries{
		FindDueForReminderFunc: func(ctx context.Context, asOf time.Time) ([]store.CalendarEvent, error) {
			t.Fatal("worklist must not be queried without a transport")
			return nil, nil
		},
	}

	engine := NewEngine(events, &MockPatientLookup{}, logger.NewNoOpLogger())
	d := NewDispatcher(engine, &MockTemplateLookup{}, &MockFlagMarker{}, &recordingAudit{}, nil, testClinic, logger.NewNoOpLogger())

	_, err := d.RunReminderBatch(context.Background(), time.Now())

	require.Error(t, err)
	assert.True(t, errs.HasCode(err, errs.ErrCodeConfiguration))
}

func TestDispatcher_TemplateFallsBackToDefaultLanguage(t *testing.T) {
	// English-preferring patient, but only hu templates are registered.
	eszter := store.Patient{ID: 3, Name: "Nagy Eszter", Email: "eszter@example.com", Language: "en", Active: true}

	events := &MockEventQueries{
		FindDueForReminderFunc: func(ctx context.Context, asOf time.Time) ([]store.CalendarEvent, error) {
			return []store.CalendarEvent{{ID: 7, PatientEmail: "eszter@example.com"}}, nil
		},
	}

	var lookups []string
	templates := &MockTemplateLookup{
		FindFunc: func(ctx context.Context, language, kind string) (*store.EmailTemplate, error) {
			lookups = append(lookups, language)
			if language == "hu" {
				return huReminderTemplate(), nil
			}
			return nil, nil
		},
	}

	marker := &MockFlagMarker{
		MarkReminderSentFunc: func(ctx context.Context, id int64) error { return nil },
	}
	transport := &MockTransport{
		SendFunc: func(ctx context.Context, to, subject, body string) error { return nil },
	}

	engine := NewEngine(events, staticPatients(eszter), logger.NewNoOpLogger())
	d := NewDispatcher(engine, templates, marker, &recordingAudit{}, transport, testClinic, logger.NewNoOpLogger())

	summary, err := d.RunReminderBatch(context.Background(), time.Now())

	assert.NoError(t, err)
	assert.Equal(t, Summary{Sent: 1}, summary)
	assert.Equal(t, []string{"en", "hu"}, lookups)
}

func TestDispatcher_NewAppointmentBatch(t *testing.T) {
	hans := store.Patient{ID: 2, Name: "Hans Weber", Email: "hans@example.com", Language: "de", Active: true}

	events := &MockEventQueries{
		FindDueForNewAppointmentNoticeFunc: func(ctx context.Context, asOf time.Time) ([]store.CalendarEvent, error) {
			return []store.CalendarEvent{{ID: 4, PatientEmail: "hans@example.com", IsNewAppointment: true}}, nil
		},
	}

	var marked []int64
	marker := &MockFlagMarker{
		MarkNewAppointmentNotifiedFunc: func(ctx context.Context, id int64) error {
			marked = append(marked, id)
			return nil
		},
	}

	templates := &MockTemplateLookup{
		FindFunc: func(ctx context.Context, language, kind string) (*store.EmailTemplate, error) {
			assert.Equal(t, store.KindConfirmation, kind)
			return &store.EmailTemplate{Language: language, Kind: kind, Subject: "Terminbestätigung", Body: "{patient_name}"}, nil
		},
	}
	transport := &MockTransport{
		SendFunc: func(ctx context.Context, to, subject, body string) error { return nil },
	}

	audit := &recordingAudit{}
	engine := NewEngine(events, staticPatients(hans), logger.NewNoOpLogger())
	d := NewDispatcher(engine, templates, marker, audit, transport, testClinic, logger.NewNoOpLogger())

	summary, err := d.RunNewAppointmentBatch(context.Background(), time.Now())

	assert.NoError(t, err)
	assert.Equal(t, Summary{Sent: 1}, summary)
	assert.Equal(t, []int64{4}, marked)

	infos := audit.byLevel("INFO")
	require.Len(t, infos, 2)
	assert.Contains(t, infos[0].message, "Új időpont értesítés elküldve: Hans Weber")
}

// memoryEventStore mimics the real store's flag gating: once an event is
// marked it no longer shows up as due.
type memoryEventStore struct {
	mu     sync.Mutex
	events []store.CalendarEvent
	marked map[int64]bool
}

func (s *memoryEventStore) FindDueForReminder(ctx context.Context, asOf time.Time) ([]store.CalendarEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var due []store.CalendarEvent
	for _, ev := range s.events {
		if !s.marked[ev.ID] {
			due = append(due, ev)
		}
	}
	return due, nil
}

func (s *memoryEventStore) FindDueForNewAppointmentNotice(ctx context.Context, asOf time.Time) ([]store.CalendarEvent, error) {
	return nil, nil
}

func (s *memoryEventStore) MarkReminderSent(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.marked[id] = true
	return nil
}

func (s *memoryEventStore) MarkNewAppointmentNotified(ctx context.Context, id int64) error {
	return nil
}

func TestDispatcher_ConcurrentTriggersSerializePerKind(t *testing.T) {
	anna := store.Patient{ID: 1, Name: "Kiss Anna", Email: "anna@example.com", Language: "hu", Active: true}
	st := &memoryEventStore{
		events: []store.CalendarEvent{{ID: 1, PatientEmail: "anna@example.com"}},
		marked: map[int64]bool{},
	}

	var sendsMu sync.Mutex
	sends := 0
	transport := &MockTransport{
		SendFunc: func(ctx context.Context, to, subject, body string) error {
			// Widen the read-to-mark window so an unserialized second
			// batch would observe the event still unmarked.
			time.Sleep(20 * time.Millisecond)
			sendsMu.Lock()
			sends++
			sendsMu.Unlock()
			return nil
		},
	}

	templates := &MockTemplateLookup{
		FindFunc: func(ctx context.Context, language, kind string) (*store.EmailTemplate, error) {
			return huReminderTemplate(), nil
		},
	}

	engine := NewEngine(st, staticPatients(anna), logger.NewNoOpLogger())
	d := NewDispatcher(engine, templates, st, &recordingAudit{}, transport, testClinic, logger.NewNoOpLogger())

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := d.RunReminderBatch(context.Background(), time.Now())
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, sends, "overlapping batches must not double-send")
}

func TestDispatcher_SendTest(t *testing.T) {
	var sentTo string
	transport := &MockTransport{
		SendFunc: func(ctx context.Context, to, subject, body string) error {
			sentTo = to
			assert.Contains(t, subject, "Orvosi Rendelő")
			return nil
		},
	}

	engine := NewEngine(&MockEventQueries{}, &MockPatientLookup{}, logger.NewNoOpLogger())
	d := NewDispatcher(engine, &MockTemplateLookup{}, &MockFlagMarker{}, &recordingAudit{}, transport, testClinic, logger.NewNoOpLogger())

	assert.NoError(t, d.SendTest(context.Background(), "noreply@rendelo.hu"))
	assert.Equal(t, "noreply@rendelo.hu", sentTo)

	dNoTransport := NewDispatcher(engine, &MockTemplateLookup{}, &MockFlagMarker{}, &recordingAudit{}, nil, testClinic, logger.NewNoOpLogger())
	err := dNoTransport.SendTest(context.Background(), "noreply@rendelo.hu")
	require.Error(t, err)
	assert.True(t, errs.HasCode(err, errs.ErrCodeConfiguration))
}

func TestDispatcher_SendDirect(t *testing.T) {
	anna := store.Patient{ID: 1, Name: "Kiss Anna", Email: "anna@example.com"}

	var sentSubject string
	transport := &MockTransport{
		SendFunc: func(ctx context.Context, to, subject, body string) error {
			sentSubject = subject
			return nil
		},
	}

	audit := &recordingAudit{}
	engine := NewEngine(&MockEventQueries{}, &MockPatientLookup{}, logger.NewNoOpLogger())
	d := NewDispatcher(engine, &MockTemplateLookup{}, &MockFlagMarker{}, audit, transport, testClinic, logger.NewNoOpLogger())

	err := d.SendDirect(context.Background(), anna, "Lelet elkészült", "Kedves Anna!")

	assert.NoError(t, err)
	assert.Equal(t, "Lelet elkészült", sentSubject)

	infos := audit.byLevel("INFO")
	require.Len(t, infos, 1)
	assert.True(t, strings.HasPrefix(infos[0].message, "Egyedi email elküldve"))
}
