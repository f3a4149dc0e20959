// internal/store/models.go

// Package store holds the persistent records of the reminder service:
// patients, calendar events, email templates and the audit log.
package store

import "time"

// Notification kinds.
const (
	KindReminder     = "reminder"
	KindConfirmation = "confirmation"
)

// Patient is one person the clinic can notify. Email is the lookup key;
// only one active patient per email is allowed.
type Patient struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	Phone    string `json:"phone,omitempty"`
	Language string `json:"language"`
	Active   bool   `json:"active"`
}

// CalendarEvent is one appointment known to the service, either synced from
// the external calendar or entered manually. PatientEmail is a soft reference:
// it may match no patient, or a patient deleted after the event was created.
type CalendarEvent struct {
	ID           int64     `json:"id"`
	ExternalID   string    `json:"externalId"`
	PatientEmail string    `json:"patientEmail,omitempty"`
	Title        string    `json:"title"`
	Description  string    `json:"description,omitempty"`
	StartTime    time.Time `json:"startTime"`
	EndTime      time.Time `json:"endTime"`
	CreatedAt    time.Time `json:"createdAt"`

	// One-way notification flags. Transitions are strictly false -> true and
	// survive re-sync of the same external id.
	ReminderSent           bool `json:"reminderSent"`
	IsNewAppointment       bool `json:"isNewAppointment"`
	NewAppointmentNotified bool `json:"newAppointmentNotified"`
}

// EmailTemplate is one (language, kind) message template with {token}
// placeholders.
type EmailTemplate struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Language string `json:"language"`
	Kind     string `json:"kind"`
	Subject  string `json:"subject"`
	Body     string `json:"body"`
}

// LogEntry is one append-only audit record.
type LogEntry struct {
	ID           int64     `json:"id"`
	Timestamp    time.Time `json:"timestamp"`
	Level        string    `json:"level"`
	Message      string    `json:"message"`
	PatientEmail string    `json:"patientEmail,omitempty"`
}
