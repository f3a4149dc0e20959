// internal/notify/render.go

// Package notify selects due events, renders their messages and drives the
// actual sending, either from the background scheduler or from a foreground
// caller.
package notify

import (
	"strings"

	"clinic-reminders/internal/store"
)

// Substitutions builds the token map for one event/patient pair.
func Substitutions(p store.Patient, ev store.CalendarEvent, clinicName string) map[string]string {
	return map[string]string{
		"patient_name":     p.Name,
		"appointment_date": ev.StartTime.Format("2006-01-02"),
		"appointment_time": ev.StartTime.Format("15:04"),
		"clinic_name":      clinicName,
	}
}

// Render substitutes {token} markers in the template's subject and body.
// Tokens without a substitution are left verbatim, so a template may use a
// subset of the known tokens.
func Render(t *store.EmailTemplate, subs map[string]string) (subject, body string) {
	pairs := make([]string, 0, len(subs)*2)
	for token, value := range subs {
		pairs = append(pairs, "{"+token+"}", value)
	}
	r := strings.NewReplacer(pairs...)
	return r.Replace(t.Subject), r.Replace(t.Body)
}
