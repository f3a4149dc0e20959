// internal/notify/dispatch.go
package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"clinic-reminders/internal/common/config"
	errs "clinic-reminders/internal/common/errors"
	"clinic-reminders/internal/common/logger"
	"clinic-reminders/internal/common/metrics"
	"clinic-reminders/internal/mail"
	"clinic-reminders/internal/store"
)

// TemplateLookup selects the template for a (language, kind) pair.
type TemplateLookup interface {
	Find(ctx context.Context, language, kind string) (*store.EmailTemplate, error)
}

// FlagMarker records that a notification went out for an event.
type FlagMarker interface {
	MarkReminderSent(ctx context.Context, id int64) error
	MarkNewAppointmentNotified(ctx context.Context, id int64) error
}

// AuditSink is the persistent, patient-facing audit trail.
type AuditSink interface {
	Append(ctx context.Context, level, message, patientEmail string) error
}

// Summary is the result of one dispatch batch.
type Summary struct {
	Sent    int `json:"sent"`
	Errors  int `json:"errors"`
	Skipped int `json:"skipped"`
}

// Dispatcher drives one notification per candidate event. A per-kind mutex
// serializes overlapping triggers for the same kind, so a manual run and the
// scheduled run cannot double-send; the flag checks in the worklist queries
// remain the backstop if that lock is ever bypassed.
type Dispatcher struct {
	engine    *Engine
	templates TemplateLookup
	events    FlagMarker
	audit     AuditSink
	transport mail.Transport
	clinic    config.ClinicConfig
	logger    logger.Logger

	reminderMu     sync.Mutex
	confirmationMu sync.Mutex
}

func NewDispatcher(engine *Engine, templates TemplateLookup, events FlagMarker, audit AuditSink, transport mail.Transport, clinic config.ClinicConfig, log logger.Logger) *Dispatcher {
	if clinic.DefaultLanguage == "" {
		clinic.DefaultLanguage = "hu"
	}
	return &Dispatcher{
		engine:    engine,
		templates: templates,
		events:    events,
		audit:     audit,
		transport: transport,
		clinic:    clinic,
		logger:    log.WithFields(map[string]interface{}{"component": "dispatcher"}),
	}
}

// batchSpec binds one notification kind to its worklist, flag and audit texts.
type batchSpec struct {
	kind     string
	mu       *sync.Mutex
	worklist func(ctx context.Context, asOf time.Time) ([]Candidate, int, error)
	mark     func(ctx context.Context, id int64) error
	sentMsg  func(c Candidate) string
	failMsg  func(err error) string
	doneMsg  func(s Summary) string
}

// RunReminderBatch sends the reminder for every event starting tomorrow that
// has not been reminded yet.
func (d *Dispatcher) RunReminderBatch(ctx context.Context, now time.Time) (Summary, error) {
	return d.runBatch(ctx, now, batchSpec{
		kind:     store.KindReminder,
		mu:       &d.reminderMu,
		worklist: d.engine.ReminderWorklist,
		mark:     d.events.MarkReminderSent,
		sentMsg: func(c Candidate) string {
			return fmt.Sprintf("Napi emlékeztető elküldve: %s", c.Patient.Name)
		},
		failMsg: func(err error) string {
			return fmt.Sprintf("Emlékeztető hiba: %v", err)
		},
		doneMsg: func(s Summary) string {
			return fmt.Sprintf("Napi emlékeztető kör befejezve: %d email elküldve, %d hiba", s.Sent, s.Errors)
		},
	})
}

// RunNewAppointmentBatch sends the confirmation for every manually created
// event from today that has not been confirmed yet.
func (d *Dispatcher) RunNewAppointmentBatch(ctx context.Context, now time.Time) (Summary, error) {
	return d.runBatch(ctx, now, batchSpec{
		kind:     store.KindConfirmation,
		mu:       &d.confirmationMu,
		worklist: d.engine.NewAppointmentWorklist,
		mark:     d.events.MarkNewAppointmentNotified,
		sentMsg: func(c Candidate) string {
			return fmt.Sprintf("Új időpont értesítés elküldve: %s", c.Patient.Name)
		},
		failMsg: func(err error) string {
			return fmt.Sprintf("Új időpont értesítési hiba: %v", err)
		},
		doneMsg: func(s Summary) string {
			return fmt.Sprintf("Új időpont értesítési kör befejezve: %d email elküldve, %d hiba", s.Sent, s.Errors)
		},
	})
}

func (d *Dispatcher) runBatch(ctx context.Context, now time.Time, spec batchSpec) (Summary, error) {
	spec.mu.Lock()
	defer spec.mu.Unlock()

	if d.transport == nil {
		return Summary{}, errs.NewConfigurationError("mail transport is not configured")
	}

	start := time.Now()
	defer func() {
		metrics.BatchDuration.WithLabelValues(spec.kind).Observe(time.Since(start).Seconds())
	}()

	candidates, skipped, err := spec.worklist(ctx, now)
	if err != nil {
		return Summary{}, err
	}

	summary := Summary{Skipped: skipped}
	metrics.NotificationsSkipped.WithLabelValues(spec.kind).Add(float64(skipped))

	for _, c := range candidates {
		if err := d.dispatchOne(ctx, spec, c); err != nil {
			summary.Errors++
			metrics.NotificationsFailed.WithLabelValues(spec.kind).Inc()
			d.appendAudit(ctx, "ERROR", spec.failMsg(err), c.Patient.Email)
			continue
		}
		summary.Sent++
		metrics.NotificationsSent.WithLabelValues(spec.kind).Inc()
		d.appendAudit(ctx, "INFO", spec.sentMsg(c), c.Patient.Email)
	}

	d.appendAudit(ctx, "INFO", spec.doneMsg(summary), "")
	d.logger.Info("batch finished", map[string]interface{}{
		"kind":    spec.kind,
		"sent":    summary.Sent,
		"errors":  summary.Errors,
		"skipped": summary.Skipped,
	})

	return summary, nil
}

// dispatchOne renders and sends a single notification and marks the flag on
// success. A failure anywhere leaves the flag untouched so the event stays
// eligible for the next run.
func (d *Dispatcher) dispatchOne(ctx context.Context, spec batchSpec, c Candidate) error {
	tmpl, err := d.templateFor(ctx, c.Patient.Language, spec.kind)
	if err != nil {
		return err
	}

	subject, body := Render(tmpl, Substitutions(c.Patient, c.Event, d.clinic.Name))
	if err := d.transport.Send(ctx, c.Patient.Email, subject, body); err != nil {
		return err
	}

	if err := spec.mark(ctx, c.Event.ID); err != nil {
		// Sent but not recorded: the next run may resend. Accepted
		// at-least-once tradeoff, surfaced as an error for visibility.
		d.logger.WithError(err).Error("sent but failed to mark flag", map[string]interface{}{
			"kind":    spec.kind,
			"eventId": c.Event.ID,
		})
		return err
	}
	return nil
}

// templateFor falls back to the clinic default language when the patient's
// language has no template for the kind.
func (d *Dispatcher) templateFor(ctx context.Context, language, kind string) (*store.EmailTemplate, error) {
	tmpl, err := d.templates.Find(ctx, language, kind)
	if err != nil {
		return nil, err
	}
	if tmpl == nil && language != d.clinic.DefaultLanguage {
		tmpl, err = d.templates.Find(ctx, d.clinic.DefaultLanguage, kind)
		if err != nil {
			return nil, err
		}
	}
	if tmpl == nil {
		return nil, errs.NewConfigurationError(fmt.Sprintf("no %s template for language %q", kind, language))
	}
	return tmpl, nil
}

// SendDirect sends a one-off message to a single patient outside any batch,
// for manual sends from the UI or CLI.
func (d *Dispatcher) SendDirect(ctx context.Context, p store.Patient, subject, body string) error {
	if d.transport == nil {
		return errs.NewConfigurationError("mail transport is not configured")
	}
	if err := d.transport.Send(ctx, p.Email, subject, body); err != nil {
		d.appendAudit(ctx, "ERROR", fmt.Sprintf("Üzenet hiba: %v", err), p.Email)
		return err
	}
	d.appendAudit(ctx, "INFO", fmt.Sprintf("Egyedi email elküldve: %s", p.Name), p.Email)
	return nil
}

// SendTest sends a fixed verification message so an operator can check the
// mail settings without touching patient data.
func (d *Dispatcher) SendTest(ctx context.Context, to string) error {
	if d.transport == nil {
		return errs.NewConfigurationError("mail transport is not configured")
	}
	subject := fmt.Sprintf("Teszt email - %s", d.clinic.Name)
	body := fmt.Sprintf("Ez egy teszt üzenet.\n\n%s", d.clinic.Name)
	if err := d.transport.Send(ctx, to, subject, body); err != nil {
		return err
	}
	d.appendAudit(ctx, "INFO", fmt.Sprintf("Teszt email elküldve: %s", to), "")
	return nil
}

// appendAudit is best effort: an unwritable audit trail degrades to a log
// line instead of failing the batch.
func (d *Dispatcher) appendAudit(ctx context.Context, level, message, patientEmail string) {
	if err := d.audit.Append(ctx, level, message, patientEmail); err != nil {
		d.logger.WithError(err).Warn("audit append failed", map[string]interface{}{
			"message": message,
		})
	}
}
