// internal/store/templates.go
package store

import (
	"context"
	"database/sql"
	"errors"

	errs "clinic-reminders/internal/common/errors"
)

// TemplateStore persists the (language, kind) email templates. Templates are
// seeded with built-in defaults at first run and treated as static
// configuration afterwards.
type TemplateStore struct {
	db *sql.DB
}

func NewTemplateStore(db *sql.DB) *TemplateStore {
	return &TemplateStore{db: db}
}

var defaultTemplates = []EmailTemplate{
	{
		Name:     "Magyar emlékeztető",
		Language: "hu",
		Kind:     KindReminder,
		Subject:  "Emlékeztető - Időpontja holnap",
		Body: `Kedves {patient_name}!

Emlékeztetjük, hogy holnap ({appointment_date}) {appointment_time}-kor időpontja van nálunk.

Kérjük, érkezzen pontosan!

Üdvözlettel,
{clinic_name}`,
	},
	{
		Name:     "Német emlékeztető",
		Language: "de",
		Kind:     KindReminder,
		Subject:  "Erinnerung - Ihr Termin morgen",
		Body: `Liebe/r {patient_name}!

Wir möchten Sie daran erinnern, dass Sie morgen ({appointment_date}) um {appointment_time} einen Termin bei uns haben.

Bitte kommen Sie pünktlich!

Mit freundlichen Grüßen,
{clinic_name}`,
	},
	{
		Name:     "Magyar visszaigazolás",
		Language: "hu",
		Kind:     KindConfirmation,
		Subject:  "Új időpont visszaigazolás",
		Body: `Kedves {patient_name}!

Megerősítjük az új időpontot:

Dátum: {appointment_date}
Időpont: {appointment_time}

Ha bármilyen kérdése van, keressen minket!

Üdvözlettel,
{clinic_name}`,
	},
	{
		Name:     "Német visszaigazolás",
		Language: "de",
		Kind:     KindConfirmation,
		Subject:  "Terminbestätigung",
		Body: `Liebe/r {patient_name}!

Hiermit bestätigen wir Ihren neuen Termin:

Datum: {appointment_date}
Uhrzeit: {appointment_time}

Bei Fragen melden Sie sich gerne bei uns!

Mit freundlichen Grüßen,
{clinic_name}`,
	},
}

// Seed inserts the built-in default templates, leaving any already present
// (language, kind) pair untouched.
func (s *TemplateStore) Seed(ctx context.Context) error {
	for _, t := range defaultTemplates {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO email_templates (name, language, kind, subject, body)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (language, kind) DO NOTHING`,
			t.Name, t.Language, t.Kind, t.Subject, t.Body)
		if err != nil {
			return errs.NewStorageError(err)
		}
	}
	return nil
}

// Find returns the template for (language, kind), or nil when none is
// registered for that pair.
func (s *TemplateStore) Find(ctx context.Context, language, kind string) (*EmailTemplate, error) {
	var t EmailTemplate
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, language, kind, subject, body
		FROM email_templates
		WHERE language = $1 AND kind = $2`, language, kind).Scan(
		&t.ID, &t.Name, &t.Language, &t.Kind, &t.Subject, &t.Body,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errs.NewStorageError(err)
	}
	return &t, nil
}
