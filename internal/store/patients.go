// internal/store/patients.go
package store

import (
	"context"
	"database/sql"
	"errors"

	errs "clinic-reminders/internal/common/errors"

	"github.com/lib/pq"
)

const pqUniqueViolation = "23505"

// PatientStore is the patient directory: it maps an email address to a
// patient identity and preferred language.
type PatientStore struct {
	db *sql.DB
}

func NewPatientStore(db *sql.DB) *PatientStore {
	return &PatientStore{db: db}
}

// Add registers a new active patient. A second active patient with the same
// email is rejected with a DUPLICATE_PATIENT error.
func (s *PatientStore) Add(ctx context.Context, name, email, phone, language string) (int64, error) {
	if language == "" {
		language = "hu"
	}

	var id int64
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO patients (name, email, phone, language)
		VALUES ($1, $2, $3, $4)
		RETURNING id`, name, email, phone, language).Scan(&id)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation {
			return 0, errs.NewDuplicatePatientError(email)
		}
		return 0, errs.NewStorageError(err)
	}
	return id, nil
}

// FindByEmail returns the active patient with the given email, or nil when
// there is none.
func (s *PatientStore) FindByEmail(ctx context.Context, email string) (*Patient, error) {
	var p Patient
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, email, phone, language, active
		FROM patients
		WHERE email = $1 AND active = TRUE`, email).Scan(
		&p.ID, &p.Name, &p.Email, &p.Phone, &p.Language, &p.Active,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errs.NewStorageError(err)
	}
	return &p, nil
}

// List returns patients ordered by name, optionally restricted to active ones.
func (s *PatientStore) List(ctx context.Context, activeOnly bool) ([]Patient, error) {
	query := `SELECT id, name, email, phone, language, active FROM patients ORDER BY name`
	if activeOnly {
		query = `SELECT id, name, email, phone, language, active FROM patients WHERE active = TRUE ORDER BY name`
	}

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, errs.NewStorageError(err)
	}
	defer rows.Close()

	var patients []Patient
	for rows.Next() {
		var p Patient
		if err := rows.Scan(&p.ID, &p.Name, &p.Email, &p.Phone, &p.Language, &p.Active); err != nil {
			return nil, errs.NewStorageError(err)
		}
		patients = append(patients, p)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.NewStorageError(err)
	}
	return patients, nil
}

// Delete removes a patient and reports whether a row existed. Notification
// state already recorded on past events is untouched.
func (s *PatientStore) Delete(ctx context.Context, id int64) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM patients WHERE id = $1`, id)
	if err != nil {
		return false, errs.NewStorageError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, errs.NewStorageError(err)
	}
	return n > 0, nil
}
