// internal/calendar/source.go

// Package calendar pulls appointment data from the external calendar and
// mirrors it into the event store.
package calendar

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"time"

	errs "clinic-reminders/internal/common/errors"
)

// Event is one appointment as published by the external calendar.
type Event struct {
	ExternalID  string    `json:"external_id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	StartTime   time.Time `json:"start_time"`
	EndTime     time.Time `json:"end_time"`
}

// EventSource lists upcoming appointments from the external calendar.
type EventSource interface {
	ListUpcomingEvents(ctx context.Context, daysAhead int) ([]Event, error)
}

var emailPattern = regexp.MustCompile(`[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}`)

// ResolvePatientEmail extracts the first email-shaped token from the event's
// title or description. The calendar has no structured patient field, so this
// best-effort scan is the only link between an appointment and a patient.
// Returns the empty string when no address is found.
func ResolvePatientEmail(ev Event) string {
	if m := emailPattern.FindString(ev.Title); m != "" {
		return m
	}
	return emailPattern.FindString(ev.Description)
}

// HTTPSource reads events from a JSON endpoint. The endpoint returns an array
// of Event objects for the requested horizon.
type HTTPSource struct {
	baseURL    string
	httpClient *http.Client
}

func NewHTTPSource(baseURL string, timeout time.Duration) *HTTPSource {
	return &HTTPSource{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

func (s *HTTPSource) ListUpcomingEvents(ctx context.Context, daysAhead int) ([]Event, error) {
	url := fmt.Sprintf("%s?days_ahead=%d", s.baseURL, daysAhead)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errs.NewCalendarSyncError(err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, errs.NewCalendarSyncError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errs.NewCalendarSyncError(fmt.Errorf("calendar endpoint returned %d", resp.StatusCode))
	}

	var events []Event
	if err := json.NewDecoder(resp.Body).Decode(&events); err != nil {
		return nil, errs.NewCalendarSyncError(err)
	}
	return events, nil
}
