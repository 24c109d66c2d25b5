// Package form handles reservation-form submissions: it adds the respondent
// to the referenced calendar event and patches their single status cell,
// without running a full reconciliation. Malformed submissions are logged
// and dropped so one bad input never blocks the trigger pipeline.
package form

import (
	"context"
	"log/slog"
	"regexp"
	"strings"

	"lmsync/internal/config"
	"lmsync/internal/models"
	"lmsync/internal/roster"
	"lmsync/internal/sheets"
)

var (
	emailKeyPattern = regexp.MustCompile(`(?i)メールアドレス|e-?mail`)
	eventIDPattern  = regexp.MustCompile(`\(id:\s*([^)\s]+)\s*\)`)
)

// Handler processes one form submission at a time.
type Handler struct {
	logger   *slog.Logger
	store    sheets.Store
	calendar roster.Calendar
	cfg      *config.Config
}

// NewHandler creates a form-submission handler.
func NewHandler(logger *slog.Logger, store sheets.Store, calendar roster.Calendar, cfg *config.Config) *Handler {
	return &Handler{logger: logger, store: store, calendar: calendar, cfg: cfg}
}

// HandleSubmission processes one form response: extract the email and event
// reference, add the respondent as a guest (idempotent), and mark the
// matching (attendee, course) cell booked. Every step is independently
// guarded; a failure aborts this submission with a log entry and a nil
// error, by the best-effort policy for form input.
func (h *Handler) HandleSubmission(ctx context.Context, sub *models.FormSubmission) error {
	email := ExtractEmail(sub)
	eventID := ExtractEventID(sub)
	if email == "" || eventID == "" {
		h.logger.Warn("Could not extract email or event id from submission, dropping.",
			"hasEmail", email != "", "hasEventID", eventID != "")
		return nil
	}

	if err := h.calendar.AddGuest(ctx, eventID, email); err != nil {
		h.logger.Warn("Failed to add guest to calendar event, dropping submission.",
			"email", email, "eventID", eventID, "error", err)
		return nil
	}

	entry, ok, err := roster.FindCatalogEntry(ctx, h.store, h.cfg, eventID)
	if err != nil {
		h.logger.Warn("Failed to look up event in catalog.", "eventID", eventID, "error", err)
		return nil
	}
	if !ok {
		h.logger.Warn("Event is not in the catalog, status not updated.", "eventID", eventID)
		return nil
	}

	h.markBooked(ctx, email, entry.Course)
	return nil
}

// markBooked sets the (attendee, course) cell to the booked sentinel. The
// write is skipped when the cell is already booked.
func (h *Handler) markBooked(ctx context.Context, email, course string) {
	col, err := roster.FindCourseColumn(ctx, h.store, h.cfg, course)
	if err != nil {
		h.logger.Warn("Failed to read course header.", "course", course, "error", err)
		return
	}
	if col == 0 {
		h.logger.Warn("Course is not in the roster header.", "course", course)
		return
	}

	row, err := roster.FindAttendeeRow(ctx, h.store, h.cfg, email)
	if err != nil {
		h.logger.Warn("Failed to scan attendee roster.", "email", email, "error", err)
		return
	}
	if row == 0 {
		h.logger.Warn("No attendee row matches the email.", "email", email)
		return
	}

	sheet := h.cfg.Sheets.Attendees.Name
	current, err := h.store.ReadCell(ctx, sheet, row, col)
	if err != nil {
		h.logger.Warn("Failed to read status cell.", "row", row, "col", col, "error", err)
		return
	}
	if current == h.cfg.Values.Booked {
		h.logger.Info("Status is already booked, no write.", "email", email, "course", course)
		return
	}
	if err := h.store.UpdateCell(ctx, sheet, row, col, h.cfg.Values.Booked); err != nil {
		h.logger.Warn("Failed to write status cell.", "row", row, "col", col, "error", err)
		return
	}
	h.logger.Info("Marked attendee booked.", "email", email, "course", course)
}

// ExtractEmail pulls the respondent email from a submission: the structured
// respondent field first, then any named-value whose key looks like an
// email-address question.
func ExtractEmail(sub *models.FormSubmission) string {
	if sub == nil {
		return ""
	}
	if email := strings.TrimSpace(sub.RespondentEmail); email != "" {
		return email
	}
	for key, values := range sub.NamedValues {
		if len(values) == 0 || values[0] == "" {
			continue
		}
		if emailKeyPattern.MatchString(key) {
			return strings.TrimSpace(values[0])
		}
	}
	return ""
}

// ExtractEventID pulls the event reference from a submission by locating an
// "(id:...)" token inside an answer string: structured item responses
// first, then the named-value fallback.
func ExtractEventID(sub *models.FormSubmission) string {
	if sub == nil {
		return ""
	}
	for _, answer := range sub.ItemResponses {
		if id := idFromAnswer(answer); id != "" {
			return id
		}
	}
	for _, values := range sub.NamedValues {
		for _, answer := range values {
			if id := idFromAnswer(answer); id != "" {
				return id
			}
		}
	}
	return ""
}

func idFromAnswer(answer string) string {
	m := eventIDPattern.FindStringSubmatch(answer)
	if m == nil {
		return ""
	}
	return m[1]
}
