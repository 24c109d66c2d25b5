// Package router turns spreadsheet edit events into workflow invocations.
// Classification is a pure function over (sheet, column, displayed value);
// the two recognized edits are "create a calendar event from this roster
// row" and "send a reminder to everyone unbooked for this group/course".
package router

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"lmsync/internal/config"
	"lmsync/internal/models"
	"lmsync/internal/roster"
	"lmsync/internal/sheets"
	"lmsync/internal/slack"
)

// Edit describes one spreadsheet edit: which sheet and cell, and the cell's
// displayed value after the edit.
type Edit struct {
	Sheet string
	Row   int
	Col   int
	Value string
}

// Action is the classification of an edit.
type Action int

const (
	// ActionIgnore: the edit is outside the two recognized trigger cells.
	ActionIgnore Action = iota
	// ActionCreateEvent: the roster's trigger column received the create sentinel.
	ActionCreateEvent
	// ActionDispatchReminder: the dashboard's trigger column received a reminder alias.
	ActionDispatchReminder
)

// Classify maps an edit to an action. It inspects only the edit itself and
// the configured layout; no I/O.
func Classify(cfg *config.Config, edit Edit) Action {
	value := strings.TrimSpace(edit.Value)
	switch edit.Sheet {
	case cfg.Sheets.Events.Name:
		if edit.Col == cfg.Sheets.Events.Columns.Trigger && value == cfg.Values.CreateTrigger {
			return ActionCreateEvent
		}
	case cfg.Sheets.Dashboard.Name:
		if edit.Col == cfg.Sheets.Dashboard.Columns.Trigger && cfg.RemindAlias(value) {
			return ActionDispatchReminder
		}
	}
	return ActionIgnore
}

// Router dispatches classified edits to their workflows.
type Router struct {
	logger     *slog.Logger
	store      sheets.Store
	calendar   roster.Calendar
	reconciler *roster.Reconciler
	notifier   slack.Sender
	cfg        *config.Config
	loc        *time.Location
	now        func() time.Time
}

// New creates a Router. The location governs how roster date/time cells are
// interpreted and how the last-reminder timestamp is rendered.
func New(logger *slog.Logger, store sheets.Store, calendar roster.Calendar, reconciler *roster.Reconciler, notifier slack.Sender, cfg *config.Config, loc *time.Location) *Router {
	return &Router{
		logger:     logger,
		store:      store,
		calendar:   calendar,
		reconciler: reconciler,
		notifier:   notifier,
		cfg:        cfg,
		loc:        loc,
		now:        time.Now,
	}
}

// SetClock overrides the time source. Used by tests.
func (r *Router) SetClock(now func() time.Time) {
	r.now = now
}

// HandleEdit routes one edit. Workflow failures are contained: event
// creation surfaces them as sentinel values in the trigger cell, reminder
// dispatch logs them. Neither is returned to the caller.
func (r *Router) HandleEdit(ctx context.Context, edit Edit) {
	switch Classify(r.cfg, edit) {
	case ActionCreateEvent:
		r.createEvent(ctx, edit)
	case ActionDispatchReminder:
		r.dispatchReminder(ctx, edit)
	case ActionIgnore:
		r.logger.Debug("Edit not recognized as a trigger, ignoring.", "sheet", edit.Sheet, "col", edit.Col)
	}
}

// createEvent reads the edited row, validates its date and time cells,
// creates the calendar event and writes the outcome sentinels back. A
// validation failure writes the invalid-date sentinel; any other failure
// writes the generic error sentinel. One bad row never blocks others.
func (r *Router) createEvent(ctx context.Context, edit Edit) {
	layout := r.cfg.Sheets.Events
	setTrigger := func(value string) {
		if err := r.store.UpdateCell(ctx, layout.Name, edit.Row, layout.Columns.Trigger, value); err != nil {
			r.logger.Error("Failed to write trigger cell", "row", edit.Row, "error", err)
		}
	}

	rows, err := r.store.ReadRange(ctx, layout.Name, edit.Row, 1, 1, layout.Columns.TargetGroup)
	if err != nil || len(rows) == 0 {
		r.logger.Error("Failed to read roster row", "row", edit.Row, "error", err)
		setTrigger(r.cfg.Values.ErrorGeneral)
		return
	}
	row := rows[0]
	cell := func(col int) string {
		if col < 1 || col > len(row) {
			return ""
		}
		return strings.TrimSpace(row[col-1])
	}

	courseName := cell(layout.Columns.CourseName)
	details := cell(layout.Columns.Details)
	group := cell(layout.Columns.TargetGroup)
	if group == "" {
		group = models.ScopeAll
	}

	date, errDate := time.ParseInLocation(r.cfg.DateLayout, cell(layout.Columns.CourseDate), r.loc)
	startClock, errStart := time.Parse(r.cfg.TimeLayout, cell(layout.Columns.StartTime))
	endClock, errEnd := time.Parse(r.cfg.TimeLayout, cell(layout.Columns.EndTime))
	if errDate != nil || errStart != nil || errEnd != nil {
		r.logger.Warn("Roster row has non-date values, event not created.",
			"row", edit.Row, "date", errDate, "start", errStart, "end", errEnd)
		setTrigger(r.cfg.Values.ErrorDates)
		return
	}

	start := atClock(date, startClock, r.loc)
	end := atClock(date, endClock, r.loc)
	title := fmt.Sprintf("[%s] %s", group, courseName)

	event, err := r.calendar.CreateEvent(ctx, title, start, end, details)
	if err != nil {
		r.logger.Error("Failed to create calendar event", "title", title, "error", err)
		setTrigger(r.cfg.Values.ErrorGeneral)
		return
	}

	setTrigger(r.cfg.Values.Created)
	if err := r.store.UpdateCell(ctx, layout.Name, edit.Row, layout.Columns.EventID, models.NormalizeEventID(event.ID)); err != nil {
		r.logger.Error("Failed to write event id cell", "row", edit.Row, "error", err)
	}
	r.logger.Info("Created event from roster row.", "row", edit.Row, "title", title, "eventID", event.ID)
}

// dispatchReminder forces a full reconciliation so the reminder reflects
// live calendar state, then notifies everyone in the row's group still
// unbooked for the row's course. The trigger cell is cleared and the
// last-run timestamp set regardless of whether the send succeeded.
func (r *Router) dispatchReminder(ctx context.Context, edit Edit) {
	layout := r.cfg.Sheets.Dashboard

	group, err := r.store.ReadCell(ctx, layout.Name, edit.Row, layout.Columns.Group)
	if err != nil {
		r.logger.Error("Failed to read dashboard row", "row", edit.Row, "error", err)
		return
	}
	course, err := r.store.ReadCell(ctx, layout.Name, edit.Row, layout.Columns.Course)
	if err != nil {
		r.logger.Error("Failed to read dashboard row", "row", edit.Row, "error", err)
		return
	}
	req := models.ReminderRequest{Group: strings.TrimSpace(group), Course: strings.TrimSpace(course)}
	r.logger.Info("Reminder requested.", "group", req.Group, "course", req.Course)

	// Statuses must reflect the live calendar, not the last run.
	if err := r.reconciler.Refresh(ctx); err != nil {
		r.logger.Error("Reconciliation before reminder failed", "error", err)
		return
	}

	mentions, err := r.unbookedMentions(ctx, req)
	if err != nil {
		r.logger.Error("Failed to compute reminder list", "group", req.Group, "course", req.Course, "error", err)
		return
	}

	var text string
	if len(mentions) > 0 {
		text = fmt.Sprintf("[%s / %s] 以下の皆さんはこのコースが未予約です。LMSを確認して予約してください。\n", req.Group, req.Course) +
			strings.Join(mentions, "\n") + "\n\n" + r.cfg.SiteURL
	} else {
		text = fmt.Sprintf("[%s / %s] は全員予約済みです！ 🎉", req.Group, req.Course)
	}

	if !r.notifier.Send(ctx, text) {
		r.logger.Warn("Reminder send failed, continuing.", "group", req.Group, "course", req.Course)
	}

	stamp := r.now().In(r.loc).Format("2006/01/02 15:04:05")
	if err := r.store.UpdateCell(ctx, layout.Name, edit.Row, layout.Columns.LastReminder, stamp); err != nil {
		r.logger.Error("Failed to write last-reminder cell", "row", edit.Row, "error", err)
	}
	if err := r.store.UpdateCell(ctx, layout.Name, edit.Row, layout.Columns.Trigger, ""); err != nil {
		r.logger.Error("Failed to clear trigger cell", "row", edit.Row, "error", err)
	}
}

// unbookedMentions filters the attendee roster to the request's group and
// not-booked status for the request's course, deduplicated and mapped to
// mention tokens.
func (r *Router) unbookedMentions(ctx context.Context, req models.ReminderRequest) ([]string, error) {
	layout := r.cfg.Sheets.Attendees

	col, err := roster.FindCourseColumn(ctx, r.store, r.cfg, req.Course)
	if err != nil {
		return nil, err
	}
	if col == 0 {
		return nil, fmt.Errorf("course %q is not in the roster header", req.Course)
	}

	last, err := r.store.LastRow(ctx, layout.Name)
	if err != nil {
		return nil, err
	}
	if last < layout.FirstRow {
		return nil, nil
	}
	rows, err := r.store.ReadRange(ctx, layout.Name, layout.FirstRow, 1, last-layout.FirstRow+1, col)
	if err != nil {
		return nil, err
	}

	var mentions []string
	seen := make(map[string]bool)
	for _, row := range rows {
		email := strings.TrimSpace(rowValue(row, layout.Columns.Email))
		if r.cfg.Invalid(email) {
			continue
		}
		if strings.TrimSpace(rowValue(row, layout.Columns.Group)) != req.Group {
			continue
		}
		if strings.TrimSpace(rowValue(row, col)) != r.cfg.Values.NotBooked {
			continue
		}
		mention := "@" + strings.SplitN(models.NormalizeEmail(email), "@", 2)[0]
		if seen[mention] {
			continue
		}
		seen[mention] = true
		mentions = append(mentions, mention)
	}
	return mentions, nil
}

func rowValue(row []string, col int) string {
	if col < 1 || col > len(row) {
		return ""
	}
	return row[col-1]
}

// atClock combines a date with a wall-clock time in the given location.
func atClock(date, clock time.Time, loc *time.Location) time.Time {
	return time.Date(date.Year(), date.Month(), date.Day(), clock.Hour(), clock.Minute(), 0, 0, loc)
}
