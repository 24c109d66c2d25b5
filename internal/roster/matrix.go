package roster

import (
	"context"
	"fmt"

	"lmsync/internal/config"
	"lmsync/internal/models"
	"lmsync/internal/sheets"
)

// CourseHeaders reads the ordered list of valid course names from the
// attendee roster's header row.
func CourseHeaders(ctx context.Context, store sheets.Store, cfg *config.Config) ([]string, error) {
	layout := cfg.Sheets.Attendees
	rows, err := store.ReadRange(ctx, layout.Name, 1, layout.Columns.CourseStart, 1, layout.CourseCount)
	if err != nil {
		return nil, fmt.Errorf("failed to read course header row: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("attendee roster %q has no header row", layout.Name)
	}
	return rows[0], nil
}

// FindCourseColumn returns the absolute sheet column of a course within the
// status block, matched by header name. Returns 0 when the course is not in
// the header.
func FindCourseColumn(ctx context.Context, store sheets.Store, cfg *config.Config, course string) (int, error) {
	headers, err := CourseHeaders(ctx, store, cfg)
	if err != nil {
		return 0, err
	}
	for i, name := range headers {
		if name == course {
			return cfg.Sheets.Attendees.Columns.CourseStart + i, nil
		}
	}
	return 0, nil
}

// FindAttendeeRow returns the sheet row whose email column matches the
// given email case-insensitively, or 0 when no row matches.
func FindAttendeeRow(ctx context.Context, store sheets.Store, cfg *config.Config, email string) (int, error) {
	layout := cfg.Sheets.Attendees
	want := models.NormalizeEmail(email)

	last, err := store.LastRow(ctx, layout.Name)
	if err != nil {
		return 0, fmt.Errorf("failed to read attendee roster: %w", err)
	}
	if last < layout.FirstRow {
		return 0, nil
	}

	rows, err := store.ReadRange(ctx, layout.Name, layout.FirstRow, layout.Columns.Email, last-layout.FirstRow+1, 1)
	if err != nil {
		return 0, fmt.Errorf("failed to read attendee roster: %w", err)
	}
	for i, row := range rows {
		if models.NormalizeEmail(cellAt(row, 1)) == want {
			return layout.FirstRow + i, nil
		}
	}
	return 0, nil
}

// BuildMatrix builds the attendance matrix from the attendee roster: every
// valid attendee gets one entry per header course, initialized to the
// not-booked sentinel. Stored statuses are deliberately not read; the matrix
// is recomputed from calendar ground truth by the reconciler.
func BuildMatrix(ctx context.Context, store sheets.Store, cfg *config.Config) (*models.Matrix, error) {
	layout := cfg.Sheets.Attendees

	courses, err := CourseHeaders(ctx, store, cfg)
	if err != nil {
		return nil, err
	}

	matrix := &models.Matrix{
		Courses:   courses,
		Attendees: make(map[string]*models.Attendee),
	}

	last, err := store.LastRow(ctx, layout.Name)
	if err != nil {
		return nil, fmt.Errorf("failed to read attendee roster: %w", err)
	}
	if last < layout.FirstRow {
		return matrix, nil
	}

	width := layout.Columns.CourseStart + layout.CourseCount - 1
	rows, err := store.ReadRange(ctx, layout.Name, layout.FirstRow, 1, last-layout.FirstRow+1, width)
	if err != nil {
		return nil, fmt.Errorf("failed to read attendee roster: %w", err)
	}

	for i, row := range rows {
		email := cellAt(row, layout.Columns.Email)
		if cfg.Invalid(email) {
			continue
		}
		normalized := models.NormalizeEmail(email)
		status := make(map[string]string, len(courses))
		for _, course := range courses {
			status[course] = cfg.Values.NotBooked
		}
		attendee := &models.Attendee{
			Email:  normalized,
			Name:   cellAt(row, layout.Columns.Name),
			Group:  cellAt(row, layout.Columns.Group),
			Row:    layout.FirstRow + i,
			Status: status,
		}
		if _, seen := matrix.Attendees[normalized]; !seen {
			matrix.Order = append(matrix.Order, normalized)
		}
		matrix.Attendees[normalized] = attendee
	}
	return matrix, nil
}
