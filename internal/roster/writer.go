package roster

import (
	"context"
	"fmt"
	"log/slog"

	"lmsync/internal/config"
	"lmsync/internal/models"
	"lmsync/internal/sheets"
)

// StatusWriter serializes a completed matrix back to the attendee roster's
// status region in exactly one bulk write, eliminating partial-row state
// within a run. It offers no protection against a concurrent invocation
// patching a single cell at the same time; invocations are assumed to be
// serial.
type StatusWriter struct {
	logger *slog.Logger
	store  sheets.Store
	cfg    *config.Config
}

// NewStatusWriter creates a StatusWriter.
func NewStatusWriter(logger *slog.Logger, store sheets.Store, cfg *config.Config) *StatusWriter {
	return &StatusWriter{logger: logger, store: store, cfg: cfg}
}

// Write overwrites the full status region (all attendee rows, all course
// columns). Rows that were skipped during matrix construction (invalid
// identifiers) keep their current cell values.
func (w *StatusWriter) Write(ctx context.Context, matrix *models.Matrix) error {
	layout := w.cfg.Sheets.Attendees
	if len(matrix.Courses) == 0 || len(matrix.Attendees) == 0 {
		return nil
	}

	firstRow := layout.FirstRow
	lastRow := firstRow - 1
	for _, email := range matrix.Order {
		if row := matrix.Attendees[email].Row; row > lastRow {
			lastRow = row
		}
	}
	if lastRow < firstRow {
		return nil
	}

	region, err := w.store.ReadRange(ctx, layout.Name, firstRow, layout.Columns.CourseStart, lastRow-firstRow+1, len(matrix.Courses))
	if err != nil {
		return fmt.Errorf("failed to read status region: %w", err)
	}
	// A store may return fewer rows than requested when the trailing ones
	// are blank; grow the region so those attendees are still written.
	for len(region) < lastRow-firstRow+1 {
		region = append(region, make([]string, len(matrix.Courses)))
	}

	for _, email := range matrix.Order {
		attendee := matrix.Attendees[email]
		i := attendee.Row - firstRow
		if i < 0 || i >= len(region) {
			continue
		}
		for j, course := range matrix.Courses {
			status := attendee.Status[course]
			if status == "" {
				status = w.cfg.Values.NotBooked
			}
			region[i][j] = status
		}
	}

	if err := w.store.WriteRange(ctx, layout.Name, firstRow, layout.Columns.CourseStart, region); err != nil {
		return fmt.Errorf("failed to write status region: %w", err)
	}
	w.logger.Info("Wrote status region.", "rows", len(region), "courses", len(matrix.Courses))
	return nil
}
