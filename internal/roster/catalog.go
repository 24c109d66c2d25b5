package roster

import (
	"context"
	"fmt"
	"strings"

	"lmsync/internal/config"
	"lmsync/internal/models"
	"lmsync/internal/sheets"
)

// LoadCatalog builds the event catalog from the event roster sheet: a
// mapping from event identifier to (course, audience scope). Rows whose
// identifier or course name is in the invalid-value set are skipped.
// Duplicate identifiers are last-write-wins. An empty sheet yields an empty
// catalog, not an error.
func LoadCatalog(ctx context.Context, store sheets.Store, cfg *config.Config) (models.Catalog, error) {
	layout := cfg.Sheets.Events
	catalog := models.Catalog{}

	last, err := store.LastRow(ctx, layout.Name)
	if err != nil {
		return nil, fmt.Errorf("failed to read event roster: %w", err)
	}
	if last < layout.FirstRow {
		return catalog, nil
	}

	rows, err := store.ReadRange(ctx, layout.Name, layout.FirstRow, 1, last-layout.FirstRow+1, layout.Columns.TargetGroup)
	if err != nil {
		return nil, fmt.Errorf("failed to read event roster: %w", err)
	}

	for _, row := range rows {
		id := cellAt(row, layout.Columns.EventID)
		course := cellAt(row, layout.Columns.CourseName)
		if cfg.Invalid(id) || cfg.Invalid(course) {
			continue
		}
		scope := cellAt(row, layout.Columns.TargetGroup)
		if scope == "" {
			scope = models.ScopeAll
		}
		catalog[models.NormalizeEventID(id)] = models.CatalogEntry{Course: course, Scope: scope}
	}
	return catalog, nil
}

// FindCatalogEntry is a point lookup: it scans the event roster for one
// identifier without building the full catalog. The second return value is
// false when the identifier is not present.
func FindCatalogEntry(ctx context.Context, store sheets.Store, cfg *config.Config, id string) (models.CatalogEntry, bool, error) {
	layout := cfg.Sheets.Events
	want := models.NormalizeEventID(strings.TrimSpace(id))
	if want == "" {
		return models.CatalogEntry{}, false, nil
	}

	last, err := store.LastRow(ctx, layout.Name)
	if err != nil {
		return models.CatalogEntry{}, false, fmt.Errorf("failed to read event roster: %w", err)
	}
	if last < layout.FirstRow {
		return models.CatalogEntry{}, false, nil
	}

	rows, err := store.ReadRange(ctx, layout.Name, layout.FirstRow, 1, last-layout.FirstRow+1, layout.Columns.TargetGroup)
	if err != nil {
		return models.CatalogEntry{}, false, fmt.Errorf("failed to read event roster: %w", err)
	}

	for _, row := range rows {
		rowID := cellAt(row, layout.Columns.EventID)
		if cfg.Invalid(rowID) {
			continue
		}
		if models.NormalizeEventID(rowID) == want {
			scope := cellAt(row, layout.Columns.TargetGroup)
			if scope == "" {
				scope = models.ScopeAll
			}
			return models.CatalogEntry{
				Course: cellAt(row, layout.Columns.CourseName),
				Scope:  scope,
			}, true, nil
		}
	}
	return models.CatalogEntry{}, false, nil
}

// cellAt returns the value of a 1-based column within a row slice, or ""
// when the row is shorter than that.
func cellAt(row []string, col int) string {
	if col < 1 || col > len(row) {
		return ""
	}
	return strings.TrimSpace(row[col-1])
}
