package roster

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"lmsync/internal/config"
	"lmsync/internal/models"
	"lmsync/internal/sheets"
)

// Reconciler rebuilds the attendance matrix from calendar ground truth and
// persists it in one bulk write. It never reads previously stored statuses:
// a full recompute self-corrects any missed incremental update.
type Reconciler struct {
	logger   *slog.Logger
	store    sheets.Store
	calendar Calendar
	cfg      *config.Config
	now      func() time.Time
}

// NewReconciler creates a Reconciler over the given collaborators.
func NewReconciler(logger *slog.Logger, store sheets.Store, calendar Calendar, cfg *config.Config) *Reconciler {
	return &Reconciler{
		logger:   logger,
		store:    store,
		calendar: calendar,
		cfg:      cfg,
		now:      time.Now,
	}
}

// SetClock overrides the time source. Used by tests.
func (r *Reconciler) SetClock(now func() time.Time) {
	r.now = now
}

// ReconcileWindow is the bounded time window reconciliation looks at:
// January 1 through December 31 of now's calendar year. Events spanning a
// year boundary fall outside it; that boundary behavior is inherited from
// the system this replaces.
func ReconcileWindow(now time.Time) (time.Time, time.Time) {
	start := time.Date(now.Year(), time.January, 1, 0, 0, 0, 0, now.Location())
	end := time.Date(now.Year(), time.December, 31, 0, 0, 0, 0, now.Location())
	return start, end
}

// Refresh performs one full reconciliation: load the catalog, build the
// matrix, mark booked statuses from calendar guest lists, and overwrite the
// status region. Store and calendar failures are fatal and returned so the
// run is visibly failed rather than silently partial.
func (r *Reconciler) Refresh(ctx context.Context) error {
	r.logger.Info("Starting attendance reconciliation.")

	catalog, err := LoadCatalog(ctx, r.store, r.cfg)
	if err != nil {
		return err
	}
	if len(catalog) == 0 {
		r.logger.Info("Event catalog is empty, nothing to reconcile.")
		return nil
	}

	matrix, err := BuildMatrix(ctx, r.store, r.cfg)
	if err != nil {
		return err
	}
	if len(matrix.Attendees) == 0 {
		r.logger.Info("Attendee roster is empty, nothing to reconcile.")
		return nil
	}

	start, end := ReconcileWindow(r.now())
	events, err := r.calendar.EventsBetween(ctx, start, end)
	if err != nil {
		return fmt.Errorf("failed to enumerate calendar events: %w", err)
	}
	r.logger.Info("Fetched calendar events.", "count", len(events), "from", start, "to", end)

	Apply(matrix, catalog, events, r.cfg.Values.Booked)

	writer := NewStatusWriter(r.logger, r.store, r.cfg)
	if err := writer.Write(ctx, matrix); err != nil {
		return err
	}

	r.logger.Info("Reconciliation finished.", "attendees", len(matrix.Attendees), "events", len(catalog))
	return nil
}

// Apply marks attendees booked for every (event, guest) pairing that passes
// the audience rule: the event must be in the catalog, the guest must be a
// known attendee, and the event's scope must be All or equal the attendee's
// group. Everything else keeps its initialized not-booked status. Apply is
// pure over its inputs aside from mutating the matrix.
func Apply(matrix *models.Matrix, catalog models.Catalog, events []*models.Event, booked string) {
	for _, event := range events {
		entry, ok := catalog.Lookup(event.ID)
		if !ok {
			continue
		}
		for _, guest := range event.Guests {
			attendee, ok := matrix.Get(guest)
			if !ok {
				continue
			}
			if entry.Scope == models.ScopeAll || entry.Scope == attendee.Group {
				attendee.Status[entry.Course] = booked
			}
		}
	}
}
