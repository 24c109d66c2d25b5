package roster

import (
	"context"
	"reflect"
	"testing"
	"time"

	"lmsync/internal/models"
	"lmsync/internal/sheets"
)

var testClock = func() time.Time {
	return time.Date(2026, time.June, 15, 12, 0, 0, 0, time.UTC)
}

func newTestReconciler(store *sheets.MemStore, cal Calendar) *Reconciler {
	r := NewReconciler(testLogger, store, cal, testConfig())
	r.SetClock(testClock)
	return r
}

func seededEvent(id string, guests ...string) *models.Event {
	return &models.Event{
		ID:     id,
		Start:  time.Date(2026, time.June, 1, 10, 0, 0, 0, time.UTC),
		End:    time.Date(2026, time.June, 1, 11, 0, 0, 0, time.UTC),
		Guests: guests,
	}
}

func TestReconcileWindow(t *testing.T) {
	now := time.Date(2026, time.June, 15, 12, 0, 0, 0, time.UTC)
	start, end := ReconcileWindow(now)
	if start.Year() != 2026 || start.Month() != time.January || start.Day() != 1 {
		t.Errorf("unexpected window start: %v", start)
	}
	if end.Year() != 2026 || end.Month() != time.December || end.Day() != 31 {
		t.Errorf("unexpected window end: %v", end)
	}
}

// Guest on an All-scoped event becomes booked regardless of group.
func TestRefreshMarksBookedForAllScope(t *testing.T) {
	cfg := testConfig()
	store := seedStore(cfg, [][]string{
		eventRow("Onboarding", "E1", "All"),
	}, [][]string{
		{"Alice", "a@x.com", "G1", "", ""},
	})
	cal := NewMemCalendar()
	cal.Add(seededEvent("E1", "a@x.com"))

	if err := newTestReconciler(store, cal).Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}

	if got := store.Cell(cfg.Sheets.Attendees.Name, 2, 4); got != cfg.Values.Booked {
		t.Errorf("Onboarding status = %q, want booked", got)
	}
	if got := store.Cell(cfg.Sheets.Attendees.Name, 2, 5); got != cfg.Values.NotBooked {
		t.Errorf("Compliance status = %q, want not-booked", got)
	}
}

// Guest on a group-scoped event stays not-booked when the groups differ.
func TestRefreshRespectsGroupScope(t *testing.T) {
	cfg := testConfig()
	store := seedStore(cfg, [][]string{
		eventRow("Onboarding", "E1", "G2"),
	}, [][]string{
		{"Alice", "a@x.com", "G1", "", ""},
		{"Bob", "b@x.com", "G2", "", ""},
	})
	cal := NewMemCalendar()
	cal.Add(seededEvent("E1", "a@x.com", "b@x.com"))

	if err := newTestReconciler(store, cal).Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}

	if got := store.Cell(cfg.Sheets.Attendees.Name, 2, 4); got != cfg.Values.NotBooked {
		t.Errorf("G1 attendee must stay not-booked, got %q", got)
	}
	if got := store.Cell(cfg.Sheets.Attendees.Name, 3, 4); got != cfg.Values.Booked {
		t.Errorf("G2 attendee must become booked, got %q", got)
	}
}

// Statuses are recomputed from the calendar, never carried over: a stale
// booked cell with no backing calendar guest reverts to not-booked.
func TestRefreshSelfHeals(t *testing.T) {
	cfg := testConfig()
	store := seedStore(cfg, [][]string{
		eventRow("Onboarding", "E1", "All"),
	}, [][]string{
		{"Alice", "a@x.com", "G1", cfg.Values.Booked, cfg.Values.Booked},
	})
	cal := NewMemCalendar()
	cal.Add(seededEvent("E1")) // no guests

	if err := newTestReconciler(store, cal).Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}

	for col := 4; col <= 5; col++ {
		if got := store.Cell(cfg.Sheets.Attendees.Name, 2, col); got != cfg.Values.NotBooked {
			t.Errorf("col %d: stale booked status must revert, got %q", col, got)
		}
	}
}

// Running twice against an unchanged calendar yields a bit-identical
// status region.
func TestRefreshIsIdempotent(t *testing.T) {
	cfg := testConfig()
	store := seedStore(cfg, [][]string{
		eventRow("Onboarding", "E1", "All"),
		eventRow("Compliance", "E2", "G1"),
	}, [][]string{
		{"Alice", "a@x.com", "G1", "", ""},
		{"Bob", "b@x.com", "G2", "", ""},
	})
	cal := NewMemCalendar()
	cal.Add(seededEvent("E1", "a@x.com", "b@x.com"))
	cal.Add(seededEvent("E2", "a@x.com", "b@x.com"))
	ctx := context.Background()
	r := newTestReconciler(store, cal)

	readRegion := func() [][]string {
		region, err := store.ReadRange(ctx, cfg.Sheets.Attendees.Name, 2, 4, 2, 2)
		if err != nil {
			t.Fatalf("ReadRange failed: %v", err)
		}
		return region
	}

	if err := r.Refresh(ctx); err != nil {
		t.Fatalf("first Refresh failed: %v", err)
	}
	first := readRegion()
	if err := r.Refresh(ctx); err != nil {
		t.Fatalf("second Refresh failed: %v", err)
	}
	second := readRegion()

	if !reflect.DeepEqual(first, second) {
		t.Errorf("status region changed between runs:\n%v\n%v", first, second)
	}
	// Sanity: E2 is G1-scoped, so only Alice gets Compliance.
	want := [][]string{
		{cfg.Values.Booked, cfg.Values.Booked},
		{cfg.Values.Booked, cfg.Values.NotBooked},
	}
	if !reflect.DeepEqual(first, want) {
		t.Errorf("unexpected status region: %v, want %v", first, want)
	}
}

// An empty catalog is a logged no-op: nothing is written.
func TestRefreshEmptyCatalogNoOp(t *testing.T) {
	cfg := testConfig()
	store := seedStore(cfg, nil, [][]string{
		{"Alice", "a@x.com", "G1", cfg.Values.Booked, ""},
	})
	cal := NewMemCalendar()

	if err := newTestReconciler(store, cal).Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	if store.Writes != 0 {
		t.Errorf("expected no writes with empty catalog, got %d", store.Writes)
	}
}

// Events outside the catalog do not affect statuses.
func TestApplyIgnoresUncataloguedEvents(t *testing.T) {
	cfg := testConfig()
	matrix := &models.Matrix{
		Courses: []string{"Onboarding"},
		Attendees: map[string]*models.Attendee{
			"a@x.com": {Email: "a@x.com", Group: "G1", Row: 2, Status: map[string]string{"Onboarding": cfg.Values.NotBooked}},
		},
		Order: []string{"a@x.com"},
	}
	catalog := models.Catalog{"E1": {Course: "Onboarding", Scope: models.ScopeAll}}

	Apply(matrix, catalog, []*models.Event{seededEvent("E9", "a@x.com")}, cfg.Values.Booked)
	if matrix.Attendees["a@x.com"].Status["Onboarding"] != cfg.Values.NotBooked {
		t.Error("uncatalogued event must not mark anyone booked")
	}

	// Guest emails are matched case-insensitively.
	Apply(matrix, catalog, []*models.Event{seededEvent("E1", "A@X.COM")}, cfg.Values.Booked)
	if matrix.Attendees["a@x.com"].Status["Onboarding"] != cfg.Values.Booked {
		t.Error("catalogued event guest must be marked booked")
	}
}
