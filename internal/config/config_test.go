package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultLayout(t *testing.T) {
	cfg := Default()

	if cfg.Sheets.Events.Columns.EventID != 7 {
		t.Errorf("expected event id in column 7, got %d", cfg.Sheets.Events.Columns.EventID)
	}
	if cfg.Sheets.Attendees.Columns.CourseStart != 4 {
		t.Errorf("expected course block to start at column 4, got %d", cfg.Sheets.Attendees.Columns.CourseStart)
	}
	if cfg.Sheets.Attendees.CourseCount != 12 {
		t.Errorf("expected 12 course columns, got %d", cfg.Sheets.Attendees.CourseCount)
	}
	if cfg.Values.Booked == "" || cfg.Values.NotBooked == "" {
		t.Error("status sentinels must not be empty")
	}
}

func TestLoadFileAndNormalize(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	data := []byte("spreadsheet_id: sheet-1\ncalendar_id: cal-1\nsheets:\n  attendees:\n    name: roster\n    course_count: 3\n")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.SpreadsheetID != "sheet-1" || cfg.CalendarID != "cal-1" {
		t.Errorf("ids not loaded: %q %q", cfg.SpreadsheetID, cfg.CalendarID)
	}
	if cfg.Sheets.Attendees.Name != "roster" || cfg.Sheets.Attendees.CourseCount != 3 {
		t.Errorf("attendee layout not loaded: %+v", cfg.Sheets.Attendees)
	}
	// Omitted sections fall back to defaults.
	if cfg.Sheets.Events.Name == "" || cfg.Values.Booked == "" {
		t.Error("defaults not filled for omitted sections")
	}
	if cfg.Sheets.Attendees.FirstRow != 2 {
		t.Errorf("expected first row default 2, got %d", cfg.Sheets.Attendees.FirstRow)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("CALENDAR_ID", "env-cal")
	t.Setenv("SITE_URL", "https://lms.example.com")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.CalendarID != "env-cal" {
		t.Errorf("expected env calendar id, got %q", cfg.CalendarID)
	}
	if cfg.SiteURL != "https://lms.example.com" {
		t.Errorf("expected env site url, got %q", cfg.SiteURL)
	}
}

func TestInvalidAndRemindAlias(t *testing.T) {
	cfg := Default()

	for _, v := range []string{"", "-", "—", "N/A"} {
		if !cfg.Invalid(v) {
			t.Errorf("expected %q to be invalid", v)
		}
	}
	if cfg.Invalid("a@x.com") {
		t.Error("valid email flagged invalid")
	}

	if !cfg.RemindAlias("未予約者に対してリマインド") {
		t.Error("expected long-form reminder alias to match")
	}
	if cfg.RemindAlias("作成") {
		t.Error("create sentinel must not match reminder aliases")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load("/does/not/exist.yaml"); err == nil {
		t.Error("expected error for missing config file")
	}
}
