package roster

import (
	"log/slog"

	"lmsync/internal/config"
	"lmsync/internal/sheets"
)

var testLogger = slog.New(slog.DiscardHandler)

// testConfig is the default layout shrunk to two course columns.
func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Sheets.Attendees.CourseCount = 2
	cfg.SiteURL = "https://lms.example.com"
	return cfg
}

// eventRow builds one event roster row: course, trigger state and id and
// target group in their configured columns.
func eventRow(course, id, group string) []string {
	return []string{course, "2026/06/01", "10:00", "11:00", "details", "", id, group}
}

// seedStore seeds the event and attendee sheets. attendeeRows are
// (name, email, group, status1, status2).
func seedStore(cfg *config.Config, eventRows, attendeeRows [][]string) *sheets.MemStore {
	store := sheets.NewMemStore()

	events := [][]string{{"単元名", "日付", "開始", "終了", "詳細", "トリガー", "イベントID", "対象G"}}
	events = append(events, eventRows...)
	store.Seed(cfg.Sheets.Events.Name, events)

	attendees := [][]string{{"名前", "メールアドレス", "グループ", "Onboarding", "Compliance"}}
	attendees = append(attendees, attendeeRows...)
	store.Seed(cfg.Sheets.Attendees.Name, attendees)

	return store
}
