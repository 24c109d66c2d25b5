package router

import (
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"

	"lmsync/internal/config"
	"lmsync/internal/models"
	"lmsync/internal/roster"
	"lmsync/internal/sheets"
)

var testLogger = slog.New(slog.DiscardHandler)

func testClock() time.Time {
	return time.Date(2026, time.June, 15, 14, 30, 5, 0, time.UTC)
}

// fakeSender records every message. Fail makes Send report failure.
type fakeSender struct {
	Messages []string
	Fail     bool
}

func (f *fakeSender) Send(_ context.Context, text string) bool {
	f.Messages = append(f.Messages, text)
	return !f.Fail
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Sheets.Attendees.CourseCount = 2
	cfg.SiteURL = "https://lms.example.com"
	return cfg
}

func newTestRouter(cfg *config.Config) (*Router, *sheets.MemStore, *roster.MemCalendar, *fakeSender) {
	store := sheets.NewMemStore()
	store.Seed(cfg.Sheets.Events.Name, [][]string{
		{"単元名", "日付", "開始", "終了", "詳細", "トリガー", "イベントID", "対象G"},
	})
	store.Seed(cfg.Sheets.Attendees.Name, [][]string{
		{"名前", "メールアドレス", "グループ", "Onboarding", "Compliance"},
	})
	store.Seed(cfg.Sheets.Dashboard.Name, [][]string{
		{"グループ", "コース", "", "", "", "トリガー", "最終リマインド"},
	})

	cal := roster.NewMemCalendar()
	reconciler := roster.NewReconciler(testLogger, store, cal, cfg)
	reconciler.SetClock(testClock)
	sender := &fakeSender{}

	r := New(testLogger, store, cal, reconciler, sender, cfg, time.UTC)
	r.SetClock(testClock)
	return r, store, cal, sender
}

func TestClassify(t *testing.T) {
	cfg := testConfig()
	cases := []struct {
		name string
		edit Edit
		want Action
	}{
		{"create trigger", Edit{Sheet: cfg.Sheets.Events.Name, Row: 2, Col: 6, Value: "作成"}, ActionCreateEvent},
		{"create trigger padded", Edit{Sheet: cfg.Sheets.Events.Name, Row: 2, Col: 6, Value: " 作成 "}, ActionCreateEvent},
		{"create wrong column", Edit{Sheet: cfg.Sheets.Events.Name, Row: 2, Col: 5, Value: "作成"}, ActionIgnore},
		{"create wrong value", Edit{Sheet: cfg.Sheets.Events.Name, Row: 2, Col: 6, Value: "作成済み"}, ActionIgnore},
		{"reminder short alias", Edit{Sheet: cfg.Sheets.Dashboard.Name, Row: 3, Col: 6, Value: "リマインド"}, ActionDispatchReminder},
		{"reminder long alias", Edit{Sheet: cfg.Sheets.Dashboard.Name, Row: 3, Col: 6, Value: "未予約者に対してリマインド"}, ActionDispatchReminder},
		{"reminder wrong column", Edit{Sheet: cfg.Sheets.Dashboard.Name, Row: 3, Col: 7, Value: "リマインド"}, ActionIgnore},
		{"unknown sheet", Edit{Sheet: "その他", Row: 1, Col: 6, Value: "作成"}, ActionIgnore},
		{"cleared trigger", Edit{Sheet: cfg.Sheets.Dashboard.Name, Row: 3, Col: 6, Value: ""}, ActionIgnore},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := Classify(cfg, c.edit); got != c.want {
				t.Errorf("Classify(%+v) = %v, want %v", c.edit, got, c.want)
			}
		})
	}
}

func TestCreateEvent(t *testing.T) {
	cfg := testConfig()
	r, store, cal, _ := newTestRouter(cfg)
	ctx := context.Background()
	events := cfg.Sheets.Events.Name

	store.Seed(events, [][]string{
		{"単元名", "日付", "開始", "終了", "詳細", "トリガー", "イベントID", "対象G"},
		{"Onboarding", "2026/07/01", "10:00", "11:30", "持ち物: PC", "作成", "", "G1"},
	})

	r.HandleEdit(ctx, Edit{Sheet: events, Row: 2, Col: 6, Value: "作成"})

	if got := store.Cell(events, 2, 6); got != cfg.Values.Created {
		t.Errorf("trigger cell = %q, want %q", got, cfg.Values.Created)
	}
	id := store.Cell(events, 2, 7)
	if id == "" {
		t.Fatal("event id cell not written")
	}
	event, err := cal.FindEvent(ctx, id)
	if err != nil {
		t.Fatalf("created event not on calendar: %v", err)
	}
	if event.Title != "[G1] Onboarding" {
		t.Errorf("event title = %q", event.Title)
	}
	if event.Description != "持ち物: PC" {
		t.Errorf("event description = %q", event.Description)
	}
	wantStart := time.Date(2026, time.July, 1, 10, 0, 0, 0, time.UTC)
	wantEnd := time.Date(2026, time.July, 1, 11, 30, 0, 0, time.UTC)
	if !event.Start.Equal(wantStart) || !event.End.Equal(wantEnd) {
		t.Errorf("event window = %v..%v, want %v..%v", event.Start, event.End, wantStart, wantEnd)
	}
}

func TestCreateEventBlankGroupDefaultsToAll(t *testing.T) {
	cfg := testConfig()
	r, store, cal, _ := newTestRouter(cfg)
	ctx := context.Background()
	events := cfg.Sheets.Events.Name

	store.Seed(events, [][]string{
		{"単元名", "日付", "開始", "終了", "詳細", "トリガー", "イベントID", "対象G"},
		{"Compliance", "2026/07/02", "13:00", "14:00", "", "作成", "", ""},
	})

	r.HandleEdit(ctx, Edit{Sheet: events, Row: 2, Col: 6, Value: "作成"})

	event, err := cal.FindEvent(ctx, store.Cell(events, 2, 7))
	if err != nil {
		t.Fatal(err)
	}
	if event.Title != "[All] Compliance" {
		t.Errorf("event title = %q, want group default All", event.Title)
	}
}

func TestCreateEventInvalidDates(t *testing.T) {
	cfg := testConfig()
	r, store, cal, _ := newTestRouter(cfg)
	ctx := context.Background()
	events := cfg.Sheets.Events.Name

	store.Seed(events, [][]string{
		{"単元名", "日付", "開始", "終了", "詳細", "トリガー", "イベントID", "対象G"},
		{"Onboarding", "7月1日", "10:00", "11:00", "", "作成", "", "G1"},
	})

	r.HandleEdit(ctx, Edit{Sheet: events, Row: 2, Col: 6, Value: "作成"})

	if got := store.Cell(events, 2, 6); got != cfg.Values.ErrorDates {
		t.Errorf("trigger cell = %q, want %q", got, cfg.Values.ErrorDates)
	}
	if got := store.Cell(events, 2, 7); got != "" {
		t.Errorf("event id cell = %q, want empty", got)
	}
	if got, _ := cal.EventsBetween(ctx, time.Time{}, time.Date(2100, 1, 1, 0, 0, 0, 0, time.UTC)); len(got) != 0 {
		t.Errorf("no event should exist, got %d", len(got))
	}
}

func TestCreateEventCalendarFailure(t *testing.T) {
	cfg := testConfig()
	r, store, cal, _ := newTestRouter(cfg)
	ctx := context.Background()
	events := cfg.Sheets.Events.Name
	cal.FailCreate = true

	store.Seed(events, [][]string{
		{"単元名", "日付", "開始", "終了", "詳細", "トリガー", "イベントID", "対象G"},
		{"Onboarding", "2026/07/01", "10:00", "11:00", "", "作成", "", "G1"},
	})

	r.HandleEdit(ctx, Edit{Sheet: events, Row: 2, Col: 6, Value: "作成"})

	if got := store.Cell(events, 2, 6); got != cfg.Values.ErrorGeneral {
		t.Errorf("trigger cell = %q, want %q", got, cfg.Values.ErrorGeneral)
	}
}

func TestDispatchReminder(t *testing.T) {
	cfg := testConfig()
	r, store, cal, sender := newTestRouter(cfg)
	ctx := context.Background()

	// Catalogued event placed inside the reconciliation window. Bob is on
	// the guest list, so after the forced refresh only Alice is unbooked.
	store.Seed(cfg.Sheets.Events.Name, [][]string{
		{"単元名", "日付", "開始", "終了", "詳細", "トリガー", "イベントID", "対象G"},
		{"Onboarding", "2026/07/01", "10:00", "11:00", "", "作成済み", "E1", "G1"},
	})
	store.Seed(cfg.Sheets.Attendees.Name, [][]string{
		{"名前", "メールアドレス", "グループ", "Onboarding", "Compliance"},
		{"Alice", "alice@x.com", "G1", "未", "未"},
		{"Bob", "bob@x.com", "G1", "未", "未"},
		{"Carol", "carol@x.com", "G2", "未", "未"},
	})
	store.Seed(cfg.Sheets.Dashboard.Name, [][]string{
		{"グループ", "コース", "", "", "", "トリガー", "最終リマインド"},
		{"G1", "Onboarding", "", "", "", "リマインド", ""},
	})
	cal.Add(&models.Event{
		ID:     "E1",
		Start:  time.Date(2026, time.July, 1, 10, 0, 0, 0, time.UTC),
		End:    time.Date(2026, time.July, 1, 11, 0, 0, 0, time.UTC),
		Guests: []string{"bob@x.com"},
	})

	r.HandleEdit(ctx, Edit{Sheet: cfg.Sheets.Dashboard.Name, Row: 2, Col: 6, Value: "リマインド"})

	if len(sender.Messages) != 1 {
		t.Fatalf("got %d messages, want 1", len(sender.Messages))
	}
	msg := sender.Messages[0]
	if !strings.Contains(msg, "[G1 / Onboarding]") {
		t.Errorf("message missing header: %q", msg)
	}
	if !strings.Contains(msg, "@alice") {
		t.Errorf("message missing unbooked mention: %q", msg)
	}
	if strings.Contains(msg, "@bob") || strings.Contains(msg, "@carol") {
		t.Errorf("booked or out-of-group attendee mentioned: %q", msg)
	}
	if !strings.Contains(msg, cfg.SiteURL) {
		t.Errorf("message missing site link: %q", msg)
	}

	// Reminder ran against refreshed statuses.
	if got := store.Cell(cfg.Sheets.Attendees.Name, 3, 4); got != cfg.Values.Booked {
		t.Errorf("refresh before reminder did not run, bob cell = %q", got)
	}

	dash := cfg.Sheets.Dashboard.Name
	if got := store.Cell(dash, 2, 6); got != "" {
		t.Errorf("trigger cell = %q, want cleared", got)
	}
	if got := store.Cell(dash, 2, 7); got != "2026/06/15 14:30:05" {
		t.Errorf("last-reminder cell = %q", got)
	}
}

func TestDispatchReminderAllBooked(t *testing.T) {
	cfg := testConfig()
	r, store, cal, sender := newTestRouter(cfg)
	ctx := context.Background()

	store.Seed(cfg.Sheets.Events.Name, [][]string{
		{"単元名", "日付", "開始", "終了", "詳細", "トリガー", "イベントID", "対象G"},
		{"Onboarding", "2026/07/01", "10:00", "11:00", "", "作成済み", "E1", "G1"},
	})
	store.Seed(cfg.Sheets.Attendees.Name, [][]string{
		{"名前", "メールアドレス", "グループ", "Onboarding", "Compliance"},
		{"Alice", "alice@x.com", "G1", "未", "未"},
	})
	store.Seed(cfg.Sheets.Dashboard.Name, [][]string{
		{"グループ", "コース", "", "", "", "トリガー", "最終リマインド"},
		{"G1", "Onboarding", "", "", "", "リマインド", ""},
	})
	cal.Add(&models.Event{
		ID:     "E1",
		Start:  time.Date(2026, time.July, 1, 10, 0, 0, 0, time.UTC),
		End:    time.Date(2026, time.July, 1, 11, 0, 0, 0, time.UTC),
		Guests: []string{"alice@x.com"},
	})

	r.HandleEdit(ctx, Edit{Sheet: cfg.Sheets.Dashboard.Name, Row: 2, Col: 6, Value: "リマインド"})

	if len(sender.Messages) != 1 {
		t.Fatalf("got %d messages, want 1", len(sender.Messages))
	}
	if !strings.Contains(sender.Messages[0], "全員予約済みです") {
		t.Errorf("message = %q, want all-booked text", sender.Messages[0])
	}
}

// A failed send still clears the trigger and stamps the run, so the sheet
// never wedges on a repeating trigger value.
func TestDispatchReminderSendFailure(t *testing.T) {
	cfg := testConfig()
	r, store, cal, sender := newTestRouter(cfg)
	ctx := context.Background()
	sender.Fail = true

	store.Seed(cfg.Sheets.Events.Name, [][]string{
		{"単元名", "日付", "開始", "終了", "詳細", "トリガー", "イベントID", "対象G"},
		{"Onboarding", "2026/07/01", "10:00", "11:00", "", "作成済み", "E1", "G1"},
	})
	store.Seed(cfg.Sheets.Attendees.Name, [][]string{
		{"名前", "メールアドレス", "グループ", "Onboarding", "Compliance"},
		{"Alice", "alice@x.com", "G1", "未", "未"},
	})
	store.Seed(cfg.Sheets.Dashboard.Name, [][]string{
		{"グループ", "コース", "", "", "", "トリガー", "最終リマインド"},
		{"G1", "Onboarding", "", "", "", "リマインド", ""},
	})
	cal.Add(&models.Event{
		ID:    "E1",
		Start: time.Date(2026, time.July, 1, 10, 0, 0, 0, time.UTC),
		End:   time.Date(2026, time.July, 1, 11, 0, 0, 0, time.UTC),
	})

	r.HandleEdit(ctx, Edit{Sheet: cfg.Sheets.Dashboard.Name, Row: 2, Col: 6, Value: "リマインド"})

	dash := cfg.Sheets.Dashboard.Name
	if got := store.Cell(dash, 2, 6); got != "" {
		t.Errorf("trigger cell = %q, want cleared", got)
	}
	if got := store.Cell(dash, 2, 7); got == "" {
		t.Error("last-reminder cell not stamped")
	}
}

func TestUnbookedMentionsDedupe(t *testing.T) {
	cfg := testConfig()
	r, store, _, _ := newTestRouter(cfg)
	ctx := context.Background()

	store.Seed(cfg.Sheets.Attendees.Name, [][]string{
		{"名前", "メールアドレス", "グループ", "Onboarding", "Compliance"},
		{"Alice", "alice@x.com", "G1", "未", "未"},
		{"Alice again", "Alice@X.com", "G1", "未", "未"},
		{"Placeholder", "-", "G1", "未", "未"},
	})

	mentions, err := r.unbookedMentions(ctx, models.ReminderRequest{Group: "G1", Course: "Onboarding"})
	if err != nil {
		t.Fatal(err)
	}
	if len(mentions) != 1 || mentions[0] != "@alice" {
		t.Errorf("mentions = %v, want [@alice]", mentions)
	}
}

func TestUnbookedMentionsUnknownCourse(t *testing.T) {
	cfg := testConfig()
	r, _, _, _ := newTestRouter(cfg)

	if _, err := r.unbookedMentions(context.Background(), models.ReminderRequest{Group: "G1", Course: "Pottery"}); err == nil {
		t.Error("expected an error for a course missing from the header")
	}
}
