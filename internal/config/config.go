package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// EventColumns maps the column roles of the event roster sheet (1-based,
// matching spreadsheet column numbering).
type EventColumns struct {
	CourseName  int `yaml:"course_name"`
	CourseDate  int `yaml:"course_date"`
	StartTime   int `yaml:"start_time"`
	EndTime     int `yaml:"end_time"`
	Details     int `yaml:"details"`
	Trigger     int `yaml:"trigger"`
	EventID     int `yaml:"event_id"`
	TargetGroup int `yaml:"target_group"`
}

// AttendeeColumns maps the column roles of the attendee roster sheet. The
// per-course status block starts at CourseStart and spans CourseCount columns,
// ordered to match the header row.
type AttendeeColumns struct {
	Name        int `yaml:"name"`
	Email       int `yaml:"email"`
	Group       int `yaml:"group"`
	CourseStart int `yaml:"course_start"`
}

// DashboardColumns maps the column roles of the dashboard control sheet.
type DashboardColumns struct {
	Group        int `yaml:"group"`
	Course       int `yaml:"course"`
	Trigger      int `yaml:"trigger"`
	LastReminder int `yaml:"last_reminder"`
}

// EventsSheet describes the event roster sheet layout.
type EventsSheet struct {
	Name     string       `yaml:"name"`
	FirstRow int          `yaml:"first_row"`
	Columns  EventColumns `yaml:"columns"`
}

// AttendeesSheet describes the attendee roster sheet layout.
type AttendeesSheet struct {
	Name        string          `yaml:"name"`
	FirstRow    int             `yaml:"first_row"`
	CourseCount int             `yaml:"course_count"`
	Columns     AttendeeColumns `yaml:"columns"`
}

// DashboardSheet describes the dashboard control sheet layout.
type DashboardSheet struct {
	Name    string           `yaml:"name"`
	Columns DashboardColumns `yaml:"columns"`
}

// Sheets groups the three sheet layouts.
type Sheets struct {
	Events    EventsSheet    `yaml:"events"`
	Attendees AttendeesSheet `yaml:"attendees"`
	Dashboard DashboardSheet `yaml:"dashboard"`
}

// Values holds the status and trigger sentinels written to and matched
// against spreadsheet cells.
type Values struct {
	Booked        string   `yaml:"booked"`
	NotBooked     string   `yaml:"not_booked"`
	CreateTrigger string   `yaml:"create_trigger"`
	Created       string   `yaml:"created"`
	ErrorGeneral  string   `yaml:"error_general"`
	ErrorDates    string   `yaml:"error_dates"`
	RemindAliases []string `yaml:"remind_aliases"`
	InvalidValues []string `yaml:"invalid_values"`
}

// Notifier configures the watermark-based new-row Slack notifier.
type Notifier struct {
	DataSheet       string   `yaml:"data_sheet"`
	WatermarkSheet  string   `yaml:"watermark_sheet"`
	IDHeader        string   `yaml:"id_header"`
	StatusHeader    string   `yaml:"status_header"`
	StatusValue     string   `yaml:"status_value"`
	SituationHeader string   `yaml:"situation_header"`
	SituationValue  string   `yaml:"situation_value"`
	NameHeaders     []string `yaml:"name_headers"`
	RecordURL       string   `yaml:"record_url"` // printf template, %s = record id
}

// Config is the top-level application configuration.
type Config struct {
	SpreadsheetID string `yaml:"spreadsheet_id"`
	CalendarID    string `yaml:"calendar_id"`
	SiteURL       string `yaml:"site_url"`
	Timezone      string `yaml:"timezone"`

	// DateLayout and TimeLayout are the formats the roster's date and
	// start/end time cells must parse as. Cells that do not parse are
	// treated as non-date values.
	DateLayout string `yaml:"date_layout"`
	TimeLayout string `yaml:"time_layout"`

	Sheets   Sheets   `yaml:"sheets"`
	Values   Values   `yaml:"values"`
	Notifier Notifier `yaml:"notifier"`

	SlackWebhookURL string `yaml:"slack_webhook_url"`
	SlackBotToken   string `yaml:"slack_bot_token"`
	SlackChannelID  string `yaml:"slack_channel_id"`
}

// Default returns the built-in configuration matching the production
// spreadsheet layout.
func Default() *Config {
	return &Config{
		Timezone:   "Asia/Tokyo",
		DateLayout: "2006/01/02",
		TimeLayout: "15:04",
		Sheets: Sheets{
			Events: EventsSheet{
				Name:     "予約一覧",
				FirstRow: 2,
				Columns: EventColumns{
					CourseName:  1,
					CourseDate:  2,
					StartTime:   3,
					EndTime:     4,
					Details:     5,
					Trigger:     6,
					EventID:     7,
					TargetGroup: 8,
				},
			},
			Attendees: AttendeesSheet{
				Name:        "参加情報",
				FirstRow:    2,
				CourseCount: 12,
				Columns: AttendeeColumns{
					Name:        1,
					Email:       2,
					Group:       3,
					CourseStart: 4,
				},
			},
			Dashboard: DashboardSheet{
				Name: "ダッシュボード",
				Columns: DashboardColumns{
					Group:        1,
					Course:       2,
					Trigger:      6,
					LastReminder: 7,
				},
			},
		},
		Values: Values{
			Booked:        "予約済",
			NotBooked:     "未",
			CreateTrigger: "作成",
			Created:       "作成済み",
			ErrorGeneral:  "エラー",
			ErrorDates:    "日付エラー",
			RemindAliases: []string{"リマインド", "未予約者に対してリマインド"},
			InvalidValues: []string{"", "-", "—", "N/A"},
		},
		Notifier: Notifier{
			WatermarkSheet: "var",
			IDHeader:       "CONTRACT_ID",
		},
	}
}

// Load reads a YAML config file, fills defaults for missing values and
// applies environment overrides. An empty path yields the defaults plus
// environment overrides.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}
	cfg.Normalize()
	cfg.applyEnv()
	return cfg, nil
}

// Normalize fills in missing/zero values so partially-filled configs still
// behave correctly.
func (c *Config) Normalize() {
	def := Default()
	if c.Timezone == "" {
		c.Timezone = def.Timezone
	}
	if c.DateLayout == "" {
		c.DateLayout = def.DateLayout
	}
	if c.TimeLayout == "" {
		c.TimeLayout = def.TimeLayout
	}
	if c.Sheets.Events.Name == "" {
		c.Sheets.Events = def.Sheets.Events
	}
	if c.Sheets.Attendees.Name == "" {
		c.Sheets.Attendees = def.Sheets.Attendees
	}
	if c.Sheets.Dashboard.Name == "" {
		c.Sheets.Dashboard = def.Sheets.Dashboard
	}
	if c.Sheets.Events.FirstRow == 0 {
		c.Sheets.Events.FirstRow = def.Sheets.Events.FirstRow
	}
	if c.Sheets.Attendees.FirstRow == 0 {
		c.Sheets.Attendees.FirstRow = def.Sheets.Attendees.FirstRow
	}
	if c.Sheets.Attendees.CourseCount == 0 {
		c.Sheets.Attendees.CourseCount = def.Sheets.Attendees.CourseCount
	}
	if c.Values.Booked == "" {
		c.Values = def.Values
	}
	if len(c.Values.RemindAliases) == 0 {
		c.Values.RemindAliases = def.Values.RemindAliases
	}
	if len(c.Values.InvalidValues) == 0 {
		c.Values.InvalidValues = def.Values.InvalidValues
	}
	if c.Notifier.WatermarkSheet == "" {
		c.Notifier.WatermarkSheet = def.Notifier.WatermarkSheet
	}
	if c.Notifier.IDHeader == "" {
		c.Notifier.IDHeader = def.Notifier.IDHeader
	}
}

func (c *Config) applyEnv() {
	for env, dst := range map[string]*string{
		"SPREADSHEET_ID":    &c.SpreadsheetID,
		"CALENDAR_ID":       &c.CalendarID,
		"SITE_URL":          &c.SiteURL,
		"SLACK_WEBHOOK_URL": &c.SlackWebhookURL,
		"SLACK_BOT_TOKEN":   &c.SlackBotToken,
		"SLACK_CHANNEL_ID":  &c.SlackChannelID,
	} {
		if v := os.Getenv(env); v != "" {
			*dst = v
		}
	}
}

// Invalid reports whether a cell value is a member of the configured
// blank/invalid sentinel set. Trimming is the caller's job; the set itself
// is matched verbatim.
func (c *Config) Invalid(value string) bool {
	for _, v := range c.Values.InvalidValues {
		if value == v {
			return true
		}
	}
	return false
}

// RemindAlias reports whether a trimmed trigger value is one of the
// configured reminder action aliases.
func (c *Config) RemindAlias(value string) bool {
	for _, v := range c.Values.RemindAliases {
		if value == v {
			return true
		}
	}
	return false
}
