package models

import (
	"strings"
	"time"
)

// ScopeAll is the audience scope that admits guests from every group.
const ScopeAll = "All"

// Event represents a calendar event, independent of the calendar provider.
// ID is the provider identifier with the domain suffix stripped.
type Event struct {
	ID          string
	Title       string
	Description string
	Start       time.Time
	End         time.Time
	Guests      []string // guest emails as reported by the provider
}

// CatalogEntry maps a calendar event to the course it belongs to and the
// audience it is intended for.
type CatalogEntry struct {
	Course string
	Scope  string // ScopeAll or a specific group name
}

// Catalog maps calendar-event identifiers to their course and audience
// scope. Duplicate identifiers are last-write-wins during construction.
type Catalog map[string]CatalogEntry

// Lookup is a point lookup by event identifier. The identifier is
// normalized first, so raw provider ids resolve too.
func (c Catalog) Lookup(id string) (CatalogEntry, bool) {
	entry, ok := c[NormalizeEventID(id)]
	return entry, ok
}

// Attendee is one row of the attendee roster. Status always carries one
// entry per known course.
type Attendee struct {
	Email  string // normalized
	Name   string
	Group  string
	Row    int               // 1-based sheet row the attendee was read from
	Status map[string]string // course name -> status sentinel
}

// Matrix is the attendance matrix: attendee identifier to per-course
// status, plus the roster's row order for serialization.
type Matrix struct {
	Courses   []string // ordered course names from the header row
	Attendees map[string]*Attendee
	Order     []string // normalized emails in roster row order
}

// Get returns the attendee for a raw email, normalizing it first.
func (m *Matrix) Get(email string) (*Attendee, bool) {
	a, ok := m.Attendees[NormalizeEmail(email)]
	return a, ok
}

// FormSubmission is a form-response trigger payload. Either the structured
// fields or NamedValues may be populated; extraction must support both.
type FormSubmission struct {
	RespondentEmail string              `json:"respondent_email"`
	ItemResponses   []string            `json:"item_responses"`
	NamedValues     map[string][]string `json:"named_values"`
}

// ReminderRequest is derived from one edited dashboard cell.
type ReminderRequest struct {
	Group  string
	Course string
}

// NormalizeEmail canonicalizes an email for identity comparison.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// NormalizeEventID strips the provider's domain suffix from an event
// identifier, e.g. "abc123@google.com" -> "abc123".
func NormalizeEventID(id string) string {
	id = strings.TrimSpace(id)
	if i := strings.Index(id, "@"); i >= 0 {
		return id[:i]
	}
	return id
}
