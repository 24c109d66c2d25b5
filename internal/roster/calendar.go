package roster

import (
	"context"
	"time"

	"lmsync/internal/models"
)

// Calendar is the narrow calendar-provider contract the engine depends on.
// Implementations exist for Google Calendar and CalDAV, plus an in-memory
// one for tests.
type Calendar interface {
	// EventsBetween enumerates events overlapping [start, end), guest lists
	// included.
	EventsBetween(ctx context.Context, start, end time.Time) ([]*models.Event, error)
	// FindEvent resolves an event by identifier, trying the identifier both
	// with and without the provider's domain suffix.
	FindEvent(ctx context.Context, id string) (*models.Event, error)
	// CreateEvent creates a new event and returns it with its assigned
	// identifier.
	CreateEvent(ctx context.Context, title string, start, end time.Time, description string) (*models.Event, error)
	// AddGuest adds a guest to an event. Adding a guest that is already on
	// the list (case-insensitive) is a successful no-op.
	AddGuest(ctx context.Context, id, email string) error
}
