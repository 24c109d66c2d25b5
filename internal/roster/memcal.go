package roster

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"lmsync/internal/models"
)

// MemCalendar is an in-memory Calendar used by tests and dry runs.
type MemCalendar struct {
	events map[string]*models.Event
	order  []string

	// FailCreate forces CreateEvent to return an error. Used by tests.
	FailCreate bool
}

// NewMemCalendar returns an empty in-memory calendar.
func NewMemCalendar() *MemCalendar {
	return &MemCalendar{events: make(map[string]*models.Event)}
}

// Add seeds an event, normalizing its identifier.
func (m *MemCalendar) Add(event *models.Event) {
	id := models.NormalizeEventID(event.ID)
	event.ID = id
	if _, ok := m.events[id]; !ok {
		m.order = append(m.order, id)
	}
	m.events[id] = event
}

func (m *MemCalendar) EventsBetween(_ context.Context, start, end time.Time) ([]*models.Event, error) {
	var out []*models.Event
	for _, id := range m.order {
		event := m.events[id]
		if event.Start.Before(end) && event.End.After(start) {
			out = append(out, event)
		}
	}
	return out, nil
}

func (m *MemCalendar) FindEvent(_ context.Context, id string) (*models.Event, error) {
	event, ok := m.events[models.NormalizeEventID(id)]
	if !ok {
		return nil, fmt.Errorf("event not found: %s", id)
	}
	return event, nil
}

func (m *MemCalendar) CreateEvent(_ context.Context, title string, start, end time.Time, description string) (*models.Event, error) {
	if m.FailCreate {
		return nil, fmt.Errorf("calendar rejected event %q", title)
	}
	event := &models.Event{
		ID:          uuid.NewString(),
		Title:       title,
		Description: description,
		Start:       start,
		End:         end,
	}
	m.Add(event)
	return event, nil
}

func (m *MemCalendar) AddGuest(ctx context.Context, id, email string) error {
	event, err := m.FindEvent(ctx, id)
	if err != nil {
		return err
	}
	want := models.NormalizeEmail(email)
	for _, guest := range event.Guests {
		if models.NormalizeEmail(guest) == want {
			return nil
		}
	}
	event.Guests = append(event.Guests, email)
	return nil
}
