package google

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"lmsync/internal/models"
)

// CalendarClient provides a client for interacting with the Google Calendar API,
// bound to one calendar.
type CalendarClient struct {
	service    *calendar.Service
	calendarID string
	logger     *slog.Logger
}

// NewClient creates a new Google Calendar client. The HTTP client must
// already carry OAuth credentials (see NewHTTPClient).
func NewClient(ctx context.Context, logger *slog.Logger, httpClient *http.Client, calendarID string) (*CalendarClient, error) {
	if calendarID == "" {
		return nil, fmt.Errorf("calendar id is not configured")
	}
	service, err := calendar.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("failed to create calendar service: %w", err)
	}
	return &CalendarClient{service: service, calendarID: calendarID, logger: logger}, nil
}

// EventsBetween fetches events overlapping [start, end), guest lists included.
func (c *CalendarClient) EventsBetween(ctx context.Context, start, end time.Time) ([]*models.Event, error) {
	c.logger.Debug("Fetching events", "calendarID", c.calendarID, "from", start, "to", end)

	var out []*models.Event
	pageToken := ""
	for {
		call := c.service.Events.List(c.calendarID).
			ShowDeleted(false).
			SingleEvents(true).
			TimeMin(start.Format(time.RFC3339)).
			TimeMax(end.Format(time.RFC3339)).
			OrderBy("startTime").
			Context(ctx)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}
		page, err := call.Do()
		if err != nil {
			return nil, fmt.Errorf("failed to retrieve events: %w", err)
		}
		for _, item := range page.Items {
			out = append(out, toInternalEvent(item))
		}
		if page.NextPageToken == "" {
			break
		}
		pageToken = page.NextPageToken
	}

	c.logger.Info("Successfully fetched events from Google Calendar", "count", len(out), "calendarID", c.calendarID)
	return out, nil
}

// getEvent resolves an event by identifier. The stored identifier has the
// domain suffix stripped, so both the trimmed and the raw form are tried.
func (c *CalendarClient) getEvent(ctx context.Context, id string) (*calendar.Event, error) {
	item, err := c.service.Events.Get(c.calendarID, models.NormalizeEventID(id)).Context(ctx).Do()
	if err != nil && id != models.NormalizeEventID(id) {
		item, err = c.service.Events.Get(c.calendarID, id).Context(ctx).Do()
	}
	if err != nil {
		return nil, fmt.Errorf("event not found: %s: %w", id, err)
	}
	return item, nil
}

// FindEvent resolves an event by identifier, trying both id forms.
func (c *CalendarClient) FindEvent(ctx context.Context, id string) (*models.Event, error) {
	item, err := c.getEvent(ctx, id)
	if err != nil {
		return nil, err
	}
	return toInternalEvent(item), nil
}

// CreateEvent creates an event with the given title, times and description.
func (c *CalendarClient) CreateEvent(ctx context.Context, title string, start, end time.Time, description string) (*models.Event, error) {
	item := &calendar.Event{
		Summary:     title,
		Description: description,
		Start:       &calendar.EventDateTime{DateTime: start.Format(time.RFC3339)},
		End:         &calendar.EventDateTime{DateTime: end.Format(time.RFC3339)},
	}
	created, err := c.service.Events.Insert(c.calendarID, item).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to create event %q: %w", title, err)
	}
	c.logger.Info("Created calendar event", "title", title, "id", created.Id)
	return toInternalEvent(created), nil
}

// AddGuest adds a guest to an event. A guest already on the list
// (case-insensitive) is a successful no-op.
func (c *CalendarClient) AddGuest(ctx context.Context, id, email string) error {
	item, err := c.getEvent(ctx, id)
	if err != nil {
		return err
	}

	want := models.NormalizeEmail(email)
	attendees := item.Attendees
	for _, a := range attendees {
		if models.NormalizeEmail(a.Email) == want {
			c.logger.Info("Guest already on event, skipping.", "email", email, "eventID", id)
			return nil
		}
	}
	attendees = append(attendees, &calendar.EventAttendee{Email: email})

	patch := &calendar.Event{Attendees: attendees}
	if _, err := c.service.Events.Patch(c.calendarID, item.Id, patch).Context(ctx).Do(); err != nil {
		return fmt.Errorf("failed to add guest %s to event %s: %w", email, id, err)
	}
	c.logger.Info("Added guest to event", "email", email, "eventID", id)
	return nil
}

// toInternalEvent converts a Google Calendar event to the internal model.
// The identifier is the provider id with the domain suffix stripped.
func toInternalEvent(item *calendar.Event) *models.Event {
	event := &models.Event{
		ID:          models.NormalizeEventID(item.Id),
		Title:       item.Summary,
		Description: item.Description,
	}
	if item.Start != nil && item.Start.DateTime != "" {
		event.Start, _ = time.Parse(time.RFC3339, item.Start.DateTime)
	}
	if item.End != nil && item.End.DateTime != "" {
		event.End, _ = time.Parse(time.RFC3339, item.End.DateTime)
	}
	for _, a := range item.Attendees {
		event.Guests = append(event.Guests, a.Email)
	}
	return event
}
