package caldav

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/emersion/go-ical"
	"github.com/emersion/go-webdav/caldav"
	"github.com/google/uuid"

	"lmsync/internal/models"
)

// DefaultEndpoint is used when no CalDAV endpoint is configured.
const DefaultEndpoint = "https://caldav.icloud.com/"

// customTransport handles adding Basic Auth and custom headers to requests.
type customTransport struct {
	Username  string
	Password  string
	Transport http.RoundTripper
}

// RoundTrip adds required headers and authentication to each request.
func (t *customTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req.SetBasicAuth(t.Username, t.Password)
	req.Header.Set("User-Agent", "lmsync/1.0")
	return t.Transport.RoundTrip(req)
}

// Client implements the calendar contract on a CalDAV server. Guests are
// represented as ATTENDEE properties on the stored VEVENTs.
type Client struct {
	caldavClient *caldav.Client
	logger       *slog.Logger
	endpoint     string
	calendarPath string
	loc          *time.Location
}

// NewClient creates a CalDAV-backed calendar client and resolves the
// calendar with the given display name.
func NewClient(logger *slog.Logger, endpoint, username, password, calendarName string, loc *time.Location) (*Client, error) {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	transport := &customTransport{
		Username:  username,
		Password:  password,
		Transport: http.DefaultTransport,
	}
	httpClient := &http.Client{Transport: transport}

	caldavClient, err := caldav.NewClient(httpClient, endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to create caldav client: %w", err)
	}

	c := &Client{
		caldavClient: caldavClient,
		logger:       logger,
		endpoint:     endpoint,
		loc:          loc,
	}

	logger.Info("Finding CalDAV calendar", "calendarName", calendarName)
	calendarPath, err := c.findCalendar(context.Background(), calendarName)
	if err != nil {
		return nil, fmt.Errorf("could not find calendar '%s': %w", calendarName, err)
	}
	c.calendarPath = calendarPath
	logger.Info("Successfully found CalDAV calendar", "path", calendarPath)

	return c, nil
}

// EventsBetween queries the server for events overlapping [start, end).
func (c *Client) EventsBetween(ctx context.Context, start, end time.Time) ([]*models.Event, error) {
	query := &caldav.CalendarQuery{
		CompRequest: caldav.CalendarCompRequest{
			Name:     ical.CompCalendar,
			AllProps: true,
			AllComps: true,
		},
		CompFilter: caldav.CompFilter{
			Name: ical.CompCalendar,
			Comps: []caldav.CompFilter{{
				Name:  ical.CompEvent,
				Start: start,
				End:   end,
			}},
		},
	}
	objects, err := c.caldavClient.QueryCalendar(ctx, c.calendarPath, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query calendar: %w", err)
	}

	var out []*models.Event
	for i := range objects {
		for _, event := range c.fromObject(&objects[i]) {
			out = append(out, event)
		}
	}
	c.logger.Info("Fetched events from CalDAV calendar", "count", len(out))
	return out, nil
}

// FindEvent resolves an event by identifier. Objects are stored as
// <uid>.ics under the calendar collection.
func (c *Client) FindEvent(ctx context.Context, id string) (*models.Event, error) {
	object, err := c.caldavClient.GetCalendarObject(ctx, c.objectPath(id))
	if err != nil {
		return nil, fmt.Errorf("event not found: %s: %w", id, err)
	}
	events := c.fromObject(object)
	if len(events) == 0 {
		return nil, fmt.Errorf("event not found: %s", id)
	}
	return events[0], nil
}

// CreateEvent stores a new VEVENT with a generated UID.
func (c *Client) CreateEvent(ctx context.Context, title string, start, end time.Time, description string) (*models.Event, error) {
	event := &models.Event{
		ID:          uuid.New().String(),
		Title:       title,
		Description: description,
		Start:       start,
		End:         end,
	}
	if err := c.putEvent(ctx, event); err != nil {
		return nil, err
	}
	c.logger.Info("Created CalDAV event", "title", title, "uid", event.ID)
	return event, nil
}

// AddGuest appends an ATTENDEE to the stored event and writes it back. A
// guest already on the list (case-insensitive) is a successful no-op.
func (c *Client) AddGuest(ctx context.Context, id, email string) error {
	event, err := c.FindEvent(ctx, id)
	if err != nil {
		return err
	}
	want := models.NormalizeEmail(email)
	for _, guest := range event.Guests {
		if models.NormalizeEmail(guest) == want {
			c.logger.Info("Guest already on event, skipping.", "email", email, "eventID", id)
			return nil
		}
	}
	event.Guests = append(event.Guests, email)
	if err := c.putEvent(ctx, event); err != nil {
		return err
	}
	c.logger.Info("Added guest to event", "email", email, "eventID", id)
	return nil
}

// putEvent serializes an event and stores it at its object path.
func (c *Client) putEvent(ctx context.Context, event *models.Event) error {
	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, "-//lmsync//EN")
	cal.Children = append(cal.Children, c.toICal(event))

	if _, err := c.caldavClient.PutCalendarObject(ctx, c.objectPath(event.ID), cal); err != nil {
		return fmt.Errorf("failed to store event on CalDAV server: %w", err)
	}
	return nil
}

// toICal converts an internal event to an ical.Component (VEVENT).
func (c *Client) toICal(event *models.Event) *ical.Component {
	ve := ical.NewComponent(ical.CompEvent)
	ve.Props.SetText(ical.PropUID, event.ID)
	ve.Props.SetText(ical.PropSummary, event.Title)
	ve.Props.SetDateTime(ical.PropDateTimeStamp, time.Now().UTC())
	ve.Props.SetDateTime(ical.PropDateTimeStart, event.Start)
	ve.Props.SetDateTime(ical.PropDateTimeEnd, event.End)

	if event.Description != "" {
		ve.Props.SetText(ical.PropDescription, event.Description)
	}
	for _, guest := range event.Guests {
		p := ical.NewProp(ical.PropAttendee)
		p.SetText(fmt.Sprintf("mailto:%s", guest))
		ve.Props.Add(p)
	}
	return ve
}

// fromObject converts a stored calendar object to internal events.
func (c *Client) fromObject(object *caldav.CalendarObject) []*models.Event {
	if object.Data == nil {
		return nil
	}
	var out []*models.Event
	for _, ve := range object.Data.Events() {
		event := &models.Event{
			ID:          models.NormalizeEventID(propText(ve.Props, ical.PropUID)),
			Title:       propText(ve.Props, ical.PropSummary),
			Description: propText(ve.Props, ical.PropDescription),
		}
		if start, err := ve.DateTimeStart(c.loc); err == nil {
			event.Start = start
		}
		if end, err := ve.DateTimeEnd(c.loc); err == nil {
			event.End = end
		}
		for _, p := range ve.Props.Values(ical.PropAttendee) {
			event.Guests = append(event.Guests, strings.TrimPrefix(p.Value, "mailto:"))
		}
		out = append(out, event)
	}
	return out
}

func (c *Client) objectPath(id string) string {
	return path.Join(c.calendarPath, fmt.Sprintf("%s.ics", models.NormalizeEventID(id)))
}

// findCalendar discovers the user's calendars and returns the path for the one with the matching name.
func (c *Client) findCalendar(ctx context.Context, name string) (string, error) {
	principalPath, err := c.caldavClient.FindCurrentUserPrincipal(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to find principal path: %w", err)
	}

	homeSetPath, err := c.caldavClient.FindCalendarHomeSet(ctx, principalPath)
	if err != nil {
		return "", fmt.Errorf("failed to find calendar home set: %w", err)
	}

	calendars, err := c.caldavClient.FindCalendars(ctx, homeSetPath)
	if err != nil {
		return "", fmt.Errorf("failed to find calendars: %w", err)
	}

	for _, cal := range calendars {
		if cal.Name == name {
			return cal.Path, nil
		}
	}

	return "", fmt.Errorf("no calendar found with name '%s'", name)
}

func propText(props ical.Props, name string) string {
	if p := props.Get(name); p != nil {
		return p.Value
	}
	return ""
}
