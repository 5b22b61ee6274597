package v1

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/feeds"
	"github.com/labstack/echo/v4"
	"github.com/yuin/goldmark"

	"github.com/hrygo/apptscheduler/plugin/ical"
	apperrors "github.com/hrygo/apptscheduler/server/internal/errors"
	"github.com/hrygo/apptscheduler/store"
)

const (
	calendarContentType = "text/calendar; charset=utf-8"
	rssContentType      = "application/rss+xml; charset=utf-8"

	// maxFeedItems bounds the user feed.
	maxFeedItems = 50
)

// ExportCustomerCalendar handles GET /api/v1/customers/:id/appointments.ics.
func (s *APIV1Service) ExportCustomerCalendar(c echo.Context) error {
	ctx := c.Request().Context()
	customerID, err := parseID(c, "id")
	if err != nil {
		return err
	}
	owner, err := s.CustomerService.GetCustomer(ctx, customerID)
	if err != nil {
		return err
	}
	list, err := s.AppointmentService.ListAppointments(ctx, &store.FindAppointment{CustomerID: &customerID})
	if err != nil {
		return err
	}
	contacts, err := s.Store.ListContacts(ctx)
	if err != nil {
		return apperrors.StoreUnavailable(err)
	}
	contactsByID := make(map[int32]*store.Contact, len(contacts))
	for _, contact := range contacts {
		contactsByID[contact.ID] = contact
	}

	var buf bytes.Buffer
	if err := ical.Encode(&buf, list, ical.Options{
		Name:     owner.Name,
		Contacts: contactsByID,
		Now:      s.now(),
	}); err != nil {
		return err
	}
	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="customer-%d.ics"`, customerID))
	return c.Blob(http.StatusOK, calendarContentType, buf.Bytes())
}

// GetUserFeed handles GET /api/v1/users/:id/feed.rss: the user's
// appointments from now on, descriptions rendered from Markdown.
func (s *APIV1Service) GetUserFeed(c echo.Context) error {
	ctx := c.Request().Context()
	userID, err := parseID(c, "id")
	if err != nil {
		return err
	}
	users, err := s.Store.ListUsers(ctx)
	if err != nil {
		return apperrors.StoreUnavailable(err)
	}
	var owner *store.User
	for _, u := range users {
		if u.ID == userID {
			owner = u
			break
		}
	}
	if owner == nil {
		return apperrors.NotFound("user", userID)
	}

	now := s.now()
	from, limit := now.Unix(), maxFeedItems
	list, err := s.AppointmentService.ListAppointments(ctx, &store.FindAppointment{
		UserID:      &userID,
		StartTsFrom: &from,
		Limit:       &limit,
	})
	if err != nil {
		return err
	}

	baseURL := c.Scheme() + "://" + c.Request().Host
	rss, err := s.generateRSSFromAppointments(owner, list, baseURL, now)
	if err != nil {
		return err
	}
	return c.Blob(http.StatusOK, rssContentType, []byte(rss))
}

func (s *APIV1Service) generateRSSFromAppointments(owner *store.User, list []*store.Appointment, baseURL string, now time.Time) (string, error) {
	feed := &feeds.Feed{
		Title:       fmt.Sprintf("Appointments of %s", owner.Username),
		Link:        &feeds.Link{Href: fmt.Sprintf("%s/api/v1/users/%d/upcoming", baseURL, owner.ID)},
		Description: "Upcoming appointments",
		Created:     now,
	}

	clock := s.AppointmentService.Clock()
	feed.Items = make([]*feeds.Item, 0, len(list))
	for _, a := range list {
		description, err := renderMarkdown(a.Description)
		if err != nil {
			return "", err
		}
		start := clock.ToLocal(clock.FromUnix(a.StartTs))
		feed.Items = append(feed.Items, &feeds.Item{
			Id:          ical.UID(a.ID),
			Title:       fmt.Sprintf("%s (%s)", a.Title, start.String()),
			Link:        &feeds.Link{Href: fmt.Sprintf("%s/api/v1/appointments/%d", baseURL, a.ID)},
			Description: description,
			Created:     time.Unix(a.CreatedTs, 0),
			Updated:     time.Unix(a.UpdatedTs, 0),
		})
	}
	rss, err := feed.ToRss()
	if err != nil {
		return "", fmt.Errorf("failed to render feed: %w", err)
	}
	return rss, nil
}

func renderMarkdown(source string) (string, error) {
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(source), &buf); err != nil {
		return "", fmt.Errorf("failed to render description: %w", err)
	}
	return buf.String(), nil
}
