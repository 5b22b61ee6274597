// Package ical renders appointments as an iCalendar (RFC 5545) feed.
package ical

import (
	"fmt"
	"io"
	"time"

	"github.com/emersion/go-ical"

	"github.com/hrygo/apptscheduler/store"
)

const (
	ProductID = "-//apptscheduler//EN"
	// uidDomain keeps UIDs globally unique across exports of the same instance.
	uidDomain = "apptscheduler"

	propCalendarName = "X-WR-CALNAME"
)

// Options controls the calendar envelope.
type Options struct {
	// Name is written as X-WR-CALNAME when set.
	Name string
	// Contacts adds an ATTENDEE for appointments whose contact has an email.
	Contacts map[int32]*store.Contact
	// Now stamps DTSTAMP. Zero means time.Now().
	Now time.Time
}

// UID returns the stable iCalendar UID of an appointment.
func UID(appointmentID int32) string {
	return fmt.Sprintf("appointment-%d@%s", appointmentID, uidDomain)
}

// Encode writes appointments as a VCALENDAR with one VEVENT each. Times are
// written in UTC.
func Encode(w io.Writer, appointments []*store.Appointment, opts Options) error {
	if opts.Now.IsZero() {
		opts.Now = time.Now()
	}

	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, ProductID)
	if opts.Name != "" {
		cal.Props.SetText(propCalendarName, opts.Name)
	}
	for _, appointment := range appointments {
		cal.Children = append(cal.Children, toEvent(appointment, opts))
	}

	// RFC 5545 requires at least one component, which the encoder enforces.
	// An empty export is still a useful answer, so write the envelope directly.
	if len(cal.Children) == 0 {
		_, err := fmt.Fprintf(w, "BEGIN:VCALENDAR\r\nVERSION:2.0\r\nPRODID:%s\r\nEND:VCALENDAR\r\n", ProductID)
		return err
	}
	if err := ical.NewEncoder(w).Encode(cal); err != nil {
		return fmt.Errorf("failed to encode calendar: %w", err)
	}
	return nil
}

func toEvent(appointment *store.Appointment, opts Options) *ical.Component {
	ve := ical.NewComponent(ical.CompEvent)
	ve.Props.SetText(ical.PropUID, UID(appointment.ID))
	ve.Props.SetText(ical.PropSummary, appointment.Title)
	ve.Props.SetDateTime(ical.PropDateTimeStamp, opts.Now.UTC())
	ve.Props.SetDateTime(ical.PropDateTimeStart, time.Unix(appointment.StartTs, 0).UTC())
	ve.Props.SetDateTime(ical.PropDateTimeEnd, time.Unix(appointment.EndTs, 0).UTC())

	if appointment.Description != "" {
		ve.Props.SetText(ical.PropDescription, appointment.Description)
	}
	if appointment.Location != "" {
		ve.Props.SetText(ical.PropLocation, appointment.Location)
	}
	if appointment.Type != "" {
		ve.Props.SetText(ical.PropCategories, appointment.Type)
	}
	if appointment.UpdatedTs > 0 {
		ve.Props.SetDateTime(ical.PropLastModified, time.Unix(appointment.UpdatedTs, 0).UTC())
	}
	if contact, ok := opts.Contacts[appointment.ContactID]; ok && contact.Email != "" {
		p := ical.NewProp(ical.PropAttendee)
		p.SetText(fmt.Sprintf("mailto:%s", contact.Email))
		p.Params.Set(ical.ParamCommonName, contact.Name)
		ve.Props.Add(p)
	}
	return ve
}
