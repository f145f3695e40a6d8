package calcom

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/tanpawarit/chative-booking/pkg/calendar"
)

// utcLayout renders UTC with a literal trailing Z and no fractional seconds.
const utcLayout = "2006-01-02T15:04:05Z"

type bookingAttendee struct {
	Name        string `json:"name"`
	Email       string `json:"email"`
	TimeZone    string `json:"timeZone"`
	Language    string `json:"language"`
	PhoneNumber string `json:"phoneNumber,omitempty"`
}

type bookingMetadata struct {
	Source string `json:"source"`
	Notes  string `json:"notes"`
}

type bookingBody struct {
	Start            string          `json:"start"`
	Attendee         bookingAttendee `json:"attendee"`
	Metadata         bookingMetadata `json:"metadata"`
	EventTypeID      any             `json:"eventTypeId,omitempty"`
	EventTypeSlug    string          `json:"eventTypeSlug,omitempty"`
	Username         string          `json:"username,omitempty"`
	OrganizationSlug string          `json:"organizationSlug,omitempty"`
}

// ScheduleAppointment books against the current API only. A slot conflict is
// returned as *calendar.SlotUnavailableError. Only a 5xx is retried, once,
// switching the event type id representation when both exist. A timed out
// POST may still have booked upstream, so it is reported and not resent.
func (c *Client) ScheduleAppointment(ctx context.Context, req calendar.BookingRequest) (calendar.Confirmation, error) {
	if req.Start.IsZero() {
		return calendar.Confirmation{}, &calendar.AdapterError{Op: "book", Err: errors.New("start time is required")}
	}
	if strings.TrimSpace(req.Name) == "" || strings.TrimSpace(req.Email) == "" {
		return calendar.Confirmation{}, &calendar.AdapterError{Op: "book", Err: errors.New("attendee name and email are required")}
	}
	if !c.cfg.hasTarget() {
		return calendar.Confirmation{}, &calendar.AdapterError{Op: "book", Err: errors.New("event type is not configured")}
	}

	forms := c.cfg.eventTypeIDForms()
	endpoint := c.cfg.V2BaseURL + "/bookings"

	const attempts = 2
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		var idForm any
		if len(forms) > 0 {
			idForm = forms[min(attempt-1, len(forms)-1)]
		}
		body, err := json.Marshal(c.bookingBody(req, idForm))
		if err != nil {
			return calendar.Confirmation{}, &calendar.AdapterError{Op: "book", Err: fmt.Errorf("marshal booking: %w", err)}
		}

		resp, err := c.do(ctx, http.MethodPost, endpoint, c.v2Headers(apiVersionBookings), body)
		if err != nil {
			return calendar.Confirmation{}, &calendar.AdapterError{Op: "book", Err: err}
		}
		if resp.status < http.StatusBadRequest {
			conf := parseConfirmation(resp.body)
			if !conf.HasReference() {
				c.logger.Warn().Int("status", resp.status).Msg("booking accepted but no reference in response")
			}
			return conf, nil
		}
		if strings.Contains(strings.ToLower(string(resp.body)), "not available") {
			return calendar.Confirmation{}, &calendar.SlotUnavailableError{Detail: truncate(string(resp.body), 256)}
		}
		lastErr = &calendar.AdapterError{Op: "book", Status: resp.status, Body: truncate(string(resp.body), 512)}
		if resp.status < http.StatusInternalServerError || attempt == attempts {
			return calendar.Confirmation{}, lastErr
		}

		c.logger.Warn().Err(lastErr).Int("attempt", attempt).Msg("booking failed, retrying once")
		if err := c.sleep(ctx, c.bookingRetry); err != nil {
			return calendar.Confirmation{}, &calendar.AdapterError{Op: "book", Err: err}
		}
	}
	return calendar.Confirmation{}, lastErr
}

func (c *Client) bookingBody(req calendar.BookingRequest, idForm any) bookingBody {
	body := bookingBody{
		Start: req.Start.UTC().Format(utcLayout),
		Attendee: bookingAttendee{
			Name:        strings.TrimSpace(req.Name),
			Email:       strings.TrimSpace(req.Email),
			TimeZone:    c.cfg.TimeZone,
			Language:    c.cfg.Language,
			PhoneNumber: strings.TrimSpace(req.Phone),
		},
		Metadata: bookingMetadata{
			Source: c.cfg.Source,
			Notes:  strings.TrimSpace(req.Notes),
		},
	}
	if idForm != nil {
		body.EventTypeID = idForm
		return body
	}
	body.EventTypeSlug = c.cfg.EventTypeSlug
	body.Username = c.cfg.Username
	body.OrganizationSlug = c.cfg.OrgSlug
	return body
}

// parseConfirmation extracts id, uid and a URL from a booking response whose
// data is either an object or a list of objects.
func parseConfirmation(raw []byte) calendar.Confirmation {
	var payload struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil || len(payload.Data) == 0 {
		return calendar.Confirmation{}
	}

	data := bytes.TrimSpace(payload.Data)
	var obj map[string]any
	if len(data) > 0 && data[0] == '[' {
		var list []map[string]any
		if err := decodeNumbers(data, &list); err != nil || len(list) == 0 {
			return calendar.Confirmation{}
		}
		obj = list[0]
	} else if err := decodeNumbers(data, &obj); err != nil {
		return calendar.Confirmation{}
	}

	conf := calendar.Confirmation{
		ID:  scalarString(obj["id"]),
		UID: scalarString(obj["uid"]),
	}
	for _, key := range []string{"meetingUrl", "url", "location"} {
		if v := scalarString(obj[key]); strings.HasPrefix(v, "http://") || strings.HasPrefix(v, "https://") {
			conf.URL = v
			break
		}
	}
	return conf
}

func decodeNumbers(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	return dec.Decode(v)
}

func scalarString(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case json.Number:
		return t.String()
	default:
		return ""
	}
}
