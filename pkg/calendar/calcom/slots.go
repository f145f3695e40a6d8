package calcom

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/tanpawarit/chative-booking/pkg/calendar"
)

// localLayout is ISO-8601 with seconds precision and a numeric offset.
const localLayout = time.RFC3339

var errSecondaryStatus = errors.New("availability response status is not success")

// ListAvailableSlots queries the legacy endpoint (with retries) and falls
// back to the current endpoint once. end is padded to 23:59:59 local time.
func (c *Client) ListAvailableSlots(ctx context.Context, start, end time.Time) calendar.Result {
	if !c.cfg.hasTarget() {
		return calendar.Failed(calendar.Unavailable("event type id or username and event type slug are required"))
	}

	localStart := start.In(c.loc)
	y, m, d := end.In(c.loc).Date()
	localEnd := time.Date(y, m, d, 23, 59, 59, 0, c.loc)
	if localEnd.Before(localStart) {
		return calendar.Failed(calendar.InvalidRange(fmt.Sprintf("%s > %s", localStart.Format(localLayout), localEnd.Format(localLayout))))
	}

	times, err := c.queryPrimary(ctx, localStart, localEnd)
	if err != nil {
		c.logger.Warn().Err(err).Msg("legacy availability failed, falling back to current api")
		times, err = c.fetchSecondary(ctx, localStart, localEnd)
	}
	if err != nil {
		c.logger.Error().Err(err).Msg("availability unavailable from both api versions")
		return calendar.Failed(calendar.Unavailable(err.Error()))
	}

	slots := c.toSlots(times)
	if len(slots) == 0 {
		return calendar.Failed(calendar.NoSlots(localStart))
	}
	return calendar.Slots(slots)
}

// IsSlotAvailable re-lists the slot's local day and looks for its start.
func (c *Client) IsSlotAvailable(ctx context.Context, slot calendar.AvailableSlot) (bool, error) {
	local := slot.Start().In(c.loc)
	y, m, d := local.Date()
	dayStart := time.Date(y, m, d, 0, 0, 0, 0, c.loc)

	res := c.ListAvailableSlots(ctx, dayStart, dayStart)
	if res.Err != nil {
		if res.Err.Kind == calendar.KindNoSlotsForDay {
			return false, nil
		}
		return false, res.Err
	}
	for _, s := range res.Slots {
		if s.Start().Equal(slot.Start()) {
			return true, nil
		}
	}
	return false, nil
}

func (c *Client) queryPrimary(ctx context.Context, start, end time.Time) ([]time.Time, error) {
	attempts := len(c.primaryBackoff) + 1
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		times, err := c.fetchPrimary(ctx, start, end)
		if err == nil {
			return times, nil
		}
		lastErr = err
		if !retryable(err) {
			c.logger.Warn().Err(err).Int("attempt", attempt).Msg("legacy availability rejected")
			return nil, err
		}
		if attempt == attempts {
			break
		}
		c.logger.Warn().Err(err).Int("attempt", attempt).Dur("backoff", c.primaryBackoff[attempt-1]).
			Msg("legacy availability failed, retrying")
		if err := c.sleep(ctx, c.primaryBackoff[attempt-1]); err != nil {
			return nil, err
		}
	}
	return nil, lastErr
}

func (c *Client) fetchPrimary(ctx context.Context, start, end time.Time) ([]time.Time, error) {
	q := url.Values{}
	q.Set("apiKey", c.cfg.APIKey)
	q.Set("startTime", start.Format(localLayout))
	q.Set("endTime", end.Format(localLayout))
	q.Set("timeZone", c.cfg.TimeZone)
	if forms := c.cfg.eventTypeIDForms(); len(forms) > 0 {
		q.Set("eventTypeId", fmt.Sprint(forms[0]))
	} else {
		q.Set("usernameList", c.cfg.Username)
		q.Set("eventTypeSlug", c.cfg.EventTypeSlug)
		if c.cfg.OrgSlug != "" {
			q.Set("orgSlug", c.cfg.OrgSlug)
		}
	}

	resp, err := c.do(ctx, http.MethodGet, c.cfg.V1BaseURL+"/slots?"+q.Encode(), nil, nil)
	if err != nil {
		return nil, err
	}
	if resp.status >= http.StatusBadRequest {
		return nil, resp.asError()
	}

	var payload struct {
		Slots map[string][]json.RawMessage `json:"slots"`
	}
	if err := json.Unmarshal(resp.body, &payload); err != nil {
		c.logger.Warn().Err(err).Msg("legacy availability returned non-json body, treating as empty")
		return nil, nil
	}
	return c.collectTimes(payload.Slots, "time", "start", "startTime"), nil
}

func (c *Client) fetchSecondary(ctx context.Context, start, end time.Time) ([]time.Time, error) {
	q := url.Values{}
	q.Set("start", start.Format(localLayout))
	q.Set("end", end.Format(localLayout))
	q.Set("timeZone", c.cfg.TimeZone)
	if c.cfg.EventTypeID != "" {
		q.Set("eventTypeId", c.cfg.EventTypeID)
	} else {
		q.Set("username", c.cfg.Username)
		q.Set("eventTypeSlug", c.cfg.EventTypeSlug)
		if c.cfg.OrgSlug != "" {
			q.Set("organizationSlug", c.cfg.OrgSlug)
		}
	}

	resp, err := c.do(ctx, http.MethodGet, c.cfg.V2BaseURL+"/slots?"+q.Encode(), c.v2Headers(apiVersionSlots), nil)
	if err != nil {
		return nil, err
	}
	if resp.status >= http.StatusBadRequest {
		return nil, resp.asError()
	}

	var payload struct {
		Status string                       `json:"status"`
		Data   map[string][]json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(resp.body, &payload); err != nil {
		c.logger.Warn().Err(err).Msg("current availability returned non-json body, treating as empty")
		return nil, nil
	}
	if !strings.EqualFold(payload.Status, "success") {
		return nil, fmt.Errorf("%w: %q", errSecondaryStatus, payload.Status)
	}
	return c.collectTimes(payload.Data, "start"), nil
}

// collectTimes reads the first present key of each entry; entries may also
// be bare timestamp strings. Unparseable entries are skipped.
func (c *Client) collectTimes(byDate map[string][]json.RawMessage, keys ...string) []time.Time {
	var out []time.Time
	for date, entries := range byDate {
		for _, raw := range entries {
			value, ok := entryTimestamp(raw, keys)
			if !ok {
				c.logger.Warn().Str("date", date).RawJSON("entry", compactJSON(raw)).Msg("skipping slot without timestamp")
				continue
			}
			t, err := c.parseTimestamp(value)
			if err != nil {
				c.logger.Warn().Err(err).Str("date", date).Str("value", value).Msg("skipping unparseable slot")
				continue
			}
			out = append(out, t)
		}
	}
	return out
}

func entryTimestamp(raw json.RawMessage, keys []string) (string, bool) {
	var bare string
	if err := json.Unmarshal(raw, &bare); err == nil {
		return bare, bare != ""
	}
	var obj map[string]any
	if err := json.Unmarshal(raw, &obj); err != nil {
		return "", false
	}
	for _, k := range keys {
		if v, ok := obj[k].(string); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v), true
		}
	}
	return "", false
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
}

func (c *Client) parseTimestamp(value string) (time.Time, error) {
	for i, layout := range timestampLayouts {
		var (
			t   time.Time
			err error
		)
		if i == 0 {
			t, err = time.Parse(layout, value)
		} else {
			t, err = time.ParseInLocation(layout, value, c.loc)
		}
		if err == nil {
			return t.In(c.loc), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", value)
}

func (c *Client) toSlots(times []time.Time) []calendar.AvailableSlot {
	sort.Slice(times, func(i, j int) bool { return times[i].Before(times[j]) })
	duration := c.DurationMinutes()
	slots := make([]calendar.AvailableSlot, 0, len(times))
	for i, t := range times {
		if i > 0 && t.Equal(times[i-1]) {
			continue
		}
		slots = append(slots, calendar.NewSlot(t, duration))
	}
	return slots
}

func compactJSON(raw json.RawMessage) []byte {
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return []byte(`null`)
	}
	return buf.Bytes()
}
