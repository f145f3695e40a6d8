package calcom

import (
	"strconv"
	"strings"
	"time"
)

const (
	defaultV1BaseURL = "https://api.cal.com/v1"
	defaultV2BaseURL = "https://api.cal.com/v2"
	defaultTimeout   = 30 * time.Second
	defaultDuration  = 30
	defaultSource    = "voice-agent"
)

// Config is loaded with the CALCOM prefix. EventTypeID may hold either a
// numeric or a string identifier; both forms are sent where upstream needs it.
type Config struct {
	APIKey          string        `envconfig:"API_KEY" required:"true"`
	EventTypeID     string        `envconfig:"EVENT_TYPE_ID"`
	Username        string        `envconfig:"USERNAME"`
	EventTypeSlug   string        `envconfig:"EVENT_TYPE_SLUG"`
	OrgSlug         string        `envconfig:"ORG_SLUG"`
	TimeZone        string        `envconfig:"TIME_ZONE" default:"UTC"`
	V1BaseURL       string        `envconfig:"V1_BASE_URL" default:"https://api.cal.com/v1"`
	V2BaseURL       string        `envconfig:"V2_BASE_URL" default:"https://api.cal.com/v2"`
	Timeout         time.Duration `envconfig:"TIMEOUT" default:"30s"`
	DefaultDuration int           `envconfig:"DEFAULT_DURATION" default:"30"`
	Language        string        `envconfig:"LANGUAGE" default:"en"`
	Source          string        `envconfig:"SOURCE" default:"voice-agent"`
	RateLimit       float64       `envconfig:"RATE_LIMIT" default:"0"`
	RateBurst       int           `envconfig:"RATE_BURST" default:"1"`
}

func (c Config) normalized() Config {
	out := c
	out.APIKey = strings.TrimSpace(c.APIKey)
	out.EventTypeID = strings.TrimSpace(c.EventTypeID)
	out.Username = strings.TrimSpace(c.Username)
	out.EventTypeSlug = strings.TrimSpace(c.EventTypeSlug)
	out.OrgSlug = strings.TrimSpace(c.OrgSlug)
	out.TimeZone = strings.TrimSpace(c.TimeZone)
	if out.TimeZone == "" {
		out.TimeZone = "UTC"
	}
	out.V1BaseURL = strings.TrimRight(strings.TrimSpace(c.V1BaseURL), "/")
	if out.V1BaseURL == "" {
		out.V1BaseURL = defaultV1BaseURL
	}
	out.V2BaseURL = strings.TrimRight(strings.TrimSpace(c.V2BaseURL), "/")
	if out.V2BaseURL == "" {
		out.V2BaseURL = defaultV2BaseURL
	}
	if out.Timeout <= 0 {
		out.Timeout = defaultTimeout
	}
	if out.DefaultDuration <= 0 {
		out.DefaultDuration = defaultDuration
	}
	out.Language = strings.TrimSpace(c.Language)
	if out.Language == "" {
		out.Language = "en"
	}
	out.Source = strings.TrimSpace(c.Source)
	if out.Source == "" {
		out.Source = defaultSource
	}
	if out.RateBurst <= 0 {
		out.RateBurst = 1
	}
	return out
}

// hasTarget reports whether an event type can be addressed at all.
func (c Config) hasTarget() bool {
	return c.EventTypeID != "" || (c.Username != "" && c.EventTypeSlug != "")
}

// eventTypeIDForms lists the representations to try for the event type id:
// the integer form first when the id is numeric, then the string form.
func (c Config) eventTypeIDForms() []any {
	if c.EventTypeID == "" {
		return nil
	}
	if n, err := strconv.ParseInt(c.EventTypeID, 10, 64); err == nil {
		return []any{n, c.EventTypeID}
	}
	return []any{c.EventTypeID}
}
