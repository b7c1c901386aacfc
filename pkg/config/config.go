package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/ajitpratap0/formtap/pkg/errors"
	"github.com/ajitpratap0/formtap/pkg/logger"
)

// Stream names understood by the tap.
const (
	StreamForms     = "forms"
	StreamQuestions = "questions"
	StreamLandings  = "landings"
	StreamAnswers   = "answers"
)

// KnownStreams lists every stream in catalog order.
var KnownStreams = []string{StreamForms, StreamQuestions, StreamLandings, StreamAnswers}

const (
	DefaultBaseURL           = "https://api.typeform.com"
	DefaultFormsPageSize     = 200
	DefaultResponsesPageSize = 1000
	DefaultRequestInterval   = 6 * time.Second
	DefaultPageTimeout       = 1800 * time.Second
	DefaultRequestTimeout    = 5 * time.Minute
	DefaultUserAgent         = "formtap"
)

// TapConfig is the full configuration of one tap run.
type TapConfig struct {
	// Token is the upstream personal access token
	Token string `yaml:"token" json:"token"`
	// StartDate bounds the first incremental window of a form without a bookmark
	StartDate string `yaml:"start_date" json:"start_date"`
	// Streams narrows selection when no catalog is given
	Streams []string `yaml:"streams" json:"streams"`
	// Forms restricts processing to the listed form ids
	Forms []string `yaml:"forms" json:"forms"`

	BaseURL           string        `yaml:"base_url" json:"base_url"`
	FormsPageSize     int           `yaml:"forms_page_size" json:"forms_page_size"`
	ResponsesPageSize int           `yaml:"responses_page_size" json:"responses_page_size"`
	RequestInterval   time.Duration `yaml:"request_interval" json:"request_interval"`
	SoftRetry         SoftRetry     `yaml:"soft_retry" json:"soft_retry"`
	HardRetry         HardRetry     `yaml:"hard_retry" json:"hard_retry"`
	PageTimeout       time.Duration `yaml:"page_timeout" json:"page_timeout"`
	RequestTimeout    time.Duration `yaml:"request_timeout" json:"request_timeout"`
	UserAgent         string        `yaml:"user_agent" json:"user_agent"`

	Log   logger.Config `yaml:"log" json:"log"`
	Sink  Component     `yaml:"sink" json:"sink"`
	State Component     `yaml:"state" json:"state"`

	// MetricsTextfile, when set, receives a prometheus textfile at the end of a run
	MetricsTextfile string `yaml:"metrics_textfile" json:"metrics_textfile"`
	// Tracing exports spans for gate calls and page fetches to stderr
	Tracing bool `yaml:"tracing" json:"tracing"`

	startTime time.Time
}

// SoftRetry configures the exponential policy for throttling responses.
type SoftRetry struct {
	MaxAttempts     int           `yaml:"max_attempts" json:"max_attempts"`
	InitialInterval time.Duration `yaml:"initial_interval" json:"initial_interval"`
	MaxInterval     time.Duration `yaml:"max_interval" json:"max_interval"`
}

// HardRetry configures the constant policy for metering locks.
type HardRetry struct {
	MaxAttempts int           `yaml:"max_attempts" json:"max_attempts"`
	Interval    time.Duration `yaml:"interval" json:"interval"`
}

// Component selects a registered sink or state store by name.
type Component struct {
	Type    string            `yaml:"type" json:"type"`
	Options map[string]string `yaml:"options" json:"options"`
}

// Option returns the named option or def when unset.
func (c Component) Option(key, def string) string {
	if v, ok := c.Options[key]; ok && v != "" {
		return v
	}
	return def
}

// NewTapConfig returns a config populated with defaults.
func NewTapConfig() *TapConfig {
	cfg := &TapConfig{}
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults fills every zero-valued setting.
func (c *TapConfig) ApplyDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.FormsPageSize <= 0 {
		c.FormsPageSize = DefaultFormsPageSize
	}
	if c.ResponsesPageSize <= 0 {
		c.ResponsesPageSize = DefaultResponsesPageSize
	}
	if c.RequestInterval <= 0 {
		c.RequestInterval = DefaultRequestInterval
	}
	if c.SoftRetry.MaxAttempts <= 0 {
		c.SoftRetry.MaxAttempts = 5
	}
	if c.SoftRetry.InitialInterval <= 0 {
		c.SoftRetry.InitialInterval = time.Second
	}
	if c.SoftRetry.MaxInterval <= 0 {
		c.SoftRetry.MaxInterval = 60 * time.Second
	}
	if c.HardRetry.MaxAttempts <= 0 {
		c.HardRetry.MaxAttempts = 5
	}
	if c.HardRetry.Interval <= 0 {
		c.HardRetry.Interval = 60 * time.Second
	}
	if c.PageTimeout <= 0 {
		c.PageTimeout = DefaultPageTimeout
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = DefaultRequestTimeout
	}
	if c.UserAgent == "" {
		c.UserAgent = DefaultUserAgent
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Encoding == "" {
		c.Log.Encoding = "json"
	}
	if c.Sink.Type == "" {
		c.Sink.Type = "singer"
	}
	if c.State.Type == "" {
		c.State.Type = "file"
	}
}

// Validate checks the configuration for correctness.
func (c *TapConfig) Validate() error {
	if strings.TrimSpace(c.Token) == "" {
		return errors.New(errors.ErrorTypeConfig, "token is required")
	}

	if c.StartDate != "" {
		t, err := ParseDate(c.StartDate)
		if err != nil {
			return errors.Wrap(err, errors.ErrorTypeConfig, "invalid start_date").
				WithDetail("start_date", c.StartDate)
		}
		c.startTime = t
	}

	for _, s := range c.Streams {
		if !IsKnownStream(s) {
			return errors.Newf(errors.ErrorTypeConfig, "unknown stream %q", s)
		}
	}

	if c.SoftRetry.InitialInterval > c.SoftRetry.MaxInterval {
		return errors.New(errors.ErrorTypeConfig, "soft_retry.initial_interval exceeds max_interval")
	}

	return nil
}

// StartTime returns the parsed start date. When none is configured the
// start of the current UTC day relative to now is used.
func (c *TapConfig) StartTime(now time.Time) time.Time {
	if !c.startTime.IsZero() {
		return c.startTime
	}
	if c.StartDate != "" {
		if t, err := ParseDate(c.StartDate); err == nil {
			return t
		}
	}
	return StartOfDay(now)
}

// StreamEnabled reports whether name survives the streams filter.
func (c *TapConfig) StreamEnabled(name string) bool {
	if len(c.Streams) == 0 {
		return true
	}
	for _, s := range c.Streams {
		if s == name {
			return true
		}
	}
	return false
}

// FormAllowed reports whether formID survives the forms filter.
func (c *TapConfig) FormAllowed(formID string) bool {
	if len(c.Forms) == 0 {
		return true
	}
	for _, f := range c.Forms {
		if f == formID {
			return true
		}
	}
	return false
}

// IsKnownStream reports whether name is a stream the tap can emit.
func IsKnownStream(name string) bool {
	for _, s := range KnownStreams {
		if s == name {
			return true
		}
	}
	return false
}

var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseDate accepts the ISO-8601 shapes found in tap configs and state files.
func ParseDate(s string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised date %q", s)
}

// StartOfDay truncates t to midnight UTC.
func StartOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
