// Package state keeps per-form bookmarks and persists them after every page.
package state

import (
	"time"

	"github.com/goccy/go-json"

	"github.com/ajitpratap0/formtap/pkg/config"
	"github.com/ajitpratap0/formtap/pkg/errors"
)

// DateFormat is the layout of date_to_resume.
const DateFormat = "2006-01-02T15:04:05Z"

// Bookmark is the checkpoint of one form.
type Bookmark struct {
	DateToResume string `json:"date_to_resume"`
	Token        string `json:"last_synchronised_response_token,omitempty"`
}

// State is the persisted document: {"bookmarks": {form_id: Bookmark}}.
type State struct {
	Bookmarks map[string]*Bookmark `json:"bookmarks"`
}

// Checkpoint is a decoded bookmark.
type Checkpoint struct {
	DateToResume time.Time
	Token        string
}

// New returns an empty state.
func New() *State {
	return &State{Bookmarks: make(map[string]*Bookmark)}
}

// Parse decodes a state document. Empty input yields an empty state.
func Parse(data []byte) (*State, error) {
	s := New()
	if len(data) == 0 {
		return s, nil
	}

	// Singer runners may hand over the last STATE message instead of its value.
	var envelope struct {
		Type  string          `json:"type"`
		Value json.RawMessage `json:"value"`
	}
	if err := json.Unmarshal(data, &envelope); err == nil && envelope.Type == "STATE" && len(envelope.Value) > 0 {
		data = envelope.Value
	}

	if err := json.Unmarshal(data, s); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeState, "failed to parse state")
	}
	if s.Bookmarks == nil {
		s.Bookmarks = make(map[string]*Bookmark)
	}
	for formID, b := range s.Bookmarks {
		if b == nil {
			delete(s.Bookmarks, formID)
			continue
		}
		// An empty date marks a form that never returned responses.
		if b.DateToResume == "" {
			continue
		}
		if _, err := parseDate(b.DateToResume); err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeState, "invalid date_to_resume").
				WithDetail("form_id", formID)
		}
	}
	return s, nil
}

// Clone returns a deep copy.
func (s *State) Clone() *State {
	c := New()
	for k, v := range s.Bookmarks {
		b := *v
		c.Bookmarks[k] = &b
	}
	return c
}

// Marshal encodes the state document.
func (s *State) Marshal() ([]byte, error) {
	return json.Marshal(s)
}

// FormatDate renders t as a bookmark date.
func FormatDate(t time.Time) string {
	return t.UTC().Format(DateFormat)
}

func parseDate(s string) (time.Time, error) {
	return config.ParseDate(s)
}
