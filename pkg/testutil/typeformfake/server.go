// Package typeformfake serves an in-memory imitation of the Typeform
// Create and Responses APIs for tests.
package typeformfake

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
)

// Form is a listed form.
type Form struct {
	ID            string `json:"id"`
	Title         string `json:"title"`
	Type          string `json:"type,omitempty"`
	CreatedAt     string `json:"created_at,omitempty"`
	LastUpdatedAt string `json:"last_updated_at,omitempty"`
	Settings      struct {
		IsPublic bool `json:"is_public"`
	} `json:"settings"`
	Links struct {
		Display string `json:"display,omitempty"`
	} `json:"_links"`
}

// Field is a question of a form definition.
type Field struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Ref   string `json:"ref,omitempty"`
	Type  string `json:"type,omitempty"`
}

// Response is a raw response item. It must carry "token" and "submitted_at".
type Response map[string]interface{}

// RecordedRequest is a request seen by the server.
type RecordedRequest struct {
	Path  string
	Query url.Values
	Auth  string
}

// Server is a fake Typeform API.
type Server struct {
	*httptest.Server

	mu          sync.Mutex
	forms       []Form
	definitions map[string][]Field
	responses   map[string][]Response
	failures    map[string][]int
	delays      map[string]time.Duration
	requests    []RecordedRequest
}

// New starts a fake server. Close it when done.
func New() *Server {
	s := &Server{
		definitions: make(map[string][]Field),
		responses:   make(map[string][]Response),
		failures:    make(map[string][]int),
		delays:      make(map[string]time.Duration),
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	return s
}

// AddForm registers a form with its definition fields.
func (s *Server) AddForm(f Form, fields ...Field) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.forms = append(s.forms, f)
	if fields == nil {
		fields = []Field{}
	}
	s.definitions[f.ID] = fields
}

// AddResponses appends response items to a form.
func (s *Server) AddResponses(formID string, items ...Response) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.responses[formID] = append(s.responses[formID], items...)
}

// FailNext makes the next requests to path answer with the given statuses,
// one per request.
func (s *Server) FailNext(path string, statuses ...int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[path] = append(s.failures[path], statuses...)
}

// Delay makes every request to path sleep first.
func (s *Server) Delay(path string, d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delays[path] = d
}

// Requests returns the requests seen so far.
func (s *Server) Requests() []RecordedRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]RecordedRequest(nil), s.requests...)
}

// RequestsTo returns the requests seen for a path.
func (s *Server) RequestsTo(path string) []RecordedRequest {
	var out []RecordedRequest
	for _, r := range s.Requests() {
		if r.Path == path {
			out = append(out, r)
		}
	}
	return out
}

// NewResponse builds a response item with metadata and answers.
func NewResponse(token, submittedAt string, answers ...map[string]interface{}) Response {
	if answers == nil {
		answers = []map[string]interface{}{}
	}
	return Response{
		"landing_id":   token,
		"token":        token,
		"landed_at":    submittedAt,
		"submitted_at": submittedAt,
		"metadata": map[string]interface{}{
			"user_agent": "Mozilla/5.0",
			"platform":   "other",
			"referer":    "https://example.typeform.com/to/" + token,
			"network_id": "net-" + token,
			"browser":    "default",
		},
		"answers": answers,
	}
}

// Answer builds an answer whose value lives under the data type key.
func Answer(fieldID, fieldType, dataType string, value interface{}) map[string]interface{} {
	return map[string]interface{}{
		"field": map[string]interface{}{"id": fieldID, "type": fieldType, "ref": "ref-" + fieldID},
		"type":  dataType,
		dataType: value,
	}
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.requests = append(s.requests, RecordedRequest{
		Path:  r.URL.Path,
		Query: r.URL.Query(),
		Auth:  r.Header.Get("Authorization"),
	})
	delay := s.delays[r.URL.Path]
	var status int
	if queue := s.failures[r.URL.Path]; len(queue) > 0 {
		status = queue[0]
		s.failures[r.URL.Path] = queue[1:]
	}
	s.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-r.Context().Done():
			return
		}
	}

	if status != 0 {
		w.WriteHeader(status)
		_, _ = w.Write([]byte(`{"code":"INJECTED","description":"injected failure"}`))
		return
	}

	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	switch {
	case len(parts) == 1 && parts[0] == "forms":
		s.listForms(w, r)
	case len(parts) == 2 && parts[0] == "forms":
		s.definition(w, parts[1])
	case len(parts) == 3 && parts[0] == "forms" && parts[2] == "responses":
		s.listResponses(w, r, parts[1])
	default:
		writeJSON(w, http.StatusNotFound, map[string]string{"code": "NOT_FOUND"})
	}
}

func (s *Server) listForms(w http.ResponseWriter, r *http.Request) {
	page := intParam(r, "page", 1)
	size := intParam(r, "page_size", 10)

	s.mu.Lock()
	forms := append([]Form(nil), s.forms...)
	s.mu.Unlock()

	start := (page - 1) * size
	end := start + size
	if start > len(forms) {
		start = len(forms)
	}
	if end > len(forms) {
		end = len(forms)
	}

	pageCount := (len(forms) + size - 1) / size
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"total_items": len(forms),
		"page_count":  pageCount,
		"items":       forms[start:end],
	})
}

func (s *Server) definition(w http.ResponseWriter, formID string) {
	s.mu.Lock()
	fields, ok := s.definitions[formID]
	s.mu.Unlock()

	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"code": "FORM_NOT_FOUND"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"id": formID, "fields": fields})
}

// listResponses follows the upstream contract: with after=token the
// window and sort parameters are ignored and items after the token are
// returned in submitted_at order.
func (s *Server) listResponses(w http.ResponseWriter, r *http.Request, formID string) {
	size := intParam(r, "page_size", 25)
	q := r.URL.Query()

	s.mu.Lock()
	items := append([]Response(nil), s.responses[formID]...)
	s.mu.Unlock()

	sort.SliceStable(items, func(i, j int) bool {
		return items[i]["submitted_at"].(string) < items[j]["submitted_at"].(string)
	})

	var selected []Response
	if after := q.Get("after"); after != "" {
		found := false
		for _, it := range items {
			if found {
				selected = append(selected, it)
			}
			if it["token"] == after {
				found = true
			}
		}
	} else {
		since, until := q.Get("since"), q.Get("until")
		for _, it := range items {
			at := it["submitted_at"].(string)
			if since != "" && at < since {
				continue
			}
			if until != "" && at > until {
				continue
			}
			selected = append(selected, it)
		}
	}

	total := len(selected)
	if len(selected) > size {
		selected = selected[:size]
	}
	if selected == nil {
		selected = []Response{}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"total_items": total,
		"page_count":  (total + size - 1) / size,
		"items":       selected,
	})
}

func intParam(r *http.Request, name string, def int) int {
	v, err := strconv.Atoi(r.URL.Query().Get(name))
	if err != nil || v <= 0 {
		return def
	}
	return v
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
