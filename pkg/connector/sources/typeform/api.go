// Package typeform extracts forms, questions, landings and answers from the
// Typeform Create and Responses APIs.
package typeform

import (
	"bytes"
	"context"

	"github.com/goccy/go-json"

	"github.com/ajitpratap0/formtap/pkg/clients"
)

// Caller performs one gated upstream request. *clients.Gate satisfies it.
type Caller interface {
	Call(ctx context.Context, req clients.Request, out interface{}) error
}

// Form is an entry of GET /forms.
type Form struct {
	ID            string `json:"id"`
	Title         string `json:"title"`
	Type          string `json:"type"`
	CreatedAt     string `json:"created_at"`
	LastUpdatedAt string `json:"last_updated_at"`
	Settings      struct {
		IsPublic bool `json:"is_public"`
	} `json:"settings"`
	Links struct {
		Display string `json:"display"`
	} `json:"_links"`
}

// FormPage is one page of the form listing.
type FormPage struct {
	Page       int    `json:"-"`
	TotalItems int    `json:"total_items"`
	PageCount  int    `json:"page_count"`
	Items      []Form `json:"items"`
}

// Field is a question of a form definition.
type Field struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Ref   string `json:"ref"`
	Type  string `json:"type"`
}

// Definition is the body of GET /forms/{id}.
type Definition struct {
	ID     string  `json:"id"`
	Fields []Field `json:"fields"`
}

// ResponseMetadata describes the client that submitted a response.
type ResponseMetadata struct {
	UserAgent string `json:"user_agent"`
	Platform  string `json:"platform"`
	Referer   string `json:"referer"`
	NetworkID string `json:"network_id"`
	Browser   string `json:"browser"`
}

// ResponseItem is one submission.
type ResponseItem struct {
	LandingID   string           `json:"landing_id"`
	Token       string           `json:"token"`
	LandedAt    string           `json:"landed_at"`
	SubmittedAt string           `json:"submitted_at"`
	Metadata    ResponseMetadata `json:"metadata"`
	// Hidden is empty when the item carries no hidden fields
	Hidden  json.RawMessage `json:"hidden"`
	Answers []Answer        `json:"answers"`
}

// AnswerField identifies the question an answer belongs to.
type AnswerField struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Ref  string `json:"ref"`
}

// Answer is one answer of a response. The value lives under the key named
// by its data type, e.g. {"type":"number","number":5}.
type Answer struct {
	Field    AnswerField
	DataType string
	Value    json.RawMessage
}

// UnmarshalJSON extracts the value stored under the data type key.
func (a *Answer) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	if f, ok := raw["field"]; ok {
		if err := json.Unmarshal(f, &a.Field); err != nil {
			return err
		}
	}
	if t, ok := raw["type"]; ok {
		if err := json.Unmarshal(t, &a.DataType); err != nil {
			return err
		}
	}
	if a.DataType != "" && a.DataType != "field" && a.DataType != "type" {
		a.Value = raw[a.DataType]
	}
	return nil
}

// ResponsePage is the body of GET /forms/{id}/responses.
type ResponsePage struct {
	TotalItems int            `json:"total_items"`
	PageCount  int            `json:"page_count"`
	Items      []ResponseItem `json:"items"`
}

func compactJSON(raw json.RawMessage) (string, error) {
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return "", err
	}
	return buf.String(), nil
}
