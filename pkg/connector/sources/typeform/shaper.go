package typeform

import (
	"bytes"
	"fmt"

	"github.com/goccy/go-json"

	"github.com/ajitpratap0/formtap/pkg/errors"
)

// Row is one shaped output record before the catalog transform.
type Row = map[string]interface{}

// LandingRow shapes one response into a landings row. A missing hidden blob
// becomes "", a present one its compact JSON text.
func LandingRow(formID string, item ResponseItem) (Row, error) {
	hidden := ""
	if len(item.Hidden) > 0 {
		h, err := compactJSON(item.Hidden)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeData, "invalid hidden fields").
				WithDetail("token", item.Token)
		}
		hidden = h
	}

	return Row{
		"landing_id":   item.LandingID,
		"form_id":      formID,
		"token":        item.Token,
		"landed_at":    item.LandedAt,
		"submitted_at": item.SubmittedAt,
		"user_agent":   item.Metadata.UserAgent,
		"platform":     item.Metadata.Platform,
		"referer":      item.Metadata.Referer,
		"network_id":   item.Metadata.NetworkID,
		"browser":      item.Metadata.Browser,
		"hidden":       hidden,
	}, nil
}

// AnswerRows shapes every answer of a response into an answers row.
func AnswerRows(formID string, item ResponseItem) ([]Row, error) {
	rows := make([]Row, 0, len(item.Answers))
	for _, a := range item.Answers {
		v, err := AnswerValue(a)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeData, "invalid answer value").
				WithDetail("token", item.Token).
				WithDetail("question_id", a.Field.ID)
		}
		rows = append(rows, Row{
			"landing_id":   item.LandingID,
			"form_id":      formID,
			"question_id":  a.Field.ID,
			"type":         a.Field.Type,
			"ref":          a.Field.Ref,
			"data_type":    a.DataType,
			"answer":       v,
			"submitted_at": item.SubmittedAt,
		})
	}
	return rows, nil
}

// AnswerValue encodes an answer by data type: structured choices and
// payments become compact JSON text, numbers and booleans their literal
// text. Other strings pass through unchanged; non-string values of other
// data types are rendered as their JSON text so the column stays a string.
//
// Numbers and booleans keep the upstream JSON spelling on purpose: a boolean
// is "true" or "false" (not "True"), and 5.0 stays "5.0".
func AnswerValue(a Answer) (interface{}, error) {
	raw := bytes.TrimSpace(a.Value)

	switch a.DataType {
	case "choice", "choices", "payment":
		if len(raw) == 0 {
			return "null", nil
		}
		return compactJSON(raw)
	case "number", "boolean":
		if len(raw) == 0 || string(raw) == "null" {
			return nil, nil
		}
		var s string
		if raw[0] == '"' {
			if err := json.Unmarshal(raw, &s); err != nil {
				return nil, err
			}
			return s, nil
		}
		return string(raw), nil
	default:
		if len(raw) == 0 {
			return nil, nil
		}
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.UseNumber()
		var v interface{}
		if err := dec.Decode(&v); err != nil {
			return nil, err
		}
		switch v.(type) {
		case map[string]interface{}, []interface{}:
			return compactJSON(raw)
		case json.Number:
			return string(raw), nil
		case bool:
			return fmt.Sprint(v), nil
		}
		return v, nil
	}
}

// QuestionRows shapes a form definition into questions rows.
func QuestionRows(formID string, fields []Field) []Row {
	rows := make([]Row, 0, len(fields))
	for _, f := range fields {
		rows = append(rows, Row{
			"form_id":     formID,
			"question_id": f.ID,
			"title":       f.Title,
			"ref":         f.Ref,
		})
	}
	return rows
}

// FormRow shapes a listed form into a forms row.
func FormRow(f Form) Row {
	return Row{
		"form_id":         f.ID,
		"title":           f.Title,
		"type":            f.Type,
		"created_at":      f.CreatedAt,
		"last_updated_at": f.LastUpdatedAt,
		"is_public":       f.Settings.IsPublic,
		"display_url":     f.Links.Display,
	}
}
