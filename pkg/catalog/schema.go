package catalog

import (
	"github.com/goccy/go-json"
)

// TypeList is a JSON Schema "type" keyword: a single name or a list.
type TypeList []string

// UnmarshalJSON accepts both "string" and ["null", "string"].
func (t *TypeList) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		*t = TypeList{single}
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return err
	}
	*t = many
	return nil
}

// MarshalJSON writes a single type as a bare string.
func (t TypeList) MarshalJSON() ([]byte, error) {
	if len(t) == 1 {
		return json.Marshal(t[0])
	}
	return json.Marshal([]string(t))
}

// Has reports whether name is one of the types.
func (t TypeList) Has(name string) bool {
	for _, n := range t {
		if n == name {
			return true
		}
	}
	return false
}

// Schema is the subset of JSON Schema used by stream definitions.
type Schema struct {
	Type                 TypeList           `json:"type,omitempty"`
	Format               string             `json:"format,omitempty"`
	Properties           map[string]*Schema `json:"properties,omitempty"`
	Items                *Schema            `json:"items,omitempty"`
	AdditionalProperties *bool              `json:"additionalProperties,omitempty"`
}

// IsInteger reports whether values must be coerced to integers.
func (s *Schema) IsInteger() bool {
	return s != nil && s.Type.Has("integer")
}

// IsDateTime reports whether values are date-time strings.
func (s *Schema) IsDateTime() bool {
	return s != nil && s.Format == "date-time" && s.Type.Has("string")
}
