package core

import (
	"github.com/goccy/go-json"
)

// MessageType is the "type" field of a Singer message.
type MessageType string

const (
	MessageTypeSchema MessageType = "SCHEMA"
	MessageTypeRecord MessageType = "RECORD"
	MessageTypeState  MessageType = "STATE"
)

// SchemaMessage announces the JSON Schema of a stream.
type SchemaMessage struct {
	Type               MessageType `json:"type"`
	Stream             string      `json:"stream"`
	Schema             interface{} `json:"schema"`
	KeyProperties      []string    `json:"key_properties"`
	BookmarkProperties []string    `json:"bookmark_properties,omitempty"`
}

// RecordMessage carries one row of a stream.
type RecordMessage struct {
	Type          MessageType            `json:"type"`
	Stream        string                 `json:"stream"`
	Record        map[string]interface{} `json:"record"`
	TimeExtracted string                 `json:"time_extracted,omitempty"`
}

// StateMessage carries the full state document.
type StateMessage struct {
	Type  MessageType `json:"type"`
	Value interface{} `json:"value"`
}

// NewSchemaMessage builds a SCHEMA message.
func NewSchemaMessage(stream string, schema interface{}, keys, bookmarks []string) *SchemaMessage {
	if keys == nil {
		keys = []string{}
	}
	return &SchemaMessage{
		Type:               MessageTypeSchema,
		Stream:             stream,
		Schema:             schema,
		KeyProperties:      keys,
		BookmarkProperties: bookmarks,
	}
}

// NewRecordMessage builds a RECORD message.
func NewRecordMessage(stream string, record map[string]interface{}, extracted string) *RecordMessage {
	return &RecordMessage{
		Type:          MessageTypeRecord,
		Stream:        stream,
		Record:        record,
		TimeExtracted: extracted,
	}
}

// NewStateMessage builds a STATE message.
func NewStateMessage(value interface{}) *StateMessage {
	return &StateMessage{Type: MessageTypeState, Value: value}
}

// Encode renders any message as a single JSON line without the newline.
func Encode(msg interface{}) ([]byte, error) {
	return json.Marshal(msg)
}
