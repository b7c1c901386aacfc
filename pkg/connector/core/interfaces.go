package core

import (
	"context"
)

// ConnectorType represents the type of pluggable component
type ConnectorType string

const (
	ConnectorTypeSource ConnectorType = "source"
	ConnectorTypeSink   ConnectorType = "sink"
	ConnectorTypeStore  ConnectorType = "state_store"
)

// RecordSink receives the output of a sync. Implementations must write
// messages in call order; a SCHEMA for a stream always precedes its first
// RECORD.
type RecordSink interface {
	WriteSchema(ctx context.Context, msg *SchemaMessage) error
	WriteRecord(ctx context.Context, msg *RecordMessage) error
	WriteState(ctx context.Context, msg *StateMessage) error
	// Flush pushes buffered messages to the underlying transport
	Flush(ctx context.Context) error
	Close(ctx context.Context) error
}

// StateStore persists the full tap state document. Save must be durable
// when it returns.
type StateStore interface {
	// Load returns the stored document, or nil when nothing is stored
	Load(ctx context.Context) ([]byte, error)
	Save(ctx context.Context, doc []byte) error
	Close() error
}
