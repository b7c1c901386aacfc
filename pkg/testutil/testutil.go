// Package testutil provides testing utilities for formtap
package testutil

import (
	"context"
	"sync"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/ajitpratap0/formtap/pkg/connector/core"
)

// TestLogger creates a test logger that writes to the test output.
func TestLogger(t *testing.T) *zap.Logger {
	return zaptest.NewLogger(t)
}

// MemorySink records every message it receives, in order.
type MemorySink struct {
	mu       sync.Mutex
	Messages []interface{}
	Flushes  int
	Closed   bool
	// FailOn makes the sink reject messages of a type
	FailOn core.MessageType
	Err    error
}

// WriteSchema implements core.RecordSink
func (s *MemorySink) WriteSchema(_ context.Context, msg *core.SchemaMessage) error {
	return s.add(core.MessageTypeSchema, msg)
}

// WriteRecord implements core.RecordSink
func (s *MemorySink) WriteRecord(_ context.Context, msg *core.RecordMessage) error {
	return s.add(core.MessageTypeRecord, msg)
}

// WriteState implements core.RecordSink
func (s *MemorySink) WriteState(_ context.Context, msg *core.StateMessage) error {
	return s.add(core.MessageTypeState, msg)
}

// Flush implements core.RecordSink
func (s *MemorySink) Flush(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Flushes++
	return nil
}

// Close implements core.RecordSink
func (s *MemorySink) Close(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Closed = true
	return nil
}

func (s *MemorySink) add(t core.MessageType, msg interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailOn == t && s.Err != nil {
		return s.Err
	}
	s.Messages = append(s.Messages, msg)
	return nil
}

// Records returns the RECORD messages of a stream.
func (s *MemorySink) Records(stream string) []*core.RecordMessage {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*core.RecordMessage
	for _, m := range s.Messages {
		if r, ok := m.(*core.RecordMessage); ok && r.Stream == stream {
			out = append(out, r)
		}
	}
	return out
}

// Schemas returns the SCHEMA messages in order.
func (s *MemorySink) Schemas() []*core.SchemaMessage {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*core.SchemaMessage
	for _, m := range s.Messages {
		if sm, ok := m.(*core.SchemaMessage); ok {
			out = append(out, sm)
		}
	}
	return out
}

// States returns the STATE messages in order.
func (s *MemorySink) States() []*core.StateMessage {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*core.StateMessage
	for _, m := range s.Messages {
		if sm, ok := m.(*core.StateMessage); ok {
			out = append(out, sm)
		}
	}
	return out
}

// MemoryStore is an in-memory core.StateStore.
type MemoryStore struct {
	mu    sync.Mutex
	Doc   []byte
	Saves int
	Err   error
}

// Load implements core.StateStore
func (m *MemoryStore) Load(context.Context) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Doc, nil
}

// Save implements core.StateStore
func (m *MemoryStore) Save(_ context.Context, doc []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.Doc = append([]byte(nil), doc...)
	m.Saves++
	return nil
}

// Close implements core.StateStore
func (m *MemoryStore) Close() error { return nil }
