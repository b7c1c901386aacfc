// Package singer writes Singer messages as JSON lines, normally to stdout.
package singer

import (
	"bufio"
	"context"
	"io"
	"sync"

	"go.uber.org/zap"

	"github.com/ajitpratap0/formtap/pkg/connector/core"
	"github.com/ajitpratap0/formtap/pkg/errors"
)

const defaultBufferSize = 64 * 1024

// Sink writes one JSON message per line. STATE messages flush the buffer
// so a downstream target never sees a checkpoint ahead of its records.
type Sink struct {
	mu     sync.Mutex
	w      *bufio.Writer
	logger *zap.Logger
	closed bool
}

// NewSink creates a sink writing to out.
func NewSink(out io.Writer, logger *zap.Logger) *Sink {
	return &Sink{
		w:      bufio.NewWriterSize(out, defaultBufferSize),
		logger: logger.With(zap.String("component", "singer_sink")),
	}
}

// WriteSchema implements core.RecordSink
func (s *Sink) WriteSchema(_ context.Context, msg *core.SchemaMessage) error {
	return s.write(msg, false)
}

// WriteRecord implements core.RecordSink
func (s *Sink) WriteRecord(_ context.Context, msg *core.RecordMessage) error {
	return s.write(msg, false)
}

// WriteState implements core.RecordSink
func (s *Sink) WriteState(_ context.Context, msg *core.StateMessage) error {
	return s.write(msg, true)
}

// Flush implements core.RecordSink
func (s *Sink) Flush(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flushLocked()
}

// Close flushes the buffer. The underlying writer is left open.
func (s *Sink) Close(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.flushLocked()
}

func (s *Sink) write(msg interface{}, flush bool) error {
	line, err := core.Encode(msg)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeSink, "failed to encode message")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errors.New(errors.ErrorTypeSink, "sink is closed")
	}

	if _, err := s.w.Write(line); err != nil {
		return errors.Wrap(err, errors.ErrorTypeSink, "failed to write message")
	}
	if err := s.w.WriteByte('\n'); err != nil {
		return errors.Wrap(err, errors.ErrorTypeSink, "failed to write message")
	}
	if flush {
		return s.flushLocked()
	}
	return nil
}

func (s *Sink) flushLocked() error {
	if err := s.w.Flush(); err != nil {
		return errors.Wrap(err, errors.ErrorTypeSink, "failed to flush output")
	}
	return nil
}
