// Package jsonl writes each stream's records to its own JSON lines file,
// optionally compressed.
package jsonl

import (
	"bufio"
	"context"
	"os"
	"path/filepath"
	"sync"

	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/ajitpratap0/formtap/pkg/compression"
	"github.com/ajitpratap0/formtap/pkg/connector/core"
	"github.com/ajitpratap0/formtap/pkg/errors"
)

// StateFile is the name of the file holding the latest STATE value.
const StateFile = "state.json"

// Config configures a Sink.
type Config struct {
	Dir         string
	Compression compression.Algorithm
	Level       compression.Level
}

type streamFile struct {
	file *os.File
	enc  interface {
		Write(p []byte) (int, error)
		Close() error
	}
	buf  *bufio.Writer
	path string
}

// Sink writes <dir>/<stream>.jsonl[.ext] with one record object per line,
// <dir>/<stream>.schema.json with the stream schema, and <dir>/state.json
// with the latest state.
type Sink struct {
	cfg    Config
	logger *zap.Logger

	mu      sync.Mutex
	streams map[string]*streamFile
	closed  bool
}

// NewSink creates the output directory and returns a sink writing into it.
func NewSink(cfg Config, logger *zap.Logger) (*Sink, error) {
	if cfg.Dir == "" {
		return nil, errors.New(errors.ErrorTypeConfig, "jsonl sink requires a dir option")
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeSink, "failed to create output directory").
			WithDetail("dir", cfg.Dir)
	}
	return &Sink{
		cfg:     cfg,
		logger:  logger.With(zap.String("component", "jsonl_sink")),
		streams: make(map[string]*streamFile),
	}, nil
}

// WriteSchema implements core.RecordSink
func (s *Sink) WriteSchema(_ context.Context, msg *core.SchemaMessage) error {
	data, err := json.MarshalIndent(msg, "", "  ")
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeSink, "failed to encode schema")
	}
	return s.writeFile(msg.Stream+".schema.json", data)
}

// WriteRecord implements core.RecordSink
func (s *Sink) WriteRecord(_ context.Context, msg *core.RecordMessage) error {
	line, err := json.Marshal(msg.Record)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeSink, "failed to encode record").
			WithDetail("stream", msg.Stream)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errors.New(errors.ErrorTypeSink, "sink is closed")
	}

	sf, err := s.open(msg.Stream)
	if err != nil {
		return err
	}
	if _, err := sf.buf.Write(line); err != nil {
		return errors.Wrap(err, errors.ErrorTypeSink, "failed to write record").
			WithDetail("path", sf.path)
	}
	if err := sf.buf.WriteByte('\n'); err != nil {
		return errors.Wrap(err, errors.ErrorTypeSink, "failed to write record").
			WithDetail("path", sf.path)
	}
	return nil
}

// WriteState flushes every stream and then replaces the state file, so the
// state on disk never runs ahead of the records.
func (s *Sink) WriteState(ctx context.Context, msg *core.StateMessage) error {
	if err := s.Flush(ctx); err != nil {
		return err
	}
	data, err := json.Marshal(msg.Value)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeSink, "failed to encode state")
	}
	return s.writeFile(StateFile, data)
}

// Flush pushes buffered and codec-held bytes to the files.
func (s *Sink) Flush(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, sf := range s.streams {
		if err := sf.buf.Flush(); err != nil {
			return errors.Wrap(err, errors.ErrorTypeSink, "failed to flush").WithDetail("path", sf.path)
		}
		if f, ok := sf.enc.(interface{ Flush() error }); ok {
			if err := f.Flush(); err != nil {
				return errors.Wrap(err, errors.ErrorTypeSink, "failed to flush codec").WithDetail("path", sf.path)
			}
		}
	}
	return nil
}

// Close finishes every codec stream and closes the files.
func (s *Sink) Close(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	var firstErr error
	for name, sf := range s.streams {
		if err := closeStream(sf); err != nil && firstErr == nil {
			firstErr = err
		}
		s.logger.Debug("stream file closed", zap.String("stream", name), zap.String("path", sf.path))
	}
	return firstErr
}

// Path returns the record file path of a stream.
func (s *Sink) Path(stream string) string {
	return filepath.Join(s.cfg.Dir, stream+".jsonl"+compression.Extension(s.cfg.Compression))
}

func (s *Sink) open(stream string) (*streamFile, error) {
	if sf, ok := s.streams[stream]; ok {
		return sf, nil
	}

	path := s.Path(stream)
	f, err := os.Create(path) //nolint:gosec // G304: path is built from the configured directory
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeSink, "failed to create stream file").
			WithDetail("path", path)
	}
	enc, err := compression.NewWriter(f, s.cfg.Compression, s.cfg.Level)
	if err != nil {
		f.Close()
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to create compressor").
			WithDetail("compression", string(s.cfg.Compression))
	}

	sf := &streamFile{file: f, enc: enc, buf: bufio.NewWriter(enc), path: path}
	s.streams[stream] = sf
	s.logger.Info("stream file opened", zap.String("stream", stream), zap.String("path", path))
	return sf, nil
}

func (s *Sink) writeFile(name string, data []byte) error {
	path := filepath.Join(s.cfg.Dir, name)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return errors.Wrap(err, errors.ErrorTypeSink, "failed to write file").WithDetail("path", path)
	}
	if err := os.Rename(tmp, path); err != nil {
		return errors.Wrap(err, errors.ErrorTypeSink, "failed to replace file").WithDetail("path", path)
	}
	return nil
}

func closeStream(sf *streamFile) error {
	if err := sf.buf.Flush(); err != nil {
		sf.file.Close()
		return errors.Wrap(err, errors.ErrorTypeSink, "failed to flush").WithDetail("path", sf.path)
	}
	if err := sf.enc.Close(); err != nil {
		sf.file.Close()
		return errors.Wrap(err, errors.ErrorTypeSink, "failed to finish codec stream").WithDetail("path", sf.path)
	}
	if err := sf.file.Close(); err != nil {
		return errors.Wrap(err, errors.ErrorTypeSink, "failed to close file").WithDetail("path", sf.path)
	}
	return nil
}
