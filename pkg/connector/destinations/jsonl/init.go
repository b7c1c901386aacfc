package jsonl

import (
	"go.uber.org/zap"

	"github.com/ajitpratap0/formtap/pkg/compression"
	"github.com/ajitpratap0/formtap/pkg/config"
	"github.com/ajitpratap0/formtap/pkg/connector/core"
	"github.com/ajitpratap0/formtap/pkg/connector/registry"
	"github.com/ajitpratap0/formtap/pkg/errors"
)

func init() {
	_ = registry.RegisterSink("jsonl", newSink)

	_ = registry.RegisterConnectorInfo(&registry.ConnectorInfo{
		Name:         "jsonl",
		Type:         core.ConnectorTypeSink,
		Description:  "One JSON lines file per stream with optional compression",
		Capabilities: []string{"record", "state", "compression"},
		Options: map[string]string{
			"dir":         "output",
			"compression": "none|gzip|zstd|s2|snappy|lz4",
			"level":       "fastest|default|better|best",
		},
	})
}

func newSink(cfg config.Component, env registry.Env) (core.RecordSink, error) {
	alg, err := compression.ParseAlgorithm(cfg.Option("compression", ""))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "invalid compression option")
	}
	log := env.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return NewSink(Config{
		Dir:         cfg.Option("dir", "output"),
		Compression: alg,
		Level:       compression.ParseLevel(cfg.Option("level", "default")),
	}, log)
}
