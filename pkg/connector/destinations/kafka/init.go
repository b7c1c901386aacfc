package kafka

import (
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/ajitpratap0/formtap/pkg/config"
	"github.com/ajitpratap0/formtap/pkg/connector/core"
	"github.com/ajitpratap0/formtap/pkg/connector/registry"
	"github.com/ajitpratap0/formtap/pkg/errors"
)

func init() {
	_ = registry.RegisterSink("kafka", newSink)

	_ = registry.RegisterConnectorInfo(&registry.ConnectorInfo{
		Name:         "kafka",
		Type:         core.ConnectorTypeSink,
		Description:  "Kafka topic per stream, records keyed by key properties",
		Capabilities: []string{"record", "state", "batch"},
		Options: map[string]string{
			"brokers":       "localhost:9092",
			"topic_prefix":  "formtap.",
			"state_topic":   "formtap.state",
			"acks":          "all|1|0",
			"compression":   "none|gzip|snappy|lz4|zstd",
			"batch_size":    strconv.Itoa(defaultBatchSize),
			"tls":           "false",
			"sasl_user":     "",
			"sasl_password": "",
		},
	})
}

// ParseConfig reads sink options.
func ParseConfig(c config.Component) (Config, error) {
	cfg := Config{
		TopicPrefix:  c.Option("topic_prefix", "formtap."),
		StateTopic:   c.Option("state_topic", ""),
		ClientID:     c.Option("client_id", "formtap"),
		Acks:         c.Option("acks", "all"),
		Compression:  c.Option("compression", "none"),
		SASLUser:     c.Option("sasl_user", ""),
		SASLPassword: c.Option("sasl_password", ""),
	}
	for _, b := range strings.Split(c.Option("brokers", "localhost:9092"), ",") {
		if b = strings.TrimSpace(b); b != "" {
			cfg.Brokers = append(cfg.Brokers, b)
		}
	}

	var err error
	if cfg.BatchSize, err = strconv.Atoi(c.Option("batch_size", strconv.Itoa(defaultBatchSize))); err != nil {
		return Config{}, errors.Wrap(err, errors.ErrorTypeConfig, "invalid batch_size")
	}
	if cfg.TLS, err = strconv.ParseBool(c.Option("tls", "false")); err != nil {
		return Config{}, errors.Wrap(err, errors.ErrorTypeConfig, "invalid tls flag")
	}
	return cfg, nil
}

func newSink(c config.Component, env registry.Env) (core.RecordSink, error) {
	cfg, err := ParseConfig(c)
	if err != nil {
		return nil, err
	}
	producer, err := NewProducer(cfg)
	if err != nil {
		return nil, err
	}
	log := env.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return NewSink(producer, cfg, log), nil
}
