package singer

import (
	"os"

	"go.uber.org/zap"

	"github.com/ajitpratap0/formtap/pkg/config"
	"github.com/ajitpratap0/formtap/pkg/connector/core"
	"github.com/ajitpratap0/formtap/pkg/connector/registry"
)

func init() {
	_ = registry.RegisterSink("singer", func(_ config.Component, env registry.Env) (core.RecordSink, error) {
		out := env.Out
		if out == nil {
			out = os.Stdout
		}
		log := env.Logger
		if log == nil {
			log = zap.NewNop()
		}
		return NewSink(out, log), nil
	})

	_ = registry.RegisterConnectorInfo(&registry.ConnectorInfo{
		Name:         "singer",
		Type:         core.ConnectorTypeSink,
		Description:  "Singer JSON lines on standard output",
		Capabilities: []string{"schema", "record", "state"},
	})
}
