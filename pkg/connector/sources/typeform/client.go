package typeform

import (
	"go.uber.org/zap"

	"github.com/ajitpratap0/formtap/pkg/clients"
	"github.com/ajitpratap0/formtap/pkg/config"
	"github.com/ajitpratap0/formtap/pkg/metrics"
)

// NewGate builds the authenticated, throttled request gate for cfg.
func NewGate(cfg *config.TapConfig, collector *metrics.Collector, logger *zap.Logger) (*clients.Gate, *clients.HTTPClient) {
	httpCfg := clients.DefaultHTTPConfig()
	httpCfg.Token = cfg.Token
	httpCfg.UserAgent = cfg.UserAgent
	if cfg.RequestTimeout > 0 {
		httpCfg.RequestTimeout = cfg.RequestTimeout
	}
	httpClient := clients.NewHTTPClient(httpCfg, logger)

	gate := clients.NewGate(httpClient, clients.GateConfig{
		BaseURL:         cfg.BaseURL,
		RequestInterval: cfg.RequestInterval,
		Soft:            clients.NewSoftPolicy(cfg.SoftRetry),
		Hard:            clients.NewHardPolicy(cfg.HardRetry),
	}, collector, logger)
	return gate, httpClient
}
