package main

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/ajitpratap0/formtap/pkg/catalog"
	"github.com/ajitpratap0/formtap/pkg/config"
	"github.com/ajitpratap0/formtap/pkg/connector/registry"
	"github.com/ajitpratap0/formtap/pkg/connector/sources/typeform"
	"github.com/ajitpratap0/formtap/pkg/errors"
	"github.com/ajitpratap0/formtap/pkg/logger"
	"github.com/ajitpratap0/formtap/pkg/metrics"
	"github.com/ajitpratap0/formtap/pkg/observability"
	"github.com/ajitpratap0/formtap/pkg/state"
)

type syncOptions struct {
	configPath  string
	statePath   string
	catalogPath string
}

func loadConfig(opts syncOptions, v *viper.Viper) (*config.TapConfig, error) {
	cfg := config.NewTapConfig()
	if opts.configPath != "" {
		loaded, err := config.Load(opts.configPath)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to load config")
		}
		cfg = loaded
	}
	config.ApplyOverrides(cfg, v)
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadCatalog(opts syncOptions, cfg *config.TapConfig) (*catalog.Catalog, error) {
	if opts.catalogPath != "" {
		return catalog.Load(opts.catalogPath)
	}
	cat, err := catalog.Discover()
	if err != nil {
		return nil, err
	}
	cat.SelectAll(cfg.StreamEnabled)
	return cat, nil
}

func runSync(ctx context.Context, opts syncOptions, v *viper.Viper, out io.Writer) (err error) {
	cfg, err := loadConfig(opts, v)
	if err != nil {
		return err
	}

	if err := logger.Init(cfg.Log); err != nil {
		return errors.Wrap(err, errors.ErrorTypeConfig, "failed to build logger")
	}
	log := logger.Get()
	defer func() { _ = logger.Sync() }()

	tracingCfg := observability.DefaultTracingConfig()
	tracingCfg.Enabled = cfg.Tracing
	tracingCfg.ServiceVersion = version
	shutdown, err := observability.InitTracing(tracingCfg)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if serr := shutdown(shutdownCtx); serr != nil {
			log.Warn("failed to shut down tracing", zap.Error(serr))
		}
	}()

	cat, err := loadCatalog(opts, cfg)
	if err != nil {
		return err
	}

	var initial []byte
	if opts.statePath != "" {
		initial, err = os.ReadFile(opts.statePath)
		if err != nil {
			return errors.Wrap(err, errors.ErrorTypeState, "failed to read state file")
		}
	}

	env := registry.Env{Out: out, Logger: log}
	sink, err := registry.CreateSink(cfg.Sink, env)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := sink.Close(context.Background()); cerr != nil {
			log.Error("failed to close sink", zap.Error(cerr))
			if err == nil {
				err = cerr
			}
		}
	}()

	store, err := registry.CreateStore(cfg.State, env)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := store.Close(); cerr != nil {
			log.Warn("failed to close state store", zap.Error(cerr))
		}
	}()

	collector := metrics.NewCollector()
	mgr := state.NewManager(store, sink, cfg.StartTime(time.Now()), collector, log)
	if err := mgr.Init(ctx, initial); err != nil {
		return err
	}

	gate, httpClient := typeform.NewGate(cfg, collector, log)
	defer func() { _ = httpClient.Close() }()
	defer func() {
		for endpoint, st := range gate.LimiterStats() {
			log.Debug("request limiter stats",
				zap.String("endpoint", endpoint),
				zap.Int64("allowed", st.AllowedRequests),
				zap.Int64("delayed", st.DelayedRequests),
				zap.Duration("average_wait", st.AverageWaitTime))
		}
	}()

	session := typeform.NewSession(cfg, cat, mgr, sink, collector, log)
	if err := typeform.NewSyncer(session, gate).Run(ctx); err != nil {
		logFailure(log, session.RunID, err)
		return err
	}
	return nil
}

func logFailure(log *zap.Logger, runID string, err error) {
	fields := []zap.Field{
		zap.String("run_id", runID),
		zap.String("error_type", string(errors.TypeOf(err))),
		zap.Bool("retries_exhausted", errors.IsRetryable(err)),
		zap.Error(err),
	}
	if code, ok := errors.StatusCode(err); ok {
		fields = append(fields, zap.Int(errors.DetailStatusCode, code))
	}
	var e *errors.Error
	if errors.As(err, &e) {
		for _, key := range []string{errors.DetailEndpoint, errors.DetailBody, errors.DetailTimeout, errors.DetailAttempts} {
			if v, ok := e.Details[key]; ok {
				fields = append(fields, zap.Any(key, v))
			}
		}
	}
	log.Error("sync failed", fields...)
}
