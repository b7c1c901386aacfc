package state

import (
	"context"
	"strconv"
	"time"

	"github.com/ajitpratap0/formtap/pkg/config"
	"github.com/ajitpratap0/formtap/pkg/connector/core"
	"github.com/ajitpratap0/formtap/pkg/connector/registry"
	"github.com/ajitpratap0/formtap/pkg/errors"
)

const (
	defaultTapID    = "formtap"
	dialTimeout     = 30 * time.Second
	defaultRedisKey = "formtap:state"
)

func init() {
	_ = registry.RegisterStore("file", newFileStore)
	_ = registry.RegisterStore("redis", newRedisStore)
	_ = registry.RegisterStore("postgres", newPostgresStore)
	_ = registry.RegisterStore("s3", newS3Store)
	_ = registry.RegisterStore("sqlite", newSQLiteStore)

	for _, info := range []*registry.ConnectorInfo{
		{Name: "file", Description: "Local JSON file replaced atomically", Options: map[string]string{"path": "state.json"}},
		{Name: "redis", Description: "Single Redis key", Options: map[string]string{"addr": "localhost:6379", "password": "", "db": "0", "key": defaultRedisKey}},
		{Name: "postgres", Description: "JSONB row in a PostgreSQL table", Options: map[string]string{"dsn": "", "table": "formtap_state", "tap_id": defaultTapID}},
		{Name: "s3", Description: "Single S3 object", Options: map[string]string{"bucket": "", "key": "formtap/state.json", "region": "", "endpoint": ""}},
		{Name: "sqlite", Description: "Row in a local SQLite database", Options: map[string]string{"path": "formtap.db", "tap_id": defaultTapID}},
	} {
		info.Type = core.ConnectorTypeStore
		info.Capabilities = []string{"load", "save"}
		_ = registry.RegisterConnectorInfo(info)
	}
}

func newFileStore(cfg config.Component, _ registry.Env) (core.StateStore, error) {
	return NewFileStore(cfg.Option("path", "state.json")), nil
}

func newRedisStore(cfg config.Component, _ registry.Env) (core.StateStore, error) {
	db, err := strconv.Atoi(cfg.Option("db", "0"))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "invalid redis db")
	}

	ctx, cancel := context.WithTimeout(context.Background(), dialTimeout)
	defer cancel()

	client, err := DialRedis(ctx, cfg.Option("addr", "localhost:6379"), cfg.Option("password", ""), db)
	if err != nil {
		return nil, err
	}
	return NewRedisStore(client, cfg.Option("key", defaultRedisKey)), nil
}

func newPostgresStore(cfg config.Component, _ registry.Env) (core.StateStore, error) {
	dsn := cfg.Option("dsn", "")
	if dsn == "" {
		return nil, errors.New(errors.ErrorTypeConfig, "postgres state store requires a dsn option")
	}

	ctx, cancel := context.WithTimeout(context.Background(), dialTimeout)
	defer cancel()

	pool, err := DialPostgres(ctx, dsn)
	if err != nil {
		return nil, err
	}

	store := NewPostgresStore(pool, cfg.Option("table", "formtap_state"), cfg.Option("tap_id", defaultTapID))
	if err := store.EnsureTable(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return store, nil
}

func newS3Store(cfg config.Component, _ registry.Env) (core.StateStore, error) {
	bucket := cfg.Option("bucket", "")
	if bucket == "" {
		return nil, errors.New(errors.ErrorTypeConfig, "s3 state store requires a bucket option")
	}

	ctx, cancel := context.WithTimeout(context.Background(), dialTimeout)
	defer cancel()

	client, err := NewS3Client(ctx, cfg.Option("region", ""), cfg.Option("endpoint", ""))
	if err != nil {
		return nil, err
	}
	return NewS3Store(client, bucket, cfg.Option("key", "formtap/state.json")), nil
}

func newSQLiteStore(cfg config.Component, _ registry.Env) (core.StateStore, error) {
	ctx, cancel := context.WithTimeout(context.Background(), dialTimeout)
	defer cancel()

	return OpenSQLiteStore(ctx, cfg.Option("path", "formtap.db"), cfg.Option("tap_id", defaultTapID))
}
