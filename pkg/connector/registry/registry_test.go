package registry

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/ajitpratap0/formtap/pkg/config"
	"github.com/ajitpratap0/formtap/pkg/connector/core"
	"github.com/ajitpratap0/formtap/pkg/errors"
)

type nopSink struct{ opts map[string]string }

func (nopSink) WriteSchema(context.Context, *core.SchemaMessage) error { return nil }
func (nopSink) WriteRecord(context.Context, *core.RecordMessage) error { return nil }
func (nopSink) WriteState(context.Context, *core.StateMessage) error   { return nil }
func (nopSink) Flush(context.Context) error                            { return nil }
func (nopSink) Close(context.Context) error                            { return nil }

type memStore struct{ doc []byte }

func (m *memStore) Load(context.Context) ([]byte, error)     { return m.doc, nil }
func (m *memStore) Save(_ context.Context, doc []byte) error { m.doc = doc; return nil }
func (m *memStore) Close() error                             { return nil }

func TestRegistry(t *testing.T) {
	env := Env{Logger: zaptest.NewLogger(t)}

	t.Run("sinks", func(t *testing.T) {
		r := NewRegistry()
		require.NoError(t, r.RegisterSink("nop", func(cfg config.Component, _ Env) (core.RecordSink, error) {
			return nopSink{opts: cfg.Options}, nil
		}))

		err := r.RegisterSink("nop", nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "already registered")

		sink, err := r.CreateSink(config.Component{Type: "nop", Options: map[string]string{"a": "b"}}, env)
		require.NoError(t, err)
		assert.Equal(t, "b", sink.(nopSink).opts["a"])

		_, err = r.CreateSink(config.Component{Type: "missing"}, env)
		require.Error(t, err)
		assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
	})

	t.Run("stores", func(t *testing.T) {
		r := NewRegistry()
		require.NoError(t, r.RegisterStore("mem", func(config.Component, Env) (core.StateStore, error) {
			return &memStore{}, nil
		}))
		require.NoError(t, r.RegisterStore("broken", func(config.Component, Env) (core.StateStore, error) {
			return nil, fmt.Errorf("no connection")
		}))

		_, err := r.CreateStore(config.Component{Type: "mem"}, env)
		require.NoError(t, err)

		_, err = r.CreateStore(config.Component{Type: "broken"}, env)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to create state store broken")

		assert.Equal(t, []string{"broken", "mem"}, r.ListStores())

		r.Clear()
		assert.Empty(t, r.ListStores())
		assert.Empty(t, r.ListSinks())
	})
}

func TestConnectorCatalog(t *testing.T) {
	c := NewConnectorCatalog()
	require.NoError(t, c.Register(&ConnectorInfo{Name: "file", Type: core.ConnectorTypeStore}))
	require.NoError(t, c.Register(&ConnectorInfo{Name: "file", Type: core.ConnectorTypeSink}))
	require.Error(t, c.Register(&ConnectorInfo{Name: "file", Type: core.ConnectorTypeSink}))

	info, err := c.Get(core.ConnectorTypeStore, "file")
	require.NoError(t, err)
	assert.Equal(t, "file", info.Name)

	list := c.List()
	require.Len(t, list, 2)
	assert.Equal(t, core.ConnectorTypeSink, list[0].Type)
}
