package typeform

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/formtap/pkg/catalog"
	"github.com/ajitpratap0/formtap/pkg/clients"
	"github.com/ajitpratap0/formtap/pkg/config"
	"github.com/ajitpratap0/formtap/pkg/metrics"
	"github.com/ajitpratap0/formtap/pkg/state"
	"github.com/ajitpratap0/formtap/pkg/testutil"
	"github.com/ajitpratap0/formtap/pkg/testutil/typeformfake"
)

var (
	testStart = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	testNow   = time.Date(2024, 6, 15, 13, 45, 0, 0, time.UTC)
)

func newTestGate(t *testing.T, api *typeformfake.Server, collector *metrics.Collector) *clients.Gate {
	t.Helper()
	logger := testutil.TestLogger(t)
	client := clients.NewHTTPClient(&clients.HTTPConfig{Token: "secret", RequestTimeout: 5 * time.Second}, logger)
	t.Cleanup(func() { _ = client.Close() })
	return clients.NewGate(client, clients.GateConfig{
		BaseURL: api.URL,
		Soft: clients.NewSoftPolicy(config.SoftRetry{
			MaxAttempts:     5,
			InitialInterval: time.Millisecond,
			MaxInterval:     5 * time.Millisecond,
		}),
		Hard: clients.NewHardPolicy(config.HardRetry{MaxAttempts: 3, Interval: time.Millisecond}),
	}, collector, logger)
}

func newTestConfig(api *typeformfake.Server) *config.TapConfig {
	cfg := config.NewTapConfig()
	cfg.Token = "secret"
	cfg.BaseURL = api.URL
	cfg.StartDate = "2024-01-01T00:00:00Z"
	cfg.RequestInterval = 0
	return cfg
}

func selectedCatalog(t *testing.T, streams ...string) *catalog.Catalog {
	t.Helper()
	cat, err := catalog.Discover()
	require.NoError(t, err)
	cat.SelectAll(func(name string) bool {
		if len(streams) == 0 {
			return true
		}
		for _, s := range streams {
			if s == name {
				return true
			}
		}
		return false
	})
	return cat
}

type harness struct {
	api     *typeformfake.Server
	cfg     *config.TapConfig
	sink    *testutil.MemorySink
	store   *testutil.MemoryStore
	manager *state.Manager
	session *Session
	syncer  *Syncer
}

func newHarness(t *testing.T, cat *catalog.Catalog) *harness {
	t.Helper()
	api := typeformfake.New()
	t.Cleanup(api.Close)

	h := &harness{
		api:   api,
		cfg:   newTestConfig(api),
		sink:  &testutil.MemorySink{},
		store: &testutil.MemoryStore{},
	}
	log := testutil.TestLogger(t)
	collector := metrics.NewCollector()

	h.manager = state.NewManager(h.store, h.sink, testStart, collector, log)
	h.session = NewSession(h.cfg, cat, h.manager, h.sink, collector, log)
	h.session.Now = func() time.Time { return testNow }
	h.syncer = NewSyncer(h.session, newTestGate(t, api, collector))
	return h
}

// responses builds n items named prefix0..prefixN-1, one second apart.
func responses(prefix string, n int, from time.Time) []typeformfake.Response {
	out := make([]typeformfake.Response, n)
	for i := range out {
		at := from.Add(time.Duration(i) * time.Second).Format(state.DateFormat)
		out[i] = typeformfake.NewResponse(fmt.Sprintf("%s%d", prefix, i), at)
	}
	return out
}
