package state

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/formtap/pkg/connector/core"
	"github.com/ajitpratap0/formtap/pkg/errors"
	"github.com/ajitpratap0/formtap/pkg/metrics"
	"github.com/ajitpratap0/formtap/pkg/testutil"
)

var runStart = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func newTestManager(t *testing.T) (*Manager, *testutil.MemoryStore, *testutil.MemorySink) {
	store := &testutil.MemoryStore{}
	sink := &testutil.MemorySink{}
	return NewManager(store, sink, runStart, metrics.NewCollector(), testutil.TestLogger(t)), store, sink
}

func TestManagerLoadDefaultsToStart(t *testing.T) {
	m, _, _ := newTestManager(t)

	cp := m.Load("unknown")
	assert.Equal(t, runStart, cp.DateToResume)
	assert.Empty(t, cp.Token)
}

func TestManagerInit(t *testing.T) {
	ctx := context.Background()

	t.Run("from store", func(t *testing.T) {
		m, store, _ := newTestManager(t)
		store.Doc = []byte(`{"bookmarks":{"abc":{"date_to_resume":"2024-02-01T10:00:00Z","last_synchronised_response_token":"tok"}}}`)

		require.NoError(t, m.Init(ctx, nil))
		cp := m.Load("abc")
		assert.Equal(t, time.Date(2024, 2, 1, 10, 0, 0, 0, time.UTC), cp.DateToResume)
		assert.Equal(t, "tok", cp.Token)
	})

	t.Run("argument wins over store", func(t *testing.T) {
		m, store, _ := newTestManager(t)
		store.Doc = []byte(`{"bookmarks":{"abc":{"date_to_resume":"2024-02-01T10:00:00Z"}}}`)

		require.NoError(t, m.Init(ctx, []byte(`{"bookmarks":{"xyz":{"date_to_resume":"2024-03-01T00:00:00Z"}}}`)))
		assert.Equal(t, runStart, m.Load("abc").DateToResume)
		assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), m.Load("xyz").DateToResume)
	})

	t.Run("invalid document", func(t *testing.T) {
		m, _, _ := newTestManager(t)
		err := m.Init(ctx, []byte(`{"bookmarks":{"abc":{"date_to_resume":"soon"}}}`))
		require.Error(t, err)
		assert.True(t, errors.IsType(err, errors.ErrorTypeState))
	})

	t.Run("empty date falls back to start", func(t *testing.T) {
		m, _, _ := newTestManager(t)
		require.NoError(t, m.Init(ctx, []byte(`{"bookmarks":{"f1":{"date_to_resume":""}}}`)))

		cp := m.Load("f1")
		assert.Equal(t, runStart, cp.DateToResume)
		assert.Empty(t, cp.Token)

		require.NoError(t, m.Save(ctx, "f1", runStart.Add(time.Hour), "tok"))
		assert.Equal(t, "2024-01-01T01:00:00Z", m.Snapshot().Bookmarks["f1"].DateToResume)
	})

	t.Run("date only", func(t *testing.T) {
		m, _, _ := newTestManager(t)
		require.NoError(t, m.Init(ctx, []byte(`{"bookmarks":{"f1":{"date_to_resume":"2018-01-01"}}}`)))
		assert.Equal(t, time.Date(2018, 1, 1, 0, 0, 0, 0, time.UTC), m.Load("f1").DateToResume)
	})
}

func TestManagerSave(t *testing.T) {
	ctx := context.Background()
	m, store, sink := newTestManager(t)

	later := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, m.Save(ctx, "abc", later, "tok-1"))

	assert.Equal(t, 1, store.Saves)
	assert.JSONEq(t,
		`{"bookmarks":{"abc":{"date_to_resume":"2024-05-01T12:00:00Z","last_synchronised_response_token":"tok-1"}}}`,
		string(store.Doc))

	states := sink.States()
	require.Len(t, states, 1)
	emitted, ok := states[0].Value.(*State)
	require.True(t, ok)
	assert.Equal(t, "tok-1", emitted.Bookmarks["abc"].Token)

	t.Run("date never moves backwards", func(t *testing.T) {
		require.NoError(t, m.Save(ctx, "abc", later.Add(-48*time.Hour), "tok-2"))
		cp := m.Load("abc")
		assert.Equal(t, later, cp.DateToResume)
		assert.Equal(t, "tok-2", cp.Token)
	})

	t.Run("empty token keeps previous", func(t *testing.T) {
		require.NoError(t, m.Save(ctx, "abc", later.Add(time.Hour), ""))
		cp := m.Load("abc")
		assert.Equal(t, later.Add(time.Hour), cp.DateToResume)
		assert.Equal(t, "tok-2", cp.Token)
	})

	t.Run("other forms untouched", func(t *testing.T) {
		require.NoError(t, m.Save(ctx, "xyz", runStart, ""))
		snap := m.Snapshot()
		assert.Len(t, snap.Bookmarks, 2)
		assert.Equal(t, "tok-2", snap.Bookmarks["abc"].Token)
	})
}

func TestManagerSavePersistsBeforeEmitting(t *testing.T) {
	ctx := context.Background()
	m, store, sink := newTestManager(t)
	store.Err = stderrors.New("disk full")

	err := m.Save(ctx, "abc", runStart, "tok")
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeState))
	assert.Empty(t, sink.States())
}

func TestManagerSaveSinkFailure(t *testing.T) {
	ctx := context.Background()
	m, store, sink := newTestManager(t)
	sink.FailOn = core.MessageTypeState
	sink.Err = stderrors.New("broken pipe")

	err := m.Save(ctx, "abc", runStart, "tok")
	require.Error(t, err)
	assert.Equal(t, errors.ErrorTypeSink, errors.TypeOf(err))
	assert.Equal(t, 1, store.Saves)
}

func TestManagerWithoutStore(t *testing.T) {
	ctx := context.Background()
	sink := &testutil.MemorySink{}
	m := NewManager(nil, sink, runStart, nil, testutil.TestLogger(t))

	require.NoError(t, m.Init(ctx, nil))
	require.NoError(t, m.Save(ctx, "abc", runStart.Add(time.Hour), "tok"))
	require.NoError(t, m.Save(ctx, "abc", runStart.Add(2*time.Hour), ""))
	require.Len(t, sink.States(), 2)
	assert.Equal(t, "tok", m.Snapshot().Bookmarks["abc"].Token)
}
