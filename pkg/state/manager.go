package state

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ajitpratap0/formtap/pkg/connector/core"
	"github.com/ajitpratap0/formtap/pkg/errors"
	"github.com/ajitpratap0/formtap/pkg/metrics"
)

// Manager owns the bookmarks of a run. Every Save is persisted through the
// store before the STATE message is emitted, so the sink never announces a
// checkpoint that a restart could not see.
type Manager struct {
	store   core.StateStore
	sink    core.RecordSink
	start   time.Time
	metrics *metrics.Collector
	logger  *zap.Logger

	mu    sync.Mutex
	state *State
}

// NewManager creates a manager. start is the resume date of forms without a
// bookmark. store and collector may be nil.
func NewManager(store core.StateStore, sink core.RecordSink, start time.Time, collector *metrics.Collector, logger *zap.Logger) *Manager {
	return &Manager{
		store:   store,
		sink:    sink,
		start:   start.UTC(),
		metrics: collector,
		logger:  logger.With(zap.String("component", "state_manager")),
		state:   New(),
	}
}

// Init loads the initial state: from initial when given, else from the store.
func (m *Manager) Init(ctx context.Context, initial []byte) error {
	data := initial
	source := "argument"
	if len(data) == 0 && m.store != nil {
		var err error
		data, err = m.store.Load(ctx)
		if err != nil {
			return errors.Wrap(err, errors.ErrorTypeState, "failed to load state")
		}
		source = "store"
	}

	s, err := Parse(data)
	if err != nil {
		return err
	}

	m.mu.Lock()
	m.state = s
	m.mu.Unlock()

	m.logger.Info("state loaded",
		zap.String("source", source),
		zap.Int("bookmarks", len(s.Bookmarks)))
	return nil
}

// Load returns the checkpoint of a form, or the run start date and no token.
func (m *Manager) Load(formID string) Checkpoint {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.state.Bookmarks[formID]
	if !ok {
		return Checkpoint{DateToResume: m.start}
	}
	t, err := parseDate(b.DateToResume)
	if err != nil {
		return Checkpoint{DateToResume: m.start, Token: b.Token}
	}
	return Checkpoint{DateToResume: t, Token: b.Token}
}

// Save merges the bookmark of a form, persists the full state and emits it.
// date_to_resume never moves backwards; an empty token keeps the stored one.
func (m *Manager) Save(ctx context.Context, formID string, dateToResume time.Time, token string) error {
	m.mu.Lock()
	prev, ok := m.state.Bookmarks[formID]
	next := &Bookmark{DateToResume: FormatDate(dateToResume), Token: token}
	if ok {
		if prevDate, err := parseDate(prev.DateToResume); err == nil && prevDate.After(dateToResume) {
			next.DateToResume = prev.DateToResume
		}
		if token == "" {
			next.Token = prev.Token
		}
	}
	m.state.Bookmarks[formID] = next
	snapshot := m.state.Clone()
	m.mu.Unlock()

	if err := m.persist(ctx, snapshot); err != nil {
		return err
	}

	m.metrics.CheckpointSaved()
	m.logger.Debug("checkpoint saved",
		zap.String("form_id", formID),
		zap.String("date_to_resume", next.DateToResume),
		zap.String("token", next.Token))
	return nil
}

// Snapshot returns a copy of the current state.
func (m *Manager) Snapshot() *State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.Clone()
}

func (m *Manager) persist(ctx context.Context, snapshot *State) error {
	if m.store != nil {
		doc, err := snapshot.Marshal()
		if err != nil {
			return errors.Wrap(err, errors.ErrorTypeState, "failed to encode state")
		}
		if err := m.store.Save(ctx, doc); err != nil {
			return errors.Wrap(err, errors.ErrorTypeState, "failed to persist state")
		}
	}

	if err := m.sink.WriteState(ctx, core.NewStateMessage(snapshot)); err != nil {
		return errors.Wrap(err, errors.ErrorTypeSink, "failed to emit state")
	}
	return nil
}
