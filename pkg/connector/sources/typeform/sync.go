package typeform

import (
	"context"
	"net/url"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/ajitpratap0/formtap/pkg/catalog"
	"github.com/ajitpratap0/formtap/pkg/clients"
	"github.com/ajitpratap0/formtap/pkg/config"
	"github.com/ajitpratap0/formtap/pkg/connector/core"
	"github.com/ajitpratap0/formtap/pkg/errors"
	"github.com/ajitpratap0/formtap/pkg/logger"
	"github.com/ajitpratap0/formtap/pkg/metrics"
	"github.com/ajitpratap0/formtap/pkg/state"
	"github.com/ajitpratap0/formtap/pkg/transform"
)

const tracerName = "github.com/ajitpratap0/formtap/pkg/connector/sources/typeform"

// Session holds everything one run writes to: the selected catalog, the
// checkpoint manager, the sink, per-stream counters and metrics.
type Session struct {
	Config  *config.TapConfig
	Catalog *catalog.Catalog
	State   *state.Manager
	Sink    core.RecordSink
	Metrics *metrics.Collector
	Logger  *zap.Logger
	RunID   string
	// Now is the clock; tests replace it
	Now func() time.Time

	counts      map[string]int
	schemasSent map[string]bool
}

// NewSession creates a session with a fresh run id.
func NewSession(cfg *config.TapConfig, cat *catalog.Catalog, mgr *state.Manager, sink core.RecordSink, collector *metrics.Collector, log *zap.Logger) *Session {
	runID := uuid.NewString()
	return &Session{
		Config:      cfg,
		Catalog:     cat,
		State:       mgr,
		Sink:        sink,
		Metrics:     collector,
		Logger:      log.With(zap.String("run_id", runID)),
		RunID:       runID,
		Now:         time.Now,
		counts:      make(map[string]int),
		schemasSent: make(map[string]bool),
	}
}

// Selected reports whether a stream is selected in the session catalog.
func (s *Session) Selected(stream string) bool {
	st := s.Catalog.Get(stream)
	return st != nil && st.IsSelected()
}

// Counts returns the number of records emitted per stream so far.
func (s *Session) Counts() map[string]int {
	out := make(map[string]int, len(s.counts))
	for k, v := range s.counts {
		out[k] = v
	}
	return out
}

// Emit transforms rows against the stream's catalog entry and writes them,
// preceded by the stream's SCHEMA the first time.
func (s *Session) Emit(ctx context.Context, stream string, rows []Row) error {
	if len(rows) == 0 {
		return nil
	}
	entry := s.Catalog.Get(stream)
	if entry == nil {
		return errors.New(errors.ErrorTypeConfig, "stream missing from catalog").
			WithDetail("stream", stream)
	}

	if !s.schemasSent[stream] {
		msg := core.NewSchemaMessage(stream, entry.Schema, entry.KeyProperties, entry.BookmarkProperties())
		if err := s.Sink.WriteSchema(ctx, msg); err != nil {
			return errors.Wrap(err, errors.ErrorTypeSink, "failed to write schema").
				WithDetail("stream", stream)
		}
		s.schemasSent[stream] = true
	}

	extracted := transform.FormatDateTime(s.Now())
	for _, row := range rows {
		rec, err := transform.Record(entry, row)
		if err != nil {
			return err
		}
		if err := s.Sink.WriteRecord(ctx, core.NewRecordMessage(stream, rec, extracted)); err != nil {
			return errors.Wrap(err, errors.ErrorTypeSink, "failed to write record").
				WithDetail("stream", stream)
		}
		s.Metrics.RecordEmitted(stream)
	}
	s.counts[stream] += len(rows)
	return nil
}

// Syncer drives one run: discover forms, then sync each form's definition
// and responses in turn.
type Syncer struct {
	session   *Session
	gate      Caller
	discovery *Discovery
	pager     *Pager
	timeout   time.Duration
	logger    *zap.Logger
}

// NewSyncer wires the discovery iterator and pager of a session onto gate.
func NewSyncer(session *Session, gate Caller) *Syncer {
	cfg := session.Config
	return &Syncer{
		session:   session,
		gate:      gate,
		discovery: NewDiscovery(gate, cfg.FormsPageSize, session.Logger),
		pager:     NewPager(gate, cfg.ResponsesPageSize, cfg.PageTimeout, session.Metrics, session.Logger),
		timeout:   cfg.PageTimeout,
		logger:    session.Logger.With(zap.String("component", "syncer")),
	}
}

// Run syncs every allowed form. The first fatal error aborts the run;
// checkpoints saved before it are kept.
func (s *Syncer) Run(ctx context.Context) error {
	ctx = logger.WithRunID(ctx, s.session.RunID)
	ctx, span := otel.Tracer(tracerName).Start(ctx, "sync.run")
	defer span.End()

	started := s.session.Now()
	end := config.StartOfDay(started)

	wantForms := s.session.Selected(config.StreamForms)
	wantQuestions := s.session.Selected(config.StreamQuestions)
	wantResponses := s.session.Selected(config.StreamLandings) || s.session.Selected(config.StreamAnswers)
	if !wantForms && !wantQuestions && !wantResponses {
		s.logger.Warn("no streams selected")
		return nil
	}

	s.logger.Info("sync started",
		zap.Time("end_date", end),
		zap.Bool("forms", wantForms),
		zap.Bool("questions", wantQuestions),
		zap.Bool("responses", wantResponses))

	synced := make(map[string]bool)
	err := s.discovery.Discover(ctx, func(page FormPage) error {
		if wantForms {
			rows := make([]Row, 0, len(page.Items))
			for _, f := range page.Items {
				if s.session.Config.FormAllowed(f.ID) {
					rows = append(rows, FormRow(f))
				}
			}
			if err := s.session.Emit(ctx, config.StreamForms, rows); err != nil {
				return err
			}
		}

		for _, f := range page.Items {
			if synced[f.ID] || !s.session.Config.FormAllowed(f.ID) {
				continue
			}
			synced[f.ID] = true

			if err := s.syncForm(ctx, f.ID, end, wantQuestions, wantResponses); err != nil {
				return err
			}
		}
		return nil
	}, 1, s.session.Config.FormsPageSize)

	if flushErr := s.session.Sink.Flush(ctx); err == nil && flushErr != nil {
		err = errors.Wrap(flushErr, errors.ErrorTypeSink, "failed to flush sink")
	}

	s.summarize(len(synced), started)
	if err != nil {
		span.RecordError(err)
		return err
	}
	return nil
}

func (s *Syncer) syncForm(ctx context.Context, formID string, end time.Time, questions, responses bool) error {
	ctx = context.WithValue(ctx, logger.FormIDKey, formID)
	ctx, span := otel.Tracer(tracerName).Start(ctx, "sync.form")
	defer span.End()
	span.SetAttributes(attribute.String("form_id", formID))

	log := s.logger.With(zap.String("form_id", formID))
	log.Info("syncing form")

	if questions {
		if err := s.syncDefinition(ctx, formID); err != nil {
			return err
		}
	}
	if responses {
		if err := s.syncResponses(ctx, formID, end, log); err != nil {
			return err
		}
	}
	return nil
}

func (s *Syncer) syncDefinition(ctx context.Context, formID string) error {
	var def Definition
	err := callWithTimeout(ctx, s.gate, s.timeout, clients.Request{
		Endpoint: clients.EndpointDefinition,
		Path:     "/forms/" + url.PathEscape(formID),
	}, &def)
	if err != nil {
		return err
	}
	return s.session.Emit(ctx, config.StreamQuestions, QuestionRows(formID, def.Fields))
}

func (s *Syncer) syncResponses(ctx context.Context, formID string, end time.Time, log *zap.Logger) error {
	cp := s.session.State.Load(formID)
	cursor, token := cp.DateToResume, cp.Token

	wantLandings := s.session.Selected(config.StreamLandings)
	wantAnswers := s.session.Selected(config.StreamAnswers)

	for pages := 1; ; pages++ {
		page, err := s.pager.FetchPage(ctx, formID, cursor, end, token)
		if err != nil {
			return err
		}

		var landings, answers []Row
		for _, item := range page.Items {
			if wantLandings {
				row, err := LandingRow(formID, item)
				if err != nil {
					return err
				}
				landings = append(landings, row)
			}
			if wantAnswers {
				rows, err := AnswerRows(formID, item)
				if err != nil {
					return err
				}
				answers = append(answers, rows...)
			}
		}
		if err := s.session.Emit(ctx, config.StreamLandings, landings); err != nil {
			return err
		}
		if err := s.session.Emit(ctx, config.StreamAnswers, answers); err != nil {
			return err
		}

		if len(page.Items) > 0 {
			cursor, token = page.MaxSubmittedAt, page.LastToken
		}
		if err := s.session.State.Save(ctx, formID, cursor, token); err != nil {
			return err
		}

		log.Info("responses page synced",
			zap.Int("page", pages),
			zap.Int("items", len(page.Items)),
			zap.Int("total_items", page.TotalItems),
			zap.String("date_to_resume", state.FormatDate(cursor)))

		if !page.Full {
			return nil
		}
	}
}

func (s *Syncer) summarize(forms int, started time.Time) {
	counts := s.session.Counts()
	for _, st := range s.session.Catalog.Selected() {
		s.logger.Info("stream summary",
			zap.String("stream", st.Stream),
			zap.Int("records", counts[st.Stream]))
	}
	s.logger.Info("sync finished",
		zap.Int("forms", forms),
		zap.Int("bookmarks", len(s.session.State.Snapshot().Bookmarks)),
		zap.Duration("elapsed", s.session.Now().Sub(started)))

	if path := s.session.Config.MetricsTextfile; path != "" {
		if err := s.session.Metrics.WriteTextfile(path); err != nil {
			s.logger.Warn("failed to write metrics textfile", zap.String("path", path), zap.Error(err))
		}
	}
}
