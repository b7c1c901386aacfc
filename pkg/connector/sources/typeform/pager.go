package typeform

import (
	"context"
	stderrors "errors"
	"net/url"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/ajitpratap0/formtap/pkg/clients"
	"github.com/ajitpratap0/formtap/pkg/config"
	"github.com/ajitpratap0/formtap/pkg/errors"
	"github.com/ajitpratap0/formtap/pkg/metrics"
	"github.com/ajitpratap0/formtap/pkg/state"
)

// Page is one fetched page of responses.
type Page struct {
	Items      []ResponseItem
	TotalItems int
	// MaxSubmittedAt is the latest submitted_at on the page, zero for an empty page
	MaxSubmittedAt time.Time
	// LastToken is the token of the last item, empty for an empty page
	LastToken string
	// Full reports that the page held PageSize items and more may follow
	Full bool
}

// Pager fetches response pages of one form ordered by submitted_at.
type Pager struct {
	gate     Caller
	pageSize int
	timeout  time.Duration
	metrics  *metrics.Collector
	logger   *zap.Logger
}

// NewPager creates a pager. timeout bounds each FetchPage including retries.
func NewPager(gate Caller, pageSize int, timeout time.Duration, collector *metrics.Collector, logger *zap.Logger) *Pager {
	return &Pager{
		gate:     gate,
		pageSize: pageSize,
		timeout:  timeout,
		metrics:  collector,
		logger:   logger.With(zap.String("component", "pager")),
	}
}

// FetchPage requests the page after token, or the first page of the
// [start, end] window when token is empty. The upstream ignores the window
// once a token is given, so only after and page_size are sent then.
func (p *Pager) FetchPage(ctx context.Context, formID string, start, end time.Time, token string) (*Page, error) {
	ctx, span := otel.Tracer("github.com/ajitpratap0/formtap/pkg/connector/sources/typeform").Start(ctx, "pager.fetch_page")
	defer span.End()
	span.SetAttributes(
		attribute.String("form_id", formID),
		attribute.Bool("resume", token != ""),
	)

	params := url.Values{"page_size": {strconv.Itoa(p.pageSize)}}
	if token != "" {
		params.Set("after", token)
	} else {
		params.Set("since", state.FormatDate(start))
		params.Set("until", state.FormatDate(end))
		params.Set("sort", "submitted_at,asc")
	}

	p.logger.Info("responses query",
		zap.String("form_id", formID),
		zap.String("since", params.Get("since")),
		zap.String("until", params.Get("until")),
		zap.String("after", token))

	var body ResponsePage
	if err := callWithTimeout(ctx, p.gate, p.timeout, clients.Request{
		Endpoint: clients.EndpointResponses,
		Path:     "/forms/" + url.PathEscape(formID) + "/responses",
		Params:   params,
	}, &body); err != nil {
		span.RecordError(err)
		return nil, err
	}
	p.metrics.PageFetched()

	page := &Page{
		Items:      body.Items,
		TotalItems: body.TotalItems,
		Full:       len(body.Items) == p.pageSize,
	}
	if n := len(body.Items); n > 0 {
		page.LastToken = body.Items[n-1].Token
	}
	for _, item := range body.Items {
		at, err := config.ParseDate(item.SubmittedAt)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeData, "invalid submitted_at on response").
				WithDetail("form_id", formID).
				WithDetail("token", item.Token)
		}
		if at.After(page.MaxSubmittedAt) {
			page.MaxSubmittedAt = at
		}
	}

	span.SetAttributes(attribute.Int("items", len(body.Items)))
	return page, nil
}

// callWithTimeout bounds one logical call, retries included. Running out of
// time is reported as a timeout error; cancellation of ctx itself is not.
func callWithTimeout(ctx context.Context, gate Caller, timeout time.Duration, req clients.Request, out interface{}) error {
	if timeout <= 0 {
		return gate.Call(ctx, req, out)
	}

	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	err := gate.Call(callCtx, req, out)
	if err != nil && ctx.Err() == nil && stderrors.Is(callCtx.Err(), context.DeadlineExceeded) {
		return errors.Wrap(err, errors.ErrorTypeTimeout, "page fetch exceeded its time budget").
			WithDetail(errors.DetailEndpoint, req.Endpoint).
			WithDetail(errors.DetailTimeout, timeout.String())
	}
	return err
}
