package typeform

import (
	"context"
	"iter"
	"net/url"
	"strconv"

	"go.uber.org/zap"

	"github.com/ajitpratap0/formtap/pkg/clients"
)

// Discovery walks the paginated form listing.
type Discovery struct {
	gate     Caller
	pageSize int
	logger   *zap.Logger
}

// NewDiscovery creates a form listing iterator fetching pageSize forms per call.
func NewDiscovery(gate Caller, pageSize int, logger *zap.Logger) *Discovery {
	return &Discovery{
		gate:     gate,
		pageSize: pageSize,
		logger:   logger.With(zap.String("component", "discovery")),
	}
}

// Pages yields listing pages lazily from startPage on. The sequence stops
// after the first page shorter than the page size, after an error, or when
// the consumer stops ranging.
func (d *Discovery) Pages(ctx context.Context, startPage int) iter.Seq2[FormPage, error] {
	return d.pages(ctx, startPage, d.pageSize)
}

// Discover calls onPage for every listing page from page on, using
// pageSize forms per call. onPage runs before the next page is requested;
// an error from it stops the walk and is returned.
func (d *Discovery) Discover(ctx context.Context, onPage func(FormPage) error, page, pageSize int) error {
	if pageSize <= 0 {
		pageSize = d.pageSize
	}
	for fp, err := range d.pages(ctx, page, pageSize) {
		if err != nil {
			return err
		}
		if err := onPage(fp); err != nil {
			return err
		}
	}
	return nil
}

func (d *Discovery) pages(ctx context.Context, startPage, pageSize int) iter.Seq2[FormPage, error] {
	return func(yield func(FormPage, error) bool) {
		for page := max(startPage, 1); ; page++ {
			fp, err := d.fetch(ctx, page, pageSize)
			if err != nil {
				yield(FormPage{}, err)
				return
			}
			if !yield(fp, nil) {
				return
			}
			if len(fp.Items) < pageSize {
				return
			}
		}
	}
}

func (d *Discovery) fetch(ctx context.Context, page, pageSize int) (FormPage, error) {
	var fp FormPage
	err := d.gate.Call(ctx, clients.Request{
		Endpoint: clients.EndpointForms,
		Path:     "/forms",
		Params: url.Values{
			"page":      {strconv.Itoa(page)},
			"page_size": {strconv.Itoa(pageSize)},
		},
	}, &fp)
	if err != nil {
		return FormPage{}, err
	}

	fp.Page = page
	d.logger.Debug("form page fetched",
		zap.Int("page", page),
		zap.Int("forms", len(fp.Items)),
		zap.Int("total_items", fp.TotalItems))
	return fp, nil
}
