package tracegas

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/satdata/tracegas-aggregation/internal/calendar"
	"github.com/satdata/tracegas-aggregation/internal/product"
)

// Fetcher retrieves a missing per-day file from a remote archive into the
// local data store. An error wrapping product.ErrNoData means the archive
// has no file for that day either.
type Fetcher interface {
	FetchDay(ctx context.Context, date time.Time) error
}

// ResultStore persists gridded results.
type ResultStore interface {
	Save(result *GriddedResult)
	Latest(field string) (*GriddedResult, error)
	Range(field string, from, to time.Time) ([]*GriddedResult, error)
}

// Request is one averaging run: date ranges, output boundaries and the
// named options.
type Request struct {
	Ranges  []DateRange `json:"ranges"`
	Bounds  Bounds      `json:"bounds"`
	Options Options     `json:"options"`
}

// Service orchestrates per-day loading, temporal averaging, regridding,
// optional rendering and result storage.
type Service struct {
	products product.Store
	fetcher  Fetcher // optional
	results  ResultStore
	holidays calendar.Calendar
	renderer Renderer
}

// NewService creates a new Service. fetcher may be nil when no remote
// archive is configured; holidays and renderer fall back to no-op
// implementations when nil.
func NewService(products product.Store, fetcher Fetcher, results ResultStore,
	holidays calendar.Calendar, renderer Renderer) *Service {
	if holidays == nil {
		holidays = calendar.NoHolidays{}
	}
	if renderer == nil {
		renderer = NullRenderer{}
	}
	return &Service{
		products: products,
		fetcher:  fetcher,
		results:  results,
		holidays: holidays,
		renderer: renderer,
	}
}

// Run resolves and validates the request, performs the averaging run, and
// optionally renders and stores the result.
func (s *Service) Run(ctx context.Context, req Request) (*GriddedResult, error) {
	opts, err := req.Options.Resolve()
	if err != nil {
		return nil, err
	}

	store := s.products
	if opts.DataDir != "" || opts.FilePrefix != "" {
		// Per-request override of the file location.
		fs, ok := s.products.(*product.FileStore)
		if !ok {
			return nil, fmt.Errorf("%w: dataDir/filePrefix overrides require a file-backed product store", ErrBadConfig)
		}
		dir, prefix := fs.Dir, fs.Prefix
		if opts.DataDir != "" {
			dir = opts.DataDir
		}
		if opts.FilePrefix != "" {
			prefix = opts.FilePrefix
		}
		store = product.NewFileStore(dir, prefix)
	}
	if s.fetcher != nil {
		store = &fetchingStore{Store: store, fetcher: s.fetcher, ctx: ctx}
	}

	result, err := Average(ctx, store, s.holidays, req.Ranges, req.Bounds, opts)
	if err != nil {
		return nil, err
	}

	if opts.MakeFigure {
		scale, err := s.renderer.Render(ctx, RenderParams{
			Projection: opts.Projection,
			Coast:      opts.Coast,
			Color:      opts.Color,
			States:     opts.States,
			CBRange:    opts.CBRange,
			Bounds:     req.Bounds,
		}, result)
		if err != nil {
			return nil, fmt.Errorf("rendering: %w", err)
		}
		result.ColorScale = scale
	}

	if s.results != nil {
		s.results.Save(result)
	}
	return result, nil
}

// Latest returns the most recent stored result for a field.
func (s *Service) Latest(field string) (*GriddedResult, error) {
	return s.results.Latest(field)
}

// History returns stored results for a field generated between from and to.
func (s *Service) History(field string, from, to time.Time) ([]*GriddedResult, error) {
	return s.results.Range(field, from, to)
}

// fetchingStore tries the remote archive once for days the local store does
// not have. Fetch failures other than "day not in archive" are logged and
// treated as a missing day; they never abort the run.
type fetchingStore struct {
	product.Store
	fetcher Fetcher
	ctx     context.Context
}

func (f *fetchingStore) LoadDay(date time.Time) (*product.Product, error) {
	if !f.Store.HasDay(date) {
		if err := f.fetcher.FetchDay(f.ctx, date); err != nil {
			if !errors.Is(err, product.ErrNoData) {
				log.Printf("WARN: fetching %s from archive: %v", date.Format(product.DateFormat), err)
			}
			return nil, fmt.Errorf("%s: %w", date.Format(product.DateFormat), product.ErrNoData)
		}
	}
	return f.Store.LoadDay(date)
}
