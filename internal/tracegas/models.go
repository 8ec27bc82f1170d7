package tracegas

import (
	"fmt"
	"math"
	"time"

	"github.com/ctessum/sparse"
)

// DateRange is an inclusive pair of calendar days.
type DateRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Validate checks that both endpoints are set and ordered.
func (r DateRange) Validate() error {
	if r.Start.IsZero() || r.End.IsZero() {
		return fmt.Errorf("%w: date range endpoints must be set", ErrBadConfig)
	}
	if r.Start.After(r.End) {
		return fmt.Errorf("%w: date range start %s is after end %s", ErrBadConfig,
			r.Start.Format("2006-01-02"), r.End.Format("2006-01-02"))
	}
	return nil
}

// Days calls fn for every calendar day in the range, in order.
func (r DateRange) Days(fn func(time.Time) error) error {
	start := time.Date(r.Start.Year(), r.Start.Month(), r.Start.Day(), 0, 0, 0, 0, time.UTC)
	end := time.Date(r.End.Year(), r.End.Month(), r.End.Day(), 0, 0, 0, 0, time.UTC)
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		if err := fn(d); err != nil {
			return err
		}
	}
	return nil
}

// Bounds is the geographic extent of the output mesh.
type Bounds struct {
	LonMin float64 `json:"lonMin"`
	LonMax float64 `json:"lonMax"`
	LatMin float64 `json:"latMin"`
	LatMax float64 `json:"latMax"`
}

func (b Bounds) Validate() error {
	if b.LonMin > b.LonMax {
		return fmt.Errorf("%w: longitude bounds [%g, %g] are reversed", ErrBadConfig, b.LonMin, b.LonMax)
	}
	if b.LatMin > b.LatMax {
		return fmt.Errorf("%w: latitude bounds [%g, %g] are reversed", ErrBadConfig, b.LatMin, b.LatMax)
	}
	return nil
}

// GriddedResult is the output of one averaging run: the regular mesh, the
// interpolated mean and sample-count grids, and the resolved options that
// produced them.
type GriddedResult struct {
	Field string `json:"field"`

	Lon []float64 `json:"lon"` // mesh longitude nodes, ascending
	Lat []float64 `json:"lat"` // mesh latitude nodes, ascending

	// Mean and Count have shape [len(Lat), len(Lon)]; NaN marks "no data".
	Mean  *sparse.DenseArray `json:"-"`
	Count *sparse.DenseArray `json:"-"`

	Bounds  Bounds          `json:"bounds"`
	Ranges  []DateRange     `json:"ranges"`
	Options ResolvedOptions `json:"options"`

	// DaysUsed is the number of days that contributed data.
	DaysUsed int `json:"daysUsed"`

	// ColorScale is the render handle, or the no-figure marker when no
	// figure was produced.
	ColorScale ColorScale `json:"colorScale"`

	GeneratedAt time.Time `json:"generatedAt"`
}

// MeanRows returns the mean grid as rows of nullable values for JSON
// encoding, with nil in place of NaN.
func (g *GriddedResult) MeanRows() [][]*float64 { return rows(g.Mean) }

// CountRows returns the count grid as rows of nullable values.
func (g *GriddedResult) CountRows() [][]*float64 { return rows(g.Count) }

func rows(a *sparse.DenseArray) [][]*float64 {
	if a == nil || len(a.Shape) != 2 {
		return nil
	}
	out := make([][]*float64, a.Shape[0])
	for j := range out {
		row := make([]*float64, a.Shape[1])
		for i := range row {
			v := a.Get(j, i)
			if !math.IsNaN(v) {
				row[i] = &v
			}
		}
		out[j] = row
	}
	return out
}
