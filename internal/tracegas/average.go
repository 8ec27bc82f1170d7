package tracegas

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/ctessum/sparse"

	"github.com/satdata/tracegas-aggregation/internal/calendar"
	"github.com/satdata/tracegas-aggregation/internal/grid"
	"github.com/satdata/tracegas-aggregation/internal/product"
)

// weightEpsilon is the accumulated weight below which a pixel's mean is
// treated as undefined. Near-zero weights would produce numerically
// unstable means, so they are dropped along with exact zeros.
const weightEpsilon = 1e-12

// accumulator carries the three running arrays of an averaging run. Shape
// is fixed by the first successfully loaded day.
type accumulator struct {
	valueSum  *sparse.DenseArray
	weightSum *sparse.DenseArray
	count     *sparse.DenseArray

	refLat *sparse.DenseArray
	refLon *sparse.DenseArray

	daysUsed int
}

func (a *accumulator) add(value, weight, count *sparse.DenseArray) {
	if a.valueSum == nil {
		a.valueSum = sparse.ZerosDense(value.Shape...)
		a.weightSum = sparse.ZerosDense(value.Shape...)
		a.count = sparse.ZerosDense(value.Shape...)
	}
	for i := range value.Elements {
		a.valueSum.Elements[i] += value.Elements[i]
		a.weightSum.Elements[i] += weight.Elements[i]
		a.count.Elements[i] += count.Elements[i]
	}
	a.daysUsed++
}

// Average iterates every calendar day in the requested ranges, accumulates
// a weighted temporal mean of the selected field, and regrids the result
// onto a regular mesh covering bounds at the resolved resolution.
//
// Missing files and filtered days are skipped; coordinate mismatches
// between overpasses (within a day or across days) abort the run.
func Average(ctx context.Context, store product.Store, cal calendar.Calendar,
	ranges []DateRange, bounds Bounds, o ResolvedOptions) (*GriddedResult, error) {

	for _, r := range ranges {
		if err := r.Validate(); err != nil {
			return nil, err
		}
	}
	if err := bounds.Validate(); err != nil {
		return nil, err
	}
	mesh, err := grid.NewMesh(bounds.LonMin, bounds.LonMax, bounds.LatMin, bounds.LatMax, o.Resolution)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadConfig, err)
	}

	var acc accumulator
	for _, r := range ranges {
		err := r.Days(func(d time.Time) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			return accumulateDay(store, cal, d, o, &acc)
		})
		if err != nil {
			return nil, err
		}
	}

	meanSamples, countSamples := normalize(&acc)
	if o.Verbosity >= 1 {
		log.Printf("DEBUG: %s: %d days used, %d valid pixels before regridding",
			o.MapField, acc.daysUsed, len(meanSamples))
	}

	return &GriddedResult{
		Field:       o.MapField,
		Lon:         mesh.Lon,
		Lat:         mesh.Lat,
		Mean:        grid.Interpolate(meanSamples, mesh),
		Count:       grid.Interpolate(countSamples, mesh),
		Bounds:      bounds,
		Ranges:      ranges,
		Options:     o,
		DaysUsed:    acc.daysUsed,
		ColorScale:  NoFigure,
		GeneratedAt: time.Now().UTC(),
	}, nil
}

// accumulateDay loads and accumulates a single calendar day.
func accumulateDay(store product.Store, cal calendar.Calendar, d time.Time,
	o ResolvedOptions, acc *accumulator) error {

	day := d.Format(product.DateFormat)
	if !calendar.BusinessDay(d, o.DayMask, o.ExcludeHolidays, cal) {
		if o.Verbosity >= 2 {
			log.Printf("DEBUG: %s: excluded by day-of-week/holiday filter", day)
		}
		return nil
	}

	p, err := store.LoadDay(d)
	if errors.Is(err, product.ErrNoData) {
		log.Printf("INFO: %s: no data file; skipping", day)
		return nil
	}
	if err != nil {
		return err
	}
	if len(p.Overpasses) == 0 {
		log.Printf("WARN: %s: file contains no overpass records; skipping", day)
		return nil
	}

	lat, lon, err := p.Coords()
	if err != nil {
		return err
	}
	if acc.refLat == nil {
		acc.refLat, acc.refLon = lat, lon
	} else if !product.ArraysEqual(acc.refLat, lat) || !product.ArraysEqual(acc.refLon, lon) {
		return fmt.Errorf("%s: %w", day, product.ErrCoordinateMismatch)
	}

	value, weight, count, err := DailyWeights(p, o)
	if errors.Is(err, ErrFieldMissing) {
		log.Printf("WARN: %v; skipping day", err)
		return nil
	}
	if err != nil {
		return err
	}

	acc.add(value, weight, count)
	if o.Verbosity >= 2 {
		log.Printf("DEBUG: %s: accumulated %d overpasses", day, len(p.Overpasses))
	}
	return nil
}

// normalize divides the accumulated weighted sum by the accumulated weight
// and drops undefined positions, returning aligned scattered samples for
// the mean and count grids.
func normalize(acc *accumulator) (mean, count []grid.Sample) {
	if acc.valueSum == nil {
		return nil, nil
	}
	for i, w := range acc.weightSum.Elements {
		if w < weightEpsilon {
			continue
		}
		lon := acc.refLon.Elements[i]
		lat := acc.refLat.Elements[i]
		mean = append(mean, grid.Sample{Lon: lon, Lat: lat, Value: acc.valueSum.Elements[i] / w})
		count = append(count, grid.Sample{Lon: lon, Lat: lat, Value: acc.count.Elements[i]})
	}
	return mean, count
}
