package product

import (
	"errors"
	"fmt"
	"time"

	"github.com/ctessum/sparse"
)

// DateFormat is the 8-digit date used in per-day file names.
const DateFormat = "20060102"

var (
	// ErrNoData is returned when no product file exists for a day.
	// Callers skip the day; it is never fatal.
	ErrNoData = errors.New("no product data for day")

	// ErrCoordinateMismatch indicates latitude/longitude arrays that
	// disagree between overpasses. It signals corrupted or mismatched
	// upstream data and always aborts an aggregation run.
	ErrCoordinateMismatch = errors.New("latitude/longitude mismatch between overpasses")
)

// CloudSource identifies which cloud product a cloud fraction came from.
type CloudSource string

const (
	CloudOMI      CloudSource = "omi"
	CloudMODIS    CloudSource = "modis"
	CloudRadiance CloudSource = "rad"
)

// Overpass is one satellite pass's retrieval swath: a set of 2-D field
// arrays with parallel coordinate and quality arrays, all sharing one shape.
type Overpass struct {
	Fields map[string]*sparse.DenseArray

	Lat *sparse.DenseArray
	Lon *sparse.DenseArray

	CloudFraction    map[CloudSource]*sparse.DenseArray
	RowAnomaly       *sparse.DenseArray
	SolarZenithAngle *sparse.DenseArray
}

// Product is the loaded per-day data artifact.
type Product struct {
	Date       time.Time
	Overpasses []Overpass
}

// Coords verifies that every overpass shares identical latitude/longitude
// arrays and returns them. A mismatch wraps ErrCoordinateMismatch.
func (p *Product) Coords() (lat, lon *sparse.DenseArray, err error) {
	if len(p.Overpasses) == 0 {
		return nil, nil, fmt.Errorf("product %s: %w", p.Date.Format(DateFormat), ErrNoData)
	}
	lat = p.Overpasses[0].Lat
	lon = p.Overpasses[0].Lon
	for i, ov := range p.Overpasses[1:] {
		if !ArraysEqual(lat, ov.Lat) || !ArraysEqual(lon, ov.Lon) {
			return nil, nil, fmt.Errorf("product %s overpass %d: %w",
				p.Date.Format(DateFormat), i+1, ErrCoordinateMismatch)
		}
	}
	return lat, lon, nil
}

// ArraysEqual reports whether two dense arrays have identical shape and
// elements.
func ArraysEqual(a, b *sparse.DenseArray) bool {
	if a == nil || b == nil {
		return a == b
	}
	if len(a.Shape) != len(b.Shape) {
		return false
	}
	for i, s := range a.Shape {
		if b.Shape[i] != s {
			return false
		}
	}
	for i, v := range a.Elements {
		if b.Elements[i] != v {
			return false
		}
	}
	return true
}

// Store locates and loads per-day products.
type Store interface {
	// LoadDay returns the product for the given calendar day, or an error
	// wrapping ErrNoData when no file exists for it.
	LoadDay(date time.Time) (*Product, error)

	// HasDay reports whether a file exists for the given day.
	HasDay(date time.Time) bool
}
