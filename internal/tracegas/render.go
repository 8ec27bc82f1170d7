package tracegas

import (
	"context"
	"math"
)

// ColorScale is the handle returned by a renderer. The zero value is the
// explicit "no figure" marker.
type ColorScale struct {
	Figure  bool    `json:"figure"`
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
	Palette string  `json:"palette"`
}

// NoFigure marks a run that produced no figure.
var NoFigure = ColorScale{}

// RenderParams is everything a map renderer needs to draw a gridded result:
// projection choice, boundary coordinates, coastline detail, color palette,
// state-boundary toggle and optional fixed color-scale range.
type RenderParams struct {
	Projection string
	Coast      string
	Color      string
	States     bool
	CBRange    []float64
	Bounds     Bounds
}

// Renderer consumes a gridded result and produces a displayed figure plus a
// color-scale handle. It is a pure sink: implementations draw coastlines,
// administrative boundaries and the choropleth, but never modify the result.
type Renderer interface {
	Render(ctx context.Context, params RenderParams, result *GriddedResult) (ColorScale, error)
}

// NullRenderer is the default sink; it draws nothing and returns a handle
// carrying the color-scale range a real renderer would use.
type NullRenderer struct{}

func (NullRenderer) Render(_ context.Context, params RenderParams, result *GriddedResult) (ColorScale, error) {
	lo, hi := math.Inf(1), math.Inf(-1)
	if len(params.CBRange) == 2 {
		lo, hi = params.CBRange[0], params.CBRange[1]
	} else if result.Mean != nil {
		for _, v := range result.Mean.Elements {
			if math.IsNaN(v) {
				continue
			}
			lo = math.Min(lo, v)
			hi = math.Max(hi, v)
		}
	}
	if lo > hi { // all no-data
		lo, hi = 0, 0
	}
	return ColorScale{Figure: true, Min: lo, Max: hi, Palette: params.Color}, nil
}
