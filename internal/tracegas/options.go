package tracegas

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/satdata/tracegas-aggregation/internal/calendar"
	"github.com/satdata/tracegas-aggregation/internal/product"
)

// ErrBadConfig marks configuration errors: they are raised before any file
// I/O and abort the run.
var ErrBadConfig = errors.New("invalid configuration")

var validate = validator.New()

// RowAnomalyMode selects how pixels affected by the instrument row anomaly
// are handled.
type RowAnomalyMode int

const (
	// RowAnomalyIgnore keeps all pixels regardless of flags.
	RowAnomalyIgnore RowAnomalyMode = iota
	// RowAnomalyExcludePixels drops individually flagged pixels.
	RowAnomalyExcludePixels
	// RowAnomalyExcludeRows drops every pixel in a cross-track row that
	// contains at least one flagged pixel that day.
	RowAnomalyExcludeRows
	// RowAnomalyStaticRows drops the known affected row band whether or
	// not flags are present.
	RowAnomalyStaticRows
)

// The cross-track row band (zero-based, inclusive) excluded under
// RowAnomalyStaticRows.
const (
	staticRowMin = 26
	staticRowMax = 44
)

// Options are the named options of an averaging request. Zero or nil values
// take documented defaults during Resolve.
type Options struct {
	// MapField is the retrieved quantity to average.
	MapField string `json:"mapField"`

	// Resolution is the output grid spacing in degrees.
	Resolution float64 `json:"resolution" validate:"gte=0"`

	// Projection, Coast, Color, States and CBRange are passed through to
	// the map renderer.
	Projection string    `json:"projection" validate:"omitempty,oneof=conic mercator"`
	Coast      string    `json:"coast" validate:"omitempty,oneof=crude low intermediate high full"`
	Color      string    `json:"color"`
	States     *bool     `json:"states"`
	CBRange    []float64 `json:"cbrange" validate:"omitempty,len=2"`

	// DataDir and FilePrefix locate the per-day files; they default to the
	// service configuration when empty.
	DataDir    string `json:"dataDir"`
	FilePrefix string `json:"filePrefix"`

	// Flags are day-of-week/holiday selection tokens: at most one of
	// "weekend", "weekday", "restricted_weekend", "restricted_weekday",
	// optionally combined with "holidays".
	Flags []string `json:"flags"`

	// CloudSource selects the cloud product used for filtering; the
	// CloudFractionMax default depends on it.
	CloudSource      string   `json:"cloudSource" validate:"omitempty,oneof=omi modis rad"`
	CloudFractionMax *float64 `json:"cloudFractionMax"`

	RowAnomalyMode RowAnomalyMode `json:"rowAnomalyMode" validate:"gte=0,lte=3"`
	RowRange       []int          `json:"rowRange" validate:"omitempty,len=2"`

	// MaxSolarZenithAngle excludes pixels with larger solar zenith angles;
	// the default of 180 filters nothing.
	MaxSolarZenithAngle float64 `json:"maxSolarZenithAngle" validate:"gte=0"`

	// MakeFigure controls whether the result is handed to the renderer.
	// When false, the gridded result must still be requested.
	MakeFigure *bool `json:"makeFigure"`
	ReturnGrid *bool `json:"returnGrid"`

	// Verbosity gates per-day debug logging during accumulation.
	Verbosity int `json:"verbosity"`
}

// ResolvedOptions is an Options value with every default applied and the
// day-of-week flags translated into a policy, mask and holiday toggle.
type ResolvedOptions struct {
	MapField   string    `json:"mapField"`
	Resolution float64   `json:"resolution"`
	Projection string    `json:"projection"`
	Coast      string    `json:"coast"`
	Color      string    `json:"color"`
	States     bool      `json:"states"`
	CBRange    []float64 `json:"cbrange,omitempty"`

	DataDir    string `json:"dataDir"`
	FilePrefix string `json:"filePrefix"`

	DayPolicy       calendar.DayPolicy     `json:"dayPolicy"`
	DayMask         calendar.ExclusionMask `json:"-"`
	ExcludeHolidays bool                   `json:"excludeHolidays"`

	CloudSource      product.CloudSource `json:"cloudSource"`
	CloudFractionMax float64             `json:"cloudFractionMax"`

	RowAnomalyMode RowAnomalyMode `json:"rowAnomalyMode"`
	RowRange       []int          `json:"rowRange,omitempty"`

	MaxSolarZenithAngle float64 `json:"maxSolarZenithAngle"`

	MakeFigure bool `json:"makeFigure"`
	ReturnGrid bool `json:"returnGrid"`

	Verbosity int `json:"verbosity"`
}

// cloudDefaults are the cloud-fraction thresholds applied when no explicit
// CloudFractionMax is supplied.
var cloudDefaults = map[product.CloudSource]float64{
	product.CloudOMI:      0.2,
	product.CloudMODIS:    0,
	product.CloudRadiance: 0.5,
}

// Resolve applies defaults and validates the option set. All rejections
// happen here, before any file I/O.
func (o Options) Resolve() (ResolvedOptions, error) {
	var r ResolvedOptions

	if err := validate.Struct(o); err != nil {
		return r, fmt.Errorf("%w: %v", ErrBadConfig, err)
	}

	r.MapField = o.MapField
	if r.MapField == "" {
		r.MapField = "ColumnAmountNO2Trop"
	}
	r.Resolution = o.Resolution
	if r.Resolution == 0 {
		r.Resolution = 0.05
	}
	r.Projection = defaultString(o.Projection, "conic")
	r.Coast = defaultString(o.Coast, "high")
	r.Color = defaultString(o.Color, "jet")
	r.States = defaultBool(o.States, true)
	r.DataDir = o.DataDir
	r.FilePrefix = o.FilePrefix

	if len(o.CBRange) == 2 {
		if o.CBRange[0] >= o.CBRange[1] {
			return r, fmt.Errorf("%w: cbrange [%g, %g] must be increasing",
				ErrBadConfig, o.CBRange[0], o.CBRange[1])
		}
		r.CBRange = []float64{o.CBRange[0], o.CBRange[1]}
	}

	policy, holidays, err := calendar.ParseFlags(o.Flags)
	if err != nil {
		return r, fmt.Errorf("%w: %v", ErrBadConfig, err)
	}
	r.DayPolicy = policy
	r.DayMask = policy.Mask()
	r.ExcludeHolidays = holidays

	r.CloudSource = product.CloudSource(defaultString(o.CloudSource, string(product.CloudOMI)))
	if o.CloudFractionMax != nil {
		if *o.CloudFractionMax < 0 || *o.CloudFractionMax > 1 {
			return r, fmt.Errorf("%w: cloud fraction threshold %g outside [0, 1]",
				ErrBadConfig, *o.CloudFractionMax)
		}
		r.CloudFractionMax = *o.CloudFractionMax
	} else {
		r.CloudFractionMax = cloudDefaults[r.CloudSource]
	}

	r.RowAnomalyMode = o.RowAnomalyMode
	if len(o.RowRange) == 2 {
		if o.RowRange[0] < 0 || o.RowRange[0] > o.RowRange[1] {
			return r, fmt.Errorf("%w: row range [%d, %d] is invalid",
				ErrBadConfig, o.RowRange[0], o.RowRange[1])
		}
		r.RowRange = []int{o.RowRange[0], o.RowRange[1]}
	}

	r.MaxSolarZenithAngle = o.MaxSolarZenithAngle
	if r.MaxSolarZenithAngle == 0 {
		r.MaxSolarZenithAngle = 180
	}

	r.MakeFigure = defaultBool(o.MakeFigure, true)
	r.ReturnGrid = defaultBool(o.ReturnGrid, true)
	if !r.MakeFigure && !r.ReturnGrid {
		return r, fmt.Errorf("%w: figure suppressed and no gridded output requested", ErrBadConfig)
	}

	r.Verbosity = o.Verbosity
	return r, nil
}

func defaultString(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func defaultBool(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}
