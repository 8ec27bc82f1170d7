package tracegas

import (
	"errors"
	"testing"

	"github.com/satdata/tracegas-aggregation/internal/calendar"
	"github.com/satdata/tracegas-aggregation/internal/product"
)

func TestCloudThresholdDefaults(t *testing.T) {
	cases := []struct {
		source string
		want   float64
	}{
		{"omi", 0.2},
		{"modis", 0},
		{"rad", 0.5},
	}
	for _, c := range cases {
		r, err := Options{CloudSource: c.source}.Resolve()
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", c.source, err)
		}
		if r.CloudFractionMax != c.want {
			t.Errorf("%s: threshold = %g, want %g", c.source, r.CloudFractionMax, c.want)
		}
	}

	// An explicit threshold overrides the source default.
	th := 0.35
	r, err := Options{CloudSource: "omi", CloudFractionMax: &th}.Resolve()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.CloudFractionMax != 0.35 {
		t.Errorf("threshold = %g, want 0.35", r.CloudFractionMax)
	}
}

func TestResolveRejectsBadConfig(t *testing.T) {
	bad := 1.5
	falseV := false
	cases := []struct {
		name string
		opts Options
	}{
		{"conflicting day flags", Options{Flags: []string{"weekend", "weekday"}}},
		{"unknown cloud source", Options{CloudSource: "goes"}},
		{"cloud threshold out of range", Options{CloudFractionMax: &bad}},
		{"decreasing cbrange", Options{CBRange: []float64{3, 1}}},
		{"negative row range", Options{RowRange: []int{-1, 5}}},
		{"reversed row range", Options{RowRange: []int{10, 5}}},
		{"no outputs requested", Options{MakeFigure: &falseV, ReturnGrid: &falseV}},
	}
	for _, c := range cases {
		if _, err := c.opts.Resolve(); !errors.Is(err, ErrBadConfig) {
			t.Errorf("%s: err = %v, want ErrBadConfig", c.name, err)
		}
	}
}

func TestResolveDefaults(t *testing.T) {
	r, err := Options{}.Resolve()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.MapField != "ColumnAmountNO2Trop" {
		t.Errorf("map field = %q", r.MapField)
	}
	if r.Resolution != 0.05 {
		t.Errorf("resolution = %g, want 0.05", r.Resolution)
	}
	if r.MaxSolarZenithAngle != 180 {
		t.Errorf("max solar zenith angle = %g, want 180", r.MaxSolarZenithAngle)
	}
	if r.CloudSource != product.CloudOMI || r.CloudFractionMax != 0.2 {
		t.Errorf("cloud defaults = %s/%g, want omi/0.2", r.CloudSource, r.CloudFractionMax)
	}
	if r.DayPolicy != calendar.AllDays || r.DayMask != (calendar.ExclusionMask{}) {
		t.Errorf("day policy = %s with mask %v, want all days", r.DayPolicy, r.DayMask)
	}
	if !r.MakeFigure || !r.ReturnGrid {
		t.Error("figure and grid outputs should default to requested")
	}
}

func TestResolveFlags(t *testing.T) {
	r, err := Options{Flags: []string{"restricted_weekend", "holidays"}}.Resolve()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.DayPolicy != calendar.RestrictedWeekend {
		t.Errorf("policy = %s, want restricted_weekend", r.DayPolicy)
	}
	want := calendar.ExclusionMask{false, true, true, true, true, true, true}
	if r.DayMask != want {
		t.Errorf("mask = %v, want %v", r.DayMask, want)
	}
	if !r.ExcludeHolidays {
		t.Error("holiday exclusion should be set")
	}
}
