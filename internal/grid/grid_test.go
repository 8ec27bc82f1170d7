package grid

import (
	"math"
	"testing"
)

func TestNewMeshValidation(t *testing.T) {
	if _, err := NewMesh(0, 1, 0, 1, 0); err == nil {
		t.Error("expected error for zero resolution")
	}
	if _, err := NewMesh(1, 0, 0, 1, 0.1); err == nil {
		t.Error("expected error for reversed longitude bounds")
	}
	if _, err := NewMesh(0, 1, 1, 0, 0.1); err == nil {
		t.Error("expected error for reversed latitude bounds")
	}

	m, err := NewMesh(-105, -100, 35, 40, 0.5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.Nx() != 11 || m.Ny() != 11 {
		t.Errorf("mesh is %dx%d, want 11x11", m.Ny(), m.Nx())
	}
	if m.Lon[0] != -105 || m.Lon[m.Nx()-1] != -100 {
		t.Errorf("longitude span [%g, %g], want [-105, -100]", m.Lon[0], m.Lon[m.Nx()-1])
	}
}

// A constant input surface must interpolate to the same constant everywhere
// inside the convex hull of the samples, and to NaN outside it.
func TestInterpolateConstantSurface(t *testing.T) {
	m, err := NewMesh(0, 1, 0, 1, 0.25)
	if err != nil {
		t.Fatal(err)
	}

	// Samples cover only the left half of the mesh domain.
	var samples []Sample
	for _, lon := range []float64{0, 0.25, 0.5} {
		for _, lat := range []float64{0, 0.25, 0.5, 0.75, 1} {
			samples = append(samples, Sample{Lon: lon, Lat: lat, Value: 5})
		}
	}

	out := Interpolate(samples, m)
	for j, lat := range m.Lat {
		for i, lon := range m.Lon {
			v := out.Get(j, i)
			if lon <= 0.5 {
				if math.Abs(v-5) > 1e-12 {
					t.Errorf("node (%g, %g) = %g, want 5", lon, lat, v)
				}
			} else if !math.IsNaN(v) {
				t.Errorf("node (%g, %g) = %g, want NaN outside hull", lon, lat, v)
			}
		}
	}
}

func TestInterpolateNoSamples(t *testing.T) {
	m, err := NewMesh(0, 1, 0, 1, 0.5)
	if err != nil {
		t.Fatal(err)
	}
	out := Interpolate(nil, m)
	for _, v := range out.Elements {
		if !math.IsNaN(v) {
			t.Fatalf("expected all-NaN grid, found %g", v)
		}
	}
}

func TestInterpolateExactSample(t *testing.T) {
	m, err := NewMesh(0, 1, 0, 1, 0.5)
	if err != nil {
		t.Fatal(err)
	}
	samples := []Sample{
		{Lon: 0, Lat: 0, Value: 1},
		{Lon: 1, Lat: 0, Value: 2},
		{Lon: 1, Lat: 1, Value: 3},
		{Lon: 0, Lat: 1, Value: 4},
		{Lon: 0.5, Lat: 0.5, Value: 10},
	}
	out := Interpolate(samples, m)
	if v := out.Get(1, 1); v != 10 {
		t.Errorf("node coincident with sample = %g, want 10", v)
	}
}
