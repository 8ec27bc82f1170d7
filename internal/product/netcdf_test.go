package product

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/ctessum/sparse"
)

func testArray(ny, nx int, fill func(j, i int) float64) *sparse.DenseArray {
	a := sparse.ZerosDense(ny, nx)
	for j := 0; j < ny; j++ {
		for i := 0; i < nx; i++ {
			a.Set(fill(j, i), j, i)
		}
	}
	return a
}

func testOverpass(ny, nx int, value float64) Overpass {
	return Overpass{
		Lat: testArray(ny, nx, func(j, i int) float64 { return 38 + float64(j) }),
		Lon: testArray(ny, nx, func(j, i int) float64 { return -105 + float64(i) }),
		SolarZenithAngle: testArray(ny, nx, func(j, i int) float64 {
			return 30
		}),
		RowAnomaly: testArray(ny, nx, func(j, i int) float64 { return 0 }),
		CloudFraction: map[CloudSource]*sparse.DenseArray{
			CloudOMI:      testArray(ny, nx, func(j, i int) float64 { return 0.1 }),
			CloudMODIS:    testArray(ny, nx, func(j, i int) float64 { return 0.1 }),
			CloudRadiance: testArray(ny, nx, func(j, i int) float64 { return 0.1 }),
		},
		Fields: map[string]*sparse.DenseArray{
			"ColumnAmountNO2Trop": testArray(ny, nx, func(j, i int) float64 { return value }),
		},
	}
}

// equalAllowNaN compares arrays treating NaN as equal to NaN.
func equalAllowNaN(a, b *sparse.DenseArray) bool {
	if len(a.Elements) != len(b.Elements) {
		return false
	}
	for i, v := range a.Elements {
		w := b.Elements[i]
		if math.IsNaN(v) != math.IsNaN(w) {
			return false
		}
		if !math.IsNaN(v) && float32(v) != float32(w) {
			return false
		}
	}
	return true
}

func TestFileStoreRoundTrip(t *testing.T) {
	store := NewFileStore(t.TempDir(), "OMI-Aura_L2-OMNO2_")
	date := time.Date(2019, 7, 1, 0, 0, 0, 0, time.UTC)

	p := &Product{
		Date:       date,
		Overpasses: []Overpass{testOverpass(2, 3, 10), testOverpass(2, 3, 20)},
	}
	// A gap in the retrieval stays a gap across write and read.
	p.Overpasses[0].Fields["ColumnAmountNO2Trop"].Set(math.NaN(), 1, 2)

	if store.HasDay(date) {
		t.Fatal("HasDay reported a file before writing")
	}
	if err := store.WriteDay(p); err != nil {
		t.Fatalf("WriteDay: %v", err)
	}
	if !store.HasDay(date) {
		t.Fatal("HasDay did not see the written file")
	}

	got, err := store.LoadDay(date)
	if err != nil {
		t.Fatalf("LoadDay: %v", err)
	}
	if len(got.Overpasses) != 2 {
		t.Fatalf("expected 2 overpasses, got %d", len(got.Overpasses))
	}

	for o := range p.Overpasses {
		want, have := p.Overpasses[o], got.Overpasses[o]
		if !equalAllowNaN(want.Lat, have.Lat) || !equalAllowNaN(want.Lon, have.Lon) {
			t.Errorf("overpass %d: coordinates changed across round trip", o)
		}
		if !equalAllowNaN(want.Fields["ColumnAmountNO2Trop"], have.Fields["ColumnAmountNO2Trop"]) {
			t.Errorf("overpass %d: field values changed across round trip", o)
		}
		for _, src := range []CloudSource{CloudOMI, CloudMODIS, CloudRadiance} {
			if have.CloudFraction[src] == nil {
				t.Errorf("overpass %d: cloud fraction %s missing after round trip", o, src)
			}
		}
		if have.SolarZenithAngle == nil || have.RowAnomaly == nil {
			t.Errorf("overpass %d: quality arrays missing after round trip", o)
		}
	}

	if !math.IsNaN(got.Overpasses[0].Fields["ColumnAmountNO2Trop"].Get(1, 2)) {
		t.Error("missing retrieval did not come back as NaN")
	}
}

func TestLoadDayMissingFile(t *testing.T) {
	store := NewFileStore(t.TempDir(), "OMI-Aura_L2-OMNO2_")
	date := time.Date(2019, 7, 1, 0, 0, 0, 0, time.UTC)

	if _, err := store.LoadDay(date); !errors.Is(err, ErrNoData) {
		t.Fatalf("expected ErrNoData, got %v", err)
	}
}

func TestWriteDayRejectsRaggedOverpasses(t *testing.T) {
	store := NewFileStore(t.TempDir(), "OMI-Aura_L2-OMNO2_")
	date := time.Date(2019, 7, 1, 0, 0, 0, 0, time.UTC)

	ragged := testOverpass(2, 3, 20)
	ragged.SolarZenithAngle = testArray(3, 3, func(j, i int) float64 { return 30 })

	p := &Product{
		Date:       date,
		Overpasses: []Overpass{testOverpass(2, 3, 10), ragged},
	}
	if err := store.WriteDay(p); err == nil {
		t.Fatal("expected an error for mismatched overpass shapes")
	}
}

func TestCoordsMismatch(t *testing.T) {
	date := time.Date(2019, 7, 1, 0, 0, 0, 0, time.UTC)

	shifted := testOverpass(2, 3, 20)
	shifted.Lat = testArray(2, 3, func(j, i int) float64 { return 39 + float64(j) })

	p := &Product{
		Date:       date,
		Overpasses: []Overpass{testOverpass(2, 3, 10), shifted},
	}
	if _, _, err := p.Coords(); !errors.Is(err, ErrCoordinateMismatch) {
		t.Fatalf("expected ErrCoordinateMismatch, got %v", err)
	}
}
