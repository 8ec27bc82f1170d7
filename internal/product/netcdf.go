package product

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/ctessum/cdf"
	"github.com/ctessum/sparse"

	"github.com/satdata/tracegas-aggregation/internal/common"
)

// fillValue marks missing retrievals in stored files.
const fillValue = -1.0e30

// cloudVars maps stored cloud-fraction variable names to their sources.
var cloudVars = map[string]CloudSource{
	"CloudFractionOMI":      CloudOMI,
	"CloudFractionMODIS":    CloudMODIS,
	"CloudFractionRadiance": CloudRadiance,
}

// FileStore reads and writes per-day NetCDF product files in a directory.
type FileStore struct {
	Dir    string
	Prefix string
}

func NewFileStore(dir, prefix string) *FileStore {
	return &FileStore{Dir: dir, Prefix: prefix}
}

// Path returns the file path for a given day.
func (s *FileStore) Path(date time.Time) string {
	return filepath.Join(s.Dir, s.Prefix+date.Format(DateFormat)+".nc")
}

func (s *FileStore) HasDay(date time.Time) bool {
	_, err := os.Stat(s.Path(date))
	return err == nil
}

// LoadDay reads the product file for a day. A missing file wraps ErrNoData.
func (s *FileStore) LoadDay(date time.Time) (*Product, error) {
	path := s.Path(date)
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%s: %w", path, ErrNoData)
		}
		return nil, fmt.Errorf("product: opening %s: %w", path, err)
	}
	defer f.Close()

	nc, err := cdf.Open(f)
	if err != nil {
		return nil, fmt.Errorf("product: opening %s: %w", path, err)
	}

	lens := nc.Header.Lengths("Latitude")
	if len(lens) != 3 {
		return nil, fmt.Errorf("product: %s: Latitude must have dimensions [overpass, y, x]", path)
	}
	n, ny, nx := lens[0], lens[1], lens[2]

	p := &Product{
		Date:       time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC),
		Overpasses: make([]Overpass, n),
	}
	for o := range p.Overpasses {
		p.Overpasses[o].Fields = make(map[string]*sparse.DenseArray)
		p.Overpasses[o].CloudFraction = make(map[CloudSource]*sparse.DenseArray)
	}

	for _, v := range nc.Header.Variables() {
		vlens := nc.Header.Lengths(v)
		if len(vlens) != 3 {
			continue
		}
		if vlens[0] != n || vlens[1] != ny || vlens[2] != nx {
			return nil, fmt.Errorf("product: %s: variable %s shape %v disagrees with Latitude shape %v",
				path, v, vlens, lens)
		}
		data, err := readVar(nc, v)
		if err != nil {
			return nil, fmt.Errorf("product: %s: %w", path, err)
		}
		if data == nil { // not floating point
			continue
		}
		for o := 0; o < n; o++ {
			arr := sparse.ZerosDense(ny, nx)
			copy(arr.Elements, data[o*ny*nx:(o+1)*ny*nx])
			ov := &p.Overpasses[o]
			switch {
			case v == "Latitude":
				ov.Lat = arr
			case v == "Longitude":
				ov.Lon = arr
			case v == "SolarZenithAngle":
				ov.SolarZenithAngle = arr
			case v == "RowAnomaly":
				ov.RowAnomaly = arr
			case common.HasAny(v, "CloudFraction"):
				source, ok := cloudVars[v]
				if !ok {
					return nil, fmt.Errorf("product: %s: unrecognized cloud variable %s", path, v)
				}
				ov.CloudFraction[source] = arr
			default:
				ov.Fields[v] = arr
			}
		}
	}
	return p, nil
}

// readVar reads an entire floating-point variable, converting the recorded
// _FillValue to NaN. It returns nil for non-floating-point variables.
func readVar(nc *cdf.File, v string) ([]float64, error) {
	r := nc.Reader(v, nil, nil)
	buf := r.Zero(-1)
	switch buf.(type) {
	case []float32, []float64:
	default:
		return nil, nil
	}
	if _, err := r.Read(buf); err != nil {
		return nil, fmt.Errorf("reading variable %s: %w", v, err)
	}

	var data []float64
	switch b := buf.(type) {
	case []float64:
		data = b
	case []float32:
		data = make([]float64, len(b))
		for i, val := range b {
			data[i] = float64(val)
		}
	}

	if fillI := nc.Header.GetAttribute(v, "_FillValue"); fillI != nil {
		var fill float64
		switch f := fillI.(type) {
		case []float32:
			fill = float64(f[0])
		case []float64:
			fill = f[0]
		default:
			return nil, fmt.Errorf("variable %s: invalid _FillValue type %T", v, fillI)
		}
		for i, d := range data {
			if d == fill {
				data[i] = math.NaN()
			}
		}
	}
	return data, nil
}

// WriteDay writes a product to the store's directory in the per-day file
// format, replacing any existing file for that day.
func (s *FileStore) WriteDay(p *Product) error {
	if len(p.Overpasses) == 0 {
		return fmt.Errorf("product: cannot write empty product for %s", p.Date.Format(DateFormat))
	}
	first := p.Overpasses[0]
	if first.Lat == nil || len(first.Lat.Shape) != 2 {
		return fmt.Errorf("product: overpass latitude must be a 2-d array")
	}
	ny, nx := first.Lat.Shape[0], first.Lat.Shape[1]
	n := len(p.Overpasses)

	stacks, err := stackVariables(p, ny, nx)
	if err != nil {
		return err
	}
	names := make([]string, 0, len(stacks))
	for name := range stacks {
		names = append(names, name)
	}
	sort.Strings(names)

	h := cdf.NewHeader([]string{"overpass", "y", "x"}, []int{n, ny, nx})
	h.AddAttribute("", "comment", "per-day trace-gas retrieval overpass stack")
	h.AddAttribute("", "date", p.Date.Format(DateFormat))
	for _, name := range names {
		h.AddVariable(name, []string{"overpass", "y", "x"}, []float32{0})
		h.AddAttribute(name, "_FillValue", []float32{fillValue})
	}
	h.Define()

	w, err := os.Create(s.Path(p.Date))
	if err != nil {
		return fmt.Errorf("product: creating %s: %w", s.Path(p.Date), err)
	}
	defer w.Close()

	f, err := cdf.Create(w, h)
	if err != nil {
		return fmt.Errorf("product: writing header for %s: %w", s.Path(p.Date), err)
	}
	for _, name := range names {
		end := f.Header.Lengths(name)
		start := make([]int, len(end))
		if _, err := f.Writer(name, start, end).Write(stacks[name]); err != nil {
			return fmt.Errorf("product: writing variable %s to %s: %w", name, s.Path(p.Date), err)
		}
	}
	if err := cdf.UpdateNumRecs(w); err != nil {
		return fmt.Errorf("product: finalizing %s: %w", s.Path(p.Date), err)
	}
	return nil
}

// stackVariables assembles per-overpass arrays into [overpass, y, x] float32
// stacks, converting NaN to the fill value. All overpasses must carry the
// same variables with the same shape.
func stackVariables(p *Product, ny, nx int) (map[string][]float32, error) {
	n := len(p.Overpasses)
	stacks := make(map[string][]float32)

	add := func(name string, o int, arr *sparse.DenseArray) error {
		if arr == nil {
			return fmt.Errorf("product: overpass %d is missing %s", o, name)
		}
		if len(arr.Shape) != 2 || arr.Shape[0] != ny || arr.Shape[1] != nx {
			return fmt.Errorf("product: overpass %d variable %s has shape %v, want [%d %d]",
				o, name, arr.Shape, ny, nx)
		}
		stack, ok := stacks[name]
		if !ok {
			stack = make([]float32, n*ny*nx)
			stacks[name] = stack
		}
		for i, v := range arr.Elements {
			if math.IsNaN(v) {
				stack[o*ny*nx+i] = fillValue
			} else {
				stack[o*ny*nx+i] = float32(v)
			}
		}
		return nil
	}

	for o, ov := range p.Overpasses {
		if err := add("Latitude", o, ov.Lat); err != nil {
			return nil, err
		}
		if err := add("Longitude", o, ov.Lon); err != nil {
			return nil, err
		}
		if err := add("SolarZenithAngle", o, ov.SolarZenithAngle); err != nil {
			return nil, err
		}
		if err := add("RowAnomaly", o, ov.RowAnomaly); err != nil {
			return nil, err
		}
		for name, source := range cloudVars {
			if err := add(name, o, ov.CloudFraction[source]); err != nil {
				return nil, err
			}
		}
		for name, arr := range ov.Fields {
			if err := add(name, o, arr); err != nil {
				return nil, err
			}
		}
	}
	// A field present in one overpass but not another would leave stale
	// zeros in the stack; reject it.
	for name := range stacks {
		for o, ov := range p.Overpasses {
			if _, isCloud := cloudVars[name]; isCloud {
				continue
			}
			switch name {
			case "Latitude", "Longitude", "SolarZenithAngle", "RowAnomaly":
				continue
			}
			if _, ok := ov.Fields[name]; !ok {
				return nil, fmt.Errorf("product: overpass %d is missing field %s", o, name)
			}
		}
	}
	return stacks, nil
}
