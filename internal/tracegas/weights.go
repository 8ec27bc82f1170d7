package tracegas

import (
	"errors"
	"fmt"
	"math"

	"github.com/ctessum/sparse"

	"github.com/satdata/tracegas-aggregation/internal/product"
)

// ErrFieldMissing is returned when a day's product lacks the requested map
// field or cloud product. The day is skipped with a warning.
var ErrFieldMissing = errors.New("field missing from product")

// DailyWeights computes one day's contribution to the running average: a
// weighted-value sum, a weight sum, and a valid-sample count, elementwise
// over the day's overpasses. A pixel sample survives if its value is
// defined, its cloud fraction is at or below the threshold, its solar
// zenith angle is at or below the cutoff, and its cross-track row passes
// the row-range and row-anomaly filters. Surviving samples weigh
// 1 - cloudFraction.
func DailyWeights(p *product.Product, o ResolvedOptions) (value, weight, count *sparse.DenseArray, err error) {
	for i, ov := range p.Overpasses {
		field, ok := ov.Fields[o.MapField]
		if !ok {
			return nil, nil, nil, fmt.Errorf("%w: %s in %s overpass %d",
				ErrFieldMissing, o.MapField, p.Date.Format(product.DateFormat), i)
		}
		cloud, ok := ov.CloudFraction[o.CloudSource]
		if !ok {
			return nil, nil, nil, fmt.Errorf("%w: %s cloud fraction in %s overpass %d",
				ErrFieldMissing, o.CloudSource, p.Date.Format(product.DateFormat), i)
		}

		if value == nil {
			value = sparse.ZerosDense(field.Shape...)
			weight = sparse.ZerosDense(field.Shape...)
			count = sparse.ZerosDense(field.Shape...)
		}

		excludedRow := rowFilter(ov, o)
		nx := field.Shape[1]
		for idx, v := range field.Elements {
			if math.IsNaN(v) {
				continue
			}
			row := idx % nx
			if excludedRow[row] {
				continue
			}
			if o.RowAnomalyMode == RowAnomalyExcludePixels &&
				ov.RowAnomaly != nil && ov.RowAnomaly.Elements[idx] != 0 {
				continue
			}
			cf := cloud.Elements[idx]
			if math.IsNaN(cf) || cf > o.CloudFractionMax {
				continue
			}
			if ov.SolarZenithAngle != nil {
				sza := ov.SolarZenithAngle.Elements[idx]
				if math.IsNaN(sza) || sza > o.MaxSolarZenithAngle {
					continue
				}
			}

			w := 1 - cf
			value.Elements[idx] += v * w
			weight.Elements[idx] += w
			count.Elements[idx]++
		}
	}
	return value, weight, count, nil
}

// rowFilter returns, per cross-track row index, whether the whole row is
// excluded for this overpass by the row-range option or the row-anomaly
// policy.
func rowFilter(ov product.Overpass, o ResolvedOptions) []bool {
	nx := 0
	for _, f := range ov.Fields {
		nx = f.Shape[1]
		break
	}
	excluded := make([]bool, nx)

	if len(o.RowRange) == 2 {
		for row := range excluded {
			if row < o.RowRange[0] || row > o.RowRange[1] {
				excluded[row] = true
			}
		}
	}

	switch o.RowAnomalyMode {
	case RowAnomalyExcludeRows:
		if ov.RowAnomaly == nil {
			break
		}
		for idx, flag := range ov.RowAnomaly.Elements {
			if flag != 0 {
				excluded[idx%nx] = true
			}
		}
	case RowAnomalyStaticRows:
		for row := staticRowMin; row <= staticRowMax && row < nx; row++ {
			excluded[row] = true
		}
	}
	return excluded
}
