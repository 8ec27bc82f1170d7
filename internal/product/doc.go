// Package product models per-day satellite trace-gas retrieval files.
//
// # File layout
//
// One file per calendar day, named <prefix><yyyymmdd>.nc, in NetCDF classic
// format. Each file stacks the day's overpasses along the leading dimension:
//
//	dimensions: overpass, y, x
//	variables (all float32, [overpass, y, x]):
//	  Latitude, Longitude        pixel-center coordinates
//	  SolarZenithAngle           degrees
//	  RowAnomaly                 1 where the pixel is flagged by the
//	                             instrument row-anomaly classification
//	  CloudFractionOMI           O2-O2 cloud product cloud fraction
//	  CloudFractionMODIS         collocated MODIS cloud fraction
//	  CloudFractionRadiance      radiance-based effective cloud fraction
//
// Every other floating-point [overpass, y, x] variable is treated as a
// retrieved quantity (e.g. ColumnAmountNO2Trop) selectable for averaging.
//
// Missing retrievals are stored as the fill value recorded in the variable's
// _FillValue attribute and surface as NaN after loading.
//
// The x index of a pixel is its cross-track row position; the row-anomaly
// and row-range filters operate on that index.
package product
