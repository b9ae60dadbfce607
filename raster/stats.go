/*
Copyright © 2023 the AA Toolbox authors.
This file is part of the AA Toolbox.

The AA Toolbox is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

The AA Toolbox is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with the AA Toolbox.  If not, see <http://www.gnu.org/licenses/>.
*/

package raster

import (
	"fmt"
	"math"
	"sort"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/index/rtree"
	log "github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Region is one named polygon feature in a region set. Feature
// identifiers need not be unique; rows sharing an identifier are treated
// as one region whose geometry is the union of their polygons.
type Region struct {
	Feature string
	Geom    geom.Polygonal
}

// DefaultStats is the statistics set used when none is requested.
var DefaultStats = []string{"mean", "std", "min", "max", "sum", "count"}

// StatsOptions configures ComputeStatistics.
type StatsOptions struct {
	// Stats names the statistics to compute. Valid names are "mean",
	// "std", "min", "max", "sum" and "count". If empty, DefaultStats
	// is used.
	Stats []string

	// Percentiles lists percentile values (0-100) to additionally
	// compute. Percentiles use the empirical quantile (no
	// interpolation between samples).
	Percentiles []int

	// AllTouched includes every grid cell whose area intersects a
	// region's geometry. If false (the default), only cells whose
	// center point falls inside the geometry are included.
	AllTouched bool
}

// Row is one row of a zonal statistics table: the statistics for one
// feature at one combination of the raster's residual (non-spatial)
// coordinates.
type Row struct {
	// Feature is the region identifier this row belongs to.
	Feature string

	// Coords locates the row along the raster's non-spatial
	// dimensions. It is empty for a purely two-dimensional raster.
	Coords map[string]float64

	// Values holds one value per statistics column. Missing results
	// are NaN.
	Values map[string]float64
}

// Table is the tabular result of ComputeStatistics, indexed by feature
// identifier and any residual non-spatial coordinates.
type Table struct {
	// FeatureColumn is the name of the feature identifier column.
	FeatureColumn string

	// Columns names the statistics columns in computation order,
	// following the <statistic>_<featureColumn> convention.
	Columns []string

	// Rows holds the per-feature row blocks concatenated in feature
	// iteration order.
	Rows []Row
}

// gridCell is one raster cell rectangle for spatial indexing.
type gridCell struct {
	geom.Polygonal
	ix, iy int
	center geom.Point
}

// ComputeStatistics computes aggregate statistics of the raster over
// each distinct feature of the given region set. The raster must have a
// CRS set; a MissingCRSError is returned otherwise.
//
// Distinct feature values are visited in first-occurrence order. For
// each feature the raster is clipped to the union of that feature's
// geometries; features with no overlapping cells are logged and skipped,
// contributing no rows. Statistics reduce over the two spatial
// dimensions only, so every remaining dimension contributes one row per
// coordinate value. All statistics except count skip missing values;
// a sum over an all-missing window is NaN rather than zero.
func (r *Raster) ComputeStatistics(regions []Region, featureColumn string, opts *StatsOptions) (*Table, error) {
	if r.crs == nil {
		return nil, &MissingCRSError{Var: r.Name}
	}
	x, y, err := r.SpatialDims()
	if err != nil {
		return nil, err
	}
	if opts == nil {
		opts = &StatsOptions{}
	}
	stats := opts.Stats
	if len(stats) == 0 {
		stats = DefaultStats
	}
	for _, s := range stats {
		if statFuncs[s] == nil {
			return nil, fmt.Errorf("raster: unknown statistic %q", s)
		}
	}

	columns := make([]string, 0, len(stats)+len(opts.Percentiles))
	for _, s := range stats {
		columns = append(columns, fmt.Sprintf("%s_%s", s, featureColumn))
	}
	for _, q := range opts.Percentiles {
		columns = append(columns, fmt.Sprintf("%dquant_%s", q, featureColumn))
	}

	cellTree := r.cellTree(x, y)
	xAxis, yAxis := dimIndex(r.Dims, x), dimIndex(r.Dims, y)
	residual := residualDims(r.Dims, x, y)

	table := &Table{FeatureColumn: featureColumn, Columns: columns}
	for _, feature := range distinctFeatures(regions) {
		union := featureGeometry(regions, feature)
		cells := clipCells(cellTree, union, opts.AllTouched)
		if len(cells) == 0 {
			log.Warnf("no overlapping raster cells for %s, skipping", feature)
			continue
		}

		for _, combo := range residualIndices(r.Data.Shape, residual) {
			vals := r.gatherCells(cells, combo, xAxis, yAxis)
			row := Row{
				Feature: feature,
				Coords:  make(map[string]float64, len(residual)),
				Values:  make(map[string]float64, len(columns)),
			}
			for _, ax := range residual {
				row.Coords[r.Dims[ax]] = r.Coords[r.Dims[ax]][combo[ax]]
			}
			for _, s := range stats {
				row.Values[fmt.Sprintf("%s_%s", s, featureColumn)] = statFuncs[s](vals)
			}
			for _, q := range opts.Percentiles {
				row.Values[fmt.Sprintf("%dquant_%s", q, featureColumn)] = percentile(vals, q)
			}
			table.Rows = append(table.Rows, row)
		}
	}
	return table, nil
}

// statFuncs reduces a window of non-missing values to one statistic.
// The input slice contains only non-missing values; an empty slice
// means every contributing cell was missing.
var statFuncs = map[string]func([]float64) float64{
	"mean": func(v []float64) float64 {
		if len(v) == 0 {
			return math.NaN()
		}
		return stat.Mean(v, nil)
	},
	"std": func(v []float64) float64 {
		if len(v) == 0 {
			return math.NaN()
		}
		return stat.StdDev(v, nil)
	},
	"min": func(v []float64) float64 {
		if len(v) == 0 {
			return math.NaN()
		}
		return floats.Min(v)
	},
	"max": func(v []float64) float64 {
		if len(v) == 0 {
			return math.NaN()
		}
		return floats.Max(v)
	},
	// A sum over an all-missing window is undefined, not zero.
	"sum": func(v []float64) float64 {
		if len(v) == 0 {
			return math.NaN()
		}
		return floats.Sum(v)
	},
	// count ignores missing values and has no skip-missing option
	// since that could not change its result.
	"count": func(v []float64) float64 {
		return float64(len(v))
	},
}

// percentile computes the empirical q-th percentile of the window.
func percentile(v []float64, q int) float64 {
	if len(v) == 0 {
		return math.NaN()
	}
	s := append([]float64(nil), v...)
	sort.Float64s(s)
	return stat.Quantile(float64(q)/100, stat.Empirical, s, nil)
}

// distinctFeatures returns the distinct feature values of the region set
// in first-occurrence order.
func distinctFeatures(regions []Region) []string {
	seen := make(map[string]bool, len(regions))
	var out []string
	for _, rg := range regions {
		if !seen[rg.Feature] {
			seen[rg.Feature] = true
			out = append(out, rg.Feature)
		}
	}
	return out
}

// featureGeometry returns the union of all geometries carrying the given
// feature value.
func featureGeometry(regions []Region, feature string) geom.Polygonal {
	var gs []geom.Polygonal
	for _, rg := range regions {
		if rg.Feature == feature {
			gs = append(gs, rg.Geom)
		}
	}
	u := gs[0]
	for _, g := range gs[1:] {
		u = u.Union(g)
	}
	return u
}

// cellTree builds a spatial index of the raster's grid cell rectangles.
// Cell boundaries lie at the midpoints between neighboring coordinate
// values.
func (r *Raster) cellTree(x, y string) *rtree.Rtree {
	xe := cellEdges(r.Coords[x])
	ye := cellEdges(r.Coords[y])
	tree := rtree.NewTree(25, 50)
	for ix := range r.Coords[x] {
		for iy := range r.Coords[y] {
			l, rt := math.Min(xe[ix], xe[ix+1]), math.Max(xe[ix], xe[ix+1])
			b, u := math.Min(ye[iy], ye[iy+1]), math.Max(ye[iy], ye[iy+1])
			// Polygon goes counter-clockwise.
			cell := &gridCell{
				Polygonal: geom.Polygon{{{X: l, Y: b}, {X: rt, Y: b}, {X: rt, Y: u}, {X: l, Y: u}, {X: l, Y: b}}},
				ix:        ix,
				iy:        iy,
				center:    geom.Point{X: r.Coords[x][ix], Y: r.Coords[y][iy]},
			}
			tree.Insert(cell)
		}
	}
	return tree
}

// cellEdges computes the n+1 cell boundary positions for n coordinate
// centers. A single-cell axis gets a unit-width cell.
func cellEdges(c []float64) []float64 {
	n := len(c)
	e := make([]float64, n+1)
	if n == 1 {
		e[0], e[1] = c[0]-0.5, c[0]+0.5
		return e
	}
	e[0] = c[0] - (c[1]-c[0])/2
	for i := 1; i < n; i++ {
		e[i] = (c[i-1] + c[i]) / 2
	}
	e[n] = c[n-1] + (c[n-1]-c[n-2])/2
	return e
}

// clipCells returns the grid cells overlapping the given geometry. With
// allTouched, a cell is included if its area intersects the geometry;
// otherwise only cells whose center lies inside (or on the edge of) the
// geometry are included.
func clipCells(tree *rtree.Rtree, g geom.Polygonal, allTouched bool) []*gridCell {
	var cells []*gridCell
	for _, item := range tree.SearchIntersect(g.Bounds()) {
		cell := item.(*gridCell)
		if allTouched {
			if cell.Intersection(g).Area() > 0 {
				cells = append(cells, cell)
			}
		} else if cell.center.Within(g) != geom.Outside {
			cells = append(cells, cell)
		}
	}
	return cells
}

// residualDims returns the axis positions of every dimension except the
// two spatial ones, in storage order.
func residualDims(dims []string, x, y string) []int {
	var out []int
	for i, d := range dims {
		if d != x && d != y {
			out = append(out, i)
		}
	}
	return out
}

// residualIndices returns one full index template per combination of
// the residual axes' indices. The spatial axis entries are left at zero
// for the caller to fill per cell. A raster with no residual dimensions
// gets a single template.
func residualIndices(shape []int, residual []int) [][]int {
	var out [][]int
	combo := make([]int, len(shape))
	var walk func(i int)
	walk = func(i int) {
		if i == len(residual) {
			out = append(out, append([]int(nil), combo...))
			return
		}
		for v := 0; v < shape[residual[i]]; v++ {
			combo[residual[i]] = v
			walk(i + 1)
		}
	}
	walk(0)
	return out
}

// gatherCells collects the non-missing values of the given cells at one
// residual coordinate combination.
func (r *Raster) gatherCells(cells []*gridCell, combo []int, xAxis, yAxis int) []float64 {
	vals := make([]float64, 0, len(cells))
	index := append([]int(nil), combo...)
	for _, cell := range cells {
		index[xAxis], index[yAxis] = cell.ix, cell.iy
		if v := r.Data.Get(index...); !math.IsNaN(v) {
			vals = append(vals, v)
		}
	}
	return vals
}
