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

// Package glofas post-processes GloFAS river discharge forecast data.
//
// GloFAS forecast and reforecast artifacts hold two separate
// sub-datasets: the control member, generated from the most accurate
// estimate of current conditions, and the perturbed forecast holding K
// ensemble members created by perturbing the control. This package
// combines the two into one K+1 member ensemble and extracts discharge
// series at configured reporting points.
package glofas

import (
	"fmt"
	"math"

	log "github.com/sirupsen/logrus"

	"github.com/ctessum/sparse"

	"github.com/OCHA-DAP/pa-aa-tools/ncf"
	"github.com/OCHA-DAP/pa-aa-tools/raster"
)

// MemberDim is the ensemble member dimension name used by GloFAS
// artifacts (the GRIB "number" coordinate).
const MemberDim = "number"

// DischargeVar is the river discharge variable name in GloFAS files.
const DischargeVar = "dis24"

// ReadEnsembleAndPerturbed reads the control and perturbed sub-datasets
// extracted from one GloFAS artifact and combines them into a single
// ensemble dataset: the control realization becomes member 0 and the K
// perturbed realizations become members 1..K.
func ReadEnsembleAndPerturbed(controlPath, perturbedPath string) (*raster.Dataset, error) {
	control, err := ncf.ReadDataset(controlPath)
	if err != nil {
		return nil, fmt.Errorf("glofas: read control forecast: %w", err)
	}
	perturbed, err := ncf.ReadDataset(perturbedPath)
	if err != nil {
		return nil, fmt.Errorf("glofas: read perturbed forecast: %w", err)
	}
	out, err := raster.AssembleEnsemble(control, perturbed, MemberDim)
	if err != nil {
		return nil, err
	}
	log.Infof("assembled %d member ensemble from control and perturbed forecasts",
		len(out.Coords[MemberDim]))
	return out, nil
}

// ReportingPoint is one station location at which discharge series are
// reported.
type ReportingPoint struct {
	Name string
	Lon  float64
	Lat  float64
}

// PointSeries is the forecast series extracted at one reporting point:
// the named variable with the spatial dimensions reduced away at the
// grid cell nearest the station.
type PointSeries struct {
	Point  ReportingPoint
	Series *raster.Raster
}

// ExtractReportingPoints reduces the named variable of a dataset to the
// grid cell nearest each reporting point, returning one series per
// point. Points falling outside the raster's coordinate coverage by
// more than one cell spacing are skipped with a warning.
func ExtractReportingPoints(ds *raster.Dataset, variable string, points []ReportingPoint) ([]PointSeries, error) {
	r, err := ds.Raster(variable)
	if err != nil {
		return nil, err
	}
	x, y, err := r.SpatialDims()
	if err != nil {
		return nil, err
	}
	lon, lat := r.Coords[x], r.Coords[y]

	out := make([]PointSeries, 0, len(points))
	for _, p := range points {
		ix, okX := nearestIndex(lon, p.Lon)
		iy, okY := nearestIndex(lat, p.Lat)
		if !okX || !okY {
			log.Warnf("reporting point %s (%g, %g) outside raster coverage, skipping",
				p.Name, p.Lon, p.Lat)
			continue
		}
		series, err := selectCell(r, x, y, ix, iy)
		if err != nil {
			return nil, fmt.Errorf("glofas: extract %s: %w", p.Name, err)
		}
		out = append(out, PointSeries{Point: p, Series: series})
	}
	return out, nil
}

// nearestIndex returns the index of the coordinate value closest to
// target, or false if target is more than one cell spacing outside the
// coordinate range.
func nearestIndex(coords []float64, target float64) (int, bool) {
	if len(coords) == 0 {
		return 0, false
	}
	best, bestDist := 0, math.Abs(coords[0]-target)
	for i, c := range coords[1:] {
		if d := math.Abs(c - target); d < bestDist {
			best, bestDist = i+1, d
		}
	}
	spacing := 1.0
	if len(coords) > 1 {
		spacing = math.Abs(coords[1] - coords[0])
	}
	if bestDist > spacing {
		return 0, false
	}
	return best, true
}

// selectCell reduces the raster to the single spatial cell (ix, iy),
// dropping the spatial dimensions from the result.
func selectCell(r *raster.Raster, x, y string, ix, iy int) (*raster.Raster, error) {
	xAxis, yAxis := -1, -1
	var outDims []string
	for i, d := range r.Dims {
		switch d {
		case x:
			xAxis = i
		case y:
			yAxis = i
		default:
			outDims = append(outDims, d)
		}
	}
	if xAxis < 0 || yAxis < 0 {
		return nil, &raster.DimensionError{Dim: "spatial (x/y)"}
	}

	outCoords := make(map[string][]float64, len(outDims))
	outShape := make([]int, len(outDims))
	for i, d := range outDims {
		outCoords[d] = append([]float64(nil), r.Coords[d]...)
		outShape[i] = len(outCoords[d])
	}

	out, err := raster.New(r.Name, outDims, outCoords, selectData(r, xAxis, yAxis, ix, iy, outShape))
	if err != nil {
		return nil, err
	}
	out.Attrs = copyStringMap(r.Attrs)
	for _, d := range outDims {
		if a, ok := r.CoordAttrs[d]; ok {
			out.CoordAttrs[d] = copyStringMap(a)
		}
	}
	return out, nil
}

func selectData(r *raster.Raster, xAxis, yAxis, ix, iy int, outShape []int) *sparse.DenseArray {
	out := sparse.ZerosDense(outShape...)
	index := make([]int, len(r.Dims))
	outIndex := make([]int, len(outShape))
	var walk func(axis, outAxis int)
	walk = func(axis, outAxis int) {
		if axis == len(r.Dims) {
			out.Set(r.Data.Get(index...), outIndex...)
			return
		}
		switch axis {
		case xAxis:
			index[axis] = ix
			walk(axis+1, outAxis)
		case yAxis:
			index[axis] = iy
			walk(axis+1, outAxis)
		default:
			for v := 0; v < r.Data.Shape[axis]; v++ {
				index[axis] = v
				outIndex[outAxis] = v
				walk(axis+1, outAxis+1)
			}
		}
	}
	walk(0, 0)
	return out
}

func copyStringMap(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
