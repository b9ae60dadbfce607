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

// Package raster manipulates and analyzes gridded climate and
// hydrological data. It provides coordinate normalization, zonal
// statistics over polygon regions, and assembly of split
// control/perturbed forecast members into a single ensemble.
//
// A Raster is a single variable over N named dimensions; a Dataset is a
// group of variables sharing one coordinate set. Values are stored in
// sparse.DenseArray grids with NaN marking missing data. Operations come
// in pairs: a pure method that returns a transformed copy, and an
// InPlace variant that mutates the receiver and returns no value beyond
// an error.
package raster

import (
	"math"

	"github.com/ctessum/geom/proj"
	"github.com/ctessum/sparse"
)

// Default dimension names used when no explicit declaration is made.
var (
	defaultXDims = []string{"lon", "x"}
	defaultYDims = []string{"lat", "y"}
	defaultTDims = []string{"t", "T", "time"}
)

// Raster is a single N-dimensional labeled variable. At minimum it has
// two spatial dimensions; it may additionally carry a time dimension and
// arbitrary extra dimensions such as ensemble member or forecast step.
type Raster struct {
	// Name is the variable name.
	Name string

	// Dims holds the dimension names in storage order.
	Dims []string

	// Coords holds the coordinate values for each dimension.
	Coords map[string][]float64

	// CoordAttrs holds attributes attached to each dimension's
	// coordinate variable, such as "units" and "calendar".
	CoordAttrs map[string]map[string]string

	// Attrs holds the variable's own attributes.
	Attrs map[string]string

	// Data holds one value per grid cell. Missing values are NaN.
	Data *sparse.DenseArray

	crs              *proj.SR
	xDim, yDim, tDim string
}

// New creates a Raster from the given dimension names, coordinates and
// data. The data shape must match the coordinate lengths. Spatial and
// temporal dimensions are inferred from the default names when present.
func New(name string, dims []string, coords map[string][]float64, data *sparse.DenseArray) (*Raster, error) {
	if err := checkShape(dims, coords, data); err != nil {
		return nil, err
	}
	r := &Raster{
		Name:       name,
		Dims:       dims,
		Coords:     coords,
		CoordAttrs: make(map[string]map[string]string),
		Attrs:      make(map[string]string),
		Data:       data,
	}
	r.xDim, r.yDim, r.tDim = inferDims(dims)
	return r, nil
}

func checkShape(dims []string, coords map[string][]float64, data *sparse.DenseArray) error {
	if len(data.Shape) != len(dims) {
		return &ShapeError{Reason: "number of dimensions does not match data shape"}
	}
	for i, d := range dims {
		c, ok := coords[d]
		if !ok {
			return &ShapeError{Dim: d, Reason: "no coordinate values"}
		}
		if len(c) != data.Shape[i] {
			return &ShapeError{Dim: d, Reason: "coordinate length does not match data shape"}
		}
	}
	return nil
}

// inferDims resolves the spatial and temporal dimensions from
// the default dimension names, returning empty strings for
// dimensions that cannot be identified.
func inferDims(dims []string) (x, y, t string) {
	has := func(name string) bool {
		for _, d := range dims {
			if d == name {
				return true
			}
		}
		return false
	}
	for _, n := range defaultXDims {
		if has(n) {
			x = n
			break
		}
	}
	for _, n := range defaultYDims {
		if has(n) {
			y = n
			break
		}
	}
	for _, n := range defaultTDims {
		if has(n) {
			t = n
			break
		}
	}
	return x, y, t
}

// hasDim reports whether name is among the raster's dimensions.
func hasDim(dims []string, name string) bool {
	for _, d := range dims {
		if d == name {
			return true
		}
	}
	return false
}

func dimIndex(dims []string, name string) int {
	for i, d := range dims {
		if d == name {
			return i
		}
	}
	return -1
}

// SpatialDims returns the names of the X (longitude) and Y (latitude)
// dimensions, or a DimensionError if they could not be identified.
func (r *Raster) SpatialDims() (x, y string, err error) {
	if r.xDim == "" || r.yDim == "" {
		return "", "", &DimensionError{Dim: "spatial (x/y)"}
	}
	return r.xDim, r.yDim, nil
}

// SetSpatialDims declares which dimensions are to be treated as the X
// and Y spatial axes, overriding the defaults.
func (r *Raster) SetSpatialDims(x, y string) error {
	if !hasDim(r.Dims, x) {
		return &DimensionError{Dim: x}
	}
	if !hasDim(r.Dims, y) {
		return &DimensionError{Dim: y}
	}
	r.xDim, r.yDim = x, y
	return nil
}

// TimeDim returns the name of the time dimension, or a DimensionError if
// it was never declared and could not be inferred.
func (r *Raster) TimeDim() (string, error) {
	if r.tDim == "" {
		return "", &DimensionError{Dim: "time"}
	}
	return r.tDim, nil
}

// SetTimeDim returns a copy of the raster with the named dimension
// declared as the time axis. It fails with a DimensionError if name is
// not among the raster's dimensions.
func (r *Raster) SetTimeDim(name string) (*Raster, error) {
	out := r.Copy()
	if err := out.SetTimeDimInPlace(name); err != nil {
		return nil, err
	}
	return out, nil
}

// SetTimeDimInPlace is like SetTimeDim but modifies the receiver.
func (r *Raster) SetTimeDimInPlace(name string) error {
	if !hasDim(r.Dims, name) {
		return &DimensionError{Dim: name}
	}
	r.tDim = name
	return nil
}

// SetCRS parses the given PROJ specification (e.g. "+proj=longlat") and
// attaches it to the raster as its coordinate reference system.
func (r *Raster) SetCRS(projSpec string) error {
	sr, err := proj.Parse(projSpec)
	if err != nil {
		return err
	}
	r.crs = sr
	return nil
}

// CRS returns the raster's coordinate reference system, or nil if none
// has been set.
func (r *Raster) CRS() *proj.SR { return r.crs }

// Copy returns a deep copy of the raster.
func (r *Raster) Copy() *Raster {
	out := &Raster{
		Name:       r.Name,
		Dims:       append([]string(nil), r.Dims...),
		Coords:     copyCoords(r.Coords),
		CoordAttrs: copyAttrGroups(r.CoordAttrs),
		Attrs:      copyAttrs(r.Attrs),
		Data:       r.Data.Copy(),
		crs:        r.crs,
		xDim:       r.xDim,
		yDim:       r.yDim,
		tDim:       r.tDim,
	}
	return out
}

func copyCoords(coords map[string][]float64) map[string][]float64 {
	out := make(map[string][]float64, len(coords))
	for d, c := range coords {
		out[d] = append([]float64(nil), c...)
	}
	return out
}

func copyAttrs(attrs map[string]string) map[string]string {
	out := make(map[string]string, len(attrs))
	for k, v := range attrs {
		out[k] = v
	}
	return out
}

func copyAttrGroups(groups map[string]map[string]string) map[string]map[string]string {
	out := make(map[string]map[string]string, len(groups))
	for d, attrs := range groups {
		out[d] = copyAttrs(attrs)
	}
	return out
}

// coordAttrs returns the attribute map for dimension dim, creating it
// if necessary.
func coordAttrs(groups map[string]map[string]string, dim string) map[string]string {
	if groups[dim] == nil {
		groups[dim] = make(map[string]string)
	}
	return groups[dim]
}

// IsMissing reports whether the value at the given index is missing.
func (r *Raster) IsMissing(index ...int) bool {
	return math.IsNaN(r.Data.Get(index...))
}
