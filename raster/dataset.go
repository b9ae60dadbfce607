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
	"sort"

	"github.com/ctessum/geom/proj"
	"github.com/ctessum/sparse"
)

// Variable is one data variable within a Dataset. Its Dims must be a
// subset of the Dataset's coordinate dimensions, in storage order.
type Variable struct {
	Dims  []string
	Attrs map[string]string
	Data  *sparse.DenseArray
}

// Copy returns a deep copy of the variable.
func (v *Variable) Copy() *Variable {
	return &Variable{
		Dims:  append([]string(nil), v.Dims...),
		Attrs: copyAttrs(v.Attrs),
		Data:  v.Data.Copy(),
	}
}

// Dataset is a group of variables sharing one set of named coordinates.
// The coordinate normalization operations available on a Raster are also
// available here and apply to every variable that carries the affected
// dimension.
type Dataset struct {
	// Coords holds the coordinate values for each dimension.
	Coords map[string][]float64

	// CoordAttrs holds attributes attached to each dimension's
	// coordinate variable, such as "units" and "calendar".
	CoordAttrs map[string]map[string]string

	// Attrs holds the dataset's global attributes.
	Attrs map[string]string

	// Vars holds the data variables by name.
	Vars map[string]*Variable

	crs              *proj.SR
	xDim, yDim, tDim string
}

// NewDataset creates a Dataset from the given coordinates and variables,
// checking each variable's shape against the coordinate lengths.
// Spatial and temporal dimensions are inferred from the default names.
func NewDataset(coords map[string][]float64, vars map[string]*Variable) (*Dataset, error) {
	dims := make([]string, 0, len(coords))
	for d := range coords {
		dims = append(dims, d)
	}
	sort.Strings(dims)
	for name, v := range vars {
		if err := checkShape(v.Dims, coords, v.Data); err != nil {
			return nil, fmt.Errorf("raster: variable %s: %w", name, err)
		}
		if v.Attrs == nil {
			v.Attrs = make(map[string]string)
		}
	}
	ds := &Dataset{
		Coords:     coords,
		CoordAttrs: make(map[string]map[string]string),
		Attrs:      make(map[string]string),
		Vars:       vars,
	}
	ds.xDim, ds.yDim, ds.tDim = inferDims(dims)
	return ds, nil
}

// Dims returns the dataset's dimension names in sorted order.
func (d *Dataset) Dims() []string {
	dims := make([]string, 0, len(d.Coords))
	for dim := range d.Coords {
		dims = append(dims, dim)
	}
	sort.Strings(dims)
	return dims
}

// TimeDim returns the name of the time dimension, or a DimensionError if
// it was never declared and could not be inferred.
func (d *Dataset) TimeDim() (string, error) {
	if d.tDim == "" {
		return "", &DimensionError{Dim: "time"}
	}
	return d.tDim, nil
}

// SetTimeDim returns a copy of the dataset with the named dimension
// declared as the time axis. It fails with a DimensionError if name is
// not among the dataset's dimensions.
func (d *Dataset) SetTimeDim(name string) (*Dataset, error) {
	out := d.Copy()
	if err := out.SetTimeDimInPlace(name); err != nil {
		return nil, err
	}
	return out, nil
}

// SetTimeDimInPlace is like SetTimeDim but modifies the receiver.
func (d *Dataset) SetTimeDimInPlace(name string) error {
	if _, ok := d.Coords[name]; !ok {
		return &DimensionError{Dim: name}
	}
	d.tDim = name
	return nil
}

// SetSpatialDims declares which dimensions are to be treated as the X
// and Y spatial axes, overriding the defaults.
func (d *Dataset) SetSpatialDims(x, y string) error {
	if _, ok := d.Coords[x]; !ok {
		return &DimensionError{Dim: x}
	}
	if _, ok := d.Coords[y]; !ok {
		return &DimensionError{Dim: y}
	}
	d.xDim, d.yDim = x, y
	return nil
}

// SetCRS parses the given PROJ specification and attaches it to the
// dataset as its coordinate reference system.
func (d *Dataset) SetCRS(projSpec string) error {
	sr, err := proj.Parse(projSpec)
	if err != nil {
		return err
	}
	d.crs = sr
	return nil
}

// CRS returns the dataset's coordinate reference system, or nil if none
// has been set.
func (d *Dataset) CRS() *proj.SR { return d.crs }

// Raster extracts the named variable as a stand-alone Raster, carrying
// over the dataset's declared spatial and temporal dimensions and CRS.
// Dimensions the variable does not use are left behind.
func (d *Dataset) Raster(name string) (*Raster, error) {
	v, ok := d.Vars[name]
	if !ok {
		return nil, fmt.Errorf("raster: variable %s not in dataset", name)
	}
	coords := make(map[string][]float64, len(v.Dims))
	coordAttrs := make(map[string]map[string]string)
	for _, dim := range v.Dims {
		coords[dim] = append([]float64(nil), d.Coords[dim]...)
		if a, ok := d.CoordAttrs[dim]; ok {
			coordAttrs[dim] = copyAttrs(a)
		}
	}
	r := &Raster{
		Name:       name,
		Dims:       append([]string(nil), v.Dims...),
		Coords:     coords,
		CoordAttrs: coordAttrs,
		Attrs:      copyAttrs(v.Attrs),
		Data:       v.Data.Copy(),
		crs:        d.crs,
	}
	if hasDim(v.Dims, d.xDim) {
		r.xDim = d.xDim
	}
	if hasDim(v.Dims, d.yDim) {
		r.yDim = d.yDim
	}
	if hasDim(v.Dims, d.tDim) {
		r.tDim = d.tDim
	}
	return r, nil
}

// Copy returns a deep copy of the dataset.
func (d *Dataset) Copy() *Dataset {
	vars := make(map[string]*Variable, len(d.Vars))
	for name, v := range d.Vars {
		vars[name] = v.Copy()
	}
	return &Dataset{
		Coords:     copyCoords(d.Coords),
		CoordAttrs: copyAttrGroups(d.CoordAttrs),
		Attrs:      copyAttrs(d.Attrs),
		Vars:       vars,
		crs:        d.crs,
		xDim:       d.xDim,
		yDim:       d.yDim,
		tDim:       d.tDim,
	}
}
