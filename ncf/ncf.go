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

// Package ncf reads and writes raster datasets as NetCDF files. It is
// the loader layer between raw downloaded artifacts on disk and the
// in-memory raster objects the post-processing operations work on.
package ncf

import (
	"fmt"
	"math"
	"os"
	"sort"

	"github.com/ctessum/cdf"
	"github.com/ctessum/sparse"

	"github.com/OCHA-DAP/pa-aa-tools/raster"
)

// ReadDataset reads every variable of the NetCDF file at path into a
// Dataset. One-dimensional variables named after their own dimension
// become coordinates; everything else becomes a data variable. Fill
// values are converted to NaN and scale_factor/add_offset packing is
// unpacked.
func ReadDataset(path string) (*raster.Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	ff, err := cdf.Open(f)
	if err != nil {
		return nil, fmt.Errorf("ncf: open %s: %w", path, err)
	}

	coords := make(map[string][]float64)
	coordAttrs := make(map[string]map[string]string)
	vars := make(map[string]*raster.Variable)
	for _, name := range ff.Header.Variables() {
		dims := ff.Header.Dimensions(name)
		if isCoordVar(name, dims) {
			c, err := readVar(ff, name)
			if err != nil {
				return nil, fmt.Errorf("ncf: read %s coordinate %s: %w", path, name, err)
			}
			coords[name] = c.Elements
			if attrs := stringAttrs(ff.Header, name); len(attrs) > 0 {
				coordAttrs[name] = attrs
			}
			continue
		}
		data, err := readVar(ff, name)
		if err != nil {
			return nil, fmt.Errorf("ncf: read %s variable %s: %w", path, name, err)
		}
		unpack(ff.Header, name, data)
		vars[name] = &raster.Variable{
			Dims:  dims,
			Attrs: stringAttrs(ff.Header, name),
			Data:  data,
		}
	}

	// A dimension without a coordinate variable gets 0-based index
	// coordinates so the dataset shape checks can hold.
	for _, v := range vars {
		for i, dim := range v.Dims {
			if _, ok := coords[dim]; !ok {
				c := make([]float64, v.Data.Shape[i])
				for j := range c {
					c[j] = float64(j)
				}
				coords[dim] = c
			}
		}
	}

	ds, err := raster.NewDataset(coords, vars)
	if err != nil {
		return nil, fmt.Errorf("ncf: %s: %w", path, err)
	}
	for dim, attrs := range coordAttrs {
		ds.CoordAttrs[dim] = attrs
	}
	for k, v := range stringAttrs(ff.Header, "") {
		ds.Attrs[k] = v
	}
	return ds, nil
}

// ReadRaster reads the named variable of the NetCDF file at path as a
// stand-alone Raster.
func ReadRaster(path, variable string) (*raster.Raster, error) {
	ds, err := ReadDataset(path)
	if err != nil {
		return nil, err
	}
	return ds.Raster(variable)
}

// isCoordVar reports whether a variable is a coordinate variable: one
// dimensional and named after its own dimension.
func isCoordVar(name string, dims []string) bool {
	return len(dims) == 1 && dims[0] == name
}

// readVar reads a whole variable into a dense array.
func readVar(ff *cdf.File, name string) (*sparse.DenseArray, error) {
	dims := ff.Header.Lengths(name)
	if len(dims) == 0 {
		return nil, fmt.Errorf("variable not in file")
	}
	nread := 1
	for _, d := range dims {
		if d == 0 {
			return nil, fmt.Errorf("record dimensions are not supported")
		}
		nread *= d
	}
	r := ff.Reader(name, nil, nil)
	buf := r.Zero(nread)
	if _, err := r.Read(buf); err != nil {
		return nil, err
	}
	data := sparse.ZerosDense(dims...)
	switch b := buf.(type) {
	case []float64:
		copy(data.Elements, b)
	case []float32:
		for i, v := range b {
			data.Elements[i] = float64(v)
		}
	case []int32:
		for i, v := range b {
			data.Elements[i] = float64(v)
		}
	case []int16:
		for i, v := range b {
			data.Elements[i] = float64(v)
		}
	case []int8:
		for i, v := range b {
			data.Elements[i] = float64(v)
		}
	default:
		return nil, fmt.Errorf("unsupported data type %T", buf)
	}
	return data, nil
}

// unpack applies _FillValue/missing_value and scale_factor/add_offset
// conventions to a freshly read variable.
func unpack(h *cdf.Header, name string, data *sparse.DenseArray) {
	for _, attr := range []string{"_FillValue", "missing_value"} {
		if fill, ok := attrFloat(h, name, attr); ok {
			for i, v := range data.Elements {
				if v == fill {
					data.Elements[i] = math.NaN()
				}
			}
		}
	}
	scale, hasScale := attrFloat(h, name, "scale_factor")
	offset, hasOffset := attrFloat(h, name, "add_offset")
	if !hasScale && !hasOffset {
		return
	}
	if !hasScale {
		scale = 1
	}
	for i, v := range data.Elements {
		if !math.IsNaN(v) {
			data.Elements[i] = v*scale + offset
		}
	}
}

// attrFloat returns the named numeric attribute as a float64.
func attrFloat(h *cdf.Header, v, name string) (float64, bool) {
	switch a := h.GetAttribute(v, name).(type) {
	case []float64:
		if len(a) > 0 {
			return a[0], true
		}
	case []float32:
		if len(a) > 0 {
			return float64(a[0]), true
		}
	case []int32:
		if len(a) > 0 {
			return float64(a[0]), true
		}
	case []int16:
		if len(a) > 0 {
			return float64(a[0]), true
		}
	}
	return 0, false
}

// stringAttrs collects the text attributes of a variable (or the global
// attributes for v == ""). Numeric attributes are handled separately by
// the unpacking logic and are not carried into the attribute maps.
func stringAttrs(h *cdf.Header, v string) map[string]string {
	out := make(map[string]string)
	for _, name := range h.Attributes(v) {
		if s, ok := h.GetAttribute(v, name).(string); ok {
			out[name] = s
		}
	}
	return out
}

// WriteDataset writes a dataset to a NetCDF file at path. Coordinates
// and data are stored as doubles; NaN values are written as the
// default _FillValue.
func WriteDataset(path string, ds *raster.Dataset) error {
	dims := ds.Dims()
	lengths := make([]int, len(dims))
	for i, d := range dims {
		lengths[i] = len(ds.Coords[d])
	}
	h := cdf.NewHeader(dims, lengths)
	for k, v := range ds.Attrs {
		h.AddAttribute("", k, v)
	}
	for _, d := range dims {
		h.AddVariable(d, []string{d}, []float64{0})
		for k, v := range ds.CoordAttrs[d] {
			h.AddAttribute(d, k, v)
		}
	}
	varNames := make([]string, 0, len(ds.Vars))
	for name := range ds.Vars {
		varNames = append(varNames, name)
	}
	sort.Strings(varNames)
	for _, name := range varNames {
		v := ds.Vars[name]
		h.AddVariable(name, v.Dims, []float64{0})
		for k, av := range v.Attrs {
			h.AddAttribute(name, k, av)
		}
	}
	h.Define()
	if errs := h.Check(); len(errs) > 0 {
		return fmt.Errorf("ncf: invalid header for %s: %v", path, errs)
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	ff, err := cdf.Create(f, h)
	if err != nil {
		return fmt.Errorf("ncf: create %s: %w", path, err)
	}
	for _, d := range dims {
		if err := writeSlab(ff, d, ds.Coords[d]); err != nil {
			return fmt.Errorf("ncf: write %s coordinate %s: %w", path, d, err)
		}
	}
	for _, name := range varNames {
		if err := writeSlab(ff, name, ds.Vars[name].Data.Elements); err != nil {
			return fmt.Errorf("ncf: write %s variable %s: %w", path, name, err)
		}
	}
	return nil
}

func writeSlab(ff *cdf.File, name string, data []float64) error {
	end := ff.Header.Lengths(name)
	start := make([]int, len(end))
	w := ff.Writer(name, start, end)
	_, err := w.Write(data)
	return err
}
