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
	"math"
	"sort"
	"strings"

	"github.com/ctessum/sparse"
	log "github.com/sirupsen/logrus"
)

// The coordinate normalization logic below is shared between Raster and
// Dataset: each public method resolves its axes and hands the coordinate
// slices plus the affected data arrays to one of the unexported helpers.
// Canonical orientation is latitude strictly descending and longitude
// strictly ascending.

// axisData pairs one data array with the dimension names labeling it.
type axisData struct {
	dims []string
	data *sparse.DenseArray
}

// CorrectCalendar returns a copy of the raster with its time coordinate
// calendar attribute normalized for recognition by downstream time
// utilities. A calendar attribute of "360" is rewritten to "360_day";
// otherwise, if the units attribute contains "months since", a
// "360_day" calendar attribute is added. In all other cases the raster
// is returned unchanged. This is a compatibility shim for non-standard
// provider metadata, not a general calendar converter.
func (r *Raster) CorrectCalendar() (*Raster, error) {
	out := r.Copy()
	if err := out.CorrectCalendarInPlace(); err != nil {
		return nil, err
	}
	return out, nil
}

// CorrectCalendarInPlace is like CorrectCalendar but modifies the
// receiver.
func (r *Raster) CorrectCalendarInPlace() error {
	tDim, err := r.TimeDim()
	if err != nil {
		return err
	}
	correctCalendar(coordAttrs(r.CoordAttrs, tDim))
	return nil
}

// CorrectCalendar returns a copy of the dataset with its time coordinate
// calendar attribute normalized; see Raster.CorrectCalendar.
func (d *Dataset) CorrectCalendar() (*Dataset, error) {
	out := d.Copy()
	if err := out.CorrectCalendarInPlace(); err != nil {
		return nil, err
	}
	return out, nil
}

// CorrectCalendarInPlace is like CorrectCalendar but modifies the
// receiver.
func (d *Dataset) CorrectCalendarInPlace() error {
	tDim, err := d.TimeDim()
	if err != nil {
		return err
	}
	correctCalendar(coordAttrs(d.CoordAttrs, tDim))
	return nil
}

func correctCalendar(attrs map[string]string) {
	if cal, ok := attrs["calendar"]; ok && cal == "360" {
		attrs["calendar"] = "360_day"
		log.Info("calendar attribute changed from '360' to '360_day'")
		return
	}
	if units, ok := attrs["units"]; ok && strings.Contains(units, "months since") {
		attrs["calendar"] = "360_day"
		log.Info("calendar attribute '360_day' added for 'months since' units")
		return
	}
	log.Info("no 'units' or 'calendar' attributes to correct")
}

// CheckCoordsInverted reports whether the longitude and latitude axes
// run opposite to the canonical orientation: longitude is inverted if
// its first coordinate is greater than its last, latitude is inverted if
// its first coordinate is less than its last.
func (r *Raster) CheckCoordsInverted() (lonInverted, latInverted bool, err error) {
	x, y, err := r.SpatialDims()
	if err != nil {
		return false, false, err
	}
	lonInv, latInv := checkCoordsInverted(r.Coords[x], r.Coords[y])
	return lonInv, latInv, nil
}

func checkCoordsInverted(lon, lat []float64) (lonInverted, latInverted bool) {
	if len(lon) > 1 {
		lonInverted = lon[0] > lon[len(lon)-1]
	}
	if len(lat) > 1 {
		latInverted = lat[0] < lat[len(lat)-1]
	}
	return lonInverted, latInverted
}

// InvertCoordinates returns a copy of the raster with any inverted
// spatial axis reversed into canonical orientation. Values move with
// their coordinates. If neither axis is inverted the copy is identical
// to the input.
func (r *Raster) InvertCoordinates() (*Raster, error) {
	out := r.Copy()
	if err := out.InvertCoordinatesInPlace(); err != nil {
		return nil, err
	}
	return out, nil
}

// InvertCoordinatesInPlace is like InvertCoordinates but modifies the
// receiver.
func (r *Raster) InvertCoordinatesInPlace() error {
	x, y, err := r.SpatialDims()
	if err != nil {
		return err
	}
	invertCoordinates(r.Coords, x, y, []axisData{{r.Dims, r.Data}})
	return nil
}

// InvertCoordinates returns a copy of the dataset with any inverted
// spatial axis reversed into canonical orientation; see
// Raster.InvertCoordinates.
func (d *Dataset) InvertCoordinates() (*Dataset, error) {
	out := d.Copy()
	if err := out.InvertCoordinatesInPlace(); err != nil {
		return nil, err
	}
	return out, nil
}

// InvertCoordinatesInPlace is like InvertCoordinates but modifies the
// receiver.
func (d *Dataset) InvertCoordinatesInPlace() error {
	if d.xDim == "" || d.yDim == "" {
		return &DimensionError{Dim: "spatial (x/y)"}
	}
	invertCoordinates(d.Coords, d.xDim, d.yDim, d.arrays())
	return nil
}

// arrays collects the dataset's variables as axisData for the shared
// normalization helpers.
func (d *Dataset) arrays() []axisData {
	out := make([]axisData, 0, len(d.Vars))
	names := make([]string, 0, len(d.Vars))
	for name := range d.Vars {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		v := d.Vars[name]
		out = append(out, axisData{v.Dims, v.Data})
	}
	return out
}

func invertCoordinates(coords map[string][]float64, xDim, yDim string, arrays []axisData) {
	lonInv, latInv := checkCoordsInverted(coords[xDim], coords[yDim])
	if lonInv {
		log.Info("longitude was inverted, reversing coordinates")
		reverseDim(coords, xDim, arrays)
	}
	if latInv {
		log.Info("latitude was inverted, reversing coordinates")
		reverseDim(coords, yDim, arrays)
	}
}

func reverseDim(coords map[string][]float64, dim string, arrays []axisData) {
	c := coords[dim]
	perm := make([]int, len(c))
	for i := range perm {
		perm[i] = len(c) - 1 - i
	}
	applyPerm(coords, dim, perm, arrays)
}

// applyPerm reorders the coordinates of dim so that position k takes the
// value previously at position perm[k], and permutes every array that
// carries dim to match.
func applyPerm(coords map[string][]float64, dim string, perm []int, arrays []axisData) {
	c := coords[dim]
	sorted := make([]float64, len(c))
	for k, i := range perm {
		sorted[k] = c[i]
	}
	coords[dim] = sorted
	for _, a := range arrays {
		axis := dimIndex(a.dims, dim)
		if axis < 0 {
			continue
		}
		a.data.Elements = permuteAxis(a.data, axis, perm).Elements
	}
}

// permuteAxis returns a copy of the array with the given axis reordered
// so that index k along the axis holds the values previously at index
// perm[k].
func permuteAxis(a *sparse.DenseArray, axis int, perm []int) *sparse.DenseArray {
	out := sparse.ZerosDense(a.Shape...)
	stride := 1
	for j := axis + 1; j < len(a.Shape); j++ {
		stride *= a.Shape[j]
	}
	block := stride * a.Shape[axis]
	for i := range out.Elements {
		k := (i % block) / stride
		out.Elements[i] = a.Elements[i+(perm[k]-k)*stride]
	}
	return out
}

// ChangeLongitudeRange returns a copy of the raster with its longitude
// coordinates converted between the [-180, 180) and [0, 360) canonical
// ranges based on their current state. If the maximum longitude exceeds
// 180, all values are mapped into [-180, 180); otherwise, if any value
// is negative, negative values are shifted into [0, 360). Coordinates
// lying solely within [0, 180] are ambiguous and left unchanged. After a
// conversion the longitude axis is re-sorted ascending and the data
// reordered to match, since conversion can change relative order.
func (r *Raster) ChangeLongitudeRange() (*Raster, error) {
	out := r.Copy()
	if err := out.ChangeLongitudeRangeInPlace(); err != nil {
		return nil, err
	}
	return out, nil
}

// ChangeLongitudeRangeInPlace is like ChangeLongitudeRange but modifies
// the receiver.
func (r *Raster) ChangeLongitudeRangeInPlace() error {
	if r.xDim == "" {
		return &DimensionError{Dim: "longitude (x)"}
	}
	changeLongitudeRange(r.Coords, r.xDim, []axisData{{r.Dims, r.Data}})
	return nil
}

// ChangeLongitudeRange returns a copy of the dataset with its longitude
// coordinates converted between canonical ranges; see
// Raster.ChangeLongitudeRange.
func (d *Dataset) ChangeLongitudeRange() (*Dataset, error) {
	out := d.Copy()
	if err := out.ChangeLongitudeRangeInPlace(); err != nil {
		return nil, err
	}
	return out, nil
}

// ChangeLongitudeRangeInPlace is like ChangeLongitudeRange but modifies
// the receiver.
func (d *Dataset) ChangeLongitudeRangeInPlace() error {
	if d.xDim == "" {
		return &DimensionError{Dim: "longitude (x)"}
	}
	changeLongitudeRange(d.Coords, d.xDim, d.arrays())
	return nil
}

func changeLongitudeRange(coords map[string][]float64, xDim string, arrays []axisData) {
	lon := coords[xDim]
	if len(lon) == 0 {
		return
	}
	lonMin, lonMax := lon[0], lon[0]
	for _, v := range lon {
		lonMin = math.Min(lonMin, v)
		lonMax = math.Max(lonMax, v)
	}

	converted := make([]float64, len(lon))
	switch {
	case lonMax > 180:
		log.Info("converting longitude from 0 to 360 to -180 to 180")
		for i, v := range lon {
			m := math.Mod(v+180, 360)
			if m < 0 {
				m += 360
			}
			converted[i] = m - 180
		}
	case lonMin < 0:
		log.Info("converting longitude from -180 to 180 to 0 to 360")
		for i, v := range lon {
			if v < 0 {
				converted[i] = v + 360
			} else {
				converted[i] = v
			}
		}
	default:
		log.Info("indeterminate longitude range, no conversion needed")
		return
	}

	coords[xDim] = converted
	perm := ascendingPerm(converted)
	applyPerm(coords, xDim, perm, arrays)
}

// ascendingPerm returns the permutation that sorts c ascending, such
// that position k of the sorted sequence holds c[perm[k]].
func ascendingPerm(c []float64) []int {
	perm := make([]int, len(c))
	for i := range perm {
		perm[i] = i
	}
	sort.SliceStable(perm, func(a, b int) bool { return c[perm[a]] < c[perm[b]] })
	return perm
}
