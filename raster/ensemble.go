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

	"github.com/ctessum/sparse"
)

// ExpandDims returns a copy of the dataset with a new length-1 dimension
// carrying the given coordinate value, prepended to every variable.
func (d *Dataset) ExpandDims(dim string, coord float64) (*Dataset, error) {
	if _, ok := d.Coords[dim]; ok {
		return nil, &ShapeError{Dim: dim, Reason: "dimension already exists"}
	}
	out := d.Copy()
	out.Coords[dim] = []float64{coord}
	for _, v := range out.Vars {
		v.Dims = append([]string{dim}, v.Dims...)
		expanded := sparse.ZerosDense(append([]int{1}, v.Data.Shape...)...)
		copy(expanded.Elements, v.Data.Elements)
		v.Data = expanded
	}
	return out, nil
}

// AssembleEnsemble combines a single-member control forecast dataset and
// a K-member perturbed forecast dataset into one ensemble dataset with
// K+1 members along memberDim. The control realization becomes member 0
// and the perturbed realizations become members 1..K, renumbered from
// whatever labeling they carried.
//
// The control dataset must not have memberDim (a length-1 memberDim is
// tolerated); the perturbed dataset must have it. The two datasets must
// agree on every other dimension's size and coordinate values and must
// hold the same variables; a ShapeError is returned otherwise and no
// partial assembly is ever produced. Attribute conflicts are dropped
// rather than raised.
func AssembleEnsemble(control, perturbed *Dataset, memberDim string) (*Dataset, error) {
	members, ok := perturbed.Coords[memberDim]
	if !ok {
		return nil, &DimensionError{Dim: memberDim}
	}
	k := len(members)
	if ctrlMembers, ok := control.Coords[memberDim]; ok && len(ctrlMembers) != 1 {
		return nil, &ShapeError{Dim: memberDim,
			Reason: fmt.Sprintf("control must hold a single realization, has %d", len(ctrlMembers))}
	}

	if err := checkSharedCoords(control, perturbed, memberDim); err != nil {
		return nil, err
	}
	if err := checkVariableSets(control, perturbed); err != nil {
		return nil, err
	}

	out := &Dataset{
		Coords:     copyCoords(perturbed.Coords),
		CoordAttrs: make(map[string]map[string]string),
		Attrs:      mergeDropConflicts(control.Attrs, perturbed.Attrs),
		Vars:       make(map[string]*Variable, len(perturbed.Vars)),
	}
	memberCoord := make([]float64, k+1)
	for i := range memberCoord {
		memberCoord[i] = float64(i)
	}
	out.Coords[memberDim] = memberCoord
	for dim := range out.Coords {
		a := mergeDropConflicts(control.CoordAttrs[dim], perturbed.CoordAttrs[dim])
		if len(a) > 0 {
			out.CoordAttrs[dim] = a
		}
	}

	for name, pv := range perturbed.Vars {
		cv := control.Vars[name]
		combined, err := combineMembers(cv, pv, memberDim, k)
		if err != nil {
			return nil, fmt.Errorf("raster: assemble ensemble variable %s: %w", name, err)
		}
		combined.Attrs = mergeDropConflicts(cv.Attrs, pv.Attrs)
		out.Vars[name] = combined
	}

	out.crs = control.crs
	if out.crs == nil {
		out.crs = perturbed.crs
	}
	out.xDim, out.yDim, out.tDim = perturbed.xDim, perturbed.yDim, perturbed.tDim
	return out, nil
}

// checkSharedCoords verifies that the two datasets agree on every
// dimension other than memberDim.
func checkSharedCoords(control, perturbed *Dataset, memberDim string) error {
	for dim, pc := range perturbed.Coords {
		if dim == memberDim {
			continue
		}
		cc, ok := control.Coords[dim]
		if !ok {
			return &ShapeError{Dim: dim, Reason: "missing from control dataset"}
		}
		if len(cc) != len(pc) {
			return &ShapeError{Dim: dim,
				Reason: fmt.Sprintf("control has %d coordinates, perturbed has %d", len(cc), len(pc))}
		}
		for i := range cc {
			if cc[i] != pc[i] {
				return &ShapeError{Dim: dim,
					Reason: fmt.Sprintf("coordinate values differ at index %d (%g != %g)", i, cc[i], pc[i])}
			}
		}
	}
	for dim := range control.Coords {
		if dim == memberDim {
			continue
		}
		if _, ok := perturbed.Coords[dim]; !ok {
			return &ShapeError{Dim: dim, Reason: "missing from perturbed dataset"}
		}
	}
	return nil
}

func checkVariableSets(control, perturbed *Dataset) error {
	for name := range perturbed.Vars {
		if _, ok := control.Vars[name]; !ok {
			return &ShapeError{Reason: fmt.Sprintf("variable %s missing from control dataset", name)}
		}
	}
	for name := range control.Vars {
		if _, ok := perturbed.Vars[name]; !ok {
			return &ShapeError{Reason: fmt.Sprintf("variable %s missing from perturbed dataset", name)}
		}
	}
	return nil
}

// combineMembers stacks the control variable at member index 0 followed
// by the K perturbed members. The control variable may either lack the
// member axis entirely or carry it with length 1, in the same axis
// position as the perturbed variable.
func combineMembers(cv, pv *Variable, memberDim string, k int) (*Variable, error) {
	axis := dimIndex(pv.Dims, memberDim)
	if axis < 0 {
		// Variable does not span the ensemble; the control copy is
		// kept as-is after a dimension check.
		if err := sameDims(cv.Dims, pv.Dims); err != nil {
			return nil, err
		}
		return cv.Copy(), nil
	}

	wantCtrl := append(append([]string(nil), pv.Dims[:axis]...), pv.Dims[axis+1:]...)
	switch {
	case dimIndex(cv.Dims, memberDim) == axis && len(cv.Dims) == len(pv.Dims):
		// Control already expanded with a length-1 member axis.
		want := append([]string(nil), pv.Dims...)
		if err := sameDims(cv.Dims, want); err != nil {
			return nil, err
		}
	default:
		if err := sameDims(cv.Dims, wantCtrl); err != nil {
			return nil, err
		}
	}

	outShape := append([]int(nil), pv.Data.Shape...)
	outShape[axis] = k + 1
	out := sparse.ZerosDense(outShape...)

	stride := 1
	for j := axis + 1; j < len(pv.Data.Shape); j++ {
		stride *= pv.Data.Shape[j]
	}
	blockOut := stride * (k + 1)
	blockPert := stride * k
	for i := range out.Elements {
		m := (i % blockOut) / stride
		inner := i % stride
		outer := i / blockOut
		if m == 0 {
			out.Elements[i] = cv.Data.Elements[outer*stride+inner]
		} else {
			out.Elements[i] = pv.Data.Elements[outer*blockPert+(m-1)*stride+inner]
		}
	}
	return &Variable{Dims: append([]string(nil), pv.Dims...), Data: out}, nil
}

func sameDims(have, want []string) error {
	if len(have) != len(want) {
		return &ShapeError{Reason: fmt.Sprintf("dimensions %v do not match %v", have, want)}
	}
	for i := range have {
		if have[i] != want[i] {
			return &ShapeError{Dim: have[i], Reason: fmt.Sprintf("dimensions %v do not match %v", have, want)}
		}
	}
	return nil
}

// mergeDropConflicts merges two attribute maps, keeping attributes that
// agree or appear on only one side and dropping conflicting keys.
func mergeDropConflicts(a, b map[string]string) map[string]string {
	out := make(map[string]string, len(a)+len(b))
	for k, v := range a {
		out[k] = v
	}
	for k, v := range b {
		if prev, ok := out[k]; ok && prev != v {
			delete(out, k)
			continue
		}
		out[k] = v
	}
	return out
}
