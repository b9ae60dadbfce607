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
	"errors"
	"reflect"
	"testing"

	"github.com/ctessum/sparse"
)

func controlDataset(t *testing.T) *Dataset {
	t.Helper()
	ds, err := NewDataset(
		map[string][]float64{
			"step": {24, 48},
			"lat":  {1, 0},
			"lon":  {0, 1},
		},
		map[string]*Variable{
			"dis": {Dims: []string{"step", "lat", "lon"}, Data: arange(2, 2, 2)},
		})
	if err != nil {
		t.Fatal(err)
	}
	return ds
}

func perturbedDataset(t *testing.T, k int) *Dataset {
	t.Helper()
	members := make([]float64, k)
	for i := range members {
		members[i] = float64(i + 1) // arbitrary existing labeling
	}
	data := sparse.ZerosDense(k, 2, 2, 2)
	for i := range data.Elements {
		data.Elements[i] = 100 + float64(i)
	}
	ds, err := NewDataset(
		map[string][]float64{
			"number": members,
			"step":   {24, 48},
			"lat":    {1, 0},
			"lon":    {0, 1},
		},
		map[string]*Variable{
			"dis": {Dims: []string{"number", "step", "lat", "lon"}, Data: data},
		})
	if err != nil {
		t.Fatal(err)
	}
	return ds
}

func TestExpandDims(t *testing.T) {
	ds := controlDataset(t)
	out, err := ds.ExpandDims("number", 0)
	if err != nil {
		t.Fatal(err)
	}
	if want := []float64{0}; !reflect.DeepEqual(out.Coords["number"], want) {
		t.Errorf("number coords: have %v, want %v", out.Coords["number"], want)
	}
	v := out.Vars["dis"]
	if want := []string{"number", "step", "lat", "lon"}; !reflect.DeepEqual(v.Dims, want) {
		t.Errorf("dims: have %v, want %v", v.Dims, want)
	}
	if want := []int{1, 2, 2, 2}; !reflect.DeepEqual(v.Data.Shape, want) {
		t.Errorf("shape: have %v, want %v", v.Data.Shape, want)
	}
	if !reflect.DeepEqual(v.Data.Elements, ds.Vars["dis"].Data.Elements) {
		t.Error("expanding dims changed the values")
	}

	if _, err := out.ExpandDims("number", 0); err == nil {
		t.Error("want error expanding an existing dimension")
	}
}

func TestAssembleEnsemble(t *testing.T) {
	control := controlDataset(t)
	perturbed := perturbedDataset(t, 3)

	out, err := AssembleEnsemble(control, perturbed, "number")
	if err != nil {
		t.Fatal(err)
	}

	// K perturbed members plus the control make K+1, renumbered 0..K.
	if want := []float64{0, 1, 2, 3}; !reflect.DeepEqual(out.Coords["number"], want) {
		t.Errorf("number coords: have %v, want %v", out.Coords["number"], want)
	}
	v := out.Vars["dis"]
	if want := []int{4, 2, 2, 2}; !reflect.DeepEqual(v.Data.Shape, want) {
		t.Errorf("shape: have %v, want %v", v.Data.Shape, want)
	}

	// Member 0 equals the control values at every shared coordinate.
	ctrl := control.Vars["dis"].Data
	for is := 0; is < 2; is++ {
		for iy := 0; iy < 2; iy++ {
			for ix := 0; ix < 2; ix++ {
				if have, want := v.Data.Get(0, is, iy, ix), ctrl.Get(is, iy, ix); have != want {
					t.Fatalf("member 0 at (%d,%d,%d): have %v, want %v", is, iy, ix, have, want)
				}
			}
		}
	}
	// Members 1..K hold the perturbed values in order.
	pert := perturbed.Vars["dis"].Data
	for m := 1; m <= 3; m++ {
		for is := 0; is < 2; is++ {
			for iy := 0; iy < 2; iy++ {
				for ix := 0; ix < 2; ix++ {
					if have, want := v.Data.Get(m, is, iy, ix), pert.Get(m-1, is, iy, ix); have != want {
						t.Fatalf("member %d at (%d,%d,%d): have %v, want %v", m, is, iy, ix, have, want)
					}
				}
			}
		}
	}

	// Inputs are untouched.
	if _, ok := control.Coords["number"]; ok {
		t.Error("control dataset gained a member dimension")
	}
}

func TestAssembleEnsembleExpandedControl(t *testing.T) {
	control, err := controlDataset(t).ExpandDims("number", 0)
	if err != nil {
		t.Fatal(err)
	}
	perturbed := perturbedDataset(t, 2)

	out, err := AssembleEnsemble(control, perturbed, "number")
	if err != nil {
		t.Fatal(err)
	}
	if want := []float64{0, 1, 2}; !reflect.DeepEqual(out.Coords["number"], want) {
		t.Errorf("number coords: have %v, want %v", out.Coords["number"], want)
	}
	if have, want := out.Vars["dis"].Data.Get(0, 0, 0, 0), 0.0; have != want {
		t.Errorf("member 0: have %v, want %v", have, want)
	}
}

func TestAssembleEnsembleShapeMismatch(t *testing.T) {
	control := controlDataset(t)
	perturbed := perturbedDataset(t, 2)
	perturbed.Coords["lat"] = []float64{5, 4} // disagree with control

	_, err := AssembleEnsemble(control, perturbed, "number")
	var shapeErr *ShapeError
	if !errors.As(err, &shapeErr) {
		t.Fatalf("have %v, want ShapeError", err)
	}
}

func TestAssembleEnsembleMissingMemberDim(t *testing.T) {
	control := controlDataset(t)
	_, err := AssembleEnsemble(control, controlDataset(t), "number")
	var dimErr *DimensionError
	if !errors.As(err, &dimErr) {
		t.Fatalf("have %v, want DimensionError", err)
	}
}

func TestAssembleEnsembleVariableMismatch(t *testing.T) {
	control := controlDataset(t)
	control.Vars["extra"] = &Variable{Dims: []string{"lat", "lon"}, Data: arange(2, 2)}
	perturbed := perturbedDataset(t, 2)

	_, err := AssembleEnsemble(control, perturbed, "number")
	var shapeErr *ShapeError
	if !errors.As(err, &shapeErr) {
		t.Fatalf("have %v, want ShapeError", err)
	}
}

func TestAssembleEnsembleDropConflicts(t *testing.T) {
	control := controlDataset(t)
	control.Attrs["dataType"] = "cf"
	control.Attrs["institution"] = "ecmwf"
	perturbed := perturbedDataset(t, 2)
	perturbed.Attrs["dataType"] = "pf"
	perturbed.Attrs["institution"] = "ecmwf"

	out, err := AssembleEnsemble(control, perturbed, "number")
	if err != nil {
		t.Fatal(err)
	}
	// Conflicting attributes are dropped, agreeing ones kept.
	if _, ok := out.Attrs["dataType"]; ok {
		t.Error("conflicting attribute should have been dropped")
	}
	if out.Attrs["institution"] != "ecmwf" {
		t.Errorf("institution: have %q, want ecmwf", out.Attrs["institution"])
	}
}
