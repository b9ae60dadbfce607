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

package glofas

import (
	"path/filepath"
	"reflect"
	"testing"

	"github.com/ctessum/sparse"

	"github.com/OCHA-DAP/pa-aa-tools/ncf"
	"github.com/OCHA-DAP/pa-aa-tools/raster"
)

func forecastDataset(t *testing.T) *raster.Dataset {
	t.Helper()
	data := sparse.ZerosDense(2, 2, 3)
	for i := range data.Elements {
		data.Elements[i] = float64(i)
	}
	ds, err := raster.NewDataset(
		map[string][]float64{
			"step": {24, 48},
			"lat":  {2, 1},
			"lon":  {10, 11, 12},
		},
		map[string]*raster.Variable{
			DischargeVar: {
				Dims: []string{"step", "lat", "lon"},
				Data: data,
			},
		},
	)
	if err != nil {
		t.Fatal(err)
	}
	return ds
}

func TestExtractReportingPoints(t *testing.T) {
	ds := forecastDataset(t)
	points := []ReportingPoint{
		{Name: "Bahadurabad", Lon: 11.1, Lat: 1.9},
		{Name: "FarAway", Lon: 50, Lat: 1},
	}
	series, err := ExtractReportingPoints(ds, DischargeVar, points)
	if err != nil {
		t.Fatal(err)
	}
	if len(series) != 1 {
		t.Fatalf("have %d series, want 1", len(series))
	}
	s := series[0]
	if s.Point.Name != "Bahadurabad" {
		t.Errorf("have point %s, want Bahadurabad", s.Point.Name)
	}
	if !reflect.DeepEqual(s.Series.Dims, []string{"step"}) {
		t.Errorf("dims: have %v, want [step]", s.Series.Dims)
	}
	if !reflect.DeepEqual(s.Series.Coords["step"], []float64{24, 48}) {
		t.Errorf("step coords: have %v", s.Series.Coords["step"])
	}
	// Nearest cell to (11.1, 1.9) is lon index 1, lat index 0.
	want := []float64{1, 7}
	if !reflect.DeepEqual(s.Series.Data.Elements, want) {
		t.Errorf("series: have %v, want %v", s.Series.Data.Elements, want)
	}
}

func TestExtractReportingPointsUnknownVariable(t *testing.T) {
	ds := forecastDataset(t)
	if _, err := ExtractReportingPoints(ds, "nope", nil); err == nil {
		t.Error("expected error for unknown variable")
	}
}

func TestNearestIndex(t *testing.T) {
	tests := []struct {
		coords []float64
		target float64
		index  int
		ok     bool
	}{
		{[]float64{10, 11, 12}, 11.4, 1, true},
		{[]float64{10, 11, 12}, 12.9, 2, true},
		{[]float64{10, 11, 12}, 13.5, 0, false},
		{[]float64{2, 1}, 2.4, 0, true},
		{[]float64{5}, 5.5, 0, true},
		{nil, 0, 0, false},
	}
	for _, test := range tests {
		index, ok := nearestIndex(test.coords, test.target)
		if index != test.index || ok != test.ok {
			t.Errorf("nearestIndex(%v, %g): have (%d, %v), want (%d, %v)",
				test.coords, test.target, index, ok, test.index, test.ok)
		}
	}
}

func TestReadEnsembleAndPerturbed(t *testing.T) {
	dir := t.TempDir()

	controlData := sparse.ZerosDense(2, 2)
	perturbedData := sparse.ZerosDense(3, 2, 2)
	for i := range controlData.Elements {
		controlData.Elements[i] = float64(i)
	}
	for i := range perturbedData.Elements {
		perturbedData.Elements[i] = 100 + float64(i)
	}
	control, err := raster.NewDataset(
		map[string][]float64{"lat": {1, 0}, "lon": {10, 11}},
		map[string]*raster.Variable{DischargeVar: {
			Dims: []string{"lat", "lon"},
			Data: controlData,
		}},
	)
	if err != nil {
		t.Fatal(err)
	}
	perturbed, err := raster.NewDataset(
		map[string][]float64{MemberDim: {1, 2, 3}, "lat": {1, 0}, "lon": {10, 11}},
		map[string]*raster.Variable{DischargeVar: {
			Dims: []string{MemberDim, "lat", "lon"},
			Data: perturbedData,
		}},
	)
	if err != nil {
		t.Fatal(err)
	}

	controlPath := filepath.Join(dir, "cf.nc")
	perturbedPath := filepath.Join(dir, "pf.nc")
	if err := ncf.WriteDataset(controlPath, control); err != nil {
		t.Fatal(err)
	}
	if err := ncf.WriteDataset(perturbedPath, perturbed); err != nil {
		t.Fatal(err)
	}

	ens, err := ReadEnsembleAndPerturbed(controlPath, perturbedPath)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(ens.Coords[MemberDim], []float64{0, 1, 2, 3}) {
		t.Errorf("members: have %v, want [0 1 2 3]", ens.Coords[MemberDim])
	}
	v := ens.Vars[DischargeVar]
	if !reflect.DeepEqual(v.Dims, []string{MemberDim, "lat", "lon"}) {
		t.Errorf("dims: have %v", v.Dims)
	}
	if got := v.Data.Get(0, 1, 1); got != 3 {
		t.Errorf("control member: have %v, want 3", got)
	}
	if got := v.Data.Get(2, 0, 1); got != 105 {
		t.Errorf("perturbed member 2: have %v, want 105", got)
	}
}
