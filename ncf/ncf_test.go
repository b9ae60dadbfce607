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

package ncf

import (
	"math"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/ctessum/sparse"

	"github.com/OCHA-DAP/pa-aa-tools/raster"
)

func testDataset(t *testing.T) *raster.Dataset {
	t.Helper()
	data := sparse.ZerosDense(2, 3)
	for i := range data.Elements {
		data.Elements[i] = float64(i) * 1.5
	}
	ds, err := raster.NewDataset(
		map[string][]float64{
			"lat": {1, 0},
			"lon": {10, 11, 12},
		},
		map[string]*raster.Variable{
			"dis24": {
				Dims:  []string{"lat", "lon"},
				Attrs: map[string]string{"units": "m**3 s**-1"},
				Data:  data,
			},
		},
	)
	if err != nil {
		t.Fatal(err)
	}
	ds.Attrs["institution"] = "ECMWF"
	ds.CoordAttrs["lat"] = map[string]string{"units": "degrees_north"}
	return ds
}

func TestWriteReadRoundTrip(t *testing.T) {
	want := testDataset(t)
	path := filepath.Join(t.TempDir(), "dis.nc")
	if err := WriteDataset(path, want); err != nil {
		t.Fatal(err)
	}
	have, err := ReadDataset(path)
	if err != nil {
		t.Fatal(err)
	}

	if !reflect.DeepEqual(have.Coords, want.Coords) {
		t.Errorf("coords: have %v, want %v", have.Coords, want.Coords)
	}
	if !reflect.DeepEqual(have.Attrs, want.Attrs) {
		t.Errorf("global attrs: have %v, want %v", have.Attrs, want.Attrs)
	}
	if !reflect.DeepEqual(have.CoordAttrs["lat"], want.CoordAttrs["lat"]) {
		t.Errorf("lat attrs: have %v, want %v", have.CoordAttrs["lat"], want.CoordAttrs["lat"])
	}
	hv, ok := have.Vars["dis24"]
	if !ok {
		t.Fatalf("variable dis24 missing after round trip; have %v", have.Vars)
	}
	wv := want.Vars["dis24"]
	if !reflect.DeepEqual(hv.Dims, wv.Dims) {
		t.Errorf("dims: have %v, want %v", hv.Dims, wv.Dims)
	}
	if !reflect.DeepEqual(hv.Attrs, wv.Attrs) {
		t.Errorf("attrs: have %v, want %v", hv.Attrs, wv.Attrs)
	}
	if !reflect.DeepEqual(hv.Data.Elements, wv.Data.Elements) {
		t.Errorf("data: have %v, want %v", hv.Data.Elements, wv.Data.Elements)
	}
}

func TestRoundTripKeepsNaN(t *testing.T) {
	ds := testDataset(t)
	ds.Vars["dis24"].Data.Set(math.NaN(), 1, 2)
	path := filepath.Join(t.TempDir(), "dis.nc")
	if err := WriteDataset(path, ds); err != nil {
		t.Fatal(err)
	}
	have, err := ReadDataset(path)
	if err != nil {
		t.Fatal(err)
	}
	if v := have.Vars["dis24"].Data.Get(1, 2); !math.IsNaN(v) {
		t.Errorf("have %v, want NaN", v)
	}
	if v := have.Vars["dis24"].Data.Get(0, 1); v != 1.5 {
		t.Errorf("have %v, want 1.5", v)
	}
}

func TestReadRaster(t *testing.T) {
	ds := testDataset(t)
	path := filepath.Join(t.TempDir(), "dis.nc")
	if err := WriteDataset(path, ds); err != nil {
		t.Fatal(err)
	}
	r, err := ReadRaster(path, "dis24")
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(r.Dims, []string{"lat", "lon"}) {
		t.Errorf("dims: have %v", r.Dims)
	}
	if v := r.Data.Get(1, 1); v != 6 {
		t.Errorf("have %v, want 6", v)
	}
	if _, err := ReadRaster(path, "nope"); err == nil {
		t.Error("expected error for unknown variable")
	}
}
