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

import "fmt"

// DimensionError indicates that a required spatial or temporal dimension
// could not be identified: it is neither present under a default name nor
// explicitly declared. The caller must declare the dimension
// (SetTimeDim or SetSpatialDims) and retry.
type DimensionError struct {
	// Dim describes the missing dimension, e.g. "time" or "lon".
	Dim string
}

func (e *DimensionError) Error() string {
	return fmt.Sprintf("raster: %s dimension not found; declare it with "+
		"SetTimeDim or SetSpatialDims, or rename the dimension to a "+
		"default name", e.Dim)
}

// MissingCRSError indicates that zonal statistics were requested on a
// raster that has no coordinate reference system set. The caller must
// call SetCRS before retrying.
type MissingCRSError struct {
	// Var is the name of the offending variable, if known.
	Var string
}

func (e *MissingCRSError) Error() string {
	if e.Var == "" {
		return "raster: no CRS found, set CRS before computation"
	}
	return fmt.Sprintf("raster: no CRS found for variable %s, set CRS before computation", e.Var)
}

// ShapeError indicates a genuine shape or coordinate mismatch between two
// datasets being combined. It is fatal: no partial result is returned.
type ShapeError struct {
	Dim    string
	Reason string
}

func (e *ShapeError) Error() string {
	if e.Dim == "" {
		return fmt.Sprintf("raster: shape mismatch: %s", e.Reason)
	}
	return fmt.Sprintf("raster: shape mismatch on dimension %s: %s", e.Dim, e.Reason)
}
