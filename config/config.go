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

// Package config loads per-country pipeline configuration files.
package config

import (
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/OCHA-DAP/pa-aa-tools/glofas"
)

// CountryConfig configures the pipeline for one country.
type CountryConfig struct {
	// ISO3 is the country's three-letter ISO 3166-1 code, lowercase.
	ISO3 string `toml:"iso3"`

	// Projection is the proj4 specification assigned to rasters that
	// carry no CRS of their own. Defaults to geographic WGS84.
	Projection string `toml:"projection"`

	// GloFAS holds the GloFAS-specific settings.
	GloFAS GloFASConfig `toml:"glofas"`
}

// GloFASConfig configures GloFAS discharge post-processing for one
// country.
type GloFASConfig struct {
	// Variable is the discharge variable name. Defaults to dis24.
	Variable string `toml:"variable"`

	// ReportingPoints are the stations at which discharge series are
	// extracted.
	ReportingPoints []ReportingPoint `toml:"reporting_points"`
}

// ReportingPoint is one configured station location.
type ReportingPoint struct {
	Name string  `toml:"name"`
	Lon  float64 `toml:"lon"`
	Lat  float64 `toml:"lat"`
}

// DefaultProjection is the projection assumed for rasters without an
// explicit CRS.
const DefaultProjection = "+proj=longlat +datum=WGS84 +no_defs"

// LoadCountryConfig reads and validates a country configuration file.
func LoadCountryConfig(path string) (*CountryConfig, error) {
	c := new(CountryConfig)
	if _, err := toml.DecodeFile(path, c); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	if err := c.validate(); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	c.applyDefaults()
	return c, nil
}

func (c *CountryConfig) validate() error {
	if len(c.ISO3) != 3 || strings.ToLower(c.ISO3) != c.ISO3 {
		return fmt.Errorf("iso3 must be a lowercase three-letter code, have %q", c.ISO3)
	}
	for _, r := range c.ISO3 {
		if r < 'a' || r > 'z' {
			return fmt.Errorf("iso3 must be a lowercase three-letter code, have %q", c.ISO3)
		}
	}
	seen := make(map[string]bool)
	for _, p := range c.GloFAS.ReportingPoints {
		if p.Name == "" {
			return fmt.Errorf("reporting point at (%g, %g) has no name", p.Lon, p.Lat)
		}
		if seen[p.Name] {
			return fmt.Errorf("duplicate reporting point %q", p.Name)
		}
		seen[p.Name] = true
		if p.Lat < -90 || p.Lat > 90 {
			return fmt.Errorf("reporting point %q: latitude %g out of range", p.Name, p.Lat)
		}
		if p.Lon < -180 || p.Lon > 360 {
			return fmt.Errorf("reporting point %q: longitude %g out of range", p.Name, p.Lon)
		}
	}
	return nil
}

func (c *CountryConfig) applyDefaults() {
	if c.Projection == "" {
		c.Projection = DefaultProjection
	}
	if c.GloFAS.Variable == "" {
		c.GloFAS.Variable = glofas.DischargeVar
	}
}

// GloFASPoints converts the configured reporting points to the form the
// extraction operation takes.
func (c *CountryConfig) GloFASPoints() []glofas.ReportingPoint {
	out := make([]glofas.ReportingPoint, len(c.GloFAS.ReportingPoints))
	for i, p := range c.GloFAS.ReportingPoints {
		out[i] = glofas.ReportingPoint{Name: p.Name, Lon: p.Lon, Lat: p.Lat}
	}
	return out
}
