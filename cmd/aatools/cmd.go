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

package main

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/OCHA-DAP/pa-aa-tools/config"
	"github.com/OCHA-DAP/pa-aa-tools/glofas"
	"github.com/OCHA-DAP/pa-aa-tools/ncf"
	"github.com/OCHA-DAP/pa-aa-tools/raster"
)

// Root is the base command for the aatools CLI.
var Root = &cobra.Command{
	Use:   "aatools",
	Short: "Post-process climate and hydrological raster data.",
	Long: `aatools post-processes downloaded climate and hydrological raster
artifacts into analysis-ready form for anticipatory action pipelines.
Use the subcommands specified below to access the individual
processing steps.`,
	DisableAutoGenTag: true,
	SilenceUsage:      true,
}

var (
	inFile        string
	outFile       string
	controlFile   string
	perturbedFile string
	configFile    string
	memberDim     string
	variable      string
)

var normalizeCmd = &cobra.Command{
	Use:   "normalize",
	Short: "Normalize the coordinates of a NetCDF dataset.",
	Long: `normalize reads a NetCDF dataset and applies the coordinate fixes
badly-formed downloaded artifacts commonly need: nonstandard calendar
attributes are repaired, longitudes are brought into the [-180, 180)
range, and descending longitude or ascending latitude axes are
reordered so that data reads west to east and north to south.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ds, err := ncf.ReadDataset(inFile)
		if err != nil {
			return err
		}
		if err := ds.CorrectCalendarInPlace(); err != nil {
			if _, ok := err.(*raster.DimensionError); !ok {
				return err
			}
			log.Info("no time dimension found, skipping calendar correction")
		}
		if err := normalizeSpatial(ds); err != nil {
			return err
		}
		return ncf.WriteDataset(outFile, ds)
	},
	DisableAutoGenTag: true,
}

// normalizeSpatial applies the longitude range conversion and axis
// inversion fixes, skipping them when the dataset has no recognizable
// spatial dimensions.
func normalizeSpatial(ds *raster.Dataset) error {
	if err := ds.ChangeLongitudeRangeInPlace(); err != nil {
		if _, ok := err.(*raster.DimensionError); ok {
			log.Info("no longitude dimension found, skipping longitude and axis fixes")
			return nil
		}
		return err
	}
	if err := ds.InvertCoordinatesInPlace(); err != nil {
		if _, ok := err.(*raster.DimensionError); ok {
			log.Info("no latitude dimension found, skipping axis inversion")
			return nil
		}
		return err
	}
	return nil
}

var assembleCmd = &cobra.Command{
	Use:   "assemble",
	Short: "Combine control and perturbed forecasts into one ensemble.",
	Long: `assemble combines the control and perturbed forecast sub-datasets of
a GloFAS artifact into a single NetCDF ensemble dataset. The control
realization becomes member 0 and the perturbed realizations become
members 1 through K.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		control, err := ncf.ReadDataset(controlFile)
		if err != nil {
			return err
		}
		perturbed, err := ncf.ReadDataset(perturbedFile)
		if err != nil {
			return err
		}
		ens, err := raster.AssembleEnsemble(control, perturbed, memberDim)
		if err != nil {
			return err
		}
		return ncf.WriteDataset(outFile, ens)
	},
	DisableAutoGenTag: true,
}

var pointsCmd = &cobra.Command{
	Use:   "points",
	Short: "Extract discharge series at configured reporting points.",
	Long: `points reads an assembled GloFAS ensemble dataset and extracts the
discharge series at the reporting points named in a country
configuration file, writing the result as CSV in long form: one row
per point, member and step.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadCountryConfig(configFile)
		if err != nil {
			return err
		}
		ds, err := ncf.ReadDataset(inFile)
		if err != nil {
			return err
		}
		if variable == "" {
			variable = cfg.GloFAS.Variable
		}
		series, err := glofas.ExtractReportingPoints(ds, variable, cfg.GloFASPoints())
		if err != nil {
			return err
		}
		f, err := os.Create(outFile)
		if err != nil {
			return err
		}
		defer f.Close()
		if err := writePointsCSV(f, variable, series); err != nil {
			return fmt.Errorf("write %s: %w", outFile, err)
		}
		log.Infof("wrote %d reporting point series to %s", len(series), outFile)
		return nil
	},
	DisableAutoGenTag: true,
}

// writePointsCSV writes the extracted series in long form: one row per
// point and remaining-dimension combination.
func writePointsCSV(f *os.File, variable string, series []glofas.PointSeries) error {
	w := csv.NewWriter(f)
	defer w.Flush()

	var dims []string
	if len(series) > 0 {
		dims = series[0].Series.Dims
	}
	header := append([]string{"point"}, dims...)
	header = append(header, variable)
	if err := w.Write(header); err != nil {
		return err
	}

	for _, s := range series {
		r := s.Series
		index := make([]int, len(r.Dims))
		for flat := range r.Data.Elements {
			rem := flat
			for i := len(r.Dims) - 1; i >= 0; i-- {
				index[i] = rem % r.Data.Shape[i]
				rem /= r.Data.Shape[i]
			}
			row := make([]string, 0, len(r.Dims)+2)
			row = append(row, s.Point.Name)
			for i, d := range r.Dims {
				row = append(row, strconv.FormatFloat(r.Coords[d][index[i]], 'g', -1, 64))
			}
			row = append(row, strconv.FormatFloat(r.Data.Elements[flat], 'g', -1, 64))
			if err := w.Write(row); err != nil {
				return err
			}
		}
	}
	w.Flush()
	return w.Error()
}

func init() {
	normalizeCmd.Flags().StringVar(&inFile, "in", "", "input NetCDF file")
	normalizeCmd.Flags().StringVar(&outFile, "out", "", "output NetCDF file")
	markRequired(normalizeCmd, "in", "out")

	assembleCmd.Flags().StringVar(&controlFile, "control", "", "control forecast NetCDF file")
	assembleCmd.Flags().StringVar(&perturbedFile, "perturbed", "", "perturbed forecast NetCDF file")
	assembleCmd.Flags().StringVar(&outFile, "out", "", "output NetCDF file")
	assembleCmd.Flags().StringVar(&memberDim, "member-dim", glofas.MemberDim, "ensemble member dimension name")
	markRequired(assembleCmd, "control", "perturbed", "out")

	pointsCmd.Flags().StringVar(&inFile, "in", "", "assembled ensemble NetCDF file")
	pointsCmd.Flags().StringVar(&configFile, "config", "", "country configuration TOML file")
	pointsCmd.Flags().StringVar(&outFile, "out", "", "output CSV file")
	pointsCmd.Flags().StringVar(&variable, "variable", "", "variable to extract (default from configuration)")
	markRequired(pointsCmd, "in", "config", "out")

	Root.AddCommand(normalizeCmd, assembleCmd, pointsCmd)
}

func markRequired(cmd *cobra.Command, flags ...string) {
	for _, f := range flags {
		if err := cmd.MarkFlagRequired(f); err != nil {
			panic(err)
		}
	}
}
