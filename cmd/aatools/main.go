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

// Command aatools is a command-line interface for post-processing
// climate and hydrological raster data for anticipatory action
// pipelines.
package main

import (
	"os"

	log "github.com/sirupsen/logrus"
)

func main() {
	log.SetOutput(os.Stderr)
	if err := Root.Execute(); err != nil {
		log.Fatal(err)
	}
}
