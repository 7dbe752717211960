// Copyright (C) 2020 Markus L. Noga
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.


package raster

import (
	"fmt"
	"strings"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Basic statistics of one plane
type PlaneStats struct {
	Min    float64 `json:"min"`
	Mean   float64 `json:"mean"`
	Max    float64 `json:"max"`
	StdDev float64 `json:"stdDev"`
}

// Statistics for all planes of an image
type Stats [NumPlanes]PlaneStats

var planeNames=[NumPlanes]string{"r", "g", "b"}

func (s *Stats) String() string {
	var b strings.Builder
	for p, ps:=range s {
		if p>0 { b.WriteString(" ") }
		fmt.Fprintf(&b, "%s(min %.6g mean %.6g max %.6g sd %.4g)", planeNames[p], ps.Min, ps.Mean, ps.Max, ps.StdDev)
	}
	return b.String()
}

// Calculates per-plane statistics and stores them with the image
func (f *Image) CalcStats() *Stats {
	s:=&Stats{}
	for p:=range s {
		plane:=f.Plane(p)
		if len(plane)==0 { continue }
		mean, std:=stat.MeanStdDev(plane, nil)
		s[p]=PlaneStats{Min: floats.Min(plane), Mean: mean, Max: floats.Max(plane), StdDev: std}
	}
	f.Stats=s
	return s
}
