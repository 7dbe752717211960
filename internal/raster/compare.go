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
	"math"
	colorful "github.com/lucasb-eyer/go-colorful"
)

// Differences between two images of identical dimensions
type Diff struct {
	Identical  bool    `json:"identical"`  // all samples bit-identical
	MaxAbs     float64 `json:"maxAbs"`     // largest absolute sample difference
	MeanAbs    float64 `json:"meanAbs"`    // mean absolute sample difference
	MeanDeltaE float64 `json:"meanDeltaE"` // mean perceptual CIEDE2000 difference of the pixels, as sRGB
	Differing  int     `json:"differing"`  // number of samples which are not identical
}

func (d *Diff) String() string {
	if d.Identical { return "identical" }
	return fmt.Sprintf("%d samples differ, max abs %.6g, mean abs %.6g, mean deltaE %.6g", 
		d.Differing, d.MaxAbs, d.MeanAbs, d.MeanDeltaE)
}

// Compares two images sample by sample. Fails if the dimensions differ
func Compare(a, b *Image) (*Diff, error) {
	if a.Width!=b.Width || a.Height!=b.Height {
		return nil, fmt.Errorf("cannot compare %s image with %s image", a.DimensionsToString(), b.DimensionsToString())
	}
	if err:=a.Validate(); err!=nil { return nil, err }
	if err:=b.Validate(); err!=nil { return nil, err }

	d:=&Diff{}
	sumAbs:=0.0
	for i, va:=range a.Data {
		vb:=b.Data[i]
		if va==vb { continue }
		d.Differing++
		delta:=math.Abs(va-vb)
		sumAbs+=delta
		if delta>d.MaxAbs { d.MaxAbs=delta }
	}
	d.Identical=d.Differing==0
	d.MeanAbs=sumAbs/float64(len(a.Data))
	if d.Identical { return d, nil }

	size:=a.PlaneSize()
	scaleA, scaleB:=1/a.MaxValue(), 1/b.MaxValue()
	sumDeltaE:=0.0
	for i:=0; i<size; i++ {
		ca:=colorful.Color{R: a.Data[i]*scaleA, G: a.Data[i+size]*scaleA, B: a.Data[i+2*size]*scaleA}
		cb:=colorful.Color{R: b.Data[i]*scaleB, G: b.Data[i+size]*scaleB, B: b.Data[i+2*size]*scaleB}
		sumDeltaE+=ca.Clamped().DistanceCIEDE2000(cb.Clamped())
	}
	d.MeanDeltaE=sumDeltaE/float64(size)
	return d, nil
}
