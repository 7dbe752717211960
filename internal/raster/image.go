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


// Package raster holds the three-plane floating point image buffer 
// and its conversions from and to image files.
package raster

import (
	"fmt"
	"gonum.org/v1/gonum/floats"
	"github.com/mlnoga/blurbench/internal/pool"
)

// Number of color planes in every image: red, green and blue
const NumPlanes=3

// A dense three-plane raster image. 
type Image struct {
	ID       int         // Sequential ID number, for log output
	FileName string      // Original file name, if any, for log output

	Width    int         // Samples per row
	Height   int         // Rows per plane
	Depth    int         // Bits per sample of the source, 8 or 16. Defines the value range on export

	Data     []float64   // All planes back to back, each Height rows of Width samples. Index (p*Height+y)*Width+x

	Stats    *Stats      // Per-plane statistics, if calculated
}

// Creates a zeroed image of given dimensions and 8 bit depth. The backing array may be recycled
func New(width, height int) *Image {
	return &Image{
		Width:  width,
		Height: height,
		Depth:  8,
		Data:   pool.GetFloat64s(NumPlanes*width*height),
	}
}

// Creates an image from three planes of width*height samples each, which are copied
func NewFromPlanes(width, height int, planes [NumPlanes][]float64) (*Image, error) {
	size:=width*height
	for p, plane:=range planes {
		if len(plane)!=size { 
			return nil, fmt.Errorf("plane %d has %d samples, want %dx%d=%d", p, len(plane), width, height, size) 
		}
	}
	f:=New(width, height)
	for p, plane:=range planes {
		copy(f.Plane(p), plane)
	}
	return f, nil
}

// Returns a fully filled image of given dimensions
func NewUniform(width, height int, value float64) *Image {
	f:=New(width, height)
	for i:=range f.Data { f.Data[i]=value }
	return f
}

// Number of samples in one plane
func (f *Image) PlaneSize() int { return f.Width*f.Height }

// Returns the samples of plane p, as a slice into the image data
func (f *Image) Plane(p int) []float64 {
	size:=f.PlaneSize()
	return f.Data[p*size:(p+1)*size:(p+1)*size]
}

// Returns row y of plane p, as a slice into the image data
func (f *Image) Row(p, y int) []float64 {
	start:=(p*f.Height+y)*f.Width
	return f.Data[start:start+f.Width:start+f.Width]
}

func (f *Image) At(p, y, x int) float64 { return f.Data[(p*f.Height+y)*f.Width+x] }

func (f *Image) Set(p, y, x int, v float64) { f.Data[(p*f.Height+y)*f.Width+x]=v }

// Returns a deep copy of the image, without stats
func (f *Image) Clone() *Image {
	c:=New(f.Width, f.Height)
	c.ID, c.FileName, c.Depth=f.ID, f.FileName, f.Depth
	copy(c.Data, f.Data)
	return c
}

// Copy the metadata of src into f, leaving dimensions, data and stats alone
func (f *Image) CopyMetadata(src *Image) {
	f.ID, f.FileName, f.Depth=src.ID, src.FileName, src.Depth
}

// Returns the backing array for recycling. The image must not be used afterwards
func (f *Image) Release() {
	pool.PutFloat64s(f.Data)
	f.Data, f.Stats=nil, nil
}

// Checks that all planes are fully populated with matching dimensions
func (f *Image) Validate() error {
	if f.Width<=0 || f.Height<=0 { return fmt.Errorf("image dimensions %dx%d are not positive", f.Width, f.Height) }
	if len(f.Data)!=NumPlanes*f.Width*f.Height {
		return fmt.Errorf("image has %d samples, want %d planes of %dx%d", len(f.Data), NumPlanes, f.Width, f.Height)
	}
	return nil
}

// Maximum sample value representable at the image depth
func (f *Image) MaxValue() float64 {
	if f.Depth==16 { return 65535 }
	return 255
}

// Returns true if both images have identical dimensions and samples
func (f *Image) Equal(o *Image) bool {
	return f.Width==o.Width && f.Height==o.Height && floats.Equal(f.Data, o.Data)
}

// Returns true if both images have identical dimensions, and samples within tol
func (f *Image) EqualApprox(o *Image, tol float64) bool {
	return f.Width==o.Width && f.Height==o.Height && floats.EqualApprox(f.Data, o.Data, tol)
}

func (f *Image) DimensionsToString() string {
	return fmt.Sprintf("%dx%dx%d", f.Width, f.Height, NumPlanes)
}
