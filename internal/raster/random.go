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
	"github.com/valyala/fastrand"
)

// Creates an image of uniformly distributed random integer samples in [0, 2^depth-1]
func NewRandom(width, height, depth int) *Image {
	f:=New(width, height)
	if depth==16 { f.Depth=16 }
	maxN:=uint32(f.MaxValue())+1
	rng:=fastrand.RNG{}
	for i:=range f.Data {
		f.Data[i]=float64(rng.Uint32n(maxN))
	}
	return f
}
