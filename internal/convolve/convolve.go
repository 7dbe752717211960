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


// Package convolve applies a kernel to a three-plane image by valid-mode 2D 
// convolution, sequentially or data-parallel across (plane, row) units of work.
// Both strategies accumulate each output sample in the same row-major tap order,
// so their results are bit-identical.
package convolve

import (
	"fmt"
	"time"
	"github.com/mlnoga/blurbench/internal/kernel"
	"github.com/mlnoga/blurbench/internal/pool"
	"github.com/mlnoga/blurbench/internal/raster"
)

// An image or kernel with a shape the convolution cannot process
type ShapeError struct {
	Op     string
	Reason string
}

func (e *ShapeError) Error() string { return e.Op+": "+e.Reason }

// Returns the output dimensions of one valid-mode pass
func OutputSize(width, height int, k *kernel.Kernel) (outWidth, outHeight int) {
	return width-k.Width()+1, height-k.Height()+1
}

// Checks the preconditions of a pass and returns the output dimensions
func checkShape(op string, img *raster.Image, k *kernel.Kernel) (outWidth, outHeight int, err error) {
	if img==nil { return 0, 0, &ShapeError{op, "no image"} }
	if err:=img.Validate(); err!=nil { return 0, 0, &ShapeError{op, err.Error()} }
	if k==nil || k.Height()==0 || k.Width()==0 { return 0, 0, &ShapeError{op, "empty kernel"} }
	outWidth, outHeight=OutputSize(img.Width, img.Height, k)
	if outWidth<=0 || outHeight<=0 {
		return 0, 0, &ShapeError{op, fmt.Sprintf("%dx%d kernel exceeds %s image", k.Width(), k.Height(), img.DimensionsToString())}
	}
	return outWidth, outHeight, nil
}

// Computes row y of plane p of the output. Taps are summed row-major, kernel rows outer
func convolveRow(out, in *raster.Image, weights []float64, kh, kw, p, y int) {
	dst:=out.Row(p, y)
	for x:=range dst {
		sum:=0.0
		for dh:=0; dh<kh; dh++ {
			src:=in.Row(p, y+dh)[x:x+kw]
			ws :=weights[dh*kw:(dh+1)*kw]
			for dw, w:=range ws {
				sum+=w*src[dw]
			}
		}
		dst[x]=sum
	}
}

// Applies the kernel to all planes of the image in one sequential pass, returning a new image 
// of size (width-kw+1)x(height-kh+1). The input is not modified
func Apply(img *raster.Image, k *kernel.Kernel) (*raster.Image, error) {
	outWidth, outHeight, err:=checkShape("convolve", img, k)
	if err!=nil { return nil, err }

	out:=raster.New(outWidth, outHeight)
	out.CopyMetadata(img)
	weights, kh, kw:=k.Weights(), k.Height(), k.Width()
	for p:=0; p<raster.NumPlanes; p++ {
		for y:=0; y<outHeight; y++ {
			convolveRow(out, img, weights, kh, kw, p, y)
		}
	}
	return out, nil
}

// Applies the kernel like Apply, distributing the (plane, output row) units of work 
// across the worker pool. Each unit writes one disjoint output row, so no 
// synchronization is needed beyond the fork-join barrier at the end of the pass
func ApplyParallel(img *raster.Image, k *kernel.Kernel, workers *pool.Pool) (*raster.Image, error) {
	outWidth, outHeight, err:=checkShape("parallel convolve", img, k)
	if err!=nil { return nil, err }

	out:=raster.New(outWidth, outHeight)
	out.CopyMetadata(img)
	weights, kh, kw:=k.Weights(), k.Height(), k.Width()
	workers.ParallelForAtomic(raster.NumPlanes*outHeight, func(unit int) {
		convolveRow(out, img, weights, kh, kw, unit/outHeight, unit%outHeight)
	})
	return out, nil
}

// A single convolution pass strategy
type Pass func(img *raster.Image, k *kernel.Kernel) (*raster.Image, error)

// The sequential pass strategy
var Sequential Pass = Apply

// Returns the parallel pass strategy on the given pool
func Parallel(workers *pool.Pool) Pass {
	return func(img *raster.Image, k *kernel.Kernel) (*raster.Image, error) {
		return ApplyParallel(img, k, workers)
	}
}

// Called after each completed pass with the zero-based pass index, 
// the elapsed time of the pass and its output. Intermediate outputs are 
// released by the following pass and must not be retained
type Observer func(pass int, elapsed time.Duration, out *raster.Image)

// Applies the pass n times, feeding each output into the next pass.
// Returns a copy of the input for n==0
func Repeat(pass Pass, img *raster.Image, k *kernel.Kernel, n int) (*raster.Image, error) {
	return RepeatObserved(pass, img, k, n, nil)
}

// Applies the pass n times like Repeat, calling obs after each pass if not nil. 
// Fails before doing any work if n passes would shrink the image to nothing.
// Intermediate images are released once consumed, the input never is
func RepeatObserved(pass Pass, img *raster.Image, k *kernel.Kernel, n int, obs Observer) (*raster.Image, error) {
	if n<0 { return nil, &ShapeError{"repeat", fmt.Sprintf("negative repeat count %d", n)} }
	if _, _, err:=checkShape("repeat", img, k); err!=nil { return nil, err }
	if n==0 { return img.Clone(), nil }

	finalWidth :=img.Width -n*(k.Width() -1)
	finalHeight:=img.Height-n*(k.Height()-1)
	if finalWidth<=0 || finalHeight<=0 {
		return nil, &ShapeError{"repeat", fmt.Sprintf("%d passes of %dx%d kernel exceed %s image", 
			n, k.Width(), k.Height(), img.DimensionsToString())}
	}

	cur:=img
	for i:=0; i<n; i++ {
		start:=time.Now()
		next, err:=pass(cur, k)
		if err!=nil {
			if cur!=img { cur.Release() }
			return nil, err
		}
		if obs!=nil { obs(i, time.Since(start), next) }
		if cur!=img { cur.Release() }
		cur=next
	}
	return cur, nil
}

// Applies the kernel n times sequentially
func ApplyTimes(img *raster.Image, k *kernel.Kernel, n int) (*raster.Image, error) {
	return Repeat(Sequential, img, k, n)
}

// Applies the kernel n times in parallel on the given pool
func ApplyParallelTimes(img *raster.Image, k *kernel.Kernel, n int, workers *pool.Pool) (*raster.Image, error) {
	return Repeat(Parallel(workers), img, k, n)
}
