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


package ops

import (
	"fmt"
	"github.com/mlnoga/blurbench/internal/bench"
	"github.com/mlnoga/blurbench/internal/convolve"
	"github.com/mlnoga/blurbench/internal/kernel"
	"github.com/mlnoga/blurbench/internal/raster"
)

// Execution strategy for repeated convolution passes
type Mode string

const (
	ModeSequential Mode = "sequential"
	ModeParallel   Mode = "parallel"
	ModeBoth       Mode = "both"       // run both, time them and require identical outputs
)

func ParseMode(s string) (Mode, error) {
	switch m:=Mode(s); m {
	case ModeSequential, ModeParallel, ModeBoth:
		return m, nil
	case "":
		return ModeParallel, nil
	default:
		return "", fmt.Errorf("unknown mode '%s', want sequential, parallel or both", s)
	}
}

// Blurs each input with the given number of valid-mode convolution passes.
// Takes n inputs, produces n outputs. The inputs are released
type OpBlur struct {
	OpUnaryBase
	Mode       Mode     `json:"mode"`
	Passes     int      `json:"passes"`
	Sigma      float64  `json:"sigma"`    // Gaussian sigma, or 0 for the context kernel
}

func init() { SetOperatorFactory(func() Operator { return NewOpBlurDefault()}) } // register the operator for JSON decoding

func NewOpBlurDefault() *OpBlur { return NewOpBlur(ModeParallel, 20, 0) }

func NewOpBlur(mode Mode, passes int, sigma float64) *OpBlur {
	op:=OpBlur{
		OpUnaryBase : OpUnaryBase{OpBase : OpBase{Type: "blur", Active: passes>0}},
		Mode        : mode,
		Passes      : passes,
		Sigma       : sigma,
	}
	op.OpUnaryBase.Apply=op.Apply // assign class method to superclass abstract method
	return &op
}

// Returns the kernel to apply to f. Fails before building a gaussian kernel larger than f
func (op *OpBlur) kernel(f *raster.Image, c *Context) (*kernel.Kernel, error) {
	if op.Sigma!=0 { 
		size, err:=kernel.GaussianSize(op.Sigma)
		if err!=nil { return nil, err }
		if err:=CheckKernelFits(size, f.Width, f.Height); err!=nil { return nil, err }
		return kernel.NewGaussian(op.Sigma) 
	}
	if c.Kernel!=nil { return c.Kernel, nil }
	return kernel.Gaussian3x3(), nil
}

func (op *OpBlur) Apply(f *raster.Image, c *Context) (result *raster.Image, err error) {
	mode, err:=ParseMode(string(op.Mode))
	if err!=nil { return nil, err }
	k, err:=op.kernel(f, c)
	if err!=nil { return nil, err }
	buffers:=2
	if mode==ModeBoth { buffers=3 }
	if err:=c.CheckMemory(f.Width, f.Height, buffers); err!=nil { return nil, err }
	if mode!=ModeSequential && c.Pool==nil { return nil, fmt.Errorf("%d: %s blur without worker pool", f.ID, mode) }

	switch mode {
	case ModeSequential:
		fmt.Fprintf(c.Log, "%d: Applying %v %d times sequentially\n", f.ID, k, op.Passes)
		result, err=convolve.Repeat(convolve.Sequential, f, k, op.Passes)
	case ModeParallel:
		fmt.Fprintf(c.Log, "%d: Applying %v %d times with %d workers\n", f.ID, k, op.Passes, c.Pool.NumWorkers())
		result, err=convolve.Repeat(convolve.Parallel(c.Pool), f, k, op.Passes)
	case ModeBoth:
		var rep *bench.Report
		if rep, err=bench.Compare(f, k, op.Passes, c.Pool, c.Log); err!=nil { break }
		rep.Sequential.Output.Release()
		result=rep.Parallel.Output
		fmt.Fprintf(c.Log, "%d: Speedup %.2fx, outputs %v\n", f.ID, rep.Speedup, rep.Diff)
		if !rep.Diff.Identical {
			result.Release()
			result, err=nil, fmt.Errorf("%d: parallel output differs from sequential: %v", f.ID, rep.Diff)
		}
	}
	if err!=nil { return nil, err }
	f.Release()
	fmt.Fprintf(c.Log, "%d: Blurred to %s\n", result.ID, result.DimensionsToString())
	return result, nil
}

// Returns an error if the given number of image buffers of the given size 
// exceed the working memory budget of the context
func (c *Context) CheckMemory(width, height, buffers int) error {
	if c.WorkMemoryMB<=0 { return nil }
	neededMB:=int64(width)*int64(height)*raster.NumPlanes*8*int64(buffers)/1024/1024
	if neededMB>int64(c.WorkMemoryMB) {
		return fmt.Errorf("%dx%d image needs %d MiB, exceeding the %d MiB budget", width, height, neededMB, c.WorkMemoryMB)
	}
	return nil
}

// Returns a ShapeError if a square kernel of the given side does not fit into an image of the given size
func CheckKernelFits(size, width, height int) error {
	if size>width || size>height {
		return &convolve.ShapeError{Op: "blur", Reason: fmt.Sprintf("%dx%d kernel exceeds %dx%d image", size, size, width, height)}
	}
	return nil
}
