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


package convolve

import (
	"errors"
	"math"
	"testing"
	"time"
	"github.com/mlnoga/blurbench/internal/kernel"
	"github.com/mlnoga/blurbench/internal/pool"
	"github.com/mlnoga/blurbench/internal/raster"
)

func mustKernel(t *testing.T, rows [][]float64) *kernel.Kernel {
	t.Helper()
	k, err:=kernel.New(rows)
	if err!=nil { t.Fatal(err) }
	return k
}

func constKernel(t *testing.T, size int, value float64) *kernel.Kernel {
	rows:=make([][]float64, size)
	for i:=range rows {
		rows[i]=make([]float64, size)
		for j:=range rows[i] { rows[i][j]=value }
	}
	return mustKernel(t, rows)
}

func TestApplyByHand(t *testing.T) {
	img:=raster.New(3, 3)
	for i:=range img.Plane(0) { img.Plane(0)[i]=float64(i+1) }
	for i:=range img.Plane(2) { img.Plane(2)[i]=1 }
	k:=mustKernel(t, [][]float64{{1, 2}, {3, 4}})

	out, err:=Apply(img, k)
	if err!=nil { t.Fatal(err) }
	if out.Width!=2 || out.Height!=2 { t.Fatalf("dims=%s; want 2x2x3", out.DimensionsToString()) }
	want:=[]float64{37, 47, 67, 77}
	for i, w:=range want {
		if v:=out.Plane(0)[i]; v!=w { t.Errorf("r[%d]=%f; want %f", i, v, w) }
		if v:=out.Plane(1)[i]; v!=0 { t.Errorf("g[%d]=%f; want 0", i, v) }
		if v:=out.Plane(2)[i]; v!=10 { t.Errorf("b[%d]=%f; want 10", i, v) }
	}
}

func TestDimensionLaw(t *testing.T) {
	p:=pool.New(4)
	defer p.Close()
	for _, size:=range []int{1, 2, 3, 5} {
		k:=constKernel(t, size, 1)
		for _, dims:=range [][2]int{{5, 5}, {7, 12}, {size, size}, {40, 9}} {
			img:=raster.NewRandom(dims[0], dims[1], 8)
			wantW, wantH:=dims[0]-size+1, dims[1]-size+1
			for name, pass:=range map[string]Pass{"sequential": Sequential, "parallel": Parallel(p)} {
				out, err:=pass(img, k)
				if err!=nil { t.Fatalf("%s k=%d img=%v: %v", name, size, dims, err) }
				if out.Width!=wantW || out.Height!=wantH || len(out.Data)!=raster.NumPlanes*wantW*wantH {
					t.Errorf("%s k=%d img=%v: dims=%s; want %dx%dx3", name, size, dims, out.DimensionsToString(), wantW, wantH)
				}
			}
		}
	}
}

func TestSequentialParallelIdentical(t *testing.T) {
	kernels:=[]*kernel.Kernel{kernel.Gaussian3x3(), constKernel(t, 1, 0.5)}
	if g, err:=kernel.NewGaussian(1.5); err==nil { kernels=append(kernels, g) }
	for _, workers:=range []int{1, 2, 3, 7, 64} {
		p:=pool.New(workers)
		for _, k:=range kernels {
			for _, dims:=range [][2]int{{13, 13}, {64, 9}, {9, 64}, {k.Width(), k.Height()+1}} {
				img:=raster.NewRandom(dims[0], dims[1], 16)
				seq, err:=Apply(img, k)
				if err!=nil { t.Fatal(err) }
				par, err:=ApplyParallel(img, k, p)
				if err!=nil { t.Fatal(err) }
				if !seq.Equal(par) { t.Errorf("workers=%d %v img=%v: parallel differs from sequential", workers, k, dims) }
			}
		}
		p.Close()
	}
}

func TestGaussianOnUniformField(t *testing.T) {
	img:=raster.NewUniform(5, 5, 10)
	p:=pool.New(3)
	defer p.Close()
	for name, pass:=range map[string]Pass{"sequential": Sequential, "parallel": Parallel(p)} {
		out, err:=pass(img, kernel.Gaussian3x3())
		if err!=nil { t.Fatal(err) }
		if out.Width!=3 || out.Height!=3 { t.Fatalf("%s dims=%s; want 3x3x3", name, out.DimensionsToString()) }
		for i, v:=range out.Data {
			if math.Abs(v-10)>1e-4 { t.Errorf("%s out[%d]=%f; want 10", name, i, v) }
		}
	}
}

func TestZeroKernel(t *testing.T) {
	img:=raster.NewRandom(11, 6, 8)
	for _, size:=range []int{1, 2, 4} {
		out, err:=Apply(img, constKernel(t, size, 0))
		if err!=nil { t.Fatal(err) }
		if out.Width!=12-size || out.Height!=7-size { t.Errorf("k=%d dims=%s", size, out.DimensionsToString()) }
		for i, v:=range out.Data {
			if v!=0 { t.Fatalf("k=%d out[%d]=%f; want 0", size, i, v) }
		}
	}
}

func TestIdentityKernel(t *testing.T) {
	img:=raster.NewRandom(10, 7, 8)
	p:=pool.New(5)
	defer p.Close()
	k:=mustKernel(t, [][]float64{{1}})
	seq, err:=Apply(img, k)
	if err!=nil { t.Fatal(err) }
	par, err:=ApplyParallel(img, k, p)
	if err!=nil { t.Fatal(err) }
	if !img.Equal(seq) || !img.Equal(par) { t.Errorf("1x1 identity kernel changed the image") }
}

func TestInputUnmodified(t *testing.T) {
	img:=raster.NewRandom(16, 16, 8)
	orig:=img.Clone()
	p:=pool.New(4)
	defer p.Close()
	if _, err:=ApplyParallelTimes(img, kernel.Gaussian3x3(), 3, p); err!=nil { t.Fatal(err) }
	if _, err:=ApplyTimes(img, kernel.Gaussian3x3(), 3); err!=nil { t.Fatal(err) }
	if !img.Equal(orig) { t.Errorf("input image modified") }
}

func TestKernelLargerThanImage(t *testing.T) {
	p:=pool.New(2)
	defer p.Close()
	k:=constKernel(t, 4, 1)
	for _, dims:=range [][2]int{{3, 10}, {10, 3}, {2, 2}} {
		img:=raster.NewUniform(dims[0], dims[1], 1)
		var se *ShapeError
		if _, err:=Apply(img, k); !errors.As(err, &se) { t.Errorf("sequential %v: err=%v; want ShapeError", dims, err) }
		if _, err:=ApplyParallel(img, k, p); !errors.As(err, &se) { t.Errorf("parallel %v: err=%v; want ShapeError", dims, err) }
	}
}

func TestMalformedInputs(t *testing.T) {
	var se *ShapeError
	img:=raster.New(4, 4)
	img.Data=img.Data[:20]
	if _, err:=Apply(img, kernel.Gaussian3x3()); !errors.As(err, &se) { t.Errorf("truncated planes: err=%v; want ShapeError", err) }
	if _, err:=Apply(nil, kernel.Gaussian3x3()); !errors.As(err, &se) { t.Errorf("nil image: err=%v; want ShapeError", err) }
	if _, err:=Apply(raster.New(4, 4), &kernel.Kernel{}); !errors.As(err, &se) { t.Errorf("empty kernel: err=%v; want ShapeError", err) }
}

func TestRepeatComposition(t *testing.T) {
	img:=raster.NewRandom(30, 25, 8)
	k:=kernel.Gaussian3x3()
	p:=pool.New(4)
	defer p.Close()
	for _, n:=range []int{1, 2, 5} {
		all, err:=ApplyTimes(img, k, n)
		if err!=nil { t.Fatal(err) }
		once, err:=Apply(img, k)
		if err!=nil { t.Fatal(err) }
		rest, err:=ApplyTimes(once, k, n-1)
		if err!=nil { t.Fatal(err) }
		if !all.Equal(rest) { t.Errorf("n=%d: repeat is not composition of single passes", n) }
		if all.Width!=30-2*n || all.Height!=25-2*n { t.Errorf("n=%d dims=%s", n, all.DimensionsToString()) }

		par, err:=ApplyParallelTimes(img, k, n, p)
		if err!=nil { t.Fatal(err) }
		if !all.Equal(par) { t.Errorf("n=%d: parallel repeat differs from sequential", n) }
	}
}

func TestRepeatZeroIsCopy(t *testing.T) {
	img:=raster.NewRandom(6, 6, 8)
	out, err:=ApplyTimes(img, kernel.Gaussian3x3(), 0)
	if err!=nil { t.Fatal(err) }
	if !out.Equal(img) { t.Fatalf("n=0 changed values") }
	out.Set(0, 0, 0, -1)
	if img.At(0, 0, 0)==-1 { t.Errorf("n=0 result aliases the input") }
}

func TestRepeatFailsBeforeShrinkingToNothing(t *testing.T) {
	img:=raster.NewRandom(9, 20, 8)
	calls:=0
	obs:=func(pass int, elapsed time.Duration, out *raster.Image) { calls++ }
	var se *ShapeError
	if _, err:=RepeatObserved(Sequential, img, kernel.Gaussian3x3(), 5, obs); !errors.As(err, &se) {
		t.Errorf("5 passes on width 9: err=%v; want ShapeError", err)
	}
	if calls!=0 { t.Errorf("observer called %d times before failing; want 0", calls) }
	if _, err:=Repeat(Sequential, img, kernel.Gaussian3x3(), -1); !errors.As(err, &se) {
		t.Errorf("negative count: err=%v; want ShapeError", err)
	}
	out, err:=Repeat(Sequential, img, kernel.Gaussian3x3(), 3)
	if err!=nil { t.Fatal(err) }
	if out.Width!=3 || out.Height!=14 { t.Errorf("dims=%s; want 3x14x3", out.DimensionsToString()) }
}

func TestRepeatObserver(t *testing.T) {
	img:=raster.NewRandom(20, 20, 8)
	var widths []int
	obs:=func(pass int, elapsed time.Duration, out *raster.Image) {
		if pass!=len(widths) { t.Errorf("pass=%d; want %d", pass, len(widths)) }
		if elapsed<0 { t.Errorf("elapsed=%v; want >=0", elapsed) }
		widths=append(widths, out.Width)
	}
	if _, err:=RepeatObserved(Sequential, img, kernel.Gaussian3x3(), 3, obs); err!=nil { t.Fatal(err) }
	want:=[]int{18, 16, 14}
	if len(widths)!=len(want) { t.Fatalf("observed %d passes; want %d", len(widths), len(want)) }
	for i, w:=range want {
		if widths[i]!=w { t.Errorf("width[%d]=%d; want %d", i, widths[i], w) }
	}
}

func BenchmarkApply(b *testing.B) {
	img:=raster.NewRandom(512, 512, 8)
	k:=kernel.Gaussian3x3()
	for i:=0; i<b.N; i++ {
		out, _:=Apply(img, k)
		out.Release()
	}
}

func BenchmarkApplyParallel(b *testing.B) {
	img:=raster.NewRandom(512, 512, 8)
	k:=kernel.Gaussian3x3()
	p:=pool.New(0)
	defer p.Close()
	for i:=0; i<b.N; i++ {
		out, _:=ApplyParallel(img, k, p)
		out.Release()
	}
}
