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


// Package bench times repeated convolution passes of both strategies 
// and compares their results.
package bench

import (
	"fmt"
	"io"
	"time"
	"gonum.org/v1/gonum/stat"
	"github.com/mlnoga/blurbench/internal/convolve"
	"github.com/mlnoga/blurbench/internal/kernel"
	"github.com/mlnoga/blurbench/internal/pool"
	"github.com/mlnoga/blurbench/internal/raster"
)

// Timing of a sequence of passes with one strategy
type Result struct {
	Strategy  string          `json:"strategy"`
	Workers   int             `json:"workers"`
	Passes    int             `json:"passes"`
	PassTimes []time.Duration `json:"passTimes"`
	Total     time.Duration   `json:"total"`
	Output    *raster.Image   `json:"-"`
}

// Mean and standard deviation of the pass durations in seconds
func (r *Result) PassStats() (mean, stdDev float64) {
	if len(r.PassTimes)==0 { return 0, 0 }
	secs:=make([]float64, len(r.PassTimes))
	for i, d:=range r.PassTimes { secs[i]=d.Seconds() }
	if len(secs)==1 { return secs[0], 0 }
	return stat.MeanStdDev(secs, nil)
}

func (r *Result) String() string {
	mean, stdDev:=r.PassStats()
	return fmt.Sprintf("%s x%d with %d workers in %v (%.4gs ± %.2gs per pass)", 
		r.Strategy, r.Passes, r.Workers, r.Total, mean, stdDev)
}

// Applies the pass the given number of times to img, timing each pass with the monotonic clock
func Run(strategy string, workers int, pass convolve.Pass, img *raster.Image, k *kernel.Kernel, passes int) (*Result, error) {
	r:=&Result{Strategy: strategy, Workers: workers, Passes: passes, PassTimes: make([]time.Duration, 0, passes)}
	start:=time.Now()
	out, err:=convolve.RepeatObserved(pass, img, k, passes, func(i int, elapsed time.Duration, _ *raster.Image) {
		r.PassTimes=append(r.PassTimes, elapsed)
	})
	r.Total=time.Since(start)
	if err!=nil { return nil, err }
	r.Output=out
	return r, nil
}

// Timings of both strategies on the same input, and the difference of their outputs
type Report struct {
	Width      int          `json:"width"`
	Height     int          `json:"height"`
	Kernel     string       `json:"kernel"`
	Sequential *Result      `json:"sequential"`
	Parallel   *Result      `json:"parallel"`
	Speedup    float64      `json:"speedup"`
	Diff       *raster.Diff `json:"diff"`
}

// Runs the given number of passes first sequentially, then in parallel on the pool, 
// and compares the outputs. Logs progress to logWriter
func Compare(img *raster.Image, k *kernel.Kernel, passes int, workers *pool.Pool, logWriter io.Writer) (*Report, error) {
	rep:=&Report{Width: img.Width, Height: img.Height, Kernel: k.String()}

	fmt.Fprintf(logWriter, "%d: Applying %v %d times sequentially...\n", img.ID, k, passes)
	seq, err:=Run("sequential", 1, convolve.Sequential, img, k, passes)
	if err!=nil { return nil, err }
	fmt.Fprintf(logWriter, "%d: %v\n", img.ID, seq)
	rep.Sequential=seq

	fmt.Fprintf(logWriter, "%d: Applying %v %d times in parallel...\n", img.ID, k, passes)
	par, err:=Run("parallel", workers.NumWorkers(), convolve.Parallel(workers), img, k, passes)
	if err!=nil { return nil, err }
	fmt.Fprintf(logWriter, "%d: %v\n", img.ID, par)
	rep.Parallel=par

	if par.Total>0 { rep.Speedup=seq.Total.Seconds()/par.Total.Seconds() }
	rep.Diff, err=raster.Compare(seq.Output, par.Output)
	if err!=nil { return nil, err }
	return rep, nil
}

// Prints a summary of the report
func (rep *Report) Print(w io.Writer) {
	fmt.Fprintf(w, "Input %dx%d, %s\n", rep.Width, rep.Height, rep.Kernel)
	fmt.Fprintf(w, "  %v\n", rep.Sequential)
	fmt.Fprintf(w, "  %v\n", rep.Parallel)
	fmt.Fprintf(w, "  Speedup %.2fx, outputs %v\n", rep.Speedup, rep.Diff)
}
