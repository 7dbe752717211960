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


package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"runtime/pprof"
	"strings"
	"time"
	nl "github.com/mlnoga/blurbench/internal"
	"github.com/mlnoga/blurbench/internal/bench"
	"github.com/mlnoga/blurbench/internal/kernel"
	"github.com/mlnoga/blurbench/internal/ops"
	"github.com/mlnoga/blurbench/internal/pool"
	"github.com/mlnoga/blurbench/internal/raster"
	"github.com/mlnoga/blurbench/internal/rest"
)

const version = "0.1.0"

var cpuprofile = flag.String("cpuprofile", "", "write cpu profile to `file`")
var memprofile = flag.String("memprofile", "", "write memory profile to `file`")

var passes  = flag.Int("passes", 20, "number of convolution passes")
var mode    = flag.String("mode", "both", "execution mode for blur and run, one of sequential, parallel or both")
var workers = flag.Int("workers", 0, "number of parallel workers, 0=logical CPU cores")
var sigma   = flag.Float64("sigma", 0, "use a gaussian kernel with this sigma instead of the fixed 3x3 kernel, 0=fixed")
var synth   = flag.String("synth", "1920x1080", "size of the random input image for bench without input file, as `WxH`")

var out     = flag.String("out", "blur%d.png", "save blurred images with given filename pattern, %d is replaced by the image id")
var outSeq  = flag.String("outSeq", "blur_seq.png", "save the sequential benchmark result to `file`, empty to skip")
var outPar  = flag.String("outPar", "blur_par.png", "save the parallel benchmark result to `file`, empty to skip")
var log     = flag.String("log", "%auto", "save log output to `file`. `%auto` replaces suffix of output file with .log")
var verify  = flag.Bool("verify", false, "fail the benchmark unless sequential and parallel results are bit-identical")
var addr    = flag.String("addr", ":8080", "listen address for serve")
var chroot  = flag.String("chroot", "", "for serve, change filesystem root to `dir` before serving (requires root)")
var setuid  = flag.Int("setuid", -1, "for serve, change user id to `uid` before serving, -1=keep")

func main() {
	logWriter:=os.Stdout
	start:=time.Now()
	flag.Usage=func(){
 	    fmt.Fprintf(logWriter, `Blurbench Copyright (c) 2020 Markus L. Noga
This program comes with ABSOLUTELY NO WARRANTY.
This is free software, and you are welcome to redistribute it under certain conditions.
Refer to https://www.gnu.org/licenses/gpl-3.0.en.html for details.

Usage: %s [-flag value] (bench|blur|run|compare|kernel|serve|legal|version) (img0.png ... imgn.png)

Commands:
  bench   Time repeated blur passes sequentially and in parallel, on the given image or a random one
  blur    Blur the given images and save them
  run     Run the operator graph from the given JSON job file
  compare Compare two images sample by sample
  kernel  Show the convolution kernel
  serve   Serve the web interface and REST API
  legal   Show license and attribution information
  version Show version information

Flags:
`, os.Args[0])
	    flag.PrintDefaults()
	}
	flag.Parse()

	args:=flag.Args()
	if len(args)<1 {
		flag.Usage()
		return
	}

	// Initialize logging to file in addition to stdout, if selected
	if *log=="%auto" { *log=autoLogFile(args[0]) }
	if *log!="" { 
		if err:=nl.LogAlsoToFile(*log); err!=nil { nl.LogFatalf("Unable to open logfile '%s'\n", *log) }
	}

	// Enable CPU profiling if flagged
	if *cpuprofile != "" {
		f, err := os.Create(*cpuprofile)
		if err != nil {
			nl.LogFatal("Could not create CPU profile: ", err)
		}
		defer f.Close()
		if err := pprof.StartCPUProfile(f); err != nil {
			nl.LogFatal("Could not start CPU profile: ", err)
		}
		defer pprof.StopCPUProfile()
	}

	numWorkers:=*workers
	if numWorkers<=0 { numWorkers=nl.NumWorkers() }
	p:=pool.New(numWorkers)
	defer p.Close()
	ctx:=ops.NewContext(nl.LogWriter(), p)
	if *sigma!=0 {
		k, err:=kernel.NewGaussian(*sigma)
		if err!=nil { nl.LogFatalf("Error: %s\n", err.Error()) }
		ctx.Kernel=k
	}

	var err error
	switch args[0] {
	case "bench":
		logHardware(numWorkers)
		err=cmdBench(args[1:], ctx)
	case "blur":
		logHardware(numWorkers)
		err=cmdBlur(args[1:], ctx)
	case "run":
		logHardware(numWorkers)
		err=cmdRun(args[1:], ctx)
	case "compare":
		err=cmdCompare(args[1:])
	case "kernel":
		err=cmdKernel(ctx)
	case "serve":
		logHardware(numWorkers)
		ctx.Sandbox=true
		if err=rest.MakeSandbox(*chroot, *setuid); err==nil {
			err=rest.Serve(*addr, ctx)
		}
	case "legal":
		cmdLegal()
	case "version":
		nl.LogPrintf("Version %s\n", version)
	case "help", "?":
		flag.Usage()
	default:
		nl.LogPrintf("Unknown command '%s'\n\n", args[0])
		flag.Usage()
		return
	}
	if err!=nil {
		nl.LogPrintf("Error: %s\n", err.Error())
		pprof.StopCPUProfile()
		nl.LogSync()
		os.Exit(1)
	}

	// Store memory profile if flagged
	if *memprofile != "" {
		f, err := os.Create(*memprofile)
		if err != nil {
			nl.LogFatal("Could not create memory profile: ", err)
		}
		defer f.Close()
		runtime.GC() // get up-to-date statistics
		if err := pprof.WriteHeapProfile(f); err != nil {
			nl.LogFatal("Could not write memory profile: ", err)
		}
	}

	if args[0]=="bench" || args[0]=="blur" || args[0]=="run" {
		nl.LogPrintf("Done after %v\n", time.Since(start))
	}
	nl.LogSync()
}

// Derives the log file from the output of the given command, or none
func autoLogFile(cmd string) string {
	var target string
	switch cmd {
	case "bench":
		target=*outPar
	case "blur":
		target=strings.ReplaceAll(*out, "%d", "")
	default:
		return ""
	}
	if target=="" { return "" }
	return strings.TrimSuffix(target, filepath.Ext(target))+".log"
}

func logHardware(numWorkers int) {
	nl.LogPrintf("Blurbench %s on %s, using %d workers\n", version, nl.HardwareString(), numWorkers)
}

// Parses an image size of the form WxH
func parseSize(s string) (width, height int, err error) {
	var tail string
	n, _:=fmt.Sscanf(strings.ToLower(s), "%dx%d%s", &width, &height, &tail)
	if n!=2 || width<=0 || height<=0 { return 0, 0, fmt.Errorf("invalid size '%s', want WxH", s) }
	return width, height, nil
}

// Times repeated passes sequentially and in parallel, saves both results 
// and reports the speedup
func cmdBench(args []string, c *ops.Context) error {
	if len(args)>1 { return fmt.Errorf("bench takes at most one input file, got %d", len(args)) }
	var img *raster.Image
	if len(args)==1 {
		var err error
		if img, err=raster.NewImageFromFile(args[0], 0); err!=nil { return err }
		img.CalcStats()
		nl.LogPrintf("%d: Loaded %s %d-bit image with %v from %s\n", img.ID, img.DimensionsToString(), img.Depth, img.Stats, img.FileName)
	} else {
		width, height, err:=parseSize(*synth)
		if err!=nil { return err }
		img=raster.NewRandom(width, height, 8)
		nl.LogPrintf("%d: Synthesized %s random image\n", img.ID, img.DimensionsToString())
	}
	if err:=c.CheckMemory(img.Width, img.Height, 4); err!=nil { return err }

	rep, err:=bench.Compare(img, c.Kernel, *passes, c.Pool, nl.LogWriter())
	if err!=nil { return err }
	rep.Print(nl.LogWriter())

	for _, r:=range []struct{ fileName string; res *bench.Result }{{*outSeq, rep.Sequential}, {*outPar, rep.Parallel}} {
		if r.fileName=="" { continue }
		nl.LogPrintf("Writing %s result to %s\n", r.res.Strategy, r.fileName)
		if err:=r.res.Output.WriteFile(r.fileName); err!=nil { return err }
	}
	if *verify && !rep.Diff.Identical { return fmt.Errorf("parallel result differs from sequential: %v", rep.Diff) }
	return nil
}

// Blurs and saves all images matching the given file patterns
func cmdBlur(args []string, c *ops.Context) error {
	if len(args)==0 { return fmt.Errorf("blur needs at least one input file") }
	m, err:=ops.ParseMode(*mode)
	if err!=nil { return err }
	seq:=ops.NewOpSequence(
		ops.NewOpLoadMany(args),
		ops.NewOpForEach(ops.NewOpSequence(
			ops.NewOpBlur(m, *passes, 0),
			ops.NewOpSave(*out),
		)),
	)
	return runOperator(seq, c)
}

// Runs the operator graph from a JSON job file
func cmdRun(args []string, c *ops.Context) error {
	if len(args)!=1 { return fmt.Errorf("run needs exactly one job file, got %d", len(args)) }
	raw, err:=os.ReadFile(args[0])
	if err!=nil { return err }
	op, err:=ops.UnmarshalOperator(raw)
	if err!=nil { return fmt.Errorf("parsing job %s: %w", args[0], err) }
	return runOperator(op, c)
}

func runOperator(op ops.Operator, c *ops.Context) error {
	promises, err:=op.MakePromises(nil, c)
	if err!=nil { return err }
	_, err=ops.MaterializeAll(promises, c.MaxThreads, true)
	return err
}

// Compares two images and prints their differences
func cmdCompare(args []string) error {
	if len(args)!=2 { return fmt.Errorf("compare needs exactly two files, got %d", len(args)) }
	a, err:=raster.NewImageFromFile(args[0], 0)
	if err!=nil { return err }
	b, err:=raster.NewImageFromFile(args[1], 1)
	if err!=nil { return err }
	d, err:=raster.Compare(a, b)
	if err!=nil { return err }
	nl.LogPrintf("%s vs %s: %v\n", args[0], args[1], d)
	return nil
}

// Prints the active convolution kernel as JSON
func cmdKernel(c *ops.Context) error {
	bs, err:=json.MarshalIndent(c.Kernel, "", "  ")
	if err!=nil { return err }
	nl.LogPrintf("%v\n%s\n", c.Kernel, bs)
	return nil
}
