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
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"testing"
	"github.com/mlnoga/blurbench/internal/convolve"
	"github.com/mlnoga/blurbench/internal/kernel"
	"github.com/mlnoga/blurbench/internal/pool"
	"github.com/mlnoga/blurbench/internal/raster"
)

func newTestContext(t *testing.T, log io.Writer) *Context {
	p:=pool.New(3)
	t.Cleanup(p.Close)
	return &Context{Log: log, MaxThreads: 2, Pool: p, Kernel: kernel.Gaussian3x3()}
}

func TestRemoveNils(t *testing.T) {
	a, b:=raster.New(1,1), raster.New(1,1)
	fs:=RemoveNils([]*raster.Image{nil, a, nil, b, nil})
	if len(fs)!=2 || fs[0]!=a || fs[1]!=b { t.Errorf("got %v", fs) }
}

func TestMaterializeAll(t *testing.T) {
	ins:=make([]Promise, 5)
	for i:=range ins {
		i:=i
		ins[i]=func() (*raster.Image, error) {
			if i%2==1 { return nil, fmt.Errorf("failed %d", i) }
			f:=raster.New(2,2)
			f.ID=i
			return f, nil
		}
	}
	outs, err:=MaterializeAll(ins, 2, false)
	if err==nil || !strings.Contains(err.Error(), "failed 1") || !strings.Contains(err.Error(), "failed 3") { 
		t.Errorf("err=%v; want both failures", err) 
	}
	if len(outs)!=3 { t.Fatalf("len(outs)=%d; want 3", len(outs)) }
	for i, f:=range outs {
		if f.ID!=2*i { t.Errorf("outs[%d].ID=%d; want %d", i, f.ID, 2*i) }
	}

	outs, err=MaterializeAll(ins[:1], 0, true)
	if err!=nil || len(outs)!=0 { t.Errorf("forget: outs=%v err=%v", outs, err) }
}

func TestParseMode(t *testing.T) {
	tcs:=[]struct{
		in   string
		want Mode
		ok   bool
	}{
		{"sequential", ModeSequential, true},
		{"parallel", ModeParallel, true},
		{"both", ModeBoth, true},
		{"", ModeParallel, true},
		{"simd", "", false},
	}
	for _, tc:=range tcs {
		m, err:=ParseMode(tc.in)
		if (err==nil)!=tc.ok || m!=tc.want { t.Errorf("ParseMode(%q)=%q,%v; want %q ok=%v", tc.in, m, err, tc.want, tc.ok) }
	}
}

func TestPipeline(t *testing.T) {
	dir:=t.TempDir()
	var log bytes.Buffer
	c:=newTestContext(t, &log)
	pattern:=filepath.Join(dir, "out%d.png")
	seq:=NewOpSequence(
		NewOpSynth(7, 20, 16, 8),
		NewOpBlur(ModeBoth, 2, 0),
		NewOpSave(pattern),
	)
	promises, err:=seq.MakePromises(nil, c)
	if err!=nil { t.Fatal(err) }
	outs, err:=MaterializeAll(promises, c.MaxThreads, false)
	if err!=nil { t.Fatal(err) }
	if len(outs)!=1 || outs[0].Width!=16 || outs[0].Height!=12 { t.Fatalf("outs=%v", outs) }

	f, err:=raster.NewImageFromFile(filepath.Join(dir, "out7.png"), 7)
	if err!=nil { t.Fatal(err) }
	if f.Width!=16 || f.Height!=12 { t.Errorf("saved %s; want 16x12x3", f.DimensionsToString()) }
	if !strings.Contains(log.String(), "identical") { t.Errorf("log lacks comparison: %q", log.String()) }
}

func TestLoadManyForEach(t *testing.T) {
	dir:=t.TempDir()
	for i:=0; i<3; i++ {
		f:=raster.NewRandom(10+i, 10, 8)
		if err:=f.WriteFile(filepath.Join(dir, fmt.Sprintf("in%d.png", i))); err!=nil { t.Fatal(err) }
	}
	c:=newTestContext(t, io.Discard)
	seq:=NewOpSequence(
		NewOpLoadMany([]string{filepath.Join(dir, "in*.png")}),
		NewOpForEach(NewOpBlur(ModeSequential, 1, 0)),
	)
	promises, err:=seq.MakePromises(nil, c)
	if err!=nil { t.Fatal(err) }
	outs, err:=MaterializeAll(promises, c.MaxThreads, false)
	if err!=nil { t.Fatal(err) }
	if len(outs)!=3 { t.Fatalf("len(outs)=%d; want 3", len(outs)) }
	for _, f:=range outs {
		if f.Height!=8 || f.Width!=8+f.ID { t.Errorf("image %d is %s; want %dx8x3", f.ID, f.DimensionsToString(), 8+f.ID) }
	}
}

func TestLoadManyNoMatches(t *testing.T) {
	c:=newTestContext(t, io.Discard)
	if _, err:=NewOpLoadMany([]string{filepath.Join(t.TempDir(), "*.png")}).MakePromises(nil, c); err==nil {
		t.Errorf("expected error for empty match")
	}
}

func TestSandbox(t *testing.T) {
	c:=newTestContext(t, io.Discard)
	c.Sandbox=true
	for _, name:=range []string{"/etc/passwd", "../x.png", "a/../../x.png"} {
		if _, err:=NewOpLoad(0, name).MakePromises(nil, c); err==nil { t.Errorf("load %s allowed in sandbox", name) }
	}
	if _, err:=NewOpLoad(0, "testdata/x.png").MakePromises(nil, c); err!=nil { t.Errorf("relative path rejected: %v", err) }
}

func TestMemoryBudget(t *testing.T) {
	c:=newTestContext(t, io.Discard)
	c.WorkMemoryMB=1
	if _, err:=NewOpSynth(0, 1000, 1000, 8).MakePromises(nil, c); err==nil { t.Errorf("expected memory budget error") }
	if _, err:=NewOpSynth(0, 100, 100, 8).MakePromises(nil, c); err!=nil { t.Errorf("small image rejected: %v", err) }
}

func TestBlurShapeError(t *testing.T) {
	c:=newTestContext(t, io.Discard)
	_, err:=NewOpBlur(ModeParallel, 3, 0).Apply(raster.NewRandom(5, 5, 8), c)
	if err==nil { t.Errorf("expected error for 3 passes on 5x5") }
}

func TestBlurRejectsOversizedSigma(t *testing.T) {
	c:=newTestContext(t, io.Discard)
	for _, sigma:=range []float64{20000, 5} {
		_, err:=NewOpBlur(ModeSequential, 1, sigma).Apply(raster.NewRandom(12, 12, 8), c)
		if err==nil { t.Errorf("sigma=%g on 12x12: want error", sigma) }
	}
	var se *convolve.ShapeError
	_, err:=NewOpBlur(ModeSequential, 1, 5).Apply(raster.NewRandom(12, 12, 8), c)
	if !errors.As(err, &se) { t.Errorf("sigma=5 on 12x12: err=%v; want ShapeError", err) }
	out, err:=NewOpBlur(ModeSequential, 1, 1).Apply(raster.NewRandom(12, 12, 8), c)
	if err!=nil || out.Width!=10 { t.Errorf("sigma=1: out=%v err=%v; want 10x10x3", out, err) }
}

func TestSaveUnknownFormat(t *testing.T) {
	c:=newTestContext(t, io.Discard)
	_, err:=NewOpSave(filepath.Join(t.TempDir(), "x.fits")).Apply(raster.New(2,2), c)
	if err==nil { t.Errorf("expected failure for unknown suffix") }
	var ee *raster.EncodeError
	if errors.As(err, &ee) { t.Errorf("unknown suffix reported as encode error: %v", err) }
}

func TestJobJSON(t *testing.T) {
	job:=`{"type":"seq","steps":[
		{"type":"synth","width":30,"height":20,"depth":16},
		{"type":"forEach","operation":{"type":"blur","mode":"parallel","passes":3,"sigma":0.8}},
		{"type":"save","filePattern":"out%d.tiff"}
	]}`
	var seq OpSequence
	if err:=json.Unmarshal([]byte(job), &seq); err!=nil { t.Fatal(err) }
	if !seq.Active || len(seq.Steps)!=3 { t.Fatalf("seq=%+v", seq) }
	fe, ok:=seq.Steps[1].(*OpForEach)
	if !ok || !fe.Active { t.Fatalf("step 1 is %T", seq.Steps[1]) }
	blur, ok:=fe.Operation.(*OpBlur)
	if !ok || blur.Passes!=3 || blur.Mode!=ModeParallel || blur.Sigma!=0.8 { t.Fatalf("operation=%+v", fe.Operation) }
	save:=seq.Steps[2].(*OpSave)
	if save.FileName(4)!="out4.tiff" { t.Errorf("FileName(4)=%s", save.FileName(4)) }

	bs, err:=json.Marshal(&seq)
	if err!=nil { t.Fatal(err) }
	var again OpSequence
	if err:=json.Unmarshal(bs, &again); err!=nil { t.Fatalf("re-unmarshal %s: %v", bs, err) }
	if len(again.Steps)!=3 || again.Steps[1].(*OpForEach).Operation.GetType()!="blur" { t.Errorf("round trip lost steps: %s", bs) }

	if err:=json.Unmarshal([]byte(`{"type":"seq","steps":[{"type":"sharpen"}]}`), &OpSequence{}); err==nil {
		t.Errorf("expected error for unknown operator")
	}
}
