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
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	nl "github.com/mlnoga/blurbench/internal"
	"github.com/mlnoga/blurbench/internal/kernel"
	"github.com/mlnoga/blurbench/internal/pool"
	"github.com/mlnoga/blurbench/internal/raster"
)

// An execution context for operators
type Context struct {
	Log           io.Writer
	MemoryMB      int            // total physical memory
	WorkMemoryMB  int            // MemoryMB*7/10, budget for image buffers of a single operation
	MaxThreads    int            `json:"maxThreads"` // concurrency limit for materializing independent promises
	Pool         *pool.Pool      // workers for data-parallel passes
	Kernel       *kernel.Kernel  // default kernel for blur operators
	Sandbox       bool           // restrict file access to the current directory tree
}

func NewContext(log io.Writer, workers *pool.Pool) *Context {
	memoryMB:=nl.TotalMemoryMB()
	return &Context{
		Log          : log,
		MemoryMB     : memoryMB,
		WorkMemoryMB : memoryMB*7/10,
		MaxThreads   : nl.NumWorkers(),
		Pool         : workers,
		Kernel       : kernel.Gaussian3x3(),
	}
}

// Returns an error if the path is not allowed in the given context
func (c *Context) checkPath(p string) error {
	if c.Sandbox && !isPathAllowed(p) { 
		return fmt.Errorf("filename %s outside current directory tree, aborting", p) 
	}
	return nil
}

// Returns true if a path is considered safe, i.e. not an absolute path,
// and doesn't contain the ".." characters to change to a parent directory 
func isPathAllowed(p string) bool {
	if filepath.IsAbs(p) { return false }
	if strings.Contains(p, "..") { return false }
	return true
}

// A promise for an image. Returns a materialized image, or an error
type Promise func() (f *raster.Image, err error)

// Materializes all promises with given concurrency limit. 
// If forget is set, outputs are released as soon as they are materialized
func MaterializeAll(ins []Promise, maxThreads int, forget bool) (outs []*raster.Image, err error) {
	if len(ins)==0 { return nil, nil }
	if maxThreads<1 { maxThreads=1 }
	outs=make([]*raster.Image, len(ins))
	limiter:=make(chan bool, maxThreads)
	errs   :=make(chan error, len(ins))
	for i, in := range(ins) {
		limiter <- true 
		go func(i int, theIn Promise) {
			defer func() { <-limiter }()
			f, err:=theIn()
			if err!=nil { 
				errs <- err
				return 
			}
			if forget { 
				f.Release()
			} else {
				outs[i]=f
			}
			errs <- nil
		}(i, in)
	}
	for i:=0; i<cap(limiter); i++ {  // wait for goroutines to finish
		limiter <- true
	}
	var all []error
	for i:=0; i<len(ins); i++ {
		if e:=<-errs; e!=nil { all=append(all, e) }
	}
	return RemoveNils(outs), errors.Join(all...)
}

// Remove nils from an array of images, editing the underlying array in place
func RemoveNils(fs []*raster.Image) []*raster.Image {
	o:=0
	for i:=0; i<len(fs); i++ {
		if fs[i]!=nil {
			fs[o]=fs[i]
			o++
		}
	}
	clear(fs[o:])
	return fs[:o]	
}


// An general image processing operator: takes n promises as inputs, 
// and produces m promises as output or an error
type Operator interface {
	GetType() string
	IsActive() bool
	MakePromises(ins []Promise, c *Context) (outs []Promise, err error)
}

// Base type for operators, including type information for JSON serializing/deserializing
type OpBase struct {
	Type        string `json:"type"`
	Active      bool   `json:"active"`
}

func (op *OpBase) GetType() string { return op.Type }
func (op *OpBase) IsActive() bool { return op.Active }

// Factory method for operators. For JSON serializing/deserializing
type OperatorFactory func() Operator

// Mapping from operator type strings to factory method for the type 
var operatorFactories=map[string]OperatorFactory{}

// Returns the operator factory for a given type string
func GetOperatorFactory(t string) OperatorFactory {
	return operatorFactories[t]
}

// Registers a given type string for a given type of Operator, identified via an exemplar generator
func SetOperatorFactory(f OperatorFactory) {
	t:=f().GetType()
	if GetOperatorFactory(t)!=nil { panic(fmt.Sprintf("error: re-registering operator key %s\n", t))}
	operatorFactories[t]=f
}


// Abstract base type for unary operators, which apply themselves to each 
// of n input promises individually and return n output promises
type OpUnaryBase struct {
	OpBase
	Apply func(f *raster.Image, c *Context) (fOut *raster.Image, err error) `json:"-"`
}

func (op *OpUnaryBase) MakePromises(ins []Promise, c *Context) (outs []Promise, err error) {
	if len(ins)==0 { return nil, fmt.Errorf("%s operator with %d inputs", op.Type, len(ins)) }
	outs=make([]Promise, len(ins))
	for i,in:=range(ins) {
		outs[i]=op.MakePromise(in, c)
	}
	return outs, nil
}

func (op *OpUnaryBase) MakePromise(in Promise, c *Context) (out Promise) {
	return func() (f *raster.Image, err error) {
		if f, err=in();          err!=nil { return nil, err }
		if !op.Active            { return f, nil }
		if f, err=op.Apply(f,c); err!=nil { return nil, err }
		return f, nil
	}
}
