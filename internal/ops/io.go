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
	"path/filepath"
	"strings"
	"github.com/mlnoga/blurbench/internal/raster"
)

// Load a single image from a single filename. Takes zero inputs, produces one output
type OpLoad struct {
	OpBase
	ID          int     `json:"id"`
	FileName    string  `json:"fileName"`
}

func init() { SetOperatorFactory(func() Operator { return NewOpLoadDefault()}) } // register the operator for JSON decoding

func NewOpLoadDefault() *OpLoad { return NewOpLoad(0, "") }

func NewOpLoad(id int, fileName string) *OpLoad {
	return &OpLoad{
		OpBase   : OpBase{Type: "load", Active: true},
		ID       : id,
		FileName : fileName,
	}
}

func (op *OpLoad) MakePromises(ins []Promise, c *Context) (outs []Promise, err error) {
	if len(ins)>0 { return nil, fmt.Errorf("%s operator with non-zero input", op.Type) }
	if err:=c.checkPath(op.FileName); err!=nil { return nil, err }
	out:=func() (f *raster.Image, err error) {
		return op.Apply(c)
	}
	return []Promise{out}, nil
}

func (op *OpLoad) Apply(c *Context) (f *raster.Image, err error) {
	f, err=raster.NewImageFromFile(op.FileName, op.ID)
	if err!=nil { return nil, err }
	f.CalcStats()
	fmt.Fprintf(c.Log, "%d: Loaded %s %d-bit image with %v from %s\n", 
		        f.ID, f.DimensionsToString(), f.Depth, f.Stats, f.FileName)
	return f, nil		
}


// Load many images from a slice of filename patterns with wildcards.
// Takes zero inputs, produces n outputs
type OpLoadMany struct {
	OpBase
	FilePatterns []string `json:"filePatterns"`
}

func init() { SetOperatorFactory(func() Operator { return NewOpLoadManyDefault()}) } // register the operator for JSON decoding

func NewOpLoadManyDefault() *OpLoadMany { return NewOpLoadMany(nil) }

func NewOpLoadMany(filePatterns []string) *OpLoadMany {
	return &OpLoadMany{
		OpBase       : OpBase{Type: "loadMany", Active: true},
		FilePatterns : filePatterns,
	}
}

// Turn filename wildcards into list of file load operators
func (op *OpLoadMany) MakePromises(ins []Promise, c *Context) (outs []Promise, err error) {
	if len(ins)>0 { return nil, fmt.Errorf("%s operator with non-zero input", op.Type) }
	for _, pattern := range op.FilePatterns {
		matches, err := filepath.Glob(pattern)
		if err!=nil { return nil, err }
		for _,match:=range(matches) {
			if err:=c.checkPath(match); err!=nil { 
				fmt.Fprintf(c.Log, "Pattern match %s outside current directory tree, skipping\n", match)
				continue
			}
			promises, err:=NewOpLoad(len(outs), match).MakePromises(nil, c)
			if err!=nil { return nil, err }
			outs=append(outs, promises...)
		}
	}
	if len(outs)==0 { 
		return nil, fmt.Errorf("%s operator with no files to load from pattern %v", op.Type, op.FilePatterns)
	}
	fmt.Fprintf(c.Log, "Found %d files.\n", len(outs))
	return outs, nil
}


// Synthesize an image of uniform random samples. Takes zero inputs, produces one output
type OpSynth struct {
	OpBase
	ID          int `json:"id"`
	Width       int `json:"width"`
	Height      int `json:"height"`
	Depth       int `json:"depth"`
}

func init() { SetOperatorFactory(func() Operator { return NewOpSynthDefault()}) } // register the operator for JSON decoding

func NewOpSynthDefault() *OpSynth { return NewOpSynth(0, 1024, 768, 8) }

func NewOpSynth(id, width, height, depth int) *OpSynth {
	return &OpSynth{
		OpBase : OpBase{Type: "synth", Active: true},
		ID     : id,
		Width  : width,
		Height : height,
		Depth  : depth,
	}
}

func (op *OpSynth) MakePromises(ins []Promise, c *Context) (outs []Promise, err error) {
	if len(ins)>0 { return nil, fmt.Errorf("%s operator with non-zero input", op.Type) }
	if op.Width<=0 || op.Height<=0 { return nil, fmt.Errorf("%s operator with invalid size %dx%d", op.Type, op.Width, op.Height) }
	if op.Depth!=8 && op.Depth!=16 { return nil, fmt.Errorf("%s operator with invalid depth %d", op.Type, op.Depth) }
	if err:=c.CheckMemory(op.Width, op.Height, 1); err!=nil { return nil, err }
	out:=func() (f *raster.Image, err error) {
		f=raster.NewRandom(op.Width, op.Height, op.Depth)
		f.ID=op.ID
		fmt.Fprintf(c.Log, "%d: Synthesized %s %d-bit random image\n", f.ID, f.DimensionsToString(), f.Depth)
		return f, nil
	}
	return []Promise{out}, nil
}


// Saves given promise under a given filename, with pattern expansion for %d based on the image id.
// Takes one input, produces one output (the materialized but unchanged input)
type OpSave struct {
	OpUnaryBase
	FilePattern       string          `json:"filePattern"`
}

func init() { SetOperatorFactory(func() Operator { return NewOpSaveDefault()}) } // register the operator for JSON decoding

func NewOpSaveDefault() *OpSave { return NewOpSave("") }

func NewOpSave(filenamePattern string) *OpSave {
	op:=OpSave{
		OpUnaryBase : OpUnaryBase{OpBase : OpBase{Type: "save", Active: true}},
		FilePattern : filenamePattern,
	}
	op.OpUnaryBase.Apply=op.Apply // assign class method to superclass abstract method
	return &op
}

// Expands the file pattern for the given image id
func (op *OpSave) FileName(id int) string {
	if strings.Contains(op.FilePattern, "%d") { return fmt.Sprintf(op.FilePattern, id) }
	return op.FilePattern
}

func (op *OpSave) Apply(f *raster.Image, c *Context) (result *raster.Image, err error) {
	if op.FilePattern=="" { return f, nil }
	fileName:=op.FileName(f.ID)
	if err:=c.checkPath(fileName); err!=nil { return nil, err }
	if _, err:=raster.FormatFromFileName(fileName); err!=nil { 
		return nil, fmt.Errorf("%d: cannot write to %s: %w", f.ID, fileName, err) 
	}

	fmt.Fprintf(c.Log, "%d: Writing %s pixel image to %s\n", f.ID, f.DimensionsToString(), fileName)
	if err=f.WriteFile(fileName); err!=nil {
		var ee *raster.EncodeError
		if errors.As(err, &ee) { return nil, err }
		return nil, &raster.EncodeError{Path: fileName, Err: err}
	}
	return f, nil
}
