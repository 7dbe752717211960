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
	"bufio"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"math"
	"os"
	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
)

// JPEG quality for exports
const jpegQuality=95

// Writes the image to a file, choosing the encoder from the file name suffix
func (f *Image) WriteFile(fileName string) (err error) {
	format, err:=FormatFromFileName(fileName)
	if err!=nil { return &EncodeError{Path: fileName, Err: err} }
	if err=f.Validate(); err!=nil { return &EncodeError{Path: fileName, Err: err} }

	file, err:=os.Create(fileName)
	if err!=nil { return &EncodeError{Path: fileName, Err: err} }
	defer func() {
		if cerr:=file.Close(); cerr!=nil && err==nil { err=&EncodeError{Path: fileName, Err: cerr} }
	}()

	writer:=bufio.NewWriter(file)
	if err=f.Encode(writer, format); err!=nil {
		var ee *EncodeError
		if errors.As(err, &ee) { ee.Path=fileName }
		return err
	}
	if err=writer.Flush(); err!=nil { return &EncodeError{Path: fileName, Err: err} }
	return nil
}

// Encodes the image in the given format. PNG keeps the image depth, TIFF is 
// written with 16 bits, JPEG and BMP with 8 bits per sample
func (f *Image) Encode(w io.Writer, format Format) error {
	if err:=f.Validate(); err!=nil { return &EncodeError{Path: "<stream>", Err: err} }

	var err error
	switch format {
	case FormatPNG:
		err=png.Encode(w, f.ToImage(f.Depth))
	case FormatJPEG:
		err=jpeg.Encode(w, f.ToImage(8), &jpeg.Options{Quality: jpegQuality})
	case FormatTIFF:
		err=tiff.Encode(w, f.ToImage(16), &tiff.Options{Compression: tiff.Deflate, Predictor: true})
	case FormatBMP:
		err=bmp.Encode(w, f.ToImage(8))
	default:
		err=errors.New("unsupported output format '"+string(format)+"'")
	}
	if err!=nil { return &EncodeError{Path: "<stream>", Err: err} }
	return nil
}

// Converts the image into an opaque golang image with 8 or 16 bits per sample.
// Samples are clipped to the value range of the image depth and rounded, NaNs become zero
func (f *Image) ToImage(depth int) image.Image {
	rect    :=image.Rect(0, 0, f.Width, f.Height)
	rs, gs, bs:=f.Plane(0), f.Plane(1), f.Plane(2)
	srcMax  :=f.MaxValue()

	if depth==16 {
		img:=image.NewRGBA64(rect)
		for y:=0; y<f.Height; y++ {
			for x:=0; x<f.Width; x++ {
				i:=y*f.Width+x
				c:=color.RGBA64{quantize(rs[i], srcMax, 65535), quantize(gs[i], srcMax, 65535), quantize(bs[i], srcMax, 65535), 65535}
				img.SetRGBA64(x, y, c)
			}
		}
		return img
	}

	img:=image.NewRGBA(rect)
	for y:=0; y<f.Height; y++ {
		for x:=0; x<f.Width; x++ {
			i:=y*f.Width+x
			c:=color.RGBA{uint8(quantize(rs[i], srcMax, 255)), uint8(quantize(gs[i], srcMax, 255)), uint8(quantize(bs[i], srcMax, 255)), 255}
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

// Maps v from [0,srcMax] to [0,dstMax], clipping out of range values and NaNs
func quantize(v, srcMax, dstMax float64) uint16 {
	if math.IsNaN(v) || v<0 { return 0 }
	if v>srcMax { return uint16(dstMax) }
	if srcMax!=dstMax { v=v*dstMax/srcMax }
	return uint16(math.Round(v))
}
