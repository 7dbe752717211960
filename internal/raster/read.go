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
	"os"
	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
	"golang.org/x/image/webp"
)

// Reads an image file, choosing the decoder from the file name suffix
func NewImageFromFile(fileName string, id int) (f *Image, err error) {
	format, err:=FormatFromFileName(fileName)
	if err!=nil { return nil, &DecodeError{Path: fileName, Err: err} }

	file, err:=os.Open(fileName)
	if err!=nil { return nil, &DecodeError{Path: fileName, Err: err} }
	defer file.Close()

	f, err=Decode(bufio.NewReader(file), format)
	if err!=nil {
		var de *DecodeError
		if errors.As(err, &de) { de.Path=fileName }
		return nil, err
	}
	f.ID, f.FileName=id, fileName
	return f, nil
}

// Decodes an image of the given format into a new three-plane image. 
// Grayscale sources are replicated into all planes, alpha is dropped
func Decode(r io.Reader, format Format) (*Image, error) {
	var img image.Image
	var err error
	switch format {
	case FormatPNG:
		img, err=png.Decode(r)
	case FormatJPEG:
		img, err=jpeg.Decode(r)
	case FormatTIFF:
		img, err=tiff.Decode(r)
	case FormatBMP:
		img, err=bmp.Decode(r)
	case FormatWebP:
		img, err=webp.Decode(r)
	default:
		err=errors.New("unsupported format '"+string(format)+"'")
	}
	if err!=nil { return nil, &DecodeError{Path: "<stream>", Err: err} }
	return FromImage(img)
}

// Converts a golang image into a three-plane image, keeping 8 or 16 bit sample values
func FromImage(img image.Image) (*Image, error) {
	b:=img.Bounds()
	width, height:=b.Dx(), b.Dy()
	if width<=0 || height<=0 { return nil, &DecodeError{Path: "<stream>", Err: errors.New("empty image")} }

	f:=New(width, height)
	f.Depth=colorModelToDepth(img.ColorModel())
	shift:=uint(0)
	if f.Depth==8 { shift=8 }
	rs, gs, bs:=f.Plane(0), f.Plane(1), f.Plane(2)

	if t, ok:=img.(*image.RGBA); ok && t.Opaque() {
		// fast path for opaque 8 bit images, where premultiplied equals straight alpha
		for y:=0; y<height; y++ {
			off:=t.PixOffset(b.Min.X, b.Min.Y+y)
			row:=t.Pix[off:off+4*width]
			for x:=0; x<width; x++ {
				i:=y*width+x
				rs[i], gs[i], bs[i]=float64(row[4*x]), float64(row[4*x+1]), float64(row[4*x+2])
			}
		}
		return f, nil
	}

	for y:=0; y<height; y++ {
		for x:=0; x<width; x++ {
			c:=color.NRGBA64Model.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.NRGBA64)
			i:=y*width+x
			rs[i], gs[i], bs[i]=float64(c.R>>shift), float64(c.G>>shift), float64(c.B>>shift)
		}
	}
	return f, nil
}

func colorModelToDepth(m color.Model) int {
	switch m {
	case color.RGBA64Model, color.NRGBA64Model, color.Alpha16Model, color.Gray16Model:
		return 16
	}
	return 8
}
