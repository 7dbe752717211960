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
	"fmt"
	"path/filepath"
	"strings"
)

// Failure to read or decode an image
type DecodeError struct {
	Path string
	Err  error
}

func (e *DecodeError) Error() string { return fmt.Sprintf("decoding %s: %v", e.Path, e.Err) }
func (e *DecodeError) Unwrap() error { return e.Err }

// Failure to encode or write an image
type EncodeError struct {
	Path string
	Err  error
}

func (e *EncodeError) Error() string { return fmt.Sprintf("encoding %s: %v", e.Path, e.Err) }
func (e *EncodeError) Unwrap() error { return e.Err }

// Supported file formats
type Format string

const (
	FormatPNG  Format = "png"
	FormatJPEG Format = "jpeg"
	FormatTIFF Format = "tiff"
	FormatBMP  Format = "bmp"
	FormatWebP Format = "webp"
)

// Determines the file format from the suffix of a file name
func FormatFromFileName(fileName string) (Format, error) {
	return ParseFormat(strings.TrimPrefix(filepath.Ext(fileName), "."))
}

// Parses a format name or file suffix, case insensitive
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "png":
		return FormatPNG, nil
	case "jpg", "jpeg":
		return FormatJPEG, nil
	case "tif", "tiff":
		return FormatTIFF, nil
	case "bmp":
		return FormatBMP, nil
	case "webp":
		return FormatWebP, nil
	}
	return "", fmt.Errorf("unknown image format '%s'", s)
}

// Returns the MIME content type of the format
func (f Format) ContentType() string {
	switch f {
	case FormatJPEG:
		return "image/jpeg"
	case FormatTIFF:
		return "image/tiff"
	case FormatBMP:
		return "image/bmp"
	case FormatWebP:
		return "image/webp"
	}
	return "image/png"
}
