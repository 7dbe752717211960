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


// Package kernel holds immutable square convolution kernels.
package kernel

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
)

// 3x3 approximation of a gaussian, sigma ~0.85. Weights sum to 1.000002
var gaussian3x3=[3][3]float64{
	{0.077847, 0.123317, 0.077847},
	{0.123317, 0.195346, 0.123317},
	{0.077847, 0.123317, 0.077847},
}

// A square matrix of convolution weights, stored row-major. Immutable once constructed
type Kernel struct {
	size    int
	weights []float64
}

// Returns the fixed 3x3 gaussian smoothing kernel
func Gaussian3x3() *Kernel {
	k:=&Kernel{size: 3, weights: make([]float64, 0, 9)}
	for _, row:=range gaussian3x3 {
		k.weights=append(k.weights, row[:]...)
	}
	return k
}

// Creates a kernel from the given rows, which are copied. 
// Fails if there are no rows, or rows are empty, ragged, not forming a square or exceeding MaxSize
func New(rows [][]float64) (*Kernel, error) {
	if len(rows)==0 { return nil, errors.New("kernel has no rows") }
	size:=len(rows)
	if size>MaxSize { return nil, fmt.Errorf("kernel has %d rows, at most %d are supported", size, MaxSize) }
	k:=&Kernel{size: size, weights: make([]float64, 0, size*size)}
	for i, row:=range rows {
		if len(row)==0 { return nil, fmt.Errorf("kernel row %d is empty", i) }
		if len(row)!=size { 
			return nil, fmt.Errorf("kernel row %d has %d columns, want %d for a square kernel", i, len(row), size)
		}
		k.weights=append(k.weights, row...)
	}
	return k, nil
}

// Returns the definite integral of the gaussian function with midpoint mu and standard deviation sigma for input x
func gaussianDefiniteIntegral(mu, sigma, x float64) float64 {
	return 0.5 * (1 + math.Erf((x-mu)/(math.Sqrt2 * sigma)))
}

// Largest supported kernel side length
const MaxSize=255

// Returns the minimal radius for which the area under the curve left of the kernel 
// is below the acceptable error. Returns maxRadius+1 if no radius up to maxRadius suffices
func gaussianRadius(sigma float64, maxRadius int) int {
	acceptOut:=0.01
	radius   :=0
	for radius<=maxRadius+1 {
		if gaussianDefiniteIntegral(0, sigma, -0.5-float64(radius)) < acceptOut { 
			radius--
			break 
		}
		radius++ 
	}
	if radius<0 { radius=0 }
	return min(radius, maxRadius+1)
}

// Returns the side length of the gaussian kernel for the given sigma, without building it.
// Fails if sigma is not positive and finite, or the kernel would exceed MaxSize
func GaussianSize(sigma float64) (int, error) {
	if !(sigma>0) || math.IsInf(sigma, 0) { return 0, fmt.Errorf("gaussian sigma %g must be positive and finite", sigma) }
	size:=2*gaussianRadius(sigma, MaxSize/2)+1
	if size>MaxSize { return 0, fmt.Errorf("gaussian sigma %g needs a kernel larger than %dx%d", sigma, MaxSize, MaxSize) }
	return size, nil
}

// Generates a 1D gaussian kernel for the given sigma. Based on symbolic integration via error function.
// The radius is capped at MaxSize/2
func GaussianKernel1D(sigma float64) (kernel []float64) {
	radius:=gaussianRadius(sigma, MaxSize/2)
	if radius>MaxSize/2 { radius=MaxSize/2 }
	kernel=make([]float64, 2*radius+1)

	// Left half and center via symbolic integration
	sum  :=0.0
	lower:=gaussianDefiniteIntegral(0, sigma, -0.5-float64(radius))
	for i:=0; i<=radius; i++ {
		upper    :=gaussianDefiniteIntegral(0, sigma, -0.5-float64(radius)+float64(i+1))
		kernel[i] =upper-lower
		sum      +=kernel[i]
		lower     =upper
	}

	// Mirror right half to avoid numeric instability
	for i:=1; i<=radius; i++ {
		kernel[radius+i]=kernel[radius-i]
		sum            +=kernel[radius+i]
	}

	// Normalize to 1, for dealing with the truncated part of the distribution
	for i:=range kernel { kernel[i]/=sum }
	return kernel
}

// Creates a 2D gaussian kernel for the given standard deviation, as outer product of the 1D kernel
func NewGaussian(sigma float64) (*Kernel, error) {
	if _, err:=GaussianSize(sigma); err!=nil { return nil, err }
	k1:=GaussianKernel1D(sigma)
	size:=len(k1)
	k:=&Kernel{size: size, weights: make([]float64, size*size)}
	for row:=0; row<size; row++ {
		for col:=0; col<size; col++ {
			k.weights[row*size+col]=k1[row]*k1[col]
		}
	}
	return k, nil
}

func (k *Kernel) Height() int { return k.size }
func (k *Kernel) Width()  int { return k.size }

// Returns the weight at the given row and column
func (k *Kernel) At(row, col int) float64 { return k.weights[row*k.size+col] }

// Returns a row-major copy of the weights
func (k *Kernel) Weights() []float64 {
	return append([]float64(nil), k.weights...)
}

// Returns a copy of the weights as rows
func (k *Kernel) Rows() [][]float64 {
	rows:=make([][]float64, k.size)
	for i:=range rows {
		rows[i]=append([]float64(nil), k.weights[i*k.size:(i+1)*k.size]...)
	}
	return rows
}

// Sum of all weights
func (k *Kernel) Sum() (sum float64) {
	for _, w:=range k.weights { sum+=w }
	return sum
}

func (k *Kernel) String() string {
	return fmt.Sprintf("%dx%d kernel with sum %.6f", k.size, k.size, k.Sum())
}

type kernelJSON struct {
	Height  int         `json:"height"`
	Width   int         `json:"width"`
	Sum     float64     `json:"sum"`
	Weights [][]float64 `json:"weights"`
}

func (k *Kernel) MarshalJSON() ([]byte, error) {
	return json.Marshal(kernelJSON{Height: k.size, Width: k.size, Sum: k.Sum(), Weights: k.Rows()})
}

// Unmarshals a kernel from its weight rows, with the same validation as New.
// Only meant for freshly declared kernels, decoding never mutates a kernel in use
func (k *Kernel) UnmarshalJSON(b []byte) error {
	var raw kernelJSON
	if err:=json.Unmarshal(b, &raw); err!=nil { return err }
	parsed, err:=New(raw.Weights)
	if err!=nil { return err }
	*k=*parsed
	return nil
}
