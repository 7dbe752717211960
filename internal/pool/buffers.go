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


package pool

import (
	"sync"
)

// Pools of constant sized float64 arrays, to reduce memory allocation overhead
// when passes repeatedly produce and release same-sized buffers
var poolFloat64=struct{
	sync.RWMutex
	m map[int]*sync.Pool
}{m: make(map[int]*sync.Pool)}

// Returns a pool for []float64 arrays of the given size
func getSizedPoolFloat64(size int) *sync.Pool {
	poolFloat64.RLock()
	pool:=poolFloat64.m[size]
	poolFloat64.RUnlock()
	if pool!=nil { return pool }

	poolFloat64.Lock()
	defer poolFloat64.Unlock()
	if pool=poolFloat64.m[size]; pool==nil {
		pool=&sync.Pool{
			New: func() interface{} {
				return make([]float64, size)
			},
		}
		poolFloat64.m[size]=pool
	}
	return pool
}

// Retrieves a zeroed array of given size from the pool
func GetFloat64s(size int) []float64 {
	arr:=getSizedPoolFloat64(size).Get().([]float64)
	clear(arr)
	return arr
}

// Returns an array to the pool. The caller must not use it afterwards
func PutFloat64s(arr []float64) {
	if cap(arr)==0 { return }
	getSizedPoolFloat64(cap(arr)).Put(arr[:cap(arr)])
}
