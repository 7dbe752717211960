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


package internal

import (
	"fmt"
	"runtime"
	"github.com/klauspost/cpuid"
	"github.com/pbnjay/memory"
)

// Returns the number of workers to use for data-parallel operations:
// the logical cores reported by the CPU, capped by GOMAXPROCS
func NumWorkers() int {
	maxProcs:=runtime.GOMAXPROCS(0)
	logical :=cpuid.CPU.LogicalCores
	if logical<=0 || logical>maxProcs { return maxProcs }
	return logical
}

// Total physical memory in MiB
func TotalMemoryMB() int {
	return int(memory.TotalMemory()/1024/1024)
}

// Human-readable description of the host, for log output
func HardwareString() string {
	brand:=cpuid.CPU.BrandName
	if brand=="" { brand=runtime.GOARCH }
	return fmt.Sprintf("%s, %d physical / %d logical cores, AVX2=%v, GOMAXPROCS=%d, %d MiB RAM",
		brand, cpuid.CPU.PhysicalCores, cpuid.CPU.LogicalCores, cpuid.CPU.AVX2(), 
		runtime.GOMAXPROCS(0), TotalMemoryMB())
}
