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


// Package pool provides a persistent worker pool for data-parallel loops,
// and size-keyed recycling of sample buffers.
package pool

import (
	"runtime"
	"sync"
	"sync/atomic"
)

// A persistent pool of worker goroutines. Workers are started once and reused
// across many fork-join loops. The worker count is an upper bound on the
// concurrency of a loop, never a guarantee.
type Pool struct {
	numWorkers int
	work       chan workItem
	mu         sync.RWMutex  // held shared while loops enqueue, exclusive by Close
	closed     bool
}

type workItem struct {
	fn      func()
	barrier *sync.WaitGroup
}

// Creates a pool with the given number of workers. Uses GOMAXPROCS if numWorkers<=0
func New(numWorkers int) *Pool {
	if numWorkers<=0 { numWorkers=runtime.GOMAXPROCS(0) }
	p:=&Pool{
		numWorkers: numWorkers,
		work:       make(chan workItem, numWorkers*2),
	}
	for i:=0; i<numWorkers; i++ {
		go p.worker()
	}
	return p
}

func (p *Pool) worker() {
	for item:=range p.work {
		item.fn()
		item.barrier.Done()
	}
}

// Number of workers in the pool
func (p *Pool) NumWorkers() int { return p.numWorkers }

// Stops all workers after pending work completes. Safe to call multiple times,
// and concurrently with running loops. Later loops run sequentially on the 
// calling goroutine
func (p *Pool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed { return }
	p.closed=true
	close(p.work)
}

// Calls fn once for every index in [0,n). Workers claim indices one at a time
// through an atomic counter, which balances uneven work. Returns once all 
// indices are done
func (p *Pool) ParallelForAtomic(n int, fn func(i int)) {
	if n<=0 { return }
	workers:=min(p.numWorkers, n)

	p.mu.RLock()
	if workers==1 || p.closed {
		p.mu.RUnlock()
		for i:=0; i<n; i++ { fn(i) }
		return
	}
	var next atomic.Int64
	var wg sync.WaitGroup
	wg.Add(workers)
	for w:=0; w<workers; w++ {
		p.work <- workItem{
			fn: func() {
				for {
					i:=int(next.Add(1))-1
					if i>=n { return }
					fn(i)
				}
			},
			barrier: &wg,
		}
	}
	p.mu.RUnlock()
	wg.Wait()
}
