// Package allocator deterministically splits the host's thread budget
// across the pipeline stages. Every enabled stage gets at least one
// worker, disabled stages get exactly zero, and the total never
// exceeds twice the host concurrency.
package allocator

import "runtime"

// oversubscription is the allowed ratio of workers to host threads;
// most stages block on queues rather than burning CPU.
const oversubscription = 2

// Stages flags which optional stages the invocation enabled.
type Stages struct {
	PolyA   bool
	Trim    bool
	Barcode bool
	Aligner bool
}

// Allocation is the per-stage worker count handed to the descriptor.
type Allocation struct {
	Scaler     int
	Basecaller int
	PolyA      int
	Trim       int
	Barcode    int
	Filter     int
	Aligner    int
	Converter  int
	Writer     int
}

// Total returns the summed worker count.
func (a Allocation) Total() int {
	return a.Scaler + a.Basecaller + a.PolyA + a.Trim + a.Barcode +
		a.Filter + a.Aligner + a.Converter + a.Writer
}

// Allocate splits hostConcurrency across the stages. Zero or negative
// hostConcurrency selects the runtime's CPU count. The same inputs
// always produce the same allocation.
func Allocate(hostConcurrency int, stages Stages) Allocation {
	if hostConcurrency <= 0 {
		hostConcurrency = runtime.NumCPU()
	}
	if hostConcurrency < 1 {
		hostConcurrency = 1
	}

	a := Allocation{
		Scaler:     max(1, hostConcurrency/4),
		Basecaller: max(1, hostConcurrency/2),
		Filter:     1,
		Converter:  1,
		Writer:     1,
	}
	if stages.PolyA {
		a.PolyA = 1
	}
	if stages.Trim {
		a.Trim = max(1, hostConcurrency/8)
	}
	if stages.Barcode {
		a.Barcode = max(1, hostConcurrency/8)
	}
	if stages.Aligner {
		a.Aligner = max(1, hostConcurrency/4)
	}

	// Shrink the largest pools first until the cap holds; floors are
	// never broken.
	budget := oversubscription * hostConcurrency
	for a.Total() > budget {
		big := maxPool(&a)
		if *big <= 1 {
			break
		}
		*big--
	}
	return a
}

// maxPool returns the largest shrinkable pool, preferring the later
// declaration on ties so the decode pool shrinks last.
func maxPool(a *Allocation) *int {
	pools := []*int{&a.Scaler, &a.Trim, &a.Barcode, &a.Aligner, &a.Basecaller}
	best := pools[0]
	for _, p := range pools[1:] {
		if *p >= *best {
			best = p
		}
	}
	return best
}
