package atomic_float

import (
	"math"
	"sync/atomic"
)

// AtomicFloat64 is a float64 that may be read and written from several goroutines.
// The zero value holds 0.
type AtomicFloat64 struct {
	bits atomic.Uint64
}

func New(val float64) *AtomicFloat64 {
	f := &AtomicFloat64{}
	f.Set(val)
	return f
}

// Read atomically loads the value.
func (f *AtomicFloat64) Read() float64 {
	return math.Float64frombits(f.bits.Load())
}

// Set atomically stores @val.
func (f *AtomicFloat64) Set(val float64) {
	f.bits.Store(math.Float64bits(val))
}

// Add atomically adds @addend and returns the new value.
func (f *AtomicFloat64) Add(addend float64) (newVal float64) {
	for {
		old := f.bits.Load()
		newVal = math.Float64frombits(old) + addend
		if f.bits.CompareAndSwap(old, math.Float64bits(newVal)) {
			return
		}
	}
}

// Max atomically raises the value to @val if @val is larger, returning the resulting value.
func (f *AtomicFloat64) Max(val float64) float64 {
	for {
		old := f.bits.Load()
		cur := math.Float64frombits(old)
		if val <= cur {
			return cur
		}
		if f.bits.CompareAndSwap(old, math.Float64bits(val)) {
			return val
		}
	}
}
