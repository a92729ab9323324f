package atomic_float

import (
	"math"
	"sync"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

func TestAtomicAdd(t *testing.T) {
	Convey("When Add is called", t, func() {
		Convey("When multiple writers add to the float value concurrently", func() {
			f64 := New(0)
			numOps := 3000
			numWriters := 200

			start := make(chan struct{})
			wg := sync.WaitGroup{}
			wg.Add(numWriters)
			adder := func() {
				<-start
				for i := 0; i < numOps; i++ {
					f64.Add(1.0)
				}
				wg.Done()
			}

			for i := 0; i < numWriters; i++ {
				go adder()
			}

			// Wait for goroutines to begin
			time.Sleep(time.Millisecond * 10)
			close(start)
			wg.Wait()
			So(f64.Read(), ShouldEqual, float64(numOps*numWriters))
		})

		Convey("When multiple writers increment and decrement the float value concurrently", func() {
			f64 := New(0)
			numOps := 3000
			numWriters := 200

			start := make(chan struct{})
			wg := sync.WaitGroup{}
			wg.Add(numWriters * 2)
			incrementer := func() {
				<-start
				for i := 0; i < numOps; i++ {
					f64.Add(1.0)
				}
				wg.Done()
			}

			decrementer := func() {
				<-start
				for i := 0; i < numOps; i++ {
					f64.Add(-1.0)
				}
				wg.Done()
			}

			for i := 0; i < numWriters; i++ {
				go incrementer()
				go decrementer()
			}

			// Wait for goroutines to begin
			time.Sleep(time.Millisecond * 10)
			close(start)
			wg.Wait()
			So(f64.Read(), ShouldEqual, float64(0.0))
		})
	})
}

func TestAtomicMax(t *testing.T) {
	Convey("When Max is called concurrently", t, func() {
		f64 := New(math.Inf(-1))
		wg := sync.WaitGroup{}
		for i := 0; i < 100; i++ {
			wg.Add(1)
			go func(v float64) {
				defer wg.Done()
				f64.Max(v)
			}(float64(i))
		}
		wg.Wait()
		So(f64.Read(), ShouldEqual, 99)

		Convey("A smaller value leaves it unchanged", func() {
			So(f64.Max(3), ShouldEqual, 99)
			f64.Set(-2)
			So(f64.Read(), ShouldEqual, -2)
		})
	})
}
