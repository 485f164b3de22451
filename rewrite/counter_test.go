package rewrite_test

import (
	"sync"
	"testing"

	qt "github.com/frankban/quicktest"

	"github.com/false2true/false2true/rewrite"
)

func TestCounterStartsAtZero(t *testing.T) {
	c := qt.New(t)

	c.Assert(rewrite.NewCounter().Load(), qt.Equals, int64(0))

	var zero rewrite.Counter
	c.Assert(zero.Inc(), qt.Equals, int64(1))
}

func TestCounterConcurrentIncrements(t *testing.T) {
	c := qt.New(t)

	counter := rewrite.NewCounter()
	engine := rewrite.NewEngine(nil)

	const workers = 32
	const perWorker = 50

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				body := []byte("nothing to see")
				if i%2 == 0 {
					body = []byte(`{"ready": false}`)
				}
				if engine.Process(body, "application/json").Changed {
					counter.Inc()
				}
			}
		}(w)
	}
	wg.Wait()

	c.Assert(counter.Load(), qt.Equals, int64(workers*perWorker/2))
}
