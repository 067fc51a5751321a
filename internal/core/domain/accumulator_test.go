package domain

import (
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRuntimeAccumulator_UnseenScopeIsZero(t *testing.T) {
	t.Parallel()
	acc := NewRuntimeAccumulator()
	assert.Zero(t, acc.Read("nope"))
	assert.Zero(t, acc.ResetAndRead("nope"))
}

func TestRuntimeAccumulator_AddResetRead(t *testing.T) {
	t.Parallel()
	acc := NewRuntimeAccumulator()

	acc.Add("req-1", 1.5)
	acc.Add("req-1", 2.25)
	acc.Add("req-2", 4)
	acc.Add("req-1", 0)

	assert.Equal(t, 3.75, acc.Read("req-1"))
	assert.Equal(t, 3.75, acc.ResetAndRead("req-1"))
	assert.Zero(t, acc.Read("req-1"))
	assert.Equal(t, 4.0, acc.Read("req-2"), "other scopes are untouched")
}

func TestRuntimeAccumulator_IgnoresInvalidDeltas(t *testing.T) {
	t.Parallel()
	acc := NewRuntimeAccumulator()

	acc.Add(GlobalScope, 1)
	acc.Add(GlobalScope, -5)
	acc.Add(GlobalScope, math.NaN())
	acc.Add(GlobalScope, math.Inf(1))

	assert.Equal(t, 1.0, acc.Read(GlobalScope))
}

func TestRuntimeAccumulator_ConcurrentAdds(t *testing.T) {
	t.Parallel()
	acc := NewRuntimeAccumulator()

	const (
		workers = 32
		perWork = 500
	)
	scopes := []string{"a", "b", "c"}

	var wg sync.WaitGroup
	for w := range workers {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			scope := scopes[w%len(scopes)]
			for range perWork {
				// Powers of two keep the float sums exact in any order.
				acc.Add(scope, 0.25)
				acc.Add(GlobalScope, 1)
			}
		}(w)
	}
	wg.Wait()

	perScopeWorkers := map[string]int{}
	for w := range workers {
		perScopeWorkers[scopes[w%len(scopes)]]++
	}
	for _, s := range scopes {
		want := float64(perScopeWorkers[s]*perWork) * 0.25
		assert.Equal(t, want, acc.ResetAndRead(s), "scope %q", s)
		assert.Zero(t, acc.Read(s))
	}
	assert.Equal(t, float64(workers*perWork), acc.ResetAndRead(GlobalScope))
}

func TestRuntimeAccumulator_ConcurrentResetLosesNothing(t *testing.T) {
	t.Parallel()
	acc := NewRuntimeAccumulator()

	const adds = 20_000
	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		total float64
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		for range adds {
			acc.Add("scope", 1)
		}
	}()
	go func() {
		defer wg.Done()
		for range 1_000 {
			v := acc.ResetAndRead("scope")
			mu.Lock()
			total += v
			mu.Unlock()
		}
	}()
	wg.Wait()

	total += acc.ResetAndRead("scope")
	assert.Equal(t, float64(adds), total)
}

func TestRuntimeAccumulator_Forget(t *testing.T) {
	t.Parallel()
	acc := NewRuntimeAccumulator()

	acc.Add("a", 2)
	acc.Add("b", 3)
	assert.Equal(t, 2, acc.Scopes())

	assert.Equal(t, 2.0, acc.Forget("a"))
	assert.Equal(t, 1, acc.Scopes())
	assert.Zero(t, acc.Forget("a"))
	assert.Zero(t, acc.Read("a"))
}
