package domain

import (
	"math"
	"sync"

	"go.uber.org/atomic"
)

// RuntimeAccumulator keeps a running total of query time, in milliseconds,
// per scope key. Each key owns its own atomic cell, so producers writing to
// different scopes never contend and updates to one scope are linearizable.
type RuntimeAccumulator struct {
	scopes sync.Map // scope key → *atomic.Float64
}

func NewRuntimeAccumulator() *RuntimeAccumulator {
	return &RuntimeAccumulator{}
}

func (a *RuntimeAccumulator) cell(scopeKey string) *atomic.Float64 {
	if v, ok := a.scopes.Load(scopeKey); ok {
		return v.(*atomic.Float64)
	}
	v, _ := a.scopes.LoadOrStore(scopeKey, atomic.NewFloat64(0))
	return v.(*atomic.Float64)
}

// Add adds delta to the scope's total. Negative and NaN deltas are treated
// as zero; instrumentation must not fail the code it observes.
func (a *RuntimeAccumulator) Add(scopeKey string, delta float64) {
	if !(delta > 0) || math.IsInf(delta, 0) {
		// Touch the scope so a zero-duration event still creates it.
		a.cell(scopeKey)
		return
	}
	a.cell(scopeKey).Add(delta)
}

// ResetAndRead atomically swaps the scope's total for zero and returns the
// value it held.
func (a *RuntimeAccumulator) ResetAndRead(scopeKey string) float64 {
	return a.cell(scopeKey).Swap(0)
}

// Read returns the scope's current total without changing it.
func (a *RuntimeAccumulator) Read(scopeKey string) float64 {
	if v, ok := a.scopes.Load(scopeKey); ok {
		return v.(*atomic.Float64).Load()
	}
	return 0
}

// Forget removes the scope and returns its final total. Call it only once
// the scope's unit of work has finished: an Add racing with Forget may be lost.
func (a *RuntimeAccumulator) Forget(scopeKey string) float64 {
	v, ok := a.scopes.LoadAndDelete(scopeKey)
	if !ok {
		return 0
	}
	return v.(*atomic.Float64).Swap(0)
}

// Scopes returns the number of live scope keys.
func (a *RuntimeAccumulator) Scopes() int {
	n := 0
	a.scopes.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}
