// Package coalesce merges ordered sequences into maximal contiguous runs.
package coalesce

import "iter"

// Run is the first and last element of one contiguous stretch.
type Run[T any] struct {
	First T
	Last  T
}

// Runs lazily yields (first, last) for every maximal stretch of seq in which
// each adjacent pair satisfies continuous. The predicate is evaluated once per
// adjacent pair. The result can be ranged over again whenever seq can.
func Runs[T any](seq iter.Seq[T], continuous func(prev, next T) bool) iter.Seq2[T, T] {
	return func(yield func(T, T) bool) {
		var first, last T
		open := false
		for item := range seq {
			if !open {
				first, last, open = item, item, true
				continue
			}
			if continuous(last, item) {
				last = item
				continue
			}
			if !yield(first, last) {
				return
			}
			first, last = item, item
		}
		if open {
			yield(first, last)
		}
	}
}

// Collect drains Runs into a slice.
func Collect[T any](seq iter.Seq[T], continuous func(prev, next T) bool) []Run[T] {
	var out []Run[T]
	for first, last := range Runs(seq, continuous) {
		out = append(out, Run[T]{First: first, Last: last})
	}
	return out
}
