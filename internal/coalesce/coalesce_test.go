package coalesce

import (
	"slices"
	"testing"
)

func consecutive(a, b int) bool { return a+1 == b }

func TestRunsSplitsOnGaps(t *testing.T) {
	input := []int{1, 2, 3, 5, 6, 7, 9, 10, 11}
	got := Collect(slices.Values(input), consecutive)
	want := []Run[int]{{1, 3}, {5, 7}, {9, 11}}
	if !slices.Equal(got, want) {
		t.Fatalf("unexpected runs: got %v want %v", got, want)
	}
}

func TestRunsEmptyInput(t *testing.T) {
	if got := Collect(slices.Values([]int(nil)), consecutive); len(got) != 0 {
		t.Fatalf("expected no runs, got %v", got)
	}
}

func TestRunsSingleElement(t *testing.T) {
	got := Collect(slices.Values([]int{4}), consecutive)
	if len(got) != 1 || got[0].First != 4 || got[0].Last != 4 {
		t.Fatalf("expected degenerate run (4,4), got %v", got)
	}
}

func TestRunsEvaluatesPredicateOncePerAdjacentPair(t *testing.T) {
	input := []int{1, 2, 4, 5, 6, 9}
	calls := 0
	counting := func(a, b int) bool {
		calls++
		return consecutive(a, b)
	}
	_ = Collect(slices.Values(input), counting)
	if calls != len(input)-1 {
		t.Fatalf("expected %d predicate calls, got %d", len(input)-1, calls)
	}
}

func TestRunsIsReiterable(t *testing.T) {
	runs := Runs(slices.Values([]int{1, 2, 7}), consecutive)
	count := func() int {
		n := 0
		for range runs {
			n++
		}
		return n
	}
	if first, second := count(), count(); first != 2 || second != 2 {
		t.Fatalf("expected 2 runs on each pass, got %d and %d", first, second)
	}
}

func TestRunsStopsWhenConsumerBreaks(t *testing.T) {
	var seen []int
	for first := range Runs(slices.Values([]int{1, 3, 5, 7}), consecutive) {
		seen = append(seen, first)
		if len(seen) == 2 {
			break
		}
	}
	if !slices.Equal(seen, []int{1, 3}) {
		t.Fatalf("unexpected early-break result %v", seen)
	}
}
