package merge

import (
	"math"
	"math/bits"
	"strings"
)

// Choice is one human decision between the two items on offer.
type Choice int

// Choice values.
const (
	Left Choice = iota
	Right
)

func (c Choice) String() string {
	switch c {
	case Left:
		return "left"
	case Right:
		return "right"
	default:
		return "unknown"
	}
}

// ParseChoice accepts "left" or "right" in any case.
func ParseChoice(v string) (Choice, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "left":
		return Left, nil
	case "right":
		return Right, nil
	default:
		return Left, ErrInvalidChoice
	}
}

// Initialize builds the starting state: one single-item run per id, in input
// order. Duplicates are kept and ranked as separate entries.
func Initialize(ids []string) State {
	sublists := make([][]string, len(ids))
	for i, id := range ids {
		sublists[i] = []string{id}
	}

	s := State{
		Sublists:   sublists,
		TempMerged: []string{},
		TotalCount: len(ids),
		Status:     Finished,
	}
	if len(ids) > 1 {
		s.CurrentPair = &Pair{0, 1}
		s.Status = Playing
	}
	return s
}

// Apply records one choice and returns the next state. The input state is
// left untouched. Applying to a finished state, or one without a pending
// pair, returns it unchanged.
func Apply(s State, c Choice) State {
	if s.CurrentPair == nil || s.Status == Finished {
		return s
	}
	i, j := s.CurrentPair.Left(), s.CurrentPair.Right()
	if i == j || i < 0 || j < 0 || i >= len(s.Sublists) || j >= len(s.Sublists) {
		return s
	}
	left, right := s.Sublists[i], s.Sublists[j]

	merged := make([]string, len(s.TempMerged), len(left)+len(right))
	copy(merged, s.TempMerged)
	li, ri := s.LeftIndex, s.RightIndex

	switch c {
	case Left:
		if li < len(left) {
			merged = append(merged, left[li])
		}
		li++
	case Right:
		if ri < len(right) {
			merged = append(merged, right[ri])
		}
		ri++
	default:
		return s
	}

	next := s
	next.ComparisonCount++

	leftDone, rightDone := li >= len(left), ri >= len(right)
	if !leftDone && !rightDone {
		next.TempMerged = merged
		next.LeftIndex, next.RightIndex = li, ri
		return next
	}

	// One side ran out: the rest of the other is already in order.
	if !leftDone {
		merged = append(merged, left[li:]...)
	}
	if !rightDone {
		merged = append(merged, right[ri:]...)
	}

	queue := make([][]string, 0, len(s.Sublists)-1)
	for k, run := range s.Sublists {
		if k != i && k != j {
			queue = append(queue, run)
		}
	}
	queue = append(queue, merged)

	next.Sublists = queue
	next.LeftIndex, next.RightIndex = 0, 0
	if len(queue) <= 1 {
		next.Status = Finished
		next.CurrentPair = nil
		next.TempMerged = queue[0]
		return next
	}
	next.Status = Playing
	next.CurrentPair = &Pair{0, 1}
	next.TempMerged = []string{}
	return next
}

// CurrentPairIDs returns the two items awaiting a decision. ok is false when
// nothing is pending or the state points outside its runs.
func CurrentPairIDs(s State) (left, right string, ok bool) {
	if s.CurrentPair == nil {
		return "", "", false
	}
	i, j := s.CurrentPair.Left(), s.CurrentPair.Right()
	if i < 0 || j < 0 || i >= len(s.Sublists) || j >= len(s.Sublists) {
		return "", "", false
	}
	if s.LeftIndex < 0 || s.LeftIndex >= len(s.Sublists[i]) ||
		s.RightIndex < 0 || s.RightIndex >= len(s.Sublists[j]) {
		return "", "", false
	}
	return s.Sublists[i][s.LeftIndex], s.Sublists[j][s.RightIndex], true
}

// RankedIDs returns the final order once finished. While still playing it
// returns every run concatenated in queue order, which is only a snapshot.
func RankedIDs(s State) []string {
	if s.Status == Finished {
		if len(s.Sublists) > 0 {
			return append([]string{}, s.Sublists[0]...)
		}
		return append([]string{}, s.TempMerged...)
	}
	out := make([]string, 0, s.TotalCount)
	for _, run := range s.Sublists {
		out = append(out, run...)
	}
	return out
}

// ProgressOf measures the run currently being built, not the whole sort.
// It drops back towards zero whenever a new merge starts.
func ProgressOf(s State) Progress {
	total := max(s.TotalCount, 1)
	merged := min(total, len(s.TempMerged))
	return Progress{
		MergedCount: merged,
		Total:       total,
		Percent:     int(math.Round(float64(merged) / float64(total) * 100)),
	}
}

// MaxComparisons bounds the number of choices needed to rank n items.
func MaxComparisons(n int) int {
	if n < 2 {
		return 0
	}
	return n * bits.Len(uint(n-1))
}
