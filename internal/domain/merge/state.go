// Package merge implements a resumable, human-driven bottom-up merge sort.
//
// The whole algorithm state lives in State, a flat value that round-trips
// through JSON. Runs waiting to be merged form a queue: the two runs at the
// head are merged one human comparison at a time and the result is appended
// to the tail. There is no recursion, so a session can be persisted after
// every single choice and resumed anywhere.
package merge

import (
	"encoding/json"
	"fmt"
)

// Status is the lifecycle of a ranking session.
type Status int

// Status values. Idle is only ever decoded from older blobs; Initialize
// resolves straight to Playing or Finished.
const (
	Idle Status = iota
	Playing
	Finished
)

func (s Status) String() string {
	switch s {
	case Idle:
		return "IDLE"
	case Playing:
		return "PLAYING"
	case Finished:
		return "FINISHED"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// ParseStatus maps the wire name back to a Status.
func ParseStatus(v string) (Status, error) {
	switch v {
	case "IDLE":
		return Idle, nil
	case "PLAYING":
		return Playing, nil
	case "FINISHED":
		return Finished, nil
	default:
		return Idle, fmt.Errorf("%w: %q", ErrUnknownStatus, v)
	}
}

// MarshalJSON encodes the status as its wire name.
func (s Status) MarshalJSON() ([]byte, error) {
	switch s {
	case Idle, Playing, Finished:
		return json.Marshal(s.String())
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownStatus, int(s))
	}
}

// UnmarshalJSON decodes a wire name.
func (s *Status) UnmarshalJSON(b []byte) error {
	var v string
	if err := json.Unmarshal(b, &v); err != nil {
		return fmt.Errorf("%w: %v", ErrUnknownStatus, err)
	}
	parsed, err := ParseStatus(v)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Pair holds the indexes into Sublists of the two runs being merged.
type Pair [2]int

// Left is the index of the left run.
func (p Pair) Left() int { return p[0] }

// Right is the index of the right run.
func (p Pair) Right() int { return p[1] }

// State is the complete, serializable merge state.
//
// Sublists always holds every input item exactly once. While a merge is in
// flight TempMerged holds the consumed prefixes of the two runs under
// comparison; once Finished it mirrors the single final run.
type State struct {
	Sublists        [][]string `json:"sublists"`
	CurrentPair     *Pair      `json:"currentPair"`
	TempMerged      []string   `json:"tempMerged"`
	LeftIndex       int        `json:"leftIndex"`
	RightIndex      int        `json:"rightIndex"`
	TotalCount      int        `json:"totalCount"`
	ComparisonCount int        `json:"comparisonCount"`
	Status          Status     `json:"status"`
}

// Progress reports how far the in-flight merge has got.
type Progress struct {
	MergedCount int `json:"merged_count"`
	Total       int `json:"total"`
	Percent     int `json:"percent"`
}

// Validate checks that a decoded state is structurally usable. Queries on the
// engine never fail, but a blob read back from storage may have been
// tampered with or truncated.
func (s State) Validate() error {
	if s.TotalCount < 0 || s.ComparisonCount < 0 || s.LeftIndex < 0 || s.RightIndex < 0 {
		return fmt.Errorf("%w: negative counter", ErrCorruptState)
	}
	switch s.Status {
	case Idle:
	case Playing:
		if s.CurrentPair == nil {
			return fmt.Errorf("%w: playing without a pair", ErrCorruptState)
		}
	case Finished:
		if s.CurrentPair != nil {
			return fmt.Errorf("%w: finished with a pending pair", ErrCorruptState)
		}
		if len(s.Sublists) > 1 {
			return fmt.Errorf("%w: finished with %d runs", ErrCorruptState, len(s.Sublists))
		}
	default:
		return fmt.Errorf("%w: %v", ErrUnknownStatus, s.Status)
	}

	// Runs keep their consumed items until the merge completes, so the queue
	// alone accounts for every item.
	held := 0
	for _, run := range s.Sublists {
		held += len(run)
	}
	if len(s.Sublists) == 0 {
		held = len(s.TempMerged)
	}
	if held != s.TotalCount {
		return fmt.Errorf("%w: holds %d items, want %d", ErrCorruptState, held, s.TotalCount)
	}

	if s.CurrentPair == nil {
		return nil
	}
	i, j := s.CurrentPair.Left(), s.CurrentPair.Right()
	if i == j || i < 0 || j < 0 || i >= len(s.Sublists) || j >= len(s.Sublists) {
		return fmt.Errorf("%w: pair (%d,%d) with %d runs", ErrCorruptState, i, j, len(s.Sublists))
	}
	if s.LeftIndex >= len(s.Sublists[i]) || s.RightIndex >= len(s.Sublists[j]) {
		return fmt.Errorf("%w: cursor past end of run", ErrCorruptState)
	}
	if s.LeftIndex+s.RightIndex != len(s.TempMerged) {
		return fmt.Errorf("%w: cursors do not match merged run", ErrCorruptState)
	}
	return nil
}
