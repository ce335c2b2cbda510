package autoplay

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"slices"

	"github.com/google/uuid"
)

// Errors reported by a player.
var (
	ErrWrongRanking   = errors.New("ranking does not match the hidden preference")
	ErrTooManyChoices = errors.New("comparison count exceeds the estimated maximum")
	ErrNotFinished    = errors.New("session did not finish")
	ErrRepeatApplied  = errors.New("repeated choice id was applied twice")
)

// Preference is a hidden total order: lower score wins.
type Preference map[string]int

// NewPreference shuffles ids into a consistent hidden order.
func NewPreference(ids []string, rng *rand.Rand) Preference {
	order := slices.Clone(ids)
	rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })
	p := make(Preference, len(order))
	for i, id := range order {
		p[id] = i
	}
	return p
}

// Pick returns the side the preference favours.
func (p Preference) Pick(left, right string) string {
	if p[right] < p[left] {
		return "right"
	}
	return "left"
}

// Expected returns ids in preference order.
func (p Preference) Expected() []string {
	out := make([]string, 0, len(p))
	for id := range p {
		out = append(out, id)
	}
	slices.SortFunc(out, func(a, b string) int { return p[a] - p[b] })
	return out
}

// player drives one user's session to completion.
type player struct {
	client  *HTTPClient
	userID  string
	items   []string
	dataset string
	pref    Preference
	resume  bool
	repeat  int
}

// play starts a session, answers every pair and verifies the final ranking.
func (p *player) play(ctx context.Context) Result {
	res := Result{UserID: p.userID, Resumed: p.resume}
	if err := p.run(ctx, &res); err != nil {
		res.Error = err.Error()
	}
	return res
}

func (p *player) run(ctx context.Context, res *Result) error {
	view, err := p.client.Start(ctx, p.userID, p.items, p.dataset)
	if err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	res.SessionID = view.SessionID
	res.MaxExpected = view.EstimatedMaxComparisons
	resumeAt := max(view.TotalCount/2, 1)

	for step := 1; view.Status == statusPlaying; step++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if view.Pair == nil {
			return fmt.Errorf("%w: playing without a pair", ErrNotFinished)
		}
		if view.ComparisonCount > view.EstimatedMaxComparisons {
			return fmt.Errorf("%w: %d > %d", ErrTooManyChoices, view.ComparisonCount, view.EstimatedMaxComparisons)
		}

		choice := p.pref.Pick(view.Pair.Left, view.Pair.Right)
		choiceID := uuid.NewString()
		next, err := p.client.Choose(ctx, p.userID, choice, view.SessionID, choiceID)
		if err != nil {
			return fmt.Errorf("choice %d: %w", step, err)
		}

		if p.repeat > 0 && step%p.repeat == 0 {
			again, err := p.client.Choose(ctx, p.userID, choice, view.SessionID, choiceID)
			if err != nil {
				return fmt.Errorf("repeat choice %d: %w", step, err)
			}
			if again.ComparisonCount != next.ComparisonCount {
				return fmt.Errorf("%w: %d then %d", ErrRepeatApplied, next.ComparisonCount, again.ComparisonCount)
			}
			res.Repeats++
		}

		view = next
		if p.resume && step == resumeAt {
			if view, err = p.client.Session(ctx, p.userID); err != nil {
				return fmt.Errorf("resume session: %w", err)
			}
		}
	}

	if view.Status != statusFinished {
		return fmt.Errorf("%w: status %s", ErrNotFinished, view.Status)
	}
	res.Comparisons = view.ComparisonCount
	if res.Comparisons > res.MaxExpected {
		return fmt.Errorf("%w: %d > %d", ErrTooManyChoices, res.Comparisons, res.MaxExpected)
	}

	r, err := p.client.Ranking(ctx, p.userID)
	if err != nil {
		return fmt.Errorf("fetch ranking: %w", err)
	}
	res.Ranked = r.RankedIDs
	if !r.Finished || !slices.Equal(r.RankedIDs, p.pref.Expected()) {
		return ErrWrongRanking
	}
	return nil
}
