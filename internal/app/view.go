package service

import (
	"time"

	"github.com/okian/faceoff/internal/adapters/repository"
	"github.com/okian/faceoff/internal/domain/merge"
)

// Pair is the two item ids currently offered to the user.
type Pair struct {
	Left  string `json:"left"`
	Right string `json:"right"`
}

// View is everything a client needs to render and resume a session.
type View struct {
	UserID                  string         `json:"user_id"`
	SessionID               string         `json:"session_id"`
	Status                  merge.Status   `json:"status"`
	Pair                    *Pair          `json:"pair"`
	Progress                merge.Progress `json:"progress"`
	ComparisonCount         int            `json:"comparison_count"`
	EstimatedMaxComparisons int            `json:"estimated_max_comparisons"`
	TotalCount              int            `json:"total_count"`
	State                   merge.State    `json:"state"`
	UpdatedAt               time.Time      `json:"updated_at"`
}

// Ranking is the current order; partial until Finished is true.
type Ranking struct {
	Finished  bool     `json:"finished"`
	RankedIDs []string `json:"ranked_ids"`
}

func newView(s repository.Session) View {
	st := s.State
	v := View{
		UserID:                  s.UserID,
		SessionID:               s.SessionID,
		Status:                  st.Status,
		Progress:                merge.ProgressOf(st),
		ComparisonCount:         st.ComparisonCount,
		EstimatedMaxComparisons: merge.MaxComparisons(st.TotalCount),
		TotalCount:              st.TotalCount,
		State:                   st,
		UpdatedAt:               s.UpdatedAt,
	}
	if st.Status == merge.Playing {
		if l, r, ok := merge.CurrentPairIDs(st); ok {
			v.Pair = &Pair{Left: l, Right: r}
		}
	}
	return v
}
