package discussion

import (
	"github.com/vango-go/vai-spy/pkg/core/types"
)

// TargetInput is everything target selection needs; it reads no other state.
type TargetInput struct {
	ActiveAIID   string
	Participants []types.Participant
	Scores       map[string]float64
	Cursor       int
	// Threshold defaults to SuspicionThreshold when zero.
	Threshold float64
}

// TargetPick is the selection result. TargetID is empty when there is no
// candidate.
type TargetPick struct {
	TargetID   string
	NextCursor int
	// Suspicious is true when the pick came from the score rather than the
	// rotation.
	Suspicious bool
}

// PickNextTarget chooses whom the AI addresses next. A candidate whose score
// reaches the threshold wins outright and the cursor stays put; otherwise the
// cursor walks the roster round-robin.
func PickNextTarget(in TargetInput) TargetPick {
	candidates := make([]string, 0, len(in.Participants))
	for _, p := range in.Participants {
		if p.ID != in.ActiveAIID && p.ID != "" {
			candidates = append(candidates, p.ID)
		}
	}
	if len(candidates) == 0 {
		return TargetPick{NextCursor: in.Cursor}
	}

	threshold := in.Threshold
	if threshold <= 0 {
		threshold = SuspicionThreshold
	}
	ranked := rankedIDs(candidates, in.Scores)
	if top := ranked[0]; in.Scores[top] >= threshold {
		return TargetPick{TargetID: top, NextCursor: in.Cursor, Suspicious: true}
	}

	n := len(candidates)
	idx := ((in.Cursor % n) + n) % n
	return TargetPick{
		TargetID:   candidates[idx],
		NextCursor: (idx + 1) % n,
	}
}
