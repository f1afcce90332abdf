package discussion

import (
	"sort"
	"strings"
	"sync"
)

// Tuned constants. They have no derivation beyond play-testing, so they are
// exposed for adjustment rather than baked into the scorer.
const (
	SuspicionThreshold = 2.5
	SuspicionMax       = 6.0

	WeightShortUtterance = 0.6
	WeightHedge          = 1.25
	WeightBareYesNo      = 0.45
)

// Weights are the per-heuristic increments of the suspicion scorer.
type Weights struct {
	ShortUtterance float64
	Hedge          float64
	BareYesNo      float64
}

// DefaultWeights returns the tuned increments.
func DefaultWeights() Weights {
	return Weights{
		ShortUtterance: WeightShortUtterance,
		Hedge:          WeightHedge,
		BareYesNo:      WeightBareYesNo,
	}
}

var hedgePhrases = phraseList(
	"مش عارف", "مش عارفة", "معرفش", "ما أعرف", "لا أعرف", "مش متأكد", "مش متأكدة",
	"مش فاكر", "يمكن", "جايز", "تقريبا", "ربما", "مش أكيد", "الله أعلم", "حاجة زي كده",
	"i dont know", "i don t know", "dont know", "not sure", "maybe", "perhaps",
	"probably", "i guess", "no idea", "kind of", "sort of",
)

var yesNoWords = wordSet(
	"اه", "ايوه", "ايوا", "نعم", "لا", "لاء", "ابدا", "طبعا", "yes",
	"yeah", "yep", "no", "nope", "nah",
)

// Score returns the suspicion delta for one transcript.
func (w Weights) Score(text string) float64 {
	n := Normalize(text)
	if n == "" {
		return 0
	}
	words := Words(n)
	if len(words) == 0 {
		return 0
	}
	bare := strings.Join(words, " ")

	var delta float64
	if len(words) <= 2 {
		delta += w.ShortUtterance
	}
	for _, h := range hedgePhrases {
		if containsPhrase(bare, h) {
			delta += w.Hedge
			break
		}
	}
	if len(words) < 4 {
		for _, word := range words {
			if yesNoWords[word] {
				delta += w.BareYesNo
				break
			}
		}
	}
	return delta
}

// ScoreSuspicionFromTranscript scores text with the default weights.
func ScoreSuspicionFromTranscript(text string) float64 {
	return DefaultWeights().Score(text)
}

// SuspicionBoard holds per-participant scores clamped to [0, SuspicionMax].
// It lives only as long as one orchestrator run.
type SuspicionBoard struct {
	mu     sync.RWMutex
	scores map[string]float64
}

// NewSuspicionBoard creates an empty board.
func NewSuspicionBoard() *SuspicionBoard {
	return &SuspicionBoard{scores: make(map[string]float64)}
}

// Add applies delta to id's score and returns the clamped result.
func (b *SuspicionBoard) Add(id string, delta float64) float64 {
	if id == "" {
		return 0
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	s := clamp(b.scores[id]+delta, 0, SuspicionMax)
	b.scores[id] = s
	return s
}

// Score returns id's score; unknown ids score 0.
func (b *SuspicionBoard) Score(id string) float64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.scores[id]
}

// Snapshot copies the board.
func (b *SuspicionBoard) Snapshot() map[string]float64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make(map[string]float64, len(b.scores))
	for k, v := range b.scores {
		out[k] = v
	}
	return out
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// rankedIDs orders ids by score descending, then id ascending.
func rankedIDs(ids []string, scores map[string]float64) []string {
	out := append([]string(nil), ids...)
	sort.SliceStable(out, func(i, j int) bool {
		si, sj := scores[out[i]], scores[out[j]]
		if si != sj {
			return si > sj
		}
		return out[i] < out[j]
	})
	return out
}
