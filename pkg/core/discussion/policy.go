package discussion

import "time"

const (
	DefaultSilenceThreshold = 6 * time.Second
	MinSilenceThreshold     = 1 * time.Second
	MinInterventionCooldown = 1500 * time.Millisecond
	minDerivedCooldown      = 4 * time.Second
	DefaultAnswerWindow     = 7 * time.Second
)

// Timing is the resolved silence-intervention configuration.
type Timing struct {
	SilenceThreshold time.Duration
	Cooldown         time.Duration
	AnswerWindow     time.Duration
}

// ResolveTiming applies defaults and floors to raw settings values. A zero
// threshold means the default; a zero rest derives the cooldown as
// max(4s, 60% of the threshold).
func ResolveTiming(silenceThresholdMs, interventionRestMs, answerWindowMs int) Timing {
	threshold := DefaultSilenceThreshold
	if silenceThresholdMs > 0 {
		threshold = time.Duration(silenceThresholdMs) * time.Millisecond
	}
	threshold = max(threshold, MinSilenceThreshold)

	cooldown := max(minDerivedCooldown, threshold*6/10)
	if interventionRestMs > 0 {
		cooldown = time.Duration(interventionRestMs) * time.Millisecond
	}
	cooldown = max(cooldown, MinInterventionCooldown)

	window := DefaultAnswerWindow
	if answerWindowMs > 0 {
		window = time.Duration(answerWindowMs) * time.Millisecond
	}
	return Timing{SilenceThreshold: threshold, Cooldown: cooldown, AnswerWindow: window}
}

// SilenceCheck is the input to ShouldTriggerSilenceIntervention.
type SilenceCheck struct {
	Processing       bool
	Speaking         bool
	HasPendingTarget bool
	Silence          time.Duration
	// SinceLastIntervention is the time since the previous intervention. Use a
	// large value when none has fired.
	SinceLastIntervention time.Duration
	Timing                Timing
}

// ShouldTriggerSilenceIntervention reports whether the AI should break the
// silence now. It never fires while the AI is busy or waiting for an answer.
func ShouldTriggerSilenceIntervention(c SilenceCheck) bool {
	if c.Processing || c.Speaking || c.HasPendingTarget {
		return false
	}
	return c.Silence >= c.Timing.SilenceThreshold && c.SinceLastIntervention >= c.Timing.Cooldown
}
