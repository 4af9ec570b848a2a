package ctf

import "time"

type Phase string

const (
	PhaseNotStarted Phase = "not_started"
	PhaseActive     Phase = "active"
	PhaseEnded      Phase = "ended"
)

// ResolvePhase places now within the configured event window. An event that
// was ended early reports PhaseEnded regardless of its end time. Zero start
// or end times leave that side of the window open.
func ResolvePhase(now time.Time, s Settings) Phase {
	if s.EventStatus == EventEnded {
		return PhaseEnded
	}
	if !s.EventStartTime.IsZero() && now.Before(s.EventStartTime) {
		return PhaseNotStarted
	}
	if !s.EventEndTime.IsZero() && !now.Before(s.EventEndTime) {
		return PhaseEnded
	}
	return PhaseActive
}

// RequireActive returns the phase error for anything but PhaseActive.
func RequireActive(now time.Time, s Settings) error {
	switch ResolvePhase(now, s) {
	case PhaseNotStarted:
		return ErrEventNotStarted
	case PhaseEnded:
		return ErrEventEnded
	}
	return nil
}

// CountCompleted counts teams whose solved set covers every active
// challenge. With no active challenges nobody counts as complete.
func CountCompleted(teams []Team, challenges []Challenge) int {
	seq := NewSequence(challenges)
	if seq.Len() == 0 {
		return 0
	}
	n := 0
	for _, t := range teams {
		if seq.Completed(NewSet(t.SolvedChallenges)) {
			n++
		}
	}
	return n
}

// ShouldAutoEnd reports whether enough teams have finished to end the event
// early. A FinalistCount of zero disables early termination.
func ShouldAutoEnd(teams []Team, challenges []Challenge, s Settings) bool {
	if s.EventStatus == EventEnded || s.FinalistCount <= 0 {
		return false
	}
	return CountCompleted(teams, challenges) >= s.FinalistCount
}
