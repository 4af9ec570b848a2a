package ctf

// AttemptState is the lifecycle of a (team, challenge) pair.
//
//	unattempted → in_progress → solved
//	                          → exhausted
//
// solved and exhausted are terminal. A challenge is exhausted once it is in
// AttemptedChallenges without being solved and its attempt has closed.
type AttemptState string

const (
	StateUnattempted AttemptState = "unattempted"
	StateInProgress  AttemptState = "in_progress"
	StateSolved      AttemptState = "solved"
	StateExhausted   AttemptState = "exhausted"
)

func StateOf(t Team, challengeID string) AttemptState {
	if t.HasSolved(challengeID) {
		return StateSolved
	}
	if !t.HasAttempted(challengeID) {
		return StateUnattempted
	}
	a := t.Attempt(challengeID)
	if a.StartedAt != nil && a.SubmittedAt == nil && a.ExitedAt == nil {
		return StateInProgress
	}
	return StateExhausted
}

// LiveAttempt returns the challenge currently in progress for the team.
func LiveAttempt(t Team) (string, bool) {
	for _, id := range t.AttemptedChallenges {
		if StateOf(t, id) == StateInProgress {
			return id, true
		}
	}
	return "", false
}

// CheckEnter validates unattempted → in_progress and returns the challenge
// position in seq.
func CheckEnter(t Team, seq Sequence, challengeID string) (int, error) {
	i, err := checkAccess(t, seq, challengeID)
	if err != nil {
		return i, err
	}
	switch StateOf(t, challengeID) {
	case StateSolved:
		return i, ErrAlreadySolved
	case StateExhausted:
		return i, ErrChallengeExhaust
	case StateInProgress:
		return i, ErrAttemptInProgress
	}
	if live, ok := LiveAttempt(t); ok && live != challengeID {
		return i, ErrAttemptInProgress
	}
	return i, nil
}

// CheckSubmit validates that a flag may be submitted: the challenge must be
// accessible and its attempt live.
func CheckSubmit(t Team, seq Sequence, challengeID string) (int, error) {
	i, err := checkAccess(t, seq, challengeID)
	if err != nil {
		return i, err
	}
	return i, checkLive(t, challengeID)
}

// CheckLive validates that challengeID has an attempt in progress.
func CheckLive(t Team, challengeID string) error {
	return checkLive(t, challengeID)
}

func checkLive(t Team, challengeID string) error {
	switch StateOf(t, challengeID) {
	case StateSolved:
		return ErrAlreadySolved
	case StateExhausted:
		return ErrChallengeExhaust
	case StateUnattempted:
		return ErrAttemptNotLive
	}
	return nil
}

func checkAccess(t Team, seq Sequence, challengeID string) (int, error) {
	i := seq.IndexOf(challengeID)
	if i < 0 {
		return i, ErrChallengeNotFound
	}
	if !seq.IsAccessible(i, NewSet(t.SolvedChallenges)) {
		return i, ErrChallengeLocked
	}
	return i, nil
}
