package ctf

import "errors"

// Kind classifies an engine error by how the caller should react to it.
type Kind string

const (
	KindPhase        Kind = "phase"
	KindAccess       Kind = "access"
	KindVerification Kind = "verification"
	KindConflict     Kind = "conflict"
	KindTransient    Kind = "transient"
	KindProctoring   Kind = "proctoring"
	KindInvalid      Kind = "invalid"
)

// Reason is the machine-checkable code returned to clients.
type Reason string

const (
	ReasonEventNotStarted   Reason = "event_not_started"
	ReasonEventEnded        Reason = "event_ended"
	ReasonChallengeNotFound Reason = "challenge_not_found"
	ReasonChallengeLocked   Reason = "challenge_locked"
	ReasonChallengeExhaust  Reason = "challenge_exhausted"
	ReasonAttemptNotLive    Reason = "attempt_not_live"
	ReasonAttemptInProgress Reason = "attempt_in_progress"
	ReasonIncorrectFlag     Reason = "incorrect_flag"
	ReasonAlreadySolved     Reason = "already_solved"
	ReasonTokenNotFound     Reason = "token_not_found"
	ReasonTokenUsed         Reason = "token_used"
	ReasonNotEligible       Reason = "not_eligible"
	ReasonAlreadyFinalist   Reason = "already_finalist"
	ReasonExclusiveRequired Reason = "exclusive_mode_required"
	ReasonStoreUnavailable  Reason = "store_unavailable"
	ReasonEmptyCandidate    Reason = "empty_candidate"
	ReasonUnknownSignal     Reason = "unknown_signal"
	ReasonRateLimited       Reason = "rate_limited"
)

// Error is the single error type produced by engine operations. Two errors
// match under errors.Is when their reasons are equal.
type Error struct {
	Kind   Kind
	Reason Reason
	Msg    string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Reason == e.Reason
}

var (
	ErrEventNotStarted   = &Error{Kind: KindPhase, Reason: ReasonEventNotStarted, Msg: "event has not started"}
	ErrEventEnded        = &Error{Kind: KindPhase, Reason: ReasonEventEnded, Msg: "event has ended"}
	ErrChallengeNotFound = &Error{Kind: KindAccess, Reason: ReasonChallengeNotFound, Msg: "challenge not found"}
	ErrChallengeLocked   = &Error{Kind: KindAccess, Reason: ReasonChallengeLocked, Msg: "challenge is locked"}
	ErrChallengeExhaust  = &Error{Kind: KindAccess, Reason: ReasonChallengeExhaust, Msg: "challenge already attempted"}
	ErrAttemptNotLive    = &Error{Kind: KindAccess, Reason: ReasonAttemptNotLive, Msg: "no attempt in progress for this challenge"}
	ErrAttemptInProgress = &Error{Kind: KindConflict, Reason: ReasonAttemptInProgress, Msg: "attempt already in progress"}
	ErrAlreadySolved     = &Error{Kind: KindConflict, Reason: ReasonAlreadySolved, Msg: "challenge already solved"}
	ErrTokenNotFound     = &Error{Kind: KindVerification, Reason: ReasonTokenNotFound, Msg: "no matching token"}
	ErrTokenUsed         = &Error{Kind: KindConflict, Reason: ReasonTokenUsed, Msg: "token already used"}
	ErrNotEligible       = &Error{Kind: KindAccess, Reason: ReasonNotEligible, Msg: "team has not completed all challenges"}
	ErrAlreadyFinalist   = &Error{Kind: KindConflict, Reason: ReasonAlreadyFinalist, Msg: "team is already a finalist"}
	ErrExclusiveRequired = &Error{Kind: KindProctoring, Reason: ReasonExclusiveRequired, Msg: "fullscreen mode is required to start the challenge"}
	ErrEmptyCandidate    = &Error{Kind: KindInvalid, Reason: ReasonEmptyCandidate, Msg: "flag is required"}
	ErrUnknownSignal     = &Error{Kind: KindInvalid, Reason: ReasonUnknownSignal, Msg: "unknown proctoring signal"}
	ErrRateLimited       = &Error{Kind: KindTransient, Reason: ReasonRateLimited, Msg: "too many requests, slow down"}
)

// Transient wraps a store failure. No state may be assumed changed.
func Transient(err error) error {
	return &Error{Kind: KindTransient, Reason: ReasonStoreUnavailable, Msg: "store unavailable, please retry", Err: err}
}

// KindOf returns the kind of err, or KindTransient for foreign errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindTransient
}

// ReasonOf returns the reason code of err, or ReasonStoreUnavailable for
// foreign errors.
func ReasonOf(err error) Reason {
	var e *Error
	if errors.As(err, &e) {
		return e.Reason
	}
	return ReasonStoreUnavailable
}
