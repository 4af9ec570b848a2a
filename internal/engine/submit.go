package engine

import (
	"context"
	"errors"
	"strings"

	"github.com/Aiyaret-Sandhu/cid-ctf/internal/ctf"
	"github.com/Aiyaret-Sandhu/cid-ctf/internal/store"
)

// SubmitResult is the outcome of a flag submission.
type SubmitResult struct {
	Correct    bool `json:"correct"`
	Points     int  `json:"points"`
	Score      int  `json:"score"`
	Completed  bool `json:"completed"`
	EventEnded bool `json:"eventEnded"`
}

// SubmitFlag is the single submission allowed for a live attempt. The
// attempt is closed before the candidate is verified, so whatever happens
// afterwards the challenge cannot be submitted again. Submit and exit race
// for the same closedAt claim; only one of them closes the attempt.
//
// Points are only added when this call is the one that put the challenge
// into solvedChallenges.
func (e *Engine) SubmitFlag(ctx context.Context, teamID, challengeID, candidate string) (SubmitResult, error) {
	candidate = strings.TrimSpace(candidate)
	if candidate == "" {
		return SubmitResult{}, ctf.ErrEmptyCandidate
	}
	v, err := e.load(ctx, teamID)
	if err != nil {
		return SubmitResult{}, err
	}
	now := e.clock()
	if err := ctf.RequireActive(now, v.settings); err != nil {
		return SubmitResult{}, err
	}
	seq := ctf.NewSequence(v.challenges)
	i, err := ctf.CheckSubmit(v.team, seq, challengeID)
	if err != nil {
		return SubmitResult{}, err
	}
	challenge := seq.At(i)

	err = e.store.UpdateIf(ctx, store.Teams, teamID,
		store.Condition{Field: attemptField(challengeID, "closedAt")},
		map[string]any{
			attemptField(challengeID, "submittedAt"): now,
			attemptField(challengeID, "closedAt"):    now,
		},
	)
	if errors.Is(err, store.ErrPrecondition) {
		return SubmitResult{}, ctf.ErrChallengeExhaust
	}
	if err != nil {
		return SubmitResult{}, ctf.Transient(err)
	}

	ok, err := e.hasher.Verify(candidate, challenge.FlagHash)
	if err != nil {
		e.logger.ErrorContext(ctx, "verifying flag", "team", teamID, "challenge", challengeID, "error", err)
		return SubmitResult{}, ctf.Transient(err)
	}

	res := SubmitResult{Score: v.team.Score}
	if !ok {
		misses := append(v.team.Attempt(challengeID).IncorrectSubmissions, ctf.IncorrectSubmission{
			Candidate:   candidate,
			SubmittedAt: now,
		})
		err := e.store.Update(ctx, store.Teams, teamID, map[string]any{
			attemptField(challengeID, "incorrectSubmissions"): misses,
			attemptField(challengeID, "success"):              false,
		}, store.UpdateOptions{Merge: true})
		if err != nil {
			e.logger.WarnContext(ctx, "recording incorrect submission", "team", teamID, "challenge", challengeID, "error", err)
		}
		e.logger.InfoContext(ctx, "flag rejected", "team", teamID, "challenge", challengeID)
		return res, nil
	}

	res.Correct = true
	added, err := e.store.AppendToSet(ctx, store.Teams, teamID, "solvedChallenges", challengeID)
	if err != nil {
		return SubmitResult{}, ctf.Transient(err)
	}
	if err := e.store.Update(ctx, store.Teams, teamID, map[string]any{
		attemptField(challengeID, "success"): true,
	}, store.UpdateOptions{Merge: true}); err != nil {
		e.logger.WarnContext(ctx, "marking attempt successful", "team", teamID, "challenge", challengeID, "error", err)
	}
	if added > 0 {
		score, err := e.store.Increment(ctx, store.Teams, teamID, "score", challenge.Points)
		if err != nil {
			return SubmitResult{}, ctf.Transient(err)
		}
		res.Points = challenge.Points
		res.Score = score
	}

	solved := ctf.NewSet(append(v.team.SolvedChallenges, challengeID))
	if seq.Completed(solved) {
		res.Completed = true
		err := e.store.UpdateIf(ctx, store.Teams, teamID,
			store.Condition{Field: "completedAt"},
			map[string]any{"completedAt": now},
		)
		if err != nil && !errors.Is(err, store.ErrPrecondition) {
			return res, ctf.Transient(err)
		}
		if err == nil {
			e.logger.InfoContext(ctx, "team completed all challenges", "team", teamID)
		}
	}
	e.logger.InfoContext(ctx, "flag accepted",
		"team", teamID,
		"challenge", challengeID,
		"points", res.Points,
		"score", res.Score,
	)

	if res.Completed {
		ended, err := e.MaybeAutoEnd(ctx)
		if err != nil {
			e.logger.WarnContext(ctx, "evaluating auto-end", "error", err)
		}
		res.EventEnded = ended
	}
	return res, nil
}

// MaybeAutoEnd ends the event once enough teams have completed. The
// transition is a compare-and-set on the status it read, so concurrent
// callers produce exactly one transition; it reports whether this call
// made it.
func (e *Engine) MaybeAutoEnd(ctx context.Context) (bool, error) {
	s, err := e.Settings(ctx)
	if err != nil {
		return false, err
	}
	if s.EventStatus == ctf.EventEnded || s.FinalistCount <= 0 {
		return false, nil
	}
	teams, err := e.Teams(ctx)
	if err != nil {
		return false, err
	}
	challenges, err := e.Challenges(ctx)
	if err != nil {
		return false, err
	}
	if !ctf.ShouldAutoEnd(teams, challenges, s) {
		return false, nil
	}

	now := e.clock()
	err = e.store.UpdateIf(ctx, store.Settings, ctf.SettingsID,
		store.Condition{Field: "eventStatus", Equals: string(s.EventStatus)},
		map[string]any{
			"eventStatus":   ctf.EventEnded,
			"actualEndTime": now,
		},
	)
	if errors.Is(err, store.ErrPrecondition) {
		return false, nil
	}
	if err != nil {
		return false, ctf.Transient(err)
	}
	e.logger.InfoContext(ctx, "event ended automatically",
		"completed_teams", ctf.CountCompleted(teams, challenges),
		"finalist_count", s.FinalistCount,
	)
	return true, nil
}
