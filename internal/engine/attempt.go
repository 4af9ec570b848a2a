package engine

import (
	"context"
	"errors"

	"github.com/Aiyaret-Sandhu/cid-ctf/internal/ctf"
	"github.com/Aiyaret-Sandhu/cid-ctf/internal/store"
)

// EnterChallenge opens the team's single attempt at challengeID. exclusive
// reports whether the client confirmed exclusive viewing mode; without it
// nothing is written.
//
// startedAt is written before the challenge joins attemptedChallenges, so a
// failure between the two leaves the challenge unattempted rather than
// exhausted.
func (e *Engine) EnterChallenge(ctx context.Context, teamID, challengeID string, exclusive bool) (ctf.Progress, error) {
	if !exclusive {
		return ctf.Progress{}, ctf.ErrExclusiveRequired
	}
	v, err := e.load(ctx, teamID)
	if err != nil {
		return ctf.Progress{}, err
	}
	now := e.clock()
	if err := ctf.RequireActive(now, v.settings); err != nil {
		return ctf.Progress{}, err
	}
	seq := ctf.NewSequence(v.challenges)
	if _, err := ctf.CheckEnter(v.team, seq, challengeID); err != nil {
		return ctf.Progress{}, err
	}

	err = e.store.Update(ctx, store.Teams, teamID, map[string]any{
		attemptField(challengeID, "startedAt"): now,
	}, store.UpdateOptions{Merge: true})
	if err != nil {
		return ctf.Progress{}, ctf.Transient(err)
	}
	added, err := e.store.AppendToSet(ctx, store.Teams, teamID, "attemptedChallenges", challengeID)
	if err != nil {
		return ctf.Progress{}, ctf.Transient(err)
	}
	if added == 0 {
		// Another session entered first.
		return ctf.Progress{}, ctf.ErrAttemptInProgress
	}

	e.logger.InfoContext(ctx, "challenge entered", "team", teamID, "challenge", challengeID)
	return e.Progress(ctx, teamID)
}

// ExitChallenge closes a live attempt without a submission. The challenge
// is exhausted from then on. Closing an already closed attempt is a no-op,
// including one a concurrent submission claimed first.
func (e *Engine) ExitChallenge(ctx context.Context, teamID, challengeID string) error {
	team, err := e.Team(ctx, teamID)
	if err != nil {
		return err
	}
	if err := ctf.CheckLive(team, challengeID); err != nil {
		return err
	}

	now := e.clock()
	err = e.store.UpdateIf(ctx, store.Teams, teamID,
		store.Condition{Field: attemptField(challengeID, "closedAt")},
		map[string]any{
			attemptField(challengeID, "exitedAt"): now,
			attemptField(challengeID, "closedAt"): now,
		},
	)
	if errors.Is(err, store.ErrPrecondition) {
		return nil
	}
	if err != nil {
		return ctf.Transient(err)
	}
	e.logger.InfoContext(ctx, "challenge exited", "team", teamID, "challenge", challengeID)
	return nil
}

// ReportTamper records one proctoring signal against the live attempt and
// returns the resulting tamper count. Signals that are not penalised, or
// whose detail does not pass the heuristics, leave the count unchanged.
func (e *Engine) ReportTamper(ctx context.Context, teamID, challengeID string, ev ctf.Event) (int, error) {
	if !ev.Signal.Valid() {
		return 0, ctf.ErrUnknownSignal
	}
	team, err := e.Team(ctx, teamID)
	if err != nil {
		return 0, err
	}
	if err := ctf.CheckLive(team, challengeID); err != nil {
		return 0, err
	}
	if !ev.Signal.Penalized() || !ctf.Qualifies(ev) {
		return team.Attempt(challengeID).TamperCount, nil
	}
	return e.persistTamper(ctx, teamID, challengeID, ev.Signal)
}

func (e *Engine) persistTamper(ctx context.Context, teamID, challengeID string, signal ctf.Signal) (int, error) {
	n, err := e.store.Increment(ctx, store.Teams, teamID, attemptField(challengeID, "tamperCount"), 1)
	if err != nil {
		e.logger.WarnContext(ctx, "persisting tamper count",
			"team", teamID,
			"challenge", challengeID,
			"signal", signal,
			"error", err,
		)
		return 0, ctf.Transient(err)
	}
	e.logger.InfoContext(ctx, "tamper recorded",
		"team", teamID,
		"challenge", challengeID,
		"signal", signal,
		"tamper_count", n,
	)
	return n, nil
}
