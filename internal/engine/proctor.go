package engine

import (
	"context"
	"errors"
	"time"

	"github.com/Aiyaret-Sandhu/cid-ctf/internal/ctf"
	"github.com/Aiyaret-Sandhu/cid-ctf/internal/store"
)

// ProctoringSource delivers client signals for one attempt and carries the
// monitor's effects back to the client. Signals is closed on disconnect.
type ProctoringSource interface {
	Signals() <-chan ctf.Event
	Dispatch(ctx context.Context, effect ctf.Effect) error
}

// Proctor drives one attempt's monitor until the attempt closes, the event
// ends or its window closes, the source disconnects or ctx is done.
//
// An unattempted challenge starts pending: it is only entered once the
// source reports exclusive mode. A challenge already in progress resumes
// with its persisted tamper count. A disconnect leaves the attempt live so
// a new connection can resume it.
func (e *Engine) Proctor(ctx context.Context, teamID, challengeID string, src ProctoringSource) error {
	team, err := e.Team(ctx, teamID)
	if err != nil {
		return err
	}

	m := ctf.NewMonitor(team.Attempt(challengeID).TamperCount)
	switch ctf.StateOf(team, challengeID) {
	case ctf.StateInProgress:
		m.Resume()
	case ctf.StateSolved:
		return ctf.ErrAlreadySolved
	case ctf.StateExhausted:
		return ctf.ErrChallengeExhaust
	}

	settings, cancelSettings := e.store.Subscribe(store.Settings, ctf.SettingsID)
	defer cancelSettings()
	teamSnaps, cancelTeam := e.store.Subscribe(store.Teams, teamID)
	defer cancelTeam()

	s, err := e.Settings(ctx)
	if err != nil {
		return err
	}
	windowEnd := time.NewTimer(0)
	defer windowEnd.Stop()
	armWindowEnd(windowEnd, e.clock(), s)

	logger := e.logger.With("team", teamID, "challenge", challengeID)
	end := func() {
		if m.State() != ctf.MonitorPending {
			if err := e.ExitChallenge(ctx, teamID, challengeID); err != nil {
				logger.WarnContext(ctx, "closing attempt at event end", "error", err)
			}
		}
		m.Close()
		src.Dispatch(ctx, ctf.Effect{Kind: ctf.EffectEventEnded})
		src.Dispatch(ctx, ctf.Effect{Kind: ctf.EffectReleaseExclusive})
	}

	signals := src.Signals()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-windowEnd.C:
			logger.InfoContext(ctx, "event window closed during attempt")
			end()
			return nil
		case snap := <-settings:
			var next ctf.Settings
			if err := snap.Decode(&next); err != nil {
				continue
			}
			if next.EventStatus == ctf.EventEnded {
				end()
				return nil
			}
			armWindowEnd(windowEnd, e.clock(), next)
		case snap := <-teamSnaps:
			// The attempt may be closed elsewhere, by a submission.
			var t ctf.Team
			if err := snap.Decode(&t); err != nil || m.State() == ctf.MonitorPending {
				continue
			}
			if st := ctf.StateOf(t, challengeID); st == ctf.StateSolved || st == ctf.StateExhausted {
				m.Close()
				src.Dispatch(ctx, ctf.Effect{Kind: ctf.EffectReleaseExclusive})
				return nil
			}
		case ev, ok := <-signals:
			if !ok {
				return nil
			}
			if !ev.Signal.Valid() {
				logger.DebugContext(ctx, "ignoring unknown signal", "signal", ev.Signal)
				continue
			}
			for _, eff := range m.Apply(ev) {
				if err := e.carryOut(ctx, teamID, challengeID, m, ev.Signal, eff, src); err != nil {
					return err
				}
			}
			if m.State() == ctf.MonitorClosed {
				return nil
			}
		}
	}
}

// armWindowEnd arms t for the end of the event window, or fires it at once
// when the window has already closed.
func armWindowEnd(t *time.Timer, now time.Time, s ctf.Settings) {
	t.Stop()
	select {
	case <-t.C:
	default:
	}
	if s.EventEndTime.IsZero() {
		return
	}
	t.Reset(max(s.EventEndTime.Sub(now), 0))
}

// carryOut performs one effect's store write, if any, and forwards it.
func (e *Engine) carryOut(ctx context.Context, teamID, challengeID string, m *ctf.Monitor, signal ctf.Signal, eff ctf.Effect, src ProctoringSource) error {
	switch eff.Kind {
	case ctf.EffectStartAttempt:
		if _, err := e.EnterChallenge(ctx, teamID, challengeID, true); err != nil {
			m.Close()
			var ce *ctf.Error
			msg := "could not start the challenge"
			if errors.As(err, &ce) {
				msg = ce.Msg
			}
			src.Dispatch(ctx, ctf.Effect{Kind: ctf.EffectAbortStart, Message: msg})
			src.Dispatch(ctx, ctf.Effect{Kind: ctf.EffectReleaseExclusive})
			return err
		}
	case ctf.EffectPersistTamper:
		// Best effort: the session continues when the write fails.
		if n, err := e.persistTamper(ctx, teamID, challengeID, signal); err == nil {
			eff.TamperCount = n
		}
	case ctf.EffectFinalize:
		if err := e.ExitChallenge(ctx, teamID, challengeID); err != nil {
			e.logger.WarnContext(ctx, "finalizing attempt", "team", teamID, "challenge", challengeID, "error", err)
		}
	}
	return src.Dispatch(ctx, eff)
}
