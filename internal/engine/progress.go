package engine

import (
	"context"
	"time"

	"github.com/Aiyaret-Sandhu/cid-ctf/internal/ctf"
	"github.com/Aiyaret-Sandhu/cid-ctf/internal/store"
)

// Progress is the team-facing view at this moment.
func (e *Engine) Progress(ctx context.Context, teamID string) (ctf.Progress, error) {
	v, err := e.load(ctx, teamID)
	if err != nil {
		return ctf.Progress{}, err
	}
	return ctf.BuildProgress(e.clock(), v.team, v.challenges, v.settings), nil
}

// Watch streams the team's view. A new value is produced after every write
// to the team, the catalogue or the settings, and when the event window
// opens or closes. Intermediate values may be skipped; the channel always
// ends up holding the latest one. It is closed when ctx is done.
func (e *Engine) Watch(ctx context.Context, teamID string) (<-chan ctf.Progress, error) {
	teamCh, cancelTeam := e.store.Subscribe(store.Teams, teamID)
	catCh, cancelCat := e.store.Subscribe(store.Challenges, "*")
	setCh, cancelSet := e.store.Subscribe(store.Settings, ctf.SettingsID)
	unsubscribe := func() {
		cancelTeam()
		cancelCat()
		cancelSet()
	}

	// Subscribe before loading so no write between the two is missed.
	v, err := e.load(ctx, teamID)
	if err != nil {
		unsubscribe()
		return nil, err
	}
	catalogue := make(map[string]ctf.Challenge, len(v.challenges))
	for _, c := range v.challenges {
		catalogue[c.ID] = c
	}

	out := make(chan ctf.Progress, 1)
	go func() {
		defer close(out)
		defer unsubscribe()

		boundary := time.NewTimer(0)
		defer boundary.Stop()

		for {
			now := e.clock()
			latest(out, ctf.BuildProgress(now, v.team, values(catalogue), v.settings))
			resetBoundary(boundary, now, v.settings)

			select {
			case <-ctx.Done():
				return
			case snap := <-teamCh:
				if snap.Deleted {
					return
				}
				var t ctf.Team
				if err := snap.Decode(&t); err != nil {
					e.logger.WarnContext(ctx, "decoding team snapshot", "team", teamID, "error", err)
					continue
				}
				v.team = t
			case snap := <-catCh:
				if snap.Deleted {
					delete(catalogue, snap.ID)
					continue
				}
				var c ctf.Challenge
				if err := snap.Decode(&c); err != nil {
					e.logger.WarnContext(ctx, "decoding challenge snapshot", "challenge", snap.ID, "error", err)
					continue
				}
				catalogue[c.ID] = c
			case snap := <-setCh:
				var s ctf.Settings
				if snap.Deleted {
					s = ctf.Settings{EventStatus: ctf.EventRunning}
				} else if err := snap.Decode(&s); err != nil {
					e.logger.WarnContext(ctx, "decoding settings snapshot", "error", err)
					continue
				}
				v.settings = s
			case <-boundary.C:
			}
		}
	}()
	return out, nil
}

// latest replaces whatever is pending in ch with p.
func latest[T any](ch chan T, p T) {
	select {
	case <-ch:
	default:
	}
	ch <- p
}

func values(m map[string]ctf.Challenge) []ctf.Challenge {
	out := make([]ctf.Challenge, 0, len(m))
	for _, c := range m {
		out = append(out, c)
	}
	return out
}

// resetBoundary arms t for the next start or end time after now, or stops
// it when neither lies ahead.
func resetBoundary(t *time.Timer, now time.Time, s ctf.Settings) {
	t.Stop()
	for _, at := range []time.Time{s.EventStartTime, s.EventEndTime} {
		if !at.IsZero() && at.After(now) {
			t.Reset(at.Sub(now))
			return
		}
	}
}
