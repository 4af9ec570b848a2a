package engine

import (
	"context"
	"errors"
	"strings"

	"github.com/Aiyaret-Sandhu/cid-ctf/internal/ctf"
	"github.com/Aiyaret-Sandhu/cid-ctf/internal/store"
)

// Qualification reports the standing of a team that completed every
// challenge.
func (e *Engine) Qualification(ctx context.Context, teamID string) (ctf.Qualification, error) {
	s, err := e.Settings(ctx)
	if err != nil {
		return ctf.Qualification{}, err
	}
	team, err := e.Team(ctx, teamID)
	if err != nil {
		return ctf.Qualification{}, err
	}
	teams, err := e.Teams(ctx)
	if err != nil {
		return ctf.Qualification{}, err
	}
	return ctf.Qualify(team, teams, s)
}

// RedeemToken turns a completed team into a finalist with a one-time code.
//
// The token is claimed with a compare-and-set on its used flag, so of any
// number of concurrent redemptions of one code exactly one succeeds. The
// finalist record is keyed by team ID and created once. The three writes
// (token, finalist, team) are not one transaction; a failure part way is
// logged and left for an operator.
func (e *Engine) RedeemToken(ctx context.Context, teamID, code string) (ctf.Finalist, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return ctf.Finalist{}, ctf.ErrEmptyCandidate
	}
	s, err := e.Settings(ctx)
	if err != nil {
		return ctf.Finalist{}, err
	}
	team, err := e.Team(ctx, teamID)
	if err != nil {
		return ctf.Finalist{}, err
	}
	if team.CompletedAt == nil {
		return ctf.Finalist{}, ctf.ErrNotEligible
	}

	tok, err := e.matchToken(ctx, code)
	if err != nil {
		return ctf.Finalist{}, err
	}
	if tok.Used {
		return ctf.Finalist{}, ctf.ErrTokenUsed
	}
	if team.IsFinalist {
		return ctf.Finalist{}, ctf.ErrAlreadyFinalist
	}

	now := e.clock()
	err = e.store.UpdateIf(ctx, store.Tokens, tok.ID,
		store.Condition{Field: "used", Equals: false},
		map[string]any{
			"used":       true,
			"usedBy":     teamID,
			"usedByTeam": team.Name,
			"usedAt":     now,
		},
	)
	if errors.Is(err, store.ErrPrecondition) {
		return ctf.Finalist{}, ctf.ErrTokenUsed
	}
	if err != nil {
		return ctf.Finalist{}, ctf.Transient(err)
	}

	teams, err := e.Teams(ctx)
	if err != nil {
		e.logger.ErrorContext(ctx, "token claimed but finalist not recorded", "team", teamID, "token", tok.ID, "error", err)
		return ctf.Finalist{}, err
	}
	rank := ctf.CompletionRank(team, teams)
	f := ctf.Finalist{
		ID:             teamID,
		TeamID:         teamID,
		TeamName:       team.Name,
		Email:          team.Email,
		CompletionRank: rank,
		TokenCode:      code,
		CompletedAt:    *team.CompletedAt,
		VerifiedAt:     now,
	}
	if s.EnableTeamGrouping && s.GroupCount > 0 {
		f.Group = ctf.GroupIndex(rank, s.GroupCount)
	}

	if _, err := e.store.Create(ctx, store.Finalists, teamID, f); err != nil {
		if errors.Is(err, store.ErrExists) {
			e.logger.WarnContext(ctx, "token claimed by a team that is already a finalist", "team", teamID, "token", tok.ID)
			return ctf.Finalist{}, ctf.ErrAlreadyFinalist
		}
		e.logger.ErrorContext(ctx, "token claimed but finalist not recorded", "team", teamID, "token", tok.ID, "error", err)
		return ctf.Finalist{}, ctf.Transient(err)
	}

	err = e.store.Update(ctx, store.Teams, teamID, map[string]any{
		"isFinalist":         true,
		"finalistVerifiedAt": now,
		"tokenUsed":          tok.ID,
	}, store.UpdateOptions{Merge: true})
	if err != nil {
		e.logger.ErrorContext(ctx, "finalist recorded but team not flagged", "team", teamID, "error", err)
		return ctf.Finalist{}, ctf.Transient(err)
	}

	e.logger.InfoContext(ctx, "finalist verified", "team", teamID, "rank", rank, "group", f.Group)
	return f, nil
}

// matchToken finds a token whose hash matches code. Codes from separate
// batches can repeat, so an unused match wins over a used one.
func (e *Engine) matchToken(ctx context.Context, code string) (ctf.Token, error) {
	var tokens []ctf.Token
	if err := e.store.List(ctx, store.Tokens, nil, &tokens); err != nil {
		return ctf.Token{}, ctf.Transient(err)
	}
	var used *ctf.Token
	for i, tok := range tokens {
		ok, err := e.hasher.Verify(code, tok.Hash)
		if err != nil {
			e.logger.WarnContext(ctx, "skipping token with unreadable hash", "token", tok.ID, "error", err)
			continue
		}
		if !ok {
			continue
		}
		if !tok.Used {
			return tok, nil
		}
		if used == nil {
			used = &tokens[i]
		}
	}
	if used != nil {
		return *used, nil
	}
	return ctf.Token{}, ctf.ErrTokenNotFound
}
