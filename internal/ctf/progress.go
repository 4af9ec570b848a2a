package ctf

import "time"

// ChallengeCard is a team's view of one challenge. Description and hint are
// only filled while the attempt is in progress; the flag hash never is.
type ChallengeCard struct {
	ID          string       `json:"id"`
	Index       int          `json:"index"`
	Title       string       `json:"title"`
	Category    string       `json:"category"`
	Difficulty  string       `json:"difficulty"`
	Points      int          `json:"points"`
	State       AttemptState `json:"state"`
	Accessible  bool         `json:"accessible"`
	TamperCount int          `json:"tamperCount"`
	Description string       `json:"description,omitempty"`
	Hint        string       `json:"hint,omitempty"`
	ImageRef    string       `json:"imageRef,omitempty"`
}

// Progress is the complete team-facing state derived from the team
// document, the challenge catalogue and the settings.
type Progress struct {
	Phase          Phase           `json:"phase"`
	EventStartTime time.Time       `json:"eventStartTime"`
	EventEndTime   time.Time       `json:"eventEndTime"`
	Score          int             `json:"score"`
	Solved         int             `json:"solved"`
	Total          int             `json:"total"`
	CurrentIndex   int             `json:"currentIndex"`
	LiveChallenge  string          `json:"liveChallenge,omitempty"`
	Completed      bool            `json:"completed"`
	Stuck          bool            `json:"stuck"`
	MaxTabSwitches int             `json:"maxTabSwitches"`
	OverLimit      bool            `json:"overLimit"`
	IsFinalist     bool            `json:"isFinalist"`
	Challenges     []ChallengeCard `json:"challenges"`
}

// BuildProgress derives the team's view. It is a pure function of its
// inputs so it can be recomputed on every snapshot.
func BuildProgress(now time.Time, team Team, challenges []Challenge, s Settings) Progress {
	seq := NewSequence(challenges)
	solved := NewSet(team.SolvedChallenges)

	p := Progress{
		Phase:          ResolvePhase(now, s),
		EventStartTime: s.EventStartTime,
		EventEndTime:   s.EventEndTime,
		Score:          team.Score,
		Total:          seq.Len(),
		CurrentIndex:   seq.AccessibleIndex(solved),
		Completed:      seq.Completed(solved),
		MaxTabSwitches: s.MaxTabSwitches,
		IsFinalist:     team.IsFinalist,
		Challenges:     make([]ChallengeCard, 0, seq.Len()),
	}
	if live, ok := LiveAttempt(team); ok {
		p.LiveChallenge = live
	}

	for i, c := range seq.Challenges() {
		state := StateOf(team, c.ID)
		if state == StateSolved {
			p.Solved++
		}
		a := team.Attempt(c.ID)
		if s.MaxTabSwitches > 0 && a.TamperCount > s.MaxTabSwitches {
			p.OverLimit = true
		}
		card := ChallengeCard{
			ID:          c.ID,
			Index:       i,
			Title:       c.Title,
			Category:    c.Category,
			Difficulty:  c.Difficulty,
			Points:      c.Points,
			State:       state,
			Accessible:  seq.IsAccessible(i, solved),
			TamperCount: a.TamperCount,
		}
		if state == StateInProgress {
			card.Description = c.Description
			card.Hint = c.Hint
			card.ImageRef = c.ImageRef
		}
		p.Challenges = append(p.Challenges, card)
	}

	if !p.Completed && p.CurrentIndex >= 0 {
		p.Stuck = StateOf(team, seq.At(p.CurrentIndex).ID) == StateExhausted
	}
	return p
}
