package ctf

// CompletionRank returns the 1-based position of team among teams that have
// completed, ordered by CompletedAt. Equal timestamps are broken by the
// order of teams, which callers must take from the store's deterministic
// listing. It returns 0 when team has not completed.
func CompletionRank(team Team, teams []Team) int {
	if team.CompletedAt == nil {
		return 0
	}
	rank := 1
	before := true
	for _, other := range teams {
		if other.ID == team.ID {
			before = false
			continue
		}
		if other.CompletedAt == nil {
			continue
		}
		switch {
		case other.CompletedAt.Before(*team.CompletedAt):
			rank++
		case before && other.CompletedAt.Equal(*team.CompletedAt):
			rank++
		}
	}
	return rank
}

// GroupIndex assigns ranks to groups round-robin: rank 1 to group 0, rank 2
// to group 1 and so on, wrapping after groupCount.
func GroupIndex(rank, groupCount int) int {
	if groupCount <= 0 || rank <= 0 {
		return 0
	}
	return (rank - 1) % groupCount
}

// Qualification is what a completed team is told about its standing.
type Qualification struct {
	CompletionRank int    `json:"completionRank"`
	Group          int    `json:"group"`
	GroupMessage   string `json:"groupMessage,omitempty"`
	IsFinalist     bool   `json:"isFinalist"`
}

// Qualify computes the standing of a completed team.
func Qualify(team Team, teams []Team, s Settings) (Qualification, error) {
	if team.CompletedAt == nil {
		return Qualification{}, ErrNotEligible
	}
	q := Qualification{
		CompletionRank: CompletionRank(team, teams),
		IsFinalist:     team.IsFinalist,
	}
	if s.EnableTeamGrouping && s.GroupCount > 0 {
		q.Group = GroupIndex(q.CompletionRank, s.GroupCount)
		q.GroupMessage = s.GroupMessage(q.Group)
	}
	return q, nil
}
