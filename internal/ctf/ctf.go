// Package ctf defines the core domain types and the pure decision logic of
// the challenge engine. It performs no I/O; callers pass in the documents
// they loaded and the wall-clock time they read.
package ctf

import "time"

// Team is a registered competitor. SolvedChallenges and AttemptedChallenges
// are append-only sets and SolvedChallenges is always a subset of
// AttemptedChallenges.
type Team struct {
	ID                  string                      `json:"id"`
	Email               string                      `json:"email"`
	Name                string                      `json:"name"`
	LeadName            string                      `json:"leadName"`
	PasswordHash        string                      `json:"passwordHash,omitempty"`
	Score               int                         `json:"score"`
	SolvedChallenges    []string                    `json:"solvedChallenges"`
	AttemptedChallenges []string                    `json:"attemptedChallenges"`
	ChallengeAttempts   map[string]ChallengeAttempt `json:"challengeAttempts"`
	CompletedAt         *time.Time                  `json:"completedAt"`
	IsFinalist          bool                        `json:"isFinalist"`
	FinalistVerifiedAt  *time.Time                  `json:"finalistVerifiedAt"`
	TokenUsed           string                      `json:"tokenUsed,omitempty"`
	CreatedAt           time.Time                   `json:"createdAt"`
}

// ChallengeAttempt is the per-challenge record of a team's single attempt.
type ChallengeAttempt struct {
	TamperCount          int                   `json:"tamperCount"`
	StartedAt            *time.Time            `json:"startedAt"`
	SubmittedAt          *time.Time            `json:"submittedAt"`
	ExitedAt             *time.Time            `json:"exitedAt"`
	// ClosedAt is set by whichever of submit or exit claims the attempt.
	ClosedAt             *time.Time            `json:"closedAt,omitempty"`
	Success              bool                  `json:"success"`
	IncorrectSubmissions []IncorrectSubmission `json:"incorrectSubmissions"`
}

type IncorrectSubmission struct {
	Candidate   string    `json:"candidate"`
	SubmittedAt time.Time `json:"submittedAt"`
}

func (t Team) HasSolved(challengeID string) bool {
	return contains(t.SolvedChallenges, challengeID)
}

func (t Team) HasAttempted(challengeID string) bool {
	return contains(t.AttemptedChallenges, challengeID)
}

// Attempt returns the attempt record for challengeID, or the zero value.
func (t Team) Attempt(challengeID string) ChallengeAttempt {
	return t.ChallengeAttempts[challengeID]
}

type Challenge struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Category    string    `json:"category"`
	Points      int       `json:"points"`
	Difficulty  string    `json:"difficulty"`
	FlagHash    string    `json:"flagHash"`
	Active      bool      `json:"active"`
	Hint        string    `json:"hint,omitempty"`
	ImageRef    string    `json:"imageRef,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

type EventStatus string

const (
	EventRunning EventStatus = "running"
	EventEnded   EventStatus = "ended"
)

// SettingsID is the fixed key of the settings singleton.
const SettingsID = "event"

// Settings is the event configuration singleton. The engine only ever
// writes the running→ended transition.
type Settings struct {
	EventStartTime     time.Time   `json:"eventStartTime"`
	EventEndTime       time.Time   `json:"eventEndTime"`
	FinalistCount      int         `json:"finalistCount"`
	MaxTabSwitches     int         `json:"maxTabSwitches"`
	EnableTeamGrouping bool        `json:"enableTeamGrouping"`
	GroupCount         int         `json:"groupCount"`
	GroupMessages      []string    `json:"groupMessages"`
	EventStatus        EventStatus `json:"eventStatus"`
	ActualEndTime      *time.Time  `json:"actualEndTime"`
}

// GroupMessage returns the message configured for the 0-based group.
func (s Settings) GroupMessage(group int) string {
	if group < 0 || group >= len(s.GroupMessages) {
		return ""
	}
	return s.GroupMessages[group]
}

// Token is a one-time numeric secret. Only its hash is stored.
type Token struct {
	ID         string     `json:"id"`
	Hash       string     `json:"hash"`
	Used       bool       `json:"used"`
	UsedBy     string     `json:"usedBy,omitempty"`
	UsedByTeam string     `json:"usedByTeam,omitempty"`
	UsedAt     *time.Time `json:"usedAt"`
	CreatedAt  time.Time  `json:"createdAt"`
}

// Finalist is created once per qualifying team and keyed by team ID.
type Finalist struct {
	ID             string    `json:"id"`
	TeamID         string    `json:"teamId"`
	TeamName       string    `json:"teamName"`
	Email          string    `json:"email"`
	CompletionRank int       `json:"completionRank"`
	Group          int       `json:"group"`
	TokenCode      string    `json:"tokenCode"`
	CompletedAt    time.Time `json:"completedAt"`
	VerifiedAt     time.Time `json:"verifiedAt"`
}

// Set is a string set built from the array fields of a document.
type Set map[string]struct{}

func NewSet(ids []string) Set {
	s := make(Set, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

func (s Set) Has(id string) bool {
	_, ok := s[id]
	return ok
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
