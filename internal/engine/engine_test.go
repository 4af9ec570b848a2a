package engine_test

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/Aiyaret-Sandhu/cid-ctf/internal/ctf"
	"github.com/Aiyaret-Sandhu/cid-ctf/internal/database"
	"github.com/Aiyaret-Sandhu/cid-ctf/internal/engine"
	"github.com/Aiyaret-Sandhu/cid-ctf/internal/migrations"
	"github.com/Aiyaret-Sandhu/cid-ctf/internal/security"
	"github.com/Aiyaret-Sandhu/cid-ctf/internal/store"
)

var now = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

type fixture struct {
	eng    *engine.Engine
	st     *store.DocStore
	hasher security.Hasher
	ids    []string
}

func openWindow() ctf.Settings {
	return ctf.Settings{
		EventStartTime: now.Add(-time.Hour),
		EventEndTime:   now.Add(2 * time.Hour),
		EventStatus:    ctf.EventRunning,
	}
}

// newFixture seeds n challenges c0..c(n-1) with flags flag-0.. worth
// 100, 200, ... points, in that order.
func newFixture(t *testing.T, n int, s ctf.Settings) *fixture {
	t.Helper()
	ctx := context.Background()

	db, err := database.Open(ctx, ":memory:")
	if err != nil {
		t.Fatalf("opening database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := migrations.Run(db); err != nil {
		t.Fatalf("running migrations: %v", err)
	}

	logger := slog.New(slog.DiscardHandler)
	st := store.NewDocStore(db, nil, logger)
	hasher := security.Bcrypt{Cost: bcrypt.MinCost}

	f := &fixture{
		eng:    engine.New(st, hasher, logger, engine.WithClock(func() time.Time { return now })),
		st:     st,
		hasher: hasher,
	}
	if err := st.Put(ctx, store.Settings, ctf.SettingsID, s); err != nil {
		t.Fatalf("seeding settings: %v", err)
	}
	for i := range n {
		hash, err := hasher.Hash(fmt.Sprintf("flag-%d", i))
		if err != nil {
			t.Fatal(err)
		}
		id := fmt.Sprintf("c%d", i)
		_, err = st.Create(ctx, store.Challenges, id, ctf.Challenge{
			Title:     "Challenge " + id,
			Points:    (i + 1) * 100,
			FlagHash:  hash,
			Active:    true,
			CreatedAt: now.Add(-24 * time.Hour).Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatalf("seeding challenge: %v", err)
		}
		f.ids = append(f.ids, id)
	}
	return f
}

func (f *fixture) team(t *testing.T, name string) string {
	t.Helper()
	id, err := f.st.Create(context.Background(), store.Teams, "", ctf.Team{Name: name, Email: name + "@example.com"})
	if err != nil {
		t.Fatalf("creating team: %v", err)
	}
	return id
}

// completedTeam seeds a team that solved the whole catalogue at doneAt.
func (f *fixture) completedTeam(t *testing.T, name string, doneAt time.Time) string {
	t.Helper()
	id, err := f.st.Create(context.Background(), store.Teams, "", ctf.Team{
		Name:                name,
		SolvedChallenges:    f.ids,
		AttemptedChallenges: f.ids,
		CompletedAt:         &doneAt,
	})
	if err != nil {
		t.Fatalf("creating team: %v", err)
	}
	return id
}

func (f *fixture) load(t *testing.T, id string) ctf.Team {
	t.Helper()
	team, err := f.eng.Team(context.Background(), id)
	if err != nil {
		t.Fatalf("loading team: %v", err)
	}
	return team
}

func (f *fixture) solve(t *testing.T, teamID string, i int) engine.SubmitResult {
	t.Helper()
	ctx := context.Background()
	if _, err := f.eng.EnterChallenge(ctx, teamID, f.ids[i], true); err != nil {
		t.Fatalf("entering %s: %v", f.ids[i], err)
	}
	res, err := f.eng.SubmitFlag(ctx, teamID, f.ids[i], fmt.Sprintf("flag-%d", i))
	if err != nil {
		t.Fatalf("submitting %s: %v", f.ids[i], err)
	}
	if !res.Correct {
		t.Fatalf("flag for %s rejected", f.ids[i])
	}
	return res
}

func TestSolveFirstChallengeUnlocksNext(t *testing.T) {
	f := newFixture(t, 3, openWindow())
	team := f.team(t, "alpha")

	res := f.solve(t, team, 0)
	if res.Points != 100 || res.Score != 100 {
		t.Errorf("result = %+v, want 100 points and score 100", res)
	}

	got := f.load(t, team)
	if len(got.SolvedChallenges) != 1 || got.SolvedChallenges[0] != "c0" {
		t.Errorf("SolvedChallenges = %v, want [c0]", got.SolvedChallenges)
	}
	if got.Score != 100 {
		t.Errorf("Score = %d, want 100", got.Score)
	}
	if !got.Attempt("c0").Success {
		t.Error("attempt not marked successful")
	}

	p, err := f.eng.Progress(context.Background(), team)
	if err != nil {
		t.Fatal(err)
	}
	if !p.Challenges[1].Accessible || p.Challenges[2].Accessible {
		t.Errorf("accessible = %v %v, want true false", p.Challenges[1].Accessible, p.Challenges[2].Accessible)
	}
	if p.CurrentIndex != 1 {
		t.Errorf("CurrentIndex = %d, want 1", p.CurrentIndex)
	}
}

func TestEnterChallengeGuards(t *testing.T) {
	ctx := context.Background()

	t.Run("exclusive mode required", func(t *testing.T) {
		f := newFixture(t, 2, openWindow())
		team := f.team(t, "a")
		_, err := f.eng.EnterChallenge(ctx, team, "c0", false)
		if !errors.Is(err, ctf.ErrExclusiveRequired) {
			t.Fatalf("err = %v, want %v", err, ctf.ErrExclusiveRequired)
		}
		if got := f.load(t, team); len(got.AttemptedChallenges) != 0 || got.Attempt("c0").StartedAt != nil {
			t.Errorf("team changed: %+v", got)
		}
	})

	t.Run("locked", func(t *testing.T) {
		f := newFixture(t, 2, openWindow())
		team := f.team(t, "a")
		if _, err := f.eng.EnterChallenge(ctx, team, "c1", true); !errors.Is(err, ctf.ErrChallengeLocked) {
			t.Errorf("err = %v, want %v", err, ctf.ErrChallengeLocked)
		}
	})

	t.Run("not started", func(t *testing.T) {
		s := openWindow()
		s.EventStartTime = now.Add(time.Minute)
		f := newFixture(t, 2, s)
		team := f.team(t, "a")
		if _, err := f.eng.EnterChallenge(ctx, team, "c0", true); !errors.Is(err, ctf.ErrEventNotStarted) {
			t.Errorf("err = %v, want %v", err, ctf.ErrEventNotStarted)
		}
	})

	t.Run("unknown challenge", func(t *testing.T) {
		f := newFixture(t, 2, openWindow())
		team := f.team(t, "a")
		if _, err := f.eng.EnterChallenge(ctx, team, "nope", true); !errors.Is(err, ctf.ErrChallengeNotFound) {
			t.Errorf("err = %v, want %v", err, ctf.ErrChallengeNotFound)
		}
	})

	t.Run("in progress", func(t *testing.T) {
		f := newFixture(t, 2, openWindow())
		team := f.team(t, "a")
		if _, err := f.eng.EnterChallenge(ctx, team, "c0", true); err != nil {
			t.Fatal(err)
		}
		if _, err := f.eng.EnterChallenge(ctx, team, "c0", true); !errors.Is(err, ctf.ErrAttemptInProgress) {
			t.Errorf("err = %v, want %v", err, ctf.ErrAttemptInProgress)
		}
	})
}

func TestAbandonedAttemptIsPermanent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 3, openWindow())
	team := f.team(t, "alpha")
	f.solve(t, team, 0)

	if _, err := f.eng.EnterChallenge(ctx, team, "c1", true); err != nil {
		t.Fatal(err)
	}
	for range 2 {
		if _, err := f.eng.ReportTamper(ctx, team, "c1", ctf.Event{Signal: ctf.SignalFocusLost}); err != nil {
			t.Fatal(err)
		}
	}
	if err := f.eng.ExitChallenge(ctx, team, "c1"); err != nil {
		t.Fatal(err)
	}

	got := f.load(t, team)
	if got.Attempt("c1").TamperCount != 2 {
		t.Errorf("TamperCount = %d, want 2", got.Attempt("c1").TamperCount)
	}
	if !got.HasAttempted("c1") || got.HasSolved("c1") {
		t.Errorf("attempted %v solved %v, want c1 attempted but unsolved", got.AttemptedChallenges, got.SolvedChallenges)
	}

	if _, err := f.eng.EnterChallenge(ctx, team, "c1", true); !errors.Is(err, ctf.ErrChallengeExhaust) {
		t.Errorf("re-enter err = %v, want %v", err, ctf.ErrChallengeExhaust)
	}
	if _, err := f.eng.SubmitFlag(ctx, team, "c1", "flag-1"); !errors.Is(err, ctf.ErrChallengeExhaust) {
		t.Errorf("submit err = %v, want %v", err, ctf.ErrChallengeExhaust)
	}
	if _, err := f.eng.EnterChallenge(ctx, team, "c2", true); !errors.Is(err, ctf.ErrChallengeLocked) {
		t.Errorf("c2 err = %v, want %v", err, ctf.ErrChallengeLocked)
	}

	p, _ := f.eng.Progress(ctx, team)
	if !p.Stuck {
		t.Error("progress not stuck after exhausting the current challenge")
	}
}

func TestIncorrectFlagClosesAttempt(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 2, openWindow())
	team := f.team(t, "a")

	if _, err := f.eng.EnterChallenge(ctx, team, "c0", true); err != nil {
		t.Fatal(err)
	}
	res, err := f.eng.SubmitFlag(ctx, team, "c0", "  guess  ")
	if err != nil {
		t.Fatal(err)
	}
	if res.Correct {
		t.Fatal("wrong flag accepted")
	}
	if _, err := f.eng.SubmitFlag(ctx, team, "c0", "flag-0"); !errors.Is(err, ctf.ErrChallengeExhaust) {
		t.Errorf("second submit err = %v, want %v", err, ctf.ErrChallengeExhaust)
	}

	got := f.load(t, team)
	misses := got.Attempt("c0").IncorrectSubmissions
	if len(misses) != 1 || misses[0].Candidate != "guess" {
		t.Errorf("IncorrectSubmissions = %+v, want one entry for guess", misses)
	}
	if got.Score != 0 || len(got.SolvedChallenges) != 0 {
		t.Errorf("score %d solved %v, want nothing", got.Score, got.SolvedChallenges)
	}
}

func TestSubmitFlagValidation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 2, openWindow())
	team := f.team(t, "a")

	if _, err := f.eng.SubmitFlag(ctx, team, "c0", "   "); !errors.Is(err, ctf.ErrEmptyCandidate) {
		t.Errorf("empty err = %v, want %v", err, ctf.ErrEmptyCandidate)
	}
	if _, err := f.eng.SubmitFlag(ctx, team, "c0", "flag-0"); !errors.Is(err, ctf.ErrAttemptNotLive) {
		t.Errorf("not entered err = %v, want %v", err, ctf.ErrAttemptNotLive)
	}
	if ctf.KindOf(ctf.ErrEmptyCandidate) != ctf.KindInvalid {
		t.Errorf("kind = %v, want %v", ctf.KindOf(ctf.ErrEmptyCandidate), ctf.KindInvalid)
	}
}

func TestConcurrentCorrectSubmissionsScoreOnce(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 2, openWindow())
	team := f.team(t, "a")
	if _, err := f.eng.EnterChallenge(ctx, team, "c0", true); err != nil {
		t.Fatal(err)
	}

	const n = 6
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		correct int
	)
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := f.eng.SubmitFlag(ctx, team, "c0", "flag-0")
			if err != nil {
				if !errors.Is(err, ctf.ErrChallengeExhaust) && !errors.Is(err, ctf.ErrAlreadySolved) {
					t.Errorf("SubmitFlag: %v", err)
				}
				return
			}
			if res.Correct {
				mu.Lock()
				correct++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if correct != 1 {
		t.Errorf("correct submissions = %d, want 1", correct)
	}
	got := f.load(t, team)
	if got.Score != 100 || len(got.SolvedChallenges) != 1 {
		t.Errorf("score %d solved %v, want 100 and [c0]", got.Score, got.SolvedChallenges)
	}
}

func TestReportTamperFiltersSignals(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 1, openWindow())
	team := f.team(t, "a")

	if _, err := f.eng.ReportTamper(ctx, team, "c0", ctf.Event{Signal: ctf.SignalFocusLost}); !errors.Is(err, ctf.ErrAttemptNotLive) {
		t.Errorf("before entry err = %v, want %v", err, ctf.ErrAttemptNotLive)
	}
	if _, err := f.eng.EnterChallenge(ctx, team, "c0", true); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		ev   ctf.Event
		want int
	}{
		{ctf.Event{Signal: ctf.SignalVisibilityLost}, 1},
		{ctf.Event{Signal: ctf.SignalSuspiciousInput, Detail: "Ctrl+C"}, 1},
		{ctf.Event{Signal: ctf.SignalSuspiciousInput, Detail: "Cmd+Enter"}, 2},
		{ctf.Event{Signal: ctf.SignalOverlayDetected, Detail: "div.navbar"}, 2},
		{ctf.Event{Signal: ctf.SignalOverlayDetected, Detail: "div#cluely-overlay"}, 3},
		{ctf.Event{Signal: ctf.SignalStay}, 3},
		{ctf.Event{Signal: ctf.SignalContextMenu}, 4},
	}
	for _, tt := range tests {
		got, err := f.eng.ReportTamper(ctx, team, "c0", tt.ev)
		if err != nil {
			t.Fatalf("ReportTamper(%+v): %v", tt.ev, err)
		}
		if got != tt.want {
			t.Errorf("ReportTamper(%+v) = %d, want %d", tt.ev, got, tt.want)
		}
	}

	if _, err := f.eng.ReportTamper(ctx, team, "c0", ctf.Event{Signal: "sneeze"}); !errors.Is(err, ctf.ErrUnknownSignal) {
		t.Errorf("unknown signal err = %v, want %v", err, ctf.ErrUnknownSignal)
	}
}

func TestAutoEndOnFinalCompletion(t *testing.T) {
	ctx := context.Background()
	s := openWindow()
	s.FinalistCount = 3
	f := newFixture(t, 1, s)
	teams := []string{f.team(t, "a"), f.team(t, "b"), f.team(t, "c")}

	for i, team := range teams {
		res := f.solve(t, team, 0)
		if !res.Completed {
			t.Errorf("team %d not completed", i)
		}
		if wantEnded := i == 2; res.EventEnded != wantEnded {
			t.Errorf("team %d EventEnded = %v, want %v", i, res.EventEnded, wantEnded)
		}
	}

	got, err := f.eng.Settings(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if got.EventStatus != ctf.EventEnded || got.ActualEndTime == nil || !got.ActualEndTime.Equal(now) {
		t.Errorf("settings = %+v, want ended at %v", got, now)
	}

	ended, err := f.eng.MaybeAutoEnd(ctx)
	if err != nil || ended {
		t.Errorf("MaybeAutoEnd after end = %v, %v, want false", ended, err)
	}

	late := f.team(t, "late")
	if _, err := f.eng.EnterChallenge(ctx, late, "c0", true); !errors.Is(err, ctf.ErrEventEnded) {
		t.Errorf("entry after end err = %v, want %v", err, ctf.ErrEventEnded)
	}
}

func TestConcurrentAutoEndTransitionsOnce(t *testing.T) {
	ctx := context.Background()
	s := openWindow()
	s.FinalistCount = 2
	f := newFixture(t, 2, s)
	for i := range 3 {
		f.completedTeam(t, fmt.Sprintf("t%d", i), now.Add(-time.Duration(i)*time.Minute))
	}

	const n = 8
	var (
		wg          sync.WaitGroup
		mu          sync.Mutex
		transitions int
	)
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ended, err := f.eng.MaybeAutoEnd(ctx)
			if err != nil {
				t.Errorf("MaybeAutoEnd: %v", err)
				return
			}
			if ended {
				mu.Lock()
				transitions++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if transitions != 1 {
		t.Errorf("transitions = %d, want 1", transitions)
	}
}

func TestAutoEndDisabledWithoutFinalistCount(t *testing.T) {
	f := newFixture(t, 1, openWindow())
	f.completedTeam(t, "a", now)
	ended, err := f.eng.MaybeAutoEnd(context.Background())
	if err != nil || ended {
		t.Errorf("MaybeAutoEnd = %v, %v, want false", ended, err)
	}
}

func (f *fixture) token(t *testing.T, code string) string {
	t.Helper()
	hash, err := f.hasher.Hash(code)
	if err != nil {
		t.Fatal(err)
	}
	id, err := f.st.Create(context.Background(), store.Tokens, "", ctf.Token{Hash: hash, CreatedAt: now})
	if err != nil {
		t.Fatal(err)
	}
	return id
}

func TestRedeemToken(t *testing.T) {
	ctx := context.Background()
	s := openWindow()
	s.EnableTeamGrouping = true
	s.GroupCount = 2
	f := newFixture(t, 1, s)

	first := f.completedTeam(t, "first", now.Add(-2*time.Hour))
	second := f.completedTeam(t, "second", now.Add(-time.Hour))
	unfinished := f.team(t, "unfinished")
	tokID := f.token(t, "4821")
	f.token(t, "7777")

	fin, err := f.eng.RedeemToken(ctx, second, "4821")
	if err != nil {
		t.Fatalf("RedeemToken: %v", err)
	}
	if fin.CompletionRank != 2 || fin.Group != 1 || fin.TeamID != second {
		t.Errorf("finalist = %+v, want rank 2 group 1", fin)
	}

	var stored []ctf.Finalist
	if err := f.st.List(ctx, store.Finalists, nil, &stored); err != nil {
		t.Fatal(err)
	}
	if len(stored) != 1 || stored[0].ID != second {
		t.Errorf("finalists = %+v, want one record for %s", stored, second)
	}

	team := f.load(t, second)
	if !team.IsFinalist || team.FinalistVerifiedAt == nil || team.TokenUsed != tokID {
		t.Errorf("team = %+v, want finalist flagged with token %s", team, tokID)
	}

	var tok ctf.Token
	f.st.Get(ctx, store.Tokens, tokID, &tok)
	if !tok.Used || tok.UsedBy != second || tok.UsedByTeam != "second" {
		t.Errorf("token = %+v, want used by %s", tok, second)
	}

	tests := []struct {
		name string
		team string
		code string
		want error
	}{
		{"same code same team", second, "4821", ctf.ErrTokenUsed},
		{"same code other team", first, "4821", ctf.ErrTokenUsed},
		{"unknown code", first, "0000", ctf.ErrTokenNotFound},
		{"not completed", unfinished, "7777", ctf.ErrNotEligible},
		{"finalist with fresh code", second, "7777", ctf.ErrAlreadyFinalist},
		{"empty", first, " ", ctf.ErrEmptyCandidate},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := f.eng.RedeemToken(ctx, tt.team, tt.code); !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestConcurrentRedeemSingleUse(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 1, openWindow())
	var teams []string
	for i := range 5 {
		teams = append(teams, f.completedTeam(t, fmt.Sprintf("t%d", i), now.Add(time.Duration(i)*time.Minute)))
	}
	f.token(t, "4821")

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
		used int
	)
	for _, team := range teams {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.eng.RedeemToken(ctx, team, "4821")
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				wins++
			case errors.Is(err, ctf.ErrTokenUsed):
				used++
			default:
				t.Errorf("RedeemToken: %v", err)
			}
		}()
	}
	wg.Wait()

	if wins != 1 || used != len(teams)-1 {
		t.Errorf("wins %d used %d, want 1 and %d", wins, used, len(teams)-1)
	}
}

func TestQualification(t *testing.T) {
	ctx := context.Background()
	s := openWindow()
	s.EnableTeamGrouping = true
	s.GroupCount = 3
	s.GroupMessages = []string{"Hall A", "Hall B", "Hall C"}
	f := newFixture(t, 1, s)

	var ids []string
	for i := range 4 {
		ids = append(ids, f.completedTeam(t, fmt.Sprintf("t%d", i), now.Add(time.Duration(i)*time.Minute)))
	}
	want := []struct {
		rank  int
		group int
		msg   string
	}{
		{1, 0, "Hall A"},
		{2, 1, "Hall B"},
		{3, 2, "Hall C"},
		{4, 0, "Hall A"},
	}
	for i, id := range ids {
		q, err := f.eng.Qualification(ctx, id)
		if err != nil {
			t.Fatal(err)
		}
		if q.CompletionRank != want[i].rank || q.Group != want[i].group || q.GroupMessage != want[i].msg {
			t.Errorf("team %d: %+v, want %+v", i, q, want[i])
		}
	}

	if _, err := f.eng.Qualification(ctx, f.team(t, "late")); !errors.Is(err, ctf.ErrNotEligible) {
		t.Errorf("err = %v, want %v", err, ctf.ErrNotEligible)
	}
}

func TestWatchFollowsWrites(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f := newFixture(t, 2, openWindow())
	team := f.team(t, "a")

	ch, err := f.eng.Watch(ctx, team)
	if err != nil {
		t.Fatal(err)
	}

	waitFor := func(desc string, ok func(ctf.Progress) bool) {
		t.Helper()
		deadline := time.After(2 * time.Second)
		for {
			select {
			case p := <-ch:
				if ok(p) {
					return
				}
			case <-deadline:
				t.Fatalf("timed out waiting for %s", desc)
			}
		}
	}

	waitFor("initial view", func(p ctf.Progress) bool { return p.Total == 2 && p.Solved == 0 })

	if _, err := f.eng.EnterChallenge(ctx, team, "c0", true); err != nil {
		t.Fatal(err)
	}
	waitFor("live attempt", func(p ctf.Progress) bool { return p.LiveChallenge == "c0" })

	if _, err := f.eng.SubmitFlag(ctx, team, "c0", "flag-0"); err != nil {
		t.Fatal(err)
	}
	waitFor("solve", func(p ctf.Progress) bool { return p.Solved == 1 && p.Score == 100 })

	ended := openWindow()
	ended.EventStatus = ctf.EventEnded
	if err := f.st.Put(ctx, store.Settings, ctf.SettingsID, ended); err != nil {
		t.Fatal(err)
	}
	waitFor("event end", func(p ctf.Progress) bool { return p.Phase == ctf.PhaseEnded })

	cancel()
	for range ch {
	}
}

func TestIssueTokensAreRedeemable(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 1, openWindow())

	issued, err := f.eng.IssueTokens(ctx, 4, 6)
	if err != nil {
		t.Fatalf("IssueTokens: %v", err)
	}
	if len(issued) != 4 {
		t.Fatalf("issued %d tokens, want 4", len(issued))
	}
	seen := map[string]bool{}
	for _, tok := range issued {
		if len(tok.Code) != 6 || seen[tok.Code] {
			t.Errorf("bad or repeated code %q", tok.Code)
		}
		seen[tok.Code] = true

		var stored ctf.Token
		if err := f.st.Get(ctx, store.Tokens, tok.ID, &stored); err != nil {
			t.Fatal(err)
		}
		if stored.Hash == tok.Code || stored.Used {
			t.Errorf("stored token = %+v", stored)
		}
	}

	team := f.team(t, "a")
	f.solve(t, team, 0)
	fin, err := f.eng.RedeemToken(ctx, team, issued[2].Code)
	if err != nil {
		t.Fatalf("RedeemToken: %v", err)
	}
	if fin.TeamID != team {
		t.Errorf("finalist = %+v", fin)
	}
}

func TestDottedChallengeIDKeepsItsAttempt(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 1, openWindow())
	hash, err := f.hasher.Hash("flag-web")
	if err != nil {
		t.Fatal(err)
	}
	// Sequenced before c0.
	if _, err := f.st.Create(ctx, store.Challenges, "web.1", ctf.Challenge{
		Title:     "Dotted",
		Points:    50,
		FlagHash:  hash,
		Active:    true,
		CreatedAt: now.Add(-48 * time.Hour),
	}); err != nil {
		t.Fatal(err)
	}
	team := f.team(t, "a")

	if _, err := f.eng.EnterChallenge(ctx, team, "web.1", true); err != nil {
		t.Fatalf("EnterChallenge: %v", err)
	}
	got := f.load(t, team)
	if st := ctf.StateOf(got, "web.1"); st != ctf.StateInProgress {
		t.Fatalf("state after enter = %s, want %s (attempts %+v)", st, ctf.StateInProgress, got.ChallengeAttempts)
	}
	if n, err := f.eng.ReportTamper(ctx, team, "web.1", ctf.Event{Signal: ctf.SignalFocusLost}); err != nil || n != 1 {
		t.Fatalf("ReportTamper = %d, %v, want 1", n, err)
	}

	res, err := f.eng.SubmitFlag(ctx, team, "web.1", "flag-web")
	if err != nil {
		t.Fatalf("SubmitFlag: %v", err)
	}
	if !res.Correct || res.Score != 50 {
		t.Errorf("result = %+v, want correct with score 50", res)
	}
	got = f.load(t, team)
	if st := ctf.StateOf(got, "web.1"); st != ctf.StateSolved {
		t.Errorf("state after submit = %s, want %s", st, ctf.StateSolved)
	}
	if a := got.Attempt("web.1"); a.TamperCount != 1 || !a.Success {
		t.Errorf("attempt = %+v, want tamper 1 and success", a)
	}
}

func TestExitAndSubmitCloseTheAttemptOnce(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 1, openWindow())

	for i := range 10 {
		team := f.team(t, fmt.Sprintf("racer%d", i))
		if _, err := f.eng.EnterChallenge(ctx, team, "c0", true); err != nil {
			t.Fatal(err)
		}

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			f.eng.ExitChallenge(ctx, team, "c0")
		}()
		go func() {
			defer wg.Done()
			f.eng.SubmitFlag(ctx, team, "c0", "flag-0")
		}()
		wg.Wait()

		got := f.load(t, team)
		a := got.Attempt("c0")
		if a.ClosedAt == nil {
			t.Fatalf("%s: attempt not closed: %+v", team, a)
		}
		if (a.ExitedAt == nil) == (a.SubmittedAt == nil) {
			t.Errorf("%s: exitedAt=%v submittedAt=%v, want exactly one", team, a.ExitedAt, a.SubmittedAt)
		}
		if a.ExitedAt != nil && (got.HasSolved("c0") || got.Score != 0) {
			t.Errorf("%s: exited attempt was scored: solved=%v score=%d", team, got.SolvedChallenges, got.Score)
		}
	}
}

func TestRedeemRepeatedCodeUsesUnusedToken(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 1, openWindow())
	first := f.completedTeam(t, "first", now.Add(-2*time.Hour))
	second := f.completedTeam(t, "second", now.Add(-time.Hour))
	third := f.completedTeam(t, "third", now.Add(-time.Minute))

	// The same code issued in two batches.
	a := f.token(t, "12345678")
	b := f.token(t, "12345678")

	if _, err := f.eng.RedeemToken(ctx, first, "12345678"); err != nil {
		t.Fatalf("first redeem: %v", err)
	}
	if _, err := f.eng.RedeemToken(ctx, second, "12345678"); err != nil {
		t.Fatalf("second redeem of repeated code: %v", err)
	}
	if _, err := f.eng.RedeemToken(ctx, third, "12345678"); !errors.Is(err, ctf.ErrTokenUsed) {
		t.Errorf("third redeem err = %v, want %v", err, ctf.ErrTokenUsed)
	}

	used := map[string]string{}
	for _, id := range []string{a, b} {
		var tok ctf.Token
		if err := f.st.Get(ctx, store.Tokens, id, &tok); err != nil {
			t.Fatal(err)
		}
		used[tok.UsedBy] = id
	}
	if used[first] == "" || used[second] == "" {
		t.Errorf("tokens used by %v, want one each for %s and %s", used, first, second)
	}
}
