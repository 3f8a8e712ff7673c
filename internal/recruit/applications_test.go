package recruit_test

import (
	"context"
	"errors"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/kibanana/geteam-http-api/internal/recruit"
	"github.com/kibanana/geteam-http-api/internal/store/memstore"
)

// ── CreateApplication ──────────────────────────────────────────────────────

func TestCreateApplication_SelfApplication(t *testing.T) {
	f := newFixture(t)
	b := f.board(t, "author", "x")

	_, err := f.svc.CreateApplication(ctx, "author", recruit.ApplicationInput{BoardID: b.ID, WantedText: "me"})
	assertConflict(t, err, recruit.CodeSelfApplication)
	assertCounts(t, f.stored(t, b.ID), 0, 0)

	page, err := f.svc.ListBoardApplications(ctx, "author", b.ID)
	if err != nil {
		t.Fatal(err)
	}
	if page.Count != 0 {
		t.Errorf("applications = %d, want 0", page.Count)
	}
}

func TestCreateApplication_DuplicateAndReapply(t *testing.T) {
	f := newFixture(t)
	b := f.board(t, "author", "x")
	a := f.apply(t, "alice", b.ID)

	_, err := f.svc.CreateApplication(ctx, "alice", recruit.ApplicationInput{BoardID: b.ID, WantedText: "again"})
	assertConflict(t, err, recruit.CodeAlreadyApplied)
	assertCounts(t, f.stored(t, b.ID), 1, 0)

	if res, err := f.svc.DeleteApplication(ctx, "alice", b.ID, a.ID); err != nil || res != recruit.DeleteOK {
		t.Fatalf("withdraw = (%v, %v), want ok", res, err)
	}
	assertCounts(t, f.stored(t, b.ID), 0, 0)

	f.apply(t, "alice", b.ID)
	assertCounts(t, f.stored(t, b.ID), 1, 0)
}

func TestCreateApplication_Validation(t *testing.T) {
	f := newFixture(t)
	b := f.board(t, "author", "x")

	cases := map[string]recruit.ApplicationInput{
		"bad board id":   {BoardID: "abc", WantedText: "x"},
		"no wanted text": {BoardID: b.ID, WantedText: "   "},
		"empty board id": {WantedText: "x"},
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := f.svc.CreateApplication(ctx, "alice", in)
			if recruit.Classify(err) != recruit.OutcomeValidation {
				t.Errorf("err = %v, want validation", err)
			}
		})
	}

	_, err := f.svc.CreateApplication(ctx, "alice", recruit.ApplicationInput{
		BoardID: "00000000-0000-4000-8000-999999999999", WantedText: "x",
	})
	if !errors.Is(err, recruit.ErrNotFound) {
		t.Errorf("unknown board err = %v, want ErrNotFound", err)
	}
}

func TestCreateApplication_CompletedBoard(t *testing.T) {
	f := newFixture(t)
	b := f.board(t, "author", "x")
	if _, err := f.svc.CreateTeam(ctx, "author", b.ID, recruit.TeamInput{Name: "t", Content: "c"}); err != nil {
		t.Fatal(err)
	}
	_, err := f.svc.CreateApplication(ctx, "alice", recruit.ApplicationInput{BoardID: b.ID, WantedText: "late"})
	assertConflict(t, err, recruit.CodeBoardCompleted)
}

func TestCreateApplication_ContestFieldsOnlyForContest(t *testing.T) {
	f := newFixture(t)
	b := f.board(t, "author", "x")

	in := recruit.ApplicationInput{
		BoardID:       b.ID,
		WantedText:    "x",
		Kind:          "study",
		Position:      "backend",
		Portfolio:     "https://example.com",
		PortfolioText: "projects",
	}
	a, err := f.svc.CreateApplication(ctx, "alice", in)
	if err != nil {
		t.Fatal(err)
	}
	if a.Position != "" || a.Portfolio != "" || a.PortfolioText != "" {
		t.Errorf("study application kept contest fields: %+v", a)
	}

	in.Kind = "contest"
	a, err = f.svc.CreateApplication(ctx, "bob", in)
	if err != nil {
		t.Fatal(err)
	}
	if a.Position != "backend" || a.Portfolio != "https://example.com" || a.PortfolioText != "projects" {
		t.Errorf("contest application lost fields: %+v", a)
	}
}

// closingBoards reports every counter increment as unmatched, as if the
// board completed between the pre-check and the transaction.
type closingBoards struct{ recruit.BoardStore }

func (closingBoards) IncrementCounter(context.Context, string, recruit.CounterField, int) (bool, error) {
	return false, nil
}

type racingStore struct{ *memstore.Store }

func (s racingStore) Boards() recruit.BoardStore { return closingBoards{s.Store.Boards()} }

func (s racingStore) InTx(ctx context.Context, fn func(tx recruit.Store) error) error {
	return s.Store.InTx(ctx, func(tx recruit.Store) error {
		return fn(racingStore{tx.(*memstore.Store)})
	})
}

func TestCreateApplication_RollsBackWhenBoardCloses(t *testing.T) {
	f := newFixture(t)
	b := f.board(t, "author", "x")
	svc := recruit.NewService(racingStore{f.store}, f.counters, f.rec,
		recruit.WithClock(f.clock.Now), recruit.WithIDGenerator(sequentialIDs()))

	_, err := svc.CreateApplication(ctx, "alice", recruit.ApplicationInput{BoardID: b.ID, WantedText: "x"})
	assertConflict(t, err, recruit.CodeBoardCompleted)

	page, err := f.svc.ListApplications(ctx, "alice", recruit.ApplicationQuery{})
	if err != nil {
		t.Fatal(err)
	}
	if page.Count != 0 {
		t.Errorf("applications after rollback = %d, want 0", page.Count)
	}
	assertCounts(t, f.stored(t, b.ID), 0, 0)
}

// ── AcceptApplication ──────────────────────────────────────────────────────

func TestAcceptApplication_CountsStayConsistent(t *testing.T) {
	f := newFixture(t)
	b := f.board(t, "author", "x")

	var ids []string
	for _, who := range []string{"alice", "bob", "carol"} {
		ids = append(ids, f.apply(t, who, b.ID).ID)
		assertCounts(t, f.stored(t, b.ID), len(ids), 0)
	}
	for i, id := range ids[:2] {
		if err := f.svc.AcceptApplication(ctx, "author", b.ID, id); err != nil {
			t.Fatal(err)
		}
		assertCounts(t, f.stored(t, b.ID), 3, i+1)
	}

	// Accepting twice does not match the filter.
	if err := f.svc.AcceptApplication(ctx, "author", b.ID, ids[0]); !errors.Is(err, recruit.ErrNotFound) {
		t.Errorf("second accept err = %v, want ErrNotFound", err)
	}
	assertCounts(t, f.stored(t, b.ID), 3, 2)
}

func TestAcceptApplication_OnlyBoardOwner(t *testing.T) {
	f := newFixture(t)
	b := f.board(t, "author", "x")
	a := f.apply(t, "alice", b.ID)

	for _, caller := range []string{"alice", "mallory"} {
		if err := f.svc.AcceptApplication(ctx, caller, b.ID, a.ID); !errors.Is(err, recruit.ErrNotFound) {
			t.Errorf("accept by %s err = %v, want ErrNotFound", caller, err)
		}
	}
	other := f.board(t, "author", "other")
	if err := f.svc.AcceptApplication(ctx, "author", other.ID, a.ID); !errors.Is(err, recruit.ErrNotFound) {
		t.Errorf("accept through another board err = %v, want ErrNotFound", err)
	}
	assertCounts(t, f.stored(t, b.ID), 1, 0)
	if len(f.rec.Events()) != 0 {
		t.Errorf("events = %+v, want none", f.rec.Events())
	}
}

func TestAcceptApplication_NotifiesApplicant(t *testing.T) {
	f := newFixture(t)
	b := f.board(t, "author", "Go study")
	a := f.apply(t, "alice", b.ID)
	if err := f.svc.AcceptApplication(ctx, "author", b.ID, a.ID); err != nil {
		t.Fatal(err)
	}

	events := f.rec.Events()
	if len(events) != 1 {
		t.Fatalf("events = %d, want 1", len(events))
	}
	ev := events[0]
	if ev.Kind != recruit.EventApplicationAccepted || ev.RecipientID != "alice" || ev.ApplicationID != a.ID {
		t.Errorf("event = %+v", ev)
	}
	if ev.BoardTitle != "Go study" || ev.BoardKind != recruit.KindStudy || ev.BoardAuthorID != "author" {
		t.Errorf("board fields = %q/%q/%q", ev.BoardTitle, ev.BoardKind, ev.BoardAuthorID)
	}
	if !ev.At.Equal(f.clock.Now()) {
		t.Errorf("At = %v, want %v", ev.At, f.clock.Now())
	}
}

// ── DeleteApplication ──────────────────────────────────────────────────────

func TestDeleteApplication_ByBoardAuthor(t *testing.T) {
	f := newFixture(t)
	b := f.board(t, "author", "x")
	a := f.apply(t, "alice", b.ID)

	res, err := f.svc.DeleteApplication(ctx, "author", b.ID, a.ID)
	if err != nil || res != recruit.DeleteOK {
		t.Fatalf("remove = (%v, %v), want ok", res, err)
	}
	if got, _ := f.store.Application(a.ID); got.Active {
		t.Error("application still active")
	}
	assertCounts(t, f.stored(t, b.ID), 0, 0)
}

func TestDeleteApplication_Stranger(t *testing.T) {
	f := newFixture(t)
	b := f.board(t, "author", "x")
	a := f.apply(t, "alice", b.ID)

	res, err := f.svc.DeleteApplication(ctx, "mallory", b.ID, a.ID)
	if err != nil || res != recruit.DeleteNotFound {
		t.Errorf("delete by stranger = (%v, %v), want not_found", res, err)
	}
	res, err = f.svc.DeleteApplication(ctx, "alice", "00000000-0000-4000-8000-999999999999", a.ID)
	if err != nil || res != recruit.DeleteNotFound {
		t.Errorf("delete on unknown board = (%v, %v), want not_found", res, err)
	}
	if _, err := f.svc.DeleteApplication(ctx, "alice", b.ID, "nope"); recruit.Classify(err) != recruit.OutcomeValidation {
		t.Errorf("bad id err = %v, want validation", err)
	}
	assertCounts(t, f.stored(t, b.ID), 1, 0)
}

func TestDeleteApplication_AcceptedDecrementsBoth(t *testing.T) {
	f := newFixture(t)
	b := f.board(t, "author", "x")
	a := f.apply(t, "alice", b.ID)
	f.apply(t, "bob", b.ID)
	if err := f.svc.AcceptApplication(ctx, "author", b.ID, a.ID); err != nil {
		t.Fatal(err)
	}
	assertCounts(t, f.stored(t, b.ID), 2, 1)

	if res, err := f.svc.DeleteApplication(ctx, "alice", b.ID, a.ID); err != nil || res != recruit.DeleteOK {
		t.Fatalf("withdraw = (%v, %v), want ok", res, err)
	}
	assertCounts(t, f.stored(t, b.ID), 1, 0)
}

func TestDeleteApplication_BlockedOnCompletedBoard(t *testing.T) {
	f := newFixture(t)
	b := f.board(t, "author", "x")
	a := f.apply(t, "alice", b.ID)
	if _, err := f.svc.CreateTeam(ctx, "author", b.ID, recruit.TeamInput{Name: "t", Content: "c"}); err != nil {
		t.Fatal(err)
	}

	for _, caller := range []string{"alice", "author"} {
		res, err := f.svc.DeleteApplication(ctx, caller, b.ID, a.ID)
		if err != nil || res != recruit.DeleteBlocked {
			t.Errorf("delete by %s = (%v, %v), want blocked", caller, res, err)
		}
	}
	if got, _ := f.store.Application(a.ID); !got.Active {
		t.Error("blocked delete mutated the application")
	}
	assertCounts(t, f.stored(t, b.ID), 1, 0)
}

// teamFirstStore forms the board's team right before the first transaction
// it is asked to run, so the team commits between any pre-read the caller
// made and its own writes.
type teamFirstStore struct {
	*memstore.Store
	formTeam func()
}

func (s *teamFirstStore) InTx(ctx context.Context, fn func(tx recruit.Store) error) error {
	if s.formTeam != nil {
		s.formTeam()
		s.formTeam = nil
	}
	return s.Store.InTx(ctx, fn)
}

func TestDeleteApplication_TeamFormedMidCall(t *testing.T) {
	f := newFixture(t)
	b := f.board(t, "author", "x")
	a := f.apply(t, "alice", b.ID)

	store := &teamFirstStore{Store: f.store, formTeam: func() {
		if _, err := f.svc.CreateTeam(ctx, "author", b.ID, recruit.TeamInput{Name: "t", Content: "c"}); err != nil {
			t.Errorf("CreateTeam: %v", err)
		}
	}}
	svc := recruit.NewService(store, f.counters, f.rec, recruit.WithClock(f.clock.Now))

	res, err := svc.DeleteApplication(ctx, "alice", b.ID, a.ID)
	if err != nil || res != recruit.DeleteBlocked {
		t.Errorf("delete while the team forms = (%v, %v), want blocked", res, err)
	}
	if got, _ := f.store.Application(a.ID); !got.Active {
		t.Error("application withdrawn from a completed board")
	}
	assertCounts(t, f.stored(t, b.ID), 1, 0)
	teams := f.store.TeamsForBoard(b.ID)
	if len(teams) != 1 || len(teams[0].Members) != 1 || teams[0].Members[0].AccountID != "alice" {
		t.Errorf("teams = %+v, want alice as the only member", teams)
	}
}

func TestDeleteApplication_BlockedPastEndDate(t *testing.T) {
	f := newFixture(t)
	b := f.board(t, "author", "x")
	a := f.apply(t, "alice", b.ID)

	f.clock.Advance(7 * 24 * time.Hour)
	res, err := f.svc.DeleteApplication(ctx, "alice", b.ID, a.ID)
	if err != nil || res != recruit.DeleteBlocked {
		t.Errorf("delete at end date = (%v, %v), want blocked", res, err)
	}
	assertCounts(t, f.stored(t, b.ID), 1, 0)
}

// ── Listings ───────────────────────────────────────────────────────────────

func TestListApplications_MineAndReceived(t *testing.T) {
	f := newFixture(t)
	study := f.board(t, "author", "study")
	in := studyInput(f, "contest")
	in.Kind, in.Category = "contest", "idea"
	contest, err := f.svc.CreateBoard(ctx, "author", in)
	if err != nil {
		t.Fatal(err)
	}

	a1 := f.apply(t, "alice", study.ID)
	a2 := f.apply(t, "alice", contest.ID)
	f.apply(t, "bob", study.ID)
	if err := f.svc.AcceptApplication(ctx, "author", contest.ID, a2.ID); err != nil {
		t.Fatal(err)
	}

	mine, err := f.svc.ListApplications(ctx, "alice", recruit.ApplicationQuery{})
	if err != nil {
		t.Fatal(err)
	}
	if mine.Count != 2 || mine.List[0].ID != a2.ID || mine.List[1].ID != a1.ID {
		t.Errorf("alice's applications = %+v, want newest first", mine.List)
	}

	received, _ := f.svc.ListApplications(ctx, "author", recruit.ApplicationQuery{Status: recruit.StatusReceived})
	if received.Count != 3 {
		t.Errorf("received = %d, want 3", received.Count)
	}
	sent, _ := f.svc.ListApplications(ctx, "author", recruit.ApplicationQuery{})
	if sent.Count != 0 {
		t.Errorf("author's own applications = %d, want 0", sent.Count)
	}

	contests, _ := f.svc.ListApplications(ctx, "alice", recruit.ApplicationQuery{Kind: "contest"})
	if contests.Count != 1 || contests.List[0].ID != a2.ID {
		t.Errorf("contest filter = %+v", contests.List)
	}

	yes := true
	accepted, _ := f.svc.ListApplications(ctx, "author", recruit.ApplicationQuery{Status: recruit.StatusReceived, IsAccepted: &yes})
	if accepted.Count != 1 {
		t.Errorf("accepted = %d, want 1", accepted.Count)
	}

	paged, _ := f.svc.ListApplications(ctx, "author", recruit.ApplicationQuery{Status: recruit.StatusReceived, Offset: 1, Limit: 2})
	if paged.Count != 3 || len(paged.List) != 1 {
		t.Errorf("page 1 = %d items of %d, want 1 of 3", len(paged.List), paged.Count)
	}
}

func TestListApplications_ActiveFilter(t *testing.T) {
	f := newFixture(t)
	b := f.board(t, "author", "x")
	a := f.apply(t, "alice", b.ID)
	if _, err := f.svc.DeleteApplication(ctx, "alice", b.ID, a.ID); err != nil {
		t.Fatal(err)
	}
	f.apply(t, "alice", b.ID)

	all, _ := f.svc.ListApplications(ctx, "alice", recruit.ApplicationQuery{})
	yes := true
	active, _ := f.svc.ListApplications(ctx, "alice", recruit.ApplicationQuery{Active: &yes})
	if all.Count != 2 || active.Count != 1 {
		t.Errorf("all/active = %d/%d, want 2/1", all.Count, active.Count)
	}
}

func TestListBoardApplications_OwnerOnly(t *testing.T) {
	f := newFixture(t)
	b := f.board(t, "author", "x")
	f.apply(t, "alice", b.ID)
	f.apply(t, "bob", b.ID)

	page, err := f.svc.ListBoardApplications(ctx, "author", b.ID)
	if err != nil {
		t.Fatal(err)
	}
	if page.Count != 2 || len(page.List) != 2 {
		t.Errorf("owner sees %d, want 2", page.Count)
	}

	page, err = f.svc.ListBoardApplications(ctx, "alice", b.ID)
	if err != nil {
		t.Fatal(err)
	}
	if page.Count != 0 || page.List == nil {
		t.Errorf("non-owner sees %+v, want empty list", page)
	}

	if _, err := f.svc.ListBoardApplications(ctx, "author", "x"); recruit.Classify(err) != recruit.OutcomeValidation {
		t.Errorf("bad id err = %v, want validation", err)
	}
}

// ── Count invariants ───────────────────────────────────────────────────────

// recount derives both counters from the stored applications of a board.
func recount(t *testing.T, f *fixture, boardID string) (apps, accepted int) {
	t.Helper()
	page, err := f.svc.ListBoardApplications(ctx, "author", boardID)
	if err != nil {
		t.Fatal(err)
	}
	for _, a := range page.List {
		if !a.Active {
			continue
		}
		apps++
		if a.IsAccepted {
			accepted++
		}
	}
	return apps, accepted
}

func TestCounts_HoldAcrossMixedSequence(t *testing.T) {
	f := newFixture(t)
	boards := []string{f.board(t, "author", "one").ID, f.board(t, "author", "two").ID}
	applicants := []string{"alice", "bob", "carol", "dave", "erin"}
	rng := rand.New(rand.NewPCG(7, 11))

	var apps []*recruit.Application
	for step := 0; step < 400; step++ {
		boardID := boards[rng.IntN(len(boards))]
		var (
			op  string
			err error
		)
		switch n := rng.IntN(10); {
		case n < 4 || len(apps) == 0:
			op = "create"
			var a *recruit.Application
			a, err = f.svc.CreateApplication(ctx, applicants[rng.IntN(len(applicants))],
				recruit.ApplicationInput{BoardID: boardID, WantedText: "x"})
			if err == nil {
				apps = append(apps, a)
			}
		case n < 7:
			op = "accept"
			a := apps[rng.IntN(len(apps))]
			err = f.svc.AcceptApplication(ctx, "author", a.BoardID, a.ID)
		default:
			op = "delete"
			a := apps[rng.IntN(len(apps))]
			caller := a.ApplicantID
			if rng.IntN(2) == 0 {
				caller = "author"
			}
			var res recruit.DeleteResult
			res, err = f.svc.DeleteApplication(ctx, caller, a.BoardID, a.ID)
			if err == nil && res == recruit.DeleteBlocked {
				t.Fatalf("step %d: delete blocked on an open board", step)
			}
		}
		if recruit.Classify(err) == recruit.OutcomeInternal || recruit.Classify(err) == recruit.OutcomeValidation {
			t.Fatalf("step %d %s: %v", step, op, err)
		}

		for _, id := range boards {
			b := f.stored(t, id)
			wantApps, wantAccepted := recount(t, f, id)
			if b.ApplicationCnt != wantApps || b.AcceptCnt != wantAccepted {
				t.Fatalf("step %d %s: board %s counts %d/%d, rows say %d/%d",
					step, op, id, b.ApplicationCnt, b.AcceptCnt, wantApps, wantAccepted)
			}
			if b.AcceptCnt > b.ApplicationCnt {
				t.Fatalf("step %d %s: acceptCnt %d exceeds applicationCnt %d", step, op, b.AcceptCnt, b.ApplicationCnt)
			}
		}
	}
}
