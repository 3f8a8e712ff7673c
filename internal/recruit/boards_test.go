package recruit_test

import (
	"errors"
	"testing"
	"time"

	"github.com/kibanana/geteam-http-api/internal/recruit"
)

// ── CreateBoard ────────────────────────────────────────────────────────────

func TestCreateBoard_StrictValidation(t *testing.T) {
	f := newFixture(t)
	cases := map[string]func(in *recruit.BoardInput){
		"kind all":         func(in *recruit.BoardInput) { in.Kind = "all" },
		"unknown kind":     func(in *recruit.BoardInput) { in.Kind = "hackathon" },
		"idea for study":   func(in *recruit.BoardInput) { in.Category = "idea" },
		"unknown category": func(in *recruit.BoardInput) { in.Category = "cooking" },
		"blank title":      func(in *recruit.BoardInput) { in.Title = "  " },
		"blank topic":      func(in *recruit.BoardInput) { in.Topic = "" },
		"blank content":    func(in *recruit.BoardInput) { in.Content = "" },
		"zero wantCnt":     func(in *recruit.BoardInput) { in.WantCnt = 0 },
		"missing end date": func(in *recruit.BoardInput) { in.EndDate = time.Time{} },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			in := studyInput(f, "x")
			mutate(&in)
			_, err := f.svc.CreateBoard(ctx, "author", in)
			if recruit.Classify(err) != recruit.OutcomeValidation {
				t.Errorf("err = %v, want validation error", err)
			}
		})
	}
}

func TestCreateBoard_ContestPositions(t *testing.T) {
	f := newFixture(t)
	two := 2
	positions := []recruit.Position{
		{Title: "backend", Description: "go", Cnt: &two},
		{Title: "frontend"},
		{Description: "orphan"},
	}

	in := studyInput(f, "contest")
	in.Kind, in.Category, in.Positions = "contest", "idea", positions
	b, err := f.svc.CreateBoard(ctx, "author", in)
	if err != nil {
		t.Fatal(err)
	}
	if len(b.Positions) != 1 || b.Positions[0].Title != "backend" || *b.Positions[0].Cnt != 2 {
		t.Errorf("contest positions = %+v, want only backend", b.Positions)
	}

	in = studyInput(f, "study")
	in.Positions = positions
	b, err = f.svc.CreateBoard(ctx, "author", in)
	if err != nil {
		t.Fatal(err)
	}
	if len(b.Positions) != 0 {
		t.Errorf("study positions = %+v, want none", b.Positions)
	}
}

func TestCreateBoard_OpenBoardLimit(t *testing.T) {
	f := newFixture(t)
	for i := 0; i < recruit.DefaultMaxOpenBoards; i++ {
		f.board(t, "author", "b")
	}
	_, err := f.svc.CreateBoard(ctx, "author", studyInput(f, "one too many"))
	assertConflict(t, err, recruit.CodeExceedLimit)

	// Other authors are unaffected.
	f.board(t, "someone-else", "b")

	// Boards past their end date no longer count.
	f.clock.Advance(8 * 24 * time.Hour)
	f.board(t, "author", "after expiry")
}

func TestCreateBoard_LimitDisabled(t *testing.T) {
	f := newFixture(t, recruit.WithLimits(recruit.Limits{}))
	for i := 0; i < recruit.DefaultMaxOpenBoards+2; i++ {
		f.board(t, "author", "b")
	}
}

// ── UpdateBoard / DeleteBoard ──────────────────────────────────────────────

func TestUpdateBoard_FrozenAfterAccept(t *testing.T) {
	f := newFixture(t)
	b := f.board(t, "author", "before")

	in := studyInput(f, "after")
	if err := f.svc.UpdateBoard(ctx, "author", b.ID, in); err != nil {
		t.Fatalf("UpdateBoard: %v", err)
	}
	if got := f.stored(t, b.ID).Title; got != "after" {
		t.Errorf("title = %q, want after", got)
	}

	if err := f.svc.UpdateBoard(ctx, "mallory", b.ID, in); !errors.Is(err, recruit.ErrNotFound) {
		t.Errorf("update by stranger err = %v, want ErrNotFound", err)
	}

	a := f.apply(t, "alice", b.ID)
	if err := f.svc.AcceptApplication(ctx, "author", b.ID, a.ID); err != nil {
		t.Fatal(err)
	}
	in.Title = "frozen"
	if err := f.svc.UpdateBoard(ctx, "author", b.ID, in); !errors.Is(err, recruit.ErrNotFound) {
		t.Errorf("update after accept err = %v, want ErrNotFound", err)
	}
	if got := f.stored(t, b.ID).Title; got != "after" {
		t.Errorf("title = %q, want unchanged", got)
	}
}

func TestDeleteBoard(t *testing.T) {
	f := newFixture(t)
	b := f.board(t, "author", "x")

	if err := f.svc.DeleteBoard(ctx, "mallory", b.ID); !errors.Is(err, recruit.ErrNotFound) {
		t.Errorf("delete by stranger err = %v, want ErrNotFound", err)
	}
	if err := f.svc.DeleteBoard(ctx, "author", b.ID); err != nil {
		t.Fatalf("DeleteBoard: %v", err)
	}
	if _, err := f.svc.GetBoard(ctx, b.ID, ""); !errors.Is(err, recruit.ErrNotFound) {
		t.Errorf("GetBoard after delete err = %v, want ErrNotFound", err)
	}
	_, err := f.svc.CreateApplication(ctx, "alice", recruit.ApplicationInput{BoardID: b.ID, WantedText: "x"})
	if !errors.Is(err, recruit.ErrNotFound) {
		t.Errorf("apply to deleted board err = %v, want ErrNotFound", err)
	}
}

// ── GetBoard ───────────────────────────────────────────────────────────────

func TestGetBoard_HitIncrementsEveryCall(t *testing.T) {
	f := newFixture(t)
	b := f.board(t, "author", "x")

	for i := 1; i <= 5; i++ {
		view, err := f.svc.GetBoard(ctx, b.ID, "same-viewer")
		if err != nil {
			t.Fatal(err)
		}
		if view.Board.Hit != i {
			t.Errorf("call %d: returned hit = %d, want %d", i, view.Board.Hit, i)
		}
	}
	if got := f.stored(t, b.ID).Hit; got != 5 {
		t.Errorf("stored hit = %d, want 5", got)
	}
}

func TestGetBoard_ViewerFlags(t *testing.T) {
	f := newFixture(t)
	b := f.board(t, "author", "x")

	anon, err := f.svc.GetBoard(ctx, b.ID, "")
	if err != nil {
		t.Fatal(err)
	}
	if anon.IsApplied != nil || anon.IsAccepted != nil {
		t.Error("anonymous view should carry no flags")
	}

	a := f.apply(t, "alice", b.ID)
	view, _ := f.svc.GetBoard(ctx, b.ID, "alice")
	if !*view.IsApplied || *view.IsAccepted {
		t.Errorf("flags = %v/%v, want applied, not accepted", *view.IsApplied, *view.IsAccepted)
	}

	if err := f.svc.AcceptApplication(ctx, "author", b.ID, a.ID); err != nil {
		t.Fatal(err)
	}
	view, _ = f.svc.GetBoard(ctx, b.ID, "alice")
	if !*view.IsApplied || !*view.IsAccepted {
		t.Errorf("flags = %v/%v, want applied and accepted", *view.IsApplied, *view.IsAccepted)
	}

	other, _ := f.svc.GetBoard(ctx, b.ID, "bob")
	if *other.IsApplied || *other.IsAccepted {
		t.Error("bob has not applied")
	}
}

func TestGetBoard_InvalidID(t *testing.T) {
	f := newFixture(t)
	if _, err := f.svc.GetBoard(ctx, "abc", ""); recruit.Classify(err) != recruit.OutcomeValidation {
		t.Errorf("err = %v, want validation", err)
	}
	if _, err := f.svc.GetBoard(ctx, "00000000-0000-4000-8000-999999999999", ""); !errors.Is(err, recruit.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

// ── ListBoards ─────────────────────────────────────────────────────────────

func titles(p *recruit.BoardPage) []string {
	out := make([]string, 0, len(p.List))
	for _, b := range p.List {
		out = append(out, b.Title)
	}
	return out
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestListBoards_SortOrders(t *testing.T) {
	f := newFixture(t)
	hits := map[string]int{"b": 2, "a": 2, "c": 5}
	for _, title := range []string{"b", "a", "c"} {
		board := f.board(t, "author", title)
		for i := 0; i < hits[title]; i++ {
			if _, err := f.svc.GetBoard(ctx, board.ID, ""); err != nil {
				t.Fatal(err)
			}
		}
	}

	cases := []struct {
		order string
		want  []string
	}{
		{"hit", []string{"c", "a", "b"}},
		{"title", []string{"c", "b", "a"}},
		// Same createdAt everywhere: the ascending title tiebreak decides.
		{"createdAt", []string{"a", "b", "c"}},
		{"", []string{"a", "b", "c"}},
	}
	for _, tc := range cases {
		page, err := f.svc.ListBoards(ctx, recruit.BoardQuery{Order: tc.order})
		if err != nil {
			t.Fatalf("order %q: %v", tc.order, err)
		}
		if got := titles(page); !equal(got, tc.want) {
			t.Errorf("order %q = %v, want %v", tc.order, got, tc.want)
		}
	}

	_, err := f.svc.ListBoards(ctx, recruit.BoardQuery{Order: "bogus"})
	if !errors.Is(err, recruit.ErrUnsortableField) {
		t.Errorf("bogus order err = %v, want ErrUnsortableField", err)
	}
}

func TestListBoards_VisibilityAndFilters(t *testing.T) {
	f := newFixture(t)
	f.board(t, "author", "open study")

	expired := studyInput(f, "expired")
	expired.EndDate = f.clock.Now().Add(-time.Hour)
	if _, err := f.svc.CreateBoard(ctx, "author", expired); err != nil {
		t.Fatal(err)
	}

	contest := studyInput(f, "open contest")
	contest.Kind, contest.Category = "contest", "idea"
	if _, err := f.svc.CreateBoard(ctx, "other", contest); err != nil {
		t.Fatal(err)
	}

	cases := []struct {
		name string
		q    recruit.BoardQuery
		want int
	}{
		{"anonymous", recruit.BoardQuery{}, 2},
		{"author sees own expired", recruit.BoardQuery{ViewerID: "author"}, 3},
		{"stranger", recruit.BoardQuery{ViewerID: "other"}, 2},
		{"kind study", recruit.BoardQuery{Kind: "study"}, 1},
		{"unknown kind widens", recruit.BoardQuery{Kind: "whatever"}, 2},
		{"category idea", recruit.BoardQuery{Kind: "contest", Category: "idea"}, 1},
		{"category defaulted", recruit.BoardQuery{Kind: "study", Category: "idea"}, 1},
		{"all kinds ignore category", recruit.BoardQuery{Kind: "all", Category: "design"}, 2},
		{"unknown kind ignores category", recruit.BoardQuery{Kind: "whatever", Category: "idea"}, 2},
		{"search", recruit.BoardQuery{SearchText: "CONTEST"}, 1},
	}
	for _, tc := range cases {
		page, err := f.svc.ListBoards(ctx, tc.q)
		if err != nil {
			t.Fatalf("%s: %v", tc.name, err)
		}
		if page.Count != tc.want || len(page.List) != tc.want {
			t.Errorf("%s: count=%d len=%d, want %d", tc.name, page.Count, len(page.List), tc.want)
		}
	}
}

func TestListBoards_EndDateBoundary(t *testing.T) {
	f := newFixture(t)
	in := studyInput(f, "ends now")
	in.EndDate = f.clock.Now()
	if _, err := f.svc.CreateBoard(ctx, "author", in); err != nil {
		t.Fatal(err)
	}

	// Visible only while the end date is strictly in the future.
	if page, _ := f.svc.ListBoards(ctx, recruit.BoardQuery{}); page.Count != 0 {
		t.Errorf("anonymous count = %d, want 0", page.Count)
	}
	if page, _ := f.svc.ListBoards(ctx, recruit.BoardQuery{ViewerID: "author"}); page.Count != 1 {
		t.Errorf("author count = %d, want 1", page.Count)
	}
}

func TestListBoards_Pagination(t *testing.T) {
	f := newFixture(t, recruit.WithLimits(recruit.Limits{}))
	for _, title := range []string{"a", "b", "c", "d", "e"} {
		f.board(t, "author", title)
	}

	page, err := f.svc.ListBoards(ctx, recruit.BoardQuery{Order: "title", Offset: 1, Limit: 2})
	if err != nil {
		t.Fatal(err)
	}
	if page.Count != 5 {
		t.Errorf("count = %d, want 5", page.Count)
	}
	if got := titles(page); !equal(got, []string{"c", "b"}) {
		t.Errorf("page = %v, want [c b]", got)
	}

	page, _ = f.svc.ListBoards(ctx, recruit.BoardQuery{Offset: 9})
	if page.List == nil || len(page.List) != 0 {
		t.Errorf("past-the-end page = %v, want empty non-nil", page.List)
	}
}

func TestListBoards_HidesCompleted(t *testing.T) {
	f := newFixture(t)
	b := f.board(t, "author", "x")
	if _, err := f.svc.CreateTeam(ctx, "author", b.ID, recruit.TeamInput{Name: "t", Content: "c"}); err != nil {
		t.Fatal(err)
	}
	page, _ := f.svc.ListBoards(ctx, recruit.BoardQuery{ViewerID: "author"})
	if page.Count != 0 {
		t.Errorf("count = %d, want 0", page.Count)
	}
}
