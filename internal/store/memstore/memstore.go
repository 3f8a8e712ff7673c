// Package memstore is an in-process implementation of recruit.Store and
// recruit.Counters. It backs the test suites and local runs without
// PostgreSQL or Redis.
//
// Transactions are serialized on a single mutex and roll back by restoring a
// snapshot taken when the transaction began.
package memstore

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/kibanana/geteam-http-api/internal/recruit"
)

type data struct {
	boards map[string]recruit.Board
	apps   map[string]recruit.Application
	teams  map[string]recruit.Team
	seq    map[string]int
	next   int
}

func newData() *data {
	return &data{
		boards: make(map[string]recruit.Board),
		apps:   make(map[string]recruit.Application),
		teams:  make(map[string]recruit.Team),
		seq:    make(map[string]int),
	}
}

func (d *data) clone() data {
	c := data{
		boards: make(map[string]recruit.Board, len(d.boards)),
		apps:   make(map[string]recruit.Application, len(d.apps)),
		teams:  make(map[string]recruit.Team, len(d.teams)),
		seq:    make(map[string]int, len(d.seq)),
		next:   d.next,
	}
	for k, v := range d.boards {
		c.boards[k] = v
	}
	for k, v := range d.apps {
		c.apps[k] = v
	}
	for k, v := range d.teams {
		c.teams[k] = v
	}
	for k, v := range d.seq {
		c.seq[k] = v
	}
	return c
}

func (d *data) stamp(id string) {
	d.next++
	d.seq[id] = d.next
}

// Store implements recruit.Store and recruit.CountRepairer.
type Store struct {
	mu   *sync.Mutex
	d    *data
	inTx bool
}

// New returns an empty Store.
func New() *Store {
	return &Store{mu: &sync.Mutex{}, d: newData()}
}

func (s *Store) lock() func() {
	if s.inTx {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

// Boards implements recruit.Store.
func (s *Store) Boards() recruit.BoardStore { return boardStore{s} }

// Applications implements recruit.Store.
func (s *Store) Applications() recruit.ApplicationStore { return applicationStore{s} }

// Teams implements recruit.Store.
func (s *Store) Teams() recruit.TeamStore { return teamStore{s} }

// InTx implements recruit.Store.
func (s *Store) InTx(ctx context.Context, fn func(tx recruit.Store) error) error {
	if s.inTx {
		return fn(s)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.d.clone()
	if err := fn(&Store{mu: s.mu, d: s.d, inTx: true}); err != nil {
		*s.d = snapshot
		return err
	}
	return nil
}

// RepairCounts implements recruit.CountRepairer.
func (s *Store) RepairCounts(ctx context.Context) (int64, error) {
	defer s.lock()()

	type tally struct{ apps, accepted int }
	counts := make(map[string]tally)
	for _, a := range s.d.apps {
		if !a.Active {
			continue
		}
		t := counts[a.BoardID]
		t.apps++
		if a.IsAccepted {
			t.accepted++
		}
		counts[a.BoardID] = t
	}

	var fixed int64
	for id, b := range s.d.boards {
		t := counts[id]
		if b.ApplicationCnt == t.apps && b.AcceptCnt == t.accepted {
			continue
		}
		b.ApplicationCnt, b.AcceptCnt = t.apps, t.accepted
		b.UpdatedAt = time.Now()
		s.d.boards[id] = b
		fixed++
	}
	return fixed, nil
}

// ─── Inspection helpers ──────────────────────────────────────────────────────

// PutBoard stores b as-is, replacing any board with the same id.
func (s *Store) PutBoard(b recruit.Board) {
	defer s.lock()()
	if _, ok := s.d.boards[b.ID]; !ok {
		s.d.stamp(b.ID)
	}
	s.d.boards[b.ID] = b
}

// Board returns a copy of the board with id.
func (s *Store) Board(id string) (recruit.Board, bool) {
	defer s.lock()()
	b, ok := s.d.boards[id]
	return b, ok
}

// Application returns a copy of the application with id.
func (s *Store) Application(id string) (recruit.Application, bool) {
	defer s.lock()()
	a, ok := s.d.apps[id]
	return a, ok
}

// TeamsForBoard returns every team formed from boardID.
func (s *Store) TeamsForBoard(boardID string) []recruit.Team {
	defer s.lock()()
	var out []recruit.Team
	for _, t := range s.d.teams {
		if t.BoardID == boardID {
			out = append(out, t)
		}
	}
	return out
}

// ─── Boards ──────────────────────────────────────────────────────────────────

type boardStore struct{ s *Store }

func (bs boardStore) Insert(ctx context.Context, b *recruit.Board) (string, error) {
	defer bs.s.lock()()
	bs.s.d.stamp(b.ID)
	bs.s.d.boards[b.ID] = *b
	return b.ID, nil
}

func (bs boardStore) FindByID(ctx context.Context, id string) (*recruit.Board, error) {
	defer bs.s.lock()()
	b, ok := bs.s.d.boards[id]
	if !ok {
		return nil, recruit.ErrNotFound
	}
	return &b, nil
}

// LockByID is FindByID: inside InTx the store mutex is already held for the
// whole transaction.
func (bs boardStore) LockByID(ctx context.Context, id string) (*recruit.Board, error) {
	return bs.FindByID(ctx, id)
}

func (bs boardStore) FindActive(ctx context.Context, f recruit.BoardFilter, p recruit.Page) ([]recruit.Board, int, error) {
	defer bs.s.lock()()

	search := strings.ToLower(f.SearchText)
	var list []recruit.Board
	for _, b := range bs.s.d.boards {
		if !b.Active || b.IsCompleted {
			continue
		}
		if !b.EndDate.After(f.Now) && (f.ViewerID == "" || b.AuthorID != f.ViewerID) {
			continue
		}
		if f.Kind != "" && f.Kind != recruit.KindAll && b.Kind != f.Kind {
			continue
		}
		if f.Category != "" && b.Category != f.Category {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(b.Topic+" "+b.Title+" "+b.Content), search) {
			continue
		}
		list = append(list, b)
	}

	seq := bs.s.d.seq
	sort.SliceStable(list, func(i, j int) bool {
		for _, k := range p.Order {
			if c := compareBoards(list[i], list[j], k.Field); c != 0 {
				return (c < 0) != k.Desc
			}
		}
		return seq[list[i].ID] < seq[list[j].ID]
	})

	return paginate(list, p), len(list), nil
}

func compareBoards(a, b recruit.Board, field string) int {
	switch field {
	case recruit.SortCreatedAt:
		return a.CreatedAt.Compare(b.CreatedAt)
	case recruit.SortEndDay:
		return a.EndDate.Compare(b.EndDate)
	case recruit.SortHit:
		return a.Hit - b.Hit
	case recruit.SortTitle:
		return strings.Compare(a.Title, b.Title)
	}
	return 0
}

func (bs boardStore) IncrementCounter(ctx context.Context, id string, field recruit.CounterField, delta int) (bool, error) {
	defer bs.s.lock()()
	b, ok := bs.s.d.boards[id]
	if !ok {
		return false, nil
	}
	if delta > 0 {
		switch field {
		case recruit.FieldHit:
			if !b.Active {
				return false, nil
			}
		default:
			if !b.Active || b.IsCompleted {
				return false, nil
			}
		}
	}

	switch field {
	case recruit.FieldApplicationCnt:
		b.ApplicationCnt += delta
	case recruit.FieldAcceptCnt:
		b.AcceptCnt += delta
	case recruit.FieldHit:
		b.Hit += delta
	default:
		return false, nil
	}
	b.UpdatedAt = time.Now()
	bs.s.d.boards[id] = b
	return true, nil
}

func (bs boardStore) ConditionalUpdate(ctx context.Context, id, ownerID string, u recruit.BoardUpdate) (bool, error) {
	defer bs.s.lock()()
	b, ok := bs.s.d.boards[id]
	if !ok || !b.Active || b.AuthorID != ownerID || b.AcceptCnt > 0 {
		return false, nil
	}
	b.Kind, b.Category = u.Kind, u.Category
	b.Topic, b.Title, b.Content = u.Topic, u.Title, u.Content
	b.Positions = append([]recruit.Position(nil), u.Positions...)
	b.WantCnt, b.EndDate = u.WantCnt, u.EndDate
	b.UpdatedAt = time.Now()
	bs.s.d.boards[id] = b
	return true, nil
}

func (bs boardStore) SoftDelete(ctx context.Context, id, ownerID string) (bool, error) {
	defer bs.s.lock()()
	b, ok := bs.s.d.boards[id]
	if !ok || b.AuthorID != ownerID {
		return false, nil
	}
	b.Active = false
	b.UpdatedAt = time.Now()
	bs.s.d.boards[id] = b
	return true, nil
}

func (bs boardStore) MarkCompleted(ctx context.Context, id, ownerID string) (bool, error) {
	defer bs.s.lock()()
	b, ok := bs.s.d.boards[id]
	if !ok || !b.Active || b.AuthorID != ownerID || b.IsCompleted {
		return false, nil
	}
	b.IsCompleted = true
	b.UpdatedAt = time.Now()
	bs.s.d.boards[id] = b
	return true, nil
}

func (bs boardStore) CountByAuthor(ctx context.Context, authorID string, scope recruit.BoardCountScope, now time.Time) (int, error) {
	defer bs.s.lock()()
	n := 0
	for _, b := range bs.s.d.boards {
		if b.AuthorID != authorID {
			continue
		}
		switch scope {
		case recruit.CountOpen:
			if b.Active && !b.IsCompleted && b.EndDate.After(now) {
				n++
			}
		case recruit.CountCompleted:
			if b.IsCompleted {
				n++
			}
		}
	}
	return n, nil
}

// ─── Applications ────────────────────────────────────────────────────────────

type applicationStore struct{ s *Store }

func (as applicationStore) Insert(ctx context.Context, a *recruit.Application) (string, error) {
	defer as.s.lock()()
	for _, other := range as.s.d.apps {
		if other.Active && other.ApplicantID == a.ApplicantID && other.BoardID == a.BoardID {
			return "", recruit.ErrDuplicate
		}
	}
	as.s.d.stamp(a.ID)
	as.s.d.apps[a.ID] = *a
	return a.ID, nil
}

func (as applicationStore) FindByID(ctx context.Context, id string) (*recruit.Application, error) {
	defer as.s.lock()()
	a, ok := as.s.d.apps[id]
	if !ok {
		return nil, recruit.ErrNotFound
	}
	return &a, nil
}

func (as applicationStore) CountActiveByApplicantAndBoard(ctx context.Context, applicantID, boardID string) (int, error) {
	defer as.s.lock()()
	n := 0
	for _, a := range as.s.d.apps {
		if a.Active && a.ApplicantID == applicantID && a.BoardID == boardID {
			n++
		}
	}
	return n, nil
}

func (as applicationStore) FindAcceptedFlag(ctx context.Context, applicantID, boardID string) (bool, error) {
	defer as.s.lock()()
	for _, a := range as.s.d.apps {
		if a.Active && a.IsAccepted && a.ApplicantID == applicantID && a.BoardID == boardID {
			return true, nil
		}
	}
	return false, nil
}

func (as applicationStore) ConditionalSetAccepted(ctx context.Context, id, boardID, authorID string) (bool, error) {
	defer as.s.lock()()
	a, ok := as.s.d.apps[id]
	if !ok || a.BoardID != boardID || a.AuthorID != authorID || !a.Active || a.IsAccepted {
		return false, nil
	}
	now := time.Now()
	a.IsAccepted = true
	a.AcceptedAt = &now
	a.UpdatedAt = now
	as.s.d.apps[id] = a
	return true, nil
}

func (as applicationStore) ConditionalSoftDelete(ctx context.Context, id, boardID, callerID string) (bool, bool, error) {
	defer as.s.lock()()
	a, ok := as.s.d.apps[id]
	if !ok || a.BoardID != boardID || !a.Active || (a.ApplicantID != callerID && a.AuthorID != callerID) {
		return false, false, nil
	}
	a.Active = false
	a.UpdatedAt = time.Now()
	as.s.d.apps[id] = a
	return true, a.IsAccepted, nil
}

func (as applicationStore) FindList(ctx context.Context, f recruit.ApplicationFilter, p recruit.Page) ([]recruit.Application, int, error) {
	defer as.s.lock()()

	// No joins here: resolve the kind filter to a board-id set first, then
	// filter applications against it.
	var boardsOfKind map[string]bool
	if f.Kind != "" && f.Kind != recruit.KindAll {
		boardsOfKind = make(map[string]bool)
		for id, b := range as.s.d.boards {
			if b.Kind == f.Kind {
				boardsOfKind[id] = true
			}
		}
	}

	var list []recruit.Application
	for _, a := range as.s.d.apps {
		switch {
		case f.ApplicantID != "" && a.ApplicantID != f.ApplicantID,
			f.AuthorID != "" && a.AuthorID != f.AuthorID,
			f.BoardID != "" && a.BoardID != f.BoardID,
			f.IsAccepted != nil && a.IsAccepted != *f.IsAccepted,
			f.Active != nil && a.Active != *f.Active,
			boardsOfKind != nil && !boardsOfKind[a.BoardID]:
			continue
		}
		list = append(list, a)
	}

	desc := len(p.Order) > 0 && p.Order[0].Desc
	seq := as.s.d.seq
	sort.SliceStable(list, func(i, j int) bool {
		if c := list[i].CreatedAt.Compare(list[j].CreatedAt); c != 0 {
			return (c < 0) != desc
		}
		return (seq[list[i].ID] < seq[list[j].ID]) != desc
	})

	return paginate(list, p), len(list), nil
}

// ─── Teams ───────────────────────────────────────────────────────────────────

type teamStore struct{ s *Store }

func (ts teamStore) Insert(ctx context.Context, t *recruit.Team) (string, error) {
	defer ts.s.lock()()
	for _, other := range ts.s.d.teams {
		if other.BoardID == t.BoardID {
			return "", recruit.ErrDuplicate
		}
	}
	ts.s.d.stamp(t.ID)
	ts.s.d.teams[t.ID] = *t
	return t.ID, nil
}

func paginate[T any](list []T, p recruit.Page) []T {
	if p.Skip >= len(list) {
		return []T{}
	}
	list = list[p.Skip:]
	if p.Limit > 0 && p.Limit < len(list) {
		list = list[:p.Limit]
	}
	return list
}

// ─── Counters ────────────────────────────────────────────────────────────────

// Counters implements recruit.Counters in memory.
type Counters struct {
	mu sync.Mutex
	m  map[string]int64
}

// NewCounters returns zeroed Counters.
func NewCounters() *Counters {
	return &Counters{m: make(map[string]int64)}
}

// Increment implements recruit.Counters.
func (c *Counters) Increment(ctx context.Context, name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m[name]++
	return nil
}

// Get implements recruit.Counters.
func (c *Counters) Get(ctx context.Context, name string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.m[name], nil
}
