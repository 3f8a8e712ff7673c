package recruit

import (
	"context"
	"errors"
	"strings"
	"time"
)

// BoardInput is the owner-supplied content of a board.
type BoardInput struct {
	Kind      string     `json:"kind"`
	Category  string     `json:"category"`
	Topic     string     `json:"topic"`
	Title     string     `json:"title"`
	Content   string     `json:"content"`
	Positions []Position `json:"positions"`
	WantCnt   int        `json:"wantCnt"`
	EndDate   time.Time  `json:"endDate"`
}

// BoardQuery is a board listing request.
type BoardQuery struct {
	Kind       string
	Category   string
	SearchText string
	Order      string
	Offset     int
	Limit      int
	ViewerID   string
}

// toUpdate validates in. Board writes are strict: kind must be a concrete
// board kind and the category must belong to it verbatim.
func (in BoardInput) toUpdate() (BoardUpdate, error) {
	kind := ValidateKind(in.Kind)
	if kind == KindAll || string(kind) != in.Kind {
		return BoardUpdate{}, &ValidationError{Msg: "kind must be study or contest"}
	}
	if !IsCategoryAllowed(kind, in.Category) {
		return BoardUpdate{}, &ValidationError{Msg: "category is not allowed for kind " + string(kind)}
	}
	switch {
	case strings.TrimSpace(in.Topic) == "":
		return BoardUpdate{}, &ValidationError{Msg: "topic is required"}
	case strings.TrimSpace(in.Title) == "":
		return BoardUpdate{}, &ValidationError{Msg: "title is required"}
	case strings.TrimSpace(in.Content) == "":
		return BoardUpdate{}, &ValidationError{Msg: "content is required"}
	case in.WantCnt < 1:
		return BoardUpdate{}, &ValidationError{Msg: "wantCnt must be positive"}
	case in.EndDate.IsZero():
		return BoardUpdate{}, &ValidationError{Msg: "endDate is required"}
	}

	return BoardUpdate{
		Kind:      kind,
		Category:  Category(in.Category),
		Topic:     in.Topic,
		Title:     in.Title,
		Content:   in.Content,
		Positions: keepPositions(kind, in.Positions),
		WantCnt:   in.WantCnt,
		EndDate:   in.EndDate,
	}, nil
}

// keepPositions returns the positions a board of kind stores: contest boards
// keep entries that have both a title and a description, other kinds none.
func keepPositions(kind Kind, in []Position) []Position {
	out := make([]Position, 0, len(in))
	if kind != KindContest {
		return out
	}
	for _, p := range in {
		if p.Title != "" && p.Description != "" {
			out = append(out, p)
		}
	}
	return out
}

// CreateBoard inserts a new open board owned by authorID.
func (s *Service) CreateBoard(ctx context.Context, authorID string, in BoardInput) (*Board, error) {
	u, err := in.toUpdate()
	if err != nil {
		return nil, err
	}

	now := s.now()
	if s.limits.MaxOpenBoards > 0 {
		n, err := s.store.Boards().CountByAuthor(ctx, authorID, CountOpen, now)
		if err != nil {
			return nil, s.fail("createBoard count", err)
		}
		if n >= s.limits.MaxOpenBoards {
			return nil, conflict(CodeExceedLimit, "at most %d open boards per author", s.limits.MaxOpenBoards)
		}
	}

	b := &Board{
		ID:        s.newID(),
		AuthorID:  authorID,
		Kind:      u.Kind,
		Category:  u.Category,
		Topic:     u.Topic,
		Title:     u.Title,
		Content:   u.Content,
		Positions: u.Positions,
		WantCnt:   u.WantCnt,
		StartDate: now,
		EndDate:   u.EndDate,
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if _, err := s.store.Boards().Insert(ctx, b); err != nil {
		return nil, s.fail("createBoard insert", err)
	}

	s.bump(ctx, CounterBoards)
	return b, nil
}

// UpdateBoard replaces the content of a board. Once any application has been
// accepted the board is frozen and the update reports ErrNotFound, exactly
// like an ownership mismatch.
func (s *Service) UpdateBoard(ctx context.Context, authorID, boardID string, in BoardInput) error {
	if err := validateID("board id", boardID); err != nil {
		return err
	}
	u, err := in.toUpdate()
	if err != nil {
		return err
	}

	matched, err := s.store.Boards().ConditionalUpdate(ctx, boardID, authorID, u)
	if err != nil {
		return s.fail("updateBoard", err)
	}
	if !matched {
		return ErrNotFound
	}
	return nil
}

// DeleteBoard soft-deletes a board owned by authorID.
func (s *Service) DeleteBoard(ctx context.Context, authorID, boardID string) error {
	if err := validateID("board id", boardID); err != nil {
		return err
	}

	matched, err := s.store.Boards().SoftDelete(ctx, boardID, authorID)
	if err != nil {
		return s.fail("deleteBoard", err)
	}
	if !matched {
		return ErrNotFound
	}
	return nil
}

// ListBoards returns one page of visible boards.
func (s *Service) ListBoards(ctx context.Context, q BoardQuery) (*BoardPage, error) {
	// Kind and category are permissive: unknown values widen or default the
	// filter, and a listing across all kinds has no category filter at all.
	// The sort token is strict.
	kind := ValidateKind(q.Kind)
	var category Category
	if q.Category != "" && kind != KindAll {
		category = ValidateCategory(kind, q.Category)
	}

	token := q.Order
	if token == "" {
		token = SortCreatedAt
	}
	order, err := ValidateSortOrder(token)
	if err != nil {
		return nil, err
	}

	skip, limit := normalizePage(q.Offset, q.Limit)
	list, count, err := s.store.Boards().FindActive(ctx, BoardFilter{
		Kind:       kind,
		Category:   category,
		ViewerID:   q.ViewerID,
		SearchText: strings.TrimSpace(q.SearchText),
		Now:        s.now(),
	}, Page{Skip: skip, Limit: limit, Order: order})
	if err != nil {
		return nil, s.fail("listBoards", err)
	}
	if list == nil {
		list = []Board{}
	}
	return &BoardPage{List: list, Count: count}, nil
}

// GetBoard returns a board and, for a signed-in viewer, whether they applied
// and were accepted. Every call increments hit by one: repeated views by the
// same viewer all count.
func (s *Service) GetBoard(ctx context.Context, boardID, viewerID string) (*BoardView, error) {
	if err := validateID("board id", boardID); err != nil {
		return nil, err
	}

	b, err := s.store.Boards().FindByID(ctx, boardID)
	if errors.Is(err, ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, s.fail("getBoard find", err)
	}
	if !b.Active {
		return nil, ErrNotFound
	}

	matched, err := s.store.Boards().IncrementCounter(ctx, boardID, FieldHit, 1)
	if err != nil {
		return nil, s.fail("getBoard hit", err)
	}
	if !matched {
		return nil, ErrNotFound
	}
	b.Hit++

	view := &BoardView{Board: b}
	if viewerID == "" {
		return view, nil
	}

	n, err := s.store.Applications().CountActiveByApplicantAndBoard(ctx, viewerID, boardID)
	if err != nil {
		return nil, s.fail("getBoard isApplied", err)
	}
	accepted, err := s.store.Applications().FindAcceptedFlag(ctx, viewerID, boardID)
	if err != nil {
		return nil, s.fail("getBoard isAccepted", err)
	}
	view.IsApplied = boolPtr(n > 0)
	view.IsAccepted = boolPtr(accepted)
	return view, nil
}
