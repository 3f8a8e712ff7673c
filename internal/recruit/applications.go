package recruit

import (
	"context"
	"errors"
	"strings"
)

// ApplicationInput is an applicant's request to join a board.
type ApplicationInput struct {
	BoardID       string `json:"boardId"`
	WantedText    string `json:"wantedText"`
	Kind          string `json:"kind"`
	Position      string `json:"position"`
	Portfolio     string `json:"portfolio"`
	PortfolioText string `json:"portfolioText"`
}

// ApplicationQuery is a listing of the caller's applications. Status
// "applied" lists applications received on the caller's boards; anything
// else lists the caller's own applications.
type ApplicationQuery struct {
	Kind       string
	Status     string
	IsAccepted *bool
	Active     *bool
	Offset     int
	Limit      int
}

// StatusReceived selects applications sent to the caller's boards.
const StatusReceived = "applied"

var errBoardClosed = conflict(CodeBoardCompleted, "board is no longer accepting applications")

// CreateApplication files an application from applicantID and bumps the
// board's applicationCnt in the same transaction.
func (s *Service) CreateApplication(ctx context.Context, applicantID string, in ApplicationInput) (*Application, error) {
	if err := validateID("board id", in.BoardID); err != nil {
		return nil, err
	}
	if strings.TrimSpace(in.WantedText) == "" {
		return nil, &ValidationError{Msg: "wantedText is required"}
	}

	b, err := s.store.Boards().FindByID(ctx, in.BoardID)
	if errors.Is(err, ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, s.fail("createApplication find board", err)
	}
	if !b.Active {
		return nil, ErrNotFound
	}
	if b.IsCompleted {
		return nil, errBoardClosed
	}
	if b.AuthorID == applicantID {
		return nil, conflict(CodeSelfApplication, "cannot apply to your own board")
	}

	n, err := s.store.Applications().CountActiveByApplicantAndBoard(ctx, applicantID, in.BoardID)
	if err != nil {
		return nil, s.fail("createApplication count", err)
	}
	if n > 0 {
		return nil, conflict(CodeAlreadyApplied, "already applied to this board")
	}

	now := s.now()
	a := &Application{
		ID:          s.newID(),
		ApplicantID: applicantID,
		BoardID:     in.BoardID,
		AuthorID:    b.AuthorID,
		WantedText:  in.WantedText,
		Active:      true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	// Contest fields are a guarded assignment, not a validation path: for
	// any other kind they are dropped without error.
	if ValidateKind(in.Kind) == KindContest {
		a.Position = in.Position
		a.Portfolio = in.Portfolio
		a.PortfolioText = in.PortfolioText
	}

	err = s.store.InTx(ctx, func(tx Store) error {
		if _, err := tx.Applications().Insert(ctx, a); err != nil {
			if errors.Is(err, ErrDuplicate) {
				// Lost the race against a concurrent application.
				return conflict(CodeAlreadyApplied, "already applied to this board")
			}
			return err
		}
		matched, err := tx.Boards().IncrementCounter(ctx, in.BoardID, FieldApplicationCnt, 1)
		if err != nil {
			return err
		}
		if !matched {
			return errBoardClosed
		}
		return nil
	})
	if err != nil {
		return nil, s.fail("createApplication", err)
	}

	s.bump(ctx, CounterApplications)
	return a, nil
}

// AcceptApplication marks an application accepted and bumps the board's
// acceptCnt atomically. Ownership is checked by the update filter itself;
// a zero match, whatever the reason, is ErrNotFound.
func (s *Service) AcceptApplication(ctx context.Context, authorID, boardID, applicationID string) error {
	if err := validateID("board id", boardID); err != nil {
		return err
	}
	if err := validateID("application id", applicationID); err != nil {
		return err
	}

	err := s.store.InTx(ctx, func(tx Store) error {
		matched, err := tx.Applications().ConditionalSetAccepted(ctx, applicationID, boardID, authorID)
		if err != nil {
			return err
		}
		if !matched {
			return ErrNotFound
		}
		matched, err = tx.Boards().IncrementCounter(ctx, boardID, FieldAcceptCnt, 1)
		if err != nil {
			return err
		}
		if !matched {
			return ErrNotFound
		}
		return nil
	})
	if err != nil {
		return s.fail("acceptApplication", err)
	}

	a, err := s.store.Applications().FindByID(ctx, applicationID)
	if err != nil {
		s.log.Warn("accepted application lookup failed", "applicationId", applicationID, "err", err)
		return nil
	}
	ev := Event{
		Kind:          EventApplicationAccepted,
		RecipientID:   a.ApplicantID,
		BoardID:       boardID,
		BoardAuthorID: authorID,
		ApplicationID: applicationID,
	}
	if b, err := s.store.Boards().FindByID(ctx, boardID); err == nil {
		ev.BoardTitle = b.Title
		ev.BoardKind = b.Kind
	}
	s.notify(ctx, ev)
	return nil
}

// DeleteApplication withdraws (applicant) or removes (board author) an
// application.
//
// It is Blocked while the board is completed, or while it is still active
// past its end date: the window in which the owner finalizes the team.
// A successful delete decrements applicationCnt, and acceptCnt too when the
// application had been accepted.
func (s *Service) DeleteApplication(ctx context.Context, callerID, boardID, applicationID string) (DeleteResult, error) {
	if err := validateID("board id", boardID); err != nil {
		return DeleteNotFound, err
	}
	if err := validateID("application id", applicationID); err != nil {
		return DeleteNotFound, err
	}

	blocked := false
	err := s.store.InTx(ctx, func(tx Store) error {
		// The Blocked check reads the locked row: a CreateTeam committing
		// first is seen here, one starting later waits for this transaction.
		b, err := tx.Boards().LockByID(ctx, boardID)
		if err != nil {
			return err
		}
		if b.IsCompleted || (b.Active && !b.EndDate.After(s.now())) {
			blocked = true
			return nil
		}

		matched, wasAccepted, err := tx.Applications().ConditionalSoftDelete(ctx, applicationID, boardID, callerID)
		if err != nil {
			return err
		}
		if !matched {
			return ErrNotFound
		}
		// acceptCnt first: acceptCnt <= applicationCnt must hold after
		// every single write, not just at commit.
		if wasAccepted {
			if _, err := tx.Boards().IncrementCounter(ctx, boardID, FieldAcceptCnt, -1); err != nil {
				return err
			}
		}
		_, err = tx.Boards().IncrementCounter(ctx, boardID, FieldApplicationCnt, -1)
		return err
	})
	if errors.Is(err, ErrNotFound) {
		return DeleteNotFound, nil
	}
	if err != nil {
		return DeleteNotFound, s.fail("deleteApplication", err)
	}
	if blocked {
		return DeleteBlocked, nil
	}
	return DeleteOK, nil
}

// ListApplications returns one page of the caller's sent or received
// applications, newest first.
func (s *Service) ListApplications(ctx context.Context, callerID string, q ApplicationQuery) (*ApplicationPage, error) {
	f := ApplicationFilter{
		Kind:       ValidateKind(q.Kind),
		IsAccepted: q.IsAccepted,
		Active:     q.Active,
	}
	if q.Status == StatusReceived {
		f.AuthorID = callerID
	} else {
		f.ApplicantID = callerID
	}

	skip, limit := normalizePage(q.Offset, q.Limit)
	return s.findApplications(ctx, "listApplications", f, Page{Skip: skip, Limit: limit})
}

// ListBoardApplications returns every application on one of the caller's
// boards.
func (s *Service) ListBoardApplications(ctx context.Context, authorID, boardID string) (*ApplicationPage, error) {
	if err := validateID("board id", boardID); err != nil {
		return nil, err
	}
	return s.findApplications(ctx, "listBoardApplications",
		ApplicationFilter{AuthorID: authorID, BoardID: boardID}, Page{})
}

func (s *Service) findApplications(ctx context.Context, op string, f ApplicationFilter, p Page) (*ApplicationPage, error) {
	p.Order = OrderSpec{{Field: SortCreatedAt, Desc: true}}
	list, count, err := s.store.Applications().FindList(ctx, f, p)
	if err != nil {
		return nil, s.fail(op, err)
	}
	if list == nil {
		list = []Application{}
	}
	return &ApplicationPage{List: list, Count: count}, nil
}
