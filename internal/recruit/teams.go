package recruit

import (
	"context"
	"errors"
	"strings"
)

// TeamInput names and describes a team. Message is forwarded to every
// member in the TeamFormed notification.
type TeamInput struct {
	Name    string `json:"name"`
	Content string `json:"content"`
	Message string `json:"message"`
}

// CreateTeam completes a board and forms its team from the roster.
//
// The completion flag is claimed first with a single conditional write, so
// of two concurrent callers exactly one proceeds to the roster fetch and the
// team insert; the other gets ERR_ALREADY_COMPLETED.
func (s *Service) CreateTeam(ctx context.Context, authorID, boardID string, in TeamInput) (*Team, error) {
	if err := validateID("board id", boardID); err != nil {
		return nil, err
	}
	if strings.TrimSpace(in.Name) == "" {
		return nil, &ValidationError{Msg: "name is required"}
	}
	if strings.TrimSpace(in.Content) == "" {
		return nil, &ValidationError{Msg: "content is required"}
	}

	if s.limits.MaxTeams > 0 {
		n, err := s.store.Boards().CountByAuthor(ctx, authorID, CountCompleted, s.now())
		if err != nil {
			return nil, s.fail("createTeam count", err)
		}
		if n >= s.limits.MaxTeams {
			return nil, conflict(CodeExceedLimit, "at most %d teams per author", s.limits.MaxTeams)
		}
	}

	var (
		team  *Team
		board *Board
	)
	err := s.store.InTx(ctx, func(tx Store) error {
		matched, err := tx.Boards().MarkCompleted(ctx, boardID, authorID)
		if err != nil {
			return err
		}
		board, err = tx.Boards().FindByID(ctx, boardID)
		if errors.Is(err, ErrNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		if !matched {
			if board.Active && board.AuthorID == authorID && board.IsCompleted {
				return conflict(CodeAlreadyCompleted, "team already formed for this board")
			}
			return ErrNotFound
		}

		f := ApplicationFilter{AuthorID: authorID, BoardID: boardID, Active: boolPtr(true)}
		if s.roster == RosterAccepted {
			f.IsAccepted = boolPtr(true)
		}
		roster, _, err := tx.Applications().FindList(ctx, f, Page{Order: OrderSpec{{Field: SortCreatedAt}}})
		if err != nil {
			return err
		}

		members := make([]Member, 0, len(roster))
		for _, a := range roster {
			members = append(members, Member{AccountID: a.ApplicantID, Position: a.Position})
		}
		team = &Team{
			ID:        s.newID(),
			BoardID:   boardID,
			Name:      in.Name,
			MasterID:  authorID,
			Members:   members,
			Content:   in.Content,
			CreatedAt: s.now(),
		}
		if _, err := tx.Teams().Insert(ctx, team); err != nil {
			if errors.Is(err, ErrDuplicate) {
				return conflict(CodeAlreadyCompleted, "team already formed for this board")
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, s.fail("createTeam", err)
	}

	s.bump(ctx, CounterTeams)
	for _, m := range team.Members {
		s.notify(ctx, Event{
			Kind:          EventTeamFormed,
			RecipientID:   m.AccountID,
			BoardID:       boardID,
			BoardTitle:    board.Title,
			BoardKind:     board.Kind,
			BoardAuthorID: authorID,
			TeamID:        team.ID,
			TeamName:      team.Name,
			Message:       in.Message,
		})
	}
	return team, nil
}
