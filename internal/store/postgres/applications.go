package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/kibanana/geteam-http-api/internal/recruit"
)

const applicationColumns = `a.id::text, a.applicant_id, a.board_id::text, a.author_id, a.wanted_text,
	a.position, a.portfolio, a.portfolio_text, a.is_accepted, a.accepted_at, a.active,
	a.created_at, a.updated_at`

var applicationSortColumns = map[string]string{
	recruit.SortCreatedAt: "a.created_at",
}

type applicationStore struct{ q querier }

func scanApplication(row pgx.Row) (*recruit.Application, error) {
	var a recruit.Application
	if err := row.Scan(
		&a.ID, &a.ApplicantID, &a.BoardID, &a.AuthorID, &a.WantedText,
		&a.Position, &a.Portfolio, &a.PortfolioText, &a.IsAccepted, &a.AcceptedAt, &a.Active,
		&a.CreatedAt, &a.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *applicationStore) Insert(ctx context.Context, a *recruit.Application) (string, error) {
	var id string
	err := s.q.QueryRow(ctx,
		`INSERT INTO applications (id, applicant_id, board_id, author_id, wanted_text,
		                           position, portfolio, portfolio_text, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9)
		 RETURNING id::text`,
		a.ID, a.ApplicantID, a.BoardID, a.AuthorID, a.WantedText,
		a.Position, a.Portfolio, a.PortfolioText, a.CreatedAt,
	).Scan(&id)
	if err != nil {
		return "", uniqueViolation(err)
	}
	return id, nil
}

func (s *applicationStore) FindByID(ctx context.Context, id string) (*recruit.Application, error) {
	a, err := scanApplication(s.q.QueryRow(ctx,
		`SELECT `+applicationColumns+` FROM applications a WHERE a.id = $1`, id))
	if err != nil {
		return nil, notFound(err)
	}
	return a, nil
}

func (s *applicationStore) CountActiveByApplicantAndBoard(ctx context.Context, applicantID, boardID string) (int, error) {
	var n int
	err := s.q.QueryRow(ctx,
		`SELECT COUNT(*) FROM applications WHERE applicant_id = $1 AND board_id = $2 AND active`,
		applicantID, boardID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count applications: %w", err)
	}
	return n, nil
}

func (s *applicationStore) FindAcceptedFlag(ctx context.Context, applicantID, boardID string) (bool, error) {
	var accepted bool
	err := s.q.QueryRow(ctx,
		`SELECT EXISTS (
		   SELECT 1 FROM applications
		   WHERE applicant_id = $1 AND board_id = $2 AND active AND is_accepted
		 )`,
		applicantID, boardID,
	).Scan(&accepted)
	if err != nil {
		return false, fmt.Errorf("find accepted flag: %w", err)
	}
	return accepted, nil
}

func (s *applicationStore) ConditionalSetAccepted(ctx context.Context, id, boardID, authorID string) (bool, error) {
	tag, err := s.q.Exec(ctx,
		`UPDATE applications
		 SET is_accepted = true, accepted_at = NOW(), updated_at = NOW()
		 WHERE id = $1 AND board_id = $2 AND author_id = $3 AND active AND NOT is_accepted`,
		id, boardID, authorID,
	)
	if err != nil {
		return false, fmt.Errorf("accept application: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *applicationStore) ConditionalSoftDelete(ctx context.Context, id, boardID, callerID string) (bool, bool, error) {
	var wasAccepted bool
	err := s.q.QueryRow(ctx,
		`UPDATE applications
		 SET active = false, updated_at = NOW()
		 WHERE id = $1 AND board_id = $2 AND active
		   AND (applicant_id = $3 OR author_id = $3)
		 RETURNING is_accepted`,
		id, boardID, callerID,
	).Scan(&wasAccepted)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, false, nil
	}
	if err != nil {
		return false, false, fmt.Errorf("soft delete application: %w", err)
	}
	return true, wasAccepted, nil
}

func (s *applicationStore) FindList(ctx context.Context, f recruit.ApplicationFilter, p recruit.Page) ([]recruit.Application, int, error) {
	where, a := applicationWhere(f)
	from := ` FROM applications a JOIN boards b ON b.id = a.board_id `

	var count int
	if err := s.q.QueryRow(ctx, `SELECT COUNT(*)`+from+where, a...).Scan(&count); err != nil {
		return nil, 0, fmt.Errorf("count applications: %w", err)
	}

	query := `SELECT ` + applicationColumns + from + where + ` ` +
		orderBy(p.Order, applicationSortColumns, "a.created_at DESC") + limitOffset(p, &a)
	rows, err := s.q.Query(ctx, query, a...)
	if err != nil {
		return nil, 0, fmt.Errorf("list applications: %w", err)
	}
	defer rows.Close()

	list := make([]recruit.Application, 0)
	for rows.Next() {
		app, err := scanApplication(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan application: %w", err)
		}
		list = append(list, *app)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("list applications: %w", err)
	}
	return list, count, nil
}
