package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/kibanana/geteam-http-api/internal/recruit"
)

const boardColumns = `b.id::text, b.author_id, b.kind, b.category, b.topic, b.title, b.content,
	b.positions, b.want_cnt, b.application_cnt, b.accept_cnt, b.hit,
	b.start_date, b.end_date, b.is_completed, b.active, b.created_at, b.updated_at`

type boardStore struct{ q querier }

func scanBoard(row pgx.Row) (*recruit.Board, error) {
	var (
		b              recruit.Board
		kind, category string
		positions      []byte
	)
	if err := row.Scan(
		&b.ID, &b.AuthorID, &kind, &category, &b.Topic, &b.Title, &b.Content,
		&positions, &b.WantCnt, &b.ApplicationCnt, &b.AcceptCnt, &b.Hit,
		&b.StartDate, &b.EndDate, &b.IsCompleted, &b.Active, &b.CreatedAt, &b.UpdatedAt,
	); err != nil {
		return nil, err
	}
	b.Kind, b.Category = recruit.Kind(kind), recruit.Category(category)
	b.Positions = []recruit.Position{}
	if len(positions) > 0 {
		if err := json.Unmarshal(positions, &b.Positions); err != nil {
			return nil, fmt.Errorf("decode positions: %w", err)
		}
	}
	return &b, nil
}

func encodePositions(p []recruit.Position) (string, error) {
	if p == nil {
		p = []recruit.Position{}
	}
	raw, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("encode positions: %w", err)
	}
	return string(raw), nil
}

func (s *boardStore) Insert(ctx context.Context, b *recruit.Board) (string, error) {
	positions, err := encodePositions(b.Positions)
	if err != nil {
		return "", err
	}
	var id string
	err = s.q.QueryRow(ctx,
		`INSERT INTO boards (id, author_id, kind, category, topic, title, content, positions,
		                     want_cnt, start_date, end_date, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8::jsonb, $9, $10, $11, $12, $12)
		 RETURNING id::text`,
		b.ID, b.AuthorID, string(b.Kind), string(b.Category), b.Topic, b.Title, b.Content, positions,
		b.WantCnt, b.StartDate, b.EndDate, b.CreatedAt,
	).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("insert board: %w", err)
	}
	return id, nil
}

func (s *boardStore) FindByID(ctx context.Context, id string) (*recruit.Board, error) {
	b, err := scanBoard(s.q.QueryRow(ctx,
		`SELECT `+boardColumns+` FROM boards b WHERE b.id = $1`, id))
	if err != nil {
		return nil, notFound(err)
	}
	return b, nil
}

func (s *boardStore) LockByID(ctx context.Context, id string) (*recruit.Board, error) {
	b, err := scanBoard(s.q.QueryRow(ctx,
		`SELECT `+boardColumns+` FROM boards b WHERE b.id = $1 FOR UPDATE`, id))
	if err != nil {
		return nil, notFound(err)
	}
	return b, nil
}

func (s *boardStore) FindActive(ctx context.Context, f recruit.BoardFilter, p recruit.Page) ([]recruit.Board, int, error) {
	where, a := boardWhere(f)

	var count int
	if err := s.q.QueryRow(ctx, `SELECT COUNT(*) FROM boards b `+where, a...).Scan(&count); err != nil {
		return nil, 0, fmt.Errorf("count boards: %w", err)
	}

	query := `SELECT ` + boardColumns + ` FROM boards b ` + where + ` ` +
		orderBy(p.Order, sortColumns, "b.created_at DESC") + limitOffset(p, &a)
	rows, err := s.q.Query(ctx, query, a...)
	if err != nil {
		return nil, 0, fmt.Errorf("list boards: %w", err)
	}
	defer rows.Close()

	list := make([]recruit.Board, 0)
	for rows.Next() {
		b, err := scanBoard(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan board: %w", err)
		}
		list = append(list, *b)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("list boards: %w", err)
	}
	return list, count, nil
}

func (s *boardStore) IncrementCounter(ctx context.Context, id string, field recruit.CounterField, delta int) (bool, error) {
	col, ok := counterColumns[field]
	if !ok {
		return false, fmt.Errorf("unknown counter field %q", field)
	}

	guard := ""
	switch {
	case delta <= 0:
	case field == recruit.FieldHit:
		guard = " AND active"
	default:
		guard = " AND active AND NOT is_completed"
	}

	tag, err := s.q.Exec(ctx,
		fmt.Sprintf(`UPDATE boards SET %[1]s = %[1]s + $1, updated_at = NOW() WHERE id = $2%[2]s`, col, guard),
		delta, id,
	)
	if err != nil {
		return false, fmt.Errorf("increment %s: %w", col, err)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *boardStore) ConditionalUpdate(ctx context.Context, id, ownerID string, u recruit.BoardUpdate) (bool, error) {
	positions, err := encodePositions(u.Positions)
	if err != nil {
		return false, err
	}
	tag, err := s.q.Exec(ctx,
		`UPDATE boards
		 SET kind = $1, category = $2, topic = $3, title = $4, content = $5,
		     positions = $6::jsonb, want_cnt = $7, end_date = $8, updated_at = NOW()
		 WHERE id = $9 AND author_id = $10 AND active AND accept_cnt <= 0`,
		string(u.Kind), string(u.Category), u.Topic, u.Title, u.Content,
		positions, u.WantCnt, u.EndDate, id, ownerID,
	)
	if err != nil {
		return false, fmt.Errorf("update board: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *boardStore) SoftDelete(ctx context.Context, id, ownerID string) (bool, error) {
	tag, err := s.q.Exec(ctx,
		`UPDATE boards SET active = false, updated_at = NOW() WHERE id = $1 AND author_id = $2`,
		id, ownerID,
	)
	if err != nil {
		return false, fmt.Errorf("soft delete board: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *boardStore) MarkCompleted(ctx context.Context, id, ownerID string) (bool, error) {
	tag, err := s.q.Exec(ctx,
		`UPDATE boards SET is_completed = true, updated_at = NOW()
		 WHERE id = $1 AND author_id = $2 AND active AND NOT is_completed`,
		id, ownerID,
	)
	if err != nil {
		return false, fmt.Errorf("complete board: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *boardStore) CountByAuthor(ctx context.Context, authorID string, scope recruit.BoardCountScope, now time.Time) (int, error) {
	var (
		n   int
		err error
	)
	switch scope {
	case recruit.CountOpen:
		err = s.q.QueryRow(ctx,
			`SELECT COUNT(*) FROM boards
			 WHERE author_id = $1 AND active AND NOT is_completed AND end_date > $2`,
			authorID, now,
		).Scan(&n)
	case recruit.CountCompleted:
		err = s.q.QueryRow(ctx,
			`SELECT COUNT(*) FROM boards WHERE author_id = $1 AND is_completed`,
			authorID,
		).Scan(&n)
	default:
		return 0, fmt.Errorf("unknown board count scope %d", scope)
	}
	if err != nil {
		return 0, fmt.Errorf("count boards by author: %w", err)
	}
	return n, nil
}
