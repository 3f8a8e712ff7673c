package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/kibanana/geteam-http-api/internal/recruit"
)

type teamStore struct{ q querier }

func (s *teamStore) Insert(ctx context.Context, t *recruit.Team) (string, error) {
	members := t.Members
	if members == nil {
		members = []recruit.Member{}
	}
	raw, err := json.Marshal(members)
	if err != nil {
		return "", fmt.Errorf("encode members: %w", err)
	}

	var id string
	err = s.q.QueryRow(ctx,
		`INSERT INTO teams (id, board_id, name, master_id, members, content, created_at)
		 VALUES ($1, $2, $3, $4, $5::jsonb, $6, $7)
		 RETURNING id::text`,
		t.ID, t.BoardID, t.Name, t.MasterID, string(raw), t.Content, t.CreatedAt,
	).Scan(&id)
	if err != nil {
		return "", uniqueViolation(err)
	}
	return id, nil
}
