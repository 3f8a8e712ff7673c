// Package postgres implements recruit.Store on PostgreSQL through pgx.
//
// Boards, applications and teams are single rows; embedded lists (board
// positions, team members) are JSONB columns. Every conditional write is one
// UPDATE whose WHERE clause carries the ownership and state guards, so a zero
// RowsAffected is the only signal a caller gets.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kibanana/geteam-http-api/internal/recruit"
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store implements recruit.Store and recruit.CountRepairer.
type Store struct {
	pool *pgxpool.Pool
	q    querier
	inTx bool
}

// New returns a Store backed by pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool, q: pool}
}

// Boards implements recruit.Store.
func (s *Store) Boards() recruit.BoardStore { return &boardStore{q: s.q} }

// Applications implements recruit.Store.
func (s *Store) Applications() recruit.ApplicationStore { return &applicationStore{q: s.q} }

// Teams implements recruit.Store.
func (s *Store) Teams() recruit.TeamStore { return &teamStore{q: s.q} }

// InTx implements recruit.Store. Nested calls join the outer transaction.
func (s *Store) InTx(ctx context.Context, fn func(tx recruit.Store) error) error {
	if s.inTx {
		return fn(s)
	}
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		return fn(&Store{pool: s.pool, q: tx, inTx: true})
	})
}

// RepairCounts implements recruit.CountRepairer.
//
// The aggregate and the UPDATE share one REPEATABLE READ snapshot. A board
// row changed by a transaction the snapshot cannot see fails the statement
// with a serialization error instead of having a stale count written back.
func (s *Store) RepairCounts(ctx context.Context) (int64, error) {
	var fixed int64
	err := pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{IsoLevel: pgx.RepeatableRead}, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx,
			`UPDATE boards b
			 SET application_cnt = c.apps,
			     accept_cnt      = c.accepted,
			     updated_at      = NOW()
			 FROM (
			   SELECT bb.id,
			          COUNT(a.id) FILTER (WHERE a.active)                   AS apps,
			          COUNT(a.id) FILTER (WHERE a.active AND a.is_accepted) AS accepted
			   FROM boards bb
			   LEFT JOIN applications a ON a.board_id = bb.id
			   GROUP BY bb.id
			 ) c
			 WHERE b.id = c.id
			   AND (b.application_cnt <> c.apps OR b.accept_cnt <> c.accepted)`,
		)
		if err != nil {
			return err
		}
		fixed = tag.RowsAffected()
		return nil
	})
	if err != nil {
		return 0, repairConflict(err)
	}
	return fixed, nil
}

// repairConflict maps serialization failures and deadlocks to
// recruit.ErrRepairConflict.
func repairConflict(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && (pgErr.Code == "40001" || pgErr.Code == "40P01") {
		return fmt.Errorf("%w: %s", recruit.ErrRepairConflict, pgErr.Message)
	}
	return fmt.Errorf("repair counts: %w", err)
}

// uniqueViolation maps a unique-index rejection to recruit.ErrDuplicate.
func uniqueViolation(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return recruit.ErrDuplicate
	}
	return err
}

func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return recruit.ErrNotFound
	}
	return err
}
