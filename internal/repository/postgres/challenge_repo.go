package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"

	"github.com/and161185/ctfarena/internal/errs"
	"github.com/and161185/ctfarena/internal/model"
)

// ChallengeRepo implements ChallengeRepository using PostgreSQL.
type ChallengeRepo struct{ db *DB }

// NewChallengeRepo constructs a challenge repository.
func NewChallengeRepo(db *DB) *ChallengeRepo { return &ChallengeRepo{db: db} }

// CreateCategory inserts a category with a unique name.
func (r *ChallengeRepo) CreateCategory(ctx context.Context, c *model.Category) error {
	const q = `INSERT INTO categories (id, name) VALUES ($1, $2) RETURNING created_at`
	err := r.db.Pool.QueryRow(ctx, q, c.ID, c.Name).Scan(&c.CreatedAt)
	if isUniqueViolation(err) {
		return errs.ErrAlreadyExists
	}
	if err != nil {
		return fmt.Errorf("categories.create: %w", err)
	}
	return nil
}

// ListCategories returns all categories ordered by name.
func (r *ChallengeRepo) ListCategories(ctx context.Context) ([]model.Category, error) {
	const q = `SELECT id, name, created_at FROM categories ORDER BY name`
	var out []model.Category
	if err := pgxscan.Select(ctx, r.db.Pool, &out, q); err != nil {
		return nil, fmt.Errorf("categories.list: %w", err)
	}
	return out, nil
}

// CreateChallenge inserts a challenge. An unknown category yields errs.ErrNotFound.
func (r *ChallengeRepo) CreateChallenge(ctx context.Context, c *model.Challenge) error {
	const q = `
INSERT INTO challenges (id, category_id, title, description, points, flag_digest)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING created_at`
	err := r.db.Pool.QueryRow(ctx, q, c.ID, c.CategoryID, c.Title, c.Description, c.Points, c.FlagDigest).Scan(&c.CreatedAt)
	switch {
	case isUniqueViolation(err):
		return errs.ErrAlreadyExists
	case isForeignKeyViolation(err):
		return errs.ErrNotFound
	case err != nil:
		return fmt.Errorf("challenges.create: %w", err)
	}
	return nil
}

// GetChallenge loads a challenge including its flag digest.
func (r *ChallengeRepo) GetChallenge(ctx context.Context, id uuid.UUID) (*model.Challenge, error) {
	const q = `
SELECT id, category_id, title, description, points, flag_digest, created_at
FROM challenges WHERE id=$1`
	var c model.Challenge
	err := r.db.Pool.QueryRow(ctx, q, id).Scan(&c.ID, &c.CategoryID, &c.Title, &c.Description, &c.Points, &c.FlagDigest, &c.CreatedAt)
	if err != nil {
		return nil, notFoundOr("challenges.get", err)
	}
	return &c, nil
}

// ListChallenges returns every challenge with its solve count and whether viewer solved it.
func (r *ChallengeRepo) ListChallenges(ctx context.Context, viewer uuid.UUID) ([]model.ChallengeView, error) {
	const q = `
SELECT c.id, c.category_id, cat.name AS category, c.title, c.description, c.points,
       (SELECT count(*) FROM solves s WHERE s.challenge_id = c.id) AS solves,
       EXISTS (SELECT 1 FROM solves s WHERE s.challenge_id = c.id AND s.user_id = $1) AS solved
FROM challenges c
JOIN categories cat ON cat.id = c.category_id
ORDER BY cat.name, c.points, c.title`
	var out []model.ChallengeView
	if err := pgxscan.Select(ctx, r.db.Pool, &out, q, viewer); err != nil {
		return nil, fmt.Errorf("challenges.list: %w", err)
	}
	return out, nil
}

// DeleteChallenge removes a challenge and its solves. Scores already awarded stay.
func (r *ChallengeRepo) DeleteChallenge(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Pool.Exec(ctx, `DELETE FROM challenges WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("challenges.delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}

// RecordSolve inserts the solve and credits points in one transaction.
func (r *ChallengeRepo) RecordSolve(ctx context.Context, userID, challengeID uuid.UUID, points int64) (int64, error) {
	tx, err := r.db.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return 0, fmt.Errorf("solves.begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx, `INSERT INTO solves (user_id, challenge_id) VALUES ($1, $2)`, userID, challengeID)
	switch {
	case isUniqueViolation(err):
		return 0, errs.ErrAlreadySolved
	case isForeignKeyViolation(err):
		return 0, errs.ErrNotFound
	case err != nil:
		return 0, fmt.Errorf("solves.insert: %w", err)
	}

	var score int64
	const upd = `UPDATE users SET score = score + $2 WHERE id=$1 RETURNING score`
	if err := tx.QueryRow(ctx, upd, userID, points).Scan(&score); err != nil {
		return 0, notFoundOr("solves.credit", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("solves.commit: %w", err)
	}
	return score, nil
}

type leaderboardRow struct {
	UserID    uuid.UUID  `db:"user_id"`
	Username  string     `db:"username"`
	Score     int64      `db:"score"`
	LastSolve *time.Time `db:"last_solve"`
}

// Leaderboard ranks active regular users by score, earliest last solve first on ties.
func (r *ChallengeRepo) Leaderboard(ctx context.Context, limit int) ([]model.LeaderboardEntry, error) {
	const q = `
SELECT u.id AS user_id, u.username, u.score, max(s.solved_at) AS last_solve
FROM users u
LEFT JOIN solves s ON s.user_id = u.id
WHERE u.role = 'USER' AND NOT u.is_blocked
GROUP BY u.id
ORDER BY u.score DESC, last_solve ASC NULLS LAST, u.username
LIMIT $1`
	var rows []leaderboardRow
	if err := pgxscan.Select(ctx, r.db.Pool, &rows, q, limit); err != nil {
		return nil, fmt.Errorf("leaderboard: %w", err)
	}
	out := make([]model.LeaderboardEntry, 0, len(rows))
	for i, row := range rows {
		out = append(out, model.LeaderboardEntry{
			Rank:      i + 1,
			UserID:    row.UserID,
			Username:  row.Username,
			Score:     row.Score,
			LastSolve: row.LastSolve,
		})
	}
	return out, nil
}

// Totals returns counts of regular users, challenges and solves by regular
// users. Admin solves are excluded so the pair count bounds the solve count.
func (r *ChallengeRepo) Totals(ctx context.Context) (users, challenges, solves int64, err error) {
	const q = `
SELECT (SELECT count(*) FROM users WHERE role = 'USER'),
       (SELECT count(*) FROM challenges),
       (SELECT count(*) FROM solves s JOIN users u ON u.id = s.user_id WHERE u.role = 'USER')`
	if err = r.db.Pool.QueryRow(ctx, q).Scan(&users, &challenges, &solves); err != nil {
		return 0, 0, 0, fmt.Errorf("totals: %w", err)
	}
	return users, challenges, solves, nil
}
