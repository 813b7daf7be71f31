package repository

import (
	"context"

	"github.com/and161185/ctfarena/internal/model"
	"github.com/gofrs/uuid/v5"
)

// ChallengeRepository stores categories, challenges and solves.
type ChallengeRepository interface {
	CreateCategory(ctx context.Context, c *model.Category) error
	ListCategories(ctx context.Context) ([]model.Category, error)

	CreateChallenge(ctx context.Context, c *model.Challenge) error
	GetChallenge(ctx context.Context, id uuid.UUID) (*model.Challenge, error)
	// ListChallenges returns challenges with solve counts and the viewer's solved flag.
	ListChallenges(ctx context.Context, viewer uuid.UUID) ([]model.ChallengeView, error)
	DeleteChallenge(ctx context.Context, id uuid.UUID) error

	// RecordSolve atomically inserts the solve and adds points to the user's
	// score, returning the new score. A repeated solve yields errs.ErrAlreadySolved.
	RecordSolve(ctx context.Context, userID, challengeID uuid.UUID, points int64) (int64, error)

	Leaderboard(ctx context.Context, limit int) ([]model.LeaderboardEntry, error)
	// Totals returns counts of regular users, challenges and solves.
	Totals(ctx context.Context) (users, challenges, solves int64, err error)
}
