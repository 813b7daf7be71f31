package service

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	pkgcrypto "github.com/and161185/ctfarena/internal/crypto"
	"github.com/and161185/ctfarena/internal/errs"
	"github.com/and161185/ctfarena/internal/model"
	"github.com/and161185/ctfarena/internal/repository"
)

// NewChallenge is the input for ChallengeService.CreateChallenge.
type NewChallenge struct {
	CategoryID  uuid.UUID
	Title       string
	Description string
	Points      int64
	Flag        string
}

// ChallengeService defines the CTF task surface.
type ChallengeService interface {
	CreateCategory(ctx context.Context, name string) (model.Category, error)
	ListCategories(ctx context.Context) ([]model.Category, error)
	CreateChallenge(ctx context.Context, in NewChallenge) (model.Challenge, error)
	ListChallenges(ctx context.Context, viewer uuid.UUID) ([]model.ChallengeView, error)
	DeleteChallenge(ctx context.Context, id uuid.UUID) error
	SubmitFlag(ctx context.Context, userID, challengeID uuid.UUID, flag string) (model.SubmitResult, error)
	Leaderboard(ctx context.Context, limit int) ([]model.LeaderboardEntry, error)
	Stats(ctx context.Context) (model.Stats, error)
}

type ChallengeServiceImpl struct {
	repo     repository.ChallengeRepository
	notifier Notifier
	maxBoard int
	log      *zap.Logger
}

// NewChallengeService constructs ChallengeService. maxBoard caps leaderboard size.
func NewChallengeService(repo repository.ChallengeRepository, notifier Notifier, maxBoard int, log *zap.Logger) *ChallengeServiceImpl {
	if log == nil {
		log = zap.NewNop()
	}
	if maxBoard <= 0 {
		maxBoard = 100
	}
	return &ChallengeServiceImpl{repo: repo, notifier: notifier, maxBoard: maxBoard, log: log.Named("challenges")}
}

// CreateCategory adds a category with a unique name.
func (s *ChallengeServiceImpl) CreateCategory(ctx context.Context, name string) (model.Category, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return model.Category{}, fmt.Errorf("%w: category name is required", errs.ErrValidation)
	}
	id, err := uuid.NewV4()
	if err != nil {
		return model.Category{}, err
	}
	c := model.Category{ID: id, Name: name}
	if err := s.repo.CreateCategory(ctx, &c); err != nil {
		return model.Category{}, err
	}
	return c, nil
}

// ListCategories returns all categories.
func (s *ChallengeServiceImpl) ListCategories(ctx context.Context) ([]model.Category, error) {
	return s.repo.ListCategories(ctx)
}

// CreateChallenge stores a challenge. Only the flag digest is kept.
func (s *ChallengeServiceImpl) CreateChallenge(ctx context.Context, in NewChallenge) (model.Challenge, error) {
	title := strings.TrimSpace(in.Title)
	flag := strings.TrimSpace(in.Flag)
	switch {
	case title == "":
		return model.Challenge{}, fmt.Errorf("%w: title is required", errs.ErrValidation)
	case flag == "":
		return model.Challenge{}, fmt.Errorf("%w: flag is required", errs.ErrValidation)
	case in.Points <= 0:
		return model.Challenge{}, fmt.Errorf("%w: points must be positive", errs.ErrValidation)
	case in.CategoryID == uuid.Nil:
		return model.Challenge{}, fmt.Errorf("%w: category is required", errs.ErrValidation)
	}
	id, err := uuid.NewV4()
	if err != nil {
		return model.Challenge{}, err
	}
	c := model.Challenge{
		ID:          id,
		CategoryID:  in.CategoryID,
		Title:       title,
		Description: strings.TrimSpace(in.Description),
		Points:      in.Points,
		FlagDigest:  pkgcrypto.FlagDigest(flag),
	}
	if err := s.repo.CreateChallenge(ctx, &c); err != nil {
		return model.Challenge{}, err
	}
	return c, nil
}

// ListChallenges returns the board as seen by viewer.
func (s *ChallengeServiceImpl) ListChallenges(ctx context.Context, viewer uuid.UUID) ([]model.ChallengeView, error) {
	return s.repo.ListChallenges(ctx, viewer)
}

// DeleteChallenge removes a challenge.
func (s *ChallengeServiceImpl) DeleteChallenge(ctx context.Context, id uuid.UUID) error {
	return s.repo.DeleteChallenge(ctx, id)
}

// SubmitFlag checks flag against the challenge. A first correct answer
// credits points and emits a SOLVE notification.
func (s *ChallengeServiceImpl) SubmitFlag(ctx context.Context, userID, challengeID uuid.UUID, flag string) (model.SubmitResult, error) {
	c, err := s.repo.GetChallenge(ctx, challengeID)
	if err != nil {
		return model.SubmitResult{}, err
	}
	if !pkgcrypto.MatchFlag(flag, c.FlagDigest) {
		return model.SubmitResult{Correct: false}, nil
	}
	score, err := s.repo.RecordSolve(ctx, userID, challengeID, c.Points)
	if err != nil {
		return model.SubmitResult{}, err
	}

	msg := fmt.Sprintf("You solved %q for %d points.", c.Title, c.Points)
	if _, err := s.notifier.Notify(ctx, userID, msg, model.NotificationSolve); err != nil {
		s.log.Warn("solve notification", zap.Stringer("user", userID), zap.Error(err))
	}
	return model.SubmitResult{Correct: true, Points: c.Points, Score: score}, nil
}

// Leaderboard returns at most limit entries; non-positive or oversized
// limits fall back to the configured maximum.
func (s *ChallengeServiceImpl) Leaderboard(ctx context.Context, limit int) ([]model.LeaderboardEntry, error) {
	if limit <= 0 || limit > s.maxBoard {
		limit = s.maxBoard
	}
	return s.repo.Leaderboard(ctx, limit)
}

// Stats returns platform totals. The completion rate is the share of all
// possible (user, challenge) pairs that are solved, as a percentage.
func (s *ChallengeServiceImpl) Stats(ctx context.Context) (model.Stats, error) {
	users, challenges, solves, err := s.repo.Totals(ctx)
	if err != nil {
		return model.Stats{}, err
	}
	return model.Stats{
		Users:          users,
		Challenges:     challenges,
		Solves:         solves,
		CompletionRate: completionRate(users, challenges, solves),
	}, nil
}

func completionRate(users, challenges, solves int64) float64 {
	denom := users * challenges
	if denom == 0 {
		return 0
	}
	rate := float64(solves) / float64(denom) * 100
	return math.Round(rate*100) / 100
}
