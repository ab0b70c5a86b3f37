package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/noah-isme/moodpoints-api/internal/models"
	appErrors "github.com/noah-isme/moodpoints-api/pkg/errors"
)

// RewardReader is the catalog persistence contract.
type RewardReader interface {
	ListActive(ctx context.Context) ([]models.Reward, error)
	FindByID(ctx context.Context, id string) (*models.Reward, error)
}

// RewardCatalog resolves reward costs.
type RewardCatalog struct {
	repo RewardReader
}

// NewRewardCatalog constructs a catalog.
func NewRewardCatalog(repo RewardReader) *RewardCatalog {
	return &RewardCatalog{repo: repo}
}

// Get returns an active reward or ErrRewardNotFound.
func (c *RewardCatalog) Get(ctx context.Context, rewardID string) (*models.Reward, error) {
	reward, err := c.repo.FindByID(ctx, rewardID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrRewardNotFound
		}
		return nil, appErrors.Unavailable(err, "reward catalog unavailable")
	}
	return reward, nil
}

// GetCost returns the current cost of an active reward.
func (c *RewardCatalog) GetCost(ctx context.Context, rewardID string) (int64, error) {
	reward, err := c.Get(ctx, rewardID)
	if err != nil {
		return 0, err
	}
	return reward.Cost, nil
}

// List returns active rewards ordered by cost.
func (c *RewardCatalog) List(ctx context.Context) ([]models.Reward, error) {
	rewards, err := c.repo.ListActive(ctx)
	if err != nil {
		return nil, appErrors.Unavailable(err, "reward catalog unavailable")
	}
	if rewards == nil {
		rewards = []models.Reward{}
	}
	return rewards, nil
}
