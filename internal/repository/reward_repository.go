package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/moodpoints-api/internal/models"
)

// RewardRepository reads the reward catalog.
type RewardRepository struct {
	db *sqlx.DB
}

// NewRewardRepository constructs a RewardRepository.
func NewRewardRepository(db *sqlx.DB) *RewardRepository {
	return &RewardRepository{db: db}
}

// ListActive returns active rewards ordered by cost.
func (r *RewardRepository) ListActive(ctx context.Context) ([]models.Reward, error) {
	const query = `SELECT id, name, cost, description, image_url, active FROM rewards WHERE active = TRUE ORDER BY cost ASC, name ASC`
	var rewards []models.Reward
	if err := r.db.SelectContext(ctx, &rewards, query); err != nil {
		return nil, fmt.Errorf("list rewards: %w", err)
	}
	return rewards, nil
}

// FindByID returns an active reward. Missing or inactive rewards yield sql.ErrNoRows.
func (r *RewardRepository) FindByID(ctx context.Context, id string) (*models.Reward, error) {
	const query = `SELECT id, name, cost, description, image_url, active FROM rewards WHERE id = $1 AND active = TRUE`
	var reward models.Reward
	if err := r.db.GetContext(ctx, &reward, query, id); err != nil {
		return nil, err
	}
	return &reward, nil
}
