package repository

import (
	"context"
	"errors"
	"fmt"

	"notetracker/internal/models"

	"gorm.io/gorm"
)

// AccountStore reads per-user channel configuration
type AccountStore struct {
	db *gorm.DB
}

func NewAccountStore(db *gorm.DB) *AccountStore {
	return &AccountStore{db: db}
}

// GetConfiguredChannels returns the channels available to a user.
// In-app is always present, even for users without an account row.
func (s *AccountStore) GetConfiguredChannels(ctx context.Context, userID uint) (models.ChannelSet, error) {
	var account models.Account
	err := s.db.WithContext(ctx).First(&account, userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.ChannelSet{models.ChannelInApp: {UserID: userID}}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load channel configuration for user %d: %w", userID, err)
	}
	return account.Channels(), nil
}
