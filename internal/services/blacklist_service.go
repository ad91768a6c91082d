package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/seiyelan/raidhelper/internal/models"
	"github.com/seiyelan/raidhelper/pkg/logger"
	"github.com/seiyelan/raidhelper/pkg/validator"
)

// BlacklistService screens applicants against group-scoped blacklist entries.
type BlacklistService struct {
	db *gorm.DB
}

// NewBlacklistService constructs a BlacklistService.
func NewBlacklistService(db *gorm.DB) (*BlacklistService, error) {
	if db == nil {
		return nil, errors.New("blacklist service: db is required")
	}
	return &BlacklistService{db: db}, nil
}

// BlacklistInput carries the fields for a new blacklist entry. Either a user
// id or a (nickname, world) pair must be present; both is fine.
type BlacklistInput struct {
	GroupName string `json:"group_name" validate:"required"`
	UserID    string `json:"user_id"`
	Nickname  string `json:"nickname"`
	World     string `json:"world"`
	Reason    string `json:"reason"`
}

// Add records a new active blacklist entry.
func (s *BlacklistService) Add(ctx context.Context, input BlacklistInput) (*models.BlacklistEntry, error) {
	input.UserID = strings.TrimSpace(input.UserID)
	input.Nickname = strings.TrimSpace(input.Nickname)
	input.World = strings.TrimSpace(input.World)
	if err := validator.ValidateStruct(input); err != nil {
		return nil, fmt.Errorf("blacklist service: %w", err)
	}
	if input.UserID == "" && (input.Nickname == "" || input.World == "") {
		return nil, errors.New("blacklist service: a user id or a nickname with world is required")
	}

	entry := models.BlacklistEntry{
		GroupName: input.GroupName,
		UserID:    input.UserID,
		Nickname:  input.Nickname,
		World:     input.World,
		Reason:    input.Reason,
		Active:    true,
	}
	if err := s.db.WithContext(ctx).Create(&entry).Error; err != nil {
		return nil, fmt.Errorf("blacklist service: create: %w", err)
	}
	return &entry, nil
}

// Remove deactivates every entry matching the user id or (nickname, world)
// pair. Rows are kept for audit; only Active flips.
func (s *BlacklistService) Remove(ctx context.Context, groupName, userID, nickname, world string) (int64, error) {
	query := s.db.WithContext(ctx).Model(&models.BlacklistEntry{}).
		Where("group_name = ? AND active = ?", groupName, true)

	switch {
	case strings.TrimSpace(userID) != "":
		query = query.Where("user_id = ?", strings.TrimSpace(userID))
	case strings.TrimSpace(nickname) != "" && strings.TrimSpace(world) != "":
		query = query.Where("nickname = ? AND world = ?", strings.TrimSpace(nickname), strings.TrimSpace(world))
	default:
		return 0, errors.New("blacklist service: a user id or a nickname with world is required")
	}

	result := query.Update("active", false)
	if result.Error != nil {
		return 0, fmt.Errorf("blacklist service: remove: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// List returns the group's active entries, newest first.
func (s *BlacklistService) List(ctx context.Context, groupName string) ([]models.BlacklistEntry, error) {
	var entries []models.BlacklistEntry
	if err := s.db.WithContext(ctx).
		Where("group_name = ? AND active = ?", groupName, true).
		Order("created_at DESC").
		Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("blacklist service: list: %w", err)
	}
	return entries, nil
}

// Screen checks an applicant against the group's blacklist. The user id is
// checked first, then the (nickname, world) pair. When only the character
// matches, the entry learns the applicant's platform id so future screens
// catch renamed characters too.
func (s *BlacklistService) Screen(ctx context.Context, groupName, userID, nickname, world string) (*models.BlacklistEntry, error) {
	var entry models.BlacklistEntry
	err := s.db.WithContext(ctx).
		Where("group_name = ? AND active = ? AND user_id = ?", groupName, true, userID).
		First(&entry).Error
	if err == nil {
		return &entry, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("blacklist service: screen by user: %w", err)
	}

	if nickname == "" || world == "" {
		return nil, nil
	}
	err = s.db.WithContext(ctx).
		Where("group_name = ? AND active = ? AND nickname = ? AND world = ?", groupName, true, nickname, world).
		First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("blacklist service: screen by character: %w", err)
	}

	if entry.UserID == "" && userID != "" {
		if updateErr := s.db.WithContext(ctx).Model(&entry).
			Update("user_id", userID).Error; updateErr != nil {
			logger.WithModule("blacklist").Warn("failed to attach user id to entry",
				zap.String("entry_id", entry.ID),
				zap.Error(updateErr))
		} else {
			entry.UserID = userID
		}
	}
	return &entry, nil
}
