package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/seiyelan/raidhelper/internal/models"
	"github.com/seiyelan/raidhelper/pkg/validator"
)

// defaultExemptTerm is how long an exemption stays valid before it must be
// refreshed.
const defaultExemptTerm = 3 * 30 * 24 * time.Hour

// ExemptOption customises ExemptService behaviour.
type ExemptOption func(*ExemptService)

// WithExemptTerm overrides the exemption lifetime.
func WithExemptTerm(d time.Duration) ExemptOption {
	return func(s *ExemptService) {
		if d > 0 {
			s.term = d
		}
	}
}

// WithExemptClock injects a custom clock primarily for testing.
func WithExemptClock(clock func() time.Time) ExemptOption {
	return func(s *ExemptService) {
		if clock != nil {
			s.now = clock
		}
	}
}

// ExemptService manages trusted regulars whose questionnaires are partially
// auto-filled.
type ExemptService struct {
	db   *gorm.DB
	term time.Duration
	now  func() time.Time
}

// NewExemptService constructs an ExemptService.
func NewExemptService(db *gorm.DB, opts ...ExemptOption) (*ExemptService, error) {
	if db == nil {
		return nil, errors.New("exempt service: db is required")
	}
	service := &ExemptService{db: db, term: defaultExemptTerm, now: time.Now}
	for _, opt := range opts {
		opt(service)
	}
	return service, nil
}

// ExemptInput carries the fields for a new exemption.
type ExemptInput struct {
	GroupName string `json:"group_name" validate:"required"`
	UserID    string `json:"user_id" validate:"required"`
	Nickname  string `json:"nickname" validate:"required"`
	World     string `json:"world" validate:"required"`
	Contact   string `json:"contact"`
	Remark    string `json:"remark"`
}

// Add grants or renews an exemption. Re-adding an existing member refreshes
// the character details and restarts the expiry clock.
func (s *ExemptService) Add(ctx context.Context, input ExemptInput) (*models.ExemptMember, error) {
	input.UserID = strings.TrimSpace(input.UserID)
	input.Nickname = strings.TrimSpace(input.Nickname)
	input.World = strings.TrimSpace(input.World)
	if err := validator.ValidateStruct(input); err != nil {
		return nil, fmt.Errorf("exempt service: %w", err)
	}

	expires := s.now().Add(s.term).UTC()

	var member models.ExemptMember
	err := s.db.WithContext(ctx).
		Where("group_name = ? AND user_id = ?", input.GroupName, input.UserID).
		First(&member).Error
	switch {
	case err == nil:
		member.Nickname = input.Nickname
		member.World = input.World
		member.Contact = input.Contact
		member.Remark = input.Remark
		member.ExpiresAt = expires
		if err := s.db.WithContext(ctx).Save(&member).Error; err != nil {
			return nil, fmt.Errorf("exempt service: renew: %w", err)
		}
		return &member, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		member = models.ExemptMember{
			GroupName: input.GroupName,
			UserID:    input.UserID,
			Nickname:  input.Nickname,
			World:     input.World,
			Contact:   input.Contact,
			Remark:    input.Remark,
			ExpiresAt: expires,
		}
		if err := s.db.WithContext(ctx).Create(&member).Error; err != nil {
			return nil, fmt.Errorf("exempt service: create: %w", err)
		}
		return &member, nil
	default:
		return nil, fmt.Errorf("exempt service: lookup: %w", err)
	}
}

// Remove revokes a member's exemption.
func (s *ExemptService) Remove(ctx context.Context, groupName, userID string) error {
	result := s.db.WithContext(ctx).
		Where("group_name = ? AND user_id = ?", groupName, strings.TrimSpace(userID)).
		Delete(&models.ExemptMember{})
	if result.Error != nil {
		return fmt.Errorf("exempt service: remove: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrMemberNotFound
	}
	return nil
}

// Refresh restarts the expiry clock on an existing exemption.
func (s *ExemptService) Refresh(ctx context.Context, groupName, userID string) (*models.ExemptMember, error) {
	var member models.ExemptMember
	err := s.db.WithContext(ctx).
		Where("group_name = ? AND user_id = ?", groupName, strings.TrimSpace(userID)).
		First(&member).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrMemberNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("exempt service: lookup: %w", err)
	}
	member.ExpiresAt = s.now().Add(s.term).UTC()
	if err := s.db.WithContext(ctx).Model(&member).
		Update("expires_at", member.ExpiresAt).Error; err != nil {
		return nil, fmt.Errorf("exempt service: refresh: %w", err)
	}
	return &member, nil
}

// List returns the group's unexpired exemptions, soonest expiry first.
func (s *ExemptService) List(ctx context.Context, groupName string) ([]models.ExemptMember, error) {
	var members []models.ExemptMember
	if err := s.db.WithContext(ctx).
		Where("group_name = ? AND expires_at > ?", groupName, s.now().UTC()).
		Order("expires_at ASC").
		Find(&members).Error; err != nil {
		return nil, fmt.Errorf("exempt service: list: %w", err)
	}
	return members, nil
}

// Find returns the user's unexpired exemption, or nil when none applies. An
// expired row simply stops matching; it is not deleted.
func (s *ExemptService) Find(ctx context.Context, groupName, userID string) (*models.ExemptMember, error) {
	var member models.ExemptMember
	err := s.db.WithContext(ctx).
		Where("group_name = ? AND user_id = ? AND expires_at > ?", groupName, userID, s.now().UTC()).
		First(&member).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("exempt service: find: %w", err)
	}
	return &member, nil
}
