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

// ActivityOption customises ActivityService behaviour.
type ActivityOption func(*ActivityService)

// WithActivityClock injects a custom clock primarily for testing.
func WithActivityClock(clock func() time.Time) ActivityOption {
	return func(s *ActivityService) {
		if clock != nil {
			s.now = clock
		}
	}
}

// ActivityService manages the lifecycle of scheduled activities.
type ActivityService struct {
	db  *gorm.DB
	now func() time.Time
}

// NewActivityService constructs an ActivityService.
func NewActivityService(db *gorm.DB, opts ...ActivityOption) (*ActivityService, error) {
	if db == nil {
		return nil, errors.New("activity service: db is required")
	}
	service := &ActivityService{db: db, now: time.Now}
	for _, opt := range opts {
		opt(service)
	}
	return service, nil
}

// OpenActivityInput carries the fields needed to schedule a new activity.
type OpenActivityInput struct {
	GroupName string                  `json:"group_name" validate:"required"`
	Name      string                  `json:"name" validate:"required"`
	Category  models.ActivityCategory `json:"category"`
	Capacity  int                     `json:"capacity" validate:"gte=0"`
	LeaderID  string                  `json:"leader_id" validate:"required"`
	StartTime time.Time               `json:"start_time" validate:"required"`
	Region    string                  `json:"region"`
}

// Open schedules a new activity. A zero capacity falls back to the category
// default; the name must be unique within the group.
func (s *ActivityService) Open(ctx context.Context, input OpenActivityInput) (*models.Activity, error) {
	input.Name = strings.TrimSpace(input.Name)
	input.GroupName = strings.TrimSpace(input.GroupName)
	if err := validator.ValidateStruct(input); err != nil {
		return nil, fmt.Errorf("activity service: %w", err)
	}
	if input.Category == "" {
		input.Category = models.CategoryRaid
	}
	if input.Capacity <= 0 {
		input.Capacity = input.Category.DefaultCapacity()
	}
	if !input.StartTime.After(s.now()) {
		return nil, errors.New("activity service: start time must be in the future")
	}

	var count int64
	if err := s.db.WithContext(ctx).Model(&models.Activity{}).
		Where("group_name = ? AND name = ?", input.GroupName, input.Name).
		Count(&count).Error; err != nil {
		return nil, fmt.Errorf("activity service: check name: %w", err)
	}
	if count > 0 {
		return nil, ErrActivityExists
	}

	activity := models.Activity{
		GroupName:      input.GroupName,
		Name:           input.Name,
		Category:       input.Category,
		Capacity:       input.Capacity,
		LeaderID:       input.LeaderID,
		StartTime:      input.StartTime.UTC(),
		Region:         input.Region,
		EnrollmentOpen: true,
	}
	if err := s.db.WithContext(ctx).Create(&activity).Error; err != nil {
		return nil, fmt.Errorf("activity service: create: %w", err)
	}
	return &activity, nil
}

// Get loads an activity by id.
func (s *ActivityService) Get(ctx context.Context, activityID string) (*models.Activity, error) {
	var activity models.Activity
	err := s.db.WithContext(ctx).First(&activity, "id = ?", activityID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrActivityNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("activity service: load: %w", err)
	}
	return &activity, nil
}

// GetByName loads an activity by its group-scoped name.
func (s *ActivityService) GetByName(ctx context.Context, groupName, name string) (*models.Activity, error) {
	var activity models.Activity
	err := s.db.WithContext(ctx).
		Where("group_name = ? AND name = ?", groupName, strings.TrimSpace(name)).
		First(&activity).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrActivityNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("activity service: load by name: %w", err)
	}
	return &activity, nil
}

// Current lists the group's activities that have not started yet, soonest
// first.
func (s *ActivityService) Current(ctx context.Context, groupName string) ([]models.Activity, error) {
	var activities []models.Activity
	if err := s.db.WithContext(ctx).
		Where("group_name = ? AND start_time > ?", groupName, s.now().UTC()).
		Order("start_time ASC").
		Find(&activities).Error; err != nil {
		return nil, fmt.Errorf("activity service: list current: %w", err)
	}
	return activities, nil
}

// ActivityDetail pairs an activity with its current roster size.
type ActivityDetail struct {
	Activity models.Activity `json:"activity"`
	Enrolled int64           `json:"enrolled"`
}

// Detail loads an activity together with its active signup count.
func (s *ActivityService) Detail(ctx context.Context, activityID string) (*ActivityDetail, error) {
	activity, err := s.Get(ctx, activityID)
	if err != nil {
		return nil, err
	}
	var enrolled int64
	if err := s.db.WithContext(ctx).Model(&models.Signup{}).
		Where("activity_id = ? AND status = ?", activity.ID, models.SignupActive).
		Count(&enrolled).Error; err != nil {
		return nil, fmt.Errorf("activity service: count roster: %w", err)
	}
	return &ActivityDetail{Activity: *activity, Enrolled: enrolled}, nil
}

// SetEnrollment opens or closes enrollment for an activity.
func (s *ActivityService) SetEnrollment(ctx context.Context, activityID string, open bool) (*models.Activity, error) {
	activity, err := s.Get(ctx, activityID)
	if err != nil {
		return nil, err
	}
	if activity.EnrollmentOpen == open {
		return activity, nil
	}
	activity.EnrollmentOpen = open
	if err := s.db.WithContext(ctx).Model(activity).
		Update("enrollment_open", open).Error; err != nil {
		return nil, fmt.Errorf("activity service: set enrollment: %w", err)
	}
	return activity, nil
}

// ModifyCapacity changes the roster size. Shrinking below the number of
// already enrolled members is rejected.
func (s *ActivityService) ModifyCapacity(ctx context.Context, activityID string, capacity int) (*models.Activity, error) {
	if capacity <= 0 {
		return nil, errors.New("activity service: capacity must be positive")
	}
	detail, err := s.Detail(ctx, activityID)
	if err != nil {
		return nil, err
	}
	if int64(capacity) < detail.Enrolled {
		return nil, ErrCapacityTooSmall
	}
	detail.Activity.Capacity = capacity
	if err := s.db.WithContext(ctx).Model(&detail.Activity).
		Update("capacity", capacity).Error; err != nil {
		return nil, fmt.Errorf("activity service: modify capacity: %w", err)
	}
	return &detail.Activity, nil
}

// ModifyStartTime reschedules an activity. The new time must be in the
// future; reminder bookkeeping keys on the start time, so moved activities
// remind again for the new slot.
func (s *ActivityService) ModifyStartTime(ctx context.Context, activityID string, start time.Time) (*models.Activity, error) {
	if !start.After(s.now()) {
		return nil, errors.New("activity service: start time must be in the future")
	}
	activity, err := s.Get(ctx, activityID)
	if err != nil {
		return nil, err
	}
	activity.StartTime = start.UTC()
	if err := s.db.WithContext(ctx).Model(activity).
		Update("start_time", activity.StartTime).Error; err != nil {
		return nil, fmt.Errorf("activity service: modify start time: %w", err)
	}
	return activity, nil
}

// Delete removes an activity and all of its signup records.
func (s *ActivityService) Delete(ctx context.Context, activityID string) error {
	activity, err := s.Get(ctx, activityID)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("activity_id = ?", activity.ID).
			Delete(&models.Signup{}).Error; err != nil {
			return fmt.Errorf("activity service: delete signups: %w", err)
		}
		if err := tx.Delete(activity).Error; err != nil {
			return fmt.Errorf("activity service: delete: %w", err)
		}
		return nil
	})
}

// Upcoming lists every activity across all groups starting within the window.
// The reminder sweep uses it to find activities due for notification.
func (s *ActivityService) Upcoming(ctx context.Context, within time.Duration) ([]models.Activity, error) {
	now := s.now().UTC()
	var activities []models.Activity
	if err := s.db.WithContext(ctx).
		Where("start_time > ? AND start_time <= ?", now, now.Add(within)).
		Order("start_time ASC").
		Find(&activities).Error; err != nil {
		return nil, fmt.Errorf("activity service: list upcoming: %w", err)
	}
	return activities, nil
}
