package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/seiyelan/raidhelper/internal/chat"
	"github.com/seiyelan/raidhelper/internal/conversation"
	"github.com/seiyelan/raidhelper/internal/models"
	"github.com/seiyelan/raidhelper/internal/question"
	"github.com/seiyelan/raidhelper/pkg/logger"
	"github.com/seiyelan/raidhelper/pkg/metrics"
)

const (
	// defaultSignupCutoff closes applications this long before start.
	defaultSignupCutoff = 24 * time.Hour
	// defaultCancelLimit is how many cancellations an activity tolerates per
	// user before further applications are refused.
	defaultCancelLimit = 3
)

// SheetFunc builds the questionnaire for a group. Groups differ only in
// their world list today, but the indirection keeps per-group sheets open.
type SheetFunc func(groupName string) ([]*question.Question, error)

// LeaderAlertFunc delivers an out-of-band notice to an activity's leader.
// Alerts are best effort; implementations must not block on user replies.
type LeaderAlertFunc func(ctx context.Context, activity *models.Activity, text string)

// SignupOption customises SignupService behaviour.
type SignupOption func(*SignupService)

// WithSignupClock injects a custom clock primarily for testing.
func WithSignupClock(clock func() time.Time) SignupOption {
	return func(s *SignupService) {
		if clock != nil {
			s.now = clock
		}
	}
}

// WithSignupCutoff overrides how long before start applications close.
func WithSignupCutoff(d time.Duration) SignupOption {
	return func(s *SignupService) {
		if d > 0 {
			s.cutoff = d
		}
	}
}

// WithCancelLimit overrides the per-activity cancellation tolerance.
func WithCancelLimit(n int) SignupOption {
	return func(s *SignupService) {
		if n > 0 {
			s.cancelLimit = n
		}
	}
}

// WithLeaderAlert wires the callback used for blacklist hits and
// contact-leader messages.
func WithLeaderAlert(alert LeaderAlertFunc) SignupOption {
	return func(s *SignupService) {
		if alert != nil {
			s.alert = alert
		}
	}
}

// SignupService runs the questionnaire conversation and manages signup
// records for activities.
type SignupService struct {
	db          *gorm.DB
	driver      *conversation.Driver
	blacklist   *BlacklistService
	exempt      *ExemptService
	sheet       SheetFunc
	alert       LeaderAlertFunc
	now         func() time.Time
	cutoff      time.Duration
	cancelLimit int
}

// NewSignupService constructs a SignupService with the provided dependencies.
func NewSignupService(db *gorm.DB, driver *conversation.Driver, blacklist *BlacklistService, exempt *ExemptService, sheet SheetFunc, opts ...SignupOption) (*SignupService, error) {
	if db == nil {
		return nil, errors.New("signup service: db is required")
	}
	if driver == nil {
		return nil, errors.New("signup service: conversation driver is required")
	}
	if blacklist == nil || exempt == nil {
		return nil, errors.New("signup service: blacklist and exempt services are required")
	}
	if sheet == nil {
		return nil, errors.New("signup service: sheet builder is required")
	}

	service := &SignupService{
		db:          db,
		driver:      driver,
		blacklist:   blacklist,
		exempt:      exempt,
		sheet:       sheet,
		alert:       func(context.Context, *models.Activity, string) {},
		now:         time.Now,
		cutoff:      defaultSignupCutoff,
		cancelLimit: defaultCancelLimit,
	}
	for _, opt := range opts {
		opt(service)
	}
	return service, nil
}

// Apply runs the signup conversation for one user and activity. The guards
// run before any question goes out, so refused users are never interviewed.
// A conversation abort leaves any previous active signup untouched.
//
// Blacklisted applicants are interviewed and stored like everyone else, but
// the record is marked rejected, never counts toward capacity, and the leader
// is alerted. The returned signup's status is not meant to reach the
// applicant; callers should confirm success uniformly.
func (s *SignupService) Apply(ctx context.Context, sess chat.Session, activityID string) (*models.Signup, error) {
	activity, err := s.loadActivity(ctx, activityID)
	if err != nil {
		return nil, err
	}

	if !activity.EnrollmentOpen {
		return nil, ErrSignupClosed
	}
	if !s.now().Before(activity.StartTime.Add(-s.cutoff)) {
		return nil, ErrWithinCutoff
	}

	// The abuse guard applies to resubmissions too, before any prompt.
	canceled, err := s.cancelCount(ctx, activity.ID, sess.UserID())
	if err != nil {
		return nil, err
	}
	if canceled > int64(s.cancelLimit) {
		return nil, ErrAbuseLimit
	}

	existing, err := s.activeSignup(ctx, activity.ID, sess.UserID())
	if err != nil {
		return nil, err
	}

	if existing == nil {
		enrolled, err := s.activeCount(ctx, activity.ID)
		if err != nil {
			return nil, err
		}
		if enrolled >= int64(activity.Capacity) {
			return nil, ErrActivityFull
		}
	} else {
		again, err := s.confirmResubmit(ctx, sess)
		if err != nil {
			return nil, err
		}
		if !again {
			return existing, nil
		}
	}

	sheet, err := s.sheet(activity.GroupName)
	if err != nil {
		return nil, fmt.Errorf("signup service: build sheet: %w", err)
	}

	seed, err := s.exemptSeed(ctx, activity.GroupName, sess.UserID())
	if err != nil {
		return nil, err
	}

	answers, err := s.driver.Run(ctx, sess, sheet, seed)
	if err != nil {
		return nil, err
	}

	content, err := json.Marshal(answers)
	if err != nil {
		return nil, fmt.Errorf("signup service: encode answers: %w", err)
	}

	signup := &models.Signup{
		ActivityID: activity.ID,
		UserID:     sess.UserID(),
		Nickname:   answers.Pretty(question.LabelCharacter),
		World:      answers.Pretty(question.LabelWorld),
		Content:    datatypes.JSON(content),
		Status:     models.SignupActive,
	}

	entry, err := s.blacklist.Screen(ctx, activity.GroupName, signup.UserID, signup.Nickname, signup.World)
	if err != nil {
		return nil, err
	}
	if entry != nil {
		signup.Status = models.SignupRejected
		if err := s.db.WithContext(ctx).Create(signup).Error; err != nil {
			return nil, fmt.Errorf("signup service: store rejected signup: %w", err)
		}
		metrics.SignupEvents.WithLabelValues("rejected").Inc()
		s.alert(ctx, activity, fmt.Sprintf(
			"Blacklisted applicant screened out of %s: %s@%s (user %s). Reason on record: %s",
			activity.Name, signup.Nickname, signup.World, signup.UserID, entry.Reason))
		logger.WithModule("signup").Info("blacklisted applicant screened",
			zap.String("activity_id", activity.ID),
			zap.String("user_id", signup.UserID))
		return signup, nil
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var enrolled int64
		if err := tx.Model(&models.Signup{}).
			Where("activity_id = ? AND status = ?", activity.ID, models.SignupActive).
			Count(&enrolled).Error; err != nil {
			return fmt.Errorf("signup service: recount roster: %w", err)
		}
		if existing == nil && enrolled >= int64(activity.Capacity) {
			return ErrActivityFull
		}

		if existing != nil {
			if err := tx.Model(&models.Signup{}).
				Where("id = ?", existing.ID).
				Update("status", models.SignupCanceled).Error; err != nil {
				return fmt.Errorf("signup service: supersede previous: %w", err)
			}
		}
		if err := tx.Create(signup).Error; err != nil {
			return fmt.Errorf("signup service: create: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if existing != nil {
		metrics.SignupEvents.WithLabelValues("reactivated").Inc()
	} else {
		metrics.SignupEvents.WithLabelValues("created").Inc()
	}
	return signup, nil
}

// Cancel withdraws the user's active signup. The canceled row is kept as
// history and counts toward the cancellation limit. Self-service withdrawal
// follows the same window as applications; once enrollment is closed or the
// cutoff has passed, only the leader can change the roster.
func (s *SignupService) Cancel(ctx context.Context, activityID, userID string) (*models.Signup, error) {
	activity, err := s.loadActivity(ctx, activityID)
	if err != nil {
		return nil, err
	}
	if !activity.EnrollmentOpen {
		return nil, ErrSignupClosed
	}
	if !s.now().Before(activity.StartTime.Add(-s.cutoff)) {
		return nil, ErrWithinCutoff
	}

	signup, err := s.activeSignup(ctx, activity.ID, userID)
	if err != nil {
		return nil, err
	}
	if signup == nil {
		return nil, ErrNotSignedUp
	}
	if err := s.db.WithContext(ctx).Model(signup).
		Update("status", models.SignupCanceled).Error; err != nil {
		return nil, fmt.Errorf("signup service: cancel: %w", err)
	}
	signup.Status = models.SignupCanceled
	metrics.SignupEvents.WithLabelValues("canceled").Inc()
	return signup, nil
}

// ViewOwn returns the user's active signup for the activity.
func (s *SignupService) ViewOwn(ctx context.Context, activityID, userID string) (*models.Signup, error) {
	signup, err := s.activeSignup(ctx, activityID, userID)
	if err != nil {
		return nil, err
	}
	if signup == nil {
		return nil, ErrNotSignedUp
	}
	return signup, nil
}

// ListActive returns the activity's roster in signup order.
func (s *SignupService) ListActive(ctx context.Context, activityID string) ([]models.Signup, error) {
	var signups []models.Signup
	if err := s.db.WithContext(ctx).
		Where("activity_id = ? AND status = ?", activityID, models.SignupActive).
		Order("created_at ASC").
		Find(&signups).Error; err != nil {
		return nil, fmt.Errorf("signup service: list roster: %w", err)
	}
	return signups, nil
}

// ContactLeader forwards a short free-form message from a signed-up member to
// the activity leader.
func (s *SignupService) ContactLeader(ctx context.Context, activityID, userID, text string) error {
	activity, err := s.loadActivity(ctx, activityID)
	if err != nil {
		return err
	}
	signup, err := s.activeSignup(ctx, activity.ID, userID)
	if err != nil {
		return err
	}
	if signup == nil {
		return ErrNotSignedUp
	}
	s.alert(ctx, activity, fmt.Sprintf(
		"Message from %s@%s regarding %s: %s", signup.Nickname, signup.World, activity.Name, text))
	return nil
}

func (s *SignupService) loadActivity(ctx context.Context, activityID string) (*models.Activity, error) {
	var activity models.Activity
	err := s.db.WithContext(ctx).First(&activity, "id = ?", activityID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrActivityNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("signup service: load activity: %w", err)
	}
	return &activity, nil
}

func (s *SignupService) activeSignup(ctx context.Context, activityID, userID string) (*models.Signup, error) {
	var signup models.Signup
	err := s.db.WithContext(ctx).
		Where("activity_id = ? AND user_id = ? AND status = ?", activityID, userID, models.SignupActive).
		First(&signup).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("signup service: load signup: %w", err)
	}
	return &signup, nil
}

func (s *SignupService) activeCount(ctx context.Context, activityID string) (int64, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.Signup{}).
		Where("activity_id = ? AND status = ?", activityID, models.SignupActive).
		Count(&count).Error; err != nil {
		return 0, fmt.Errorf("signup service: count roster: %w", err)
	}
	return count, nil
}

func (s *SignupService) cancelCount(ctx context.Context, activityID, userID string) (int64, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.Signup{}).
		Where("activity_id = ? AND user_id = ? AND status = ?", activityID, userID, models.SignupCanceled).
		Count(&count).Error; err != nil {
		return 0, fmt.Errorf("signup service: count cancellations: %w", err)
	}
	return count, nil
}

func (s *SignupService) confirmResubmit(ctx context.Context, sess chat.Session) (bool, error) {
	q, err := question.Build(question.Definition{
		Label: "resubmit",
		Name:  "Resubmit",
		Kind:  question.Boolean,
		Content: "You already signed up for this activity. Submit again? " +
			"The previous submission will be replaced.",
	})
	if err != nil {
		return false, fmt.Errorf("signup service: build resubmit prompt: %w", err)
	}
	answer, err := s.driver.AskOne(ctx, sess, q)
	if err != nil {
		return false, err
	}
	return answer.Raw == "1", nil
}

// exemptSeed pre-fills the identity questions for exempt members so they
// only answer the per-activity ones. Exempt members are returning regulars,
// so the first-timer question is answered for them as well. Seeded labels
// the sheet does not carry are ignored by the driver.
func (s *SignupService) exemptSeed(ctx context.Context, groupName, userID string) (*question.AnswerSet, error) {
	member, err := s.exempt.Find(ctx, groupName, userID)
	if err != nil {
		return nil, err
	}
	if member == nil {
		return nil, nil
	}
	seed := question.NewAnswerSet()
	seed.Record(question.Answer{
		Label:  question.LabelFirstClear,
		Name:   "First timer",
		Raw:    "1",
		Pretty: "no",
	})
	seed.Record(question.Answer{
		Label:  question.LabelWorld,
		Name:   "World",
		Raw:    member.World,
		Pretty: member.World,
	})
	seed.Record(question.Answer{
		Label:  question.LabelCharacter,
		Name:   "Character",
		Raw:    member.Nickname,
		Pretty: member.Nickname,
	})
	if member.Contact != "" {
		seed.Record(question.Answer{
			Label:  question.LabelContact,
			Name:   "Contact",
			Raw:    member.Contact,
			Pretty: member.Contact,
		})
	}
	return seed, nil
}
