package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/seiyelan/raidhelper/internal/chat/chattest"
	"github.com/seiyelan/raidhelper/internal/conversation"
	"github.com/seiyelan/raidhelper/internal/models"
	"github.com/seiyelan/raidhelper/internal/question"
)

func newSignupTestService(t *testing.T, db *gorm.DB, opts ...SignupOption) *SignupService {
	t.Helper()

	blacklist, err := NewBlacklistService(db)
	require.NoError(t, err)
	exempt, err := NewExemptService(db, WithExemptClock(testClock))
	require.NoError(t, err)

	base := []SignupOption{WithSignupClock(testClock)}
	svc, err := NewSignupService(db, conversation.New(), blacklist, exempt, testSheet, append(base, opts...)...)
	require.NoError(t, err)
	return svc
}

func TestApplyCreatesSignup(t *testing.T) {
	db := openServiceTestDB(t)
	svc := newSignupTestService(t, db)
	activity := createTestActivity(t, db, 8, testBase.Add(48*time.Hour))

	sess := chattest.NewSession("u1", "2", "Alice Rivers", "alice@example.com")
	signup, err := svc.Apply(context.Background(), sess, activity.ID)
	require.NoError(t, err)
	require.Equal(t, models.SignupActive, signup.Status)
	require.Equal(t, "Alice Rivers", signup.Nickname)
	require.Equal(t, "Crystal", signup.World)

	roster, err := svc.ListActive(context.Background(), activity.ID)
	require.NoError(t, err)
	require.Len(t, roster, 1)
}

func TestApplyRejectsWhenEnrollmentClosed(t *testing.T) {
	db := openServiceTestDB(t)
	svc := newSignupTestService(t, db)
	activity := createTestActivity(t, db, 8, testBase.Add(48*time.Hour))
	require.NoError(t, db.Model(activity).Update("enrollment_open", false).Error)

	sess := chattest.NewSession("u1", "1", "Alice", "mail")
	_, err := svc.Apply(context.Background(), sess, activity.ID)
	require.ErrorIs(t, err, ErrSignupClosed)
	require.Empty(t, sess.Sent())
}

func TestApplyCutoffBoundary(t *testing.T) {
	db := openServiceTestDB(t)
	svc := newSignupTestService(t, db)

	// Exactly 24h out is already closed.
	atCutoff := createTestActivity(t, db, 8, testBase.Add(24*time.Hour))
	sess := chattest.NewSession("u1", "1", "Alice", "mail")
	_, err := svc.Apply(context.Background(), sess, atCutoff.ID)
	require.ErrorIs(t, err, ErrWithinCutoff)

	// One second more and applications are accepted.
	open := &models.Activity{
		GroupName:      "static-one",
		Name:           "barely open",
		Category:       models.CategoryRaid,
		Capacity:       8,
		LeaderID:       "leader-1",
		StartTime:      testBase.Add(24*time.Hour + time.Second),
		EnrollmentOpen: true,
	}
	require.NoError(t, db.Create(open).Error)

	sess = chattest.NewSession("u1", "1", "Alice", "mail")
	signup, err := svc.Apply(context.Background(), sess, open.ID)
	require.NoError(t, err)
	require.Equal(t, models.SignupActive, signup.Status)
}

func TestApplyFillsCapacityThenRejects(t *testing.T) {
	db := openServiceTestDB(t)
	svc := newSignupTestService(t, db)
	activity := createTestActivity(t, db, 2, testBase.Add(48*time.Hour))

	for i, user := range []string{"u1", "u2"} {
		sess := chattest.NewSession(user, "1", "Member", "mail")
		_, err := svc.Apply(context.Background(), sess, activity.ID)
		require.NoError(t, err, "member %d", i+1)
	}

	sess := chattest.NewSession("u3", "1", "Latecomer", "mail")
	_, err := svc.Apply(context.Background(), sess, activity.ID)
	require.ErrorIs(t, err, ErrActivityFull)
	require.Empty(t, sess.Sent())
}

func TestApplyCancellationLimit(t *testing.T) {
	db := openServiceTestDB(t)
	svc := newSignupTestService(t, db)
	activity := createTestActivity(t, db, 8, testBase.Add(48*time.Hour))

	for i := 0; i < 4; i++ {
		require.NoError(t, db.Create(&models.Signup{
			ActivityID: activity.ID,
			UserID:     "u1",
			Content:    datatypes.JSON("[]"),
			Status:     models.SignupCanceled,
		}).Error)
	}

	sess := chattest.NewSession("u1", "1", "Alice", "mail")
	_, err := svc.Apply(context.Background(), sess, activity.ID)
	require.ErrorIs(t, err, ErrAbuseLimit)
}

func TestApplyResubmitBlockedByCancellationLimit(t *testing.T) {
	db := openServiceTestDB(t)
	svc := newSignupTestService(t, db)
	activity := createTestActivity(t, db, 8, testBase.Add(48*time.Hour))

	first := chattest.NewSession("u1", "1", "Alice", "mail")
	_, err := svc.Apply(context.Background(), first, activity.ID)
	require.NoError(t, err)

	for i := 0; i < 4; i++ {
		require.NoError(t, db.Create(&models.Signup{
			ActivityID: activity.ID,
			UserID:     "u1",
			Content:    datatypes.JSON("[]"),
			Status:     models.SignupCanceled,
		}).Error)
	}

	// An active record does not bypass the abuse guard; the resubmit prompt
	// never goes out.
	second := chattest.NewSession("u1", "1")
	_, err = svc.Apply(context.Background(), second, activity.ID)
	require.ErrorIs(t, err, ErrAbuseLimit)
	require.Empty(t, second.Sent())
}

func TestApplyResubmitDeclinedKeepsExisting(t *testing.T) {
	db := openServiceTestDB(t)
	svc := newSignupTestService(t, db)
	activity := createTestActivity(t, db, 8, testBase.Add(48*time.Hour))

	first := chattest.NewSession("u1", "1", "Alice", "mail")
	original, err := svc.Apply(context.Background(), first, activity.ID)
	require.NoError(t, err)

	// "0" declines the resubmit prompt.
	second := chattest.NewSession("u1", "0")
	kept, err := svc.Apply(context.Background(), second, activity.ID)
	require.NoError(t, err)
	require.Equal(t, original.ID, kept.ID)

	roster, err := svc.ListActive(context.Background(), activity.ID)
	require.NoError(t, err)
	require.Len(t, roster, 1)
}

func TestApplyResubmitReplacesPrevious(t *testing.T) {
	db := openServiceTestDB(t)
	svc := newSignupTestService(t, db)
	activity := createTestActivity(t, db, 8, testBase.Add(48*time.Hour))

	first := chattest.NewSession("u1", "1", "Alice", "mail")
	original, err := svc.Apply(context.Background(), first, activity.ID)
	require.NoError(t, err)

	second := chattest.NewSession("u1", "1", "2", "Alice Renamed", "new-mail")
	replacement, err := svc.Apply(context.Background(), second, activity.ID)
	require.NoError(t, err)
	require.NotEqual(t, original.ID, replacement.ID)
	require.Equal(t, "Alice Renamed", replacement.Nickname)

	roster, err := svc.ListActive(context.Background(), activity.ID)
	require.NoError(t, err)
	require.Len(t, roster, 1)
	require.Equal(t, replacement.ID, roster[0].ID)

	var superseded models.Signup
	require.NoError(t, db.First(&superseded, "id = ?", original.ID).Error)
	require.Equal(t, models.SignupCanceled, superseded.Status)
}

func TestApplyAbortKeepsPreviousSignup(t *testing.T) {
	db := openServiceTestDB(t)
	svc := newSignupTestService(t, db)
	activity := createTestActivity(t, db, 8, testBase.Add(48*time.Hour))

	first := chattest.NewSession("u1", "1", "Alice", "mail")
	original, err := svc.Apply(context.Background(), first, activity.ID)
	require.NoError(t, err)

	// Accept the resubmit prompt, then stop replying mid-sheet.
	second := chattest.NewSession("u1", "1", "2")
	_, err = svc.Apply(context.Background(), second, activity.ID)
	require.ErrorIs(t, err, conversation.ErrTimeout)

	roster, err := svc.ListActive(context.Background(), activity.ID)
	require.NoError(t, err)
	require.Len(t, roster, 1)
	require.Equal(t, original.ID, roster[0].ID)
}

func TestApplyBlacklistedApplicantScreened(t *testing.T) {
	db := openServiceTestDB(t)
	recorder := &alertRecorder{}
	svc := newSignupTestService(t, db, WithLeaderAlert(recorder.alert))
	activity := createTestActivity(t, db, 8, testBase.Add(48*time.Hour))

	blacklist, err := NewBlacklistService(db)
	require.NoError(t, err)
	_, err = blacklist.Add(context.Background(), BlacklistInput{
		GroupName: activity.GroupName,
		Nickname:  "Bad Actor",
		World:     "Aether",
		Reason:    "ninja looting",
	})
	require.NoError(t, err)

	sess := chattest.NewSession("u9", "1", "Bad Actor", "mail")
	signup, err := svc.Apply(context.Background(), sess, activity.ID)
	require.NoError(t, err)
	require.Equal(t, models.SignupRejected, signup.Status)

	// Rejected records never count toward the roster.
	roster, err := svc.ListActive(context.Background(), activity.ID)
	require.NoError(t, err)
	require.Empty(t, roster)

	require.Len(t, recorder.alerts, 1)
	require.Contains(t, recorder.alerts[0], "Bad Actor")

	// The entry learned the platform id from the character match.
	var entry models.BlacklistEntry
	require.NoError(t, db.First(&entry, "nickname = ?", "Bad Actor").Error)
	require.Equal(t, "u9", entry.UserID)
}

func TestApplyExemptMemberSkipsSeededQuestions(t *testing.T) {
	db := openServiceTestDB(t)
	svc := newSignupTestService(t, db)
	activity := createTestActivity(t, db, 8, testBase.Add(48*time.Hour))

	exempt, err := NewExemptService(db, WithExemptClock(testClock))
	require.NoError(t, err)
	_, err = exempt.Add(context.Background(), ExemptInput{
		GroupName: activity.GroupName,
		UserID:    "u1",
		Nickname:  "Old Guard",
		World:     "Aether",
	})
	require.NoError(t, err)

	// Only the contact question is left to answer.
	sess := chattest.NewSession("u1", "mail")
	signup, err := svc.Apply(context.Background(), sess, activity.ID)
	require.NoError(t, err)
	require.Equal(t, "Old Guard", signup.Nickname)
	require.Equal(t, "Aether", signup.World)
	require.Len(t, sess.Sent(), 1)
}

func TestExemptSeedPrefillsIdentityAndFirstTimer(t *testing.T) {
	db := openServiceTestDB(t)
	svc := newSignupTestService(t, db)

	exempt, err := NewExemptService(db, WithExemptClock(testClock))
	require.NoError(t, err)
	_, err = exempt.Add(context.Background(), ExemptInput{
		GroupName: "static-one",
		UserID:    "u1",
		Nickname:  "Old Guard",
		World:     "Aether",
		Contact:   "guard@example.com",
	})
	require.NoError(t, err)

	seed, err := svc.exemptSeed(context.Background(), "static-one", "u1")
	require.NoError(t, err)
	require.NotNil(t, seed)

	firstClear, ok := seed.Get(question.LabelFirstClear)
	require.True(t, ok)
	require.Equal(t, "no", firstClear.Pretty)

	contact, ok := seed.Get(question.LabelContact)
	require.True(t, ok)
	require.Equal(t, "guard@example.com", contact.Raw)

	world, ok := seed.Get(question.LabelWorld)
	require.True(t, ok)
	require.Equal(t, "Aether", world.Raw)
}

func TestCancelFlipsStatusAndKeepsHistory(t *testing.T) {
	db := openServiceTestDB(t)
	svc := newSignupTestService(t, db)
	activity := createTestActivity(t, db, 8, testBase.Add(48*time.Hour))

	sess := chattest.NewSession("u1", "1", "Alice", "mail")
	_, err := svc.Apply(context.Background(), sess, activity.ID)
	require.NoError(t, err)

	canceled, err := svc.Cancel(context.Background(), activity.ID, "u1")
	require.NoError(t, err)
	require.Equal(t, models.SignupCanceled, canceled.Status)

	_, err = svc.Cancel(context.Background(), activity.ID, "u1")
	require.ErrorIs(t, err, ErrNotSignedUp)

	var count int64
	require.NoError(t, db.Model(&models.Signup{}).
		Where("activity_id = ?", activity.ID).Count(&count).Error)
	require.EqualValues(t, 1, count)
}

func TestCancelRejectedWhenEnrollmentClosed(t *testing.T) {
	db := openServiceTestDB(t)
	svc := newSignupTestService(t, db)
	activity := createTestActivity(t, db, 8, testBase.Add(48*time.Hour))

	sess := chattest.NewSession("u1", "1", "Alice", "mail")
	_, err := svc.Apply(context.Background(), sess, activity.ID)
	require.NoError(t, err)

	require.NoError(t, db.Model(activity).Update("enrollment_open", false).Error)

	_, err = svc.Cancel(context.Background(), activity.ID, "u1")
	require.ErrorIs(t, err, ErrSignupClosed)

	roster, err := svc.ListActive(context.Background(), activity.ID)
	require.NoError(t, err)
	require.Len(t, roster, 1)
}

func TestCancelInsideCutoffRequiresLeader(t *testing.T) {
	db := openServiceTestDB(t)
	svc := newSignupTestService(t, db)
	activity := createTestActivity(t, db, 8, testBase.Add(48*time.Hour))

	sess := chattest.NewSession("u1", "1", "Alice", "mail")
	_, err := svc.Apply(context.Background(), sess, activity.ID)
	require.NoError(t, err)

	// The activity is moved inside the cutoff; self-service withdrawal is
	// closed from here on.
	require.NoError(t, db.Model(activity).
		Update("start_time", testBase.Add(12*time.Hour)).Error)

	_, err = svc.Cancel(context.Background(), activity.ID, "u1")
	require.ErrorIs(t, err, ErrWithinCutoff)

	roster, err := svc.ListActive(context.Background(), activity.ID)
	require.NoError(t, err)
	require.Len(t, roster, 1)
}

func TestActiveSignupUniquePerUser(t *testing.T) {
	db := openServiceTestDB(t)
	activity := createTestActivity(t, db, 8, testBase.Add(48*time.Hour))

	require.NoError(t, db.Create(&models.Signup{
		ActivityID: activity.ID,
		UserID:     "u1",
		Content:    datatypes.JSON("[]"),
		Status:     models.SignupActive,
	}).Error)

	// A second active row for the same pair violates the partial unique
	// index; history rows do not.
	err := db.Create(&models.Signup{
		ActivityID: activity.ID,
		UserID:     "u1",
		Content:    datatypes.JSON("[]"),
		Status:     models.SignupActive,
	}).Error
	require.Error(t, err)

	require.NoError(t, db.Create(&models.Signup{
		ActivityID: activity.ID,
		UserID:     "u1",
		Content:    datatypes.JSON("[]"),
		Status:     models.SignupCanceled,
	}).Error)
}

func TestViewOwnReturnsActiveRecord(t *testing.T) {
	db := openServiceTestDB(t)
	svc := newSignupTestService(t, db)
	activity := createTestActivity(t, db, 8, testBase.Add(48*time.Hour))

	_, err := svc.ViewOwn(context.Background(), activity.ID, "u1")
	require.ErrorIs(t, err, ErrNotSignedUp)

	sess := chattest.NewSession("u1", "1", "Alice", "mail")
	_, err = svc.Apply(context.Background(), sess, activity.ID)
	require.NoError(t, err)

	signup, err := svc.ViewOwn(context.Background(), activity.ID, "u1")
	require.NoError(t, err)
	require.Equal(t, "Alice", signup.Nickname)
}

func TestContactLeaderRequiresActiveSignup(t *testing.T) {
	db := openServiceTestDB(t)
	recorder := &alertRecorder{}
	svc := newSignupTestService(t, db, WithLeaderAlert(recorder.alert))
	activity := createTestActivity(t, db, 8, testBase.Add(48*time.Hour))

	err := svc.ContactLeader(context.Background(), activity.ID, "u1", "running late")
	require.ErrorIs(t, err, ErrNotSignedUp)

	sess := chattest.NewSession("u1", "1", "Alice", "mail")
	_, err = svc.Apply(context.Background(), sess, activity.ID)
	require.NoError(t, err)

	require.NoError(t, svc.ContactLeader(context.Background(), activity.ID, "u1", "running late"))
	require.Len(t, recorder.alerts, 1)
	require.Contains(t, recorder.alerts[0], "running late")
}
