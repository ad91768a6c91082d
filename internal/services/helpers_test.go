package services

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/seiyelan/raidhelper/internal/models"
	"github.com/seiyelan/raidhelper/internal/question"
)

func openServiceTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(
		&models.Activity{},
		&models.Signup{},
		&models.BlacklistEntry{},
		&models.ExemptMember{},
	))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = sqlDB.Close()
	})

	return db
}

// testBase is the fixed "now" used by clock-injected tests.
var testBase = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func testClock() time.Time { return testBase }

// testSheet is a three-question questionnaire carrying the labels the signup
// flow extracts. Worlds are answered by choice index.
func testSheet(string) ([]*question.Question, error) {
	defs := []question.Definition{
		{
			Label:        question.LabelWorld,
			Name:         "World",
			Kind:         question.SingleChoice,
			Content:      "Which world?",
			Descriptions: []string{"Aether", "Crystal"},
		},
		{
			Label:   question.LabelCharacter,
			Name:    "Character",
			Kind:    question.Text,
			Content: "Character name",
		},
		{
			Label:   question.LabelContact,
			Name:    "Contact",
			Kind:    question.Text,
			Content: "Contact handle",
		},
	}
	sheet := make([]*question.Question, 0, len(defs))
	for _, def := range defs {
		q, err := question.Build(def)
		if err != nil {
			return nil, err
		}
		sheet = append(sheet, q)
	}
	return sheet, nil
}

func createTestActivity(t *testing.T, db *gorm.DB, capacity int, start time.Time) *models.Activity {
	t.Helper()
	activity := &models.Activity{
		GroupName:      "static-one",
		Name:           "weekly clear",
		Category:       models.CategoryRaid,
		Capacity:       capacity,
		LeaderID:       "leader-1",
		StartTime:      start,
		EnrollmentOpen: true,
	}
	require.NoError(t, db.Create(activity).Error)
	return activity
}

// alertRecorder captures leader alerts fired by the signup service.
type alertRecorder struct {
	alerts []string
}

func (r *alertRecorder) alert(_ context.Context, _ *models.Activity, text string) {
	r.alerts = append(r.alerts, text)
}
