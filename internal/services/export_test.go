package services

import (
	"bytes"
	"context"
	"encoding/csv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/seiyelan/raidhelper/internal/chat/chattest"
)

func TestExportCSVRendersActiveRoster(t *testing.T) {
	db := openServiceTestDB(t)
	svc := newSignupTestService(t, db)
	activity := createTestActivity(t, db, 8, testBase.Add(48*time.Hour))

	first := chattest.NewSession("u1", "1", "Alice Rivers", "alice@example.com")
	_, err := svc.Apply(context.Background(), first, activity.ID)
	require.NoError(t, err)

	second := chattest.NewSession("u2", "2", "Bran Stonefist", "bran@example.com")
	_, err = svc.Apply(context.Background(), second, activity.ID)
	require.NoError(t, err)

	// Canceled members never show up in the export.
	_, err = svc.Cancel(context.Background(), activity.ID, "u2")
	require.NoError(t, err)

	out, err := svc.ExportCSV(context.Background(), activity.ID)
	require.NoError(t, err)

	records, err := csv.NewReader(bytes.NewReader(out)).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)

	require.Equal(t, []string{"User ID", "World", "Character", "Contact"}, records[0])
	require.Equal(t, []string{"u1", "Aether", "Alice Rivers", "alice@example.com"}, records[1])
}

func TestExportCSVEmptyRosterHasHeaderOnly(t *testing.T) {
	db := openServiceTestDB(t)
	svc := newSignupTestService(t, db)
	activity := createTestActivity(t, db, 8, testBase.Add(48*time.Hour))

	out, err := svc.ExportCSV(context.Background(), activity.ID)
	require.NoError(t, err)

	records, err := csv.NewReader(bytes.NewReader(out)).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 1)
}
