package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBlacklistAddRequiresIdentity(t *testing.T) {
	db := openServiceTestDB(t)
	svc, err := NewBlacklistService(db)
	require.NoError(t, err)

	_, err = svc.Add(context.Background(), BlacklistInput{GroupName: "static-one"})
	require.Error(t, err)

	_, err = svc.Add(context.Background(), BlacklistInput{GroupName: "static-one", Nickname: "Bad Actor"})
	require.Error(t, err, "nickname without world is ambiguous")

	_, err = svc.Add(context.Background(), BlacklistInput{GroupName: "static-one", UserID: "u9"})
	require.NoError(t, err)
}

func TestScreenMatchesUserIDFirst(t *testing.T) {
	db := openServiceTestDB(t)
	svc, err := NewBlacklistService(db)
	require.NoError(t, err)

	added, err := svc.Add(context.Background(), BlacklistInput{
		GroupName: "static-one",
		UserID:    "u9",
		Reason:    "no-show",
	})
	require.NoError(t, err)

	entry, err := svc.Screen(context.Background(), "static-one", "u9", "Clean Name", "Aether")
	require.NoError(t, err)
	require.NotNil(t, entry)
	require.Equal(t, added.ID, entry.ID)

	// Other groups are not affected.
	entry, err = svc.Screen(context.Background(), "static-two", "u9", "", "")
	require.NoError(t, err)
	require.Nil(t, entry)
}

func TestScreenCharacterMatchLearnsUserID(t *testing.T) {
	db := openServiceTestDB(t)
	svc, err := NewBlacklistService(db)
	require.NoError(t, err)

	_, err = svc.Add(context.Background(), BlacklistInput{
		GroupName: "static-one",
		Nickname:  "Bad Actor",
		World:     "Aether",
	})
	require.NoError(t, err)

	entry, err := svc.Screen(context.Background(), "static-one", "u9", "Bad Actor", "Aether")
	require.NoError(t, err)
	require.NotNil(t, entry)
	require.Equal(t, "u9", entry.UserID)

	// The learned id now matches even under a new character name.
	entry, err = svc.Screen(context.Background(), "static-one", "u9", "Fresh Start", "Crystal")
	require.NoError(t, err)
	require.NotNil(t, entry)
}

func TestRemoveDeactivatesWithoutDeleting(t *testing.T) {
	db := openServiceTestDB(t)
	svc, err := NewBlacklistService(db)
	require.NoError(t, err)

	_, err = svc.Add(context.Background(), BlacklistInput{GroupName: "static-one", UserID: "u9"})
	require.NoError(t, err)

	removed, err := svc.Remove(context.Background(), "static-one", "u9", "", "")
	require.NoError(t, err)
	require.EqualValues(t, 1, removed)

	entry, err := svc.Screen(context.Background(), "static-one", "u9", "", "")
	require.NoError(t, err)
	require.Nil(t, entry)

	entries, err := svc.List(context.Background(), "static-one")
	require.NoError(t, err)
	require.Empty(t, entries)
}
