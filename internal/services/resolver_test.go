package services

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/seiyelan/raidhelper/internal/models"
)

func testRoster() []models.Signup {
	return []models.Signup{
		{Nickname: "Alice Rivers", World: "Aether"},
		{Nickname: "Bran Stonefist", World: "Crystal"},
		{Nickname: "Celia Nightsong", World: "Aether"},
	}
}

func TestResolveNumericTokenIsRosterPosition(t *testing.T) {
	resolver := NewMemberResolver(testRoster())

	out := resolver.Resolve([]string{"2"})
	require.Len(t, out, 1)
	require.True(t, out[0].Resolved())
	require.Equal(t, "Bran Stonefist", out[0].Signup.Nickname)
}

func TestResolveNumericOutOfRange(t *testing.T) {
	resolver := NewMemberResolver(testRoster())

	for _, token := range []string{"0", "4", "-1"} {
		out := resolver.Resolve([]string{token})
		require.False(t, out[0].Resolved(), "token %q", token)
	}
}

func TestResolveFuzzyNicknameMatch(t *testing.T) {
	resolver := NewMemberResolver(testRoster())

	out := resolver.Resolve([]string{"alice rivers", "Celia Nightson"})
	require.Len(t, out, 2)
	require.True(t, out[0].Resolved())
	require.Equal(t, "Alice Rivers", out[0].Signup.Nickname)
	require.True(t, out[1].Resolved())
	require.Equal(t, "Celia Nightsong", out[1].Signup.Nickname)
}

func TestResolveUnmatchedTokenKeepsPosition(t *testing.T) {
	resolver := NewMemberResolver(testRoster())

	out := resolver.Resolve([]string{"1", "zzzzqq", "3"})
	require.Len(t, out, 3)
	require.True(t, out[0].Resolved())
	require.False(t, out[1].Resolved())
	require.Equal(t, "zzzzqq", out[1].Token)
	require.True(t, out[2].Resolved())
}

func TestResolveEmptyRoster(t *testing.T) {
	resolver := NewMemberResolver(nil)

	out := resolver.Resolve([]string{"1", "Alice"})
	require.False(t, out[0].Resolved())
	require.False(t, out[1].Resolved())
}
