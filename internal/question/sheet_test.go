package question

import (
	"testing"

	"github.com/stretchr/testify/require"
)

var testWorlds = []string{"Sargatanas", "Gilgamesh", "Balmung"}

func sheetByLabel(t *testing.T) map[string]*Question {
	t.Helper()
	sheet, err := RaidSheet(testWorlds)
	require.NoError(t, err)

	byLabel := make(map[string]*Question, len(sheet))
	for _, q := range sheet {
		byLabel[q.Label] = q
	}
	return byLabel
}

func TestRaidSheetOrder(t *testing.T) {
	sheet, err := RaidSheet(testWorlds)
	require.NoError(t, err)

	labels := make([]string, len(sheet))
	for i, q := range sheet {
		labels[i] = q.Label
	}
	require.Equal(t, []string{
		LabelFirstClear, LabelWorld, LabelCharacter, LabelContact,
		LabelReassign, LabelPrimaryRole, LabelPrimaryJob,
		LabelSecondaryRole, LabelSecondaryJob, LabelMedal, LabelComment,
	}, labels)
}

func TestPrimaryJobConstrainedByRole(t *testing.T) {
	byLabel := sheetByLabel(t)
	job := byLabel[LabelPrimaryJob]

	prior := NewAnswerSet()
	prior.Record(Answer{Label: LabelPrimaryRole, Raw: "1", Pretty: "Tank"})

	// Tank has four jobs; key 5 is out of range.
	require.True(t, job.Accept("4", prior))
	require.False(t, job.Accept("5", prior))
	require.Equal(t, "Gunbreaker", job.Pretty("4", prior))
	require.False(t, job.Skip(prior))
}

func TestOmniRoleSkipsJobQuestions(t *testing.T) {
	byLabel := sheetByLabel(t)

	prior := NewAnswerSet()
	prior.Record(Answer{Label: LabelPrimaryRole, Raw: "6", Pretty: RoleOmni})
	prior.Record(Answer{Label: LabelReassign, Raw: "1", Pretty: "yes"})

	require.True(t, byLabel[LabelPrimaryJob].Skip(prior))
	require.True(t, byLabel[LabelSecondaryRole].Skip(prior))
	require.True(t, byLabel[LabelSecondaryJob].Skip(prior))
}

func TestDecliningReassignmentSkipsSecondaryOnly(t *testing.T) {
	byLabel := sheetByLabel(t)

	prior := NewAnswerSet()
	prior.Record(Answer{Label: LabelPrimaryRole, Raw: "2", Pretty: "Healer"})
	prior.Record(Answer{Label: LabelReassign, Raw: "0", Pretty: "no"})

	require.False(t, byLabel[LabelPrimaryJob].Skip(prior))
	require.True(t, byLabel[LabelSecondaryRole].Skip(prior))
	require.True(t, byLabel[LabelSecondaryJob].Skip(prior))
}

func TestSecondaryRoleExcludesPrimary(t *testing.T) {
	byLabel := sheetByLabel(t)
	secondary := byLabel[LabelSecondaryRole]

	prior := NewAnswerSet()
	prior.Record(Answer{Label: LabelPrimaryRole, Raw: "1", Pretty: "Tank"})
	prior.Record(Answer{Label: LabelReassign, Raw: "1", Pretty: "yes"})

	content := secondary.Content(prior)
	require.NotContains(t, content, "Tank")
	require.Contains(t, content, "Healer")

	// Key 1 now maps to Healer because Tank was filtered out.
	require.Equal(t, "Healer", secondary.Pretty("1", prior))
}

func TestFirstClearPolarityInverted(t *testing.T) {
	byLabel := sheetByLabel(t)
	first := byLabel[LabelFirstClear]

	prior := NewAnswerSet()
	// Answering "1" (cleared) exports first-timer = no.
	require.Equal(t, "no", first.Pretty("1", prior))
	require.Equal(t, "yes", first.Pretty("0", prior))
}

func TestMedalQuestionSingleLine(t *testing.T) {
	byLabel := sheetByLabel(t)
	content := byLabel[LabelMedal].Content(NewAnswerSet())
	require.Contains(t, content, "0 1 2 3 4 5 6 7 8 9 10")
}
