package question

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAnswerSetPreservesOrder(t *testing.T) {
	set := NewAnswerSet()
	set.Record(Answer{Label: "b", Name: "B", Raw: "2", Pretty: "two"})
	set.Record(Answer{Label: "a", Name: "A", Raw: "1", Pretty: "one"})
	set.Record(Answer{Label: "c", Name: "C"})

	answers := set.Answers()
	require.Len(t, answers, 3)
	require.Equal(t, "b", answers[0].Label)
	require.Equal(t, "a", answers[1].Label)
	require.Equal(t, "c", answers[2].Label)
}

func TestAnswerSetReRecordKeepsPosition(t *testing.T) {
	set := NewAnswerSet()
	set.Record(Answer{Label: "a", Raw: "old"})
	set.Record(Answer{Label: "b", Raw: "x"})
	set.Record(Answer{Label: "a", Raw: "new"})

	require.Equal(t, 2, set.Len())
	require.Equal(t, "new", set.Raw("a"))
	require.Equal(t, "a", set.Answers()[0].Label)
}

func TestAnswerSetJSONRoundTrip(t *testing.T) {
	set := NewAnswerSet()
	set.Record(Answer{Label: "first_clear", Name: "First timer", Raw: "1", Pretty: "no"})
	set.Record(Answer{Label: "world", Name: "World", Raw: "2", Pretty: "Gilgamesh"})
	set.Record(Answer{Label: "primary_job", Name: "Primary job"}) // skipped entry

	data, err := json.Marshal(set)
	require.NoError(t, err)

	restored := NewAnswerSet()
	require.NoError(t, json.Unmarshal(data, restored))

	require.Equal(t, set.Answers(), restored.Answers())
}
