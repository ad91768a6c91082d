package validator

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type activityInput struct {
	Name     string `json:"name" validate:"required"`
	Capacity int    `json:"capacity" validate:"gte=1,lte=200"`
}

func TestValidateStructOK(t *testing.T) {
	require.NoError(t, ValidateStruct(activityInput{Name: "weekly savage", Capacity: 8}))
}

func TestValidateStructCollectsFailures(t *testing.T) {
	err := ValidateStruct(activityInput{Capacity: 0})
	require.Error(t, err)

	failures, ok := err.(ValidationErrors)
	require.True(t, ok)
	require.Len(t, failures, 2)
	require.Equal(t, "name", failures[0].Field)
	require.Contains(t, err.Error(), "capacity failed on gte=1")
}
