package service

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGradeAnswersCountsExactMatches(t *testing.T) {
	key := []string{"A", "B", "C", "D"}

	cases := []struct {
		name      string
		submitted []string
		raw       int
	}{
		{"all correct", []string{"A", "B", "C", "D"}, 4},
		{"last wrong", []string{"A", "B", "C", "A"}, 3},
		{"third wrong", []string{"A", "B", "D", "D"}, 3},
		{"second wrong", []string{"A", "C", "C", "D"}, 3},
		{"first wrong", []string{"B", "B", "C", "D"}, 3},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			result := GradeAnswers(tc.submitted, key)
			require.Equal(t, tc.raw, result.RawScore)
			require.InDelta(t, float64(tc.raw)/4*100, result.Percent, 1e-9)
			require.Len(t, result.Breakdown, 4)
		})
	}
}

func TestGradeAnswersShortSubmissionGradesTailIncorrect(t *testing.T) {
	result := GradeAnswers([]string{"A", "B"}, []string{"A", "B", "C", "D"})

	require.Equal(t, 2, result.RawScore)
	require.InDelta(t, 50.0, result.Percent, 1e-9)
	require.Equal(t, "", result.Breakdown[2].Answer)
	require.False(t, result.Breakdown[2].Correct)
	require.Equal(t, "", result.Breakdown[3].Answer)
	require.False(t, result.Breakdown[3].Correct)
}

func TestGradeAnswersIgnoresExtraSubmittedAnswers(t *testing.T) {
	result := GradeAnswers([]string{"A", "B", "C", "D", "E", "E"}, []string{"A", "B", "C", "D"})

	require.Equal(t, 4, result.RawScore)
	require.Len(t, result.Breakdown, 4)
}

func TestGradeAnswersComparisonIsCaseSensitive(t *testing.T) {
	result := GradeAnswers([]string{"a", "B"}, []string{"A", "B"})

	require.Equal(t, 1, result.RawScore)
	require.False(t, result.Breakdown[0].Correct)
	require.True(t, result.Breakdown[1].Correct)
}

func TestGradeAnswersEmptyKeyYieldsZero(t *testing.T) {
	result := GradeAnswers([]string{"A", "B"}, nil)

	require.Equal(t, 0, result.RawScore)
	require.Equal(t, 0.0, result.Percent)
	require.Empty(t, result.Breakdown)
}

func TestGradeAnswersBreakdownRecordsItemNumbersAndKeys(t *testing.T) {
	result := GradeAnswers([]string{"B", "B"}, []string{"A", "B"})

	require.Equal(t, 1, result.Breakdown[0].Item)
	require.Equal(t, "A", result.Breakdown[0].Key)
	require.Equal(t, "B", result.Breakdown[0].Answer)
	require.Equal(t, 2, result.Breakdown[1].Item)
	require.True(t, result.Breakdown[1].Correct)
}
