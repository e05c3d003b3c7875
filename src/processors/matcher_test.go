package processors

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/username/balanco/backend/src/models"
)

func TestFindBestMatch_NoCandidates(t *testing.T) {
	e := entry("50.00", "2025-01-10", "Coffee Shop")
	assert.Nil(t, FindBestMatch(e, nil))
	assert.Nil(t, FindBestMatch(e, []models.Transaction{}))
}

func TestFindBestMatch_PicksHighestScore(t *testing.T) {
	e := entry("50.00", "2025-01-10", "Coffee Shop")
	candidates := []models.Transaction{
		func() models.Transaction { c := candidate("50.00", "2025-01-12", "Coffee Shop"); c.ID = 1; return c }(),
		func() models.Transaction { c := candidate("50.00", "2025-01-10", "Coffee Shop"); c.ID = 2; return c }(),
		func() models.Transaction { c := candidate("12.00", "2025-01-10", "Groceries"); c.ID = 3; return c }(),
	}

	match := FindBestMatch(e, candidates)
	require.NotNil(t, match)
	assert.Equal(t, int64(2), match.Transaction.ID)
	assert.Equal(t, 100, match.Score)
	assert.Equal(t, models.ConfidenceExact, match.Confidence)
}

func TestFindBestMatch_FirstSeenWinsOnTies(t *testing.T) {
	e := entry("50.00", "2025-01-10", "Coffee Shop")
	first := candidate("50.00", "2025-01-10", "Coffee Shop")
	first.ID = 7
	duplicate := candidate("50.00", "2025-01-10", "Coffee Shop")
	duplicate.ID = 8

	match := FindBestMatch(e, []models.Transaction{first, duplicate})
	require.NotNil(t, match)
	assert.Equal(t, int64(7), match.Transaction.ID)
}

func TestFindBestMatch_RejectsBelowFloor(t *testing.T) {
	// Amount mismatch and a 2-day gap: 0 + 20 + 30 = 50, under the floor.
	e := entry("50.00", "2025-01-10", "Coffee Shop")
	c := candidate("60.00", "2025-01-12", "Coffee Shop")

	score := ScoreMatch(e, c)
	require.Less(t, score.Total, MinimumMatchScore)
	assert.Nil(t, FindBestMatch(e, []models.Transaction{c}))
}

func TestFindBestMatch_AcceptsExactlyAtFloor(t *testing.T) {
	// Amount match + 2-day date gap + dissimilar description: 40 + 20 = 60.
	e := entry("50.00", "2025-01-10", "Coffee Shop")
	c := candidate("50.00", "2025-01-12", "zzzzzzzzzzzz")

	match := FindBestMatch(e, []models.Transaction{c})
	require.NotNil(t, match)
	assert.Equal(t, MinimumMatchScore, match.Score)
	assert.Equal(t, models.ConfidenceMedium, match.Confidence)
}

func TestFindBestMatch_TierMapping(t *testing.T) {
	tests := []struct {
		name     string
		cand     models.Transaction
		wantTier models.ConfidenceLevel
	}{
		{"exact at 100", candidate("50.00", "2025-01-10", "coffee shop"), models.ConfidenceExact},
		{"high at 90", candidate("50.00", "2025-01-10", "coffee shop downtown"), models.ConfidenceHigh},
		{"medium at 60", candidate("50.00", "2025-01-12", "zzzzzzzzzzzz"), models.ConfidenceMedium},
	}
	e := entry("50.00", "2025-01-10", "coffee shop")
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			match := FindBestMatch(e, []models.Transaction{tt.cand})
			require.NotNil(t, match)
			assert.Equal(t, tt.wantTier, match.Confidence)
		})
	}
}

func TestFindBestMatch_SharedPoolAllowsDuplicateClaims(t *testing.T) {
	// Two statement lines may each claim the same ledger transaction; no
	// one-to-one assignment is attempted.
	pool := []models.Transaction{candidate("50.00", "2025-01-10", "Coffee Shop")}
	pool[0].ID = 42

	lineA := entry("50.00", "2025-01-10", "Coffee Shop")
	lineB := entry("50.00", "2025-01-11", "Coffee Shop")

	matchA := FindBestMatch(lineA, pool)
	matchB := FindBestMatch(lineB, pool)
	require.NotNil(t, matchA)
	require.NotNil(t, matchB)
	assert.Equal(t, matchA.Transaction.ID, matchB.Transaction.ID)
}

func TestFindBestMatch_CarriesBreakdown(t *testing.T) {
	e := entry("50.00", "2025-01-10", "Coffee Shop")
	c := candidate("50.00", "2025-01-11", "Coffee Shop")

	match := FindBestMatch(e, []models.Transaction{c})
	require.NotNil(t, match)
	assert.True(t, match.Breakdown.AmountMatch)
	assert.False(t, match.Breakdown.DateMatch)
	assert.Equal(t, 1, match.Breakdown.DateDifference)
	assert.InDelta(t, 1.0, match.Breakdown.DescriptionSimilarity, 0.0001)
}
