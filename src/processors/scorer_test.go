package processors

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/username/balanco/backend/src/models"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func entry(amount, day, description string) StatementEntry {
	d, _ := time.Parse("2006-01-02", day)
	return StatementEntry{Amount: dec(amount), Date: d, Description: description}
}

func candidate(amount, day, description string) models.Transaction {
	d, _ := time.Parse("2006-01-02", day)
	return models.Transaction{Amount: dec(amount), Date: d, Description: description}
}

func TestScoreMatch_Deterministic(t *testing.T) {
	e := entry("50.00", "2025-01-10", "Coffee Shop")
	c := candidate("50.00", "2025-01-10", "Coffee Shop Downtown")

	first := ScoreMatch(e, c)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, ScoreMatch(e, c))
	}
}

func TestScoreMatch_AmountIsBinary(t *testing.T) {
	tests := []struct {
		name        string
		entryAmount string
		candAmount  string
		wantPoints  int
	}{
		{"identical", "50.00", "50.00", 40},
		{"difference below epsilon", "50.00", "50.009", 40},
		{"difference exactly epsilon", "50.00", "50.01", 0},
		{"difference above epsilon", "50.00", "51.00", 0},
		{"opposite signs compare absolute", "-50.00", "50.00", 40},
		{"tiny amounts", "0.001", "0.002", 40},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Same date, empty descriptions: isolate the amount component by
			// subtracting the fixed date (30) and description (30) points.
			e := entry(tt.entryAmount, "2025-01-10", "")
			c := candidate(tt.candAmount, "2025-01-10", "")
			score := ScoreMatch(e, c)
			assert.Equal(t, tt.wantPoints, score.Total-60)
			assert.Equal(t, tt.wantPoints == 40, score.Breakdown.AmountMatch)
		})
	}
}

func TestScoreMatch_DateDecay(t *testing.T) {
	tests := []struct {
		days       int
		wantPoints int
	}{
		{0, 30},
		{1, 25},
		{2, 20},
		{3, 0},
		{10, 0},
	}
	prev := 31
	for _, tt := range tests {
		e := entry("10.00", "2025-01-10", "x")
		c := models.Transaction{
			Amount:      dec("10.00"),
			Date:        date(2025, time.January, 10).AddDate(0, 0, tt.days),
			Description: "x",
		}
		score := ScoreMatch(e, c)
		datePoints := score.Total - 70 // amount 40 + description 30 are fixed here
		assert.Equal(t, tt.wantPoints, datePoints, "days=%d", tt.days)
		assert.Equal(t, tt.days, score.Breakdown.DateDifference)
		assert.Equal(t, tt.days == 0, score.Breakdown.DateMatch)

		// Monotonically non-increasing as the gap grows.
		assert.LessOrEqual(t, datePoints, prev)
		prev = datePoints
	}
}

func TestScoreMatch_DescriptionBuckets(t *testing.T) {
	tests := []struct {
		name       string
		entryDesc  string
		candDesc   string
		wantPoints int
	}{
		{"identical", "coffee shop", "coffee shop", 30},
		{"case insensitive identical", "COFFEE SHOP", "coffee shop", 30},
		{"both empty", "", "", 30},
		{"close but not identical", "coffee shop", "coffee shop dt", 25}, // similarity 11/14
		{"completely different", "coffee shop", "zzzzzzzzzzz", 0},
		{"empty vs non-empty", "", "coffee", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := entry("10.00", "2025-01-10", tt.entryDesc)
			c := candidate("10.00", "2025-01-10", tt.candDesc)
			score := ScoreMatch(e, c)
			assert.Equal(t, tt.wantPoints, score.Total-70)
		})
	}
}

func TestScoreMatch_MultiByteDescriptionsCountRunes(t *testing.T) {
	// Five Greek letters against five Latin ones share no characters at all;
	// similarity must be 0 even though the Greek string is ten bytes long.
	e := entry("50.00", "2025-01-10", "ηηηηη")
	c := candidate("50.00", "2025-01-20", "abcde")

	score := ScoreMatch(e, c)
	assert.InDelta(t, 0.0, score.Breakdown.DescriptionSimilarity, 0.0001)
	assert.Equal(t, 40, score.Total, "only the amount component should score")
	assert.Nil(t, FindBestMatch(e, []models.Transaction{c}))

	// Accented descriptions one edit apart: 3 of 4 runes match.
	e = entry("10.00", "2025-01-10", "café")
	c = candidate("10.00", "2025-01-10", "cafe")
	score = ScoreMatch(e, c)
	assert.InDelta(t, 0.75, score.Breakdown.DescriptionSimilarity, 0.0001)
	assert.Equal(t, 95, score.Total)
}

func TestScoreMatch_BreakdownSimilarity(t *testing.T) {
	// "coffee shop" vs "coffee shop downtown": distance 9 over length 20.
	e := entry("10.00", "2025-01-10", "Coffee Shop")
	c := candidate("10.00", "2025-01-10", "Coffee Shop Downtown")
	score := ScoreMatch(e, c)
	assert.InDelta(t, 0.55, score.Breakdown.DescriptionSimilarity, 0.0001)
}

func TestScoreMatch_CoffeeShopScenario(t *testing.T) {
	e := entry("50.00", "2025-01-10", "Coffee Shop")
	c := candidate("50.00", "2025-01-10", "Coffee Shop Downtown")

	score := ScoreMatch(e, c)
	require.True(t, score.Breakdown.AmountMatch)
	require.True(t, score.Breakdown.DateMatch)
	assert.GreaterOrEqual(t, score.Total, 90)

	tier := models.ConfidenceForScore(score.Total)
	assert.Contains(t, []models.ConfidenceLevel{models.ConfidenceHigh, models.ConfidenceExact}, tier)
}

func TestScoreMatch_RangeBounds(t *testing.T) {
	pairs := []struct {
		e StatementEntry
		c models.Transaction
	}{
		{entry("50.00", "2025-01-10", "Coffee Shop"), candidate("50.00", "2025-01-10", "Coffee Shop")},
		{entry("50.00", "2025-01-10", "Coffee Shop"), candidate("1.00", "2024-06-01", "Utility Bill")},
		{entry("0", "2025-01-10", ""), candidate("0", "2025-01-10", "")},
	}
	for _, p := range pairs {
		score := ScoreMatch(p.e, p.c)
		assert.GreaterOrEqual(t, score.Total, 0)
		assert.LessOrEqual(t, score.Total, 100)
	}
}
