package processors

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
	"github.com/shopspring/decimal"
	"github.com/username/balanco/backend/src/models"
	"github.com/username/balanco/backend/src/utils"
)

// StatementEntry is the scorer's view of one bank statement line: the raw
// fields needed for matching, independent of whether the line has been
// persisted yet.
type StatementEntry struct {
	Amount      decimal.Decimal
	Date        time.Time
	Description string
}

// MatchScore is the result of scoring one statement entry against one ledger
// transaction: an additive 0-100 total plus the per-component breakdown.
type MatchScore struct {
	Total     int
	Breakdown models.MatchBreakdown
}

// Point budget: 40 amount + 30 date + 30 description = 100.
const (
	amountPoints = 40

	dateSameDayPoints = 30
	dateOneDayPoints  = 25
	dateTwoDayPoints  = 20
)

// amountEpsilon is the tolerance below which two absolute amounts are
// considered equal. Amount matching is binary: full points or none.
var amountEpsilon = decimal.New(1, -2) // 0.01

// ScoreMatch computes the match score between a statement entry and a ledger
// transaction. Pure function: deterministic, no I/O, safe to run concurrently.
func ScoreMatch(entry StatementEntry, candidate models.Transaction) MatchScore {
	var score MatchScore

	// Amounts are compared as absolute values; statement debits and ledger
	// expenses carry opposite sign conventions.
	diff := candidate.Amount.Abs().Sub(entry.Amount.Abs()).Abs()
	if diff.LessThan(amountEpsilon) {
		score.Total += amountPoints
		score.Breakdown.AmountMatch = true
	}

	// Date proximity tolerates bank posting-date lag of up to two days.
	dayDiff := utils.DaysBetween(candidate.Date, entry.Date)
	score.Breakdown.DateDifference = dayDiff
	switch dayDiff {
	case 0:
		score.Total += dateSameDayPoints
		score.Breakdown.DateMatch = true
	case 1:
		score.Total += dateOneDayPoints
	case 2:
		score.Total += dateTwoDayPoints
	}

	similarity := descriptionSimilarity(entry.Description, candidate.Description)
	score.Breakdown.DescriptionSimilarity = similarity
	switch {
	case similarity > 0.8:
		score.Total += 30
	case similarity > 0.6:
		score.Total += 25
	case similarity > 0.4:
		score.Total += 20
	case similarity > 0.2:
		score.Total += 15
	}

	return score
}

// descriptionSimilarity returns a 0..1 edit-distance similarity between two
// descriptions, case-insensitive: (longerLen - distance) / longerLen.
// Lengths are counted in runes to stay in the same unit as the rune-based
// edit distance.
func descriptionSimilarity(a, b string) float64 {
	a = strings.ToLower(strings.TrimSpace(a))
	b = strings.ToLower(strings.TrimSpace(b))

	longer, shorter := a, b
	if utf8.RuneCountInString(b) > utf8.RuneCountInString(a) {
		longer, shorter = b, a
	}
	longerLen := utf8.RuneCountInString(longer)
	if longerLen == 0 {
		// Two empty descriptions are identical.
		return 1.0
	}

	distance := levenshtein.ComputeDistance(longer, shorter)
	return float64(longerLen-distance) / float64(longerLen)
}
