package processors

import (
	"github.com/username/balanco/backend/src/models"
)

// MinimumMatchScore is the acceptance floor: below it a statement line is
// left unmatched for manual review. Because of this floor the automatic
// matcher never produces the low confidence tier.
const MinimumMatchScore = 60

// MatchResult is the matcher's verdict for one statement entry.
type MatchResult struct {
	Transaction models.Transaction
	Confidence  models.ConfidenceLevel
	Score       int
	Breakdown   models.MatchBreakdown
}

// FindBestMatch scores the entry against every candidate and returns the best
// one at or above the acceptance floor, or nil when there is none. Candidates
// are scanned linearly and only a strictly higher score displaces the current
// best, so on exact ties the earliest candidate wins.
//
// Callers matching a whole statement run this once per line against the same
// candidate pool; one ledger transaction may be claimed by several lines. No
// one-to-one assignment is attempted.
func FindBestMatch(entry StatementEntry, candidates []models.Transaction) *MatchResult {
	if len(candidates) == 0 {
		return nil
	}

	var best *MatchResult
	for _, candidate := range candidates {
		score := ScoreMatch(entry, candidate)
		if best == nil || score.Total > best.Score {
			best = &MatchResult{
				Transaction: candidate,
				Score:       score.Total,
				Breakdown:   score.Breakdown,
			}
		}
	}

	if best.Score < MinimumMatchScore {
		return nil
	}
	best.Confidence = models.ConfidenceForScore(best.Score)
	return best
}
