package models

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
	"github.com/username/balanco/backend/src/utils"
)

// DBTX is satisfied by both *sql.DB and *sql.Tx, so model functions can run
// standalone or inside a service-owned transaction.
type DBTX interface {
	Exec(query string, args ...any) (sql.Result, error)
	Query(query string, args ...any) (*sql.Rows, error)
	QueryRow(query string, args ...any) *sql.Row
}

// Reconciliation session statuses. in_progress is the only mutable state;
// completed and cancelled are terminal.
const (
	ReconciliationStatusInProgress = "in_progress"
	ReconciliationStatusCompleted  = "completed"
	ReconciliationStatusCancelled  = "cancelled"
)

// ConfidenceLevel grades how a statement line was matched.
type ConfidenceLevel string

const (
	ConfidenceExact  ConfidenceLevel = "exact"  // score == 100
	ConfidenceHigh   ConfidenceLevel = "high"   // 80 <= score < 100
	ConfidenceMedium ConfidenceLevel = "medium" // 60 <= score < 80
	ConfidenceLow    ConfidenceLevel = "low"    // below 60; never produced by the automatic matcher
	ConfidenceManual ConfidenceLevel = "manual" // human-confirmed, regardless of score
)

// ConfidenceForScore maps a 0-100 match score to its confidence tier.
func ConfidenceForScore(score int) ConfidenceLevel {
	switch {
	case score >= 100:
		return ConfidenceExact
	case score >= 80:
		return ConfidenceHigh
	case score >= 60:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

// MatchBreakdown records how a line's match score was computed, persisted
// alongside the score for audit and review.
type MatchBreakdown struct {
	AmountMatch           bool    `json:"amount_match"`
	DateMatch             bool    `json:"date_match"`
	DateDifference        int     `json:"date_difference"`
	DescriptionSimilarity float64 `json:"description_similarity"`
}

// BalanceAdjustment is one immutable entry in a session's append-only
// adjustment list.
type BalanceAdjustment struct {
	Type      string          `json:"type"` // always "balance_adjustment"
	Amount    decimal.Decimal `json:"amount"`
	Reason    string          `json:"reason"`
	Timestamp time.Time       `json:"timestamp"`
}

const AdjustmentTypeBalance = "balance_adjustment"

// ReconciliationSummary is populated when a session completes.
type ReconciliationSummary struct {
	TotalMatched      int                 `json:"total_matched"`
	TotalUnmatched    int                 `json:"total_unmatched"`
	DiscrepancyAmount decimal.Decimal     `json:"discrepancy_amount"`
	Adjustments       []BalanceAdjustment `json:"adjustments"`
}

// Reconciliation is one statement reconciliation session for an account.
// At most one in_progress session may exist per account, enforced by a
// partial unique index.
type Reconciliation struct {
	ID                 int64                  `json:"id"`
	AccountID          int64                  `json:"account_id"`
	UserID             int64                  `json:"user_id"`
	StartDate          time.Time              `json:"start_date"`
	EndDate            time.Time              `json:"end_date"`
	StatementBalance   decimal.Decimal        `json:"statement_balance"`
	ReconciledBalance  decimal.NullDecimal    `json:"reconciled_balance"`
	Difference         decimal.NullDecimal    `json:"difference"`
	StatementLineCount int                    `json:"statement_line_count"`
	MatchedCount       int                    `json:"matched_count"`
	UnmatchedCount     int                    `json:"unmatched_count"`
	Notes              string                 `json:"notes"`
	Adjustments        []BalanceAdjustment    `json:"adjustments"`
	Summary            *ReconciliationSummary `json:"summary,omitempty"`
	Status             string                 `json:"status"`
	CreatedAt          time.Time              `json:"created_at"`
	UpdatedAt          time.Time              `json:"updated_at"`
	CompletedAt        NullTime               `json:"completed_at"`
}

// ReconciliationLine is one statement line belonging to a session, with its
// raw statement fields and (optionally) the ledger transaction it matched.
// Invariant: Matched is true iff TransactionID is set; unmatching clears the
// link, tier, score, breakdown and manual flag together.
type ReconciliationLine struct {
	ID               int64           `json:"id"`
	ReconciliationID int64           `json:"reconciliation_id"`
	Amount           decimal.Decimal `json:"amount"`
	Date             time.Time       `json:"date"`
	Description      string          `json:"description"`
	Reference        string          `json:"reference,omitempty"`
	TransactionID    *int64          `json:"transaction_id,omitempty"`
	Matched          bool            `json:"matched"`
	Confidence       ConfidenceLevel `json:"confidence,omitempty"`
	Score            *int            `json:"score,omitempty"`
	MatchDetails     *MatchBreakdown `json:"match_details,omitempty"`
	ManualMatch      bool            `json:"manual_match"`
	Notes            string          `json:"notes,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

const reconciliationColumns = `id, account_id, user_id, start_date, end_date, statement_balance,
	reconciled_balance, difference, statement_line_count, matched_count, unmatched_count,
	notes, adjustments, summary, status, created_at, updated_at, completed_at`

func scanReconciliation(row interface{ Scan(...any) error }) (*Reconciliation, error) {
	var r Reconciliation
	var startDate, endDate, adjustments string
	var summary sql.NullString
	err := row.Scan(&r.ID, &r.AccountID, &r.UserID, &startDate, &endDate, &r.StatementBalance,
		&r.ReconciledBalance, &r.Difference, &r.StatementLineCount, &r.MatchedCount, &r.UnmatchedCount,
		&r.Notes, &adjustments, &summary, &r.Status, &r.CreatedAt, &r.UpdatedAt,
		(*sql.NullTime)(&r.CompletedAt))
	if err != nil {
		return nil, err
	}
	if r.StartDate, err = utils.ParseDate(startDate); err != nil {
		return nil, err
	}
	if r.EndDate, err = utils.ParseDate(endDate); err != nil {
		return nil, err
	}
	if err = json.Unmarshal([]byte(adjustments), &r.Adjustments); err != nil {
		return nil, err
	}
	if summary.Valid {
		var s ReconciliationSummary
		if err = json.Unmarshal([]byte(summary.String), &s); err != nil {
			return nil, err
		}
		r.Summary = &s
	}
	return &r, nil
}

func CreateReconciliation(q DBTX, r *Reconciliation) error {
	now := time.Now().UTC()
	r.CreatedAt = now
	r.UpdatedAt = now
	r.Status = ReconciliationStatusInProgress
	if r.Adjustments == nil {
		r.Adjustments = []BalanceAdjustment{}
	}
	adjustments, err := json.Marshal(r.Adjustments)
	if err != nil {
		return err
	}

	res, err := q.Exec(`
		INSERT INTO reconciliations (account_id, user_id, start_date, end_date, statement_balance,
			statement_line_count, matched_count, unmatched_count, notes, adjustments, status,
			created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, 0, 0, 0, ?, ?, ?, ?, ?)`,
		r.AccountID, r.UserID, r.StartDate.Format(utils.DateLayout), r.EndDate.Format(utils.DateLayout),
		r.StatementBalance.String(), r.Notes, string(adjustments), r.Status, r.CreatedAt, r.UpdatedAt)
	if err != nil {
		return err
	}
	r.ID, err = res.LastInsertId()
	return err
}

// GetReconciliationForUser fetches a session only if it belongs to the user.
func GetReconciliationForUser(q DBTX, reconciliationID, userID int64) (*Reconciliation, error) {
	row := q.QueryRow(`SELECT `+reconciliationColumns+` FROM reconciliations WHERE id = ? AND user_id = ?`,
		reconciliationID, userID)
	return scanReconciliation(row)
}

// GetActiveReconciliationForAccount returns the account's in_progress session,
// or sql.ErrNoRows when the account has none.
func GetActiveReconciliationForAccount(q DBTX, accountID int64) (*Reconciliation, error) {
	row := q.QueryRow(`SELECT `+reconciliationColumns+` FROM reconciliations WHERE account_id = ? AND status = ?`,
		accountID, ReconciliationStatusInProgress)
	return scanReconciliation(row)
}

func ListReconciliationsByAccount(q DBTX, accountID, userID int64) ([]Reconciliation, error) {
	rows, err := q.Query(`
		SELECT `+reconciliationColumns+`
		FROM reconciliations
		WHERE account_id = ? AND user_id = ?
		ORDER BY created_at DESC, id DESC`,
		accountID, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sessions := []Reconciliation{}
	for rows.Next() {
		r, err := scanReconciliation(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, *r)
	}
	return sessions, rows.Err()
}

// RefreshReconciliationCounters recounts the session's lines and stores the
// derived statement_line_count / matched_count / unmatched_count, keeping the
// counter invariant (matched + unmatched == total) true by construction.
func RefreshReconciliationCounters(q DBTX, reconciliationID int64) (total, matched int, err error) {
	err = q.QueryRow(`
		SELECT COUNT(*), COALESCE(SUM(matched), 0)
		FROM reconciliation_lines WHERE reconciliation_id = ?`,
		reconciliationID).Scan(&total, &matched)
	if err != nil {
		return 0, 0, err
	}
	_, err = q.Exec(`
		UPDATE reconciliations
		SET statement_line_count = ?, matched_count = ?, unmatched_count = ?, updated_at = ?
		WHERE id = ?`,
		total, matched, total-matched, time.Now().UTC(), reconciliationID)
	return total, matched, err
}

// UpdateReconciliationAdjustments replaces the stored adjustment list. Callers
// only ever append; existing entries are never edited or removed.
func UpdateReconciliationAdjustments(q DBTX, reconciliationID int64, adjustments []BalanceAdjustment) error {
	payload, err := json.Marshal(adjustments)
	if err != nil {
		return err
	}
	_, err = q.Exec(`UPDATE reconciliations SET adjustments = ?, updated_at = ? WHERE id = ?`,
		string(payload), time.Now().UTC(), reconciliationID)
	return err
}

// FinalizeReconciliation moves a session to completed with its computed
// balances and summary.
func FinalizeReconciliation(q DBTX, reconciliationID int64, reconciledBalance, difference decimal.Decimal, notes string, summary *ReconciliationSummary, completedAt time.Time) error {
	payload, err := json.Marshal(summary)
	if err != nil {
		return err
	}
	_, err = q.Exec(`
		UPDATE reconciliations
		SET status = ?, reconciled_balance = ?, difference = ?, notes = ?, summary = ?,
		    completed_at = ?, updated_at = ?
		WHERE id = ?`,
		ReconciliationStatusCompleted, reconciledBalance.String(), difference.String(),
		notes, string(payload), completedAt.UTC(), time.Now().UTC(), reconciliationID)
	return err
}

// CancelReconciliationRecord moves a session to cancelled. Its lines are kept
// as a historical trace.
func CancelReconciliationRecord(q DBTX, reconciliationID int64) error {
	_, err := q.Exec(`UPDATE reconciliations SET status = ?, updated_at = ? WHERE id = ?`,
		ReconciliationStatusCancelled, time.Now().UTC(), reconciliationID)
	return err
}

const reconciliationLineColumns = `id, reconciliation_id, amount, date, description, reference,
	transaction_id, matched, confidence, score, match_details, manual_match, notes,
	created_at, updated_at`

func scanReconciliationLine(row interface{ Scan(...any) error }) (*ReconciliationLine, error) {
	var l ReconciliationLine
	var date string
	var transactionID sql.NullInt64
	var confidence sql.NullString
	var score sql.NullInt64
	var details sql.NullString
	err := row.Scan(&l.ID, &l.ReconciliationID, &l.Amount, &date, &l.Description, &l.Reference,
		&transactionID, &l.Matched, &confidence, &score, &details, &l.ManualMatch, &l.Notes,
		&l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if l.Date, err = utils.ParseDate(date); err != nil {
		return nil, err
	}
	if transactionID.Valid {
		l.TransactionID = &transactionID.Int64
	}
	if confidence.Valid {
		l.Confidence = ConfidenceLevel(confidence.String)
	}
	if score.Valid {
		s := int(score.Int64)
		l.Score = &s
	}
	if details.Valid {
		var b MatchBreakdown
		if err = json.Unmarshal([]byte(details.String), &b); err != nil {
			return nil, err
		}
		l.MatchDetails = &b
	}
	return &l, nil
}

func InsertReconciliationLine(q DBTX, l *ReconciliationLine) error {
	now := time.Now().UTC()
	l.CreatedAt = now
	l.UpdatedAt = now

	var transactionID interface{}
	if l.TransactionID != nil {
		transactionID = *l.TransactionID
	}
	var confidence interface{}
	if l.Confidence != "" {
		confidence = string(l.Confidence)
	}
	var score interface{}
	if l.Score != nil {
		score = *l.Score
	}
	var details interface{}
	if l.MatchDetails != nil {
		payload, err := json.Marshal(l.MatchDetails)
		if err != nil {
			return err
		}
		details = string(payload)
	}

	res, err := q.Exec(`
		INSERT INTO reconciliation_lines (reconciliation_id, amount, date, description, reference,
			transaction_id, matched, confidence, score, match_details, manual_match, notes,
			created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		l.ReconciliationID, l.Amount.String(), l.Date.Format(utils.DateLayout), l.Description,
		l.Reference, transactionID, l.Matched, confidence, score, details, l.ManualMatch, l.Notes,
		l.CreatedAt, l.UpdatedAt)
	if err != nil {
		return err
	}
	l.ID, err = res.LastInsertId()
	return err
}

func GetReconciliationLine(q DBTX, lineID, reconciliationID int64) (*ReconciliationLine, error) {
	row := q.QueryRow(`
		SELECT `+reconciliationLineColumns+`
		FROM reconciliation_lines WHERE id = ? AND reconciliation_id = ?`,
		lineID, reconciliationID)
	return scanReconciliationLine(row)
}

func ListReconciliationLines(q DBTX, reconciliationID int64) ([]ReconciliationLine, error) {
	rows, err := q.Query(`
		SELECT `+reconciliationLineColumns+`
		FROM reconciliation_lines WHERE reconciliation_id = ?
		ORDER BY id`,
		reconciliationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	lines := []ReconciliationLine{}
	for rows.Next() {
		l, err := scanReconciliationLine(rows)
		if err != nil {
			return nil, err
		}
		lines = append(lines, *l)
	}
	return lines, rows.Err()
}

// SetLineMatch links a line to a ledger transaction. Manual matches always
// carry the manual tier and no automatic score or breakdown. An empty notes
// value keeps whatever notes the line already has.
func SetLineMatch(q DBTX, lineID int64, transactionID int64, confidence ConfidenceLevel, score *int, details *MatchBreakdown, manual bool, notes string) error {
	var scoreArg interface{}
	if score != nil {
		scoreArg = *score
	}
	var detailsArg interface{}
	if details != nil {
		payload, err := json.Marshal(details)
		if err != nil {
			return err
		}
		detailsArg = string(payload)
	}
	_, err := q.Exec(`
		UPDATE reconciliation_lines
		SET transaction_id = ?, matched = 1, confidence = ?, score = ?, match_details = ?,
		    manual_match = ?, notes = COALESCE(NULLIF(?, ''), notes), updated_at = ?
		WHERE id = ?`,
		transactionID, string(confidence), scoreArg, detailsArg, manual, notes,
		time.Now().UTC(), lineID)
	return err
}

// ClearLineMatch removes a line's link and every match attribute together,
// restoring the line to its pre-match state. Safe to call repeatedly.
func ClearLineMatch(q DBTX, lineID int64) error {
	_, err := q.Exec(`
		UPDATE reconciliation_lines
		SET transaction_id = NULL, matched = 0, confidence = NULL, score = NULL,
		    match_details = NULL, manual_match = 0, updated_at = ?
		WHERE id = ?`,
		time.Now().UTC(), lineID)
	return err
}

// SumMatchedLineAmounts totals the statement-side amounts of matched lines.
// The statement, not the ledger, is the source of truth for the reconciled
// figure, so matched ledger amounts are ignored here.
func SumMatchedLineAmounts(q DBTX, reconciliationID int64) (decimal.Decimal, error) {
	rows, err := q.Query(`
		SELECT amount FROM reconciliation_lines
		WHERE reconciliation_id = ? AND matched = 1`,
		reconciliationID)
	if err != nil {
		return decimal.Zero, err
	}
	defer rows.Close()

	total := decimal.Zero
	for rows.Next() {
		var amount decimal.Decimal
		if err := rows.Scan(&amount); err != nil {
			return decimal.Zero, err
		}
		total = total.Add(amount)
	}
	return total, rows.Err()
}
