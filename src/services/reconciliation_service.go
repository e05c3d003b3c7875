package services

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/shopspring/decimal"
	"github.com/username/balanco/backend/src/logger"
	"github.com/username/balanco/backend/src/models"
	"github.com/username/balanco/backend/src/processors"
	"github.com/username/balanco/backend/src/security/validation"
	"github.com/username/balanco/backend/src/utils"
)

const (
	DefaultCacheExpiration = 15 * time.Minute
	CacheCleanupInterval   = 30 * time.Minute
)

type reconciliationService struct {
	db           *sql.DB
	historyCache *cache.Cache
}

// NewReconciliationService creates the reconciliation session service backed
// by the given database and an optional history cache.
func NewReconciliationService(db *sql.DB, historyCache *cache.Cache) ReconciliationService {
	return &reconciliationService{db: db, historyCache: historyCache}
}

func historyCacheKey(userID, accountID int64) string {
	return fmt.Sprintf("reconciliation_history:%d:%d", userID, accountID)
}

func (s *reconciliationService) invalidateHistory(userID, accountID int64) {
	if s.historyCache != nil {
		s.historyCache.Delete(historyCacheKey(userID, accountID))
	}
}

// StartReconciliation opens an in_progress session for the account and flips
// the account's reconciliation status. The active-session check and the insert
// run in one transaction; a partial unique index on the reconciliations table
// backs the check against concurrent starts.
func (s *reconciliationService) StartReconciliation(userID int64, input StartReconciliationInput) (*models.Reconciliation, error) {
	if input.EndDate.Before(input.StartDate) {
		return nil, fmt.Errorf("%w: end date precedes start date", ErrInvalidInput)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	account, err := models.GetAccountForUser(tx, input.AccountID, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}

	_, err = models.GetActiveReconciliationForAccount(tx, account.ID)
	if err == nil {
		return nil, ErrReconciliationInProgress
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	rec := &models.Reconciliation{
		AccountID:        account.ID,
		UserID:           userID,
		StartDate:        input.StartDate,
		EndDate:          input.EndDate,
		StatementBalance: input.StatementBalance,
		Notes:            validation.SanitizeText(input.Notes),
	}
	if err := models.CreateReconciliation(tx, rec); err != nil {
		return nil, err
	}
	if err := models.UpdateAccountReconciliationStatus(tx, account.ID, models.AccountReconciliationInProgress, nil, nil); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	s.invalidateHistory(userID, account.ID)
	logger.L.Info("Reconciliation started",
		"userID", userID, "accountID", account.ID, "reconciliationID", rec.ID,
		"startDate", rec.StartDate.Format(utils.DateLayout), "endDate", rec.EndDate.Format(utils.DateLayout))
	return rec, nil
}

// UploadStatement ingests parsed statement lines, auto-matching each one
// against the session's eligible ledger transactions. Lines failing shape
// validation are skipped and counted rather than failing the batch.
func (s *reconciliationService) UploadStatement(userID, reconciliationID int64, lines []StatementLineInput) (*UploadStatementResult, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	rec, err := s.getActiveForUser(tx, reconciliationID, userID)
	if err != nil {
		return nil, err
	}

	// One candidate pool for the whole statement. Candidates are not removed
	// after a match, so duplicate ledger entries can each win independently.
	candidates, err := models.ListReconciliationCandidates(tx, rec.AccountID, userID, rec.StartDate, rec.EndDate)
	if err != nil {
		return nil, err
	}

	result := &UploadStatementResult{LinesReceived: len(lines)}
	for i, input := range lines {
		entry, ok := parseStatementLine(input)
		if !ok {
			result.LinesSkipped++
			logger.L.Warn("Skipping malformed statement line",
				"reconciliationID", rec.ID, "lineIndex", i, "amount", input.Amount, "date", input.Date)
			continue
		}

		line := &models.ReconciliationLine{
			ReconciliationID: rec.ID,
			Amount:           entry.Amount,
			Date:             entry.Date,
			Description:      entry.Description,
			Reference:        validation.CleanStatementText(input.Reference),
		}

		if match := processors.FindBestMatch(entry, candidates); match != nil {
			line.TransactionID = &match.Transaction.ID
			line.Matched = true
			line.Confidence = match.Confidence
			score := match.Score
			line.Score = &score
			breakdown := match.Breakdown
			line.MatchDetails = &breakdown
			result.Matched++
		} else {
			result.Unmatched++
		}

		if err := models.InsertReconciliationLine(tx, line); err != nil {
			return nil, err
		}
		result.LinesStored++
	}

	if _, _, err := models.RefreshReconciliationCounters(tx, rec.ID); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	s.invalidateHistory(userID, rec.AccountID)

	rec, err = models.GetReconciliationForUser(s.db, rec.ID, userID)
	if err != nil {
		return nil, err
	}
	result.Reconciliation = rec
	logger.L.Info("Statement uploaded",
		"reconciliationID", rec.ID, "received", result.LinesReceived, "stored", result.LinesStored,
		"skipped", result.LinesSkipped, "matched", result.Matched, "unmatched", result.Unmatched)
	return result, nil
}

// parseStatementLine validates the raw shape of one uploaded line. A line
// without a parsable amount or date cannot be scored and is skipped.
func parseStatementLine(input StatementLineInput) (processors.StatementEntry, bool) {
	amount, err := decimal.NewFromString(input.Amount)
	if err != nil {
		return processors.StatementEntry{}, false
	}
	date, err := utils.ParseDate(input.Date)
	if err != nil {
		return processors.StatementEntry{}, false
	}
	return processors.StatementEntry{
		Amount:      amount,
		Date:        date,
		Description: validation.CleanStatementText(input.Description),
	}, true
}

func (s *reconciliationService) GetReconciliation(userID, reconciliationID int64) (*ReconciliationDetail, error) {
	rec, err := models.GetReconciliationForUser(s.db, reconciliationID, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrReconciliationNotFound
		}
		return nil, err
	}
	lines, err := models.ListReconciliationLines(s.db, rec.ID)
	if err != nil {
		return nil, err
	}
	return &ReconciliationDetail{Reconciliation: rec, Lines: lines}, nil
}

func (s *reconciliationService) GetReconciliationHistory(userID, accountID int64) ([]models.Reconciliation, error) {
	if _, err := models.GetAccountForUser(s.db, accountID, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}

	key := historyCacheKey(userID, accountID)
	if s.historyCache != nil {
		if cached, found := s.historyCache.Get(key); found {
			return cached.([]models.Reconciliation), nil
		}
	}

	history, err := models.ListReconciliationsByAccount(s.db, accountID, userID)
	if err != nil {
		return nil, err
	}
	if s.historyCache != nil {
		s.historyCache.Set(key, history, DefaultCacheExpiration)
	}
	return history, nil
}

// MatchTransaction manually links a statement line to a ledger transaction.
// Manual matches always carry the manual tier; any automatic score and
// breakdown from a previous match are discarded.
func (s *reconciliationService) MatchTransaction(userID, reconciliationID, lineID, transactionID int64, notes string) (*models.ReconciliationLine, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	rec, err := s.getActiveForUser(tx, reconciliationID, userID)
	if err != nil {
		return nil, err
	}

	if _, err := models.GetReconciliationLine(tx, lineID, rec.ID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrLineNotFound
		}
		return nil, err
	}
	if _, err := models.GetTransactionForUser(tx, transactionID, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTransactionNotFound
		}
		return nil, err
	}

	if err := models.SetLineMatch(tx, lineID, transactionID, models.ConfidenceManual, nil, nil, true, validation.SanitizeText(notes)); err != nil {
		return nil, err
	}
	if _, _, err := models.RefreshReconciliationCounters(tx, rec.ID); err != nil {
		return nil, err
	}

	line, err := models.GetReconciliationLine(tx, lineID, rec.ID)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	s.invalidateHistory(userID, rec.AccountID)
	logger.L.Info("Statement line manually matched",
		"reconciliationID", rec.ID, "lineID", lineID, "transactionID", transactionID)
	return line, nil
}

// UnmatchTransaction clears a line's match entirely. Idempotent: unmatching an
// already unmatched line is a no-op that still succeeds.
func (s *reconciliationService) UnmatchTransaction(userID, reconciliationID, lineID int64) (*models.ReconciliationLine, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	rec, err := s.getActiveForUser(tx, reconciliationID, userID)
	if err != nil {
		return nil, err
	}
	if _, err := models.GetReconciliationLine(tx, lineID, rec.ID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrLineNotFound
		}
		return nil, err
	}

	if err := models.ClearLineMatch(tx, lineID); err != nil {
		return nil, err
	}
	if _, _, err := models.RefreshReconciliationCounters(tx, rec.ID); err != nil {
		return nil, err
	}

	line, err := models.GetReconciliationLine(tx, lineID, rec.ID)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	s.invalidateHistory(userID, rec.AccountID)
	logger.L.Info("Statement line unmatched", "reconciliationID", rec.ID, "lineID", lineID)
	return line, nil
}

// AdjustBalance appends an immutable adjustment entry to the session. The
// entry is informational until completion folds it into the final summary;
// it never changes the reconciled balance.
func (s *reconciliationService) AdjustBalance(userID, reconciliationID int64, amount decimal.Decimal, reason string) (*models.BalanceAdjustment, error) {
	reason = validation.SanitizeText(reason)
	if reason == "" {
		return nil, fmt.Errorf("%w: adjustment reason is required", ErrInvalidInput)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	rec, err := s.getActiveForUser(tx, reconciliationID, userID)
	if err != nil {
		return nil, err
	}

	adjustment := models.BalanceAdjustment{
		Type:      models.AdjustmentTypeBalance,
		Amount:    amount,
		Reason:    reason,
		Timestamp: time.Now().UTC(),
	}
	if err := models.UpdateReconciliationAdjustments(tx, rec.ID, append(rec.Adjustments, adjustment)); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	s.invalidateHistory(userID, rec.AccountID)
	logger.L.Info("Balance adjustment recorded",
		"reconciliationID", rec.ID, "amount", amount.String(), "reason", reason)
	return &adjustment, nil
}

// CompleteReconciliation freezes the session: the reconciled balance is the
// sum of matched statement-line amounts (the statement is the source of truth,
// not the matched ledger entries), the difference is the absolute discrepancy
// against the declared balance, and the summary carries the totals plus the
// full adjustment list in order.
func (s *reconciliationService) CompleteReconciliation(userID, reconciliationID int64, notes string, adjustments []AdjustmentInput) (*models.Reconciliation, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	rec, err := s.getActiveForUser(tx, reconciliationID, userID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	allAdjustments := append([]models.BalanceAdjustment{}, rec.Adjustments...)
	for _, a := range adjustments {
		reason := validation.SanitizeText(a.Reason)
		if reason == "" {
			return nil, fmt.Errorf("%w: adjustment reason is required", ErrInvalidInput)
		}
		allAdjustments = append(allAdjustments, models.BalanceAdjustment{
			Type:      models.AdjustmentTypeBalance,
			Amount:    a.Amount,
			Reason:    reason,
			Timestamp: now,
		})
	}

	total, matched, err := models.RefreshReconciliationCounters(tx, rec.ID)
	if err != nil {
		return nil, err
	}
	reconciledBalance, err := models.SumMatchedLineAmounts(tx, rec.ID)
	if err != nil {
		return nil, err
	}
	difference := rec.StatementBalance.Sub(reconciledBalance).Abs()

	summary := &models.ReconciliationSummary{
		TotalMatched:      matched,
		TotalUnmatched:    total - matched,
		DiscrepancyAmount: difference,
		Adjustments:       allAdjustments,
	}

	finalNotes := rec.Notes
	if notes != "" {
		finalNotes = validation.SanitizeText(notes)
	}

	if err := models.UpdateReconciliationAdjustments(tx, rec.ID, allAdjustments); err != nil {
		return nil, err
	}
	if err := models.FinalizeReconciliation(tx, rec.ID, reconciledBalance, difference, finalNotes, summary, now); err != nil {
		return nil, err
	}
	if err := models.UpdateAccountReconciliationStatus(tx, rec.AccountID, models.AccountReconciliationReconciled, &now, &reconciledBalance); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	s.invalidateHistory(userID, rec.AccountID)

	completed, err := models.GetReconciliationForUser(s.db, rec.ID, userID)
	if err != nil {
		return nil, err
	}
	logger.L.Info("Reconciliation completed",
		"reconciliationID", rec.ID, "reconciledBalance", reconciledBalance.String(),
		"difference", difference.String(), "matched", matched, "unmatched", total-matched)
	return completed, nil
}

// CancelReconciliation abandons an in-progress session. Statement lines are
// kept as a historical trace; the account's reconciliation flag is reset.
func (s *reconciliationService) CancelReconciliation(userID, reconciliationID int64) (*models.Reconciliation, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	rec, err := s.getActiveForUser(tx, reconciliationID, userID)
	if err != nil {
		return nil, err
	}

	if err := models.CancelReconciliationRecord(tx, rec.ID); err != nil {
		return nil, err
	}
	if err := models.UpdateAccountReconciliationStatus(tx, rec.AccountID, models.AccountReconciliationNone, nil, nil); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	s.invalidateHistory(userID, rec.AccountID)

	cancelled, err := models.GetReconciliationForUser(s.db, rec.ID, userID)
	if err != nil {
		return nil, err
	}
	logger.L.Info("Reconciliation cancelled", "reconciliationID", rec.ID, "accountID", rec.AccountID)
	return cancelled, nil
}

// getActiveForUser loads a session scoped to the user and rejects any
// operation against a terminal (completed or cancelled) session.
func (s *reconciliationService) getActiveForUser(q models.DBTX, reconciliationID, userID int64) (*models.Reconciliation, error) {
	rec, err := models.GetReconciliationForUser(q, reconciliationID, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrReconciliationNotFound
		}
		return nil, err
	}
	if rec.Status != models.ReconciliationStatusInProgress {
		return nil, ErrReconciliationNotActive
	}
	return rec, nil
}
