package services

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"github.com/username/balanco/backend/src/models"
)

// Service errors, mapped to HTTP status codes by the handlers.
var (
	// Not found (or not owned by the caller; ownership failures are
	// indistinguishable from absence on purpose).
	ErrAccountNotFound        = errors.New("account not found")
	ErrReconciliationNotFound = errors.New("reconciliation not found")
	ErrTransactionNotFound    = errors.New("ledger transaction not found")
	ErrLineNotFound           = errors.New("statement line not found")

	// Invalid state transitions.
	ErrReconciliationNotActive  = errors.New("reconciliation is not in progress")
	ErrReconciliationInProgress = errors.New("account already has a reconciliation in progress")

	// Malformed input.
	ErrInvalidInput = errors.New("invalid input")
)

// StartReconciliationInput carries the parameters for opening a session.
type StartReconciliationInput struct {
	AccountID        int64
	StartDate        time.Time
	EndDate          time.Time
	StatementBalance decimal.Decimal
	Notes            string
}

// StatementLineInput is one raw statement line as received from the client.
// Amount and Date stay as strings so per-line validation failures can be
// skipped and counted instead of failing the whole upload.
type StatementLineInput struct {
	Amount      string
	Date        string
	Description string
	Reference   string
}

// AdjustmentInput is an ad-hoc balance adjustment supplied at completion time.
type AdjustmentInput struct {
	Amount decimal.Decimal
	Reason string
}

// UploadStatementResult reports what happened to each uploaded line.
type UploadStatementResult struct {
	Reconciliation *models.Reconciliation `json:"reconciliation"`
	LinesReceived  int                    `json:"lines_received"`
	LinesStored    int                    `json:"lines_stored"`
	LinesSkipped   int                    `json:"lines_skipped"`
	Matched        int                    `json:"matched"`
	Unmatched      int                    `json:"unmatched"`
}

// ReconciliationDetail is a session with its statement lines.
type ReconciliationDetail struct {
	Reconciliation *models.Reconciliation      `json:"reconciliation"`
	Lines          []models.ReconciliationLine `json:"lines"`
}

// ReconciliationService drives the reconciliation session lifecycle.
// Every operation is scoped to the calling user.
type ReconciliationService interface {
	StartReconciliation(userID int64, input StartReconciliationInput) (*models.Reconciliation, error)
	UploadStatement(userID, reconciliationID int64, lines []StatementLineInput) (*UploadStatementResult, error)
	GetReconciliation(userID, reconciliationID int64) (*ReconciliationDetail, error)
	GetReconciliationHistory(userID, accountID int64) ([]models.Reconciliation, error)
	MatchTransaction(userID, reconciliationID, lineID, transactionID int64, notes string) (*models.ReconciliationLine, error)
	UnmatchTransaction(userID, reconciliationID, lineID int64) (*models.ReconciliationLine, error)
	AdjustBalance(userID, reconciliationID int64, amount decimal.Decimal, reason string) (*models.BalanceAdjustment, error)
	CompleteReconciliation(userID, reconciliationID int64, notes string, adjustments []AdjustmentInput) (*models.Reconciliation, error)
	CancelReconciliation(userID, reconciliationID int64) (*models.Reconciliation, error)
}
