package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/shopspring/decimal"
	"github.com/username/balanco/backend/src/config"
	"github.com/username/balanco/backend/src/logger"
	"github.com/username/balanco/backend/src/services"
	"github.com/username/balanco/backend/src/utils"
)

type ReconciliationHandler struct {
	service services.ReconciliationService
}

func NewReconciliationHandler(service services.ReconciliationService) *ReconciliationHandler {
	return &ReconciliationHandler{service: service}
}

// handleServiceError translates service errors into HTTP responses.
func handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, services.ErrAccountNotFound),
		errors.Is(err, services.ErrReconciliationNotFound),
		errors.Is(err, services.ErrTransactionNotFound),
		errors.Is(err, services.ErrLineNotFound):
		utils.SendJSONError(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, services.ErrReconciliationNotActive),
		errors.Is(err, services.ErrReconciliationInProgress):
		utils.SendJSONError(w, err.Error(), http.StatusConflict)
	case errors.Is(err, services.ErrInvalidInput):
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
	default:
		logger.FromContext(r.Context()).Error("Reconciliation operation failed", "path", r.URL.Path, "error", err)
		utils.SendJSONError(w, "Internal server error", http.StatusInternalServerError)
	}
}

func (h *ReconciliationHandler) HandleStartReconciliation(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "Authentication required", http.StatusUnauthorized)
		return
	}

	var req struct {
		AccountID        int64       `json:"account_id"`
		StartDate        string      `json:"start_date"`
		EndDate          string      `json:"end_date"`
		StatementBalance json.Number `json:"statement_balance"`
		Notes            string      `json:"notes"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.SendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	startDate, err := utils.ParseDate(req.StartDate)
	if err != nil {
		utils.SendJSONError(w, "Invalid start_date, expected YYYY-MM-DD", http.StatusBadRequest)
		return
	}
	endDate, err := utils.ParseDate(req.EndDate)
	if err != nil {
		utils.SendJSONError(w, "Invalid end_date, expected YYYY-MM-DD", http.StatusBadRequest)
		return
	}
	statementBalance, err := decimal.NewFromString(req.StatementBalance.String())
	if err != nil {
		utils.SendJSONError(w, "Invalid statement_balance", http.StatusBadRequest)
		return
	}

	rec, err := h.service.StartReconciliation(userID, services.StartReconciliationInput{
		AccountID:        req.AccountID,
		StartDate:        startDate,
		EndDate:          endDate,
		StatementBalance: statementBalance,
		Notes:            req.Notes,
	})
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	utils.SendJSON(w, rec, http.StatusCreated)
}

func (h *ReconciliationHandler) HandleUploadStatement(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "Authentication required", http.StatusUnauthorized)
		return
	}
	reconciliationID, err := parseIDParam(r, "reconciliationID")
	if err != nil {
		utils.SendJSONError(w, "Invalid reconciliation ID", http.StatusBadRequest)
		return
	}

	var req struct {
		Lines []struct {
			Amount      json.Number `json:"amount"`
			Date        string      `json:"date"`
			Description string      `json:"description"`
			Reference   string      `json:"reference"`
		} `json:"lines"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.SendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if len(req.Lines) == 0 {
		utils.SendJSONError(w, "Statement must contain at least one line", http.StatusBadRequest)
		return
	}
	if config.Cfg != nil && len(req.Lines) > config.Cfg.MaxStatementLines {
		utils.SendJSONError(w, "Statement exceeds the maximum number of lines", http.StatusBadRequest)
		return
	}

	lines := make([]services.StatementLineInput, len(req.Lines))
	for i, l := range req.Lines {
		lines[i] = services.StatementLineInput{
			Amount:      l.Amount.String(),
			Date:        l.Date,
			Description: l.Description,
			Reference:   l.Reference,
		}
	}

	result, err := h.service.UploadStatement(userID, reconciliationID, lines)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	utils.SendJSON(w, result, http.StatusOK)
}

func (h *ReconciliationHandler) HandleGetReconciliation(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "Authentication required", http.StatusUnauthorized)
		return
	}
	reconciliationID, err := parseIDParam(r, "reconciliationID")
	if err != nil {
		utils.SendJSONError(w, "Invalid reconciliation ID", http.StatusBadRequest)
		return
	}

	detail, err := h.service.GetReconciliation(userID, reconciliationID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	utils.SendJSON(w, detail, http.StatusOK)
}

func (h *ReconciliationHandler) HandleGetReconciliationHistory(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "Authentication required", http.StatusUnauthorized)
		return
	}
	accountID, err := parseIDParam(r, "accountID")
	if err != nil {
		utils.SendJSONError(w, "Invalid account ID", http.StatusBadRequest)
		return
	}

	history, err := h.service.GetReconciliationHistory(userID, accountID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	utils.SendJSON(w, history, http.StatusOK)
}

func (h *ReconciliationHandler) HandleMatchTransaction(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "Authentication required", http.StatusUnauthorized)
		return
	}
	reconciliationID, err := parseIDParam(r, "reconciliationID")
	if err != nil {
		utils.SendJSONError(w, "Invalid reconciliation ID", http.StatusBadRequest)
		return
	}

	var req struct {
		LineID        int64  `json:"line_id"`
		TransactionID int64  `json:"transaction_id"`
		Notes         string `json:"notes"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.SendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.LineID == 0 || req.TransactionID == 0 {
		utils.SendJSONError(w, "line_id and transaction_id are required", http.StatusBadRequest)
		return
	}

	line, err := h.service.MatchTransaction(userID, reconciliationID, req.LineID, req.TransactionID, req.Notes)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	utils.SendJSON(w, line, http.StatusOK)
}

func (h *ReconciliationHandler) HandleUnmatchTransaction(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "Authentication required", http.StatusUnauthorized)
		return
	}
	reconciliationID, err := parseIDParam(r, "reconciliationID")
	if err != nil {
		utils.SendJSONError(w, "Invalid reconciliation ID", http.StatusBadRequest)
		return
	}

	var req struct {
		LineID int64 `json:"line_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.LineID == 0 {
		utils.SendJSONError(w, "line_id is required", http.StatusBadRequest)
		return
	}

	line, err := h.service.UnmatchTransaction(userID, reconciliationID, req.LineID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	utils.SendJSON(w, line, http.StatusOK)
}

func (h *ReconciliationHandler) HandleAdjustBalance(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "Authentication required", http.StatusUnauthorized)
		return
	}
	reconciliationID, err := parseIDParam(r, "reconciliationID")
	if err != nil {
		utils.SendJSONError(w, "Invalid reconciliation ID", http.StatusBadRequest)
		return
	}

	var req struct {
		Amount json.Number `json:"amount"`
		Reason string      `json:"reason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.SendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	amount, err := decimal.NewFromString(req.Amount.String())
	if err != nil {
		utils.SendJSONError(w, "Invalid adjustment amount", http.StatusBadRequest)
		return
	}

	adjustment, err := h.service.AdjustBalance(userID, reconciliationID, amount, req.Reason)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	utils.SendJSON(w, adjustment, http.StatusCreated)
}

func (h *ReconciliationHandler) HandleCompleteReconciliation(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "Authentication required", http.StatusUnauthorized)
		return
	}
	reconciliationID, err := parseIDParam(r, "reconciliationID")
	if err != nil {
		utils.SendJSONError(w, "Invalid reconciliation ID", http.StatusBadRequest)
		return
	}

	var req struct {
		Notes       string `json:"notes"`
		Adjustments []struct {
			Amount json.Number `json:"amount"`
			Reason string      `json:"reason"`
		} `json:"adjustments"`
	}
	// An empty body is fine; completion has no required parameters.
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		utils.SendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	adjustments := make([]services.AdjustmentInput, 0, len(req.Adjustments))
	for _, a := range req.Adjustments {
		amount, err := decimal.NewFromString(a.Amount.String())
		if err != nil {
			utils.SendJSONError(w, "Invalid adjustment amount", http.StatusBadRequest)
			return
		}
		adjustments = append(adjustments, services.AdjustmentInput{Amount: amount, Reason: a.Reason})
	}

	rec, err := h.service.CompleteReconciliation(userID, reconciliationID, req.Notes, adjustments)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	utils.SendJSON(w, rec, http.StatusOK)
}

func (h *ReconciliationHandler) HandleCancelReconciliation(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "Authentication required", http.StatusUnauthorized)
		return
	}
	reconciliationID, err := parseIDParam(r, "reconciliationID")
	if err != nil {
		utils.SendJSONError(w, "Invalid reconciliation ID", http.StatusBadRequest)
		return
	}

	rec, err := h.service.CancelReconciliation(userID, reconciliationID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	utils.SendJSON(w, rec, http.StatusOK)
}
