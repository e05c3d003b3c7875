package handlers

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/shopspring/decimal"
	"github.com/username/balanco/backend/src/database"
	"github.com/username/balanco/backend/src/logger"
	"github.com/username/balanco/backend/src/models"
	"github.com/username/balanco/backend/src/security/validation"
	"github.com/username/balanco/backend/src/utils"
)

type TransactionHandler struct{}

func NewTransactionHandler() *TransactionHandler {
	return &TransactionHandler{}
}

func (h *TransactionHandler) HandleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "Authentication required", http.StatusUnauthorized)
		return
	}

	var req struct {
		AccountID   int64       `json:"account_id"`
		Type        string      `json:"type"`
		Amount      json.Number `json:"amount"`
		Date        string      `json:"date"`
		Description string      `json:"description"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.SendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if req.Type != models.TransactionTypeExpense && req.Type != models.TransactionTypeIncome {
		utils.SendJSONError(w, "Transaction type must be 'expense' or 'income'", http.StatusBadRequest)
		return
	}
	amount, err := decimal.NewFromString(req.Amount.String())
	if err != nil {
		utils.SendJSONError(w, "Invalid transaction amount", http.StatusBadRequest)
		return
	}
	date, err := utils.ParseDate(req.Date)
	if err != nil {
		utils.SendJSONError(w, "Invalid transaction date, expected YYYY-MM-DD", http.StatusBadRequest)
		return
	}

	if _, err := models.GetAccountForUser(database.DB, req.AccountID, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			utils.SendJSONError(w, "Account not found", http.StatusNotFound)
			return
		}
		logger.L.Error("Failed to verify account ownership", "userID", userID, "accountID", req.AccountID, "error", err)
		utils.SendJSONError(w, "Failed to create transaction", http.StatusInternalServerError)
		return
	}

	transaction := &models.Transaction{
		UserID:      userID,
		AccountID:   req.AccountID,
		Type:        req.Type,
		Amount:      amount,
		Date:        date,
		Description: validation.CleanStatementText(req.Description),
	}
	if err := transaction.Create(database.DB); err != nil {
		logger.L.Error("Failed to create transaction", "userID", userID, "error", err)
		utils.SendJSONError(w, "Failed to create transaction", http.StatusInternalServerError)
		return
	}

	utils.SendJSON(w, transaction, http.StatusCreated)
}

func (h *TransactionHandler) HandleListAccountTransactions(w http.ResponseWriter, r *http.Request) {
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

	if _, err := models.GetAccountForUser(database.DB, accountID, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			utils.SendJSONError(w, "Account not found", http.StatusNotFound)
			return
		}
		logger.L.Error("Failed to verify account ownership", "userID", userID, "accountID", accountID, "error", err)
		utils.SendJSONError(w, "Failed to list transactions", http.StatusInternalServerError)
		return
	}

	transactions, err := models.ListTransactionsByAccount(database.DB, accountID, userID)
	if err != nil {
		logger.L.Error("Failed to list transactions", "userID", userID, "accountID", accountID, "error", err)
		utils.SendJSONError(w, "Failed to list transactions", http.StatusInternalServerError)
		return
	}
	utils.SendJSON(w, transactions, http.StatusOK)
}

func (h *TransactionHandler) HandleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "Authentication required", http.StatusUnauthorized)
		return
	}
	transactionID, err := parseIDParam(r, "transactionID")
	if err != nil {
		utils.SendJSONError(w, "Invalid transaction ID", http.StatusBadRequest)
		return
	}

	deleted, err := models.SoftDeleteTransaction(database.DB, transactionID, userID)
	if err != nil {
		logger.L.Error("Failed to delete transaction", "userID", userID, "transactionID", transactionID, "error", err)
		utils.SendJSONError(w, "Failed to delete transaction", http.StatusInternalServerError)
		return
	}
	if !deleted {
		utils.SendJSONError(w, "Transaction not found", http.StatusNotFound)
		return
	}

	logger.L.Info("Transaction soft-deleted", "userID", userID, "transactionID", transactionID)
	w.WriteHeader(http.StatusNoContent)
}
