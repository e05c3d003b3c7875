package handlers

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/username/balanco/backend/src/database"
	"github.com/username/balanco/backend/src/logger"
	"github.com/username/balanco/backend/src/models"
	"github.com/username/balanco/backend/src/security/validation"
	"github.com/username/balanco/backend/src/utils"
)

type AccountHandler struct{}

func NewAccountHandler() *AccountHandler {
	return &AccountHandler{}
}

func (h *AccountHandler) HandleCreateAccount(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "Authentication required", http.StatusUnauthorized)
		return
	}

	var req struct {
		Name     string      `json:"name"`
		Currency string      `json:"currency"`
		Balance  json.Number `json:"balance"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.SendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	name := validation.SanitizeText(req.Name)
	if name == "" {
		utils.SendJSONError(w, "Account name is required", http.StatusBadRequest)
		return
	}
	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	if currency == "" {
		currency = "EUR"
	}

	balance := decimal.Zero
	if req.Balance != "" {
		var err error
		balance, err = decimal.NewFromString(req.Balance.String())
		if err != nil {
			utils.SendJSONError(w, "Invalid balance amount", http.StatusBadRequest)
			return
		}
	}

	account := &models.Account{
		UserID:   userID,
		Name:     name,
		Currency: currency,
		Balance:  balance,
	}
	if err := account.Create(database.DB); err != nil {
		logger.L.Error("Failed to create account", "userID", userID, "error", err)
		utils.SendJSONError(w, "Failed to create account", http.StatusInternalServerError)
		return
	}

	logger.L.Info("Account created", "userID", userID, "accountID", account.ID)
	utils.SendJSON(w, account, http.StatusCreated)
}

func (h *AccountHandler) HandleListAccounts(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "Authentication required", http.StatusUnauthorized)
		return
	}

	accounts, err := models.ListAccountsByUser(database.DB, userID)
	if err != nil {
		logger.L.Error("Failed to list accounts", "userID", userID, "error", err)
		utils.SendJSONError(w, "Failed to list accounts", http.StatusInternalServerError)
		return
	}
	utils.SendJSON(w, accounts, http.StatusOK)
}

func (h *AccountHandler) HandleGetAccount(w http.ResponseWriter, r *http.Request) {
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

	account, err := models.GetAccountForUser(database.DB, accountID, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			utils.SendJSONError(w, "Account not found", http.StatusNotFound)
			return
		}
		logger.L.Error("Failed to get account", "userID", userID, "accountID", accountID, "error", err)
		utils.SendJSONError(w, "Failed to get account", http.StatusInternalServerError)
		return
	}
	utils.SendJSON(w, account, http.StatusOK)
}

func parseIDParam(r *http.Request, name string) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, name), 10, 64)
}
