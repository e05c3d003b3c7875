package models

import (
	"database/sql"
	"time"

	"github.com/shopspring/decimal"
)

// Reconciliation status values stored on an account.
const (
	AccountReconciliationNone       = "none"
	AccountReconciliationInProgress = "in_progress"
	AccountReconciliationReconciled = "reconciled"
)

type Account struct {
	ID                    int64               `json:"id"`
	UserID                int64               `json:"user_id"`
	Name                  string              `json:"name"`
	Currency              string              `json:"currency"`
	Balance               decimal.Decimal     `json:"balance"`
	ReconciliationStatus  string              `json:"reconciliation_status"`
	LastReconciledAt      NullTime            `json:"last_reconciled_at"`
	LastReconciledBalance decimal.NullDecimal `json:"last_reconciled_balance"`
	CreatedAt             time.Time           `json:"created_at"`
	UpdatedAt             time.Time           `json:"updated_at"`
}

const accountColumns = `id, user_id, name, currency, balance, reconciliation_status,
	last_reconciled_at, last_reconciled_balance, created_at, updated_at`

func (a *Account) Create(db DBTX) error {
	now := time.Now().UTC()
	a.CreatedAt = now
	a.UpdatedAt = now
	if a.ReconciliationStatus == "" {
		a.ReconciliationStatus = AccountReconciliationNone
	}

	res, err := db.Exec(`
		INSERT INTO accounts (user_id, name, currency, balance, reconciliation_status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		a.UserID, a.Name, a.Currency, a.Balance.String(), a.ReconciliationStatus, a.CreatedAt, a.UpdatedAt)
	if err != nil {
		return err
	}
	a.ID, err = res.LastInsertId()
	return err
}

func scanAccount(row interface{ Scan(...any) error }) (*Account, error) {
	var a Account
	err := row.Scan(&a.ID, &a.UserID, &a.Name, &a.Currency, &a.Balance,
		&a.ReconciliationStatus, (*sql.NullTime)(&a.LastReconciledAt), &a.LastReconciledBalance,
		&a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// GetAccountForUser fetches an account only if it belongs to the given user.
// sql.ErrNoRows doubles as the ownership failure signal.
func GetAccountForUser(db DBTX, accountID, userID int64) (*Account, error) {
	row := db.QueryRow(`SELECT `+accountColumns+` FROM accounts WHERE id = ? AND user_id = ?`,
		accountID, userID)
	return scanAccount(row)
}

func ListAccountsByUser(db DBTX, userID int64) ([]Account, error) {
	rows, err := db.Query(`SELECT `+accountColumns+` FROM accounts WHERE user_id = ? ORDER BY name, id`,
		userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	accounts := []Account{}
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, *a)
	}
	return accounts, rows.Err()
}

// UpdateAccountReconciliationStatus flips the account's reconciliation flag and,
// when completing, records the reconciled timestamp and balance. Runs inside the
// caller's transaction so the account and session change together.
func UpdateAccountReconciliationStatus(tx DBTX, accountID int64, status string, reconciledAt *time.Time, reconciledBalance *decimal.Decimal) error {
	var atArg, balArg interface{}
	if reconciledAt != nil {
		atArg = reconciledAt.UTC()
	}
	if reconciledBalance != nil {
		balArg = reconciledBalance.String()
	}
	_, err := tx.Exec(`
		UPDATE accounts
		SET reconciliation_status = ?,
		    last_reconciled_at = COALESCE(?, last_reconciled_at),
		    last_reconciled_balance = COALESCE(?, last_reconciled_balance),
		    updated_at = ?
		WHERE id = ?`,
		status, atArg, balArg, time.Now().UTC(), accountID)
	return err
}
