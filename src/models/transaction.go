package models

import (
	"database/sql"
	"time"

	"github.com/shopspring/decimal"
	"github.com/username/balanco/backend/src/utils"
)

// Ledger transaction types. Reconciliation only considers expense entries,
// matching the polarity convention of bank statement debits.
const (
	TransactionTypeExpense = "expense"
	TransactionTypeIncome  = "income"
)

// Transaction is a ledger entry recorded by the user. The reconciliation core
// treats these as read-only candidates; it never mutates them.
type Transaction struct {
	ID          int64           `json:"id"`
	UserID      int64           `json:"user_id"`
	AccountID   int64           `json:"account_id"`
	Type        string          `json:"type"`
	Amount      decimal.Decimal `json:"amount"`
	Date        time.Time       `json:"date"`
	Description string          `json:"description"`
	DeletedAt   NullTime        `json:"deleted_at,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

const transactionColumns = `id, user_id, account_id, type, amount, date, description, deleted_at, created_at, updated_at`

func scanTransaction(row interface{ Scan(...any) error }) (*Transaction, error) {
	var t Transaction
	var date string
	err := row.Scan(&t.ID, &t.UserID, &t.AccountID, &t.Type, &t.Amount, &date,
		&t.Description, (*sql.NullTime)(&t.DeletedAt), &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if t.Date, err = utils.ParseDate(date); err != nil {
		return nil, err
	}
	return &t, nil
}

func (t *Transaction) Create(db DBTX) error {
	now := time.Now().UTC()
	t.CreatedAt = now
	t.UpdatedAt = now

	res, err := db.Exec(`
		INSERT INTO transactions (user_id, account_id, type, amount, date, description, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		t.UserID, t.AccountID, t.Type, t.Amount.String(), t.Date.Format(utils.DateLayout),
		t.Description, t.CreatedAt, t.UpdatedAt)
	if err != nil {
		return err
	}
	t.ID, err = res.LastInsertId()
	return err
}

// GetTransactionForUser fetches a non-deleted ledger transaction only if it
// belongs to the given user.
func GetTransactionForUser(db DBTX, transactionID, userID int64) (*Transaction, error) {
	row := db.QueryRow(`
		SELECT `+transactionColumns+`
		FROM transactions
		WHERE id = ? AND user_id = ? AND deleted_at IS NULL`,
		transactionID, userID)
	return scanTransaction(row)
}

func ListTransactionsByAccount(db DBTX, accountID, userID int64) ([]Transaction, error) {
	rows, err := db.Query(`
		SELECT `+transactionColumns+`
		FROM transactions
		WHERE account_id = ? AND user_id = ? AND deleted_at IS NULL
		ORDER BY date DESC, id DESC`,
		accountID, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectTransactions(rows)
}

// ListReconciliationCandidates returns the ledger transactions eligible for
// matching: owned by the user, on the account, inside the inclusive date
// window, expense type, not soft-deleted. Ordered by date then id so the
// matcher's first-seen tie-break is stable.
func ListReconciliationCandidates(db DBTX, accountID, userID int64, startDate, endDate time.Time) ([]Transaction, error) {
	rows, err := db.Query(`
		SELECT `+transactionColumns+`
		FROM transactions
		WHERE account_id = ? AND user_id = ?
		  AND type = ?
		  AND deleted_at IS NULL
		  AND date >= ? AND date <= ?
		ORDER BY date, id`,
		accountID, userID, TransactionTypeExpense,
		startDate.Format(utils.DateLayout), endDate.Format(utils.DateLayout))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectTransactions(rows)
}

func collectTransactions(rows *sql.Rows) ([]Transaction, error) {
	transactions := []Transaction{}
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		transactions = append(transactions, *t)
	}
	return transactions, rows.Err()
}

// SoftDeleteTransaction marks a ledger transaction as deleted without removing
// the row, so completed reconciliations keep their historical links.
func SoftDeleteTransaction(db DBTX, transactionID, userID int64) (bool, error) {
	res, err := db.Exec(`
		UPDATE transactions SET deleted_at = ?, updated_at = ?
		WHERE id = ? AND user_id = ? AND deleted_at IS NULL`,
		time.Now().UTC(), time.Now().UTC(), transactionID, userID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}
