package utils

import (
	"encoding/json"
	"net/http"
	"time"
)

// DateLayout is the canonical date format for ledger transactions,
// reconciliation periods and statement lines.
const DateLayout = "2006-01-02"

// SendJSONError writes a JSON error payload with the given status code.
func SendJSONError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// SendJSON writes an arbitrary payload as JSON with the given status code.
func SendJSON(w http.ResponseWriter, payload interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(payload)
}

// ParseDate parses an ISO-8601 date (YYYY-MM-DD) in UTC.
func ParseDate(s string) (time.Time, error) {
	return time.ParseInLocation(DateLayout, s, time.UTC)
}

// DaysBetween returns the absolute whole-day difference between two dates.
// Both times are truncated to their calendar date before comparing, so a
// statement entry at 23:59 and a ledger entry at 00:01 the same day count
// as zero days apart.
func DaysBetween(a, b time.Time) int {
	ad := time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, time.UTC)
	bd := time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, time.UTC)
	d := ad.Sub(bd)
	if d < 0 {
		d = -d
	}
	return int(d.Hours() / 24)
}
