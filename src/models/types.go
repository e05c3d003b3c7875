package models

import "database/sql"

// NullTime is an alias for sql.NullTime with null-aware JSON marshalling.
type NullTime sql.NullTime

func (nt NullTime) MarshalJSON() ([]byte, error) {
	if !nt.Valid {
		return []byte("null"), nil
	}
	return nt.Time.MarshalJSON()
}
