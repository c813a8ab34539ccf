package sqlutil

import (
	"database/sql"
	"encoding/json"

	"github.com/sqlc-dev/pqtype"
)

// ToNullInt64 converts an optional sequence number to sql.NullInt64.
func ToNullInt64(val *uint64) sql.NullInt64 {
	if val == nil {
		return sql.NullInt64{Valid: false}
	}
	return sql.NullInt64{Int64: int64(*val), Valid: true}
}

// FromNullInt64 converts sql.NullInt64 to an optional sequence number.
func FromNullInt64(val sql.NullInt64) *uint64 {
	if !val.Valid {
		return nil
	}
	u := uint64(val.Int64)
	return &u
}

// ToNullString maps "" to NULL.
func ToNullString(val string) sql.NullString {
	return sql.NullString{String: val, Valid: val != ""}
}

// FromNullString converts sql.NullString to a Go string with default.
func FromNullString(val sql.NullString, defaultVal string) string {
	if !val.Valid {
		return defaultVal
	}
	return val.String
}

// ToNullRawMessage wraps a JSON document for a nullable jsonb column.
func ToNullRawMessage(raw json.RawMessage) pqtype.NullRawMessage {
	if len(raw) == 0 {
		return pqtype.NullRawMessage{Valid: false}
	}
	return pqtype.NullRawMessage{RawMessage: raw, Valid: true}
}

// FromNullRawMessage unwraps a nullable jsonb column.
func FromNullRawMessage(val pqtype.NullRawMessage) json.RawMessage {
	if !val.Valid {
		return nil
	}
	return val.RawMessage
}
