package postgres

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// marshalJSON encodes a value for a JSONB column, writing NULL for nil
func marshalJSON(v interface{}) (interface{}, error) {
	if v == nil {
		return nil, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal json column: %w", err)
	}
	return data, nil
}

// unmarshalJSON decodes a JSONB column into dst, leaving dst untouched for
// NULL
func unmarshalJSON(raw []byte, dst interface{}) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("failed to unmarshal json column: %w", err)
	}
	return nil
}

// timePtr converts a scanned sql.NullTime into a *time.Time
func timePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time
	return &t
}
