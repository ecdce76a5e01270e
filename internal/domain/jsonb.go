package domain

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
)

// JSONBMap maps a Postgres JSONB column onto map[string]any. Page
// metadata, site credentials and settings, and the job ledger's
// request/response snapshots all store through it.
type JSONBMap map[string]any

// Scan implements sql.Scanner. A NULL column scans to a nil map;
// an empty payload scans to an empty, non-nil map.
func (j *JSONBMap) Scan(value any) error {
	if value == nil {
		*j = nil
		return nil
	}

	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return errors.New("jsonb column scanned a non-text value")
	}

	if len(data) == 0 {
		*j = JSONBMap{}
		return nil
	}

	return json.Unmarshal(data, j)
}

// Value implements driver.Valuer. Nil and empty maps both store as an
// empty object rather than NULL so history rows stay queryable.
func (j *JSONBMap) Value() (driver.Value, error) {
	if j == nil || len(*j) == 0 {
		return []byte("{}"), nil
	}
	return json.Marshal(j)
}
