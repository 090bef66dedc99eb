package dbtypes

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// JSON stores an already-encoded JSON document in a text column so the same
// model works on postgres and sqlite.
type JSON []byte

// Marshal encodes v into a JSON column value.
func Marshal(v any) (JSON, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("JSON: marshal: %w", err)
	}
	return JSON(raw), nil
}

// Unmarshal decodes the column into dst.
func (j JSON) Unmarshal(dst any) error {
	if len(j) == 0 {
		return fmt.Errorf("JSON: empty document")
	}
	return json.Unmarshal(j, dst)
}

func (j *JSON) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*j = nil
		return nil
	case string:
		*j = JSON(v)
		return nil
	case []byte:
		*j = append(JSON(nil), v...)
		return nil
	default:
		return fmt.Errorf("JSON: unsupported Scan type %T", src)
	}
}

func (j JSON) Value() (driver.Value, error) {
	if len(j) == 0 {
		return nil, nil
	}
	if !json.Valid(j) {
		return nil, fmt.Errorf("JSON: invalid document")
	}
	return string(j), nil
}
