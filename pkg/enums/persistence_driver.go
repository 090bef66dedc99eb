package enums

import (
	"fmt"
	"strings"
)

// PersistenceDriver selects where session snapshots are mirrored.
type PersistenceDriver string

const (
	PersistenceDriverNone     PersistenceDriver = "none"
	PersistenceDriverRedis    PersistenceDriver = "redis"
	PersistenceDriverPostgres PersistenceDriver = "postgres"
	PersistenceDriverSQLite   PersistenceDriver = "sqlite"
)

var validPersistenceDrivers = []PersistenceDriver{
	PersistenceDriverNone,
	PersistenceDriverRedis,
	PersistenceDriverPostgres,
	PersistenceDriverSQLite,
}

// IsValid reports whether the value is a known PersistenceDriver.
func (p PersistenceDriver) IsValid() bool {
	for _, candidate := range validPersistenceDrivers {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParsePersistenceDriver converts raw input into a PersistenceDriver.
func ParsePersistenceDriver(value string) (PersistenceDriver, error) {
	normalized := PersistenceDriver(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return PersistenceDriverNone, nil
	}
	if !normalized.IsValid() {
		return "", fmt.Errorf("invalid persistence driver %q", value)
	}
	return normalized, nil
}
