package enums

import (
	"fmt"
	"strings"
)

// SessionRole identifies who owns a realtime session.
type SessionRole string

const (
	SessionRoleGuest SessionRole = "Guest"
	SessionRoleUser  SessionRole = "User"
)

var validSessionRoles = []SessionRole{
	SessionRoleGuest,
	SessionRoleUser,
}

// String implements fmt.Stringer.
func (r SessionRole) String() string {
	return string(r)
}

// IsValid reports whether the value is a known SessionRole.
func (r SessionRole) IsValid() bool {
	for _, candidate := range validSessionRoles {
		if candidate == r {
			return true
		}
	}
	return false
}

// PathSegment is the lowercased form used in websocket URLs.
func (r SessionRole) PathSegment() string {
	return strings.ToLower(string(r))
}

// ParseSessionRole accepts either casing of a known role.
func ParseSessionRole(value string) (SessionRole, error) {
	for _, candidate := range validSessionRoles {
		if strings.EqualFold(string(candidate), strings.TrimSpace(value)) {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid session role %q", value)
}
