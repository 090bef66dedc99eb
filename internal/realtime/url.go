package realtime

import (
	"fmt"
	"net/url"
	"path"
	"strconv"
	"strings"

	"github.com/angelmondragon/tableside/pkg/enums"
)

// Credentials identify the session on the realtime server.
type Credentials struct {
	UserID     int64
	Role       enums.SessionRole
	TableToken string
	Email      string
}

func (c Credentials) validate() error {
	if c.UserID <= 0 {
		return fmt.Errorf("user id is required")
	}
	if !c.Role.IsValid() {
		return fmt.Errorf("invalid session role %q", c.Role)
	}
	return nil
}

// BuildURL renders ws://<host>/ws/<role>/<userId>?token=&tableToken=&email=.
func BuildURL(base string, creds Credentials, token string) (string, error) {
	if err := creds.validate(); err != nil {
		return "", err
	}
	u, err := url.Parse(strings.TrimSpace(base))
	if err != nil {
		return "", fmt.Errorf("parse realtime base url: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return "", fmt.Errorf("realtime base url must use ws or wss, got %q", u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("realtime base url has no host")
	}
	u.Path = path.Join("/", u.Path, "ws", creds.Role.PathSegment(), strconv.FormatInt(creds.UserID, 10))

	// The server expects this parameter order.
	u.RawQuery = "token=" + url.QueryEscape(token) +
		"&tableToken=" + url.QueryEscape(creds.TableToken) +
		"&email=" + url.QueryEscape(creds.Email)
	return u.String(), nil
}
