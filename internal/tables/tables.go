package tables

import (
	"fmt"
	"net/url"
	"path"
	"strconv"
	"strings"

	pkgerrors "github.com/angelmondragon/tableside/pkg/errors"
	"github.com/skip2/go-qrcode"
)

const defaultQRSize = 256

// Identity is the physical table a session orders from. The token is issued
// per table and lets the server tie guest orders to the right seat.
type Identity struct {
	Number int    `json:"table_number"`
	Token  string `json:"table_token"`
}

func (i Identity) IsZero() bool {
	return i.Number == 0 && i.Token == ""
}

func (i Identity) Validate() error {
	if i.Number <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "table number must be positive")
	}
	if strings.TrimSpace(i.Token) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "table token is required")
	}
	return nil
}

// JoinURL renders <base>/<number>?token=<token>, the link encoded in table QR codes.
func (i Identity) JoinURL(base string) (string, error) {
	if err := i.Validate(); err != nil {
		return "", err
	}
	u, err := url.Parse(strings.TrimSpace(base))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "join base url must be absolute")
	}
	u.Path = path.Join("/", u.Path, strconv.Itoa(i.Number))
	q := u.Query()
	q.Set("token", i.Token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// ParseJoinURL reads the table identity back out of a join link.
func ParseJoinURL(raw string) (Identity, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return Identity{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid join url")
	}
	number, err := strconv.Atoi(path.Base(u.Path))
	if err != nil {
		return Identity{}, pkgerrors.New(pkgerrors.CodeValidation, "join url has no table number")
	}
	id := Identity{Number: number, Token: u.Query().Get("token")}
	if err := id.Validate(); err != nil {
		return Identity{}, err
	}
	return id, nil
}

// QRCode returns a PNG encoding of the join link.
func (i Identity) QRCode(base string, size int) ([]byte, error) {
	link, err := i.JoinURL(base)
	if err != nil {
		return nil, err
	}
	if size <= 0 {
		size = defaultQRSize
	}
	png, err := qrcode.Encode(link, qrcode.Medium, size)
	if err != nil {
		return nil, fmt.Errorf("encode table qr code: %w", err)
	}
	return png, nil
}
