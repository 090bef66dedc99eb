package validators

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	pkgerrors "github.com/angelmondragon/tableside/pkg/errors"
	pkgvalidators "github.com/angelmondragon/tableside/pkg/validators"
)

// DecodeJSONBody decodes and validates a request body. An empty body leaves
// dest at its zero value, which is then validated as usual.
func DecodeJSONBody(r *http.Request, dest any) error {
	defer func() {
		io.Copy(io.Discard, r.Body)
	}()
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dest); err != nil && !errors.Is(err, io.EOF) {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid request body").WithDetails(map[string]any{"error": err.Error()})
	}
	return pkgvalidators.Struct(dest)
}
