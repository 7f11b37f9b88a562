package validators

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	pkgerrors "github.com/angelmondragon/momopay/pkg/errors"
	"github.com/angelmondragon/momopay/pkg/validation"
)

const maxBodyBytes = 1 << 16

type selfValidating interface {
	Validate() error
}

// DecodeJSONBody decodes a single JSON document into dest and validates it,
// preferring dest's own Validate method over struct tags.
func DecodeJSONBody(r *http.Request, dest any) error {
	defer func() {
		io.Copy(io.Discard, r.Body)
	}()
	decoder := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dest); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid request body").WithDetails(map[string]any{"error": err.Error()})
	}
	if err := decoder.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return pkgerrors.New(pkgerrors.CodeValidation, "request body must contain a single JSON object")
	}
	if v, ok := dest.(selfValidating); ok {
		return v.Validate()
	}
	return validation.Struct(dest)
}
