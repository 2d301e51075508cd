package api

import (
	"bytes"
	"io"
	"net/http"

	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"

	"github.com/amankumar20031130-afk/taskflow/domain"
)

const maxBodyBytes = 1 << 20

// JSONSerializer plugs sonic into echo.
type JSONSerializer struct{}

func (JSONSerializer) Serialize(c echo.Context, i any, indent string) error {
	enc := sonic.ConfigStd.NewEncoder(c.Response())
	if indent != "" {
		enc.SetIndent("", indent)
	}
	return enc.Encode(i)
}

func (JSONSerializer) Deserialize(c echo.Context, i any) error {
	return decodeJSON(c.Request(), i)
}

// decodeJSON strictly decodes a bounded request body into dst.
func decodeJSON(r *http.Request, dst any) error {
	if r.Body == nil {
		return domain.NewValidationError("body", "request body is required")
	}
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return err
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return domain.NewValidationError("body", "request body is required")
	}
	// Valid rejects trailing content after the first value as well.
	if !sonic.ConfigStd.Valid(raw) {
		return domain.NewValidationError("body", "malformed JSON")
	}
	dec := sonic.ConfigStd.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return domain.NewValidationError("body", "malformed JSON: "+err.Error())
	}
	return nil
}
