package bouncer

import (
	"fmt"

	jsoniter "github.com/json-iterator/go"
	"github.com/labstack/echo/v4"
)

// json keeps numbers as json.Number so large platform ids survive the
// bounce round trip unchanged.
var json = jsoniter.Config{
	EscapeHTML:             true,
	SortMapKeys:            true,
	ValidateJsonRawMessage: true,
	UseNumber:              true,
}.Froze()

// Decode converts a loosely typed payload into out.
func Decode(payload, out any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}

// serializer is an echo.JSONSerializer backed by json-iterator.
type serializer struct{}

func (serializer) Serialize(c echo.Context, i any, indent string) error {
	enc := json.NewEncoder(c.Response())
	if indent != "" {
		enc.SetIndent("", indent)
	}
	return enc.Encode(i)
}

func (serializer) Deserialize(c echo.Context, i any) error {
	if err := json.NewDecoder(c.Request().Body).Decode(i); err != nil {
		return fmt.Errorf("decode json: %w", err)
	}
	return nil
}
