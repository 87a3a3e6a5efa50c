package api

import (
	"net/http"

	"github.com/goccy/go-json"
	"github.com/labstack/echo/v5"
)

// writeJSON marshals with goccy/go-json rather than the context's default
// encoder; tensor listings for large models are the hot path here.
func writeJSON(c *echo.Context, status int, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	res := c.Response()
	res.Header().Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	res.WriteHeader(status)
	_, err = res.Write(b)
	return err
}

func writeNotFound(c *echo.Context, msg string) error {
	return writeJSON(c, http.StatusNotFound, map[string]any{
		"error": APIError{Message: msg, Type: "not_found_error"},
	})
}

func writeServerError(c *echo.Context, msg string) error {
	return writeJSON(c, http.StatusInternalServerError, map[string]any{
		"error": APIError{Message: msg, Type: "server_error"},
	})
}
