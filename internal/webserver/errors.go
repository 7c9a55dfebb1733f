package webserver

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// httpErrorHandler hides internal error details from clients
func httpErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	status := http.StatusInternalServerError
	message := "An internal error occurred. Please try again."
	var he *echo.HTTPError
	if errors.As(err, &he) {
		status = he.Code
		if m, ok := he.Message.(string); ok && status < http.StatusInternalServerError {
			message = m
		}
	}
	if status >= http.StatusInternalServerError {
		zap.L().Error("request failed",
			zap.String("namespace", "web"),
			zap.String("method", c.Request().Method),
			zap.String("path", c.Request().URL.Path),
			zap.Error(err))
	}

	if c.Request().Method == http.MethodHead {
		_ = c.NoContent(status)
		return
	}
	if isAPIRequest(c) {
		_ = c.JSON(status, map[string]interface{}{
			"success": false,
			"code":    http.StatusText(status),
			"message": message,
		})
		return
	}
	if rerr := RenderPageStatus(c, status, "error.html", http.StatusText(status), map[string]interface{}{
		"Status":  status,
		"Message": message,
	}); rerr != nil {
		_ = c.String(status, message)
	}
}
