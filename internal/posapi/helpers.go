package posapi

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/talkincode/toughpos/internal/app"
	"github.com/talkincode/toughpos/internal/domain"
	"github.com/talkincode/toughpos/internal/webserver"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const msgInternal = "An internal error occurred. Please try again."

func appCtx(c echo.Context) app.AppContext {
	return webserver.GetAppContext(c)
}

// GetDB the request scoped database handle
func GetDB(c echo.Context) *gorm.DB {
	return appCtx(c).DB().WithContext(c.Request().Context())
}

func currentUser(c echo.Context) *domain.User {
	return webserver.CurrentUser(c)
}

// ok answers {"success": true, ...payload}
func ok(c echo.Context, payload echo.Map) error {
	if payload == nil {
		payload = echo.Map{}
	}
	payload["success"] = true
	return c.JSON(http.StatusOK, payload)
}

// fail answers {"success": false, "code", "message"}. details are logged,
// never sent to the client.
func fail(c echo.Context, status int, code, message string, details interface{}) error {
	if details != nil {
		level := zap.L().Info
		if status >= http.StatusInternalServerError {
			level = zap.L().Error
		}
		level("api request failed",
			zap.String("namespace", "posapi"),
			zap.String("path", c.Path()),
			zap.String("code", code),
			zap.Any("details", details))
	}
	return c.JSON(status, echo.Map{
		"success": false,
		"code":    code,
		"message": message,
	})
}

// pageError logs err and sends the user back with a generic message
func pageError(c echo.Context, err error, to string) error {
	zap.L().Error("page request failed",
		zap.String("namespace", "posapi"),
		zap.String("path", c.Path()),
		zap.Error(err))
	return webserver.FlashRedirect(c, "danger", msgInternal, to)
}

func parseIDParam(c echo.Context, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s", name)
	}
	return id, nil
}

func parseIntQuery(c echo.Context, name string, def, max int) int {
	v, err := strconv.Atoi(c.QueryParam(name))
	if err != nil || v <= 0 {
		return def
	}
	if max > 0 && v > max {
		return max
	}
	return v
}

// validationMessage turns validator errors into one readable sentence
func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := strings.ToLower(fe.Field())
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, field+" is required")
		case "email":
			msgs = append(msgs, field+" must be a valid email")
		case "oneof":
			msgs = append(msgs, field+" must be one of "+fe.Param())
		case "min", "gte":
			msgs = append(msgs, field+" must be at least "+fe.Param())
		case "max", "lte":
			msgs = append(msgs, field+" must be at most "+fe.Param())
		default:
			msgs = append(msgs, field+" is invalid")
		}
	}
	return strings.Join(msgs, "; ")
}

func handleValidationError(c echo.Context, err error) error {
	return fail(c, http.StatusBadRequest, "VALIDATION_ERROR", validationMessage(err), nil)
}

// recordOperation writes the operation log entry of the current user
func recordOperation(c echo.Context, action, desc string) {
	user := currentUser(c)
	if user == nil {
		return
	}
	appCtx(c).RecordOperation(user.BusinessID, user.Username, c.RealIP(), action, desc)
}
