package webserver

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/talkincode/toughpos/internal/app"
	"github.com/talkincode/toughpos/internal/auth"
	"github.com/talkincode/toughpos/internal/domain"
	"go.uber.org/zap"
)

const (
	ContextKeyApp = "appctx"

	MsgLoginRequired  = "Please log in to access this page."
	MsgAccessDenied   = "Access denied. Insufficient permissions."
	MsgTooManyLogins  = "Too many login attempts. Please try again later."
	loginLimitPeriod  = time.Minute
	defaultLoginLimit = 5
)

// GetAppContext returns the application context injected by the server
func GetAppContext(c echo.Context) app.AppContext {
	appCtx, _ := c.Get(ContextKeyApp).(app.AppContext)
	return appCtx
}

func appContextMiddleware(appCtx app.AppContext) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			c.Set(ContextKeyApp, appCtx)
			return next(c)
		}
	}
}

// currentUserMiddleware reloads the session user on every request so that
// deactivation and role changes apply immediately
func currentUserMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		uid := sessionUserID(c)
		if uid == 0 {
			return next(c)
		}
		var user domain.User
		err := GetAppContext(c).DB().WithContext(c.Request().Context()).Where("id = ?", uid).First(&user).Error
		if err != nil || !user.Active {
			Logout(c)
			return next(c)
		}
		c.Set(ContextKeyUser, &user)
		return next(c)
	}
}

func isAPIRequest(c echo.Context) bool {
	return strings.HasPrefix(c.Request().URL.Path, "/api/")
}

// deny answers JSON for /api routes and flash plus redirect for pages
func deny(c echo.Context, status int, code, message string) error {
	if isAPIRequest(c) {
		return c.JSON(status, map[string]interface{}{
			"success": false,
			"code":    code,
			"message": message,
		})
	}
	if CurrentUser(c) == nil {
		return FlashRedirect(c, "warning", message, "/login")
	}
	return FlashRedirect(c, "danger", message, "/dashboard")
}

// RequireLogin rejects anonymous requests
func RequireLogin(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if CurrentUser(c) == nil {
			return deny(c, http.StatusUnauthorized, "UNAUTHORIZED", MsgLoginRequired)
		}
		return next(c)
	}
}

// RequireRoles admits only users whose role is in the set
func RequireRoles(roles auth.RoleSet) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			user := CurrentUser(c)
			if user == nil {
				return deny(c, http.StatusUnauthorized, "UNAUTHORIZED", MsgLoginRequired)
			}
			if !roles.Allows(user.Role) {
				zap.L().Info("role gate denied",
					zap.String("namespace", "web"),
					zap.String("username", user.Username),
					zap.String("role", string(user.Role)),
					zap.String("path", c.Path()))
				return deny(c, http.StatusForbidden, "FORBIDDEN", MsgAccessDenied)
			}
			return next(c)
		}
	}
}

// FeatureDeniedMessage the message shown when a feature gate rejects a request
func FeatureDeniedMessage(name string) string {
	return "Access denied. The " + name + " feature is not activated for your business."
}

// RequireFeature admits only users whose business may use the feature.
// Lookup failures deny.
func RequireFeature(name string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			user := CurrentUser(c)
			if user == nil {
				return deny(c, http.StatusUnauthorized, "UNAUTHORIZED", MsgLoginRequired)
			}
			enabled, err := GetAppContext(c).Activation().FeatureEnabled(c.Request().Context(), user.BusinessID, name)
			if err != nil {
				zap.L().Error("feature lookup failed", zap.String("namespace", "web"), zap.String("feature", name), zap.Error(err))
				enabled = false
			}
			if !enabled {
				return deny(c, http.StatusForbidden, "FEATURE_NOT_ACTIVATED", FeatureDeniedMessage(name))
			}
			return next(c)
		}
	}
}

// LoginRateLimit counts attempts per client ip in redis. Without redis
// every request passes.
func LoginRateLimit(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		appCtx := GetAppContext(c)
		rdb := appCtx.Redis()
		if rdb == nil {
			return next(c)
		}
		limit := appCtx.Config().Redis.LoginLimit
		if limit <= 0 {
			limit = defaultLoginLimit
		}
		ctx, cancel := context.WithTimeout(c.Request().Context(), time.Second)
		defer cancel()
		key := "login_limit:" + c.RealIP()
		count, err := rdb.Incr(ctx, key).Result()
		if err != nil {
			zap.L().Warn("login rate limit unavailable", zap.String("namespace", "web"), zap.Error(err))
			return next(c)
		}
		if count == 1 {
			rdb.Expire(ctx, key, loginLimitPeriod)
		}
		if count > int64(limit) {
			if isAPIRequest(c) {
				return deny(c, http.StatusTooManyRequests, "TOO_MANY_REQUESTS", MsgTooManyLogins)
			}
			return FlashRedirect(c, "danger", MsgTooManyLogins, "/login")
		}
		return next(c)
	}
}
