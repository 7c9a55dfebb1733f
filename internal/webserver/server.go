// Package webserver wires echo with sessions, templates and the route gates.
package webserver

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo-contrib/session"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"github.com/talkincode/toughpos/internal/app"
	"go.uber.org/zap"
)

type Server struct {
	root   *echo.Echo
	appCtx app.AppContext
}

func NewServer(appCtx app.AppContext) (*Server, error) {
	cfg := appCtx.Config()
	renderer, err := NewRenderer()
	if err != nil {
		return nil, err
	}

	e := echo.New()
	e.HideBanner = true
	e.Debug = cfg.System.Debug && !cfg.IsProduction()
	e.Logger.SetLevel(log.WARN)
	e.JSONSerializer = JSONSerializer{}
	e.Validator = NewValidator()
	e.Renderer = renderer
	e.HTTPErrorHandler = httpErrorHandler

	e.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{
		DisableStackAll: true,
		LogErrorFunc: func(c echo.Context, err error, stack []byte) error {
			zap.L().Error("panic recovered",
				zap.String("namespace", "web"),
				zap.String("path", c.Request().URL.Path),
				zap.Error(err),
				zap.ByteString("stack", stack))
			return err
		},
	}))
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:   true,
		LogURI:      true,
		LogStatus:   true,
		LogLatency:  true,
		LogRemoteIP: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			zap.L().Info("request",
				zap.String("namespace", "web"),
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
				zap.Int("status", v.Status),
				zap.Duration("latency", v.Latency),
				zap.String("remote_ip", v.RemoteIP))
			return nil
		},
	}))
	e.Use(middleware.SecureWithConfig(middleware.SecureConfig{
		XSSProtection:      "1; mode=block",
		ContentTypeNosniff: "nosniff",
		XFrameOptions:      "SAMEORIGIN",
	}))
	e.Use(appContextMiddleware(appCtx))
	e.Use(session.Middleware(newSessionStore(cfg)))
	e.Use(middleware.CSRFWithConfig(middleware.CSRFConfig{
		TokenLookup:    "header:X-CSRF-Token,form:csrf_token",
		CookiePath:     "/",
		CookieHTTPOnly: true,
		CookieSecure:   cfg.IsProduction(),
		CookieSameSite: http.SameSiteLaxMode,
	}))
	e.Use(currentUserMiddleware)

	e.StaticFS("/static", echo.MustSubFS(staticFS, "static"))
	e.Static("/uploads", cfg.GetUploadDir())

	api := e.Group("/api")
	for _, r := range snapshotRoutes() {
		switch r.kind {
		case kindAPI:
			api.Add(r.method, r.path, r.handler, append([]echo.MiddlewareFunc{RequireLogin}, r.middlewares...)...)
		case kindPage:
			e.Add(r.method, r.path, r.handler, append([]echo.MiddlewareFunc{RequireLogin}, r.middlewares...)...)
		default:
			e.Add(r.method, r.path, r.handler, r.middlewares...)
		}
	}
	return &Server{root: e, appCtx: appCtx}, nil
}

// Echo exposes the router, mainly for tests
func (s *Server) Echo() *echo.Echo {
	return s.root
}

func (s *Server) Start() error {
	cfg := s.appCtx.Config()
	addr := fmt.Sprintf("%s:%d", cfg.Web.Host, cfg.Web.Port)
	zap.S().Infof("Web server listening on %s", addr)
	s.root.Server.ReadHeaderTimeout = 10 * time.Second
	err := s.root.Start(addr)
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.root.Shutdown(ctx)
}
