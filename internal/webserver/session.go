package webserver

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/sessions"
	"github.com/labstack/echo-contrib/session"
	"github.com/labstack/echo/v4"
	"github.com/talkincode/toughpos/config"
	"github.com/talkincode/toughpos/internal/domain"
	"go.uber.org/zap"
)

const (
	SessionName    = "toughpos_session"
	sessionUserKey = "uid"
	ContextKeyUser = "current_user"
)

// Flash is a one-shot message shown on the next rendered page
type Flash struct {
	Category string
	Message  string
}

func newSessionStore(cfg *config.AppConfig) *sessions.FilesystemStore {
	store := sessions.NewFilesystemStore(cfg.GetSessionDir(), []byte(cfg.Web.Secret))
	store.MaxLength(0)
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   cfg.Web.SessionMaxAge,
		HttpOnly: true,
		Secure:   cfg.IsProduction(),
		SameSite: http.SameSiteLaxMode,
	}
	return store
}

func getSession(c echo.Context) *sessions.Session {
	sess, err := session.Get(SessionName, c)
	if err != nil {
		// undecodable cookie, start over with a fresh session
		zap.L().Debug("session decode failed", zap.String("namespace", "web"), zap.Error(err))
	}
	return sess
}

func saveSession(c echo.Context, sess *sessions.Session) {
	if sess == nil {
		return
	}
	if err := sess.Save(c.Request(), c.Response()); err != nil {
		zap.L().Error("session save failed", zap.String("namespace", "web"), zap.Error(err))
	}
}

// Login binds the user to a new server-side session
func Login(c echo.Context, user *domain.User) {
	sess := getSession(c)
	if sess == nil {
		return
	}
	sess.ID = ""
	sess.Values = map[interface{}]interface{}{
		sessionUserKey: strconv.FormatInt(user.ID, 10),
	}
	saveSession(c, sess)
	c.Set(ContextKeyUser, user)
}

// Logout removes the session
func Logout(c echo.Context) {
	sess := getSession(c)
	if sess == nil {
		return
	}
	sess.Values = map[interface{}]interface{}{}
	sess.Options.MaxAge = -1
	saveSession(c, sess)
	c.Set(ContextKeyUser, nil)
}

func sessionUserID(c echo.Context) int64 {
	sess := getSession(c)
	if sess == nil {
		return 0
	}
	raw, _ := sess.Values[sessionUserKey].(string)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0
	}
	return id
}

// CurrentUser the logged in user, nil for anonymous requests
func CurrentUser(c echo.Context) *domain.User {
	u, _ := c.Get(ContextKeyUser).(*domain.User)
	return u
}

// AddFlash queues a message for the next page
func AddFlash(c echo.Context, category, message string) {
	sess := getSession(c)
	if sess == nil {
		return
	}
	sess.AddFlash(category + "|" + message)
	saveSession(c, sess)
}

// TakeFlashes returns and clears the queued messages
func TakeFlashes(c echo.Context) []Flash {
	sess := getSession(c)
	if sess == nil {
		return nil
	}
	raw := sess.Flashes()
	if len(raw) == 0 {
		return nil
	}
	saveSession(c, sess)
	flashes := make([]Flash, 0, len(raw))
	for _, v := range raw {
		s, ok := v.(string)
		if !ok {
			continue
		}
		category, message, found := strings.Cut(s, "|")
		if !found {
			category, message = "info", s
		}
		flashes = append(flashes, Flash{Category: category, Message: message})
	}
	return flashes
}

// FlashRedirect queues a message and redirects with 302
func FlashRedirect(c echo.Context, category, message, to string) error {
	AddFlash(c, category, message)
	return c.Redirect(http.StatusFound, to)
}
