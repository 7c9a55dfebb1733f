package posapi

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/talkincode/toughpos/internal/auth"
	"github.com/talkincode/toughpos/internal/webserver"
	"go.uber.org/zap"
)

const msgInvalidLogin = "Invalid username or password"

func registerAuthRoutes() {
	webserver.PublicGET("/", indexPage)
	webserver.PublicPOST("/", loginSubmit, webserver.LoginRateLimit)
	webserver.PublicGET("/login", loginPage)
	webserver.PublicPOST("/login", loginSubmit, webserver.LoginRateLimit)
	webserver.PageGET("/logout", logout)
	webserver.PageGET("/dashboard", dashboard)
	webserver.PageGET("/profile", profilePage)
}

func indexPage(c echo.Context) error {
	if currentUser(c) != nil {
		return c.Redirect(http.StatusFound, "/dashboard")
	}
	return webserver.RenderPage(c, "login.html", "Login", nil)
}

func loginPage(c echo.Context) error {
	return webserver.RenderPage(c, "login.html", "Login", nil)
}

func loginSubmit(c echo.Context) error {
	username := c.FormValue("username")
	user, err := auth.Authenticate(c.Request().Context(), appCtx(c).DB(), username, c.FormValue("password"))
	if err != nil {
		if !errors.Is(err, auth.ErrInvalidCredentials) {
			zap.L().Error("login failed", zap.String("namespace", "posapi"), zap.Error(err))
		}
		return webserver.FlashRedirect(c, "danger", msgInvalidLogin, "/login")
	}
	webserver.Login(c, user)
	appCtx(c).Bus().Publish(auth.TopicUserLogin, auth.LoginEvent{
		UserID:     user.ID,
		BusinessID: user.BusinessID,
		Username:   user.Username,
		IP:         c.RealIP(),
	})
	return c.Redirect(http.StatusFound, "/dashboard")
}

func logout(c echo.Context) error {
	webserver.Logout(c)
	return c.Redirect(http.StatusFound, "/login")
}

func dashboard(c echo.Context) error {
	return c.Redirect(http.StatusFound, auth.HomePath(currentUser(c).Role))
}

func profilePage(c echo.Context) error {
	return webserver.RenderPage(c, "profile.html", "Profile", nil)
}
