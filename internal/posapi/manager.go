package posapi

import (
	"time"

	"github.com/labstack/echo/v4"
	"github.com/talkincode/toughpos/internal/auth"
	"github.com/talkincode/toughpos/internal/webserver"
)

const (
	managerRecent = 10
	ownerRecent   = 20
)

func registerManagerRoutes() {
	webserver.PageGET("/manager", managerDashboard, webserver.RequireRoles(auth.ManagerRoles))
}

func dashboardData(c echo.Context, recent int) (map[string]interface{}, error) {
	user := currentUser(c)
	ctx := c.Request().Context()
	stats, err := appCtx(c).Reports().DashboardStats(ctx, user.BusinessID, time.Now())
	if err != nil {
		return nil, err
	}
	txns, err := appCtx(c).Sales().RecentTransactions(ctx, user.BusinessID, recent)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"Stats": stats, "Recent": txns}, nil
}

func managerDashboard(c echo.Context) error {
	data, err := dashboardData(c, managerRecent)
	if err != nil {
		return err
	}
	return webserver.RenderPage(c, "manager.html", "Manager Dashboard", data)
}
