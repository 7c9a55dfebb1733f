package posapi

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/talkincode/toughpos/internal/auth"
	"github.com/talkincode/toughpos/internal/reports"
	"github.com/talkincode/toughpos/internal/webserver"
)

const maxSalesDays = 90

func registerReportRoutes() {
	managers := webserver.RequireRoles(auth.ManagerRoles)
	webserver.ApiGET("/sales-data", salesData, managers, webserver.RequireFeature("sales_reports"))
	analytics := webserver.RequireFeature("advanced_analytics")
	webserver.ApiGET("/candle-data", candleData, managers, analytics)
	webserver.ApiGET("/forecast-data", forecastData, managers, analytics)
}

// salesData answers a bare array of {date, sales}, newest first
func salesData(c echo.Context) error {
	days := parseIntQuery(c, "days", reports.DefaultSalesDays, maxSalesDays)
	data, err := appCtx(c).Reports().SalesData(c.Request().Context(), currentUser(c).BusinessID, days, time.Now())
	if err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", msgInternal, err.Error())
	}
	return c.JSON(http.StatusOK, data)
}

func timeframeParam(c echo.Context) (reports.Timeframe, error) {
	return reports.ParseTimeframe(c.QueryParam("timeframe"))
}

func candleData(c echo.Context) error {
	tf, err := timeframeParam(c)
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_TIMEFRAME", err.Error(), nil)
	}
	count := parseIntQuery(c, "count", reports.DefaultCandleCount, reports.MaxCandleCount)
	candles, err := appCtx(c).Reports().Candles(c.Request().Context(), currentUser(c).BusinessID, tf, count, time.Now())
	if err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", msgInternal, err.Error())
	}
	return ok(c, echo.Map{"timeframe": tf, "candles": candles})
}

func forecastData(c echo.Context) error {
	tf, err := timeframeParam(c)
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_TIMEFRAME", err.Error(), nil)
	}
	periods := parseIntQuery(c, "periods", reports.DefaultForecast, reports.MaxCandleCount)
	forecast, err := appCtx(c).Reports().Forecast(c.Request().Context(), currentUser(c).BusinessID, tf, periods, time.Now())
	if err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", msgInternal, err.Error())
	}
	return ok(c, echo.Map{"timeframe": tf, "forecast": forecast})
}
