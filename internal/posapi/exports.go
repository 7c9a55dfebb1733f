package posapi

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/talkincode/toughpos/internal/auth"
	"github.com/talkincode/toughpos/internal/exports"
	"github.com/talkincode/toughpos/internal/webserver"
)

const mimeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

func registerExportRoutes() {
	managers := webserver.RequireRoles(auth.ManagerRoles)
	feature := webserver.RequireFeature("data_export")
	webserver.ApiGET("/export/inventory.csv", exportInventory, managers, feature)
	webserver.ApiGET("/export/transactions.xlsx", exportTransactions, managers, feature)
}

func attachment(c echo.Context, name, contentType string, data []byte) error {
	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%s", name))
	return c.Blob(http.StatusOK, contentType, data)
}

func exportInventory(c echo.Context) error {
	user := currentUser(c)
	var buf bytes.Buffer
	if err := appCtx(c).Exports().InventoryCSV(c.Request().Context(), user.BusinessID, &buf); err != nil {
		return fail(c, http.StatusInternalServerError, "EXPORT_FAILED", msgInternal, err.Error())
	}
	recordOperation(c, "export_inventory", "export inventory csv")
	return attachment(c, "inventory_"+time.Now().Format("20060102")+".csv", "text/csv; charset=utf-8", buf.Bytes())
}

// exportTransactions exports ?start=&end=, the last 30 days by default
func exportTransactions(c echo.Context) error {
	from, to, err := exports.ParseRange(c.QueryParam("start"), c.QueryParam("end"), time.Now().UTC())
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_RANGE", "Invalid date range", err.Error())
	}
	user := currentUser(c)
	var buf bytes.Buffer
	if err := appCtx(c).Exports().TransactionsXLSX(c.Request().Context(), user.BusinessID, from, to, &buf); err != nil {
		return fail(c, http.StatusInternalServerError, "EXPORT_FAILED", msgInternal, err.Error())
	}
	recordOperation(c, "export_transactions",
		fmt.Sprintf("export transactions %s..%s", from.Format("2006-01-02"), to.Format("2006-01-02")))
	return attachment(c, "transactions_"+from.Format("20060102")+"_"+to.Format("20060102")+".xlsx", mimeXLSX, buf.Bytes())
}
