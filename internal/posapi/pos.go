package posapi

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/talkincode/toughpos/internal/auth"
	"github.com/talkincode/toughpos/internal/domain"
	"github.com/talkincode/toughpos/internal/sales"
	"github.com/talkincode/toughpos/internal/webserver"
	"gorm.io/gorm"
)

var paymentMethods = []domain.PaymentMethod{domain.PaymentCash, domain.PaymentCard, domain.PaymentDigital}

func registerPosRoutes() {
	posOnly := webserver.RequireRoles(auth.PosRoles)
	webserver.PageGET("/pos", posPage, posOnly)
	webserver.ApiGET("/barcode/:barcode", barcodeLookup, posOnly, webserver.RequireFeature("barcode_scanner"))
	webserver.ApiPOST("/transaction", createTransaction, posOnly)
	webserver.ApiGET("/transactions/:id", transactionReceipt, posOnly)
}

func posPage(c echo.Context) error {
	user := currentUser(c)
	var products []domain.Product
	if err := GetDB(c).Where("business_id = ? AND active = ?", user.BusinessID, true).
		Order("name").Find(&products).Error; err != nil {
		return err
	}
	return webserver.RenderPage(c, "pos.html", "Point of Sale", map[string]interface{}{
		"Products":       products,
		"PaymentMethods": paymentMethods,
	})
}

func barcodeLookup(c echo.Context) error {
	user := currentUser(c)
	code := strings.TrimSpace(c.Param("barcode"))
	var product domain.Product
	err := GetDB(c).Where("barcode = ? AND business_id = ? AND active = ?", code, user.BusinessID, true).
		First(&product).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fail(c, http.StatusNotFound, "NOT_FOUND", "Product not found", nil)
	}
	if err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", msgInternal, err.Error())
	}
	return ok(c, echo.Map{
		"product": echo.Map{
			"id":        strconv.FormatInt(product.ID, 10),
			"name":      product.Name,
			"price":     product.Price,
			"stock":     product.StockQuantity,
			"image_url": product.ImageURL,
			"barcode":   product.Barcode,
		},
	})
}

func createTransaction(c echo.Context) error {
	user := currentUser(c)
	var req sales.CreateTransactionRequest
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid transaction payload", err.Error())
	}
	req.BusinessID = user.BusinessID
	req.UserID = user.ID

	txn, err := appCtx(c).Sales().CreateTransaction(c.Request().Context(), req)
	if err != nil {
		var stockErr *sales.StockError
		switch {
		case errors.As(err, &stockErr):
			return fail(c, http.StatusConflict, "INSUFFICIENT_STOCK", stockErr.Error(), nil)
		case errors.Is(err, sales.ErrProductNotFound):
			return fail(c, http.StatusNotFound, "PRODUCT_NOT_FOUND", "Product not found", nil)
		case errors.Is(err, sales.ErrEmptyTransaction),
			errors.Is(err, sales.ErrInvalidQuantity),
			errors.Is(err, sales.ErrInvalidPaymentMethod),
			errors.Is(err, sales.ErrTotalMismatch):
			return fail(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error(), nil)
		default:
			return fail(c, http.StatusInternalServerError, "TRANSACTION_FAILED", msgInternal, err.Error())
		}
	}
	return ok(c, echo.Map{
		"transaction_id": txn.TransactionID,
		"total_amount":   txn.TotalAmount,
		"message":        "Transaction completed successfully",
	})
}

func transactionReceipt(c echo.Context) error {
	user := currentUser(c)
	txn, err := appCtx(c).Sales().GetTransaction(c.Request().Context(), user.BusinessID, c.Param("id"))
	if errors.Is(err, sales.ErrTransactionNotFound) {
		return fail(c, http.StatusNotFound, "NOT_FOUND", "Transaction not found", nil)
	}
	if err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", msgInternal, err.Error())
	}
	return ok(c, echo.Map{"transaction": txn})
}
