package posapi

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/talkincode/toughpos/internal/auth"
	"github.com/talkincode/toughpos/internal/domain"
	"github.com/talkincode/toughpos/internal/webserver"
	"gorm.io/gorm"
)

const (
	defaultPageSize = 20
	maxPageSize     = 500
)

// productSortColumns whitelist of sortable columns
var productSortColumns = map[string]string{
	"id":             "id",
	"name":           "name",
	"barcode":        "barcode",
	"price":          "price",
	"stock_quantity": "stock_quantity",
	"created_at":     "created_at",
	"updated_at":     "updated_at",
}

func registerCatalogRoutes() {
	managers := webserver.RequireRoles(auth.ManagerRoles)
	webserver.ApiGET("/products", listProducts, managers)
	webserver.ApiGET("/products/:id", getProduct, managers)
	webserver.ApiGET("/oplog", listOperations, webserver.RequireRoles(auth.OwnerRoles))
}

// parsePagination accepts perPage and the older pageSize
func parsePagination(c echo.Context) (int, int) {
	page := parseIntQuery(c, "page", 1, 0)
	size := parseIntQuery(c, "perPage", 0, maxPageSize)
	if size == 0 {
		size = parseIntQuery(c, "pageSize", defaultPageSize, maxPageSize)
	}
	return page, size
}

func paged(c echo.Context, data interface{}, total int64, page, pageSize int) error {
	return ok(c, echo.Map{
		"data":     data,
		"total":    total,
		"page":     page,
		"pageSize": pageSize,
	})
}

// likeFilter case-insensitive substring match on column
func likeFilter(db *gorm.DB, column, q string) *gorm.DB {
	if strings.EqualFold(db.Dialector.Name(), "postgres") {
		return db.Where(column+" ILIKE ?", "%"+q+"%")
	}
	return db.Where("LOWER("+column+") LIKE ?", "%"+strings.ToLower(q)+"%")
}

func listProducts(c echo.Context) error {
	page, pageSize := parsePagination(c)
	sortCol, found := productSortColumns[strings.TrimSpace(c.QueryParam("sort"))]
	if !found {
		sortCol = "name"
	}
	order := strings.ToUpper(strings.TrimSpace(c.QueryParam("order")))
	if order != "ASC" && order != "DESC" {
		order = "ASC"
	}

	db := GetDB(c).Model(&domain.Product{}).Where("business_id = ?", currentUser(c).BusinessID)
	if q := strings.TrimSpace(c.QueryParam("q")); q != "" {
		db = likeFilter(db, "name", q)
	}
	switch c.QueryParam("status") {
	case "active":
		db = db.Where("active = ?", true)
	case "inactive":
		db = db.Where("active = ?", false)
	}
	if c.QueryParam("low_stock") == "true" {
		db = db.Where("stock_quantity <= min_stock_level")
	}

	var total int64
	if err := db.Count(&total).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query products", err.Error())
	}
	var rows []domain.Product
	if err := db.Preload("Category").Order(sortCol + " " + order).
		Offset((page - 1) * pageSize).Limit(pageSize).Find(&rows).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query products", err.Error())
	}
	return paged(c, rows, total, page, pageSize)
}

func getProduct(c echo.Context) error {
	product, err := findProduct(c)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fail(c, http.StatusNotFound, "NOT_FOUND", "Product not found", nil)
	}
	if err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query product", err.Error())
	}
	return ok(c, echo.Map{"product": product})
}

// listOperations the operation log of the owner's business, newest first
func listOperations(c echo.Context) error {
	page, pageSize := parsePagination(c)
	db := GetDB(c).Model(&domain.SysOprLog{}).Where("business_id = ?", currentUser(c).BusinessID)
	if action := strings.TrimSpace(c.QueryParam("action")); action != "" {
		db = db.Where("opt_action = ?", action)
	}
	if q := strings.TrimSpace(c.QueryParam("operator")); q != "" {
		db = likeFilter(db, "opr_name", q)
	}
	var total int64
	if err := db.Count(&total).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query operation log", err.Error())
	}
	var rows []domain.SysOprLog
	if err := db.Order("opt_time DESC").Offset((page - 1) * pageSize).Limit(pageSize).Find(&rows).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query operation log", err.Error())
	}
	return paged(c, rows, total, page, pageSize)
}
