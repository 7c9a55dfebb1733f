package posapi

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/talkincode/toughpos/internal/auth"
	"github.com/talkincode/toughpos/internal/domain"
	"github.com/talkincode/toughpos/internal/webserver"
	"github.com/talkincode/toughpos/pkg/common"
	"gorm.io/gorm"
)

func registerInventoryRoutes() {
	managers := webserver.RequireRoles(auth.ManagerRoles)
	webserver.PageGET("/inventory", inventoryPage, managers)
	webserver.PagePOST("/inventory/:id/adjust", inventoryAdjust, managers)
	webserver.PageGET("/categories", categoriesPage, managers)
	webserver.PagePOST("/categories", categoryAdd, managers)
}

func inventoryPage(c echo.Context) error {
	var products []domain.Product
	if err := GetDB(c).Where("business_id = ?", currentUser(c).BusinessID).
		Order("stock_quantity, name").Find(&products).Error; err != nil {
		return err
	}
	return webserver.RenderPage(c, "inventory.html", "Inventory", map[string]interface{}{
		"Products": products,
	})
}

// inventoryAdjust adds a signed delta to the stock. The guard in the update
// keeps the stock from going negative under concurrent sales.
func inventoryAdjust(c echo.Context) error {
	product, err := findProduct(c)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return webserver.FlashRedirect(c, "danger", "Product not found.", "/inventory")
	}
	if err != nil {
		return err
	}
	delta, err := strconv.Atoi(strings.TrimSpace(c.FormValue("adjustment")))
	if err != nil || delta == 0 {
		return webserver.FlashRedirect(c, "warning", "Enter a non-zero whole number to adjust the stock.", "/inventory")
	}
	res := GetDB(c).Model(&domain.Product{}).
		Where("id = ? AND business_id = ? AND stock_quantity + ? >= 0", product.ID, product.BusinessID, delta).
		Update("stock_quantity", gorm.Expr("stock_quantity + ?", delta))
	if res.Error != nil {
		return pageError(c, res.Error, "/inventory")
	}
	if res.RowsAffected == 0 {
		return webserver.FlashRedirect(c, "danger", "Stock cannot go below zero.", "/inventory")
	}
	desc := fmt.Sprintf("adjust %s stock by %+d", product.Name, delta)
	if reason := strings.TrimSpace(c.FormValue("reason")); reason != "" {
		desc += ": " + common.Truncate(reason, 200)
	}
	recordOperation(c, "inventory_adjust", desc)
	return webserver.FlashRedirect(c, "success", "Stock updated for "+product.Name+".", "/inventory")
}

func categoriesPage(c echo.Context) error {
	categories, err := businessCategories(c)
	if err != nil {
		return err
	}
	return webserver.RenderPage(c, "categories.html", "Categories", map[string]interface{}{
		"Categories": categories,
	})
}

func categoryAdd(c echo.Context) error {
	name := strings.TrimSpace(c.FormValue("name"))
	if name == "" || len([]rune(name)) > 50 {
		return webserver.FlashRedirect(c, "danger", "Category name must be 1 to 50 characters.", "/categories")
	}
	user := currentUser(c)
	db := GetDB(c)
	var count int64
	if err := db.Model(&domain.Category{}).Where("business_id = ? AND name = ?", user.BusinessID, name).
		Count(&count).Error; err != nil {
		return pageError(c, err, "/categories")
	}
	if count > 0 {
		return webserver.FlashRedirect(c, "warning", "Category "+name+" already exists.", "/categories")
	}
	category := domain.Category{ID: common.UUIDint64(), BusinessID: user.BusinessID, Name: name}
	if err := db.Create(&category).Error; err != nil {
		return pageError(c, err, "/categories")
	}
	recordOperation(c, "category_add", "add category "+name)
	return webserver.FlashRedirect(c, "success", "Category added.", "/categories")
}
