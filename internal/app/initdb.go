package app

import (
	"errors"
	"time"

	"github.com/talkincode/toughpos/internal/domain"
	"github.com/talkincode/toughpos/pkg/common"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	superUsername        = "admin"
	defaultAdminPassword = "password"
)

// defaultFeatures platform features created on first start
var defaultFeatures = []domain.Feature{
	{Name: "barcode_scanner", Description: "Product lookup by scanned barcode at the POS", RequiresActivation: true},
	{Name: "barcode_labels", Description: "Printable barcode labels for products", RequiresActivation: true},
	{Name: "advanced_analytics", Description: "Candle charts and sales forecast", RequiresActivation: true},
	{Name: "data_export", Description: "Inventory CSV and transaction spreadsheet exports", RequiresActivation: true},
	{Name: "sales_reports", Description: "Daily sales totals", RequiresActivation: false},
}

func (a *Application) checkSuper() {
	var admin domain.User
	err := a.gormDB.Where("username = ?", superUsername).First(&admin).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		hash, err := common.HashPassword(a.appConfig.System.AdminPassword)
		if err != nil {
			zap.L().Error("failed to hash admin password", zap.Error(err))
			return
		}
		if err := a.gormDB.Create(&domain.User{
			ID:           common.UUIDint64(),
			Username:     superUsername,
			Email:        "admin@localhost",
			PasswordHash: hash,
			Role:         domain.RoleAdmin,
			Active:       true,
		}).Error; err != nil {
			zap.L().Error("failed to create default admin", zap.Error(err))
		} else {
			zap.L().Info("initialized default admin account", zap.String("username", superUsername))
			if a.appConfig.IsProduction() && a.appConfig.System.AdminPassword == defaultAdminPassword {
				zap.L().Warn("default admin password in use, change it after first login")
			}
		}
		return
	case err != nil:
		zap.L().Error("failed to query admin", zap.Error(err))
		return
	}

	if admin.Role == domain.RoleAdmin && admin.Active && admin.PasswordHash != "" {
		return
	}
	updates := map[string]interface{}{
		"role":       domain.RoleAdmin,
		"active":     true,
		"updated_at": time.Now(),
	}
	if admin.PasswordHash == "" {
		hash, err := common.HashPassword(a.appConfig.System.AdminPassword)
		if err != nil {
			zap.L().Error("failed to hash admin password", zap.Error(err))
			return
		}
		updates["password_hash"] = hash
	}
	if err := a.gormDB.Model(&domain.User{}).Where("id = ?", admin.ID).Updates(updates).Error; err != nil {
		zap.L().Error("failed to repair admin account", zap.Error(err))
		return
	}
	zap.L().Warn("repaired default admin account", zap.String("username", superUsername))
}

func (a *Application) checkFeatures() {
	for _, f := range defaultFeatures {
		var count int64
		a.gormDB.Model(&domain.Feature{}).Where("name = ?", f.Name).Count(&count)
		if count > 0 {
			continue
		}
		f.ID = common.UUIDint64()
		f.Enabled = true
		if err := a.gormDB.Create(&f).Error; err != nil {
			zap.L().Error("failed to create default feature", zap.String("name", f.Name), zap.Error(err))
		} else {
			zap.L().Info("initialized default feature", zap.String("name", f.Name))
		}
	}
}

type demoProduct struct {
	name     string
	barcode  string
	price    float64
	stock    int
	category int
}

var demoProducts = []demoProduct{
	{"Smartphone", "1234567890123", 299.99, 50, 0},
	{"Laptop", "1234567890124", 599.99, 25, 0},
	{"Bread", "1234567890125", 2.50, 100, 1},
	{"Milk", "1234567890126", 3.99, 75, 2},
	{"Coffee", "1234567890127", 12.99, 30, 2},
	{"T-Shirt", "1234567890128", 19.99, 40, 3},
}

// checkDemoData creates the demo store when no business exists yet
func (a *Application) checkDemoData() {
	var count int64
	if err := a.gormDB.Model(&domain.Business{}).Count(&count).Error; err != nil || count > 0 {
		return
	}
	hash, err := common.HashPassword(a.appConfig.System.AdminPassword)
	if err != nil {
		zap.L().Error("failed to hash demo password", zap.Error(err))
		return
	}

	err = a.gormDB.Transaction(func(tx *gorm.DB) error {
		biz := domain.Business{
			ID:      common.UUIDint64(),
			Name:    "Demo Store",
			Address: "123 Demo Street",
			Phone:   "+1234567890",
			Email:   "demo@store.com",
		}
		if err := tx.Create(&biz).Error; err != nil {
			return err
		}

		for _, u := range []struct {
			name string
			role domain.Role
		}{
			{"owner", domain.RoleOwner},
			{"manager", domain.RoleManager},
			{"cashier", domain.RoleCashier},
		} {
			if err := tx.Create(&domain.User{
				ID:           common.UUIDint64(),
				BusinessID:   biz.ID,
				Username:     u.name,
				Email:        u.name + "@demo.com",
				PasswordHash: hash,
				Role:         u.role,
				Active:       true,
			}).Error; err != nil {
				return err
			}
		}

		var categories []domain.Category
		for _, name := range []string{"Electronics", "Food", "Beverages", "Clothing"} {
			categories = append(categories, domain.Category{ID: common.UUIDint64(), BusinessID: biz.ID, Name: name})
		}
		if err := tx.Create(&categories).Error; err != nil {
			return err
		}

		for _, p := range demoProducts {
			catID := categories[p.category].ID
			if err := tx.Create(&domain.Product{
				ID:            common.UUIDint64(),
				BusinessID:    biz.ID,
				CategoryID:    &catID,
				Name:          p.name,
				Barcode:       p.barcode,
				Price:         p.price,
				Cost:          p.price * 0.6,
				StockQuantity: p.stock,
				MinStockLevel: 10,
				Active:        true,
			}).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		zap.L().Error("failed to create demo data", zap.Error(err))
		return
	}
	zap.L().Info("demo data initialized", zap.Strings("users", []string{"owner", "manager", "cashier"}))
}
