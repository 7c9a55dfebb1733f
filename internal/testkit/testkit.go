// Package testkit builds in-memory databases and fixtures for package tests.
package testkit

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/talkincode/toughpos/internal/domain"
	"github.com/talkincode/toughpos/pkg/common"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const Password = "password"

// NewDB opens a private in-memory sqlite database with all tables migrated
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_", "#", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared", name, common.UUIDint64())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(domain.Tables...))
	return db
}

func SeedBusiness(t testing.TB, db *gorm.DB, name string) *domain.Business {
	t.Helper()
	b := &domain.Business{ID: common.UUIDint64(), Name: name, Email: strings.ToLower(strings.ReplaceAll(name, " ", "")) + "@store.test"}
	require.NoError(t, db.Create(b).Error)
	return b
}

func SeedUser(t testing.TB, db *gorm.DB, businessID int64, username string, role domain.Role) *domain.User {
	t.Helper()
	hash, err := common.HashPassword(Password)
	require.NoError(t, err)
	u := &domain.User{
		ID:           common.UUIDint64(),
		BusinessID:   businessID,
		Username:     username,
		Email:        username + "@store.test",
		PasswordHash: hash,
		Role:         role,
		Active:       true,
	}
	require.NoError(t, db.Create(u).Error)
	return u
}

func SeedProduct(t testing.TB, db *gorm.DB, businessID int64, name, barcode string, price float64, stock int) *domain.Product {
	t.Helper()
	p := &domain.Product{
		ID:            common.UUIDint64(),
		BusinessID:    businessID,
		Name:          name,
		Barcode:       barcode,
		Price:         price,
		Cost:          price * 0.6,
		StockQuantity: stock,
		MinStockLevel: 10,
		Active:        true,
	}
	require.NoError(t, db.Create(p).Error)
	return p
}

func SeedFeature(t testing.TB, db *gorm.DB, name string, requiresActivation bool) *domain.Feature {
	t.Helper()
	f := &domain.Feature{
		ID:                 common.UUIDint64(),
		Name:               name,
		Description:        name,
		Enabled:            true,
		RequiresActivation: requiresActivation,
	}
	require.NoError(t, db.Create(f).Error)
	return f
}
