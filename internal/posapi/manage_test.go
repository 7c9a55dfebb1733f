package posapi

import (
	"bytes"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/talkincode/toughpos/internal/domain"
	"github.com/talkincode/toughpos/internal/testkit"
)

func multipartProduct(t *testing.T, fields map[string]string, imageName string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	if imageName != "" {
		fw, err := w.CreateFormFile("image", imageName)
		require.NoError(t, err)
		_, err = fw.Write([]byte("\x89PNG\r\n\x1a\n"))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func TestAddProductWithImage(t *testing.T) {
	env := newEnv(t)
	c, _ := env.loggedIn("manager1", domain.RoleManager)

	body, ctype := multipartProduct(t, map[string]string{
		"name":           "Apple Juice",
		"barcode":        "4006381333931",
		"price":          "3.20",
		"cost":           "2.00",
		"stock_quantity": "12",
	}, "juice photo.png")
	req := httptest.NewRequest(http.MethodPost, "/products/add", body)
	req.Header.Set("Content-Type", ctype)
	rec := c.do(req)
	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/products", rec.Header().Get("Location"))

	var p domain.Product
	require.NoError(t, env.app.DB().Where("barcode = ?", "4006381333931").First(&p).Error)
	assert.Equal(t, env.biz.ID, p.BusinessID)
	assert.Equal(t, 12, p.StockQuantity)
	assert.Equal(t, defaultMinStock, p.MinStockLevel)
	assert.True(t, p.Active)
	require.NotEmpty(t, p.ImageURL)
	assert.Regexp(t, `^uploads/[0-9a-f-]{36}_juice_photo\.png$`, p.ImageURL)
	_, err := os.Stat(filepath.Join(env.app.Config().GetUploadDir(), filepath.Base(p.ImageURL)))
	assert.NoError(t, err)

	rec = c.get("/products")
	assert.Contains(t, rec.Body.String(), "Product added successfully!")
	assert.Contains(t, rec.Body.String(), "Apple Juice")
}

func TestAddProductRejectsDuplicateBarcodeAcrossBusinesses(t *testing.T) {
	env := newEnv(t)
	other := testkit.SeedBusiness(t, env.app.DB(), "Other Shop")
	testkit.SeedProduct(t, env.app.DB(), other.ID, "Milk", "5550001112223", 1.2, 10)
	c, _ := env.loggedIn("manager1", domain.RoleManager)

	body, ctype := multipartProduct(t, map[string]string{"name": "Not Milk", "barcode": "5550001112223", "price": "1"}, "")
	req := httptest.NewRequest(http.MethodPost, "/products/add", body)
	req.Header.Set("Content-Type", ctype)
	rec := c.do(req)
	assert.Equal(t, "/products/add", rec.Header().Get("Location"))

	rec = c.get("/products/add")
	assert.Contains(t, rec.Body.String(), string(errBarcodeTaken))
}

func TestEditAndDeactivateProduct(t *testing.T) {
	env := newEnv(t)
	p := testkit.SeedProduct(t, env.app.DB(), env.biz.ID, "Bread", "1234567890125", 2.50, 100)
	c, _ := env.loggedIn("manager1", domain.RoleManager)

	rec := c.get(fmt.Sprintf("/products/%d/edit", p.ID))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "1234567890125")

	// a sale lands while the form is open
	require.NoError(t, env.app.DB().Model(&domain.Product{}).Where("id = ?", p.ID).
		Update("stock_quantity", 97).Error)

	rec = c.postForm(fmt.Sprintf("/products/%d/edit", p.ID), url.Values{
		"name": {"Rye Bread"}, "barcode": {p.Barcode}, "price": {"3.10"}, "cost": {"1.50"},
		"stock_quantity": {"80"}, "min_stock_level": {"8"},
	})
	assert.Equal(t, "/products", rec.Header().Get("Location"))

	rec = c.postForm(fmt.Sprintf("/products/%d/deactivate", p.ID), url.Values{})
	assert.Equal(t, "/products", rec.Header().Get("Location"))

	var stored domain.Product
	require.NoError(t, env.app.DB().First(&stored, p.ID).Error)
	assert.Equal(t, "Rye Bread", stored.Name)
	assert.InDelta(t, 3.10, stored.Price, 1e-9)
	assert.Equal(t, 8, stored.MinStockLevel)
	assert.Equal(t, 97, stored.StockQuantity)
	assert.False(t, stored.Active)
}

func TestEditForeignProductIsNotFound(t *testing.T) {
	env := newEnv(t)
	other := testkit.SeedBusiness(t, env.app.DB(), "Other Shop")
	foreign := testkit.SeedProduct(t, env.app.DB(), other.ID, "Milk", "5550001112223", 1.2, 10)
	c, _ := env.loggedIn("manager1", domain.RoleManager)

	rec := c.postForm(fmt.Sprintf("/products/%d/deactivate", foreign.ID), url.Values{})
	assert.Equal(t, "/products", rec.Header().Get("Location"))

	var stored domain.Product
	require.NoError(t, env.app.DB().First(&stored, foreign.ID).Error)
	assert.True(t, stored.Active)
}

func TestInventoryAdjustGuardsNegativeStock(t *testing.T) {
	env := newEnv(t)
	p := testkit.SeedProduct(t, env.app.DB(), env.biz.ID, "Bread", "1234567890125", 2.50, 5)
	c, _ := env.loggedIn("manager1", domain.RoleManager)
	path := fmt.Sprintf("/inventory/%d/adjust", p.ID)

	c.postForm(path, url.Values{"adjustment": {"10"}, "reason": {"delivery"}})
	c.postForm(path, url.Values{"adjustment": {"-20"}})

	var stored domain.Product
	require.NoError(t, env.app.DB().First(&stored, p.ID).Error)
	assert.Equal(t, 15, stored.StockQuantity)

	rec := c.get("/inventory")
	assert.Contains(t, rec.Body.String(), "Stock cannot go below zero.")
}

func TestCategories(t *testing.T) {
	env := newEnv(t)
	c, _ := env.loggedIn("manager1", domain.RoleManager)

	c.postForm("/categories", url.Values{"name": {"Bakery"}})
	c.postForm("/categories", url.Values{"name": {"Bakery"}})

	var count int64
	require.NoError(t, env.app.DB().Model(&domain.Category{}).Where("business_id = ?", env.biz.ID).Count(&count).Error)
	assert.Equal(t, int64(1), count)
	assert.Contains(t, c.get("/categories").Body.String(), "Bakery")
}

func TestSalesDataIsUngated(t *testing.T) {
	env := newEnv(t)
	c, _ := env.loggedIn("manager1", domain.RoleManager)

	rec := c.get("/api/sales-data")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"sales":0`)

	rec = c.get("/api/candle-data?timeframe=1d")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	env.redeemFor(env.biz.ID, "advanced_analytics")
	rec = c.get("/api/candle-data?timeframe=1d&count=3")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"candles"`)
	assert.Equal(t, http.StatusBadRequest, c.get("/api/candle-data?timeframe=weekly").Code)
	assert.Equal(t, http.StatusOK, c.get("/api/forecast-data?timeframe=day").Code)
}

func TestLabelsAndExports(t *testing.T) {
	env := newEnv(t)
	p := testkit.SeedProduct(t, env.app.DB(), env.biz.ID, "Bread", "1234567890125", 2.50, 100)
	c, _ := env.loggedIn("manager1", domain.RoleManager)

	assert.Equal(t, http.StatusForbidden, c.get(fmt.Sprintf("/api/products/%d/label", p.ID)).Code)
	env.redeemFor(env.biz.ID, "barcode_labels", "data_export")

	rec := c.get(fmt.Sprintf("/api/products/%d/label", p.ID))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("\x89PNG")))

	rec = c.postJSON("/api/labels/bulk", fmt.Sprintf(`{"product_ids":["%d","42"]}`, p.ID))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"count":1`)
	assert.Contains(t, rec.Body.String(), "data:image/png;base64,")

	rec = c.postJSON("/api/labels/bulk?format=pdf", fmt.Sprintf(`{"product_ids":["%d"]}`, p.ID))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("%PDF")))

	rec = c.get("/api/export/inventory.csv")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "attachment")
	assert.Contains(t, rec.Body.String(), "1234567890125")

	rec = c.get("/api/export/transactions.xlsx?start=2024-01-01&end=2024-01-31")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, mimeXLSX, rec.Header().Get("Content-Type"))
	assert.Equal(t, http.StatusBadRequest, c.get("/api/export/transactions.xlsx?start=nonsense").Code)
}

func TestProductListAPI(t *testing.T) {
	env := newEnv(t)
	testkit.SeedProduct(t, env.app.DB(), env.biz.ID, "Bread", "1234567890125", 2.50, 100)
	testkit.SeedProduct(t, env.app.DB(), env.biz.ID, "Brown Rice", "1234567890126", 4.00, 3)
	testkit.SeedProduct(t, env.app.DB(), env.biz.ID, "Milk", "1234567890127", 1.20, 50)
	other := testkit.SeedBusiness(t, env.app.DB(), "Other Shop")
	testkit.SeedProduct(t, env.app.DB(), other.ID, "Brie", "5550001112223", 6, 10)
	c, _ := env.loggedIn("manager1", domain.RoleManager)

	rec := c.get("/api/products?q=br&perPage=1&sort=price&order=desc")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"total":2`)
	assert.Contains(t, rec.Body.String(), "Brown Rice")
	assert.NotContains(t, rec.Body.String(), "Brie")

	rec = c.get("/api/products?low_stock=true")
	assert.Contains(t, rec.Body.String(), `"total":1`)

	rec = c.get("/api/products/42")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestOperationLogAPI(t *testing.T) {
	env := newEnv(t)
	owner, _ := env.loggedIn("owner1", domain.RoleOwner)
	owner.postForm("/categories", url.Values{"name": {"Bakery"}})
	env.app.Bus().WaitAsync()

	rec := owner.get("/api/oplog?action=category_add")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"total":1`)
	assert.Contains(t, rec.Body.String(), "add category Bakery")

	manager, _ := env.loggedIn("manager1", domain.RoleManager)
	assert.Equal(t, http.StatusForbidden, manager.get("/api/oplog").Code)
}
