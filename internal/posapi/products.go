package posapi

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/talkincode/toughpos/internal/auth"
	"github.com/talkincode/toughpos/internal/domain"
	"github.com/talkincode/toughpos/internal/webserver"
	"github.com/talkincode/toughpos/pkg/common"
	"gorm.io/gorm"
)

const (
	defaultMinStock = 5
	maxImageSize    = 5 << 20
)

// formError is a message meant for the user who submitted the form
type formError string

func (e formError) Error() string { return string(e) }

const (
	errBarcodeTaken formError = "A product with this barcode already exists."
	errBadCategory  formError = "Unknown category."
	errBadProduct   formError = "Invalid product data."
	errImageType    formError = "Images must be png, jpg, gif or webp."
	errImageSize    formError = "Images must be smaller than 5 MB."
)

func isFormError(err error) bool {
	var fe formError
	return errors.As(err, &fe)
}

var (
	unsafeFilenameChar = regexp.MustCompile(`[^A-Za-z0-9._-]+`)
	imageExtensions    = map[string]bool{".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".webp": true}
)

type productForm struct {
	Name          string  `form:"name" validate:"required,max=100"`
	Barcode       string  `form:"barcode" validate:"required,max=50"`
	Price         float64 `form:"price" validate:"gte=0"`
	Cost          float64 `form:"cost" validate:"gte=0"`
	StockQuantity int     `form:"stock_quantity" validate:"gte=0"`
	MinStockLevel int     `form:"min_stock_level" validate:"gte=0"`
	CategoryID    string  `form:"category_id"`
}

func registerProductRoutes() {
	managers := webserver.RequireRoles(auth.ManagerRoles)
	webserver.PageGET("/products", productList, managers)
	webserver.PageGET("/products/add", productAddPage, managers)
	webserver.PagePOST("/products/add", productAdd, managers)
	webserver.PageGET("/products/:id/edit", productEditPage, managers)
	webserver.PagePOST("/products/:id/edit", productEdit, managers)
	webserver.PagePOST("/products/:id/deactivate", productSetActive(false), managers)
	webserver.PagePOST("/products/:id/activate", productSetActive(true), managers)
}

func productList(c echo.Context) error {
	user := currentUser(c)
	var products []domain.Product
	if err := GetDB(c).Preload("Category").Where("business_id = ?", user.BusinessID).
		Order("name").Find(&products).Error; err != nil {
		return err
	}
	return webserver.RenderPage(c, "products.html", "Products", map[string]interface{}{
		"Products": products,
	})
}

func businessCategories(c echo.Context) ([]domain.Category, error) {
	var categories []domain.Category
	err := GetDB(c).Where("business_id = ?", currentUser(c).BusinessID).Order("name").Find(&categories).Error
	return categories, err
}

func renderProductForm(c echo.Context, title, action string, product *domain.Product) error {
	categories, err := businessCategories(c)
	if err != nil {
		return err
	}
	var selected int64
	if product != nil && product.CategoryID != nil {
		selected = *product.CategoryID
	}
	return webserver.RenderPage(c, "product_form.html", title, map[string]interface{}{
		"Product":          product,
		"Categories":       categories,
		"SelectedCategory": selected,
		"Action":           action,
	})
}

func productAddPage(c echo.Context) error {
	return renderProductForm(c, "Add Product", "/products/add", nil)
}

// findProduct loads a product of the current business
func findProduct(c echo.Context) (*domain.Product, error) {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return nil, gorm.ErrRecordNotFound
	}
	var product domain.Product
	err = GetDB(c).Where("id = ? AND business_id = ?", id, currentUser(c).BusinessID).First(&product).Error
	if err != nil {
		return nil, err
	}
	return &product, nil
}

func productEditPage(c echo.Context) error {
	product, err := findProduct(c)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return webserver.FlashRedirect(c, "danger", "Product not found.", "/products")
	}
	if err != nil {
		return err
	}
	return renderProductForm(c, "Edit Product", fmt.Sprintf("/products/%d/edit", product.ID), product)
}

// bindProductForm reads and checks the submitted fields
func bindProductForm(c echo.Context, excludeID int64) (*productForm, *int64, error) {
	var form productForm
	if err := c.Bind(&form); err != nil {
		return nil, nil, errBadProduct
	}
	form.Name = strings.TrimSpace(form.Name)
	form.Barcode = strings.TrimSpace(form.Barcode)
	if strings.TrimSpace(c.FormValue("min_stock_level")) == "" {
		form.MinStockLevel = defaultMinStock
	}
	if err := c.Validate(&form); err != nil {
		return nil, nil, formError(validationMessage(err))
	}

	db := GetDB(c)
	var count int64
	q := db.Model(&domain.Product{}).Where("barcode = ?", form.Barcode)
	if excludeID != 0 {
		q = q.Where("id <> ?", excludeID)
	}
	if err := q.Count(&count).Error; err != nil {
		return nil, nil, err
	}
	if count > 0 {
		return nil, nil, errBarcodeTaken
	}

	var categoryID *int64
	if raw := strings.TrimSpace(form.CategoryID); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, nil, errBadCategory
		}
		if err := db.Model(&domain.Category{}).
			Where("id = ? AND business_id = ?", id, currentUser(c).BusinessID).Count(&count).Error; err != nil {
			return nil, nil, err
		}
		if count == 0 {
			return nil, nil, errBadCategory
		}
		categoryID = &id
	}
	return &form, categoryID, nil
}

func safeFilename(name string) string {
	name = unsafeFilenameChar.ReplaceAllString(filepath.Base(name), "_")
	return strings.Trim(name, "._")
}

// saveUpload stores the optional "image" file and returns its relative url,
// empty when no file was sent
func saveUpload(c echo.Context) (string, error) {
	if !strings.HasPrefix(c.Request().Header.Get(echo.HeaderContentType), echo.MIMEMultipartForm) {
		return "", nil
	}
	fh, err := c.FormFile("image")
	if errors.Is(err, http.ErrMissingFile) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	if fh.Filename == "" {
		return "", nil
	}
	if fh.Size > maxImageSize {
		return "", errImageSize
	}
	name := safeFilename(fh.Filename)
	if !imageExtensions[strings.ToLower(path.Ext(name))] {
		return "", errImageType
	}
	name = uuid.NewString() + "_" + name
	if err := writeUpload(fh, filepath.Join(appCtx(c).Config().GetUploadDir(), name)); err != nil {
		return "", err
	}
	return "uploads/" + name, nil
}

func writeUpload(fh *multipart.FileHeader, dst string) error {
	src, err := fh.Open()
	if err != nil {
		return err
	}
	defer src.Close()
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()
	_, err = io.Copy(out, src)
	return err
}

func productAdd(c echo.Context) error {
	form, categoryID, err := bindProductForm(c, 0)
	if err != nil {
		if isFormError(err) {
			return webserver.FlashRedirect(c, "danger", err.Error(), "/products/add")
		}
		return pageError(c, err, "/products/add")
	}
	imageURL, err := saveUpload(c)
	if err != nil {
		if isFormError(err) {
			return webserver.FlashRedirect(c, "danger", err.Error(), "/products/add")
		}
		return pageError(c, err, "/products/add")
	}
	user := currentUser(c)
	product := domain.Product{
		ID:            common.UUIDint64(),
		BusinessID:    user.BusinessID,
		CategoryID:    categoryID,
		Name:          form.Name,
		Barcode:       form.Barcode,
		Price:         form.Price,
		Cost:          form.Cost,
		StockQuantity: form.StockQuantity,
		MinStockLevel: form.MinStockLevel,
		ImageURL:      imageURL,
		Active:        true,
	}
	if err := GetDB(c).Create(&product).Error; err != nil {
		return pageError(c, err, "/products/add")
	}
	recordOperation(c, "product_add", "add product "+product.Name+" ("+product.Barcode+")")
	return webserver.FlashRedirect(c, "success", "Product added successfully!", "/products")
}

// productEdit leaves stock_quantity alone; stock only moves through sales and
// the guarded delta of inventoryAdjust
func productEdit(c echo.Context) error {
	product, err := findProduct(c)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return webserver.FlashRedirect(c, "danger", "Product not found.", "/products")
	}
	if err != nil {
		return err
	}
	back := fmt.Sprintf("/products/%d/edit", product.ID)
	form, categoryID, err := bindProductForm(c, product.ID)
	if err != nil {
		if isFormError(err) {
			return webserver.FlashRedirect(c, "danger", err.Error(), back)
		}
		return pageError(c, err, back)
	}
	imageURL, err := saveUpload(c)
	if err != nil {
		if isFormError(err) {
			return webserver.FlashRedirect(c, "danger", err.Error(), back)
		}
		return pageError(c, err, back)
	}
	updates := map[string]interface{}{
		"name":            form.Name,
		"barcode":         form.Barcode,
		"price":           form.Price,
		"cost":            form.Cost,
		"min_stock_level": form.MinStockLevel,
		"category_id":     categoryID,
	}
	if imageURL != "" {
		updates["image_url"] = imageURL
	}
	if err := GetDB(c).Model(&domain.Product{}).Where("id = ? AND business_id = ?", product.ID, product.BusinessID).
		Updates(updates).Error; err != nil {
		return pageError(c, err, back)
	}
	recordOperation(c, "product_edit", "edit product "+form.Name+" ("+form.Barcode+")")
	return webserver.FlashRedirect(c, "success", "Product updated successfully!", "/products")
}

func productSetActive(active bool) echo.HandlerFunc {
	return func(c echo.Context) error {
		product, err := findProduct(c)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return webserver.FlashRedirect(c, "danger", "Product not found.", "/products")
		}
		if err != nil {
			return err
		}
		if err := GetDB(c).Model(&domain.Product{}).Where("id = ?", product.ID).
			Update("active", active).Error; err != nil {
			return pageError(c, err, "/products")
		}
		state, action := "deactivated", "product_deactivate"
		if active {
			state, action = "activated", "product_activate"
		}
		recordOperation(c, action, state+" product "+product.Name)
		return webserver.FlashRedirect(c, "success", "Product "+product.Name+" "+state+".", "/products")
	}
}
