package posapi

import (
	"errors"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/talkincode/toughpos/internal/activation"
	"github.com/talkincode/toughpos/internal/auth"
	"github.com/talkincode/toughpos/internal/domain"
	"github.com/talkincode/toughpos/internal/webserver"
	"github.com/talkincode/toughpos/pkg/common"
	"gorm.io/gorm"
)

const adminKeyListLimit = 100

type businessForm struct {
	Name          string `form:"name" validate:"required,max=100"`
	Address       string `form:"address"`
	Phone         string `form:"phone" validate:"max=20"`
	Email         string `form:"email" validate:"omitempty,email,max=100"`
	OwnerUsername string `form:"owner_username" validate:"required,min=3,max=80"`
	OwnerEmail    string `form:"owner_email" validate:"required,email,max=120"`
	OwnerPassword string `form:"owner_password" validate:"required,min=6,max=128"`
}

func registerAdminRoutes() {
	admins := webserver.RequireRoles(auth.AdminRoles)
	webserver.PageGET("/admin", adminDashboard, admins)
	webserver.PageGET("/admin/businesses", adminBusinesses, admins)
	webserver.PagePOST("/admin/businesses", adminBusinessCreate, admins)
	webserver.PageGET("/admin/features", adminFeatures, admins)
	webserver.PagePOST("/admin/features", adminFeatureCreate, admins)
	webserver.PagePOST("/admin/features/:id/toggle", adminFeatureToggle, admins)
	webserver.PageGET("/admin/keys", adminKeys, admins)
	webserver.PagePOST("/admin/keys", adminKeyGenerate, admins)
}

func adminDashboard(c echo.Context) error {
	db := GetDB(c)
	var businesses, users, features, unused int64
	counts := []*gorm.DB{
		db.Model(&domain.Business{}).Count(&businesses),
		db.Model(&domain.User{}).Count(&users),
		db.Model(&domain.Feature{}).Count(&features),
		db.Model(&domain.ActivationKey{}).Where("used = ?", false).Count(&unused),
	}
	for _, res := range counts {
		if res.Error != nil {
			return res.Error
		}
	}
	return webserver.RenderPage(c, "admin.html", "Administration", map[string]interface{}{
		"Businesses": businesses,
		"Users":      users,
		"Features":   features,
		"UnusedKeys": unused,
	})
}

func listBusinesses(c echo.Context) ([]domain.Business, error) {
	var list []domain.Business
	err := GetDB(c).Order("name").Find(&list).Error
	return list, err
}

func adminBusinesses(c echo.Context) error {
	list, err := listBusinesses(c)
	if err != nil {
		return err
	}
	return webserver.RenderPage(c, "admin_businesses.html", "Businesses", map[string]interface{}{
		"Businesses": list,
	})
}

// adminBusinessCreate onboards a business together with its first owner
func adminBusinessCreate(c echo.Context) error {
	var form businessForm
	if err := c.Bind(&form); err != nil {
		return webserver.FlashRedirect(c, "danger", "Invalid business data.", "/admin/businesses")
	}
	form.Name = strings.TrimSpace(form.Name)
	form.OwnerUsername = strings.TrimSpace(form.OwnerUsername)
	if err := c.Validate(&form); err != nil {
		return webserver.FlashRedirect(c, "danger", validationMessage(err), "/admin/businesses")
	}
	db := GetDB(c)
	taken, err := usernameTaken(db, form.OwnerUsername)
	if err != nil {
		return pageError(c, err, "/admin/businesses")
	}
	if taken {
		return webserver.FlashRedirect(c, "danger", "Username "+form.OwnerUsername+" is already taken.", "/admin/businesses")
	}
	biz := domain.Business{
		ID:      common.UUIDint64(),
		Name:    form.Name,
		Address: strings.TrimSpace(form.Address),
		Phone:   strings.TrimSpace(form.Phone),
		Email:   strings.TrimSpace(form.Email),
	}
	owner, err := newUser(biz.ID, form.OwnerUsername, strings.TrimSpace(form.OwnerEmail), form.OwnerPassword, domain.RoleOwner)
	if err != nil {
		return pageError(c, err, "/admin/businesses")
	}
	err = db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&biz).Error; err != nil {
			return err
		}
		return tx.Create(owner).Error
	})
	if err != nil {
		return pageError(c, err, "/admin/businesses")
	}
	recordOperation(c, "business_add", "add business "+biz.Name+" with owner "+owner.Username)
	return webserver.FlashRedirect(c, "success", "Business "+biz.Name+" created.", "/admin/businesses")
}

func adminFeatures(c echo.Context) error {
	list, err := appCtx(c).Activation().ListFeatures(c.Request().Context())
	if err != nil {
		return err
	}
	return webserver.RenderPage(c, "admin_features.html", "Features", map[string]interface{}{
		"Features": list,
	})
}

func adminFeatureCreate(c echo.Context) error {
	name := strings.TrimSpace(c.FormValue("name"))
	if name == "" || len(name) > 64 {
		return webserver.FlashRedirect(c, "danger", "Feature name must be 1 to 64 characters.", "/admin/features")
	}
	requires := c.FormValue("requires_activation") == "true"
	f, err := appCtx(c).Activation().CreateFeature(c.Request().Context(), name, c.FormValue("description"), requires)
	if errors.Is(err, activation.ErrFeatureNameRequired) {
		return webserver.FlashRedirect(c, "danger", "Feature name is required.", "/admin/features")
	}
	if errors.Is(err, activation.ErrFeatureExists) {
		return webserver.FlashRedirect(c, "warning", "Feature "+name+" already exists.", "/admin/features")
	}
	if err != nil {
		return pageError(c, err, "/admin/features")
	}
	recordOperation(c, "feature_add", "add feature "+f.Name)
	return webserver.FlashRedirect(c, "success", "Feature "+f.Name+" created.", "/admin/features")
}

func adminFeatureToggle(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return webserver.FlashRedirect(c, "danger", "Feature not found.", "/admin/features")
	}
	f, err := appCtx(c).Activation().ToggleFeature(c.Request().Context(), id)
	if errors.Is(err, activation.ErrFeatureNotFound) {
		return webserver.FlashRedirect(c, "danger", "Feature not found.", "/admin/features")
	}
	if err != nil {
		return pageError(c, err, "/admin/features")
	}
	state := "disabled"
	if f.Enabled {
		state = "enabled"
	}
	recordOperation(c, "feature_toggle", state+" feature "+f.Name)
	return webserver.FlashRedirect(c, "success", "Feature "+f.Name+" "+state+".", "/admin/features")
}

func renderKeys(c echo.Context, rawKey string) error {
	ctx := c.Request().Context()
	keys, err := appCtx(c).Activation().ListKeys(ctx, 0, adminKeyListLimit)
	if err != nil {
		return err
	}
	businesses, err := listBusinesses(c)
	if err != nil {
		return err
	}
	features, err := appCtx(c).Activation().ListFeatures(ctx)
	if err != nil {
		return err
	}
	return webserver.RenderPage(c, "admin_keys.html", "Activation Keys", map[string]interface{}{
		"Keys":       keys,
		"Businesses": businesses,
		"Features":   features,
		"RawKey":     rawKey,
	})
}

func adminKeys(c echo.Context) error {
	return renderKeys(c, "")
}

// adminKeyGenerate renders the raw key in its response; it is never shown again
func adminKeyGenerate(c echo.Context) error {
	var req activation.GenerateKeyRequest
	if err := c.Bind(&req); err != nil {
		return webserver.FlashRedirect(c, "danger", "Invalid key request.", "/admin/keys")
	}
	raw, _, err := appCtx(c).Activation().GenerateKey(c.Request().Context(), req)
	switch {
	case errors.Is(err, activation.ErrNoFeatures):
		return webserver.FlashRedirect(c, "danger", "Select at least one feature.", "/admin/keys")
	case errors.Is(err, activation.ErrBusinessNotFound):
		return webserver.FlashRedirect(c, "danger", "Business not found.", "/admin/keys")
	case errors.Is(err, activation.ErrFeatureNotFound):
		return webserver.FlashRedirect(c, "danger", "Feature not found.", "/admin/keys")
	case err != nil:
		return pageError(c, err, "/admin/keys")
	}
	return renderKeys(c, raw)
}
