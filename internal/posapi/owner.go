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

// businessRoles the roles an owner may hand out
var businessRoles = []domain.Role{domain.RoleCashier, domain.RoleManager, domain.RoleOwner}

type userForm struct {
	Username string      `form:"username" validate:"required,min=3,max=80"`
	Email    string      `form:"email" validate:"required,email,max=120"`
	Password string      `form:"password" validate:"required,min=6,max=128"`
	Role     domain.Role `form:"role" validate:"required,oneof=cashier manager owner"`
}

func registerOwnerRoutes() {
	owners := webserver.RequireRoles(auth.OwnerRoles)
	webserver.PageGET("/owner", ownerDashboard, owners)
	webserver.PageGET("/users", usersPage, owners)
	webserver.PagePOST("/users", userCreate, owners)
	webserver.PagePOST("/users/:id/toggle", userToggle, owners)
	webserver.PageGET("/features", featuresPage, owners)
	webserver.PagePOST("/features/activate", featureRedeem, owners)
}

func ownerDashboard(c echo.Context) error {
	data, err := dashboardData(c, ownerRecent)
	if err != nil {
		return err
	}
	return webserver.RenderPage(c, "owner.html", "Owner Dashboard", data)
}

func usersPage(c echo.Context) error {
	var users []domain.User
	if err := GetDB(c).Where("business_id = ?", currentUser(c).BusinessID).
		Order("username").Find(&users).Error; err != nil {
		return err
	}
	return webserver.RenderPage(c, "users.html", "Users", map[string]interface{}{
		"Users": users,
		"Roles": businessRoles,
	})
}

// usernameTaken usernames are unique across all businesses
func usernameTaken(db *gorm.DB, username string) (bool, error) {
	var count int64
	err := db.Model(&domain.User{}).Where("username = ?", username).Count(&count).Error
	return count > 0, err
}

func newUser(businessID int64, username, email, password string, role domain.Role) (*domain.User, error) {
	hash, err := common.HashPassword(password)
	if err != nil {
		return nil, err
	}
	return &domain.User{
		ID:           common.UUIDint64(),
		BusinessID:   businessID,
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		Active:       true,
	}, nil
}

func userCreate(c echo.Context) error {
	var form userForm
	if err := c.Bind(&form); err != nil {
		return webserver.FlashRedirect(c, "danger", "Invalid user data.", "/users")
	}
	form.Username = strings.TrimSpace(form.Username)
	form.Email = strings.TrimSpace(form.Email)
	if err := c.Validate(&form); err != nil {
		return webserver.FlashRedirect(c, "danger", validationMessage(err), "/users")
	}
	db := GetDB(c)
	taken, err := usernameTaken(db, form.Username)
	if err != nil {
		return pageError(c, err, "/users")
	}
	if taken {
		return webserver.FlashRedirect(c, "danger", "Username "+form.Username+" is already taken.", "/users")
	}
	user, err := newUser(currentUser(c).BusinessID, form.Username, form.Email, form.Password, form.Role)
	if err != nil {
		return pageError(c, err, "/users")
	}
	if err := db.Create(user).Error; err != nil {
		return pageError(c, err, "/users")
	}
	recordOperation(c, "user_add", "add "+string(user.Role)+" "+user.Username)
	return webserver.FlashRedirect(c, "success", "User "+user.Username+" created.", "/users")
}

func userToggle(c echo.Context) error {
	owner := currentUser(c)
	id, err := parseIDParam(c, "id")
	if err != nil {
		return webserver.FlashRedirect(c, "danger", "User not found.", "/users")
	}
	if id == owner.ID {
		return webserver.FlashRedirect(c, "warning", "You cannot deactivate your own account.", "/users")
	}
	db := GetDB(c)
	var user domain.User
	err = db.Where("id = ? AND business_id = ?", id, owner.BusinessID).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return webserver.FlashRedirect(c, "danger", "User not found.", "/users")
	}
	if err != nil {
		return pageError(c, err, "/users")
	}
	if err := db.Model(&domain.User{}).Where("id = ?", user.ID).Update("active", !user.Active).Error; err != nil {
		return pageError(c, err, "/users")
	}
	state := "deactivated"
	if !user.Active {
		state = "activated"
	}
	recordOperation(c, "user_toggle", state+" user "+user.Username)
	return webserver.FlashRedirect(c, "success", "User "+user.Username+" "+state+".", "/users")
}

func featuresPage(c echo.Context) error {
	list, err := appCtx(c).Activation().BusinessFeatures(c.Request().Context(), currentUser(c).BusinessID)
	if err != nil {
		return err
	}
	return webserver.RenderPage(c, "features.html", "Features", map[string]interface{}{
		"Features": list,
	})
}

func featureRedeem(c echo.Context) error {
	raw := strings.TrimSpace(c.FormValue("activation_key"))
	if raw == "" {
		return webserver.FlashRedirect(c, "danger", "Please enter an activation key.", "/features")
	}
	names, err := appCtx(c).Activation().Redeem(c.Request().Context(), currentUser(c).BusinessID, raw)
	switch {
	case errors.Is(err, activation.ErrKeyExpired):
		return webserver.FlashRedirect(c, "danger", activation.ErrKeyExpired.Error(), "/features")
	case errors.Is(err, activation.ErrKeyInvalid):
		return webserver.FlashRedirect(c, "danger", activation.ErrKeyInvalid.Error(), "/features")
	case err != nil:
		return pageError(c, err, "/features")
	}
	return webserver.FlashRedirect(c, "success", "Successfully activated: "+strings.Join(names, ", "), "/features")
}
