// Package auth holds the login check, the role allow-sets and the feature
// checking capability used by the route gates and the page renderer.
package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/talkincode/toughpos/internal/domain"
	"github.com/talkincode/toughpos/pkg/common"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// TopicUserLogin is published with a LoginEvent after a successful login
const TopicUserLogin = "user.login"

type LoginEvent struct {
	UserID     int64
	BusinessID int64
	Username   string
	IP         string
}

// ErrInvalidCredentials covers unknown users, wrong passwords and inactive accounts alike
var ErrInvalidCredentials = errors.New("invalid username or password")

// RoleSet is the allow-list a route declares
type RoleSet []domain.Role

var (
	PosRoles     = RoleSet{domain.RoleCashier, domain.RoleManager, domain.RoleOwner}
	ManagerRoles = RoleSet{domain.RoleManager, domain.RoleOwner}
	OwnerRoles   = RoleSet{domain.RoleOwner}
	AdminRoles   = RoleSet{domain.RoleAdmin}
)

// Allows reports whether role is a member of the set
func (s RoleSet) Allows(role domain.Role) bool {
	for _, r := range s {
		if r == role {
			return true
		}
	}
	return false
}

// HomePath landing page of a role
func HomePath(role domain.Role) string {
	switch role {
	case domain.RoleCashier:
		return "/pos"
	case domain.RoleManager:
		return "/manager"
	case domain.RoleOwner:
		return "/owner"
	case domain.RoleAdmin:
		return "/admin"
	}
	return "/login"
}

// Authenticate verifies username and password and returns the active user
func Authenticate(ctx context.Context, db *gorm.DB, username, password string) (*domain.User, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, ErrInvalidCredentials
	}
	var user domain.User
	err := db.WithContext(ctx).Where("username = ?", username).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if !common.CheckPassword(user.PasswordHash, password) || !user.Active {
		return nil, ErrInvalidCredentials
	}
	now := time.Now()
	if err := db.WithContext(ctx).Model(&domain.User{}).Where("id = ?", user.ID).
		Update("last_login", now).Error; err != nil {
		zap.L().Warn("update last login failed", zap.String("namespace", "auth"), zap.Error(err))
	}
	user.LastLogin = now
	return &user, nil
}

// FeatureChecker resolves whether a named feature is usable by a business.
// Implementations must be side-effect free.
type FeatureChecker interface {
	FeatureEnabled(ctx context.Context, businessID int64, name string) (bool, error)
}

// FeatureView binds a checker to one business for use inside templates:
// {{if .Features.Enabled "barcode_labels"}}
type FeatureView struct {
	ctx        context.Context
	checker    FeatureChecker
	businessID int64
}

func NewFeatureView(ctx context.Context, checker FeatureChecker, businessID int64) FeatureView {
	return FeatureView{ctx: ctx, checker: checker, businessID: businessID}
}

// Enabled fails closed on lookup errors
func (v FeatureView) Enabled(name string) bool {
	if v.checker == nil || v.businessID == 0 {
		return false
	}
	ok, err := v.checker.FeatureEnabled(v.ctx, v.businessID, name)
	if err != nil {
		zap.L().Warn("feature check failed", zap.String("feature", name), zap.Error(err))
		return false
	}
	return ok
}
