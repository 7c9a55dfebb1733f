package auth

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/talkincode/toughpos/internal/domain"
	"github.com/talkincode/toughpos/internal/testkit"
)

func TestAuthenticate(t *testing.T) {
	db := testkit.NewDB(t)
	testkit.SeedUser(t, db, 1, "cashier", domain.RoleCashier)
	retired := testkit.SeedUser(t, db, 1, "retired", domain.RoleCashier)
	require.NoError(t, db.Model(retired).Update("active", false).Error)
	ctx := context.Background()

	user, err := Authenticate(ctx, db, "cashier", "password")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleCashier, user.Role)
	assert.False(t, user.LastLogin.IsZero())

	cases := []struct{ username, password string }{
		{"cashier", "wrong"},
		{"nobody", "password"},
		{"retired", "password"},
		{"", ""},
	}
	for _, tc := range cases {
		_, err := Authenticate(ctx, db, tc.username, tc.password)
		assert.ErrorIs(t, err, ErrInvalidCredentials, tc.username)
	}
}

func TestRoleSets(t *testing.T) {
	assert.True(t, PosRoles.Allows(domain.RoleCashier))
	assert.True(t, PosRoles.Allows(domain.RoleOwner))
	assert.False(t, PosRoles.Allows(domain.RoleAdmin))
	assert.True(t, ManagerRoles.Allows(domain.RoleOwner))
	assert.False(t, ManagerRoles.Allows(domain.RoleCashier))
	assert.False(t, OwnerRoles.Allows(domain.RoleManager))
	assert.False(t, AdminRoles.Allows(domain.RoleOwner))
}

func TestHomePath(t *testing.T) {
	assert.Equal(t, "/pos", HomePath(domain.RoleCashier))
	assert.Equal(t, "/manager", HomePath(domain.RoleManager))
	assert.Equal(t, "/owner", HomePath(domain.RoleOwner))
	assert.Equal(t, "/admin", HomePath(domain.RoleAdmin))
	assert.Equal(t, "/login", HomePath(domain.Role("x")))
}

type stubChecker struct {
	enabled map[string]bool
	err     error
}

func (s stubChecker) FeatureEnabled(_ context.Context, _ int64, name string) (bool, error) {
	return s.enabled[name], s.err
}

func TestFeatureView(t *testing.T) {
	ctx := context.Background()
	v := NewFeatureView(ctx, stubChecker{enabled: map[string]bool{"barcode_labels": true}}, 7)
	assert.True(t, v.Enabled("barcode_labels"))
	assert.False(t, v.Enabled("data_export"))

	failing := NewFeatureView(ctx, stubChecker{enabled: map[string]bool{"x": true}, err: errors.New("db down")}, 7)
	assert.False(t, failing.Enabled("x"))

	assert.False(t, NewFeatureView(ctx, nil, 7).Enabled("x"))
	assert.False(t, NewFeatureView(ctx, stubChecker{enabled: map[string]bool{"x": true}}, 0).Enabled("x"))
}
