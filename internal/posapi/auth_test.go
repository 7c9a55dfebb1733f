package posapi

import (
	"context"
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/talkincode/toughpos/internal/domain"
	"github.com/talkincode/toughpos/internal/testkit"
)

func testCtx() context.Context {
	return context.Background()
}

func TestLoginRedirectsByRole(t *testing.T) {
	env := newEnv(t)
	cases := map[domain.Role]string{
		domain.RoleCashier: "/pos",
		domain.RoleManager: "/manager",
		domain.RoleOwner:   "/owner",
	}
	for role, home := range cases {
		c, _ := env.loggedIn("user_"+string(role), role)
		rec := c.get("/dashboard")
		assert.Equal(t, http.StatusFound, rec.Code, role)
		assert.Equal(t, home, rec.Header().Get("Location"), role)
	}

	admin := env.client()
	admin.login("admin")
	rec := admin.get("/dashboard")
	assert.Equal(t, "/admin", rec.Header().Get("Location"))
}

func TestLoginInvalidCredentials(t *testing.T) {
	env := newEnv(t)
	testkit.SeedUser(t, env.app.DB(), env.biz.ID, "alice", domain.RoleCashier)
	c := env.client()

	rec := c.postForm("/login", url.Values{"username": {"alice"}, "password": {"wrong"}})
	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/login", rec.Header().Get("Location"))

	rec = c.get("/login")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), msgInvalidLogin)

	// unknown user gets the same answer
	rec = c.postForm("/login", url.Values{"username": {"nobody"}, "password": {"x"}})
	assert.Equal(t, "/login", rec.Header().Get("Location"))
}

func TestLoginRecordsOperation(t *testing.T) {
	env := newEnv(t)
	env.loggedIn("bob", domain.RoleCashier)
	env.app.Bus().WaitAsync()

	var entries []domain.SysOprLog
	require.NoError(t, env.app.DB().Where("opr_name = ? AND opt_action = ?", "bob", "login").Find(&entries).Error)
	assert.Len(t, entries, 1)
}

func TestAnonymousIsSentToLogin(t *testing.T) {
	env := newEnv(t)
	c := env.client()

	rec := c.get("/pos")
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/login", rec.Header().Get("Location"))

	rec = c.get("/api/barcode/123")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), `"success":false`)
}

func TestLogout(t *testing.T) {
	env := newEnv(t)
	c, _ := env.loggedIn("carol", domain.RoleCashier)
	rec := c.get("/logout")
	assert.Equal(t, "/login", rec.Header().Get("Location"))

	rec = c.get("/pos")
	assert.Equal(t, "/login", rec.Header().Get("Location"))
}

func TestDeactivatedUserLosesSession(t *testing.T) {
	env := newEnv(t)
	c, user := env.loggedIn("dave", domain.RoleCashier)
	require.Equal(t, http.StatusOK, c.get("/pos").Code)

	require.NoError(t, env.app.DB().Model(&domain.User{}).Where("id = ?", user.ID).Update("active", false).Error)
	rec := c.get("/pos")
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/login", rec.Header().Get("Location"))
}

func TestPostWithoutCSRFTokenIsRejected(t *testing.T) {
	env := newEnv(t)
	testkit.SeedUser(t, env.app.DB(), env.biz.ID, "erin", domain.RoleCashier)
	c := env.client()
	delete(c.cookies, "_csrf")

	rec := c.postForm("/login", url.Values{"username": {"erin"}, "password": {testkit.Password}})
	assert.NotEqual(t, http.StatusFound, rec.Code)
	assert.GreaterOrEqual(t, rec.Code, http.StatusBadRequest)
}

func TestRoleGate(t *testing.T) {
	env := newEnv(t)
	cashier, _ := env.loggedIn("frank", domain.RoleCashier)

	rec := cashier.get("/manager")
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/dashboard", rec.Header().Get("Location"))

	rec = cashier.get("/api/sales-data")
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), `"code":"FORBIDDEN"`)

	owner, _ := env.loggedIn("grace", domain.RoleOwner)
	assert.Equal(t, http.StatusOK, owner.get("/manager").Code)
	assert.Equal(t, http.StatusFound, owner.get("/admin").Code)
}
