package posapi

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/talkincode/toughpos/config"
	"github.com/talkincode/toughpos/internal/activation"
	"github.com/talkincode/toughpos/internal/app"
	"github.com/talkincode/toughpos/internal/domain"
	"github.com/talkincode/toughpos/internal/testkit"
	"github.com/talkincode/toughpos/internal/webserver"
)

const csrfToken = "test-csrf-token"

func TestMain(m *testing.M) {
	Init()
	os.Exit(m.Run())
}

type testEnv struct {
	t   *testing.T
	app *app.Application
	srv *webserver.Server
	biz *domain.Business
}

func newEnv(t *testing.T) *testEnv {
	t.Helper()
	cfg := config.DefaultAppConfig()
	cfg.System.Workdir = t.TempDir()
	cfg.System.DemoData = false
	cfg.System.Debug = false
	cfg.Web.Secret = "0123456789abcdef0123456789abcdef"
	require.NoError(t, cfg.InitDirs())

	a := app.NewApplication(cfg)
	a.OverrideDB(testkit.NewDB(t))
	a.InitServices()
	a.Seed()
	t.Cleanup(func() { a.Bus().WaitAsync() })

	srv, err := webserver.NewServer(a)
	require.NoError(t, err)
	return &testEnv{t: t, app: a, srv: srv, biz: testkit.SeedBusiness(t, a.DB(), "Corner Shop")}
}

// client keeps cookies between requests and sends the csrf token
type client struct {
	env     *testEnv
	cookies map[string]*http.Cookie
}

func (e *testEnv) client() *client {
	return &client{env: e, cookies: map[string]*http.Cookie{
		"_csrf": {Name: "_csrf", Value: csrfToken},
	}}
}

func (c *client) do(req *http.Request) *httptest.ResponseRecorder {
	for _, ck := range c.cookies {
		req.AddCookie(ck)
	}
	if req.Method != http.MethodGet {
		req.Header.Set("X-CSRF-Token", csrfToken)
	}
	rec := httptest.NewRecorder()
	c.env.srv.Echo().ServeHTTP(rec, req)
	for _, ck := range rec.Result().Cookies() {
		if ck.MaxAge < 0 {
			delete(c.cookies, ck.Name)
			continue
		}
		c.cookies[ck.Name] = ck
	}
	return rec
}

func (c *client) get(path string) *httptest.ResponseRecorder {
	return c.do(httptest.NewRequest(http.MethodGet, path, nil))
}

func (c *client) postForm(path string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.do(req)
}

func (c *client) postJSON(path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return c.do(req)
}

func (c *client) login(username string) {
	rec := c.postForm("/login", url.Values{"username": {username}, "password": {testkit.Password}})
	require.Equal(c.env.t, http.StatusFound, rec.Code)
	require.Equal(c.env.t, "/dashboard", rec.Header().Get("Location"))
}

func (e *testEnv) loggedIn(username string, role domain.Role) (*client, *domain.User) {
	user := testkit.SeedUser(e.t, e.app.DB(), e.biz.ID, username, role)
	c := e.client()
	c.login(username)
	return c, user
}

// redeemFor activates the features for the business through a fresh key
func (e *testEnv) redeemFor(businessID int64, names ...string) {
	e.t.Helper()
	var features []domain.Feature
	require.NoError(e.t, e.app.DB().Where("name IN ?", names).Find(&features).Error)
	ids := make([]int64, 0, len(features))
	for _, f := range features {
		ids = append(ids, f.ID)
	}
	raw, _, err := e.app.Activation().GenerateKey(testCtx(), activation.GenerateKeyRequest{BusinessID: businessID, FeatureIDs: ids})
	require.NoError(e.t, err)
	_, err = e.app.Activation().Redeem(testCtx(), businessID, raw)
	require.NoError(e.t, err)
}

var rawKeyPattern = regexp.MustCompile(`<code class="key">([A-Za-z0-9_-]+)</code>`)
