package webserver

import (
	"embed"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"net/http"
	"path"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"
	"github.com/talkincode/toughpos/internal/auth"
	"github.com/talkincode/toughpos/internal/domain"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

const layoutFile = "templates/layout.html"

var funcMap = template.FuncMap{
	"money": func(v float64) string { return fmt.Sprintf("%.2f", v) },
	"datetime": func(t time.Time) string {
		if t.IsZero() {
			return "-"
		}
		return t.Format("2006-01-02 15:04")
	},
	"timeptr": func(t *time.Time) string {
		if t == nil || t.IsZero() {
			return "-"
		}
		return t.Format("2006-01-02 15:04")
	},
	"title": func(s string) string {
		return cases.Title(language.English).String(s)
	},
}

// Renderer executes one template set per page, each combined with the layout
type Renderer struct {
	pages map[string]*template.Template
}

func NewRenderer() (*Renderer, error) {
	files, err := fs.Glob(templateFS, "templates/*.html")
	if err != nil {
		return nil, err
	}
	r := &Renderer{pages: make(map[string]*template.Template, len(files))}
	for _, file := range files {
		if file == layoutFile {
			continue
		}
		name := path.Base(file)
		t, err := template.New(name).Funcs(funcMap).ParseFS(templateFS, layoutFile, file)
		if err != nil {
			return nil, errors.Wrapf(err, "parse template %s", name)
		}
		r.pages[name] = t
	}
	return r, nil
}

func (r *Renderer) Render(w io.Writer, name string, data interface{}, c echo.Context) error {
	t, ok := r.pages[name]
	if !ok {
		return errors.Errorf("template %s not found", name)
	}
	return t.ExecuteTemplate(w, "layout", data)
}

// PageData is passed to every page template
type PageData struct {
	Title    string
	User     *domain.User
	Flashes  []Flash
	Features auth.FeatureView
	CSRF     string
	Data     map[string]interface{}
}

func newPageData(c echo.Context, title string, data map[string]interface{}) PageData {
	user := CurrentUser(c)
	pd := PageData{
		Title:   title,
		User:    user,
		Flashes: TakeFlashes(c),
		Data:    data,
	}
	if token, ok := c.Get(middleware.DefaultCSRFConfig.ContextKey).(string); ok {
		pd.CSRF = token
	}
	if user != nil {
		if appCtx := GetAppContext(c); appCtx != nil {
			pd.Features = auth.NewFeatureView(c.Request().Context(), appCtx.Activation(), user.BusinessID)
		}
	}
	return pd
}

// RenderPage renders templates/<page> inside the layout with status 200
func RenderPage(c echo.Context, page, title string, data map[string]interface{}) error {
	return RenderPageStatus(c, http.StatusOK, page, title, data)
}

func RenderPageStatus(c echo.Context, status int, page, title string, data map[string]interface{}) error {
	return c.Render(status, page, newPageData(c, title, data))
}
