package webserver

import (
	"net/http"
	"sync"

	"github.com/labstack/echo/v4"
)

type routeKind int

const (
	kindAPI routeKind = iota
	kindPage
	kindPublic
)

type route struct {
	kind        routeKind
	method      string
	path        string
	handler     echo.HandlerFunc
	middlewares []echo.MiddlewareFunc
}

var (
	routesMu sync.Mutex
	routes   []route
)

func addRoute(kind routeKind, method, path string, h echo.HandlerFunc, m []echo.MiddlewareFunc) {
	routesMu.Lock()
	defer routesMu.Unlock()
	routes = append(routes, route{kind: kind, method: method, path: path, handler: h, middlewares: m})
}

// ApiGET registers a JSON endpoint under /api
func ApiGET(path string, h echo.HandlerFunc, m ...echo.MiddlewareFunc) {
	addRoute(kindAPI, http.MethodGet, path, h, m)
}

func ApiPOST(path string, h echo.HandlerFunc, m ...echo.MiddlewareFunc) {
	addRoute(kindAPI, http.MethodPost, path, h, m)
}

func ApiPUT(path string, h echo.HandlerFunc, m ...echo.MiddlewareFunc) {
	addRoute(kindAPI, http.MethodPut, path, h, m)
}

func ApiDELETE(path string, h echo.HandlerFunc, m ...echo.MiddlewareFunc) {
	addRoute(kindAPI, http.MethodDelete, path, h, m)
}

// PageGET registers an HTML page that needs a logged in user
func PageGET(path string, h echo.HandlerFunc, m ...echo.MiddlewareFunc) {
	addRoute(kindPage, http.MethodGet, path, h, m)
}

func PagePOST(path string, h echo.HandlerFunc, m ...echo.MiddlewareFunc) {
	addRoute(kindPage, http.MethodPost, path, h, m)
}

// PublicGET registers a route open to anonymous visitors
func PublicGET(path string, h echo.HandlerFunc, m ...echo.MiddlewareFunc) {
	addRoute(kindPublic, http.MethodGet, path, h, m)
}

func PublicPOST(path string, h echo.HandlerFunc, m ...echo.MiddlewareFunc) {
	addRoute(kindPublic, http.MethodPost, path, h, m)
}

func snapshotRoutes() []route {
	routesMu.Lock()
	defer routesMu.Unlock()
	return append([]route(nil), routes...)
}
