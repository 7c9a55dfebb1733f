// Package posapi registers the pages and JSON endpoints of the point of sale.
package posapi

import "sync"

var initOnce sync.Once

// Init registers every route with the webserver registry. It must run
// before webserver.NewServer.
func Init() {
	initOnce.Do(func() {
		registerAuthRoutes()
		registerPosRoutes()
		registerManagerRoutes()
		registerProductRoutes()
		registerInventoryRoutes()
		registerCatalogRoutes()
		registerReportRoutes()
		registerLabelRoutes()
		registerExportRoutes()
		registerOwnerRoutes()
		registerAdminRoutes()
	})
}
