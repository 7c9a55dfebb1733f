package posapi

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/spf13/cast"
	"github.com/talkincode/toughpos/internal/auth"
	"github.com/talkincode/toughpos/internal/labels"
	"github.com/talkincode/toughpos/internal/webserver"
)

type bulkLabelRequest struct {
	// ids arrive as strings or numbers
	ProductIDs []interface{} `json:"product_ids"`
}

type labelPayload struct {
	ProductID string `json:"product_id"`
	Name      string `json:"name"`
	Barcode   string `json:"barcode"`
	Image     string `json:"image"`
}

func registerLabelRoutes() {
	managers := webserver.RequireRoles(auth.ManagerRoles)
	feature := webserver.RequireFeature("barcode_labels")
	webserver.ApiGET("/products/:id/label", productLabel, managers, feature)
	webserver.ApiPOST("/labels/bulk", bulkLabels, managers, feature)
}

func productLabel(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid product ID", nil)
	}
	label, err := appCtx(c).Labels().ProductLabel(c.Request().Context(), currentUser(c).BusinessID, id)
	if errors.Is(err, labels.ErrProductNotFound) {
		return fail(c, http.StatusNotFound, "NOT_FOUND", "Product not found", nil)
	}
	if err != nil {
		return fail(c, http.StatusInternalServerError, "LABEL_FAILED", msgInternal, err.Error())
	}
	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("inline; filename=label_%s.png", label.Barcode))
	return c.Blob(http.StatusOK, "image/png", label.PNG)
}

func bulkLabels(c echo.Context) error {
	var req bulkLabelRequest
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid label request", err.Error())
	}
	if len(req.ProductIDs) == 0 {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "No products selected", nil)
	}
	if len(req.ProductIDs) > labels.MaxBatch {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST",
			fmt.Sprintf("At most %d labels per request", labels.MaxBatch), nil)
	}
	ids := make([]int64, 0, len(req.ProductIDs))
	for _, raw := range req.ProductIDs {
		id, err := cast.ToInt64E(raw)
		if err != nil || id <= 0 {
			return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid product ID", nil)
		}
		ids = append(ids, id)
	}

	rendered, err := appCtx(c).Labels().RenderBatch(c.Request().Context(), currentUser(c).BusinessID, ids)
	if err != nil {
		return fail(c, http.StatusInternalServerError, "LABEL_FAILED", msgInternal, err.Error())
	}

	if c.QueryParam("format") == "pdf" {
		var buf bytes.Buffer
		if err := labels.WritePDF(rendered, &buf); err != nil {
			return fail(c, http.StatusInternalServerError, "LABEL_FAILED", msgInternal, err.Error())
		}
		c.Response().Header().Set(echo.HeaderContentDisposition, "inline; filename=labels.pdf")
		return c.Blob(http.StatusOK, "application/pdf", buf.Bytes())
	}

	items := make([]labelPayload, 0, len(rendered))
	for _, l := range rendered {
		items = append(items, labelPayload{
			ProductID: cast.ToString(l.ProductID),
			Name:      l.Name,
			Barcode:   l.Barcode,
			Image:     "data:image/png;base64," + base64.StdEncoding.EncodeToString(l.PNG),
		})
	}
	return ok(c, echo.Map{"labels": items, "count": len(items)})
}
