package controllers

import (
	"net/http"

	"github.com/angelmondragon/tableorders-backend/api/responses"
	"github.com/angelmondragon/tableorders-backend/internal/menu"
	pkgerrors "github.com/angelmondragon/tableorders-backend/pkg/errors"
	"github.com/angelmondragon/tableorders-backend/pkg/logger"
)

// GetMenu returns the catalog in display order.
func GetMenu(catalog *menu.Catalog, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if catalog == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "menu catalog unavailable"))
			return
		}
		responses.WriteSuccess(w, map[string]any{"items": catalog.Items()})
	}
}
