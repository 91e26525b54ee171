package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"crop-estimator/internal/models"
	"crop-estimator/internal/services"
	"crop-estimator/pkg/logging"
)

// ListCrops handles GET /api/crops
func (h *CropHandler) ListCrops(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	category := r.URL.Query().Get("category")

	crops, err := h.catalogs.ListCrops(ctx, category)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.logger.Debug(ctx, "[API_LIST_CROPS] Listing crops", logging.Fields{
		"category": category,
		"count":    len(crops),
	})
	h.sendJSON(w, ListResponse{Data: crops, Total: len(crops)}, http.StatusOK)
}

// GetCrop handles GET /api/crops/{id}
func (h *CropHandler) GetCrop(w http.ResponseWriter, r *http.Request) {
	crop, err := h.catalogs.GetCrop(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.sendJSON(w, crop, http.StatusOK)
}

// GetCompatibility handles GET /api/crops/{id}/compatibility
func (h *CropHandler) GetCompatibility(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	temperature, err := optionalFloat(r, "temperature")
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	report, err := h.catalogs.Compatibility(r.Context(), mux.Vars(r)["id"], query.Get("soil"), query.Get("season"), temperature)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.sendJSON(w, report, http.StatusOK)
}

// GetClimateNormal handles GET /api/climate/normals/{region}/{season}
func (h *CropHandler) GetClimateNormal(w http.ResponseWriter, r *http.Request) {
	if h.climate == nil {
		h.writeError(w, r, services.ErrPersistenceDisabled)
		return
	}

	vars := mux.Vars(r)
	season, err := models.ParseSeason(vars["season"])
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	normal, err := h.climate.GetNormal(r.Context(), vars["region"], season)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.sendJSON(w, normal, http.StatusOK)
}
