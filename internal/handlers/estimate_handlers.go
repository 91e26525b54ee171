package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"crop-estimator/internal/models"
	"crop-estimator/internal/repository"
	"crop-estimator/pkg/logging"
)

// EstimateRequest is the body of POST /api/estimate
type EstimateRequest struct {
	CropID            string   `json:"cropId" validate:"required,max=64"`
	AreaAcres         float64  `json:"areaAcres" validate:"required,gt=0"`
	SoilType          string   `json:"soilType" validate:"required,max=200"`
	Season            string   `json:"season" validate:"required"`
	RegionTemperature *float64 `json:"regionTemperature,omitempty"`
	CostPerAcre       *float64 `json:"costPerAcre,omitempty" validate:"omitempty,gte=0"`
	Region            string   `json:"region,omitempty" validate:"max=64"`
}

// RecommendRequest is the body of POST /api/recommend
type RecommendRequest struct {
	AreaAcres         float64  `json:"areaAcres" validate:"required,gt=0"`
	SoilType          string   `json:"soilType" validate:"required,max=200"`
	Season            string   `json:"season" validate:"required"`
	RegionTemperature *float64 `json:"regionTemperature,omitempty"`
	CostPerAcre       *float64 `json:"costPerAcre,omitempty" validate:"omitempty,gte=0"`
	Region            string   `json:"region,omitempty" validate:"max=64"`
	Category          string   `json:"category,omitempty"`
	Limit             int      `json:"limit,omitempty" validate:"gte=0,lte=100"`
}

// EstimateResponse is an estimation result with the id it was stored under, if any
type EstimateResponse struct {
	ID string `json:"id,omitempty"`
	*models.EstimationResult
}

// Estimate handles POST /api/estimate
func (h *CropHandler) Estimate(w http.ResponseWriter, r *http.Request) {
	var req EstimateRequest
	if err := h.decode(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	record, err := h.estimations.Estimate(r.Context(), models.FarmInput{
		CropID:            req.CropID,
		AreaAcres:         req.AreaAcres,
		SoilType:          req.SoilType,
		Season:            models.Season(req.Season),
		RegionTemperature: req.RegionTemperature,
		CostPerAcre:       req.CostPerAcre,
		Region:            req.Region,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.sendJSON(w, EstimateResponse{ID: record.ID, EstimationResult: record.Result}, http.StatusOK)
}

// Recommend handles POST /api/recommend
func (h *CropHandler) Recommend(w http.ResponseWriter, r *http.Request) {
	var req RecommendRequest
	if err := h.decode(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	cond := models.FarmConditions{
		AreaAcres:         req.AreaAcres,
		SoilType:          req.SoilType,
		Season:            models.Season(req.Season),
		RegionTemperature: req.RegionTemperature,
		CostPerAcre:       req.CostPerAcre,
		Region:            req.Region,
	}
	if req.Category != "" {
		category, err := models.ParseCategory(req.Category)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		cond.Category = category
	}

	limit := req.Limit
	if limit == 0 {
		limit = h.recommendN
	}

	results, err := h.estimations.Recommend(r.Context(), cond, limit)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.sendJSON(w, ListResponse{Data: results, Total: len(results)}, http.StatusOK)
}

// ListEstimates handles GET /api/estimates
func (h *CropHandler) ListEstimates(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	query := r.URL.Query()

	page, limit := pagination(r)
	filter := repository.EstimateFilter{
		Limit:  limit,
		Offset: (page - 1) * limit,
	}

	if cropID := query.Get("crop_id"); cropID != "" {
		filter.CropID = &cropID
	}

	if raw := query.Get("min_score"); raw != "" {
		minScore, err := strconv.ParseFloat(raw, 64)
		if err != nil || minScore < 0 || minScore > 100 {
			h.sendError(w, r, "invalid_input", "invalid min_score, expected a number between 0 and 100", http.StatusBadRequest)
			return
		}
		filter.MinScore = &minScore
	}

	if raw := query.Get("start_date"); raw != "" {
		startDate, err := time.Parse("2006-01-02", raw)
		if err != nil {
			h.sendError(w, r, "invalid_input", "invalid start_date format, expected YYYY-MM-DD", http.StatusBadRequest)
			return
		}
		filter.StartDate = &startDate
	}

	if raw := query.Get("end_date"); raw != "" {
		endDate, err := time.Parse("2006-01-02", raw)
		if err != nil {
			h.sendError(w, r, "invalid_input", "invalid end_date format, expected YYYY-MM-DD", http.StatusBadRequest)
			return
		}
		// end_date covers the whole day
		endOfDay := endDate.AddDate(0, 0, 1).Add(-time.Microsecond)
		filter.EndDate = &endOfDay
	}

	records, total, err := h.estimations.ListEstimates(ctx, filter)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.logger.Debug(ctx, "[API_LIST_ESTIMATES] Listing estimates", logging.Fields{
		"page":  page,
		"limit": limit,
		"total": total,
	})

	h.sendJSON(w, PaginatedResponse{
		Data:       records,
		Total:      total,
		Page:       page,
		Limit:      limit,
		TotalPages: (total + limit - 1) / limit,
	}, http.StatusOK)
}

// GetEstimate handles GET /api/estimates/{id}
func (h *CropHandler) GetEstimate(w http.ResponseWriter, r *http.Request) {
	record, err := h.estimations.GetEstimate(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.sendJSON(w, record, http.StatusOK)
}
