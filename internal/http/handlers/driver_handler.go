// README: Driver registry HTTP handlers.
package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"cargoline/internal/modules/drivers"
	"cargoline/internal/types"
)

type DriverHandler struct {
	drivers *drivers.Service
}

func NewDriverHandler(service *drivers.Service) *DriverHandler {
	return &DriverHandler{drivers: service}
}

type upsertDriverRequest struct {
	ID      string          `json:"id"`
	Name    string          `json:"name"`
	Status  drivers.Status  `json:"status"`
	Vehicle drivers.Vehicle `json:"vehicle"`
}

func (h *DriverHandler) Upsert(c *gin.Context) {
	var req upsertDriverRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.ID == "" {
		writeError(c, http.StatusBadRequest, "invalid driver payload")
		return
	}
	if req.Status != "" && !drivers.ValidStatus(req.Status) {
		writeError(c, http.StatusBadRequest, "unknown driver status")
		return
	}

	d := drivers.Driver{
		ID:      types.ID(req.ID),
		Name:    req.Name,
		Status:  req.Status,
		Vehicle: req.Vehicle,
	}
	if err := h.drivers.Upsert(c.Request.Context(), d); err != nil {
		writeServiceError(c, err)
		return
	}
	got, err := h.drivers.Get(c.Request.Context(), d.ID)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, got)
}

func (h *DriverHandler) Get(c *gin.Context) {
	id := c.Param("id")
	if !isValidID(id) {
		writeError(c, http.StatusBadRequest, "invalid driver id")
		return
	}
	d, err := h.drivers.Get(c.Request.Context(), types.ID(id))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, d)
}

type setStatusRequest struct {
	Status drivers.Status `json:"status"`
}

func (h *DriverHandler) SetStatus(c *gin.Context) {
	id := c.Param("id")
	if !isValidID(id) {
		writeError(c, http.StatusBadRequest, "invalid driver id")
		return
	}
	var req setStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil || !drivers.ValidStatus(req.Status) {
		writeError(c, http.StatusBadRequest, "unknown driver status")
		return
	}
	if err := h.drivers.SetStatus(c.Request.Context(), types.ID(id), req.Status); err != nil {
		writeServiceError(c, err)
		return
	}
	d, err := h.drivers.Get(c.Request.Context(), types.ID(id))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, d)
}

type reviewRequest struct {
	Score int `json:"score"`
}

func (h *DriverHandler) AddReview(c *gin.Context) {
	id := c.Param("id")
	if !isValidID(id) {
		writeError(c, http.StatusBadRequest, "invalid driver id")
		return
	}
	var req reviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid review payload")
		return
	}
	if err := h.drivers.AddReview(c.Request.Context(), types.ID(id), req.Score); err != nil {
		writeServiceError(c, err)
		return
	}
	rating, err := h.drivers.Rating(c.Request.Context(), types.ID(id))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"rating": rating})
}

// FindEligible answers the matching query: available drivers, optionally
// within a radius of a point and filtered by vehicle type.
func (h *DriverHandler) FindEligible(c *gin.Context) {
	var crit drivers.Criteria

	latRaw, lngRaw := c.Query("lat"), c.Query("lng")
	if latRaw != "" || lngRaw != "" {
		lat, errLat := strconv.ParseFloat(latRaw, 64)
		lng, errLng := strconv.ParseFloat(lngRaw, 64)
		if errLat != nil || errLng != nil {
			writeError(c, http.StatusBadRequest, "invalid lat/lng")
			return
		}
		crit.Near = &types.Point{Lat: lat, Lng: lng}
	}
	if raw := c.Query("radius_meters"); raw != "" {
		radius, err := strconv.ParseFloat(raw, 64)
		if err != nil || radius <= 0 {
			writeError(c, http.StatusBadRequest, "invalid radius_meters")
			return
		}
		crit.RadiusMeters = radius
	}
	if raw := c.Query("vehicle_type"); raw != "" {
		crit.VehicleType = drivers.VehicleType(raw)
	}
	if raw := c.Query("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			writeError(c, http.StatusBadRequest, "invalid limit")
			return
		}
		crit.Limit = limit
	}

	out, err := h.drivers.FindEligible(c.Request.Context(), crit)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, out)
}
