// README: Location tracking HTTP handlers.
package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"cargoline/internal/modules/tracking"
	"cargoline/internal/types"
)

type TrackingHandler struct {
	tracking *tracking.Service
}

func NewTrackingHandler(service *tracking.Service) *TrackingHandler {
	return &TrackingHandler{tracking: service}
}

type locationRequest struct {
	Position   types.Point `json:"position"`
	SpeedKPH   *float64    `json:"speed_kph"`
	HeadingDeg *float64    `json:"heading_deg"`
	RecordedAt *time.Time  `json:"recorded_at"`
}

// RecordLocation ingests one position sample. Drivers may only report their
// own position; dispatcher/admin may report for any subject.
func (h *TrackingHandler) RecordLocation(c *gin.Context) {
	id := c.Param("id")
	if !isValidID(id) {
		writeError(c, http.StatusBadRequest, "invalid subject id")
		return
	}
	if role := callerRole(c); role == string(types.RoleDriver) && callerUID(c) != id {
		writeError(c, http.StatusForbidden, "drivers may only report their own location")
		return
	}

	var req locationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid location payload")
		return
	}
	if req.Position.Lat < -90 || req.Position.Lat > 90 ||
		req.Position.Lng < -180 || req.Position.Lng > 180 {
		writeError(c, http.StatusBadRequest, "coordinates out of range")
		return
	}

	recordedAt := time.Now().UTC()
	if req.RecordedAt != nil {
		recordedAt = req.RecordedAt.UTC()
	}
	h.tracking.RecordSample(c.Request.Context(), types.ID(id), tracking.Sample{
		Position:   req.Position,
		SpeedKPH:   req.SpeedKPH,
		HeadingDeg: req.HeadingDeg,
		RecordedAt: recordedAt,
	})
	c.Status(http.StatusAccepted)
}

func (h *TrackingHandler) CurrentLocation(c *gin.Context) {
	id := c.Param("id")
	if !isValidID(id) {
		writeError(c, http.StatusBadRequest, "invalid subject id")
		return
	}
	sample, ok := h.tracking.CurrentLocation(types.ID(id))
	if !ok {
		writeError(c, http.StatusNotFound, "no location recorded")
		return
	}
	writeJSON(c, http.StatusOK, sample)
}

type routeRequest struct {
	Start        types.Point   `json:"start"`
	Destinations []types.Point `json:"destinations"`
}

func (h *TrackingHandler) OptimizeRoute(c *gin.Context) {
	var req routeRequest
	if err := c.ShouldBindJSON(&req); err != nil || len(req.Destinations) == 0 {
		writeError(c, http.StatusBadRequest, "start and destinations required")
		return
	}
	ordered := h.tracking.OptimizedRoute(c.Request.Context(), req.Start, req.Destinations)
	writeJSON(c, http.StatusOK, gin.H{"destinations": ordered})
}
