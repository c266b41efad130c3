// README: Job lifecycle HTTP handlers.
package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"cargoline/internal/modules/jobs"
	"cargoline/internal/types"
)

type JobHandler struct {
	jobs *jobs.Service
}

func NewJobHandler(service *jobs.Service) *JobHandler {
	return &JobHandler{jobs: service}
}

type createJobRequest struct {
	Type             jobs.JobType  `json:"type"`
	Priority         jobs.Priority `json:"priority"`
	CustomerID       string        `json:"customer_id"`
	Pickup           jobs.Stop     `json:"pickup"`
	Delivery         jobs.Stop     `json:"delivery"`
	ScheduledAt      *time.Time    `json:"scheduled_at"`
	EstimatedMinutes int           `json:"estimated_minutes"`
	Cargo            jobs.Cargo    `json:"cargo"`
}

func (h *JobHandler) Create(c *gin.Context) {
	var req createJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.CustomerID == "" {
		req.CustomerID = callerUID(c)
	}

	j, err := h.jobs.Create(c.Request.Context(), jobs.CreateCommand{
		Type:             req.Type,
		Priority:         req.Priority,
		CustomerID:       types.ID(req.CustomerID),
		Pickup:           req.Pickup,
		Delivery:         req.Delivery,
		ScheduledAt:      req.ScheduledAt,
		EstimatedMinutes: req.EstimatedMinutes,
		Cargo:            req.Cargo,
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, j)
}

func (h *JobHandler) List(c *gin.Context) {
	var status *jobs.Status
	if raw := c.Query("status"); raw != "" {
		s := jobs.Status(raw)
		status = &s
	}
	out, err := h.jobs.List(c.Request.Context(), status)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, out)
}

func (h *JobHandler) Get(c *gin.Context) {
	id := c.Param("id")
	if !isValidID(id) {
		writeError(c, http.StatusBadRequest, "invalid job id")
		return
	}
	j, err := h.jobs.Get(c.Request.Context(), types.ID(id))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, j)
}

func (h *JobHandler) Events(c *gin.Context) {
	id := c.Param("id")
	if !isValidID(id) {
		writeError(c, http.StatusBadRequest, "invalid job id")
		return
	}
	evs, err := h.jobs.Events(c.Request.Context(), types.ID(id))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, evs)
}

type assignRequest struct {
	DriverID string `json:"driver_id"`
}

func (h *JobHandler) Assign(c *gin.Context) {
	id := c.Param("id")
	if !isValidID(id) {
		writeError(c, http.StatusBadRequest, "invalid job id")
		return
	}
	var req assignRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.DriverID == "" {
		writeError(c, http.StatusBadRequest, "driver_id required")
		return
	}
	j, err := h.jobs.Assign(c.Request.Context(), types.ID(id), types.ID(req.DriverID))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, j)
}

func (h *JobHandler) Unassign(c *gin.Context) {
	id := c.Param("id")
	if !isValidID(id) {
		writeError(c, http.StatusBadRequest, "invalid job id")
		return
	}
	j, err := h.jobs.Unassign(c.Request.Context(), types.ID(id))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, j)
}

type transitionRequest struct {
	Status   jobs.Status  `json:"status"`
	Location *types.Point `json:"location"`
}

func (h *JobHandler) Transition(c *gin.Context) {
	id := c.Param("id")
	if !isValidID(id) {
		writeError(c, http.StatusBadRequest, "invalid job id")
		return
	}
	var req transitionRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Status == "" {
		writeError(c, http.StatusBadRequest, "status required")
		return
	}
	if !jobs.ValidStatus(req.Status) {
		writeError(c, http.StatusBadRequest, "unknown status")
		return
	}
	j, err := h.jobs.Transition(c.Request.Context(), types.ID(id), req.Status, req.Location)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, j)
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

func (h *JobHandler) Cancel(c *gin.Context) {
	id := c.Param("id")
	if !isValidID(id) {
		writeError(c, http.StatusBadRequest, "invalid job id")
		return
	}
	var req cancelRequest
	_ = c.ShouldBindJSON(&req) // reason is optional
	j, err := h.jobs.Cancel(c.Request.Context(), types.ID(id), req.Reason)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, j)
}

func (h *JobHandler) Hold(c *gin.Context) {
	id := c.Param("id")
	if !isValidID(id) {
		writeError(c, http.StatusBadRequest, "invalid job id")
		return
	}
	j, err := h.jobs.Hold(c.Request.Context(), types.ID(id))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, j)
}

func (h *JobHandler) Release(c *gin.Context) {
	id := c.Param("id")
	if !isValidID(id) {
		writeError(c, http.StatusBadRequest, "invalid job id")
		return
	}
	j, err := h.jobs.ReleaseHold(c.Request.Context(), types.ID(id))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, j)
}
