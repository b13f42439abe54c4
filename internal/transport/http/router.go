package trackerhttp

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"legtracker/internal/gateway/openalgo"
	"legtracker/internal/risk"
	"legtracker/internal/strategy"
	"legtracker/internal/tracker"
)

// TrackerAPI is the slice of the tracker the HTTP layer needs.
type TrackerAPI interface {
	Summaries(filter tracker.StatusFilter) []tracker.Summary
	View(instanceID string) (tracker.InstanceView, bool)
	Status() tracker.Status
	TryRefresh(ctx context.Context) bool
	SubmitOverride(ctx context.Context, instanceID, legKey string, typ risk.OverrideType, value float64) error
	SubmitManualExit(ctx context.Context, instanceID, legKey string, exitPrice float64, exitType strategy.ExitType) error
	CreateManualLeg(ctx context.Context, instanceID string, req tracker.ManualLegRequest) (string, error)
	DeleteInstance(ctx context.Context, instanceID string) error
}

// LiveControl is the visibility signal into the price layer.
type LiveControl interface {
	Pause()
	Resume()
}

// Router mounts the tracker endpoints.
type Router struct {
	tracker TrackerAPI
	live    LiveControl
}

func NewRouter(t TrackerAPI, live LiveControl) *Router {
	return &Router{tracker: t, live: live}
}

func (r *Router) Register(group *gin.RouterGroup) {
	if group == nil {
		return
	}
	group.GET("/status", r.handleStatus)
	group.POST("/refresh", r.handleRefresh)
	group.GET("/strategies", r.handleList)
	group.GET("/strategies/:id", r.handleView)
	group.DELETE("/strategies/:id", r.handleDelete)
	group.POST("/strategies/:id/legs", r.handleManualLeg)
	group.POST("/strategies/:id/legs/:key/override", r.handleOverride)
	group.POST("/strategies/:id/legs/:key/exit", r.handleManualExit)
	if r.live != nil {
		group.POST("/visibility", r.handleVisibility)
	}
}

func (r *Router) handleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, r.tracker.Status())
}

func (r *Router) handleRefresh(c *gin.Context) {
	issued := r.tracker.TryRefresh(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{"issued": issued})
}

func (r *Router) handleList(c *gin.Context) {
	filter := tracker.StatusFilter(strings.ToLower(strings.TrimSpace(c.Query("status"))))
	if filter == "" {
		filter = tracker.FilterAll
	}
	list := r.tracker.Summaries(filter)

	page, limit := parsePaging(c)
	total := len(list)
	start, end := paginateRange(total, (page-1)*limit, limit)
	c.JSON(http.StatusOK, gin.H{
		"total":      total,
		"page":       page,
		"page_size":  limit,
		"strategies": list[start:end],
	})
}

func (r *Router) handleView(c *gin.Context) {
	view, ok := r.tracker.View(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "strategy not found"})
		return
	}
	c.JSON(http.StatusOK, view)
}

func (r *Router) handleDelete(c *gin.Context) {
	// Deletion is irreversible; the caller must state it confirmed.
	if c.Query("confirm") != "true" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "deletion requires confirm=true"})
		return
	}
	if err := r.tracker.DeleteInstance(c.Request.Context(), c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

type overridePayload struct {
	OverrideType string  `json:"override_type"`
	Value        float64 `json:"value"`
}

func (r *Router) handleOverride(c *gin.Context) {
	var payload overridePayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload: " + err.Error()})
		return
	}
	err := r.tracker.SubmitOverride(c.Request.Context(), c.Param("id"), c.Param("key"),
		risk.OverrideType(payload.OverrideType), payload.Value)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "accepted"})
}

type manualExitPayload struct {
	ExitPrice float64 `json:"exit_price"`
	ExitType  string  `json:"exit_type"`
}

func (r *Router) handleManualExit(c *gin.Context) {
	var payload manualExitPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload: " + err.Error()})
		return
	}
	err := r.tracker.SubmitManualExit(c.Request.Context(), c.Param("id"), c.Param("key"),
		payload.ExitPrice, strategy.ExitType(payload.ExitType))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "accepted"})
}

func (r *Router) handleManualLeg(c *gin.Context) {
	var payload tracker.ManualLegRequest
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload: " + err.Error()})
		return
	}
	legKey, err := r.tracker.CreateManualLeg(c.Request.Context(), c.Param("id"), payload)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "created", "leg_key": legKey})
}

type visibilityPayload struct {
	Visible bool `json:"visible"`
}

func (r *Router) handleVisibility(c *gin.Context) {
	var payload visibilityPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload: " + err.Error()})
		return
	}
	if payload.Visible {
		r.live.Resume()
	} else {
		r.live.Pause()
	}
	c.JSON(http.StatusOK, gin.H{"visible": payload.Visible})
}

// writeError maps the error taxonomy onto status codes: validation and
// illegal-state block with 4xx, unknown targets 404, connectivity 502.
func writeError(c *gin.Context, err error) {
	var (
		illegal   *risk.IllegalStateError
		invalid   *risk.InvalidValueError
		bounds    *risk.OutOfBoundsError
		transient *openalgo.TransientError
	)
	switch {
	case errors.Is(err, tracker.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.As(err, &illegal):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.As(err, &invalid):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.As(err, &bounds):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "entry_price": bounds.EntryPrice})
	case errors.As(err, &transient):
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

func parsePaging(c *gin.Context) (page, limit int) {
	page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	if page < 1 {
		page = 1
	}
	limit, _ = strconv.Atoi(c.DefaultQuery("limit", "100"))
	if limit <= 0 {
		limit = 100
	}
	return page, limit
}

func paginateRange(total, offset, limit int) (int, int) {
	if total <= 0 || limit <= 0 {
		return 0, 0
	}
	if offset < 0 {
		offset = 0
	}
	if offset > total {
		offset = total
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return offset, end
}
