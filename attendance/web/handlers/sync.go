package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"accessadmin.com/accessadmin/attendance/core"
	"accessadmin.com/accessadmin/attendance/ledger"
	"accessadmin.com/accessadmin/attendance/model"
	"accessadmin.com/accessadmin/attendance/scheduler"
	"accessadmin.com/accessadmin/config"
	v1 "accessadmin.com/accessadmin/deviceapi/v1"
	"accessadmin.com/accessadmin/web/common"
	"github.com/gin-gonic/gin"
)

type Scheduler interface {
	Status() []scheduler.JobStatus
	Trigger(name string) (bool, error)
}

type Ledger interface {
	StatsSince(ctx context.Context, since time.Time) ([]ledger.Stat, error)
	Recent(ctx context.Context, limit int) ([]model.SyncAttempt, error)
}

type Registry interface {
	CountEvents(ctx context.Context) (map[model.SyncState]int64, error)
}

// Directory passes device directory reads through to the dashboard.
type Directory interface {
	Terminals(ctx context.Context, limit int) ([]v1.RemoteTerminal, error)
	Employees(ctx context.Context, limit int) ([]v1.RemoteEmployee, error)
}

type SyncHandler struct {
	scheduler Scheduler
	ledger    Ledger
	registry  Registry
	directory Directory
	now       func() time.Time
}

func NewSyncHandler(s Scheduler, l Ledger, r Registry, d Directory) *SyncHandler {
	return &SyncHandler{scheduler: s, ledger: l, registry: r, directory: d, now: time.Now}
}

func (h *SyncHandler) Register(group *gin.RouterGroup) {
	group.GET("/status", h.Status)
	group.GET("/stats", h.Stats)
	group.GET("/attempts", h.Attempts)
	group.POST("/jobs/:job/run", h.RunJob)
	group.GET("/device/terminals", h.Terminals)
	group.GET("/device/employees", h.Employees)
}

type statusResponse struct {
	Jobs   []scheduler.JobStatus     `json:"jobs"`
	Events map[model.SyncState]int64 `json:"events"`
}

func (h *SyncHandler) Status(c *gin.Context) {
	counts, err := h.registry.CountEvents(c.Request.Context())
	if err != nil {
		h.internalError(c, "Status", err)
		return
	}
	c.JSON(http.StatusOK, common.NewSuccessResponse(statusResponse{Jobs: h.scheduler.Status(), Events: counts}))
}

type statsQuery struct {
	Window string `form:"window"`
}

type statsResponse struct {
	Since time.Time     `json:"since"`
	Stats []ledger.Stat `json:"stats"`
}

func (h *SyncHandler) Stats(c *gin.Context) {
	var q statsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, common.NewErrorResponse(common.FormatBindingError(err)))
		return
	}
	window := 24 * time.Hour
	if q.Window != "" {
		d, err := time.ParseDuration(q.Window)
		if err != nil || d <= 0 {
			c.JSON(http.StatusBadRequest, common.NewErrorResponse("Field 'window' must be a positive duration such as 24h"))
			return
		}
		window = d
	}

	since := h.now().Add(-window)
	stats, err := h.ledger.StatsSince(c.Request.Context(), since)
	if err != nil {
		h.internalError(c, "Stats", err)
		return
	}
	if stats == nil {
		stats = []ledger.Stat{}
	}
	c.JSON(http.StatusOK, common.NewSuccessResponse(statsResponse{Since: since, Stats: stats}))
}

type limitQuery struct {
	Limit int `form:"limit" json:"limit" binding:"omitempty,min=1,max=500"`
}

func (h *SyncHandler) Attempts(c *gin.Context) {
	q := limitQuery{Limit: 50}
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, common.NewErrorResponse(common.FormatBindingError(err)))
		return
	}
	attempts, err := h.ledger.Recent(c.Request.Context(), q.Limit)
	if err != nil {
		h.internalError(c, "Attempts", err)
		return
	}
	c.JSON(http.StatusOK, common.NewSearchResponse(attempts, int64(len(attempts)), q.Limit))
}

func (h *SyncHandler) RunJob(c *gin.Context) {
	job := c.Param("job")
	started, err := h.scheduler.Trigger(job)
	if errors.Is(err, scheduler.ErrUnknownJob) {
		c.JSON(http.StatusNotFound, common.NewErrorResponse("unknown job "+job))
		return
	}
	if err != nil {
		h.internalError(c, "RunJob", err)
		return
	}
	if !started {
		c.JSON(http.StatusConflict, common.NewErrorResponse("job "+job+" is already running"))
		return
	}
	c.JSON(http.StatusAccepted, common.NewMessageResponse(gin.H{"job": job, "started": true}, "job "+job+" started"))
}

func (h *SyncHandler) Terminals(c *gin.Context) {
	terminals, err := h.directory.Terminals(c.Request.Context(), 0)
	if err != nil {
		h.deviceError(c, "Terminals", err)
		return
	}
	c.JSON(http.StatusOK, common.NewSearchResponse(terminals, int64(len(terminals)), 0))
}

func (h *SyncHandler) Employees(c *gin.Context) {
	q := limitQuery{Limit: 100}
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, common.NewErrorResponse(common.FormatBindingError(err)))
		return
	}
	employees, err := h.directory.Employees(c.Request.Context(), q.Limit)
	if err != nil {
		h.deviceError(c, "Employees", err)
		return
	}
	c.JSON(http.StatusOK, common.NewSearchResponse(employees, int64(len(employees)), q.Limit))
}

func (h *SyncHandler) deviceError(c *gin.Context, funcName string, err error) {
	config.LogError(config.GetLogger(), "attendance/web/handlers", funcName, "device api call failed", nil, err)
	c.JSON(http.StatusBadGateway, common.NewErrorResponse(err.Error()).WithKind(string(core.ErrorKindOf(err))))
}

func (h *SyncHandler) internalError(c *gin.Context, funcName string, err error) {
	config.LogError(config.GetLogger(), "attendance/web/handlers", funcName, "request failed", nil, err)
	c.JSON(http.StatusInternalServerError, common.NewErrorResponse("internal error"))
}
