// Package http contains the REST handlers for the ingest/query surface.
package http

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"ipcscope/internal/errs"
	"ipcscope/internal/ingest"
	"ipcscope/internal/stats"
	"ipcscope/internal/store"
	"ipcscope/internal/types"
	"ipcscope/internal/ws"
)

const (
	defaultTopLimit    = 5
	defaultEventsLimit = 100
)

// Handlers contains all HTTP handlers.
type Handlers struct {
	store   *store.Store
	stats   *stats.Engine
	gateway *ingest.Gateway
	hub     *ws.Hub
}

// NewHandlers creates a new handler set.
func NewHandlers(st *store.Store, eng *stats.Engine, gw *ingest.Gateway, hub *ws.Hub) *Handlers {
	return &Handlers{
		store:   st,
		stats:   eng,
		gateway: gw,
		hub:     hub,
	}
}

// Root handles the liveness check.
func (h *Handlers) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "online",
		"service": "ipcscope",
	})
}

// Health handles the detailed health check.
func (h *Handlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"processes": len(h.store.ListProcesses()),
		"events":    h.store.TotalEventCount(),
		"observers": h.hub.Count(),
	})
}

// RegisterProcess registers a new process.
func (h *Handlers) RegisterProcess(c *gin.Context) {
	var spec types.ProcessSpec
	if err := c.ShouldBindJSON(&spec); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	p, err := h.gateway.RegisterProcess(spec)
	if err != nil {
		h.writeIngestError(c, err)
		return
	}
	c.JSON(http.StatusCreated, p)
}

// ListProcesses lists all registered processes.
func (h *Handlers) ListProcesses(c *gin.Context) {
	c.JSON(http.StatusOK, h.store.ListProcesses())
}

// TopProcesses lists processes ordered by message count descending.
func (h *Handlers) TopProcesses(c *gin.Context) {
	limit, err := queryInt(c, "limit", defaultTopLimit)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, h.store.TopProcesses(limit))
}

// CreateEvent ingests a new IPC event and triggers broadcast.
func (h *Handlers) CreateEvent(c *gin.Context) {
	var spec types.EventSpec
	if err := c.ShouldBindJSON(&spec); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ev, err := h.gateway.CreateEvent(spec)
	if err != nil {
		h.writeIngestError(c, err)
		return
	}
	c.JSON(http.StatusCreated, ev)
}

// ListEvents returns one page of events, newest first.
func (h *Handlers) ListEvents(c *gin.Context) {
	limit, err := queryInt(c, "limit", defaultEventsLimit)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	offset, err := queryInt(c, "offset", 0)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	events, total := h.store.ListEvents(limit, offset)
	c.JSON(http.StatusOK, gin.H{
		"events": events,
		"total":  total,
		"limit":  limit,
		"offset": offset,
	})
}

// FilterEvents returns events matching the ANDed query criteria.
func (h *Handlers) FilterEvents(c *gin.Context) {
	filter, err := parseFilter(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, h.store.FilterEvents(filter))
}

// ClearEvents removes all events, resets message counts and broadcasts the
// clear notification.
func (h *Handlers) ClearEvents(c *gin.Context) {
	h.gateway.Clear()
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// GetStats returns current aggregates.
func (h *Handlers) GetStats(c *gin.Context) {
	c.JSON(http.StatusOK, h.stats.Snapshot(time.Now(), defaultTopLimit))
}

func (h *Handlers) writeIngestError(c *gin.Context, err error) {
	if ve, ok := errs.AsValidation(err); ok {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":  ve.Error(),
			"fields": ve.Fields,
		})
		return
	}
	if errors.Is(err, errs.ErrDuplicatePID) {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}

func queryInt(c *gin.Context, name string, def int) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, errors.New("invalid " + name)
	}
	return v, nil
}

func parseFilter(c *gin.Context) (types.EventFilter, error) {
	var f types.EventFilter

	if raw := c.Query("pid"); raw != "" {
		pid, err := strconv.Atoi(raw)
		if err != nil {
			return f, errors.New("invalid pid")
		}
		f.PID = &pid
	}
	if raw := c.Query("type"); raw != "" {
		mt := types.MessageType(raw)
		if !mt.Valid() {
			return f, errors.New("invalid type")
		}
		f.MessageType = &mt
	}
	if raw := c.Query("status"); raw != "" {
		st := types.Status(raw)
		if !st.Valid() {
			return f, errors.New("invalid status")
		}
		f.Status = &st
	}
	if raw := c.Query("startTime"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return f, errors.New("invalid startTime")
		}
		f.Start = &t
	}
	if raw := c.Query("endTime"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return f, errors.New("invalid endTime")
		}
		f.End = &t
	}
	return f, nil
}
