package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/kmankuan/ChiPiLink-sub010/internal/dispatch"
	"github.com/kmankuan/ChiPiLink-sub010/internal/history"
)

// JobQueue is the slice of the dispatcher the handlers need.
type JobQueue interface {
	Pending() []dispatch.Descriptor
	TriggerManual(ctx context.Context, jobID string) error
}

// HistorySource yields recent resolved attempts, newest first.
type HistorySource interface {
	Recent(ctx context.Context, limit int) ([]history.Record, error)
}

type PendingJobResponse struct {
	JobID      string `json:"job_id"`
	OrderCount int    `json:"order_count"`
	Source     string `json:"source"`
}

type TriggerPrintResponse struct {
	JobID   string `json:"job_id"`
	Started bool   `json:"started"`
}

type HistoryResponse struct {
	Attempts []history.Record `json:"attempts"`
}

// JobHandler exposes the manual print queue to operators: listing jobs that
// wait for a human decision, triggering a print, and reviewing past attempts.
type JobHandler struct {
	dispatcher JobQueue
	store      HistorySource
}

func NewJobHandler(dispatcher JobQueue, store HistorySource) *JobHandler {
	return &JobHandler{dispatcher: dispatcher, store: store}
}

func (h *JobHandler) ListPending(c *gin.Context) {
	pending := h.dispatcher.Pending()

	out := make([]PendingJobResponse, 0, len(pending))
	for _, desc := range pending {
		out = append(out, PendingJobResponse{
			JobID:      desc.JobID,
			OrderCount: desc.OrderCount,
			Source:     desc.Source,
		})
	}

	c.JSON(http.StatusOK, gin.H{"jobs": out})
}

func (h *JobHandler) TriggerPrint(c *gin.Context) {
	jobID := c.Param("id")
	if jobID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "job id is required"})
		return
	}

	if err := h.dispatcher.TriggerManual(c.Request.Context(), jobID); err != nil {
		switch {
		case errors.Is(err, dispatch.ErrJobNotPending):
			c.JSON(http.StatusNotFound, gin.H{"error": "job is not pending manual print"})
		case errors.Is(err, dispatch.ErrShuttingDown):
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "agent is shutting down"})
		default:
			c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		}
		return
	}

	c.JSON(http.StatusAccepted, TriggerPrintResponse{JobID: jobID, Started: true})
}

func (h *JobHandler) ListHistory(c *gin.Context) {
	limit := 50
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = n
	}

	records, err := h.store.Recent(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load history"})
		return
	}
	if records == nil {
		records = []history.Record{}
	}

	c.JSON(http.StatusOK, HistoryResponse{Attempts: records})
}
