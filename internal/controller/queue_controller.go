// internal/controller/queue_controller.go
package controller

import (
	"fmt"
	"net/http"

	"github.com/wanzami/mailblast-backend/internal/queue"
	"github.com/wanzami/mailblast-backend/internal/service"
)

type QueueController struct {
	Aggregator *service.StatusAggregator
	Processor  *service.Processor
	Queue      queue.Queue
}

// Status serves the UI poller with per-campaign in-flight counts and global
// terminal totals.
func (c *QueueController) Status(w http.ResponseWriter, r *http.Request) {
	status, err := c.Aggregator.Status(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to fetch queue status")
		return
	}
	writeJSON(w, http.StatusOK, status)
}

// ProcessNow runs one pull-mode batch pass, for deployments without a
// standing worker process.
func (c *QueueController) ProcessNow(w http.ResponseWriter, r *http.Request) {
	summary, err := c.Processor.ProcessBatch(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	message := "no jobs to process"
	if summary.Processed > 0 {
		message = fmt.Sprintf("sent %d emails", summary.Sent)
		if summary.Failed > 0 {
			message = fmt.Sprintf("sent %d emails, %d failed", summary.Sent, summary.Failed)
		}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"processed": summary.Processed,
		"sent":      summary.Sent,
		"failed":    summary.Failed,
		"message":   message,
	})
}

// ClearFailed purges terminal jobs from the queue. The delivery ledger is
// untouched, so cleared failures stay eligible for re-dispatch.
func (c *QueueController) ClearFailed(w http.ResponseWriter, r *http.Request) {
	removed, err := c.Queue.Clean(r.Context(), []string{queue.StateFailed, queue.StateCompleted})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to clear jobs")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": fmt.Sprintf("cleared %d failed and completed jobs", removed),
	})
}
