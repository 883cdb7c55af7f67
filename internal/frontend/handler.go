package frontend

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Dependencies holds everything the HTTP handlers need
type Dependencies struct {
	Logger    *slog.Logger
	Publisher *Publisher
}

// JobHandler handles job-related HTTP requests
type JobHandler struct {
	logger    *slog.Logger
	publisher *Publisher
}

// NewJobHandler creates a new JobHandler instance
func NewJobHandler(deps *Dependencies) *JobHandler {
	return &JobHandler{
		logger:    deps.Logger,
		publisher: deps.Publisher,
	}
}

// SubmitJobRequest is the body of POST /api/v1/jobs
type SubmitJobRequest struct {
	JobType     string                 `json:"job_type" binding:"required"`
	Body        map[string]interface{} `json:"body" binding:"required"`
	Destination string                 `json:"destination" binding:"required"`
}

// SubmitCommandRequest is the body of POST /api/v1/commands
type SubmitCommandRequest struct {
	Command     string `json:"command" binding:"required"`
	Destination string `json:"destination" binding:"required"`
}

// SubmitJob handles POST /api/v1/jobs
// Publishes a job request for asynchronous processing
func (h *JobHandler) SubmitJob(c *gin.Context) {
	var req SubmitJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid request body", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request body",
		})
		return
	}

	if err := h.publisher.PublishJob(c.Request.Context(), req.JobType, req.Body, req.Destination); err != nil {
		h.logger.Error("Failed to publish job", slog.String("error", err.Error()))
		c.JSON(http.StatusBadGateway, gin.H{
			"error": "Failed to queue job",
		})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"job_type":    req.JobType,
		"destination": req.Destination,
		"status":      "QUEUED",
	})
}

// SubmitCommand handles POST /api/v1/commands
// Parses a chat command and publishes the resulting job request
func (h *JobHandler) SubmitCommand(c *gin.Context) {
	var req SubmitCommandRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid request body", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request body",
		})
		return
	}

	cmd, err := ParseCommand(req.Command)
	if err != nil {
		h.logger.Error("Failed to parse command", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": err.Error(),
		})
		return
	}

	if err := h.publisher.PublishJob(c.Request.Context(), cmd.JobType, cmd.Body, req.Destination); err != nil {
		h.logger.Error("Failed to publish job", slog.String("error", err.Error()))
		c.JSON(http.StatusBadGateway, gin.H{
			"error": "Failed to queue job",
		})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"job_type":    cmd.JobType,
		"body":        cmd.Body,
		"destination": req.Destination,
		"status":      "QUEUED",
	})
}
