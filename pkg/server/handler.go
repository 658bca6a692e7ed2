package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/mikeboe/researchify/pkg/chat"
	"github.com/mikeboe/researchify/pkg/extract"
	"github.com/mikeboe/researchify/pkg/localdocs"
	"github.com/mikeboe/researchify/pkg/research"
)

type Handler struct {
	Service *Service
	Chat    *chat.Service
	MCP     http.Handler
}

// NewHandler wires the HTTP API. chatSvc may be nil when no Gemini key is
// configured; the chat routes then answer 503.
func NewHandler(s *Service, chatSvc *chat.Service) *Handler {
	return &Handler{Service: s, Chat: chatSvc, MCP: NewMCPHandler(s)}
}

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.Any("/mcp", gin.WrapH(h.MCP))
	api := r.Group("/api")
	{
		api.POST("/sessions", h.createSession)
		api.DELETE("/sessions/:id", h.deleteSession)
		api.POST("/sessions/:id/documents", h.uploadDocuments)

		api.POST("/report", h.generateReport)

		api.POST("/research", h.createJob)
		api.GET("/research", h.listJobs)
		api.GET("/research/:id", h.getJob)
		api.GET("/research/:id/logs", h.getJobLogs)

		// Chat Routes
		api.POST("/chat/conversations", h.createConversation)
		api.GET("/chat/conversations", h.listConversations)
		api.GET("/chat/conversations/:id/messages", h.getMessages)
		api.POST("/chat/conversations/:id/messages", h.sendMessage)
	}
}

// errorStatus maps domain errors to HTTP status codes.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, research.ErrEmptyTopic):
		return http.StatusBadRequest
	case errors.Is(err, research.ErrNoResults):
		return http.StatusUnprocessableEntity
	case errors.Is(err, localdocs.ErrSessionNotFound),
		errors.Is(err, ErrJobNotFound),
		errors.Is(err, chat.ErrConversationNotFound):
		return http.StatusNotFound
	case errors.Is(err, localdocs.ErrNotReady):
		return http.StatusConflict
	case errors.Is(err, extract.ErrUnsupported):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, ErrNoEmbedder):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeError(c *gin.Context, err error) {
	c.JSON(errorStatus(err), gin.H{"error": err.Error()})
}

func (h *Handler) createSession(c *gin.Context) {
	id, err := h.Service.CreateSession(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": id})
}

func (h *Handler) deleteSession(c *gin.Context) {
	if err := h.Service.DeleteSession(c.Request.Context(), c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) uploadDocuments(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	files := form.File["files"]
	if len(files) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no files uploaded"})
		return
	}

	ocr, _ := strconv.ParseBool(c.PostForm("ocr"))

	uploads := make([]localdocs.Upload, 0, len(files))
	for _, fh := range files {
		f, err := fh.Open()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		uploads = append(uploads, localdocs.Upload{Name: fh.Filename, Data: data})
	}

	res, err := h.Service.IngestDocuments(c.Request.Context(), c.Param("id"), uploads, ocr)
	if err != nil {
		if res != nil {
			c.JSON(errorStatus(err), gin.H{"error": err.Error(), "files": res.Files})
			return
		}
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) generateReport(c *gin.Context) {
	var req ReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	report, err := h.Service.GenerateReport(c.Request.Context(), req)
	if err != nil {
		if errors.Is(err, research.ErrNoResults) {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": research.FailureMessage})
			return
		}
		writeError(c, err)
		return
	}

	warnings := report.Warnings
	if warnings == nil {
		warnings = []string{}
	}
	c.JSON(http.StatusOK, gin.H{
		"report":   report.Markdown,
		"sources":  report.Sources,
		"warnings": warnings,
		"model":    report.Model,
	})
}

func (h *Handler) chatAvailable(c *gin.Context) bool {
	if h.Chat == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "chat is not configured"})
		return false
	}
	return true
}

func (h *Handler) createConversation(c *gin.Context) {
	if !h.chatAvailable(c) {
		return
	}
	conv, err := h.Chat.CreateConversation(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, conv)
}

func (h *Handler) listConversations(c *gin.Context) {
	if !h.chatAvailable(c) {
		return
	}
	convs, err := h.Chat.ListConversations(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	if convs == nil {
		convs = []chat.Conversation{}
	}
	c.JSON(http.StatusOK, convs)
}

func (h *Handler) getMessages(c *gin.Context) {
	if !h.chatAvailable(c) {
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid uuid"})
		return
	}

	msgs, err := h.Chat.GetHistory(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	if msgs == nil {
		msgs = []chat.Message{}
	}
	c.JSON(http.StatusOK, msgs)
}

func (h *Handler) sendMessage(c *gin.Context) {
	if !h.chatAvailable(c) {
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid uuid"})
		return
	}

	var req struct {
		Content   string `json:"content" binding:"required"`
		SessionID string `json:"session_id,omitempty"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	lib, err := h.Service.library(req.SessionID)
	if err != nil {
		writeError(c, err)
		return
	}

	next, err := h.Chat.SendMessage(c.Request.Context(), id, req.Content, lib)
	if err != nil {
		writeError(c, err)
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("Transfer-Encoding", "chunked")

	for event, err := range next {
		if err != nil {
			writeSSE(c, chat.StreamEvent{Type: "error", Payload: err.Error()})
			return
		}
		if !writeSSE(c, event) {
			return
		}
	}
}

func writeSSE(c *gin.Context, event chat.StreamEvent) bool {
	data, err := json.Marshal(event)
	if err != nil {
		return false
	}
	if _, err := fmt.Fprintf(c.Writer, "data: %s\n\n", data); err != nil {
		return false
	}
	c.Writer.Flush()
	return true
}

func (h *Handler) createJob(c *gin.Context) {
	var req CreateJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	job, err := h.Service.CreateJob(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, job)
}

func (h *Handler) listJobs(c *gin.Context) {
	jobs, err := h.Service.ListJobs(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	// Return empty list instead of null
	if jobs == nil {
		jobs = []Job{}
	}
	c.JSON(http.StatusOK, jobs)
}

func (h *Handler) getJob(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid uuid"})
		return
	}

	job, err := h.Service.GetJob(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, job)
}

func (h *Handler) getJobLogs(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid uuid"})
		return
	}

	logs, err := h.Service.GetJobLogs(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}

	if logs == nil {
		logs = []LogEntry{}
	}
	c.JSON(http.StatusOK, logs)
}
