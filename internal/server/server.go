// Package server exposes the question answering service over HTTP.
package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"lawrag/internal/domain"
	"lawrag/internal/metrics"
	"lawrag/internal/service"
	"lawrag/internal/session"
)

const (
	msgInvalidRequest = "请求格式不正确，请提供问题内容。"
	msgRetrieval      = "抱歉，检索相关法律条文时出现问题，请稍后重试。"
	msgNotFound       = "会话不存在或已结束。"
)

// QA is the service surface the handlers need.
type QA interface {
	Ask(ctx context.Context, req service.Request) (service.Response, error)
	AskInSession(ctx context.Context, sess *session.Session, req service.Request) (service.Response, error)
	IndexInfo() domain.CollectionInfo
}

// Handler serves the HTTP API.
type Handler struct {
	qa       QA
	sessions *session.Registry
	metrics  *metrics.Metrics
	log      zerolog.Logger
}

func NewHandler(qa QA, sessions *session.Registry, m *metrics.Metrics, log zerolog.Logger) *Handler {
	return &Handler{qa: qa, sessions: sessions, metrics: m, log: log}
}

// Router builds the gin engine with every route registered.
func (h *Handler) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), h.observe())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(h.metrics.Handler()))

	api := r.Group("/api")
	api.POST("/ask", h.Ask)
	api.GET("/index", h.IndexInfo)
	api.POST("/sessions", h.CreateSession)
	api.GET("/sessions/:id", h.GetSession)
	api.POST("/sessions/:id/ask", h.AskInSession)
	api.DELETE("/sessions/:id", h.DeleteSession)
	return r
}

// observe records metrics and a log line per request.
func (h *Handler) observe() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()
		duration := time.Since(start)
		h.metrics.RecordHTTPRequest(c.Request.Method, route, strconv.Itoa(status), duration)
		h.log.Info().
			Str("method", c.Request.Method).
			Str("route", route).
			Int("status", status).
			Dur("duration_ms", duration).
			Msg("http request completed")
	}
}

type askRequest struct {
	Question   string `json:"question" binding:"required"`
	ShowSource *bool  `json:"show_source"`
}

func (r askRequest) toService() service.Request {
	show := true
	if r.ShowSource != nil {
		show = *r.ShowSource
	}
	return service.Request{Question: r.Question, ShowSource: show}
}

func fail(c *gin.Context, status int, code, message string) {
	c.JSON(status, gin.H{
		"success": false,
		"error": gin.H{
			"code":    code,
			"message": message,
		},
	})
}

// Ask handles POST /api/ask
func (h *Handler) Ask(c *gin.Context) {
	var req askRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "INVALID_REQUEST", msgInvalidRequest)
		return
	}
	resp, err := h.qa.Ask(c.Request.Context(), req.toService())
	if err != nil {
		h.askFailed(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) askFailed(c *gin.Context, err error) {
	if errors.Is(err, service.ErrEmptyQuestion) {
		fail(c, http.StatusBadRequest, "INVALID_REQUEST", msgInvalidRequest)
		return
	}
	h.log.Error().Err(err).Msg("question failed")
	fail(c, http.StatusInternalServerError, "RETRIEVAL_FAILED", msgRetrieval)
}

// IndexInfo handles GET /api/index
func (h *Handler) IndexInfo(c *gin.Context) {
	c.JSON(http.StatusOK, h.qa.IndexInfo())
}

type sessionView struct {
	ID        string         `json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	Turns     []session.Turn `json:"turns"`
}

func viewOf(s *session.Session) sessionView {
	return sessionView{ID: s.ID, CreatedAt: s.CreatedAt, Turns: s.Turns()}
}

// CreateSession handles POST /api/sessions
func (h *Handler) CreateSession(c *gin.Context) {
	s := h.sessions.Create()
	h.metrics.SessionsActive.Set(float64(h.sessions.Len()))
	c.JSON(http.StatusCreated, viewOf(s))
}

// GetSession handles GET /api/sessions/:id
func (h *Handler) GetSession(c *gin.Context) {
	var view sessionView
	err := h.sessions.With(c.Param("id"), func(s *session.Session) error {
		view = viewOf(s)
		return nil
	})
	if err != nil {
		fail(c, http.StatusNotFound, "SESSION_NOT_FOUND", msgNotFound)
		return
	}
	c.JSON(http.StatusOK, view)
}

// AskInSession handles POST /api/sessions/:id/ask
func (h *Handler) AskInSession(c *gin.Context) {
	var req askRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "INVALID_REQUEST", msgInvalidRequest)
		return
	}
	var resp service.Response
	var askErr error
	err := h.sessions.With(c.Param("id"), func(s *session.Session) error {
		resp, askErr = h.qa.AskInSession(c.Request.Context(), s, req.toService())
		return nil
	})
	if err != nil {
		fail(c, http.StatusNotFound, "SESSION_NOT_FOUND", msgNotFound)
		return
	}
	if askErr != nil {
		h.askFailed(c, askErr)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// DeleteSession handles DELETE /api/sessions/:id
func (h *Handler) DeleteSession(c *gin.Context) {
	if err := h.sessions.Delete(c.Param("id")); err != nil {
		fail(c, http.StatusNotFound, "SESSION_NOT_FOUND", msgNotFound)
		return
	}
	h.metrics.SessionsActive.Set(float64(h.sessions.Len()))
	c.Status(http.StatusNoContent)
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func Run(ctx context.Context, addr string, handler http.Handler, log zerolog.Logger) error {
	srv := &http.Server{Addr: addr, Handler: handler, ReadHeaderTimeout: 10 * time.Second}
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("event", "server_start").Str("addr", addr).Msg("lawrag server starting")
		errCh <- srv.ListenAndServe()
	}()
	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		log.Info().Str("event", "server_shutdown").Msg("lawrag server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
