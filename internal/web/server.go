package web

import (
	"embed"
	"errors"
	"html/template"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/samvad-hq/samvad-news-desk/internal/controller"
	"github.com/samvad-hq/samvad-news-desk/internal/logger"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

const maxQueryLength = 500

// Controller is the part of the query controller the web surface drives.
type Controller interface {
	SetQuery(q string)
	Refresh() error
	Snapshot() controller.Snapshot
}

// Options configures the router.
type Options struct {
	Controller Controller
	Log        logger.Logger
	// Observer records request metrics; optional.
	Observer HTTPObserver
	// Metrics is served on /metrics when set.
	Metrics http.Handler
}

type queryRequest struct {
	Query *string `json:"query"`
}

type handler struct {
	ctrl Controller
}

// NewRouter builds the gin engine serving the desk UI and its JSON API.
func NewRouter(opts Options) (*gin.Engine, error) {
	if opts.Controller == nil {
		return nil, errors.New("web controller must not be nil")
	}
	tmpl, err := template.ParseFS(templateFS, "templates/*.tmpl")
	if err != nil {
		return nil, err
	}

	r := gin.New()
	r.SetHTMLTemplate(tmpl)
	r.Use(gin.Recovery(), requestID(), accessLog(logger.OrNop(opts.Log)))
	if opts.Observer != nil {
		r.Use(instrument(opts.Observer))
	}

	h := &handler{ctrl: opts.Controller}
	r.GET("/", h.index)
	r.GET("/cards", h.cards)
	r.GET("/healthz", h.health)
	if opts.Metrics != nil {
		r.GET("/metrics", gin.WrapH(opts.Metrics))
	}

	api := r.Group("/api")
	{
		api.GET("/state", h.state)
		api.POST("/query", h.setQuery)
		api.POST("/refresh", h.refresh)
	}
	return r, nil
}

func (h *handler) index(c *gin.Context) {
	c.HTML(http.StatusOK, "index", newPageView(h.ctrl.Snapshot()))
}

func (h *handler) cards(c *gin.Context) {
	c.Header("Cache-Control", "no-store")
	c.HTML(http.StatusOK, "cards", newPageView(h.ctrl.Snapshot()))
}

func (h *handler) state(c *gin.Context) {
	c.Header("Cache-Control", "no-store")
	c.JSON(http.StatusOK, h.ctrl.Snapshot())
}

func (h *handler) setQuery(c *gin.Context) {
	var req queryRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Query == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "body must be a JSON object with a query string"})
		return
	}
	q := strings.TrimSpace(*req.Query)
	if len(q) > maxQueryLength {
		c.JSON(http.StatusBadRequest, gin.H{"error": "query too long"})
		return
	}
	if h.ctrl.Snapshot().Disposed {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": controller.ErrDisposed.Error()})
		return
	}
	h.ctrl.SetQuery(q)
	c.JSON(http.StatusAccepted, gin.H{"query": q})
}

func (h *handler) refresh(c *gin.Context) {
	if err := h.ctrl.Refresh(); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, controller.ErrDisposed) {
			status = http.StatusServiceUnavailable
		}
		_ = c.Error(err)
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "refreshing"})
}

func (h *handler) health(c *gin.Context) {
	s := h.ctrl.Snapshot()
	if s.Disposed {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "stopping"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "fetch_status": s.Status.String()})
}
