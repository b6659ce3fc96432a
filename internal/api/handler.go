package api

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mr1hm/go-accident-alerts/internal/config"
	"github.com/mr1hm/go-accident-alerts/internal/ledger"
	"github.com/mr1hm/go-accident-alerts/internal/models"
	"github.com/mr1hm/go-accident-alerts/internal/repository"
	"github.com/mr1hm/go-accident-alerts/internal/view"
)

const maxAlertBytes = 1 << 20

// Ledger is the part of the ledger the HTTP surface needs.
type Ledger interface {
	Ingest(payload models.Alert) (ledger.Receipt, error)
	Snapshot() []models.Alert
}

type Handler struct {
	ledger  Ledger
	archive repository.Archive
	mapCfg  config.MapConfig
}

// NewHandler wires the HTTP surface. archive may be nil when archiving is
// disabled.
func NewHandler(l Ledger, archive repository.Archive, mapCfg config.MapConfig) *Handler {
	return &Handler{
		ledger:  l,
		archive: archive,
		mapCfg:  mapCfg,
	}
}

// RegisterRoutes mounts every route. ingestMiddleware runs in front of
// POST /alert only.
func (h *Handler) RegisterRoutes(r *gin.Engine, ingestMiddleware ...gin.HandlerFunc) {
	r.POST("/alert", append(ingestMiddleware, h.ingest)...)
	r.GET("/alerts", h.snapshot)

	r.GET("/api/summary", h.summary)
	r.GET("/api/alerts/map", h.alertsMap)
	r.GET("/api/archive", h.listArchive)
	r.GET("/api/config/map", h.mapConfig)

	r.GET("/health", h.health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

func (h *Handler) ingest(c *gin.Context) {
	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxAlertBytes))
	if err != nil {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "alert body too large"})
		return
	}

	payload, err := models.DecodeAlert(body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	receipt, err := h.ledger.Ingest(payload)
	switch {
	case errors.Is(err, ledger.ErrInvalidSeverity):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	case errors.Is(err, ledger.ErrClosed):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "ledger is shutting down"})
		return
	case err != nil:
		slog.Error("failed to ingest alert", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to ingest alert"})
		return
	}

	c.JSON(http.StatusOK, receipt)
}

func (h *Handler) snapshot(c *gin.Context) {
	c.JSON(http.StatusOK, h.ledger.Snapshot())
}

func (h *Handler) summary(c *gin.Context) {
	filter, err := view.ParseFilter(c.Query("severity"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, view.Build(h.ledger.Snapshot(), filter, time.Now()))
}

func (h *Handler) alertsMap(c *gin.Context) {
	fc := toGeoJSON(view.MapMarkers(h.ledger.Snapshot()))
	c.Header("Content-Type", "application/geo+json")
	c.JSON(http.StatusOK, fc)
}

func (h *Handler) listArchive(c *gin.Context) {
	if h.archive == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "archive is disabled"})
		return
	}

	filter := repository.Filter{
		Limit: 100, // Default to 100 records if limit param not supplied
	}
	if s := c.Query("severity"); s != "" {
		if _, ok := models.ParseSeverity(s); !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "severity must be one of High, Medium, Low"})
			return
		}
		filter.Severity = s
	}
	if s := c.Query("since"); s != "" {
		if t, err := time.Parse(time.RFC3339, s); err == nil {
			filter.Since = &t
		}
	}
	if l := c.Query("limit"); l != "" {
		if lim, err := strconv.Atoi(l); err == nil && lim > 0 && lim <= 1000 {
			filter.Limit = lim
		}
	}

	records, err := h.archive.List(c.Request.Context(), filter)
	if err != nil {
		slog.Error("failed to list archive", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "failed to fetch archived alerts",
		})
		return
	}
	c.JSON(http.StatusOK, records)
}

func (h *Handler) mapConfig(c *gin.Context) {
	c.JSON(http.StatusOK, h.mapCfg)
}

func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
