// Package api exposes the persisted catalogs, snapshot, histories and run
// journal over HTTP.
package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/rewired-gh/vegprice/internal/logger"
	"github.com/rewired-gh/vegprice/internal/models"
	"github.com/rewired-gh/vegprice/internal/provider"
	"github.com/rewired-gh/vegprice/internal/storage"
	"github.com/rewired-gh/vegprice/internal/vfpck"
)

const (
	defaultRunLimit = 20
	maxRunLimit     = 200
)

// RunLister reads the run journal.
type RunLister interface {
	RecentRuns(limit int) ([]models.Run, error)
	GetRun(id string) (*models.Run, error)
}

// Handler serves the read endpoints. Runs may be nil when no journal is
// configured.
type Handler struct {
	Provider provider.Provider
	Runs     RunLister
}

// NewHandler creates a Handler.
func NewHandler(p provider.Provider, runs RunLister) *Handler {
	return &Handler{Provider: p, Runs: runs}
}

// RegisterRoutes mounts the read endpoints on rg, normally /veg.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/markets", h.catalog(models.CatalogMarkets, "Markets listed successfully"))
	rg.GET("/items", h.catalog(models.CatalogItems, "Vegetables and Fruits listed successfully"))
	rg.GET("/live", h.live)
	rg.GET("/prices/:item", h.priceForItem)             // ?market=
	rg.GET("/markets/:market/prices", h.priceForMarket) // ?item=
	rg.GET("/history/:item", h.history)
	rg.GET("/runs", h.runs) // ?limit=
	rg.GET("/runs/:id", h.run)
}

func (h *Handler) catalog(kind models.CatalogKind, message string) gin.HandlerFunc {
	return func(c *gin.Context) {
		cat, err := h.Provider.Catalog(c.Request.Context(), kind)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"data":    cat.Data,
			"date":    cat.Date,
			"message": message,
		})
	}
}

func (h *Handler) live(c *gin.Context) {
	snap, err := h.Provider.LiveSnapshot(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (h *Handler) priceForItem(c *gin.Context) {
	resp, err := h.Provider.PriceFor(c.Request.Context(), c.Param("item"), c.Query("market"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) priceForMarket(c *gin.Context) {
	resp, err := h.Provider.PriceForMarket(c.Request.Context(), c.Param("market"), c.Query("item"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) history(c *gin.Context) {
	ledger, err := h.Provider.History(c.Request.Context(), c.Param("item"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, ledger)
}

func (h *Handler) runs(c *gin.Context) {
	if h.Runs == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "run journal not configured"})
		return
	}
	limit := parseInt(c.Query("limit"), defaultRunLimit)
	if limit <= 0 || limit > maxRunLimit {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be between 1 and " + strconv.Itoa(maxRunLimit)})
		return
	}
	runs, err := h.Runs.RecentRuns(limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs, "limit": limit})
}

func (h *Handler) run(c *gin.Context) {
	if h.Runs == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "run journal not configured"})
		return
	}
	run, err := h.Runs.GetRun(c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, run)
}

// writeError maps domain errors to status codes.
func writeError(c *gin.Context, err error) {
	var statusErr *vfpck.StatusError
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, storage.ErrCatalogMissing), errors.Is(err, storage.ErrLiveMissing):
		status = http.StatusServiceUnavailable
	case errors.Is(err, provider.ErrNotFound), errors.Is(err, storage.ErrLedgerMissing),
		errors.Is(err, storage.ErrRunNotFound):
		status = http.StatusNotFound
	case errors.As(err, &statusErr):
		status = http.StatusBadGateway
	}
	if status == http.StatusInternalServerError {
		logger.Error("%s %s failed: %v", c.Request.Method, c.Request.URL.Path, err)
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func parseInt(s string, def int) int {
	if strings.TrimSpace(s) == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return -1
	}
	return n
}
