package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/IliaW/jamaah-scrape-worker/internal/model"
	"github.com/IliaW/jamaah-scrape-worker/internal/registry"
	"github.com/gin-gonic/gin"
)

type SnapshotCache interface {
	Get(ctx context.Context, date time.Time) (*model.DailySnapshot, bool, error)
	Current() *model.DailySnapshot
	Today() time.Time
}

type Handler struct {
	cache    SnapshotCache
	registry *registry.Registry
	loc      *time.Location
	version  string
	log      *slog.Logger
}

func NewHandler(cache SnapshotCache, reg *registry.Registry, loc *time.Location, version string,
	log *slog.Logger) *Handler {
	return &Handler{cache: cache, registry: reg, loc: loc, version: version, log: log}
}

type snapshotResponse struct {
	Date      string               `json:"date"`
	FromCache bool                 `json:"fromCache"`
	Data      []model.MosqueResult `json:"data"`
}

type statusResponse struct {
	Status    string     `json:"status"`
	Date      string     `json:"date"`
	UpdatedAt *time.Time `json:"updatedAt"`
	Version   string     `json:"version"`
}

type errorResponse struct {
	Error string `json:"error"`
}

const usage = `Kent mosque jamaah times

GET /api/kent-mosques            today's jamaah and jummah times for every mosque
GET /api/kent-mosques?date=YYYY-MM-DD
GET /api/mosques                 the mosques being scraped
GET /api/status                  service status and last update
`

func (h *Handler) Usage(c *gin.Context) {
	c.String(http.StatusOK, usage)
}

// KentMosques serves the snapshot for ?date (today when absent). Every registered mosque is in
// data, with empty times when its source yielded nothing.
func (h *Handler) KentMosques(c *gin.Context) {
	date := h.cache.Today()
	if raw := c.Query("date"); raw != "" {
		d, err := time.ParseInLocation(model.DateLayout, raw, h.loc)
		if err != nil {
			c.JSON(http.StatusBadRequest, errorResponse{Error: "date must be YYYY-MM-DD"})
			return
		}
		date = d
	}

	snapshot, fromCache, err := h.cache.Get(c.Request.Context(), date)
	if err != nil {
		h.log.Error("failed to get snapshot.", slog.String("date", date.Format(model.DateLayout)),
			slog.String("err", err.Error()))
		c.JSON(http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}

	data := snapshot.Results
	if data == nil {
		data = []model.MosqueResult{}
	}
	c.JSON(http.StatusOK, snapshotResponse{
		Date:      snapshot.Date,
		FromCache: fromCache,
		Data:      data,
	})
}

func (h *Handler) Status(c *gin.Context) {
	resp := statusResponse{
		Status:  "ok",
		Date:    h.cache.Today().Format(model.DateLayout),
		Version: h.version,
	}
	if current := h.cache.Current(); current != nil {
		updatedAt := current.UpdatedAt
		resp.UpdatedAt = &updatedAt
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) Mosques(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"mosques": h.registry.All()})
}
