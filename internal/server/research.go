package server

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/pouria-abbasi/mediascout/internal/index"
	"github.com/pouria-abbasi/mediascout/internal/research"
	"github.com/pouria-abbasi/mediascout/internal/store"
	"github.com/pouria-abbasi/mediascout/models"
)

// ResearchHandler exposes the job lifecycle over HTTP.
type ResearchHandler struct {
	Orch    *research.Orchestrator
	Store   *store.Store
	Indexes *index.Manager
}

func (h *ResearchHandler) Register(g *echo.Group) {
	g.POST("", h.create)
	g.GET("/:id", h.status)
	g.POST("/:id/cancel", h.cancel)
	g.GET("/:id/records", h.records)
	g.GET("/:id/search", h.search)
}

// create accepts a topic and starts a job. The response returns as soon as
// the job row exists; the pipeline runs in the background.
func (h *ResearchHandler) create(c echo.Context) error {
	var req struct {
		Topic      string   `json:"topic"`
		MediaTypes []string `json:"media_types"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	req.Topic = strings.TrimSpace(req.Topic)
	if req.Topic == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "topic required")
	}

	var mediaTypes []models.MediaType
	for _, raw := range req.MediaTypes {
		mt, ok := models.ParseMediaType(raw)
		if !ok {
			return echo.NewHTTPError(http.StatusBadRequest, "unknown media type: "+raw)
		}
		mediaTypes = append(mediaTypes, mt)
	}

	job, err := h.Orch.StartResearch(c.Request().Context(), req.Topic, mediaTypes)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusAccepted, map[string]string{
		"job_id": job.ID,
		"status": string(job.Status),
	})
}

// status reports the current job state, preferring the live registry entry
// over the persisted row.
func (h *ResearchHandler) status(c echo.Context) error {
	id := c.Param("id")
	if job, ok := h.Orch.Registry().Get(id); ok {
		return c.JSON(http.StatusOK, job)
	}
	job, found, err := h.Store.GetJob(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if !found {
		return echo.NewHTTPError(http.StatusNotFound, "job not found")
	}
	return c.JSON(http.StatusOK, job)
}

// cancel requests cooperative cancellation. Always 200: the request is a
// flag, and whether the job ends cancelled depends on how far it has run.
func (h *ResearchHandler) cancel(c echo.Context) error {
	id := c.Param("id")
	h.Orch.Registry().RequestCancel(id)
	return c.JSON(http.StatusOK, map[string]string{"job_id": id, "cancellation": "requested"})
}

// records lists a job's persisted records, ranked, optionally filtered by
// media type and limited.
func (h *ResearchHandler) records(c echo.Context) error {
	id := c.Param("id")

	var mediaType models.MediaType
	if raw := c.QueryParam("media_type"); raw != "" {
		mt, ok := models.ParseMediaType(raw)
		if !ok {
			return echo.NewHTTPError(http.StatusBadRequest, "unknown media type: "+raw)
		}
		mediaType = mt
	}
	limit := 0
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid limit")
		}
		limit = n
	}

	_, found, err := h.Store.GetJob(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if !found {
		return echo.NewHTTPError(http.StatusNotFound, "job not found")
	}

	records, err := h.Store.ListRecords(c.Request().Context(), id, mediaType, limit)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if records == nil {
		records = []models.CanonicalRecord{}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"job_id": id, "records": records})
}

// search queries the in-memory index of a finished job.
func (h *ResearchHandler) search(c echo.Context) error {
	id := c.Param("id")
	q := strings.TrimSpace(c.QueryParam("q"))
	if q == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "q required")
	}
	k := 10
	if raw := c.QueryParam("k"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid k")
		}
		k = n
	}

	hits, ok, err := h.Indexes.Search(id, q, k)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "no index for job (expired or still running)")
	}
	if hits == nil {
		hits = []index.SearchHit{}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"job_id": id, "hits": hits})
}
