// Package server exposes the demo HTTP surface over a loaded RevIndex:
// upload a signature, get the gather decomposition back. Best-effort; the
// CLI is the supported interface.
package server

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/luizirber/greyhound/internal/index"
	"github.com/luizirber/greyhound/internal/sketch"
)

type handler struct {
	// revindex is shared read-only across requests.
	revindex *index.RevIndex
}

// New wires the demo routes over a loaded index.
func New(revindex *index.RevIndex) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())

	h := &handler{revindex: revindex}
	e.POST("/gather", h.gather)
	e.GET("/stats", h.stats)
	e.GET("/healthz", h.healthz)
	return e
}

// gather accepts a raw signature body, selects the template-compatible
// sketch, and returns the gather results as a JSON array.
func (h *handler) gather(c echo.Context) error {
	sketches, err := sketch.FromReader(c.Request().Body)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "unable to parse signature")
	}

	query := sketch.Select(sketches, h.revindex.Template())
	if query == nil {
		tmpl := h.revindex.Template()
		return echo.NewHTTPError(http.StatusBadRequest,
			"signature has no sketch for k="+strconv.FormatUint(uint64(tmpl.Ksize), 10)+
				" scaled="+strconv.FormatUint(tmpl.Scaled, 10))
	}

	counter := h.revindex.CounterForQuery(query)
	results, err := h.revindex.Gather(counter, 0, query)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if results == nil {
		results = []index.GatherResult{}
	}
	return c.JSON(http.StatusOK, results)
}

// stats lists reference paths whose whole-index hash count is at least the
// given threshold (default 1), most-covered first.
func (h *handler) stats(c echo.Context) error {
	threshold := uint64(1)
	if raw := c.QueryParam("threshold"); raw != "" {
		parsed, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid threshold")
		}
		threshold = parsed
	}

	matches, err := h.revindex.Search(h.revindex.Counter(), false, threshold)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if matches == nil {
		matches = []string{}
	}
	return c.JSON(http.StatusOK, matches)
}

func (h *handler) healthz(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]int{
		"datasets": h.revindex.Datasets(),
		"hashes":   h.revindex.DistinctHashes(),
	})
}
