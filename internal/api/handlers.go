package api

import (
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"github.com/labstack/echo/v4"

	"roadsafety/internal/catalog"
	"roadsafety/internal/dashboard"
	"roadsafety/internal/engine"
	"roadsafety/internal/models"
)

// ErrNotLoaded is returned by every data route until the background load
// has finished.
var ErrNotLoaded = errors.New("data is still loading")

const dashboardKey = "dashboard"

type Handler struct {
	catalog *catalog.Catalog
	events  *broker

	mu      sync.RWMutex
	dash    *dashboard.Dashboard
	loadErr error
	unsub   func()
}

// NewHandler returns a handler with no data. Until SetData or SetError is
// called, data routes answer 503.
func NewHandler(cat *catalog.Catalog) *Handler {
	return &Handler{catalog: cat, events: newBroker()}
}

// SetData makes the loaded dashboard live.
func (h *Handler) SetData(d *dashboard.Dashboard) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.unsub != nil {
		h.unsub()
	}
	h.dash, h.loadErr = d, nil
	h.unsub = d.SubscribeAll(h.events.publish)
}

// SetError records a failed load. Data routes answer 500 with err.
func (h *Handler) SetError(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.loadErr = err
}

// Close disconnects event streams.
func (h *Handler) Close() {
	h.mu.Lock()
	if h.unsub != nil {
		h.unsub()
		h.unsub = nil
	}
	h.mu.Unlock()
	h.events.close()
}

func (h *Handler) state() (*dashboard.Dashboard, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.loadErr != nil {
		return nil, h.loadErr
	}
	if h.dash == nil {
		return nil, ErrNotLoaded
	}
	return h.dash, nil
}

// ready rejects requests until the dashboard is loaded.
func (h *Handler) ready(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		d, err := h.state()
		switch {
		case errors.Is(err, ErrNotLoaded):
			return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
		case err != nil:
			return echo.NewHTTPError(http.StatusInternalServerError, "data load failed: "+err.Error())
		}
		c.Set(dashboardKey, d)
		return next(c)
	}
}

func dash(c echo.Context) *dashboard.Dashboard {
	return c.Get(dashboardKey).(*dashboard.Dashboard)
}

func (h *Handler) RegisterRoutes(e *echo.Echo) {
	api := e.Group("/api")
	api.GET("/status", h.GetStatus)
	api.GET("/attributes", h.GetAttributes)

	data := api.Group("", h.ready)
	data.GET("/records", h.GetRecords)
	data.GET("/export.arrow", h.ExportArrow)

	data.GET("/filter", h.GetFilter)
	data.PUT("/filter", h.PutFilter)
	data.PUT("/filter/countries/:country", h.PutCountry)
	data.DELETE("/filter/countries/:country", h.DeleteCountry)
	data.PUT("/year", h.PutYear)

	data.GET("/charts/:kind", h.GetChart)
	data.PUT("/charts/:kind", h.PutChart)
	data.GET("/charts/:kind/svg", h.GetChartSVG)

	data.GET("/views", h.GetViews)
	data.GET("/views/maps", h.GetMaps)
	data.POST("/views/maps", h.PostMap)
	data.PUT("/views/maps/title", h.PutMapTitle)
	data.PUT("/views/maps/:id", h.PutMap)
	data.DELETE("/views/maps/:id", h.DeleteMap)

	data.POST("/play", h.PostPlay)
	data.DELETE("/play", h.DeletePlay)

	data.GET("/events", h.GetEvents)
	data.POST("/events/:channel", h.PostEvent)
}

// --- HANDLERS ---
func getPaginationParams(c echo.Context, defaultLimit int) (int, int) {
	limit, err := strconv.Atoi(c.QueryParam("limit"))
	if err != nil || limit <= 0 {
		limit = defaultLimit
	}
	offset, err := strconv.Atoi(c.QueryParam("offset"))
	if err != nil || offset < 0 {
		offset = 0
	}
	return limit, offset
}

// listParam reads a comma-separated or repeated query parameter.
func listParam(c echo.Context, name string) []string {
	var out []string
	for _, v := range c.QueryParams()[name] {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

type statusResponse struct {
	State     string `json:"state"`
	Error     string `json:"error,omitempty"`
	Records   int    `json:"records,omitempty"`
	Countries int    `json:"countries,omitempty"`
	MinYear   int    `json:"min_year,omitempty"`
	MaxYear   int    `json:"max_year,omitempty"`
	Playing   bool   `json:"playing"`
}

func (h *Handler) GetStatus(c echo.Context) error {
	d, err := h.state()
	switch {
	case errors.Is(err, ErrNotLoaded):
		return c.JSON(http.StatusOK, statusResponse{State: "loading"})
	case err != nil:
		return c.JSON(http.StatusOK, statusResponse{State: "failed", Error: err.Error()})
	}
	lo, hi := d.YearRange()
	return c.JSON(http.StatusOK, statusResponse{
		State:     "ready",
		Records:   len(d.Store().Records),
		Countries: len(d.Store().Countries()),
		MinYear:   lo,
		MaxYear:   hi,
		Playing:   d.Playing(),
	})
}

func (h *Handler) GetAttributes(c echo.Context) error {
	return c.JSON(http.StatusOK, h.catalog.Descriptors())
}

// Row identity fields accepted in ?attrs= next to attribute codes.
const (
	fieldCountry = "country"
	fieldYear    = "year"
)

// recordSelection reads the country and attribute projection shared by
// /records and /export.arrow.
func (h *Handler) recordSelection(c echo.Context) ([]models.Record, []string, error) {
	attrs := listParam(c, "attrs")
	for _, a := range attrs {
		if a == fieldCountry || a == fieldYear {
			continue
		}
		if err := h.catalog.Validate(a); err != nil {
			return nil, nil, httpError(err)
		}
	}
	sel := models.FilterSelection{Countries: listParam(c, "country")}
	if len(sel.Countries) == 0 {
		sel.Countries = []string{models.ShowAll}
	}
	return dash(c).Store().Select(sel), attrs, nil
}

func (h *Handler) GetRecords(c echo.Context) error {
	records, attrs, err := h.recordSelection(c)
	if err != nil {
		return err
	}
	if len(attrs) == 0 {
		attrs = append([]string{fieldCountry, fieldYear}, models.AttributeCodes...)
	}
	rows := engine.FilterData(records, attrs)
	total := len(rows)
	limit, offset := getPaginationParams(c, total)

	if offset >= total {
		return c.JSON(http.StatusOK, map[string]interface{}{
			"data": []map[string]any{}, "total": total, "limit": limit, "offset": offset,
		})
	}

	end := offset + limit
	if end > total {
		end = total
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"data":   rows[offset:end],
		"total":  total,
		"limit":  limit,
		"offset": offset,
	})
}

func (h *Handler) ExportArrow(c echo.Context) error {
	records, attrs, err := h.recordSelection(c)
	if err != nil {
		return err
	}
	// country and year are always the first two columns
	cols := attrs[:0:0]
	for _, a := range attrs {
		if a != fieldCountry && a != fieldYear {
			cols = append(cols, a)
		}
	}
	c.Response().Header().Set(echo.HeaderContentType, "application/vnd.apache.arrow.stream")
	c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="road_safety.arrow"`)
	c.Response().WriteHeader(http.StatusOK)
	return engine.WriteArrow(c.Response(), records, cols)
}

func (h *Handler) GetFilter(c echo.Context) error {
	return c.JSON(http.StatusOK, dash(c).Selection())
}

type filterRequest struct {
	Countries  []string           `json:"countries"`
	Attribute  *string            `json:"attribute"`
	Year       *int               `json:"year"`
	MetricPair *models.MetricPair `json:"metric_pair"`
}

// PutFilter applies the fields present in the body. Fields are applied in
// order and the first invalid one stops the request.
func (h *Handler) PutFilter(c echo.Context) error {
	var req filterRequest
	if err := c.Bind(&req); err != nil {
		return err
	}
	d := dash(c)
	if req.Countries != nil {
		if _, err := d.SetCountries(req.Countries); err != nil {
			return httpError(err)
		}
	}
	if req.Attribute != nil {
		if _, err := d.SetAttribute(*req.Attribute); err != nil {
			return httpError(err)
		}
	}
	if req.Year != nil {
		if _, err := d.SetYear(*req.Year); err != nil {
			return httpError(err)
		}
	}
	if req.MetricPair != nil {
		if _, err := d.SetMetricPair(*req.MetricPair); err != nil {
			return httpError(err)
		}
	}
	return c.JSON(http.StatusOK, d.Selection())
}

func countryParam(c echo.Context) (string, error) {
	country, err := url.PathUnescape(c.Param("country"))
	if err != nil {
		return "", echo.NewHTTPError(http.StatusBadRequest, "bad country name")
	}
	return country, nil
}

func (h *Handler) PutCountry(c echo.Context) error {
	return h.toggle(c, true)
}

func (h *Handler) DeleteCountry(c echo.Context) error {
	return h.toggle(c, false)
}

func (h *Handler) toggle(c echo.Context, checked bool) error {
	country, err := countryParam(c)
	if err != nil {
		return err
	}
	sel, err := dash(c).ToggleCountry(country, checked)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, sel)
}

func (h *Handler) PutYear(c echo.Context) error {
	var req struct {
		Year *int `json:"year"`
	}
	if err := c.Bind(&req); err != nil {
		return err
	}
	if req.Year == nil {
		return echo.NewHTTPError(http.StatusBadRequest, "year is required")
	}
	sel, err := dash(c).SetYear(*req.Year)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, sel)
}
