package api

import (
	"bytes"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"roadsafety/internal/dashboard"
	"roadsafety/internal/models"
	"roadsafety/internal/render"
)

// choroplethParams reads ?attr= and ?year=, defaulting to the current
// selection.
func choroplethParams(c echo.Context, d *dashboard.Dashboard) (string, int, error) {
	sel := d.Selection()
	attr, year := sel.Attribute, sel.Year
	if a := c.QueryParam("attr"); a != "" {
		attr = a
	}
	if y := c.QueryParam("year"); y != "" {
		n, err := strconv.Atoi(y)
		if err != nil {
			return "", 0, echo.NewHTTPError(http.StatusBadRequest, "year must be an integer")
		}
		year = n
	}
	return attr, year, nil
}

func (h *Handler) chart(c echo.Context, d *dashboard.Dashboard) (interface{}, error) {
	data := d.Data()
	switch c.Param("kind") {
	case "heatmap":
		return data.Heatmap, nil
	case "dual":
		return data.Dual, nil
	case "scatter":
		return data.Scatter, nil
	case "bidirectional":
		return data.Bidirectional, nil
	case "lines":
		return data.Lines, nil
	case "choropleth":
		attr, year, err := choroplethParams(c, d)
		if err != nil {
			return nil, err
		}
		m, err := d.Choropleth(attr, year)
		if err != nil {
			return nil, httpError(err)
		}
		return m, nil
	}
	return nil, echo.NewHTTPError(http.StatusNotFound, "unknown chart "+strconv.Quote(c.Param("kind")))
}

func (h *Handler) GetChart(c echo.Context) error {
	v, err := h.chart(c, dash(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, v)
}

type chartRequest struct {
	X       string `json:"x"`
	Y       string `json:"y"`
	Country string `json:"country"`
}

// PutChart changes the parameters of the charts that have them: the scatter
// axes and the line chart's country.
func (h *Handler) PutChart(c echo.Context) error {
	var req chartRequest
	if err := c.Bind(&req); err != nil {
		return err
	}
	d := dash(c)
	switch c.Param("kind") {
	case "scatter":
		if err := d.SetScatterAxes(req.X, req.Y); err != nil {
			return httpError(err)
		}
		return c.JSON(http.StatusOK, d.Data().Scatter)
	case "lines":
		if err := d.SetLineCountry(req.Country); err != nil {
			return httpError(err)
		}
		return c.JSON(http.StatusOK, d.Data().Lines)
	}
	return echo.NewHTTPError(http.StatusMethodNotAllowed, c.Param("kind")+" has no parameters")
}

// GetChartSVG renders a static snapshot of a chart.
func (h *Handler) GetChartSVG(c echo.Context) error {
	d := dash(c)
	v, err := h.chart(c, d)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	switch v := v.(type) {
	case *models.LinesData:
		err = render.Line(&buf, v, d.Catalog())
	case *models.ScatterData:
		err = render.Scatter(&buf, v, d.Catalog())
	case *models.DualData:
		err = render.Bars(&buf, d.Catalog().Label(v.BarKey), render.DualBars(v))
	case *models.BidirectionalData:
		err = render.Bars(&buf, v.LeftLabel+" / "+v.RightLabel, render.DivergingBars(v))
	case *models.HeatmapData:
		err = render.Bars(&buf, v.Label, render.HeatmapBars(v))
	case *models.ChoroplethData:
		err = render.Bars(&buf, d.Catalog().Label(v.Attribute)+" "+strconv.Itoa(v.Year), render.ChoroplethBars(v))
	}
	if err != nil {
		return httpError(err)
	}
	return c.Blob(http.StatusOK, "image/svg+xml", buf.Bytes())
}

type viewsResponse struct {
	Title  string      `json:"title"`
	Frames interface{} `json:"frames"`
}

func (h *Handler) GetViews(c echo.Context) error {
	d := dash(c)
	return c.JSON(http.StatusOK, viewsResponse{Title: d.MapTitle(), Frames: d.Frames()})
}

func (h *Handler) GetMaps(c echo.Context) error {
	d := dash(c)
	return c.JSON(http.StatusOK, viewsResponse{Title: d.MapTitle(), Frames: d.MapFrames()})
}

func (h *Handler) PostMap(c echo.Context) error {
	f, err := dash(c).AddMap()
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, f)
}

func (h *Handler) PutMap(c echo.Context) error {
	var req struct {
		Attribute string `json:"attribute"`
	}
	if err := c.Bind(&req); err != nil {
		return err
	}
	f, err := dash(c).SetMapAttribute(c.Param("id"), req.Attribute)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, f)
}

func (h *Handler) DeleteMap(c echo.Context) error {
	if err := dash(c).DeleteMap(c.Param("id")); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) PutMapTitle(c echo.Context) error {
	var req struct {
		Title string `json:"title"`
	}
	if err := c.Bind(&req); err != nil {
		return err
	}
	d := dash(c)
	d.SetMapTitle(req.Title)
	return c.JSON(http.StatusOK, map[string]string{"title": d.MapTitle()})
}

func (h *Handler) PostPlay(c echo.Context) error {
	d := dash(c)
	if err := d.Play(); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusAccepted, map[string]interface{}{"playing": d.Playing(), "year": d.Selection().Year})
}

func (h *Handler) DeletePlay(c echo.Context) error {
	dash(c).StopPlayback()
	return c.NoContent(http.StatusNoContent)
}
