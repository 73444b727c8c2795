package api

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"

	"roadsafety/internal/bus"
	"roadsafety/internal/catalog"
	"roadsafety/internal/config"
	"roadsafety/internal/dashboard"
	"roadsafety/internal/filter"
	"roadsafety/internal/render"
	"roadsafety/internal/view"
)

// NewServer builds the echo instance with middleware and routes.
func NewServer(h *Handler, cfg config.ServerConfig) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.JSONSerializer = jsonSerializer{}

	// Middleware
	e.Use(middleware.Recover())
	e.Use(middleware.Logger())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPut, http.MethodPost, http.MethodDelete},
	}))
	if cfg.RateLimit > 0 {
		e.Use(middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
			Store: middleware.NewRateLimiterMemoryStoreWithConfig(middleware.RateLimiterMemoryStoreConfig{
				Rate:      rate.Limit(cfg.RateLimit),
				Burst:     cfg.RateBurst,
				ExpiresIn: 3 * time.Minute,
			}),
		}))
	}

	h.RegisterRoutes(e)
	return e
}

// httpError maps domain errors to HTTP statuses.
func httpError(err error) error {
	code := http.StatusInternalServerError
	switch {
	case errors.Is(err, catalog.ErrUnknownAttribute),
		errors.Is(err, filter.ErrYearOutOfRange),
		errors.Is(err, filter.ErrUnknownPair),
		errors.Is(err, filter.ErrUnknownCountry),
		errors.Is(err, dashboard.ErrUnknownAxis):
		code = http.StatusBadRequest
	case errors.Is(err, view.ErrUnknownView),
		errors.Is(err, bus.ErrUnknownChannel),
		errors.Is(err, render.ErrNoData):
		code = http.StatusNotFound
	case errors.Is(err, view.ErrLastView):
		code = http.StatusConflict
	case errors.Is(err, dashboard.ErrClosed):
		code = http.StatusServiceUnavailable
	}
	return echo.NewHTTPError(code, err.Error()).SetInternal(err)
}

// jsonSerializer encodes responses and decodes request bodies with goccy/go-json.
type jsonSerializer struct{}

func (jsonSerializer) Serialize(c echo.Context, i interface{}, indent string) error {
	enc := json.NewEncoder(c.Response())
	if indent != "" {
		enc.SetIndent("", indent)
	}
	return enc.Encode(i)
}

func (jsonSerializer) Deserialize(c echo.Context, i interface{}) error {
	err := json.NewDecoder(c.Request().Body).Decode(i)
	var typeErr *json.UnmarshalTypeError
	var syntaxErr *json.SyntaxError
	switch {
	case errors.As(err, &typeErr):
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("Unmarshal type error: expected=%v, got=%v, field=%v, offset=%v", typeErr.Type, typeErr.Value, typeErr.Field, typeErr.Offset)).SetInternal(err)
	case errors.As(err, &syntaxErr):
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("Syntax error: offset=%v, error=%v", syntaxErr.Offset, syntaxErr.Error())).SetInternal(err)
	}
	return err
}
