package handlers

import (
	"crypto/rand"
	"embed"
	"fmt"
	"html/template"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/sessions"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Brownie44l1/anidex/internal/conf"
	"github.com/Brownie44l1/anidex/internal/logging"
)

//go:embed templates/*.html
var templatesFS embed.FS

// TemplateRenderer is a custom HTML template renderer for Echo framework.
type TemplateRenderer struct {
	templates *template.Template
}

// Render renders a template with the given data.
func (t *TemplateRenderer) Render(w io.Writer, name string, data any, _ echo.Context) error {
	return t.templates.ExecuteTemplate(w, name, data)
}

func newRenderer() (*TemplateRenderer, error) {
	funcs := template.FuncMap{
		"pct": func(v float64) string { return fmt.Sprintf("%.1f", v) },
	}
	tmpl, err := template.New("").Funcs(funcs).ParseFS(templatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}
	return &TemplateRenderer{templates: tmpl}, nil
}

// NewCookieStore returns the signed cookie store that carries session ids.
// An empty secret generates a random key, so sessions do not survive restarts.
func NewCookieStore(secret string, ttl time.Duration) (*sessions.CookieStore, error) {
	key := []byte(secret)
	if secret == "" {
		key = make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			return nil, fmt.Errorf("failed to generate session key: %w", err)
		}
	}
	store := sessions.NewCookieStore(key)
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
	return store, nil
}

// NewServer builds the echo instance with middleware and all routes.
func NewServer(settings conf.ServerSettings, h *Handler, registry *prometheus.Registry) (*echo.Echo, error) {
	renderer, err := newRenderer()
	if err != nil {
		return nil, err
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Renderer = renderer

	log := logging.ForService("http")
	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:      true,
		LogStatus:   true,
		LogRemoteIP: true,
		LogMethod:   true,
		LogLatency:  true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(_ echo.Context, v middleware.RequestLoggerValues) error {
			attrs := []any{"remote_ip", v.RemoteIP, "method", v.Method, "uri", v.URI,
				"status", v.Status, "latency_ms", v.Latency.Milliseconds()}
			if v.Error != nil {
				log.Warn("request", append(attrs, "error", v.Error)...)
			} else {
				log.Debug("request", attrs...)
			}
			return nil
		},
	}))
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: settings.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderContentType},
	}))
	if settings.UploadLimit != "" {
		e.Use(middleware.BodyLimit(settings.UploadLimit))
	}

	h.Register(e)
	if registry != nil {
		e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))
	}
	return e, nil
}

// Register adds the dashboard and API routes to e.
func (h *Handler) Register(e *echo.Echo) {
	e.GET("/", h.Dashboard)
	e.POST("/upload", h.Upload)
	e.POST("/analyze", h.Analyze)
	e.POST("/feedback/confirm", h.Confirm)
	e.POST("/feedback/reject", h.Reject)
	e.POST("/feedback/correct", h.Correct)
	e.GET("/session/image", h.SessionImage)

	e.GET("/health", h.Health)
	e.POST("/predict", h.Predict)
	e.POST("/predict/image", h.PredictFromImage)

	api := e.Group("/api/v1")
	api.GET("/labels", h.Labels)
	api.GET("/pokedex/:label", h.PokedexCard)
	api.GET("/feedback", h.FeedbackList)
	api.GET("/feedback/stats", h.FeedbackStats)
}
