package main

import (
	"embed"
	"html/template"
	"io"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
)

//go:embed templates/*.html
var templateFS embed.FS

// templateRenderer plugs html/template into echo's Render
type templateRenderer struct {
	templates *template.Template
}

func (t *templateRenderer) Render(w io.Writer, name string, data interface{}, c echo.Context) error {
	return t.templates.ExecuteTemplate(w, name, data)
}

// NewServer wires routes and middleware around the knowledge store
func NewServer(store *KnowledgeStore, logger zerolog.Logger, watching bool) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Renderer = &templateRenderer{
		templates: template.Must(template.ParseFS(templateFS, "templates/*.html")),
	}

	h := &handlers{
		store:    store,
		logger:   logger,
		watching: watching,
	}

	// Middleware
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
	e.Use(requestLogger(logger))

	// Routes
	e.GET("/", h.handleIndex)
	e.POST("/get", h.handleGet)
	e.GET("/ws", h.handleWebSocket)
	e.GET("/health", h.handleHealth)

	// Admin endpoints for manual reload
	e.POST("/admin/reload", h.handleReload)
	e.GET("/admin/knowledge-info", h.handleKnowledgeInfo)

	return e
}
