package handlers

import (
	"html/template"
	"io/fs"
	"net/http"

	"github.com/bobmcallan/dodgy-dave/internal/common"
	"github.com/bobmcallan/dodgy-dave/pages"
)

// PageHandler renders the embedded HTML templates and serves static assets.
type PageHandler struct {
	logger    *common.Logger
	templates *template.Template
	static    http.Handler
	devMode   bool
}

// NewPageHandler parses the page templates and partials.
func NewPageHandler(logger *common.Logger, devMode bool) *PageHandler {
	templates := template.Must(template.ParseFS(pages.FS, "*.html", "partials/*.html"))

	staticFS, err := fs.Sub(pages.FS, "static")
	if err != nil {
		panic(err)
	}

	return &PageHandler{
		logger:    logger,
		templates: templates,
		static:    http.StripPrefix("/static/", http.FileServerFS(staticFS)),
		devMode:   devMode,
	}
}

// Render executes a page template, writing a 500 if it fails.
func (h *PageHandler) Render(w http.ResponseWriter, templateName string, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")

	if err := h.templates.ExecuteTemplate(w, templateName, data); err != nil {
		if h.logger != nil {
			h.logger.Error().Str("template", templateName).Str("error", err.Error()).Msg("failed to render page")
		}
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}

// StaticFileHandler serves files under /static/ from the embedded assets.
func (h *PageHandler) StaticFileHandler(w http.ResponseWriter, r *http.Request) {
	h.static.ServeHTTP(w, r)
}
