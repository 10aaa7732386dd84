package http

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"path"
	"time"

	"mahjong/scoring"

	"github.com/dustin/go-humanize"
	"github.com/gorilla/csrf"
	"go.uber.org/zap"
)

//go:embed templates/*.html
var templateFS embed.FS

const layoutFile = "templates/layout.html"

// view is the data every page template receives.
type view struct {
	Title     string
	CSRFField template.HTML
	Error     string
	Data      any
}

type renderer struct {
	pages  map[string]*template.Template
	logger *zap.Logger
}

var templateFuncs = template.FuncMap{
	"ago":     humanize.Time,
	"ordinal": humanize.Ordinal,
	"comma":   func(n int) string { return humanize.Comma(int64(n)) },
	"signed":  signedPoints,
	"stamp":   func(t time.Time) string { return t.Local().Format("2006-01-02 15:04") },
	"field":   scoreField,
	"inc":     func(i int) int { return i + 1 },
}

func signedPoints(p scoring.Points) string {
	if p > 0 {
		return "+" + p.String()
	}
	return p.String()
}

func newRenderer(logger *zap.Logger) (*renderer, error) {
	files, err := fs.Glob(templateFS, "templates/*.html")
	if err != nil {
		return nil, err
	}

	pages := make(map[string]*template.Template, len(files))
	for _, file := range files {
		if file == layoutFile {
			continue
		}
		t, err := template.New(path.Base(file)).Funcs(templateFuncs).ParseFS(templateFS, layoutFile, file)
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", file, err)
		}
		pages[path.Base(file)] = t
	}
	return &renderer{pages: pages, logger: logger}, nil
}

// render executes page into a buffer first so a template error never leaves a
// half-written response.
func (rd *renderer) render(w http.ResponseWriter, r *http.Request, status int, page string, v view) {
	t, ok := rd.pages[page]
	if !ok {
		rd.logger.Error("unknown template", zap.String("page", page))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	v.CSRFField = csrf.TemplateField(r)
	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", v); err != nil {
		rd.logger.Error("failed to render template",
			zap.String("page", page),
			zap.String("request_id", GetRequestID(r.Context())),
			zap.Error(err),
		)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if _, err := buf.WriteTo(w); err != nil {
		rd.logger.Debug("failed to write response", zap.Error(err))
	}
}
