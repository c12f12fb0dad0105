package server

import (
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog/log"
)

var templateFuncs = template.FuncMap{
	"comma":    humanize.Comma,
	"reltime":  humanize.Time,
	"duration": formatDuration,
	"title":    titleCase,
}

func formatDuration(ms float64) string {
	return fmt.Sprintf("%sms", humanize.FtoaWithDigits(ms, 2))
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// Renderer holds the parsed page templates. Each page is parsed together
// with the shared layout so {{block}} overrides resolve per page.
type Renderer struct {
	pages map[string]*template.Template
}

// NewRenderer parses every page template under templates/ against the
// shared layout.
func NewRenderer(assets fs.FS) (*Renderer, error) {
	entries, err := fs.ReadDir(assets, "templates/pages")
	if err != nil {
		return nil, fmt.Errorf("server.NewRenderer: %w", err)
	}

	pages := make(map[string]*template.Template, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		tmpl, parseErr := template.New("layout.html").Funcs(templateFuncs).ParseFS(assets,
			"templates/layout.html",
			"templates/partials/*.html",
			"templates/pages/"+name,
		)
		if parseErr != nil {
			return nil, fmt.Errorf("server.NewRenderer: parse %s: %w", name, parseErr)
		}
		pages[strings.TrimSuffix(name, ".html")] = tmpl
	}
	return &Renderer{pages: pages}, nil
}

// HTML renders the named page into the response. Render failures after the
// header is written are logged, not reported.
func (rn *Renderer) HTML(w http.ResponseWriter, status int, page string, data any) {
	tmpl, ok := rn.pages[page]
	if !ok {
		log.Error().Str("page", page).Msg("unknown template")
		http.Error(w, "template not found", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := tmpl.ExecuteTemplate(w, "layout.html", data); err != nil {
		log.Error().Err(err).Str("page", page).Msg("template render")
	}
}

// pageData is the envelope every HTML page receives.
type pageData struct {
	Title   string
	Now     time.Time
	Content any
	Error   string
}

func newPageData(title string, content any) pageData {
	return pageData{Title: title, Now: time.Now(), Content: content}
}
