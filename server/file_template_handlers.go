package server

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
)

//go:embed templates/*
var templateFiles embed.FS

const contentTypeHTML = "text/html; charset=utf-8"

var templateFuncs = template.FuncMap{
	"date": func(t time.Time) string {
		if t.IsZero() {
			return ""
		}
		return t.Format("Jan 2, 2006")
	},
	"datetime": func(t time.Time) string {
		if t.IsZero() {
			return ""
		}
		return t.Format("Jan 2, 2006 15:04")
	},
}

func TemplateFilesFS() fs.FS {
	// Create the sub filesystem once
	subFS, err := fs.Sub(templateFiles, "templates")
	if err != nil {
		panic("Failed to create templates sub filesystem: " + err.Error())
	}
	return subFS
}

// ParseTemplate parses a template from the embedded filesystem
func ParseTemplate(name string) (*template.Template, error) {
	content, err := fs.ReadFile(TemplateFilesFS(), name)
	if err != nil {
		return nil, err
	}
	return template.New(name).Funcs(templateFuncs).Parse(string(content))
}

// layoutPages are rendered inside layout.html, each defines a "content" template
var layoutPages = []string{"dashboard.html", "offers.html", "subscriptions.html", "transaction.html"}

type pageSet struct {
	login       *template.Template
	placeholder *template.Template
	pages       map[string]*template.Template
}

func parsePages() (*pageSet, error) {
	login, err := ParseTemplate("login.html")
	if err != nil {
		return nil, fmt.Errorf("parse login template: %w", err)
	}
	placeholder, err := ParseTemplate("placeholder.html")
	if err != nil {
		return nil, fmt.Errorf("parse placeholder template: %w", err)
	}

	ps := &pageSet{login: login, placeholder: placeholder, pages: make(map[string]*template.Template)}
	for _, name := range layoutPages {
		tmpl, err := template.New("layout.html").Funcs(templateFuncs).ParseFS(TemplateFilesFS(), "layout.html", "cards.html", name)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", name, err)
		}
		ps.pages[name] = tmpl
	}
	return ps, nil
}

func (p *pageSet) render(w http.ResponseWriter, status int, page string, data any) {
	p.execute(w, status, p.pages[page], "layout.html", data)
}

// renderFragment renders a named template of page without the layout (HTMX swaps)
func (p *pageSet) renderFragment(w http.ResponseWriter, page, name string, data any) {
	p.execute(w, http.StatusOK, p.pages[page], name, data)
}

func (p *pageSet) renderLogin(w http.ResponseWriter, data LoginPageData) {
	p.execute(w, http.StatusOK, p.login, "login.html", data)
}

func (p *pageSet) renderPlaceholder(w http.ResponseWriter, r *http.Request, appName string) {
	p.execute(w, http.StatusOK, p.placeholder, "placeholder.html", map[string]any{
		"AppName": appName,
		"Path":    r.URL.RequestURI(),
	})
}

// execute renders into a buffer first so a template error never leaves a half-written page
func (p *pageSet) execute(w http.ResponseWriter, status int, tmpl *template.Template, name string, data any) {
	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, name, data); err != nil {
		log.Err(err).Str("template", name).Msg("Failed to render template")
		http.Error(w, "Failed to render page", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", contentTypeHTML)
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}
