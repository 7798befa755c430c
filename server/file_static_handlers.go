package server

import (
	"embed"
	"fmt"
	"io/fs"
	"mime"
	"net/http"
	"path"
	"strings"
)

//go:embed static/*
var staticFiles embed.FS

// staticFS is rooted at static/, so "css/dashboard.css" names static/css/dashboard.css
var staticFS = mustSub(staticFiles, "static")

func mustSub(fsys fs.FS, dir string) fs.FS {
	sub, err := fs.Sub(fsys, dir)
	if err != nil {
		panic("Failed to create " + dir + " sub filesystem: " + err.Error())
	}
	return sub
}

// StreamFile writes one embedded asset with a content type derived from its extension
func StreamFile(w http.ResponseWriter, fileName string) error {
	if !fs.ValidPath(fileName) {
		return fmt.Errorf("invalid asset path %q", fileName)
	}
	data, err := fs.ReadFile(staticFS, fileName)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", fileName, err)
	}

	ctype := mime.TypeByExtension(strings.ToLower(path.Ext(fileName)))
	if ctype == "" {
		ctype = http.DetectContentType(data)
	}
	if strings.HasPrefix(ctype, "text/") && !strings.Contains(strings.ToLower(ctype), "charset=") {
		ctype += "; charset=utf-8"
	}
	w.Header().Set("Content-Type", ctype)
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to write %s content: %w", fileName, err)
	}
	return nil
}
