package httpapi

import (
	"embed"
	"io/fs"
	"net/http"
)

//go:embed static/*
var widgetAssets embed.FS

// newStaticHandler serves the demo widget page uncached.
func newStaticHandler() http.Handler {
	sub, err := fs.Sub(widgetAssets, "static")
	if err != nil {
		return http.NotFoundHandler()
	}
	files := http.FileServer(http.FS(sub))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store")
		files.ServeHTTP(w, r)
	})
}
