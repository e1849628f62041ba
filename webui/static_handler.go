package webui

import (
	"io/fs"
	"mime"
	"net/http"
	"path"
	"path/filepath"
	"strconv"
	"strings"

	"vitals_backend/webui/static"
)

// StaticAssetHandler serves the embedded css and js under Prefix.
type StaticAssetHandler struct {
	fs          fs.FS
	prefix      string
	enableCache bool
	cacheMaxAge int
}

// StaticAssetConfig configures StaticAssetHandler.
type StaticAssetConfig struct {
	// Prefix is the URL path prefix (default: "/static")
	Prefix string

	// EnableCache sets a public Cache-Control max-age on responses
	EnableCache bool

	// CacheMaxAge in seconds (default: 3600)
	CacheMaxAge int
}

// DefaultStaticAssetConfig returns the default configuration.
func DefaultStaticAssetConfig() StaticAssetConfig {
	return StaticAssetConfig{
		Prefix:      "/static",
		EnableCache: true,
		CacheMaxAge: 3600,
	}
}

// NewStaticAssetHandler creates a handler backed by the embedded assets.
func NewStaticAssetHandler(config StaticAssetConfig) *StaticAssetHandler {
	return NewStaticAssetHandlerWithFS(static.GetFS(), config)
}

// NewStaticAssetHandlerWithFS creates a handler backed by fsys. Used in tests.
func NewStaticAssetHandlerWithFS(fsys fs.FS, config StaticAssetConfig) *StaticAssetHandler {
	if config.Prefix == "" {
		config.Prefix = "/static"
	}
	if config.CacheMaxAge == 0 {
		config.CacheMaxAge = 3600
	}
	return &StaticAssetHandler{
		fs:          fsys,
		prefix:      strings.TrimSuffix(config.Prefix, "/"),
		enableCache: config.EnableCache,
		cacheMaxAge: config.CacheMaxAge,
	}
}

// ServeHTTP serves one asset. Directories and the page template are not
// exposed.
func (h *StaticAssetHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}

	name := strings.TrimPrefix(r.URL.Path, h.prefix)
	name = strings.TrimPrefix(path.Clean("/"+name), "/")
	if name == "" || name == "." || name == "index.html" {
		http.NotFound(w, r)
		return
	}

	stat, err := fs.Stat(h.fs, name)
	if err != nil || stat.IsDir() {
		http.NotFound(w, r)
		return
	}

	data, err := fs.ReadFile(h.fs, name)
	if err != nil {
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Content-Type", detectContentType(name))
	if h.enableCache {
		w.Header().Set("Cache-Control", "public, max-age="+strconv.Itoa(h.cacheMaxAge))
	} else {
		w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	}
	w.WriteHeader(http.StatusOK)
	if r.Method == http.MethodGet {
		w.Write(data)
	}
}

// RegisterRoutes mounts the handler on mux under the prefix.
func (h *StaticAssetHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.Handle(h.prefix+"/", h)
}

func detectContentType(filePath string) string {
	ext := strings.ToLower(filepath.Ext(filePath))
	switch ext {
	case ".html", ".htm":
		return "text/html; charset=utf-8"
	case ".css":
		return "text/css; charset=utf-8"
	case ".js":
		return "application/javascript; charset=utf-8"
	case ".json":
		return "application/json; charset=utf-8"
	}
	if ct := mime.TypeByExtension(ext); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
