package api

import (
	"net/http"
	"strings"

	"github.com/gin-contrib/static"
	"github.com/gin-gonic/gin"
)

// cacheControlWriter sets Cache-Control from the request path before the first write.
type cacheControlWriter struct {
	http.ResponseWriter
	path        string
	wroteHeader bool
}

func (w *cacheControlWriter) WriteHeader(statusCode int) {
	if !w.wroteHeader {
		w.wroteHeader = true
		w.Header().Set("Cache-Control", cacheControl(w.path))
	}
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *cacheControlWriter) Write(b []byte) (int, error) {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
	return w.ResponseWriter.Write(b)
}

// cacheControl keeps the form page fresh so config or copy changes show up at once.
func cacheControl(path string) string {
	switch {
	case strings.HasPrefix(path, "/assets/"):
		return "public, max-age=31536000, immutable"
	case path == "/" || strings.HasSuffix(path, ".html"):
		return "no-cache, must-revalidate"
	default:
		return "public, max-age=3600, must-revalidate"
	}
}

// ServeForm serves files below dir and falls back to index.html for unknown paths.
// Unknown /api paths stay 404 so clients see a JSON API error rather than HTML.
func ServeForm(dir string) gin.HandlerFunc {
	fs := static.LocalFile(dir, false)
	fileserver := http.FileServer(fs)
	return func(c *gin.Context) {
		path := c.Request.URL.Path
		if strings.HasPrefix(path, "/api/") {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found", "code": "NOT_FOUND"})
			return
		}
		if c.Request.Method != http.MethodGet && c.Request.Method != http.MethodHead {
			c.Status(http.StatusMethodNotAllowed)
			return
		}
		if !fs.Exists("/", path) {
			path = "/"
			c.Request.URL.Path = "/"
		}
		fileserver.ServeHTTP(&cacheControlWriter{ResponseWriter: c.Writer, path: path}, c.Request)
		c.Abort()
	}
}
