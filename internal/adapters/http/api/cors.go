package api

import "net/http"

const (
	corsAllowMethods = "GET, POST, OPTIONS"
	corsAllowHeaders = "Content-Type, Authorization"
	corsMaxAge       = "600"
)

// CORS adds cross-origin headers for browser clients of /api.
type CORS struct {
	origins string
}

// NewCORS allows the given origin value ("*" for any).
func NewCORS(origins string) *CORS {
	return &CORS{origins: origins}
}

func (c *CORS) setHeaders(h http.Header) {
	h.Set("Access-Control-Allow-Origin", c.origins)
	if c.origins != "*" {
		h.Add("Vary", "Origin")
	}
}

// Wrap sets CORS headers before calling next.
func (c *CORS) Wrap(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c.setHeaders(w.Header())
		next(w, r)
	}
}

// HandlePreflight answers OPTIONS requests.
func (c *CORS) HandlePreflight(w http.ResponseWriter, _ *http.Request) {
	h := w.Header()
	c.setHeaders(h)
	h.Set("Access-Control-Allow-Methods", corsAllowMethods)
	h.Set("Access-Control-Allow-Headers", corsAllowHeaders)
	h.Set("Access-Control-Max-Age", corsMaxAge)
	w.WriteHeader(http.StatusNoContent)
}
