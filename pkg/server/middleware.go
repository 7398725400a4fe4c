package server

import (
	"net/http"
	"os"
	"strings"

	"github.com/veilpii/veil/config"
)

// SendVersion is a middleware that adds the current version to the response
func SendVersion(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if w.Header().Get(config.VersionHeader) == "" {
			w.Header().Set(config.VersionHeader, config.VersionString)
		}
		next.ServeHTTP(w, r)
	})
}

// ApplyCustomHeaders adds the configured headers to every response. A value
// of the form "env:NAME" is read from the environment variable NAME.
func ApplyCustomHeaders(customHeaders map[string]string) func(http.Handler) http.Handler {
	resolved := make(map[string]string, len(customHeaders))
	for key, value := range customHeaders {
		if name, ok := strings.CutPrefix(value, "env:"); ok {
			value = os.Getenv(name)
		}
		resolved[key] = value
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			for key, value := range resolved {
				// route specific handlers may override
				if w.Header().Get(key) == "" {
					w.Header().Set(key, value)
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}
