// Package server wires the HTTP API: routing, middleware and the handlers in
// apihandlers.
package server

import (
	"fmt"
	"net/http"

	httpLogger "github.com/chi-middleware/logrus-logger"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/jwtauth/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/riandyrn/otelchi"

	"github.com/veilpii/veil/internal"
	"github.com/veilpii/veil/pkg/auth"
	"github.com/veilpii/veil/pkg/models"
	"github.com/veilpii/veil/pkg/server/apihandlers"
)

var log = internal.GetLogger()

// Create creates a new HTTP server with the given app state
func Create(appState *models.AppState) (*http.Server, error) {
	router, err := setupRouter(appState)
	if err != nil {
		return nil, err
	}
	cfg := appState.Config.Server
	return &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}, nil
}

// @title						Veil REST API
// @version					0.x
// @BasePath					/api/v1
// @schemes					http https
// @securityDefinitions.apikey	Bearer
// @in							header
// @name						Authorization
// @description				Type "Bearer" followed by a space and JWT token.
func setupRouter(appState *models.AppState) (*chi.Mux, error) {
	cfg := appState.Config

	router := chi.NewRouter()
	router.Use(httpLogger.Logger("router", log))
	router.Use(middleware.Recoverer)
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(SendVersion)
	router.Use(ApplyCustomHeaders(cfg.Server.CustomHeaders))
	router.Use(middleware.Heartbeat("/healthz"))
	if cfg.Telemetry.Enabled {
		router.Use(otelchi.Middleware(
			cfg.Telemetry.ServiceName,
			otelchi.WithChiRoutes(router),
			otelchi.WithRequestMethodInSpanName(true),
		))
	}

	router.Handle("/metrics", promhttp.Handler())

	var verifier func(http.Handler) http.Handler
	if cfg.Auth.Required {
		var err error
		if verifier, err = auth.JWTVerifier(cfg); err != nil {
			return nil, err
		}
		log.Info("JWT authentication required")
	}

	router.Route("/api/v1", func(r chi.Router) {
		if cfg.Server.MaxRequestSize > 0 {
			r.Use(middleware.RequestSize(cfg.Server.MaxRequestSize))
		}
		if verifier != nil {
			r.Use(verifier)
			r.Use(jwtauth.Authenticator)
		}

		// Analysis routes
		r.Post("/analyze", apihandlers.AnalyzeHandler(appState))
		r.Post("/analyze/batch", apihandlers.BatchAnalyzeHandler(appState))
		r.Post("/analyze/dict", apihandlers.DictAnalyzeHandler(appState))
		r.Post("/anonymize", apihandlers.AnonymizeHandler(appState))
		r.Post("/deanonymize", apihandlers.DeanonymizeHandler(appState))
		r.Get("/anonymizers", apihandlers.AnonymizersHandler(appState))
		r.Get("/deanonymizers", apihandlers.DeanonymizersHandler(appState))
		r.Post("/redact", apihandlers.RedactHandler(appState))

		// Recognizer routes
		r.Get("/supportedentities", apihandlers.SupportedEntitiesHandler(appState))
		r.Route("/recognizers", func(r chi.Router) {
			r.Get("/", apihandlers.ListRecognizersHandler(appState))
			if appState.RecognizerStore == nil {
				return
			}
			r.Route("/store", func(r chi.Router) {
				r.Get("/", apihandlers.ListStoredRecognizersHandler(appState))
				r.Post("/", apihandlers.CreateStoredRecognizerHandler(appState))
				r.Route("/{recognizerId}", func(r chi.Router) {
					r.Get("/", apihandlers.GetStoredRecognizerHandler(appState))
					r.Put("/", apihandlers.UpdateStoredRecognizerHandler(appState))
					r.Delete("/", apihandlers.DeleteStoredRecognizerHandler(appState))
				})
			})
		})

		// Background job routes
		r.Route("/jobs", func(r chi.Router) {
			r.Post("/", apihandlers.CreateJobHandler(appState))
			r.Get("/{jobId}", apihandlers.GetJobHandler(appState))
		})
	})

	return router, nil
}
