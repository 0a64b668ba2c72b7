package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	httpSwagger "github.com/swaggo/http-swagger/v2"

	_ "github.com/thebigby10/sugarvoice-backend/docs"
	"github.com/thebigby10/sugarvoice-backend/internal/api"
	"github.com/thebigby10/sugarvoice-backend/internal/api/auth"
	"github.com/thebigby10/sugarvoice-backend/internal/api/glucose"
)

const banner = "Sugarvoice backend running."

// Config contains dependencies needed for the router setup
type Config struct {
	AuthHandler            *auth.AuthHandler
	GlucoseHandler         *glucose.HandlerImpl
	AuthenticateMiddleware func(http.Handler) http.Handler
	AllowedOrigins         []string
}

// SetupRouter initializes and configures the main application router.
// Server-wide middleware (like logger, requestID, recoverer) are expected
// to be applied before mounting this router in main.go.
func SetupRouter(cfg *Config) chi.Router {
	r := chi.NewRouter()

	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"Link", "WWW-Authenticate"},
		AllowCredentials: !containsWildcard(origins),
		MaxAge:           300,
	}))

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		api.WriteJSONResponse(w, r, http.StatusOK, banner)
	})

	r.Get("/ping", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("pong"))
	})

	r.Get("/swagger/*", httpSwagger.Handler(httpSwagger.URL("/swagger/doc.json")))

	// Public auth routes
	r.Group(func(r chi.Router) {
		r.Post("/auth/register", cfg.AuthHandler.Register)
		r.Post("/auth/token", cfg.AuthHandler.Login)
	})

	// Everything below requires a bearer token
	r.Group(func(r chi.Router) {
		r.Use(cfg.AuthenticateMiddleware)

		r.Get("/auth/me", cfg.AuthHandler.Me)
		r.Put("/auth/me", cfg.AuthHandler.UpdateMe)
		r.Get("/protected-service", cfg.AuthHandler.ProtectedService)

		r.Route("/glucose", func(r chi.Router) {
			r.Post("/", cfg.GlucoseHandler.CreateReading)
			r.Get("/", cfg.GlucoseHandler.ListReadings)
			r.Post("/glucose", cfg.GlucoseHandler.QuickCreateReading)
		r.Post("/glucose/", cfg.GlucoseHandler.QuickCreateReading)
			r.Get("/{readingID}", cfg.GlucoseHandler.GetReading)
			r.Put("/{readingID}", cfg.GlucoseHandler.UpdateReading)
			r.Delete("/{readingID}", cfg.GlucoseHandler.DeleteReading)
		})
	})

	return r
}

// cors forbids credentials together with a wildcard origin.
func containsWildcard(origins []string) bool {
	for _, o := range origins {
		if o == "*" {
			return true
		}
	}
	return false
}
