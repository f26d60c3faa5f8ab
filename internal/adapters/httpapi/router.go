package httpapi

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type RouterOptions struct {
	CORSOrigins []string
	// Maintenance mounts the bulk delete/clear endpoints.
	Maintenance bool
	Logger      *slog.Logger
}

// NewRouter constructs the API HTTP router.
func NewRouter(s *Server, opts RouterOptions) http.Handler {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	origins := opts.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(Observe(log))
	r.Use(middleware.Recoverer)
	r.Use(CORS(origins))

	// Infra endpoints.
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Post("/register", s.Register)
		r.Post("/login", s.Login)

		r.Route("/users", func(r chi.Router) {
			if opts.Maintenance {
				r.Delete("/clear-booked-rides", s.ClearBookedRides)
			}
			r.Get("/{id}", s.GetUser)
			r.Put("/{id}", s.UpdateUser)
			r.Post("/{id}/book-ride", s.BookRide)
			r.Delete("/{id}/cancel-ride/{rideId}", s.CancelRide)
			r.Post("/{id}/offer-ride", s.OfferRide)
			r.Delete("/{id}/cancel-offered-ride/{rideId}", s.CancelOfferedRide)
		})

		r.Route("/rides", func(r chi.Router) {
			r.Post("/", s.CreateRide)
			r.Get("/", s.ListRides)
			if opts.Maintenance {
				r.Delete("/all", s.DeleteAllRides)
			}
			r.Get("/{id}", s.GetRide)
			r.Get("/{id}/driver", s.GetRideDriver)
		})
	})

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		writeError(w, req, http.StatusNotFound, "NOT_FOUND", "route not found", nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		writeError(w, req, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed", nil)
	})
	return r
}
