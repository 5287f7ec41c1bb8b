package router

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/clinicore/clinic-portal/internal/appointments"
	"github.com/clinicore/clinic-portal/internal/checkout"
	httpmiddleware "github.com/clinicore/clinic-portal/internal/http/middleware"
	"github.com/clinicore/clinic-portal/internal/identity"
	"github.com/clinicore/clinic-portal/internal/navigation"
	"github.com/clinicore/clinic-portal/internal/notes"
	"github.com/clinicore/clinic-portal/internal/waittimes"
	"github.com/clinicore/clinic-portal/pkg/logging"
)

// Config holds router configuration.
type Config struct {
	Logger              *logging.Logger
	NavigationHandler   *navigation.Handler
	AppointmentsHandler *appointments.Handler
	NotesHandler        *notes.Handler
	CheckoutHandler     *checkout.Handler
	WaitTimesHandler    *waittimes.Handler
	MetricsHandler      http.Handler
	JWTSecret           string
	CORSAllowedOrigins  []string
}

// New creates the portal router with all routes configured.
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	// Public endpoints
	r.Group(func(public chi.Router) {
		public.Get("/health", handleHealth)
		if cfg.MetricsHandler != nil {
			public.Handle("/metrics", cfg.MetricsHandler)
		}
	})

	// Authenticated portal surface
	r.Group(func(portal chi.Router) {
		portal.Use(httpmiddleware.PortalJWT(cfg.JWTSecret))

		if cfg.NavigationHandler != nil {
			portal.Get("/navigation", cfg.NavigationHandler.GetMenu)
		}
		if cfg.AppointmentsHandler != nil {
			portal.Route("/appointments", cfg.AppointmentsHandler.Routes)
		}
		if cfg.NotesHandler != nil {
			portal.With(httpmiddleware.RequireRole(
				identity.RoleAdmin, identity.RolePhysician, identity.RoleNurse,
			)).Route("/notes", cfg.NotesHandler.Routes)
		}
		if cfg.CheckoutHandler != nil {
			portal.With(httpmiddleware.RequireRole(
				identity.RoleAdmin, identity.RoleBilling, identity.RoleReceptionist,
			)).Route("/payments/checkout", cfg.CheckoutHandler.Routes)
		}
		if cfg.WaitTimesHandler != nil {
			portal.Get("/wait-times", cfg.WaitTimesHandler.GetReport)
		}
	})

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
