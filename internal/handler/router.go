package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	custommiddleware "github.com/mmeshcher/votos-system/internal/middleware"
	"github.com/mmeshcher/votos-system/internal/service"
)

// SetupRouter настраивает HTTP-маршруты и middleware сервиса.
func (h *Handler) SetupRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(custommiddleware.GzipMiddleware)
	r.Use(custommiddleware.Logger(h.logger))
	r.Use(custommiddleware.Metrics(h.metrics))

	r.Method(http.MethodGet, "/metrics", h.metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/signup", h.SignUp)
			r.Post("/login", h.Login)
			r.Post("/logout", h.Logout)
		})

		r.Group(func(r chi.Router) {
			r.Use(h.sessions.Middleware)

			r.Get("/me", h.gate(service.RequireMember, h.Me))
			r.Get("/dashboard", h.gate(service.RequireActive, h.Dashboard))

			r.Route("/miembros", func(r chi.Router) {
				r.Get("/", h.gate(service.RequireActive, h.ListMembers))
				r.Post("/", h.gate(service.RequireActive, h.CreateMember))
				r.Post("/{id}/aprobar", h.gate(service.RequireAdmin, h.ApproveMember))
				r.Post("/{id}/rechazar", h.gate(service.RequireAdmin, h.RejectMember))
			})

			r.Route("/votos", func(r chi.Router) {
				r.Get("/", h.gate(service.RequireActive, h.ListPledges))
				r.Post("/", h.gate(service.RequireActive, h.CreatePledge))
				r.Get("/{id}", h.gate(service.RequireActive, h.GetPledge))
				r.Post("/{id}/pagos", h.gate(service.RequireActive, h.RecordPayment))
				r.Post("/{id}/completar", h.gate(service.RequireActive, h.CompletePledge))
				r.Post("/{id}/cancelar", h.gate(service.RequireAdmin, h.CancelPledge))
			})
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
	})

	return r
}
