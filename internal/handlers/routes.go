package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/healthz", h.Health)

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/code", h.RequestCode)
		r.Post("/auth/login", h.Login)

		r.Group(func(r chi.Router) {
			r.Use(h.RequireSession)

			r.Post("/auth/logout", h.Logout)
			r.Get("/jobs", h.ListJobs)
			r.Post("/jobs/{id}/complete", h.CompleteJob)
			r.Get("/sync", h.SyncStatus)

			r.Group(func(r chi.Router) {
				r.Use(h.RequireAdmin)

				r.Get("/customers", h.ListCustomers)
				r.Post("/customers", h.CreateCustomer)
				r.Delete("/customers/{id}", h.DeleteCustomer)
				r.Put("/customers/{id}/key", h.RotateCustomerKey)
				r.Post("/customers/{id}/test", h.TestCustomerConnection)
				r.Get("/customers/{id}/statuses", h.CustomerStatuses)
				r.Get("/customers/{id}/mappings", h.ListMappings)
				r.Post("/customers/{id}/mappings", h.CreateMapping)
				r.Delete("/customers/{id}/mappings/{mappingID}", h.DeleteMapping)

				r.Get("/suppliers", h.ListSuppliers)
				r.Post("/sync/force", h.ForceSync)
				r.Put("/sync/interval", h.SetSyncInterval)
			})
		})
	})
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
