package web

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/kozaktomas/shop-kiosk/internal/web/handlers"
)

func (s *Server) setupRoutes() {
	// Create handlers
	healthHandler := handlers.NewHealthHandler(s.deps.Gateway)
	customersHandler := handlers.NewCustomersHandler(s.deps.Manager, s.logger)
	detectHandler := handlers.NewDetectHandler(s.deps.Detector, s.deps.Manager)
	recordsHandler := handlers.NewRecordsHandler()
	inventoryHandler := handlers.NewInventoryHandler(s.deps.Describer, s.deps.Hub, s.logger)

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", healthHandler.Check)

		// The event stream is long-lived and stays outside the request timeout.
		if s.deps.Hub != nil {
			r.Get("/events", handlers.NewEventsHandler(s.deps.Hub).Stream)
		}

		r.Group(func(r chi.Router) {
			r.Use(chiMiddleware.Timeout(requestTimeout))

			// Customers and visits
			r.Get("/customers", customersHandler.List)
			r.Post("/customers", customersHandler.Create)
			r.Get("/customers/{id}", customersHandler.Get)
			r.Put("/customers/{id}", customersHandler.Rename)
			r.Delete("/customers/{id}", customersHandler.Delete)
			r.Post("/customers/{id}/check-in", customersHandler.CheckIn)
			r.Post("/customers/{id}/check-out", customersHandler.CheckOut)

			// Camera frames and one-click actions
			if s.deps.Detector != nil {
				r.Post("/detect", detectHandler.Detect)
			} else {
				r.Post("/detect", recognitionDisabled)
			}
			r.Post("/detect/check-in", detectHandler.CheckInLast)
			r.Post("/detect/register", detectHandler.RegisterLast)

			// Past records
			r.Get("/records", recordsHandler.List)

			// Inventory
			r.Get("/inventory", inventoryHandler.List)
			r.Post("/inventory", inventoryHandler.Create)
			r.Get("/inventory/{code}", inventoryHandler.Get)
			r.Put("/inventory/{code}", inventoryHandler.Update)
			r.Delete("/inventory/{code}", inventoryHandler.Delete)
			r.Get("/inventory/{code}/image", inventoryHandler.Image)
			r.Post("/inventory/{code}/describe", inventoryHandler.Describe)
		})
	})
}

func recognitionDisabled(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusServiceUnavailable)
	w.Write([]byte(`{"error":"face recognition is not configured"}` + "\n"))
}
