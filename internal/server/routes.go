package server

import (
	"compress/gzip"
	"net/http"

	"github.com/VladKvetkin/settlement/internal/handler"
	"github.com/VladKvetkin/settlement/internal/middleware"
	"github.com/VladKvetkin/settlement/internal/services/jwttoken"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
)

func (s *Server) setupRoutes(handler *handler.Handler, tokens *jwttoken.Manager) {
	s.setupMiddleware()

	s.mux.Route("/api", func(r chi.Router) {
		r.Route("/events", func(r chi.Router) {
			r.Use(middleware.TriggerAuth(s.config.TriggerToken))

			r.Post("/orders", http.HandlerFunc(handler.OrderCreated))
			r.Post("/users", http.HandlerFunc(handler.UserCreated))
			r.Post("/products", http.HandlerFunc(handler.ProductUpdated))
		})

		r.Route("/user", func(r chi.Router) {
			r.Use(middleware.Auth(tokens))

			r.Get("/balance", http.HandlerFunc(handler.GetBalance))
			r.Get("/orders", http.HandlerFunc(handler.GetOrders))
			r.Get("/feed", http.HandlerFunc(handler.Feed))
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(middleware.Auth(tokens), middleware.RequireRole(jwttoken.RoleAdmin))

			r.Get("/settlements/failures", http.HandlerFunc(handler.GetSettlementFailures))
			r.Get("/orders/{orderID}/settlement", http.HandlerFunc(handler.GetSettlement))
		})
	})
}

func (s *Server) setupMiddleware() {
	s.mux.Use(
		chiMiddleware.RequestID,
		chiMiddleware.Recoverer,
		middleware.Logger,
		chiMiddleware.Compress(gzip.BestCompression, "application/json"),
	)
}
