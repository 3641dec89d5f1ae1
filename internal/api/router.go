/**
 * @description
 * This file sets up the HTTP router for the transfer-service. It defines the
 * API endpoints, associates them with their corresponding handlers, and
 * applies middleware for logging, panic recovery, timeouts, CORS and
 * authentication.
 *
 * @dependencies
 * - net/http: Standard Go library for HTTP functionality.
 * - github.com/go-chi/chi/v5: A lightweight and idiomatic router for Go.
 * - github.com/go-chi/cors: CORS middleware.
 */

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// Routes creates and returns the router for the transfer service.
func Routes(h *Handlers, jwtSecret string) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("healthy"))
	})

	// Group routes that require authentication.
	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(jwtSecret))

		r.Post("/account", h.OpenAccountHandler)
		r.Post("/transaction/transfer", h.TransferHandler)
		r.Get("/transaction/history", h.HistoryHandler)
		r.Get("/admin/account/{accountNumber}", h.AdminAccountHandler)
		r.Delete("/admin/account/{accountNumber}", h.AdminDeactivateAccountHandler)
		r.Patch("/admin/account/limit", h.AdminUpdateLimitHandler)
	})

	return r
}
