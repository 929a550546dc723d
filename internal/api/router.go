/**
 * @description
 * This file sets up the HTTP router for the registry-service. It defines the API
 * endpoints, associates them with their corresponding handlers, and applies any
 * necessary middleware, such as for authentication.
 *
 * @dependencies
 * - net/http: Standard Go library for HTTP functionality.
 * - github.com/go-chi/chi/v5: A lightweight and idiomatic router for Go.
 */

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// RegistryRoutes creates and returns a new router for the registry service.
func RegistryRoutes(h *RegistryHandlers, jwtSigningSecret, internalAPIKey string) http.Handler {
	r := chi.NewRouter()

	// Add standard middleware for logging, panic recovery, and timeouts.
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("healthy"))
	})

	// Group routes that require client authentication.
	r.Group(func(r chi.Router) {
		r.Use(JWTAuthMiddleware(jwtSigningSecret))

		// Property endpoints
		r.Post("/properties", h.RegisterPropertyHandler)
		r.Get("/properties", h.ListPropertiesHandler)
		r.Get("/properties/{matriculaID}", h.GetPropertyHandler)
		r.Post("/properties/{matriculaID}/freeze", h.FreezePropertyHandler)
		r.Post("/properties/{matriculaID}/unfreeze", h.UnfreezePropertyHandler)
		r.Post("/properties/{matriculaID}/approvals/{role}", h.ForwardRegistrationApprovalHandler)

		// Transfer endpoints
		r.Post("/transfers", h.InitiateTransferHandler)
		r.Get("/transfers", h.ListTransfersHandler)
		r.Get("/transfers/{transferID}", h.GetTransferHandler)
		r.Get("/transfers/{transferID}/approvals", h.ListTransferApprovalsHandler)
		r.Post("/transfers/{transferID}/approve", h.ApproveTransferHandler)
		r.Post("/transfers/{transferID}/accept", h.AcceptTransferHandler)
	})

	// Group routes reserved for the ledger worker.
	r.Group(func(r chi.Router) {
		r.Use(InternalAPIKeyMiddleware(internalAPIKey))

		r.Patch("/webhooks/ledger/properties/{matriculaID}", h.LedgerRegistrationWebhookHandler)
		r.Post("/webhooks/ledger/properties/transferred", h.LedgerPropertyTransferredWebhookHandler)
		r.Post("/webhooks/ledger/transfers/{transferID}/configured", h.LedgerTransferConfiguredWebhookHandler)
		r.Post("/webhooks/ledger/transfers/{transferID}/completed", h.LedgerTransferCompletedWebhookHandler)
	})

	return r
}
