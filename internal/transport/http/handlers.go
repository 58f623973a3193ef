// Copyright 2026 The Resource-E Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/zcamb1/resource-e/internal/auth"
	"github.com/zcamb1/resource-e/internal/identity"
	"github.com/zcamb1/resource-e/internal/observability/logger"
	"github.com/zcamb1/resource-e/internal/observability/metrics"
	"github.com/zcamb1/resource-e/internal/vault"
)

// Handler holds HTTP handlers and dependencies
type Handler struct {
	identityService  *identity.Service
	bootstrapService *identity.BootstrapService
	vaultService     *vault.Service
	tokens           *auth.TokenAuthority
	gateway          *auth.GatewayGuard
	initSecret       string
	serviceName      string
	version          string
	vaultMetrics     *metrics.VaultMetrics
}

// NewHandler creates a new HTTP handler
func NewHandler(
	identityService *identity.Service,
	bootstrapService *identity.BootstrapService,
	vaultService *vault.Service,
	tokens *auth.TokenAuthority,
	gateway *auth.GatewayGuard,
	initSecret string,
	serviceName string,
	version string,
	vaultMetrics *metrics.VaultMetrics,
) *Handler {
	return &Handler{
		identityService:  identityService,
		bootstrapService: bootstrapService,
		vaultService:     vaultService,
		tokens:           tokens,
		gateway:          gateway,
		initSecret:       initSecret,
		serviceName:      serviceName,
		version:          version,
		vaultMetrics:     vaultMetrics,
	}
}

// NewRouter creates a new HTTP router
func NewRouter(h *Handler, rateLimiter *RateLimiter) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(RateLimitMiddleware(rateLimiter))
	r.Use(func(handler http.Handler) http.Handler {
		return otelhttp.NewHandler(handler, "http_request",
			otelhttp.WithSpanNameFormatter(func(operation string, r *http.Request) string {
				return r.Method + " " + r.URL.Path
			}),
		)
	})
	r.Use(LoggingMiddleware())
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	// Public routes
	r.Group(func(r chi.Router) {
		r.Use(h.Require(AuthNone))
		r.Get("/health", h.HealthCheck)
		r.Get("/admin/init", h.InitStatus)
		r.Post("/admin/init", h.InitAdmin)
		r.Get("/resources/by-username/{username}", h.ListResourcesByUsername)
	})

	// Gateway-key routes, reachable by the companion client tool
	r.Group(func(r chi.Router) {
		r.Use(h.Require(AuthGatewayKey))

		r.Post("/auth/login", h.Login)

		r.Get("/resources/{tenantID}", h.ListResources)
		r.Post("/resources/api-keys", h.AddAPIKey)
		r.Post("/resources/proxies", h.AddProxy)
		r.Post("/resources/rotating-keys", h.AddRotatingKey)
		r.Delete("/resources/api-keys/{id}", h.DeleteResource(vault.KindAPIKey))
		r.Delete("/resources/proxies/{id}", h.DeleteResource(vault.KindProxy))
		r.Delete("/resources/rotating-keys/{id}", h.DeleteResource(vault.KindRotatingKey))
		r.Post("/resources/bulk", h.BulkAdd)
		r.Post("/resources/bulk-delete", h.BulkDelete)

		r.Post("/tenants", h.CreateTenant)
		r.Get("/tenants", h.ListTenants)
		r.Delete("/tenants/{id}", h.DeleteTenant)
	})

	// Session routes, used by the admin dashboard
	r.Group(func(r chi.Router) {
		r.Use(h.Require(AuthSession))

		r.Get("/resources/managed-accounts", h.ListManagedAccounts)
		r.Post("/resources/managed-accounts", h.CreateManagedAccount)
		r.Put("/resources/managed-accounts/{id}", h.UpdateManagedAccount)
		r.Delete("/resources/managed-accounts/{id}", h.DeleteManagedAccount)
	})

	return r
}

// HealthCheck returns the health status
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"service":   h.serviceName,
		"version":   h.version,
	})
}

// respondDomainError maps domain errors onto the HTTP status taxonomy.
// Unrecognised errors are logged in full and surface a generic 500 body.
func respondDomainError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, identity.ErrInvalidCredentials):
		respondError(w, http.StatusUnauthorized, "invalid credentials")
	case errors.Is(err, identity.ErrAdminProtected):
		respondError(w, http.StatusForbidden, "admin users cannot be deleted")
	case errors.Is(err, identity.ErrUserNotFound), errors.Is(err, vault.ErrNotFound):
		respondError(w, http.StatusNotFound, "not found")
	case errors.Is(err, identity.ErrUserAlreadyExists):
		respondError(w, http.StatusConflict, "user already exists")
	case errors.Is(err, vault.ErrDuplicateEmail):
		respondError(w, http.StatusConflict, "an account with this email already exists")
	case errors.Is(err, identity.ErrUsernameRequired),
		errors.Is(err, vault.ErrMissingFields),
		errors.Is(err, vault.ErrEmptyBatch),
		errors.Is(err, vault.ErrUnknownKind):
		respondError(w, http.StatusBadRequest, err.Error())
	default:
		slog.ErrorContext(r.Context(), "request failed",
			logger.Path(r.URL.Path),
			logger.Error(err),
		)
		respondError(w, http.StatusInternalServerError, "internal server error")
	}
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{
		"error": message,
	})
}
