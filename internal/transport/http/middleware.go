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
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/zcamb1/resource-e/internal/observability/logger"
)

// AuthRequirement is the per-route authentication level. Every route declares
// exactly one; a single dispatch middleware enforces it, so no handler
// carries its own auth conditional.
type AuthRequirement int

const (
	// AuthNone admits any request.
	AuthNone AuthRequirement = iota
	// AuthGatewayKey requires the static gateway key in X-API-Key.
	AuthGatewayKey
	// AuthSession requires a valid bearer session token.
	AuthSession
)

const bearerPrefix = "Bearer "

// Require enforces one AuthRequirement. The check runs before any storage
// access; an unconfigured gateway key fails closed.
func (h *Handler) Require(level AuthRequirement) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch level {
			case AuthNone:
				next.ServeHTTP(w, r)

			case AuthGatewayKey:
				if !h.gateway.Allow(r.Header.Get("X-API-Key")) {
					respondError(w, http.StatusUnauthorized, "invalid or missing API key")
					return
				}
				next.ServeHTTP(w, r)

			case AuthSession:
				authz := r.Header.Get("Authorization")
				if !strings.HasPrefix(authz, bearerPrefix) {
					respondError(w, http.StatusUnauthorized, "missing bearer token")
					return
				}

				userID, err := h.tokens.Verify(strings.TrimPrefix(authz, bearerPrefix))
				if err != nil {
					respondError(w, http.StatusUnauthorized, "invalid or expired token")
					return
				}

				ctx := context.WithValue(r.Context(), sessionUserIDKey, userID)
				next.ServeHTTP(w, r.WithContext(ctx))

			default:
				respondError(w, http.StatusInternalServerError, "internal server error")
			}
		})
	}
}

// LoggingMiddleware logs HTTP requests
func LoggingMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			slog.InfoContext(r.Context(), "http_request_start",
				logger.RequestID(middleware.GetReqID(r.Context())),
				logger.Method(r.Method),
				logger.Path(r.URL.Path),
				logger.RemoteAddr(r.RemoteAddr),
			)

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			defer func() {
				slog.InfoContext(r.Context(), "http_request_end",
					logger.RequestID(middleware.GetReqID(r.Context())),
					logger.Method(r.Method),
					logger.Path(r.URL.Path),
					logger.RemoteAddr(r.RemoteAddr),
					logger.UserAgent(r.UserAgent()),
					logger.StatusCode(ww.Status()),
					logger.Duration(time.Since(start).Milliseconds()),
				)
			}()

			next.ServeHTTP(ww, r)
		})
	}
}
