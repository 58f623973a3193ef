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
	"crypto/subtle"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/zcamb1/resource-e/internal/identity"
	"github.com/zcamb1/resource-e/internal/observability/logger"
	"github.com/zcamb1/resource-e/internal/observability/metrics"
)

// LoginRequest carries admin credentials. Either email or username
// identifies the account.
type LoginRequest struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
}

// Login authenticates an admin and issues a session token
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if (req.Email == "" && req.Username == "") || req.Password == "" {
		respondError(w, http.StatusBadRequest, "email or username and password are required")
		return
	}

	user, err := h.identityService.Authenticate(r.Context(), req.Email, req.Username, req.Password)
	if err != nil {
		h.vaultMetrics.LoginAttempts.Add(r.Context(), 1, metrics.OutcomeAttr("failure"))
		respondDomainError(w, r, err)
		return
	}

	token, err := h.tokens.Issue(user.ID, user.Username)
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to issue session token",
			logger.UserID(user.ID),
			logger.Error(err),
		)
		respondError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.vaultMetrics.LoginAttempts.Add(r.Context(), 1, metrics.OutcomeAttr("success"))

	respondJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"message":  "login successful",
		"token":    token,
		"user_id":  user.ID,
		"username": user.Username,
		"email":    user.Email,
	})
}

// InitStatus reports whether the admin account has been bootstrapped
func (h *Handler) InitStatus(w http.ResponseWriter, r *http.Request) {
	exists, _, err := h.bootstrapService.AdminExists(r.Context())
	if err != nil {
		if errors.Is(err, identity.ErrBootstrapUnconfigured) {
			respondError(w, http.StatusInternalServerError, "admin bootstrap is not configured")
			return
		}
		respondDomainError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"initialized": exists,
	})
}

// InitRequest carries the one-time bootstrap secret.
type InitRequest struct {
	Secret string `json:"secret"`
}

// InitAdmin creates the configured admin account. The route is public but
// gated by the init secret, which is distinct from the gateway key. The
// operation is idempotent.
func (h *Handler) InitAdmin(w http.ResponseWriter, r *http.Request) {
	if h.initSecret == "" {
		respondError(w, http.StatusInternalServerError, "admin bootstrap is not configured")
		return
	}

	var req InitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if subtle.ConstantTimeCompare([]byte(req.Secret), []byte(h.initSecret)) != 1 {
		respondError(w, http.StatusForbidden, "invalid init secret")
		return
	}

	admin, created, err := h.bootstrapService.EnsureAdmin(r.Context())
	if err != nil {
		if errors.Is(err, identity.ErrBootstrapUnconfigured) {
			respondError(w, http.StatusInternalServerError, "admin bootstrap is not configured")
			return
		}
		respondDomainError(w, r, err)
		return
	}

	message := "admin account already exists"
	if created {
		message = "admin account created"
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"message":  message,
		"user_id":  admin.ID,
		"username": admin.Username,
		"email":    admin.Email,
	})
}
