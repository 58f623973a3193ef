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
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/zcamb1/resource-e/internal/observability/metrics"
	"github.com/zcamb1/resource-e/internal/vault"
)

// ListResources returns every resource collection owned by a tenant. An
// unknown tenant is 404, not an empty listing; the client tool relies on
// the distinction.
func (h *Handler) ListResources(w http.ResponseWriter, r *http.Request) {
	tenantID := chi.URLParam(r, "tenantID")

	if _, err := h.identityService.GetUser(r.Context(), tenantID); err != nil {
		respondDomainError(w, r, err)
		return
	}

	resources, err := h.vaultService.ListForTenant(r.Context(), tenantID)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, resources)
}

// ListResourcesByUsername resolves a tenant by username and returns its
// managed accounts. The route is unauthenticated on purpose: the companion
// client fetches accounts by username without holding any credential.
func (h *Handler) ListResourcesByUsername(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")

	user, err := h.identityService.GetByUsername(r.Context(), username)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}

	accounts, err := h.vaultService.ListManagedAccounts(r.Context(), user.ID)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"username":         user.Username,
		"user_id":          user.ID,
		"managed_accounts": accounts,
	})
}

// AddResourceRequest carries one plain resource value and its owner.
type AddResourceRequest struct {
	UserID   string `json:"user_id"`
	APIKey   string `json:"api_key,omitempty"`
	ProxyURL string `json:"proxy_url,omitempty"`
}

// AddAPIKey stores one API key for a tenant
func (h *Handler) AddAPIKey(w http.ResponseWriter, r *http.Request) {
	var req AddResourceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	id, err := h.vaultService.AddAPIKey(r.Context(), req.UserID, req.APIKey)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}

	h.vaultMetrics.ResourcesAdded.Add(r.Context(), 1, metrics.KindAttr(string(vault.KindAPIKey)))
	respondJSON(w, http.StatusCreated, map[string]any{"success": true, "id": id})
}

// AddProxy stores one proxy for a tenant
func (h *Handler) AddProxy(w http.ResponseWriter, r *http.Request) {
	var req AddResourceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	id, err := h.vaultService.AddProxy(r.Context(), req.UserID, req.ProxyURL)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}

	h.vaultMetrics.ResourcesAdded.Add(r.Context(), 1, metrics.KindAttr(string(vault.KindProxy)))
	respondJSON(w, http.StatusCreated, map[string]any{"success": true, "id": id})
}

// AddRotatingKey stores one rotating key for a tenant
func (h *Handler) AddRotatingKey(w http.ResponseWriter, r *http.Request) {
	var req AddResourceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	id, err := h.vaultService.AddRotatingKey(r.Context(), req.UserID, req.APIKey)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}

	h.vaultMetrics.ResourcesAdded.Add(r.Context(), 1, metrics.KindAttr(string(vault.KindRotatingKey)))
	respondJSON(w, http.StatusCreated, map[string]any{"success": true, "id": id})
}

// DeleteResource removes one resource of the given kind. Ownership comes
// from the tenant_id query parameter; a mismatch reads as not found.
func (h *Handler) DeleteResource(kind vault.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		tenantID := r.URL.Query().Get("tenant_id")
		if tenantID == "" {
			respondError(w, http.StatusBadRequest, "tenant_id query parameter is required")
			return
		}

		if err := h.vaultService.DeleteOne(r.Context(), tenantID, id, kind); err != nil {
			respondDomainError(w, r, err)
			return
		}

		h.vaultMetrics.ResourcesDeleted.Add(r.Context(), 1, metrics.KindAttr(string(kind)))
		respondJSON(w, http.StatusOK, map[string]any{"success": true})
	}
}

// BulkRequest carries a batch operation over one resource kind.
type BulkRequest struct {
	UserID string   `json:"user_id"`
	Type   string   `json:"type"`
	Items  []string `json:"items,omitempty"`
}

// BulkAdd inserts a batch of resources of one kind in a single statement
func (h *Handler) BulkAdd(w http.ResponseWriter, r *http.Request) {
	var req BulkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	kind, err := vault.ParseKind(req.Type)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}

	count, err := h.vaultService.AddBulk(r.Context(), req.UserID, kind, req.Items)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}

	h.vaultMetrics.ResourcesAdded.Add(r.Context(), count, metrics.KindAttr(string(kind)))
	respondJSON(w, http.StatusCreated, map[string]any{"success": true, "count": count})
}

// BulkDelete removes every resource of one kind a tenant owns. Zero
// deletions is still success.
func (h *Handler) BulkDelete(w http.ResponseWriter, r *http.Request) {
	var req BulkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	kind, err := vault.ParseKind(req.Type)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}

	deleted, err := h.vaultService.DeleteAllOfKind(r.Context(), req.UserID, kind)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}

	h.vaultMetrics.ResourcesDeleted.Add(r.Context(), deleted, metrics.KindAttr(string(kind)))
	respondJSON(w, http.StatusOK, map[string]any{"success": true, "deleted": deleted})
}

// managedAccountOwner resolves which tenant a managed-account operation is
// scoped to: the user_id query parameter when the dashboard manages a tool
// user's accounts, otherwise the session user itself.
func managedAccountOwner(r *http.Request) string {
	if override := r.URL.Query().Get("user_id"); override != "" {
		return override
	}
	return GetSessionUserID(r.Context())
}

// ListManagedAccounts returns active managed accounts with decrypted
// passwords
func (h *Handler) ListManagedAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.vaultService.ListManagedAccounts(r.Context(), managedAccountOwner(r))
	if err != nil {
		respondDomainError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{"accounts": accounts})
}

// CreateManagedAccountRequest carries a new managed account.
type CreateManagedAccountRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Notes    string `json:"notes,omitempty"`
	UserID   string `json:"user_id,omitempty"`
}

// CreateManagedAccount stores a managed account, encrypting the password
func (h *Handler) CreateManagedAccount(w http.ResponseWriter, r *http.Request) {
	var req CreateManagedAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	owner := req.UserID
	if owner == "" {
		owner = GetSessionUserID(r.Context())
	}

	account, err := h.vaultService.CreateManagedAccount(r.Context(), owner, req.Email, req.Password, req.Notes)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}

	h.vaultMetrics.ResourcesAdded.Add(r.Context(), 1, metrics.KindAttr(string(vault.KindManagedAccount)))
	respondJSON(w, http.StatusCreated, map[string]any{"success": true, "account": account})
}

// UpdateManagedAccountRequest is a sparse patch; absent fields stay
// untouched.
type UpdateManagedAccountRequest struct {
	Credits        *int64  `json:"credits,omitempty"`
	CharacterLimit *int64  `json:"character_limit,omitempty"`
	Tier           *string `json:"tier,omitempty"`
	Status         *string `json:"status,omitempty"`
	IsActive       *bool   `json:"is_active,omitempty"`
	Notes          *string `json:"notes,omitempty"`
}

// UpdateManagedAccount applies a sparse patch to one owned account
func (h *Handler) UpdateManagedAccount(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req UpdateManagedAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	patch := vault.ManagedAccountPatch{
		Credits:        req.Credits,
		CharacterLimit: req.CharacterLimit,
		Tier:           req.Tier,
		Status:         req.Status,
		IsActive:       req.IsActive,
		Notes:          req.Notes,
	}
	if patch.Empty() {
		respondError(w, http.StatusBadRequest, "no fields to update")
		return
	}

	account, err := h.vaultService.UpdateManagedAccount(r.Context(), managedAccountOwner(r), id, patch)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{"success": true, "account": account})
}

// DeleteManagedAccount soft-deletes one owned account
func (h *Handler) DeleteManagedAccount(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.vaultService.DeleteOne(r.Context(), managedAccountOwner(r), id, vault.KindManagedAccount); err != nil {
		respondDomainError(w, r, err)
		return
	}

	h.vaultMetrics.ResourcesDeleted.Add(r.Context(), 1, metrics.KindAttr(string(vault.KindManagedAccount)))
	respondJSON(w, http.StatusOK, map[string]any{"success": true})
}
