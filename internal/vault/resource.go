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

// Package vault manages per-tenant collections of third-party credentials:
// API keys, proxy URLs, rotating proxy keys and managed third-party accounts
// whose passwords are encrypted at rest. Every operation is scoped to the
// owning tenant; a cross-tenant read or write is an invariant violation, not
// a business-rule choice.
package vault

import (
	"context"
	"errors"
	"time"
)

// Domain errors
var (
	ErrNotFound       = errors.New("resource not found")
	ErrDuplicateEmail = errors.New("account with this email already exists")
	ErrEmptyBatch     = errors.New("items must be a non-empty list")
	ErrUnknownKind    = errors.New("unknown resource kind")
	ErrMissingFields  = errors.New("missing required fields")
)

// Kind identifies one of the four resource collections.
type Kind string

const (
	KindAPIKey         Kind = "api_keys"
	KindProxy          Kind = "proxies"
	KindRotatingKey    Kind = "rotating_keys"
	KindManagedAccount Kind = "managed_accounts"
)

// ParseKind validates a wire-format kind string.
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindAPIKey, KindProxy, KindRotatingKey, KindManagedAccount:
		return Kind(s), nil
	}
	return "", ErrUnknownKind
}

// DeletePolicy states how a single-row delete behaves for a kind. Bulk
// wipes and tenant cascades always remove rows outright regardless of
// policy.
type DeletePolicy int

const (
	HardDelete DeletePolicy = iota
	SoftDelete
)

// deletePolicies is the per-kind single-delete policy table. Managed
// accounts soft-delete so the dashboard can restore them; the plain kinds
// hold no secrets worth keeping around.
var deletePolicies = map[Kind]DeletePolicy{
	KindAPIKey:         HardDelete,
	KindProxy:          HardDelete,
	KindRotatingKey:    HardDelete,
	KindManagedAccount: SoftDelete,
}

// PolicyFor returns the single-delete policy for a kind.
func PolicyFor(kind Kind) DeletePolicy {
	return deletePolicies[kind]
}

// rotatingKeyLabelLen is how much of the key the derived display label keeps.
const rotatingKeyLabelLen = 20

// DeriveKeyName builds the display label for a rotating key from a prefix of
// the key itself.
func DeriveKeyName(key string) string {
	if len(key) <= rotatingKeyLabelLen {
		return key + "..."
	}
	return key[:rotatingKeyLabelLen] + "..."
}

// APIKey is a plaintext opaque token owned by one tenant.
type APIKey struct {
	ID        string    `json:"id"`
	APIKey    string    `json:"api_key"`
	UserID    string    `json:"-"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

// Proxy is a proxy address owned by one tenant.
type Proxy struct {
	ID        string    `json:"id"`
	ProxyURL  string    `json:"proxy_url"`
	UserID    string    `json:"-"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

// RotatingKey is a rotating proxy key with a derived display label.
type RotatingKey struct {
	ID        string    `json:"id"`
	APIKey    string    `json:"api_key"`
	KeyName   string    `json:"key_name"`
	UserID    string    `json:"-"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

// ManagedAccount is a third-party account whose password is a genuine
// secret. PasswordEncrypted only ever holds IV-prefixed ciphertext; Password
// is populated on the read path after decryption and never persisted.
type ManagedAccount struct {
	ID                string     `json:"id"`
	Email             string     `json:"email"`
	Password          string     `json:"password,omitempty"`
	PasswordEncrypted string     `json:"-"`
	Credits           int64      `json:"credits"`
	CharacterLimit    int64      `json:"character_limit"`
	Tier              string     `json:"tier"`
	Status            string     `json:"status"`
	IsActive          bool       `json:"is_active"`
	Notes             string     `json:"notes,omitempty"`
	LastCheckedAt     *time.Time `json:"last_checked_at,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
	UserID            string     `json:"-"`
}

// ManagedAccountPatch is a sparse update: nil fields are left untouched.
// Email and the password itself are immutable after creation.
type ManagedAccountPatch struct {
	Credits        *int64
	CharacterLimit *int64
	Tier           *string
	Status         *string
	IsActive       *bool
	Notes          *string
}

// Empty reports whether the patch changes nothing.
func (p ManagedAccountPatch) Empty() bool {
	return p.Credits == nil && p.CharacterLimit == nil && p.Tier == nil &&
		p.Status == nil && p.IsActive == nil && p.Notes == nil
}

// TouchesTelemetry reports whether the patch carries fields refreshed by the
// external checker, which additionally stamps last_checked_at.
func (p ManagedAccountPatch) TouchesTelemetry() bool {
	return p.Credits != nil || p.Status != nil
}

// TenantResources is the full listing for one tenant.
type TenantResources struct {
	APIKeys         []*APIKey         `json:"api_keys"`
	Proxies         []*Proxy          `json:"proxies"`
	RotatingKeys    []*RotatingKey    `json:"rotating_keys"`
	ManagedAccounts []*ManagedAccount `json:"managed_accounts"`
}

// Repository defines the interface for resource persistence. Storage offers
// per-row CRUD with equality filters and rows-affected semantics, but no
// multi-statement transactions; multi-row operations report how many rows
// actually landed.
type Repository interface {
	InsertAPIKeys(ctx context.Context, keys []*APIKey) (int64, error)
	ListAPIKeys(ctx context.Context, tenantID string) ([]*APIKey, error)
	DeleteAPIKey(ctx context.Context, tenantID, id string) (int64, error)
	DeleteAPIKeysByTenant(ctx context.Context, tenantID string) (int64, error)

	InsertProxies(ctx context.Context, proxies []*Proxy) (int64, error)
	ListProxies(ctx context.Context, tenantID string) ([]*Proxy, error)
	DeleteProxy(ctx context.Context, tenantID, id string) (int64, error)
	DeleteProxiesByTenant(ctx context.Context, tenantID string) (int64, error)

	InsertRotatingKeys(ctx context.Context, keys []*RotatingKey) (int64, error)
	ListRotatingKeys(ctx context.Context, tenantID string) ([]*RotatingKey, error)
	DeleteRotatingKey(ctx context.Context, tenantID, id string) (int64, error)
	DeleteRotatingKeysByTenant(ctx context.Context, tenantID string) (int64, error)

	// InsertManagedAccount returns ErrDuplicateEmail on a unique-constraint
	// violation, distinctly from other storage errors.
	InsertManagedAccount(ctx context.Context, account *ManagedAccount) error
	// ListManagedAccounts returns active accounts only, newest first.
	ListManagedAccounts(ctx context.Context, tenantID string) ([]*ManagedAccount, error)
	// UpdateManagedAccount applies a sparse patch to a row matching both id
	// and owner, returning the updated row or ErrNotFound.
	UpdateManagedAccount(ctx context.Context, tenantID, id string, patch ManagedAccountPatch, now time.Time) (*ManagedAccount, error)
	SoftDeleteManagedAccount(ctx context.Context, tenantID, id string, now time.Time) (int64, error)
	DeleteManagedAccountsByTenant(ctx context.Context, tenantID string) (int64, error)
}
