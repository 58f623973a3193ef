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

package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/zcamb1/resource-e/internal/vault"
)

// ResourceRepository implements vault.Repository
type ResourceRepository struct {
	db *DB
}

// NewResourceRepository creates a new resource repository
func NewResourceRepository(db *DB) *ResourceRepository {
	return &ResourceRepository{db: db}
}

// InsertAPIKeys inserts all keys with a single multi-row statement and
// reports how many rows landed.
func (r *ResourceRepository) InsertAPIKeys(ctx context.Context, keys []*vault.APIKey) (int64, error) {
	if len(keys) == 0 {
		return 0, nil
	}

	now := time.Now()
	values := make([]string, 0, len(keys))
	args := make([]any, 0, len(keys)*5)
	for i, key := range keys {
		key.CreatedAt = now
		values = append(values, placeholderRow(i, 5))
		args = append(args, key.ID, key.APIKey, key.IsActive, key.CreatedAt, key.UserID)
	}

	result, err := r.db.pool.Exec(ctx, `
		INSERT INTO api_keys (id, api_key, is_active, created_at, user_id)
		VALUES `+strings.Join(values, ", "),
		args...,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert api keys: %w", err)
	}

	return result.RowsAffected(), nil
}

// ListAPIKeys returns all keys owned by the tenant, newest first
func (r *ResourceRepository) ListAPIKeys(ctx context.Context, tenantID string) ([]*vault.APIKey, error) {
	rows, err := r.db.pool.Query(ctx, `
		SELECT id, api_key, is_active, created_at, user_id
		FROM api_keys
		WHERE user_id = $1
		ORDER BY created_at DESC
	`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list api keys: %w", err)
	}
	defer rows.Close()

	keys := []*vault.APIKey{}
	for rows.Next() {
		var key vault.APIKey
		if err := rows.Scan(&key.ID, &key.APIKey, &key.IsActive, &key.CreatedAt, &key.UserID); err != nil {
			return nil, fmt.Errorf("failed to scan api key: %w", err)
		}
		keys = append(keys, &key)
	}

	return keys, rows.Err()
}

// DeleteAPIKey removes one key matching both id and owner
func (r *ResourceRepository) DeleteAPIKey(ctx context.Context, tenantID, id string) (int64, error) {
	result, err := r.db.pool.Exec(ctx, `
		DELETE FROM api_keys
		WHERE id = $1 AND user_id = $2
	`, id, tenantID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete api key: %w", err)
	}

	return result.RowsAffected(), nil
}

// DeleteAPIKeysByTenant removes every key owned by the tenant
func (r *ResourceRepository) DeleteAPIKeysByTenant(ctx context.Context, tenantID string) (int64, error) {
	result, err := r.db.pool.Exec(ctx, `
		DELETE FROM api_keys
		WHERE user_id = $1
	`, tenantID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete api keys: %w", err)
	}

	return result.RowsAffected(), nil
}

// InsertProxies inserts all proxies with a single multi-row statement
func (r *ResourceRepository) InsertProxies(ctx context.Context, proxies []*vault.Proxy) (int64, error) {
	if len(proxies) == 0 {
		return 0, nil
	}

	now := time.Now()
	values := make([]string, 0, len(proxies))
	args := make([]any, 0, len(proxies)*5)
	for i, proxy := range proxies {
		proxy.CreatedAt = now
		values = append(values, placeholderRow(i, 5))
		args = append(args, proxy.ID, proxy.ProxyURL, proxy.IsActive, proxy.CreatedAt, proxy.UserID)
	}

	result, err := r.db.pool.Exec(ctx, `
		INSERT INTO proxies (id, proxy_url, is_active, created_at, user_id)
		VALUES `+strings.Join(values, ", "),
		args...,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert proxies: %w", err)
	}

	return result.RowsAffected(), nil
}

// ListProxies returns all proxies owned by the tenant, newest first
func (r *ResourceRepository) ListProxies(ctx context.Context, tenantID string) ([]*vault.Proxy, error) {
	rows, err := r.db.pool.Query(ctx, `
		SELECT id, proxy_url, is_active, created_at, user_id
		FROM proxies
		WHERE user_id = $1
		ORDER BY created_at DESC
	`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list proxies: %w", err)
	}
	defer rows.Close()

	proxies := []*vault.Proxy{}
	for rows.Next() {
		var proxy vault.Proxy
		if err := rows.Scan(&proxy.ID, &proxy.ProxyURL, &proxy.IsActive, &proxy.CreatedAt, &proxy.UserID); err != nil {
			return nil, fmt.Errorf("failed to scan proxy: %w", err)
		}
		proxies = append(proxies, &proxy)
	}

	return proxies, rows.Err()
}

// DeleteProxy removes one proxy matching both id and owner
func (r *ResourceRepository) DeleteProxy(ctx context.Context, tenantID, id string) (int64, error) {
	result, err := r.db.pool.Exec(ctx, `
		DELETE FROM proxies
		WHERE id = $1 AND user_id = $2
	`, id, tenantID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete proxy: %w", err)
	}

	return result.RowsAffected(), nil
}

// DeleteProxiesByTenant removes every proxy owned by the tenant
func (r *ResourceRepository) DeleteProxiesByTenant(ctx context.Context, tenantID string) (int64, error) {
	result, err := r.db.pool.Exec(ctx, `
		DELETE FROM proxies
		WHERE user_id = $1
	`, tenantID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete proxies: %w", err)
	}

	return result.RowsAffected(), nil
}

// InsertRotatingKeys inserts all keys with a single multi-row statement
func (r *ResourceRepository) InsertRotatingKeys(ctx context.Context, keys []*vault.RotatingKey) (int64, error) {
	if len(keys) == 0 {
		return 0, nil
	}

	now := time.Now()
	values := make([]string, 0, len(keys))
	args := make([]any, 0, len(keys)*6)
	for i, key := range keys {
		key.CreatedAt = now
		values = append(values, placeholderRow(i, 6))
		args = append(args, key.ID, key.KeyName, key.APIKey, key.IsActive, key.CreatedAt, key.UserID)
	}

	result, err := r.db.pool.Exec(ctx, `
		INSERT INTO rotating_keys (id, key_name, api_key, is_active, created_at, user_id)
		VALUES `+strings.Join(values, ", "),
		args...,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert rotating keys: %w", err)
	}

	return result.RowsAffected(), nil
}

// ListRotatingKeys returns all keys owned by the tenant, newest first
func (r *ResourceRepository) ListRotatingKeys(ctx context.Context, tenantID string) ([]*vault.RotatingKey, error) {
	rows, err := r.db.pool.Query(ctx, `
		SELECT id, key_name, api_key, is_active, created_at, user_id
		FROM rotating_keys
		WHERE user_id = $1
		ORDER BY created_at DESC
	`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list rotating keys: %w", err)
	}
	defer rows.Close()

	keys := []*vault.RotatingKey{}
	for rows.Next() {
		var key vault.RotatingKey
		if err := rows.Scan(&key.ID, &key.KeyName, &key.APIKey, &key.IsActive, &key.CreatedAt, &key.UserID); err != nil {
			return nil, fmt.Errorf("failed to scan rotating key: %w", err)
		}
		keys = append(keys, &key)
	}

	return keys, rows.Err()
}

// DeleteRotatingKey removes one key matching both id and owner
func (r *ResourceRepository) DeleteRotatingKey(ctx context.Context, tenantID, id string) (int64, error) {
	result, err := r.db.pool.Exec(ctx, `
		DELETE FROM rotating_keys
		WHERE id = $1 AND user_id = $2
	`, id, tenantID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete rotating key: %w", err)
	}

	return result.RowsAffected(), nil
}

// DeleteRotatingKeysByTenant removes every key owned by the tenant
func (r *ResourceRepository) DeleteRotatingKeysByTenant(ctx context.Context, tenantID string) (int64, error) {
	result, err := r.db.pool.Exec(ctx, `
		DELETE FROM rotating_keys
		WHERE user_id = $1
	`, tenantID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete rotating keys: %w", err)
	}

	return result.RowsAffected(), nil
}

// InsertManagedAccount inserts one account. A unique violation on the email
// column comes back as vault.ErrDuplicateEmail.
func (r *ResourceRepository) InsertManagedAccount(ctx context.Context, account *vault.ManagedAccount) error {
	now := time.Now()
	account.CreatedAt = now
	account.UpdatedAt = now

	_, err := r.db.pool.Exec(ctx, `
		INSERT INTO managed_accounts (
			id, email, password_encrypted, credits, character_limit,
			tier, status, is_active, notes, last_checked_at,
			created_at, updated_at, user_id
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`,
		account.ID, account.Email, account.PasswordEncrypted, account.Credits, account.CharacterLimit,
		account.Tier, account.Status, account.IsActive, account.Notes, account.LastCheckedAt,
		account.CreatedAt, account.UpdatedAt, account.UserID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return vault.ErrDuplicateEmail
		}
		return fmt.Errorf("failed to insert managed account: %w", err)
	}

	return nil
}

// ListManagedAccounts returns active accounts owned by the tenant, newest
// first. Soft-deleted rows stay out of every listing.
func (r *ResourceRepository) ListManagedAccounts(ctx context.Context, tenantID string) ([]*vault.ManagedAccount, error) {
	rows, err := r.db.pool.Query(ctx, `
		SELECT id, email, password_encrypted, credits, character_limit,
			tier, status, is_active, notes, last_checked_at,
			created_at, updated_at, user_id
		FROM managed_accounts
		WHERE user_id = $1 AND is_active = TRUE
		ORDER BY created_at DESC
	`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list managed accounts: %w", err)
	}
	defer rows.Close()

	accounts := []*vault.ManagedAccount{}
	for rows.Next() {
		var account vault.ManagedAccount
		if err := rows.Scan(
			&account.ID, &account.Email, &account.PasswordEncrypted, &account.Credits, &account.CharacterLimit,
			&account.Tier, &account.Status, &account.IsActive, &account.Notes, &account.LastCheckedAt,
			&account.CreatedAt, &account.UpdatedAt, &account.UserID,
		); err != nil {
			return nil, fmt.Errorf("failed to scan managed account: %w", err)
		}
		accounts = append(accounts, &account)
	}

	return accounts, rows.Err()
}

// UpdateManagedAccount applies a sparse patch to a row matching both id and
// owner. updated_at is always stamped; last_checked_at only when the patch
// carries checker telemetry.
func (r *ResourceRepository) UpdateManagedAccount(ctx context.Context, tenantID, id string, patch vault.ManagedAccountPatch, now time.Time) (*vault.ManagedAccount, error) {
	set := []string{"updated_at = $3"}
	args := []any{id, tenantID, now}

	next := func(value any) string {
		args = append(args, value)
		return fmt.Sprintf("$%d", len(args))
	}

	if patch.Credits != nil {
		set = append(set, "credits = "+next(*patch.Credits))
	}
	if patch.CharacterLimit != nil {
		set = append(set, "character_limit = "+next(*patch.CharacterLimit))
	}
	if patch.Tier != nil {
		set = append(set, "tier = "+next(*patch.Tier))
	}
	if patch.Status != nil {
		set = append(set, "status = "+next(*patch.Status))
	}
	if patch.IsActive != nil {
		set = append(set, "is_active = "+next(*patch.IsActive))
	}
	if patch.Notes != nil {
		set = append(set, "notes = "+next(*patch.Notes))
	}
	if patch.TouchesTelemetry() {
		set = append(set, "last_checked_at = $3")
	}

	var account vault.ManagedAccount
	err := r.db.pool.QueryRow(ctx, `
		UPDATE managed_accounts SET `+strings.Join(set, ", ")+`
		WHERE id = $1 AND user_id = $2
		RETURNING id, email, password_encrypted, credits, character_limit,
			tier, status, is_active, notes, last_checked_at,
			created_at, updated_at, user_id
	`, args...).Scan(
		&account.ID, &account.Email, &account.PasswordEncrypted, &account.Credits, &account.CharacterLimit,
		&account.Tier, &account.Status, &account.IsActive, &account.Notes, &account.LastCheckedAt,
		&account.CreatedAt, &account.UpdatedAt, &account.UserID,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, vault.ErrNotFound
		}
		return nil, fmt.Errorf("failed to update managed account: %w", err)
	}

	return &account, nil
}

// SoftDeleteManagedAccount deactivates a row matching both id and owner
func (r *ResourceRepository) SoftDeleteManagedAccount(ctx context.Context, tenantID, id string, now time.Time) (int64, error) {
	result, err := r.db.pool.Exec(ctx, `
		UPDATE managed_accounts SET is_active = FALSE, updated_at = $3
		WHERE id = $1 AND user_id = $2 AND is_active = TRUE
	`, id, tenantID, now)
	if err != nil {
		return 0, fmt.Errorf("failed to soft delete managed account: %w", err)
	}

	return result.RowsAffected(), nil
}

// DeleteManagedAccountsByTenant hard-deletes every row owned by the tenant,
// soft-deleted rows included. Used when the owner itself goes away.
func (r *ResourceRepository) DeleteManagedAccountsByTenant(ctx context.Context, tenantID string) (int64, error) {
	result, err := r.db.pool.Exec(ctx, `
		DELETE FROM managed_accounts
		WHERE user_id = $1
	`, tenantID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete managed accounts: %w", err)
	}

	return result.RowsAffected(), nil
}

// placeholderRow renders the i-th parenthesised placeholder group for a
// multi-row VALUES clause, width columns wide.
func placeholderRow(i, width int) string {
	parts := make([]string, width)
	for j := 0; j < width; j++ {
		parts[j] = fmt.Sprintf("$%d", i*width+j+1)
	}
	return "(" + strings.Join(parts, ", ") + ")"
}
