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

package vault

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/zcamb1/resource-e/internal/cryptox"
	"github.com/zcamb1/resource-e/internal/id"
	"github.com/zcamb1/resource-e/internal/observability/logger"
	"github.com/zcamb1/resource-e/internal/observability/metrics"
)

// Service provides the resource-vault business logic. It owns nothing but
// the once-derived cipher; storage serializes conflicting writes row by row,
// so bulk operations are best-effort rather than atomic.
type Service struct {
	repo    Repository
	cipher  *cryptox.Cipher
	metrics *metrics.VaultMetrics
}

// NewService creates a new vault service.
func NewService(repo Repository, cipher *cryptox.Cipher, vaultMetrics *metrics.VaultMetrics) *Service {
	return &Service{repo: repo, cipher: cipher, metrics: vaultMetrics}
}

// ListForTenant fetches all four resource kinds for one tenant. Managed
// account passwords are decrypted here; a corrupted secret yields an empty
// password for that record and a warning, never a failed response.
func (s *Service) ListForTenant(ctx context.Context, tenantID string) (*TenantResources, error) {
	apiKeys, err := s.repo.ListAPIKeys(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list api keys: %w", err)
	}
	proxies, err := s.repo.ListProxies(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list proxies: %w", err)
	}
	rotatingKeys, err := s.repo.ListRotatingKeys(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list rotating keys: %w", err)
	}
	accounts, err := s.ListManagedAccounts(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	return &TenantResources{
		APIKeys:         apiKeys,
		Proxies:         proxies,
		RotatingKeys:    rotatingKeys,
		ManagedAccounts: accounts,
	}, nil
}

// ListManagedAccounts returns a tenant's active managed accounts with
// decrypted passwords, newest first.
func (s *Service) ListManagedAccounts(ctx context.Context, tenantID string) ([]*ManagedAccount, error) {
	accounts, err := s.repo.ListManagedAccounts(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list managed accounts: %w", err)
	}

	for _, acc := range accounts {
		plaintext, err := s.cipher.Decrypt(acc.PasswordEncrypted)
		if err != nil {
			// One corrupt record must not block its siblings.
			slog.WarnContext(ctx, "failed to decrypt managed account password",
				logger.String("account_id", acc.ID),
				logger.UserID(tenantID),
				logger.Error(err),
			)
			s.metrics.DecryptFailures.Add(ctx, 1)
			plaintext = ""
		}
		acc.Password = plaintext
		acc.PasswordEncrypted = ""
	}

	return accounts, nil
}

// AddAPIKey inserts one API key for a tenant.
func (s *Service) AddAPIKey(ctx context.Context, tenantID, key string) (string, error) {
	if tenantID == "" || key == "" {
		return "", ErrMissingFields
	}
	row := &APIKey{ID: id.NewUUIDv7(), APIKey: key, UserID: tenantID, IsActive: true}
	if _, err := s.repo.InsertAPIKeys(ctx, []*APIKey{row}); err != nil {
		return "", fmt.Errorf("failed to insert api key: %w", err)
	}
	return row.ID, nil
}

// AddProxy inserts one proxy for a tenant.
func (s *Service) AddProxy(ctx context.Context, tenantID, proxyURL string) (string, error) {
	if tenantID == "" || proxyURL == "" {
		return "", ErrMissingFields
	}
	row := &Proxy{ID: id.NewUUIDv7(), ProxyURL: proxyURL, UserID: tenantID, IsActive: true}
	if _, err := s.repo.InsertProxies(ctx, []*Proxy{row}); err != nil {
		return "", fmt.Errorf("failed to insert proxy: %w", err)
	}
	return row.ID, nil
}

// AddRotatingKey inserts one rotating key, deriving its display label.
func (s *Service) AddRotatingKey(ctx context.Context, tenantID, key string) (string, error) {
	if tenantID == "" || key == "" {
		return "", ErrMissingFields
	}
	row := &RotatingKey{
		ID:       id.NewUUIDv7(),
		APIKey:   key,
		KeyName:  DeriveKeyName(key),
		UserID:   tenantID,
		IsActive: true,
	}
	if _, err := s.repo.InsertRotatingKeys(ctx, []*RotatingKey{row}); err != nil {
		return "", fmt.Errorf("failed to insert rotating key: %w", err)
	}
	return row.ID, nil
}

// CreateManagedAccount encrypts the password and inserts one managed
// account. A duplicate email surfaces as ErrDuplicateEmail.
func (s *Service) CreateManagedAccount(ctx context.Context, tenantID, email, password, notes string) (*ManagedAccount, error) {
	if tenantID == "" || email == "" || password == "" {
		return nil, ErrMissingFields
	}

	encrypted, err := s.cipher.Encrypt(password)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt password: %w", err)
	}

	account := &ManagedAccount{
		ID:                id.NewUUIDv7(),
		Email:             email,
		PasswordEncrypted: encrypted,
		Tier:              "free",
		Status:            "active",
		IsActive:          true,
		Notes:             notes,
		UserID:            tenantID,
	}
	if err := s.repo.InsertManagedAccount(ctx, account); err != nil {
		return nil, err
	}
	return account, nil
}

// AddBulk constructs one row per item and performs a single multi-row
// insert. The operation is not atomic; the returned count is exactly what
// storage reported landing.
func (s *Service) AddBulk(ctx context.Context, tenantID string, kind Kind, items []string) (int64, error) {
	if tenantID == "" {
		return 0, ErrMissingFields
	}
	if len(items) == 0 {
		return 0, ErrEmptyBatch
	}

	switch kind {
	case KindAPIKey:
		rows := make([]*APIKey, 0, len(items))
		for _, item := range items {
			rows = append(rows, &APIKey{ID: id.NewUUIDv7(), APIKey: item, UserID: tenantID, IsActive: true})
		}
		return s.repo.InsertAPIKeys(ctx, rows)
	case KindProxy:
		rows := make([]*Proxy, 0, len(items))
		for _, item := range items {
			rows = append(rows, &Proxy{ID: id.NewUUIDv7(), ProxyURL: item, UserID: tenantID, IsActive: true})
		}
		return s.repo.InsertProxies(ctx, rows)
	case KindRotatingKey:
		rows := make([]*RotatingKey, 0, len(items))
		for _, item := range items {
			rows = append(rows, &RotatingKey{
				ID:       id.NewUUIDv7(),
				APIKey:   item,
				KeyName:  DeriveKeyName(item),
				UserID:   tenantID,
				IsActive: true,
			})
		}
		return s.repo.InsertRotatingKeys(ctx, rows)
	default:
		return 0, ErrUnknownKind
	}
}

// UpdateManagedAccount applies a sparse patch to an account the tenant owns.
// Ownership mismatch and absence are indistinguishable: both are ErrNotFound.
func (s *Service) UpdateManagedAccount(ctx context.Context, tenantID, accountID string, patch ManagedAccountPatch) (*ManagedAccount, error) {
	if tenantID == "" || accountID == "" {
		return nil, ErrMissingFields
	}

	account, err := s.repo.UpdateManagedAccount(ctx, tenantID, accountID, patch, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	account.PasswordEncrypted = ""
	return account, nil
}

// DeleteOne removes exactly one row matching both id and owner, honoring the
// per-kind delete policy. Zero matched rows is ErrNotFound.
func (s *Service) DeleteOne(ctx context.Context, tenantID, resourceID string, kind Kind) error {
	if tenantID == "" || resourceID == "" {
		return ErrMissingFields
	}

	var (
		affected int64
		err      error
	)
	switch PolicyFor(kind) {
	case SoftDelete:
		affected, err = s.repo.SoftDeleteManagedAccount(ctx, tenantID, resourceID, time.Now().UTC())
	case HardDelete:
		switch kind {
		case KindAPIKey:
			affected, err = s.repo.DeleteAPIKey(ctx, tenantID, resourceID)
		case KindProxy:
			affected, err = s.repo.DeleteProxy(ctx, tenantID, resourceID)
		case KindRotatingKey:
			affected, err = s.repo.DeleteRotatingKey(ctx, tenantID, resourceID)
		default:
			return ErrUnknownKind
		}
	}
	if err != nil {
		return fmt.Errorf("failed to delete %s: %w", kind, err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteAllOfKind removes every row of one kind a tenant owns and returns
// the count. Zero matches is a success, not an error.
func (s *Service) DeleteAllOfKind(ctx context.Context, tenantID string, kind Kind) (int64, error) {
	if tenantID == "" {
		return 0, ErrMissingFields
	}

	switch kind {
	case KindAPIKey:
		return s.repo.DeleteAPIKeysByTenant(ctx, tenantID)
	case KindProxy:
		return s.repo.DeleteProxiesByTenant(ctx, tenantID)
	case KindRotatingKey:
		return s.repo.DeleteRotatingKeysByTenant(ctx, tenantID)
	case KindManagedAccount:
		return s.repo.DeleteManagedAccountsByTenant(ctx, tenantID)
	default:
		return 0, ErrUnknownKind
	}
}

// PurgeTenant hard-deletes every resource a tenant owns, in every kind. The
// tenant registry calls it before removing the owner row.
func (s *Service) PurgeTenant(ctx context.Context, tenantID string) error {
	for _, kind := range []Kind{KindAPIKey, KindProxy, KindRotatingKey, KindManagedAccount} {
		if _, err := s.DeleteAllOfKind(ctx, tenantID, kind); err != nil {
			return fmt.Errorf("failed to purge %s: %w", kind, err)
		}
	}
	return nil
}
