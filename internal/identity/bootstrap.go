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

package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/zcamb1/resource-e/internal/id"
	"github.com/zcamb1/resource-e/internal/observability/logger"
)

// ErrBootstrapUnconfigured reports missing admin seed configuration.
var ErrBootstrapUnconfigured = errors.New("admin bootstrap is not configured")

// BootstrapService seeds the initial admin account from deployment
// configuration. The HTTP surface gates it behind the one-time init secret;
// the operation itself is idempotent.
type BootstrapService struct {
	identityService *Service
	adminEmail      string
	adminPassword   string
	adminUsername   string
}

// NewBootstrapService creates a bootstrap service over the seed credentials.
func NewBootstrapService(identityService *Service, email, password, username string) *BootstrapService {
	return &BootstrapService{
		identityService: identityService,
		adminEmail:      email,
		adminPassword:   password,
		adminUsername:   username,
	}
}

// Configured reports whether seed credentials are present.
func (s *BootstrapService) Configured() bool {
	return s.adminEmail != "" && s.adminPassword != ""
}

// AdminExists reports whether the configured admin account already exists.
func (s *BootstrapService) AdminExists(ctx context.Context) (bool, *User, error) {
	if s.adminEmail == "" {
		return false, nil, ErrBootstrapUnconfigured
	}
	user, err := s.identityService.repo.GetByEmail(ctx, s.adminEmail)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return false, nil, nil
		}
		return false, nil, err
	}
	return true, user, nil
}

// EnsureAdmin creates the configured admin account if it does not exist.
// Calling it again is a no-op that returns the existing account.
func (s *BootstrapService) EnsureAdmin(ctx context.Context) (*User, bool, error) {
	if !s.Configured() {
		return nil, false, ErrBootstrapUnconfigured
	}

	exists, existing, err := s.AdminExists(ctx)
	if err != nil {
		return nil, false, err
	}
	if exists {
		return existing, false, nil
	}

	hash, err := s.identityService.hasher.Hash(s.adminPassword)
	if err != nil {
		return nil, false, err
	}

	admin := &User{
		ID:           id.NewUUIDv7(),
		Username:     s.adminUsername,
		Email:        s.adminEmail,
		PasswordHash: hash,
		IsAdmin:      true,
	}
	if err := s.identityService.repo.Create(ctx, admin); err != nil {
		return nil, false, fmt.Errorf("failed to create admin user: %w", err)
	}

	slog.InfoContext(ctx, "bootstrapped initial admin account",
		logger.Email(s.adminEmail),
		logger.String("username", s.adminUsername),
	)
	return admin, true, nil
}
