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
	"fmt"
	"log/slog"

	"github.com/zcamb1/resource-e/internal/id"
	"github.com/zcamb1/resource-e/internal/observability/logger"
)

// Service provides tenant-registry business logic: admin login, tool-user
// lifecycle and the cascade that keeps resources from outliving their owner.
type Service struct {
	repo   Repository
	hasher *PasswordHasher
	purger ResourcePurger
}

// NewService creates a new identity service.
func NewService(repo Repository, hasher *PasswordHasher, purger ResourcePurger) *Service {
	return &Service{
		repo:   repo,
		hasher: hasher,
		purger: purger,
	}
}

// Authenticate verifies an admin login by email or username. Unknown
// identity and wrong password collapse into the same ErrInvalidCredentials
// so responses cannot enumerate accounts.
func (s *Service) Authenticate(ctx context.Context, email, username, password string) (*User, error) {
	var (
		user *User
		err  error
	)
	switch {
	case email != "":
		user, err = s.repo.GetByEmail(ctx, email)
	case username != "":
		user, err = s.repo.GetByUsername(ctx, username)
	default:
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, ErrInvalidCredentials
	}

	if !s.hasher.Verify(password, user.PasswordHash) {
		return nil, ErrInvalidCredentials
	}

	return user, nil
}

// GetUser retrieves a user by id.
func (s *Service) GetUser(ctx context.Context, userID string) (*User, error) {
	return s.repo.GetByID(ctx, userID)
}

// GetByUsername retrieves a user by username.
func (s *Service) GetByUsername(ctx context.Context, username string) (*User, error) {
	return s.repo.GetByUsername(ctx, username)
}

// CreateToolUser registers a resource-owning identity. The email is derived
// from the username and the password hash is a sentinel, so the account can
// never pass Authenticate.
func (s *Service) CreateToolUser(ctx context.Context, username string) (*User, error) {
	if username == "" {
		return nil, ErrUsernameRequired
	}

	user := &User{
		ID:           id.NewUUIDv7(),
		Username:     username,
		Email:        fmt.Sprintf("%s@%s", username, ToolEmailDomain),
		PasswordHash: SentinelNoPassword,
		IsAdmin:      false,
	}

	if err := s.repo.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to create tool user: %w", err)
	}

	return user, nil
}

// ListToolUsers returns all non-admin users, newest first.
func (s *Service) ListToolUsers(ctx context.Context) ([]*User, error) {
	return s.repo.ListNonAdmins(ctx)
}

// DeleteUser removes a tool user and everything it owns. Resources are
// purged before the user row goes away because storage has no transactions
// to lean on: a crash between the two steps leaves an ownerless-resource-free
// state, never orphaned rows.
func (s *Service) DeleteUser(ctx context.Context, userID string) error {
	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if user.IsAdmin {
		return ErrAdminProtected
	}

	if err := s.purger.PurgeTenant(ctx, userID); err != nil {
		return fmt.Errorf("failed to purge resources for user %s: %w", userID, err)
	}

	if err := s.repo.Delete(ctx, userID); err != nil {
		return err
	}

	slog.InfoContext(ctx, "deleted tool user and all owned resources",
		logger.UserID(userID),
		logger.String("username", user.Username),
	)
	return nil
}
