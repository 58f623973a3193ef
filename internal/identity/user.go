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
	"time"
)

// Domain errors
var (
	ErrUserNotFound       = errors.New("user not found")
	ErrUserAlreadyExists  = errors.New("user already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAdminProtected     = errors.New("admin users cannot be deleted")
	ErrUsernameRequired   = errors.New("username is required")
)

// SentinelNoPassword marks tool users, which own resources but can never
// log in. It is not a valid bcrypt hash, so Verify always rejects it.
const SentinelNoPassword = "TOOL_USER_NO_PASSWORD"

// ToolEmailDomain is the non-routable domain placeholder emails are derived
// under for tool users.
const ToolEmailDomain = "tool.local"

// User is an identity that owns resources. Admins (IsAdmin=true) log in and
// receive session tokens; tool users (IsAdmin=false) are resource-owning
// identities managed on the dashboard and fetched by the client tool.
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	IsAdmin      bool      `json:"is_admin"`
	CreatedAt    time.Time `json:"created_at"`
}

// Repository defines the interface for user persistence.
type Repository interface {
	// Create inserts a new user.
	Create(ctx context.Context, user *User) error

	// GetByID retrieves a user by id.
	GetByID(ctx context.Context, id string) (*User, error)

	// GetByEmail retrieves a user by email.
	GetByEmail(ctx context.Context, email string) (*User, error)

	// GetByUsername retrieves a user by username.
	GetByUsername(ctx context.Context, username string) (*User, error)

	// ListNonAdmins returns all tool users, newest first.
	ListNonAdmins(ctx context.Context) ([]*User, error)

	// Delete removes a non-admin user row. Admin rows are never matched;
	// zero rows affected yields ErrUserNotFound.
	Delete(ctx context.Context, id string) error
}

// ResourcePurger removes every resource owned by a user. The registry calls
// it before deleting the user row because storage offers no cascading
// deletes the vault can rely on.
type ResourcePurger interface {
	PurgeTenant(ctx context.Context, tenantID string) error
}
