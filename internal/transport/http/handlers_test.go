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
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/zcamb1/resource-e/internal/auth"
	"github.com/zcamb1/resource-e/internal/cryptox"
	"github.com/zcamb1/resource-e/internal/identity"
	"github.com/zcamb1/resource-e/internal/observability/metrics"
	"github.com/zcamb1/resource-e/internal/vault"
)

const (
	testGatewayKey = "gateway-secret"
	testInitSecret = "init-secret"
)

type mockUserRepo struct {
	mock.Mock
}

func (m *mockUserRepo) Create(ctx context.Context, user *identity.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *mockUserRepo) GetByID(ctx context.Context, id string) (*identity.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*identity.User), args.Error(1)
}

func (m *mockUserRepo) GetByEmail(ctx context.Context, email string) (*identity.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*identity.User), args.Error(1)
}

func (m *mockUserRepo) GetByUsername(ctx context.Context, username string) (*identity.User, error) {
	args := m.Called(ctx, username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*identity.User), args.Error(1)
}

func (m *mockUserRepo) ListNonAdmins(ctx context.Context) ([]*identity.User, error) {
	args := m.Called(ctx)
	return args.Get(0).([]*identity.User), args.Error(1)
}

func (m *mockUserRepo) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

type mockResourceRepo struct {
	mock.Mock
}

func (m *mockResourceRepo) InsertAPIKeys(ctx context.Context, keys []*vault.APIKey) (int64, error) {
	args := m.Called(ctx, keys)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockResourceRepo) ListAPIKeys(ctx context.Context, tenantID string) ([]*vault.APIKey, error) {
	args := m.Called(ctx, tenantID)
	return args.Get(0).([]*vault.APIKey), args.Error(1)
}

func (m *mockResourceRepo) DeleteAPIKey(ctx context.Context, tenantID, id string) (int64, error) {
	args := m.Called(ctx, tenantID, id)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockResourceRepo) DeleteAPIKeysByTenant(ctx context.Context, tenantID string) (int64, error) {
	args := m.Called(ctx, tenantID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockResourceRepo) InsertProxies(ctx context.Context, proxies []*vault.Proxy) (int64, error) {
	args := m.Called(ctx, proxies)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockResourceRepo) ListProxies(ctx context.Context, tenantID string) ([]*vault.Proxy, error) {
	args := m.Called(ctx, tenantID)
	return args.Get(0).([]*vault.Proxy), args.Error(1)
}

func (m *mockResourceRepo) DeleteProxy(ctx context.Context, tenantID, id string) (int64, error) {
	args := m.Called(ctx, tenantID, id)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockResourceRepo) DeleteProxiesByTenant(ctx context.Context, tenantID string) (int64, error) {
	args := m.Called(ctx, tenantID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockResourceRepo) InsertRotatingKeys(ctx context.Context, keys []*vault.RotatingKey) (int64, error) {
	args := m.Called(ctx, keys)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockResourceRepo) ListRotatingKeys(ctx context.Context, tenantID string) ([]*vault.RotatingKey, error) {
	args := m.Called(ctx, tenantID)
	return args.Get(0).([]*vault.RotatingKey), args.Error(1)
}

func (m *mockResourceRepo) DeleteRotatingKey(ctx context.Context, tenantID, id string) (int64, error) {
	args := m.Called(ctx, tenantID, id)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockResourceRepo) DeleteRotatingKeysByTenant(ctx context.Context, tenantID string) (int64, error) {
	args := m.Called(ctx, tenantID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockResourceRepo) InsertManagedAccount(ctx context.Context, account *vault.ManagedAccount) error {
	args := m.Called(ctx, account)
	return args.Error(0)
}

func (m *mockResourceRepo) ListManagedAccounts(ctx context.Context, tenantID string) ([]*vault.ManagedAccount, error) {
	args := m.Called(ctx, tenantID)
	return args.Get(0).([]*vault.ManagedAccount), args.Error(1)
}

func (m *mockResourceRepo) UpdateManagedAccount(ctx context.Context, tenantID, id string, patch vault.ManagedAccountPatch, now time.Time) (*vault.ManagedAccount, error) {
	args := m.Called(ctx, tenantID, id, patch, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*vault.ManagedAccount), args.Error(1)
}

func (m *mockResourceRepo) SoftDeleteManagedAccount(ctx context.Context, tenantID, id string, now time.Time) (int64, error) {
	args := m.Called(ctx, tenantID, id, now)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockResourceRepo) DeleteManagedAccountsByTenant(ctx context.Context, tenantID string) (int64, error) {
	args := m.Called(ctx, tenantID)
	return args.Get(0).(int64), args.Error(1)
}

type testEnv struct {
	router    http.Handler
	userRepo  *mockUserRepo
	resources *mockResourceRepo
	tokens    *auth.TokenAuthority
	cipher    *cryptox.Cipher
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	userRepo := new(mockUserRepo)
	resources := new(mockResourceRepo)

	cipher, err := cryptox.New("handler-test-master-key")
	require.NoError(t, err)

	meter, err := metrics.New(context.Background(), metrics.Config{Enabled: false}, "test")
	require.NoError(t, err)
	vaultMetrics, err := meter.NewVaultMetrics()
	require.NoError(t, err)

	vaultService := vault.NewService(resources, cipher, vaultMetrics)
	identityService := identity.NewService(userRepo, identity.NewPasswordHasher(10), vaultService)
	bootstrapService := identity.NewBootstrapService(identityService, "admin@ex.com", "AdminPass1!", "admin")
	tokens := auth.NewTokenAuthority("test-jwt-secret", time.Hour)

	h := NewHandler(
		identityService,
		bootstrapService,
		vaultService,
		tokens,
		auth.NewGatewayGuard(testGatewayKey),
		testInitSecret,
		"resource-e",
		"test",
		vaultMetrics,
	)

	return &testEnv{
		router:    NewRouter(h, NewRateLimiter(1000, 1000)),
		userRepo:  userRepo,
		resources: resources,
		tokens:    tokens,
		cipher:    cipher,
	}
}

func (e *testEnv) do(t *testing.T, method, path string, body any, decorate func(*http.Request)) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if decorate != nil {
		decorate(req)
	}

	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func withGatewayKey(req *http.Request) {
	req.Header.Set("X-API-Key", testGatewayKey)
}

// TestPurpose: The health endpoint must answer without any credential.
func TestRouter_Health_Public(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/health", nil, nil)

	assert.Equal(t, http.StatusOK, w.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "resource-e", body["service"])
}

// TestPurpose: Gateway routes reject requests missing the key before any
// storage access happens. The mock carries no expectations, so a repository
// call would fail the test.
func TestRouter_GatewayKey_MissingRejectedBeforeStorage(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/resources/tenant-a", nil, nil)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	env.resources.AssertExpectations(t)
	env.resources.AssertNotCalled(t, "ListAPIKeys", mock.Anything, mock.Anything)
}

// TestPurpose: A wrong key is indistinguishable from a missing one.
func TestRouter_GatewayKey_WrongKeyRejected(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/resources/bulk", BulkRequest{UserID: "t", Type: "api_keys", Items: []string{"k"}}, func(req *http.Request) {
		req.Header.Set("X-API-Key", "not-the-key")
	})

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

// TestPurpose: Valid login returns a token the session routes accept.
func TestRouter_Login_IssuesUsableToken(t *testing.T) {
	env := newTestEnv(t)

	hash, err := identity.NewPasswordHasher(10).Hash("AdminPass1!")
	require.NoError(t, err)
	env.userRepo.On("GetByEmail", mock.Anything, "admin@ex.com").Return(&identity.User{
		ID:           "a1",
		Username:     "admin",
		Email:        "admin@ex.com",
		PasswordHash: hash,
		IsAdmin:      true,
	}, nil)

	w := env.do(t, http.MethodPost, "/auth/login", LoginRequest{Email: "admin@ex.com", Password: "AdminPass1!"}, withGatewayKey)

	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	token, _ := body["token"].(string)
	require.NotEmpty(t, token)
	assert.Equal(t, "a1", body["user_id"])

	userID, err := env.tokens.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "a1", userID)
}

// TestPurpose: Bad credentials come back as a plain 401.
func TestRouter_Login_InvalidCredentials(t *testing.T) {
	env := newTestEnv(t)

	env.userRepo.On("GetByEmail", mock.Anything, "ghost@ex.com").Return(nil, identity.ErrUserNotFound)

	w := env.do(t, http.MethodPost, "/auth/login", LoginRequest{Email: "ghost@ex.com", Password: "x"}, withGatewayKey)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

// TestPurpose: The by-username listing is deliberately public and returns
// decrypted managed accounts.
func TestRouter_ByUsername_PublicListing(t *testing.T) {
	env := newTestEnv(t)

	blob, err := env.cipher.Encrypt("AccountPass1!")
	require.NoError(t, err)

	env.userRepo.On("GetByUsername", mock.Anything, "scraper").Return(&identity.User{ID: "t1", Username: "scraper"}, nil)
	env.resources.On("ListManagedAccounts", mock.Anything, "t1").Return([]*vault.ManagedAccount{
		{ID: "m1", Email: "acc@ex.com", PasswordEncrypted: blob, IsActive: true},
	}, nil)

	w := env.do(t, http.MethodGet, "/resources/by-username/scraper", nil, nil)

	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Username        string                  `json:"username"`
		ManagedAccounts []*vault.ManagedAccount `json:"managed_accounts"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "scraper", body.Username)
	require.Len(t, body.ManagedAccounts, 1)
	assert.Equal(t, "AccountPass1!", body.ManagedAccounts[0].Password)
}

// TestPurpose: Listing resources for a nonexistent tenant is 404, never a
// 200 with four empty collections; the tenant is resolved before any
// resource table is read.
func TestRouter_ListResources_UnknownTenantIsNotFound(t *testing.T) {
	env := newTestEnv(t)

	env.userRepo.On("GetByID", mock.Anything, "ghost-tenant").Return(nil, identity.ErrUserNotFound)

	w := env.do(t, http.MethodGet, "/resources/ghost-tenant", nil, withGatewayKey)

	assert.Equal(t, http.StatusNotFound, w.Code)
	env.resources.AssertNotCalled(t, "ListAPIKeys", mock.Anything, mock.Anything)
	env.resources.AssertNotCalled(t, "ListManagedAccounts", mock.Anything, mock.Anything)
}

// TestPurpose: A known tenant still gets the full four-collection listing.
func TestRouter_ListResources_KnownTenant(t *testing.T) {
	env := newTestEnv(t)

	env.userRepo.On("GetByID", mock.Anything, "t1").Return(&identity.User{ID: "t1", Username: "scraper"}, nil)
	env.resources.On("ListAPIKeys", mock.Anything, "t1").Return([]*vault.APIKey{{ID: "k1", APIKey: "key-1"}}, nil)
	env.resources.On("ListProxies", mock.Anything, "t1").Return([]*vault.Proxy{}, nil)
	env.resources.On("ListRotatingKeys", mock.Anything, "t1").Return([]*vault.RotatingKey{}, nil)
	env.resources.On("ListManagedAccounts", mock.Anything, "t1").Return([]*vault.ManagedAccount{}, nil)

	w := env.do(t, http.MethodGet, "/resources/t1", nil, withGatewayKey)

	require.Equal(t, http.StatusOK, w.Code)

	var body vault.TenantResources
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.APIKeys, 1)
	assert.Equal(t, "key-1", body.APIKeys[0].APIKey)
}

// TestPurpose: An unknown username maps to 404, not 500.
func TestRouter_ByUsername_UnknownIsNotFound(t *testing.T) {
	env := newTestEnv(t)

	env.userRepo.On("GetByUsername", mock.Anything, "ghost").Return(nil, identity.ErrUserNotFound)

	w := env.do(t, http.MethodGet, "/resources/by-username/ghost", nil, nil)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

// TestPurpose: Bulk add reports the stored count.
func TestRouter_BulkAdd_ReturnsCount(t *testing.T) {
	env := newTestEnv(t)

	env.resources.On("InsertProxies", mock.Anything, mock.MatchedBy(func(rows []*vault.Proxy) bool {
		return len(rows) == 2 && rows[0].UserID == "t1"
	})).Return(int64(2), nil)

	w := env.do(t, http.MethodPost, "/resources/bulk", BulkRequest{
		UserID: "t1",
		Type:   "proxies",
		Items:  []string{"http://p1", "http://p2"},
	}, withGatewayKey)

	require.Equal(t, http.StatusCreated, w.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, float64(2), body["count"])
}

// TestPurpose: An empty batch is a 400, and an unknown kind is a 400.
func TestRouter_BulkAdd_BadRequests(t *testing.T) {
	env := newTestEnv(t)

	empty := env.do(t, http.MethodPost, "/resources/bulk", BulkRequest{UserID: "t1", Type: "proxies"}, withGatewayKey)
	assert.Equal(t, http.StatusBadRequest, empty.Code)

	unknown := env.do(t, http.MethodPost, "/resources/bulk", BulkRequest{UserID: "t1", Type: "users", Items: []string{"x"}}, withGatewayKey)
	assert.Equal(t, http.StatusBadRequest, unknown.Code)
}

// TestPurpose: Deleting a resource another tenant owns reads as 404.
func TestRouter_DeleteResource_OwnershipMismatchIsNotFound(t *testing.T) {
	env := newTestEnv(t)

	env.resources.On("DeleteAPIKey", mock.Anything, "tenant-a", "k1").Return(int64(0), nil)

	w := env.do(t, http.MethodDelete, "/resources/api-keys/k1?tenant_id=tenant-a", nil, withGatewayKey)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

// TestPurpose: The per-id delete requires the owner to be named.
func TestRouter_DeleteResource_TenantIDRequired(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodDelete, "/resources/api-keys/k1", nil, withGatewayKey)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

// TestPurpose: Session routes reject missing and garbage bearer tokens.
func TestRouter_Session_RejectsBadTokens(t *testing.T) {
	env := newTestEnv(t)

	missing := env.do(t, http.MethodGet, "/resources/managed-accounts", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, missing.Code)

	garbage := env.do(t, http.MethodGet, "/resources/managed-accounts", nil, func(req *http.Request) {
		req.Header.Set("Authorization", "Bearer not-a-token")
	})
	assert.Equal(t, http.StatusUnauthorized, garbage.Code)

	// The gateway key is not a substitute for a session.
	wrongScheme := env.do(t, http.MethodGet, "/resources/managed-accounts", nil, withGatewayKey)
	assert.Equal(t, http.StatusUnauthorized, wrongScheme.Code)
}

// TestPurpose: A valid session lists the session user's accounts.
func TestRouter_Session_ListsOwnAccounts(t *testing.T) {
	env := newTestEnv(t)

	token, err := env.tokens.Issue("a1", "admin")
	require.NoError(t, err)

	env.resources.On("ListManagedAccounts", mock.Anything, "a1").Return([]*vault.ManagedAccount{}, nil)

	w := env.do(t, http.MethodGet, "/resources/managed-accounts", nil, func(req *http.Request) {
		req.Header.Set("Authorization", "Bearer "+token)
	})

	assert.Equal(t, http.StatusOK, w.Code)
	env.resources.AssertExpectations(t)
}

// TestPurpose: Creating a managed account with a duplicate email is a 409.
func TestRouter_CreateManagedAccount_DuplicateEmailConflict(t *testing.T) {
	env := newTestEnv(t)

	token, err := env.tokens.Issue("a1", "admin")
	require.NoError(t, err)

	env.resources.On("InsertManagedAccount", mock.Anything, mock.Anything).Return(vault.ErrDuplicateEmail)

	w := env.do(t, http.MethodPost, "/resources/managed-accounts", CreateManagedAccountRequest{
		Email:    "dup@ex.com",
		Password: "pw",
	}, func(req *http.Request) {
		req.Header.Set("Authorization", "Bearer "+token)
	})

	assert.Equal(t, http.StatusConflict, w.Code)
}

// TestPurpose: A sparse update with no fields is rejected up front.
func TestRouter_UpdateManagedAccount_EmptyPatchRejected(t *testing.T) {
	env := newTestEnv(t)

	token, err := env.tokens.Issue("a1", "admin")
	require.NoError(t, err)

	w := env.do(t, http.MethodPut, "/resources/managed-accounts/m1", map[string]any{}, func(req *http.Request) {
		req.Header.Set("Authorization", "Bearer "+token)
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	env.resources.AssertNotCalled(t, "UpdateManagedAccount", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

// TestPurpose: Deleting an admin tenant is refused with 403 and nothing is
// purged.
func TestRouter_DeleteTenant_AdminRefused(t *testing.T) {
	env := newTestEnv(t)

	env.userRepo.On("GetByID", mock.Anything, "a1").Return(&identity.User{ID: "a1", IsAdmin: true}, nil)

	w := env.do(t, http.MethodDelete, "/tenants/a1", nil, withGatewayKey)

	assert.Equal(t, http.StatusForbidden, w.Code)
	env.resources.AssertNotCalled(t, "DeleteAPIKeysByTenant", mock.Anything, mock.Anything)
}

// TestPurpose: Deleting a tool user purges all four kinds, then the row.
func TestRouter_DeleteTenant_CascadesThroughVault(t *testing.T) {
	env := newTestEnv(t)

	env.userRepo.On("GetByID", mock.Anything, "t1").Return(&identity.User{ID: "t1", Username: "scraper"}, nil)
	env.resources.On("DeleteAPIKeysByTenant", mock.Anything, "t1").Return(int64(1), nil)
	env.resources.On("DeleteProxiesByTenant", mock.Anything, "t1").Return(int64(0), nil)
	env.resources.On("DeleteRotatingKeysByTenant", mock.Anything, "t1").Return(int64(0), nil)
	env.resources.On("DeleteManagedAccountsByTenant", mock.Anything, "t1").Return(int64(2), nil)
	env.userRepo.On("Delete", mock.Anything, "t1").Return(nil)

	w := env.do(t, http.MethodDelete, "/tenants/t1", nil, withGatewayKey)

	assert.Equal(t, http.StatusOK, w.Code)
	env.resources.AssertExpectations(t)
	env.userRepo.AssertExpectations(t)
}

// TestPurpose: Bootstrap over HTTP demands the exact init secret.
func TestRouter_InitAdmin_SecretGate(t *testing.T) {
	env := newTestEnv(t)

	wrong := env.do(t, http.MethodPost, "/admin/init", InitRequest{Secret: "nope"}, nil)
	assert.Equal(t, http.StatusForbidden, wrong.Code)

	env.userRepo.On("GetByEmail", mock.Anything, "admin@ex.com").Return(nil, identity.ErrUserNotFound).Once()
	env.userRepo.On("Create", mock.Anything, mock.MatchedBy(func(u *identity.User) bool {
		return u.Email == "admin@ex.com" && u.IsAdmin
	})).Return(nil).Once()

	right := env.do(t, http.MethodPost, "/admin/init", InitRequest{Secret: testInitSecret}, nil)
	assert.Equal(t, http.StatusOK, right.Code)
	env.userRepo.AssertExpectations(t)
}
