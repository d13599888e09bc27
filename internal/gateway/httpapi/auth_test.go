// Copyright (c) 2025 Justin Cranford

package httpapi

import (
	"net/http"
	"testing"
	"time"

	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CohesiumAI/openclaw-sub001/internal/gateway/credentials"
	"github.com/CohesiumAI/openclaw-sub001/internal/gateway/crypto"
	"github.com/CohesiumAI/openclaw-sub001/internal/shared/magic"
)

func createTestUser(t *testing.T, s *Server, username, password string) *credentials.User {
	t.Helper()
	hash, err := crypto.HashPassword(password)
	require.NoError(t, err)
	u := &credentials.User{
		Username:     username,
		PasswordHash: hash,
		Role:         magic.RoleOperator,
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}
	require.NoError(t, s.Creds.Create(u))
	return u
}

func TestHandleLoginSucceedsWithCorrectCredentials(t *testing.T) {
	s := newTestServer(t)
	createTestUser(t, s, "alice", "correct horse battery staple")

	resp := doJSON(t, s, http.MethodPost, "/auth/login", loginRequest{
		Username: "alice", Password: "correct horse battery staple",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeJSON(t, resp)
	assert.Equal(t, true, body["ok"])
	assert.NotEmpty(t, body["csrfToken"])
	require.NotNil(t, sessionCookie(resp))
}

func TestHandleLoginRejectsWrongPassword(t *testing.T) {
	s := newTestServer(t)
	createTestUser(t, s, "alice", "correct horse battery staple")

	resp := doJSON(t, s, http.MethodPost, "/auth/login", loginRequest{
		Username: "alice", Password: "wrong password",
	})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Nil(t, sessionCookie(resp))
}

func TestHandleLoginRejectsNonexistentUserLikeWrongPassword(t *testing.T) {
	s := newTestServer(t)

	resp := doJSON(t, s, http.MethodPost, "/auth/login", loginRequest{
		Username: "ghost", Password: "whatever",
	})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestHandleLoginLocksOutAfterTierOneFailures(t *testing.T) {
	s := newTestServer(t)
	createTestUser(t, s, "alice", "correct horse battery staple")

	var last *http.Response
	for i := 0; i < magic.RateLimitTier1Count; i++ {
		last = doJSON(t, s, http.MethodPost, "/auth/login", loginRequest{
			Username: "alice", Password: "wrong",
		})
		assert.Equal(t, http.StatusUnauthorized, last.StatusCode)
	}

	// The next attempt, even with the correct password, is blocked by the
	// double-key cooldown rather than reaching verification.
	locked := doJSON(t, s, http.MethodPost, "/auth/login", loginRequest{
		Username: "alice", Password: "correct horse battery staple",
	})
	assert.Equal(t, http.StatusTooManyRequests, locked.StatusCode)
	assert.NotEmpty(t, locked.Header.Get("Retry-After"))
}

func TestHandleLoginRequiresTOTPWhenEnabled(t *testing.T) {
	s := newTestServer(t)
	u := createTestUser(t, s, "alice", "correct horse battery staple")
	secret, err := crypto.GenerateTOTPSecret()
	require.NoError(t, err)
	require.NoError(t, s.Creds.UpdateTOTP(u.Username, credentials.TOTPFields{Enabled: true, Secret: secret}))

	withoutCode := doJSON(t, s, http.MethodPost, "/auth/login", loginRequest{
		Username: "alice", Password: "correct horse battery staple",
	})
	assert.Equal(t, http.StatusUnauthorized, withoutCode.StatusCode)

	code, err := totp.GenerateCode(secret, time.Now())
	require.NoError(t, err)
	withCode := doJSON(t, s, http.MethodPost, "/auth/login", loginRequest{
		Username: "alice", Password: "correct horse battery staple", TOTPCode: code,
	})
	require.Equal(t, http.StatusOK, withCode.StatusCode)
}

func TestHandleLoginRejectsSuppliedBothFactorsAtOnce(t *testing.T) {
	s := newTestServer(t)
	u := createTestUser(t, s, "alice", "correct horse battery staple")
	secret, err := crypto.GenerateTOTPSecret()
	require.NoError(t, err)
	require.NoError(t, s.Creds.UpdateTOTP(u.Username, credentials.TOTPFields{Enabled: true, Secret: secret}))

	code, err := totp.GenerateCode(secret, time.Now())
	require.NoError(t, err)
	resp := doJSON(t, s, http.MethodPost, "/auth/login", loginRequest{
		Username: "alice", Password: "correct horse battery staple",
		TOTPCode: code, BackupCode: "ABCD-EFGH",
	})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestHandleLoginAcceptsBackupCodeAndConsumesIt(t *testing.T) {
	s := newTestServer(t)
	u := createTestUser(t, s, "alice", "correct horse battery staple")
	secret, err := crypto.GenerateTOTPSecret()
	require.NoError(t, err)
	codes, err := crypto.GenerateBackupCodes(magic.BackupCodeCount)
	require.NoError(t, err)
	hashes := make([]string, len(codes))
	for i, code := range codes {
		h, err := crypto.HashBackupCode(code)
		require.NoError(t, err)
		hashes[i] = h
	}
	require.NoError(t, s.Creds.UpdateTOTP(u.Username, credentials.TOTPFields{
		Enabled: true, Secret: secret, BackupCodeHashes: hashes,
	}))

	resp := doJSON(t, s, http.MethodPost, "/auth/login", loginRequest{
		Username: "alice", Password: "correct horse battery staple", BackupCode: codes[0],
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// The same backup code cannot be reused.
	replay := doJSON(t, s, http.MethodPost, "/auth/login", loginRequest{
		Username: "alice", Password: "correct horse battery staple", BackupCode: codes[0],
	})
	assert.Equal(t, http.StatusUnauthorized, replay.StatusCode)
}

func TestHandleMeRequiresSessionCookie(t *testing.T) {
	s := newTestServer(t)
	resp := doJSON(t, s, http.MethodGet, "/auth/me", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestHandleMeReturnsCurrentUser(t *testing.T) {
	s := newTestServer(t)
	createTestUser(t, s, "alice", "correct horse battery staple")

	login := doJSON(t, s, http.MethodPost, "/auth/login", loginRequest{
		Username: "alice", Password: "correct horse battery staple",
	})
	ck := sessionCookie(login)
	require.NotNil(t, ck)

	resp := doJSON(t, s, http.MethodGet, "/auth/me", nil, ck)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeJSON(t, resp)
	user := body["user"].(map[string]any)
	assert.Equal(t, "alice", user["username"])
}

func TestHandleLogoutAlwaysReturns200(t *testing.T) {
	s := newTestServer(t)
	resp := doJSON(t, s, http.MethodPost, "/auth/logout", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestHandleLogoutInvalidatesSession(t *testing.T) {
	s := newTestServer(t)
	createTestUser(t, s, "alice", "correct horse battery staple")

	login := doJSON(t, s, http.MethodPost, "/auth/login", loginRequest{
		Username: "alice", Password: "correct horse battery staple",
	})
	ck := sessionCookie(login)
	require.NotNil(t, ck)

	logout := doJSON(t, s, http.MethodPost, "/auth/logout", nil, ck)
	assert.Equal(t, http.StatusOK, logout.StatusCode)

	after := doJSON(t, s, http.MethodGet, "/auth/me", nil, ck)
	assert.Equal(t, http.StatusUnauthorized, after.StatusCode)
}
