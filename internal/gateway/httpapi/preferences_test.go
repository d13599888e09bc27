// Copyright (c) 2025 Justin Cranford

package httpapi

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loginAs(t *testing.T, s *Server, username, password string) (*http.Cookie, string) {
	t.Helper()
	resp := doJSON(t, s, http.MethodPost, "/auth/login", loginRequest{Username: username, Password: password})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	ck := sessionCookie(resp)
	require.NotNil(t, ck)
	body := decodeJSON(t, resp)
	return ck, body["csrfToken"].(string)
}

func loginAsWithTOTP(t *testing.T, s *Server, username, password, totpCode string) (*http.Cookie, string) {
	t.Helper()
	resp := doJSON(t, s, http.MethodPost, "/auth/login", loginRequest{Username: username, Password: password, TOTPCode: totpCode})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	ck := sessionCookie(resp)
	require.NotNil(t, ck)
	body := decodeJSON(t, resp)
	return ck, body["csrfToken"].(string)
}

func TestHandleGetPreferencesRequiresSession(t *testing.T) {
	s := newTestServer(t)
	resp := doJSON(t, s, http.MethodGet, "/api/preferences", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestHandleGetPreferencesReturnsDefaults(t *testing.T) {
	s := newTestServer(t)
	createTestUser(t, s, "alice", "correct horse battery staple")
	ck, _ := loginAs(t, s, "alice", "correct horse battery staple")

	resp := doJSON(t, s, http.MethodGet, "/api/preferences", nil, ck)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeJSON(t, resp)
	prefs := body["preferences"].(map[string]any)
	assert.NotEmpty(t, prefs["theme"])
}

func TestHandleSetPreferencesRequiresCSRFHeader(t *testing.T) {
	s := newTestServer(t)
	createTestUser(t, s, "alice", "correct horse battery staple")
	ck, _ := loginAs(t, s, "alice", "correct horse battery staple")

	resp := doJSON(t, s, http.MethodPut, "/api/preferences", map[string]any{"theme": "dark"}, ck)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestHandleSetPreferencesMergesAndPersists(t *testing.T) {
	s := newTestServer(t)
	createTestUser(t, s, "alice", "correct horse battery staple")
	ck, csrf := loginAs(t, s, "alice", "correct horse battery staple")

	req := httpRequestWithCSRF(t, s, http.MethodPut, "/api/preferences", map[string]any{"theme": "dark"}, ck, csrf)
	require.Equal(t, http.StatusOK, req.StatusCode)
	body := decodeJSON(t, req)
	prefs := body["preferences"].(map[string]any)
	assert.Equal(t, "dark", prefs["theme"])

	reread := doJSON(t, s, http.MethodGet, "/api/preferences", nil, ck)
	body2 := decodeJSON(t, reread)
	prefs2 := body2["preferences"].(map[string]any)
	assert.Equal(t, "dark", prefs2["theme"])
}
