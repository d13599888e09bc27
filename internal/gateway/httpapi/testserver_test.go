// Copyright (c) 2025 Justin Cranford

package httpapi

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/CohesiumAI/openclaw-sub001/internal/gateway/audit"
	"github.com/CohesiumAI/openclaw-sub001/internal/gateway/credentials"
	"github.com/CohesiumAI/openclaw-sub001/internal/gateway/preferences"
	"github.com/CohesiumAI/openclaw-sub001/internal/gateway/projects"
	"github.com/CohesiumAI/openclaw-sub001/internal/gateway/ratelimit"
	"github.com/CohesiumAI/openclaw-sub001/internal/gateway/session"
	"github.com/CohesiumAI/openclaw-sub001/internal/shared/logging"
)

// newTestServer builds a fully wired Server rooted at a fresh temp
// directory, mirroring the component graph cmd/openclaw-gateway/command's
// serve command assembles, minus TLS and the WS surface (exercised
// separately in the wsapi package).
func newTestServer(t *testing.T) *Server {
	t.Helper()
	dir := t.TempDir()

	creds, err := credentials.Open(dir, "")
	require.NoError(t, err)

	return New(Deps{
		Logger:   logging.Discard(),
		Sessions: session.New(),
		Creds:    creds,
		Limiter:  ratelimit.New(),
		Audit:    newInertAuditLog(t, dir),
		Prefs:    preferences.New(dir),
		Projects: projects.New(dir),
	})
}

func newInertAuditLog(t *testing.T, dir string) *audit.Log {
	t.Helper()
	l := audit.New()
	require.NoError(t, l.Init(dir, 10))
	t.Cleanup(l.Shutdown)
	return l
}

// doJSON issues a JSON request against s.App and returns the raw response.
func doJSON(t *testing.T, s *Server, method, path string, body any, cookies ...*http.Cookie) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for _, ck := range cookies {
		req.AddCookie(ck)
	}
	resp, err := s.App.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func decodeJSON(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()
	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

// httpRequestWithCSRF issues a state-changing JSON request carrying both
// the session cookie and the matching X-CSRF-Token header.
func httpRequestWithCSRF(t *testing.T, s *Server, method, path string, body any, ck *http.Cookie, csrfToken string) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(csrfHeader, csrfToken)
	req.AddCookie(ck)
	resp, err := s.App.Test(req, -1)
	require.NoError(t, err)
	return resp
}

// sessionCookie extracts the session cookie from a login/refresh response.
func sessionCookie(resp *http.Response) *http.Cookie {
	for _, ck := range resp.Cookies() {
		if ck.Name == cookieName {
			return ck
		}
	}
	return nil
}
