// Copyright (c) 2025 Justin Cranford

package wsapi

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CohesiumAI/openclaw-sub001/internal/gateway/credentials"
	"github.com/CohesiumAI/openclaw-sub001/internal/gateway/preferences"
	"github.com/CohesiumAI/openclaw-sub001/internal/gateway/session"
	"github.com/CohesiumAI/openclaw-sub001/internal/shared/magic"
)

func newTestDispatcher(t *testing.T) *Dispatcher {
	t.Helper()
	dir := t.TempDir()
	creds, err := credentials.Open(dir, "")
	require.NoError(t, err)
	return NewDispatcher(session.New(), creds, preferences.New(dir), nil)
}

func TestDispatchRejectsUnauthenticatedConnection(t *testing.T) {
	d := newTestDispatcher(t)
	conn := &Conn{}
	resp := d.Dispatch(conn, Request{ID: "1", Method: "user.list"})
	assert.False(t, resp.OK)
	assert.Contains(t, resp.Error, "authentication required")
}

func TestDispatchRejectsUnknownMethod(t *testing.T) {
	d := newTestDispatcher(t)
	conn := &Conn{AuthUser: "alice"}
	resp := d.Dispatch(conn, Request{ID: "1", Method: "no.such.method"})
	assert.False(t, resp.OK)
	assert.Equal(t, "unknown method", resp.Error)
}

func TestDispatchEnforcesRequiredScope(t *testing.T) {
	d := newTestDispatcher(t)
	conn := &Conn{AuthUser: "alice"} // no scopes
	resp := d.Dispatch(conn, Request{ID: "1", Method: "user.list"})
	assert.False(t, resp.OK)
	assert.NotEmpty(t, resp.Error)
}

func TestDispatchAllowsAdminScopeForUserList(t *testing.T) {
	d := newTestDispatcher(t)
	conn := &Conn{AuthUser: "root", AuthScopes: []magic.Scope{magic.ScopeAdmin}}
	resp := d.Dispatch(conn, Request{ID: "1", Method: "user.list"})
	assert.True(t, resp.OK)
}

func TestDispatchUserPreferencesIgnoresClientSuppliedUsername(t *testing.T) {
	d := newTestDispatcher(t)
	conn := &Conn{AuthUser: "alice"}

	setResp := d.Dispatch(conn, Request{ID: "1", Method: "user.preferences.set", Params: RawParams{
		"username":    "bob", // must be ignored; principal comes from conn only
		"preferences": map[string]any{"theme": "dark"},
	}})
	require.True(t, setResp.OK)

	// bob's preferences were never touched.
	bobPrefs, err := d.Prefs.Get("bob")
	require.NoError(t, err)
	assert.NotEqual(t, "dark", bobPrefs.Theme)

	getResp := d.Dispatch(conn, Request{ID: "2", Method: "user.preferences.get"})
	require.True(t, getResp.OK)
}

func TestDispatchSessionsRevokeRequiresSessionID(t *testing.T) {
	d := newTestDispatcher(t)
	conn := &Conn{AuthUser: "root", AuthScopes: []magic.Scope{magic.ScopeAdmin}}
	resp := d.Dispatch(conn, Request{ID: "1", Method: "user.sessions.revoke", Params: RawParams{}})
	assert.False(t, resp.OK)
}

func TestDispatchSessionsRevokeAllDefaultsToCaller(t *testing.T) {
	d := newTestDispatcher(t)
	ctx := t.Context()
	sess, err := d.Sessions.Create(ctx, session.CreateParams{Username: "alice", Role: magic.RoleOperator})
	require.NoError(t, err)
	require.NotNil(t, sess)

	conn := &Conn{AuthUser: "alice", AuthScopes: []magic.Scope{magic.ScopeAdmin}}
	resp := d.Dispatch(conn, Request{ID: "1", Method: "user.sessions.revoke-all"})
	assert.True(t, resp.OK)
	assert.Empty(t, d.Sessions.ListUserSessionIDs("alice"))
}

func TestDispatchSessionsRevokeAllIgnoresClientSuppliedUsername(t *testing.T) {
	d := newTestDispatcher(t)
	ctx := t.Context()
	_, err := d.Sessions.Create(ctx, session.CreateParams{Username: "alice", Role: magic.RoleOperator})
	require.NoError(t, err)
	victimSess, err := d.Sessions.Create(ctx, session.CreateParams{Username: "victim", Role: magic.RoleOperator})
	require.NoError(t, err)
	require.NotNil(t, victimSess)

	conn := &Conn{AuthUser: "alice", AuthScopes: []magic.Scope{magic.ScopeAdmin}}
	resp := d.Dispatch(conn, Request{ID: "1", Method: "user.sessions.revoke-all", Params: RawParams{
		"username": "victim", // must be ignored; only conn.AuthUser's sessions are revoked
	}})
	assert.True(t, resp.OK)

	assert.Empty(t, d.Sessions.ListUserSessionIDs("alice"))
	assert.NotEmpty(t, d.Sessions.ListUserSessionIDs("victim"))
}

func TestDispatchSessionsListIgnoresClientSuppliedUsername(t *testing.T) {
	d := newTestDispatcher(t)
	ctx := t.Context()
	_, err := d.Sessions.Create(ctx, session.CreateParams{Username: "victim", Role: magic.RoleOperator})
	require.NoError(t, err)

	conn := &Conn{AuthUser: "alice", AuthScopes: []magic.Scope{magic.ScopeAdmin}}
	resp := d.Dispatch(conn, Request{ID: "1", Method: "user.sessions.list", Params: RawParams{
		"username": "victim",
	}})
	require.True(t, resp.OK)
	result := resp.Result.(map[string]any)
	assert.Empty(t, result["sessionIds"])
}

func TestConnHasScope(t *testing.T) {
	conn := &Conn{AuthScopes: []magic.Scope{magic.ScopeAdmin}}
	assert.True(t, conn.HasScope(magic.ScopeAdmin))
	assert.False(t, conn.HasScope(magic.Scope("nonexistent")))
}
