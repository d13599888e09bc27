// Copyright (c) 2025 Justin Cranford

package wsapi

import (
	"context"

	"github.com/CohesiumAI/openclaw-sub001/internal/gateway/credentials"
	"github.com/CohesiumAI/openclaw-sub001/internal/gateway/preferences"
	"github.com/CohesiumAI/openclaw-sub001/internal/gateway/session"
	"github.com/CohesiumAI/openclaw-sub001/internal/shared/gatewayerr"
	"github.com/CohesiumAI/openclaw-sub001/internal/shared/magic"
)

// method is a privileged RPC handler. conn.AuthUser is the only valid
// source of principal; a client-supplied "username" param is ignored, per
// spec.md §4.7.
type method func(ctx context.Context, conn *Conn, params RawParams) (any, error)

// Dispatcher routes Request.Method to its handler, enforcing the scope
// requirement named in SPEC_FULL.md §4.7 before invoking it.
type Dispatcher struct {
	Sessions    *session.Store
	Creds       *credentials.Store
	Prefs       *preferences.Store
	Persistence *session.Persistence

	routes map[string]route
}

type route struct {
	requiredScope magic.Scope // "" means "any authenticated session"
	handler       method
}

// NewDispatcher wires every privileged method named in spec.md §4.7.
func NewDispatcher(sessions *session.Store, creds *credentials.Store, prefs *preferences.Store, persistence *session.Persistence) *Dispatcher {
	d := &Dispatcher{Sessions: sessions, Creds: creds, Prefs: prefs, Persistence: persistence}
	d.routes = map[string]route{
		"user.sessions.revoke-all": {requiredScope: magic.ScopeAdmin, handler: d.userSessionsRevokeAll},
		"user.sessions.list":       {requiredScope: magic.ScopeAdmin, handler: d.userSessionsList},
		"user.sessions.revoke":     {requiredScope: magic.ScopeAdmin, handler: d.userSessionsRevoke},
		"user.list":                {requiredScope: magic.ScopeAdmin, handler: d.userList},
		"user.preferences.get":     {handler: d.userPreferencesGet},
		"user.preferences.set":     {handler: d.userPreferencesSet},
	}
	return d
}

// Dispatch resolves and invokes the method named by req, deriving the
// principal strictly from conn.AuthUser.
func (d *Dispatcher) Dispatch(conn *Conn, req Request) Response {
	if conn.AuthUser == "" {
		return Response{ID: req.ID, OK: false, Error: "INVALID_REQUEST: password authentication required"}
	}
	r, ok := d.routes[req.Method]
	if !ok {
		return Response{ID: req.ID, OK: false, Error: "unknown method"}
	}
	if r.requiredScope != "" && !conn.HasScope(r.requiredScope) {
		return Response{ID: req.ID, OK: false, Error: gatewayerr.KindForbidden.String()}
	}

	result, err := r.handler(context.Background(), conn, req.Params)
	if err != nil {
		return Response{ID: req.ID, OK: false, Error: err.Error()}
	}
	return Response{ID: req.ID, OK: true, Result: result}
}

// userSessionsRevokeAll revokes the caller's own sessions. It never reads a
// "username" param: per spec.md §1/§4.7 the principal for this method is
// conn.AuthUser only, so a client can't spoof another user's target by
// supplying one in the request payload. An admin revoking someone else's
// sessions goes through the HTTP admin surface instead.
func (d *Dispatcher) userSessionsRevokeAll(ctx context.Context, conn *Conn, params RawParams) (any, error) {
	d.Sessions.DeleteByUser(ctx, conn.AuthUser)
	if d.Persistence != nil {
		d.Persistence.ScheduleFlush()
	}
	return map[string]any{"revoked": true}, nil
}

// userSessionsList lists the caller's own sessions; see userSessionsRevokeAll
// for why "username" is never read from params.
func (d *Dispatcher) userSessionsList(ctx context.Context, conn *Conn, params RawParams) (any, error) {
	return map[string]any{"sessionIds": d.Sessions.ListUserSessionIDs(conn.AuthUser)}, nil
}

func (d *Dispatcher) userSessionsRevoke(ctx context.Context, conn *Conn, params RawParams) (any, error) {
	id, _ := params["sessionId"].(string)
	if id == "" {
		return nil, gatewayerr.New(gatewayerr.KindInvalidInput, "sessionId is required")
	}
	d.Sessions.DeleteByID(ctx, id)
	if d.Persistence != nil {
		d.Persistence.ScheduleFlush()
	}
	return map[string]any{"revoked": true}, nil
}

func (d *Dispatcher) userList(ctx context.Context, conn *Conn, params RawParams) (any, error) {
	users := d.Creds.List()
	out := make([]map[string]any, 0, len(users))
	for _, u := range users {
		out = append(out, map[string]any{"username": u.Username, "role": u.Role, "totpEnabled": u.TOTPEnabled})
	}
	return out, nil
}

// userPreferencesGet/Set always derive the target user from conn.AuthUser,
// never from params, per spec.md §4.7's "client-supplied username
// parameter is ignored" rule.
func (d *Dispatcher) userPreferencesGet(ctx context.Context, conn *Conn, params RawParams) (any, error) {
	return d.Prefs.Get(conn.AuthUser)
}

func (d *Dispatcher) userPreferencesSet(ctx context.Context, conn *Conn, params RawParams) (any, error) {
	patch, _ := params["preferences"].(map[string]any)
	return d.Prefs.Merge(conn.AuthUser, patch)
}
