package httpapi

import (
	"context"
	"net"
	"net/http"
	"strings"

	"github.com/qrgate/qrgate/identity"
)

type contextKey string

const identityContextKey contextKey = "identity"

// identityMiddleware resolves the request's credentials to an identity and
// stores it in the context. Authentication failures degrade to a guest
// identity for the client address.
func (r *Router) identityMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		ident := r.gate.Resolve(req.Context(), sessionToken(req), r.clientAddr(req))
		ctx := context.WithValue(req.Context(), identityContextKey, ident)
		next.ServeHTTP(w, req.WithContext(ctx))
	})
}

func requestIdentity(ctx context.Context) identity.Identity {
	if v := ctx.Value(identityContextKey); v != nil {
		if ident, ok := v.(identity.Identity); ok {
			return ident
		}
	}
	return identity.Guest("")
}

// sessionToken prefers the session cookie and falls back to a bearer token.
func sessionToken(req *http.Request) string {
	if c, err := req.Cookie(sessionCookieName); err == nil && c.Value != "" {
		return c.Value
	}
	authz := req.Header.Get("Authorization")
	if strings.HasPrefix(authz, "Bearer ") {
		return strings.TrimPrefix(authz, "Bearer ")
	}
	return ""
}

// clientAddr returns the guest counting address: the configured trusted
// header when present, otherwise the transport peer address. An abuse
// heuristic, not a security boundary.
func (r *Router) clientAddr(req *http.Request) string {
	if r.clientIPHeader != "" {
		if v := req.Header.Get(r.clientIPHeader); v != "" {
			// A forwarding chain lists the client first.
			if i := strings.IndexByte(v, ','); i >= 0 {
				v = v[:i]
			}
			return strings.TrimSpace(v)
		}
	}
	host, _, err := net.SplitHostPort(req.RemoteAddr)
	if err != nil {
		return req.RemoteAddr
	}
	return host
}
