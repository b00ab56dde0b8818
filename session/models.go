// Package session defines server-side login sessions. A session is minted
// after the external identity provider verifies a one-time session
// identifier; the opaque token is what clients present on later requests.
package session

import (
	"time"

	"github.com/qrgate/qrgate/id"
	"github.com/qrgate/qrgate/types"
)

// DefaultTTL is how long a freshly minted session stays valid.
const DefaultTTL = 7 * 24 * time.Hour

// Session is a server-side login session. An account holds at most one:
// minting a new session replaces any prior one.
type Session struct {
	types.Entity
	ID        id.SessionID `json:"id"`
	AccountID id.AccountID `json:"account_id"`
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
}

// ExpiredAt reports whether the session is expired at the given instant.
func (s *Session) ExpiredAt(now time.Time) bool {
	return !s.ExpiresAt.After(now)
}
