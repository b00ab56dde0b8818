// Package promo handles founder promo codes and their redemptions.
//
// Codes are matched byte for byte. No trimming, no case folding: a code
// pasted with stray whitespace is simply not a valid code.
package promo

import (
	"regexp"

	"github.com/qrgate/qrgate/id"
	"github.com/qrgate/qrgate/types"
)

// DefaultFounderCode is the built-in code shipped with the service.
// Deployments can replace or extend the set via Registry.
const DefaultFounderCode = "QR-8K9M7-F3X2L"

// codePattern is the shape of well-formed codes. Advisory: redemption
// matches against the registry, not against this pattern.
var codePattern = regexp.MustCompile(`^QR-[A-Z0-9]{5}-[A-Z0-9]{5}$`)

// Registry is the set of codes that grant founder status. The zero value
// accepts nothing; use NewRegistry for the default set.
type Registry struct {
	codes map[string]struct{}
}

// NewRegistry returns a registry seeded with DefaultFounderCode.
func NewRegistry() *Registry {
	r := &Registry{codes: make(map[string]struct{})}
	r.Add(DefaultFounderCode)
	return r
}

// NewEmptyRegistry returns a registry with no codes.
func NewEmptyRegistry() *Registry {
	return &Registry{codes: make(map[string]struct{})}
}

// Add registers a code. Malformed codes are accepted too; the pattern is
// advisory for generation, and operators may configure legacy codes.
func (r *Registry) Add(code string) {
	if r.codes == nil {
		r.codes = make(map[string]struct{})
	}
	r.codes[code] = struct{}{}
}

// Valid reports whether code exactly matches a registered code.
func (r *Registry) Valid(code string) bool {
	_, ok := r.codes[code]
	return ok
}

// WellFormed reports whether code matches the canonical QR-XXXXX-XXXXX
// shape.
func WellFormed(code string) bool {
	return codePattern.MatchString(code)
}

// Redemption records that an account redeemed a code. At most one
// redemption exists per (account, code) pair.
type Redemption struct {
	types.Entity
	ID        id.RedemptionID `json:"id"`
	AccountID id.AccountID    `json:"account_id"`
	Code      string          `json:"code"`
}
