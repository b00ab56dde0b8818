// Package qrgate provides a QR code generation engine gated by tiered usage
// entitlements.
//
// QRGate is designed as a library, not a service. Import it directly into your
// Go application, or run the bundled cmd/qrgated server for the JSON API. It
// provides:
//
//   - Tiered generation ceilings: guests get 3, standard accounts 5, premium
//     subscribers and founders generate without limit
//   - A usage ledger derived from live artifacts — deleting a QR code frees
//     its slot immediately, and no separate counter can drift
//   - Atomic per-owner admission, so concurrent requests never overshoot a
//     ceiling
//   - Session-based authentication against an external identity provider,
//     degrading to guest access when credentials fail
//   - Monthly premium subscriptions and permanent founder promo codes
//   - Pluggable storage (in-memory, MongoDB, SQLite, PostgreSQL)
//   - Lifecycle hooks for audit trails and metrics
//
// # Quick Start
//
// Create a gate instance with your preferred store:
//
//	import (
//	    "github.com/qrgate/qrgate"
//	    "github.com/qrgate/qrgate/render"
//	    "github.com/qrgate/qrgate/store/memory"
//	)
//
//	renderer, err := render.NewClient(render.ClientConfig{})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	gate := qrgate.New(memory.New(), qrgate.WithRenderer(renderer))
//
//	// Start the gate (runs migrations, begins background workers)
//	if err := gate.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer gate.Stop()
//
// # Core Concepts
//
// Every operation takes the caller's identity explicitly. A guest identity
// is keyed by network address; an authenticated identity carries its account
// ID and tier:
//
//	ident := identity.Guest("203.0.113.7")
//
//	art, limits, err := gate.Generate(ctx, ident, "https://example.com", "200x200")
//	if errors.Is(err, qrgate.ErrLimitReached) {
//	    // limits.Used / limits.Max describe the exhausted ceiling
//	}
//
// An identity's generation count is always the number of its live artifacts:
//
//	_ = gate.DeleteArtifact(ctx, ident, art.ID) // frees a slot
//
// Authentication exchanges a one-time identity-provider handle for a local
// session token:
//
//	acct, sess, err := gate.CreateSession(ctx, oneTimeSessionID)
//	ident := gate.Resolve(ctx, sess.Token, clientAddr)
//
// Promotions raise the tier: ActivateSubscription grants premium for 30 days
// (superseding any prior subscription), and RedeemPromoCode grants the
// permanent founder tier.
//
// # TypeID
//
// All entities use TypeID for globally unique, type-safe identifiers:
//
//	acct_01h2xcejqtf2nbrexx3vqjhp41  // Account ID
//	qr_01h2xcejqtf2nbrexx3vqjhp41    // Artifact ID
//	sub_01h455vb4pex5vsknk084sn02q   // Subscription ID
//
// TypeIDs are K-sortable, making them ideal for database indexes and
// providing natural time-ordering of entities.
package qrgate
