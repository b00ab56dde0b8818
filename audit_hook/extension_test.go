package audithook_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"sync"
	"testing"
	"time"

	qrgate "github.com/qrgate/qrgate"
	"github.com/qrgate/qrgate/artifact"
	audithook "github.com/qrgate/qrgate/audit_hook"
	"github.com/qrgate/qrgate/entitlement"
	"github.com/qrgate/qrgate/identity"
	"github.com/qrgate/qrgate/store/memory"
)

// captureRecorder accumulates every audit event it receives.
type captureRecorder struct {
	mu     sync.Mutex
	events []*audithook.AuditEvent
	err    error
}

func (c *captureRecorder) Record(_ context.Context, evt *audithook.AuditEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, evt)
	return c.err
}

func (c *captureRecorder) actions() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.events))
	for i, evt := range c.events {
		out[i] = evt.Action
	}
	return out
}

func (c *captureRecorder) last() *audithook.AuditEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.events) == 0 {
		return nil
	}
	return c.events[len(c.events)-1]
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestQuotaExceededEvent(t *testing.T) {
	rec := &captureRecorder{}
	e := audithook.New(rec)

	if err := e.OnQuotaExceeded(context.Background(), "guest:198.51.100.7", 3, 3); err != nil {
		t.Fatalf("OnQuotaExceeded: %v", err)
	}

	evt := rec.last()
	if evt == nil {
		t.Fatal("no event recorded")
	}
	if evt.Action != audithook.ActionQuotaExceeded {
		t.Errorf("Action = %q, want %q", evt.Action, audithook.ActionQuotaExceeded)
	}
	if evt.Severity != audithook.SeverityWarning {
		t.Errorf("Severity = %q, want %q", evt.Severity, audithook.SeverityWarning)
	}
	if evt.Outcome != audithook.OutcomeFailure {
		t.Errorf("Outcome = %q, want %q", evt.Outcome, audithook.OutcomeFailure)
	}
	if got := evt.Metadata["owner_key"]; got != "guest:198.51.100.7" {
		t.Errorf("metadata owner_key = %v, want guest:198.51.100.7", got)
	}
	if got := evt.Metadata["used"]; got != int64(3) {
		t.Errorf("metadata used = %v, want 3", got)
	}
	if got := evt.Metadata["limit"]; got != int64(3) {
		t.Errorf("metadata limit = %v, want 3", got)
	}
}

func TestTierChangedEvent(t *testing.T) {
	rec := &captureRecorder{}
	e := audithook.New(rec)

	if err := e.OnTierChanged(context.Background(), "acct_1", "premium", "standard"); err != nil {
		t.Fatalf("OnTierChanged: %v", err)
	}

	evt := rec.last()
	if evt == nil {
		t.Fatal("no event recorded")
	}
	if evt.Resource != audithook.ResourceAccount || evt.ResourceID != "acct_1" {
		t.Errorf("resource = %s/%s, want account/acct_1", evt.Resource, evt.ResourceID)
	}
	if got := evt.Metadata["old_tier"]; got != "premium" {
		t.Errorf("metadata old_tier = %v, want premium", got)
	}
	if got := evt.Metadata["new_tier"]; got != "standard" {
		t.Errorf("metadata new_tier = %v, want standard", got)
	}
}

func TestArtifactDeletedEvent(t *testing.T) {
	rec := &captureRecorder{}
	e := audithook.New(rec)

	if err := e.OnArtifactDeleted(context.Background(), "qr_1", "guest:203.0.113.4"); err != nil {
		t.Fatalf("OnArtifactDeleted: %v", err)
	}

	evt := rec.last()
	if evt == nil {
		t.Fatal("no event recorded")
	}
	if evt.Action != audithook.ActionArtifactDeleted || evt.ResourceID != "qr_1" {
		t.Errorf("event = %s/%s, want artifact.deleted/qr_1", evt.Action, evt.ResourceID)
	}
	if got := evt.Metadata["owner_key"]; got != "guest:203.0.113.4" {
		t.Errorf("metadata owner_key = %v, want guest:203.0.113.4", got)
	}
}

func TestPromoRedeemedEvent(t *testing.T) {
	rec := &captureRecorder{}
	e := audithook.New(rec)

	if err := e.OnPromoRedeemed(context.Background(), "acct_2", "QR-CODE-X"); err != nil {
		t.Fatalf("OnPromoRedeemed: %v", err)
	}

	evt := rec.last()
	if evt == nil {
		t.Fatal("no event recorded")
	}
	if evt.Resource != audithook.ResourcePromo || evt.ResourceID != "QR-CODE-X" {
		t.Errorf("resource = %s/%s, want promo/QR-CODE-X", evt.Resource, evt.ResourceID)
	}
	if got := evt.Metadata["account_id"]; got != "acct_2" {
		t.Errorf("metadata account_id = %v, want acct_2", got)
	}
}

func TestSessionsPurgedEvent(t *testing.T) {
	rec := &captureRecorder{}
	e := audithook.New(rec)

	if err := e.OnSessionsPurged(context.Background(), 4, 1500*time.Millisecond); err != nil {
		t.Fatalf("OnSessionsPurged: %v", err)
	}

	evt := rec.last()
	if evt == nil {
		t.Fatal("no event recorded")
	}
	if got := evt.Metadata["purged"]; got != int64(4) {
		t.Errorf("metadata purged = %v, want 4", got)
	}
	if got := evt.Metadata["elapsed_ms"]; got != int64(1500) {
		t.Errorf("metadata elapsed_ms = %v, want 1500", got)
	}
}

func TestEnabledActionsFilter(t *testing.T) {
	rec := &captureRecorder{}
	e := audithook.New(rec, audithook.WithEnabledActions(audithook.ActionQuotaExceeded))

	ctx := context.Background()
	if err := e.OnArtifactDeleted(ctx, "qr_1", "guest:203.0.113.4"); err != nil {
		t.Fatalf("OnArtifactDeleted: %v", err)
	}
	if err := e.OnQuotaExceeded(ctx, "guest:203.0.113.4", 3, 3); err != nil {
		t.Fatalf("OnQuotaExceeded: %v", err)
	}

	got := rec.actions()
	if len(got) != 1 || got[0] != audithook.ActionQuotaExceeded {
		t.Errorf("recorded actions %v, want only quota.exceeded", got)
	}
}

func TestDisabledActionsFilter(t *testing.T) {
	rec := &captureRecorder{}
	e := audithook.New(rec, audithook.WithDisabledActions(audithook.ActionSessionCreated))

	ctx := context.Background()
	if err := e.OnSessionCreated(ctx, nil); err != nil {
		t.Fatalf("OnSessionCreated: %v", err)
	}
	if err := e.OnTierChanged(ctx, "acct_1", "standard", "founder"); err != nil {
		t.Fatalf("OnTierChanged: %v", err)
	}

	got := rec.actions()
	if len(got) != 1 || got[0] != audithook.ActionTierChanged {
		t.Errorf("recorded actions %v, want only tier.changed", got)
	}
}

func TestRecorderFailureIsSwallowed(t *testing.T) {
	rec := &captureRecorder{err: errors.New("backend down")}
	e := audithook.New(rec, audithook.WithLogger(discardLogger()))

	// A failing backend must never propagate into the gate.
	if err := e.OnArtifactCreated(context.Background(), nil); err != nil {
		t.Fatalf("OnArtifactCreated returned %v, want nil", err)
	}
	if got := len(rec.actions()); got != 1 {
		t.Errorf("recorded %d events, want 1", got)
	}
}

// staticRenderer satisfies qrgate.Renderer without a network dependency.
type staticRenderer struct{}

func (staticRenderer) Render(_ context.Context, target string, width, height int) (string, error) {
	return fmt.Sprintf("https://images.example/qr?size=%dx%d&data=%s", width, height, url.QueryEscape(target)), nil
}

func TestGateAuditTrail(t *testing.T) {
	rec := &captureRecorder{}
	g := qrgate.New(memory.New(),
		qrgate.WithLogger(discardLogger()),
		qrgate.WithRenderer(staticRenderer{}),
		qrgate.WithPlugin(audithook.New(rec, audithook.WithLogger(discardLogger()))),
	)
	ctx := context.Background()
	if err := g.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { g.Stop() })

	ident := identity.Guest("198.51.100.30")
	var last *artifact.Artifact
	for i := int64(0); i < entitlement.GuestCeiling; i++ {
		art, _, err := g.Generate(ctx, ident, "https://example.com", "")
		if err != nil {
			t.Fatalf("Generate %d: %v", i, err)
		}
		last = art
	}
	if _, _, err := g.Generate(ctx, ident, "https://example.com", ""); !errors.Is(err, qrgate.ErrLimitReached) {
		t.Fatalf("Generate over ceiling: %v, want ErrLimitReached", err)
	}
	if err := g.DeleteArtifact(ctx, ident, last.ID); err != nil {
		t.Fatalf("DeleteArtifact: %v", err)
	}

	counts := map[string]int{}
	for _, action := range rec.actions() {
		counts[action]++
	}
	if counts[audithook.ActionArtifactCreated] != 3 {
		t.Errorf("artifact.created events = %d, want 3", counts[audithook.ActionArtifactCreated])
	}
	if counts[audithook.ActionQuotaExceeded] != 1 {
		t.Errorf("quota.exceeded events = %d, want 1", counts[audithook.ActionQuotaExceeded])
	}
	if counts[audithook.ActionArtifactDeleted] != 1 {
		t.Errorf("artifact.deleted events = %d, want 1", counts[audithook.ActionArtifactDeleted])
	}
}
