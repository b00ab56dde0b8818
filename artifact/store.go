package artifact

import (
	"context"

	"github.com/qrgate/qrgate/id"
)

// ListOptions filters and pages artifact listings.
type ListOptions struct {
	Limit  int
	Offset int
}

// Store persists artifacts.
type Store interface {
	Record(ctx context.Context, a *Artifact) error
	Get(ctx context.Context, artifactID id.ArtifactID) (*Artifact, error)
	CountByOwner(ctx context.Context, ownerKey string) (int64, error)
	ListByOwner(ctx context.Context, ownerKey string, opts ListOptions) ([]*Artifact, error)
	Delete(ctx context.Context, artifactID id.ArtifactID) error
}
