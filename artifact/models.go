// Package artifact defines generated QR code records. The artifact rows
// are also the usage ledger: an owner's generation count is the number of
// live artifacts attributed to its owner key, never a separate counter.
package artifact

import (
	"fmt"

	"github.com/qrgate/qrgate/id"
	"github.com/qrgate/qrgate/types"
)

// Artifact is one generated QR code, owned by exactly one account or
// one guest address.
type Artifact struct {
	types.Entity
	ID         id.ArtifactID `json:"id"`
	OwnerKey   string        `json:"owner_key"`
	TargetURL  string        `json:"url"`
	Width      int           `json:"width"`
	Height     int           `json:"height"`
	ImageRef   string        `json:"image_ref"`
	Downloaded bool          `json:"downloaded"`
}

// Size returns the pixel dimensions in "WxH" form.
func (a *Artifact) Size() string {
	return fmt.Sprintf("%dx%d", a.Width, a.Height)
}
