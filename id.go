package qrgate

import "github.com/qrgate/qrgate/id"

// ID is the primary identifier type for all QRGate entities.
type ID = id.ID

// Prefix identifies the entity type encoded in a TypeID.
type Prefix = id.Prefix
