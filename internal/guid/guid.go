// Package guid provides the per-session identifier type used to key
// connected clients. Generation is delegated to google/uuid, the GUID
// library already in the teacher's dependency tree.
package guid

import "github.com/google/uuid"

// Guid identifies one connected client for the lifetime of its session.
// The zero Guid is reserved for the synthetic "self" participant.
type Guid uuid.UUID

// Zero is the GUID of the self participant (§3 ClientData.guid).
var Zero Guid

// New allocates a fresh random GUID for a newly accepted client.
func New() Guid {
	return Guid(uuid.New())
}

func (g Guid) String() string {
	return uuid.UUID(g).String()
}

// IsZero reports whether g is the self participant's GUID.
func (g Guid) IsZero() bool {
	return g == Zero
}
