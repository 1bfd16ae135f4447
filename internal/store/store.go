// Package store persists wizard sessions and user profiles.
//
// DynamoStore uses a single-table design. Wizard records live under
// PK=SESSION#{sessionId}, SK=WIZARD and carry a TTL attribute (expiresAt) so
// abandoned sessions disappear after SessionTTL. Profiles live under
// PK=USER#{uid}, SK=PROFILE and never expire.
//
// MemoryStore implements the same interfaces in process for the local server
// and tests.
package store

import (
	"time"

	"github.com/fpang/caption-wizard/internal/profile"
	"github.com/fpang/caption-wizard/internal/wizard"
)

// SessionTTL is how long a wizard record survives without being written.
const SessionTTL = 24 * time.Hour

// Backend is implemented by every store in this package.
type Backend interface {
	wizard.Storage
	profile.Store
}

var (
	_ Backend = (*DynamoStore)(nil)
	_ Backend = (*MemoryStore)(nil)
)
