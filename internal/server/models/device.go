package models

import (
	"time"

	"github.com/google/uuid"
)

// Device is an automated publisher/consumer identity. The raw API key is
// never stored: only its digest under the per-device salt, alongside the
// digest of the lowercased source label under hash.DefaultSalt.
//
// Revocation is a soft delete (IsActive=false); rows are kept for audit.
type Device struct {
	ID         uuid.UUID
	KeyHash    string
	SourceHash string
	Salt       string
	ExpiresAt  time.Time
	IsActive   bool
	CreatorID  int64
	CreatedAt  time.Time
}
