package apikey

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/versiman/internal/common"
	"github.com/dmitrijs2005/versiman/internal/server/hash"
	"github.com/dmitrijs2005/versiman/internal/server/models"
	"github.com/google/uuid"
)

// Verdict is the closed outcome set of key validation.
type Verdict int

const (
	VerdictUnknown Verdict = iota
	VerdictDeviceNotFound
	VerdictIncorrectKey
	VerdictIncorrectSource
	VerdictExpired
	VerdictValid
)

func (v Verdict) String() string {
	switch v {
	case VerdictDeviceNotFound:
		return "device not found"
	case VerdictIncorrectKey:
		return "incorrect key"
	case VerdictIncorrectSource:
		return "incorrect source"
	case VerdictExpired:
		return "expired"
	case VerdictValid:
		return "valid"
	default:
		return "unknown"
	}
}

// DeviceGetter is the lookup capability the validator needs from the device
// store. Implementations return common.ErrorNotFound when no active device
// carries the id.
type DeviceGetter interface {
	GetActive(ctx context.Context, id uuid.UUID) (*models.Device, error)
}

// Validator runs the decode → lookup → integrity → expiry pipeline.
type Validator struct {
	processor *Processor
	devices   DeviceGetter
	hasher    *hash.Hasher
	now       func() time.Time
}

func NewValidator(p *Processor, devices DeviceGetter, hasher *hash.Hasher) *Validator {
	return &Validator{processor: p, devices: devices, hasher: hasher, now: time.Now}
}

// Validate checks a presented key and returns a terminal verdict plus the
// decoded payload. Every verdict except VerdictIncorrectKey-on-decode comes
// with the decoded key so callers can log the attempted identity. A non-nil
// error means the store failed, not that the key is bad.
//
// The steps run in exactly this order: source binding and expiry only mean
// anything once the key is proven to belong to a known device.
func (v *Validator) Validate(ctx context.Context, presented string) (Verdict, *Key, error) {
	key := v.processor.Decrypt(presented)
	if key == nil {
		return VerdictIncorrectKey, nil, nil
	}

	device, err := v.devices.GetActive(ctx, key.DeviceID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return VerdictDeviceNotFound, key, nil
		}
		return VerdictUnknown, key, fmt.Errorf("device lookup: %w", err)
	}

	// a syntactically valid key that was never issued for this device, or
	// one superseded by a refresh, hashes to something else
	if v.hasher.Hash(presented, device.Salt) != device.KeyHash {
		return VerdictIncorrectKey, key, nil
	}

	if v.hasher.Hash(key.Source, hash.DefaultSalt) != device.SourceHash {
		return VerdictIncorrectSource, key, nil
	}

	if v.now().After(key.ExpiresAt) {
		return VerdictExpired, key, nil
	}
	return VerdictValid, key, nil
}
