// Package apikey serializes device identity into encrypted bearer keys and
// validates presented keys against the device store.
package apikey

import (
	"encoding/json"
	"time"

	"github.com/dmitrijs2005/versiman/internal/server/crypt"
	"github.com/google/uuid"
)

// Key is the decoded API key payload. It exists only in transit: the store
// holds hashes of the encrypted form, never the payload itself.
type Key struct {
	DeviceID  uuid.UUID `json:"deviceId"`
	Source    string    `json:"source"`
	ExpiresAt time.Time `json:"expiresUtc"`
}

// Processor turns device identity into opaque key strings and back.
type Processor struct {
	crypt *crypt.Crypt
}

func NewProcessor(c *crypt.Crypt) *Processor {
	return &Processor{crypt: c}
}

// Generate serializes {deviceId, source, expiresUtc} and encrypts it.
func (p *Processor) Generate(id uuid.UUID, source string, expires time.Time) string {
	key := Key{
		DeviceID:  id,
		Source:    source,
		ExpiresAt: expires.UTC(),
	}

	// payload is a plain struct, marshalling cannot fail
	payload, err := json.Marshal(key)
	if err != nil {
		panic(err)
	}

	return p.crypt.Encrypt(string(payload))
}

// Decrypt decodes a presented key. Any decrypt or parse failure yields nil:
// an invalid key is expected adversarial input, not a fault.
func (p *Processor) Decrypt(text string) *Key {
	if text == "" {
		return nil
	}

	payload, err := p.crypt.Decrypt(text)
	if err != nil {
		return nil
	}

	key := &Key{}
	if err := json.Unmarshal([]byte(payload), key); err != nil {
		return nil
	}
	return key
}
