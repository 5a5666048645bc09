// Package hash derives the one-way digests stored for device keys, device
// sources and user passwords.
package hash

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/dmitrijs2005/versiman/internal/common"
	"golang.org/x/crypto/pbkdf2"
)

// DefaultSalt is used for hashing the device source label. The source is
// not a secret, but its stored form must still be unpredictable.
const DefaultSalt = "SOME_SOURCE_SALT"

const (
	// DefaultIterations is the PBKDF2 iteration count for stored secrets.
	DefaultIterations = 100000

	digestSize = 32
	saltSize   = 16
)

// Hasher produces salted PBKDF2-HMAC-SHA256 digests.
type Hasher struct{}

func New() *Hasher {
	return &Hasher{}
}

// Hash returns the lowercase hex digest of pass stretched with the given
// salt over DefaultIterations rounds.
func (h *Hasher) Hash(pass string, salt string) string {
	return h.HashIterations(pass, salt, DefaultIterations)
}

// HashIterations is Hash with an explicit iteration count.
func (h *Hasher) HashIterations(pass string, salt string, iterations int) string {
	digest := pbkdf2.Key([]byte(pass), []byte(salt), iterations, digestSize, sha256.New)
	return hex.EncodeToString(digest)
}

// GenerateSalt returns 16 random bytes as a string. Zero bytes are remapped
// to 0x01 so that a stored salt never truncates on a NUL.
func (h *Hasher) GenerateSalt() string {
	b := common.GenerateRandByteArray(saltSize)
	for i, v := range b {
		if v == 0 {
			b[i] = 1
		}
	}
	return string(b)
}
