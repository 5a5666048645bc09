// Package crypt implements the symmetric codec behind device API keys.
//
// One AES-256 key and one IV are read from key-material files at startup and
// reused for every message, so identical plaintexts produce identical
// ciphertexts. Issued keys must stay decryptable across restarts, which is
// why the IV is fixed rather than generated per message; rotating the files
// invalidates every outstanding key.
package crypt

import (
	"crypto/aes"
	"crypto/cipher"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"strings"
)

const (
	keySize = 32
	ivSize  = aes.BlockSize
)

var (
	// ErrMissingPrefix is returned when the input does not carry the
	// configured ciphertext prefix.
	ErrMissingPrefix = errors.New("missing ciphertext prefix")
	// ErrMalformedCiphertext is returned for undecodable or tampered input.
	ErrMalformedCiphertext = errors.New("malformed ciphertext")
)

// Crypt encrypts and decrypts opaque strings with a fixed key+IV pair,
// tagging every ciphertext with a configured prefix.
type Crypt struct {
	key    []byte
	iv     []byte
	prefix string
}

// New reads key material from the given files and returns a ready codec.
// The key file must hold at least 32 bytes and the IV file at least 16;
// extra bytes are ignored.
func New(keyPath, ivPath, prefix string) (*Crypt, error) {
	key, err := os.ReadFile(keyPath)
	if err != nil {
		return nil, fmt.Errorf("reading key file: %w", err)
	}
	if len(key) < keySize {
		return nil, fmt.Errorf("key file %s: need %d bytes, got %d", keyPath, keySize, len(key))
	}

	iv, err := os.ReadFile(ivPath)
	if err != nil {
		return nil, fmt.Errorf("reading iv file: %w", err)
	}
	if len(iv) < ivSize {
		return nil, fmt.Errorf("iv file %s: need %d bytes, got %d", ivPath, ivSize, len(iv))
	}

	return &Crypt{key: key[:keySize], iv: iv[:ivSize], prefix: prefix}, nil
}

// Encrypt returns prefix + base64(AES-256-CBC(text)).
func (c *Crypt) Encrypt(text string) string {
	block, err := aes.NewCipher(c.key)
	if err != nil {
		// key length is validated in New
		panic(err)
	}

	plaintext := pad([]byte(text), aes.BlockSize)
	ciphertext := make([]byte, len(plaintext))
	cipher.NewCBCEncrypter(block, c.iv).CryptBlocks(ciphertext, plaintext)

	return c.prefix + base64.StdEncoding.EncodeToString(ciphertext)
}

// Decrypt reverses Encrypt. Any defect in the input — absent prefix, broken
// base64, wrong block length, bad padding — comes back as an error value.
// Callers must treat a failed decrypt as untrusted input, not as a fault.
func (c *Crypt) Decrypt(text string) (string, error) {
	if !strings.HasPrefix(text, c.prefix) {
		return "", ErrMissingPrefix
	}

	ciphertext, err := base64.StdEncoding.DecodeString(text[len(c.prefix):])
	if err != nil {
		return "", ErrMalformedCiphertext
	}
	if len(ciphertext) == 0 || len(ciphertext)%aes.BlockSize != 0 {
		return "", ErrMalformedCiphertext
	}

	block, err := aes.NewCipher(c.key)
	if err != nil {
		panic(err)
	}

	plaintext := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, c.iv).CryptBlocks(plaintext, ciphertext)

	unpadded, err := unpad(plaintext, aes.BlockSize)
	if err != nil {
		return "", ErrMalformedCiphertext
	}
	return string(unpadded), nil
}

// pad applies PKCS#7 padding.
func pad(b []byte, blockSize int) []byte {
	n := blockSize - len(b)%blockSize
	padded := make([]byte, len(b)+n)
	copy(padded, b)
	for i := len(b); i < len(padded); i++ {
		padded[i] = byte(n)
	}
	return padded
}

// unpad strips PKCS#7 padding, rejecting inconsistent bytes.
func unpad(b []byte, blockSize int) ([]byte, error) {
	if len(b) == 0 || len(b)%blockSize != 0 {
		return nil, ErrMalformedCiphertext
	}
	n := int(b[len(b)-1])
	if n == 0 || n > blockSize || n > len(b) {
		return nil, ErrMalformedCiphertext
	}
	for _, v := range b[len(b)-n:] {
		if int(v) != n {
			return nil, ErrMalformedCiphertext
		}
	}
	return b[:len(b)-n], nil
}
