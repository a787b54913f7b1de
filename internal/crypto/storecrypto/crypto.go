// Package storecrypto contains primitives for the encrypted local store.
//
// The store key is derived from a random device identifier that is itself
// persisted in plain storage, so this is obfuscation against casual local
// inspection, not a security boundary: anyone with access to the storage
// namespace can recover the key material.
package storecrypto

import (
	"crypto/rand"
	"crypto/sha256"
	"errors"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

// Params
const (
	DeviceIDLen = 32
	KeyLen      = 32

	hkdfInfo = "utodo-store-v1"
)

// Rand returns n cryptographically secure random bytes.
func Rand(n int) ([]byte, error) {
	b := make([]byte, n)
	_, err := rand.Read(b)
	return b, err
}

// NewDeviceID generates fresh device key material.
func NewDeviceID() ([]byte, error) { return Rand(DeviceIDLen) }

// DeriveKey derives the store key from the device identifier via HKDF-SHA256.
func DeriveKey(deviceID []byte) ([]byte, error) {
	if len(deviceID) == 0 {
		return nil, errors.New("empty device id")
	}
	r := hkdf.New(sha256.New, deviceID, nil, []byte(hkdfInfo))
	key := make([]byte, KeyLen)
	_, err := r.Read(key)
	return key, err
}

// Seal encrypts plaintext with XChaCha20-Poly1305, AAD = name, random nonce.
// The nonce is prepended to the ciphertext.
func Seal(key []byte, name string, plaintext []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, err
	}
	nonce, err := Rand(chacha20poly1305.NonceSizeX)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, len(nonce)+len(plaintext)+aead.Overhead())
	out = append(out, nonce...)
	out = append(out, aead.Seal(nil, nonce, plaintext, []byte(name))...)
	return out, nil
}

// Open decrypts a blob produced by Seal using the same AAD.
func Open(key []byte, name string, blob []byte) ([]byte, error) {
	if len(blob) < chacha20poly1305.NonceSizeX {
		return nil, errors.New("blob too short")
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, err
	}
	nonce := blob[:chacha20poly1305.NonceSizeX]
	ct := blob[chacha20poly1305.NonceSizeX:]
	return aead.Open(nil, nonce, ct, []byte(name))
}
