// Copyright 2026 The CloudBDay Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package secrets seals tenant credentials at rest.
package secrets

import (
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

const keyInfo = "cloudbday refresh-token v1"

var (
	// ErrShortKey is returned when the master key is under 32 bytes.
	ErrShortKey = errors.New("secrets: master key must be at least 32 bytes")
	// ErrCiphertext is returned when sealed data is malformed or was not
	// produced for the given namespace.
	ErrCiphertext = errors.New("secrets: invalid ciphertext")
)

// Cipher seals values with XChaCha20-Poly1305 using a key derived from the
// master key via HKDF-SHA256. The namespace is bound as additional data so a
// sealed value cannot be moved between tenants.
type Cipher struct {
	key []byte
}

// NewCipher derives the sealing key from master.
func NewCipher(master []byte) (*Cipher, error) {
	if len(master) < 32 {
		return nil, ErrShortKey
	}
	key := make([]byte, chacha20poly1305.KeySize)
	r := hkdf.New(sha256.New, master, nil, []byte(keyInfo))
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, fmt.Errorf("derive key: %w", err)
	}
	return &Cipher{key: key}, nil
}

// Seal encrypts plaintext for namespace. The nonce is prepended.
func (c *Cipher) Seal(namespace string, plaintext []byte) ([]byte, error) {
	if len(plaintext) == 0 {
		return nil, nil
	}
	aead, err := chacha20poly1305.NewX(c.key)
	if err != nil {
		return nil, fmt.Errorf("chacha20poly1305.NewX: %w", err)
	}
	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(plaintext)+aead.Overhead())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("rand nonce: %w", err)
	}
	return aead.Seal(nonce, nonce, plaintext, []byte(namespace)), nil
}

// Open decrypts data produced by Seal for the same namespace.
func (c *Cipher) Open(namespace string, sealed []byte) ([]byte, error) {
	if len(sealed) == 0 {
		return nil, nil
	}
	aead, err := chacha20poly1305.NewX(c.key)
	if err != nil {
		return nil, fmt.Errorf("chacha20poly1305.NewX: %w", err)
	}
	if len(sealed) < aead.NonceSize()+aead.Overhead() {
		return nil, ErrCiphertext
	}
	nonce, ct := sealed[:aead.NonceSize()], sealed[aead.NonceSize():]
	plaintext, err := aead.Open(nil, nonce, ct, []byte(namespace))
	if err != nil {
		return nil, ErrCiphertext
	}
	return plaintext, nil
}
