/*
Copyright 2024 Blnk Finance Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package vault seals compliance audit notes. It prefers an ML-KEM-768 key
// encapsulation and falls back to a plain AES-256 key when that is unavailable.
package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/mlkem"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/hkdf"
)

// Scheme names the primitive a key pair belongs to.
type Scheme string

const (
	SchemeMLKEM768  Scheme = "ML-KEM-768"
	SchemeSymmetric Scheme = "AES-256-GCM"
)

const symmetricKeySize = 32

var hkdfInfo = []byte("qercas audit note")

var (
	ErrCiphertext = errors.New("ciphertext is malformed")
)

// PublicKey encrypts notes. For the symmetric scheme it is the shared key itself.
type PublicKey struct {
	Scheme Scheme
	Bytes  []byte
}

// SecretKey recovers notes sealed to the matching PublicKey.
type SecretKey struct {
	Scheme Scheme
	Bytes  []byte
}

type KeyPair struct {
	Public PublicKey
	Secret SecretKey
}

// Vault generates key pairs and seals notes.
type Vault struct {
	postQuantum bool
	generateKEM func() (*KeyPair, error)
}

// New returns a vault. When postQuantum is false only the symmetric scheme is used.
func New(postQuantum bool) *Vault {
	return &Vault{postQuantum: postQuantum, generateKEM: generateKEMKeys}
}

// GenerateKeys returns a fresh key pair, falling back to the symmetric scheme
// if the post-quantum primitive fails.
func (v *Vault) GenerateKeys() (*KeyPair, error) {
	if v.postQuantum {
		kp, err := v.generateKEM()
		if err == nil {
			return kp, nil
		}
		logrus.Warnf("post-quantum key generation failed, falling back to %s: %v", SchemeSymmetric, err)
	}
	return generateSymmetricKeys()
}

// Encrypt seals plaintext to the public key.
func (v *Vault) Encrypt(pub PublicKey, plaintext []byte) ([]byte, error) {
	switch pub.Scheme {
	case SchemeMLKEM768:
		ek, err := mlkem.NewEncapsulationKey768(pub.Bytes)
		if err != nil {
			return nil, err
		}
		shared, kemCiphertext := ek.Encapsulate()
		key, err := deriveKey(shared)
		if err != nil {
			return nil, err
		}
		sealed, err := seal(key, plaintext)
		if err != nil {
			return nil, err
		}
		return append(kemCiphertext, sealed...), nil
	case SchemeSymmetric:
		return seal(pub.Bytes, plaintext)
	default:
		return nil, fmt.Errorf("unknown scheme %q", pub.Scheme)
	}
}

// Decrypt recovers plaintext sealed with Encrypt.
func (v *Vault) Decrypt(sec SecretKey, ciphertext []byte) ([]byte, error) {
	switch sec.Scheme {
	case SchemeMLKEM768:
		if len(ciphertext) < mlkem.CiphertextSize768 {
			return nil, ErrCiphertext
		}
		dk, err := mlkem.NewDecapsulationKey768(sec.Bytes)
		if err != nil {
			return nil, err
		}
		shared, err := dk.Decapsulate(ciphertext[:mlkem.CiphertextSize768])
		if err != nil {
			return nil, err
		}
		key, err := deriveKey(shared)
		if err != nil {
			return nil, err
		}
		return open(key, ciphertext[mlkem.CiphertextSize768:])
	case SchemeSymmetric:
		return open(sec.Bytes, ciphertext)
	default:
		return nil, fmt.Errorf("unknown scheme %q", sec.Scheme)
	}
}

// SealNote encrypts a note under a fresh key pair and verifies it decrypts
// back to the same text.
func (v *Vault) SealNote(note string) (Scheme, []byte, error) {
	kp, err := v.GenerateKeys()
	if err != nil {
		return "", nil, err
	}
	ciphertext, err := v.Encrypt(kp.Public, []byte(note))
	if err != nil {
		return "", nil, err
	}
	recovered, err := v.Decrypt(kp.Secret, ciphertext)
	if err != nil {
		return "", nil, err
	}
	if string(recovered) != note {
		return "", nil, errors.New("sealed note did not round trip")
	}
	return kp.Public.Scheme, ciphertext, nil
}

func generateKEMKeys() (*KeyPair, error) {
	dk, err := mlkem.GenerateKey768()
	if err != nil {
		return nil, err
	}
	return &KeyPair{
		Public: PublicKey{Scheme: SchemeMLKEM768, Bytes: dk.EncapsulationKey().Bytes()},
		Secret: SecretKey{Scheme: SchemeMLKEM768, Bytes: dk.Bytes()},
	}, nil
}

func generateSymmetricKeys() (*KeyPair, error) {
	key := make([]byte, symmetricKeySize)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return nil, err
	}
	return &KeyPair{
		Public: PublicKey{Scheme: SchemeSymmetric, Bytes: key},
		Secret: SecretKey{Scheme: SchemeSymmetric, Bytes: key},
	}, nil
}

func deriveKey(shared []byte) ([]byte, error) {
	key := make([]byte, symmetricKeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, shared, nil, hkdfInfo), key); err != nil {
		return nil, err
	}
	return key, nil
}

func seal(key, plaintext []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

func open(key, ciphertext []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	if len(ciphertext) < gcm.NonceSize() {
		return nil, ErrCiphertext
	}
	nonce, sealed := ciphertext[:gcm.NonceSize()], ciphertext[gcm.NonceSize():]
	return gcm.Open(nil, nonce, sealed, nil)
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
