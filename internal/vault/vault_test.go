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

package vault

import (
	"crypto/mlkem"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVault_PostQuantumRoundTrip(t *testing.T) {
	v := New(true)

	kp, err := v.GenerateKeys()
	require.NoError(t, err)
	assert.Equal(t, SchemeMLKEM768, kp.Public.Scheme)
	assert.Len(t, kp.Public.Bytes, mlkem.EncapsulationKeySize768)

	ct, err := v.Encrypt(kp.Public, []byte("blocked TXN-1A2B3C4D"))
	require.NoError(t, err)
	assert.Greater(t, len(ct), mlkem.CiphertextSize768)

	pt, err := v.Decrypt(kp.Secret, ct)
	require.NoError(t, err)
	assert.Equal(t, "blocked TXN-1A2B3C4D", string(pt))
}

func TestVault_SymmetricRoundTrip(t *testing.T) {
	v := New(false)

	kp, err := v.GenerateKeys()
	require.NoError(t, err)
	assert.Equal(t, SchemeSymmetric, kp.Public.Scheme)

	ct, err := v.Encrypt(kp.Public, []byte("note"))
	require.NoError(t, err)

	pt, err := v.Decrypt(kp.Secret, ct)
	require.NoError(t, err)
	assert.Equal(t, "note", string(pt))
}

func TestVault_FallsBackWhenKEMFails(t *testing.T) {
	v := New(true)
	v.generateKEM = func() (*KeyPair, error) { return nil, errors.New("unsupported") }

	scheme, ct, err := v.SealNote("audit")
	require.NoError(t, err)
	assert.Equal(t, SchemeSymmetric, scheme)
	assert.NotEmpty(t, ct)
}

func TestVault_WrongKeyFails(t *testing.T) {
	v := New(true)
	a, err := v.GenerateKeys()
	require.NoError(t, err)
	b, err := v.GenerateKeys()
	require.NoError(t, err)

	ct, err := v.Encrypt(a.Public, []byte("secret"))
	require.NoError(t, err)

	_, err = v.Decrypt(b.Secret, ct)
	assert.Error(t, err)
}

func TestVault_TruncatedCiphertext(t *testing.T) {
	v := New(true)
	kp, err := v.GenerateKeys()
	require.NoError(t, err)

	_, err = v.Decrypt(kp.Secret, []byte{1, 2, 3})
	assert.ErrorIs(t, err, ErrCiphertext)

	sym, err := New(false).GenerateKeys()
	require.NoError(t, err)
	_, err = v.Decrypt(sym.Secret, []byte{1})
	assert.ErrorIs(t, err, ErrCiphertext)
}
