// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2019 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package account identifies the accounts that a tank's taps, requirements
// and connections ultimately resolve to. The tank/tap core never signs or
// verifies transactions on its own - that belongs to the host's authority
// verifier - but it does need a stable, comparable, serializable value to
// represent "this account" or "this public key" when it builds the set of
// required authorities and when a connection terminates in an account_id.
package account

import (
	"bytes"

	"github.com/mr-tron/base58/base58"
	"golang.org/x/crypto/ed25519"
	"golang.org/x/crypto/sha3"

	"github.com/bitmark-inc/tnt/fault"
	"github.com/bitmark-inc/tnt/util"
)

const checksumLength = 4

const publicKeyCode = 0x01

// Account is an ed25519 public key identifying a wallet account. It is the
// concrete type behind the protocol's opaque account_id.
type Account struct {
	PublicKey []byte
}

// AccountFromBase58 decodes the base58-checksummed wire form of an account.
func AccountFromBase58(encoded string) (*Account, error) {
	decoded, err := base58.Decode(encoded)
	if nil != err || 0 == len(decoded) {
		return nil, fault.ErrCannotDecodeAccount
	}

	keyVariant, n := util.FromVarint64(decoded)
	if 0 == n || keyVariant&publicKeyCode != publicKeyCode {
		return nil, fault.ErrNotPublicKey
	}

	keyLength := len(decoded) - n - checksumLength
	if keyLength != ed25519.PublicKeySize {
		return nil, fault.ErrInvalidKeyLength
	}

	checksumStart := len(decoded) - checksumLength
	checksum := sha3.Sum256(decoded[:checksumStart])
	if !bytes.Equal(checksum[:checksumLength], decoded[checksumStart:]) {
		return nil, fault.ErrChecksumMismatch
	}

	return &Account{PublicKey: decoded[n:checksumStart]}, nil
}

// AccountFromBytes decodes the raw wire form (no checksum) - used when
// unpacking accounts embedded inside a packed tank schematic.
func AccountFromBytes(raw []byte) (*Account, error) {
	keyVariant, n := util.FromVarint64(raw)
	if 0 == n || keyVariant&publicKeyCode != publicKeyCode {
		return nil, fault.ErrNotPublicKey
	}
	keyLength := len(raw) - n
	if keyLength != ed25519.PublicKeySize {
		return nil, fault.ErrInvalidKeyLength
	}
	return &Account{PublicKey: raw[n:]}, nil
}

// CheckSignature verifies message was signed by this account's private key.
func (a *Account) CheckSignature(message []byte, signature Signature) error {
	if ed25519.SignatureSize != len(signature) {
		return fault.ErrInvalidSignature
	}
	if !ed25519.Verify(a.PublicKey, message, signature) {
		return fault.ErrInvalidSignature
	}
	return nil
}

// Bytes - the unchecksummed wire form: varint(key variant) || public key.
func (a *Account) Bytes() []byte {
	return append(util.ToVarint64(publicKeyCode), a.PublicKey...)
}

// String - base58, checksummed wire form.
func (a *Account) String() string {
	buffer := a.Bytes()
	checksum := sha3.Sum256(buffer)
	buffer = append(buffer, checksum[:checksumLength]...)
	return base58.Encode(buffer)
}

// MarshalText implements encoding.TextMarshaler.
func (a Account) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *Account) UnmarshalText(s []byte) error {
	decoded, err := AccountFromBase58(string(s))
	if nil != err {
		return err
	}
	*a = *decoded
	return nil
}

// Equal reports whether two accounts name the same public key. Either side
// may be nil.
func (a *Account) Equal(b *Account) bool {
	if a == b {
		return true
	}
	if nil == a || nil == b {
		return false
	}
	return bytes.Equal(a.PublicKey, b.PublicKey)
}
