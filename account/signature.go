// Copyright (c) 2014-2017 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package account

// Signature is an ed25519 signature over a message, checked against an
// Account's public key by CheckSignature.
type Signature []byte
