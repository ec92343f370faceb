// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2019 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package account

// Authority is a weighted-threshold set of accounts, the same shape as the
// multisig authorities that gate most graphene-style chain permissions: a
// set of (account, weight) pairs is satisfied once the weights of the
// accounts that actually signed reach Threshold.
//
// The tank/tap core never checks signatures itself (that is the host's
// authority verifier, out of scope per the collaborator contract) - it only
// needs to compare authorities for equality, decide whether one is
// "trivial" (can never be required because it asks for nothing), and hand
// the value back to the host to verify.
type Authority struct {
	Threshold uint32
	Accounts  map[string]uint32 // keyed by Account.String()
}

// NewSingleAuthority builds a 1-of-1 authority naming a single account -
// the common case for open_authority/connect_authority/reviewer/etc.
func NewSingleAuthority(a *Account) Authority {
	if nil == a {
		return Authority{}
	}
	return Authority{
		Threshold: 1,
		Accounts:  map[string]uint32{a.String(): 1},
	}
}

// IsTrivial reports whether the authority can never actually be required:
// either it has a zero threshold, or it names no accounts at all. Schematic
// validation rejects a trivial authority wherever the spec calls for one to
// be "non-trivial" (tap 0's authorities, connect_authority, reviewer, ...).
func (auth Authority) IsTrivial() bool {
	return 0 == auth.Threshold || 0 == len(auth.Accounts)
}

// Equal compares two authorities by their (threshold, account-weight) set.
func (auth Authority) Equal(other Authority) bool {
	if auth.Threshold != other.Threshold {
		return false
	}
	if len(auth.Accounts) != len(other.Accounts) {
		return false
	}
	for k, v := range auth.Accounts {
		if ov, ok := other.Accounts[k]; !ok || ov != v {
			return false
		}
	}
	return true
}
