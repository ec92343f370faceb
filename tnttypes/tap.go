// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2019 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package tnttypes

import "github.com/bitmark-inc/tnt/account"

// Tap is a single programmable egress point from a tank.
type Tap struct {
	ConnectedConnection *Connection
	OpenAuthority        *account.Authority
	ConnectAuthority     *account.Authority
	Requirements         []Requirement
	DestructorTap        bool
}

// IsEmergencyTap reports the invariants tap index 0 must hold (§3): no
// requirements, both authorities set and non-trivial, a destructor.
func (t Tap) IsEmergencyTap() bool {
	return 0 == len(t.Requirements) &&
		nil != t.OpenAuthority && !t.OpenAuthority.IsTrivial() &&
		nil != t.ConnectAuthority && !t.ConnectAuthority.IsTrivial() &&
		t.DestructorTap
}
