// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2019 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package tntops

import (
	"testing"

	"github.com/bitmark-inc/tnt/account"
	"github.com/bitmark-inc/tnt/cow"
	"github.com/bitmark-inc/tnt/tankstore"
	"github.com/bitmark-inc/tnt/tntparams"
	"github.com/bitmark-inc/tnt/tnttypes"
)

func newBuffer(t *testing.T) (*cow.TankBuffer, *tankstore.MemoryDatabase) {
	t.Helper()
	db := tankstore.NewMemoryDatabase(tntparams.DefaultParameters())
	return cow.NewTankBuffer(db), db
}

func singleAuthority(name string) account.Authority {
	return account.Authority{Threshold: 1, Accounts: map[string]uint32{name: 1}}
}

// emergencyOnlySchematic builds the minimal valid schematic: an emergency
// tap with both authorities set and nothing else, costing exactly
// params.TankDeposit to create.
func emergencyOnlySchematic(asset tnttypes.AssetID, openAuth, connectAuth account.Authority) *tnttypes.TankSchematic {
	s := tnttypes.NewSchematic(asset)
	s.AddTap(&tnttypes.Tap{
		OpenAuthority:    &openAuth,
		ConnectAuthority: &connectAuth,
		DestructorTap:    true,
	})
	return s
}
