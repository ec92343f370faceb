// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2019 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package tntops

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bitmark-inc/tnt/tnttypes"
)

func TestTankDeleteSucceedsOnEmptyTank(t *testing.T) {
	buffer, _ := newBuffer(t)

	auth := singleAuthority("alice")
	s := emergencyOnlySchematic(tnttypes.AssetID(1), auth, auth)
	tank := tnttypes.NewTankObject(s, 500, 0)
	tankID := buffer.CreateTank(tank)

	op := TankDelete{
		DeleteAuthority: auth,
		Payer:           "alice",
		TankID:          tankID,
		DepositClaimed:  500,
	}
	require.NoError(t, op.Apply(buffer))

	_, ok := buffer.GetTank(tankID)
	require.False(t, ok)
	require.EqualValues(t, 500, buffer.GetBalance("alice", tnttypes.CoreAsset))
}

func TestTankDeleteRejectsNonEmptyTank(t *testing.T) {
	buffer, _ := newBuffer(t)

	auth := singleAuthority("alice")
	s := emergencyOnlySchematic(tnttypes.AssetID(1), auth, auth)
	tank := tnttypes.NewTankObject(s, 500, 0)
	tank.Balance = 10
	tankID := buffer.CreateTank(tank)

	op := TankDelete{
		DeleteAuthority: auth,
		Payer:           "alice",
		TankID:          tankID,
		DepositClaimed:  500,
	}
	require.Equal(t, ErrTankNotEmpty, op.Apply(buffer))
}

func TestTankDeleteRejectsDepositMismatch(t *testing.T) {
	buffer, _ := newBuffer(t)

	auth := singleAuthority("alice")
	s := emergencyOnlySchematic(tnttypes.AssetID(1), auth, auth)
	tank := tnttypes.NewTankObject(s, 500, 0)
	tankID := buffer.CreateTank(tank)

	op := TankDelete{
		DeleteAuthority: auth,
		Payer:           "alice",
		TankID:          tankID,
		DepositClaimed:  499,
	}
	require.Equal(t, ErrDepositMismatch, op.Apply(buffer))
}

func TestTankDeleteRejectsWrongAuthority(t *testing.T) {
	buffer, _ := newBuffer(t)

	auth := singleAuthority("alice")
	wrong := singleAuthority("mallory")
	s := emergencyOnlySchematic(tnttypes.AssetID(1), auth, auth)
	tank := tnttypes.NewTankObject(s, 500, 0)
	tankID := buffer.CreateTank(tank)

	op := TankDelete{
		DeleteAuthority: wrong,
		Payer:           "alice",
		TankID:          tankID,
		DepositClaimed:  500,
	}
	require.Equal(t, ErrAuthorityMismatch, op.Apply(buffer))
}

func TestTankDeleteRejectsMissingTank(t *testing.T) {
	buffer, _ := newBuffer(t)

	op := TankDelete{
		DeleteAuthority: singleAuthority("alice"),
		Payer:           "alice",
		TankID:          tnttypes.TankID(999),
		DepositClaimed:  500,
	}
	require.Equal(t, ErrTankNotFound, op.Apply(buffer))
}
