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

func TestTapConnectRepointsConnection(t *testing.T) {
	buffer, _ := newBuffer(t)

	connectAuth := singleAuthority("alice")
	s := tnttypes.NewSchematic(tnttypes.AssetID(1))
	tapIndex := s.AddTap(&tnttypes.Tap{
		ConnectAuthority:    &connectAuth,
		ConnectedConnection: connectionPtr(tnttypes.AccountConnection("bob")),
	})
	tank := tnttypes.NewTankObject(s, 0, 0)
	tankID := buffer.CreateTank(tank)

	newConn := tnttypes.AccountConnection("carol")
	op := TapConnect{
		ConnectAuthority: connectAuth,
		TapToConnect:     tnttypes.TapID{TankID: &tankID, Index: tapIndex},
		NewConnection:    &newConn,
	}
	require.NoError(t, op.Apply(buffer))

	got, ok := buffer.GetTank(tankID)
	require.True(t, ok)
	require.Equal(t, newConn, *got.Schematic.Taps[tapIndex].ConnectedConnection)
}

func TestTapConnectClearsConnectAuthority(t *testing.T) {
	buffer, _ := newBuffer(t)

	connectAuth := singleAuthority("alice")
	s := tnttypes.NewSchematic(tnttypes.AssetID(1))
	tapIndex := s.AddTap(&tnttypes.Tap{
		ConnectAuthority:    &connectAuth,
		ConnectedConnection: connectionPtr(tnttypes.AccountConnection("bob")),
	})
	tank := tnttypes.NewTankObject(s, 0, 0)
	tankID := buffer.CreateTank(tank)

	newConn := tnttypes.AccountConnection("carol")
	op := TapConnect{
		ConnectAuthority:      connectAuth,
		TapToConnect:          tnttypes.TapID{TankID: &tankID, Index: tapIndex},
		NewConnection:         &newConn,
		ClearConnectAuthority: true,
	}
	require.NoError(t, op.Apply(buffer))

	got, ok := buffer.GetTank(tankID)
	require.True(t, ok)
	require.Nil(t, got.Schematic.Taps[tapIndex].ConnectAuthority)
}

func TestTapConnectRejectsClearWithoutNewConnection(t *testing.T) {
	buffer, _ := newBuffer(t)

	connectAuth := singleAuthority("alice")
	s := tnttypes.NewSchematic(tnttypes.AssetID(1))
	tapIndex := s.AddTap(&tnttypes.Tap{ConnectAuthority: &connectAuth})
	tank := tnttypes.NewTankObject(s, 0, 0)
	tankID := buffer.CreateTank(tank)

	op := TapConnect{
		ConnectAuthority:      connectAuth,
		TapToConnect:          tnttypes.TapID{TankID: &tankID, Index: tapIndex},
		ClearConnectAuthority: true,
	}
	require.Equal(t, ErrClearRequiresNewConnection, op.Apply(buffer))
}

func TestTapConnectRejectsWrongAuthority(t *testing.T) {
	buffer, _ := newBuffer(t)

	connectAuth := singleAuthority("alice")
	wrong := singleAuthority("mallory")
	s := tnttypes.NewSchematic(tnttypes.AssetID(1))
	tapIndex := s.AddTap(&tnttypes.Tap{ConnectAuthority: &connectAuth})
	tank := tnttypes.NewTankObject(s, 0, 0)
	tankID := buffer.CreateTank(tank)

	newConn := tnttypes.AccountConnection("carol")
	op := TapConnect{
		ConnectAuthority: wrong,
		TapToConnect:     tnttypes.TapID{TankID: &tankID, Index: tapIndex},
		NewConnection:    &newConn,
	}
	require.Equal(t, ErrAuthorityMismatch, op.Apply(buffer))
}

func TestTapConnectRejectsMissingTank(t *testing.T) {
	buffer, _ := newBuffer(t)

	missingTank := tnttypes.TankID(999)
	newConn := tnttypes.AccountConnection("carol")
	op := TapConnect{
		ConnectAuthority: singleAuthority("alice"),
		TapToConnect:     tnttypes.TapID{TankID: &missingTank, Index: 0},
		NewConnection:    &newConn,
	}
	require.Equal(t, ErrTankNotFound, op.Apply(buffer))
}
