// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2019 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package connflow

import (
	"testing"

	"github.com/stretchr/testify/require"

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

func TestReleaseToConnectionMeterThenAccount(t *testing.T) {
	buffer, db := newBuffer(t)
	db.SetAuthorized("alice", tnttypes.AssetID(1), true)

	s := tnttypes.NewSchematic(tnttypes.AssetID(1))
	meterIndex := s.AddAttachment(tnttypes.AssetFlowMeter{
		AssetType:   tnttypes.AssetID(1),
		Destination: tnttypes.AccountConnection("alice"),
	})
	s.AddTap(&tnttypes.Tap{DestructorTap: true})
	tank := tnttypes.NewTankObject(s, 0, 0)
	tank.Balance = 1000
	origin := buffer.CreateTank(tank)

	start := tnttypes.AttachmentConnection(tnttypes.AttachmentID{Index: meterIndex})

	var funded tnttypes.AccountID
	var fundedAmount int64
	proc := New(buffer, tntparams.DefaultParameters(), nil, func(account tnttypes.AccountID, amount int64, path []tnttypes.Connection) error {
		funded = account
		fundedAmount = amount
		return nil
	})

	path, err := proc.ReleaseToConnection(origin, start, 200)
	require.NoError(t, err)
	require.Len(t, path, 2)
	require.EqualValues(t, "alice", funded)
	require.EqualValues(t, 200, fundedAmount)

	got, _ := buffer.GetTank(origin)
	state, ok := got.GetState(tnttypes.ForAttachment(meterIndex))
	require.True(t, ok)
	require.EqualValues(t, 200, state.AssetFlowMeter.MeteredAmount)
}

func TestReleaseToConnectionSameTank(t *testing.T) {
	buffer, _ := newBuffer(t)
	s := tnttypes.NewSchematic(tnttypes.AssetID(1))
	s.AddTap(&tnttypes.Tap{DestructorTap: true})
	tank := tnttypes.NewTankObject(s, 0, 0)
	tank.Balance = 500
	origin := buffer.CreateTank(tank)

	proc := New(buffer, tntparams.DefaultParameters(), nil, nil)
	path, err := proc.ReleaseToConnection(origin, tnttypes.SameTankConnection(), 100)
	require.NoError(t, err)
	require.Len(t, path, 1)

	got, _ := buffer.GetTank(origin)
	require.EqualValues(t, 600, got.Balance)
}

func TestReleaseToConnectionTapOpenerCascades(t *testing.T) {
	buffer, db := newBuffer(t)
	db.SetAuthorized("bob", tnttypes.AssetID(1), true)

	s := tnttypes.NewSchematic(tnttypes.AssetID(1))
	s.AddTap(&tnttypes.Tap{DestructorTap: true})
	cascadeTapIndex := s.AddTap(&tnttypes.Tap{})
	openerIndex := s.AddAttachment(tnttypes.TapOpener{
		TapIndex:      cascadeTapIndex,
		ReleaseAmount: tnttypes.AmountLimit(50),
		Destination:   tnttypes.AccountConnection("bob"),
		AssetType:     tnttypes.AssetID(1),
	})
	tank := tnttypes.NewTankObject(s, 0, 0)
	tank.Balance = 1000
	origin := buffer.CreateTank(tank)

	var openedTap tnttypes.TapID
	var openedAmount tnttypes.FlowLimit
	proc := New(buffer, tntparams.DefaultParameters(), func(tap tnttypes.TapID, amount tnttypes.FlowLimit) error {
		openedTap = tap
		openedAmount = amount
		return nil
	}, func(account tnttypes.AccountID, amount int64, path []tnttypes.Connection) error { return nil })

	start := tnttypes.AttachmentConnection(tnttypes.AttachmentID{Index: openerIndex})
	_, err := proc.ReleaseToConnection(origin, start, 50)
	require.NoError(t, err)
	require.EqualValues(t, cascadeTapIndex, openedTap.Index)
	require.EqualValues(t, 50, openedAmount.Amount())
}

func TestReleaseToConnectionRejectsAttachmentConnectAuthority(t *testing.T) {
	buffer, _ := newBuffer(t)
	s := tnttypes.NewSchematic(tnttypes.AssetID(1))
	s.AddTap(&tnttypes.Tap{DestructorTap: true})
	authIndex := s.AddAttachment(tnttypes.AttachmentConnectAuthority{})
	tank := tnttypes.NewTankObject(s, 0, 0)
	tank.Balance = 100
	origin := buffer.CreateTank(tank)

	proc := New(buffer, tntparams.DefaultParameters(), nil, nil)
	start := tnttypes.AttachmentConnection(tnttypes.AttachmentID{Index: authIndex})
	_, err := proc.ReleaseToConnection(origin, start, 10)
	require.Equal(t, ErrCannotReceiveAsset, err)
}

func TestReleaseToConnectionEnforcesSourceRestriction(t *testing.T) {
	buffer, _ := newBuffer(t)

	destSchematic := tnttypes.NewSchematic(tnttypes.AssetID(1))
	destSchematic.AddTap(&tnttypes.Tap{DestructorTap: true})
	destSchematic.RemoteSources = tnttypes.NewRestrictedSources(tnttypes.TankConnection(tnttypes.TankID(999)))
	destTank := tnttypes.NewTankObject(destSchematic, 0, 0)
	destID := buffer.CreateTank(destTank)

	s := tnttypes.NewSchematic(tnttypes.AssetID(1))
	s.AddTap(&tnttypes.Tap{DestructorTap: true})
	origin := buffer.CreateTank(tnttypes.NewTankObject(s, 0, 0))
	o, _ := buffer.GetTank(origin)
	o.Balance = 100

	proc := New(buffer, tntparams.DefaultParameters(), nil, nil)
	_, err := proc.ReleaseToConnection(origin, tnttypes.TankConnection(destID), 10)
	require.Equal(t, ErrSourceNotAuthorized, err)
}
