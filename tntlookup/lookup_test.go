// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2019 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package tntlookup

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bitmark-inc/tnt/tnttypes"
)

func schematicWithMeter(asset tnttypes.AssetID, dest tnttypes.Connection) *tnttypes.TankSchematic {
	s := tnttypes.NewSchematic(asset)
	s.AddAttachment(tnttypes.AssetFlowMeter{AssetType: asset, Destination: dest})
	return s
}

func TestLookupTankCurrentByNil(t *testing.T) {
	s := tnttypes.NewSchematic(tnttypes.AssetID(7))
	l := New(tnttypes.TankID(1), s, nil)

	id, got, err := l.LookupTank(nil)
	require.NoError(t, err)
	require.Equal(t, tnttypes.TankID(1), id)
	require.Same(t, s, got)
}

func TestLookupTankCrossTankNeedsFunction(t *testing.T) {
	s := tnttypes.NewSchematic(tnttypes.AssetID(7))
	l := New(tnttypes.TankID(1), s, nil)

	other := tnttypes.TankID(2)
	_, _, err := l.LookupTank(&other)
	require.ErrorIs(t, err, ErrNeedLookupFunction)
}

func TestLookupTankCrossTankResolves(t *testing.T) {
	s := tnttypes.NewSchematic(tnttypes.AssetID(7))
	otherSchematic := tnttypes.NewSchematic(tnttypes.AssetID(9))
	fn := func(id tnttypes.TankID) (*tnttypes.TankSchematic, bool) {
		if tnttypes.TankID(2) == id {
			return otherSchematic, true
		}
		return nil, false
	}
	l := New(tnttypes.TankID(1), s, fn)

	other := tnttypes.TankID(2)
	id, got, err := l.LookupTank(&other)
	require.NoError(t, err)
	require.Equal(t, tnttypes.TankID(2), id)
	require.Same(t, otherSchematic, got)

	missing := tnttypes.TankID(99)
	_, _, err = l.LookupTank(&missing)
	require.ErrorIs(t, err, ErrNonexistentObject)
}

func TestGetConnectionAssetVariants(t *testing.T) {
	asset := tnttypes.AssetID(7)
	s := schematicWithMeter(asset, tnttypes.AccountConnection(tnttypes.AccountID("alice")))
	l := New(tnttypes.TankID(1), s, nil)

	got, err := l.GetConnectionAsset(tnttypes.SameTankConnection())
	require.NoError(t, err)
	require.Equal(t, asset, got)

	got, err = l.GetConnectionAsset(tnttypes.AccountConnection(tnttypes.AccountID("bob")))
	require.NoError(t, err)
	require.Equal(t, tnttypes.AnyAsset, got)

	got, err = l.GetConnectionAsset(tnttypes.AttachmentConnection(tnttypes.AttachmentID{Index: 0}))
	require.NoError(t, err)
	require.Equal(t, asset, got)

	_, err = l.GetConnectionAsset(tnttypes.AttachmentConnection(tnttypes.AttachmentID{Index: 99}))
	require.ErrorIs(t, err, ErrNonexistentObject)
}

func TestGetConnectionChainFollowsMeterToTerminal(t *testing.T) {
	asset := tnttypes.AssetID(7)
	final := tnttypes.AccountConnection(tnttypes.AccountID("alice"))
	s := schematicWithMeter(asset, final)
	l := New(tnttypes.TankID(1), s, nil)

	start := tnttypes.AttachmentConnection(tnttypes.AttachmentID{Index: 0})
	path, tank, err := l.GetConnectionChain(start, 4, &asset)
	require.NoError(t, err)
	require.Equal(t, tnttypes.TankID(1), tank)
	require.Len(t, path, 2)
	require.True(t, path[1].Connection.Equal(final))
}

func TestGetConnectionChainWrongAssetRejected(t *testing.T) {
	asset := tnttypes.AssetID(7)
	s := schematicWithMeter(asset, tnttypes.AccountConnection(tnttypes.AccountID("alice")))
	l := New(tnttypes.TankID(1), s, nil)

	start := tnttypes.AttachmentConnection(tnttypes.AttachmentID{Index: 0})
	wrong := tnttypes.AssetID(999)
	_, _, err := l.GetConnectionChain(start, 4, &wrong)
	require.ErrorIs(t, err, ErrReceivesWrongAsset)
}

func TestGetConnectionChainExceedsMaxLength(t *testing.T) {
	asset := tnttypes.AssetID(7)
	s := tnttypes.NewSchematic(asset)
	// attachment 0 forwards to itself, looping forever.
	s.AddAttachment(tnttypes.AssetFlowMeter{
		AssetType:   asset,
		Destination: tnttypes.AttachmentConnection(tnttypes.AttachmentID{Index: 0}),
	})
	l := New(tnttypes.TankID(1), s, nil)

	start := tnttypes.AttachmentConnection(tnttypes.AttachmentID{Index: 0})
	_, _, err := l.GetConnectionChain(start, 3, nil)
	require.ErrorIs(t, err, ErrExceededChainLength)
}
