// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2019 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package tntops

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bitmark-inc/tnt/connflow"
	"github.com/bitmark-inc/tnt/tntparams"
	"github.com/bitmark-inc/tnt/tnttypes"
)

func TestAccountFundConnectionCreditsAuthorizedAccountDirectly(t *testing.T) {
	buffer, db := newBuffer(t)
	db.SetAuthorized("bob", tnttypes.AssetID(1), true)
	require.NoError(t, buffer.AdjustBalance("alice", tnttypes.AssetID(1), 1000))

	op := AccountFundConnection{
		FundingAccount:     "alice",
		FundingDestination: tnttypes.AccountConnection("bob"),
		FundingAmount:      100,
		Asset:              tnttypes.AssetID(1),
	}
	require.NoError(t, op.Apply(buffer, tntparams.DefaultParameters()))

	require.EqualValues(t, 900, buffer.GetBalance("alice", tnttypes.AssetID(1)))
	require.EqualValues(t, 100, buffer.GetBalance("bob", tnttypes.AssetID(1)))
}

func TestAccountFundConnectionRejectsUnauthorizedAccount(t *testing.T) {
	buffer, _ := newBuffer(t)
	require.NoError(t, buffer.AdjustBalance("alice", tnttypes.AssetID(1), 1000))

	op := AccountFundConnection{
		FundingAccount:     "alice",
		FundingDestination: tnttypes.AccountConnection("bob"),
		FundingAmount:      100,
		Asset:              tnttypes.AssetID(1),
	}
	require.Equal(t, connflow.ErrAssetNotAuthorized, op.Apply(buffer, tntparams.DefaultParameters()))
}

func TestAccountFundConnectionRejectsNonPositiveAmount(t *testing.T) {
	buffer, _ := newBuffer(t)

	op := AccountFundConnection{
		FundingAccount:     "alice",
		FundingDestination: tnttypes.AccountConnection("bob"),
		FundingAmount:      0,
		Asset:              tnttypes.AssetID(1),
	}
	require.Equal(t, ErrAmountNotPositive, op.Apply(buffer, tntparams.DefaultParameters()))
}

func TestAccountFundConnectionCreditsTankBalanceDirectly(t *testing.T) {
	buffer, _ := newBuffer(t)
	require.NoError(t, buffer.AdjustBalance("alice", tnttypes.AssetID(1), 1000))

	auth := singleAuthority("alice")
	s := emergencyOnlySchematic(tnttypes.AssetID(1), auth, auth)
	tank := tnttypes.NewTankObject(s, 0, 0)
	tankID := buffer.CreateTank(tank)

	op := AccountFundConnection{
		FundingAccount:     "alice",
		FundingDestination: tnttypes.TankConnection(tankID),
		FundingAmount:      250,
		Asset:              tnttypes.AssetID(1),
	}
	require.NoError(t, op.Apply(buffer, tntparams.DefaultParameters()))

	got, ok := buffer.GetTank(tankID)
	require.True(t, ok)
	require.EqualValues(t, 250, got.Balance)
	require.EqualValues(t, 750, buffer.GetBalance("alice", tnttypes.AssetID(1)))
}

// TestAccountFundConnectionRejectsWrongAssetBeforeCallingConnflow exercises
// the pre-check against tntlookup.GetConnectionAsset: a tank_id destination
// makes connflow's own asset comparison trivially true (the context tank
// and destination tank are the same tank), so this op must catch a
// mismatched asset itself before ever reaching connflow.
func TestAccountFundConnectionRejectsWrongAssetBeforeCallingConnflow(t *testing.T) {
	buffer, _ := newBuffer(t)
	require.NoError(t, buffer.AdjustBalance("alice", tnttypes.AssetID(2), 1000))

	auth := singleAuthority("alice")
	s := emergencyOnlySchematic(tnttypes.AssetID(1), auth, auth)
	tank := tnttypes.NewTankObject(s, 0, 0)
	tankID := buffer.CreateTank(tank)

	op := AccountFundConnection{
		FundingAccount:     "alice",
		FundingDestination: tnttypes.TankConnection(tankID),
		FundingAmount:      250,
		Asset:              tnttypes.AssetID(2),
	}
	require.Equal(t, connflow.ErrWrongAsset, op.Apply(buffer, tntparams.DefaultParameters()))

	got, ok := buffer.GetTank(tankID)
	require.True(t, ok)
	require.EqualValues(t, 0, got.Balance)
}

func TestAccountFundConnectionRejectsDestinationNeedingTankContext(t *testing.T) {
	buffer, _ := newBuffer(t)
	require.NoError(t, buffer.AdjustBalance("alice", tnttypes.AssetID(1), 1000))

	op := AccountFundConnection{
		FundingAccount:     "alice",
		FundingDestination: tnttypes.SameTankConnection(),
		FundingAmount:      100,
		Asset:              tnttypes.AssetID(1),
	}
	require.Equal(t, ErrDestinationNeedsTankContext, op.Apply(buffer, tntparams.DefaultParameters()))
}
