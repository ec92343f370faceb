// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2019 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package tapflow

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bitmark-inc/tnt/cow"
	"github.com/bitmark-inc/tnt/tankstore"
	"github.com/bitmark-inc/tnt/tntparams"
	"github.com/bitmark-inc/tnt/tnttypes"
)

func newBuffer(t *testing.T, account tnttypes.AccountID, asset tnttypes.AssetID) (*cow.TankBuffer, *tankstore.MemoryDatabase) {
	t.Helper()
	db := tankstore.NewMemoryDatabase(tntparams.DefaultParameters())
	db.SetAuthorized(account, asset, true)
	return cow.NewTankBuffer(db), db
}

func TestRunReleasesBoundedByRequirement(t *testing.T) {
	buffer, _ := newBuffer(t, "alice", tnttypes.AssetID(1))
	s := tnttypes.NewSchematic(tnttypes.AssetID(1))
	s.AddTap(&tnttypes.Tap{DestructorTap: true})
	tapIndex := s.AddTap(&tnttypes.Tap{
		ConnectedConnection: connectionPtr(tnttypes.AccountConnection("alice")),
		Requirements:        []tnttypes.Requirement{tnttypes.ImmediateFlowLimit{Limit: 100}},
	})
	tank := tnttypes.NewTankObject(s, 0, 0)
	tank.Balance = 1000
	tankID := buffer.CreateTank(tank)

	e := NewEvaluator(buffer, tntparams.DefaultParameters(), "alice", 0, tankID, nil, nil, func(tnttypes.AccountID, int64, []tnttypes.Connection) error { return nil })
	flows, err := e.Run(tnttypes.TapID{TankID: &tankID, Index: tapIndex}, tnttypes.Unlimited())
	require.NoError(t, err)
	require.Len(t, flows, 1)
	require.EqualValues(t, 100, flows[0].Amount)

	got, _ := buffer.GetTank(tankID)
	require.EqualValues(t, 900, got.Balance)
}

func TestRunShrinksToRequestedAmount(t *testing.T) {
	buffer, _ := newBuffer(t, "alice", tnttypes.AssetID(1))
	s := tnttypes.NewSchematic(tnttypes.AssetID(1))
	s.AddTap(&tnttypes.Tap{DestructorTap: true})
	tapIndex := s.AddTap(&tnttypes.Tap{ConnectedConnection: connectionPtr(tnttypes.AccountConnection("alice"))})
	tank := tnttypes.NewTankObject(s, 0, 0)
	tank.Balance = 1000
	tankID := buffer.CreateTank(tank)

	e := NewEvaluator(buffer, tntparams.DefaultParameters(), "alice", 0, tankID, nil, nil, func(tnttypes.AccountID, int64, []tnttypes.Connection) error { return nil })
	flows, err := e.Run(tnttypes.TapID{TankID: &tankID, Index: tapIndex}, tnttypes.AmountLimit(42))
	require.NoError(t, err)
	require.EqualValues(t, 42, flows[0].Amount)
}

func TestRunRejectsRequestedAboveLimit(t *testing.T) {
	buffer, _ := newBuffer(t, "alice", tnttypes.AssetID(1))
	s := tnttypes.NewSchematic(tnttypes.AssetID(1))
	s.AddTap(&tnttypes.Tap{DestructorTap: true})
	tapIndex := s.AddTap(&tnttypes.Tap{
		ConnectedConnection: connectionPtr(tnttypes.AccountConnection("alice")),
		Requirements:        []tnttypes.Requirement{tnttypes.ImmediateFlowLimit{Limit: 10}},
	})
	tank := tnttypes.NewTankObject(s, 0, 0)
	tank.Balance = 1000
	tankID := buffer.CreateTank(tank)

	e := NewEvaluator(buffer, tntparams.DefaultParameters(), "alice", 0, tankID, nil, nil, nil)
	_, err := e.Run(tnttypes.TapID{TankID: &tankID, Index: tapIndex}, tnttypes.AmountLimit(20))
	require.Equal(t, ErrAmountExceedsLimit, err)
}

func TestRunFailsOnEmptyTank(t *testing.T) {
	buffer, _ := newBuffer(t, "alice", tnttypes.AssetID(1))
	s := tnttypes.NewSchematic(tnttypes.AssetID(1))
	s.AddTap(&tnttypes.Tap{DestructorTap: true})
	tapIndex := s.AddTap(&tnttypes.Tap{ConnectedConnection: connectionPtr(tnttypes.AccountConnection("alice"))})
	tank := tnttypes.NewTankObject(s, 0, 0)
	tankID := buffer.CreateTank(tank)

	e := NewEvaluator(buffer, tntparams.DefaultParameters(), "alice", 0, tankID, nil, nil, nil)
	_, err := e.Run(tnttypes.TapID{TankID: &tankID, Index: tapIndex}, tnttypes.Unlimited())
	require.Equal(t, ErrTankEmpty, err)
}

func TestRunCascadesThroughTapOpenerWithinBudget(t *testing.T) {
	buffer, _ := newBuffer(t, "alice", tnttypes.AssetID(1))
	s := tnttypes.NewSchematic(tnttypes.AssetID(1))
	s.AddTap(&tnttypes.Tap{DestructorTap: true})
	cascadeTap := s.AddTap(&tnttypes.Tap{ConnectedConnection: connectionPtr(tnttypes.AccountConnection("alice"))})
	openerIndex := s.AddAttachment(tnttypes.TapOpener{
		TapIndex:      cascadeTap,
		ReleaseAmount: tnttypes.AmountLimit(30),
		Destination:   tnttypes.AccountConnection("alice"),
		AssetType:     tnttypes.AssetID(1),
	})
	firstTap := s.AddTap(&tnttypes.Tap{ConnectedConnection: connectionPtr(tnttypes.AttachmentConnection(tnttypes.AttachmentID{Index: openerIndex}))})
	tank := tnttypes.NewTankObject(s, 0, 0)
	tank.Balance = 1000
	tankID := buffer.CreateTank(tank)

	params := tntparams.DefaultParameters()
	params.MaxTapsToOpen = 2
	e := NewEvaluator(buffer, params, "alice", 0, tankID, nil, nil, func(tnttypes.AccountID, int64, []tnttypes.Connection) error { return nil })
	flows, err := e.Run(tnttypes.TapID{TankID: &tankID, Index: firstTap}, tnttypes.AmountLimit(30))
	require.NoError(t, err)
	require.Len(t, flows, 2)
}

func TestRunCascadingCountExceeded(t *testing.T) {
	buffer, _ := newBuffer(t, "alice", tnttypes.AssetID(1))
	s := tnttypes.NewSchematic(tnttypes.AssetID(1))
	s.AddTap(&tnttypes.Tap{DestructorTap: true})
	cascadeTap := s.AddTap(&tnttypes.Tap{ConnectedConnection: connectionPtr(tnttypes.AccountConnection("alice"))})
	openerIndex := s.AddAttachment(tnttypes.TapOpener{
		TapIndex:      cascadeTap,
		ReleaseAmount: tnttypes.AmountLimit(30),
		Destination:   tnttypes.AccountConnection("alice"),
		AssetType:     tnttypes.AssetID(1),
	})
	firstTap := s.AddTap(&tnttypes.Tap{ConnectedConnection: connectionPtr(tnttypes.AttachmentConnection(tnttypes.AttachmentID{Index: openerIndex}))})
	tank := tnttypes.NewTankObject(s, 0, 0)
	tank.Balance = 1000
	tankID := buffer.CreateTank(tank)

	params := tntparams.DefaultParameters()
	params.MaxTapsToOpen = 1
	e := NewEvaluator(buffer, params, "alice", 0, tankID, nil, nil, func(tnttypes.AccountID, int64, []tnttypes.Connection) error { return nil })
	_, err := e.Run(tnttypes.TapID{TankID: &tankID, Index: firstTap}, tnttypes.AmountLimit(30))
	require.Equal(t, ErrCascadingCountExceeded, err)
}

func connectionPtr(c tnttypes.Connection) *tnttypes.Connection { return &c }
