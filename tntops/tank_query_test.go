// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2019 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package tntops

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bitmark-inc/tnt/account"
	"github.com/bitmark-inc/tnt/tntquery"
	"github.com/bitmark-inc/tnt/tnttypes"
)

func TestTankQuerySucceedsWithDocumentationString(t *testing.T) {
	buffer, _ := newBuffer(t)

	auth := singleAuthority("alice")
	s := emergencyOnlySchematic(tnttypes.AssetID(1), auth, auth)
	tank := tnttypes.NewTankObject(s, 500, 0)
	tankID := buffer.CreateTank(tank)

	op := TankQuery{
		TankID:  tankID,
		Queries: []tntquery.Query{tntquery.DocumentationString{Text: "annual inspection note"}},
	}
	require.NoError(t, op.Apply(buffer, 0))
}

func TestTankQueryRejectsTapOpenOnlyQuery(t *testing.T) {
	buffer, _ := newBuffer(t)

	auth := singleAuthority("alice")
	s := emergencyOnlySchematic(tnttypes.AssetID(1), auth, auth)
	tank := tnttypes.NewTankObject(s, 500, 0)
	tankID := buffer.CreateTank(tank)

	op := TankQuery{
		TankID: tankID,
		Queries: []tntquery.Query{
			tntquery.RevealHashPreimage{Tap: 0, RequirementIndex: 0, Preimage: []byte("secret")},
		},
	}
	require.Equal(t, ErrTapOpenOnlyQuery, op.Apply(buffer, 0))
}

func TestTankQueryRejectsDuplicateQueryTarget(t *testing.T) {
	buffer, _ := newBuffer(t)

	auth := singleAuthority("alice")
	s := emergencyOnlySchematic(tnttypes.AssetID(1), auth, auth)
	meterIndex := s.AddAttachment(tnttypes.AssetFlowMeter{
		AssetType:   tnttypes.AssetID(1),
		Destination: tnttypes.AccountConnection("alice"),
	})
	tank := tnttypes.NewTankObject(s, 500, 0)
	tank.GetOrCreateState(tnttypes.ForAttachment(meterIndex)).AssetFlowMeter = &tnttypes.AssetFlowMeterState{MeteredAmount: 100}
	tankID := buffer.CreateTank(tank)

	op := TankQuery{
		RequiredAuthorities: []account.Authority{auth},
		TankID:              tankID,
		Queries: []tntquery.Query{
			tntquery.ResetMeter{Attachment: meterIndex},
			tntquery.ResetMeter{Attachment: meterIndex},
		},
	}
	require.Equal(t, ErrDuplicateQueryTarget, op.Apply(buffer, 0))
}

func TestTankQueryRejectsMissingTank(t *testing.T) {
	buffer, _ := newBuffer(t)

	op := TankQuery{TankID: tnttypes.TankID(999)}
	require.Equal(t, ErrTankNotFound, op.Apply(buffer, 0))
}
