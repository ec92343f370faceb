// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2019 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package tntops

import (
	"github.com/bitmark-inc/tnt/cow"
	"github.com/bitmark-inc/tnt/tankstore"
	"github.com/bitmark-inc/tnt/tntlookup"
	"github.com/bitmark-inc/tnt/tntparams"
	"github.com/bitmark-inc/tnt/tntvalidate"
	"github.com/bitmark-inc/tnt/tnttypes"
)

// TankCreate is the tank_create operation (§6): schematic must already
// carry its taps, attachments, counters, and authorized_sources - decoding
// the wire representation into a *tnttypes.TankSchematic is tntpack's job,
// not this one's.
type TankCreate struct {
	Payer         tnttypes.AccountID
	DepositAmount int64
	Schematic     *tnttypes.TankSchematic
}

// Apply validates the schematic, charges the payer's CORE asset balance the
// declared deposit, and stages a new tank. Returns the new tank's id.
func (op TankCreate) Apply(buffer *cow.TankBuffer, params tntparams.Parameters) (tnttypes.TankID, error) {
	lookup := tntlookup.New(tnttypes.TankID(0), op.Schematic, tankLookupFn(buffer))
	if err := tntvalidate.ValidateTank(op.Schematic, lookup, params); nil != err {
		return 0, err
	}

	required := tntvalidate.CalculateDeposit(op.Schematic, params)
	if op.DepositAmount != required {
		return 0, ErrDepositMismatch
	}
	if err := buffer.AdjustBalance(op.Payer, tnttypes.CoreAsset, -op.DepositAmount); nil != err {
		return 0, err
	}

	tank := tnttypes.NewTankObject(op.Schematic, op.DepositAmount, buffer.HeadBlockTime())
	id := buffer.CreateTank(tank)

	buffer.PushAppliedOperation(tankstore.AppliedOperation{Kind: "tank_create", TankID: id})
	log.Infof("tank_create: tank=%d deposit=%d payer=%s", id, op.DepositAmount, op.Payer)
	return id, nil
}
