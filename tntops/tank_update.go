// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2019 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package tntops

import (
	"github.com/bitmark-inc/tnt/account"
	"github.com/bitmark-inc/tnt/cow"
	"github.com/bitmark-inc/tnt/tankstore"
	"github.com/bitmark-inc/tnt/tntlookup"
	"github.com/bitmark-inc/tnt/tntparams"
	"github.com/bitmark-inc/tnt/tntvalidate"
	"github.com/bitmark-inc/tnt/tnttypes"
)

// TankUpdate is the tank_update operation (§6). Taps/attachments carried in
// the *ToAdd slices arrive with no index of their own - AddTap/AddAttachment
// assign the next counter value, exactly as tank_create's schematic
// construction does.
type TankUpdate struct {
	UpdateAuthority      account.Authority
	Payer                tnttypes.AccountID
	TankID               tnttypes.TankID
	DepositDelta         int64
	TapsToRemove         []tnttypes.Index
	TapsToReplace        map[tnttypes.Index]*tnttypes.Tap
	TapsToAdd            []*tnttypes.Tap
	AttachmentsToRemove  []tnttypes.Index
	AttachmentsToReplace map[tnttypes.Index]tnttypes.Attachment
	AttachmentsToAdd     []tnttypes.Attachment
	NewAuthorizedSources *tnttypes.RemoteSources
}

// Apply mutates the tank's schematic in place, clears accessory state for
// anything removed or replaced, re-validates the result, and reconciles the
// deposit delta against the payer's CORE asset balance.
func (op TankUpdate) Apply(buffer *cow.TankBuffer, params tntparams.Parameters) error {
	tank, ok := buffer.GetTank(op.TankID)
	if !ok {
		return ErrTankNotFound
	}

	tap0, ok := tank.Schematic.EmergencyTap()
	if !ok || nil == tap0.OpenAuthority {
		return ErrNoEmergencyTap
	}
	if !tap0.OpenAuthority.Equal(op.UpdateAuthority) {
		return ErrAuthorityMismatch
	}

	if indexSet(op.TapsToRemove)[tnttypes.EmergencyTapIndex] {
		return ErrCannotRemoveEmergencyTap
	}
	if err := assertDisjoint(op.TapsToRemove, keysOf(op.TapsToReplace)); nil != err {
		return err
	}
	if err := assertDisjoint(op.AttachmentsToRemove, attachmentKeysOf(op.AttachmentsToReplace)); nil != err {
		return err
	}

	oldDeposit := tank.Deposit

	for _, idx := range op.TapsToRemove {
		eraseTapRequirementStates(tank, idx)
		delete(tank.Schematic.Taps, idx)
	}
	for idx, tap := range op.TapsToReplace {
		eraseTapRequirementStates(tank, idx)
		tank.Schematic.Taps[idx] = tap
	}
	for _, tap := range op.TapsToAdd {
		tank.Schematic.AddTap(tap)
	}

	for _, idx := range op.AttachmentsToRemove {
		tank.EraseState(tnttypes.ForAttachment(idx))
		delete(tank.Schematic.Attachments, idx)
	}
	for idx, a := range op.AttachmentsToReplace {
		tank.EraseState(tnttypes.ForAttachment(idx))
		tank.Schematic.Attachments[idx] = a
	}
	for _, a := range op.AttachmentsToAdd {
		tank.Schematic.AddAttachment(a)
	}

	if nil != op.NewAuthorizedSources {
		tank.Schematic.RemoteSources = *op.NewAuthorizedSources
	}

	lookup := tntlookup.New(op.TankID, tank.Schematic, tankLookupFn(buffer))
	if err := tntvalidate.ValidateTank(tank.Schematic, lookup, params); nil != err {
		return err
	}

	newDeposit := oldDeposit + op.DepositDelta
	if newDeposit != tntvalidate.CalculateDeposit(tank.Schematic, params) {
		return ErrDepositMismatch
	}
	if err := buffer.AdjustBalance(op.Payer, tnttypes.CoreAsset, -op.DepositDelta); nil != err {
		return err
	}
	tank.Deposit = newDeposit

	buffer.PushAppliedOperation(tankstore.AppliedOperation{Kind: "tank_update", TankID: op.TankID})
	log.Infof("tank_update: tank=%d deposit_delta=%d", op.TankID, op.DepositDelta)
	return nil
}

// eraseTapRequirementStates clears every requirement state row a tap owns,
// before that tap is removed or replaced - state addressing ignores
// accessory type, so a replacement tap at the same index must not inherit
// state left behind by requirements the old tap held at the same indices.
func eraseTapRequirementStates(tank *tnttypes.TankObject, idx tnttypes.Index) {
	tap, ok := tank.Schematic.Taps[idx]
	if !ok {
		return
	}
	for i := range tap.Requirements {
		tank.EraseState(tnttypes.ForRequirement(idx, tnttypes.Index(i)))
	}
}
