// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2019 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package tntops

import (
	"github.com/bitmark-inc/tnt/account"
	"github.com/bitmark-inc/tnt/cow"
	"github.com/bitmark-inc/tnt/tankstore"
	"github.com/bitmark-inc/tnt/tnttypes"
)

// TankDelete is the tank_delete operation (§6).
type TankDelete struct {
	DeleteAuthority account.Authority
	Payer           tnttypes.AccountID
	TankID          tnttypes.TankID
	DepositClaimed  int64
}

// Apply checks the delete authority against the tank's emergency tap,
// requires an empty balance, refunds the declared deposit, and removes the
// tank.
func (op TankDelete) Apply(buffer *cow.TankBuffer) error {
	tank, ok := buffer.GetTank(op.TankID)
	if !ok {
		return ErrTankNotFound
	}

	tap0, ok := tank.Schematic.EmergencyTap()
	if !ok || nil == tap0.OpenAuthority {
		return ErrNoEmergencyTap
	}
	if !tap0.OpenAuthority.Equal(op.DeleteAuthority) {
		return ErrAuthorityMismatch
	}
	if 0 != tank.Balance {
		return ErrTankNotEmpty
	}
	if op.DepositClaimed != tank.Deposit {
		return ErrDepositMismatch
	}

	if err := buffer.AdjustBalance(op.Payer, tnttypes.CoreAsset, op.DepositClaimed); nil != err {
		return err
	}
	buffer.RemoveTank(op.TankID)

	buffer.PushAppliedOperation(tankstore.AppliedOperation{Kind: "tank_delete", TankID: op.TankID})
	log.Infof("tank_delete: tank=%d deposit_claimed=%d", op.TankID, op.DepositClaimed)
	return nil
}
