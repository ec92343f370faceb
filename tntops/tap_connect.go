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

// TapConnect is the tap_connect operation (§6): the connect_authority holder
// may repoint a tap's output connection and, if it chooses, burn its own
// authority in the same operation so the connection can never move again.
type TapConnect struct {
	ConnectAuthority      account.Authority
	TapToConnect          tnttypes.TapID
	NewConnection         *tnttypes.Connection
	ClearConnectAuthority bool
}

// Apply checks the declared authority against the tap's connect_authority,
// applies the new connection if one was given, and clears the tap's
// connect_authority if asked.
func (op TapConnect) Apply(buffer *cow.TankBuffer) error {
	if op.ClearConnectAuthority && nil == op.NewConnection {
		return ErrClearRequiresNewConnection
	}
	if nil == op.TapToConnect.TankID {
		return ErrTapReferencesOtherTank
	}
	tankID := *op.TapToConnect.TankID

	tank, ok := buffer.GetTank(tankID)
	if !ok {
		return ErrTankNotFound
	}
	tap, ok := tank.Schematic.Taps[op.TapToConnect.Index]
	if !ok {
		return ErrTapNotFound
	}
	if nil == tap.ConnectAuthority || !tap.ConnectAuthority.Equal(op.ConnectAuthority) {
		return ErrAuthorityMismatch
	}

	if nil != op.NewConnection {
		tap.ConnectedConnection = op.NewConnection
	}
	if op.ClearConnectAuthority {
		tap.ConnectAuthority = nil
	}

	buffer.PushAppliedOperation(tankstore.AppliedOperation{Kind: "tap_connect", TankID: tankID})
	log.Infof("tap_connect: tank=%d tap=%d", tankID, op.TapToConnect.Index)
	return nil
}
