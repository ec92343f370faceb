// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2019 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package tntvalidate

import (
	"github.com/bitmark-inc/tnt/account"
	"github.com/bitmark-inc/tnt/tntparams"
	"github.com/bitmark-inc/tnt/tnttypes"
)

// CalculateDeposit sums the tank-level deposit plus the per-accessory
// deposit for every attachment and requirement (§4.B). schematic must have
// already passed ValidateTank; callers that skip validation get whatever
// this computes, but the contract only promises a meaningful number for a
// validated schematic.
func CalculateDeposit(schematic *tnttypes.TankSchematic, params tntparams.Parameters) int64 {
	total := params.TankDeposit
	for _, a := range schematic.Attachments {
		tag := tntparams.AttachmentTagOf(a)
		total += params.AttachmentDeposit(tag, tntparams.AttachmentHasState(a))
	}
	for _, tap := range schematic.Taps {
		for _, r := range tap.Requirements {
			tag := tntparams.RequirementTagOf(r)
			total += params.RequirementDeposit(tag, tntparams.RequirementHasState(r))
		}
	}
	return total
}

// GetReferencedAccounts collects every account_id reachable from the
// schematic's authorities, connections, and requirement configs, for a
// host's notification/indexing layer (§4.B, supplemented per
// original_source/libraries/chain/tnt/object.cpp's account enumeration).
func GetReferencedAccounts(schematic *tnttypes.TankSchematic) map[tnttypes.AccountID]bool {
	accounts := make(map[tnttypes.AccountID]bool)

	addAuthority := func(a *account.Authority) {
		if nil == a {
			return
		}
		for id := range a.Accounts {
			accounts[tnttypes.AccountID(id)] = true
		}
	}

	addConnection := func(c tnttypes.Connection) {
		if tnttypes.ConnectionAccount == c.Kind {
			accounts[c.Account] = true
		}
	}

	for _, tap := range schematic.Taps {
		addAuthority(tap.OpenAuthority)
		addAuthority(tap.ConnectAuthority)
		if nil != tap.ConnectedConnection {
			addConnection(*tap.ConnectedConnection)
		}
		for _, r := range tap.Requirements {
			switch v := r.(type) {
			case tnttypes.ReviewRequirement:
				addAuthority(&v.Reviewer)
			case tnttypes.DelayRequirement:
				addAuthority(v.VetoAuthority)
			case tnttypes.TicketRequirement:
				addAuthority(&v.TicketSigner)
			case tnttypes.ExchangeRequirement:
				addAuthority(v.ResetAuthority)
			}
		}
	}

	for _, a := range schematic.Attachments {
		switch v := a.(type) {
		case tnttypes.AssetFlowMeter:
			addAuthority(v.ResetAuthority)
			addConnection(v.Destination)
		case tnttypes.TapOpener:
			addConnection(v.Destination)
		case tnttypes.AttachmentConnectAuthority:
			addAuthority(&v.ConnectAuthority)
		}
	}

	return accounts
}
