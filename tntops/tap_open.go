// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2019 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package tntops

import (
	"github.com/bitmark-inc/tnt/account"
	"github.com/bitmark-inc/tnt/connflow"
	"github.com/bitmark-inc/tnt/cow"
	"github.com/bitmark-inc/tnt/taprequirement"
	"github.com/bitmark-inc/tnt/tapflow"
	"github.com/bitmark-inc/tnt/tankstore"
	"github.com/bitmark-inc/tnt/tntparams"
	"github.com/bitmark-inc/tnt/tntquery"
	"github.com/bitmark-inc/tnt/tnttypes"
)

// TapOpen is the tap_open operation (§6): the only operation capable of
// moving asset out of a tank. tap_to_open must carry an explicit TankID,
// which names the tank this operation targets (an unset TankID is rejected
// with ErrTapReferencesOtherTank); the emergency tap's destructor form may skip
// query evaluation entirely when the tank is already empty.
type TapOpen struct {
	Account             tnttypes.AccountID
	RequiredAuthorities []account.Authority
	Queries             []tntquery.Query
	TapToOpen           tnttypes.TapID
	ReleaseAmount       tnttypes.FlowLimit
	DepositClaimed      *int64
	TapOpenCount        uint32
}

// Apply resolves the target tank and tap, settles a claimed deposit's fast
// track outright when the tank is already empty, otherwise runs the query
// evaluate/apply cycle and drives the tap-flow evaluator before checking the
// declared flow count and, if a deposit was claimed, settling it once the
// tank has actually drained.
func (op TapOpen) Apply(
	buffer *cow.TankBuffer,
	params tntparams.Parameters,
	now int64,
	meterReader taprequirement.MeterReader,
	fundAccount connflow.FundAccountFunc,
) ([]tapflow.Flow, error) {
	if nil == op.TapToOpen.TankID {
		return nil, ErrTapReferencesOtherTank
	}
	tankID := *op.TapToOpen.TankID

	tank, ok := buffer.GetTank(tankID)
	if !ok {
		return nil, ErrTankNotFound
	}
	tap, ok := tank.Schematic.Taps[op.TapToOpen.Index]
	if !ok {
		return nil, ErrTapNotFound
	}

	deleteTank := false
	if nil != op.DepositClaimed {
		if *op.DepositClaimed != tank.Deposit {
			return nil, ErrDepositMismatch
		}
		if !tap.DestructorTap {
			return nil, ErrNotDestructor
		}
		deleteTank = true

		// Fast track: an already-empty tank being destroyed needs nothing
		// but its own authority and count checked.
		if 0 == tank.Balance {
			if 0 != len(op.Queries) {
				return nil, ErrUnexpectedQueries
			}
			if 1 != op.TapOpenCount {
				return nil, ErrTapOpenCountMismatch
			}
			if err := checkFastPathAuthorities(op.RequiredAuthorities, tap.OpenAuthority); nil != err {
				return nil, err
			}
			if !op.ReleaseAmount.IsUnlimited() && !op.ReleaseAmount.IsZero() {
				return nil, ErrFastPathReleaseAmountNotZero
			}
			if err := op.settleDeposit(buffer, tankID, tank.Deposit); nil != err {
				return nil, err
			}
			buffer.PushAppliedOperation(tankstore.AppliedOperation{Kind: "tap_open", TankID: tankID})
			log.Infof("tap_open: tank=%d tap=%d destroyed (fast path)", tankID, op.TapToOpen.Index)
			return nil, nil
		}
	}

	evaluator := tntquery.NewEvaluator(tankID, tank, now, meterReader)
	tracker := newAuthorityTracker(op.RequiredAuthorities)
	if nil != tap.OpenAuthority {
		if err := tracker.markUsed([]account.Authority{*tap.OpenAuthority}); nil != err {
			return nil, err
		}
	}
	seenTargets := make(map[tnttypes.AccessoryAddress]bool)

	for _, q := range op.Queries {
		if addr, ok := tntquery.TargetAddress(q); ok {
			if seenTargets[addr] {
				return nil, ErrDuplicateQueryTarget
			}
			seenTargets[addr] = true
		}

		authorities, err := evaluator.EvaluateQuery(q)
		if nil != err {
			return nil, err
		}
		if err := tracker.markUsed(authorities); nil != err {
			return nil, err
		}
	}
	if err := evaluator.ApplyQueries(); nil != err {
		return nil, err
	}

	flows, err := tapflow.NewEvaluator(buffer, params, op.Account, now, tankID, evaluator, meterReader, fundAccount).
		Run(op.TapToOpen, op.ReleaseAmount)
	if nil != err {
		return nil, err
	}
	if uint32(len(flows)) != op.TapOpenCount {
		return nil, ErrTapOpenCountMismatch
	}
	if err := tracker.checkAllUsed(); nil != err {
		return nil, err
	}

	if deleteTank {
		tank, ok = buffer.GetTank(tankID)
		if !ok {
			return nil, ErrTankNotFound
		}
		if 0 != tank.Balance {
			return nil, ErrTankNotEmpty
		}
		if err := op.settleDeposit(buffer, tankID, tank.Deposit); nil != err {
			return nil, err
		}
	}

	buffer.PushAppliedOperation(tankstore.AppliedOperation{Kind: "tap_open", TankID: tankID, Detail: flows})
	log.Infof("tap_open: tank=%d tap=%d flows=%d", tankID, op.TapToOpen.Index, len(flows))
	return flows, nil
}

// checkFastPathAuthorities enforces the fast track's narrower declaration
// rule: declare exactly the tap's own open authority if it has one, or
// nothing at all if it doesn't - no query ever runs to justify anything more.
func checkFastPathAuthorities(declared []account.Authority, openAuthority *account.Authority) error {
	if nil == openAuthority {
		if 0 != len(declared) {
			return ErrFastPathAuthorityMismatch
		}
		return nil
	}
	if 1 != len(declared) || !declared[0].Equal(*openAuthority) {
		return ErrFastPathAuthorityMismatch
	}
	return nil
}

// settleDeposit credits the payer with the tank's deposit and removes the
// tank, the final step shared by the fast track and the drained-during-this-
// operation path.
func (op TapOpen) settleDeposit(buffer *cow.TankBuffer, tankID tnttypes.TankID, deposit int64) error {
	if err := buffer.AdjustBalance(op.Account, tnttypes.CoreAsset, deposit); nil != err {
		return err
	}
	buffer.RemoveTank(tankID)
	return nil
}
