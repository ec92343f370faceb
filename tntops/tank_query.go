// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2019 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package tntops

import (
	"github.com/bitmark-inc/tnt/account"
	"github.com/bitmark-inc/tnt/cow"
	"github.com/bitmark-inc/tnt/tankstore"
	"github.com/bitmark-inc/tnt/tntquery"
	"github.com/bitmark-inc/tnt/tnttypes"
)

// TankQuery is the tank_query operation (§6): a batch of queries evaluated
// and applied against a single tank, with no tap release involved.
type TankQuery struct {
	RequiredAuthorities []account.Authority
	TankID              tnttypes.TankID
	Queries             []tntquery.Query
	MeterReader         tntquery.MeterReader
}

// Apply rejects any tap-open-only query outright, rejects two queries in the
// same operation naming the same accessory target, then runs the standard
// evaluate/apply cycle while checking the authority closure invariant.
func (op TankQuery) Apply(buffer *cow.TankBuffer, now int64) error {
	tank, ok := buffer.GetTank(op.TankID)
	if !ok {
		return ErrTankNotFound
	}

	evaluator := tntquery.NewEvaluator(op.TankID, tank, now, op.MeterReader)
	tracker := newAuthorityTracker(op.RequiredAuthorities)
	seenTargets := make(map[tnttypes.AccessoryAddress]bool)

	for _, q := range op.Queries {
		if q.TapOpenOnly() {
			return ErrTapOpenOnlyQuery
		}
		if addr, ok := tntquery.TargetAddress(q); ok {
			if seenTargets[addr] {
				return ErrDuplicateQueryTarget
			}
			seenTargets[addr] = true
		}

		authorities, err := evaluator.EvaluateQuery(q)
		if nil != err {
			return err
		}
		if err := tracker.markUsed(authorities); nil != err {
			return err
		}
	}
	if err := tracker.checkAllUsed(); nil != err {
		return err
	}
	if err := evaluator.ApplyQueries(); nil != err {
		return err
	}

	buffer.PushAppliedOperation(tankstore.AppliedOperation{Kind: "tank_query", TankID: op.TankID})
	log.Debugf("tank_query: tank=%d queries=%d", op.TankID, len(op.Queries))
	return nil
}
