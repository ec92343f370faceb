// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2019 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package tapflow implements the tap-flow evaluator (§4.G): given an
// initial tap to open, it drains a FIFO queue of (tap, amount) pairs -
// seeded by that initial request and grown by cascading tap_opener
// attachments reached through connflow - bounded overall by the operation's
// max_taps_to_open parameter.
package tapflow

import (
	"github.com/bitmark-inc/logger"

	"github.com/bitmark-inc/tnt/connflow"
	"github.com/bitmark-inc/tnt/cow"
	"github.com/bitmark-inc/tnt/fault"
	"github.com/bitmark-inc/tnt/taprequirement"
	"github.com/bitmark-inc/tnt/tntparams"
	"github.com/bitmark-inc/tnt/tntquery"
	"github.com/bitmark-inc/tnt/tnttypes"
)

var log = logger.New("tapflow")

var (
	ErrTankUnset              = fault.TapFlowError("tap reference names no tank")
	ErrTapNotFound            = fault.TapFlowError("tap does not exist")
	ErrTapNotConnected        = fault.TapFlowError("tap is not connected")
	ErrAssetNotAuthorized     = fault.TapFlowError("account not authorized for asset")
	ErrAmountExceedsBalance   = fault.TapFlowError("requested amount exceeds tank balance")
	ErrAmountExceedsLimit     = fault.TapFlowError("requested amount exceeds release limit")
	ErrTankEmpty              = fault.TapFlowError("tank is empty")
	ErrTapLocked              = fault.TapFlowError("tap release blocked by requirement")
	ErrCascadingCountExceeded = fault.TapFlowError("cascading tap open count exceeded max_taps_to_open")
)

// Flow is one completed tap release, recorded for the parent operation.
type Flow struct {
	Tap    tnttypes.TapID
	Amount int64
	Path   []tnttypes.Connection
}

// pendingOpen is one FIFO queue entry.
type pendingOpen struct {
	Tap    tnttypes.TapID
	Amount tnttypes.FlowLimit
}

// emptyEvaluator satisfies taprequirement.Evaluator with no evaluated
// queries - used for any tap reached on a tank other than the one the
// parent operation's queries were evaluated against, since a tap_open's
// query session is scoped to a single tank.
type emptyEvaluator struct{}

func (emptyEvaluator) TargetQueries(tnttypes.AccessoryAddress) []tntquery.Query { return nil }
func (emptyEvaluator) TankQueries() []tntquery.Query                           { return nil }

// Evaluator is component G.
type Evaluator struct {
	buffer      *cow.TankBuffer
	params      tntparams.Parameters
	account     tnttypes.AccountID
	now         int64
	primaryTank tnttypes.TankID
	queryEval   taprequirement.Evaluator
	meterReader taprequirement.MeterReader
	fundAccount connflow.FundAccountFunc

	queue     []pendingOpen
	totalSeen int
	flows     []Flow
	utilities map[resolvedTap]*taprequirement.Utility
}

// resolvedTap keys the per-operation utility cache by tank and tap index,
// once the tap reference's optional tank id has been resolved to a concrete
// tnttypes.TankID - unlike tnttypes.TapID, every field here is comparable by
// value, so it is safe as a map key regardless of how the reference's
// pointer was constructed.
type resolvedTap struct {
	Tank tnttypes.TankID
	Tap  tnttypes.Index
}

// NewEvaluator builds a tap-flow evaluator over buffer. queryEval is the
// query session already evaluated against primaryTank for this operation
// (may be nil if the operation carried no queries); meterReader resolves
// metered amounts for exchange_requirement across tanks; fundAccount
// settles deposits that reach an account_id terminal.
func NewEvaluator(
	buffer *cow.TankBuffer,
	params tntparams.Parameters,
	account tnttypes.AccountID,
	now int64,
	primaryTank tnttypes.TankID,
	queryEval taprequirement.Evaluator,
	meterReader taprequirement.MeterReader,
	fundAccount connflow.FundAccountFunc,
) *Evaluator {
	return &Evaluator{
		buffer:      buffer,
		params:      params,
		account:     account,
		now:         now,
		primaryTank: primaryTank,
		queryEval:   queryEval,
		meterReader: meterReader,
		fundAccount: fundAccount,
	}
}

// Run seeds the queue with the initial tap open and drains it to
// completion, returning every flow released in FIFO order. The caller (the
// tap_open operation) must check len(flows) against its declared
// tap_open_count.
func (e *Evaluator) Run(initialTap tnttypes.TapID, initialAmount tnttypes.FlowLimit) ([]Flow, error) {
	e.queue = []pendingOpen{{Tap: initialTap, Amount: initialAmount}}
	e.totalSeen = 1
	e.flows = nil
	e.utilities = make(map[resolvedTap]*taprequirement.Utility)

	proc := connflow.New(e.buffer, e.params, e.enqueueOpen, e.fundAccount)

	for len(e.queue) > 0 {
		head := e.queue[0]
		e.queue = e.queue[1:]

		flow, err := e.openOne(proc, head.Tap, head.Amount)
		if nil != err {
			return nil, err
		}
		e.flows = append(e.flows, flow)
	}
	return e.flows, nil
}

// enqueueOpen is the open-tap callback handed to connflow; it rejects the
// cascade outright once the total number of taps ever queued - seed plus
// every cascade - would exceed max_taps_to_open.
func (e *Evaluator) enqueueOpen(tap tnttypes.TapID, amount tnttypes.FlowLimit) error {
	if e.totalSeen+1 > e.params.MaxTapsToOpen {
		return ErrCascadingCountExceeded
	}
	e.totalSeen++
	e.queue = append(e.queue, pendingOpen{Tap: tap, Amount: amount})
	return nil
}

func (e *Evaluator) openOne(proc *connflow.Processor, tapRef tnttypes.TapID, requested tnttypes.FlowLimit) (Flow, error) {
	if nil == tapRef.TankID {
		return Flow{}, ErrTankUnset
	}
	tankID := *tapRef.TankID

	tank, ok := e.buffer.GetTank(tankID)
	if !ok {
		return Flow{}, ErrTapNotFound
	}
	tap, ok := tank.Schematic.Taps[tapRef.Index]
	if !ok {
		return Flow{}, ErrTapNotFound
	}
	if nil == tap.ConnectedConnection {
		return Flow{}, ErrTapNotConnected
	}
	if !e.buffer.IsAuthorizedAsset(e.account, tank.Schematic.AssetType) {
		return Flow{}, ErrAssetNotAuthorized
	}
	if !requested.IsUnlimited() && requested.Amount() > tank.Balance {
		return Flow{}, ErrAmountExceedsBalance
	}

	utility, err := e.utilityFor(tankID, tapRef.Index, tank)
	if nil != err {
		return Flow{}, err
	}

	limit, binding := utility.MaxTapRelease()
	if limit.IsZero() {
		if nil != binding {
			path := fault.AccessoryPath{}.WithTap(uint16(tapRef.Index)).WithRequirement(uint16(*binding))
			return Flow{}, fault.AtPath(ErrTapLocked, path)
		}
		return Flow{}, ErrTankEmpty
	}

	releaseLimit := limit
	if !requested.IsUnlimited() {
		if requested.Amount() > limit.Amount() {
			return Flow{}, ErrAmountExceedsLimit
		}
		releaseLimit = requested
	}
	amount := releaseLimit.Amount()

	utility.PrepareTapRelease(amount)
	tank.Balance -= amount

	path, err := proc.ReleaseToConnection(tankID, *tap.ConnectedConnection, amount)
	if nil != err {
		return Flow{}, err
	}

	log.Debugf("tapflow: released %d from tank:%d tap:%d", amount, tankID, tapRef.Index)
	return Flow{Tap: tapRef, Amount: amount, Path: path}, nil
}

// utilityFor returns the tap-requirement utility for one (tank, tap) pair,
// creating it on first use and reusing it for every later open of the same
// tap within this operation - required for the review/delay/ticket "first
// opening binds the remaining limit for the rest of the operation" rule
// (§4.F) to hold across a tap_opener cascade that reopens the same tap.
func (e *Evaluator) utilityFor(tankID tnttypes.TankID, tapIndex tnttypes.Index, tank *tnttypes.TankObject) (*taprequirement.Utility, error) {
	key := resolvedTap{Tank: tankID, Tap: tapIndex}
	if u, ok := e.utilities[key]; ok {
		return u, nil
	}
	u, err := taprequirement.NewUtility(tank, tapIndex, e.now, e.queryEvaluatorFor(tankID), e.meterReader)
	if nil != err {
		return nil, err
	}
	e.utilities[key] = u
	return u, nil
}

// queryEvaluatorFor returns the operation's query session when tankID is
// the tank those queries were evaluated against, or an evaluator reporting
// no queries otherwise.
func (e *Evaluator) queryEvaluatorFor(tankID tnttypes.TankID) taprequirement.Evaluator {
	if nil != e.queryEval && tankID == e.primaryTank {
		return e.queryEval
	}
	return emptyEvaluator{}
}
