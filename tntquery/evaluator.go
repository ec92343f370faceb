// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2019 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package tntquery

import (
	"github.com/bitmark-inc/logger"

	"github.com/bitmark-inc/tnt/account"
	"github.com/bitmark-inc/tnt/fault"
	"github.com/bitmark-inc/tnt/tnttypes"
)

var log = logger.New("tntquery")

var (
	ErrAlreadyApplied        = fault.StateError("apply_queries already called")
	ErrSetQueryTankTwice     = fault.StateError("set_query_tank called more than once")
	ErrRequestNotFound       = fault.QueryError("request not found")
	ErrAlreadyApproved       = fault.QueryError("request already approved")
	ErrNotApproved           = fault.QueryError("request is not approved")
	ErrNotMatured            = fault.QueryError("request has not matured")
	ErrAlreadyMatured        = fault.QueryError("request has already matured")
	ErrPreimageSizeMismatch  = fault.QueryError("preimage size does not match requirement")
	ErrPreimageHashMismatch  = fault.QueryError("preimage does not hash to the requirement's digest")
	ErrTicketNumberMismatch  = fault.QueryError("ticket number does not match the redemption counter")
	ErrTicketTargetMismatch  = fault.QueryError("ticket target does not match the query's declared tap/requirement")
	ErrRequestLimitReached   = fault.QueryError("pending request limit reached")
	ErrMeterNotZero          = fault.QueryError("referenced meter is not zero")
	ErrAmountNotPositive     = fault.QueryError("amount_released is not positive")
	ErrWrongTargetKind       = fault.QueryError("query target is not the expected accessory kind")
	ErrConnectionAssetMismatch = fault.QueryError("new connection's asset does not match the attachment's output")
)

// MeterReader resolves the current metered_amount of an asset_flow_meter
// that may live on a different tank than the one being evaluated - needed
// by exchange_requirement, whose meter_id is deliberately allowed to point
// cross-tank (§9 design notes: cyclic references are opaque ids resolved
// via a lookup contract).
type MeterReader func(tnttypes.AttachmentID) (meteredAmount int64, ok bool)

// Evaluator runs the evaluate/apply cycle for every query issued against
// one tank within one operation (§4.E). It is constructed once per
// operation via NewEvaluator (the "set_query_tank exactly once" contract),
// evaluated query by query, and finally applied exactly once.
type Evaluator struct {
	tankID      tnttypes.TankID
	tank        *tnttypes.TankObject
	now         int64
	meterReader MeterReader

	evaluated []Query
	applied   bool

	targetIndex map[tnttypes.AccessoryAddress][]Query
	tankQueries []Query
}

// NewEvaluator opens an evaluation session against tank (a staged, mutable
// clone from the COW buffer) as of now (typically the host's
// head_block_time). meterReader may be nil if no exchange_requirement in
// this tank references a meter on another tank.
func NewEvaluator(tankID tnttypes.TankID, tank *tnttypes.TankObject, now int64, meterReader MeterReader) *Evaluator {
	return &Evaluator{
		tankID:      tankID,
		tank:        tank,
		now:         now,
		meterReader: meterReader,
		targetIndex: make(map[tnttypes.AccessoryAddress][]Query),
	}
}

// resolveMeterAmount reads a meter's metered_amount, using the local tank's
// accessory state when the meter lives here, else deferring to meterReader.
func (e *Evaluator) resolveMeterAmount(meterID tnttypes.AttachmentID) (int64, error) {
	if nil == meterID.TankID || *meterID.TankID == e.tankID {
		state, ok := e.tank.GetState(tnttypes.ForAttachment(meterID.Index))
		if !ok || nil == state.AssetFlowMeter {
			return 0, nil
		}
		return state.AssetFlowMeter.MeteredAmount, nil
	}
	if nil == e.meterReader {
		return 0, fault.LookupError("need meter reader for cross-tank exchange_requirement")
	}
	amount, ok := e.meterReader(meterID)
	if !ok {
		return 0, fault.LookupError("referenced meter not found")
	}
	return amount, nil
}

// EvaluateQuery runs q's evaluate phase, returning the authorities it
// requires. May be called many times until ApplyQueries runs.
func (e *Evaluator) EvaluateQuery(q Query) ([]account.Authority, error) {
	if e.applied {
		return nil, ErrAlreadyApplied
	}

	authorities, err := e.evaluateOne(q)
	if nil != err {
		return nil, err
	}

	e.evaluated = append(e.evaluated, q)
	e.index(q)
	log.Debugf("evaluated query tag=%d on tank=%d", q.Tag(), e.tankID)
	return authorities, nil
}

// ApplyQueries runs every evaluated query's apply phase in evaluation
// order. Terminal: EvaluateQuery rejects any further calls afterward.
func (e *Evaluator) ApplyQueries() error {
	if e.applied {
		return ErrAlreadyApplied
	}
	for _, q := range e.evaluated {
		if err := e.applyOne(q); nil != err {
			return err
		}
	}
	e.applied = true
	log.Debugf("applied %d queries on tank=%d", len(e.evaluated), e.tankID)
	return nil
}

// TargetQueries returns every evaluated query addressed at address, in
// evaluation order - consulted by §4.F's per-requirement limit computation.
func (e *Evaluator) TargetQueries(address tnttypes.AccessoryAddress) []Query {
	return e.targetIndex[address]
}

// TankQueries returns every evaluated query that targets the tank itself
// (currently just documentation_string).
func (e *Evaluator) TankQueries() []Query {
	return e.tankQueries
}

func (e *Evaluator) index(q Query) {
	if addr, ok := requirementTarget(q); ok {
		e.targetIndex[addr] = append(e.targetIndex[addr], q)
		return
	}
	if addr, ok := attachmentTarget(q); ok {
		e.targetIndex[addr] = append(e.targetIndex[addr], q)
		return
	}
	e.tankQueries = append(e.tankQueries, q)
}

// TargetAddress reports the accessory address q is aimed at, mirroring the
// same target computation the evaluator indexes queries by - exported for
// the uniqueness-per-target check (§6) that tank_query and tap_open run
// over their query lists in tntops.
func TargetAddress(q Query) (tnttypes.AccessoryAddress, bool) {
	if addr, ok := requirementTarget(q); ok {
		return addr, true
	}
	return attachmentTarget(q)
}

// requirementTarget returns the accessory address a requirement-targeted
// query names, if q is one.
func requirementTarget(q Query) (tnttypes.AccessoryAddress, bool) {
	switch v := q.(type) {
	case CreateRequestForReview:
		return tnttypes.ForRequirement(v.Tap, v.RequirementIndex), true
	case ReviewRequestToOpen:
		return tnttypes.ForRequirement(v.Tap, v.RequirementIndex), true
	case CancelRequestForReview:
		return tnttypes.ForRequirement(v.Tap, v.RequirementIndex), true
	case ConsumeApprovedRequestToOpen:
		return tnttypes.ForRequirement(v.Tap, v.RequirementIndex), true
	case CreateRequestForDelay:
		return tnttypes.ForRequirement(v.Tap, v.RequirementIndex), true
	case VetoRequestInDelay:
		return tnttypes.ForRequirement(v.Tap, v.RequirementIndex), true
	case CancelRequestInDelay:
		return tnttypes.ForRequirement(v.Tap, v.RequirementIndex), true
	case ConsumeMaturedRequestToOpen:
		return tnttypes.ForRequirement(v.Tap, v.RequirementIndex), true
	case RevealHashPreimage:
		return tnttypes.ForRequirement(v.Tap, v.RequirementIndex), true
	case RedeemTicketToOpen:
		return tnttypes.ForRequirement(v.Ticket.TapIndex, v.Ticket.RequirementIndex), true
	case ResetExchangeRequirement:
		return tnttypes.ForRequirement(v.Tap, v.RequirementIndex), true
	default:
		return tnttypes.AccessoryAddress{}, false
	}
}

func attachmentTarget(q Query) (tnttypes.AccessoryAddress, bool) {
	switch v := q.(type) {
	case ResetMeter:
		return tnttypes.ForAttachment(v.Attachment), true
	case ReconnectAttachment:
		return tnttypes.ForAttachment(v.Attachment), true
	default:
		return tnttypes.AccessoryAddress{}, false
	}
}
