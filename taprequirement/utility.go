// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2019 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package taprequirement implements the tap-requirement utility (§4.F): the
// per-tap computation of how much may be released right now, and the
// post-release bookkeeping every requirement kind needs. One Utility is
// built per tap being opened within one operation; if a tap opener cascade
// opens the same tap again in the same operation, the same Utility instance
// is reused so its remaining-limits memo (review/delay/ticket "first
// opening" rule) stays consistent across the whole operation, matching the
// teacher's pattern of one long-lived evaluator object per resource rather
// than re-deriving memoized state on every call.
package taprequirement

import (
	"github.com/bitmark-inc/logger"

	"github.com/bitmark-inc/tnt/fault"
	"github.com/bitmark-inc/tnt/tntquery"
	"github.com/bitmark-inc/tnt/tnttypes"
)

var log = logger.New("taprequirement")

var (
	ErrUnknownTap = fault.TapFlowError("tap does not exist")
)

// MeterReader mirrors tntquery.MeterReader - resolves an exchange
// requirement's possibly cross-tank meter total.
type MeterReader = tntquery.MeterReader

// Evaluator is the subset of *tntquery.Evaluator the utility consults to
// learn which consume-queries targeted a requirement on this tap.
type Evaluator interface {
	TargetQueries(address tnttypes.AccessoryAddress) []tntquery.Query
	TankQueries() []tntquery.Query
}

// Utility computes per-requirement release limits for one tap and applies
// the post-release bookkeeping §4.F assigns to each requirement kind.
type Utility struct {
	tank        *tnttypes.TankObject
	tapIndex    tnttypes.Index
	now         int64
	evaluator   Evaluator
	meterReader MeterReader

	remaining map[tnttypes.Index]tnttypes.FlowLimit
	erased    map[tnttypes.Index]bool
}

// NewUtility builds a utility over tank's tap at tapIndex. evaluator supplies
// the queries evaluated for this operation; meterReader may be nil if no
// exchange_requirement on this tap references a meter on another tank.
func NewUtility(tank *tnttypes.TankObject, tapIndex tnttypes.Index, now int64, evaluator Evaluator, meterReader MeterReader) (*Utility, error) {
	if _, ok := tank.Schematic.Taps[tapIndex]; !ok {
		return nil, ErrUnknownTap
	}
	return &Utility{
		tank:        tank,
		tapIndex:    tapIndex,
		now:         now,
		evaluator:   evaluator,
		meterReader: meterReader,
		remaining:   make(map[tnttypes.Index]tnttypes.FlowLimit),
		erased:      make(map[tnttypes.Index]bool),
	}, nil
}

// MaxTapRelease returns the largest amount that may currently flow through
// the tap, along with the index of the binding requirement (nil if the
// tank's own balance is what binds, or if nothing binds at all).
func (u *Utility) MaxTapRelease() (tnttypes.FlowLimit, *tnttypes.Index) {
	tap := u.tank.Schematic.Taps[u.tapIndex]
	limit := tnttypes.AmountLimit(u.tank.Balance)
	var binding *tnttypes.Index

	for i, r := range tap.Requirements {
		index := tnttypes.Index(i)
		reqLimit := u.requirementLimit(index, r)
		if reqLimit.Less(limit) {
			limit = reqLimit
			idx := index
			binding = &idx
		}
		if limit.IsZero() {
			break
		}
	}
	return limit, binding
}

func (u *Utility) address(index tnttypes.Index) tnttypes.AccessoryAddress {
	return tnttypes.ForRequirement(u.tapIndex, index)
}

func (u *Utility) requirementLimit(index tnttypes.Index, r tnttypes.Requirement) tnttypes.FlowLimit {
	switch v := r.(type) {
	case tnttypes.ImmediateFlowLimit:
		return tnttypes.AmountLimit(v.Limit)

	case tnttypes.CumulativeFlowLimit:
		var released int64
		if state, ok := u.tank.GetState(u.address(index)); ok && nil != state.CumulativeFlowLimit {
			released = state.CumulativeFlowLimit.AmountReleased
		}
		return tnttypes.AmountLimit(v.Limit).Sub(released)

	case tnttypes.PeriodicFlowLimit:
		periodNum := periodNumber(u.now, u.tank.CreationDate, v.PeriodDurationSec)
		state, ok := u.tank.GetState(u.address(index))
		if ok && nil != state.PeriodicFlowLimit && state.PeriodicFlowLimit.PeriodNum == periodNum {
			return tnttypes.AmountLimit(v.Limit).Sub(state.PeriodicFlowLimit.AmountReleased)
		}
		return tnttypes.AmountLimit(v.Limit)

	case tnttypes.TimeLock:
		locked := v.StartLocked
		for _, t := range v.LockUnlockTimes {
			if u.now < t {
				break
			}
			locked = !locked
		}
		if locked {
			return tnttypes.AmountLimit(0)
		}
		return tnttypes.Unlimited()

	case tnttypes.MinimumTankLevel:
		floor := u.tank.Balance - v.MinimumLevel
		if floor < 0 {
			floor = 0
		}
		return tnttypes.AmountLimit(floor)

	case tnttypes.DocumentationRequirement:
		for _, q := range u.evaluator.TankQueries() {
			if tntquery.DocumentationStringTag == q.Tag() {
				return tnttypes.Unlimited()
			}
		}
		return tnttypes.AmountLimit(0)

	case tnttypes.ReviewRequirement:
		return u.requestBasedLimit(index, func() []tnttypes.FlowLimit { return reviewAmounts(u.tank, u.address(index), u.evaluator) })

	case tnttypes.DelayRequirement:
		return u.requestBasedLimit(index, func() []tnttypes.FlowLimit { return delayAmounts(u.tank, u.address(index), u.evaluator) })

	case tnttypes.HashPreimageRequirement:
		for _, q := range u.evaluator.TargetQueries(u.address(index)) {
			if tntquery.RevealHashPreimageTag == q.Tag() {
				return tnttypes.Unlimited()
			}
		}
		return tnttypes.AmountLimit(0)

	case tnttypes.TicketRequirement:
		return u.ticketLimit(index)

	case tnttypes.ExchangeRequirement:
		return u.exchangeLimit(index, v)

	default:
		log.Errorf("taprequirement: unhandled requirement tag on tap=%d index=%d", u.tapIndex, index)
		return tnttypes.AmountLimit(0)
	}
}

// requestBasedLimit implements the shared review/delay rule: on first
// opening within the operation, sum the amounts of every consumed request
// and memoize it; on later openings, return the memoized remainder.
func (u *Utility) requestBasedLimit(index tnttypes.Index, amountsOf func() []tnttypes.FlowLimit) tnttypes.FlowLimit {
	if limit, ok := u.remaining[index]; ok {
		return limit
	}
	limit := sumFlowLimits(amountsOf())
	u.remaining[index] = limit
	return limit
}

func (u *Utility) ticketLimit(index tnttypes.Index) tnttypes.FlowLimit {
	if limit, ok := u.remaining[index]; ok {
		return limit
	}
	for _, q := range u.evaluator.TargetQueries(u.address(index)) {
		redeem, ok := q.(tntquery.RedeemTicketToOpen)
		if !ok {
			continue
		}
		limit := redeem.Ticket.MaxWithdrawal
		u.remaining[index] = limit
		return limit
	}
	limit := tnttypes.AmountLimit(0)
	u.remaining[index] = limit
	return limit
}

func (u *Utility) exchangeLimit(index tnttypes.Index, req tnttypes.ExchangeRequirement) tnttypes.FlowLimit {
	var released int64
	if state, ok := u.tank.GetState(u.address(index)); ok && nil != state.Exchange {
		released = state.Exchange.AmountReleased
	}

	var metered int64
	if nil == req.MeterID.TankID {
		metered = u.localMeterAmount(req.MeterID)
	} else {
		if nil == u.meterReader {
			log.Errorf("taprequirement: exchange_requirement on tap=%d needs a meter reader for cross-tank meter", u.tapIndex)
			return tnttypes.AmountLimit(0)
		}
		amount, ok := u.meterReader(req.MeterID)
		if !ok {
			return tnttypes.AmountLimit(0)
		}
		metered = amount
	}

	if req.TickAmount <= 0 {
		return tnttypes.AmountLimit(0)
	}
	earned := (metered / req.TickAmount) * req.ReleasePerTick
	return tnttypes.AmountLimit(earned).Sub(released)
}

func (u *Utility) localMeterAmount(meterID tnttypes.AttachmentID) int64 {
	state, ok := u.tank.GetState(tnttypes.ForAttachment(meterID.Index))
	if !ok || nil == state.AssetFlowMeter {
		return 0
	}
	return state.AssetFlowMeter.MeteredAmount
}

// PrepareTapRelease applies the post-release state update for every
// requirement on the tap, given that amount is about to flow (§4.F).
func (u *Utility) PrepareTapRelease(amount int64) {
	tap := u.tank.Schematic.Taps[u.tapIndex]
	for i, r := range tap.Requirements {
		index := tnttypes.Index(i)
		switch v := r.(type) {
		case tnttypes.CumulativeFlowLimit:
			state := u.tank.GetOrCreateState(u.address(index))
			if nil == state.CumulativeFlowLimit {
				state.CumulativeFlowLimit = &tnttypes.CumulativeFlowLimitState{}
			}
			state.CumulativeFlowLimit.AmountReleased += amount

		case tnttypes.PeriodicFlowLimit:
			periodNum := periodNumber(u.now, u.tank.CreationDate, v.PeriodDurationSec)
			state := u.tank.GetOrCreateState(u.address(index))
			if nil == state.PeriodicFlowLimit || state.PeriodicFlowLimit.PeriodNum != periodNum {
				state.PeriodicFlowLimit = &tnttypes.PeriodicFlowLimitState{PeriodNum: periodNum}
			}
			state.PeriodicFlowLimit.AmountReleased += amount

		case tnttypes.ReviewRequirement:
			u.consumeRemaining(index, amount)
			u.eraseConsumedOnce(index, func() { eraseReviewRequests(u.tank, u.address(index), u.evaluator) })

		case tnttypes.DelayRequirement:
			u.consumeRemaining(index, amount)
			u.eraseConsumedOnce(index, func() { eraseDelayRequests(u.tank, u.address(index), u.evaluator) })

		case tnttypes.TicketRequirement:
			u.consumeRemaining(index, amount)

		case tnttypes.ExchangeRequirement:
			state := u.tank.GetOrCreateState(u.address(index))
			if nil == state.Exchange {
				state.Exchange = &tnttypes.ExchangeRequirementState{}
			}
			state.Exchange.AmountReleased += amount
		}
	}
	log.Debugf("prepared tap release tap=%d amount=%d", u.tapIndex, amount)
}

func (u *Utility) consumeRemaining(index tnttypes.Index, amount int64) {
	if limit, ok := u.remaining[index]; ok {
		u.remaining[index] = limit.Sub(amount)
	}
}

func (u *Utility) eraseConsumedOnce(index tnttypes.Index, erase func()) {
	if u.erased[index] {
		return
	}
	u.erased[index] = true
	erase()
}

func periodNumber(now, creationDate, periodDurationSec int64) int64 {
	if periodDurationSec <= 0 {
		return 0
	}
	return (now - creationDate) / periodDurationSec
}

// sumFlowLimits sums a set of per-request amounts, per §4.F's rule that the
// combined limit is unlimited if any individual request is.
func sumFlowLimits(amounts []tnttypes.FlowLimit) tnttypes.FlowLimit {
	var total int64
	for _, a := range amounts {
		if a.IsUnlimited() {
			return tnttypes.Unlimited()
		}
		total += a.Amount()
	}
	return tnttypes.AmountLimit(total)
}

func reviewAmounts(tank *tnttypes.TankObject, address tnttypes.AccessoryAddress, evaluator Evaluator) []tnttypes.FlowLimit {
	state, ok := tank.GetState(address)
	if !ok || nil == state.Review {
		return nil
	}
	var amounts []tnttypes.FlowLimit
	for _, q := range evaluator.TargetQueries(address) {
		consume, ok := q.(tntquery.ConsumeApprovedRequestToOpen)
		if !ok {
			continue
		}
		req, ok := state.Review.PendingRequests[consume.RequestID]
		if !ok {
			continue
		}
		amounts = append(amounts, req.Amount)
	}
	return amounts
}

func delayAmounts(tank *tnttypes.TankObject, address tnttypes.AccessoryAddress, evaluator Evaluator) []tnttypes.FlowLimit {
	state, ok := tank.GetState(address)
	if !ok || nil == state.Delay {
		return nil
	}
	var amounts []tnttypes.FlowLimit
	for _, q := range evaluator.TargetQueries(address) {
		consume, ok := q.(tntquery.ConsumeMaturedRequestToOpen)
		if !ok {
			continue
		}
		req, ok := state.Delay.PendingRequests[consume.RequestID]
		if !ok {
			continue
		}
		amounts = append(amounts, req.Amount)
	}
	return amounts
}

func eraseReviewRequests(tank *tnttypes.TankObject, address tnttypes.AccessoryAddress, evaluator Evaluator) {
	state, ok := tank.GetState(address)
	if !ok || nil == state.Review {
		return
	}
	for _, q := range evaluator.TargetQueries(address) {
		if consume, ok := q.(tntquery.ConsumeApprovedRequestToOpen); ok {
			delete(state.Review.PendingRequests, consume.RequestID)
		}
	}
}

func eraseDelayRequests(tank *tnttypes.TankObject, address tnttypes.AccessoryAddress, evaluator Evaluator) {
	state, ok := tank.GetState(address)
	if !ok || nil == state.Delay {
		return
	}
	for _, q := range evaluator.TargetQueries(address) {
		if consume, ok := q.(tntquery.ConsumeMaturedRequestToOpen); ok {
			delete(state.Delay.PendingRequests, consume.RequestID)
		}
	}
}
