// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2019 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package tntquery

import (
	"bytes"
	"crypto/sha256"
	"sort"

	"golang.org/x/crypto/ripemd160"

	"github.com/bitmark-inc/tnt/account"
	"github.com/bitmark-inc/tnt/tnttypes"
)

// evaluateOne runs the per-kind evaluate checks of §4.E's table and returns
// the authorities the host must confirm were satisfied for q to take
// effect. An exhaustive switch on the concrete type, not Tag() - Tag() is used
// for the wire encoding and in log messages only.
func (e *Evaluator) evaluateOne(q Query) ([]account.Authority, error) {
	switch v := q.(type) {
	case ResetMeter:
		return e.evaluateResetMeter(v)
	case ReconnectAttachment:
		return e.evaluateReconnectAttachment(v)
	case CreateRequestForReview:
		return e.evaluateCreateRequestForReview(v)
	case ReviewRequestToOpen:
		return e.evaluateReviewRequestToOpen(v)
	case CancelRequestForReview:
		return e.evaluateCancelRequestForReview(v)
	case ConsumeApprovedRequestToOpen:
		return e.evaluateConsumeApprovedRequestToOpen(v)
	case DocumentationString:
		return nil, nil
	case CreateRequestForDelay:
		return e.evaluateCreateRequestForDelay(v)
	case VetoRequestInDelay:
		return e.evaluateVetoRequestInDelay(v)
	case CancelRequestInDelay:
		return e.evaluateCancelRequestInDelay(v)
	case ConsumeMaturedRequestToOpen:
		return e.evaluateConsumeMaturedRequestToOpen(v)
	case RevealHashPreimage:
		return e.evaluateRevealHashPreimage(v)
	case RedeemTicketToOpen:
		return e.evaluateRedeemTicketToOpen(v)
	case ResetExchangeRequirement:
		return e.evaluateResetExchangeRequirement(v)
	default:
		return nil, ErrWrongTargetKind
	}
}

// applyOne runs q's apply effect. Called only for queries that already
// passed evaluateOne, in evaluation order, so it never re-derives a check
// evaluateOne already made.
func (e *Evaluator) applyOne(q Query) error {
	switch v := q.(type) {
	case ResetMeter:
		return e.applyResetMeter(v)
	case ReconnectAttachment:
		return e.applyReconnectAttachment(v)
	case CreateRequestForReview:
		return e.applyCreateRequestForReview(v)
	case ReviewRequestToOpen:
		return e.applyReviewRequestToOpen(v)
	case CancelRequestForReview:
		return e.applyCancelRequestForReview(v)
	case ConsumeApprovedRequestToOpen:
		return nil // tap-flow performs the actual release
	case DocumentationString:
		return nil // presence alone is the effect, via TankQueries
	case CreateRequestForDelay:
		return e.applyCreateRequestForDelay(v)
	case VetoRequestInDelay:
		return e.applyVetoRequestInDelay(v)
	case CancelRequestInDelay:
		return e.applyCancelRequestInDelay(v)
	case ConsumeMaturedRequestToOpen:
		return nil // tap-flow performs the actual release
	case RevealHashPreimage:
		return nil // tap-flow consumes the reveal via TargetQueries
	case RedeemTicketToOpen:
		return e.applyRedeemTicketToOpen(v)
	case ResetExchangeRequirement:
		return e.applyResetExchangeRequirement(v)
	default:
		return ErrWrongTargetKind
	}
}

// tap0OpenAuthority is the emergency tap's open_authority, used as the
// tank-wide administrative fallback for queries that target an accessory
// with no owning tap of its own (an attachment's meter/exchange reset,
// absent a more specific reset_authority).
func tap0OpenAuthority(schematic *tnttypes.TankSchematic) account.Authority {
	tap, ok := schematic.EmergencyTap()
	if !ok || nil == tap.OpenAuthority {
		return account.Authority{}
	}
	return *tap.OpenAuthority
}

// ownTapOpenAuthority is the requirement's owning tap's own open_authority -
// distinct from tap0OpenAuthority, used by the request/delay queries whose
// table entry reads "(tap's own open authority)".
func ownTapOpenAuthority(schematic *tnttypes.TankSchematic, tapIndex tnttypes.Index) account.Authority {
	tap, ok := schematic.Taps[tapIndex]
	if !ok || nil == tap.OpenAuthority {
		return tap0OpenAuthority(schematic)
	}
	return *tap.OpenAuthority
}

func requirementAt(schematic *tnttypes.TankSchematic, tapIndex, reqIndex tnttypes.Index) (tnttypes.Requirement, bool) {
	tap, ok := schematic.Taps[tapIndex]
	if !ok || int(reqIndex) >= len(tap.Requirements) {
		return nil, false
	}
	return tap.Requirements[reqIndex], true
}

func sortedAttachmentIndices(schematic *tnttypes.TankSchematic) []tnttypes.Index {
	indices := make([]tnttypes.Index, 0, len(schematic.Attachments))
	for i := range schematic.Attachments {
		indices = append(indices, i)
	}
	sort.Slice(indices, func(i, j int) bool { return indices[i] < indices[j] })
	return indices
}

// --- reset_meter ---

func (e *Evaluator) evaluateResetMeter(v ResetMeter) ([]account.Authority, error) {
	a, ok := e.tank.Schematic.Attachments[v.Attachment]
	if !ok {
		return nil, ErrWrongTargetKind
	}
	meter, ok := a.(tnttypes.AssetFlowMeter)
	if !ok {
		return nil, ErrWrongTargetKind
	}
	state, ok := e.tank.GetState(tnttypes.ForAttachment(v.Attachment))
	var amount int64
	if ok && nil != state.AssetFlowMeter {
		amount = state.AssetFlowMeter.MeteredAmount
	}
	if amount <= 0 {
		return nil, ErrAmountNotPositive
	}
	authority := tap0OpenAuthority(e.tank.Schematic)
	if nil != meter.ResetAuthority {
		authority = *meter.ResetAuthority
	}
	return []account.Authority{authority}, nil
}

func (e *Evaluator) applyResetMeter(v ResetMeter) error {
	state := e.tank.GetOrCreateState(tnttypes.ForAttachment(v.Attachment))
	state.AssetFlowMeter = &tnttypes.AssetFlowMeterState{}
	return nil
}

// --- reconnect_attachment ---

func (e *Evaluator) findConnectAuthorityFor(attachment tnttypes.Index) (tnttypes.AttachmentConnectAuthority, bool) {
	for _, i := range sortedAttachmentIndices(e.tank.Schematic) {
		aca, ok := e.tank.Schematic.Attachments[i].(tnttypes.AttachmentConnectAuthority)
		if !ok || nil != aca.Attachment.TankID {
			continue
		}
		if aca.Attachment.Index == attachment {
			return aca, true
		}
	}
	return tnttypes.AttachmentConnectAuthority{}, false
}

func (e *Evaluator) evaluateReconnectAttachment(v ReconnectAttachment) ([]account.Authority, error) {
	if _, ok := e.tank.Schematic.Attachments[v.Attachment]; !ok {
		return nil, ErrWrongTargetKind
	}
	aca, ok := e.findConnectAuthorityFor(v.Attachment)
	if !ok {
		return nil, ErrWrongTargetKind
	}
	return []account.Authority{aca.ConnectAuthority}, nil
}

func (e *Evaluator) applyReconnectAttachment(v ReconnectAttachment) error {
	switch a := e.tank.Schematic.Attachments[v.Attachment].(type) {
	case tnttypes.AssetFlowMeter:
		a.Destination = v.NewConnection
		e.tank.Schematic.Attachments[v.Attachment] = a
	case tnttypes.TapOpener:
		a.Destination = v.NewConnection
		e.tank.Schematic.Attachments[v.Attachment] = a
	default:
		return ErrWrongTargetKind
	}
	return nil
}

// --- review requirement queries ---

func (e *Evaluator) evaluateCreateRequestForReview(v CreateRequestForReview) ([]account.Authority, error) {
	r, ok := requirementAt(e.tank.Schematic, v.Tap, v.RequirementIndex)
	if !ok {
		return nil, ErrWrongTargetKind
	}
	if _, ok := r.(tnttypes.ReviewRequirement); !ok {
		return nil, ErrWrongTargetKind
	}
	if !v.Amount.IsUnlimited() && v.Amount.Amount() <= 0 {
		return nil, ErrAmountNotPositive
	}
	return []account.Authority{ownTapOpenAuthority(e.tank.Schematic, v.Tap)}, nil
}

func (e *Evaluator) applyCreateRequestForReview(v CreateRequestForReview) error {
	r, _ := requirementAt(e.tank.Schematic, v.Tap, v.RequirementIndex)
	req := r.(tnttypes.ReviewRequirement)

	state := e.tank.GetOrCreateState(tnttypes.ForRequirement(v.Tap, v.RequirementIndex))
	if nil == state.Review {
		state.Review = &tnttypes.ReviewRequirementState{PendingRequests: make(map[uint64]*tnttypes.ReviewRequest)}
	}
	if req.RequestLimit > 0 && uint32(len(state.Review.PendingRequests)) >= req.RequestLimit {
		return ErrRequestLimitReached
	}
	id := state.Review.RequestCounter
	state.Review.PendingRequests[id] = &tnttypes.ReviewRequest{Amount: v.Amount, Comment: v.Comment}
	state.Review.RequestCounter++
	return nil
}

func (e *Evaluator) evaluateReviewRequestToOpen(v ReviewRequestToOpen) ([]account.Authority, error) {
	r, ok := requirementAt(e.tank.Schematic, v.Tap, v.RequirementIndex)
	if !ok {
		return nil, ErrWrongTargetKind
	}
	req, ok := r.(tnttypes.ReviewRequirement)
	if !ok {
		return nil, ErrWrongTargetKind
	}
	state, ok := e.tank.GetState(tnttypes.ForRequirement(v.Tap, v.RequirementIndex))
	if !ok || nil == state.Review {
		return nil, ErrRequestNotFound
	}
	pending, ok := state.Review.PendingRequests[v.RequestID]
	if !ok {
		return nil, ErrRequestNotFound
	}
	if pending.Approved {
		return nil, ErrAlreadyApproved
	}
	return []account.Authority{req.Reviewer}, nil
}

func (e *Evaluator) applyReviewRequestToOpen(v ReviewRequestToOpen) error {
	state, _ := e.tank.GetState(tnttypes.ForRequirement(v.Tap, v.RequirementIndex))
	if v.Approved {
		state.Review.PendingRequests[v.RequestID].Approved = true
		return nil
	}
	delete(state.Review.PendingRequests, v.RequestID)
	return nil
}

func (e *Evaluator) evaluateCancelRequestForReview(v CancelRequestForReview) ([]account.Authority, error) {
	state, ok := e.tank.GetState(tnttypes.ForRequirement(v.Tap, v.RequirementIndex))
	if !ok || nil == state.Review {
		return nil, ErrRequestNotFound
	}
	if _, ok := state.Review.PendingRequests[v.RequestID]; !ok {
		return nil, ErrRequestNotFound
	}
	return []account.Authority{ownTapOpenAuthority(e.tank.Schematic, v.Tap)}, nil
}

func (e *Evaluator) applyCancelRequestForReview(v CancelRequestForReview) error {
	state, _ := e.tank.GetState(tnttypes.ForRequirement(v.Tap, v.RequirementIndex))
	delete(state.Review.PendingRequests, v.RequestID)
	return nil
}

func (e *Evaluator) evaluateConsumeApprovedRequestToOpen(v ConsumeApprovedRequestToOpen) ([]account.Authority, error) {
	state, ok := e.tank.GetState(tnttypes.ForRequirement(v.Tap, v.RequirementIndex))
	if !ok || nil == state.Review {
		return nil, ErrRequestNotFound
	}
	pending, ok := state.Review.PendingRequests[v.RequestID]
	if !ok {
		return nil, ErrRequestNotFound
	}
	if !pending.Approved {
		return nil, ErrNotApproved
	}
	return nil, nil
}

// --- delay requirement queries ---

func (e *Evaluator) evaluateCreateRequestForDelay(v CreateRequestForDelay) ([]account.Authority, error) {
	r, ok := requirementAt(e.tank.Schematic, v.Tap, v.RequirementIndex)
	if !ok {
		return nil, ErrWrongTargetKind
	}
	if _, ok := r.(tnttypes.DelayRequirement); !ok {
		return nil, ErrWrongTargetKind
	}
	if !v.Amount.IsUnlimited() && v.Amount.Amount() <= 0 {
		return nil, ErrAmountNotPositive
	}
	return []account.Authority{ownTapOpenAuthority(e.tank.Schematic, v.Tap)}, nil
}

func (e *Evaluator) applyCreateRequestForDelay(v CreateRequestForDelay) error {
	r, _ := requirementAt(e.tank.Schematic, v.Tap, v.RequirementIndex)
	req := r.(tnttypes.DelayRequirement)

	state := e.tank.GetOrCreateState(tnttypes.ForRequirement(v.Tap, v.RequirementIndex))
	if nil == state.Delay {
		state.Delay = &tnttypes.DelayRequirementState{PendingRequests: make(map[uint64]*tnttypes.DelayRequest)}
	}
	if req.RequestLimit > 0 && uint32(len(state.Delay.PendingRequests)) >= req.RequestLimit {
		return ErrRequestLimitReached
	}
	id := state.Delay.RequestCounter
	state.Delay.PendingRequests[id] = &tnttypes.DelayRequest{
		DelayPeriodEnd: e.now + req.DelayPeriodSec,
		Amount:         v.Amount,
		Comment:        v.Comment,
	}
	state.Delay.RequestCounter++
	return nil
}

func (e *Evaluator) evaluateVetoRequestInDelay(v VetoRequestInDelay) ([]account.Authority, error) {
	r, ok := requirementAt(e.tank.Schematic, v.Tap, v.RequirementIndex)
	if !ok {
		return nil, ErrWrongTargetKind
	}
	req, ok := r.(tnttypes.DelayRequirement)
	if !ok {
		return nil, ErrWrongTargetKind
	}
	if nil == req.VetoAuthority {
		return nil, ErrWrongTargetKind
	}
	state, ok := e.tank.GetState(tnttypes.ForRequirement(v.Tap, v.RequirementIndex))
	if !ok || nil == state.Delay {
		return nil, ErrRequestNotFound
	}
	pending, ok := state.Delay.PendingRequests[v.RequestID]
	if !ok {
		return nil, ErrRequestNotFound
	}
	if e.now >= pending.DelayPeriodEnd {
		return nil, ErrAlreadyMatured
	}
	return []account.Authority{*req.VetoAuthority}, nil
}

func (e *Evaluator) applyVetoRequestInDelay(v VetoRequestInDelay) error {
	state, _ := e.tank.GetState(tnttypes.ForRequirement(v.Tap, v.RequirementIndex))
	delete(state.Delay.PendingRequests, v.RequestID)
	return nil
}

func (e *Evaluator) evaluateCancelRequestInDelay(v CancelRequestInDelay) ([]account.Authority, error) {
	state, ok := e.tank.GetState(tnttypes.ForRequirement(v.Tap, v.RequirementIndex))
	if !ok || nil == state.Delay {
		return nil, ErrRequestNotFound
	}
	if _, ok := state.Delay.PendingRequests[v.RequestID]; !ok {
		return nil, ErrRequestNotFound
	}
	return []account.Authority{ownTapOpenAuthority(e.tank.Schematic, v.Tap)}, nil
}

func (e *Evaluator) applyCancelRequestInDelay(v CancelRequestInDelay) error {
	state, _ := e.tank.GetState(tnttypes.ForRequirement(v.Tap, v.RequirementIndex))
	delete(state.Delay.PendingRequests, v.RequestID)
	return nil
}

func (e *Evaluator) evaluateConsumeMaturedRequestToOpen(v ConsumeMaturedRequestToOpen) ([]account.Authority, error) {
	state, ok := e.tank.GetState(tnttypes.ForRequirement(v.Tap, v.RequirementIndex))
	if !ok || nil == state.Delay {
		return nil, ErrRequestNotFound
	}
	pending, ok := state.Delay.PendingRequests[v.RequestID]
	if !ok {
		return nil, ErrRequestNotFound
	}
	if e.now < pending.DelayPeriodEnd {
		return nil, ErrNotMatured
	}
	return nil, nil
}

// --- hash preimage requirement ---

func (e *Evaluator) evaluateRevealHashPreimage(v RevealHashPreimage) ([]account.Authority, error) {
	r, ok := requirementAt(e.tank.Schematic, v.Tap, v.RequirementIndex)
	if !ok {
		return nil, ErrWrongTargetKind
	}
	req, ok := r.(tnttypes.HashPreimageRequirement)
	if !ok {
		return nil, ErrWrongTargetKind
	}
	if nil != req.PreimageSize && uint32(len(v.Preimage)) != *req.PreimageSize {
		return nil, ErrPreimageSizeMismatch
	}
	if !bytes.Equal(digest(req.Hash.Kind, v.Preimage), req.Hash.Digest) {
		return nil, ErrPreimageHashMismatch
	}
	return nil, nil
}

func digest(kind tnttypes.HashKind, preimage []byte) []byte {
	switch kind {
	case tnttypes.HashSHA256:
		sum := sha256.Sum256(preimage)
		return sum[:]
	case tnttypes.HashRIPEMD160:
		h := ripemd160.New()
		h.Write(preimage)
		return h.Sum(nil)
	case tnttypes.HashHash160:
		sum := sha256.Sum256(preimage)
		h := ripemd160.New()
		h.Write(sum[:])
		return h.Sum(nil)
	default:
		return nil
	}
}

// --- ticket requirement ---

func (e *Evaluator) evaluateRedeemTicketToOpen(v RedeemTicketToOpen) ([]account.Authority, error) {
	r, ok := requirementAt(e.tank.Schematic, v.Ticket.TapIndex, v.Ticket.RequirementIndex)
	if !ok {
		return nil, ErrWrongTargetKind
	}
	req, ok := r.(tnttypes.TicketRequirement)
	if !ok {
		return nil, ErrWrongTargetKind
	}
	if v.Ticket.TankID != e.tankID {
		return nil, ErrTicketTargetMismatch
	}
	state, ok := e.tank.GetState(tnttypes.ForRequirement(v.Ticket.TapIndex, v.Ticket.RequirementIndex))
	var consumed uint64
	if ok && nil != state.Ticket {
		consumed = state.Ticket.TicketsConsumed
	}
	if v.Ticket.TicketNumber != consumed {
		return nil, ErrTicketNumberMismatch
	}
	// The core never verifies signatures itself (account.Authority's own
	// doc comment); it surfaces ticket_signer as the authority the host's
	// signature check must confirm was satisfied by Ticket.Signature.
	return []account.Authority{req.TicketSigner}, nil
}

func (e *Evaluator) applyRedeemTicketToOpen(v RedeemTicketToOpen) error {
	state := e.tank.GetOrCreateState(tnttypes.ForRequirement(v.Ticket.TapIndex, v.Ticket.RequirementIndex))
	if nil == state.Ticket {
		state.Ticket = &tnttypes.TicketRequirementState{}
	}
	state.Ticket.TicketsConsumed = v.Ticket.TicketNumber + 1
	return nil
}

// --- exchange requirement ---

func (e *Evaluator) evaluateResetExchangeRequirement(v ResetExchangeRequirement) ([]account.Authority, error) {
	r, ok := requirementAt(e.tank.Schematic, v.Tap, v.RequirementIndex)
	if !ok {
		return nil, ErrWrongTargetKind
	}
	req, ok := r.(tnttypes.ExchangeRequirement)
	if !ok {
		return nil, ErrWrongTargetKind
	}
	state, ok := e.tank.GetState(tnttypes.ForRequirement(v.Tap, v.RequirementIndex))
	var released int64
	if ok && nil != state.Exchange {
		released = state.Exchange.AmountReleased
	}
	if released <= 0 {
		return nil, ErrAmountNotPositive
	}
	metered, err := e.resolveMeterAmount(req.MeterID)
	if nil != err {
		return nil, err
	}
	if metered != 0 {
		return nil, ErrMeterNotZero
	}
	authority := tap0OpenAuthority(e.tank.Schematic)
	if nil != req.ResetAuthority {
		authority = *req.ResetAuthority
	}
	return []account.Authority{authority}, nil
}

func (e *Evaluator) applyResetExchangeRequirement(v ResetExchangeRequirement) error {
	state := e.tank.GetOrCreateState(tnttypes.ForRequirement(v.Tap, v.RequirementIndex))
	state.Exchange = &tnttypes.ExchangeRequirementState{}
	return nil
}
