// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2019 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package tntpack

import (
	"github.com/bitmark-inc/tnt/account"
	"github.com/bitmark-inc/tnt/fault"
	"github.com/bitmark-inc/tnt/tnttypes"
	"github.com/bitmark-inc/tnt/util"
)

// reader walks a Packed buffer left to right, the same way
// transactionrecord.Packed.Unpack advances its own "n" offset - bundled
// into a cursor here only because tntpack's structures nest far deeper
// (schematic -> tap -> requirement -> state) than any single
// transactionrecord variant, and a bare offset-returning function at every
// nesting level would bury the actual field list under bookkeeping. The
// wire shape it reads is unchanged: Varint64 fields, Varint64-length
// prefixed variable fields, first error sticky and returned at the end.
type reader struct {
	buf Packed
	pos int
	err error
}

func newReader(buf Packed) *reader {
	return &reader{buf: buf}
}

func (r *reader) fail(err error) {
	if nil == r.err {
		r.err = err
	}
}

func (r *reader) uint64() uint64 {
	if nil != r.err {
		return 0
	}
	v, n := util.FromVarint64(r.buf[r.pos:])
	if 0 == n {
		r.fail(fault.ErrTruncatedBuffer)
		return 0
	}
	r.pos += n
	return v
}

func (r *reader) int64() int64 {
	return zigzagDecode(r.uint64())
}

func (r *reader) index() tnttypes.Index {
	return tnttypes.Index(r.uint64())
}

func (r *reader) bool() bool {
	if nil != r.err {
		return false
	}
	if r.pos >= len(r.buf) {
		r.fail(fault.ErrTruncatedBuffer)
		return false
	}
	b := r.buf[r.pos]
	r.pos++
	return 0 != b
}

func (r *reader) byte() byte {
	if nil != r.err {
		return 0
	}
	if r.pos >= len(r.buf) {
		r.fail(fault.ErrTruncatedBuffer)
		return 0
	}
	b := r.buf[r.pos]
	r.pos++
	return b
}

func (r *reader) bytes() []byte {
	if nil != r.err {
		return nil
	}
	length, n := util.ClippedVarint64(r.buf[r.pos:], 0, maxFieldLength)
	if 0 == n {
		r.fail(fault.ErrTruncatedBuffer)
		return nil
	}
	r.pos += n
	if r.pos+length > len(r.buf) {
		r.fail(fault.ErrTruncatedBuffer)
		return nil
	}
	out := make([]byte, length)
	copy(out, r.buf[r.pos:r.pos+length])
	r.pos += length
	return out
}

func (r *reader) string() string {
	return string(r.bytes())
}

func (r *reader) authority() *account.Authority {
	if !r.bool() {
		return nil
	}
	auth := &account.Authority{Threshold: uint32(r.uint64())}
	count := int(r.uint64())
	if count > 0 {
		auth.Accounts = make(map[string]uint32, count)
	}
	for i := 0; i < count; i++ {
		key := r.string()
		weight := uint32(r.uint64())
		if nil != r.err {
			return auth
		}
		auth.Accounts[key] = weight
	}
	return auth
}

func (r *reader) flowLimit() tnttypes.FlowLimit {
	if !r.bool() {
		return tnttypes.Unlimited()
	}
	return tnttypes.AmountLimit(r.int64())
}

func (r *reader) attachmentID() tnttypes.AttachmentID {
	id := tnttypes.AttachmentID{}
	if r.bool() {
		tankID := tnttypes.TankID(r.uint64())
		id.TankID = &tankID
	}
	id.Index = r.index()
	return id
}

func (r *reader) tapID() tnttypes.TapID {
	id := tnttypes.TapID{}
	if r.bool() {
		tankID := tnttypes.TankID(r.uint64())
		id.TankID = &tankID
	}
	id.Index = r.index()
	return id
}

func (r *reader) connection() tnttypes.Connection {
	kind := tnttypes.ConnectionKind(r.byte())
	switch kind {
	case tnttypes.ConnectionSameTank:
		return tnttypes.SameTankConnection()
	case tnttypes.ConnectionAccount:
		return tnttypes.AccountConnection(tnttypes.AccountID(r.string()))
	case tnttypes.ConnectionTank:
		return tnttypes.TankConnection(tnttypes.TankID(r.uint64()))
	case tnttypes.ConnectionAttachment:
		return tnttypes.AttachmentConnection(r.attachmentID())
	default:
		r.fail(fault.ConnectionError("unknown connection kind on wire"))
		return tnttypes.Connection{}
	}
}

func (r *reader) remoteSources() tnttypes.RemoteSources {
	kind := tnttypes.RemoteSourcesKind(r.byte())
	if tnttypes.AllSources == kind {
		return tnttypes.AllRemoteSources()
	}
	count := int(r.uint64())
	conns := make([]tnttypes.Connection, 0, count)
	for i := 0; i < count; i++ {
		conns = append(conns, r.connection())
	}
	return tnttypes.NewRestrictedSources(conns...)
}

func (r *reader) hash() tnttypes.Hash {
	kind := tnttypes.HashKind(r.byte())
	digest := r.bytes()
	return tnttypes.Hash{Kind: kind, Digest: digest}
}

// UnpackAttachment reads one tank_attachment variant, dispatching on its
// wire tag via an exhaustive switch (§9 "runtime type dispatch on tagged
// unions" - a missing case here is a build-time omission, not a silent
// fallthrough, since every AttachmentTag constant is listed).
func UnpackAttachment(p Packed) (tnttypes.Attachment, error) {
	r := newReader(p)
	tag := tnttypes.AttachmentTag(r.uint64())
	var out tnttypes.Attachment
	switch tag {
	case tnttypes.AssetFlowMeterTag:
		m := tnttypes.AssetFlowMeter{}
		m.AssetType = tnttypes.AssetID(r.uint64())
		m.Destination = r.connection()
		m.RemoteSources = r.remoteSources()
		m.ResetAuthority = r.authority()
		out = m
	case tnttypes.TapOpenerTag:
		o := tnttypes.TapOpener{}
		o.TapIndex = r.index()
		o.ReleaseAmount = r.flowLimit()
		o.Destination = r.connection()
		o.AssetType = tnttypes.AssetID(r.uint64())
		o.RemoteSources = r.remoteSources()
		out = o
	case tnttypes.AttachmentConnectAuthorityTag:
		a := tnttypes.AttachmentConnectAuthority{}
		auth := r.authority()
		if nil != auth {
			a.ConnectAuthority = *auth
		}
		a.Attachment = r.attachmentID()
		out = a
	default:
		return nil, fault.StateError("unhandled attachment tag in UnpackAttachment")
	}
	if nil != r.err {
		return nil, r.err
	}
	return out, nil
}

// UnpackRequirement reads one tap_requirement variant's config fields; its
// runtime state (if any) is read separately via UnpackAccessoryState.
func UnpackRequirement(p Packed) (tnttypes.Requirement, error) {
	r := newReader(p)
	tag := tnttypes.RequirementTag(r.uint64())
	var out tnttypes.Requirement
	switch tag {
	case tnttypes.ImmediateFlowLimitTag:
		out = tnttypes.ImmediateFlowLimit{Limit: r.int64()}
	case tnttypes.CumulativeFlowLimitTag:
		out = tnttypes.CumulativeFlowLimit{Limit: r.int64()}
	case tnttypes.PeriodicFlowLimitTag:
		period := r.int64()
		limit := r.int64()
		out = tnttypes.PeriodicFlowLimit{PeriodDurationSec: period, Limit: limit}
	case tnttypes.TimeLockTag:
		startLocked := r.bool()
		count := int(r.uint64())
		times := make([]int64, 0, count)
		for i := 0; i < count; i++ {
			times = append(times, r.int64())
		}
		out = tnttypes.TimeLock{StartLocked: startLocked, LockUnlockTimes: times}
	case tnttypes.MinimumTankLevelTag:
		out = tnttypes.MinimumTankLevel{MinimumLevel: r.int64()}
	case tnttypes.ReviewRequirementTag:
		reviewer := r.authority()
		limit := uint32(r.uint64())
		req := tnttypes.ReviewRequirement{RequestLimit: limit}
		if nil != reviewer {
			req.Reviewer = *reviewer
		}
		out = req
	case tnttypes.DocumentationRequirementTag:
		out = tnttypes.DocumentationRequirement{}
	case tnttypes.DelayRequirementTag:
		veto := r.authority()
		delay := r.int64()
		limit := uint32(r.uint64())
		out = tnttypes.DelayRequirement{VetoAuthority: veto, DelayPeriodSec: delay, RequestLimit: limit}
	case tnttypes.HashPreimageRequirementTag:
		h := r.hash()
		var size *uint32
		if r.bool() {
			v := uint32(r.uint64())
			size = &v
		}
		out = tnttypes.HashPreimageRequirement{Hash: h, PreimageSize: size}
	case tnttypes.TicketRequirementTag:
		signer := r.authority()
		req := tnttypes.TicketRequirement{}
		if nil != signer {
			req.TicketSigner = *signer
		}
		out = req
	case tnttypes.ExchangeRequirementTag:
		meter := r.attachmentID()
		releasePerTick := r.int64()
		tickAmount := r.int64()
		reset := r.authority()
		out = tnttypes.ExchangeRequirement{
			MeterID:        meter,
			ReleasePerTick: releasePerTick,
			TickAmount:     tickAmount,
			ResetAuthority: reset,
		}
	default:
		return nil, fault.StateError("unhandled requirement tag in UnpackRequirement")
	}
	if nil != r.err {
		return nil, r.err
	}
	return out, nil
}

// UnpackTap reads a single tap back from its packed form (§3 Tap).
func UnpackTap(p Packed) (*tnttypes.Tap, error) {
	r := newReader(p)
	t := &tnttypes.Tap{}
	if r.bool() {
		c := r.connection()
		t.ConnectedConnection = &c
	}
	t.OpenAuthority = r.authority()
	t.ConnectAuthority = r.authority()
	count := int(r.uint64())
	t.Requirements = make([]tnttypes.Requirement, 0, count)
	for i := 0; i < count; i++ {
		packed := r.bytes()
		if nil != r.err {
			break
		}
		req, err := UnpackRequirement(packed)
		if nil != err {
			return nil, err
		}
		t.Requirements = append(t.Requirements, req)
	}
	t.DestructorTap = r.bool()
	if nil != r.err {
		return nil, r.err
	}
	return t, nil
}

// UnpackSchematic reads a tank's schematic back from its packed form (§3
// Tank schematic). Taps and attachments round-trip with the exact indices
// and counters they were packed with (§8 "round-trip" property).
func UnpackSchematic(p Packed) (*tnttypes.TankSchematic, error) {
	r := newReader(p)
	s := &tnttypes.TankSchematic{
		AssetType:   tnttypes.AssetID(r.uint64()),
		Taps:        make(map[tnttypes.Index]*tnttypes.Tap),
		Attachments: make(map[tnttypes.Index]tnttypes.Attachment),
	}

	tapCount := int(r.uint64())
	for i := 0; i < tapCount; i++ {
		idx := r.index()
		packed := r.bytes()
		if nil != r.err {
			return nil, r.err
		}
		tap, err := UnpackTap(packed)
		if nil != err {
			return nil, err
		}
		s.Taps[idx] = tap
	}
	s.TapCounter = r.index()

	attCount := int(r.uint64())
	for i := 0; i < attCount; i++ {
		idx := r.index()
		packed := r.bytes()
		if nil != r.err {
			return nil, r.err
		}
		att, err := UnpackAttachment(packed)
		if nil != err {
			return nil, err
		}
		s.Attachments[idx] = att
	}
	s.AttachmentCounter = r.index()

	s.RemoteSources = r.remoteSources()
	if nil != r.err {
		return nil, r.err
	}
	return s, nil
}

// UnpackAccessoryAddress reads an AccessoryAddress back from its packed
// form (§3 Accessory address).
func UnpackAccessoryAddress(p Packed) (tnttypes.AccessoryAddress, error) {
	r := newReader(p)
	kind := tnttypes.AccessoryKind(r.byte())
	addr := tnttypes.AccessoryAddress{Kind: kind}
	if tnttypes.AttachmentAccessory == kind {
		addr.AttachmentIndex = r.index()
	} else {
		addr.TapIndex = r.index()
		addr.RequirementIndex = r.index()
	}
	if nil != r.err {
		return tnttypes.AccessoryAddress{}, r.err
	}
	return addr, nil
}

// UnpackAccessoryState reads one TankAccessoryState row, dispatching on
// its leading kind byte.
func UnpackAccessoryState(p Packed) (*tnttypes.TankAccessoryState, error) {
	r := newReader(p)
	kind := stateKind(r.byte())
	state := &tnttypes.TankAccessoryState{}
	switch kind {
	case stateAssetFlowMeter:
		state.AssetFlowMeter = &tnttypes.AssetFlowMeterState{MeteredAmount: r.int64()}
	case stateCumulativeFlowLimit:
		state.CumulativeFlowLimit = &tnttypes.CumulativeFlowLimitState{AmountReleased: r.int64()}
	case statePeriodicFlowLimit:
		period := r.int64()
		released := r.int64()
		state.PeriodicFlowLimit = &tnttypes.PeriodicFlowLimitState{PeriodNum: period, AmountReleased: released}
	case stateReview:
		counter := r.uint64()
		count := int(r.uint64())
		requests := make(map[uint64]*tnttypes.ReviewRequest, count)
		for i := 0; i < count; i++ {
			id := r.uint64()
			amount := r.flowLimit()
			comment := r.string()
			approved := r.bool()
			if nil != r.err {
				break
			}
			requests[id] = &tnttypes.ReviewRequest{Amount: amount, Comment: comment, Approved: approved}
		}
		state.Review = &tnttypes.ReviewRequirementState{RequestCounter: counter, PendingRequests: requests}
	case stateDelay:
		counter := r.uint64()
		count := int(r.uint64())
		requests := make(map[uint64]*tnttypes.DelayRequest, count)
		for i := 0; i < count; i++ {
			id := r.uint64()
			end := r.int64()
			amount := r.flowLimit()
			comment := r.string()
			if nil != r.err {
				break
			}
			requests[id] = &tnttypes.DelayRequest{DelayPeriodEnd: end, Amount: amount, Comment: comment}
		}
		state.Delay = &tnttypes.DelayRequirementState{RequestCounter: counter, PendingRequests: requests}
	case stateTicket:
		state.Ticket = &tnttypes.TicketRequirementState{TicketsConsumed: r.uint64()}
	case stateExchange:
		state.Exchange = &tnttypes.ExchangeRequirementState{AmountReleased: r.int64()}
	default:
		return nil, fault.StateError("unhandled state kind in UnpackAccessoryState")
	}
	if nil != r.err {
		return nil, r.err
	}
	return state, nil
}

// UnpackTankObject reads the full persisted tank record back (§6
// Serialization, §3 Tank object/Lifecycle).
func UnpackTankObject(p Packed) (*tnttypes.TankObject, error) {
	r := newReader(p)
	schematicPacked := r.bytes()
	if nil != r.err {
		return nil, r.err
	}
	schematic, err := UnpackSchematic(schematicPacked)
	if nil != err {
		return nil, err
	}

	t := &tnttypes.TankObject{
		Schematic:       schematic,
		Balance:         r.int64(),
		Deposit:         r.int64(),
		CreationDate:    r.int64(),
		AccessoryStates: make(map[tnttypes.AccessoryAddress]*tnttypes.TankAccessoryState),
	}

	count := int(r.uint64())
	for i := 0; i < count; i++ {
		addrPacked := r.bytes()
		statePacked := r.bytes()
		if nil != r.err {
			return nil, r.err
		}
		addr, err := UnpackAccessoryAddress(addrPacked)
		if nil != err {
			return nil, err
		}
		state, err := UnpackAccessoryState(statePacked)
		if nil != err {
			return nil, err
		}
		t.AccessoryStates[addr] = state
	}
	if nil != r.err {
		return nil, r.err
	}
	return t, nil
}
