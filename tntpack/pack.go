// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2019 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package tntpack provides wire pack/unpack for tank schematics, accessory
// state, and the accessory address used to key it - the persisted form
// named in §6 Serialization ("Persisted per-tank: { schematic, balance,
// deposit, creation_date, accessory_states }"). Every tank_attachment,
// tap_requirement, and tank_query_type tag number matches the ordering
// fixed in §3/§4.E and must never be renumbered once shipped.
//
// The wire format follows transactionrecord's own convention exactly:
// Varint64(tag) followed by fields in declaration order, each
// variable-length field prefixed by its own Varint64 length, reusing
// util.ToVarint64/FromVarint64 for every integer on the wire.
package tntpack

import (
	"github.com/bitmark-inc/tnt/account"
	"github.com/bitmark-inc/tnt/fault"
	"github.com/bitmark-inc/tnt/tnttypes"
	"github.com/bitmark-inc/tnt/util"
)

// Packed is a packed byte stream - one schematic, tap, attachment,
// requirement, connection, or tank object, depending on which Pack
// function produced it.
type Packed []byte

// maxFieldLength bounds every length-prefixed field this package reads,
// the same defensive clipping transactionrecord.Packed.Unpack applies via
// util.ClippedVarint64 so a corrupt or adversarial buffer cannot force an
// unbounded allocation.
const maxFieldLength = 1 << 20

// appendUint64 appends a bare Varint64 - no length prefix, since the
// decoder always knows a uint64 field's shape from position alone.
func appendUint64(buffer Packed, value uint64) Packed {
	return append(buffer, util.ToVarint64(value)...)
}

// appendInt64 zig-zag encodes a signed value so small negative numbers
// stay small on the wire, then appends it as a bare Varint64.
func appendInt64(buffer Packed, value int64) Packed {
	return appendUint64(buffer, zigzagEncode(value))
}

func zigzagEncode(v int64) uint64 {
	return uint64(v<<1) ^ uint64(v>>63)
}

func zigzagDecode(v uint64) int64 {
	return int64(v>>1) ^ -int64(v&1)
}

// appendBool appends a single byte, 1 for true.
func appendBool(buffer Packed, b bool) Packed {
	if b {
		return append(buffer, 1)
	}
	return append(buffer, 0)
}

// appendBytes appends a Varint64(length)-prefixed byte field.
func appendBytes(buffer Packed, data []byte) Packed {
	buffer = append(buffer, util.ToVarint64(uint64(len(data)))...)
	return append(buffer, data...)
}

// appendString appends a Varint64(length)-prefixed string field.
func appendString(buffer Packed, s string) Packed {
	return appendBytes(buffer, []byte(s))
}

// appendAuthority appends an optional authority: a presence byte, then
// (if present) the threshold and the account-weight set, each account
// keyed by its base58 text form exactly as account.Authority stores it.
func appendAuthority(buffer Packed, auth *account.Authority) Packed {
	if nil == auth {
		return append(buffer, 0)
	}
	buffer = append(buffer, 1)
	buffer = appendUint64(buffer, uint64(auth.Threshold))
	buffer = appendUint64(buffer, uint64(len(auth.Accounts)))
	for key, weight := range auth.Accounts {
		buffer = appendString(buffer, key)
		buffer = appendUint64(buffer, uint64(weight))
	}
	return buffer
}

// appendFlowLimit appends the unlimited|amount:i64 sum type.
func appendFlowLimit(buffer Packed, limit tnttypes.FlowLimit) Packed {
	if limit.IsUnlimited() {
		return append(buffer, 0)
	}
	buffer = append(buffer, 1)
	return appendInt64(buffer, limit.Amount())
}

// appendConnection appends the same_tank|account_id|tank_id|attachment_id
// sum type (§3 Connection).
func appendConnection(buffer Packed, c tnttypes.Connection) Packed {
	buffer = append(buffer, byte(c.Kind))
	switch c.Kind {
	case tnttypes.ConnectionSameTank:
		return buffer
	case tnttypes.ConnectionAccount:
		return appendString(buffer, string(c.Account))
	case tnttypes.ConnectionTank:
		return appendUint64(buffer, uint64(c.Tank))
	case tnttypes.ConnectionAttachment:
		return appendAttachmentID(buffer, c.Attachment)
	default:
		return buffer
	}
}

// appendAttachmentID appends an attachment_id: a presence byte for the
// optional tank_id, then (if set) the tank id, then the index.
func appendAttachmentID(buffer Packed, id tnttypes.AttachmentID) Packed {
	if nil == id.TankID {
		buffer = append(buffer, 0)
	} else {
		buffer = append(buffer, 1)
		buffer = appendUint64(buffer, uint64(*id.TankID))
	}
	return appendUint64(buffer, uint64(id.Index))
}

// appendTapID appends a tap_id - same shape as an attachment_id (§3).
func appendTapID(buffer Packed, id tnttypes.TapID) Packed {
	if nil == id.TankID {
		buffer = append(buffer, 0)
	} else {
		buffer = append(buffer, 1)
		buffer = appendUint64(buffer, uint64(*id.TankID))
	}
	return appendUint64(buffer, uint64(id.Index))
}

// appendRemoteSources appends the all_sources|set<remote_connection> sum
// type. The set's map keys are not written - they are a derived canonical
// string recomputed from each Connection on unpack.
func appendRemoteSources(buffer Packed, rs tnttypes.RemoteSources) Packed {
	buffer = append(buffer, byte(rs.Kind))
	if tnttypes.AllSources == rs.Kind {
		return buffer
	}
	buffer = appendUint64(buffer, uint64(len(rs.Set)))
	for _, conn := range rs.Set {
		buffer = appendConnection(buffer, conn)
	}
	return buffer
}

// appendHash appends a Hash{Kind, Digest}.
func appendHash(buffer Packed, h tnttypes.Hash) Packed {
	buffer = append(buffer, byte(h.Kind))
	return appendBytes(buffer, h.Digest)
}

// PackAttachment packs one tank_attachment variant: Varint64(tag) followed
// by its fields in struct declaration order (§3 Tank attachments).
func PackAttachment(a tnttypes.Attachment) (Packed, error) {
	buffer := appendUint64(nil, uint64(a.Tag()))
	switch v := a.(type) {
	case tnttypes.AssetFlowMeter:
		buffer = appendUint64(buffer, uint64(v.AssetType))
		buffer = appendConnection(buffer, v.Destination)
		buffer = appendRemoteSources(buffer, v.RemoteSources)
		buffer = appendAuthority(buffer, v.ResetAuthority)
		return buffer, nil
	case tnttypes.TapOpener:
		buffer = appendUint64(buffer, uint64(v.TapIndex))
		buffer = appendFlowLimit(buffer, v.ReleaseAmount)
		buffer = appendConnection(buffer, v.Destination)
		buffer = appendUint64(buffer, uint64(v.AssetType))
		buffer = appendRemoteSources(buffer, v.RemoteSources)
		return buffer, nil
	case tnttypes.AttachmentConnectAuthority:
		buffer = appendAuthority(buffer, &v.ConnectAuthority)
		buffer = appendAttachmentID(buffer, v.Attachment)
		return buffer, nil
	default:
		return nil, fault.StateError("unhandled attachment tag in PackAttachment")
	}
}

// PackRequirement packs one tap_requirement variant: Varint64(tag)
// followed by its config fields in struct declaration order (§3 Tap
// requirements). State is packed separately via PackAccessoryState since
// it lives in TankObject.AccessoryStates, not on the schematic.
func PackRequirement(r tnttypes.Requirement) (Packed, error) {
	buffer := appendUint64(nil, uint64(r.Tag()))
	switch v := r.(type) {
	case tnttypes.ImmediateFlowLimit:
		buffer = appendInt64(buffer, v.Limit)
		return buffer, nil
	case tnttypes.CumulativeFlowLimit:
		buffer = appendInt64(buffer, v.Limit)
		return buffer, nil
	case tnttypes.PeriodicFlowLimit:
		buffer = appendInt64(buffer, v.PeriodDurationSec)
		buffer = appendInt64(buffer, v.Limit)
		return buffer, nil
	case tnttypes.TimeLock:
		buffer = appendBool(buffer, v.StartLocked)
		buffer = appendUint64(buffer, uint64(len(v.LockUnlockTimes)))
		for _, t := range v.LockUnlockTimes {
			buffer = appendInt64(buffer, t)
		}
		return buffer, nil
	case tnttypes.MinimumTankLevel:
		buffer = appendInt64(buffer, v.MinimumLevel)
		return buffer, nil
	case tnttypes.ReviewRequirement:
		buffer = appendAuthority(buffer, &v.Reviewer)
		buffer = appendUint64(buffer, uint64(v.RequestLimit))
		return buffer, nil
	case tnttypes.DocumentationRequirement:
		return buffer, nil
	case tnttypes.DelayRequirement:
		buffer = appendAuthority(buffer, v.VetoAuthority)
		buffer = appendInt64(buffer, v.DelayPeriodSec)
		buffer = appendUint64(buffer, uint64(v.RequestLimit))
		return buffer, nil
	case tnttypes.HashPreimageRequirement:
		buffer = appendHash(buffer, v.Hash)
		if nil == v.PreimageSize {
			buffer = append(buffer, 0)
		} else {
			buffer = append(buffer, 1)
			buffer = appendUint64(buffer, uint64(*v.PreimageSize))
		}
		return buffer, nil
	case tnttypes.TicketRequirement:
		buffer = appendAuthority(buffer, &v.TicketSigner)
		return buffer, nil
	case tnttypes.ExchangeRequirement:
		buffer = appendAttachmentID(buffer, v.MeterID)
		buffer = appendInt64(buffer, v.ReleasePerTick)
		buffer = appendInt64(buffer, v.TickAmount)
		buffer = appendAuthority(buffer, v.ResetAuthority)
		return buffer, nil
	default:
		return nil, fault.StateError("unhandled requirement tag in PackRequirement")
	}
}

// PackTap packs a single tap: its optional connection, both optional
// authorities, its requirements in order, and the destructor flag (§3 Tap).
func PackTap(t *tnttypes.Tap) (Packed, error) {
	var buffer Packed
	if nil == t.ConnectedConnection {
		buffer = append(buffer, 0)
	} else {
		buffer = append(buffer, 1)
		buffer = appendConnection(buffer, *t.ConnectedConnection)
	}
	buffer = appendAuthority(buffer, t.OpenAuthority)
	buffer = appendAuthority(buffer, t.ConnectAuthority)
	buffer = appendUint64(buffer, uint64(len(t.Requirements)))
	for _, r := range t.Requirements {
		packed, err := PackRequirement(r)
		if nil != err {
			return nil, err
		}
		buffer = appendBytes(buffer, packed)
	}
	buffer = appendBool(buffer, t.DestructorTap)
	return buffer, nil
}

// PackSchematic packs a tank's schematic: asset type, the tap map and
// counter, the attachment map and counter, and remote_sources (§3 Tank
// schematic). Taps and attachments are written in ascending index order so
// the wire form is deterministic regardless of Go's unordered map
// iteration (§9 "deterministic iteration order").
func PackSchematic(s *tnttypes.TankSchematic) (Packed, error) {
	buffer := appendUint64(nil, uint64(s.AssetType))

	tapIndices := sortedIndices(s.Taps)
	buffer = appendUint64(buffer, uint64(len(tapIndices)))
	for _, idx := range tapIndices {
		buffer = appendUint64(buffer, uint64(idx))
		packed, err := PackTap(s.Taps[idx])
		if nil != err {
			return nil, err
		}
		buffer = appendBytes(buffer, packed)
	}
	buffer = appendUint64(buffer, uint64(s.TapCounter))

	attIndices := sortedAttachmentIndices(s.Attachments)
	buffer = appendUint64(buffer, uint64(len(attIndices)))
	for _, idx := range attIndices {
		buffer = appendUint64(buffer, uint64(idx))
		packed, err := PackAttachment(s.Attachments[idx])
		if nil != err {
			return nil, err
		}
		buffer = appendBytes(buffer, packed)
	}
	buffer = appendUint64(buffer, uint64(s.AttachmentCounter))

	buffer = appendRemoteSources(buffer, s.RemoteSources)
	return buffer, nil
}

func sortedIndices(m map[tnttypes.Index]*tnttypes.Tap) []tnttypes.Index {
	out := make([]tnttypes.Index, 0, len(m))
	for idx := range m {
		out = append(out, idx)
	}
	insertionSortIndices(out)
	return out
}

func sortedAttachmentIndices(m map[tnttypes.Index]tnttypes.Attachment) []tnttypes.Index {
	out := make([]tnttypes.Index, 0, len(m))
	for idx := range m {
		out = append(out, idx)
	}
	insertionSortIndices(out)
	return out
}

// insertionSortIndices sorts a small slice of Index in place. Schematics
// carry at most a few hundred taps/attachments, so a plain insertion sort
// avoids pulling in sort.Slice's reflection-based comparator for this.
func insertionSortIndices(s []tnttypes.Index) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j-1] > s[j]; j-- {
			s[j-1], s[j] = s[j], s[j-1]
		}
	}
}

// stateKind tags which single field of a TankAccessoryState is populated,
// so the union can round-trip on the wire without re-deriving it from the
// accessory it belongs to.
type stateKind byte

const (
	stateAssetFlowMeter stateKind = iota
	stateCumulativeFlowLimit
	statePeriodicFlowLimit
	stateReview
	stateDelay
	stateTicket
	stateExchange
)

// PackAccessoryAddress packs an AccessoryAddress (§3).
func PackAccessoryAddress(a tnttypes.AccessoryAddress) Packed {
	buffer := append(Packed{}, byte(a.Kind))
	if tnttypes.AttachmentAccessory == a.Kind {
		return appendUint64(buffer, uint64(a.AttachmentIndex))
	}
	buffer = appendUint64(buffer, uint64(a.TapIndex))
	return appendUint64(buffer, uint64(a.RequirementIndex))
}

// PackAccessoryState packs one TankAccessoryState row, preceded by a kind
// byte naming which union member is populated.
func PackAccessoryState(s *tnttypes.TankAccessoryState) (Packed, error) {
	switch {
	case nil != s.AssetFlowMeter:
		buffer := Packed{byte(stateAssetFlowMeter)}
		return appendInt64(buffer, s.AssetFlowMeter.MeteredAmount), nil
	case nil != s.CumulativeFlowLimit:
		buffer := Packed{byte(stateCumulativeFlowLimit)}
		return appendInt64(buffer, s.CumulativeFlowLimit.AmountReleased), nil
	case nil != s.PeriodicFlowLimit:
		buffer := Packed{byte(statePeriodicFlowLimit)}
		buffer = appendInt64(buffer, s.PeriodicFlowLimit.PeriodNum)
		return appendInt64(buffer, s.PeriodicFlowLimit.AmountReleased), nil
	case nil != s.Review:
		buffer := Packed{byte(stateReview)}
		buffer = appendUint64(buffer, s.Review.RequestCounter)
		buffer = appendUint64(buffer, uint64(len(s.Review.PendingRequests)))
		for id, req := range s.Review.PendingRequests {
			buffer = appendUint64(buffer, id)
			buffer = appendFlowLimit(buffer, req.Amount)
			buffer = appendString(buffer, req.Comment)
			buffer = appendBool(buffer, req.Approved)
		}
		return buffer, nil
	case nil != s.Delay:
		buffer := Packed{byte(stateDelay)}
		buffer = appendUint64(buffer, s.Delay.RequestCounter)
		buffer = appendUint64(buffer, uint64(len(s.Delay.PendingRequests)))
		for id, req := range s.Delay.PendingRequests {
			buffer = appendUint64(buffer, id)
			buffer = appendInt64(buffer, req.DelayPeriodEnd)
			buffer = appendFlowLimit(buffer, req.Amount)
			buffer = appendString(buffer, req.Comment)
		}
		return buffer, nil
	case nil != s.Ticket:
		buffer := Packed{byte(stateTicket)}
		return appendUint64(buffer, s.Ticket.TicketsConsumed), nil
	case nil != s.Exchange:
		buffer := Packed{byte(stateExchange)}
		return appendInt64(buffer, s.Exchange.AmountReleased), nil
	default:
		return nil, fault.StateError("empty accessory state in PackAccessoryState")
	}
}

// PackTankObject packs the full persisted tank record: schematic, balance,
// deposit, creation date, and every accessory state row (§6 Serialization).
// Accessory state rows are written in address order for determinism.
func PackTankObject(t *tnttypes.TankObject) (Packed, error) {
	schematicPacked, err := PackSchematic(t.Schematic)
	if nil != err {
		return nil, err
	}
	buffer := appendBytes(nil, schematicPacked)
	buffer = appendInt64(buffer, t.Balance)
	buffer = appendInt64(buffer, t.Deposit)
	buffer = appendInt64(buffer, t.CreationDate)

	addrs := make([]tnttypes.AccessoryAddress, 0, len(t.AccessoryStates))
	for addr := range t.AccessoryStates {
		addrs = append(addrs, addr)
	}
	insertionSortAddresses(addrs)

	buffer = appendUint64(buffer, uint64(len(addrs)))
	for _, addr := range addrs {
		buffer = appendBytes(buffer, PackAccessoryAddress(addr))
		statePacked, err := PackAccessoryState(t.AccessoryStates[addr])
		if nil != err {
			return nil, err
		}
		buffer = appendBytes(buffer, statePacked)
	}
	return buffer, nil
}

func insertionSortAddresses(s []tnttypes.AccessoryAddress) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j].Less(s[j-1]); j-- {
			s[j-1], s[j] = s[j], s[j-1]
		}
	}
}
