// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2019 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package tnttypes

import (
	"strconv"

	"github.com/bitmark-inc/tnt/account"
)

// AttachmentTag is the stable wire tag for a tank_attachment variant - the
// ordering here is the ordering required by §6 Serialization and must never
// be renumbered once shipped.
type AttachmentTag uint8

const (
	AssetFlowMeterTag AttachmentTag = iota
	TapOpenerTag
	AttachmentConnectAuthorityTag
)

// Attachment is the exhaustive interface every tank attachment variant
// implements. ReceivesAsset and OutputConnection are optional per variant
// (§3) - ok is false when the variant doesn't support the operation.
type Attachment interface {
	Tag() AttachmentTag
	Unique() bool
	ReceivesAsset() (AssetID, bool)
	OutputConnection() (Connection, bool)
}

// AssetFlowMeter tallies every amount that flows through it, with an
// optional authority able to zero the running total.
type AssetFlowMeter struct {
	AssetType      AssetID
	Destination    Connection
	RemoteSources  RemoteSources
	ResetAuthority *account.Authority
}

func (AssetFlowMeter) Tag() AttachmentTag { return AssetFlowMeterTag }
func (AssetFlowMeter) Unique() bool       { return false }
func (m AssetFlowMeter) ReceivesAsset() (AssetID, bool) {
	return m.AssetType, true
}
func (m AssetFlowMeter) OutputConnection() (Connection, bool) {
	return m.Destination, true
}

// AssetFlowMeterState is the mutable counter behind an AssetFlowMeter.
type AssetFlowMeterState struct {
	MeteredAmount int64
}

// TapOpener triggers a cascading open of another tap on the same tank
// whenever asset flows through it. It is itself stateless and does not
// receive asset - it only forwards what passes through.
type TapOpener struct {
	TapIndex      Index
	ReleaseAmount FlowLimit
	Destination   Connection
	AssetType     AssetID
	RemoteSources RemoteSources
}

func (TapOpener) Tag() AttachmentTag                     { return TapOpenerTag }
func (TapOpener) Unique() bool                           { return false }
func (TapOpener) ReceivesAsset() (AssetID, bool)         { return AssetID(0), false }
func (o TapOpener) OutputConnection() (Connection, bool) { return o.Destination, true }

// AttachmentConnectAuthority lets an authority reconnect the destination of
// another asset-receiving attachment on the same tank, without touching the
// rest of the schematic. It neither receives asset nor has an output of its
// own.
type AttachmentConnectAuthority struct {
	ConnectAuthority account.Authority
	Attachment       AttachmentID
}

func (AttachmentConnectAuthority) Tag() AttachmentTag             { return AttachmentConnectAuthorityTag }
func (AttachmentConnectAuthority) Unique() bool                   { return false }
func (AttachmentConnectAuthority) ReceivesAsset() (AssetID, bool) { return AssetID(0), false }
func (AttachmentConnectAuthority) OutputConnection() (Connection, bool) {
	return Connection{}, false
}

// RemoteSourcesKind tags whether a tank/attachment accepts deposits from
// anywhere or only from an explicit allow-list.
type RemoteSourcesKind uint8

const (
	AllSources RemoteSourcesKind = iota
	RestrictedSources
)

// RemoteSources is the sum type all_sources | set<remote_connection>.
type RemoteSources struct {
	Kind RemoteSourcesKind
	Set  map[string]Connection // keyed by a canonical string of the connection
}

// AllRemoteSources - the wildcard: any remote connection may deposit.
func AllRemoteSources() RemoteSources {
	return RemoteSources{Kind: AllSources}
}

// NewRestrictedSources builds an explicit allow-list of remote connections.
func NewRestrictedSources(conns ...Connection) RemoteSources {
	set := make(map[string]Connection, len(conns))
	for _, c := range conns {
		set[connectionKey(c)] = c
	}
	return RemoteSources{Kind: RestrictedSources, Set: set}
}

// Contains reports whether conn is present in a restricted set. Callers
// must only invoke this when Kind == RestrictedSources.
func (r RemoteSources) Contains(conn Connection) bool {
	_, ok := r.Set[connectionKey(conn)]
	return ok
}

func connectionKey(c Connection) string {
	switch c.Kind {
	case ConnectionSameTank:
		return "same_tank"
	case ConnectionAccount:
		return "account:" + string(c.Account)
	case ConnectionTank:
		return "tank:" + strconv.FormatUint(uint64(c.Tank), 10)
	case ConnectionAttachment:
		tank := "current"
		if nil != c.Attachment.TankID {
			tank = strconv.FormatUint(uint64(*c.Attachment.TankID), 10)
		}
		return "attachment:" + tank + "/" + strconv.FormatUint(uint64(c.Attachment.Index), 10)
	default:
		return "invalid"
	}
}
