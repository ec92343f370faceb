// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2019 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package tnttypes defines the accessory model for the tank/tap core: the
// tagged-union types for taps, requirements, attachments, connections,
// accessory state and addressing that every other tnt package operates on.
//
// Every accessory carries two compile-time facts, mirrored here as methods
// rather than struct fields so the compiler enforces them: its Kind
// (attachment or requirement) and whether it is Unique (may appear at most
// once per tank). Dispatch on the variant is a switch (on the concrete type
// or on Tag()) with a default case, never a type assertion chain left open
// for silent fallthrough - adding a new variant means adding a new case
// everywhere, by design (see §9 of the
// design notes: runtime type dispatch on tagged unions).
package tnttypes

import "fmt"

// AssetID names the one fungible asset kind a tank holds, or that flows
// through a connection/meter/opener. It is a 64 bit opaque identifier
// supplied by the host chain (e.g. the UIA/core-asset id) - the tank/tap
// core treats it only as an equality-comparable value.
type AssetID uint64

// AnyAsset is the wildcard accepted by connections whose destination takes
// an asset-agnostic deposit (a bare account, for instance).
const AnyAsset AssetID = 0

// CoreAsset is the host chain's native asset - the sole currency tank
// deposits are denominated and paid in, regardless of what asset a tank
// itself holds (§6 tank_create: "assert payer has deposit in CORE asset").
const CoreAsset AssetID = 1

// Matches reports whether a (possibly wildcard) expected asset matches id.
func (id AssetID) Matches(expected AssetID) bool {
	return expected == AnyAsset || expected == id
}

// TankID is the object id of a tank.
type TankID uint64

// Index is a 16 bit key into a tank's taps or attachments map.
type Index uint16

// TapID identifies a tap, optionally qualified by which tank it lives on.
// An unset TankID means "the current tank in context" - see §3.
type TapID struct {
	TankID *TankID
	Index  Index
}

// Resolve returns the tank id this reference names, given the tank that is
// "current" in the evaluation context.
func (id TapID) Resolve(current TankID) TankID {
	if nil != id.TankID {
		return *id.TankID
	}
	return current
}

func (id TapID) String() string {
	if nil != id.TankID {
		return fmt.Sprintf("tank:%d/tap:%d", *id.TankID, id.Index)
	}
	return fmt.Sprintf("tap:%d", id.Index)
}

// AttachmentID identifies an attachment, optionally qualified by tank, with
// the same "unset means current tank" rule as TapID.
type AttachmentID struct {
	TankID *TankID
	Index  Index
}

// Resolve returns the tank id this reference names, given the tank that is
// "current" in the evaluation context.
func (id AttachmentID) Resolve(current TankID) TankID {
	if nil != id.TankID {
		return *id.TankID
	}
	return current
}

func (id AttachmentID) String() string {
	if nil != id.TankID {
		return fmt.Sprintf("tank:%d/attachment:%d", *id.TankID, id.Index)
	}
	return fmt.Sprintf("attachment:%d", id.Index)
}

// AccountID is the opaque wallet account identifier a terminal connection
// or an authority may name. The concrete representation (an ed25519
// account.Account) lives in the sibling account package; tnttypes only
// needs the comparable handle.
type AccountID string

// EmergencyTapIndex is the reserved index of every tank's emergency tap -
// it always exists, has no requirements, and both authorities set.
const EmergencyTapIndex Index = 0
