// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2019 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package tnttypes

// AccessoryKind distinguishes an attachment address from a requirement
// address. All attachment addresses sort before all requirement addresses
// (§3 Accessory address).
type AccessoryKind uint8

const (
	AttachmentAccessory AccessoryKind = iota
	RequirementAccessory
)

// AccessoryAddress names one stateful accessory inside a tank:
// {attachment_id} for an attachment, or {tap_id, requirement_index} for a
// requirement. Equality and ordering ignore the accessory's variant type -
// state is keyed by address position alone, so replacing a requirement
// with a different kind at the same (tap, index) reuses (and must clear)
// the same slot.
type AccessoryAddress struct {
	Kind             AccessoryKind
	AttachmentIndex  Index
	TapIndex         Index
	RequirementIndex Index
}

// ForAttachment builds the address of an attachment at index.
func ForAttachment(index Index) AccessoryAddress {
	return AccessoryAddress{Kind: AttachmentAccessory, AttachmentIndex: index}
}

// ForRequirement builds the address of a requirement at requirementIndex on
// the tap at tapIndex.
func ForRequirement(tapIndex, requirementIndex Index) AccessoryAddress {
	return AccessoryAddress{Kind: RequirementAccessory, TapIndex: tapIndex, RequirementIndex: requirementIndex}
}

// Less implements the total order from §3: all attachment addresses sort
// before all requirement addresses; within a kind, lexicographic on the
// relevant indices.
func (a AccessoryAddress) Less(b AccessoryAddress) bool {
	if a.Kind != b.Kind {
		return a.Kind < b.Kind
	}
	switch a.Kind {
	case AttachmentAccessory:
		return a.AttachmentIndex < b.AttachmentIndex
	default:
		if a.TapIndex != b.TapIndex {
			return a.TapIndex < b.TapIndex
		}
		return a.RequirementIndex < b.RequirementIndex
	}
}

// Equal compares two addresses for equality, ignoring accessory type.
func (a AccessoryAddress) Equal(b AccessoryAddress) bool {
	return a.Kind == b.Kind && a.AttachmentIndex == b.AttachmentIndex &&
		a.TapIndex == b.TapIndex && a.RequirementIndex == b.RequirementIndex
}
