// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2019 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package tntvalidate implements the schematic validator (§4.B): static
// structural, authority, reference, uniqueness and deposit checks over a
// tank schematic. Every check returns an error wrapped with the accessory
// path it failed at via fault.AtPath, so a caller never has to catch an
// exception to build a readable message - the same "never panic on bad
// caller input" discipline the teacher's evaluators hold to.
package tntvalidate

import (
	"sort"

	"github.com/bitmark-inc/logger"

	"github.com/bitmark-inc/tnt/fault"
	"github.com/bitmark-inc/tnt/tntlookup"
	"github.com/bitmark-inc/tnt/tntparams"
	"github.com/bitmark-inc/tnt/tnttypes"
)

var log = logger.New("tntvalidate")

var (
	ErrMissingEmergencyTap  = fault.ValidationError("missing or invalid emergency tap")
	ErrTapNotConnectable    = fault.ValidationError("tap has neither connected_connection nor connect_authority")
	ErrDuplicateUnique      = fault.ValidationError("unique accessory variant appears more than once")
	ErrInvalidAttachment    = fault.ValidationError("invalid attachment configuration")
	ErrInvalidRequirement   = fault.ValidationError("invalid requirement configuration")
	ErrDanglingReference    = fault.ValidationError("accessory references a nonexistent tap or attachment")
	ErrExplicitSelfSource   = fault.ValidationError("remote_sources may not explicitly list this tank")
)

// ValidateTank runs every check in §4.B over schematic in order, returning
// the first failure. lookup may be nil-backed (no cross-tank callback);
// cross-tank structural checks are skipped rather than assumed when the
// lookup reports ErrNeedLookupFunction, per §9 design notes.
func ValidateTank(schematic *tnttypes.TankSchematic, lookup *tntlookup.Lookup, params tntparams.Parameters) error {
	if err := validateAttachments(schematic, lookup); nil != err {
		return err
	}
	if err := validateEmergencyTap(schematic); nil != err {
		return err
	}
	if err := validateTaps(schematic, lookup, params); nil != err {
		return err
	}
	log.Debugf("validated schematic: %d taps, %d attachments", len(schematic.Taps), len(schematic.Attachments))
	return nil
}

func validateAttachments(schematic *tnttypes.TankSchematic, lookup *tntlookup.Lookup) error {
	seenUnique := make(map[tnttypes.AttachmentTag]bool)

	for _, index := range sortedAttachmentIndices(schematic) {
		a := schematic.Attachments[index]
		path := fault.AccessoryPath{}.WithAttachment(uint16(index))

		if a.Unique() {
			if seenUnique[a.Tag()] {
				return fault.AtPath(ErrDuplicateUnique, path)
			}
			seenUnique[a.Tag()] = true
		}

		switch v := a.(type) {
		case tnttypes.AssetFlowMeter:
			if err := validateAssetFlowMeter(v, schematic, lookup); nil != err {
				return fault.AtPath(err, path)
			}
		case tnttypes.TapOpener:
			if err := validateTapOpener(v, schematic, lookup); nil != err {
				return fault.AtPath(err, path)
			}
		case tnttypes.AttachmentConnectAuthority:
			if err := validateAttachmentConnectAuthority(v, schematic); nil != err {
				return fault.AtPath(err, path)
			}
		default:
			return fault.AtPath(fault.ValidationError("unhandled attachment tag"), path)
		}
	}
	return nil
}

func validateAssetFlowMeter(m tnttypes.AssetFlowMeter, schematic *tnttypes.TankSchematic, lookup *tntlookup.Lookup) error {
	asset, err := lookup.GetConnectionAsset(m.Destination)
	if nil != err {
		if tntlookup.ErrNeedLookupFunction == err {
			return nil
		}
		return err
	}
	if !asset.Matches(m.AssetType) && !m.AssetType.Matches(asset) {
		return ErrInvalidAttachment
	}
	if tnttypes.RestrictedSources == m.RemoteSources.Kind {
		if m.RemoteSources.Contains(tnttypes.SameTankConnection()) {
			return ErrExplicitSelfSource
		}
	}
	return nil
}

func validateTapOpener(o tnttypes.TapOpener, schematic *tnttypes.TankSchematic, lookup *tntlookup.Lookup) error {
	if _, ok := schematic.Taps[o.TapIndex]; !ok {
		return ErrDanglingReference
	}
	if !o.ReleaseAmount.IsUnlimited() && o.ReleaseAmount.Amount() <= 0 {
		return ErrInvalidAttachment
	}
	asset, err := lookup.GetConnectionAsset(o.Destination)
	if nil != err {
		if tntlookup.ErrNeedLookupFunction == err {
			return nil
		}
		return err
	}
	if !asset.Matches(o.AssetType) {
		return ErrInvalidAttachment
	}
	return nil
}

func validateAttachmentConnectAuthority(aca tnttypes.AttachmentConnectAuthority, schematic *tnttypes.TankSchematic) error {
	if nil != aca.Attachment.TankID {
		return nil // cross-tank target: cannot check locally, skip per §9
	}
	target, ok := schematic.Attachments[aca.Attachment.Index]
	if !ok {
		return ErrDanglingReference
	}
	if _, canReceive := target.ReceivesAsset(); !canReceive {
		return ErrInvalidAttachment
	}
	if aca.ConnectAuthority.IsTrivial() {
		return fault.AuthorityError("attachment_connect_authority requires a non-trivial authority")
	}
	return nil
}

func validateEmergencyTap(schematic *tnttypes.TankSchematic) error {
	tap, ok := schematic.EmergencyTap()
	if !ok || !tap.IsEmergencyTap() {
		return fault.AtPath(ErrMissingEmergencyTap, fault.AccessoryPath{}.WithTap(uint16(tnttypes.EmergencyTapIndex)))
	}
	return nil
}

func validateTaps(schematic *tnttypes.TankSchematic, lookup *tntlookup.Lookup, params tntparams.Parameters) error {
	for _, tapIndex := range sortedTapIndices(schematic) {
		tap := schematic.Taps[tapIndex]
		path := fault.AccessoryPath{}.WithTap(uint16(tapIndex))

		if nil == tap.ConnectedConnection && nil == tap.ConnectAuthority {
			return fault.AtPath(ErrTapNotConnectable, path)
		}

		if err := validateRequirements(tap, tapIndex, schematic, path); nil != err {
			return err
		}

		if tnttypes.EmergencyTapIndex != tapIndex && nil != tap.ConnectedConnection {
			if err := validateConnectionChain(tapIndex, *tap.ConnectedConnection, schematic, lookup, params); nil != err {
				return fault.AtPath(err, path)
			}
		}
	}
	return nil
}

func validateRequirements(tap *tnttypes.Tap, tapIndex tnttypes.Index, schematic *tnttypes.TankSchematic, tapPath fault.AccessoryPath) error {
	seenUnique := make(map[tnttypes.RequirementTag]bool)

	for i, r := range tap.Requirements {
		reqPath := fault.AccessoryPath{}.WithTap(uint16(tapIndex)).WithRequirement(uint16(i))

		if r.Unique() {
			if seenUnique[r.Tag()] {
				return fault.AtPath(ErrDuplicateUnique, reqPath)
			}
			seenUnique[r.Tag()] = true
		}

		if err := validateOneRequirement(r, schematic); nil != err {
			return fault.AtPath(err, reqPath)
		}
	}
	return nil
}

func validateOneRequirement(r tnttypes.Requirement, schematic *tnttypes.TankSchematic) error {
	switch v := r.(type) {
	case tnttypes.ImmediateFlowLimit:
		return positive(v.Limit)
	case tnttypes.CumulativeFlowLimit:
		return positive(v.Limit)
	case tnttypes.PeriodicFlowLimit:
		if v.PeriodDurationSec <= 0 {
			return ErrInvalidRequirement
		}
		return positive(v.Limit)
	case tnttypes.TimeLock:
		if 0 == len(v.LockUnlockTimes) {
			return ErrInvalidRequirement
		}
		for i := 1; i < len(v.LockUnlockTimes); i++ {
			if v.LockUnlockTimes[i] <= v.LockUnlockTimes[i-1] {
				return ErrInvalidRequirement
			}
		}
		return nil
	case tnttypes.MinimumTankLevel:
		if v.MinimumLevel < 0 {
			return ErrInvalidRequirement
		}
		return nil
	case tnttypes.ReviewRequirement:
		if v.Reviewer.IsTrivial() {
			return fault.AuthorityError("review_requirement reviewer is trivial")
		}
		return nil
	case tnttypes.DocumentationRequirement:
		return nil
	case tnttypes.DelayRequirement:
		if v.DelayPeriodSec <= 0 {
			return ErrInvalidRequirement
		}
		if nil != v.VetoAuthority && v.VetoAuthority.IsTrivial() {
			return fault.AuthorityError("delay_requirement veto_authority is trivial")
		}
		return nil
	case tnttypes.HashPreimageRequirement:
		if 0 == len(v.Hash.Digest) {
			return ErrInvalidRequirement
		}
		return nil
	case tnttypes.TicketRequirement:
		if v.TicketSigner.IsTrivial() {
			return fault.AuthorityError("ticket_requirement ticket_signer is trivial")
		}
		return nil
	case tnttypes.ExchangeRequirement:
		if v.TickAmount <= 0 || v.ReleasePerTick <= 0 {
			return ErrInvalidRequirement
		}
		if nil != v.MeterID.TankID {
			return nil // cross-tank meter reference: checked at tap-open time
		}
		meter, ok := schematic.Attachments[v.MeterID.Index]
		if !ok {
			return ErrDanglingReference
		}
		if tnttypes.AssetFlowMeterTag != meter.Tag() {
			return ErrInvalidRequirement
		}
		return nil
	default:
		return fault.ValidationError("unhandled requirement tag")
	}
}

func positive(limit int64) error {
	if limit <= 0 {
		return ErrInvalidRequirement
	}
	return nil
}

// validateConnectionChain walks the connection chain starting at a tap's
// connected_connection, per §4.B point 4.
func validateConnectionChain(tapIndex tnttypes.Index, start tnttypes.Connection, schematic *tnttypes.TankSchematic, lookup *tntlookup.Lookup, params tntparams.Parameters) error {
	asset := schematic.AssetType
	path, finalTank, err := lookup.GetConnectionChain(start, params.MaxConnectionChainLength, &asset)
	if nil != err {
		if tntlookup.ErrNeedLookupFunction == err {
			return nil
		}
		return err
	}
	if 0 == len(path) {
		return nil
	}

	final := path[len(path)-1].Connection
	if tnttypes.ConnectionTank == final.Kind || (tnttypes.ConnectionSameTank == final.Kind) {
		destTank := finalTank
		if tnttypes.ConnectionTank == final.Kind {
			destTank = final.Tank
		}
		_, destSchematic, derr := lookup.LookupTank(&destTank)
		if nil != derr {
			if tntlookup.ErrNeedLookupFunction == derr {
				return nil
			}
			return derr
		}
		if tnttypes.RestrictedSources == destSchematic.RemoteSources.Kind && len(path) >= 2 {
			penultimate := path[len(path)-2]
			if penultimate.TankID != destTank && !destSchematic.RemoteSources.Contains(penultimate.Connection) {
				return fault.ConnectionError("penultimate connection not authorized as a remote source")
			}
		}
	}
	return nil
}

func sortedTapIndices(schematic *tnttypes.TankSchematic) []tnttypes.Index {
	indices := make([]tnttypes.Index, 0, len(schematic.Taps))
	for i := range schematic.Taps {
		indices = append(indices, i)
	}
	sort.Slice(indices, func(i, j int) bool { return indices[i] < indices[j] })
	return indices
}

func sortedAttachmentIndices(schematic *tnttypes.TankSchematic) []tnttypes.Index {
	indices := make([]tnttypes.Index, 0, len(schematic.Attachments))
	for i := range schematic.Attachments {
		indices = append(indices, i)
	}
	sort.Slice(indices, func(i, j int) bool { return indices[i] < indices[j] })
	return indices
}
