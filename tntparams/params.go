// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2019 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package tntparams defines the chain-wide configuration the tank/tap core
// consumes. It is deliberately the only channel by which global state
// enters the core (§9 design notes: "there is no implicit process-wide
// state") - every evaluator takes a Parameters argument rather than
// reaching for a package-level singleton, the same discipline bitmarkd's
// reservoir package uses for its globalData rather than scattering mutable
// package vars across the tree.
package tntparams

import "github.com/bitmark-inc/tnt/tnttypes"

// AccessoryTag names an attachment or requirement variant for the purpose
// of an override deposit - distinct from tnttypes' wire tags because a
// deposit override is keyed across both accessory kinds in one namespace.
type AccessoryTag string

const (
	TagAssetFlowMeter             AccessoryTag = "asset_flow_meter"
	TagTapOpener                  AccessoryTag = "tap_opener"
	TagAttachmentConnectAuthority AccessoryTag = "attachment_connect_authority"

	TagImmediateFlowLimit      AccessoryTag = "immediate_flow_limit"
	TagCumulativeFlowLimit     AccessoryTag = "cumulative_flow_limit"
	TagPeriodicFlowLimit       AccessoryTag = "periodic_flow_limit"
	TagTimeLock                AccessoryTag = "time_lock"
	TagMinimumTankLevel        AccessoryTag = "minimum_tank_level"
	TagReviewRequirement       AccessoryTag = "review_requirement"
	TagDocumentationRequirement AccessoryTag = "documentation_requirement"
	TagDelayRequirement        AccessoryTag = "delay_requirement"
	TagHashPreimageRequirement AccessoryTag = "hash_preimage_requirement"
	TagTicketRequirement       AccessoryTag = "ticket_requirement"
	TagExchangeRequirement     AccessoryTag = "exchange_requirement"
)

// Parameters is the TNT parameters collaborator contract (§6): limits and
// deposit pricing supplied by the host's global_properties.
type Parameters struct {
	MaxConnectionChainLength      int
	MaxTapsToOpen                 int
	TankDeposit                   int64
	DefaultTapRequirementDeposit  int64
	DefaultTankAttachmentDeposit  int64
	StatefulAccessoryDepositPremium int64
	OverrideDeposits              map[AccessoryTag]int64
}

// DefaultParameters returns sane defaults suitable for tests and for a host
// that has not yet customized its chain parameters.
func DefaultParameters() Parameters {
	return Parameters{
		MaxConnectionChainLength:        4,
		MaxTapsToOpen:                   8,
		TankDeposit:                     100_000_000,
		DefaultTapRequirementDeposit:    10_000_000,
		DefaultTankAttachmentDeposit:    10_000_000,
		StatefulAccessoryDepositPremium: 5_000_000,
		OverrideDeposits:                map[AccessoryTag]int64{},
	}
}

// AttachmentDeposit resolves the deposit charged for an attachment, honoring
// OverrideDeposits before falling back to the default + stateful premium.
func (p Parameters) AttachmentDeposit(tag AccessoryTag, hasState bool) int64 {
	if amount, ok := p.OverrideDeposits[tag]; ok {
		return amount
	}
	deposit := p.DefaultTankAttachmentDeposit
	if hasState {
		deposit += p.StatefulAccessoryDepositPremium
	}
	return deposit
}

// RequirementDeposit resolves the deposit charged for a requirement.
func (p Parameters) RequirementDeposit(tag AccessoryTag, hasState bool) int64 {
	if amount, ok := p.OverrideDeposits[tag]; ok {
		return amount
	}
	deposit := p.DefaultTapRequirementDeposit
	if hasState {
		deposit += p.StatefulAccessoryDepositPremium
	}
	return deposit
}

// AttachmentTagOf maps a concrete attachment value to its AccessoryTag.
func AttachmentTagOf(a tnttypes.Attachment) AccessoryTag {
	switch a.Tag() {
	case tnttypes.AssetFlowMeterTag:
		return TagAssetFlowMeter
	case tnttypes.TapOpenerTag:
		return TagTapOpener
	case tnttypes.AttachmentConnectAuthorityTag:
		return TagAttachmentConnectAuthority
	default:
		return ""
	}
}

// RequirementTagOf maps a concrete requirement value to its AccessoryTag.
func RequirementTagOf(r tnttypes.Requirement) AccessoryTag {
	switch r.Tag() {
	case tnttypes.ImmediateFlowLimitTag:
		return TagImmediateFlowLimit
	case tnttypes.CumulativeFlowLimitTag:
		return TagCumulativeFlowLimit
	case tnttypes.PeriodicFlowLimitTag:
		return TagPeriodicFlowLimit
	case tnttypes.TimeLockTag:
		return TagTimeLock
	case tnttypes.MinimumTankLevelTag:
		return TagMinimumTankLevel
	case tnttypes.ReviewRequirementTag:
		return TagReviewRequirement
	case tnttypes.DocumentationRequirementTag:
		return TagDocumentationRequirement
	case tnttypes.DelayRequirementTag:
		return TagDelayRequirement
	case tnttypes.HashPreimageRequirementTag:
		return TagHashPreimageRequirement
	case tnttypes.TicketRequirementTag:
		return TagTicketRequirement
	case tnttypes.ExchangeRequirementTag:
		return TagExchangeRequirement
	default:
		return ""
	}
}

// RequirementHasState reports whether a requirement variant has an associated state
// type - used to decide whether the stateful premium applies.
func RequirementHasState(r tnttypes.Requirement) bool {
	switch r.Tag() {
	case tnttypes.CumulativeFlowLimitTag, tnttypes.PeriodicFlowLimitTag,
		tnttypes.ReviewRequirementTag, tnttypes.DelayRequirementTag,
		tnttypes.TicketRequirementTag, tnttypes.ExchangeRequirementTag:
		return true
	default:
		return false
	}
}

// AttachmentHasState reports whether an attachment variant has an
// associated state type.
func AttachmentHasState(a tnttypes.Attachment) bool {
	return tnttypes.AssetFlowMeterTag == a.Tag()
}
