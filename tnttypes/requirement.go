// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2019 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package tnttypes

import "github.com/bitmark-inc/tnt/account"

// RequirementTag is the stable wire tag for a tap_requirement variant -
// ordering fixed by §3's requirement table, must never be renumbered.
type RequirementTag uint8

const (
	ImmediateFlowLimitTag RequirementTag = iota
	CumulativeFlowLimitTag
	PeriodicFlowLimitTag
	TimeLockTag
	MinimumTankLevelTag
	ReviewRequirementTag
	DocumentationRequirementTag
	DelayRequirementTag
	HashPreimageRequirementTag
	TicketRequirementTag
	ExchangeRequirementTag
)

// Requirement is the exhaustive interface every tap_requirement variant
// implements. Variants with no associated state simply have no matching
// entry in a tank's accessory_states map.
type Requirement interface {
	Tag() RequirementTag
	Unique() bool
}

// ImmediateFlowLimit caps every single release at limit, with no memory
// across releases.
type ImmediateFlowLimit struct {
	Limit int64
}

func (ImmediateFlowLimit) Tag() RequirementTag { return ImmediateFlowLimitTag }
func (ImmediateFlowLimit) Unique() bool        { return true }

// CumulativeFlowLimit caps the running total ever released.
type CumulativeFlowLimit struct {
	Limit int64
}

func (CumulativeFlowLimit) Tag() RequirementTag { return CumulativeFlowLimitTag }
func (CumulativeFlowLimit) Unique() bool        { return true }

// CumulativeFlowLimitState tracks the running total.
type CumulativeFlowLimitState struct {
	AmountReleased int64
}

// PeriodicFlowLimit resets its cumulative cap every period_duration_sec.
type PeriodicFlowLimit struct {
	PeriodDurationSec int64
	Limit             int64
}

func (PeriodicFlowLimit) Tag() RequirementTag { return PeriodicFlowLimitTag }
func (PeriodicFlowLimit) Unique() bool        { return true }

// PeriodicFlowLimitState tracks which period was last active and how much
// of it has been spent.
type PeriodicFlowLimitState struct {
	PeriodNum      int64
	AmountReleased int64
}

// TimeLock blocks (or unblocks) the tap entirely at a sequence of known
// times, alternating lock state at each entry of LockUnlockTimes.
type TimeLock struct {
	StartLocked     bool
	LockUnlockTimes []int64 // strictly increasing unix seconds
}

func (TimeLock) Tag() RequirementTag { return TimeLockTag }
func (TimeLock) Unique() bool        { return true }

// MinimumTankLevel refuses to release below a floor balance.
type MinimumTankLevel struct {
	MinimumLevel int64
}

func (MinimumTankLevel) Tag() RequirementTag { return MinimumTankLevelTag }
func (MinimumTankLevel) Unique() bool        { return true }

// ReviewRequirement gates the tap behind a reviewer's approval of each
// withdrawal request.
type ReviewRequirement struct {
	Reviewer     account.Authority
	RequestLimit uint32
}

func (ReviewRequirement) Tag() RequirementTag { return ReviewRequirementTag }
func (ReviewRequirement) Unique() bool        { return false }

// ReviewRequest is a single pending (or decided) review.
type ReviewRequest struct {
	Amount   FlowLimit
	Comment  string
	Approved bool
}

// ReviewRequirementState holds the requirement's pending requests, keyed by
// the monotonically increasing id handed out at creation.
type ReviewRequirementState struct {
	RequestCounter  uint64
	PendingRequests map[uint64]*ReviewRequest
}

// DocumentationRequirement gates the tap behind the presence of a
// documentation_string query in the same operation - no state of its own.
type DocumentationRequirement struct{}

func (DocumentationRequirement) Tag() RequirementTag { return DocumentationRequirementTag }
func (DocumentationRequirement) Unique() bool        { return false }

// DelayRequirement gates the tap behind a mandatory waiting period after
// the request is made, optionally vetoable before it matures.
type DelayRequirement struct {
	VetoAuthority   *account.Authority
	DelayPeriodSec  int64
	RequestLimit    uint32
}

func (DelayRequirement) Tag() RequirementTag { return DelayRequirementTag }
func (DelayRequirement) Unique() bool        { return false }

// DelayRequest is a single pending withdrawal waiting out its delay.
type DelayRequest struct {
	DelayPeriodEnd int64
	Amount         FlowLimit
	Comment        string
}

// DelayRequirementState holds the requirement's pending requests.
type DelayRequirementState struct {
	RequestCounter  uint64
	PendingRequests map[uint64]*DelayRequest
}

// HashKind names the supported digest algorithms for a preimage reveal.
type HashKind uint8

const (
	HashSHA256 HashKind = iota
	HashRIPEMD160
	HashHash160 // RIPEMD160(SHA256(x))
)

// Hash pairs an algorithm with its digest bytes.
type Hash struct {
	Kind   HashKind
	Digest []byte
}

// HashPreimageRequirement gates the tap behind revealing a value whose hash
// matches Hash.
type HashPreimageRequirement struct {
	Hash         Hash
	PreimageSize *uint32 // optional exact-length constraint
}

func (HashPreimageRequirement) Tag() RequirementTag { return HashPreimageRequirementTag }
func (HashPreimageRequirement) Unique() bool        { return true }

// TicketRequirement gates the tap behind a ticket signed by TicketSigner -
// each ticket carries its own max_withdrawal and a monotonically increasing
// ticket_number that must equal the requirement's redemption counter.
type TicketRequirement struct {
	TicketSigner account.Authority
}

func (TicketRequirement) Tag() RequirementTag { return TicketRequirementTag }
func (TicketRequirement) Unique() bool        { return true }

// TicketRequirementState tracks how many tickets have been redeemed.
type TicketRequirementState struct {
	TicketsConsumed uint64
}

// Ticket is the signed authorization redeemed by redeem_ticket_to_open.
type Ticket struct {
	TankID          TankID
	TapIndex        Index
	RequirementIndex Index
	TicketNumber    uint64
	MaxWithdrawal   FlowLimit
	Signature       account.Signature
}

// ExchangeRequirement releases asset only as fast as a (possibly remote)
// meter accumulates ticks: release_per_tick for every tick_amount metered.
type ExchangeRequirement struct {
	MeterID        AttachmentID
	ReleasePerTick int64
	TickAmount     int64
	ResetAuthority *account.Authority
}

func (ExchangeRequirement) Tag() RequirementTag { return ExchangeRequirementTag }
func (ExchangeRequirement) Unique() bool        { return true }

// ExchangeRequirementState tracks the running total released against the
// meter's accumulation.
type ExchangeRequirementState struct {
	AmountReleased int64
}
