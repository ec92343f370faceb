// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2019 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package tntquery implements the query evaluator (§4.E): the fourteen
// declarative actions an operation can run against a tank's mutable
// accessory state, each with a two-phase evaluate/apply contract. Dispatch
// on query kind is a type switch over the concrete query types with a
// default case that returns ErrWrongTargetKind, so an unhandled kind is an
// error rather than a silent fallthrough.
package tntquery

import "github.com/bitmark-inc/tnt/tnttypes"

// Tag is the stable wire tag for a tank_query_type variant - ordering fixed
// by §4.E's table, must never be renumbered once shipped.
type Tag uint8

const (
	ResetMeterTag Tag = iota
	ReconnectAttachmentTag
	CreateRequestForReviewTag
	ReviewRequestToOpenTag
	CancelRequestForReviewTag
	ConsumeApprovedRequestToOpenTag
	DocumentationStringTag
	CreateRequestForDelayTag
	VetoRequestInDelayTag
	CancelRequestInDelayTag
	ConsumeMaturedRequestToOpenTag
	RevealHashPreimageTag
	RedeemTicketToOpenTag
	ResetExchangeRequirementTag
)

// Query is the exhaustive interface every tank_query_type variant
// implements. TapOpenOnly reports whether tank_query must reject this kind
// (§6 tank_query: "assert no query declared tap-open-only").
type Query interface {
	Tag() Tag
	TapOpenOnly() bool
}

// ResetMeter zeroes an asset_flow_meter's running total.
type ResetMeter struct {
	Attachment tnttypes.Index
}

func (ResetMeter) Tag() Tag          { return ResetMeterTag }
func (ResetMeter) TapOpenOnly() bool { return false }

// ReconnectAttachment repoints an attachment_connect_authority's target
// attachment's destination.
type ReconnectAttachment struct {
	Attachment    tnttypes.Index
	NewConnection tnttypes.Connection
}

func (ReconnectAttachment) Tag() Tag          { return ReconnectAttachmentTag }
func (ReconnectAttachment) TapOpenOnly() bool { return false }

// CreateRequestForReview opens a new pending review request.
type CreateRequestForReview struct {
	Tap              tnttypes.Index
	RequirementIndex tnttypes.Index
	Amount           tnttypes.FlowLimit
	Comment          string
}

func (CreateRequestForReview) Tag() Tag          { return CreateRequestForReviewTag }
func (CreateRequestForReview) TapOpenOnly() bool { return false }

// ReviewRequestToOpen records the reviewer's decision on a pending request.
type ReviewRequestToOpen struct {
	Tap              tnttypes.Index
	RequirementIndex tnttypes.Index
	RequestID        uint64
	Approved         bool
}

func (ReviewRequestToOpen) Tag() Tag          { return ReviewRequestToOpenTag }
func (ReviewRequestToOpen) TapOpenOnly() bool { return false }

// CancelRequestForReview withdraws a pending review request.
type CancelRequestForReview struct {
	Tap              tnttypes.Index
	RequirementIndex tnttypes.Index
	RequestID        uint64
}

func (CancelRequestForReview) Tag() Tag          { return CancelRequestForReviewTag }
func (CancelRequestForReview) TapOpenOnly() bool { return false }

// ConsumeApprovedRequestToOpen is only valid inside a tap_open; the
// tap-flow evaluator, not this query, performs the actual release.
type ConsumeApprovedRequestToOpen struct {
	Tap              tnttypes.Index
	RequirementIndex tnttypes.Index
	RequestID        uint64
}

func (ConsumeApprovedRequestToOpen) Tag() Tag          { return ConsumeApprovedRequestToOpenTag }
func (ConsumeApprovedRequestToOpen) TapOpenOnly() bool { return true }

// DocumentationString targets the tank itself - its presence among a tank's
// evaluated queries is what documentation_requirement checks for.
type DocumentationString struct {
	Text string
}

func (DocumentationString) Tag() Tag          { return DocumentationStringTag }
func (DocumentationString) TapOpenOnly() bool { return false }

// CreateRequestForDelay opens a new pending delay request.
type CreateRequestForDelay struct {
	Tap              tnttypes.Index
	RequirementIndex tnttypes.Index
	Amount           tnttypes.FlowLimit
	Comment          string
}

func (CreateRequestForDelay) Tag() Tag          { return CreateRequestForDelayTag }
func (CreateRequestForDelay) TapOpenOnly() bool { return false }

// VetoRequestInDelay kills a pending delay request before it matures.
type VetoRequestInDelay struct {
	Tap              tnttypes.Index
	RequirementIndex tnttypes.Index
	RequestID        uint64
}

func (VetoRequestInDelay) Tag() Tag          { return VetoRequestInDelayTag }
func (VetoRequestInDelay) TapOpenOnly() bool { return false }

// CancelRequestInDelay withdraws a pending delay request.
type CancelRequestInDelay struct {
	Tap              tnttypes.Index
	RequirementIndex tnttypes.Index
	RequestID        uint64
}

func (CancelRequestInDelay) Tag() Tag          { return CancelRequestInDelayTag }
func (CancelRequestInDelay) TapOpenOnly() bool { return false }

// ConsumeMaturedRequestToOpen is only valid inside a tap_open.
type ConsumeMaturedRequestToOpen struct {
	Tap              tnttypes.Index
	RequirementIndex tnttypes.Index
	RequestID        uint64
}

func (ConsumeMaturedRequestToOpen) Tag() Tag          { return ConsumeMaturedRequestToOpenTag }
func (ConsumeMaturedRequestToOpen) TapOpenOnly() bool { return true }

// RevealHashPreimage is only valid inside a tap_open.
type RevealHashPreimage struct {
	Tap              tnttypes.Index
	RequirementIndex tnttypes.Index
	Preimage         []byte
}

func (RevealHashPreimage) Tag() Tag          { return RevealHashPreimageTag }
func (RevealHashPreimage) TapOpenOnly() bool { return true }

// RedeemTicketToOpen is only valid inside a tap_open; the ticket names its
// own target tap and requirement.
type RedeemTicketToOpen struct {
	Ticket tnttypes.Ticket
}

func (RedeemTicketToOpen) Tag() Tag          { return RedeemTicketToOpenTag }
func (RedeemTicketToOpen) TapOpenOnly() bool { return true }

// ResetExchangeRequirement zeroes an exchange_requirement's running total.
type ResetExchangeRequirement struct {
	Tap              tnttypes.Index
	RequirementIndex tnttypes.Index
}

func (ResetExchangeRequirement) Tag() Tag          { return ResetExchangeRequirementTag }
func (ResetExchangeRequirement) TapOpenOnly() bool { return false }
