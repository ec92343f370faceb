// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2019 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package tntquery

import (
	"crypto/sha256"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ed25519"

	"github.com/bitmark-inc/tnt/account"
	"github.com/bitmark-inc/tnt/tnttypes"
)

func newAuthority(t *testing.T) account.Authority {
	t.Helper()
	pub, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	return account.NewSingleAuthority(&account.Account{PublicKey: pub})
}

func tankWithEmergencyTap(t *testing.T, emergencyAuth account.Authority) *tnttypes.TankObject {
	t.Helper()
	s := tnttypes.NewSchematic(tnttypes.AssetID(1))
	s.AddTap(&tnttypes.Tap{OpenAuthority: &emergencyAuth, ConnectAuthority: &emergencyAuth, DestructorTap: true})
	return tnttypes.NewTankObject(s, 0, 0)
}

func TestResetMeterRequiresNonZeroAmount(t *testing.T) {
	emergency := newAuthority(t)
	tank := tankWithEmergencyTap(t, emergency)
	idx := tank.Schematic.AddAttachment(tnttypes.AssetFlowMeter{
		AssetType:   tnttypes.AssetID(1),
		Destination: tnttypes.AccountConnection("alice"),
	})

	e := NewEvaluator(tnttypes.TankID(1), tank, 100, nil)
	_, err := e.EvaluateQuery(ResetMeter{Attachment: idx})
	require.Error(t, err)

	state := tank.GetOrCreateState(tnttypes.ForAttachment(idx))
	state.AssetFlowMeter = &tnttypes.AssetFlowMeterState{MeteredAmount: 50}

	auths, err := e.EvaluateQuery(ResetMeter{Attachment: idx})
	require.NoError(t, err)
	require.Len(t, auths, 1)
	require.True(t, auths[0].Equal(emergency))

	require.NoError(t, e.ApplyQueries())
	st, ok := tank.GetState(tnttypes.ForAttachment(idx))
	require.True(t, ok)
	require.EqualValues(t, 0, st.AssetFlowMeter.MeteredAmount)
}

func TestRevealHashPreimageVerifiesDigest(t *testing.T) {
	emergency := newAuthority(t)
	tank := tankWithEmergencyTap(t, emergency)
	preimage := []byte("open sesame")
	sum := sha256.Sum256(preimage)
	tap := &tnttypes.Tap{
		ConnectAuthority: &emergency,
		Requirements: []tnttypes.Requirement{
			tnttypes.HashPreimageRequirement{Hash: tnttypes.Hash{Kind: tnttypes.HashSHA256, Digest: sum[:]}},
		},
	}
	tapIndex := tank.Schematic.AddTap(tap)

	e := NewEvaluator(tnttypes.TankID(1), tank, 0, nil)
	_, err := e.EvaluateQuery(RevealHashPreimage{Tap: tapIndex, Preimage: []byte("wrong")})
	require.Equal(t, ErrPreimageHashMismatch, err)

	_, err = e.EvaluateQuery(RevealHashPreimage{Tap: tapIndex, Preimage: preimage})
	require.NoError(t, err)
	require.NoError(t, e.ApplyQueries())
}

func TestReviewRequestWorkflow(t *testing.T) {
	emergency := newAuthority(t)
	reviewer := newAuthority(t)
	tank := tankWithEmergencyTap(t, emergency)
	tap := &tnttypes.Tap{
		ConnectAuthority: &emergency,
		Requirements: []tnttypes.Requirement{
			tnttypes.ReviewRequirement{Reviewer: reviewer, RequestLimit: 1},
		},
	}
	tapIndex := tank.Schematic.AddTap(tap)

	// Every query evaluates against the tank as earlier sessions left it, so
	// the request is created, reviewed and consumed in three sessions.
	create := NewEvaluator(tnttypes.TankID(1), tank, 0, nil)
	_, err := create.EvaluateQuery(CreateRequestForReview{Tap: tapIndex, RequirementIndex: 0, Amount: tnttypes.AmountLimit(10)})
	require.NoError(t, err)
	require.NoError(t, create.ApplyQueries())

	review := NewEvaluator(tnttypes.TankID(1), tank, 0, nil)
	_, err = review.EvaluateQuery(ReviewRequestToOpen{Tap: tapIndex, RequirementIndex: 0, RequestID: 0, Approved: true})
	require.NoError(t, err)
	require.NoError(t, review.ApplyQueries())

	e := NewEvaluator(tnttypes.TankID(1), tank, 0, nil)
	_, err = e.EvaluateQuery(ConsumeApprovedRequestToOpen{Tap: tapIndex, RequirementIndex: 0, RequestID: 0})
	require.NoError(t, err)

	require.NoError(t, e.ApplyQueries())

	state, ok := tank.GetState(tnttypes.ForRequirement(tapIndex, 0))
	require.True(t, ok)
	require.True(t, state.Review.PendingRequests[0].Approved)
}

func TestReviewRequestRejectionErasesRequest(t *testing.T) {
	emergency := newAuthority(t)
	reviewer := newAuthority(t)
	tank := tankWithEmergencyTap(t, emergency)
	tap := &tnttypes.Tap{
		ConnectAuthority: &emergency,
		Requirements:     []tnttypes.Requirement{tnttypes.ReviewRequirement{Reviewer: reviewer}},
	}
	tapIndex := tank.Schematic.AddTap(tap)

	create := NewEvaluator(tnttypes.TankID(1), tank, 0, nil)
	_, err := create.EvaluateQuery(CreateRequestForReview{Tap: tapIndex, RequirementIndex: 0, Amount: tnttypes.AmountLimit(5)})
	require.NoError(t, err)
	require.NoError(t, create.ApplyQueries())

	e := NewEvaluator(tnttypes.TankID(1), tank, 0, nil)
	_, err = e.EvaluateQuery(ReviewRequestToOpen{Tap: tapIndex, RequirementIndex: 0, RequestID: 0, Approved: false})
	require.NoError(t, err)
	require.NoError(t, e.ApplyQueries())

	state, ok := tank.GetState(tnttypes.ForRequirement(tapIndex, 0))
	require.True(t, ok)
	require.Empty(t, state.Review.PendingRequests)
}

func TestRedeemTicketToOpenChecksNumberAndTarget(t *testing.T) {
	emergency := newAuthority(t)
	signer := newAuthority(t)
	tank := tankWithEmergencyTap(t, emergency)
	tap := &tnttypes.Tap{
		ConnectAuthority: &emergency,
		Requirements:     []tnttypes.Requirement{tnttypes.TicketRequirement{TicketSigner: signer}},
	}
	tapIndex := tank.Schematic.AddTap(tap)

	e := NewEvaluator(tnttypes.TankID(1), tank, 0, nil)

	wrongTarget := tnttypes.Ticket{TankID: tnttypes.TankID(2), TapIndex: tapIndex, RequirementIndex: 0}
	_, err := e.EvaluateQuery(RedeemTicketToOpen{Ticket: wrongTarget})
	require.Equal(t, ErrTicketTargetMismatch, err)

	wrongNumber := tnttypes.Ticket{TankID: tnttypes.TankID(1), TapIndex: tapIndex, RequirementIndex: 0, TicketNumber: 1}
	_, err = e.EvaluateQuery(RedeemTicketToOpen{Ticket: wrongNumber})
	require.Equal(t, ErrTicketNumberMismatch, err)

	first := tnttypes.Ticket{TankID: tnttypes.TankID(1), TapIndex: tapIndex, RequirementIndex: 0, TicketNumber: 0}
	auths, err := e.EvaluateQuery(RedeemTicketToOpen{Ticket: first})
	require.NoError(t, err)
	require.True(t, auths[0].Equal(signer))
	require.NoError(t, e.ApplyQueries())

	state, ok := tank.GetState(tnttypes.ForRequirement(tapIndex, 0))
	require.True(t, ok)
	require.EqualValues(t, 1, state.Ticket.TicketsConsumed)
}

func TestResetExchangeRequirementNeedsMeterZero(t *testing.T) {
	emergency := newAuthority(t)
	tank := tankWithEmergencyTap(t, emergency)
	meterIndex := tank.Schematic.AddAttachment(tnttypes.AssetFlowMeter{AssetType: tnttypes.AssetID(1), Destination: tnttypes.AccountConnection("alice")})
	tap := &tnttypes.Tap{
		ConnectAuthority: &emergency,
		Requirements: []tnttypes.Requirement{
			tnttypes.ExchangeRequirement{MeterID: tnttypes.AttachmentID{Index: meterIndex}, ReleasePerTick: 1, TickAmount: 1},
		},
	}
	tapIndex := tank.Schematic.AddTap(tap)

	meterState := tank.GetOrCreateState(tnttypes.ForAttachment(meterIndex))
	meterState.AssetFlowMeter = &tnttypes.AssetFlowMeterState{MeteredAmount: 5}
	exState := tank.GetOrCreateState(tnttypes.ForRequirement(tapIndex, 0))
	exState.Exchange = &tnttypes.ExchangeRequirementState{AmountReleased: 3}

	e := NewEvaluator(tnttypes.TankID(1), tank, 0, nil)
	_, err := e.EvaluateQuery(ResetExchangeRequirement{Tap: tapIndex, RequirementIndex: 0})
	require.Equal(t, ErrMeterNotZero, err)

	meterState.AssetFlowMeter.MeteredAmount = 0
	auths, err := e.EvaluateQuery(ResetExchangeRequirement{Tap: tapIndex, RequirementIndex: 0})
	require.NoError(t, err)
	require.True(t, auths[0].Equal(emergency))
	require.NoError(t, e.ApplyQueries())
	require.EqualValues(t, 0, exState.Exchange.AmountReleased)
}

func TestTargetQueriesAndTankQueriesIndexing(t *testing.T) {
	emergency := newAuthority(t)
	tank := tankWithEmergencyTap(t, emergency)

	e := NewEvaluator(tnttypes.TankID(1), tank, 0, nil)
	_, err := e.EvaluateQuery(DocumentationString{Text: "memo"})
	require.NoError(t, err)
	require.Len(t, e.TankQueries(), 1)

	meterIndex := tank.Schematic.AddAttachment(tnttypes.AssetFlowMeter{AssetType: tnttypes.AssetID(1), Destination: tnttypes.AccountConnection("alice")})
	tank.GetOrCreateState(tnttypes.ForAttachment(meterIndex)).AssetFlowMeter = &tnttypes.AssetFlowMeterState{MeteredAmount: 1}
	_, err = e.EvaluateQuery(ResetMeter{Attachment: meterIndex})
	require.NoError(t, err)
	require.Len(t, e.TargetQueries(tnttypes.ForAttachment(meterIndex)), 1)
}

func TestApplyQueriesRejectsDoubleApply(t *testing.T) {
	emergency := newAuthority(t)
	tank := tankWithEmergencyTap(t, emergency)
	e := NewEvaluator(tnttypes.TankID(1), tank, 0, nil)
	require.NoError(t, e.ApplyQueries())
	require.Equal(t, ErrAlreadyApplied, e.ApplyQueries())
	_, err := e.EvaluateQuery(DocumentationString{Text: "too late"})
	require.Equal(t, ErrAlreadyApplied, err)
}
