// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2019 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package tntvalidate

import (
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ed25519"

	"github.com/bitmark-inc/tnt/account"
	"github.com/bitmark-inc/tnt/fault"
	"github.com/bitmark-inc/tnt/tntlookup"
	"github.com/bitmark-inc/tnt/tntparams"
	"github.com/bitmark-inc/tnt/tnttypes"
)

func newTestAccount(t *testing.T) *account.Account {
	t.Helper()
	pub, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	return &account.Account{PublicKey: pub}
}

func validSchematic(t *testing.T) *tnttypes.TankSchematic {
	t.Helper()
	funder := account.NewSingleAuthority(newTestAccount(t))

	s := tnttypes.NewSchematic(tnttypes.AssetID(1))
	s.AddTap(&tnttypes.Tap{
		OpenAuthority:    &funder,
		ConnectAuthority: &funder,
		DestructorTap:    true,
	})
	return s
}

func TestValidateTankAcceptsMinimalSchematic(t *testing.T) {
	s := validSchematic(t)
	lookup := tntlookup.New(tnttypes.TankID(1), s, nil)
	require.NoError(t, ValidateTank(s, lookup, tntparams.DefaultParameters()))
}

func TestValidateTankRejectsMissingEmergencyTap(t *testing.T) {
	s := tnttypes.NewSchematic(tnttypes.AssetID(1))
	lookup := tntlookup.New(tnttypes.TankID(1), s, nil)
	err := ValidateTank(s, lookup, tntparams.DefaultParameters())
	require.Error(t, err)
	require.True(t, fault.IsValidation(errorsUnwrapValidation(err)))
}

func TestValidateTankRejectsTrivialEmergencyAuthority(t *testing.T) {
	s := tnttypes.NewSchematic(tnttypes.AssetID(1))
	s.AddTap(&tnttypes.Tap{DestructorTap: true})
	lookup := tntlookup.New(tnttypes.TankID(1), s, nil)
	err := ValidateTank(s, lookup, tntparams.DefaultParameters())
	require.Error(t, err)
}

func TestValidateTankRejectsUnconnectableTap(t *testing.T) {
	s := validSchematic(t)
	s.AddTap(&tnttypes.Tap{Requirements: []tnttypes.Requirement{}})
	lookup := tntlookup.New(tnttypes.TankID(1), s, nil)
	err := ValidateTank(s, lookup, tntparams.DefaultParameters())
	require.Error(t, err)
}

func TestValidateTankRejectsDuplicateUniqueRequirement(t *testing.T) {
	s := validSchematic(t)
	conn := tnttypes.AccountConnection(tnttypes.AccountID("alice"))
	s.AddTap(&tnttypes.Tap{
		ConnectedConnection: &conn,
		Requirements: []tnttypes.Requirement{
			tnttypes.ImmediateFlowLimit{Limit: 10},
			tnttypes.ImmediateFlowLimit{Limit: 20},
		},
	})
	lookup := tntlookup.New(tnttypes.TankID(1), s, nil)
	err := ValidateTank(s, lookup, tntparams.DefaultParameters())
	require.Error(t, err)
}

func TestValidateTankRejectsNonIncreasingTimeLockTimes(t *testing.T) {
	s := validSchematic(t)
	conn := tnttypes.AccountConnection(tnttypes.AccountID("alice"))
	s.AddTap(&tnttypes.Tap{
		ConnectedConnection: &conn,
		Requirements: []tnttypes.Requirement{
			tnttypes.TimeLock{StartLocked: true, LockUnlockTimes: []int64{100, 50}},
		},
	})
	lookup := tntlookup.New(tnttypes.TankID(1), s, nil)
	err := ValidateTank(s, lookup, tntparams.DefaultParameters())
	require.Error(t, err)
}

func TestCalculateDepositSumsAccessoryCosts(t *testing.T) {
	s := validSchematic(t)
	conn := tnttypes.AccountConnection(tnttypes.AccountID("alice"))
	s.AddTap(&tnttypes.Tap{
		ConnectedConnection: &conn,
		Requirements: []tnttypes.Requirement{
			tnttypes.CumulativeFlowLimit{Limit: 10},
		},
	})
	params := tntparams.DefaultParameters()

	deposit := CalculateDeposit(s, params)
	expected := params.TankDeposit + params.DefaultTapRequirementDeposit + params.StatefulAccessoryDepositPremium
	require.Equal(t, expected, deposit)
}

func TestGetReferencedAccountsCollectsAuthoritiesAndConnections(t *testing.T) {
	s := validSchematic(t)
	reviewer := account.NewSingleAuthority(newTestAccount(t))
	conn := tnttypes.AccountConnection(tnttypes.AccountID("bob"))
	s.AddTap(&tnttypes.Tap{
		ConnectedConnection: &conn,
		Requirements: []tnttypes.Requirement{
			tnttypes.ReviewRequirement{Reviewer: reviewer, RequestLimit: 1},
		},
	})

	accounts := GetReferencedAccounts(s)
	require.True(t, accounts[tnttypes.AccountID("bob")])
	require.Len(t, accounts, 3) // emergency tap's funder, the reviewer, and bob
}

// errorsUnwrapValidation strips a *fault.PathError wrapper to reach the
// underlying classified error for fault.Is* assertions.
func errorsUnwrapValidation(err error) error {
	type unwrapper interface{ Unwrap() error }
	for {
		u, ok := err.(unwrapper)
		if !ok {
			return err
		}
		err = u.Unwrap()
	}
}
