// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2019 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package tntops implements the seven operations the tank/tap core accepts
// plus the connection_fund_account virtual op it emits (§6). Every operation
// is a plain struct carrying its declared fields, with an Apply method that
// runs the operation's evaluate/apply cycle against a *cow.TankBuffer -
// mirroring the wire-decode-then-evaluate shape the teacher's transaction
// evaluators use, generalized from one fixed record type to tnt's seven.
package tntops

import (
	"github.com/bitmark-inc/logger"

	"github.com/bitmark-inc/tnt/account"
	"github.com/bitmark-inc/tnt/cow"
	"github.com/bitmark-inc/tnt/fault"
	"github.com/bitmark-inc/tnt/tntlookup"
	"github.com/bitmark-inc/tnt/tnttypes"
)

var log = logger.New("tntops")

var (
	ErrTankNotFound                 = fault.NotFoundError("tank does not exist")
	ErrTapNotFound                  = fault.NotFoundError("tap does not exist")
	ErrNoEmergencyTap               = fault.ValidationError("tank has no valid emergency tap")
	ErrAuthorityMismatch            = fault.AuthorityError("declared authority does not match the tank's")
	ErrCannotRemoveEmergencyTap     = fault.ValidationError("cannot remove the emergency tap")
	ErrDuplicateIndex               = fault.ValidationError("index appears in both a remove set and a replace set")
	ErrDepositMismatch              = fault.StateError("declared deposit does not match computed deposit")
	ErrTankNotEmpty                 = fault.TapFlowError("tank balance is not zero")
	ErrNotDestructor                = fault.ValidationError("tap is not a destructor tap")
	ErrTapReferencesOtherTank       = fault.ValidationError("tap_to_open/tap_to_connect must name this operation's tank")
	ErrClearRequiresNewConnection   = fault.ValidationError("clear_connect_authority requires a new connection")
	ErrTapOpenOnlyQuery             = fault.QueryError("tank_query may not include a tap-open-only query")
	ErrDuplicateQueryTarget         = fault.QueryError("more than one query in this operation targets the same accessory")
	ErrAuthorityNotDeclared         = fault.AuthorityError("a query required an authority absent from required_authorities")
	ErrAuthorityUnused              = fault.AuthorityError("a required_authorities entry was never used")
	ErrUnexpectedQueries            = fault.StateError("queries supplied alongside a fast-path empty tank destroy")
	ErrTapOpenCountMismatch         = fault.StateError("completed flow count does not match declared tap_open_count")
	ErrDestinationNeedsTankContext  = fault.ConnectionError("funding_destination needs a tank to resolve against")
	ErrAmountNotPositive            = fault.ValidationError("amount must be positive")
	ErrCascadingOpenNotAllowed      = fault.TapFlowError("account_fund_connection does not allow cascading tap opens")
	ErrFastPathAuthorityMismatch    = fault.AuthorityError("fast-path destructor tap open must declare only the tap's own open authority")
	ErrFastPathReleaseAmountNotZero = fault.ValidationError("fast-path destructor tap open release amount must be 0 or unlimited")
)

// ConnectionFundAccount is the virtual op emitted whenever asset flowing
// through a connection chain reaches an account_id terminal (§6).
type ConnectionFundAccount struct {
	ReceivingAccount tnttypes.AccountID
	AmountReceived   int64
	AssetPath        []tnttypes.Connection
}

// tankLookupFn adapts a buffer into the tntlookup.TankLookupFunc contract,
// so schematic validation during tank_create/tank_update can resolve
// cross-tank references against whatever this operation's buffer has staged.
func tankLookupFn(buffer *cow.TankBuffer) tntlookup.TankLookupFunc {
	return func(id tnttypes.TankID) (*tnttypes.TankSchematic, bool) {
		tank, ok := buffer.GetTank(id)
		if !ok {
			return nil, false
		}
		return tank.Schematic, true
	}
}

// authorityTracker implements the "authority closure" invariant (§8): every
// authority a query evaluation returns must be present in the operation's
// declared required_authorities, and every declared authority must be used
// by at least one query before the operation may apply.
type authorityTracker struct {
	required []account.Authority
	used     []bool
}

func newAuthorityTracker(required []account.Authority) *authorityTracker {
	return &authorityTracker{required: required, used: make([]bool, len(required))}
}

func (t *authorityTracker) markUsed(authorities []account.Authority) error {
	for _, a := range authorities {
		found := false
		for i, r := range t.required {
			if r.Equal(a) {
				t.used[i] = true
				found = true
				break
			}
		}
		if !found {
			return ErrAuthorityNotDeclared
		}
	}
	return nil
}

func (t *authorityTracker) checkAllUsed() error {
	for _, used := range t.used {
		if !used {
			return ErrAuthorityUnused
		}
	}
	return nil
}

// indexSet builds a lookup set of indices, used for the disjointness checks
// tank_update runs over its remove/replace pairs.
func indexSet(indices []tnttypes.Index) map[tnttypes.Index]bool {
	set := make(map[tnttypes.Index]bool, len(indices))
	for _, i := range indices {
		set[i] = true
	}
	return set
}

func keysOf(m map[tnttypes.Index]*tnttypes.Tap) []tnttypes.Index {
	keys := make([]tnttypes.Index, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	return keys
}

func attachmentKeysOf(m map[tnttypes.Index]tnttypes.Attachment) []tnttypes.Index {
	keys := make([]tnttypes.Index, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	return keys
}

func assertDisjoint(remove, replace []tnttypes.Index) error {
	replaced := indexSet(replace)
	for _, i := range remove {
		if replaced[i] {
			return ErrDuplicateIndex
		}
	}
	return nil
}
