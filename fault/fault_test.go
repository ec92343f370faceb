// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2019 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package fault_test

import (
	"testing"

	"github.com/bitmark-inc/tnt/fault"
)

func TestErrorClassification(t *testing.T) {
	errorList := []struct {
		err        error
		validation bool
		authority  bool
		lookup     bool
		connection bool
		query      bool
		tapFlow    bool
		state      bool
	}{
		{fault.ValidationError("v"), true, false, false, false, false, false, false},
		{fault.AuthorityError("a"), false, true, false, false, false, false, false},
		{fault.LookupError("l"), false, false, true, false, false, false, false},
		{fault.ConnectionError("c"), false, false, false, true, false, false, false},
		{fault.QueryError("q"), false, false, false, false, true, false, false},
		{fault.TapFlowError("t"), false, false, false, false, false, true, false},
		{fault.StateError("s"), false, false, false, false, false, false, true},
	}

	for i, e := range errorList {
		if fault.IsValidation(e.err) != e.validation {
			t.Errorf("%d: expected validation == %v for err = %v", i, e.validation, e.err)
		}
		if fault.IsAuthority(e.err) != e.authority {
			t.Errorf("%d: expected authority == %v for err = %v", i, e.authority, e.err)
		}
		if fault.IsLookup(e.err) != e.lookup {
			t.Errorf("%d: expected lookup == %v for err = %v", i, e.lookup, e.err)
		}
		if fault.IsConnection(e.err) != e.connection {
			t.Errorf("%d: expected connection == %v for err = %v", i, e.connection, e.err)
		}
		if fault.IsQuery(e.err) != e.query {
			t.Errorf("%d: expected query == %v for err = %v", i, e.query, e.err)
		}
		if fault.IsTapFlow(e.err) != e.tapFlow {
			t.Errorf("%d: expected tapFlow == %v for err = %v", i, e.tapFlow, e.err)
		}
		if fault.IsState(e.err) != e.state {
			t.Errorf("%d: expected state == %v for err = %v", i, e.state, e.err)
		}
	}
}

func TestAccessoryPath(t *testing.T) {
	path := fault.AccessoryPath{}.WithTank(7).WithTap(2).WithRequirement(1)
	err := fault.AtPath(fault.TapFlowError("locked"), path)
	if nil == err {
		t.Fatal("expected wrapped error")
	}
	if "tank:7 tap:2 requirement:1: locked" != err.Error() {
		t.Errorf("unexpected message: %s", err.Error())
	}
}
