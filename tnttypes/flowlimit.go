// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2019 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package tnttypes

// FlowLimit is the sum type unlimited | amount:i64 used throughout the
// requirement utility (§3 Asset flow limit). Ordering: unlimited is the
// maximum; otherwise compare by Amount.
type FlowLimit struct {
	unlimited bool
	amount    int64
}

// Unlimited - the maximum possible flow limit.
func Unlimited() FlowLimit {
	return FlowLimit{unlimited: true}
}

// AmountLimit - a bounded flow limit of amount (amount may be 0, never
// negative - callers must clamp before constructing).
func AmountLimit(amount int64) FlowLimit {
	if amount < 0 {
		amount = 0
	}
	return FlowLimit{amount: amount}
}

// IsUnlimited reports whether this limit is the unlimited sentinel.
func (l FlowLimit) IsUnlimited() bool {
	return l.unlimited
}

// Amount returns the bounded amount; valid only when !IsUnlimited().
func (l FlowLimit) Amount() int64 {
	return l.amount
}

// IsZero reports a bounded limit of exactly zero - used by callers to
// short-circuit max_tap_release.
func (l FlowLimit) IsZero() bool {
	return !l.unlimited && 0 == l.amount
}

// Min returns the smaller of two limits: unlimited never wins over a
// bounded value.
func Min(a, b FlowLimit) FlowLimit {
	if a.unlimited {
		return b
	}
	if b.unlimited {
		return a
	}
	if a.amount < b.amount {
		return a
	}
	return b
}

// Sub subtracts a bounded amount from a limit, clamping at zero. Unlimited
// minus anything remains unlimited.
func (l FlowLimit) Sub(amount int64) FlowLimit {
	if l.unlimited {
		return l
	}
	remaining := l.amount - amount
	if remaining < 0 {
		remaining = 0
	}
	return AmountLimit(remaining)
}

// Less reports whether l sorts strictly before other.
func (l FlowLimit) Less(other FlowLimit) bool {
	if l.unlimited {
		return false
	}
	if other.unlimited {
		return true
	}
	return l.amount < other.amount
}
