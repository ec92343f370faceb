// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2019 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package cow

import (
	"github.com/bitmark-inc/tnt/tankstore"
	"github.com/bitmark-inc/tnt/tntparams"
	"github.com/bitmark-inc/tnt/tnttypes"
)

// TankBuffer is the concrete copy-on-write session every tnt operation
// evaluator runs its evaluate/apply pair against. It wraps a tankstore.Database
// so evaluators see one consistent, locally-mutable view of every tank and
// balance they touch during one operation - and so several operations
// packed into the same block can share a single buffer and see each other's
// staged effects before anything is written back.
//
// Object creation is the one thing this buffer does not defer: a tank_create
// needs a stable id to hand back to the caller in the same operation, so
// CreateTank asks the backing database for a real id immediately and then
// stages the object for further edits the same way a fetched tank would be.
// Everything else - modify, remove, balance adjustment, the applied-operation
// log - stays purely staged until Commit.
type TankBuffer struct {
	db            tankstore.Database
	tanks         *Store[tnttypes.TankID, *tnttypes.TankObject]
	balanceDeltas map[balanceDeltaKey]int64
	pendingOps    []tankstore.AppliedOperation
}

type balanceDeltaKey struct {
	account tnttypes.AccountID
	asset   tnttypes.AssetID
}

// NewTankBuffer opens a staging session reading through db.
func NewTankBuffer(db tankstore.Database) *TankBuffer {
	return &TankBuffer{
		db: db,
		tanks: NewStore[tnttypes.TankID, *tnttypes.TankObject](
			db.GetTank,
			func(t *tnttypes.TankObject) *tnttypes.TankObject { return t.Clone() },
		),
		balanceDeltas: make(map[balanceDeltaKey]int64),
	}
}

// GetTank returns the staged clone of the tank at id, reading through to
// the backing database on first touch.
func (b *TankBuffer) GetTank(id tnttypes.TankID) (*tnttypes.TankObject, bool) {
	return b.tanks.Get(id)
}

// ModifyTank runs fn against the staged clone of the tank at id.
func (b *TankBuffer) ModifyTank(id tnttypes.TankID, fn func(*tnttypes.TankObject)) bool {
	return b.tanks.Modify(id, fn)
}

// RemoveTank stages id's removal.
func (b *TankBuffer) RemoveTank(id tnttypes.TankID) {
	b.tanks.Remove(id)
}

// CreateTank asks the backing database for a new tank id and stages obj for
// further edits under it within this buffer.
func (b *TankBuffer) CreateTank(obj *tnttypes.TankObject) tnttypes.TankID {
	id := b.db.CreateTank(obj)
	b.tanks.Create(id, obj.Clone())
	return id
}

// HeadBlockTime reads straight through - the clock never needs staging.
func (b *TankBuffer) HeadBlockTime() int64 {
	return b.db.HeadBlockTime()
}

// GetBalance returns the backing balance plus any delta staged in this
// buffer, so a sequence of operations in one block sees its own spends.
func (b *TankBuffer) GetBalance(account tnttypes.AccountID, asset tnttypes.AssetID) int64 {
	return b.db.GetBalance(account, asset) + b.balanceDeltas[balanceDeltaKey{account, asset}]
}

// AdjustBalance stages a balance delta, rejecting the call outright if it
// would overdraw the account once every prior staged delta in this buffer
// is accounted for.
func (b *TankBuffer) AdjustBalance(account tnttypes.AccountID, asset tnttypes.AssetID, delta int64) error {
	current := b.GetBalance(account, asset)
	if delta < 0 && current < -delta {
		return tankstore.ErrInsufficientBalance
	}
	b.balanceDeltas[balanceDeltaKey{account, asset}] += delta
	return nil
}

// IsAuthorizedAsset reads straight through - authorization flags are not
// something a single operation can stage changes to.
func (b *TankBuffer) IsAuthorizedAsset(account tnttypes.AccountID, asset tnttypes.AssetID) bool {
	return b.db.IsAuthorizedAsset(account, asset)
}

// GetGlobalProperties reads straight through.
func (b *TankBuffer) GetGlobalProperties() tntparams.Parameters {
	return b.db.GetGlobalProperties()
}

// PushAppliedOperation stages a trace record to be pushed once Commit runs,
// so a rolled-back buffer never reports operations that did not happen.
func (b *TankBuffer) PushAppliedOperation(op tankstore.AppliedOperation) {
	b.pendingOps = append(b.pendingOps, op)
}

// Commit writes every staged tank mutation, balance delta, and applied
// operation back into the backing database. It is the only place this
// package touches the database for anything but reads and tank creation.
func (b *TankBuffer) Commit() error {
	for _, id := range b.tanks.Dirty() {
		if b.tanks.IsRemoved(id) {
			b.db.RemoveTank(id)
			continue
		}
		staged, ok := b.tanks.Staged(id)
		if !ok {
			continue
		}
		b.db.ModifyTank(id, func(t *tnttypes.TankObject) {
			*t = *staged
		})
	}
	for key, delta := range b.balanceDeltas {
		if 0 == delta {
			continue
		}
		if err := b.db.AdjustBalance(key.account, key.asset, delta); nil != err {
			return err
		}
	}
	for _, op := range b.pendingOps {
		b.db.PushAppliedOperation(op)
	}
	return nil
}

// Discard drops every staged change without touching the backing database -
// used when an operation's evaluate phase rejects it after some reads have
// already populated the buffer's cache.
func (b *TankBuffer) Discard() {
	b.tanks = NewStore[tnttypes.TankID, *tnttypes.TankObject](
		b.db.GetTank,
		func(t *tnttypes.TankObject) *tnttypes.TankObject { return t.Clone() },
	)
	b.balanceDeltas = make(map[balanceDeltaKey]int64)
	b.pendingOps = nil
}
