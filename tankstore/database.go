// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2019 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package tankstore defines the host database contract the tank/tap core
// evaluates against (§6 Database collaborator) and a plain in-memory
// reference implementation used by tests and by hosts that have not wired
// a real chain-state backend yet. The interface is deliberately narrow:
// every method here is a thing the original graphene chain_object_index /
// account balance index already does, renamed to the tank/tap domain - the
// core never reaches past this seam into a concrete storage engine, the
// same discipline bitmarkd's storage.DataAccess interface enforces between
// evaluators and goleveldb.
package tankstore

import (
	"sync"

	"github.com/bitmark-inc/tnt/tntparams"
	"github.com/bitmark-inc/tnt/tnttypes"
)

// AppliedOperation is the minimal trace record pushed for every applied
// tnt operation, mirroring the "push_applied_operation" collaborator call
// (§6) closely enough for hosts to log or index it. The actual operation
// payload is opaque to the store.
type AppliedOperation struct {
	Kind   string
	TankID tnttypes.TankID
	Detail interface{}
}

// Database is the seam between the tank/tap evaluators and chain state.
// Every method here corresponds to one bullet of §6's Database collaborator
// contract; none of it is tnt-specific storage logic, it is simply what a
// host chain already tracks.
type Database interface {
	GetTank(id tnttypes.TankID) (*tnttypes.TankObject, bool)
	ModifyTank(id tnttypes.TankID, fn func(*tnttypes.TankObject)) bool
	RemoveTank(id tnttypes.TankID) bool
	CreateTank(obj *tnttypes.TankObject) tnttypes.TankID

	HeadBlockTime() int64

	GetBalance(account tnttypes.AccountID, asset tnttypes.AssetID) int64
	AdjustBalance(account tnttypes.AccountID, asset tnttypes.AssetID, delta int64) error

	IsAuthorizedAsset(account tnttypes.AccountID, asset tnttypes.AssetID) bool

	GetGlobalProperties() tntparams.Parameters

	PushAppliedOperation(op AppliedOperation)
}

// MemoryDatabase is a reference Database backed by plain Go maps, guarded
// by a single RWMutex the way storage.PoolHandle guards its leveldb handle.
// It exists for tests and for hosts bootstrapping before a real chain-state
// backend is wired; it is never meant to survive process restart.
type MemoryDatabase struct {
	mutex sync.RWMutex

	tanks   map[tnttypes.TankID]*tnttypes.TankObject
	nextID  tnttypes.TankID
	balances map[balanceKey]int64
	authorized map[balanceKey]bool

	blockTime int64
	params    tntparams.Parameters

	appliedLog []AppliedOperation
}

type balanceKey struct {
	account tnttypes.AccountID
	asset   tnttypes.AssetID
}

// NewMemoryDatabase builds an empty store with the given chain parameters.
// nextID starts at 1 so tnttypes.TankID(0) can be reserved as "no tank".
func NewMemoryDatabase(params tntparams.Parameters) *MemoryDatabase {
	return &MemoryDatabase{
		tanks:      make(map[tnttypes.TankID]*tnttypes.TankObject),
		nextID:     tnttypes.TankID(1),
		balances:   make(map[balanceKey]int64),
		authorized: make(map[balanceKey]bool),
		params:     params,
	}
}

func (db *MemoryDatabase) GetTank(id tnttypes.TankID) (*tnttypes.TankObject, bool) {
	db.mutex.RLock()
	defer db.mutex.RUnlock()
	t, ok := db.tanks[id]
	return t, ok
}

func (db *MemoryDatabase) ModifyTank(id tnttypes.TankID, fn func(*tnttypes.TankObject)) bool {
	db.mutex.Lock()
	defer db.mutex.Unlock()
	t, ok := db.tanks[id]
	if !ok {
		return false
	}
	fn(t)
	return true
}

func (db *MemoryDatabase) RemoveTank(id tnttypes.TankID) bool {
	db.mutex.Lock()
	defer db.mutex.Unlock()
	if _, ok := db.tanks[id]; !ok {
		return false
	}
	delete(db.tanks, id)
	return true
}

func (db *MemoryDatabase) CreateTank(obj *tnttypes.TankObject) tnttypes.TankID {
	db.mutex.Lock()
	defer db.mutex.Unlock()
	id := db.nextID
	db.nextID++
	db.tanks[id] = obj
	return id
}

func (db *MemoryDatabase) HeadBlockTime() int64 {
	db.mutex.RLock()
	defer db.mutex.RUnlock()
	return db.blockTime
}

// SetHeadBlockTime lets tests and host glue code advance the clock the
// store reports - real hosts derive this from the block they are
// evaluating against instead.
func (db *MemoryDatabase) SetHeadBlockTime(t int64) {
	db.mutex.Lock()
	defer db.mutex.Unlock()
	db.blockTime = t
}

func (db *MemoryDatabase) GetBalance(account tnttypes.AccountID, asset tnttypes.AssetID) int64 {
	db.mutex.RLock()
	defer db.mutex.RUnlock()
	return db.balances[balanceKey{account, asset}]
}

func (db *MemoryDatabase) AdjustBalance(account tnttypes.AccountID, asset tnttypes.AssetID, delta int64) error {
	db.mutex.Lock()
	defer db.mutex.Unlock()
	key := balanceKey{account, asset}
	balance := db.balances[key]
	if delta < 0 && balance < -delta {
		return ErrInsufficientBalance
	}
	db.balances[key] = balance + delta
	return nil
}

func (db *MemoryDatabase) IsAuthorizedAsset(account tnttypes.AccountID, asset tnttypes.AssetID) bool {
	db.mutex.RLock()
	defer db.mutex.RUnlock()
	if asset == tnttypes.AnyAsset {
		return true
	}
	return db.authorized[balanceKey{account, asset}]
}

// SetAuthorized flips whether account may hold asset, used by tests and by
// host glue code mirroring whitelist/blacklist asset flags.
func (db *MemoryDatabase) SetAuthorized(account tnttypes.AccountID, asset tnttypes.AssetID, ok bool) {
	db.mutex.Lock()
	defer db.mutex.Unlock()
	if ok {
		db.authorized[balanceKey{account, asset}] = true
	} else {
		delete(db.authorized, balanceKey{account, asset})
	}
}

func (db *MemoryDatabase) GetGlobalProperties() tntparams.Parameters {
	db.mutex.RLock()
	defer db.mutex.RUnlock()
	return db.params
}

// SetGlobalProperties replaces the chain parameters the store reports.
func (db *MemoryDatabase) SetGlobalProperties(p tntparams.Parameters) {
	db.mutex.Lock()
	defer db.mutex.Unlock()
	db.params = p
}

func (db *MemoryDatabase) PushAppliedOperation(op AppliedOperation) {
	db.mutex.Lock()
	defer db.mutex.Unlock()
	db.appliedLog = append(db.appliedLog, op)
}

// AppliedOperations returns a copy of the operations pushed so far, newest
// last - for tests asserting on side effects.
func (db *MemoryDatabase) AppliedOperations() []AppliedOperation {
	db.mutex.RLock()
	defer db.mutex.RUnlock()
	out := make([]AppliedOperation, len(db.appliedLog))
	copy(out, db.appliedLog)
	return out
}
