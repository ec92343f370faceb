// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2019 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package tnttypes

// TankSchematic is the immutable-between-updates structural description of
// a tank: its taps, attachments, and deposit policy (§3 Tank schematic).
// tap_counter/attachment_counter never decrease, even across tank_update,
// so indices handed out once are never reused.
type TankSchematic struct {
	AssetType          AssetID
	Taps               map[Index]*Tap
	TapCounter         Index
	Attachments        map[Index]Attachment
	AttachmentCounter  Index
	RemoteSources      RemoteSources
}

// NewSchematic builds an empty schematic ready to have the emergency tap
// (index 0) and any further taps/attachments added.
func NewSchematic(assetType AssetID) *TankSchematic {
	return &TankSchematic{
		AssetType:     assetType,
		Taps:          make(map[Index]*Tap),
		Attachments:   make(map[Index]Attachment),
		RemoteSources: AllRemoteSources(),
	}
}

// AddTap inserts tap at the next available index (the schematic's
// tap_counter), bumps the counter, and returns the assigned index.
func (s *TankSchematic) AddTap(tap *Tap) Index {
	index := s.TapCounter
	s.Taps[index] = tap
	s.TapCounter++
	return index
}

// AddAttachment inserts attachment at the next available index and bumps
// attachment_counter.
func (s *TankSchematic) AddAttachment(a Attachment) Index {
	index := s.AttachmentCounter
	s.Attachments[index] = a
	s.AttachmentCounter++
	return index
}

// EmergencyTap returns tap index 0, which every valid schematic carries.
func (s *TankSchematic) EmergencyTap() (*Tap, bool) {
	t, ok := s.Taps[EmergencyTapIndex]
	return t, ok
}

// Clone returns a deep copy suitable for copy-on-write staging: every map
// and the Tap pointers within it are duplicated so mutating the clone can
// never reach back into the original.
func (s *TankSchematic) Clone() *TankSchematic {
	clone := &TankSchematic{
		AssetType:         s.AssetType,
		Taps:              make(map[Index]*Tap, len(s.Taps)),
		TapCounter:        s.TapCounter,
		Attachments:       make(map[Index]Attachment, len(s.Attachments)),
		AttachmentCounter: s.AttachmentCounter,
		RemoteSources:     s.RemoteSources.clone(),
	}
	for i, tap := range s.Taps {
		t := *tap
		t.Requirements = append([]Requirement(nil), tap.Requirements...)
		clone.Taps[i] = &t
	}
	for i, a := range s.Attachments {
		clone.Attachments[i] = a
	}
	return clone
}

func (r RemoteSources) clone() RemoteSources {
	if RestrictedSources != r.Kind {
		return r
	}
	set := make(map[string]Connection, len(r.Set))
	for k, v := range r.Set {
		set[k] = v
	}
	return RemoteSources{Kind: r.Kind, Set: set}
}

// TankAccessoryState is the union of every requirement/attachment state
// type a tank may hold, keyed by AccessoryAddress in TankObject.
type TankAccessoryState struct {
	AssetFlowMeter      *AssetFlowMeterState
	CumulativeFlowLimit *CumulativeFlowLimitState
	PeriodicFlowLimit   *PeriodicFlowLimitState
	Review              *ReviewRequirementState
	Delay               *DelayRequirementState
	Ticket              *TicketRequirementState
	Exchange            *ExchangeRequirementState
}

// TankObject is the mutable runtime record for a tank (§3 Tank object).
type TankObject struct {
	Schematic      *TankSchematic
	Balance        int64
	Deposit        int64
	CreationDate   int64 // unix seconds, from head_block_time at creation
	AccessoryStates map[AccessoryAddress]*TankAccessoryState
}

// NewTankObject wraps schematic into a freshly created, empty tank.
func NewTankObject(schematic *TankSchematic, deposit, creationDate int64) *TankObject {
	return &TankObject{
		Schematic:       schematic,
		Deposit:         deposit,
		CreationDate:    creationDate,
		AccessoryStates: make(map[AccessoryAddress]*TankAccessoryState),
	}
}

// GetOrCreateState returns the accessory state row at address, creating an
// empty one on first access (§3 Lifecycle: "accessory state rows come into
// existence on first write").
func (t *TankObject) GetOrCreateState(address AccessoryAddress) *TankAccessoryState {
	state, ok := t.AccessoryStates[address]
	if !ok {
		state = &TankAccessoryState{}
		t.AccessoryStates[address] = state
	}
	return state
}

// GetState returns the accessory state row at address without creating it,
// reporting whether it existed.
func (t *TankObject) GetState(address AccessoryAddress) (*TankAccessoryState, bool) {
	state, ok := t.AccessoryStates[address]
	return state, ok
}

// EraseState removes any state at address - called by tank_update when the
// accessory that owned it is removed or replaced by one of a different
// kind (§9 design notes: state addressing ignores accessory type).
func (t *TankObject) EraseState(address AccessoryAddress) {
	delete(t.AccessoryStates, address)
}

// Clone returns a deep copy of the tank object, including its schematic and
// every accessory state row - the unit of copy-on-write staging over the
// tank store.
func (t *TankObject) Clone() *TankObject {
	clone := &TankObject{
		Schematic:       t.Schematic.Clone(),
		Balance:         t.Balance,
		Deposit:         t.Deposit,
		CreationDate:    t.CreationDate,
		AccessoryStates: make(map[AccessoryAddress]*TankAccessoryState, len(t.AccessoryStates)),
	}
	for addr, state := range t.AccessoryStates {
		clone.AccessoryStates[addr] = state.clone()
	}
	return clone
}

// clone deep-copies a state row by duplicating whichever single pointer is
// set - only one ever is, per accessory, but copying all of them costs
// nothing and keeps this correct if that ever changes.
func (s *TankAccessoryState) clone() *TankAccessoryState {
	clone := &TankAccessoryState{}
	if nil != s.AssetFlowMeter {
		v := *s.AssetFlowMeter
		clone.AssetFlowMeter = &v
	}
	if nil != s.CumulativeFlowLimit {
		v := *s.CumulativeFlowLimit
		clone.CumulativeFlowLimit = &v
	}
	if nil != s.PeriodicFlowLimit {
		v := *s.PeriodicFlowLimit
		clone.PeriodicFlowLimit = &v
	}
	if nil != s.Review {
		v := *s.Review
		v.PendingRequests = make(map[uint64]*ReviewRequest, len(s.Review.PendingRequests))
		for id, r := range s.Review.PendingRequests {
			request := *r
			v.PendingRequests[id] = &request
		}
		clone.Review = &v
	}
	if nil != s.Delay {
		v := *s.Delay
		v.PendingRequests = make(map[uint64]*DelayRequest, len(s.Delay.PendingRequests))
		for id, r := range s.Delay.PendingRequests {
			request := *r
			v.PendingRequests[id] = &request
		}
		clone.Delay = &v
	}
	if nil != s.Ticket {
		v := *s.Ticket
		clone.Ticket = &v
	}
	if nil != s.Exchange {
		v := *s.Exchange
		clone.Exchange = &v
	}
	return clone
}
