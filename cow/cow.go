// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2019 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package cow implements the copy-on-write staging buffer every tnt
// operation evaluator runs against (§4.D). A Store[K, V] reads through to
// a backing loader on first touch, clones what it reads so the evaluator
// can mutate freely without corrupting the read-only snapshot underneath
// it, and only pushes the staged mutations into a real database when the
// operation's evaluate/apply cycle asks it to commit - mirroring how
// bitmarkd's storage.DataAccess batches Put/Delete calls into one
// leveldb.Batch and only writes it on Commit.
package cow

// Loader fetches the authoritative value for a key from whatever backs the
// store - typically a tankstore.Database method.
type Loader[K comparable, V any] func(K) (V, bool)

// Cloner deep-copies a value so staged mutations never alias the original.
type Cloner[V any] func(V) V

// Store stages reads and writes over a read-only backing collection, keyed
// by K. Every returned V is a clone local to the store; nothing the caller
// does to it is visible outside the store until the owner (TankBuffer.Commit)
// writes the staged values back.
type Store[K comparable, V any] struct {
	load  Loader[K, V]
	clone Cloner[V]

	staged  map[K]V
	removed map[K]bool
	created []K
}

// NewStore builds a staging buffer reading through load and cloning with
// clone on first touch of each key.
func NewStore[K comparable, V any](load Loader[K, V], clone Cloner[V]) *Store[K, V] {
	return &Store[K, V]{
		load:    load,
		clone:   clone,
		staged:  make(map[K]V),
		removed: make(map[K]bool),
	}
}

// Get returns the staged value for id, cloning it from the backing loader
// on first access. A key marked Remove stays absent until Create writes it
// again.
func (s *Store[K, V]) Get(id K) (V, bool) {
	if v, ok := s.staged[id]; ok {
		return v, true
	}
	var zero V
	if s.removed[id] {
		return zero, false
	}
	v, ok := s.load(id)
	if !ok {
		return zero, false
	}
	cloned := s.clone(v)
	s.staged[id] = cloned
	return cloned, true
}

// Modify fetches id (staging it if needed) and runs fn against the staged
// clone, reporting whether id existed. fn mutates the clone in place - V is
// expected to be a pointer type, the way every tnt accessory store value is.
func (s *Store[K, V]) Modify(id K, fn func(V)) bool {
	v, ok := s.Get(id)
	if !ok {
		return false
	}
	fn(v)
	return true
}

// Create stages a brand new value at id, overriding any prior removal.
func (s *Store[K, V]) Create(id K, v V) {
	s.staged[id] = v
	delete(s.removed, id)
	s.created = append(s.created, id)
}

// Remove stages id's removal: subsequent Get calls in this store see it as
// absent even though the backing loader still has it, until commit.
func (s *Store[K, V]) Remove(id K) {
	delete(s.staged, id)
	s.removed[id] = true
	s.created = removeID(s.created, id)
}

// Dirty returns every key touched in this store - created, modified, or
// removed - so Commit can walk a stable set instead of a live map.
func (s *Store[K, V]) Dirty() []K {
	seen := make(map[K]bool, len(s.staged)+len(s.removed))
	out := make([]K, 0, len(s.staged)+len(s.removed))
	for k := range s.staged {
		if !seen[k] {
			seen[k] = true
			out = append(out, k)
		}
	}
	for k := range s.removed {
		if !seen[k] {
			seen[k] = true
			out = append(out, k)
		}
	}
	return out
}

// Staged returns the staged value at id without touching the backing
// loader - used by Commit, which only cares about what changed.
func (s *Store[K, V]) Staged(id K) (V, bool) {
	v, ok := s.staged[id]
	return v, ok
}

// IsRemoved reports whether id was staged for removal.
func (s *Store[K, V]) IsRemoved(id K) bool {
	return s.removed[id]
}

// Created returns the keys staged via Create, in the order they were
// created - the tank/tap core needs this to know which ids are genuinely
// new versus merely modified, since both land in the same staged map.
func (s *Store[K, V]) Created() []K {
	out := make([]K, len(s.created))
	copy(out, s.created)
	return out
}

func removeID[K comparable](ids []K, id K) []K {
	for i, v := range ids {
		if v == id {
			return append(ids[:i], ids[i+1:]...)
		}
	}
	return ids
}
