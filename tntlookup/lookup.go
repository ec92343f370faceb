// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2019 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package tntlookup resolves connections and attachments across tanks and
// walks connection chains (§4.C Lookup utilities). Every lookup takes a
// current_tank reference and an optional tank_lookup callback; callers
// without the callback can still resolve same-tank references but get
// ErrNeedLookupFunction for anything that reaches across tanks - the
// schematic validator treats that outcome as "skip, can't tell".
package tntlookup

import (
	"github.com/bitmark-inc/tnt/fault"
	"github.com/bitmark-inc/tnt/tnttypes"
)

// TankLookupFunc resolves a tank id to its schematic. The second return
// reports whether the tank exists.
type TankLookupFunc func(tnttypes.TankID) (*tnttypes.TankSchematic, bool)

var (
	ErrNonexistentObject   = fault.LookupError("nonexistent object")
	ErrNeedLookupFunction  = fault.LookupError("need lookup function")
	ErrReceivesWrongAsset  = fault.ConnectionError("connection receives wrong asset")
	ErrReceivesNoAsset     = fault.ConnectionError("connection cannot receive asset")
	ErrExceededChainLength = fault.ConnectionError("exceeded max connection chain length")
)

// Lookup bundles the "current tank" context with an optional cross-tank
// resolver, exactly mirroring the contract in §4.C.
type Lookup struct {
	CurrentID        tnttypes.TankID
	CurrentSchematic *tnttypes.TankSchematic
	LookupFn         TankLookupFunc // nil is valid: same-tank references still resolve
}

// New builds a Lookup rooted at the given current tank.
func New(id tnttypes.TankID, schematic *tnttypes.TankSchematic, fn TankLookupFunc) *Lookup {
	return &Lookup{CurrentID: id, CurrentSchematic: schematic, LookupFn: fn}
}

// LookupTank resolves an optional tank id: nil means "current tank".
func (l *Lookup) LookupTank(id *tnttypes.TankID) (tnttypes.TankID, *tnttypes.TankSchematic, error) {
	if nil == id {
		return l.CurrentID, l.CurrentSchematic, nil
	}
	if *id == l.CurrentID {
		return l.CurrentID, l.CurrentSchematic, nil
	}
	if nil == l.LookupFn {
		return tnttypes.TankID(0), nil, ErrNeedLookupFunction
	}
	schematic, ok := l.LookupFn(*id)
	if !ok {
		return tnttypes.TankID(0), nil, ErrNonexistentObject
	}
	return *id, schematic, nil
}

// LookupAttachment resolves an attachment by id, returning the tank it was
// found on alongside the attachment itself.
func (l *Lookup) LookupAttachment(id tnttypes.AttachmentID) (tnttypes.TankID, tnttypes.Attachment, error) {
	tankID, schematic, err := l.LookupTank(id.TankID)
	if nil != err {
		return tnttypes.TankID(0), nil, err
	}
	a, ok := schematic.Attachments[id.Index]
	if !ok {
		return tnttypes.TankID(0), nil, ErrNonexistentObject
	}
	return tankID, a, nil
}

// LookupTap resolves a tap by id, returning the tank it was found on
// alongside the tap itself.
func (l *Lookup) LookupTap(id tnttypes.TapID) (tnttypes.TankID, *tnttypes.Tap, error) {
	tankID, schematic, err := l.LookupTank(id.TankID)
	if nil != err {
		return tnttypes.TankID(0), nil, err
	}
	tap, ok := schematic.Taps[id.Index]
	if !ok {
		return tnttypes.TankID(0), nil, ErrNonexistentObject
	}
	return tankID, tap, nil
}

// GetConnectionAsset resolves the asset type a connection's destination
// accepts (§4.C get_connection_asset).
func (l *Lookup) GetConnectionAsset(conn tnttypes.Connection) (tnttypes.AssetID, error) {
	switch conn.Kind {
	case tnttypes.ConnectionSameTank:
		return l.CurrentSchematic.AssetType, nil
	case tnttypes.ConnectionAccount:
		return tnttypes.AnyAsset, nil
	case tnttypes.ConnectionTank:
		_, schematic, err := l.LookupTank(&conn.Tank)
		if nil != err {
			return 0, err
		}
		return schematic.AssetType, nil
	case tnttypes.ConnectionAttachment:
		_, a, err := l.LookupAttachment(conn.Attachment)
		if nil != err {
			return 0, err
		}
		asset, ok := a.ReceivesAsset()
		if !ok {
			return 0, ErrReceivesNoAsset
		}
		return asset, nil
	default:
		return 0, ErrNonexistentObject
	}
}

// ChainStep is one hop recorded while walking a connection chain.
type ChainStep struct {
	Connection tnttypes.Connection
	TankID     tnttypes.TankID // the tank context this hop executed in
}

// GetConnectionChain follows output_connection hops from start, starting in
// the current tank's context, until it reaches a terminal connection or
// exceeds maxLen hops. If expectedAsset is non-nil, every hop's asset must
// match it. The implicit "current tank" carried along the chain updates
// whenever an attachment_id names an explicit tank id (§4.C).
func (l *Lookup) GetConnectionChain(start tnttypes.Connection, maxLen int, expectedAsset *tnttypes.AssetID) ([]ChainStep, tnttypes.TankID, error) {
	path := make([]ChainStep, 0, maxLen+1)
	current := start
	currentTank := l.CurrentID

	for i := 0; ; i++ {
		if i > maxLen {
			return nil, tnttypes.TankID(0), ErrExceededChainLength
		}

		if nil != expectedAsset {
			asset, err := l.assetAt(current, currentTank)
			if nil != err {
				return nil, tnttypes.TankID(0), err
			}
			if !asset.Matches(*expectedAsset) && !expectedAsset.Matches(asset) {
				return nil, tnttypes.TankID(0), ErrReceivesWrongAsset
			}
		}

		path = append(path, ChainStep{Connection: current, TankID: currentTank})

		if current.IsTerminal() {
			return path, currentTank, nil
		}

		if nil != current.Attachment.TankID {
			currentTank = *current.Attachment.TankID
		}

		_, a, err := l.lookupAttachmentIn(current.Attachment, currentTank)
		if nil != err {
			return nil, tnttypes.TankID(0), err
		}
		next, ok := a.OutputConnection()
		if !ok {
			return nil, tnttypes.TankID(0), ErrReceivesNoAsset
		}
		current = next
	}
}

// assetAt resolves the asset a connection accepts, given the tank context
// it is being evaluated in (needed because same_tank is context-relative).
func (l *Lookup) assetAt(conn tnttypes.Connection, contextTank tnttypes.TankID) (tnttypes.AssetID, error) {
	if tnttypes.ConnectionSameTank == conn.Kind {
		_, schematic, err := l.LookupTank(&contextTank)
		if nil != err {
			return 0, err
		}
		return schematic.AssetType, nil
	}
	return l.GetConnectionAsset(conn)
}

func (l *Lookup) lookupAttachmentIn(id tnttypes.AttachmentID, contextTank tnttypes.TankID) (tnttypes.TankID, tnttypes.Attachment, error) {
	resolvedID := id
	if nil == resolvedID.TankID {
		resolvedID.TankID = &contextTank
	}
	return l.LookupAttachment(resolvedID)
}
