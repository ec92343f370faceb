// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2019 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package connflow implements the connection-flow processor (§4.H): it
// walks a connection chain from a tap or attachment output to whatever
// terminal ends it, crediting meters, tank balances, or external accounts
// along the way and cascading further tap opens through tap_opener
// attachments. It never decides whether a tap itself may release asset -
// that is §4.G's job - it only moves asset once a release has already been
// authorized and sized.
package connflow

import (
	"github.com/bitmark-inc/logger"

	"github.com/bitmark-inc/tnt/cow"
	"github.com/bitmark-inc/tnt/fault"
	"github.com/bitmark-inc/tnt/tntparams"
	"github.com/bitmark-inc/tnt/tnttypes"
)

var log = logger.New("connflow")

var (
	ErrNonexistentTank       = fault.TapFlowError("connection references nonexistent tank")
	ErrNonexistentAttachment = fault.TapFlowError("connection references nonexistent attachment")
	ErrCannotReceiveAsset    = fault.TapFlowError("attachment cannot receive asset")
	ErrWrongAsset            = fault.TapFlowError("connection receives wrong asset")
	ErrExceededChainLength   = fault.TapFlowError("exceeded max connection chain length")
	ErrSourceNotAuthorized   = fault.TapFlowError("source not in destination's authorized_sources")
	ErrAssetNotAuthorized    = fault.TapFlowError("account not authorized for asset")
)

// OpenTapFunc requests a cascading tap open; the tap-flow evaluator (§4.G)
// supplies this so connflow never has to know about the open queue or its
// max_taps_to_open bound.
type OpenTapFunc func(tap tnttypes.TapID, amount tnttypes.FlowLimit) error

// FundAccountFunc credits an account terminal outside the tank store - the
// host settles the actual balance change, connflow only reports it happened
// and hands back the full path the asset travelled.
type FundAccountFunc func(account tnttypes.AccountID, amount int64, path []tnttypes.Connection) error

// Processor is component H.
type Processor struct {
	buffer      *cow.TankBuffer
	params      tntparams.Parameters
	openTap     OpenTapFunc
	fundAccount FundAccountFunc
}

// New builds a processor over buffer, cascading tap opens through openTap
// and crediting external accounts through fundAccount. Either callback may
// be nil if the caller's flow never reaches a tap_opener or account_id
// terminal respectively.
func New(buffer *cow.TankBuffer, params tntparams.Parameters, openTap OpenTapFunc, fundAccount FundAccountFunc) *Processor {
	return &Processor{buffer: buffer, params: params, openTap: openTap, fundAccount: fundAccount}
}

// ReleaseToConnection walks start, releasing amount of origin tank's asset
// type, and returns the full path walked (start included) once it reaches a
// terminal connection.
func (p *Processor) ReleaseToConnection(origin tnttypes.TankID, start tnttypes.Connection, amount int64) ([]tnttypes.Connection, error) {
	originTank, ok := p.buffer.GetTank(origin)
	if !ok {
		return nil, ErrNonexistentTank
	}
	assetType := originTank.Schematic.AssetType

	path := []tnttypes.Connection{start}
	current := start
	currentTank := origin

	// source and sourceTank track the connection (and its tank) that led to
	// whatever is being examined this step - the tap's own tank for the
	// first hop, or the previous attachment for every hop after it. This is
	// what checkSourceRestriction tests against a destination's
	// remote_sources set, the same way tntvalidate.validateConnectionChain
	// tests a chain's penultimate connection.
	source := tnttypes.TankConnection(origin)
	sourceTank := origin

	for step := 0; ; step++ {
		if step > p.params.MaxConnectionChainLength {
			return nil, ErrExceededChainLength
		}

		if current.IsTerminal() {
			if err := p.resolveTerminal(source, sourceTank, current, assetType, amount, path); nil != err {
				return nil, err
			}
			return path, nil
		}

		attachTankID := currentTank
		if nil != current.Attachment.TankID {
			attachTankID = *current.Attachment.TankID
		}

		tank, ok := p.buffer.GetTank(attachTankID)
		if !ok {
			return nil, ErrNonexistentTank
		}
		a, ok := tank.Schematic.Attachments[current.Attachment.Index]
		if !ok {
			return nil, ErrNonexistentAttachment
		}
		currentTank = attachTankID

		next, err := p.stepAttachment(tank, current.Attachment.Index, a, source, sourceTank, attachTankID, assetType, amount)
		if nil != err {
			return nil, err
		}

		resolvedCurrent := current
		resolvedCurrent.Attachment.TankID = &attachTankID
		source = resolvedCurrent
		sourceTank = attachTankID

		current = next
		path = append(path, current)
	}
}

// stepAttachment dispatches on the attachment variant found at the current
// hop, mutating its state or cascading a tap open as appropriate, and
// returns the connection to follow next.
func (p *Processor) stepAttachment(tank *tnttypes.TankObject, index tnttypes.Index, a tnttypes.Attachment, source tnttypes.Connection, sourceTank, destTank tnttypes.TankID, assetType tnttypes.AssetID, amount int64) (tnttypes.Connection, error) {
	switch v := a.(type) {
	case tnttypes.AssetFlowMeter:
		if err := p.checkSourceRestriction(source, sourceTank, destTank, v.RemoteSources); nil != err {
			return tnttypes.Connection{}, err
		}
		if !v.AssetType.Matches(assetType) {
			return tnttypes.Connection{}, ErrWrongAsset
		}
		state := tank.GetOrCreateState(tnttypes.ForAttachment(index))
		if nil == state.AssetFlowMeter {
			state.AssetFlowMeter = &tnttypes.AssetFlowMeterState{}
		}
		state.AssetFlowMeter.MeteredAmount += amount
		return v.Destination, nil

	case tnttypes.TapOpener:
		if err := p.checkSourceRestriction(source, sourceTank, destTank, v.RemoteSources); nil != err {
			return tnttypes.Connection{}, err
		}
		if !v.AssetType.Matches(assetType) {
			return tnttypes.Connection{}, ErrWrongAsset
		}
		tapTank := destTank
		if nil != p.openTap {
			if err := p.openTap(tnttypes.TapID{TankID: &tapTank, Index: v.TapIndex}, v.ReleaseAmount); nil != err {
				return tnttypes.Connection{}, err
			}
		}
		return v.Destination, nil

	case tnttypes.AttachmentConnectAuthority:
		return tnttypes.Connection{}, ErrCannotReceiveAsset

	default:
		log.Errorf("connflow: attachment %d has unknown tag %d", index, a.Tag())
		return tnttypes.Connection{}, ErrNonexistentAttachment
	}
}

// resolveTerminal credits whichever terminal connection the chain ended at.
func (p *Processor) resolveTerminal(source tnttypes.Connection, currentTank tnttypes.TankID, conn tnttypes.Connection, assetType tnttypes.AssetID, amount int64, path []tnttypes.Connection) error {
	switch conn.Kind {
	case tnttypes.ConnectionSameTank:
		tank, ok := p.buffer.GetTank(currentTank)
		if !ok {
			return ErrNonexistentTank
		}
		tank.Balance += amount
		return nil

	case tnttypes.ConnectionTank:
		destTank, ok := p.buffer.GetTank(conn.Tank)
		if !ok {
			return ErrNonexistentTank
		}
		if !destTank.Schematic.AssetType.Matches(assetType) {
			return ErrWrongAsset
		}
		if err := p.checkSourceRestriction(source, currentTank, conn.Tank, destTank.Schematic.RemoteSources); nil != err {
			return err
		}
		destTank.Balance += amount
		return nil

	case tnttypes.ConnectionAccount:
		if !p.buffer.IsAuthorizedAsset(conn.Account, assetType) {
			return ErrAssetNotAuthorized
		}
		if nil != p.fundAccount {
			return p.fundAccount(conn.Account, amount, path)
		}
		return nil

	default:
		return ErrNonexistentAttachment
	}
}

// checkSourceRestriction implements §4.H's source restriction check: a
// same-tank deposit is always implicit, an all_sources destination accepts
// anything, and otherwise the actual previous connection - not just its
// tank - must appear in the destination's restricted set, the same way
// tntvalidate.validateConnectionChain tests a chain's penultimate
// connection against remote_sources.
func (p *Processor) checkSourceRestriction(source tnttypes.Connection, sourceTank, destTank tnttypes.TankID, sources tnttypes.RemoteSources) error {
	if sourceTank == destTank {
		return nil
	}
	if tnttypes.AllSources == sources.Kind {
		return nil
	}
	if sources.Contains(source) {
		return nil
	}
	return ErrSourceNotAuthorized
}
