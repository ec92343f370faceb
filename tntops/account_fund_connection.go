// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2019 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package tntops

import (
	"github.com/bitmark-inc/tnt/connflow"
	"github.com/bitmark-inc/tnt/cow"
	"github.com/bitmark-inc/tnt/tankstore"
	"github.com/bitmark-inc/tnt/tntlookup"
	"github.com/bitmark-inc/tnt/tntparams"
	"github.com/bitmark-inc/tnt/tnttypes"
)

// AccountFundConnection is the account_fund_connection operation (§6): the
// only operation that injects asset into the tank system from outside it.
// It never cascades a tap open - a funding source with no tank of its own
// has no query session or account context to authorize one against.
type AccountFundConnection struct {
	FundingAccount     tnttypes.AccountID
	FundingDestination tnttypes.Connection
	FundingAmount      int64
	Asset              tnttypes.AssetID
}

// Apply debits the funding account and credits the destination, walking a
// connection chain through connflow when the destination names a tank or
// attachment rather than an account directly.
func (op AccountFundConnection) Apply(buffer *cow.TankBuffer, params tntparams.Parameters) error {
	if op.FundingAmount <= 0 {
		return ErrAmountNotPositive
	}
	if err := buffer.AdjustBalance(op.FundingAccount, op.Asset, -op.FundingAmount); nil != err {
		return err
	}

	if tnttypes.ConnectionAccount == op.FundingDestination.Kind {
		if !buffer.IsAuthorizedAsset(op.FundingDestination.Account, op.Asset) {
			return connflow.ErrAssetNotAuthorized
		}
		return op.fundAccountDirect(buffer)
	}

	contextTank, ok := op.resolveContextTank()
	if !ok {
		return ErrDestinationNeedsTankContext
	}
	tank, ok := buffer.GetTank(contextTank)
	if !ok {
		return ErrTankNotFound
	}

	lookup := tntlookup.New(contextTank, tank.Schematic, tankLookupFn(buffer))
	declaredAsset, err := lookup.GetConnectionAsset(op.FundingDestination)
	if nil != err {
		return err
	}
	if !declaredAsset.Matches(op.Asset) {
		return connflow.ErrWrongAsset
	}

	proc := connflow.New(buffer, params, rejectCascadingOpen, fundAccountVirtualOp(buffer, op.Asset))
	if _, err := proc.ReleaseToConnection(contextTank, op.FundingDestination, op.FundingAmount); nil != err {
		return err
	}

	buffer.PushAppliedOperation(tankstore.AppliedOperation{Kind: "account_fund_connection", TankID: contextTank})
	log.Infof("account_fund_connection: tank=%d amount=%d", contextTank, op.FundingAmount)
	return nil
}

// resolveContextTank finds the tank whose id doubles as connflow's origin
// for this destination: the tank named directly, or an explicit attachment's
// own tank. same_tank has no "current tank" here to resolve against.
func (op AccountFundConnection) resolveContextTank() (tnttypes.TankID, bool) {
	switch op.FundingDestination.Kind {
	case tnttypes.ConnectionTank:
		return op.FundingDestination.Tank, true
	case tnttypes.ConnectionAttachment:
		if nil != op.FundingDestination.Attachment.TankID {
			return *op.FundingDestination.Attachment.TankID, true
		}
		return tnttypes.TankID(0), false
	default:
		return tnttypes.TankID(0), false
	}
}

func (op AccountFundConnection) fundAccountDirect(buffer *cow.TankBuffer) error {
	if err := buffer.AdjustBalance(op.FundingDestination.Account, op.Asset, op.FundingAmount); nil != err {
		return err
	}
	buffer.PushAppliedOperation(tankstore.AppliedOperation{
		Kind: "connection_fund_account",
		Detail: ConnectionFundAccount{
			ReceivingAccount: op.FundingDestination.Account,
			AmountReceived:   op.FundingAmount,
			AssetPath:        []tnttypes.Connection{op.FundingDestination},
		},
	})
	log.Infof("account_fund_connection: account=%s amount=%d", op.FundingDestination.Account, op.FundingAmount)
	return nil
}

// rejectCascadingOpen is the open-tap callback handed to connflow: a funding
// operation with no tank or query context of its own can never authorize a
// cascading tap open.
func rejectCascadingOpen(tnttypes.TapID, tnttypes.FlowLimit) error {
	return ErrCascadingOpenNotAllowed
}

// fundAccountVirtualOp adapts a buffer into connflow's FundAccountFunc
// contract, crediting the account and recording the connection_fund_account
// virtual op (§6) with the full path the asset travelled.
func fundAccountVirtualOp(buffer *cow.TankBuffer, asset tnttypes.AssetID) connflow.FundAccountFunc {
	return func(account tnttypes.AccountID, amount int64, path []tnttypes.Connection) error {
		if err := buffer.AdjustBalance(account, asset, amount); nil != err {
			return err
		}
		buffer.PushAppliedOperation(tankstore.AppliedOperation{
			Kind: "connection_fund_account",
			Detail: ConnectionFundAccount{
				ReceivingAccount: account,
				AmountReceived:   amount,
				AssetPath:        path,
			},
		})
		return nil
	}
}
