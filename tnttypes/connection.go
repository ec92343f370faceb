// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2019 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package tnttypes

// ConnectionKind tags the variant stored in a Connection. Wire numbering
// must stay stable once shipped - see §6 Serialization.
type ConnectionKind uint8

const (
	ConnectionSameTank ConnectionKind = iota
	ConnectionAccount
	ConnectionTank
	ConnectionAttachment
)

func (k ConnectionKind) String() string {
	switch k {
	case ConnectionSameTank:
		return "same_tank"
	case ConnectionAccount:
		return "account_id"
	case ConnectionTank:
		return "tank_id"
	case ConnectionAttachment:
		return "attachment_id"
	default:
		return "unknown_connection"
	}
}

// Connection is the sum type same_tank | account_id | tank_id |
// attachment_id that every tap, meter, and opener points its output at.
type Connection struct {
	Kind       ConnectionKind
	Account    AccountID
	Tank       TankID
	Attachment AttachmentID
}

// SameTankConnection builds the same_tank variant.
func SameTankConnection() Connection {
	return Connection{Kind: ConnectionSameTank}
}

// AccountConnection builds the account_id variant.
func AccountConnection(id AccountID) Connection {
	return Connection{Kind: ConnectionAccount, Account: id}
}

// TankConnection builds the tank_id variant.
func TankConnection(id TankID) Connection {
	return Connection{Kind: ConnectionTank, Tank: id}
}

// AttachmentConnection builds the attachment_id variant.
func AttachmentConnection(id AttachmentID) Connection {
	return Connection{Kind: ConnectionAttachment, Attachment: id}
}

// IsTerminal reports whether following this connection ends the chain: any
// variant except attachment_id is terminal (§3 Connection).
func (c Connection) IsTerminal() bool {
	return ConnectionAttachment != c.Kind
}

// IsRemote reports whether this is a remote_connection, i.e. every variant
// except same_tank (§3: "a remote_connection omits same_tank").
func (c Connection) IsRemote() bool {
	return ConnectionSameTank != c.Kind
}

// Equal compares two connections field by field within their active Kind.
func (c Connection) Equal(other Connection) bool {
	if c.Kind != other.Kind {
		return false
	}
	switch c.Kind {
	case ConnectionSameTank:
		return true
	case ConnectionAccount:
		return c.Account == other.Account
	case ConnectionTank:
		return c.Tank == other.Tank
	case ConnectionAttachment:
		if (nil == c.Attachment.TankID) != (nil == other.Attachment.TankID) {
			return false
		}
		if nil != c.Attachment.TankID && *c.Attachment.TankID != *other.Attachment.TankID {
			return false
		}
		return c.Attachment.Index == other.Attachment.Index
	default:
		return false
	}
}
