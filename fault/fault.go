// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2019 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// error instances
//
// Provides a single instance of errors to allow easy comparison
package fault

// error base
type GenericError string

// to allow for different classes of errors
//
// the tank/tap core sorts every failure into one of these kinds so callers
// can branch on class instead of string matching
type ExistsError GenericError
type InvalidError GenericError
type NotFoundError GenericError
type ProcessError GenericError

// ValidationError - a schematic validator check failed (structural,
// authority, asset-type, reference, uniqueness, deposit amount)
type ValidationError GenericError

// AuthorityError - an authority was missing, unused, or trivial
type AuthorityError GenericError

// LookupError - nonexistent_object or need_lookup_function
type LookupError GenericError

// ConnectionError - bad_connection (wrong/no asset) or chain length exceeded
type ConnectionError GenericError

// QueryError - request not found, not approved/matured, preimage mismatch,
// ticket mismatch, uniqueness violation, tap-open-only misuse
type QueryError GenericError

// TapFlowError - tap not connected, tank empty, requirement locked,
// amount exceeds limit, cascading tap count exceeded, asset not authorized
type TapFlowError GenericError

// StateError - re-evaluate after apply, set_query_tank called twice, commit
// without staging, operation declaration mismatch
type StateError GenericError

// common errors
var (
	ErrCannotDecodeAccount = InvalidError("cannot decode account")
	ErrNotPublicKey        = InvalidError("not a public key")
	ErrInvalidKeyType      = InvalidError("invalid key type")
	ErrInvalidKeyLength    = InvalidError("invalid key length")
	ErrChecksumMismatch    = InvalidError("checksum mismatch")
	ErrInvalidSignature    = InvalidError("invalid signature")

	ErrTruncatedBuffer = InvalidError("truncated buffer")
)

// the error interface base method
func (e GenericError) Error() string { return string(e) }

// the error interface methods
func (e ExistsError) Error() string     { return string(e) }
func (e InvalidError) Error() string    { return string(e) }
func (e NotFoundError) Error() string   { return string(e) }
func (e ProcessError) Error() string    { return string(e) }
func (e ValidationError) Error() string { return string(e) }
func (e AuthorityError) Error() string  { return string(e) }
func (e LookupError) Error() string     { return string(e) }
func (e ConnectionError) Error() string { return string(e) }
func (e QueryError) Error() string      { return string(e) }
func (e TapFlowError) Error() string    { return string(e) }
func (e StateError) Error() string      { return string(e) }

// determine the class of an error
func IsErrExists(e error) bool  { _, ok := e.(ExistsError); return ok }
func IsErrInvalid(e error) bool { _, ok := e.(InvalidError); return ok }
func IsNotFound(e error) bool   { _, ok := e.(NotFoundError); return ok }
func IsErrProcess(e error) bool { _, ok := e.(ProcessError); return ok }
func IsValidation(e error) bool { _, ok := e.(ValidationError); return ok }
func IsAuthority(e error) bool  { _, ok := e.(AuthorityError); return ok }
func IsLookup(e error) bool     { _, ok := e.(LookupError); return ok }
func IsConnection(e error) bool { _, ok := e.(ConnectionError); return ok }
func IsQuery(e error) bool      { _, ok := e.(QueryError); return ok }
func IsTapFlow(e error) bool    { _, ok := e.(TapFlowError); return ok }
func IsState(e error) bool      { _, ok := e.(StateError); return ok }
