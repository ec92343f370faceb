// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2019 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package fault

import "fmt"

// AccessoryPath identifies where in a tank schematic a validation or
// evaluation failure occurred: a tap index, a requirement index within that
// tap, or an attachment index. All fields are optional; String() renders
// whichever are set.
type AccessoryPath struct {
	TankID           *uint64
	TapIndex         *uint16
	RequirementIndex *uint16
	AttachmentIndex  *uint16
}

// WithTank - return a copy of the path with TankID set
func (p AccessoryPath) WithTank(id uint64) AccessoryPath {
	p.TankID = &id
	return p
}

// WithTap - return a copy of the path with TapIndex set
func (p AccessoryPath) WithTap(index uint16) AccessoryPath {
	p.TapIndex = &index
	return p
}

// WithRequirement - return a copy of the path with RequirementIndex set
func (p AccessoryPath) WithRequirement(index uint16) AccessoryPath {
	p.RequirementIndex = &index
	return p
}

// WithAttachment - return a copy of the path with AttachmentIndex set
func (p AccessoryPath) WithAttachment(index uint16) AccessoryPath {
	p.AttachmentIndex = &index
	return p
}

// String - human readable rendering used in PathError messages
func (p AccessoryPath) String() string {
	s := ""
	if nil != p.TankID {
		s += fmt.Sprintf("tank:%d", *p.TankID)
	}
	if nil != p.TapIndex {
		s += fmt.Sprintf(" tap:%d", *p.TapIndex)
	}
	if nil != p.AttachmentIndex {
		s += fmt.Sprintf(" attachment:%d", *p.AttachmentIndex)
	}
	if nil != p.RequirementIndex {
		s += fmt.Sprintf(" requirement:%d", *p.RequirementIndex)
	}
	if "" == s {
		return "<no path>"
	}
	return s
}

// PathError wraps an underlying classified error with the accessory path
// that triggered it, so callers can build a readable message without
// needing a second lookup back into the schematic.
type PathError struct {
	Err  error
	Path AccessoryPath
}

func (e *PathError) Error() string {
	return fmt.Sprintf("%s: %s", e.Path.String(), e.Err.Error())
}

func (e *PathError) Unwrap() error {
	return e.Err
}

// AtPath - wrap err with path, unless err is nil
func AtPath(err error, path AccessoryPath) error {
	if nil == err {
		return nil
	}
	return &PathError{Err: err, Path: path}
}
