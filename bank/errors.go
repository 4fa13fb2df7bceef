// Copyright 2021 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package bank

import "errors"

var (
	// ErrInvalidArgument denotes a nil bank or field, an invalid register
	// width or a misaligned register address.
	ErrInvalidArgument = errors.New("bank: invalid argument")

	// ErrPermission denotes an access forbidden by a field's mode.
	ErrPermission = errors.New("bank: permission denied")

	// ErrOverflow denotes a value too wide for a field's mask.
	ErrOverflow = errors.New("bank: value overflows field")
)
